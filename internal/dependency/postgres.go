package dependency

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/shepherd-chms/pagecat/dep"
)

const (
	// appNameQuery reads the APP_NAME setting of the first active church.
	appNameQuery = `SELECT s."value"
FROM "Church" c
LEFT JOIN "ChurchSetting" s ON s."churchId" = c."id" AND s."key" = 'APP_NAME'
WHERE c."isActive" = true
LIMIT 1`

	activePlansQuery = `SELECT "id", "displayName", "description", "monthlyPrice",
	"yearlyPrice", "features", "isPopular", "isActive", "sortOrder"
FROM "SubscriptionPlanTemplate"
WHERE "isActive" = true
ORDER BY "sortOrder" ASC`
)

// PostgresProvider reads the page content from the application database.
type PostgresProvider struct {
	clients dep.Clients
	timeout time.Duration
}

// PostgresProviderInput is the input structure for NewPostgresProvider.
type PostgresProviderInput struct {
	Clients dep.Clients
	// Timeout bounds each query; zero leaves only the caller's context.
	Timeout time.Duration
}

// NewPostgresProvider creates a provider backed by the Postgres client of
// the given client set.
func NewPostgresProvider(i PostgresProviderInput) *PostgresProvider {
	return &PostgresProvider{
		clients: i.Clients,
		timeout: i.Timeout,
	}
}

// AppName returns the configured application name. A database without an
// active church or without the setting is reported as unset.
func (p *PostgresProvider) AppName(ctx context.Context) (string, error) {
	db, err := p.db()
	if err != nil {
		return "", err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var value sql.NullString
	err = db.QueryRowContext(ctx, appNameQuery).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return "", nil
	case err != nil:
		return "", errors.Wrap(err, p.String())
	}
	return value.String, nil
}

// ActivePlans returns the active plan templates ordered by sort order.
func (p *PostgresProvider) ActivePlans(ctx context.Context) ([]dep.Plan, error) {
	db, err := p.db()
	if err != nil {
		return nil, err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := db.QueryContext(ctx, activePlansQuery)
	if err != nil {
		return nil, errors.Wrap(err, p.String())
	}
	defer rows.Close()

	plans := []dep.Plan{}
	for rows.Next() {
		var (
			plan        dep.Plan
			description sql.NullString
			features    []byte
		)
		if err := rows.Scan(
			&plan.ID,
			&plan.DisplayName,
			&description,
			&plan.MonthlyPrice,
			&plan.YearlyPrice,
			&features,
			&plan.IsPopular,
			&plan.IsActive,
			&plan.SortOrder,
		); err != nil {
			return nil, errors.Wrap(err, p.String())
		}
		plan.Description = description.String
		plan.Features = decodeFeatures(features)
		plans = append(plans, plan)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, p.String())
	}

	return plans, nil
}

// String returns the human-friendly version of this provider.
func (p *PostgresProvider) String() string {
	return providerID("postgres", "")
}

func (p *PostgresProvider) db() (*sql.DB, error) {
	if p.clients == nil || p.clients.Postgres() == nil {
		return nil, errors.Wrap(ErrNoClient, p.String())
	}
	return p.clients.Postgres(), nil
}

func (p *PostgresProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}
