package dep

import (
	"context"
	"database/sql"

	consulapi "github.com/hashicorp/consul/api"
	vaultapi "github.com/hashicorp/vault/api"
)

// DefaultAppName is the display name used whenever no application name is
// configured.
const DefaultAppName = "Shepherd"

// Provider supplies the dynamic content of the landing page.
//
// AppName returns an empty string and a nil error when no name is configured;
// a non-nil error always means the underlying store could not be read.
// ActivePlans returns the active plans ordered by SortOrder ascending and an
// empty slice when none are active.
type Provider interface {
	AppName(ctx context.Context) (string, error)
	ActivePlans(ctx context.Context) ([]Plan, error)
	String() string
}

// Clients interface for the API clients used by the content sources.
type Clients interface {
	Postgres() *sql.DB
	Consul() *consulapi.Client
	Vault() *vaultapi.Client
}
