package pagecat

import (
	"context"
	"fmt"
	"time"

	"github.com/shepherd-chms/pagecat/dep"
)

// staticProvider serves fixed content and records which reads were made.
type staticProvider struct {
	name     string
	plans    []dep.Plan
	nameErr  error
	plansErr error

	nameCalls  int
	plansCalls int
}

var _ dep.Provider = (*staticProvider)(nil)

func (p *staticProvider) AppName(context.Context) (string, error) {
	p.nameCalls++
	return p.name, p.nameErr
}

func (p *staticProvider) ActivePlans(context.Context) ([]dep.Plan, error) {
	p.plansCalls++
	return p.plans, p.plansErr
}

func (p *staticProvider) String() string { return "static" }

func fixedClock(year int) func() time.Time {
	return func() time.Time {
		return time.Date(year, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
}

func features(n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("Feature number %02d", i))
	}
	return out
}

func testPlans() []dep.Plan {
	return []dep.Plan{
		{
			ID: "basic", DisplayName: "Basic Plan",
			Description:  "Perfect for small churches",
			MonthlyPrice: 2500, YearlyPrice: 24000,
			Features: features(10), IsActive: true, SortOrder: 1,
		},
		{
			ID: "standard", DisplayName: "Standard Plan",
			Description:  "Ideal for growing churches",
			MonthlyPrice: 5000, YearlyPrice: 48000,
			Features: features(3), IsPopular: true, IsActive: true, SortOrder: 2,
		},
		{
			ID: "premium", DisplayName: "Premium Plan",
			Description:  "Complete solution for large churches",
			MonthlyPrice: 10000, YearlyPrice: 96000,
			Features: nil, IsActive: true, SortOrder: 3,
		},
	}
}
