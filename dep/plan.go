package dep

import (
	"fmt"
	"math"
)

// Plan is a subscription plan record as offered on the pricing section.
type Plan struct {
	ID           string   `json:"id" yaml:"id" toml:"id"`
	DisplayName  string   `json:"displayName" yaml:"display_name" toml:"display_name"`
	Description  string   `json:"description" yaml:"description" toml:"description"`
	MonthlyPrice float64  `json:"monthlyPrice" yaml:"monthly_price" toml:"monthly_price"`
	YearlyPrice  float64  `json:"yearlyPrice" yaml:"yearly_price" toml:"yearly_price"`
	Features     []string `json:"features" yaml:"features" toml:"features"`
	IsPopular    bool     `json:"isPopular" yaml:"is_popular" toml:"is_popular"`
	IsActive     bool     `json:"isActive" yaml:"is_active" toml:"is_active"`
	SortOrder    int      `json:"sortOrder" yaml:"sort_order" toml:"sort_order"`
}

// Validate reports records that cannot be displayed: a missing ID, or a
// price that is negative, NaN or infinite.
func (p Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plan: missing id")
	}
	if !validPrice(p.MonthlyPrice) {
		return fmt.Errorf("plan %q: invalid monthly price %v", p.ID, p.MonthlyPrice)
	}
	if !validPrice(p.YearlyPrice) {
		return fmt.Errorf("plan %q: invalid yearly price %v", p.ID, p.YearlyPrice)
	}
	return nil
}

func validPrice(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}
