package pagecat

import (
	"context"
	"sort"
	"strings"

	"github.com/shepherd-chms/pagecat/dep"
)

// Content is the snapshot of dynamic data rendered into one page. It is
// fetched fresh for every run and never mutated afterwards.
type Content struct {
	AppName string
	Plans   []dep.Plan

	// DefaultedName is true when the store had no name configured and
	// AppName came from the fallback or the default literal.
	DefaultedName bool
}

// FetchContentInput is the input structure for FetchContent.
type FetchContentInput struct {
	// FallbackName is used when the store has no application name. When it is
	// also empty dep.DefaultAppName is used.
	FallbackName string
}

// FetchContent reads the application name and then the active plans from the
// provider. Any provider failure is returned as a *DataRetrievalError. The
// returned plans are exactly the active ones, ordered by SortOrder with ties
// kept in retrieval order.
func FetchContent(ctx context.Context, p dep.Provider, i FetchContentInput) (Content, error) {
	name, err := p.AppName(ctx)
	if err != nil {
		return Content{}, &DataRetrievalError{Op: "app name", Source: p.String(), Err: err}
	}

	var c Content
	c.AppName = strings.TrimSpace(name)
	if c.AppName == "" {
		c.DefaultedName = true
		c.AppName = strings.TrimSpace(i.FallbackName)
		if c.AppName == "" {
			c.AppName = dep.DefaultAppName
		}
	}

	plans, err := p.ActivePlans(ctx)
	if err != nil {
		return Content{}, &DataRetrievalError{Op: "active plans", Source: p.String(), Err: err}
	}
	// inactive records are never shown, so they are not validated either
	c.Plans = ActiveInOrder(plans)
	for _, plan := range c.Plans {
		if err := plan.Validate(); err != nil {
			return Content{}, &DataRetrievalError{Op: "active plans", Source: p.String(), Err: err}
		}
	}

	return c, nil
}

// ActiveInOrder returns a copy of plans holding only the active records,
// stable sorted by SortOrder ascending.
func ActiveInOrder(plans []dep.Plan) []dep.Plan {
	out := make([]dep.Plan, 0, len(plans))
	for _, p := range plans {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SortOrder < out[b].SortOrder
	})
	return out
}
