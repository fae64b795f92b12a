package dependency

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/hashicorp/go-bexpr"
	"github.com/pkg/errors"
	"github.com/shepherd-chms/pagecat/dep"
)

const (
	// DefaultConsulPrefix is the KV prefix the content is read from.
	DefaultConsulPrefix = "pagecat"

	// ActivePlanFilter selects the plans shown on the page.
	ActivePlanFilter = "IsActive == true"
)

// ConsulProvider reads the page content from the Consul KV store. The name
// is stored at <prefix>/app_name and every plan as a JSON document under
// <prefix>/plans/.
type ConsulProvider struct {
	clients dep.Clients
	prefix  string
	opts    QueryOptions
	active  *bexpr.Evaluator
}

// ConsulProviderInput is the input structure for NewConsulProvider.
type ConsulProviderInput struct {
	Clients dep.Clients
	// Prefix defaults to DefaultConsulPrefix.
	Prefix string
	// Filter is a go-bexpr expression over plan fields. Defaults to
	// ActivePlanFilter.
	Filter     string
	Datacenter string
	Namespace  string
	AllowStale bool
}

// planRecord is the stored form of a plan. Features are decoded leniently.
type planRecord struct {
	dep.Plan
	Features json.RawMessage `json:"features"`
}

// NewConsulProvider creates a KV backed provider. It fails when the filter
// expression does not parse.
func NewConsulProvider(i ConsulProviderInput) (*ConsulProvider, error) {
	prefix := strings.Trim(strings.TrimSpace(i.Prefix), "/")
	if prefix == "" {
		prefix = DefaultConsulPrefix
	}

	filter := i.Filter
	if filter == "" {
		filter = ActivePlanFilter
	}
	eval, err := bexpr.CreateEvaluator(filter)
	if err != nil {
		return nil, fmt.Errorf("consul: invalid plan filter %q: %s", filter, err)
	}

	return &ConsulProvider{
		clients: i.Clients,
		prefix:  prefix,
		active:  eval,
		opts: QueryOptions{
			AllowStale: i.AllowStale,
			Datacenter: i.Datacenter,
			Namespace:  i.Namespace,
		},
	}, nil
}

// AppName returns the value of <prefix>/app_name; a missing key is unset.
func (p *ConsulProvider) AppName(ctx context.Context) (string, error) {
	kv, err := p.kv()
	if err != nil {
		return "", err
	}

	key := path.Join(p.prefix, "app_name")
	opts := p.opts.SetContext(ctx)
	pair, _, err := kv.Get(key, opts.ToConsulOpts())
	if err != nil {
		return "", p.wrap(err, key)
	}
	if pair == nil {
		return "", nil
	}
	return string(pair.Value), nil
}

// ActivePlans lists <prefix>/plans/, keeps the plans matching the filter and
// orders them by sort order. Plans without an id take the key name.
func (p *ConsulProvider) ActivePlans(ctx context.Context) ([]dep.Plan, error) {
	kv, err := p.kv()
	if err != nil {
		return nil, err
	}

	prefix := path.Join(p.prefix, "plans") + "/"
	opts := p.opts.SetContext(ctx)
	pairs, _, err := kv.List(prefix, opts.ToConsulOpts())
	if err != nil {
		return nil, p.wrap(err, prefix)
	}

	plans := []dep.Plan{}
	for _, pair := range pairs {
		name := strings.TrimPrefix(pair.Key, prefix)
		if name == "" || strings.HasSuffix(pair.Key, "/") {
			continue
		}

		var rec planRecord
		if err := json.Unmarshal(pair.Value, &rec); err != nil {
			return nil, errors.Wrapf(err, "%s: decoding %s", p, pair.Key)
		}
		plan := rec.Plan
		plan.Features = decodeFeatures(rec.Features)
		if plan.ID == "" {
			plan.ID = name
		}

		ok, err := p.active.Evaluate(plan)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: filtering %s", p, pair.Key)
		}
		if ok {
			plans = append(plans, plan)
		}
	}

	sort.SliceStable(plans, func(a, b int) bool {
		return plans[a].SortOrder < plans[b].SortOrder
	})
	return plans, nil
}

// String returns the human-friendly version of this provider.
func (p *ConsulProvider) String() string {
	target := p.prefix
	if p.opts.Datacenter != "" {
		target = target + "@" + p.opts.Datacenter
	}
	return providerID("consul", target)
}

func (p *ConsulProvider) kv() (*consulapi.KV, error) {
	if p.clients == nil || p.clients.Consul() == nil {
		return nil, errors.Wrap(ErrNoClient, p.String())
	}
	return p.clients.Consul().KV(), nil
}

func (p *ConsulProvider) wrap(err error, key string) error {
	if status, ok := DecodeConsulStatusError(err); ok {
		return errors.Wrapf(err, "%s: %s: status %d", p, key, status.Code)
	}
	return errors.Wrapf(err, "%s: %s", p, key)
}
