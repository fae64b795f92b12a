package dependency

import (
	"context"
	"encoding/json"
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/shepherd-chms/pagecat/dep"
)

var (
	// Ensure implements
	_ dep.Provider = (*PostgresProvider)(nil)
	_ dep.Provider = (*ConsulProvider)(nil)
	_ dep.Provider = (*FileProvider)(nil)
)

// QueryOptions are the read options of a Consul provider.
type QueryOptions struct {
	AllowStale bool
	Datacenter string
	Namespace  string

	ctx context.Context
}

// SetContext returns a copy of the options bound to ctx.
func (q *QueryOptions) SetContext(ctx context.Context) QueryOptions {
	var q2 QueryOptions
	if q != nil {
		q2 = *q
	}
	q2.ctx = ctx
	return q2
}

// ToConsulOpts converts the options for the Consul API client.
func (q *QueryOptions) ToConsulOpts() *consulapi.QueryOptions {
	cq := consulapi.QueryOptions{
		AllowStale: q.AllowStale,
		Datacenter: q.Datacenter,
		Namespace:  q.Namespace,
	}

	if q.ctx != nil {
		return cq.WithContext(q.ctx)
	}
	return &cq
}

// decodeFeatures reads a JSON feature list. Anything other than an array
// yields an empty list and non-string entries are kept in their JSON form.
func decodeFeatures(raw []byte) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}

	features := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if len(item) > 0 && item[0] == '"' && json.Unmarshal(item, &s) == nil {
			features = append(features, s)
			continue
		}
		features = append(features, string(item))
	}
	return features
}

// providerID formats the human-friendly name of a provider.
func providerID(kind, target string) string {
	if target == "" {
		return kind
	}
	return fmt.Sprintf("%s(%s)", kind, target)
}
