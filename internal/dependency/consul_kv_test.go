package dependency

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	capi "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherd-chms/pagecat/dep"
)

// fakeKV serves the Consul KV read endpoints from a map.
func fakeKV(t *testing.T, kv map[string]string) *ClientSet {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Consul-Index", "1")
		w.Header().Set("X-Consul-KnownLeader", "true")
		w.Header().Set("X-Consul-LastContact", "0")

		key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
		_, recurse := r.URL.Query()["recurse"]

		var pairs capi.KVPairs
		for k, v := range kv {
			if k == key || (recurse && strings.HasPrefix(k, key)) {
				pairs = append(pairs, &capi.KVPair{Key: k, Value: []byte(v)})
			}
		}
		if len(pairs) == 0 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		// the agent answers in key order
		for i := 1; i < len(pairs); i++ {
			for j := i; j > 0 && pairs[j].Key < pairs[j-1].Key; j-- {
				pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(pairs)
	}))
	t.Cleanup(ts.Close)

	client, err := capi.NewClient(&capi.Config{
		Address:    ts.URL,
		HttpClient: ts.Client(),
	})
	require.NoError(t, err)
	return &ClientSet{consul: &consulClient{client: client}}
}

func TestNewConsulProvider(t *testing.T) {
	t.Parallel()

	p, err := NewConsulProvider(ConsulProviderInput{})
	require.NoError(t, err)
	assert.Equal(t, "consul(pagecat)", p.String())

	p, err = NewConsulProvider(ConsulProviderInput{Prefix: "/sites/main/", Datacenter: "dc2"})
	require.NoError(t, err)
	assert.Equal(t, "consul(sites/main@dc2)", p.String())

	_, err = NewConsulProvider(ConsulProviderInput{Filter: "IsActive =="})
	assert.Error(t, err)
}

func TestConsulProvider_AppName(t *testing.T) {
	t.Parallel()

	t.Run("set", func(t *testing.T) {
		clients := fakeKV(t, map[string]string{"pagecat/app_name": "East Gate Chapel"})
		p, err := NewConsulProvider(ConsulProviderInput{Clients: clients})
		require.NoError(t, err)

		name, err := p.AppName(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "East Gate Chapel", name)
	})

	t.Run("missing", func(t *testing.T) {
		clients := fakeKV(t, map[string]string{})
		p, err := NewConsulProvider(ConsulProviderInput{Clients: clients})
		require.NoError(t, err)

		name, err := p.AppName(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "", name)
	})

	t.Run("no_client", func(t *testing.T) {
		p, err := NewConsulProvider(ConsulProviderInput{Clients: NewClientSet()})
		require.NoError(t, err)

		_, err = p.AppName(context.Background())
		assert.ErrorIs(t, err, ErrNoClient)
	})
}

func TestConsulProvider_ActivePlans(t *testing.T) {
	t.Parallel()

	t.Run("filtered_and_sorted", func(t *testing.T) {
		clients := fakeKV(t, map[string]string{
			"pagecat/app_name": "ignored",
			"pagecat/plans/a-premium": `{"displayName":"Premium Plan","monthlyPrice":10000,
				"yearlyPrice":96000,"features":["Everything"],"isActive":true,"sortOrder":3}`,
			"pagecat/plans/b-basic": `{"id":"basic","displayName":"Basic Plan","monthlyPrice":2500,
				"yearlyPrice":24000,"features":["Members",7],"isActive":true,"sortOrder":1}`,
			"pagecat/plans/c-retired": `{"id":"retired","isActive":false,"sortOrder":0}`,
			"pagecat/plans/":          "",
		})
		p, err := NewConsulProvider(ConsulProviderInput{Clients: clients})
		require.NoError(t, err)

		plans, err := p.ActivePlans(context.Background())
		require.NoError(t, err)
		require.Len(t, plans, 2)

		assert.Equal(t, "basic", plans[0].ID)
		assert.Equal(t, []string{"Members", "7"}, plans[0].Features)
		assert.Equal(t, dep.Plan{
			ID: "a-premium", DisplayName: "Premium Plan",
			MonthlyPrice: 10000, YearlyPrice: 96000,
			Features: []string{"Everything"}, IsActive: true, SortOrder: 3,
		}, plans[1])
	})

	t.Run("none", func(t *testing.T) {
		clients := fakeKV(t, map[string]string{})
		p, err := NewConsulProvider(ConsulProviderInput{Clients: clients})
		require.NoError(t, err)

		plans, err := p.ActivePlans(context.Background())
		require.NoError(t, err)
		assert.Empty(t, plans)
	})

	t.Run("custom_filter", func(t *testing.T) {
		clients := fakeKV(t, map[string]string{
			"pagecat/plans/basic":    `{"isActive":true,"isPopular":false,"sortOrder":1}`,
			"pagecat/plans/standard": `{"isActive":true,"isPopular":true,"sortOrder":2}`,
		})
		p, err := NewConsulProvider(ConsulProviderInput{
			Clients: clients,
			Filter:  "IsActive == true and IsPopular == true",
		})
		require.NoError(t, err)

		plans, err := p.ActivePlans(context.Background())
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "standard", plans[0].ID)
	})

	t.Run("bad_record", func(t *testing.T) {
		clients := fakeKV(t, map[string]string{
			"pagecat/plans/broken": `{"isActive":`,
		})
		p, err := NewConsulProvider(ConsulProviderInput{Clients: clients})
		require.NoError(t, err)

		_, err = p.ActivePlans(context.Background())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "pagecat/plans/broken")
	})
}

// Runs against a real agent when the consul flag is set.
func TestConsulProvider_agent(t *testing.T) {
	if testConsul == nil {
		t.Skip("consul agent tests disabled; run with -consul")
	}

	testConsul.SetKVString(t, "agent/app_name", "Agent Chapel")
	testConsul.SetKVString(t, "agent/plans/standard",
		`{"displayName":"Standard Plan","isActive":true,"isPopular":true,"sortOrder":2}`)
	testConsul.SetKVString(t, "agent/plans/basic",
		`{"displayName":"Basic Plan","isActive":true,"sortOrder":1}`)

	clients := NewClientSet()
	require.NoError(t, clients.CreateConsulClient(context.Background(), &CreateClientInput{
		Address: testConsul.HTTPAddr,
	}))
	defer clients.Stop()

	p, err := NewConsulProvider(ConsulProviderInput{Clients: clients, Prefix: "agent"})
	require.NoError(t, err)

	name, err := p.AppName(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Agent Chapel", name)

	plans, err := p.ActivePlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "basic", plans[0].ID)
	assert.Equal(t, "standard", plans[1].ID)
}

func TestQueryOptions_ToConsulOpts(t *testing.T) {
	t.Parallel()

	q := QueryOptions{AllowStale: true, Datacenter: "dc2", Namespace: "church"}
	plain := q.ToConsulOpts()
	assert.True(t, plain.AllowStale)
	assert.Equal(t, "dc2", plain.Datacenter)
	assert.Equal(t, "church", plain.Namespace)
	assert.Equal(t, context.Background(), plain.Context())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bound := q.SetContext(ctx)
	assert.Equal(t, ctx, bound.ToConsulOpts().Context())
	assert.Nil(t, q.ctx, "SetContext must not modify the receiver")
}
