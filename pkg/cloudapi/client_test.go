package cloudapi

import (
	"context"
	"testing"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/clonerr"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloneconfig"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/stretchr/testify/require"
)

type fakeGraphRunner struct {
	pages [][]ResourceRecord
	total int64
	calls int
}

func (f *fakeGraphRunner) run(ctx context.Context, subscriptionID, query string, skip int32) (graphPage, error) {
	f.calls++
	idx := int(skip) / 1000
	if idx >= len(f.pages) {
		return graphPage{TotalRecords: f.total}, nil
	}
	return graphPage{Records: f.pages[idx], TotalRecords: f.total}, nil
}

func recordsN(n int) []ResourceRecord {
	out := make([]ResourceRecord, n)
	for i := range out {
		out[i] = ResourceRecord{ID: "r", Name: "r"}
	}
	return out
}

func TestQueryResources_PaginationCompleteness_P1(t *testing.T) {
	// 2500 resources across three pages, per spec §8 scenario 3.
	graph := &fakeGraphRunner{
		pages: [][]ResourceRecord{recordsN(1000), recordsN(1000), recordsN(500)},
		total: 2500,
	}
	client := newClientWithBackends(nil, cloneconfig.New(cloneconfig.WithResourceGraphDelayMs(0)), graph, nil, nil, nil)

	var all []ResourceRecord
	var cont *int32
	for {
		page, next, err := client.QueryResources(context.Background(), "sub", model.ResourceFilters{}, cont)
		require.NoError(t, err)
		all = append(all, page...)
		if next == nil {
			break
		}
		cont = next
	}

	require.Len(t, all, 2500)
	require.Equal(t, 3, graph.calls)
}

func TestQueryResources_CircuitBreakerOpensAfterFailures(t *testing.T) {
	graph := &failingGraphRunner{err: clonerr.New(clonerr.TransientCloud, "ServerError", "boom")}
	client := newClientWithBackends(nil, cloneconfig.New(cloneconfig.WithRetryDelayMs(0)), graph, nil, nil, nil)
	client.cfg.RetryAttempts = 0

	for i := 0; i < 5; i++ {
		_, _, err := client.QueryResources(context.Background(), "sub", model.ResourceFilters{}, nil)
		require.Error(t, err)
	}

	_, _, err := client.QueryResources(context.Background(), "sub", model.ResourceFilters{}, nil)
	require.Error(t, err)
	require.True(t, client.breaker.IsOpen())
}

type failingGraphRunner struct{ err error }

func (f *failingGraphRunner) run(ctx context.Context, subscriptionID, query string, skip int32) (graphPage, error) {
	return graphPage{}, f.err
}

type fakeProviderLookup struct {
	info  ProviderInfo
	calls int
}

func (f *fakeProviderLookup) get(ctx context.Context, subscriptionID, namespace string) (ProviderInfo, error) {
	f.calls++
	return f.info, nil
}

func TestGetAPIVersion_CachesPerProvider(t *testing.T) {
	lookup := &fakeProviderLookup{
		info: ProviderInfo{
			Namespace: "Microsoft.Storage",
			ResourceTypes: []ProviderResourceType{
				{
					ResourceType: "Microsoft.Storage/storageAccounts",
					Locations:    []string{"East US"},
					APIVersions:  []string{"2023-01-01-preview", "2022-09-01"},
				},
			},
		},
	}
	client := newClientWithBackends(nil, cloneconfig.Default(), nil, lookup, nil, nil)

	v1, err := client.GetAPIVersion(context.Background(), "sub", "Microsoft.Storage/storageAccounts", "eastus")
	require.NoError(t, err)
	require.Equal(t, "2022-09-01", v1)

	v2, err := client.GetAPIVersion(context.Background(), "sub", "Microsoft.Storage/storageAccounts", "East US")
	require.NoError(t, err)
	require.Equal(t, "2022-09-01", v2)

	require.Equal(t, 1, lookup.calls, "second lookup should hit the cache")
}

func TestGetAPIVersion_UnsupportedRegionReturnsNilNotError(t *testing.T) {
	lookup := &fakeProviderLookup{
		info: ProviderInfo{
			ResourceTypes: []ProviderResourceType{
				{ResourceType: "Microsoft.Storage/storageAccounts", Locations: []string{"westus"}, APIVersions: []string{"2022-09-01"}},
			},
		},
	}
	client := newClientWithBackends(nil, cloneconfig.Default(), nil, lookup, nil, nil)

	v, err := client.GetAPIVersion(context.Background(), "sub", "Microsoft.Storage/storageAccounts", "eastus")
	require.NoError(t, err)
	require.Empty(t, v)
}

type fakeDeploymentBackend struct {
	validateOutcome ValidationOutcome
	submitHandle    DeploymentHandle
	snapshots       []DeploymentSnapshot
	getCalls        int
}

func (f *fakeDeploymentBackend) ensureResourceGroup(ctx context.Context, subscriptionID, name, location string) error {
	return nil
}

func (f *fakeDeploymentBackend) validate(
	ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any,
) (ValidationOutcome, error) {
	return f.validateOutcome, nil
}

func (f *fakeDeploymentBackend) submit(
	ctx context.Context, subscriptionID, rg, name string, template, parameters map[string]any,
) (DeploymentHandle, error) {
	return f.submitHandle, nil
}

func (f *fakeDeploymentBackend) get(ctx context.Context, subscriptionID, rg, name string) (DeploymentSnapshot, error) {
	snap := f.snapshots[clampIndex(f.getCalls, len(f.snapshots)-1)]
	f.getCalls++
	return snap, nil
}

func (f *fakeDeploymentBackend) cancel(ctx context.Context, subscriptionID, rg, name string) (bool, error) {
	return true, nil
}

func clampIndex(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func TestValidateAndSubmitDeployment(t *testing.T) {
	backend := &fakeDeploymentBackend{
		validateOutcome: ValidationOutcome{IsValid: true},
		submitHandle:    DeploymentHandle{ID: "rg/d1", Name: "d1"},
	}
	client := newClientWithBackends(nil, cloneconfig.Default(), nil, nil, backend, nil)

	outcome, err := client.ValidateDeployment(context.Background(), "sub", "rg", "d1", map[string]any{}, map[string]any{})
	require.NoError(t, err)
	require.True(t, outcome.IsValid)

	handle, err := client.SubmitDeployment(context.Background(), "sub", "rg", "d1", map[string]any{}, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "d1", handle.Name)
}

type fakeLocationLookup struct{ names []string }

func (f *fakeLocationLookup) list(ctx context.Context, subscriptionID string) ([]string, error) {
	return f.names, nil
}

func TestResolveLocation_FallsBackWhenUnsupported(t *testing.T) {
	lookup := &fakeLocationLookup{names: []string{"eastus", "westus"}}
	client := newClientWithBackends(nil, cloneconfig.Default(), nil, nil, nil, lookup)

	loc, err := client.ResolveLocation(context.Background(), "sub", "westeurope", "eastus")
	require.NoError(t, err)
	require.Equal(t, "eastus", loc)

	loc, err = client.ResolveLocation(context.Background(), "sub", "westus", "eastus")
	require.NoError(t, err)
	require.Equal(t, "westus", loc)
}
