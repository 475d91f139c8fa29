package discovery

import (
	"context"
	"fmt"
	"testing"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloneconfig"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/cloudapi"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/store"
	"github.com/stretchr/testify/require"
)

// fakeClient pages through a fixed in-memory set of records, splitting it
// into pageSize-sized pages to exercise QueryResources' continuation
// protocol exactly like the real resource-graph client.
type fakeClient struct {
	all         []cloudapi.ResourceRecord
	pageSize    int
	pageCalls   int
	versionCalls int
	versionErr  error
}

func (f *fakeClient) QueryResources(ctx context.Context, subscriptionID string, filters model.ResourceFilters, continuation *int32) ([]cloudapi.ResourceRecord, *int32, error) {
	f.pageCalls++
	var skip int32
	if continuation != nil {
		skip = *continuation
	}
	end := int(skip) + f.pageSize
	if end > len(f.all) {
		end = len(f.all)
	}
	page := f.all[skip:end]
	var next *int32
	nextSkip := int32(end)
	if int(nextSkip) < len(f.all) {
		next = &nextSkip
	}
	return page, next, nil
}

func (f *fakeClient) GetAPIVersion(ctx context.Context, subscriptionID, resourceType, location string) (string, error) {
	f.versionCalls++
	if f.versionErr != nil {
		return "", f.versionErr
	}
	return "2022-01-01", nil
}

func makeRecords(n int) []cloudapi.ResourceRecord {
	out := make([]cloudapi.ResourceRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, cloudapi.ResourceRecord{
			ID:            fmt.Sprintf("/subscriptions/s1/resourceGroups/rg1/providers/Microsoft.Network/networkInterfaces/nic%d", i),
			Name:          fmt.Sprintf("nic%d", i),
			Type:          "Microsoft.Network/networkInterfaces",
			ResourceGroup: "rg1",
			SubscriptionID: "s1",
			Location:      "eastus",
		})
	}
	return out
}

func TestStart_PaginationCompleteness_P1(t *testing.T) {
	st := store.NewMemoryStore()
	fc := &fakeClient{all: makeRecords(120), pageSize: 50}

	engine := New(st, fc, cloneconfig.New(cloneconfig.WithResourceGraphDelayMs(0), cloneconfig.WithRetryDelayMs(0)))
	session, err := engine.Start(context.Background(), StartRequest{
		Name: "clone-1", ConnectionID: "conn-1", SourceSubID: "s1", TargetSubID: "s2",
	})
	require.NoError(t, err)
	require.Equal(t, model.DiscoveryCompleted, session.Status)
	require.Equal(t, 120, session.TotalDiscovered)
	require.Equal(t, 120, session.Processed)
	require.Equal(t, 3, fc.pageCalls, "120 records at page size 50 must take 3 pages")

	resources, err := st.ResourcesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, resources, 120)

	seen := make(map[string]bool, 120)
	for _, r := range resources {
		require.False(t, seen[r.AzureID], "duplicate resource across pages: %s", r.AzureID)
		seen[r.AzureID] = true
		require.Equal(t, "2022-01-01", r.APIVersion)
		require.Equal(t, model.CompositeID(r.SessionID, r.AzureID), r.ID)
	}
}

// savesCountingStore wraps a Store and counts SaveResources calls, so tests
// can verify the per-batch persistence transaction count directly.
type savesCountingStore struct {
	store.Store
	saveResourcesCalls int
}

func (s *savesCountingStore) SaveResources(ctx context.Context, resources []*model.CloudResource) error {
	s.saveResourcesCalls++
	return s.Store.SaveResources(ctx, resources)
}

func TestStart_LargeSubscription_Scenario3(t *testing.T) {
	st := &savesCountingStore{Store: store.NewMemoryStore()}
	fc := &fakeClient{all: makeRecords(2500), pageSize: 1000}

	cfg := cloneconfig.New(cloneconfig.WithResourceGraphDelayMs(0), cloneconfig.WithRetryDelayMs(0), cloneconfig.WithProcessingBatchSize(50))
	engine := New(st, fc, cfg)

	session, err := engine.Start(context.Background(), StartRequest{
		Name: "clone-big", ConnectionID: "conn-big", SourceSubID: "s1", TargetSubID: "s2",
	})
	require.NoError(t, err)
	require.Equal(t, model.DiscoveryCompleted, session.Status)
	require.Equal(t, 2500, session.TotalDiscovered)
	require.Equal(t, 2500, session.Processed)
	require.Equal(t, 3, fc.pageCalls, "2500 records at page size 1000 must take 3 pages")
	// 50 batched persistence transactions during enrichment (batch size 50
	// over 2500 records), plus one final transaction that writes back the
	// dependency levels once the whole-session graph has been analyzed.
	require.Equal(t, 51, st.saveResourcesCalls)

	resources, err := st.ResourcesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, resources, 2500)

	for i := 1; i < len(resources); i++ {
		require.True(t, resources[i-1].DependencyLevel <= resources[i].DependencyLevel)
	}
}

func TestStart_APIVersionLookupFailureIsNonFatal(t *testing.T) {
	st := store.NewMemoryStore()
	fc := &fakeClient{all: makeRecords(5), pageSize: 10, versionErr: fmt.Errorf("provider lookup unavailable")}

	engine := New(st, fc, cloneconfig.New(cloneconfig.WithResourceGraphDelayMs(0), cloneconfig.WithRetryDelayMs(0)))
	session, err := engine.Start(context.Background(), StartRequest{
		Name: "clone-3", ConnectionID: "conn-3", SourceSubID: "s1", TargetSubID: "s2",
	})
	require.NoError(t, err)
	require.Equal(t, model.DiscoveryCompleted, session.Status)

	resources, err := st.ResourcesBySession(context.Background(), session.ID)
	require.NoError(t, err)
	require.Len(t, resources, 5)
	for _, r := range resources {
		require.Empty(t, r.APIVersion, "failed api version lookups must leave APIVersion unset, not abort discovery")
	}
}

func TestStart_QueryFailureMarksSessionFailed(t *testing.T) {
	st := store.NewMemoryStore()
	fc := &failingQueryClient{err: fmt.Errorf("resource graph unavailable")}

	engine := New(st, fc, cloneconfig.Default())
	session, err := engine.Start(context.Background(), StartRequest{
		Name: "clone-4", ConnectionID: "conn-4", SourceSubID: "s1", TargetSubID: "s2",
	})
	require.Error(t, err)
	require.Equal(t, model.DiscoveryFailed, session.Status)
	require.NotEmpty(t, session.ErrorMsg)
}

type failingQueryClient struct{ err error }

func (f *failingQueryClient) QueryResources(ctx context.Context, subscriptionID string, filters model.ResourceFilters, continuation *int32) ([]cloudapi.ResourceRecord, *int32, error) {
	return nil, nil, f.err
}

func (f *failingQueryClient) GetAPIVersion(ctx context.Context, subscriptionID, resourceType, location string) (string, error) {
	return "", nil
}

func TestGetExistingDiscovery_ReturnsMostRecentCompleted(t *testing.T) {
	st := store.NewMemoryStore()
	fc := &fakeClient{all: makeRecords(1), pageSize: 10}
	engine := New(st, fc, cloneconfig.New(cloneconfig.WithResourceGraphDelayMs(0), cloneconfig.WithRetryDelayMs(0)))

	session, err := engine.Start(context.Background(), StartRequest{
		Name: "clone-5", ConnectionID: "conn-5", SourceSubID: "s1", TargetSubID: "s2",
	})
	require.NoError(t, err)

	got, err := engine.GetExistingDiscovery(context.Background(), "conn-5")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, session.ID, got.ID)

	none, err := engine.GetExistingDiscovery(context.Background(), "no-such-connection")
	require.NoError(t, err)
	require.Nil(t, none)
}
