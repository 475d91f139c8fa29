package store

import (
	"context"
	"testing"
	"time"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/clonerr"
	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_DiscoverySessionRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	session := &model.DiscoverySession{ID: "s1", ConnectionID: "c1", Status: model.DiscoveryInProgress}
	require.NoError(t, s.SaveDiscoverySession(ctx, session))

	got, err := s.GetDiscoverySession(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "c1", got.ConnectionID)

	// Returned value is a copy; mutating it must not affect the store.
	got.ConnectionID = "mutated"
	reread, _ := s.GetDiscoverySession(ctx, "s1")
	require.Equal(t, "c1", reread.ConnectionID)
}

func TestMemoryStore_GetDiscoverySession_NotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.GetDiscoverySession(context.Background(), "missing")
	require.True(t, clonerr.Is(err, clonerr.NotFound))
}

func TestMemoryStore_LatestCompletedDiscovery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	require.NoError(t, s.SaveDiscoverySession(ctx, &model.DiscoverySession{
		ID: "old", ConnectionID: "c1", Status: model.DiscoveryCompleted, CompletedAt: &older,
	}))
	require.NoError(t, s.SaveDiscoverySession(ctx, &model.DiscoverySession{
		ID: "new", ConnectionID: "c1", Status: model.DiscoveryCompleted, CompletedAt: &newer,
	}))
	require.NoError(t, s.SaveDiscoverySession(ctx, &model.DiscoverySession{
		ID: "failed", ConnectionID: "c1", Status: model.DiscoveryFailed,
	}))

	latest, err := s.LatestCompletedDiscovery(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, "new", latest.ID)
}

func TestMemoryStore_ResourcesBySession_OrderedByLevel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveResources(ctx, []*model.CloudResource{
		{SessionID: "s1", AzureID: "b", DependencyLevel: 2},
		{SessionID: "s1", AzureID: "a", DependencyLevel: 0},
		{SessionID: "s1", AzureID: "c", DependencyLevel: 1},
	}))

	resources, err := s.ResourcesBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, resources, 3)
	require.Equal(t, []int{0, 1, 2}, []int{resources[0].DependencyLevel, resources[1].DependencyLevel, resources[2].DependencyLevel})
}

func TestMemoryStore_DeleteDiscoverySession_Cascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveDiscoverySession(ctx, &model.DiscoverySession{ID: "s1"}))
	require.NoError(t, s.SaveResources(ctx, []*model.CloudResource{{SessionID: "s1", AzureID: "a"}}))
	require.NoError(t, s.SaveEdges(ctx, []model.ResourceEdge{{ID: "s1/a\x00s1/b", SourceID: "s1/a", TargetID: "s1/b"}}))

	require.NoError(t, s.DeleteDiscoverySession(ctx, "s1"))

	_, err := s.GetDiscoverySession(ctx, "s1")
	require.Error(t, err)
	resources, _ := s.ResourcesBySession(ctx, "s1")
	require.Empty(t, resources)
	edges, _ := s.EdgesBySession(ctx, "s1")
	require.Empty(t, edges)
}

func TestMemoryStore_TemplatesBySession_OrderedByLevel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.SaveTemplates(ctx, []*model.TemplateDeployment{
		{ID: "t1", DeploymentSessionID: "d1", Name: "rg-b", DependencyLevel: 1},
		{ID: "t2", DeploymentSessionID: "d1", Name: "rg-a", DependencyLevel: 0},
	}))

	templates, err := s.TemplatesBySession(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, templates, 2)
	require.Equal(t, "t2", templates[0].ID)
	require.Equal(t, "t1", templates[1].ID)
}

func TestMemoryStore_SaveTemplate_SingleUpdate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t1 := &model.TemplateDeployment{ID: "t1", DeploymentSessionID: "d1", Status: model.TemplateCreated}
	require.NoError(t, s.SaveTemplate(ctx, t1))

	t1.Status = model.TemplateDeployed
	require.NoError(t, s.SaveTemplate(ctx, t1))

	got, err := s.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, model.TemplateDeployed, got.Status)
}
