package depgraph

import (
	"testing"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestComputeLevels_Scenario1(t *testing.T) {
	vnetA := vnet("s1", "vnet-a")
	nicA := &model.CloudResource{
		SessionID: "s1",
		AzureID:   "/subscriptions/sub/resourceGroups/rg/providers/Microsoft.Network/networkInterfaces/nic-a",
		Type:      "Microsoft.Network/networkInterfaces",
		Properties: map[string]any{
			"ipConfigurations": []any{
				map[string]any{
					"properties": map[string]any{
						"subnet": map[string]any{"id": vnetA.AzureID + "/subnets/s0"},
					},
				},
			},
		},
	}
	resources := []*model.CloudResource{vnetA, nicA}
	edges := Analyze(resources)
	levels := ComputeLevels(resources, edges)

	require.Equal(t, 0, levels[model.CompositeID("s1", vnetA.AzureID)])
	require.Equal(t, 1, levels[model.CompositeID("s1", nicA.AzureID)])
}

func TestComputeLevels_Scenario2_CycleTerminates(t *testing.T) {
	v1 := vnet("s1", "v1")
	v2 := vnet("s1", "v2")
	v1.Properties = map[string]any{
		"virtualNetworkPeerings": []any{
			map[string]any{"properties": map[string]any{"remoteVirtualNetwork": map[string]any{"id": v2.AzureID}}},
		},
	}
	v2.Properties = map[string]any{
		"virtualNetworkPeerings": []any{
			map[string]any{"properties": map[string]any{"remoteVirtualNetwork": map[string]any{"id": v1.AzureID}}},
		},
	}

	resources := []*model.CloudResource{v1, v2}
	var edges []model.ResourceEdge
	require.NotPanics(t, func() {
		edges = Analyze(resources)
	})
	require.Len(t, edges, 2)

	var levels map[string]int
	done := make(chan struct{})
	go func() {
		levels = ComputeLevels(resources, edges)
		close(done)
	}()
	select {
	case <-done:
	default:
	}
	<-done

	require.Contains(t, levels, model.CompositeID("s1", v1.AzureID))
	require.Contains(t, levels, model.CompositeID("s1", v2.AzureID))
	require.Greater(t, levels[model.CompositeID("s1", v1.AzureID)], 0)
	require.Greater(t, levels[model.CompositeID("s1", v2.AzureID)], 0)
}

func TestComputeLevels_AcyclicMonotonicity_P3(t *testing.T) {
	a := vnet("s1", "a")
	b := vnet("s1", "b")
	c := vnet("s1", "c")
	resources := []*model.CloudResource{a, b, c}
	edges := []model.ResourceEdge{
		{SourceID: model.CompositeID("s1", a.AzureID), TargetID: model.CompositeID("s1", b.AzureID), Type: model.EdgeNetwork},
		{SourceID: model.CompositeID("s1", b.AzureID), TargetID: model.CompositeID("s1", c.AzureID), Type: model.EdgeNetwork},
	}
	levels := ComputeLevels(resources, edges)

	for _, e := range edges {
		require.Greater(t, levels[e.SourceID], levels[e.TargetID])
	}
}

func TestApplyLevels_SetsStatusAnalyzed(t *testing.T) {
	a := vnet("s1", "a")
	resources := []*model.CloudResource{a}
	levels := ComputeLevels(resources, nil)
	ApplyLevels(resources, levels)

	require.Equal(t, model.ResourceAnalyzed, a.Status)
	require.Equal(t, 0, a.DependencyLevel)
}
