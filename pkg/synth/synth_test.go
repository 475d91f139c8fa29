package synth

import (
	"testing"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
	"github.com/stretchr/testify/require"
)

func TestSynthesize_VNetAndNIC_Scenario1(t *testing.T) {
	// spec §8 scenario 1: vnet-a (level 0) and nic-a (level 1) referencing
	// it; expect one template with both resources and a dependsOn from NIC
	// to VNet.
	vnet := &model.CloudResource{
		SessionID: "s1", AzureID: "/subscriptions/x/resourceGroups/rg1/providers/Microsoft.Network/virtualNetworks/vnet-a",
		Name: "vnet-a", Type: "Microsoft.Network/virtualNetworks", ResourceGroup: "rg1", DependencyLevel: 0,
	}
	nic := &model.CloudResource{
		SessionID: "s1", AzureID: "/subscriptions/x/resourceGroups/rg1/providers/Microsoft.Network/networkInterfaces/nic-a",
		Name: "nic-a", Type: "Microsoft.Network/networkInterfaces", ResourceGroup: "rg1", DependencyLevel: 1,
	}
	edges := []model.ResourceEdge{
		{
			SourceID: model.CompositeID(nic.SessionID, nic.AzureID),
			TargetID: model.CompositeID(vnet.SessionID, vnet.AzureID),
			Type:     model.EdgeNetwork,
		},
	}

	templates := Group([]*model.CloudResource{vnet, nic}, edges)
	require.Len(t, templates, 1)

	resources, _ := templates[0].Content["resources"].([]any)
	require.Len(t, resources, 2)

	nicDecl := resources[1].(map[string]any)
	dependsOn, ok := nicDecl["dependsOn"].([]string)
	require.True(t, ok, "nic declaration must carry dependsOn")
	require.Len(t, dependsOn, 1)
	require.Contains(t, dependsOn[0], "vneta")
}

func TestSynthesize_StorageAccount_DefaultsSKUAndAccessTier(t *testing.T) {
	r := &model.CloudResource{
		SessionID: "s1", AzureID: "/subscriptions/x/resourceGroups/rg1/providers/Microsoft.Storage/storageAccounts/mystorage",
		Name: "mystorage", Type: "Microsoft.Storage/storageAccounts", ResourceGroup: "rg1", Kind: "StorageV2",
		Properties: map[string]any{"accessTier": "Hot"},
	}
	tpl := Synthesize("rg1", []*model.CloudResource{r}, nil)

	resources := tpl.Content["resources"].([]any)
	require.Len(t, resources, 1)
	decl := resources[0].(map[string]any)
	sku := decl["sku"].(map[string]any)
	require.Equal(t, "Standard_LRS", sku["name"])
	props := decl["properties"].(map[string]any)
	require.Equal(t, "Hot", props["accessTier"])
}

func TestSynthesize_StorageAccount_AccessTierSuppressedForIncompatibleKind(t *testing.T) {
	r := &model.CloudResource{
		SessionID: "s1", AzureID: "/subscriptions/x/resourceGroups/rg1/providers/Microsoft.Storage/storageAccounts/mystorage",
		Name: "mystorage", Type: "Microsoft.Storage/storageAccounts", ResourceGroup: "rg1", Kind: "FileStorage",
		Properties: map[string]any{"accessTier": "Hot"},
	}
	tpl := Synthesize("rg1", []*model.CloudResource{r}, nil)

	decl := tpl.Content["resources"].([]any)[0].(map[string]any)
	props := decl["properties"].(map[string]any)
	_, present := props["accessTier"]
	require.False(t, present)
}

func TestPreValidate_MissingSchema_Scenario4(t *testing.T) {
	content := map[string]any{
		"resources": []any{map[string]any{"type": "Microsoft.Storage/storageAccounts"}},
	}
	result := PreValidate(content)
	require.False(t, result.IsValid)
	require.Contains(t, result.Errors, "MissingSchema")
}

func TestPreValidate_EmptyResourcesFails(t *testing.T) {
	content := map[string]any{"$schema": schemaURL, "resources": []any{}}
	result := PreValidate(content)
	require.False(t, result.IsValid)
	require.Contains(t, result.Errors, "EmptyResources")
}

func TestPreValidate_StorageWithoutSKUFails(t *testing.T) {
	content := map[string]any{
		"$schema": schemaURL,
		"resources": []any{
			map[string]any{"type": "Microsoft.Storage/storageAccounts", "properties": map[string]any{}},
		},
	}
	result := PreValidate(content)
	require.False(t, result.IsValid)
}

func TestPreValidate_ForbiddenReadOnlyPropertyFails(t *testing.T) {
	content := map[string]any{
		"$schema": schemaURL,
		"resources": []any{
			map[string]any{
				"type":       "Microsoft.Network/virtualNetworks",
				"properties": map[string]any{"provisioningState": "Succeeded"},
			},
		},
	}
	result := PreValidate(content)
	require.False(t, result.IsValid)
}

func TestPreValidate_WellFormedTemplatePasses_P4(t *testing.T) {
	r := &model.CloudResource{
		SessionID: "s1", AzureID: "a", Name: "a", Type: "Microsoft.Network/virtualNetworks", ResourceGroup: "rg1",
	}
	tpl := Synthesize("rg1", []*model.CloudResource{r}, nil)
	result := PreValidate(tpl.Content)
	require.True(t, result.IsValid, result.Errors)
}

func TestSafeName_LeadingDigitPrefixed(t *testing.T) {
	require.Equal(t, "p123abc", SafeName("123abc", "Microsoft.Network/virtualNetworks"))
}

func TestSafeName_StorageAccountPaddedAndTruncated(t *testing.T) {
	require.Equal(t, "ab0", SafeName("a-b", "Microsoft.Storage/storageAccounts"))
	long := SafeName("averyveryverylongstorageaccountname", "Microsoft.Storage/storageAccounts")
	require.LessOrEqual(t, len(long), 24)
}
