package depgraph

import (
	"strings"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
)

// extractVM emits edges to each referenced NIC, managed disk, VHD-backed
// storage account, and availability set (spec §4.3).
func extractVM(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	var edges []model.ResourceEdge

	for _, nic := range sliceProp(r, "networkProfile", "networkInterfaces") {
		m, ok := nic.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if target, ok := idx.Lookup(id); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeNetwork, true))
		}
	}

	if diskID, ok := stringProp(r, "storageProfile", "osDisk", "managedDisk", "id"); ok {
		if target, ok := idx.Lookup(diskID); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeStorage, true))
		}
	}
	for _, d := range sliceProp(r, "storageProfile", "dataDisks") {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if diskID, ok := m["managedDisk"].(map[string]any); ok {
			if id, ok := diskID["id"].(string); ok {
				if target, ok := idx.Lookup(id); ok {
					edges = append(edges, edgeTo(r, target, model.EdgeStorage, true))
				}
			}
		}
	}

	if vhdURI, ok := stringProp(r, "storageProfile", "osDisk", "vhd", "uri"); ok {
		if target, ok := findByNameSuffix(idx, "Microsoft.Storage/storageAccounts", hostPrefix(vhdURI)); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeStorage, true))
		}
	}

	if avSetID, ok := stringProp(r, "availabilitySet", "id"); ok {
		if target, ok := idx.Lookup(avSetID); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeConfiguration, false))
		}
	}

	return edges
}

// extractNIC emits edges to the subnet's owning VNet, public IP, the load
// balancer owning a backend pool, and the NSG (spec §4.3).
func extractNIC(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	var edges []model.ResourceEdge

	for _, ipc := range sliceProp(r, "ipConfigurations") {
		cfg, ok := ipc.(map[string]any)
		if !ok {
			continue
		}
		props, _ := cfg["properties"].(map[string]any)
		if props == nil {
			continue
		}
		if subnet, ok := props["subnet"].(map[string]any); ok {
			if subnetID, ok := subnet["id"].(string); ok {
				if target, ok := vnetFromSubnetID(idx, subnetID); ok {
					edges = append(edges, edgeTo(r, target, model.EdgeNetwork, true))
				}
			}
		}
		if pip, ok := props["publicIPAddress"].(map[string]any); ok {
			if id, ok := pip["id"].(string); ok {
				if target, ok := idx.Lookup(id); ok {
					edges = append(edges, edgeTo(r, target, model.EdgeNetwork, false))
				}
			}
		}
		for _, pool := range sliceOf(props["loadBalancerBackendAddressPools"]) {
			poolMap, ok := pool.(map[string]any)
			if !ok {
				continue
			}
			if id, ok := poolMap["id"].(string); ok {
				if target, ok := lbFromBackendPoolID(idx, id); ok {
					edges = append(edges, edgeTo(r, target, model.EdgeNetwork, true))
				}
			}
		}
	}

	if nsgID, ok := stringProp(r, "networkSecurityGroup", "id"); ok {
		if target, ok := idx.Lookup(nsgID); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeNetwork, true))
		}
	}

	return edges
}

func sliceOf(v any) []any {
	s, _ := v.([]any)
	return s
}

// vnetFromSubnetID resolves a subnet resource id
// (".../virtualNetworks/{vnet}/subnets/{subnet}") to its owning VNet record.
func vnetFromSubnetID(idx *ResourceIndex, subnetID string) (*model.CloudResource, bool) {
	i := strings.Index(strings.ToLower(subnetID), "/subnets/")
	if i < 0 {
		return nil, false
	}
	return idx.Lookup(subnetID[:i])
}

// lbFromBackendPoolID resolves a backend-address-pool id
// (".../loadBalancers/{lb}/backendAddressPools/{pool}") to its owning LB.
func lbFromBackendPoolID(idx *ResourceIndex, poolID string) (*model.CloudResource, bool) {
	i := strings.Index(strings.ToLower(poolID), "/backendaddresspools/")
	if i < 0 {
		return nil, false
	}
	return idx.Lookup(poolID[:i])
}

// extractStorageAccount emits edges to a CMK key vault and any VNet
// referenced by network ACL rules (spec §4.3).
func extractStorageAccount(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	var edges []model.ResourceEdge

	if keyVaultURI, ok := stringProp(r, "encryption", "keyVaultProperties", "keyVaultUri"); ok && keyVaultURI != "" {
		if target, ok := findByNameSuffix(idx, "Microsoft.KeyVault/vaults", hostPrefix(keyVaultURI)); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeIdentity, false))
		}
	}

	edges = append(edges, vnetEdgesFromNetworkACLs(r, idx)...)
	return edges
}

// vnetEdgesFromNetworkACLs emits Network edges for every virtualNetworkRule
// in a resource's networkAcls block — shared by storage accounts, SQL
// servers, and key vaults (spec §4.3).
func vnetEdgesFromNetworkACLs(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	var edges []model.ResourceEdge
	for _, rule := range sliceProp(r, "networkAcls", "virtualNetworkRules") {
		m, ok := rule.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		if target, ok := vnetFromSubnetID(idx, id); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeNetwork, false))
		}
	}
	return edges
}

// extractWebApp emits an edge to the owning server farm (App Service Plan)
// and to a VNet-integration subnet (spec §4.3).
func extractWebApp(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	var edges []model.ResourceEdge

	if planID, ok := stringProp(r, "serverFarmId"); ok && planID != "" {
		if target, ok := idx.Lookup(planID); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeParentChild, true))
		}
	}

	if subnetID, ok := stringProp(r, "virtualNetworkSubnetId"); ok && subnetID != "" {
		if target, ok := vnetFromSubnetID(idx, subnetID); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeNetwork, false))
		}
	}

	return edges
}

// extractSQLServer emits an edge to a TDE/CMK key vault and to VNets named
// in firewall/vnet rules (spec §4.3).
func extractSQLServer(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	var edges []model.ResourceEdge

	if keyID, ok := stringProp(r, "keyId"); ok && keyID != "" {
		if target, ok := findByNameSuffix(idx, "Microsoft.KeyVault/vaults", hostPrefix(keyID)); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeIdentity, false))
		}
	}

	edges = append(edges, vnetEdgesFromNetworkACLs(r, idx)...)
	return edges
}

// extractKeyVault emits edges to VNets referenced in access rules (spec §4.3).
func extractKeyVault(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	return vnetEdgesFromNetworkACLs(r, idx)
}

// extractVNet emits peering edges to remote VNets (spec §4.3).
func extractVNet(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	var edges []model.ResourceEdge
	for _, p := range sliceProp(r, "virtualNetworkPeerings") {
		m, ok := p.(map[string]any)
		if !ok {
			continue
		}
		props, _ := m["properties"].(map[string]any)
		if props == nil {
			continue
		}
		remote, ok := props["remoteVirtualNetwork"].(map[string]any)
		if !ok {
			continue
		}
		id, _ := remote["id"].(string)
		if target, ok := idx.Lookup(id); ok {
			edges = append(edges, edgeTo(r, target, model.EdgeNetwork, false))
		}
	}
	return edges
}
