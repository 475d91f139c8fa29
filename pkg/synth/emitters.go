package synth

import (
	"strings"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
)

// Emitter produces the ARM resource declaration for one resource, keyed by
// the synthesized template-safe name (used to build parameter references).
type Emitter func(r *model.CloudResource, safeName string) map[string]any

// apiVersionTable is a per-type default API version, used when the
// discovered resource's own APIVersion is empty (spec §4.5: "API versions
// are chosen from a per-type table with a safe default").
var apiVersionTable = map[string]string{
	"microsoft.storage/storageaccounts":         "2023-01-01",
	"microsoft.network/virtualnetworks":         "2023-05-01",
	"microsoft.network/networksecuritygroups":   "2023-05-01",
	"microsoft.network/publicipaddresses":       "2023-05-01",
	"microsoft.network/networkinterfaces":       "2023-05-01",
	"microsoft.compute/virtualmachines":         "2023-09-01",
	"microsoft.web/serverfarms":                 "2023-01-01",
	"microsoft.web/sites":                       "2023-01-01",
	"microsoft.sql/servers":                     "2022-11-01-preview",
	"microsoft.documentdb/databaseaccounts":     "2023-11-15",
	"microsoft.servicebus/namespaces":           "2022-10-01-preview",
	"microsoft.keyvault/vaults":                 "2023-07-01",
}

const defaultAPIVersion = "2021-04-01"

func apiVersionFor(r *model.CloudResource) string {
	if r.APIVersion != "" {
		return r.APIVersion
	}
	if v, ok := apiVersionTable[strings.ToLower(r.Type)]; ok {
		return v
	}
	return defaultAPIVersion
}

// registry maps an ARM resource type (case-insensitive) to its emitter.
var registry = map[string]Emitter{
	"microsoft.storage/storageaccounts":       emitStorageAccount,
	"microsoft.network/virtualnetworks":       emitVNet,
	"microsoft.network/networksecuritygroups": emitNSG,
	"microsoft.network/publicipaddresses":     emitPublicIP,
	"microsoft.network/networkinterfaces":     emitNIC,
	"microsoft.compute/virtualmachines":       emitVM,
	"microsoft.web/serverfarms":               emitAppServicePlan,
	"microsoft.web/sites":                     emitWebApp,
	"microsoft.sql/servers":                   emitSQLServer,
	"microsoft.documentdb/databaseaccounts":   emitCosmosDB,
	"microsoft.servicebus/namespaces":         emitServiceBusNamespace,
	"microsoft.keyvault/vaults":               emitKeyVault,
}

func emitterFor(resourceType string) Emitter {
	if e, ok := registry[strings.ToLower(resourceType)]; ok {
		return e
	}
	return emitGeneric
}

// base builds the common envelope every declaration carries: type,
// apiVersion, name, location, tags (if non-empty), sku/identity/plan (only
// when present and non-empty, per spec §4.5).
func base(r *model.CloudResource, safeName string) map[string]any {
	decl := map[string]any{
		"type":       r.Type,
		"apiVersion": apiVersionFor(r),
		"name":       "[parameters('" + safeName + "Name')]",
		"location":   "[parameters('" + safeName + "Location')]",
	}
	if len(r.Tags) > 0 {
		tags := make(map[string]any, len(r.Tags))
		for k, v := range r.Tags {
			tags[k] = v
		}
		decl["tags"] = tags
	}
	if len(r.SKU) > 0 {
		decl["sku"] = r.SKU
	}
	if len(r.Identity) > 0 {
		decl["identity"] = r.Identity
	}
	if len(r.Plan) > 0 {
		decl["plan"] = r.Plan
	}
	return decl
}

func emitStorageAccount(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	props := map[string]any{}
	if sku, ok := r.SKU["name"]; ok {
		_ = sku // sku travels on the declaration's top-level "sku", not properties
	} else if _, ok := decl["sku"]; !ok {
		decl["sku"] = map[string]any{"name": "Standard_LRS"}
	}
	if accessTierCompatible(r.Kind) {
		if tier, ok := stringProp(r, "accessTier"); ok && tier != "" {
			props["accessTier"] = tier
		}
	}
	decl["kind"] = firstNonEmpty(r.Kind, "StorageV2")
	decl["properties"] = props
	return decl
}

// accessTierCompatible reports whether accessTier may legally be emitted
// for a storage account's kind (spec §4.5: "accessTier for storage is only
// emitted for StorageV2 and BlobStorage kinds").
func accessTierCompatible(kind string) bool {
	return strings.EqualFold(kind, "StorageV2") || strings.EqualFold(kind, "BlobStorage")
}

func emitVNet(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	props := map[string]any{}
	if space := sliceProp(r, "addressSpace", "addressPrefixes"); space != nil {
		props["addressSpace"] = map[string]any{"addressPrefixes": space}
	}
	decl["properties"] = props
	return decl
}

func emitNSG(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	decl["properties"] = map[string]any{}
	return decl
}

func emitPublicIP(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	props := map[string]any{"publicIPAllocationMethod": "Static"}
	if method, ok := stringProp(r, "publicIPAllocationMethod"); ok && method != "" {
		props["publicIPAllocationMethod"] = method
	}
	decl["properties"] = props
	return decl
}

func emitNIC(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	decl["properties"] = map[string]any{}
	return decl
}

func emitVM(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	decl["properties"] = map[string]any{}
	return decl
}

func emitAppServicePlan(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	if _, ok := decl["sku"]; !ok {
		decl["sku"] = map[string]any{"name": "B1", "tier": "Basic"}
	}
	decl["properties"] = map[string]any{}
	return decl
}

func emitWebApp(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	props := map[string]any{}
	if farmID, ok := stringProp(r, "serverFarmId"); ok && farmID != "" {
		props["serverFarmId"] = "[parameters('defaultAppServicePlan')]"
		_ = farmID
	}
	decl["properties"] = props
	return decl
}

func emitSQLServer(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	decl["properties"] = map[string]any{
		"administratorLogin":         firstNonEmpty(stringPropOr(r, "administratorLogin"), "cloneradmin"),
		"administratorLoginPassword": "[parameters('sqlAdminPassword')]",
	}
	return decl
}

func emitCosmosDB(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	decl["kind"] = firstNonEmpty(r.Kind, "GlobalDocumentDB")
	decl["properties"] = map[string]any{
		"databaseAccountOfferType": "Standard",
		"locations": []any{
			map[string]any{"locationName": "[parameters('" + safeName + "Location')]", "failoverPriority": 0},
		},
	}
	return decl
}

func emitServiceBusNamespace(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	if _, ok := decl["sku"]; !ok {
		decl["sku"] = map[string]any{"name": "Standard", "tier": "Standard"}
	}
	decl["properties"] = map[string]any{}
	return decl
}

func emitKeyVault(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	props := map[string]any{
		"sku":                     map[string]any{"family": "A", "name": "standard"},
		"tenantId":                "[subscription().tenantId]",
		"accessPolicies":          []any{},
		"enabledForDeployment":    true,
		"enabledForTemplateDeployment": true,
	}
	decl["properties"] = props
	return decl
}

// emitGeneric is the fallback used when no type-specific emitter exists
// (spec §4.5: "a generic emitter handles the rest").
func emitGeneric(r *model.CloudResource, safeName string) map[string]any {
	decl := base(r, safeName)
	props := map[string]any{}
	for k, v := range r.Properties {
		if isForbiddenReadOnlyProp(k) {
			continue
		}
		props[k] = v
	}
	decl["properties"] = props
	return decl
}

func isForbiddenReadOnlyProp(name string) bool {
	for _, f := range forbiddenReadOnlyProps {
		if strings.EqualFold(name, f) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func stringPropOr(r *model.CloudResource, key string) string {
	v, _ := stringProp(r, key)
	return v
}

func sliceProp(r *model.CloudResource, path ...string) []any {
	var cur any = map[string]any(r.Properties)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[key]
		if !ok {
			return nil
		}
	}
	s, _ := cur.([]any)
	return s
}
