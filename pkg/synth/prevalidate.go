package synth

import (
	"fmt"
	"strings"
)

// PreValidationResult is the outcome of inspecting a synthesized template
// before it is ever sent to the cloud (spec §4.5).
type PreValidationResult struct {
	IsValid bool
	Errors  []string
}

// PreValidate runs the checks of spec §4.5: schema present, non-empty
// resources, storage SKU required, accessTier/kind compatibility, and no
// forbidden read-only property anywhere in the template.
func PreValidate(content map[string]any) PreValidationResult {
	var errs []string

	schema, _ := content["$schema"].(string)
	if schema == "" {
		errs = append(errs, "MissingSchema")
	}

	resources, _ := content["resources"].([]any)
	if len(resources) == 0 {
		errs = append(errs, "EmptyResources")
	}

	for _, raw := range resources {
		decl, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		errs = append(errs, checkResourceDecl(decl)...)
	}

	return PreValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func checkResourceDecl(decl map[string]any) []string {
	var errs []string
	resourceType, _ := decl["type"].(string)

	if isStorageAccountType(resourceType) {
		sku, _ := decl["sku"].(map[string]any)
		if sku == nil || sku["name"] == nil || sku["name"] == "" {
			errs = append(errs, fmt.Sprintf("MissingStorageSKU: %s", resourceType))
		}

		props, _ := decl["properties"].(map[string]any)
		kind, _ := decl["kind"].(string)
		if props != nil {
			if tier, ok := props["accessTier"]; ok && tier != "" && !accessTierCompatible(kind) {
				errs = append(errs, fmt.Sprintf("IncompatibleAccessTier: %s", resourceType))
			}
		}
	}

	if props, ok := decl["properties"].(map[string]any); ok {
		for k := range props {
			if isForbiddenReadOnlyProp(k) {
				errs = append(errs, fmt.Sprintf("ForbiddenReadOnlyProperty: %s on %s", k, resourceType))
			}
		}
	}

	return errs
}

func isStorageAccountType(resourceType string) bool {
	return strings.EqualFold(resourceType, "Microsoft.Storage/storageAccounts")
}
