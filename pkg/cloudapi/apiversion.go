package cloudapi

import "strings"

// normalizeLocation lowercases and strips spaces, per spec §4.1.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.ReplaceAll(location, " ", ""))
}

// isPreviewVersion reports whether an ARM API version string carries a
// preview suffix (e.g. "2021-04-01-preview").
func isPreviewVersion(v string) bool {
	return strings.HasSuffix(strings.ToLower(v), "-preview")
}

// SelectAPIVersion returns the first non-preview apiVersions entry of
// resourceType whose locations contain the normalized location, per spec
// §4.1: "Returns the first non-preview apiVersions entry whose locations
// contains the normalized location ... Returns null if type is not
// supported in that region (this must not fail discovery)."
func SelectAPIVersion(info ProviderInfo, resourceType, location string) (string, bool) {
	normalized := normalizeLocation(location)
	for _, rt := range info.ResourceTypes {
		if !strings.EqualFold(rt.ResourceType, resourceType) {
			continue
		}
		if !locationSupported(rt.Locations, normalized) {
			continue
		}
		for _, v := range rt.APIVersions {
			if !isPreviewVersion(v) {
				return v, true
			}
		}
	}
	return "", false
}

func locationSupported(locations []string, normalizedTarget string) bool {
	if len(locations) == 0 {
		// Some global resource types (e.g. role assignments) report no
		// location restrictions at all; treat as universally supported.
		return true
	}
	for _, l := range locations {
		if normalizeLocation(l) == normalizedTarget {
			return true
		}
	}
	return false
}

// SplitProviderAndType splits a full ARM type string ("provider/kind", spec
// §4.2 step 3) into its provider namespace and resource-type suffix, e.g.
// "Microsoft.Storage/storageAccounts" -> ("Microsoft.Storage",
// "storageAccounts"). Types with more path segments
// ("Microsoft.Web/sites/slots") keep the remainder joined with "/".
func SplitProviderAndType(armType string) (namespace, resourceType string, ok bool) {
	i := strings.Index(armType, "/")
	if i < 0 {
		return "", "", false
	}
	return armType[:i], armType[i+1:], true
}
