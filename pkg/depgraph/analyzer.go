// Package depgraph implements the Dependency Analyzer (C3) and Level
// Calculator (C4). The analyzer is a registry of per-resource-type
// extractors, grounded on spec §4.3's "dynamic dispatch on resource type
// ... realized as a registry keyed by the type string, dispatching to
// strategy objects. A generic fallback closes the set" — the same pattern
// the teacher uses for its ARM-type-keyed service-target/emitter
// registries (e.g. pkg/project's service-target factory).
package depgraph

import (
	"regexp"
	"strings"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
)

// Extractor produces the outgoing edges for one resource, given the full
// resource set of its session for correlation lookups. Extractors must not
// panic or abort on malformed property shapes: they log (via the returned
// warnings, left to the caller to emit) and continue.
type Extractor func(r *model.CloudResource, index *ResourceIndex) []model.ResourceEdge

// ResourceIndex supports case-insensitive Azure-resource-ID lookups across
// one session's discovered resources — the in-memory adjacency-list
// substitute for navigating a cyclic object graph (spec §9).
type ResourceIndex struct {
	bySessionAzureID map[string]*model.CloudResource // lower(azureId) -> resource
	all              []*model.CloudResource
}

// NewResourceIndex builds an index over one session's resources.
func NewResourceIndex(resources []*model.CloudResource) *ResourceIndex {
	idx := &ResourceIndex{
		bySessionAzureID: make(map[string]*model.CloudResource, len(resources)),
		all:              resources,
	}
	for _, r := range resources {
		idx.bySessionAzureID[strings.ToLower(r.AzureID)] = r
	}
	return idx
}

// Lookup finds a resource by Azure resource ID, case-insensitively. ok is
// false when the id is not part of this session's discovered set (e.g. it
// references a resource in another subscription or one that was skipped).
func (idx *ResourceIndex) Lookup(azureID string) (*model.CloudResource, bool) {
	r, ok := idx.bySessionAzureID[strings.ToLower(azureID)]
	return r, ok
}

// All returns every resource in the session.
func (idx *ResourceIndex) All() []*model.CloudResource { return idx.all }

// registry maps an ARM resource type (case-insensitive) to its extractor.
var registry = map[string]Extractor{
	"microsoft.compute/virtualmachines":  extractVM,
	"microsoft.network/networkinterfaces": extractNIC,
	"microsoft.storage/storageaccounts":  extractStorageAccount,
	"microsoft.web/sites":                extractWebApp,
	"microsoft.sql/servers":              extractSQLServer,
	"microsoft.keyvault/vaults":          extractKeyVault,
	"microsoft.network/virtualnetworks":  extractVNet,
}

// Register installs or overrides an extractor for a resource type. Exposed
// so callers can extend the registry without modifying this package.
func Register(resourceType string, e Extractor) {
	registry[strings.ToLower(resourceType)] = e
}

var armIDPattern = regexp.MustCompile(
	`/subscriptions/[^/]+/resourceGroups/[^/]+/providers/[^/]+/[^"'\s,}]+`,
)

// Analyze runs dependency extraction over every resource in the session,
// returning the de-duplicated edge set (spec §4.3, §8 P2).
func Analyze(resources []*model.CloudResource) []model.ResourceEdge {
	idx := NewResourceIndex(resources)
	seen := make(map[string]bool)
	var edges []model.ResourceEdge

	add := func(e model.ResourceEdge) {
		if e.SourceID == e.TargetID {
			return // self-edges are forbidden (spec §3)
		}
		key := strings.ToLower(e.SourceID) + "\x00" + strings.ToLower(e.TargetID)
		if seen[key] {
			return
		}
		seen[key] = true
		e.ID = key
		edges = append(edges, e)
	}

	for _, r := range resources {
		extractor, ok := registry[strings.ToLower(r.Type)]
		if !ok {
			extractor = extractGeneric
		}
		for _, e := range safeExtract(extractor, r, idx) {
			add(e)
		}
	}
	return edges
}

// safeExtract isolates a single extractor's panics so one malformed
// resource cannot abort analysis of the rest of the session (spec §4.3:
// "missing/malformed property shapes must not abort").
func safeExtract(e Extractor, r *model.CloudResource, idx *ResourceIndex) (edges []model.ResourceEdge) {
	defer func() {
		if recover() != nil {
			edges = nil
		}
	}()
	return e(r, idx)
}

func edgeTo(source *model.CloudResource, target *model.CloudResource, t model.EdgeType, required bool) model.ResourceEdge {
	return model.ResourceEdge{
		SourceID: model.CompositeID(source.SessionID, source.AzureID),
		TargetID: model.CompositeID(target.SessionID, target.AzureID),
		Type:     t,
		Required: required,
	}
}

func stringProp(r *model.CloudResource, path ...string) (string, bool) {
	var cur any = map[string]any(r.Properties)
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[key]
		if !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
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

// hostPrefix extracts the resource-name-bearing host prefix of a key-vault
// URI or VHD URI (e.g. "https://myvault.vault.azure.net/..." -> "myvault"),
// per spec §4.3: "key-vault URIs and VHD URIs are matched by host-prefix
// extraction".
func hostPrefix(uri string) string {
	rest := strings.TrimPrefix(uri, "https://")
	rest = strings.TrimPrefix(rest, "http://")
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		return strings.ToLower(rest[:i])
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return strings.ToLower(rest[:i])
	}
	return strings.ToLower(rest)
}

// findByNameSuffix finds a resource of the given type whose name matches a
// host prefix (used to correlate key-vault/storage URIs back to a
// discovered resource when only the DNS name is available).
func findByNameSuffix(idx *ResourceIndex, typ, namePrefix string) (*model.CloudResource, bool) {
	for _, r := range idx.All() {
		if strings.EqualFold(r.Type, typ) && strings.EqualFold(r.Name, namePrefix) {
			return r, true
		}
	}
	return nil, false
}

// extractGeneric is the fallback used when no specific extractor exists: it
// scans the raw property JSON for embedded ARM resource IDs.
func extractGeneric(r *model.CloudResource, idx *ResourceIndex) []model.ResourceEdge {
	raw := propsToSearchText(r.Properties)
	matches := armIDPattern.FindAllString(raw, -1)
	var edges []model.ResourceEdge
	for _, m := range matches {
		target, ok := idx.Lookup(m)
		if !ok || strings.EqualFold(target.AzureID, r.AzureID) {
			continue
		}
		edges = append(edges, edgeTo(r, target, model.EdgeConfiguration, false))
	}
	return edges
}

// propsToSearchText renders the properties map into a string cheaply enough
// to regex-scan, without needing a full JSON round-trip.
func propsToSearchText(props map[string]any) string {
	var b strings.Builder
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			b.WriteString(t)
			b.WriteByte(' ')
		case map[string]any:
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(map[string]any(props))
	return b.String()
}
