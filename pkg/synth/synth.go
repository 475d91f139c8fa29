// Package synth implements the Template Synthesizer (C5): it turns one
// session's discovered, leveled resources into one ARM-style deployment
// template per resource group, with a pre-validation pass that rejects an
// obviously broken template before it is ever sent to the cloud. Emitters
// are a registry keyed by ARM type string, exactly like the dependency
// analyzer's extractor registry (pkg/depgraph/analyzer.go), per spec §9:
// "dynamic dispatch on resource type ... realized as a registry ... A
// generic fallback closes the set."
package synth

import (
	"regexp"
	"sort"
	"strings"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
)

const schemaURL = "https://schema.management.azure.com/schemas/2019-04-01/deploymentTemplate.json#"

// forbiddenReadOnlyProps must never appear in a synthesized resource
// declaration (spec §4.5).
var forbiddenReadOnlyProps = []string{"provisioningState", "primaryLocation"}

// Template is the synthesized (templateContent, parametersContent) pair for
// one (session, resourceGroup) group, plus the bookkeeping the deployment
// engine needs to persist a TemplateDeployment row.
type Template struct {
	ResourceGroup   string
	Content         map[string]any
	Parameters      map[string]any
	DependencyLevel int
	// Location is the resource group's default location, used by the
	// deployment engine's idempotent resource-group PUT (spec §4.6: "Ensure
	// target resource group exists via C1 (idempotent PUT with default
	// location)"). Derived from the group's first resource, since neither
	// DeploymentSession nor TemplateDeployment carries a location column.
	Location string
}

// Group synthesizes one Template per distinct resourceGroup represented in
// resources, per spec §4.5/§4.6 step 3 ("group resources by resourceGroup;
// synthesize one template per group").
func Group(resources []*model.CloudResource, edges []model.ResourceEdge) []Template {
	byGroup := make(map[string][]*model.CloudResource)
	var order []string
	for _, r := range resources {
		if _, ok := byGroup[r.ResourceGroup]; !ok {
			order = append(order, r.ResourceGroup)
		}
		byGroup[r.ResourceGroup] = append(byGroup[r.ResourceGroup], r)
	}
	sort.Strings(order)

	edgesBySource := make(map[string][]model.ResourceEdge)
	for _, e := range edges {
		edgesBySource[e.SourceID] = append(edgesBySource[e.SourceID], e)
	}

	out := make([]Template, 0, len(order))
	for _, rg := range order {
		group := byGroup[rg]
		sort.Slice(group, func(i, j int) bool {
			if group[i].DependencyLevel != group[j].DependencyLevel {
				return group[i].DependencyLevel < group[j].DependencyLevel
			}
			return group[i].AzureID < group[j].AzureID
		})
		out = append(out, Synthesize(rg, group, edgesBySource))
	}
	return out
}

// Synthesize builds the single template for one resource group's resources,
// per spec §4.5.
func Synthesize(resourceGroup string, resources []*model.CloudResource, edgesBySource map[string][]model.ResourceEdge) Template {
	inGroup := make(map[string]bool, len(resources))
	for _, r := range resources {
		inGroup[model.CompositeID(r.SessionID, r.AzureID)] = true
	}

	parameters := map[string]any{
		"resourcePrefix": map[string]any{"type": "string", "defaultValue": resourceGroup + "-"},
	}
	variables := map[string]any{
		"resourcePrefix": resourceGroup + "-",
	}
	var armResources []any
	outputs := map[string]any{}

	needsSQLPassword := false
	needsDefaultPlan := false
	webAppsWithoutPlan := 0

	maxLevel := 0
	for _, r := range resources {
		if r.DependencyLevel > maxLevel {
			maxLevel = r.DependencyLevel
		}
		if strings.EqualFold(r.Type, "Microsoft.Sql/servers") {
			needsSQLPassword = true
		}
		if strings.EqualFold(r.Type, "Microsoft.Web/sites") && !hasLinkedPlan(r, resources) {
			webAppsWithoutPlan++
		}
	}
	needsDefaultPlan = webAppsWithoutPlan > 0

	if needsSQLPassword {
		parameters["sqlAdminPassword"] = map[string]any{"type": "securestring"}
	}
	if needsDefaultPlan {
		parameters["defaultAppServicePlan"] = map[string]any{"type": "string", "defaultValue": resourceGroup + "-plan"}
	}

	for _, r := range resources {
		safe := SafeName(r.Name, r.Type)
		parameters[safe+"Name"] = map[string]any{"type": "string", "defaultValue": r.Name}
		parameters[safe+"Location"] = map[string]any{"type": "string", "defaultValue": r.Location}

		emit := emitterFor(r.Type)
		decl := emit(r, safe)

		var dependsOn []string
		for _, e := range edgesBySource[model.CompositeID(r.SessionID, r.AzureID)] {
			if !inGroup[e.TargetID] {
				continue // cross-group edges are ignored at template level (spec §4.5)
			}
			if target := resourceByCompositeID(resources, e.TargetID); target != nil {
				dependsOn = append(dependsOn, resourceIDExpr(target.Type, SafeName(target.Name, target.Type)))
			}
		}
		if len(dependsOn) > 0 {
			decl["dependsOn"] = dependsOn
		}

		armResources = append(armResources, decl)
		outputs[safe+"Id"] = map[string]any{
			"type":  "string",
			"value": resourceIDExpr(r.Type, safe),
		}
	}

	content := map[string]any{
		"$schema":        schemaURL,
		"contentVersion": "1.0.0.0",
		"parameters":     parameters,
		"variables":      variables,
		"resources":      armResources,
		"outputs":        outputs,
	}

	location := ""
	if len(resources) > 0 {
		location = resources[0].Location
	}

	return Template{
		ResourceGroup:   resourceGroup,
		Content:         content,
		Parameters:      defaultValuesOf(parameters),
		DependencyLevel: maxLevel,
		Location:        location,
	}
}

// defaultValuesOf flattens a parameters section into a parametersContent
// document of {name: {value: ...}}, the shape ARM's deployment parameters
// file expects.
func defaultValuesOf(parameters map[string]any) map[string]any {
	out := make(map[string]any, len(parameters))
	for name, def := range parameters {
		m, ok := def.(map[string]any)
		if !ok {
			continue
		}
		if v, ok := m["defaultValue"]; ok {
			out[name] = map[string]any{"value": v}
		}
	}
	return out
}

func hasLinkedPlan(webApp *model.CloudResource, resources []*model.CloudResource) bool {
	serverFarmID, ok := stringProp(webApp, "serverFarmId")
	if !ok || serverFarmID == "" {
		return false
	}
	for _, r := range resources {
		if strings.EqualFold(r.AzureID, serverFarmID) {
			return true
		}
	}
	return false
}

func resourceByCompositeID(resources []*model.CloudResource, compositeID string) *model.CloudResource {
	for _, r := range resources {
		if model.CompositeID(r.SessionID, r.AzureID) == compositeID {
			return r
		}
	}
	return nil
}

// resourceIDExpr builds an ARM resourceId(...) expression referencing the
// resource by type and synthesized name parameter.
func resourceIDExpr(resourceType, safeName string) string {
	return "[resourceId('" + resourceType + "', parameters('" + safeName + "Name'))]"
}

var nonAlphaNum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SafeName derives a template-safe identifier from a resource name: strip
// non-alphanumerics, prefix a leading digit with "p", and for storage
// accounts additionally lowercase, pad to >=3 chars, and truncate to <=24
// (spec §4.5 "Name safety").
func SafeName(name, resourceType string) string {
	safe := nonAlphaNum.ReplaceAllString(name, "")
	if safe == "" {
		safe = "resource"
	}
	if safe[0] >= '0' && safe[0] <= '9' {
		safe = "p" + safe
	}
	if strings.EqualFold(resourceType, "Microsoft.Storage/storageAccounts") {
		safe = strings.ToLower(safe)
		for len(safe) < 3 {
			safe += "0"
		}
		if len(safe) > 24 {
			safe = safe[:24]
		}
	}
	return safe
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
