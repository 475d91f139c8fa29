package cloudapi

import (
	"strconv"
	"strings"

	"github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"
)

const graphPageSize = 1000

// BuildQuery renders the KQL-like query skeleton from spec §4.1:
//
//	Resources | where <rg-predicate> and <type-predicate>
//	  | project id, name, type, resourceGroup, subscriptionId, location,
//	            kind, sku, identity, plan, properties, tags
//	  | limit <take>
//
// Resource-group predicates support a trailing "*" wildcard matched as a
// prefix; type predicates are exact.
func BuildQuery(filters model.ResourceFilters) string {
	var b strings.Builder
	b.WriteString("Resources")

	predicates := make([]string, 0, 2)
	if p := resourceGroupPredicate(filters.ResourceGroups); p != "" {
		predicates = append(predicates, p)
	}
	if p := resourceTypePredicate(filters.ResourceTypes); p != "" {
		predicates = append(predicates, p)
	}
	if len(predicates) > 0 {
		b.WriteString(" | where ")
		b.WriteString(strings.Join(predicates, " and "))
	}

	b.WriteString(" | project id, name, type, resourceGroup, subscriptionId, location, kind, sku, identity, plan, properties, tags")
	b.WriteString(" | limit ")
	b.WriteString(strconv.Itoa(graphPageSize))
	return b.String()
}

func resourceGroupPredicate(groups []string) string {
	if len(groups) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(groups))
	for _, g := range groups {
		if g == "" {
			continue
		}
		if strings.HasSuffix(g, "*") {
			prefix := kqlQuote(strings.TrimSuffix(g, "*"))
			clauses = append(clauses, "resourceGroup startswith "+prefix)
		} else {
			clauses = append(clauses, "resourceGroup =~ "+kqlQuote(g))
		}
	}
	if len(clauses) == 0 {
		return ""
	}
	return "(" + strings.Join(clauses, " or ") + ")"
}

func resourceTypePredicate(types []string) string {
	if len(types) == 0 {
		return ""
	}
	clauses := make([]string, 0, len(types))
	for _, t := range types {
		if t == "" {
			continue
		}
		clauses = append(clauses, "type =~ "+kqlQuote(t))
	}
	if len(clauses) == 0 {
		return ""
	}
	return "(" + strings.Join(clauses, " or ") + ")"
}

func kqlQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
}
