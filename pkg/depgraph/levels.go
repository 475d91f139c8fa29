package depgraph

import "github.com/MSAInfotech/AzureCloner-API-sub000/pkg/model"

// ComputeLevels assigns every resource in resources the integer
// level = 1 + max(level(t) for t in outEdges), leaves = 0, by depth-first
// post-order traversal. A back-edge (cycle) is bounded by the current
// recursion depth rather than followed, so the calculator always terminates
// even on cyclic graphs (spec §4.4, §8 P3).
func ComputeLevels(resources []*model.CloudResource, edges []model.ResourceEdge) map[string]int {
	adjacency := make(map[string][]string)
	for _, e := range edges {
		adjacency[e.SourceID] = append(adjacency[e.SourceID], e.TargetID)
	}

	levels := make(map[string]int, len(resources))
	const unvisited = -1
	state := make(map[string]int, len(resources)) // 0 = unvisited, 1 = visiting, 2 = done
	depth := make(map[string]int, len(resources))

	ids := make([]string, 0, len(resources))
	for _, r := range resources {
		id := model.CompositeID(r.SessionID, r.AzureID)
		ids = append(ids, id)
		levels[id] = 0
		state[id] = 0
	}
	_ = unvisited

	var visit func(id string, recDepth int)
	visit = func(id string, recDepth int) {
		if state[id] == 2 {
			return
		}
		if state[id] == 1 {
			// Back-edge: bound this node at its current recursion depth
			// instead of recursing further, so cycles terminate.
			if recDepth > levels[id] {
				levels[id] = recDepth
			}
			return
		}
		state[id] = 1
		depth[id] = recDepth

		maxChild := -1
		for _, target := range adjacency[id] {
			if _, known := state[target]; !known {
				// Edge points outside this resource set (cross-session or
				// unresolved); treat the target as a leaf at level 0.
				continue
			}
			visit(target, recDepth+1)
			if levels[target] > maxChild {
				maxChild = levels[target]
			}
		}

		if maxChild >= 0 && maxChild+1 > levels[id] {
			levels[id] = maxChild + 1
		}
		state[id] = 2
	}

	for _, id := range ids {
		if state[id] == 0 {
			visit(id, 0)
		}
	}

	return levels
}

// ApplyLevels writes the computed level onto each resource and marks it
// Analyzed, per spec §4.2 step 6.
func ApplyLevels(resources []*model.CloudResource, levels map[string]int) {
	for _, r := range resources {
		id := model.CompositeID(r.SessionID, r.AzureID)
		r.DependencyLevel = levels[id]
		r.Status = model.ResourceAnalyzed
	}
}
