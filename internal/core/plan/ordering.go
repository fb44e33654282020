package plan

import (
	"fmt"
	"sort"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// topoOrder sorts entry ids by their dependencies using Kahn's algorithm.
// Dependencies come before dependents. Ties are broken by declIndex so the
// result is deterministic for a given catalog (stable tie-break: catalog
// declaration order).
//
// A cycle is a hard failure, not a warning: the remaining nodes are named
// in the returned ErrCyclicDependency.
func topoOrder(ids []string, deps map[string][]string, declIndex func(string) int) ([]string, error) {
	inDegree := make(map[string]int, len(ids))
	dependents := make(map[string][]string, len(ids))

	for _, id := range ids {
		inDegree[id] = len(deps[id])
		for _, dep := range deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var frontier []string
	for _, id := range ids {
		if inDegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	result := make([]string, 0, len(ids))
	for len(frontier) > 0 {
		sort.Slice(frontier, func(i, j int) bool {
			return declIndex(frontier[i]) < declIndex(frontier[j])
		})

		id := frontier[0]
		frontier = frontier[1:]
		result = append(result, id)

		for _, dep := range dependents[id] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				frontier = append(frontier, dep)
			}
		}
	}

	if len(result) < len(ids) {
		var stuck []string
		for _, id := range ids {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: %v", ErrCyclicDependency, stuck)
	}

	return result, nil
}

// batchLevels splits a topologically ordered id sequence into frontier
// batches: a node lands in the level after its deepest dependency.
// Input order is preserved within a level.
func batchLevels(order []string, deps map[string][]string) [][]string {
	level := make(map[string]int, len(order))
	var levels [][]string

	for _, id := range order {
		depth := 0
		for _, dep := range deps[id] {
			if l, ok := level[dep]; ok && l+1 > depth {
				depth = l + 1
			}
		}
		level[id] = depth
		for len(levels) <= depth {
			levels = append(levels, nil)
		}
		levels[depth] = append(levels[depth], id)
	}

	return levels
}
