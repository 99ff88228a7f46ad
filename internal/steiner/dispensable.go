package steiner

import "github.com/fedgw/gateway/internal/solution"

// RequirementsGroup records one edge's @requires field-set dependency: the
// query nodes that had to be resolved before Gating's edge could be taken.
// Solve collects one of these per requirement-gated edge it actually chose,
// and hands the collection to ResolveDispensable once the whole tree is
// resolved.
type RequirementsGroup struct {
	Gating solution.NodeID
	Edge   solution.EdgeID
	Inputs []solution.NodeID
}

// ResolveDispensable is the fixpoint loop spec.md §4.2/§9 calls for: a
// requirement-only query node (internal/solution.Graph.IsSynthetic) was
// materialized while Solve was still deciding which edge to take for its
// gated node, so it gets eagerly resolved alongside everything else even
// when that edge later loses to a cheaper, requirement-free alternative.
// This walks outward from every node the winning tree actually needs —
// starting from the client's own bound fields, the only nodes nobody can
// discard — marking a requirement input "necessary" only if some necessary
// node's *chosen* edge still depends on it. Anything left over is
// dispensable: resolved nowhere in the final plan, so internal/partition
// should skip it rather than dispatch a subgraph fetch nothing needs.
func ResolveDispensable(tree *Tree, groups []RequirementsGroup) map[solution.NodeID]bool {
	byGating := make(map[solution.NodeID][]RequirementsGroup, len(groups))
	for _, grp := range groups {
		byGating[grp.Gating] = append(byGating[grp.Gating], grp)
	}

	necessary := map[solution.NodeID]bool{}
	for n := range tree.chosen {
		if !tree.g.IsSynthetic(n) {
			necessary[n] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for n := range necessary {
			chosenEdge, ok := tree.chosen[n]
			if !ok {
				continue
			}
			for _, grp := range byGating[n] {
				if grp.Edge != chosenEdge {
					continue // this group belonged to an edge that lost the bid
				}
				for _, input := range grp.Inputs {
					if !necessary[input] {
						necessary[input] = true
						changed = true
					}
				}
			}
		}
	}

	dispensable := make(map[solution.NodeID]bool)
	for n := range tree.chosen {
		if tree.g.IsSynthetic(n) && !necessary[n] {
			dispensable[n] = true
		}
	}
	return dispensable
}
