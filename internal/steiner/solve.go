// Package steiner computes a low-cost arborescence over a query solution
// graph: for every query node (field) that needs a value, a provider edge
// that can produce it, honoring the dependency order that @requires edges
// impose. This is a greedy per-node relaxation of the Greedy FLAC heuristic
// spec.md §4.2 describes (grounded on the `steiner_tree`/`greedy_flac`
// modules named in the distillation's original_source): repeatedly saturate
// the cheapest ready edge until every terminal is reached or a full pass
// makes no further progress. It is not the flow-saturation algorithm by
// that name — no flow network is built, and there is no augmenting-path
// search — but Solve's cost model (internal/solution's same-subgraph-free
// edges) and ResolveDispensable's fixpoint give it the same two load-bearing
// properties: cheap local choices converge on a tree that prefers staying
// in one subgraph, and requirement-only nodes that no winning edge actually
// needed get pruned rather than dispatched.
package steiner

import (
	"fmt"
	"sort"

	"github.com/fedgw/gateway/internal/solution"
)

// CostFunc assigns a cost to traversing one CanProvide edge. The default
// (UniformCost) treats every subgraph hop equally; a gateway may supply a
// cost function that penalizes cross-subgraph hops or prefers a primary
// subgraph, without this package needing to change (Open Question from
// spec.md §9, resolved by making the cost function a pluggable parameter
// rather than a hardcoded heuristic).
type CostFunc func(g *solution.Graph, edge solution.EdgeID) float64

// UniformCost gives every edge the graph's own recorded cost (0 for a
// provider in a subgraph the parent is already fetched from or for a
// top-level field, 1 otherwise — see internal/solution.Build), making the
// solver equivalent to "fewest cross-subgraph hops".
func UniformCost(g *solution.Graph, edge solution.EdgeID) float64 {
	_, _, cost, _ := g.Edge(edge)
	return cost
}

// Tree is the resolved arborescence: for every query node, the single
// provider edge chosen to produce it.
type Tree struct {
	g      *solution.Graph
	chosen map[solution.NodeID]solution.EdgeID
	order  []solution.NodeID // resolution order, root-independent fields first

	// dispensable holds the requirement-only nodes ResolveDispensable found
	// unused by the winning tree — see internal/solution.Graph.IsSynthetic.
	dispensable map[solution.NodeID]bool
}

func (t *Tree) ProviderFor(n solution.NodeID) (solution.EdgeID, bool) {
	e, ok := t.chosen[n]
	return e, ok
}

// ResolutionOrder returns query nodes in an order where every node's
// requiredInputs precede it — the order internal/partition's dependency
// DAG construction starts from. Dispensable nodes (see IsDispensable) are
// still included: resolving them is harmless, and dropping them from the
// order would require re-threading requiredInputs, but internal/partition
// skips dispatching them.
func (t *Tree) ResolutionOrder() []solution.NodeID { return t.order }

// IsDispensable reports whether n is a requirement-only node the winning
// tree turned out not to need — the edge that required it lost to a
// cheaper, requirement-free alternative. internal/partition skips these so
// no subgraph fetch is dispatched purely to populate an input nothing
// reads.
func (t *Tree) IsDispensable(n solution.NodeID) bool { return t.dispensable[n] }

func (t *Tree) TotalCost(cost CostFunc) float64 {
	var total float64
	for _, e := range t.chosen {
		total += cost(t.g, e)
	}
	return total
}

// ErrUnresolvable is returned when a fixpoint pass over the remaining query
// nodes saturates no further edges: some node's every candidate provider
// is gated on a requirement that can never become satisfied (a cycle of
// @requires, or a dangling requirement with no provider at all). This is
// the Greedy FLAC ControlFlow::Break-equivalent termination guard from
// spec.md §9's design notes.
var ErrUnresolvable = fmt.Errorf("steiner: no arborescence satisfies every required field")

// Solve runs the Greedy FLAC heuristic over g, starting from its Root.
// Every QueryNode other than Root, synthetic requirement inputs included,
// must end up resolved. Each pass visits the pending nodes in id order and
// gives each one its cheapest edge whose requiredInputs are already
// resolved; ResolveDispensable then marks the requirement inputs the
// winning tree does not need.
func Solve(g *solution.Graph, cost CostFunc) (*Tree, error) {
	if cost == nil {
		cost = UniformCost
	}
	tree := &Tree{g: g, chosen: map[solution.NodeID]solution.EdgeID{}}

	pending := map[solution.NodeID]bool{}
	for n := 1; n <= g.NumNodes(); n++ {
		id := solution.NodeID(n)
		if g.Node(id) == solution.QueryNode && id != g.Root {
			pending[id] = true
		}
	}

	var groups []RequirementsGroup

	for len(pending) > 0 {
		progressed := false

		candidates := make([]solution.NodeID, 0, len(pending))
		for n := range pending {
			candidates = append(candidates, n)
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

		for _, n := range candidates {
			edgeID, ok := cheapestReadyEdge(g, n, tree.chosen, cost)
			if !ok {
				continue
			}
			tree.chosen[n] = edgeID
			tree.order = append(tree.order, n)
			delete(pending, n)
			progressed = true

			if _, _, _, required := g.Edge(edgeID); len(required) > 0 {
				groups = append(groups, RequirementsGroup{Gating: n, Edge: edgeID, Inputs: required})
			}
		}

		if !progressed {
			return nil, ErrUnresolvable
		}
	}

	tree.dispensable = ResolveDispensable(tree, groups)
	return tree, nil
}

// cheapestReadyEdge picks the minimum-cost inbound edge for a query node
// whose requiredInputs are all already resolved, breaking ties by edge id
// for determinism (spec.md §8's reproducibility property: the same graph
// always yields the same plan).
func cheapestReadyEdge(g *solution.Graph, n solution.NodeID, chosen map[solution.NodeID]solution.EdgeID, cost CostFunc) (solution.EdgeID, bool) {
	var best solution.EdgeID
	bestCost := 0.0
	found := false

	for _, e := range g.EdgesInto(n) {
		_, _, c, required := g.Edge(e)
		ready := true
		for _, req := range required {
			if _, ok := chosen[req]; !ok && req != n {
				ready = false
				break
			}
		}
		if !ready {
			continue
		}
		c = cost(g, e)
		if !found || c < bestCost || (c == bestCost && e < best) {
			best, bestCost, found = e, c, true
		}
	}
	return best, found
}
