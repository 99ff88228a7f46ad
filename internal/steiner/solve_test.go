package steiner

import (
	"testing"

	"github.com/fedgw/gateway/internal/language"
	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/solution"
	"github.com/fedgw/gateway/internal/supergraph"
)

const solveTestSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION

schema
  @join__graph(name: "a", url: "http://a.internal")
  @join__graph(name: "b", url: "http://b.internal")
  @join__graph(name: "c", url: "http://c.internal")
{
  query: Query
}

type Query {
  item: Item @join__field(graph: "a")
}

type Item
  @join__type(graph: "a", key: "id")
  @join__type(graph: "b", key: "id")
  @join__type(graph: "c", key: "id")
{
  id: ID! @join__field(graph: "a") @join__field(graph: "b") @join__field(graph: "c")
  onlyA: String @join__field(graph: "a")
  shared: String @join__field(graph: "a") @join__field(graph: "b")
  onlyC: String @join__field(graph: "c", requires: "onlyA")
}
`

// dispensableSDL sets up a @provides-widened field (Product.review.body,
// widened for free from subgraph "a") that competes against a direct
// provider in "b" gated on a @requires the widened copy doesn't carry. The
// widened copy wins on cost, so the requirement input materialized for the
// direct copy is never actually read by the winning tree.
const dispensableSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION

schema
  @join__graph(name: "a", url: "http://a.internal")
  @join__graph(name: "b", url: "http://b.internal")
{
  query: Query
}

type Query {
  product: Product @join__field(graph: "a")
}

type Product
  @join__type(graph: "a", key: "id")
  @join__type(graph: "b", key: "id")
{
  id: ID! @join__field(graph: "a") @join__field(graph: "b")
  review: Review @join__field(graph: "b") @join__field(graph: "a", provides: "review { body }")
}

type Review @join__type(graph: "b", key: "id") {
  id: ID! @join__field(graph: "b")
  tag: String @join__field(graph: "b")
  body: String! @join__field(graph: "b", requires: "tag")
}
`

func buildGraph(t *testing.T, query string) *solution.Graph {
	t.Helper()
	return buildGraphFrom(t, solveTestSDL, query)
}

func buildGraphFrom(t *testing.T, sdl, query string) *solution.Graph {
	t.Helper()
	doc, err := supergraph.Parse(sdl)
	if err != nil {
		t.Fatalf("supergraph.Parse: %v", err)
	}
	s, err := schema.BuildFromSupergraph(doc)
	if err != nil {
		t.Fatalf("schema.BuildFromSupergraph: %v", err)
	}
	qdoc, err := language.ParseQuery(query)
	if err != nil {
		t.Fatalf("language.ParseQuery: %v", err)
	}
	op, err := operation.Bind(s, qdoc, "", nil)
	if err != nil {
		t.Fatalf("operation.Bind: %v", err)
	}
	g, err := solution.Build(s, op)
	if err != nil {
		t.Fatalf("solution.Build: %v", err)
	}
	return g
}

// S6 (spec.md §8): shared is servable from either "a" (free, same subgraph
// as item) or "b" (a cross-subgraph hop); Solve must pick the free edge.
func TestSolvePrefersZeroCostSameSubgraphEdge(t *testing.T) {
	g := buildGraph(t, `{ item { onlyA shared } }`)
	tree, err := Solve(g, UniformCost)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if tree.TotalCost(UniformCost) != 0 {
		t.Fatalf("expected a zero-cost tree (everything servable from subgraph a), got %v", tree.TotalCost(UniformCost))
	}
}

// Testable property 8: the same graph always yields the same plan. Solve is
// re-run several times over an independently rebuilt graph (map iteration
// order inside solution.Build is the nondeterminism risk) and must chose the
// identical edge for every node every time.
func TestSolveIsDeterministicAcrossRebuilds(t *testing.T) {
	const query = `{ item { onlyA shared onlyC } }`

	var reference map[solution.NodeID]solution.EdgeID
	for i := 0; i < 5; i++ {
		g := buildGraph(t, query)
		tree, err := Solve(g, UniformCost)
		if err != nil {
			t.Fatalf("Solve: %v", err)
		}
		if reference == nil {
			reference = tree.chosen
			continue
		}
		if len(tree.chosen) != len(reference) {
			t.Fatalf("iteration %d: chosen-edge count changed: got %d, want %d", i, len(tree.chosen), len(reference))
		}
		for n, e := range reference {
			if got := tree.chosen[n]; got != e {
				t.Fatalf("iteration %d: node %v chose edge %v, want %v (nondeterministic plan)", i, n, got, e)
			}
		}
	}
}

// onlyC @requires onlyA from subgraph c; Solve must resolve onlyA before
// picking onlyC's edge, and since the client also selected onlyA directly,
// resolving it isn't dispensable.
func TestSolveHonorsRequiredInputOrdering(t *testing.T) {
	g := buildGraph(t, `{ item { onlyA onlyC } }`)
	tree, err := Solve(g, UniformCost)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	order := tree.ResolutionOrder()
	pos := map[solution.NodeID]int{}
	for i, n := range order {
		pos[n] = i
	}

	for n, e := range tree.chosen {
		_, _, _, required := g.Edge(e)
		for _, req := range required {
			if pos[req] >= pos[n] {
				t.Fatalf("required input %v must precede gating node %v in resolution order", req, n)
			}
		}
	}
}

// Review.body is reachable two ways: a direct provider in "b" gated on
// @requires(tag), and a free, requirement-less copy widened in from
// Product.review's @provides in "a". The widened copy is cheaper and wins,
// so the synthetic "tag" node materialized for the direct copy's @requires
// is never actually read by the winning tree and must be pruned.
func TestResolveDispensablePrunesUnusedRequirementInput(t *testing.T) {
	g := buildGraphFrom(t, dispensableSDL, `{ product { review { body } } }`)
	tree, err := Solve(g, UniformCost)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}

	var syntheticTag solution.NodeID
	for n := solution.NodeID(1); int(n) <= g.NumNodes(); n++ {
		if g.Node(n) == solution.QueryNode && g.IsSynthetic(n) {
			syntheticTag = n
			break
		}
	}
	if syntheticTag == 0 {
		t.Fatal("expected a synthetic query node materialized for body's @requires(tag) on subgraph b")
	}
	if !tree.IsDispensable(syntheticTag) {
		t.Fatal("expected the unused requirement input to be marked dispensable")
	}
}

// When the client also selects the requirement input directly, it is no
// longer synthetic and must never be pruned even if the gating edge that
// would have required it loses the bid.
func TestResolveDispensableNeverPrunesClientSelectedField(t *testing.T) {
	g := buildGraph(t, `{ item { onlyA onlyC } }`)
	tree, err := Solve(g, UniformCost)
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	for n := solution.NodeID(1); int(n) <= g.NumNodes(); n++ {
		if g.Node(n) != solution.QueryNode {
			continue
		}
		if tree.IsDispensable(n) && !g.IsSynthetic(n) {
			t.Fatalf("node %v is not synthetic but was marked dispensable", n)
		}
	}
}
