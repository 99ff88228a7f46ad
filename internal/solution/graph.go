// Package solution builds the query solution graph: a bipartite graph of
// query nodes (one per bound field requiring resolution, plus one per
// field a @requires field set names under a given parent) and provider nodes (one per schema resolver able to
// serve a query node), connected by CanProvide edges. internal/steiner
// searches this graph for a minimum-cost arborescence rooted at the query's
// root node; internal/partition reads the winning arborescence back into
// query partitions.
package solution

import (
	"fmt"

	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/schema"
)

// NodeID addresses a node (query or provider) in one Graph's arena.
type NodeID uint32

// EdgeID addresses a CanProvide edge.
type EdgeID uint32

type NodeKind uint8

const (
	// QueryNode represents one bound field that must be resolved.
	QueryNode NodeKind = iota + 1
	// ProviderNode represents one schema resolver able to serve one or more
	// query nodes of the same field.
	ProviderNode
	// RequirementNode represents a @requires group: reaching it is only
	// possible once every field in the group's FieldSet has itself been
	// resolved, so its only useful provider is "the requirement is
	// satisfied", modeled as a CanProvide edge whose cost accounts for the
	// full transitive cost of satisfying the group (see RequirementsGroup).
	// Build creates no node of this kind: @requires inputs are carried as
	// requiredInputs on provider edges instead.
	RequirementNode
)

type node struct {
	kind   NodeKind
	field  operation.FieldID // set for QueryNode
	typ    schema.TypeID     // owning/response type
	resolv schema.ResolverID // set for ProviderNode

	// parent is the enclosing QueryNode this node's selection sits under
	// (0 for the Root node itself), used by the partitioner to decide
	// whether a field stays in its parent's subgraph request or starts a
	// new one.
	parent NodeID
}

// edge is a CanProvide (or requirement-satisfaction) edge from a provider
// or requirement node to the query node it can serve.
type edge struct {
	from NodeID
	to   NodeID
	cost float64

	// requiredInputs lists the query nodes (fields on the same entity) that
	// must also be resolved, by some provider, before this edge can be
	// taken — the Steiner solver's dispensable-requirements fixpoint
	// resolves these (spec.md §4.2/§9).
	requiredInputs []NodeID
}

// Graph is one query's solution space: every field that needs resolving,
// every resolver that could resolve it, and the CanProvide/requirement
// edges between them.
type Graph struct {
	schema *schema.Schema
	op     *operation.Operation

	nodes []node // index 0 unused
	edges []edge // index 0 unused

	// fieldNode maps a bound operation field to its QueryNode, so sibling
	// requirement groups and the partitioner can look a field's node back
	// up by id.
	fieldNode map[operation.FieldID]NodeID

	// synthetic memoizes the query nodes created purely to satisfy a
	// @requires field set, keyed by (parent query node, schema field) rather
	// than by operation.FieldID since these fields were never bound from the
	// client's own selection.
	synthetic     map[syntheticFieldKey]NodeID
	syntheticNode map[NodeID]bool

	// widened records, per query node, the schema fields that node's
	// winning @provides declarations make available inline — keyed by the
	// schema field id of the nested field, valued by the resolver that
	// already returns it as part of the parent fetch. bindField consults
	// this when binding a child field to add a free (same-call, cost 0)
	// provider alongside whatever the child's own @join__field entries
	// allow (spec.md §4.3 @provides widening).
	widened map[NodeID]map[schema.FieldID]schema.ResolverID

	Root NodeID
}

func newGraph(s *schema.Schema, op *operation.Operation) *Graph {
	return &Graph{
		schema:    s,
		op:        op,
		nodes:     make([]node, 1),
		edges:     make([]edge, 1),
		fieldNode: map[operation.FieldID]NodeID{},
	}
}

func (g *Graph) addNode(n node) NodeID {
	g.nodes = append(g.nodes, n)
	return NodeID(len(g.nodes) - 1)
}

func (g *Graph) addEdge(e edge) EdgeID {
	g.edges = append(g.edges, e)
	return EdgeID(len(g.edges) - 1)
}

func (g *Graph) Node(id NodeID) NodeKind   { return g.nodes[id].kind }
func (g *Graph) NodeField(id NodeID) operation.FieldID { return g.nodes[id].field }
func (g *Graph) NodeType(id NodeID) schema.TypeID       { return g.nodes[id].typ }
func (g *Graph) NodeResolver(id NodeID) schema.ResolverID { return g.nodes[id].resolv }
func (g *Graph) NodeParent(id NodeID) NodeID              { return g.nodes[id].parent }

// EdgesInto returns every CanProvide edge terminating at a node, in
// creation order (deterministic, since Build walks the bound operation
// tree depth-first in field order and visits subgraphs in ascending id).
func (g *Graph) EdgesInto(to NodeID) []EdgeID {
	var out []EdgeID
	for i := 1; i < len(g.edges); i++ {
		if g.edges[i].to == to {
			out = append(out, EdgeID(i))
		}
	}
	return out
}

func (g *Graph) Edge(id EdgeID) (from, to NodeID, cost float64, requiredInputs []NodeID) {
	e := g.edges[id]
	return e.from, e.to, e.cost, e.requiredInputs
}

func (g *Graph) NumNodes() int { return len(g.nodes) - 1 }
func (g *Graph) NumEdges() int { return len(g.edges) - 1 }

// ResolverSubgraph returns the subgraph a provider node's resolver belongs
// to, the grouping key the partitioner uses to decide whether two adjacent
// query nodes can share one subquery.
func (g *Graph) ResolverSubgraph(n NodeID) schema.SubgraphID {
	return g.schema.Resolver(g.nodes[n].resolv).Subgraph()
}

// MutationRootType returns the schema's mutation root type id, 0 if the
// schema has none.
func (g *Graph) MutationRootType() schema.TypeID { return g.schema.MutationType() }

// widenProvides records that resolving qn via resolverID also delivers, for
// free, every top-level field named in provSet — the @provides field set
// attached to the @join__field entry that resolverID came from. Only the
// top-level field names matter here: a nested provides sub-selection still
// lets bindField add a free provider for the immediate child, and that
// child's own @provides (if any) widens its own children in turn once it is
// bound.
func (g *Graph) widenProvides(qn NodeID, provSet schema.FieldSetID, resolverID schema.ResolverID) {
	if provSet == 0 {
		return
	}
	if g.widened == nil {
		g.widened = map[NodeID]map[schema.FieldID]schema.ResolverID{}
	}
	byField := g.widened[qn]
	if byField == nil {
		byField = map[schema.FieldID]schema.ResolverID{}
		g.widened[qn] = byField
	}
	for _, e := range g.schema.FieldSet(provSet).Entries() {
		if _, ok := byField[e.Field]; !ok {
			byField[e.Field] = resolverID
		}
	}
}

// widenedResolver returns the resolver that makes field available for free
// under parentNode via a @provides declaration on one of parentNode's own
// winning providers, if any.
func (g *Graph) widenedResolver(parentNode NodeID, field schema.FieldID) (schema.ResolverID, bool) {
	byField, ok := g.widened[parentNode]
	if !ok {
		return 0, false
	}
	resolverID, ok := byField[field]
	return resolverID, ok
}

// IsSynthetic reports whether n was materialized purely to satisfy some
// provider's @requires field set rather than bound from the client's own
// selection — spec.md §4.2/§9's "dispensable" query nodes, which the
// Steiner solver's dispensable-requirement-resolution fixpoint may end up
// discarding if the edge that needed them loses to a cheaper alternative.
func (g *Graph) IsSynthetic(n NodeID) bool { return g.syntheticNode[n] }

// ErrUnsatisfiableRequires is returned by Build when a bound field has no
// resolver in any subgraph and no @provides-widened provider: planning fails
// outright rather than silently dropping the field. A @requires input with
// no provider does not produce this error; its query node simply gets no
// edge, and steiner.Solve fails with ErrUnresolvable. The coordinator
// returns either error as a GraphQLError carrying only its message.
var ErrUnsatisfiableRequires = fmt.Errorf("solution: a @requires field set cannot be satisfied by any reachable provider")
