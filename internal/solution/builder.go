package solution

import (
	"sort"

	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/schema"
)

// Build walks a bound Operation's selection tree and produces the query
// solution graph: one QueryNode per field that needs a value, one
// ProviderNode per (field, subgraph) resolver able to serve it, a
// CanProvide edge between them, and — where a provider's @requires names
// sibling fields of the same entity — a synthetic QueryNode (with its own
// providers) per required field, listed in that provider edge's
// requiredInputs so satisfying the requirement is part of the search space
// (spec.md §4.2).
func Build(s *schema.Schema, op *operation.Operation) (*Graph, error) {
	b := &builder{g: newGraph(s, op), schema: s, op: op}

	root := b.g.addNode(node{kind: QueryNode, typ: op.RootType})
	b.g.Root = root

	if err := b.bindSelection(root, op.RootType, op.Root); err != nil {
		return nil, err
	}
	return b.g, nil
}

type builder struct {
	schema *schema.Schema
	op     *operation.Operation
	g      *Graph
}

// bindSelection creates a query node + providers for every field in sel,
// under the given already-materialized parent query node.
func (b *builder) bindSelection(parentNode NodeID, parentType schema.TypeID, sel *operation.SelectionSet) error {
	if sel == nil {
		return nil
	}
	for _, group := range sel.Groups {
		for _, entry := range group.Entries {
			f := b.op.Field(entry.Field)
			if f.SchemaField() == 0 {
				continue // __typename: structural, never planned/resolved remotely
			}
			fieldNode, err := b.bindField(parentNode, f)
			if err != nil {
				return err
			}
			if sub := f.Selection(); sub != nil {
				childType := b.schema.Field(f.SchemaField()).Type().NamedType()
				if err := b.bindSelection(fieldNode, childType, sub); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// bindField returns the QueryNode for one bound field, memoizing by
// operation FieldID so a field selected under more than one fragment type
// condition still gets a single query node with the union of providers.
func (b *builder) bindField(parentNode NodeID, f operation.Field) (NodeID, error) {
	if existing, ok := b.g.fieldNode[f.ID.FieldID]; ok {
		return existing, nil
	}

	fw := b.schema.Field(f.SchemaField())
	qn := b.g.addNode(node{kind: QueryNode, field: f.ID.FieldID, typ: fw.Type().NamedType(), parent: parentNode})
	b.g.fieldNode[f.ID.FieldID] = qn

	resolvableIn := fw.ResolvableIn()
	for _, sg := range sortedSubgraphs(resolvableIn) {
		if fw.OverrideFrom() == sg {
			continue // migrating away from this subgraph's copy
		}
		resolverID := resolvableIn[sg]
		providerNode := b.g.addNode(node{kind: ProviderNode, field: f.ID.FieldID, typ: fw.Parent(), resolv: resolverID, parent: parentNode})
		e := edge{from: providerNode, to: qn, cost: b.edgeCost(providerNode, parentNode)}

		if req := fw.Requires(); req != 0 {
			reqNodes, err := b.ensureRequirementInputs(parentNode, req)
			if err != nil {
				return 0, err
			}
			e.requiredInputs = reqNodes
		}
		b.g.addEdge(e)
		b.g.widenProvides(qn, fw.Provides(), resolverID)
	}

	// @provides widening (spec.md §4.3): if a sibling field already bound
	// under the same parent declared this field in its @provides set, that
	// resolver hands it back for free alongside the parent fetch — add it
	// as an extra, zero-cost provider even when this field's own
	// @join__field entries don't name that subgraph (it is typically
	// @external there).
	widened := false
	if resolverID, ok := b.g.widenedResolver(parentNode, f.SchemaField()); ok {
		if _, alreadyDirect := resolvableIn[b.schema.Resolver(resolverID).Subgraph()]; !alreadyDirect {
			providerNode := b.g.addNode(node{kind: ProviderNode, field: f.ID.FieldID, typ: fw.Parent(), resolv: resolverID, parent: parentNode})
			b.g.addEdge(edge{from: providerNode, to: qn, cost: 0})
			widened = true
		}
	}

	if len(resolvableIn) == 0 && !widened {
		return 0, ErrUnsatisfiableRequires
	}
	return qn, nil
}

// ensureRequirementInputs materializes query nodes (and their own
// providers) for every top-level field in a @requires field set, reusing
// the node already created for that field by an earlier requirement group
// under the same parent (see syntheticFieldKey). It does not currently
// unify against a node the client's own selection separately bound for the
// same schema field (documented as a known gap in DESIGN.md): the two end
// up as distinct query nodes that independently resolve to the same value.
// Materialized nodes are "dispensable" in the sense spec.md §9 describes:
// the Steiner solver may end up including them in the final tree purely to
// satisfy a requirement even though the client never asked for their
// value, and the partitioner/shape compiler must not surface them in the
// response.
func (b *builder) ensureRequirementInputs(parentNode NodeID, fs schema.FieldSetID) ([]NodeID, error) {
	entries := b.schema.FieldSet(fs).Entries()
	nodes := make([]NodeID, 0, len(entries))
	for _, e := range entries {
		fw := b.schema.Field(e.Field)
		key := syntheticFieldKey{parentNode, e.Field}
		if existing, ok := b.syntheticNode(key); ok {
			nodes = append(nodes, existing)
			continue
		}
		qn := b.g.addNode(node{kind: QueryNode, typ: fw.Type().NamedType(), parent: parentNode})
		b.rememberSyntheticNode(key, qn)
		for _, sg := range sortedSubgraphs(fw.ResolvableIn()) {
			resolverID := fw.ResolvableIn()[sg]
			providerNode := b.g.addNode(node{kind: ProviderNode, typ: fw.Parent(), resolv: resolverID, parent: parentNode})
			b.g.addEdge(edge{from: providerNode, to: qn, cost: b.edgeCost(providerNode, parentNode)})
		}
		nodes = append(nodes, qn)
	}
	return nodes, nil
}

type syntheticFieldKey struct {
	parentNode NodeID
	field      schema.FieldID
}

func (b *builder) syntheticNode(key syntheticFieldKey) (NodeID, bool) {
	if b.g.synthetic == nil {
		return 0, false
	}
	id, ok := b.g.synthetic[key]
	return id, ok
}

func (b *builder) rememberSyntheticNode(key syntheticFieldKey, id NodeID) {
	if b.g.synthetic == nil {
		b.g.synthetic = map[syntheticFieldKey]NodeID{}
		b.g.syntheticNode = map[NodeID]bool{}
	}
	b.g.synthetic[key] = id
	b.g.syntheticNode[id] = true
}

// sortedSubgraphs returns m's keys in ascending order, so edge ids are
// assigned in the same order on every call for the same schema+operation —
// required for steiner's lowest-edge-id tie-break (internal/steiner/solve.go)
// to actually be deterministic (spec.md §8 testable property 8), since Go
// deliberately randomizes map iteration order.
func sortedSubgraphs(m map[schema.SubgraphID]schema.ResolverID) []schema.SubgraphID {
	ids := make([]schema.SubgraphID, 0, len(m))
	for sg := range m {
		ids = append(ids, sg)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// edgeCost implements the CanProvide cost model (spec.md §3.3/§4.3): 0 when
// providerNode's subgraph is already reachable from parentNode's own
// providers — resolving this field costs nothing extra because the parent
// object is already being fetched from that subgraph — and a positive cost
// when taking this edge would require a new cross-subgraph entity fetch.
// The root query node has no subgraph of its own, so every top-level field
// is an equally valid, free entry point.
func (b *builder) edgeCost(providerNode, parentNode NodeID) float64 {
	if parentNode == b.g.Root {
		return 0
	}
	sg := b.g.ResolverSubgraph(providerNode)
	for _, eid := range b.g.EdgesInto(parentNode) {
		from, _, _, _ := b.g.Edge(eid)
		if b.g.ResolverSubgraph(from) == sg {
			return 0
		}
	}
	return 1
}
