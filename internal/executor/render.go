package executor

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/partition"
	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/solution"
)

// keyAlias is the response key a rendered document uses to smuggle one of a
// type's federation key fields across a partition boundary: the partition
// that resolves the parent object selects its key fields under this alias
// so the entity partition dispatched afterward can read the key values back
// out of the response tree to build its representations.
func keyAlias(fieldName string) string { return "__key_" + fieldName }

// planIndex answers, for any solution-graph node resolved somewhere in the
// winning tree, which partition resolves it and which of its children (if
// any) the winning tree assigned to a DIFFERENT partition. A composite
// field can have some children resolved in its own subgraph and others
// resolved only via a later entity fetch at the same time (e.g. Product.name
// alongside Product.reviews); the renderer needs the full plan, not just
// the current partition, to tell the two apart.
type planIndex struct {
	childrenOf  map[solution.NodeID][]solution.NodeID
	partitionOf map[solution.NodeID]partition.ID
	subgraphOf  map[partition.ID]schema.SubgraphID
}

func buildPlanIndex(g *solution.Graph, plan *partition.Plan) *planIndex {
	idx := &planIndex{
		childrenOf:  map[solution.NodeID][]solution.NodeID{},
		partitionOf: map[solution.NodeID]partition.ID{},
		subgraphOf:  map[partition.ID]schema.SubgraphID{},
	}
	for _, p := range plan.Partitions {
		idx.subgraphOf[p.ID] = p.Subgraph
		for _, n := range p.Nodes {
			idx.partitionOf[n] = p.ID
			parent := g.NodeParent(n)
			idx.childrenOf[parent] = append(idx.childrenOf[parent], n)
		}
	}
	for _, kids := range idx.childrenOf {
		sort.Slice(kids, func(i, j int) bool { return kids[i] < kids[j] })
	}
	return idx
}

// boundarySubgraphs returns, in deterministic order, the distinct subgraphs
// that the winning tree assigned children of parent to other than part —
// the subgraph(s) a later entity fetch will need parent's key fields for.
func (idx *planIndex) boundarySubgraphs(part *partition.QueryPartition, parent solution.NodeID) []schema.SubgraphID {
	seen := map[schema.SubgraphID]bool{}
	var out []schema.SubgraphID
	for _, c := range idx.childrenOf[parent] {
		pid := idx.partitionOf[c]
		if pid == part.ID {
			continue
		}
		sg := idx.subgraphOf[pid]
		if seen[sg] {
			continue
		}
		seen[sg] = true
		out = append(out, sg)
	}
	return out
}

func (idx *planIndex) childrenInPartition(part *partition.QueryPartition, parent solution.NodeID) []solution.NodeID {
	var out []solution.NodeID
	for _, n := range idx.childrenOf[parent] {
		if idx.partitionOf[n] == part.ID {
			out = append(out, n)
		}
	}
	return out
}

func (idx *planIndex) hasBoundaryChild(part *partition.QueryPartition, parent solution.NodeID) bool {
	for _, n := range idx.childrenOf[parent] {
		if idx.partitionOf[n] != part.ID {
			return true
		}
	}
	return false
}

// renderPartition lowers one query partition into the subgraph request its
// runtime needs to dispatch. This renderer only has to express what
// internal/solution and internal/partition already decided to ask for:
// argument forwarding is limited to the variables and literals operation.Bind
// preserved, and selections are exactly the resolved query nodes assigned
// to this partition.
func renderPartition(s *schema.Schema, op *operation.Operation, g *solution.Graph, idx *planIndex, part *partition.QueryPartition, resolved *responseTree) (SubgraphRequest, error) {
	tops := partitionTopNodes(g, part)
	if len(tops) == 0 {
		return SubgraphRequest{}, fmt.Errorf("executor: partition %d has no entry field", part.ID)
	}

	if g.NodeParent(tops[0]) == g.Root {
		return renderRootPartition(s, op, g, idx, part, tops)
	}
	return renderEntityPartition(s, op, g, idx, part, tops, resolved)
}

func renderRootPartition(s *schema.Schema, op *operation.Operation, g *solution.Graph, idx *planIndex, part *partition.QueryPartition, tops []solution.NodeID) (SubgraphRequest, error) {
	var b strings.Builder
	b.WriteString(op.Kind.String())
	b.WriteString(" {\n")
	for _, n := range tops {
		writeFieldSelection(&b, 1, s, op, g, idx, part, n)
	}
	b.WriteString("}\n")
	return SubgraphRequest{Subgraph: part.Subgraph, Document: b.String()}, nil
}

func renderEntityPartition(s *schema.Schema, op *operation.Operation, g *solution.Graph, idx *planIndex, part *partition.QueryPartition, tops []solution.NodeID, resolved *responseTree) (SubgraphRequest, error) {
	parent := g.NodeParent(tops[0])
	entityType := g.NodeType(parent)
	tw := s.Type(entityType)

	resolvers := tw.EntityResolvers(part.Subgraph)
	if len(resolvers) == 0 {
		return SubgraphRequest{}, fmt.Errorf("executor: type %s has no entity resolver in subgraph", tw.Name())
	}
	key := s.Resolver(resolvers[0]).Key()

	parentPath := nodePath(g, op, parent)
	reprs, err := buildRepresentations(s, key, tw.Name(), resolved, parentPath)
	if err != nil {
		return SubgraphRequest{}, err
	}

	var b strings.Builder
	b.WriteString("query($representations: [_Any!]!) {\n")
	b.WriteString("  _entities(representations: $representations) {\n")
	b.WriteString("    ... on ")
	b.WriteString(tw.Name())
	b.WriteString(" {\n")
	for _, n := range tops {
		writeFieldSelection(&b, 3, s, op, g, idx, part, n)
	}
	b.WriteString("    }\n  }\n}\n")

	return SubgraphRequest{Subgraph: part.Subgraph, Document: b.String(), Representations: reprs}, nil
}

// buildRepresentations reads each already-resolved parent object at path
// (a single object, or one per element if the parent field is a list) and
// extracts its federation key fields into a `_Any` representation. Flat keys
// and one level of nested object keys are mapped back from their keyAlias
// response keys to plain field names; an object nested two or more levels
// deep inside a composite key is copied as the response tree holds it.
func buildRepresentations(s *schema.Schema, key schema.FieldSetID, typeName string, resolved *responseTree, path Path) ([]map[string]any, error) {
	raw := resolved.Get(path)
	var objects []map[string]any
	switch v := raw.(type) {
	case map[string]any:
		objects = append(objects, v)
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				objects = append(objects, m)
			} else {
				objects = append(objects, nil)
			}
		}
	default:
		return nil, fmt.Errorf("executor: no resolved parent object at %s for entity lookup", pathToString(path))
	}

	out := make([]map[string]any, len(objects))
	for i, obj := range objects {
		if obj == nil {
			continue
		}
		repr := map[string]any{"__typename": typeName}
		for _, e := range s.FieldSet(key).Entries() {
			fw := s.Field(e.Field)
			v, ok := obj[keyAlias(fw.Name())]
			if !ok {
				return nil, fmt.Errorf("executor: key field %s missing from resolved parent at %s", fw.Name(), pathToString(path))
			}
			if nested, isObj := v.(map[string]any); isObj && e.HasSub() {
				inner := map[string]any{}
				for _, se := range e.SubSet().Entries() {
					name := s.Field(se.Field).Name()
					inner[name] = nested[keyAlias(name)]
				}
				v = inner
			}
			repr[fw.Name()] = v
		}
		out[i] = repr
	}
	return out, nil
}

// nodePath returns the response path for a solution-graph query node,
// walking parent links up to the operation root. Synthetic nodes created
// purely to satisfy a @requires field set (see internal/solution) have no
// FieldID and are never addressed by this function.
func nodePath(g *solution.Graph, op *operation.Operation, n solution.NodeID) Path {
	var elems Path
	for n != g.Root && n != 0 {
		fid := g.NodeField(n)
		f := op.Field(fid)
		elems = append(Path{f.ResponseKey()}, elems...)
		n = g.NodeParent(n)
	}
	return elems
}

func writeFieldSelection(b *strings.Builder, indent int, s *schema.Schema, op *operation.Operation, g *solution.Graph, idx *planIndex, part *partition.QueryPartition, n solution.NodeID) {
	f := op.Field(g.NodeField(n))
	fw := s.Field(f.SchemaField())
	name := fw.Name()
	alias := f.ResponseKey()

	pad := strings.Repeat("  ", indent)
	b.WriteString(pad)
	if alias != name {
		b.WriteString(alias)
		b.WriteString(": ")
	}
	b.WriteString(name)
	writeArguments(b, f.Arguments())

	children := idx.childrenInPartition(part, n)
	boundary := idx.hasBoundaryChild(part, n)

	if len(children) == 0 && !boundary {
		b.WriteString("\n")
		return
	}

	b.WriteString(" {\n")
	for _, c := range children {
		writeFieldSelection(b, indent+1, s, op, g, idx, part, c)
	}
	if boundary {
		// This object's selection continues in a later entity fetch for the
		// children the winning tree assigned to another subgraph. Smuggle
		// the type's key fields through under an alias so that fetch can
		// build its representations, one key selection per distinct
		// downstream subgraph (ordinarily just one).
		returnType := fw.Type().NamedType()
		rtw := s.Type(returnType)
		b.WriteString(pad + "  __typename\n")
		seenKeys := map[schema.FieldSetID]bool{}
		for _, sgID := range idx.boundarySubgraphs(part, n) {
			resolvers := rtw.EntityResolvers(sgID)
			if len(resolvers) == 0 {
				continue
			}
			key := s.Resolver(resolvers[0]).Key()
			if seenKeys[key] {
				continue
			}
			seenKeys[key] = true
			writeKeySelection(b, indent+1, s, key)
		}
	}
	b.WriteString(pad)
	b.WriteString("}\n")
}

func writeKeySelection(b *strings.Builder, indent int, s *schema.Schema, key schema.FieldSetID) {
	pad := strings.Repeat("  ", indent)
	for _, e := range s.FieldSet(key).Entries() {
		fw := s.Field(e.Field)
		b.WriteString(pad)
		b.WriteString(keyAlias(fw.Name()))
		b.WriteString(": ")
		b.WriteString(fw.Name())
		if e.HasSub() {
			b.WriteString(" {\n")
			writeKeySelection(b, indent+1, s, e.SubSet().ID)
			b.WriteString(pad)
			b.WriteString("}\n")
		} else {
			b.WriteString("\n")
		}
	}
}

// partitionTopNodes returns a partition's entry nodes: the ones whose
// parent was resolved by a different partition (or is the operation root),
// in deterministic id order.
func partitionTopNodes(g *solution.Graph, part *partition.QueryPartition) []solution.NodeID {
	inPartition := make(map[solution.NodeID]bool, len(part.Nodes))
	for _, n := range part.Nodes {
		inPartition[n] = true
	}
	var tops []solution.NodeID
	for _, n := range part.Nodes {
		if !inPartition[g.NodeParent(n)] {
			tops = append(tops, n)
		}
	}
	sort.Slice(tops, func(i, j int) bool { return tops[i] < tops[j] })
	return tops
}

func writeArguments(b *strings.Builder, args []operation.BoundArgument) {
	if len(args) == 0 {
		return
	}
	b.WriteString("(")
	for i, a := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.Name)
		b.WriteString(": ")
		b.WriteString(renderInputValue(a.Value))
	}
	b.WriteString(")")
}

func renderInputValue(v operation.QueryInputValue) string {
	switch v.Kind {
	case operation.ValueVariable:
		return "$" + v.VariableName
	case operation.ValueString:
		return strconv.Quote(v.Raw)
	case operation.ValueNull:
		return "null"
	case operation.ValueList:
		parts := make([]string, len(v.List))
		for i, item := range v.List {
			parts[i] = renderInputValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case operation.ValueObject:
		parts := make([]string, len(v.Object))
		for i, entry := range v.Object {
			parts[i] = entry.Name + ": " + renderInputValue(entry.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return v.Raw
	}
}
