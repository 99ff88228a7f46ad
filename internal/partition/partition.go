// Package partition turns a resolved Steiner tree into query partitions —
// one GraphQL subquery document per contiguous run of fields served by the
// same subgraph — plus the dependency DAG that orders their dispatch
// (spec.md §4.3/§4.4).
package partition

import (
	"sort"

	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/solution"
	"github.com/fedgw/gateway/internal/steiner"
)

// ID addresses one QueryPartition within a Plan.
type ID uint32

// QueryPartition is the set of solution-graph query nodes resolved by a
// single subgraph request, plus the other partitions it must wait on.
type QueryPartition struct {
	ID       ID
	Subgraph schema.SubgraphID
	Nodes    []solution.NodeID

	// parentCount is the number of not-yet-completed partitions this one
	// depends on; the executor's ready queue admits a partition once this
	// reaches zero (spec.md §5's ref-counted scheduling).
	ParentCount int
	DependsOn   []ID

	// MutationExecutedAfter orders mutation root partitions relative to
	// each other (spec.md §4.4): only meaningful when
	// HasMutationExecutedAfter is true (partition id 0 is itself a valid
	// partition, so a zero value can't double as "none"), and always
	// refers to the previous root-level mutation partition in client
	// selection order.
	MutationExecutedAfter    ID
	HasMutationExecutedAfter bool
}

// Plan is the complete, ready-to-execute partitioning of one operation.
type Plan struct {
	Partitions []*QueryPartition
	Root       ID // the partition containing the operation's first fields
}

// Build assigns every resolved query node in tree to a partition and
// computes the dependency DAG between partitions.
func Build(g *solution.Graph, tree *steiner.Tree) (*Plan, error) {
	b := &builder{g: g, tree: tree, partitionOf: map[solution.NodeID]ID{}}
	return b.build()
}

type builder struct {
	g           *solution.Graph
	tree        *steiner.Tree
	partitions  []*QueryPartition
	partitionOf map[solution.NodeID]ID
}

func (b *builder) build() (*Plan, error) {
	var lastMutationRoot ID
	haveLastMutationRoot := false

	for _, n := range b.tree.ResolutionOrder() {
		if b.tree.IsDispensable(n) {
			continue // no winning edge needed this requirement input; don't fetch it
		}
		edgeID, _ := b.tree.ProviderFor(n)
		from, _, _, required := b.g.Edge(edgeID)
		subgraph := b.g.ResolverSubgraph(from)

		parent := b.g.NodeParent(n)
		var pid ID
		switch {
		case parent == 0 || parent == b.g.Root:
			pid = b.newPartition(subgraph)
		case b.samePartitionSubgraph(parent, subgraph):
			pid = b.partitionOf[parent]
		default:
			pid = b.newPartition(subgraph)
			b.addDependency(pid, b.partitionOf[parent])
		}
		b.partitionOf[n] = pid
		part := b.partitions[pid]
		part.Nodes = append(part.Nodes, n)

		for _, req := range required {
			if reqPid, ok := b.partitionOf[req]; ok && reqPid != pid {
				b.addDependency(pid, reqPid)
			}
		}

		if mroot := b.g.MutationRootType(); mroot != 0 && parent == b.g.Root && b.g.NodeType(parent) == mroot {
			if haveLastMutationRoot && lastMutationRoot != pid {
				part.MutationExecutedAfter = lastMutationRoot
				part.HasMutationExecutedAfter = true
				b.addDependency(pid, lastMutationRoot)
			}
			lastMutationRoot = pid
			haveLastMutationRoot = true
		}
	}

	var rootID ID
	if len(b.partitions) > 0 {
		rootID = b.partitions[0].ID
	}
	return &Plan{Partitions: b.partitions, Root: rootID}, nil
}

func (b *builder) samePartitionSubgraph(parent solution.NodeID, subgraph schema.SubgraphID) bool {
	pid, ok := b.partitionOf[parent]
	if !ok {
		return false
	}
	return b.partitions[pid].Subgraph == subgraph
}

func (b *builder) newPartition(subgraph schema.SubgraphID) ID {
	id := ID(len(b.partitions))
	b.partitions = append(b.partitions, &QueryPartition{ID: id, Subgraph: subgraph})
	return id
}

func (b *builder) addDependency(child, parent ID) {
	if child == parent {
		return
	}
	p := b.partitions[child]
	for _, d := range p.DependsOn {
		if d == parent {
			return
		}
	}
	p.DependsOn = append(p.DependsOn, parent)
	p.ParentCount++
}

// sortPartitions returns partition ids in a deterministic dependency order
// (dependencies before dependents); only this package's tests call it.
func sortPartitions(plan *Plan) []ID {
	order := make([]ID, 0, len(plan.Partitions))
	visited := make(map[ID]bool)
	var visit func(ID)
	visit = func(id ID) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, d := range plan.Partitions[id].DependsOn {
			visit(d)
		}
		order = append(order, id)
	}
	ids := make([]ID, len(plan.Partitions))
	for i := range plan.Partitions {
		ids[i] = ID(i)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		visit(id)
	}
	return order
}
