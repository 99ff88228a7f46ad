package introspection

import (
	"context"

	executor "github.com/fedgw/gateway/internal/executor"
	schema "github.com/fedgw/gateway/internal/schema"
)

// Dispatcher routes a partition to the in-process introspection Runtime
// when it targets the schema's reserved introspection subgraph, and to
// Other (normally internal/subgraphclient.Client) otherwise. This is the
// adapted descendant of the teacher's IntrospectionWrapper, which spliced
// introspection resolution into a single-resolver execution model; here
// the splice point is a Runtime, since execution is partitioned by
// subgraph rather than resolved field by field.
type Dispatcher struct {
	Introspection *Runtime
	Other         executor.Runtime
	subgraph      schema.SubgraphID
}

// NewDispatcher builds a Dispatcher for sch, wrapping other as the
// fallback Runtime for every non-introspection subgraph.
func NewDispatcher(sch *schema.Schema, other executor.Runtime) *Dispatcher {
	return &Dispatcher{
		Introspection: NewRuntime(sch),
		Other:         other,
		subgraph:      sch.IntrospectionSubgraph(),
	}
}

var _ executor.Runtime = (*Dispatcher)(nil)

func (d *Dispatcher) ExecutePartition(ctx context.Context, req executor.SubgraphRequest) (executor.SubgraphResponse, error) {
	if req.Subgraph == d.subgraph {
		return d.Introspection.ExecutePartition(ctx, req)
	}
	return d.Other.ExecutePartition(ctx, req)
}
