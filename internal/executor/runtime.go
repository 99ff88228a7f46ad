package executor

import (
	"context"

	"github.com/fedgw/gateway/internal/schema"
)

// SubgraphRequest is one query partition lowered to a subgraph-bound
// GraphQL request: either a regular operation against the subgraph's root
// field set, or an `_entities` lookup carrying the representations an
// earlier partition's response resolved.
type SubgraphRequest struct {
	Subgraph  schema.SubgraphID
	Document  string
	Variables map[string]any

	// Representations is non-nil for an entity/lookup partition: one
	// representation map per parent object the partition resolves fields
	// for, in the order those objects appear in the response tree (a nil
	// entry for a list element that is not an object).
	Representations []map[string]any
}

// SubgraphResponse is the subgraph's reply to one SubgraphRequest: data
// keyed exactly like the request document's response keys (or, for an
// entity request, the `_entities` list in representation order) plus any
// field errors the subgraph itself reported.
type SubgraphResponse struct {
	Data   map[string]any
	List   []any // populated instead of Data for `_entities` requests
	Errors []GraphQLError
}

// Runtime dispatches one query partition to its owning subgraph. The
// gateway's default implementation (internal/subgraphclient) renders the
// request over HTTP with a per-subgraph rate limiter and retry budget; a
// test Runtime can serve fixtures directly.
type Runtime interface {
	ExecutePartition(ctx context.Context, req SubgraphRequest) (SubgraphResponse, error)
}

// LeafSerializer converts a subgraph-native leaf value (scalar or enum) to
// the representation to place in the client-facing response tree. Most
// scalars pass through unchanged; this hook exists for extension-defined
// scalars whose wire representation differs from their JSON representation.
type LeafSerializer interface {
	SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error)
}
