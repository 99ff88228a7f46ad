// Package executor is the execution coordinator: given a bound operation it
// builds the query solution graph and Steiner arborescence (internal/
// solution, internal/steiner), partitions the winning tree into per-subgraph
// query partitions with a dependency DAG (internal/partition), then
// dispatches one subgraph request per ready partition over a worker pool and
// assembles the partial responses into a single response tree (spec.md §5).
//
// # Scheduling
//
// Partitions form a dependency DAG: a partition becomes ready once every
// partition it DependsOn has completed (its ParentCount reaches zero). The
// coordinator runs a fixed-size pool of goroutines draining a ready queue
// fed by that countdown; cancellation propagates through context.Context,
// and a partition whose dispatch or rendering fails records a located error
// and nulls out its own fields rather than aborting sibling partitions —
// independent partitions still get a chance at partial success.
//
// # Response tree
//
// The response tree (responsetree.go) is partitioned by top-level response
// key: each top-level branch gets its own sync.RWMutex, so partitions under
// different root fields never contend, and a partition filling in fields on
// an object an earlier partition already produced (an entity fetch) simply
// takes that branch's lock for the duration of its write.
//
// # Null propagation
//
// A Non-Null violation at a resolved field nullifies the nearest nullable
// ancestor rather than just that field — computed by walking the solution
// graph's parent chain (nonNullBoundary in coordinator.go) since each
// ancestor's schema field type is available directly from the graph. Once a
// path is nullified it is recorded in a tombstone set (path.go) so later
// writes underneath it are dropped instead of clobbering the null; if no
// ancestor up to the root is nullable, the whole operation's data comes
// back null instead (rootNulled in coordinator.go). This is
// the same prefix-tracking technique this package's original per-field
// executor used to prune already-nullified async tasks before batching them,
// adapted here to gate writes into the shared response tree instead.
//
// # Authorization
//
// Query-time authorization checks (internal/authz) run once, before any
// partition is dispatched; a denial fails the operation outright rather
// than letting any subgraph request go out. Response-time modifiers run
// once the whole response tree is assembled, walking the operation's
// compiled shape (internal/shape) to find every occurrence of a field
// carrying one.
//
// # Projection
//
// The merged response tree carries more than the client asked for: the
// renderer adds a boundary object's __typename and its federation key
// fields (under a __key_<field> alias) so a later entity partition can
// build its representations from already-resolved data (render.go). Once
// every partition has run, project (coordinator.go) rebuilds the final
// result strictly from the compiled shape, so none of that scaffolding
// reaches the caller.
package executor
