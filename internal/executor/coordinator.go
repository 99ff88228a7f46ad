package executor

import (
	"context"
	"fmt"
	"sync"

	"github.com/fedgw/gateway/internal/authz"
	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/partition"
	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/shape"
	"github.com/fedgw/gateway/internal/solution"
	"github.com/fedgw/gateway/internal/steiner"
)

// AuthzResolver looks up the Extension implementation serving one linked
// extension name, wired by the gateway's extension registry (internal/extrt).
type AuthzResolver interface {
	Resolve(ctx context.Context, extension string) (authz.Extension, bool)
}

// Coordinator plans and executes one bound operation end to end: the query
// solution graph (internal/solution), a Steiner arborescence over it
// (internal/steiner), the resulting query partitions and their dependency
// DAG (internal/partition), and an authorization plan (internal/authz) —
// then dispatches each partition to its subgraph as soon as the partitions
// it depends on have completed.
type Coordinator struct {
	Schema  *schema.Schema
	Runtime Runtime
	Authz   AuthzResolver // nil disables authorization enforcement
	Cost    steiner.CostFunc
	Workers int
}

func NewCoordinator(s *schema.Schema, rt Runtime) *Coordinator {
	return &Coordinator{Schema: s, Runtime: rt, Cost: steiner.UniformCost, Workers: 8}
}

// Execute plans op and runs its partitions to completion, returning the
// assembled GraphQL result.
func (c *Coordinator) Execute(ctx context.Context, op *operation.Operation) *ExecutionResult {
	g, err := solution.Build(c.Schema, op)
	if err != nil {
		return errorResult(err)
	}
	tree, err := steiner.Solve(g, c.Cost)
	if err != nil {
		return errorResult(err)
	}
	plan, err := partition.Build(g, tree)
	if err != nil {
		return errorResult(err)
	}

	authzPlan := authz.Build(c.Schema, op)
	if err := c.runQueryTimeAuthz(ctx, authzPlan); err != nil {
		return errorResult(err)
	}

	r := &run{
		c:         c,
		schema:    c.Schema,
		op:        op,
		g:         g,
		plan:      plan,
		idx:       buildPlanIndex(g, plan),
		resolved:  newResponseTree(),
		nullified: newNullifiedPrefixes(),
	}
	result := r.execute(ctx)
	if r.isRootNulled() {
		result.Data = nil
	} else {
		r.applyResponseTimeAuthz(ctx, authzPlan)
		result.Data = project(c.Schema, shape.Compile(c.Schema, op), op.RootType, r.resolved.Data())
	}
	result.Errors = r.errs
	return result
}

// project rebuilds the client-visible response strictly from the compiled
// shape, reading only the response keys the client actually selected out of
// the merged response tree. This is what keeps the renderer's boundary
// scaffolding (__typename and __key_<field> aliases added to smuggle
// federation keys across a partition boundary, see render.go) from leaking
// into the final result: anything the shape doesn't name is simply never
// copied over.
func project(s *schema.Schema, sh *shape.Shape, concreteType schema.TypeID, raw any) any {
	if sh == nil {
		return raw
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil
	}

	fields := sh.Fields
	if sh.Kind == shape.Polymorphic {
		typename, _ := obj["__typename"].(string)
		typeID, found := s.TypeByName(typename)
		if !found {
			return nil
		}
		concreteType = typeID
		fields = sh.ByType[typeID]
	}

	out := make(map[string]any, len(fields))
	for _, fs := range fields {
		if fs.IsTypename {
			out[fs.ResponseKey] = s.Type(concreteType).Name()
			continue
		}
		childType := s.Field(fs.SchemaField).Type().NamedType()
		out[fs.ResponseKey] = projectValue(s, fs, childType, obj[fs.ResponseKey])
	}
	return out
}

func projectValue(s *schema.Schema, fs shape.FieldShape, childType schema.TypeID, val any) any {
	if val == nil {
		return nil
	}
	if fs.IsList {
		items, ok := val.([]any)
		if !ok {
			return nil
		}
		out := make([]any, len(items))
		for i, item := range items {
			if fs.Sub == nil {
				out[i] = item
			} else {
				out[i] = project(s, fs.Sub, childType, item)
			}
		}
		return out
	}
	if fs.Sub != nil {
		return project(s, fs.Sub, childType, val)
	}
	return val
}

// runQueryTimeAuthz evaluates every query-time authorization batch before
// any partition is dispatched (spec.md §4.7): @authenticated and
// @requiresScopes never depend on response data, so there is nothing to
// gain from deferring them. A DenySome verdict is escalated to failing the
// whole operation rather than nullifying only the denied sites — mapping a
// denied static site back to the possibly many response paths it expands to
// under list fields is deferred past this core (documented in DESIGN.md).
func (c *Coordinator) runQueryTimeAuthz(ctx context.Context, plan *authz.Plan) error {
	if c.Authz == nil {
		return nil
	}
	for _, check := range plan.QueryTimeChecks {
		ext, ok := c.Authz.Resolve(ctx, check.Extension)
		if !ok {
			return fmt.Errorf("executor: no authorization extension registered for %q", check.Extension)
		}
		requests := make([]authz.Request, len(check.Sites))
		for i, site := range check.Sites {
			requests[i] = authz.Request{Site: site}
		}
		decision, err := ext.Authorize(ctx, requests)
		if err != nil {
			return err
		}
		switch decision.Decision {
		case authz.DenyAll:
			return fmt.Errorf("executor: access denied by @%s", check.Directive)
		case authz.DenySome:
			return fmt.Errorf("executor: access denied by @%s for %d field(s)", check.Directive, len(decision.Denied))
		}
	}
	return nil
}

func errorResult(err error) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
}

// run holds the mutable state of one in-flight Coordinator.Execute call.
type run struct {
	c         *Coordinator
	schema    *schema.Schema
	op        *operation.Operation
	g         *solution.Graph
	plan      *partition.Plan
	idx       *planIndex
	resolved  *responseTree
	nullified *nullifiedPrefixes

	mu         sync.Mutex
	errs       []GraphQLError
	rootNulled bool // a Non-Null violation propagated past every ancestor up to the root
}

func (r *run) isRootNulled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rootNulled
}

func (r *run) setRootNulled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rootNulled = true
}

// execute runs the ready-queue worker pool described in doc.go: a partition
// becomes ready once every partition it DependsOn has completed, and
// completing a partition may make others ready in turn.
func (r *run) execute(ctx context.Context) *ExecutionResult {
	n := len(r.plan.Partitions)
	remaining := make([]int, n)
	dependents := make([][]int, n)
	for i, p := range r.plan.Partitions {
		remaining[i] = p.ParentCount
		for _, dep := range p.DependsOn {
			dependents[dep] = append(dependents[dep], i)
		}
	}

	scheduled := make([]bool, n)
	ready := make(chan *partition.QueryPartition, n)
	var pending sync.WaitGroup
	var sched sync.Mutex

	enqueueReady := func() {
		for i, p := range r.plan.Partitions {
			if !scheduled[i] && remaining[i] == 0 {
				scheduled[i] = true
				pending.Add(1)
				ready <- p
			}
		}
	}

	sched.Lock()
	enqueueReady()
	sched.Unlock()

	workers := r.c.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range ready {
				if ctx.Err() == nil {
					r.runPartition(ctx, p)
				} else {
					r.recordPartitionError(p, ctx.Err())
				}

				sched.Lock()
				for _, dep := range dependents[p.ID] {
					remaining[dep]--
				}
				enqueueReady()
				sched.Unlock()

				pending.Done()
			}
		}()
	}

	go func() {
		pending.Wait()
		close(ready)
	}()
	wg.Wait()

	return &ExecutionResult{Data: r.resolved.Data(), Errors: r.errs}
}

func (r *run) runPartition(ctx context.Context, p *partition.QueryPartition) {
	req, err := renderPartition(r.schema, r.op, r.g, r.idx, p, r.resolved)
	if err != nil {
		r.recordPartitionError(p, err)
		return
	}
	resp, err := r.c.Runtime.ExecutePartition(ctx, req)
	if err != nil {
		r.recordPartitionError(p, err)
		return
	}
	r.mergePartition(p, req, resp)
}

func (r *run) mergePartition(p *partition.QueryPartition, req SubgraphRequest, resp SubgraphResponse) {
	for _, e := range resp.Errors {
		r.addError(e.Path, e.Message)
	}

	tops := partitionTopNodes(r.g, p)

	if req.Representations == nil {
		for _, n := range tops {
			path := nodePath(r.g, r.op, n)
			f := r.op.Field(r.g.NodeField(n))
			r.writeFieldValue(n, path, resp.Data[f.ResponseKey()])
		}
		return
	}

	parent := r.g.NodeParent(tops[0])
	parentPath := nodePath(r.g, r.op, parent)
	isList := r.parentIsList(parent)

	for i, obj := range resp.List {
		m, _ := obj.(map[string]any)
		for _, n := range tops {
			f := r.op.Field(r.g.NodeField(n))
			var path Path
			if isList {
				path = appendPath(appendPath(parentPath, i), f.ResponseKey())
			} else {
				path = appendPath(parentPath, f.ResponseKey())
			}
			var v any
			if m != nil {
				v = m[f.ResponseKey()]
			}
			r.writeFieldValue(n, path, v)
		}
	}
}

// writeFieldValue writes v at path unless it (or an ancestor) has already
// been nullified, enforcing the field's Non-Null constraint: a null value
// for a Non-Null field nullifies the nearest nullable ancestor rather than
// just this path, same tombstone-prefix technique as this package's
// original per-field executor (now driven by the solution graph's parent
// chain instead of string path matching, since the graph already carries
// each ancestor's schema type).
func (r *run) writeFieldValue(n solution.NodeID, path Path, v any) {
	if r.isRootNulled() || r.nullified.has(path) {
		return
	}
	fid := r.g.NodeField(n)
	fw := r.schema.Field(r.op.Field(fid).SchemaField())
	if v == nil && fw.Type().IsNonNull() {
		boundary := r.nonNullBoundary(n)
		r.addError(path, fmt.Sprintf("Cannot return null for non-nullable field at %s", pathToString(path)))
		if len(boundary) == 0 {
			r.setRootNulled()
			return
		}
		r.nullified.mark(boundary)
		r.resolved.Set(boundary, nil)
		return
	}
	r.resolved.Set(path, v)
}

// nonNullBoundary returns the response path to null when node n's value
// turns out null despite a Non-Null type: n's own path if n's field is
// nullable, otherwise the nearest strict ancestor whose field is nullable,
// walking up the solution graph's parent chain (mirroring the operation's
// selection nesting), or the whole response if every ancestor up to the
// root is itself Non-Null.
func (r *run) nonNullBoundary(n solution.NodeID) Path {
	cur := n
	for {
		fid := r.g.NodeField(cur)
		fw := r.schema.Field(r.op.Field(fid).SchemaField())
		if !fw.Type().IsNonNull() {
			return nodePath(r.g, r.op, cur)
		}
		parent := r.g.NodeParent(cur)
		if parent == r.g.Root || parent == 0 {
			return Path{}
		}
		cur = parent
	}
}

func (r *run) parentIsList(parent solution.NodeID) bool {
	if parent == r.g.Root {
		return false
	}
	fid := r.g.NodeField(parent)
	fw := r.schema.Field(r.op.Field(fid).SchemaField())
	return isListRef(fw.Type())
}

func isListRef(ref *schema.TypeRef) bool {
	for ref != nil {
		if ref.Wrap == schema.WrapList {
			return true
		}
		if ref.Wrap == schema.WrapNamed {
			return false
		}
		ref = ref.OfType
	}
	return false
}

func (r *run) recordPartitionError(p *partition.QueryPartition, err error) {
	for _, n := range partitionTopNodes(r.g, p) {
		path := nodePath(r.g, r.op, n)
		r.writeFieldValue(n, path, nil)
		r.addError(path, err.Error())
	}
}

func (r *run) addError(path Path, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, GraphQLError{Message: msg, Path: path})
}

// applyResponseTimeAuthz runs every response-time authorization modifier
// (e.g. @policy) once the whole response tree has been assembled. Spec.md
// §4.7 frames these as keyed by response-object-set so a gateway can
// evaluate one decision per shape rather than per object instance; this
// core instead walks the fully-assembled tree and evaluates one decision
// per object instance directly, trading the batching opportunity for a
// simpler, still-correct implementation (documented in DESIGN.md).
func (r *run) applyResponseTimeAuthz(ctx context.Context, plan *authz.Plan) {
	if len(plan.ResponseTime) == 0 || r.c.Authz == nil {
		return
	}
	byField := map[schema.FieldID][]authz.ResponseTimeModifier{}
	for _, m := range plan.ResponseTime {
		byField[m.Field] = append(byField[m.Field], m)
	}
	sh := shape.Compile(r.schema, r.op)
	r.walkResponseTimeAuthz(ctx, sh, r.resolved.Data(), Path{}, byField)
}

func (r *run) walkResponseTimeAuthz(ctx context.Context, sh *shape.Shape, obj any, path Path, byField map[schema.FieldID][]authz.ResponseTimeModifier) {
	m, ok := obj.(map[string]any)
	if !ok || sh == nil {
		return
	}

	fields := sh.Fields
	if sh.Kind == shape.Polymorphic {
		typename, _ := m["__typename"].(string)
		typeID, found := r.schema.TypeByName(typename)
		if !found {
			return
		}
		fields = sh.ByType[typeID]
	}

	for _, fs := range fields {
		if fs.IsTypename {
			continue
		}
		fieldPath := appendPath(path, fs.ResponseKey)
		denied := false
		for _, mod := range byField[fs.SchemaField] {
			if denied {
				break // already nulled and reported for this element
			}
			site := r.schema.DirectiveSite(mod.Site)
			ext, ok := r.c.Authz.Resolve(ctx, site.Extension())
			if !ok {
				continue
			}
			decision, err := ext.Authorize(ctx, []authz.Request{{Site: mod.Site}})
			if err != nil || decision.Decision == authz.DenyAll || decision.Decision == authz.DenySome {
				m[fs.ResponseKey] = nil
				r.addError(fieldPath, fmt.Sprintf("access denied by @%s", site.Directive()))
				denied = true
			}
		}
		if fs.Sub == nil {
			continue
		}
		switch child := m[fs.ResponseKey].(type) {
		case map[string]any:
			r.walkResponseTimeAuthz(ctx, fs.Sub, child, fieldPath, byField)
		case []any:
			for i, item := range child {
				r.walkResponseTimeAuthz(ctx, fs.Sub, item, appendPath(fieldPath, i), byField)
			}
		}
	}
}
