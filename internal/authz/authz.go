// Package authz plans authorization checks for a bound operation against
// the directive sites recorded on the schema (@authenticated,
// @requiresScopes, @policy). Two directive classes are distinguished
// (spec.md §4.7): query-time directives are evaluated once per extension
// before execution begins, batched across every field site that names it;
// response-time directives run as response modifiers once a field's value
// (and the sibling fields its decision depends on) is available.
package authz

import (
	"context"

	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/schema"
)

// Decision is the tri-state outcome spec.md §4.7 names: grant every
// occurrence, deny every occurrence, or deny a specific subset (only
// possible for a batched query-time check spanning several sites).
type Decision uint8

const (
	GrantAll Decision = iota + 1
	DenyAll
	DenySome
)

// AuthorizationDecisions is the result of evaluating one extension's
// directive across every site it was requested for in one plan.
type AuthorizationDecisions struct {
	Decision Decision
	// Denied holds the site indices denied when Decision == DenySome, in
	// the same order QueryTimeCheck.Sites was given.
	Denied []int
}

// Extension evaluates one batch of query-time authorization requests
// in-process or over the extension bridge (internal/extrt); the gateway
// wires a concrete implementation per linked extension.
type Extension interface {
	Authorize(ctx context.Context, requests []Request) (AuthorizationDecisions, error)
}

// Request is one field site's authorization request: the directive's
// static arguments plus the concrete values of any fields its `requires`
// field set named.
type Request struct {
	Site     schema.DirectiveSiteID
	Args     map[string]any
	Requires map[string]any // flattened @requires field values, nil if none
}

// QueryTimeCheck groups every site in one operation that names the same
// extension+directive pair, so the gateway can issue one batched call
// instead of one round trip per field.
type QueryTimeCheck struct {
	Extension string
	Directive string
	Sites     []schema.DirectiveSiteID
}

// ResponseTimeModifier is a directive evaluated once the response-object
// set it is attached to has been assembled, keyed by (response-object-set,
// type condition, field) per spec.md §4.7 so a single modifier instance
// covers every object of that shape in the set.
type ResponseTimeModifier struct {
	Site          schema.DirectiveSiteID
	TypeCondition schema.TypeID
	Field         schema.FieldID
}

// builtinQueryTimeDirectives names the two built-in directive kinds this
// core treats as query-time (evaluated before dispatching any subgraph
// request): @authenticated and @requiresScopes are stateless w.r.t.
// response data, so deferring them would only waste subgraph round trips.
// Every other directive, @policy included, is response-time, since
// policies commonly close over the resolved object itself. The table is
// static; there is no per-gateway or per-extension override.
var builtinQueryTimeDirectives = map[string]bool{
	"authenticated":  true,
	"requiresScopes": true,
}

// Plan is the authorization plan for one bound operation: every
// query-time batch to run up front, and every response-time modifier to
// apply once its response-object-set is populated.
type Plan struct {
	QueryTimeChecks []QueryTimeCheck
	ResponseTime    []ResponseTimeModifier
}

// Build inspects every field reachable from the operation's root selection
// and classifies its schema-recorded directive sites into query-time
// batches or response-time modifiers.
func Build(s *schema.Schema, op *operation.Operation) *Plan {
	b := &builder{schema: s, op: op, queryBatches: map[string]*QueryTimeCheck{}}
	b.walk(op.RootType, op.Root)
	return b.finish()
}

type builder struct {
	schema       *schema.Schema
	op           *operation.Operation
	queryBatches map[string]*QueryTimeCheck
	batchOrder   []string
	responseTime []ResponseTimeModifier
}

func (b *builder) walk(parentType schema.TypeID, sel *operation.SelectionSet) {
	if sel == nil {
		return
	}
	for _, group := range sel.Groups {
		for _, entry := range group.Entries {
			f := b.op.Field(entry.Field)
			if f.SchemaField() == 0 {
				continue
			}
			fw := b.schema.Field(f.SchemaField())
			typeCondition := entry.TypeCondition
			if typeCondition == 0 {
				typeCondition = parentType
			}
			for _, siteID := range fw.AuthDirectives() {
				site := b.schema.DirectiveSite(siteID)
				if builtinQueryTimeDirectives[site.Directive()] {
					b.addQueryTime(site)
					continue
				}
				b.responseTime = append(b.responseTime, ResponseTimeModifier{
					Site:          siteID,
					TypeCondition: typeCondition,
					Field:         f.SchemaField(),
				})
			}
			if sub := f.Selection(); sub != nil {
				b.walk(fw.Type().NamedType(), sub)
			}
		}
	}
}

func (b *builder) addQueryTime(site schema.DirectiveSiteWalker) {
	key := site.Extension() + "\x00" + site.Directive()
	batch, ok := b.queryBatches[key]
	if !ok {
		batch = &QueryTimeCheck{Extension: site.Extension(), Directive: site.Directive()}
		b.queryBatches[key] = batch
		b.batchOrder = append(b.batchOrder, key)
	}
	batch.Sites = append(batch.Sites, site.ID)
}

func (b *builder) finish() *Plan {
	p := &Plan{ResponseTime: b.responseTime}
	for _, key := range b.batchOrder {
		p.QueryTimeChecks = append(p.QueryTimeChecks, *b.queryBatches[key])
	}
	return p
}
