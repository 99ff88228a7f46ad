package executor

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fedgw/gateway/internal/authz"
	"github.com/fedgw/gateway/internal/language"
	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/supergraph"
)

const testSupergraphSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION

schema
  @join__graph(name: "products", url: "http://products.internal")
  @join__graph(name: "reviews", url: "http://reviews.internal")
{
  query: Query
}

type Query {
  topProducts: [Product!]! @join__field(graph: "products")
}

type Product
  @join__type(graph: "products", key: "id")
  @join__type(graph: "reviews", key: "id")
{
  id: ID! @join__field(graph: "products") @join__field(graph: "reviews")
  name: String! @join__field(graph: "products")
  reviews: [Review!]! @join__field(graph: "reviews")
}

type Review @join__type(graph: "reviews", key: "id") {
  id: ID! @join__field(graph: "reviews")
  body: String! @join__field(graph: "reviews")
}
`

func mustBuildTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	doc, err := supergraph.Parse(testSupergraphSDL)
	if err != nil {
		t.Fatalf("supergraph.Parse: %v", err)
	}
	s, err := schema.BuildFromSupergraph(doc)
	if err != nil {
		t.Fatalf("schema.BuildFromSupergraph: %v", err)
	}
	return s
}

func mustBindQuery(t *testing.T, s *schema.Schema, query string) *operation.Operation {
	t.Helper()
	doc, err := language.ParseQuery(query)
	if err != nil {
		t.Fatalf("language.ParseQuery: %v", err)
	}
	op, err := operation.Bind(s, doc, "", nil)
	if err != nil {
		t.Fatalf("operation.Bind: %v", err)
	}
	return op
}

// stubRuntime serves one canned SubgraphResponse per subgraph, regardless of
// the rendered document, so these tests exercise planning, rendering,
// merging and projection rather than a real GraphQL execution engine.
type stubRuntime struct {
	s        *schema.Schema
	byGraph  map[string]SubgraphResponse
	requests []SubgraphRequest
}

func (r *stubRuntime) ExecutePartition(_ context.Context, req SubgraphRequest) (SubgraphResponse, error) {
	r.requests = append(r.requests, req)
	return r.byGraph[r.s.SubgraphName(req.Subgraph)], nil
}

func TestCoordinator_Execute_EntityFetchAcrossSubgraphs(t *testing.T) {
	s := mustBuildTestSchema(t)
	op := mustBindQuery(t, s, `{ topProducts { name reviews { body } } }`)

	rt := &stubRuntime{
		s: s,
		byGraph: map[string]SubgraphResponse{
			"products": {
				Data: map[string]any{
					"topProducts": []any{
						map[string]any{"name": "Widget", "__typename": "Product", "__key_id": "p1"},
						map[string]any{"name": "Gadget", "__typename": "Product", "__key_id": "p2"},
					},
				},
			},
			"reviews": {
				List: []any{
					map[string]any{"reviews": []any{map[string]any{"body": "Great!"}}},
					map[string]any{"reviews": []any{map[string]any{"body": "Meh."}}},
				},
			},
		},
	}

	c := NewCoordinator(s, rt)
	got := c.Execute(context.Background(), op)

	want := &ExecutionResult{
		Data: map[string]any{
			"topProducts": []any{
				map[string]any{"name": "Widget", "reviews": []any{map[string]any{"body": "Great!"}}},
				map[string]any{"name": "Gadget", "reviews": []any{map[string]any{"body": "Meh."}}},
			},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if len(rt.requests) != 2 {
		t.Fatalf("expected 2 dispatched partitions, got %d", len(rt.requests))
	}
}

const policySupergraphSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION
directive @policy(extension: String!) on FIELD_DEFINITION

schema @join__graph(name: "a", url: "http://a.internal") {
  query: Query
}

type Query {
  public: String @join__field(graph: "a")
  private: String @join__field(graph: "a") @policy(extension: "guard")
}
`

// fakeAuthzResolver resolves every extension name to the same Extension.
type fakeAuthzResolver struct{ ext authzExtensionFunc }

func (r fakeAuthzResolver) Resolve(context.Context, string) (authz.Extension, bool) {
	return r.ext, true
}

type authzExtensionFunc func(ctx context.Context, requests []authz.Request) (authz.AuthorizationDecisions, error)

func (f authzExtensionFunc) Authorize(ctx context.Context, requests []authz.Request) (authz.AuthorizationDecisions, error) {
	return f(ctx, requests)
}

// S5 (spec.md §8): Query.public and Query.private both carry an
// authorization directive; the extension denies only private. Expected:
// data.public filled, data.private null, exactly one error at path=["private"].
func TestCoordinator_Execute_ResponseTimeDenySomeNullsField(t *testing.T) {
	s := mustBuildTestSchemaFromSDL(t, policySupergraphSDL)
	op := mustBindQuery(t, s, `{ public private }`)

	rt := &stubRuntime{
		s: s,
		byGraph: map[string]SubgraphResponse{
			"a": {Data: map[string]any{"public": "ok", "private": "secret"}},
		},
	}

	c := NewCoordinator(s, rt)
	c.Authz = fakeAuthzResolver{ext: func(context.Context, []authz.Request) (authz.AuthorizationDecisions, error) {
		return authz.AuthorizationDecisions{Decision: authz.DenySome}, nil
	}}

	got := c.Execute(context.Background(), op)

	want := map[string]any{"public": "ok", "private": nil}
	if diff := cmp.Diff(want, got.Data); diff != "" {
		t.Fatalf("Data mismatch (-want +got):\n%s", diff)
	}
	if len(got.Errors) != 1 {
		t.Fatalf("expected exactly one error, got %#v", got.Errors)
	}
	if diff := cmp.Diff([]any{"private"}, pathToAny(got.Errors[0].Path)); diff != "" {
		t.Fatalf("error path mismatch (-want +got):\n%s", diff)
	}
}

// Testable property 7: once a response-time modifier denies an element, any
// further modifier on the same field/element is a no-op — at most one error
// per element, even if two modifiers both deny it.
func TestCoordinator_Execute_ResponseTimeMultipleDeniersOnlyOneError(t *testing.T) {
	s := mustBuildTestSchemaFromSDL(t, policySupergraphSDL)
	op := mustBindQuery(t, s, `{ public private }`)

	rt := &stubRuntime{
		s: s,
		byGraph: map[string]SubgraphResponse{
			"a": {Data: map[string]any{"public": "ok", "private": "secret"}},
		},
	}

	calls := 0
	c := NewCoordinator(s, rt)
	c.Authz = fakeAuthzResolver{ext: func(context.Context, []authz.Request) (authz.AuthorizationDecisions, error) {
		calls++
		return authz.AuthorizationDecisions{Decision: authz.DenyAll}, nil
	}}

	got := c.Execute(context.Background(), op)
	if len(got.Errors) != 1 {
		t.Fatalf("expected exactly one error even with %d modifier evaluations, got %#v", calls, got.Errors)
	}
}

func pathToAny(p Path) []any {
	out := make([]any, len(p))
	copy(out, p)
	return out
}

func mustBuildTestSchemaFromSDL(t *testing.T, sdl string) *schema.Schema {
	t.Helper()
	doc, err := supergraph.Parse(sdl)
	if err != nil {
		t.Fatalf("supergraph.Parse: %v", err)
	}
	s, err := schema.BuildFromSupergraph(doc)
	if err != nil {
		t.Fatalf("schema.BuildFromSupergraph: %v", err)
	}
	return s
}

// The coordinator trusts each subgraph to enforce Non-Null internally and
// only re-checks at a partition's own entry fields (doc.go); a subgraph
// that violates its own contract at the partition boundary nullifies the
// nearest nullable ancestor, which here is the whole response since
// topProducts has no nullable ancestor above it.
func TestCoordinator_Execute_NonNullPartitionBoundaryNullsWholeResponse(t *testing.T) {
	s := mustBuildTestSchema(t)
	op := mustBindQuery(t, s, `{ topProducts { name } }`)

	rt := &stubRuntime{
		s: s,
		byGraph: map[string]SubgraphResponse{
			"products": {Data: map[string]any{"topProducts": nil}},
		},
	}

	c := NewCoordinator(s, rt)
	got := c.Execute(context.Background(), op)

	if got.Data != nil {
		t.Fatalf("expected the whole response to be nullified, got data: %#v", got.Data)
	}
	if len(got.Errors) != 1 {
		t.Fatalf("expected exactly one Non-Null violation error, got %#v", got.Errors)
	}
}
