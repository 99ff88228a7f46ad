package introspection

import (
	"context"
	"testing"

	executor "github.com/fedgw/gateway/internal/executor"
	schema "github.com/fedgw/gateway/internal/schema"
	supergraph "github.com/fedgw/gateway/internal/supergraph"
)

const testSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION

schema @join__graph(name: "svc", url: "http://svc.internal") {
  query: Query
}

type Query {
  widget(id: ID!): Widget @join__field(graph: "svc")
}

type Widget @join__type(graph: "svc", key: "id") {
  id: ID!
  name: String
}
`

func buildTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	doc, err := supergraph.Parse(testSDL)
	if err != nil {
		t.Fatalf("supergraph.Parse: %v", err)
	}
	sch, err := schema.BuildFromSupergraph(doc)
	if err != nil {
		t.Fatalf("schema.BuildFromSupergraph: %v", err)
	}
	return sch
}

func exec(t *testing.T, sch *schema.Schema, document string) map[string]any {
	t.Helper()
	rt := NewRuntime(sch)
	resp, err := rt.ExecutePartition(context.Background(), executor.SubgraphRequest{
		Subgraph: sch.IntrospectionSubgraph(),
		Document: document,
	})
	if err != nil {
		t.Fatalf("ExecutePartition: %v", err)
	}
	return resp.Data
}

func TestSchemaRegistersIntrospectionSubgraph(t *testing.T) {
	sch := buildTestSchema(t)
	if sch.IntrospectionSubgraph() == 0 {
		t.Fatal("expected a nonzero introspection subgraph")
	}
	svc, ok := sch.SubgraphByName("svc")
	if !ok || svc == sch.IntrospectionSubgraph() {
		t.Fatal("introspection subgraph must be distinct from real subgraphs")
	}
	if _, ok := sch.TypeByName("__Schema"); !ok {
		t.Fatal("expected __Schema meta-type to be registered")
	}
	qf, ok := sch.Type(sch.QueryType()).FieldByName("__schema")
	if !ok {
		t.Fatal("expected Query.__schema field")
	}
	if _, ok := qf.ResolverIn(sch.IntrospectionSubgraph()); !ok {
		t.Fatal("expected __schema resolvable in the introspection subgraph")
	}
}

func TestTypeLookup(t *testing.T) {
	sch := buildTestSchema(t)
	data := exec(t, sch, `{ __type(name: "Widget") { name kind fields { name } } }`)
	typ, ok := data["__type"].(map[string]any)
	if !ok {
		t.Fatalf("expected __type map, got %#v", data["__type"])
	}
	if typ["name"] != "Widget" || typ["kind"] != "OBJECT" {
		t.Fatalf("unexpected type descriptor: %#v", typ)
	}
	fields, ok := typ["fields"].([]any)
	if !ok || len(fields) != 2 {
		t.Fatalf("expected 2 fields on Widget, got %#v", typ["fields"])
	}
}

func TestTypeLookupMissing(t *testing.T) {
	sch := buildTestSchema(t)
	data := exec(t, sch, `{ __type(name: "DoesNotExist") { name } }`)
	if data["__type"] != nil {
		t.Fatalf("expected null for unknown type, got %#v", data["__type"])
	}
}

func TestSchemaQueryTypeAndAlias(t *testing.T) {
	sch := buildTestSchema(t)
	data := exec(t, sch, `{ s: __schema { queryType { name } } }`)
	s, ok := data["s"].(map[string]any)
	if !ok {
		t.Fatalf("expected aliased __schema result, got %#v", data)
	}
	qt, ok := s["queryType"].(map[string]any)
	if !ok || qt["name"] != "Query" {
		t.Fatalf("unexpected queryType: %#v", qt)
	}
}

func TestWrappedTypeKinds(t *testing.T) {
	sch := buildTestSchema(t)
	data := exec(t, sch, `{ __type(name: "Query") { fields { name type { kind ofType { kind ofType { kind name } } } } } }`)
	typ := data["__type"].(map[string]any)
	var widgetField map[string]any
	for _, f := range typ["fields"].([]any) {
		fm := f.(map[string]any)
		if fm["name"] == "widget" {
			widgetField = fm
		}
	}
	if widgetField == nil {
		t.Fatal("expected widget field on Query")
	}
	ofType := widgetField["type"].(map[string]any)
	if ofType["kind"] != "OBJECT" {
		t.Fatalf("expected widget to return bare OBJECT Widget, got %#v", ofType)
	}
}

func TestDispatcherRoutesBySubgraph(t *testing.T) {
	sch := buildTestSchema(t)
	other := &stubRuntime{resp: executor.SubgraphResponse{Data: map[string]any{"widget": nil}}}
	d := NewDispatcher(sch, other)

	if _, err := d.ExecutePartition(context.Background(), executor.SubgraphRequest{
		Subgraph: sch.IntrospectionSubgraph(),
		Document: `{ __type(name: "Widget") { name } }`,
	}); err != nil {
		t.Fatalf("introspection dispatch: %v", err)
	}
	if other.calls != 0 {
		t.Fatalf("expected introspection request not to reach Other, got %d calls", other.calls)
	}

	svc, _ := sch.SubgraphByName("svc")
	if _, err := d.ExecutePartition(context.Background(), executor.SubgraphRequest{Subgraph: svc}); err != nil {
		t.Fatalf("subgraph dispatch: %v", err)
	}
	if other.calls != 1 {
		t.Fatalf("expected real subgraph request to reach Other, got %d calls", other.calls)
	}
}

type stubRuntime struct {
	resp  executor.SubgraphResponse
	calls int
}

func (s *stubRuntime) ExecutePartition(ctx context.Context, req executor.SubgraphRequest) (executor.SubgraphResponse, error) {
	s.calls++
	return s.resp, nil
}
