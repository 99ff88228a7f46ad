package subgraphclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fedgw/gateway/internal/executor"
	"github.com/fedgw/gateway/internal/schema"
	"github.com/fedgw/gateway/internal/supergraph"
)

func mustSchema(t *testing.T, sdl string) *schema.Schema {
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

const oneSubgraphSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION

schema @join__graph(name: "products", url: "REPLACED") {
  query: Query
}

type Query {
  topProducts: [Product!]! @join__field(graph: "products")
}

type Product @join__type(graph: "products") {
  id: ID! @join__field(graph: "products")
  name: String! @join__field(graph: "products")
}
`

func TestClient_ExecutePartition_RootRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body graphqlRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		if body.Query == "" {
			t.Fatalf("expected a non-empty query document")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(graphqlResponseBody{
			Data: map[string]any{"topProducts": []any{map[string]any{"name": "Widget"}}},
		})
	}))
	defer srv.Close()

	s := mustSchema(t, setSchemaURL(oneSubgraphSDL, srv.URL))
	c := New(s, Config{})

	sgID, ok := s.SubgraphByName("products")
	if !ok {
		t.Fatalf("subgraph %q not registered", "products")
	}

	got, err := c.ExecutePartition(context.Background(), executor.SubgraphRequest{
		Subgraph: sgID,
		Document: "query { topProducts { name } }",
	})
	if err != nil {
		t.Fatalf("ExecutePartition: %v", err)
	}

	want := executor.SubgraphResponse{
		Data: map[string]any{"topProducts": []any{map[string]any{"name": "Widget"}}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SubgraphResponse mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ExecutePartition_EntityRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body graphqlRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		reprs, ok := body.Variables["representations"]
		if !ok {
			t.Fatalf("expected a representations variable, got %#v", body.Variables)
		}
		list, ok := reprs.([]any)
		if !ok || len(list) != 1 {
			t.Fatalf("expected one representation, got %#v", reprs)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(graphqlResponseBody{
			Data: map[string]any{"_entities": []any{map[string]any{"name": "Widget"}}},
		})
	}))
	defer srv.Close()

	s := mustSchema(t, setSchemaURL(oneSubgraphSDL, srv.URL))
	c := New(s, Config{})
	sgID, _ := s.SubgraphByName("products")

	got, err := c.ExecutePartition(context.Background(), executor.SubgraphRequest{
		Subgraph:        sgID,
		Document:        "query($representations: [_Any!]!) { _entities(representations: $representations) { ... on Product { name } } }",
		Representations: []map[string]any{{"__typename": "Product", "id": "p1"}},
	})
	if err != nil {
		t.Fatalf("ExecutePartition: %v", err)
	}
	want := executor.SubgraphResponse{List: []any{map[string]any{"name": "Widget"}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SubgraphResponse mismatch (-want +got):\n%s", diff)
	}
}

func TestClient_ExecutePartition_UnknownSubgraph(t *testing.T) {
	s := mustSchema(t, setSchemaURL(oneSubgraphSDL, "http://unused"))
	c := New(s, Config{})

	_, err := c.ExecutePartition(context.Background(), executor.SubgraphRequest{Subgraph: schema.SubgraphID(99), Document: "{ __typename }"})
	if err == nil {
		t.Fatalf("expected an error for an unregistered subgraph")
	}
}

func setSchemaURL(sdl, url string) string {
	return strings.ReplaceAll(sdl, "REPLACED", url)
}
