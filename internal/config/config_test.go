package config

import (
	"testing"

	schema "github.com/fedgw/gateway/internal/schema"
	supergraph "github.com/fedgw/gateway/internal/supergraph"
)

const minimalYAML = `
graph:
  sdl_inline: |
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
gateway:
  addr: ":4000"
headers:
  - kind: forward
    name: Authorization
subgraphs:
  svc:
    url: "http://localhost:9001"
    rate_rps: 20
    headers:
      - kind: insert
        name: X-From-Gateway
        value: "true"
`

func TestParseDefaultsAndValidate(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Gateway.Timeout == 0 {
		t.Fatal("expected default gateway timeout to be applied")
	}
	if cfg.Authn.Default != "deny" {
		t.Fatalf("expected default authentication.default=deny, got %q", cfg.Authn.Default)
	}
}

func TestMissingGraphSourceFails(t *testing.T) {
	_, err := Parse([]byte("gateway:\n  addr: \":4000\"\n"))
	if err == nil {
		t.Fatal("expected error for missing graph.sdl_path/sdl_inline")
	}
}

func TestMutuallyExclusiveGraphSourceFails(t *testing.T) {
	_, err := Parse([]byte("graph:\n  sdl_path: a.graphql\n  sdl_inline: \"type Query { x: Int }\"\n"))
	if err == nil {
		t.Fatal("expected error for both sdl_path and sdl_inline set")
	}
}

func TestInvalidHeaderRuleKindFails(t *testing.T) {
	_, err := Parse([]byte(`
graph:
  sdl_inline: "type Query { x: Int }"
headers:
  - kind: bogus
    name: X-Foo
`))
	if err == nil {
		t.Fatal("expected error for unknown header rule kind")
	}
}

func TestApplySubgraphOverrides(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	sdl, err := cfg.SDL()
	if err != nil {
		t.Fatalf("SDL: %v", err)
	}
	doc, err := supergraph.Parse(sdl)
	if err != nil {
		t.Fatalf("supergraph.Parse: %v", err)
	}
	sch, err := schema.BuildFromSupergraph(doc)
	if err != nil {
		t.Fatalf("schema.BuildFromSupergraph: %v", err)
	}
	if err := cfg.ApplySubgraphOverrides(sch); err != nil {
		t.Fatalf("ApplySubgraphOverrides: %v", err)
	}
	svc, ok := sch.SubgraphByName("svc")
	if !ok {
		t.Fatal("expected svc subgraph")
	}
	if sch.SubgraphURL(svc) != "http://localhost:9001" {
		t.Fatalf("expected overridden url, got %q", sch.SubgraphURL(svc))
	}
	if len(sch.SubgraphHeaderRules(svc)) != 1 {
		t.Fatalf("expected one header rule installed, got %v", sch.SubgraphHeaderRules(svc))
	}
}

func TestSubgraphClientConfigRateOverride(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	scc := cfg.SubgraphClientConfig()
	rl, ok := scc.PerSubgraphRate["svc"]
	if !ok || rl.RPS != 20 {
		t.Fatalf("expected svc rate override of 20rps, got %v", scc.PerSubgraphRate)
	}
}
