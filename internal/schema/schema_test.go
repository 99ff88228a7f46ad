package schema

import (
	"testing"

	sg "github.com/fedgw/gateway/internal/supergraph"
)

const buildTestSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION

schema @join__graph(name: "accounts", url: "http://accounts.internal") @join__graph(name: "products", url: "http://products.internal") {
  query: Query
}

type Query {
  user(id: ID!): User @join__field(graph: "accounts")
}

type User @join__type(graph: "accounts", key: "id") @join__type(graph: "products", key: "id") {
  id: ID!
  name: String @join__field(graph: "accounts")
  recommendedProducts: [String!]! @join__field(graph: "products")
}
`

func buildTest(t *testing.T) *Schema {
	t.Helper()
	doc, err := sg.Parse(buildTestSDL)
	if err != nil {
		t.Fatalf("supergraph.Parse: %v", err)
	}
	s, err := BuildFromSupergraph(doc)
	if err != nil {
		t.Fatalf("BuildFromSupergraph: %v", err)
	}
	return s
}

func TestBuildRegistersDeclaredSubgraphs(t *testing.T) {
	s := buildTest(t)
	for _, name := range []string{"accounts", "products"} {
		id, ok := s.SubgraphByName(name)
		if !ok {
			t.Fatalf("expected subgraph %q to be registered", name)
		}
		if s.SubgraphKind(id) != SubgraphGraphQL {
			t.Fatalf("expected %q to be a GraphQL subgraph, got kind %v", name, s.SubgraphKind(id))
		}
	}
}

func TestBuildRegistersReservedIntrospectionSubgraph(t *testing.T) {
	s := buildTest(t)
	introspectionID := s.IntrospectionSubgraph()
	if introspectionID == 0 {
		t.Fatal("expected a nonzero introspection subgraph id")
	}
	if s.SubgraphKind(introspectionID) != SubgraphVirtual {
		t.Fatalf("expected introspection subgraph to be virtual, got kind %v", s.SubgraphKind(introspectionID))
	}
	for _, name := range []string{"accounts", "products"} {
		id, _ := s.SubgraphByName(name)
		if id == introspectionID {
			t.Fatalf("introspection subgraph must not collide with declared subgraph %q", name)
		}
	}
}

func TestBuildGivesEveryMetaFieldAnIntrospectionResolver(t *testing.T) {
	s := buildTest(t)
	introspectionID := s.IntrospectionSubgraph()

	schemaType, ok := s.TypeByName("__Schema")
	if !ok {
		t.Fatal("expected __Schema meta-type to be registered")
	}
	for _, f := range s.Type(schemaType).Fields() {
		if _, ok := f.ResolverIn(introspectionID); !ok {
			t.Fatalf("expected __Schema.%s resolvable in the introspection subgraph", f.Name())
		}
	}

	qf, ok := s.Type(s.QueryType()).FieldByName("__schema")
	if !ok {
		t.Fatal("expected Query.__schema field")
	}
	if _, ok := qf.ResolverIn(introspectionID); !ok {
		t.Fatal("expected Query.__schema resolvable in the introspection subgraph")
	}

	tf, ok := s.Type(s.QueryType()).FieldByName("__type")
	if !ok {
		t.Fatal("expected Query.__type field")
	}
	if _, ok := tf.ResolverIn(introspectionID); !ok {
		t.Fatal("expected Query.__type resolvable in the introspection subgraph")
	}
}

func TestBuildDefaultsFieldResolvabilityToKeySubgraphs(t *testing.T) {
	s := buildTest(t)
	userType, ok := s.TypeByName("User")
	if !ok {
		t.Fatal("expected User type")
	}
	nameField, ok := s.Type(userType).FieldByName("name")
	if !ok {
		t.Fatal("expected User.name field")
	}
	accounts, _ := s.SubgraphByName("accounts")
	if _, ok := nameField.ResolverIn(accounts); !ok {
		t.Fatal("expected User.name resolvable in accounts (its @join__field graph)")
	}
}

func TestSetSubgraphHeaderRulesAndURL(t *testing.T) {
	s := buildTest(t)
	accounts, _ := s.SubgraphByName("accounts")

	rules := []HeaderRule{{Kind: HeaderForward, Name: "Authorization"}}
	s.SetSubgraphHeaderRules(accounts, rules)
	if got := s.SubgraphHeaderRules(accounts); len(got) != 1 || got[0].Name != "Authorization" {
		t.Fatalf("expected installed header rules, got %v", got)
	}

	s.SetSubgraphURL(accounts, "http://localhost:9001")
	if s.SubgraphURL(accounts) != "http://localhost:9001" {
		t.Fatalf("expected overridden url, got %q", s.SubgraphURL(accounts))
	}
}

func TestTypesEnumeratesEveryTypeIncludingIntrospection(t *testing.T) {
	s := buildTest(t)
	ids := s.Types()
	if len(ids) == 0 {
		t.Fatal("expected at least one type id")
	}
	found := map[string]bool{}
	for _, id := range ids {
		found[s.String(s.types[id].name)] = true
	}
	for _, want := range []string{"Query", "User", "__Schema", "__Type"} {
		if !found[want] {
			t.Fatalf("expected Types() to include %q", want)
		}
	}
}
