package supergraph

import "testing"

const parseTestSDL = `
directive @join__graph(name: String!, url: String!) repeatable on SCHEMA
directive @join__type(graph: String!, key: String, resolvable: Boolean) repeatable on OBJECT | INTERFACE
directive @join__field(graph: String!, requires: String, provides: String, override: String, external: Boolean) repeatable on FIELD_DEFINITION
directive @link(url: String!, as: String, capabilities: [String!]) repeatable on SCHEMA
directive @policy(extension: String!) on FIELD_DEFINITION

schema
  @join__graph(name: "products", url: "http://products.internal")
  @join__graph(name: "reviews", url: "http://reviews.internal")
  @link(url: "https://example.com/guard", as: "guard", capabilities: ["AUTHORIZER"])
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
  shippingEstimate: Float @join__field(graph: "products", requires: "weight") @join__field(graph: "reviews", external: true)
  weight: Float @join__field(graph: "products")
  reviews: [Review!]! @join__field(graph: "reviews") @join__field(graph: "products", provides: "reviews { body }")
}

type Review @join__type(graph: "reviews", key: "id") {
  id: ID! @join__field(graph: "reviews")
  body: String! @join__field(graph: "reviews") @policy(extension: "guard")
}
`

func TestParseRegistersSubgraphsAndExtensions(t *testing.T) {
	doc, err := Parse(parseTestSDL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(doc.Subgraphs) != 2 {
		t.Fatalf("expected 2 subgraphs, got %d: %#v", len(doc.Subgraphs), doc.Subgraphs)
	}
	byName := map[string]SubgraphDecl{}
	for _, sg := range doc.Subgraphs {
		byName[sg.Name] = sg
	}
	if byName["products"].URL != "http://products.internal" {
		t.Fatalf("expected products URL to be ingested, got %q", byName["products"].URL)
	}

	ext, ok := doc.Extensions["guard"]
	if !ok {
		t.Fatal("expected @link to register the \"guard\" extension")
	}
	if !ext.IsAuthorizer {
		t.Fatal("expected guard extension to carry the AUTHORIZER capability")
	}
}

func TestParseIngestsKeysAndJoinFields(t *testing.T) {
	doc, err := Parse(parseTestSDL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	product, ok := doc.Types["Product"]
	if !ok {
		t.Fatal("expected Product type")
	}
	if len(product.Keys) != 2 {
		t.Fatalf("expected 2 @join__type keys on Product, got %d", len(product.Keys))
	}
	for _, k := range product.Keys {
		if k.Fields == nil || len(k.Fields.Selections) != 1 || k.Fields.Selections[0].Name != "id" {
			t.Fatalf("expected key field set {id}, got %#v", k.Fields)
		}
	}

	shipping, ok := product.Fields["shippingEstimate"]
	if !ok {
		t.Fatal("expected Product.shippingEstimate field")
	}
	if len(shipping.JoinFields) != 2 {
		t.Fatalf("expected 2 @join__field entries on shippingEstimate, got %d", len(shipping.JoinFields))
	}
	var sawRequires, sawExternal bool
	for _, jf := range shipping.JoinFields {
		if jf.Graph == "products" {
			if jf.Requires == nil || len(jf.Requires.Selections) != 1 || jf.Requires.Selections[0].Name != "weight" {
				t.Fatalf("expected @requires(fields: \"weight\"), got %#v", jf.Requires)
			}
			sawRequires = true
		}
		if jf.Graph == "reviews" && jf.External {
			sawExternal = true
		}
	}
	if !sawRequires || !sawExternal {
		t.Fatalf("expected one @requires entry and one @external entry, got %#v", shipping.JoinFields)
	}
}

func TestParseIngestsNestedProvidesFieldSet(t *testing.T) {
	doc, err := Parse(parseTestSDL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	reviews := doc.Types["Product"].Fields["reviews"]
	var provides *FieldSet
	for _, jf := range reviews.JoinFields {
		if jf.Provides != nil {
			provides = jf.Provides
		}
	}
	if provides == nil {
		t.Fatal("expected a @provides field set on Product.reviews")
	}
	if len(provides.Selections) != 1 || provides.Selections[0].Name != "reviews" {
		t.Fatalf("expected top-level selection \"reviews\", got %#v", provides.Selections)
	}
	sub := provides.Selections[0].Sub
	if sub == nil || len(sub.Selections) != 1 || sub.Selections[0].Name != "body" {
		t.Fatalf("expected nested selection \"body\", got %#v", sub)
	}
}

func TestParseIngestsAuthDirectives(t *testing.T) {
	doc, err := Parse(parseTestSDL)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	body := doc.Types["Review"].Fields["body"]
	if len(body.AuthDirectives) != 1 {
		t.Fatalf("expected 1 auth directive on Review.body, got %d", len(body.AuthDirectives))
	}
	if got := body.AuthDirectives[0]; got.Name != "policy" || got.Extension != "guard" {
		t.Fatalf("expected policy(extension: guard), got %#v", got)
	}
}

func TestParseFieldSetFlatAndNested(t *testing.T) {
	fs, err := parseFieldSet("id shippingInfo { zip country }")
	if err != nil {
		t.Fatalf("parseFieldSet: %v", err)
	}
	if len(fs.Selections) != 2 {
		t.Fatalf("expected 2 top-level selections, got %d", len(fs.Selections))
	}
	if fs.Selections[0].Name != "id" || fs.Selections[0].Sub != nil {
		t.Fatalf("expected leaf selection \"id\", got %#v", fs.Selections[0])
	}
	nested := fs.Selections[1]
	if nested.Name != "shippingInfo" || nested.Sub == nil {
		t.Fatalf("expected nested selection \"shippingInfo\", got %#v", nested)
	}
	if len(nested.Sub.Selections) != 2 {
		t.Fatalf("expected 2 nested selections, got %d", len(nested.Sub.Selections))
	}
}

func TestParseFieldSetRejectsUnterminatedSubselection(t *testing.T) {
	if _, err := parseFieldSet("shippingInfo { zip"); err == nil {
		t.Fatal("expected an error for an unterminated subselection")
	}
}
