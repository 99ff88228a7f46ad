// Package supergraph ingests a composed supergraph SDL document — the
// `@join__graph`/`@join__type`/`@join__field`/`@key`/`@requires`/`@provides`/
// `@link`-annotated schema the core consumes as input (spec.md §1, §6.1) —
// into a plain intermediate representation. internal/schema then lowers
// that representation into the immutable, arena-addressed Schema.
//
// Composition itself (merging N subgraph schemas into this document) is out
// of scope (spec.md §1 Non-goals): this package only parses an
// already-composed SDL string.
package supergraph

import language "github.com/fedgw/gateway/internal/language"

// Document is the intermediate, name-addressed form of a composed
// supergraph, built directly from the parsed SDL AST.
type Document struct {
	QueryType        string
	MutationType     string
	SubscriptionType string

	Subgraphs  []SubgraphDecl
	Types      map[string]*TypeDecl
	Extensions map[string]*ExtensionDecl
}

type SubgraphDecl struct {
	Name    string
	URL     string // empty => virtual (resolved by an in-process extension)
	Timeout int64  // milliseconds; stored on the schema, not read by the subgraph client
}

type ExtensionDecl struct {
	Name                string
	URL                 string
	IsFieldResolver     bool
	IsSelectionResolver bool
	IsSubqueryResolver  bool
	IsAuthorizer        bool
	IsAuthenticator     bool
}

type TypeKind uint8

const (
	KindScalar TypeKind = iota + 1
	KindObject
	KindInterface
	KindUnion
	KindEnum
	KindInputObject
)

type TypeDecl struct {
	Name        string
	Kind        TypeKind
	Description string

	Fields        map[string]*FieldDecl
	Interfaces    []string
	PossibleTypes []string // union members
	EnumValues    []string
	OneOf         bool

	// Keys lists every @key(fields: "...") declared on this type, one per
	// subgraph that can resolve an entity of this type by that key. An
	// empty Graph means "every subgraph listed in ResolvableIn".
	Keys []KeyDecl
}

type KeyDecl struct {
	Graph      string
	Fields     *FieldSet
	Resolvable bool
}

type FieldDecl struct {
	Name string
	Type *language.Type

	// Per-subgraph availability. A field with no explicit entries is
	// available in every subgraph that owns the parent type (simplification
	// documented in DESIGN.md: real composition tooling disambiguates this
	// from the individual subgraph SDLs, which this core does not ingest).
	JoinFields []JoinFieldDecl

	AuthDirectives []AuthDirectiveDecl
	Deprecated     string // reason, empty if not deprecated
}

type JoinFieldDecl struct {
	Graph        string
	Requires     *FieldSet
	Provides     *FieldSet
	OverrideFrom string
	External     bool
}

type AuthDirectiveDecl struct {
	Name      string // e.g. "authenticated", "requiresScopes", "policy"
	Extension string // owning extension name, "" for the two builtins
	Requires  *FieldSet
}

// FieldSet is a parsed (not yet interned) selection tree, as produced by
// parsing a `@key`/`@requires`/`@provides` field-set string.
type FieldSet struct {
	Selections []FieldSetSelection
}

type FieldSetSelection struct {
	Name string
	Sub  *FieldSet // nil for a leaf selection
}
