package schema

import (
	"fmt"
	"sort"

	"github.com/fedgw/gateway/internal/stringpool"
)

// Schema is the interned, id-addressed representation of a composed
// supergraph. It is immutable after Build; every downstream computation
// (operation binding, solution-space construction, planning, execution)
// borrows it by reference for its whole lifetime.
type Schema struct {
	strings *stringpool.Interner
	values  *stringpool.ValueInterner[any]

	queryType        TypeID
	mutationType     TypeID
	subscriptionType TypeID

	// introspectionSubgraph is the reserved virtual subgraph that serves
	// __schema/__type: never present in the supergraph SDL's own
	// @join__graph list, always registered by registerIntrospection.
	introspectionSubgraph SubgraphID

	types      []typeRecord // index 0 unused, TypeID 1-based
	typeByName map[string]TypeID

	fields   []fieldRecord
	args     []argumentRecord
	sets     []fieldSetRecord
	setByKey map[string]FieldSetID
	sites    []directiveSiteRecord
	resolvs  []resolverRecord

	subgraphs      []subgraphRecord
	subgraphByName map[string]SubgraphID

	extensions map[string]*Extension
}

// Extension records directive definitions and capability flags linked via
// @link for one gateway extension.
type Extension struct {
	Name                string
	URL                 string
	IsFieldResolver     bool
	IsSelectionResolver bool
	IsSubqueryResolver  bool
	IsAuthorizer        bool
	IsAuthenticator     bool
	Directives          []string
}

// SchemaValidationError aggregates every diagnostic found while building a
// schema. A successful Build never returns one.
type SchemaValidationError struct {
	Diagnostics []string
}

func (e *SchemaValidationError) Error() string {
	if len(e.Diagnostics) == 1 {
		return e.Diagnostics[0]
	}
	return fmt.Sprintf("%d schema validation errors, first: %s", len(e.Diagnostics), e.Diagnostics[0])
}

func newSchema() *Schema {
	return &Schema{
		strings:        stringpool.New(),
		values:         stringpool.NewValueInterner[any](defaultValueProxyKey),
		types:          make([]typeRecord, 1),
		typeByName:     make(map[string]TypeID),
		fields:         make([]fieldRecord, 1),
		args:           make([]argumentRecord, 1),
		sets:           make([]fieldSetRecord, 1),
		setByKey:       make(map[string]FieldSetID),
		sites:          make([]directiveSiteRecord, 1),
		resolvs:        make([]resolverRecord, 1),
		subgraphs:      make([]subgraphRecord, 1),
		subgraphByName: make(map[string]SubgraphID),
		extensions:     make(map[string]*Extension),
	}
}

func defaultValueProxyKey(v any) string { return fmt.Sprintf("%#v", v) }

func (s *Schema) InternString(str string) StringID { return StringID(s.strings.Intern(str)) }
func (s *Schema) String(id StringID) string        { return s.strings.String(stringpool.ID(id)) }

// QueryType, MutationType, SubscriptionType return the root type ids, or 0
// if the operation kind is not supported by this supergraph.
func (s *Schema) QueryType() TypeID        { return s.queryType }
func (s *Schema) MutationType() TypeID     { return s.mutationType }
func (s *Schema) SubscriptionType() TypeID { return s.subscriptionType }

// TypeByName looks up a type id by its GraphQL name; returns (0, false) if
// the supergraph has no such type.
func (s *Schema) TypeByName(name string) (TypeID, bool) {
	id, ok := s.typeByName[name]
	return id, ok
}

// Types enumerates every type id in arena order, including the synthesized
// introspection meta-types. Used by __schema.types.
func (s *Schema) Types() []TypeID {
	ids := make([]TypeID, 0, len(s.types)-1)
	for i := 1; i < len(s.types); i++ {
		ids = append(ids, TypeID(i))
	}
	return ids
}

// Subgraphs returns every subgraph id in declaration order.
func (s *Schema) Subgraphs() []SubgraphID {
	ids := make([]SubgraphID, 0, len(s.subgraphs)-1)
	for i := 1; i < len(s.subgraphs); i++ {
		ids = append(ids, SubgraphID(i))
	}
	return ids
}

func (s *Schema) SubgraphByName(name string) (SubgraphID, bool) {
	id, ok := s.subgraphByName[name]
	return id, ok
}

func (s *Schema) SubgraphName(id SubgraphID) string { return s.String(s.subgraphs[id].name) }

func (s *Schema) SubgraphKind(id SubgraphID) SubgraphKind { return s.subgraphs[id].kind }

func (s *Schema) SubgraphURL(id SubgraphID) string { return s.subgraphs[id].url }

// SetSubgraphURL overrides a subgraph's endpoint URL. Gateway configuration
// (spec.md §6.1 `subgraphs.<name>.url`) may point a subgraph at a different
// address than the one composed into the supergraph SDL, e.g. routing to a
// local sidecar in development.
func (s *Schema) SetSubgraphURL(id SubgraphID, url string) {
	s.subgraphs[id].url = url
}

func (s *Schema) SubgraphHeaderRules(id SubgraphID) []HeaderRule { return s.subgraphs[id].headerRules }

// SetSubgraphHeaderRules installs a subgraph's header rule set. Header
// rules come from gateway configuration (spec.md §6.1 `headers`), not the
// supergraph SDL, so they're applied after Build rather than populated by
// the builder; internal/config does this once at startup before handing
// the schema to subgraphclient.New.
func (s *Schema) SetSubgraphHeaderRules(id SubgraphID, rules []HeaderRule) {
	s.subgraphs[id].headerRules = rules
}

// IntrospectionSubgraph is the reserved virtual subgraph that Query.__schema
// and Query.__type resolve in, so internal/solution and internal/partition
// need no special case for them: they're just another subgraph a field can
// be resolvableIn. internal/introspection answers SubgraphRequests addressed
// to it in-process instead of dispatching over the network.
func (s *Schema) IntrospectionSubgraph() SubgraphID { return s.introspectionSubgraph }

// Extensions enumerates extensions linked by @link, sorted by name for
// deterministic iteration.
func (s *Schema) Extensions() []*Extension {
	names := make([]string, 0, len(s.extensions))
	for n := range s.extensions {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*Extension, len(names))
	for i, n := range names {
		out[i] = s.extensions[n]
	}
	return out
}

func (s *Schema) Extension(name string) (*Extension, bool) {
	e, ok := s.extensions[name]
	return e, ok
}

// DirectiveSites enumerates every precomputed authorization directive site,
// in arena order (deterministic: the builder creates sites walking type
// names, then each type's field names, in sorted order).
func (s *Schema) DirectiveSites() []DirectiveSiteID {
	ids := make([]DirectiveSiteID, 0, len(s.sites)-1)
	for i := 1; i < len(s.sites); i++ {
		ids = append(ids, DirectiveSiteID(i))
	}
	return ids
}
