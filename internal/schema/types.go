package schema

// TypeKind is one of {scalar, object, interface, union, enum, input object}.
type TypeKind uint8

const (
	TypeKindScalar TypeKind = iota + 1
	TypeKindObject
	TypeKindInterface
	TypeKindUnion
	TypeKindEnum
	TypeKindInputObject
)

func (k TypeKind) String() string {
	switch k {
	case TypeKindScalar:
		return "SCALAR"
	case TypeKindObject:
		return "OBJECT"
	case TypeKindInterface:
		return "INTERFACE"
	case TypeKindUnion:
		return "UNION"
	case TypeKindEnum:
		return "ENUM"
	case TypeKindInputObject:
		return "INPUT_OBJECT"
	default:
		return "UNKNOWN"
	}
}

// TypeWrap describes nullable/non-null/list wrapping around a named type.
type TypeWrap uint8

const (
	WrapNamed TypeWrap = iota
	WrapNonNull
	WrapList
)

// TypeRef is a wrapped type expression: Named, [Named], Named!, [[Named!]!]...
type TypeRef struct {
	Wrap   TypeWrap
	OfType *TypeRef // set when Wrap != WrapNamed
	Named  TypeID   // set when Wrap == WrapNamed
}

func (t *TypeRef) IsNonNull() bool { return t != nil && t.Wrap == WrapNonNull }
func (t *TypeRef) IsList() bool    { return t != nil && t.Wrap == WrapList }

// NamedType walks through wrappers to the innermost named type id.
func (t *TypeRef) NamedType() TypeID {
	for t.Wrap != WrapNamed {
		t = t.OfType
	}
	return t.Named
}

type typeRecord struct {
	name        StringID
	kind        TypeKind
	description StringID

	// Object/Interface
	fields     []FieldID
	interfaces []TypeID

	// Interface/Union
	possibleTypes []TypeID

	// Enum
	enumValues []enumValueRecord

	// Input object
	inputFields []FieldID
	oneOf       bool

	// Scalar
	specifiedByURL StringID

	// Entity resolvers keyed by the subgraph that serves them, for types
	// that declare a resolvable @key. A type may have more than one entity
	// resolver per subgraph when it declares more than one resolvable key.
	entityResolvers map[SubgraphID][]ResolverID
}

type enumValueRecord struct {
	name        StringID
	description StringID
	deprecated  bool
	deprecation StringID
}

type fieldRecord struct {
	name        StringID
	parent      TypeID
	description StringID
	fieldType   *TypeRef
	args        []ArgumentID

	// resolvability: the set of subgraphs that can serve this field
	// directly, each mapped to the resolver that does so. Invariant:
	// nonempty after a successful Build.
	resolvableIn map[SubgraphID]ResolverID

	requires FieldSetID // 0 if none
	provides FieldSetID // 0 if none

	authDirectives []DirectiveSiteID

	// overrideFrom names the subgraph this field's value is migrating away
	// from; the solution-space builder excludes that subgraph's copy of the
	// field from the resolvability set it considers (progressive @override).
	overrideFrom SubgraphID

	deprecated  bool
	deprecation StringID
}

type argumentRecord struct {
	name         StringID
	owner        FieldID
	argType      *TypeRef
	defaultValue ValueID
}

// ResolverKind is the tagged variant over resolver strategies.
type ResolverKind uint8

const (
	ResolverRootField ResolverKind = iota + 1
	ResolverEntity
	ResolverLookup
	ResolverExtension
	ResolverIntrospection
)

func (k ResolverKind) String() string {
	switch k {
	case ResolverRootField:
		return "ROOT_FIELD"
	case ResolverEntity:
		return "ENTITY"
	case ResolverLookup:
		return "LOOKUP"
	case ResolverExtension:
		return "EXTENSION"
	case ResolverIntrospection:
		return "INTROSPECTION"
	default:
		return "UNKNOWN"
	}
}

type resolverRecord struct {
	kind     ResolverKind
	subgraph SubgraphID
	field    FieldID // the field this resolver produces
	key      FieldSetID

	// ExtensionName addresses the extension (by @link URL / linked name)
	// when kind == ResolverExtension.
	extensionName StringID
}

// fieldSetRecord is an ordered, deduplicated tree of (field, subselection)
// pairs, as used by @key, @requires, @provides, and authorization directive
// field dependencies.
type fieldSetRecord struct {
	on       TypeID
	entries  []fieldSetEntry
}

type fieldSetEntry struct {
	field FieldID
	sub   FieldSetID // 0 if this entry is a leaf
}

// DirectiveSiteKind distinguishes what an authorization directive is
// attached to.
type DirectiveSiteKind uint8

const (
	DirectiveSiteField DirectiveSiteKind = iota + 1
	DirectiveSiteObject
)

type directiveSiteRecord struct {
	kind      DirectiveSiteKind
	onType    TypeID
	onField   FieldID // 0 unless kind == DirectiveSiteField
	directive StringID
	extension StringID
	args      map[string]ValueID
	requires  FieldSetID // fields the directive needs at evaluation time, 0 if none
}

// ValueID addresses an interned schema-position value (default values,
// directive arguments). 0 means absent/null-not-set.
type ValueID uint32

type subgraphRecord struct {
	name StringID
	kind SubgraphKind

	// Endpoint config, meaningful when kind == SubgraphGraphQL.
	url     string
	timeout int64 // milliseconds, from @join__graph(timeout:); not read by the subgraph client

	headerRules []HeaderRule
}

type SubgraphKind uint8

const (
	SubgraphGraphQL SubgraphKind = iota + 1
	SubgraphVirtual
)

// HeaderRule mirrors the `headers` gateway-configuration section (spec.md
// §6.1): forward/insert/remove/rename_duplicate, matched by literal name or
// regex, first-match-wins in declaration order, literal and regex rules
// alike (see DESIGN.md).
type HeaderRule struct {
	Kind     HeaderRuleKind
	Name     string // literal name, empty if Pattern is set
	Pattern  string // regex source, empty if Name is set
	Default  string
	Rename   string
	Value    string
}

type HeaderRuleKind uint8

const (
	HeaderForward HeaderRuleKind = iota + 1
	HeaderInsert
	HeaderRemove
	HeaderRenameDuplicate
)
