package schema

// A Walker is a non-owning view composed of an id plus a context pointer:
// cheap to copy, safe to pass by value, and immune to the cyclic-reference
// problem that a pointer-graph representation of this schema would have
// (fields reference their parent type, types reference their fields, and
// resolvers reference both).

type TypeWalker struct {
	ID     TypeID
	Schema *Schema
}

func (s *Schema) Type(id TypeID) TypeWalker { return TypeWalker{ID: id, Schema: s} }

func (w TypeWalker) rec() *typeRecord { return &w.Schema.types[w.ID] }

func (w TypeWalker) Name() string        { return w.Schema.String(w.rec().name) }
func (w TypeWalker) Kind() TypeKind      { return w.rec().kind }
func (w TypeWalker) Description() string { return w.Schema.String(w.rec().description) }

func (w TypeWalker) Fields() []FieldWalker {
	rec := w.rec()
	out := make([]FieldWalker, len(rec.fields))
	for i, id := range rec.fields {
		out[i] = FieldWalker{ID: id, Schema: w.Schema}
	}
	return out
}

func (w TypeWalker) FieldByName(name string) (FieldWalker, bool) {
	for _, f := range w.Fields() {
		if f.Name() == name {
			return f, true
		}
	}
	return FieldWalker{}, false
}

// EnumValues returns an enum type's values in declaration order; nil for
// any other type kind.
func (w TypeWalker) EnumValues() []EnumValueWalker {
	rec := w.rec()
	out := make([]EnumValueWalker, len(rec.enumValues))
	for i := range rec.enumValues {
		out[i] = EnumValueWalker{rec: &rec.enumValues[i], Schema: w.Schema}
	}
	return out
}

// InputFields returns an input object type's fields sorted by name (the
// builder sorts every type's fields); empty for any other type kind.
func (w TypeWalker) InputFields() []FieldWalker {
	rec := w.rec()
	out := make([]FieldWalker, len(rec.inputFields))
	for i, id := range rec.inputFields {
		out[i] = FieldWalker{ID: id, Schema: w.Schema}
	}
	return out
}

func (w TypeWalker) Interfaces() []TypeID { return w.rec().interfaces }

func (w TypeWalker) PossibleTypes() []TypeID { return w.rec().possibleTypes }

// OneOf reports the type record's oneOf flag. Supergraph ingestion does not
// read @oneOf and the builder never sets the flag, so it is false for every
// type, including an input object declared with @oneOf.
func (w TypeWalker) OneOf() bool { return w.rec().oneOf }

// SpecifiedByURL returns a custom scalar's @specifiedBy URL, or "" if none.
func (w TypeWalker) SpecifiedByURL() string { return w.Schema.String(w.rec().specifiedByURL) }

func (w TypeWalker) Implements(iface TypeID) bool {
	for _, i := range w.rec().interfaces {
		if i == iface {
			return true
		}
	}
	return false
}

// EntityResolvers returns the resolvers that can fetch an entity of this
// type by key in the given subgraph, or nil if the type declares no
// resolvable key there.
func (w TypeWalker) EntityResolvers(sg SubgraphID) []ResolverID {
	return w.rec().entityResolvers[sg]
}

// HasEntityResolvers reports whether this type declares any resolvable key
// in any subgraph.
func (w TypeWalker) HasEntityResolvers() bool {
	return len(w.rec().entityResolvers) > 0
}

type FieldWalker struct {
	ID     FieldID
	Schema *Schema
}

func (s *Schema) Field(id FieldID) FieldWalker { return FieldWalker{ID: id, Schema: s} }

func (w FieldWalker) rec() *fieldRecord { return &w.Schema.fields[w.ID] }

func (w FieldWalker) Name() string     { return w.Schema.String(w.rec().name) }
func (w FieldWalker) Parent() TypeID   { return w.rec().parent }
func (w FieldWalker) Type() *TypeRef   { return w.rec().fieldType }
func (w FieldWalker) Description() string { return w.Schema.String(w.rec().description) }
func (w FieldWalker) Requires() FieldSetID { return w.rec().requires }
func (w FieldWalker) Provides() FieldSetID { return w.rec().provides }
func (w FieldWalker) OverrideFrom() SubgraphID { return w.rec().overrideFrom }
func (w FieldWalker) AuthDirectives() []DirectiveSiteID { return w.rec().authDirectives }
func (w FieldWalker) Deprecated() bool  { return w.rec().deprecated }
func (w FieldWalker) DeprecationReason() string { return w.Schema.String(w.rec().deprecation) }

// ResolvableIn returns the set of subgraphs that can resolve this field
// directly, each mapped to the resolver id that does so. Per the schema
// invariant (spec.md §3.1), this is always nonempty for a successfully
// built schema.
func (w FieldWalker) ResolvableIn() map[SubgraphID]ResolverID { return w.rec().resolvableIn }

func (w FieldWalker) ResolverIn(sg SubgraphID) (ResolverID, bool) {
	id, ok := w.rec().resolvableIn[sg]
	return id, ok
}

// EnumValueWalker views one value of an enum type. Unlike the other
// Walkers it holds a direct pointer into the arena rather than an id,
// since enum values have no id space of their own (types.go has no
// EnumValueID — they're only ever reached through their parent type).
type EnumValueWalker struct {
	rec    *enumValueRecord
	Schema *Schema
}

func (w EnumValueWalker) Name() string        { return w.Schema.String(w.rec.name) }
func (w EnumValueWalker) Description() string { return w.Schema.String(w.rec.description) }
func (w EnumValueWalker) Deprecated() bool    { return w.rec.deprecated }
func (w EnumValueWalker) DeprecationReason() string {
	return w.Schema.String(w.rec.deprecation)
}

type ResolverWalker struct {
	ID     ResolverID
	Schema *Schema
}

func (s *Schema) Resolver(id ResolverID) ResolverWalker { return ResolverWalker{ID: id, Schema: s} }

func (w ResolverWalker) rec() *resolverRecord { return &w.Schema.resolvs[w.ID] }

func (w ResolverWalker) Kind() ResolverKind   { return w.rec().kind }
func (w ResolverWalker) Subgraph() SubgraphID { return w.rec().subgraph }
func (w ResolverWalker) Field() FieldID       { return w.rec().field }
func (w ResolverWalker) Key() FieldSetID      { return w.rec().key }
func (w ResolverWalker) ExtensionName() string {
	return w.Schema.String(w.rec().extensionName)
}

type FieldSetWalker struct {
	ID     FieldSetID
	Schema *Schema
}

func (s *Schema) FieldSet(id FieldSetID) FieldSetWalker { return FieldSetWalker{ID: id, Schema: s} }

func (w FieldSetWalker) rec() *fieldSetRecord { return &w.Schema.sets[w.ID] }

func (w FieldSetWalker) On() TypeID { return w.rec().on }

func (w FieldSetWalker) Entries() []FieldSetEntryWalker {
	rec := w.rec()
	out := make([]FieldSetEntryWalker, len(rec.entries))
	for i, e := range rec.entries {
		out[i] = FieldSetEntryWalker{Field: e.field, Sub: e.sub, Schema: w.Schema}
	}
	return out
}

type FieldSetEntryWalker struct {
	Field  FieldID
	Sub    FieldSetID // 0 if this entry is a leaf selection
	Schema *Schema
}

func (e FieldSetEntryWalker) HasSub() bool { return e.Sub != 0 }

func (e FieldSetEntryWalker) SubSet() FieldSetWalker {
	return FieldSetWalker{ID: e.Sub, Schema: e.Schema}
}

type DirectiveSiteWalker struct {
	ID     DirectiveSiteID
	Schema *Schema
}

func (s *Schema) DirectiveSite(id DirectiveSiteID) DirectiveSiteWalker {
	return DirectiveSiteWalker{ID: id, Schema: s}
}

func (w DirectiveSiteWalker) rec() *directiveSiteRecord { return &w.Schema.sites[w.ID] }

func (w DirectiveSiteWalker) Kind() DirectiveSiteKind { return w.rec().kind }
func (w DirectiveSiteWalker) OnType() TypeID          { return w.rec().onType }
func (w DirectiveSiteWalker) OnField() FieldID        { return w.rec().onField }
func (w DirectiveSiteWalker) Directive() string       { return w.Schema.String(w.rec().directive) }
func (w DirectiveSiteWalker) Extension() string       { return w.Schema.String(w.rec().extension) }
func (w DirectiveSiteWalker) Requires() FieldSetID    { return w.rec().requires }
