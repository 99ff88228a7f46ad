package schema

// registerIntrospection synthesizes the standard GraphQL introspection
// meta-types (__Schema, __Type, __Field, __InputValue, __EnumValue,
// __Directive, __TypeKind, __DirectiveLocation) and adds __schema/__type to
// the query root, exactly as every conforming GraphQL server does — this
// isn't supergraph-specific, so it runs unconditionally rather than reading
// anything from the ingested document.
//
// Both synthetic fields are given a resolvableIn entry in a reserved virtual
// subgraph instead of being handled as a special case in
// internal/solution/internal/partition: the query planner treats them like
// any other field with exactly one subgraph able to serve it, and
// internal/introspection answers the partition addressed to that subgraph
// in-process (see its doc comment).
func (b *builder) registerIntrospection() {
	b.schema.subgraphs = append(b.schema.subgraphs, subgraphRecord{
		name: b.schema.InternString("__introspection"),
		kind: SubgraphVirtual,
	})
	b.introspectionSubgraph = SubgraphID(len(b.schema.subgraphs) - 1)
	b.schema.introspectionSubgraph = b.introspectionSubgraph

	scalarRef := func(name string) *TypeRef { return &TypeRef{Wrap: WrapNamed, Named: b.mustType(name)} }
	nonNull := func(t *TypeRef) *TypeRef { return &TypeRef{Wrap: WrapNonNull, OfType: t} }
	list := func(t *TypeRef) *TypeRef { return &TypeRef{Wrap: WrapList, OfType: t} }

	b.defineEnum("__TypeKind", "An enum describing what kind of type a given __Type is.", []string{
		"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL",
	})
	b.defineEnum("__DirectiveLocation", "A Directive can be adjacent to many parts of the GraphQL language.", []string{
		"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
		"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
		"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
		"INPUT_FIELD_DEFINITION",
	})

	b.defineObject("__InputValue", "Arguments provided to Fields or Directives and the input fields of an InputObject are represented as Input Values.", []simpleField{
		{"name", nonNull(scalarRef("String"))},
		{"description", scalarRef("String")},
		{"type", nonNull(scalarRef("__Type"))},
		{"defaultValue", scalarRef("String")},
		{"isDeprecated", nonNull(scalarRef("Boolean"))},
		{"deprecationReason", scalarRef("String")},
	})
	b.defineObject("__EnumValue", "One possible value for a given Enum. Enum values are unique values, not a placeholder for a string or numeric value.", []simpleField{
		{"name", nonNull(scalarRef("String"))},
		{"description", scalarRef("String")},
		{"isDeprecated", nonNull(scalarRef("Boolean"))},
		{"deprecationReason", scalarRef("String")},
	})
	b.defineObject("__Field", "Object and Interface types are described by a list of Fields, each of which has a name, potentially a list of arguments, and a return type.", []simpleField{
		{"name", nonNull(scalarRef("String"))},
		{"description", scalarRef("String")},
		{"args", nonNull(list(nonNull(scalarRef("__InputValue"))))},
		{"type", nonNull(scalarRef("__Type"))},
		{"isDeprecated", nonNull(scalarRef("Boolean"))},
		{"deprecationReason", scalarRef("String")},
	})
	b.defineObject("__Directive", "A Directive provides a way to describe alternate runtime execution and type validation behavior in a GraphQL document.", []simpleField{
		{"name", nonNull(scalarRef("String"))},
		{"description", scalarRef("String")},
		{"locations", nonNull(list(nonNull(scalarRef("__DirectiveLocation"))))},
		{"args", nonNull(list(nonNull(scalarRef("__InputValue"))))},
		{"isRepeatable", nonNull(scalarRef("Boolean"))},
	})
	b.defineObject("__Type", "The fundamental unit of any GraphQL Schema is the type.", []simpleField{
		{"kind", nonNull(scalarRef("__TypeKind"))},
		{"name", scalarRef("String")},
		{"description", scalarRef("String")},
		{"fields", list(nonNull(scalarRef("__Field")))},
		{"interfaces", list(nonNull(scalarRef("__Type")))},
		{"possibleTypes", list(nonNull(scalarRef("__Type")))},
		{"enumValues", list(nonNull(scalarRef("__EnumValue")))},
		{"inputFields", list(nonNull(scalarRef("__InputValue")))},
		{"ofType", scalarRef("__Type")},
		{"specifiedByURL", scalarRef("String")},
		{"isOneOf", scalarRef("Boolean")},
	})
	b.defineObject("__Schema", "A GraphQL Schema defines the capabilities of a GraphQL server.", []simpleField{
		{"description", scalarRef("String")},
		{"types", nonNull(list(nonNull(scalarRef("__Type"))))},
		{"queryType", nonNull(scalarRef("__Type"))},
		{"mutationType", scalarRef("__Type")},
		{"subscriptionType", scalarRef("__Type")},
		{"directives", nonNull(list(nonNull(scalarRef("__Directive"))))},
	})

	b.addIntrospectionQueryField("__schema", "Access the current type schema of this server.", nonNull(scalarRef("__Schema")), b.introspectionSubgraph)
	b.addIntrospectionQueryField("__type", "Request the type information of a single type.", scalarRef("__Type"), b.introspectionSubgraph)
}

// simpleField describes one meta-type field. Descriptions for these
// fixed, spec-defined introspection fields aren't stored on fieldRecord —
// only __schema/__type themselves (the two fields a real schema author
// actually sees in their own Query type) carry one, via
// addIntrospectionQueryField.
type simpleField struct {
	name string
	typ  *TypeRef
}

func (b *builder) mustType(name string) TypeID {
	id, ok := b.schema.typeByName[name]
	if !ok {
		b.fail("introspection: unknown type %q", name)
		return 0
	}
	return id
}

func (b *builder) defineEnum(name, description string, values []string) {
	rec := typeRecord{
		name:        b.schema.InternString(name),
		kind:        TypeKindEnum,
		description: b.schema.InternString(description),
	}
	for _, v := range values {
		rec.enumValues = append(rec.enumValues, enumValueRecord{name: b.schema.InternString(v)})
	}
	b.schema.types = append(b.schema.types, rec)
	b.schema.typeByName[name] = TypeID(len(b.schema.types) - 1)
}

func (b *builder) defineObject(name, description string, fields []simpleField) {
	rec := typeRecord{
		name:        b.schema.InternString(name),
		kind:        TypeKindObject,
		description: b.schema.InternString(description),
	}
	b.schema.types = append(b.schema.types, rec)
	id := TypeID(len(b.schema.types) - 1)
	b.schema.typeByName[name] = id

	ids := make([]FieldID, 0, len(fields))
	for _, f := range fields {
		// Every meta-type field gets its own ResolverIntrospection resolver
		// in the reserved subgraph, same as __schema/__type: a client
		// selecting, say, __schema { types { name } } makes __Type.name
		// part of the operation's selection tree, and internal/solution's
		// bindField requires a nonempty resolvableIn for any field it
		// walks, introspection or not.
		b.schema.resolvs = append(b.schema.resolvs, resolverRecord{kind: ResolverIntrospection, subgraph: b.introspectionSubgraph})
		resolverID := ResolverID(len(b.schema.resolvs) - 1)

		b.schema.fields = append(b.schema.fields, fieldRecord{
			name:         b.schema.InternString(f.name),
			parent:       id,
			fieldType:    f.typ,
			resolvableIn: map[SubgraphID]ResolverID{b.introspectionSubgraph: resolverID},
		})
		fieldID := FieldID(len(b.schema.fields) - 1)
		b.schema.resolvs[resolverID].field = fieldID
		ids = append(ids, fieldID)
	}
	b.schema.types[id].fields = ids
}

func (b *builder) addIntrospectionQueryField(name, description string, typ *TypeRef, sg SubgraphID) {
	if b.schema.queryType == 0 {
		b.fail("introspection: schema has no query root type")
		return
	}
	b.schema.resolvs = append(b.schema.resolvs, resolverRecord{kind: ResolverIntrospection, subgraph: sg})
	resolverID := ResolverID(len(b.schema.resolvs) - 1)

	b.schema.fields = append(b.schema.fields, fieldRecord{
		name:         b.schema.InternString(name),
		parent:       b.schema.queryType,
		description:  b.schema.InternString(description),
		fieldType:    typ,
		resolvableIn: map[SubgraphID]ResolverID{sg: resolverID},
	})
	fieldID := FieldID(len(b.schema.fields) - 1)
	b.schema.resolvs[resolverID].field = fieldID

	qrec := &b.schema.types[b.schema.queryType]
	qrec.fields = append(qrec.fields, fieldID)
}
