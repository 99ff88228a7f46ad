package schema

import (
	"fmt"
	"sort"

	language "github.com/fedgw/gateway/internal/language"
	sg "github.com/fedgw/gateway/internal/supergraph"
)

// builder accumulates diagnostics while lowering a supergraph.Document into
// the immutable arena Schema, mirroring the teacher's violation-accumulation
// build style.
type builder struct {
	schema      *Schema
	doc         *sg.Document
	diagnostics []string

	// introspectionSubgraph caches the reserved virtual subgraph registered
	// by registerIntrospection so every meta-type field it defines can be
	// given a resolvableIn entry without threading the id through every
	// helper call.
	introspectionSubgraph SubgraphID
}

// BuildFromSupergraph lowers an ingested supergraph document into an
// immutable, arena-addressed Schema. It is the concrete realization of
// spec.md §4.1's "Build from a composed supergraph SDL plus gateway
// configuration" contract (gateway configuration is layered in separately
// by internal/config; this entry point only needs the SDL-derived
// document).
func BuildFromSupergraph(doc *sg.Document) (*Schema, error) {
	b := &builder{schema: newSchema(), doc: doc}
	b.registerBuiltinScalars()
	b.registerSubgraphs()
	b.registerExtensions()
	b.registerTypeShells()
	b.populateRootTypes()
	b.populateFields()
	b.populateKeysAndResolvers()
	b.registerIntrospection()
	b.populateDirectiveSites()
	b.validate()

	if len(b.diagnostics) > 0 {
		return nil, &SchemaValidationError{Diagnostics: b.diagnostics}
	}
	return b.schema, nil
}

func (b *builder) fail(format string, args ...any) {
	b.diagnostics = append(b.diagnostics, fmt.Sprintf(format, args...))
}

type builtinScalar struct {
	name, description, specifiedByURL string
}

var builtinScalars = []builtinScalar{
	{"String", "The String scalar type represents textual data, represented as UTF-8 character sequences.", "https://spec.graphql.org/October2021/#sec-String"},
	{"Int", "The Int scalar type represents non-fractional signed whole numeric values.", "https://spec.graphql.org/October2021/#sec-Int"},
	{"Float", "The Float scalar type represents signed double-precision fractional values.", "https://spec.graphql.org/October2021/#sec-Float"},
	{"Boolean", "The Boolean scalar type represents true or false.", "https://spec.graphql.org/October2021/#sec-Boolean"},
	{"ID", "The ID scalar type represents a unique identifier, often used to refetch an object or as a key for caching.", "https://spec.graphql.org/October2021/#sec-ID"},
}

// registerBuiltinScalars pre-registers the five built-in GraphQL scalars so
// field types can reference them even when the supergraph SDL, as is
// conventional, never declares them itself. A built-in name the document
// does declare is skipped here; registerTypeShells, which runs after this,
// registers it from the document's own declaration instead.
func (b *builder) registerBuiltinScalars() {
	for _, bs := range builtinScalars {
		if _, exists := b.doc.Types[bs.name]; exists {
			continue
		}
		rec := typeRecord{
			name:           b.schema.InternString(bs.name),
			kind:           TypeKindScalar,
			description:    b.schema.InternString(bs.description),
			specifiedByURL: b.schema.InternString(bs.specifiedByURL),
		}
		b.schema.types = append(b.schema.types, rec)
		id := TypeID(len(b.schema.types) - 1)
		b.schema.typeByName[bs.name] = id
	}
}

func (b *builder) registerSubgraphs() {
	for _, sd := range b.doc.Subgraphs {
		rec := subgraphRecord{
			name:    b.schema.InternString(sd.Name),
			kind:    SubgraphGraphQL,
			url:     sd.URL,
			timeout: sd.Timeout,
		}
		if sd.URL == "" {
			rec.kind = SubgraphVirtual
		}
		b.schema.subgraphs = append(b.schema.subgraphs, rec)
		id := SubgraphID(len(b.schema.subgraphs) - 1)
		b.schema.subgraphByName[sd.Name] = id
	}
}

func (b *builder) registerExtensions() {
	for name, e := range b.doc.Extensions {
		b.schema.extensions[name] = &Extension{
			Name:                e.Name,
			URL:                 e.URL,
			IsFieldResolver:     e.IsFieldResolver,
			IsSelectionResolver: e.IsSelectionResolver,
			IsSubqueryResolver:  e.IsSubqueryResolver,
			IsAuthorizer:        e.IsAuthorizer,
			IsAuthenticator:     e.IsAuthenticator,
		}
	}
}

// registerTypeShells creates a TypeID for every named type up front so that
// field types, which may reference a type not yet fully populated (forward
// references are routine in SDL), can be resolved in a single further pass.
func (b *builder) registerTypeShells() {
	names := make([]string, 0, len(b.doc.Types))
	for name := range b.doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		td := b.doc.Types[name]
		rec := typeRecord{
			name:        b.schema.InternString(td.Name),
			description: b.schema.InternString(td.Description),
		}
		switch td.Kind {
		case sg.KindScalar:
			rec.kind = TypeKindScalar
		case sg.KindObject:
			rec.kind = TypeKindObject
		case sg.KindInterface:
			rec.kind = TypeKindInterface
		case sg.KindUnion:
			rec.kind = TypeKindUnion
		case sg.KindEnum:
			rec.kind = TypeKindEnum
		case sg.KindInputObject:
			rec.kind = TypeKindInputObject
		}
		b.schema.types = append(b.schema.types, rec)
		id := TypeID(len(b.schema.types) - 1)
		b.schema.typeByName[td.Name] = id
	}
}

func (b *builder) populateRootTypes() {
	if id, ok := b.schema.typeByName[b.doc.QueryType]; ok {
		b.schema.queryType = id
	}
	if id, ok := b.schema.typeByName[b.doc.MutationType]; ok {
		b.schema.mutationType = id
	}
	if id, ok := b.schema.typeByName[b.doc.SubscriptionType]; ok {
		b.schema.subscriptionType = id
	}
}

func (b *builder) resolveTypeID(name string) TypeID {
	if id, ok := b.schema.typeByName[name]; ok {
		return id
	}
	b.fail("unknown type %q", name)
	return 0
}

// convertTypeRef converts a gqlparser AST type expression into a schema
// TypeRef. NonNull wraps outermost in the AST (t.NonNull == true means "this
// node, non-null"), so the NonNull wrapper is peeled off first and the
// remaining named/list shape converted underneath it.
func (b *builder) convertTypeRef(t *language.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		inner := &language.Type{NamedType: t.NamedType, Elem: t.Elem}
		return &TypeRef{Wrap: WrapNonNull, OfType: b.convertTypeRef(inner)}
	}
	if t.NamedType != "" {
		return &TypeRef{Wrap: WrapNamed, Named: b.resolveTypeID(t.NamedType)}
	}
	return &TypeRef{Wrap: WrapList, OfType: b.convertTypeRef(t.Elem)}
}

func (b *builder) populateFields() {
	names := make([]string, 0, len(b.doc.Types))
	for name := range b.doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		td := b.doc.Types[name]
		parent := b.schema.typeByName[name]
		if td.Fields == nil {
			continue
		}
		fieldNames := make([]string, 0, len(td.Fields))
		for fn := range td.Fields {
			fieldNames = append(fieldNames, fn)
		}
		sort.Strings(fieldNames)

		var ids []FieldID
		for _, fn := range fieldNames {
			fd := td.Fields[fn]
			rec := fieldRecord{
				name:         b.schema.InternString(fd.Name),
				parent:       parent,
				fieldType:    b.convertTypeRef(fd.Type),
				resolvableIn: map[SubgraphID]ResolverID{},
				deprecated:   fd.Deprecated != "",
			}
			if fd.Deprecated != "" {
				rec.deprecation = b.schema.InternString(fd.Deprecated)
			}
			b.schema.fields = append(b.schema.fields, rec)
			id := FieldID(len(b.schema.fields) - 1)
			ids = append(ids, id)
		}
		rec := &b.schema.types[parent]
		rec.fields = ids
		if td.Kind == sg.KindInputObject {
			rec.inputFields = ids
		}
		for _, iface := range td.Interfaces {
			rec.interfaces = append(rec.interfaces, b.resolveTypeID(iface))
		}
	}

	// Union possible types and interface implementors, once every TypeID exists.
	for _, name := range names {
		td := b.doc.Types[name]
		if td.Kind != sg.KindUnion {
			continue
		}
		id := b.schema.typeByName[name]
		rec := &b.schema.types[id]
		for _, member := range td.PossibleTypes {
			rec.possibleTypes = append(rec.possibleTypes, b.resolveTypeID(member))
		}
	}
	for _, name := range names {
		td := b.doc.Types[name]
		if td.Kind != sg.KindObject {
			continue
		}
		oid := b.schema.typeByName[name]
		for _, iface := range td.Interfaces {
			iid := b.resolveTypeID(iface)
			irec := &b.schema.types[iid]
			irec.possibleTypes = append(irec.possibleTypes, oid)
		}
	}
}

// populateKeysAndResolvers assigns, for every field, the per-subgraph
// resolvability set and the resolver backing each entry; and for every
// keyed object/interface type, the entity resolvers that can fetch it by
// key.
func (b *builder) populateKeysAndResolvers() {
	names := make([]string, 0, len(b.doc.Types))
	for name := range b.doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		td := b.doc.Types[name]
		parent, ok := b.schema.typeByName[name]
		if !ok || td.Fields == nil || td.Kind == sg.KindInputObject {
			continue
		}
		subgraphsOwningType := b.subgraphsForKeys(td.Keys)

		fieldNames := make([]string, 0, len(td.Fields))
		for fn := range td.Fields {
			fieldNames = append(fieldNames, fn)
		}
		sort.Strings(fieldNames)
		for _, fn := range fieldNames {
			fd := td.Fields[fn]
			fw, _ := b.schema.Type(parent).FieldByName(fn)

			if len(fd.JoinFields) == 0 {
				// No explicit per-subgraph annotation: available wherever the
				// parent type itself is available (root-operation fields
				// typically fall here too, when the composed schema elides
				// redundant @join__field — see DESIGN.md).
				for sgName := range subgraphsOwningType {
					b.addRootOrTypeResolver(fw, sgName)
				}
				if len(subgraphsOwningType) == 0 {
					for _, s := range b.doc.Subgraphs {
						b.addRootOrTypeResolver(fw, s.Name)
					}
				}
				continue
			}

			for _, jf := range fd.JoinFields {
				if jf.External {
					continue
				}
				resolverID := b.addRootOrTypeResolver(fw, jf.Graph)
				if resolverID == 0 {
					continue
				}
				if jf.Requires != nil {
					reqSet := b.convertFieldSet(parent, jf.Requires)
					rec := &b.schema.fields[fw.ID]
					rec.requires = b.schema.unionFieldSets(rec.requires, reqSet)
				}
				if jf.Provides != nil {
					outType := fw.Type().NamedType()
					provSet := b.convertFieldSet(outType, jf.Provides)
					rec := &b.schema.fields[fw.ID]
					rec.provides = b.schema.unionFieldSets(rec.provides, provSet)
				}
				if jf.OverrideFrom != "" {
					if sgID, ok := b.schema.subgraphByName[jf.OverrideFrom]; ok {
						b.schema.fields[fw.ID].overrideFrom = sgID
					}
				}
			}
		}

		for _, key := range td.Keys {
			if !key.Resolvable || key.Fields == nil {
				continue
			}
			keySet := b.convertFieldSet(parent, key.Fields)
			graphs := []string{key.Graph}
			if key.Graph == "" {
				for _, s := range b.doc.Subgraphs {
					graphs = append(graphs, s.Name)
				}
			}
			for _, gname := range graphs {
				sgID, ok := b.schema.subgraphByName[gname]
				if !ok {
					continue
				}
				b.schema.resolvs = append(b.schema.resolvs, resolverRecord{
					kind:     ResolverEntity,
					subgraph: sgID,
					field:    0,
					key:      keySet,
				})
				resolverID := ResolverID(len(b.schema.resolvs) - 1)
				// Entity resolvers are referenced by the solution-space
				// builder directly from the type's key list, not from a
				// single field's resolvableIn map (a type may need an
				// entity fetch to serve *any* of its fields in that
				// subgraph). internal/solution reads them back via
				// TypeWalker.EntityResolvers(subgraph).
				rec := &b.schema.types[parent]
				if rec.entityResolvers == nil {
					rec.entityResolvers = map[SubgraphID][]ResolverID{}
				}
				rec.entityResolvers[sgID] = append(rec.entityResolvers[sgID], resolverID)
			}
		}
	}
}

func (b *builder) subgraphsForKeys(keys []sg.KeyDecl) map[string]bool {
	out := map[string]bool{}
	for _, k := range keys {
		if k.Graph != "" {
			out[k.Graph] = true
		}
	}
	return out
}

func (b *builder) addRootOrTypeResolver(fw FieldWalker, graphName string) ResolverID {
	sgID, ok := b.schema.subgraphByName[graphName]
	if !ok {
		b.fail("field %s references unknown subgraph %q", fw.Name(), graphName)
		return 0
	}
	b.schema.resolvs = append(b.schema.resolvs, resolverRecord{
		kind:     ResolverRootField,
		subgraph: sgID,
		field:    fw.ID,
	})
	rid := ResolverID(len(b.schema.resolvs) - 1)
	b.schema.fields[fw.ID].resolvableIn[sgID] = rid
	return rid
}

func (b *builder) convertFieldSet(on TypeID, fs *sg.FieldSet) FieldSetID {
	if fs == nil || len(fs.Selections) == 0 {
		return 0
	}
	entries := make([]fieldSetEntry, 0, len(fs.Selections))
	for _, sel := range fs.Selections {
		fw, ok := b.schema.Type(on).FieldByName(sel.Name)
		if !ok {
			b.fail("field set references unknown field %s.%s", b.schema.Type(on).Name(), sel.Name)
			continue
		}
		var sub FieldSetID
		if sel.Sub != nil {
			sub = b.convertFieldSet(fw.Type().NamedType(), sel.Sub)
		}
		entries = append(entries, fieldSetEntry{field: fw.ID, sub: sub})
	}
	return b.schema.internFieldSet(on, entries)
}

func (b *builder) populateDirectiveSites() {
	names := make([]string, 0, len(b.doc.Types))
	for name := range b.doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		td := b.doc.Types[name]
		parent, ok := b.schema.typeByName[name]
		if !ok || td.Fields == nil {
			continue
		}
		fieldNames := make([]string, 0, len(td.Fields))
		for fn := range td.Fields {
			fieldNames = append(fieldNames, fn)
		}
		sort.Strings(fieldNames)
		for _, fn := range fieldNames {
			fd := td.Fields[fn]
			if len(fd.AuthDirectives) == 0 {
				continue
			}
			fw, _ := b.schema.Type(parent).FieldByName(fn)
			for _, ad := range fd.AuthDirectives {
				rec := directiveSiteRecord{
					kind:      DirectiveSiteField,
					onType:    parent,
					onField:   fw.ID,
					directive: b.schema.InternString(ad.Name),
					extension: b.schema.InternString(ad.Extension),
				}
				b.schema.sites = append(b.schema.sites, rec)
				siteID := DirectiveSiteID(len(b.schema.sites) - 1)
				frec := &b.schema.fields[fw.ID]
				frec.authDirectives = append(frec.authDirectives, siteID)
			}
		}
	}
}

func (b *builder) validate() {
	for i := 1; i < len(b.schema.fields); i++ {
		f := &b.schema.fields[i]
		if b.schema.types[f.parent].kind == TypeKindInputObject {
			continue
		}
		if len(f.resolvableIn) == 0 {
			typeName := b.schema.Type(f.parent).Name()
			fieldName := b.schema.String(f.name)
			b.fail("field %s.%s has no subgraph able to resolve it", typeName, fieldName)
		}
	}
}
