package operation

import (
	"fmt"

	language "github.com/fedgw/gateway/internal/language"
	sch "github.com/fedgw/gateway/internal/schema"
)

// binder holds the state threaded through one Bind call: the schema being
// bound against, the parsed query document (for fragment lookup), the
// concrete variable values this invocation supplies (used to evaluate
// @skip/@include now, since the resulting field tree is specific to this
// set of variables), and the arena under construction.
type binder struct {
	schema    *sch.Schema
	document  *language.QueryDocument
	variables map[string]any

	fields []boundFieldRecord
}

// Bind resolves a parsed query document plus concrete variable values into
// an Operation: a merged, deduplicated, skip/include-evaluated selection
// tree addressed against the schema. Document parsing and validation
// themselves are out of scope (spec.md §1 Non-goals); Bind assumes doc is a
// syntactically valid GraphQL document that has already passed schema
// validation by its caller.
func Bind(schema *sch.Schema, doc *language.QueryDocument, operationName string, variables map[string]any) (*Operation, error) {
	opDef := doc.Operations.ForName(operationName)
	if opDef == nil {
		if operationName != "" {
			return nil, fmt.Errorf("operation %q not found", operationName)
		}
		if len(doc.Operations) != 1 {
			return nil, fmt.Errorf("operation name is required when a document has more than one operation")
		}
		opDef = doc.Operations[0]
	}

	kind := Query
	var rootType sch.TypeID
	switch opDef.Operation {
	case language.Mutation:
		kind = Mutation
		rootType = schema.MutationType()
	case language.Subscription:
		kind = Subscription
		rootType = schema.SubscriptionType()
	default:
		rootType = schema.QueryType()
	}
	if rootType.IsZero() {
		return nil, fmt.Errorf("schema does not support %s operations", kind)
	}

	b := &binder{schema: schema, document: doc, variables: variables, fields: make([]boundFieldRecord, 1)}

	varDecls, err := b.bindVariableDeclarations(schema, opDef.VariableDefinitions)
	if err != nil {
		return nil, err
	}

	root, err := b.bindSelectionSet(rootType, opDef.SelectionSet)
	if err != nil {
		return nil, err
	}

	op := &Operation{
		Kind:      kind,
		Name:      opDef.Name,
		RootType:  rootType,
		Root:      root,
		Variables: varDecls,
		fields:    b.fields,
	}
	return op, nil
}

func (b *binder) bindVariableDeclarations(schema *sch.Schema, defs language.VariableDefinitionList) ([]VariableDecl, error) {
	decls := make([]VariableDecl, 0, len(defs))
	for _, d := range defs {
		ref, err := typeRefFromAST(schema, d.Type)
		if err != nil {
			return nil, fmt.Errorf("variable $%s: %w", d.Variable, err)
		}
		decl := VariableDecl{Name: d.Variable, Type: ref}
		if d.DefaultValue != nil {
			decl.DefaultValue = b.bindValue(d.DefaultValue)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// typeRefFromAST converts a gqlparser AST type expression into a
// schema.TypeRef, mirroring internal/schema/builder.go's convertTypeRef
// (kept as a small separate copy here since that one is unexported and
// operation binding happens after the schema is already built immutable).
func typeRefFromAST(schema *sch.Schema, t *language.Type) (*sch.TypeRef, error) {
	if t == nil {
		return nil, nil
	}
	if t.NonNull {
		inner := &language.Type{NamedType: t.NamedType, Elem: t.Elem}
		of, err := typeRefFromAST(schema, inner)
		if err != nil {
			return nil, err
		}
		return &sch.TypeRef{Wrap: sch.WrapNonNull, OfType: of}, nil
	}
	if t.NamedType != "" {
		id, ok := schema.TypeByName(t.NamedType)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", t.NamedType)
		}
		return &sch.TypeRef{Wrap: sch.WrapNamed, Named: id}, nil
	}
	of, err := typeRefFromAST(schema, t.Elem)
	if err != nil {
		return nil, err
	}
	return &sch.TypeRef{Wrap: sch.WrapList, OfType: of}, nil
}

func (b *binder) bindSelectionSet(parentType sch.TypeID, sel language.SelectionSet) (*SelectionSet, error) {
	type groupKey = string
	order := make([]string, 0, len(sel))
	groups := make(map[groupKey]*FieldGroup)

	var walk func(set language.SelectionSet, typeCondition sch.TypeID) error
	walk = func(set language.SelectionSet, typeCondition sch.TypeID) error {
		for _, s := range set {
			switch node := s.(type) {
			case *language.Field:
				if !b.shouldInclude(node.Directives) {
					continue
				}
				responseKey := node.Alias
				if responseKey == "" {
					responseKey = node.Name
				}
				fid, err := b.bindField(parentType, typeCondition, node)
				if err != nil {
					return err
				}
				g, ok := groups[responseKey]
				if !ok {
					g = &FieldGroup{ResponseKey: responseKey}
					groups[responseKey] = g
					order = append(order, responseKey)
				}
				g.Entries = append(g.Entries, FieldGroupEntry{TypeCondition: typeCondition, Field: fid})

			case *language.InlineFragment:
				if !b.shouldInclude(node.Directives) {
					continue
				}
				cond := typeCondition
				if node.TypeCondition != "" {
					id, ok := b.schema.TypeByName(node.TypeCondition)
					if !ok {
						return fmt.Errorf("unknown type condition %q", node.TypeCondition)
					}
					cond = id
				}
				if err := walk(node.SelectionSet, cond); err != nil {
					return err
				}

			case *language.FragmentSpread:
				if !b.shouldInclude(node.Directives) {
					continue
				}
				fd := b.document.Fragments.ForName(node.Name)
				if fd == nil {
					return fmt.Errorf("unknown fragment %q", node.Name)
				}
				if !b.shouldInclude(fd.Directives) {
					continue
				}
				cond := typeCondition
				if fd.TypeCondition != "" {
					id, ok := b.schema.TypeByName(fd.TypeCondition)
					if !ok {
						return fmt.Errorf("unknown type condition %q", fd.TypeCondition)
					}
					cond = id
				}
				if err := walk(fd.SelectionSet, cond); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(sel, 0); err != nil {
		return nil, err
	}

	out := &SelectionSet{Groups: make([]FieldGroup, 0, len(order))}
	for _, key := range order {
		out.Groups = append(out.Groups, *groups[key])
	}
	return out, nil
}

func (b *binder) bindField(parentType, typeCondition sch.TypeID, node *language.Field) (FieldID, error) {
	lookupType := parentType
	if typeCondition != 0 {
		lookupType = typeCondition
	}

	var schemaFieldID sch.FieldID
	if node.Name == "__typename" {
		// Meta field: no backing schema.FieldID; left zero, resolved
		// structurally by the shape compiler rather than by any resolver.
	} else {
		fw, ok := b.schema.Type(lookupType).FieldByName(node.Name)
		if !ok {
			return 0, fmt.Errorf("unknown field %s.%s", b.schema.Type(lookupType).Name(), node.Name)
		}
		schemaFieldID = fw.ID
	}

	args := make([]BoundArgument, 0, len(node.Arguments))
	for _, a := range node.Arguments {
		args = append(args, BoundArgument{Name: a.Name, Value: b.bindValue(a.Value)})
	}

	var selection *SelectionSet
	if len(node.SelectionSet) > 0 {
		var childParent sch.TypeID
		if schemaFieldID != 0 {
			childParent = b.schema.Field(schemaFieldID).Type().NamedType()
		}
		sub, err := b.bindSelectionSet(childParent, node.SelectionSet)
		if err != nil {
			return 0, err
		}
		selection = sub
	}

	responseKey := node.Alias
	if responseKey == "" {
		responseKey = node.Name
	}

	b.fields = append(b.fields, boundFieldRecord{
		responseKey: responseKey,
		schemaField: schemaFieldID,
		parentType:  lookupType,
		arguments:   args,
		selection:   selection,
	})
	return FieldID(len(b.fields) - 1), nil
}

func (b *binder) shouldInclude(dirs language.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil {
		if v, ok := b.boolArg(d, "if"); ok && v {
			return false
		}
	}
	if d := dirs.ForName("include"); d != nil {
		if v, ok := b.boolArg(d, "if"); ok && !v {
			return false
		}
	}
	return true
}

func (b *binder) boolArg(d *language.Directive, name string) (bool, bool) {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return false, false
	}
	v := b.bindValue(arg.Value)
	switch v.Kind {
	case ValueBoolean:
		return v.Raw == "true", true
	case ValueVariable:
		if raw, ok := b.variables[v.VariableName]; ok {
			if bv, ok := raw.(bool); ok {
				return bv, true
			}
		}
		return false, false
	default:
		return false, false
	}
}

// bindValue converts an AST value into a QueryInputValue, preserving
// variable references rather than resolving them: the only place variable
// values are consulted during binding is shouldInclude/boolArg, since
// @skip/@include decides which fields exist in the bound tree at all.
func (b *binder) bindValue(v *language.Value) QueryInputValue {
	if v == nil {
		return QueryInputValue{Kind: ValueNull}
	}
	switch v.Kind {
	case language.Variable:
		return QueryInputValue{Kind: ValueVariable, VariableName: v.Raw}
	case language.IntValue:
		return QueryInputValue{Kind: ValueInt, Raw: v.Raw}
	case language.FloatValue:
		return QueryInputValue{Kind: ValueFloat, Raw: v.Raw}
	case language.StringValue, language.BlockValue:
		return QueryInputValue{Kind: ValueString, Raw: v.Raw}
	case language.BooleanValue:
		return QueryInputValue{Kind: ValueBoolean, Raw: v.Raw}
	case language.NullValue:
		return QueryInputValue{Kind: ValueNull}
	case language.EnumValue:
		return QueryInputValue{Kind: ValueEnum, Raw: v.Raw}
	case language.ListValue:
		list := make([]QueryInputValue, 0, len(v.Children))
		for _, c := range v.Children {
			list = append(list, b.bindValue(c.Value))
		}
		return QueryInputValue{Kind: ValueList, List: list}
	case language.ObjectValue:
		obj := make([]ObjectEntry, 0, len(v.Children))
		for _, c := range v.Children {
			obj = append(obj, ObjectEntry{Name: c.Name, Value: b.bindValue(c.Value)})
		}
		return QueryInputValue{Kind: ValueObject, Object: obj}
	default:
		return QueryInputValue{Kind: ValueNull}
	}
}
