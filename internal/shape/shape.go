// Package shape compiles a bound operation's selection tree into response
// shapes: the structural description the execution coordinator uses to
// assemble a subgraph's partial JSON values into the client's final
// response tree, independent of which subgraph actually produced each
// field (spec.md §4.6).
package shape

import (
	"github.com/fedgw/gateway/internal/operation"
	"github.com/fedgw/gateway/internal/schema"
)

// Kind distinguishes the three response-shape flavors spec.md §4.6 names.
type Kind uint8

const (
	// Concrete: every selection applies to exactly one object type, known
	// statically (no interface/union in the path).
	Concrete Kind = iota + 1
	// Polymorphic: the parent is an interface or union; which fields apply
	// depends on the concrete __typename returned at runtime.
	Polymorphic
	// Derived: the field's value is synthesized from sibling fields already
	// present in the response rather than fetched from any subgraph (e.g.
	// a federation key rehydrated into a selected field outright).
	Derived
)

// Shape describes how to read one selection set's worth of response data.
type Shape struct {
	Kind Kind

	// Fields is populated for Concrete shapes: one entry per selected
	// response key, in client order.
	Fields []FieldShape

	// ByType is populated for Polymorphic shapes: the field list to use
	// once __typename is known, one entry per possible type of the
	// abstract type. There is no fallback entry for a type outside that
	// list.
	ByType map[schema.TypeID][]FieldShape
}

type FieldShape struct {
	ResponseKey string
	SchemaField schema.FieldID
	IsTypename  bool
	Nullable    bool
	IsList      bool
	Sub         *Shape // nil for leaf/scalar fields
}

// Compile walks a bound operation's selection tree and produces the Shape
// for its root selection.
func Compile(s *schema.Schema, op *operation.Operation) *Shape {
	return compileSelection(s, op, op.RootType, op.Root)
}

func compileSelection(s *schema.Schema, op *operation.Operation, parentType schema.TypeID, sel *operation.SelectionSet) *Shape {
	if sel == nil {
		return nil
	}

	tw := s.Type(parentType)
	polymorphic := tw.Kind() == schema.TypeKindInterface || tw.Kind() == schema.TypeKindUnion

	if !polymorphic {
		return &Shape{Kind: Concrete, Fields: compileConcreteFields(s, op, parentType, sel)}
	}

	byType := map[schema.TypeID][]FieldShape{}
	for _, possible := range tw.PossibleTypes() {
		byType[possible] = compileConcreteFields(s, op, possible, sel)
	}
	return &Shape{Kind: Polymorphic, ByType: byType}
}

// compileConcreteFields flattens every FieldGroup entry applicable to
// concreteType (an unconditional entry, or one whose TypeCondition is
// concreteType or a supertype concreteType implements) into an ordered
// field list.
func compileConcreteFields(s *schema.Schema, op *operation.Operation, concreteType schema.TypeID, sel *operation.SelectionSet) []FieldShape {
	var out []FieldShape
	for _, group := range sel.Groups {
		for _, entry := range group.Entries {
			if !applies(s, concreteType, entry.TypeCondition) {
				continue
			}
			f := op.Field(entry.Field)
			if f.SchemaField() == 0 {
				out = append(out, FieldShape{ResponseKey: group.ResponseKey, IsTypename: true})
				continue
			}
			fw := s.Field(f.SchemaField())
			ref := fw.Type()
			fs := FieldShape{
				ResponseKey: group.ResponseKey,
				SchemaField: f.SchemaField(),
				Nullable:    !ref.IsNonNull(),
				IsList:      isListType(ref),
			}
			fs.Sub = compileSelection(s, op, ref.NamedType(), f.Selection())
			out = append(out, fs)
		}
	}
	return out
}

func applies(s *schema.Schema, concreteType, condition schema.TypeID) bool {
	if condition == 0 || condition == concreteType {
		return true
	}
	return s.Type(concreteType).Implements(condition)
}

func isListType(ref *schema.TypeRef) bool {
	for ref != nil {
		if ref.Wrap == schema.WrapList {
			return true
		}
		if ref.Wrap == schema.WrapNamed {
			return false
		}
		ref = ref.OfType
	}
	return false
}
