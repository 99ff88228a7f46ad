// Package introspection answers Query.__schema and Query.__type
// selections entirely in-process.
//
// internal/schema synthesizes the standard introspection meta-types
// (__Schema, __Type, __Field, ...) and gives every one of their fields a
// resolvableIn entry in a reserved virtual subgraph
// (schema.Schema.IntrospectionSubgraph). That makes __schema/__type just
// another field the planner routes to a subgraph like any other — the
// only gateway-specific piece is a Runtime willing to answer a
// SubgraphRequest addressed to that subgraph by reading the schema
// directly instead of dispatching over the network.
package introspection

import (
	"context"
	"fmt"

	executor "github.com/fedgw/gateway/internal/executor"
	language "github.com/fedgw/gateway/internal/language"
	schema "github.com/fedgw/gateway/internal/schema"
)

// Runtime evaluates partitions addressed to a schema's introspection
// subgraph. It holds no state beyond the schema being introspected.
type Runtime struct {
	Schema *schema.Schema
}

func NewRuntime(sch *schema.Schema) *Runtime { return &Runtime{Schema: sch} }

var _ executor.Runtime = (*Runtime)(nil)

// ExecutePartition parses the rendered partition document and evaluates
// its root selections (__schema and/or __type) against r.Schema. Every
// downstream object is resolved selection-driven, not eagerly: __Type's
// fields/ofType can recurse back into __Type itself, so only following
// what the client actually asked for keeps evaluation finite.
func (r *Runtime) ExecutePartition(ctx context.Context, req executor.SubgraphRequest) (executor.SubgraphResponse, error) {
	doc, err := language.ParseQuery(req.Document)
	if err != nil {
		return executor.SubgraphResponse{}, fmt.Errorf("introspection: parse partition document: %w", err)
	}
	if len(doc.Operations) == 0 {
		return executor.SubgraphResponse{}, fmt.Errorf("introspection: partition document has no operation")
	}
	op := doc.Operations[0]

	data := make(map[string]any, len(op.SelectionSet))
	for _, f := range flatten(op.SelectionSet, doc.Fragments) {
		v, err := r.resolveRoot(f, doc.Fragments)
		if err != nil {
			return executor.SubgraphResponse{}, err
		}
		data[f.ResponseKey()] = v
	}
	return executor.SubgraphResponse{Data: data}, nil
}

func (r *Runtime) resolveRoot(f *language.Field, frags []*language.FragmentDefinition) (any, error) {
	switch f.Name {
	case "__schema":
		return r.resolveSchema(f.SelectionSet, frags), nil
	case "__type":
		name, _ := stringArg(f, "name")
		id, ok := r.Schema.TypeByName(name)
		if !ok {
			return nil, nil
		}
		return r.resolveType(&schema.TypeRef{Wrap: schema.WrapNamed, Named: id}, f.SelectionSet, frags), nil
	default:
		return nil, fmt.Errorf("introspection: unsupported root field %q", f.Name)
	}
}

func (r *Runtime) resolveSchema(set language.SelectionSet, frags []*language.FragmentDefinition) map[string]any {
	out := map[string]any{}
	for _, f := range flatten(set, frags) {
		switch f.Name {
		case "description":
			// The composed supergraph has no schema-level description slot
			// (schema.Schema carries per-type/per-field descriptions only).
			out[f.ResponseKey()] = nil
		case "types":
			out[f.ResponseKey()] = r.resolveAllTypes(f.SelectionSet, frags)
		case "queryType":
			out[f.ResponseKey()] = r.resolveType(&schema.TypeRef{Wrap: schema.WrapNamed, Named: r.Schema.QueryType()}, f.SelectionSet, frags)
		case "mutationType":
			out[f.ResponseKey()] = r.resolveRootTypeOrNull(r.Schema.MutationType(), f.SelectionSet, frags)
		case "subscriptionType":
			out[f.ResponseKey()] = r.resolveRootTypeOrNull(r.Schema.SubscriptionType(), f.SelectionSet, frags)
		case "directives":
			// internal/schema only models directive *call sites*
			// (Schema.DirectiveSites, used for authorization planning), not a
			// registry of directive definitions, so there is nothing to
			// enumerate here.
			out[f.ResponseKey()] = []any{}
		case "__typename":
			out[f.ResponseKey()] = "__Schema"
		}
	}
	return out
}

func (r *Runtime) resolveRootTypeOrNull(id schema.TypeID, set language.SelectionSet, frags []*language.FragmentDefinition) any {
	if id == 0 {
		return nil
	}
	return r.resolveType(&schema.TypeRef{Wrap: schema.WrapNamed, Named: id}, set, frags)
}

func (r *Runtime) resolveAllTypes(set language.SelectionSet, frags []*language.FragmentDefinition) []any {
	ids := r.Schema.Types()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.resolveType(&schema.TypeRef{Wrap: schema.WrapNamed, Named: id}, set, frags))
	}
	return out
}

func (r *Runtime) resolveType(ref *schema.TypeRef, set language.SelectionSet, frags []*language.FragmentDefinition) map[string]any {
	if ref == nil {
		return nil
	}
	out := map[string]any{}
	for _, f := range flatten(set, frags) {
		switch f.Name {
		case "kind":
			out[f.ResponseKey()] = typeKindName(ref, r.Schema)
		case "name":
			if ref.Wrap == schema.WrapNamed {
				out[f.ResponseKey()] = r.Schema.Type(ref.Named).Name()
			} else {
				out[f.ResponseKey()] = nil
			}
		case "description":
			if ref.Wrap == schema.WrapNamed {
				out[f.ResponseKey()] = nullableString(r.Schema.Type(ref.Named).Description())
			} else {
				out[f.ResponseKey()] = nil
			}
		case "fields":
			out[f.ResponseKey()] = r.resolveFields(ref, f, frags)
		case "interfaces":
			out[f.ResponseKey()] = r.resolveInterfaces(ref, f.SelectionSet, frags)
		case "possibleTypes":
			out[f.ResponseKey()] = r.resolvePossibleTypes(ref, f.SelectionSet, frags)
		case "enumValues":
			out[f.ResponseKey()] = r.resolveEnumValues(ref, f, frags)
		case "inputFields":
			out[f.ResponseKey()] = r.resolveInputFields(ref, f.SelectionSet, frags)
		case "ofType":
			if ref.Wrap == schema.WrapNamed {
				out[f.ResponseKey()] = nil
			} else {
				out[f.ResponseKey()] = r.resolveType(ref.OfType, f.SelectionSet, frags)
			}
		case "specifiedByURL":
			if ref.Wrap == schema.WrapNamed {
				out[f.ResponseKey()] = nullableString(r.Schema.Type(ref.Named).SpecifiedByURL())
			} else {
				out[f.ResponseKey()] = nil
			}
		case "isOneOf":
			if ref.Wrap == schema.WrapNamed {
				out[f.ResponseKey()] = r.Schema.Type(ref.Named).OneOf()
			} else {
				out[f.ResponseKey()] = nil
			}
		case "__typename":
			out[f.ResponseKey()] = "__Type"
		}
	}
	return out
}

func (r *Runtime) resolveFields(ref *schema.TypeRef, f *language.Field, frags []*language.FragmentDefinition) any {
	if ref.Wrap != schema.WrapNamed {
		return nil
	}
	tw := r.Schema.Type(ref.Named)
	if tw.Kind() != schema.TypeKindObject && tw.Kind() != schema.TypeKindInterface {
		return nil
	}
	includeDeprecated := boolArg(f, "includeDeprecated", false)
	out := make([]any, 0, len(tw.Fields()))
	for _, fw := range tw.Fields() {
		if fw.Deprecated() && !includeDeprecated {
			continue
		}
		out = append(out, r.resolveField(fw, f.SelectionSet, frags))
	}
	return out
}

func (r *Runtime) resolveField(fw schema.FieldWalker, set language.SelectionSet, frags []*language.FragmentDefinition) map[string]any {
	out := map[string]any{}
	for _, f := range flatten(set, frags) {
		switch f.Name {
		case "name":
			out[f.ResponseKey()] = fw.Name()
		case "description":
			out[f.ResponseKey()] = nullableString(fw.Description())
		case "args":
			// internal/operation binds client-supplied arguments without
			// consulting a schema-declared argument list, so fieldRecord
			// retains no argument metadata to enumerate here.
			out[f.ResponseKey()] = []any{}
		case "type":
			out[f.ResponseKey()] = r.resolveType(fw.Type(), f.SelectionSet, frags)
		case "isDeprecated":
			out[f.ResponseKey()] = fw.Deprecated()
		case "deprecationReason":
			out[f.ResponseKey()] = nullableString(fw.DeprecationReason())
		case "__typename":
			out[f.ResponseKey()] = "__Field"
		}
	}
	return out
}

func (r *Runtime) resolveInterfaces(ref *schema.TypeRef, set language.SelectionSet, frags []*language.FragmentDefinition) any {
	if ref.Wrap != schema.WrapNamed {
		return nil
	}
	tw := r.Schema.Type(ref.Named)
	if tw.Kind() != schema.TypeKindObject && tw.Kind() != schema.TypeKindInterface {
		return nil
	}
	out := make([]any, 0, len(tw.Interfaces()))
	for _, id := range tw.Interfaces() {
		out = append(out, r.resolveType(&schema.TypeRef{Wrap: schema.WrapNamed, Named: id}, set, frags))
	}
	return out
}

func (r *Runtime) resolvePossibleTypes(ref *schema.TypeRef, set language.SelectionSet, frags []*language.FragmentDefinition) any {
	if ref.Wrap != schema.WrapNamed {
		return nil
	}
	tw := r.Schema.Type(ref.Named)
	if tw.Kind() != schema.TypeKindInterface && tw.Kind() != schema.TypeKindUnion {
		return nil
	}
	out := make([]any, 0, len(tw.PossibleTypes()))
	for _, id := range tw.PossibleTypes() {
		out = append(out, r.resolveType(&schema.TypeRef{Wrap: schema.WrapNamed, Named: id}, set, frags))
	}
	return out
}

func (r *Runtime) resolveEnumValues(ref *schema.TypeRef, f *language.Field, frags []*language.FragmentDefinition) any {
	if ref.Wrap != schema.WrapNamed {
		return nil
	}
	tw := r.Schema.Type(ref.Named)
	if tw.Kind() != schema.TypeKindEnum {
		return nil
	}
	includeDeprecated := boolArg(f, "includeDeprecated", false)
	out := make([]any, 0, len(tw.EnumValues()))
	for _, ev := range tw.EnumValues() {
		if ev.Deprecated() && !includeDeprecated {
			continue
		}
		out = append(out, r.resolveEnumValue(ev, f.SelectionSet, frags))
	}
	return out
}

func (r *Runtime) resolveEnumValue(ev schema.EnumValueWalker, set language.SelectionSet, frags []*language.FragmentDefinition) map[string]any {
	out := map[string]any{}
	for _, f := range flatten(set, frags) {
		switch f.Name {
		case "name":
			out[f.ResponseKey()] = ev.Name()
		case "description":
			out[f.ResponseKey()] = nullableString(ev.Description())
		case "isDeprecated":
			out[f.ResponseKey()] = ev.Deprecated()
		case "deprecationReason":
			out[f.ResponseKey()] = nullableString(ev.DeprecationReason())
		case "__typename":
			out[f.ResponseKey()] = "__EnumValue"
		}
	}
	return out
}

func (r *Runtime) resolveInputFields(ref *schema.TypeRef, set language.SelectionSet, frags []*language.FragmentDefinition) any {
	if ref.Wrap != schema.WrapNamed {
		return nil
	}
	tw := r.Schema.Type(ref.Named)
	if tw.Kind() != schema.TypeKindInputObject {
		return nil
	}
	out := make([]any, 0, len(tw.InputFields()))
	for _, fw := range tw.InputFields() {
		out = append(out, r.resolveInputValue(fw, set, frags))
	}
	return out
}

func (r *Runtime) resolveInputValue(fw schema.FieldWalker, set language.SelectionSet, frags []*language.FragmentDefinition) map[string]any {
	out := map[string]any{}
	for _, f := range flatten(set, frags) {
		switch f.Name {
		case "name":
			out[f.ResponseKey()] = fw.Name()
		case "description":
			out[f.ResponseKey()] = nullableString(fw.Description())
		case "type":
			out[f.ResponseKey()] = r.resolveType(fw.Type(), f.SelectionSet, frags)
		case "defaultValue":
			// Default values for input fields aren't retained on fieldRecord.
			out[f.ResponseKey()] = nil
		case "isDeprecated":
			out[f.ResponseKey()] = fw.Deprecated()
		case "deprecationReason":
			out[f.ResponseKey()] = nullableString(fw.DeprecationReason())
		case "__typename":
			out[f.ResponseKey()] = "__InputValue"
		}
	}
	return out
}

func typeKindName(ref *schema.TypeRef, s *schema.Schema) string {
	switch ref.Wrap {
	case schema.WrapList:
		return "LIST"
	case schema.WrapNonNull:
		return "NON_NULL"
	default:
		return s.Type(ref.Named).Kind().String()
	}
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// flatten expands inline fragments and fragment spreads into a flat field
// list. Type conditions aren't checked: every introspection meta-type is a
// concrete object type, so a fragment spread on one only ever narrows to
// itself in practice.
func flatten(set language.SelectionSet, frags []*language.FragmentDefinition) []*language.Field {
	var out []*language.Field
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			out = append(out, s)
		case *language.InlineFragment:
			out = append(out, flatten(s.SelectionSet, frags)...)
		case *language.FragmentSpread:
			for _, fd := range frags {
				if fd.Name == s.Name {
					out = append(out, flatten(fd.SelectionSet, frags)...)
					break
				}
			}
		}
	}
	return out
}

func stringArg(f *language.Field, name string) (string, bool) {
	for _, a := range f.Arguments {
		if a.Name != name {
			continue
		}
		v, err := a.Value.Value(nil)
		if err != nil {
			return "", false
		}
		s, ok := v.(string)
		return s, ok
	}
	return "", false
}

func boolArg(f *language.Field, name string, def bool) bool {
	for _, a := range f.Arguments {
		if a.Name != name {
			continue
		}
		v, err := a.Value.Value(nil)
		if err != nil {
			continue
		}
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
