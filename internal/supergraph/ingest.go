package supergraph

import (
	"fmt"

	language "github.com/fedgw/gateway/internal/language"
)

// Parse ingests a composed supergraph SDL string into a Document. It parses
// `@join__graph` (repeatable, on SCHEMA), `@join__type` (repeatable, on
// OBJECT|INTERFACE; carries the entity `@key`), `@join__field` (repeatable,
// on FIELD_DEFINITION), and `@link` (repeatable, on SCHEMA) directives. On
// a field it also records `@deprecated`, and `@authenticated`,
// `@requiresScopes` and `@policy` as authorization directives; every other
// directive is ignored.
func Parse(sdl string) (*Document, error) {
	doc, err := language.ParseSchema("supergraph.graphql", sdl)
	if err != nil {
		return nil, fmt.Errorf("parse supergraph SDL: %w", err)
	}

	out := &Document{
		Types:      make(map[string]*TypeDecl),
		Extensions: make(map[string]*ExtensionDecl),
	}

	if err := ingestSchemaDirectives(doc, out); err != nil {
		return nil, err
	}
	if err := ingestRootOperationTypes(doc, out); err != nil {
		return nil, err
	}

	for _, def := range doc.Definitions {
		if err := ingestTypeDefinition(def, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func ingestRootOperationTypes(doc *language.SchemaDocument, out *Document) error {
	out.QueryType = "Query"
	out.MutationType = "Mutation"
	out.SubscriptionType = "Subscription"
	for _, sd := range doc.Schema {
		if sd.Query != nil {
			out.QueryType = sd.Query.Type
		}
		if sd.Mutation != nil {
			out.MutationType = sd.Mutation.Type
		}
		if sd.Subscription != nil {
			out.SubscriptionType = sd.Subscription.Type
		}
	}
	return nil
}

func ingestSchemaDirectives(doc *language.SchemaDocument, out *Document) error {
	var dirs language.DirectiveList
	for _, sd := range doc.Schema {
		dirs = append(dirs, sd.Directives...)
	}
	for _, ext := range doc.SchemaExtension {
		dirs = append(dirs, ext.Directives...)
	}
	for _, dir := range dirs {
		switch dir.Name {
		case "join__graph":
			name := stringArg(dir, "name")
			url := stringArg(dir, "url")
			timeout := intArg(dir, "timeout")
			if name == "" {
				return fmt.Errorf("@join__graph missing name at %s", posString(dir.Position))
			}
			out.Subgraphs = append(out.Subgraphs, SubgraphDecl{Name: name, URL: url, Timeout: timeout})
		case "link":
			url := stringArg(dir, "url")
			name := stringArg(dir, "as")
			if name == "" {
				name = url
			}
			ext := out.Extensions[name]
			if ext == nil {
				ext = &ExtensionDecl{Name: name, URL: url}
				out.Extensions[name] = ext
			}
			for _, cap := range stringListArg(dir, "capabilities") {
				switch cap {
				case "FIELD_RESOLVER":
					ext.IsFieldResolver = true
				case "SELECTION_RESOLVER":
					ext.IsSelectionResolver = true
				case "SUBQUERY_RESOLVER":
					ext.IsSubqueryResolver = true
				case "AUTHORIZER":
					ext.IsAuthorizer = true
				case "AUTHENTICATOR":
					ext.IsAuthenticator = true
				}
			}
		}
	}
	return nil
}

func ingestTypeDefinition(def *language.Definition, out *Document) error {
	switch def.Kind {
	case language.Object, language.Interface:
		return ingestCompositeType(def, out)
	case language.Union:
		t := &TypeDecl{Name: def.Name, Kind: KindUnion, Description: def.Description}
		t.PossibleTypes = append(t.PossibleTypes, def.Types...)
		out.Types[def.Name] = t
	case language.Enum:
		t := &TypeDecl{Name: def.Name, Kind: KindEnum, Description: def.Description}
		for _, v := range def.EnumValues {
			t.EnumValues = append(t.EnumValues, v.Name)
		}
		out.Types[def.Name] = t
	case language.Scalar:
		out.Types[def.Name] = &TypeDecl{Name: def.Name, Kind: KindScalar, Description: def.Description}
	case language.InputObject:
		t := &TypeDecl{Name: def.Name, Kind: KindInputObject, Description: def.Description, Fields: map[string]*FieldDecl{}}
		for _, f := range def.Fields {
			t.Fields[f.Name] = &FieldDecl{Name: f.Name, Type: f.Type}
		}
		out.Types[def.Name] = t
	}
	return nil
}

func ingestCompositeType(def *language.Definition, out *Document) error {
	kind := KindObject
	if def.Kind == language.Interface {
		kind = KindInterface
	}
	t := &TypeDecl{
		Name:        def.Name,
		Kind:        kind,
		Description: def.Description,
		Fields:      map[string]*FieldDecl{},
		Interfaces:  append([]string{}, def.Interfaces...),
	}

	for _, dir := range def.Directives {
		if dir.Name != "join__type" {
			continue
		}
		graph := stringArg(dir, "graph")
		resolvable := true
		if v := dir.Arguments.ForName("resolvable"); v != nil && v.Value.Raw == "false" {
			resolvable = false
		}
		var fs *FieldSet
		if keyStr := stringArg(dir, "key"); keyStr != "" {
			parsed, err := parseFieldSet(keyStr)
			if err != nil {
				return fmt.Errorf("%s: @join__type(key:) on %s: %w", posString(dir.Position), def.Name, err)
			}
			fs = parsed
		}
		t.Keys = append(t.Keys, KeyDecl{Graph: graph, Fields: fs, Resolvable: resolvable})
	}

	for _, f := range def.Fields {
		fd, err := ingestField(f)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", def.Name, f.Name, err)
		}
		t.Fields[f.Name] = fd
	}

	out.Types[def.Name] = t
	return nil
}

func ingestField(f *language.FieldDefinition) (*FieldDecl, error) {
	fd := &FieldDecl{Name: f.Name, Type: f.Type}

	for _, dir := range f.Directives {
		switch dir.Name {
		case "join__field":
			jf := JoinFieldDecl{
				Graph:        stringArg(dir, "graph"),
				OverrideFrom: stringArg(dir, "override"),
			}
			if v := dir.Arguments.ForName("external"); v != nil && v.Value.Raw == "true" {
				jf.External = true
			}
			if req := stringArg(dir, "requires"); req != "" {
				parsed, err := parseFieldSet(req)
				if err != nil {
					return nil, fmt.Errorf("@requires: %w", err)
				}
				jf.Requires = parsed
			}
			if prov := stringArg(dir, "provides"); prov != "" {
				parsed, err := parseFieldSet(prov)
				if err != nil {
					return nil, fmt.Errorf("@provides: %w", err)
				}
				jf.Provides = parsed
			}
			fd.JoinFields = append(fd.JoinFields, jf)
		case "deprecated":
			reason := stringArg(dir, "reason")
			if reason == "" {
				reason = "No longer supported"
			}
			fd.Deprecated = reason
		case "authenticated":
			fd.AuthDirectives = append(fd.AuthDirectives, AuthDirectiveDecl{Name: "authenticated"})
		case "requiresScopes":
			fd.AuthDirectives = append(fd.AuthDirectives, AuthDirectiveDecl{Name: "requiresScopes"})
		case "policy":
			fd.AuthDirectives = append(fd.AuthDirectives, AuthDirectiveDecl{
				Name:      "policy",
				Extension: stringArg(dir, "extension"),
			})
		}
	}
	return fd, nil
}

func stringArg(dir *language.Directive, name string) string {
	v := dir.Arguments.ForName(name)
	if v == nil || v.Value == nil {
		return ""
	}
	return v.Value.Raw
}

func intArg(dir *language.Directive, name string) int64 {
	v := dir.Arguments.ForName(name)
	if v == nil || v.Value == nil {
		return 0
	}
	var n int64
	fmt.Sscanf(v.Value.Raw, "%d", &n)
	return n
}

func stringListArg(dir *language.Directive, name string) []string {
	v := dir.Arguments.ForName(name)
	if v == nil || v.Value == nil {
		return nil
	}
	out := make([]string, 0, len(v.Value.Children))
	for _, c := range v.Value.Children {
		if c.Value != nil {
			out = append(out, c.Value.Raw)
		}
	}
	return out
}

func posString(p *language.Position) string {
	if p == nil {
		return "?"
	}
	return fmt.Sprintf("%s:%d", p.Src.Name, p.Line)
}
