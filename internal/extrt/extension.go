package extrt

import (
	"context"
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fedgw/gateway/internal/authz"
)

// grpcExtension dispatches one authz.Extension.Authorize batch as a single
// gRPC call: every Request in the batch becomes one "requests" entry, so an
// extension server sees the whole query-time batch named by one
// QueryTimeCheck in a single round trip (spec.md §4.7) instead of one call
// per field site.
type grpcExtension struct {
	name      string
	method    protoreflect.MethodDescriptor
	transport Transport
}

var _ authz.Extension = (*grpcExtension)(nil)

func (e *grpcExtension) Authorize(ctx context.Context, requests []authz.Request) (authz.AuthorizationDecisions, error) {
	imd := e.method.Input()
	reqsField := imd.Fields().ByName("requests")
	if reqsField == nil {
		return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: input message missing requests field", e.name)
	}
	itemDesc := reqsField.Message()
	if itemDesc == nil {
		return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: requests field is not a message", e.name)
	}

	req := dynamicpb.NewMessage(imd)
	list := req.Mutable(reqsField).List()
	for i, r := range requests {
		item := dynamicpb.NewMessage(itemDesc)
		if err := setStructField(item, "args", r.Args); err != nil {
			return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: request %d args: %w", e.name, i, err)
		}
		if err := setStructField(item, "requires", r.Requires); err != nil {
			return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: request %d requires: %w", e.name, i, err)
		}
		list.Append(protoreflect.ValueOfMessage(item))
	}
	req.Set(reqsField, protoreflect.ValueOfList(list))

	resp, err := e.transport.Call(ctx, e.method, req)
	if err != nil {
		return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: %w", e.name, err)
	}
	return decodeDecisions(e.name, resp)
}

// setStructField encodes data as a google.protobuf.Struct and assigns it to
// the named message field. A nil map leaves the field unset, which decodes
// back to nil on the extension side rather than an empty object.
func setStructField(msg protoreflect.Message, name string, data map[string]any) error {
	if data == nil {
		return nil
	}
	fd := msg.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		return nil
	}
	st, err := structpb.NewStruct(data)
	if err != nil {
		return err
	}
	msg.Set(fd, protoreflect.ValueOfMessage(st.ProtoReflect()))
	return nil
}

func decodeDecisions(extension string, resp protoreflect.Message) (authz.AuthorizationDecisions, error) {
	fields := resp.Descriptor().Fields()
	decisionField := fields.ByName("decision")
	if decisionField == nil {
		return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: response missing decision field", extension)
	}

	var name string
	switch decisionField.Kind() {
	case protoreflect.EnumKind:
		v := resp.Get(decisionField)
		ev := decisionField.Enum().Values().ByNumber(v.Enum())
		if ev == nil {
			return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: unknown decision enum value %d", extension, v.Enum())
		}
		name = string(ev.Name())
	case protoreflect.StringKind:
		name = resp.Get(decisionField).String()
	default:
		return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: unsupported decision field kind %s", extension, decisionField.Kind())
	}

	decision := decisionFromName(name)
	if decision == 0 {
		return authz.AuthorizationDecisions{}, fmt.Errorf("extrt: %s: unrecognized decision %q", extension, name)
	}

	out := authz.AuthorizationDecisions{Decision: decision}
	if decision == authz.DenySome {
		if deniedField := fields.ByName("denied"); deniedField != nil {
			lst := resp.Get(deniedField).List()
			out.Denied = make([]int, lst.Len())
			for i := 0; i < lst.Len(); i++ {
				out.Denied[i] = int(lst.Get(i).Int())
			}
		}
	}
	return out, nil
}

func decisionFromName(name string) authz.Decision {
	switch name {
	case "GRANT_ALL", "grant_all":
		return authz.GrantAll
	case "DENY_ALL", "deny_all":
		return authz.DenyAll
	case "DENY_SOME", "deny_some":
		return authz.DenySome
	default:
		return 0
	}
}
