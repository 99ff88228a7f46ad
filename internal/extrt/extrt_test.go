package extrt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/fedgw/gateway/internal/authz"
)

func protoString(s string) *string { return &s }
func protoInt32(i int32) *int32    { return &i }

// buildAuthorizeMethod constructs a method descriptor shaped like the wire
// contract extrt expects: Authorize(requests: repeated {args, requires:
// Struct}) returns (decision: Decision, denied: repeated int32).
func buildAuthorizeMethod(t *testing.T) protoreflect.MethodDescriptor {
	t.Helper()
	structFile := protodesc.ToFileDescriptorProto(structpb.File_google_protobuf_struct_proto)

	file := &descriptorpb.FileDescriptorProto{
		Name:       protoString("authz_bridge.proto"),
		Package:    protoString("extrt"),
		Dependency: []string{"google/protobuf/struct.proto"},
		EnumType: []*descriptorpb.EnumDescriptorProto{{
			Name: protoString("Decision"),
			Value: []*descriptorpb.EnumValueDescriptorProto{
				{Name: protoString("GRANT_ALL"), Number: protoInt32(0)},
				{Name: protoString("DENY_ALL"), Number: protoInt32(1)},
				{Name: protoString("DENY_SOME"), Number: protoInt32(2)},
			},
		}},
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: protoString("AuthorizeRequestItem"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: protoString("args"), JsonName: protoString("args"), Number: protoInt32(1), Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), TypeName: protoString(".google.protobuf.Struct")},
					{Name: protoString("requires"), JsonName: protoString("requires"), Number: protoInt32(2), Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), TypeName: protoString(".google.protobuf.Struct")},
				},
			},
			{
				Name: protoString("AuthorizeRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: protoString("requests"), JsonName: protoString("requests"), Number: protoInt32(1), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(), Type: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum(), TypeName: protoString(".extrt.AuthorizeRequestItem")},
				},
			},
			{
				Name: protoString("AuthorizeResponse"),
				Field: []*descriptorpb.FieldDescriptorProto{
					{Name: protoString("decision"), JsonName: protoString("decision"), Number: protoInt32(1), Type: descriptorpb.FieldDescriptorProto_TYPE_ENUM.Enum(), TypeName: protoString(".extrt.Decision")},
					{Name: protoString("denied"), JsonName: protoString("denied"), Number: protoInt32(2), Label: descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum(), Type: descriptorpb.FieldDescriptorProto_TYPE_INT32.Enum()},
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: protoString("Authorizer"),
			Method: []*descriptorpb.MethodDescriptorProto{{
				Name:       protoString("Authorize"),
				InputType:  protoString(".extrt.AuthorizeRequest"),
				OutputType: protoString(".extrt.AuthorizeResponse"),
			}},
		}},
		Syntax: protoString("proto3"),
	}

	set := &descriptorpb.FileDescriptorSet{File: []*descriptorpb.FileDescriptorProto{structFile, file}}
	files, err := protodesc.NewFiles(set)
	require.NoError(t, err)
	fd, err := files.FindFileByPath("authz_bridge.proto")
	require.NoError(t, err)
	return fd.Services().ByName("Authorizer").Methods().ByName("Authorize")
}

// mockTransport returns a fixed response and records the last request it was
// handed, for this package's single-call tests.
type mockTransport struct {
	resp    protoreflect.Message
	err     error
	lastReq protoreflect.Message
	callsN  int
}

func (m *mockTransport) Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	m.callsN++
	m.lastReq = request
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func TestBridge_Resolve_UnknownExtensionNotFound(t *testing.T) {
	b := NewBridge(StaticRegistry{}, &mockTransport{})
	_, ok := b.Resolve(context.Background(), "policy")
	require.False(t, ok)
}

func TestBridge_Resolve_CachesResolvedExtension(t *testing.T) {
	md := buildAuthorizeMethod(t)
	b := NewBridge(StaticRegistry{"policy": md}, &mockTransport{})

	e1, ok := b.Resolve(context.Background(), "policy")
	require.True(t, ok)
	e2, ok := b.Resolve(context.Background(), "policy")
	require.True(t, ok)
	require.Same(t, e1, e2)
}

func TestGrpcExtension_Authorize_GrantAllEncodesArgsAsStruct(t *testing.T) {
	md := buildAuthorizeMethod(t)
	out := dynamicpb.NewMessage(md.Output())
	out.Set(md.Output().Fields().ByName("decision"), protoreflect.ValueOfEnum(0)) // GRANT_ALL

	mt := &mockTransport{resp: out}
	b := NewBridge(StaticRegistry{"policy": md}, mt)
	ext, ok := b.Resolve(context.Background(), "policy")
	require.True(t, ok)

	requests := []authz.Request{
		{Site: 1, Args: map[string]any{"role": "admin"}},
		{Site: 2, Args: map[string]any{"role": "user"}, Requires: map[string]any{"ownerId": "u1"}},
	}
	got, err := ext.Authorize(context.Background(), requests)
	require.NoError(t, err)
	require.Equal(t, authz.AuthorizationDecisions{Decision: authz.GrantAll}, got)

	require.Equal(t, 1, mt.callsN)
	reqField := md.Input().Fields().ByName("requests")
	list := mt.lastReq.Get(reqField).List()
	require.Equal(t, 2, list.Len())

	itemDesc := reqField.Message()
	argsField := itemDesc.Fields().ByName("args")
	first := list.Get(0).Message()
	argsStruct := first.Get(argsField).Message().Interface().(*structpb.Struct)
	require.Equal(t, "admin", argsStruct.Fields["role"].GetStringValue())

	second := list.Get(1).Message()
	requiresField := itemDesc.Fields().ByName("requires")
	requiresStruct := second.Get(requiresField).Message().Interface().(*structpb.Struct)
	require.Equal(t, "u1", requiresStruct.Fields["ownerId"].GetStringValue())
}

func TestGrpcExtension_Authorize_DenySomeDecodesDeniedIndices(t *testing.T) {
	md := buildAuthorizeMethod(t)
	out := dynamicpb.NewMessage(md.Output())
	out.Set(md.Output().Fields().ByName("decision"), protoreflect.ValueOfEnum(2)) // DENY_SOME
	deniedField := md.Output().Fields().ByName("denied")
	list := out.Mutable(deniedField).List()
	list.Append(protoreflect.ValueOfInt32(1))
	out.Set(deniedField, protoreflect.ValueOfList(list))

	mt := &mockTransport{resp: out}
	b := NewBridge(StaticRegistry{"policy": md}, mt)
	ext, _ := b.Resolve(context.Background(), "policy")

	got, err := ext.Authorize(context.Background(), []authz.Request{{Site: 1}, {Site: 2}})
	require.NoError(t, err)
	require.Equal(t, authz.AuthorizationDecisions{Decision: authz.DenySome, Denied: []int{1}}, got)
}
