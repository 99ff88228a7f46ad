package extrt

import "google.golang.org/protobuf/reflect/protoreflect"

// Registry resolves the gRPC method descriptor that serves one linked
// extension's authorization RPC. A gateway builds one at startup from
// whatever descriptor source it loads extensions from (a FileDescriptorSet
// shipped alongside the supergraph, a reflection call against the extension
// itself, and so on) and wires it into a Bridge; extrt itself only needs the
// resolved descriptor.
type Registry interface {
	GetAuthorizeMethodDescriptor(extension string) protoreflect.MethodDescriptor
}

// StaticRegistry is a Registry backed by an in-memory map, for the common
// case where every linked extension's descriptor is already known when the
// gateway starts.
type StaticRegistry map[string]protoreflect.MethodDescriptor

func (r StaticRegistry) GetAuthorizeMethodDescriptor(extension string) protoreflect.MethodDescriptor {
	return r[extension]
}
