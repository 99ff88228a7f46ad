package extrt

import (
	"context"
	"sync"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/fedgw/gateway/internal/authz"
)

// Transport executes one dynamic-message gRPC call against an extension
// service. grpctp.Transport satisfies this directly; extrt declares its own
// copy of the method set rather than importing grpcrt/grpctp's interface so
// the authorization bridge doesn't carry a dependency on the field-resolver
// bridge it has nothing to do with.
type Transport interface {
	Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)
}

// Bridge resolves authz.Extension implementations backed by a gRPC call to
// the linked extension service, implementing executor.AuthzResolver. It
// caches one grpcExtension per name so repeated Resolve calls across
// requests don't re-walk the registry.
type Bridge struct {
	reg       Registry
	transport Transport

	mu    sync.RWMutex
	bound map[string]*grpcExtension
}

func NewBridge(reg Registry, transport Transport) *Bridge {
	return &Bridge{reg: reg, transport: transport, bound: map[string]*grpcExtension{}}
}

// Resolve returns the authz.Extension serving the named extension, or false
// if the registry has no authorization method descriptor for it.
func (b *Bridge) Resolve(ctx context.Context, extension string) (authz.Extension, bool) {
	_ = ctx
	b.mu.RLock()
	e, ok := b.bound[extension]
	b.mu.RUnlock()
	if ok {
		return e, true
	}

	md := b.reg.GetAuthorizeMethodDescriptor(extension)
	if md == nil {
		return nil, false
	}
	e = &grpcExtension{name: extension, method: md, transport: b.transport}

	b.mu.Lock()
	b.bound[extension] = e
	b.mu.Unlock()
	return e, true
}
