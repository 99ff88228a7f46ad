// Package extrt bridges the authorization planner (internal/authz) to
// extension services reachable over gRPC, the same way internal/grpcrt once
// bridged the executor to field-resolver extensions: a Registry resolves the
// method descriptor serving one linked extension, and a Transport (grpctp.New
// satisfies it directly) executes the dynamic-message call.
//
// The two bridges solve different problems, though. grpcrt invokes one RPC
// per (objectType, field) group and maps proto fields onto GraphQL field
// values one at a time, because a resolver is schema-shaped. Authorization
// requests are not schema-shaped: a QueryTimeCheck batches every site in the
// operation that names the same extension+directive pair, and each site
// carries an open-ended bag of directive arguments (Args) and @requires
// field values (Requires). extrt represents both bags as
// google.protobuf.Struct instead of per-extension typed fields, so one wire
// contract (requests: repeated {args: Struct, requires: Struct}, decision +
// denied indices in the response) serves every extension without a
// per-extension descriptor beyond the method itself.
package extrt
