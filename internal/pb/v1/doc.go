// Package v1 holds the DetectorService gRPC bindings.
//
// The service exchanges protobuf well-known types only: requests are
// google.protobuf.Empty and detector states travel as google.protobuf.Struct
// with the keys listed in state.go. This keeps the wire format readable with
// grpcurl and avoids a protoc build step.
package v1
