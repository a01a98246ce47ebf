// Package detector implements the gRPC transport for the detector service.
//
// It adapts domain states to the wire struct and exposes a server that calls
// into a provided business-service interface.
package detector
