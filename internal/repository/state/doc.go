// Package state implements persistence for the detector State.
//
// The FileRepository stores and loads the state as JSON on disk and exposes a
// Repository interface that the detector service depends on. External tools
// may poll the file instead of calling the gRPC API.
package state
