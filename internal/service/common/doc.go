// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client wrapper for the detector API with
// timeouts, and detects the current system actor (hostname/username) so the
// detector can log who is asking.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
