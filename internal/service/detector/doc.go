// Package detector runs the alarm-detector process: it reads PCM from a file
// or standard input, feeds the detection engine chunk by chunk, persists every
// detection state change and serves the current state over gRPC.
package detector
