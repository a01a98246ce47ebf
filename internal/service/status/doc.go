// Package status implements alarm-status, a small client that reports the
// detector state by polling it or by following its change stream.
package status
