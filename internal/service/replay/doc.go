// Package replay runs the detection pipeline over a recording as fast as it can
// be read and reports every match with its stream time.
package replay
