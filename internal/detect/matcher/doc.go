// Package matcher follows tone events through the segments of every loaded alarm
// profile and reports a match once a profile's cadence repeated often enough.
//
// Each profile owns an independent state. Gaps between tones are inferred from
// tone timestamps and checked against the expected silence segments.
package matcher
