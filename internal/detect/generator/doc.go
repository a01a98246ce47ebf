// Package generator turns per-chunk spectral peaks into discrete tone events.
//
// Silence is never reported: a gap is the absence of tone between two events
// and is measured by the sequence matcher.
package generator
