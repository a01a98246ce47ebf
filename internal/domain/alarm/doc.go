// Package alarm contains the core domain types of the acoustic alarm detector.
//
// It defines the declarative cadence model (Range, Segment, Profile), the events
// flowing through the recognition pipeline (Peak, ToneEvent, PatternMatchEvent)
// and State, the detection status exposed to the outside world, with Clone
// helpers to avoid leaking internal references.
package alarm
