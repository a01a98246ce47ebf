// Package tuner proposes an alarm profile from a recording of the alarm.
//
// Tones are measured with the same spectral monitor and event generator the
// detector uses, so the proposed durations agree with what the matcher will
// see. The tone sequence is searched for its shortest repeating period, and
// every position of that period becomes a tone segment followed by the silence
// observed after it.
package tuner
