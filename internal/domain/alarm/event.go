package alarm

// Peak is a local maximum of one chunk's magnitude spectrum.
// It lives only for the chunk it was extracted from.
type Peak struct {
	// Frequency is the bin center frequency in Hz.
	Frequency float64
	// Magnitude is normalized against the strongest bin of the chunk (0..1).
	Magnitude float64
	// Bin is the FFT bin index.
	Bin int
}

// ToneEvent is a completed tone emitted once by the event generator.
type ToneEvent struct {
	// Timestamp is the stream time in seconds when the tone was first seen.
	Timestamp float64
	// Duration is the estimated tone length in seconds.
	Duration float64
	// Frequency is the representative (median) frequency in Hz.
	Frequency float64
	// Magnitude is the strongest normalized magnitude observed.
	Magnitude float64
}

// End returns the stream time at which the tone ended.
func (e *ToneEvent) End() float64 {
	return e.Timestamp + e.Duration
}

// PatternMatchEvent reports that a profile was confirmed.
type PatternMatchEvent struct {
	// Profile is the name of the confirmed profile.
	Profile string
	// CycleCount is the number of traversals that confirmed the match.
	CycleCount int
	// Timestamp is the stream time in seconds of the confirming step.
	Timestamp float64
}
