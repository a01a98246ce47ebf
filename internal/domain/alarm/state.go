package alarm

import "time"

// State is the externally observable detection status at a point in time.
type State struct {
	// Timestamp is when the state last changed.
	Timestamp time.Time
	// Profile names the profile that raised the alarm, empty before the first detection.
	Profile string
	// DetectionID identifies one activation; it is kept when the alarm clears.
	DetectionID string
	// CycleCount is the number of confirmation cycles of the triggering match.
	CycleCount int
	// Active indicates whether an alarm is currently being heard.
	Active bool
}

// Clone returns a copy of the state to avoid leaking internal references.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	cloned := *s

	return &cloned
}
