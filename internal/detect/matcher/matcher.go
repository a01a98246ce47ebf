package matcher

import (
	"context"
	"fmt"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
)

// State is the matching progress of one profile.
type State struct {
	// Index is the segment expected next.
	Index int
	// CycleCount is the number of completed traversals since the last match.
	CycleCount int
	// LastEventEnd is the stream time when the last accepted tone ended.
	LastEventEnd float64
}

// InProgress reports whether any progress would be lost by a reset.
func (s State) InProgress() bool {
	return s.Index > 0 || s.CycleCount > 0
}

type tracker struct {
	profile *alarm.Profile
	state   State
}

func (t *tracker) reset(ctx context.Context, reason string) {
	if t.state.InProgress() {
		logger.DebugKV(ctx, "Matching progress reset",
			"profile", t.profile.Name, "reason", reason,
			"index", t.state.Index, "cycles", t.state.CycleCount)
	}

	t.state = State{}
}

// advance moves to the next segment and reports a match when the final
// traversal needed for confirmation wrapped.
func (t *tracker) advance(ctx context.Context, timestamp float64) (alarm.PatternMatchEvent, bool) {
	t.state.Index++
	if t.state.Index < len(t.profile.Segments) {
		return alarm.PatternMatchEvent{}, false
	}

	t.state.Index = 0
	t.state.CycleCount++

	logger.DebugKV(ctx, "Cycle complete",
		"profile", t.profile.Name,
		"cycles", t.state.CycleCount, "required", t.profile.ConfirmationCycles,
		"at", timestamp)

	if t.state.CycleCount < t.profile.ConfirmationCycles {
		return alarm.PatternMatchEvent{}, false
	}

	t.state.CycleCount = 0

	return alarm.PatternMatchEvent{
		Profile:    t.profile.Name,
		CycleCount: t.profile.ConfirmationCycles,
		Timestamp:  timestamp,
	}, true
}

func (t *tracker) process(ctx context.Context, event *alarm.ToneEvent) (alarm.PatternMatchEvent, bool) {
	var (
		match   alarm.PatternMatchEvent
		matched bool
	)

	if t.state.InProgress() && event.Timestamp-t.state.LastEventEnd > t.profile.ResetTimeout {
		t.reset(ctx, "timeout")
	}

	if expected := &t.profile.Segments[t.state.Index]; !expected.IsTone() {
		gap := event.Timestamp - t.state.LastEventEnd
		if expected.Duration.Contains(gap) {
			match, matched = t.advance(ctx, event.Timestamp)
		} else {
			t.reset(ctx, fmt.Sprintf("gap %.2fs outside %ss", gap, expected.Duration))
		}
	}

	if t.accept(ctx, event) {
		if m, ok := t.advance(ctx, event.Timestamp); ok {
			match, matched = m, true
		}

		return match, matched
	}

	if t.state.Index > 0 {
		t.reset(ctx, "unexpected tone")

		if t.accept(ctx, event) {
			if m, ok := t.advance(ctx, event.Timestamp); ok {
				match, matched = m, true
			}
		}
	}

	return match, matched
}

// accept checks the event against the expected tone and records its end.
func (t *tracker) accept(ctx context.Context, event *alarm.ToneEvent) bool {
	expected := &t.profile.Segments[t.state.Index]
	if !expected.Accepts(event) {
		return false
	}

	logger.DebugKV(ctx, "Segment matched",
		"profile", t.profile.Name, "index", t.state.Index,
		"frequency", event.Frequency, "duration", event.Duration)

	t.state.LastEventEnd = event.End()

	return true
}

func (t *tracker) tick(ctx context.Context, now float64, quiet bool) (alarm.PatternMatchEvent, bool) {
	if !t.state.InProgress() {
		return alarm.PatternMatchEvent{}, false
	}

	elapsed := now - t.state.LastEventEnd
	if elapsed > t.profile.ResetTimeout {
		t.reset(ctx, "timeout")

		return alarm.PatternMatchEvent{}, false
	}

	expected := &t.profile.Segments[t.state.Index]
	if !quiet || expected.IsTone() {
		return alarm.PatternMatchEvent{}, false
	}

	// Any tone from now on starts after the pause already ran too long.
	if elapsed > expected.Duration.Max {
		t.reset(ctx, fmt.Sprintf("gap %.2fs outside %ss", elapsed, expected.Duration))

		return alarm.PatternMatchEvent{}, false
	}

	// Only the confirming traversal may close its final pause early. Earlier
	// traversals wait for the next tone so the pause stays bounded.
	confirming := t.state.CycleCount+1 >= t.profile.ConfirmationCycles
	if t.state.Index == len(t.profile.Segments)-1 && confirming && expected.Duration.Contains(elapsed) {
		return t.advance(ctx, now)
	}

	return alarm.PatternMatchEvent{}, false
}

// Matcher tracks every profile independently.
// It is not safe for concurrent use.
type Matcher struct {
	trackers []*tracker
	byName   map[string]*tracker
}

// New validates the profiles and creates a matcher with fresh states.
func New(profiles []alarm.Profile) (*Matcher, error) {
	if err := alarm.ValidateAll(profiles); err != nil {
		return nil, err
	}

	m := &Matcher{
		trackers: make([]*tracker, 0, len(profiles)),
		byName:   make(map[string]*tracker, len(profiles)),
	}

	for i := range profiles {
		t := &tracker{profile: profiles[i].Clone()}
		m.trackers = append(m.trackers, t)
		m.byName[t.profile.Name] = t
	}

	return m, nil
}

// Process feeds a tone event to every profile and returns the resulting matches.
func (m *Matcher) Process(ctx context.Context, event *alarm.ToneEvent) []alarm.PatternMatchEvent {
	var matches []alarm.PatternMatchEvent

	for _, t := range m.trackers {
		if match, ok := t.process(ctx, event); ok {
			matches = append(matches, match)
		}
	}

	return matches
}

// Tick abandons stale progress, ends pauses that ran past their maximum and
// completes the final pause of a confirming traversal.
// The quiet flag tells whether any tone is currently sounding.
func (m *Matcher) Tick(ctx context.Context, now float64, quiet bool) []alarm.PatternMatchEvent {
	var matches []alarm.PatternMatchEvent

	for _, t := range m.trackers {
		if match, ok := t.tick(ctx, now, quiet); ok {
			matches = append(matches, match)
		}
	}

	return matches
}

// State returns a copy of the named profile's progress.
func (m *Matcher) State(name string) (State, bool) {
	t, ok := m.byName[name]
	if !ok {
		return State{}, false
	}

	return t.state, true
}

// Profiles returns copies of the loaded profiles in load order.
func (m *Matcher) Profiles() []alarm.Profile {
	profiles := make([]alarm.Profile, 0, len(m.trackers))
	for _, t := range m.trackers {
		profiles = append(profiles, *t.profile.Clone())
	}

	return profiles
}

// Reset clears the progress of every profile.
func (m *Matcher) Reset() {
	for _, t := range m.trackers {
		t.state = State{}
	}
}
