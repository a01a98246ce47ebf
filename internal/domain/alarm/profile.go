package alarm

import (
	"errors"
	"fmt"
	"strings"
)

// SegmentKind tells whether a segment expects sound or its absence.
type SegmentKind string

const (
	// KindTone expects a sustained narrowband emission.
	KindTone SegmentKind = "tone"
	// KindSilence expects a gap between two tones.
	KindSilence SegmentKind = "silence"
)

const (
	// DefaultMinMagnitude is the normalized magnitude a tone must reach when the profile does not say otherwise.
	DefaultMinMagnitude = 0.05
	// DefaultConfirmationCycles is the number of full traversals required by default.
	DefaultConfirmationCycles = 1
	// DefaultResetTimeout is the default idle time in seconds before matching progress is abandoned.
	DefaultResetTimeout = 10.0
)

var (
	// ErrInvalidProfile is wrapped by every profile validation error.
	ErrInvalidProfile = errors.New("invalid alarm profile")
	// ErrInvertedRange is returned when a range minimum exceeds its maximum.
	ErrInvertedRange = errors.New("range minimum exceeds maximum")
)

// Range is an inclusive numeric interval.
type Range struct {
	// Min is the lower bound.
	Min float64 `yaml:"min"`
	// Max is the upper bound.
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies within the range, bounds included.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

// Validate rejects inverted ranges.
func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("min %g > max %g: %w", r.Min, r.Max, ErrInvertedRange)
	}

	return nil
}

// String renders the range as "min-max".
func (r Range) String() string {
	return fmt.Sprintf("%g-%g", r.Min, r.Max)
}

// Segment is one expected step of an alarm cadence.
type Segment struct {
	// Kind selects between tone and silence.
	Kind SegmentKind
	// Frequency is the accepted tone frequency in Hz. Unused for silence.
	Frequency Range
	// Duration is the accepted length in seconds.
	Duration Range
	// MinMagnitude is the smallest normalized magnitude accepted for a tone.
	MinMagnitude float64
}

// Tone builds a tone segment with the default magnitude threshold.
func Tone(frequency, duration Range) Segment {
	return Segment{
		Kind:         KindTone,
		Frequency:    frequency,
		Duration:     duration,
		MinMagnitude: DefaultMinMagnitude,
	}
}

// Silence builds a silence segment.
func Silence(duration Range) Segment {
	return Segment{
		Kind:     KindSilence,
		Duration: duration,
	}
}

// IsTone reports whether the segment expects a tone.
func (s *Segment) IsTone() bool {
	return s.Kind == KindTone
}

// Accepts reports whether a tone event satisfies this tone segment.
func (s *Segment) Accepts(event *ToneEvent) bool {
	return s.IsTone() &&
		s.Frequency.Contains(event.Frequency) &&
		s.Duration.Contains(event.Duration) &&
		event.Magnitude >= s.MinMagnitude
}

// String renders the segment for logs.
func (s Segment) String() string {
	if s.IsTone() {
		return fmt.Sprintf("tone(%sHz, %ss)", s.Frequency, s.Duration)
	}

	return fmt.Sprintf("silence(%ss)", s.Duration)
}

// Validate checks a single segment.
func (s *Segment) Validate() error {
	switch s.Kind {
	case KindTone:
		if err := s.Frequency.Validate(); err != nil {
			return fmt.Errorf("frequency: %w", err)
		}

		if s.Frequency.Max <= 0 {
			return errors.New("frequency: range must be positive")
		}

		if s.MinMagnitude < 0 || s.MinMagnitude > 1 {
			return fmt.Errorf("min_magnitude: %g outside [0, 1]", s.MinMagnitude)
		}
	case KindSilence:
	default:
		return fmt.Errorf("type: unknown segment type %q", s.Kind)
	}

	if err := s.Duration.Validate(); err != nil {
		return fmt.Errorf("duration: %w", err)
	}

	if s.Duration.Min < 0 {
		return fmt.Errorf("duration: negative minimum %g", s.Duration.Min)
	}

	return nil
}

// Profile is the declarative signature of one alarm.
type Profile struct {
	// Name identifies the profile in match events and logs.
	Name string
	// Segments is the cyclic sequence of expected steps.
	Segments []Segment
	// ConfirmationCycles is the number of consecutive traversals required to report a match.
	ConfirmationCycles int
	// ResetTimeout is the maximum time in seconds without progress before matching restarts.
	ResetTimeout float64
}

// Validate checks the profile and returns an error naming the offending field.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}

	if len(p.Segments) == 0 {
		return fmt.Errorf("%w: profile %q: segments: at least one segment is required", ErrInvalidProfile, p.Name)
	}

	if p.ConfirmationCycles < 1 {
		return fmt.Errorf("%w: profile %q: confirmation_cycles: must be at least 1, got %d",
			ErrInvalidProfile, p.Name, p.ConfirmationCycles)
	}

	if p.ResetTimeout <= 0 {
		return fmt.Errorf("%w: profile %q: reset_timeout: must be positive, got %g",
			ErrInvalidProfile, p.Name, p.ResetTimeout)
	}

	// Index 0 has no gap precondition, so a leading silence could never be evaluated.
	if !p.Segments[0].IsTone() {
		return fmt.Errorf("%w: profile %q: segments[0]: first segment must be a tone", ErrInvalidProfile, p.Name)
	}

	for i := range p.Segments {
		if err := p.Segments[i].Validate(); err != nil {
			return fmt.Errorf("%w: profile %q: segments[%d].%w", ErrInvalidProfile, p.Name, i, err)
		}

		if i > 0 && !p.Segments[i].IsTone() && !p.Segments[i-1].IsTone() {
			return fmt.Errorf("%w: profile %q: segments[%d]: adjacent silence segments", ErrInvalidProfile, p.Name, i)
		}
	}

	return nil
}

// ToneBand returns the union of all tone frequency ranges and the smallest tone magnitude threshold.
func (p *Profile) ToneBand() (Range, float64) {
	var (
		band         Range
		minMagnitude = 1.0
		found        bool
	)

	for i := range p.Segments {
		segment := &p.Segments[i]
		if !segment.IsTone() {
			continue
		}

		if !found {
			band = segment.Frequency
			found = true
		} else {
			band.Min = min(band.Min, segment.Frequency.Min)
			band.Max = max(band.Max, segment.Frequency.Max)
		}

		minMagnitude = min(minMagnitude, segment.MinMagnitude)
	}

	return band, minMagnitude
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}

	cloned := *p
	cloned.Segments = append([]Segment(nil), p.Segments...)

	return &cloned
}

// ValidateAll validates every profile and rejects duplicate names.
func ValidateAll(profiles []Profile) error {
	seen := make(map[string]struct{}, len(profiles))

	for i := range profiles {
		if err := profiles[i].Validate(); err != nil {
			return err
		}

		if _, ok := seen[profiles[i].Name]; ok {
			return fmt.Errorf("%w: profile %q: name: duplicate profile name", ErrInvalidProfile, profiles[i].Name)
		}

		seen[profiles[i].Name] = struct{}{}
	}

	return nil
}
