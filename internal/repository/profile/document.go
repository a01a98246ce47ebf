package profile

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
)

const (
	// frequencyShorthandTolerance widens a scalar frequency by ±5%.
	frequencyShorthandTolerance = 0.05
	// durationShorthandTolerance widens a scalar duration by ±20%.
	durationShorthandTolerance = 0.2
)

//nolint:gochecknoglobals // Fallback for segments without a duration.
var defaultSegmentDuration = alarm.Range{Min: 0.1, Max: 1.0}

// rangeValue accepts either a {min, max} mapping or a scalar.
type rangeValue struct {
	alarm.Range `yaml:",inline"`

	value  float64
	scalar bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *rangeValue) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		r.scalar = true

		return node.Decode(&r.value)
	}

	// node.Decode does not inherit the strict field check of the file decoder.
	if node.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if key := node.Content[i]; key.Value != "min" && key.Value != "max" {
				return fmt.Errorf("line %d: field %s not found in range, expected min or max", key.Line, key.Value)
			}
		}
	}

	return node.Decode(&r.Range)
}

// MarshalYAML implements yaml.Marshaler.
func (r rangeValue) MarshalYAML() (any, error) {
	if r.scalar {
		return r.value, nil
	}

	return r.Range, nil
}

// resolve returns the range, widening a scalar by the relative tolerance.
func (r *rangeValue) resolve(tolerance float64) alarm.Range {
	if !r.scalar {
		return r.Range
	}

	return alarm.Range{Min: r.value * (1 - tolerance), Max: r.value * (1 + tolerance)}
}

type segmentDocument struct {
	Frequency    *rangeValue `yaml:"frequency,omitempty"`
	Duration     *rangeValue `yaml:"duration,omitempty"`
	MinMagnitude *float64    `yaml:"min_magnitude,omitempty"`
	Type         string      `yaml:"type"`
}

type beepPatternDocument struct {
	Beep      alarm.Range `yaml:"beep"`
	Pause     alarm.Range `yaml:"pause"`
	Frequency float64     `yaml:"frequency"`
	// Tolerance is the half-width of the frequency band in Hz.
	Tolerance    float64  `yaml:"tolerance,omitempty"`
	MinMagnitude *float64 `yaml:"min_magnitude,omitempty"`
	Beeps        int      `yaml:"beeps"`
}

type profileDocument struct {
	ConfirmationCycles *int                 `yaml:"confirmation_cycles,omitempty"`
	ResetTimeout       *float64             `yaml:"reset_timeout,omitempty"`
	BeepPattern        *beepPatternDocument `yaml:"beep_pattern,omitempty"`
	Name               string               `yaml:"name"`
	Segments           []segmentDocument    `yaml:"segments,omitempty"`
}

type bundleDocument struct {
	Profiles []profileDocument `yaml:"profiles"`
}

// toProfile converts the document into a domain profile with defaults applied.
// The result still needs validation.
func (d *profileDocument) toProfile() (alarm.Profile, error) {
	profile := alarm.Profile{
		Name:               d.Name,
		ConfirmationCycles: alarm.DefaultConfirmationCycles,
		ResetTimeout:       alarm.DefaultResetTimeout,
	}

	if d.ConfirmationCycles != nil {
		profile.ConfirmationCycles = *d.ConfirmationCycles
	}

	if d.ResetTimeout != nil {
		profile.ResetTimeout = *d.ResetTimeout
	}

	switch {
	case d.BeepPattern != nil && len(d.Segments) > 0:
		return alarm.Profile{}, fmt.Errorf("%w: profile %q: segments and beep_pattern are mutually exclusive",
			alarm.ErrInvalidProfile, d.Name)
	case d.BeepPattern != nil:
		segments, err := d.BeepPattern.expand()
		if err != nil {
			return alarm.Profile{}, fmt.Errorf("%w: profile %q: beep_pattern.%w", alarm.ErrInvalidProfile, d.Name, err)
		}

		profile.Segments = segments
	default:
		for i := range d.Segments {
			profile.Segments = append(profile.Segments, d.Segments[i].toSegment())
		}
	}

	return profile, nil
}

func (d *segmentDocument) toSegment() alarm.Segment {
	segment := alarm.Segment{
		Kind:         alarm.SegmentKind(d.Type),
		Duration:     defaultSegmentDuration,
		MinMagnitude: alarm.DefaultMinMagnitude,
	}

	if segment.Kind == "" {
		segment.Kind = alarm.KindTone
	}

	if d.Duration != nil {
		segment.Duration = d.Duration.resolve(durationShorthandTolerance)
	}

	if !segment.IsTone() {
		segment.MinMagnitude = 0

		return segment
	}

	if d.Frequency != nil {
		segment.Frequency = d.Frequency.resolve(frequencyShorthandTolerance)
	}

	if d.MinMagnitude != nil {
		segment.MinMagnitude = *d.MinMagnitude
	}

	return segment
}

// expand turns the pattern into alternating tone and silence segments.
func (b *beepPatternDocument) expand() ([]alarm.Segment, error) {
	if b.Beeps < 1 {
		return nil, fmt.Errorf("beeps: must be at least 1, got %d", b.Beeps)
	}

	if b.Frequency <= 0 {
		return nil, fmt.Errorf("frequency: must be positive, got %g", b.Frequency)
	}

	tolerance := b.Tolerance
	if tolerance <= 0 {
		tolerance = b.Frequency * frequencyShorthandTolerance
	}

	tone := alarm.Tone(alarm.Range{Min: b.Frequency - tolerance, Max: b.Frequency + tolerance}, b.Beep)
	if b.MinMagnitude != nil {
		tone.MinMagnitude = *b.MinMagnitude
	}

	pause := alarm.Silence(b.Pause)

	segments := make([]alarm.Segment, 0, 2*b.Beeps)
	for range b.Beeps {
		segments = append(segments, tone, pause)
	}

	return segments, nil
}

// fromProfile renders a profile with explicit segments and ranges.
func fromProfile(profile *alarm.Profile) profileDocument {
	cycles := profile.ConfirmationCycles
	timeout := profile.ResetTimeout

	document := profileDocument{
		Name:               profile.Name,
		ConfirmationCycles: &cycles,
		ResetTimeout:       &timeout,
		Segments:           make([]segmentDocument, 0, len(profile.Segments)),
	}

	for _, segment := range profile.Segments {
		segmentDoc := segmentDocument{
			Type:     string(segment.Kind),
			Duration: &rangeValue{Range: segment.Duration},
		}

		if segment.IsTone() {
			minMagnitude := segment.MinMagnitude
			segmentDoc.Frequency = &rangeValue{Range: segment.Frequency}
			segmentDoc.MinMagnitude = &minMagnitude
		}

		document.Segments = append(document.Segments, segmentDoc)
	}

	return document
}
