package alarm

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRange_Contains checks containment against the bound definition for random inputs.
func TestRange_Contains(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))

	for range 1000 {
		r := Range{Min: rng.Float64()*100 - 50, Max: rng.Float64()*100 - 50}
		v := rng.Float64()*120 - 60

		require.Equal(t, r.Min <= v && v <= r.Max, r.Contains(v), "range %s value %g", r, v)
	}

	// Bounds are inclusive.
	r := Range{Min: 1, Max: 2}
	require.True(t, r.Contains(1))
	require.True(t, r.Contains(2))
	require.False(t, r.Contains(2.0000001))
}

// TestRange_Validate rejects inverted ranges only.
func TestRange_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Range{Min: 1, Max: 1}.Validate())
	require.ErrorIs(t, Range{Min: 2, Max: 1}.Validate(), ErrInvertedRange)
}

// validProfile returns the two-tone siren used across tests.
func validProfile() Profile {
	return Profile{
		Name: "siren",
		Segments: []Segment{
			Tone(Range{Min: 900, Max: 1100}, Range{Min: 0.4, Max: 0.6}),
			Silence(Range{Min: 0.1, Max: 0.3}),
			Tone(Range{Min: 1900, Max: 2100}, Range{Min: 0.4, Max: 0.6}),
			Silence(Range{Min: 0.8, Max: 1.2}),
		},
		ConfirmationCycles: 2,
		ResetTimeout:       DefaultResetTimeout,
	}
}

// TestProfile_Validate covers the field-identifying validation errors.
func TestProfile_Validate(t *testing.T) {
	t.Parallel()

	p := validProfile()
	require.NoError(t, p.Validate())

	cases := map[string]struct {
		mutate   func(p *Profile)
		contains string
	}{
		"missing name": {
			mutate:   func(p *Profile) { p.Name = " " },
			contains: "name",
		},
		"no segments": {
			mutate:   func(p *Profile) { p.Segments = nil },
			contains: "segments",
		},
		"zero cycles": {
			mutate:   func(p *Profile) { p.ConfirmationCycles = 0 },
			contains: "confirmation_cycles",
		},
		"zero timeout": {
			mutate:   func(p *Profile) { p.ResetTimeout = 0 },
			contains: "reset_timeout",
		},
		"leading silence": {
			mutate:   func(p *Profile) { p.Segments = append([]Segment{Silence(Range{Max: 1})}, p.Segments...) },
			contains: "segments[0]",
		},
		"inverted duration": {
			mutate:   func(p *Profile) { p.Segments[2].Duration = Range{Min: 0.6, Max: 0.4} },
			contains: "segments[2].duration",
		},
		"inverted frequency": {
			mutate:   func(p *Profile) { p.Segments[0].Frequency = Range{Min: 1100, Max: 900} },
			contains: "segments[0].frequency",
		},
		"missing frequency": {
			mutate:   func(p *Profile) { p.Segments[2].Frequency = Range{} },
			contains: "segments[2].frequency",
		},
		"unknown kind": {
			mutate:   func(p *Profile) { p.Segments[1].Kind = "noise" },
			contains: "segments[1].type",
		},
		"adjacent silences": {
			mutate: func(p *Profile) {
				p.Segments = append(p.Segments[:2:2], Silence(Range{Max: 1}), p.Segments[2])
			},
			contains: "segments[2]",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			p := validProfile()
			tc.mutate(&p)

			err := p.Validate()
			require.ErrorIs(t, err, ErrInvalidProfile)
			require.ErrorContains(t, err, tc.contains)
		})
	}
}

// TestValidateAll_Duplicates ensures profile names are unique.
func TestValidateAll_Duplicates(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateAll([]Profile{validProfile()}))
	require.ErrorContains(t, ValidateAll([]Profile{validProfile(), validProfile()}), "duplicate")
}

// TestSegment_Accepts checks frequency, duration and magnitude matching.
func TestSegment_Accepts(t *testing.T) {
	t.Parallel()

	s := Tone(Range{Min: 900, Max: 1100}, Range{Min: 0.4, Max: 0.6})

	require.True(t, s.Accepts(&ToneEvent{Frequency: 1000, Duration: 0.5, Magnitude: 1}))
	require.False(t, s.Accepts(&ToneEvent{Frequency: 1200, Duration: 0.5, Magnitude: 1}))
	require.False(t, s.Accepts(&ToneEvent{Frequency: 1000, Duration: 0.7, Magnitude: 1}))
	require.False(t, s.Accepts(&ToneEvent{Frequency: 1000, Duration: 0.5, Magnitude: 0.01}))

	silence := Silence(Range{Min: 0, Max: 1})
	require.False(t, silence.Accepts(&ToneEvent{Frequency: 1000, Duration: 0.5, Magnitude: 1}))
}

// TestProfile_ToneBand returns the union of tone ranges.
func TestProfile_ToneBand(t *testing.T) {
	t.Parallel()

	p := validProfile()
	p.Segments[2].MinMagnitude = 0.02

	band, minMagnitude := p.ToneBand()
	require.Equal(t, Range{Min: 900, Max: 2100}, band)
	require.InDelta(t, 0.02, minMagnitude, 1e-12)
}

// TestProfile_Clone verifies the segment slice is not shared.
func TestProfile_Clone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Profile)(nil).Clone())

	p := validProfile()
	c := p.Clone()
	c.Segments[0].Frequency.Min = 1

	require.InDelta(t, 900, p.Segments[0].Frequency.Min, 1e-12)
}
