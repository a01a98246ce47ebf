package tuner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/audio/audiotest"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/engine"
)

const (
	sampleRate = 44100
	chunkSize  = 4096
)

// temporalThree records two cycles of three beeps with a long pause after each cycle.
func temporalThree() []int16 {
	cycle := audiotest.Cadence(sampleRate, 3150, 0.5, 0.5, 0.5, 3, 1.0)

	return audiotest.Concat(cycle, cycle)
}

// twoTone records two cycles of a low and a high tone.
func twoTone() []int16 {
	cycle := audiotest.Concat(
		audiotest.Tone(sampleRate, 1000, 0.5, 0.5),
		audiotest.Silence(sampleRate, 0.3),
		audiotest.Tone(sampleRate, 2000, 0.5, 0.5),
		audiotest.Silence(sampleRate, 1.0),
	)

	return audiotest.Concat(cycle, cycle, audiotest.Silence(sampleRate, 0.5))
}

func newTuner(t *testing.T) *Tuner {
	t.Helper()

	tuner, err := New(DefaultConfig(sampleRate, chunkSize))
	require.NoError(t, err)

	return tuner
}

func propose(t *testing.T, samples []int16) (*Result, error) {
	t.Helper()

	ctx := context.Background()
	tuner := newTuner(t)

	for _, chunk := range audiotest.Chunks(samples, chunkSize) {
		tuner.Ingest(ctx, chunk)
	}

	return tuner.Propose(ctx, "recorded")
}

func requireContains(t *testing.T, r alarm.Range, v float64) {
	t.Helper()

	require.True(t, r.Contains(v), "%g outside %s", v, r)
}

// TestTuner_Propose_TemporalThree finds the three-beep cycle and its long pause.
func TestTuner_Propose_TemporalThree(t *testing.T) {
	t.Parallel()

	result, err := propose(t, temporalThree())
	require.NoError(t, err)

	require.Len(t, result.Tones, 6)
	require.Equal(t, 3, result.Period)
	require.Equal(t, 2, result.Cycles)
	require.InDelta(t, 1.0, result.Confidence, 1e-9)
	require.Empty(t, result.Warnings)

	profile := result.Profile
	require.Equal(t, "recorded", profile.Name)
	require.Equal(t, 2, profile.ConfirmationCycles)
	require.InDelta(t, alarm.DefaultResetTimeout, profile.ResetTimeout, 1e-9)
	require.NoError(t, profile.Validate())
	require.Len(t, profile.Segments, 6)

	for i, segment := range profile.Segments {
		if i%2 == 0 {
			require.True(t, segment.IsTone(), "segment %d", i)
			requireContains(t, segment.Frequency, 3150)
			require.InDelta(t, 3150*0.1, segment.Frequency.Max-segment.Frequency.Min, 3150*0.01)
			requireContains(t, segment.Duration, 0.5)

			continue
		}

		require.False(t, segment.IsTone(), "segment %d", i)
	}

	// The inner pauses are short, the one closing the cycle is long.
	requireContains(t, profile.Segments[1].Duration, 0.45)
	requireContains(t, profile.Segments[3].Duration, 0.45)
	requireContains(t, profile.Segments[5].Duration, 1.45)
	require.Less(t, profile.Segments[1].Duration.Max, profile.Segments[5].Duration.Min)
}

// TestTuner_Propose_DetectsItsOwnRecording feeds the recording back through the
// engine with the proposed profile.
func TestTuner_Propose_DetectsItsOwnRecording(t *testing.T) {
	t.Parallel()

	for name, samples := range map[string][]int16{
		"temporal three": temporalThree(),
		"two tone":       twoTone(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result, err := propose(t, samples)
			require.NoError(t, err)

			eng, err := engine.New([]alarm.Profile{result.Profile}, engine.Options{
				SampleRate: sampleRate,
				ChunkSize:  chunkSize,
			})
			require.NoError(t, err)
			t.Cleanup(eng.Close)

			ctx := context.Background()

			var matches []alarm.PatternMatchEvent
			for _, chunk := range audiotest.Chunks(samples, chunkSize) {
				matches = append(matches, eng.Ingest(ctx, chunk)...)
			}

			matches = append(matches, eng.Flush(ctx)...)
			require.Len(t, matches, 1)
			require.Equal(t, "recorded", matches[0].Profile)
		})
	}
}

// TestTuner_Propose_TwoTone keeps the tone order within the cycle.
func TestTuner_Propose_TwoTone(t *testing.T) {
	t.Parallel()

	result, err := propose(t, twoTone())
	require.NoError(t, err)

	require.Equal(t, 2, result.Period)
	require.Equal(t, 2, result.Cycles)

	segments := result.Profile.Segments
	require.Len(t, segments, 4)
	require.True(t, segments[0].IsTone())
	requireContains(t, segments[0].Frequency, 1000)
	require.False(t, segments[0].Frequency.Contains(2000))
	require.False(t, segments[1].IsTone())
	require.True(t, segments[2].IsTone())
	requireContains(t, segments[2].Frequency, 2000)
	require.False(t, segments[3].IsTone())
	require.Less(t, segments[1].Duration.Max, segments[3].Duration.Min)
}

// TestTuner_Propose_EvenBeeps reduces evenly spaced beeps to one tone and one pause.
func TestTuner_Propose_EvenBeeps(t *testing.T) {
	t.Parallel()

	result, err := propose(t, audiotest.Cadence(sampleRate, 3150, 0.5, 0.5, 0.5, 5, 1.0))
	require.NoError(t, err)

	require.Equal(t, 1, result.Period)
	require.Equal(t, 5, result.Cycles)
	require.Len(t, result.Profile.Segments, 2)
	require.Equal(t, DefaultMaxConfirmationCycles, result.Profile.ConfirmationCycles)
}

// TestTuner_Propose_SingleBeep proposes a one-tone profile with low confidence.
func TestTuner_Propose_SingleBeep(t *testing.T) {
	t.Parallel()

	samples := audiotest.Concat(audiotest.Tone(sampleRate, 3150, 0.5, 0.5), audiotest.Silence(sampleRate, 0.5))

	result, err := propose(t, samples)
	require.NoError(t, err)

	require.Equal(t, 1, result.Period)
	require.Equal(t, 1, result.Cycles)
	require.Len(t, result.Profile.Segments, 1)
	require.Equal(t, 1, result.Profile.ConfirmationCycles)
	require.Less(t, result.Confidence, LowConfidence)
	require.Contains(t, result.Warnings, "only one tone detected")
	require.Contains(t, result.Warnings, "low confidence extraction, consider recording a cleaner sample")
}

// TestTuner_Propose_Silence reports a recording without tones.
func TestTuner_Propose_Silence(t *testing.T) {
	t.Parallel()

	_, err := propose(t, audiotest.Silence(sampleRate, 2))
	require.ErrorIs(t, err, ErrNoTones)
}

// TestConfig_Validate rejects unusable tolerances and mismatched stages.
func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig(sampleRate, chunkSize)
	require.NoError(t, cfg.Validate())

	cases := map[string]func(*Config){
		"frequency tolerance": func(c *Config) { c.FrequencyTolerance = -0.1 },
		"duration tolerance":  func(c *Config) { c.DurationTolerance = 1 },
		"cluster tolerance":   func(c *Config) { c.ClusterTolerance = 0 },
		"cycles":              func(c *Config) { c.MaxConfirmationCycles = 0 },
		"reset timeout":       func(c *Config) { c.ResetTimeout = 0 },
		"stream formats":      func(c *Config) { c.Events.ChunkSize = 2048 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig(sampleRate, chunkSize)
			mutate(&cfg)

			_, err := New(cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

// TestSequential keeps the longest of overlapping tones in start order.
func TestSequential(t *testing.T) {
	t.Parallel()

	tones := sequential([]alarm.ToneEvent{
		{Timestamp: 3, Duration: 0.5, Frequency: 3000},
		{Timestamp: 0, Duration: 1, Frequency: 1000},
		{Timestamp: 0.5, Duration: 0.2, Frequency: 2000},
		{Timestamp: 1.5, Duration: 0.2, Frequency: 6300},
		{Timestamp: 1.6, Duration: 0.6, Frequency: 3150},
	})

	require.Equal(t, []alarm.ToneEvent{
		{Timestamp: 0, Duration: 1, Frequency: 1000},
		{Timestamp: 1.6, Duration: 0.6, Frequency: 3150},
		{Timestamp: 3, Duration: 0.5, Frequency: 3000},
	}, tones)
}
