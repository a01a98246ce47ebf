package tuner

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/detect/generator"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/dsp/spectral"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
)

const (
	// DefaultFrequencyTolerance widens proposed frequency ranges by ±5%.
	DefaultFrequencyTolerance = 0.05
	// DefaultDurationTolerance widens proposed duration ranges by ±20%.
	DefaultDurationTolerance = 0.2
	// DefaultClusterTolerance is the relative distance within which two tones share a frequency cluster.
	DefaultClusterTolerance = 0.1
	// DefaultMaxConfirmationCycles caps the proposed confirmation cycles.
	DefaultMaxConfirmationCycles = 2

	// LowConfidence is the score under which a warning is attached to the result.
	LowConfidence = 0.5

	minTonesForPattern  = 2
	minRecordingSeconds = 1.0
	maxClusterVariation = 0.1
)

var (
	// ErrInvalidConfig is returned for out-of-range tuner settings.
	ErrInvalidConfig = errors.New("invalid tuner config")
	// ErrNoTones is returned when the recording holds no usable tone.
	ErrNoTones = errors.New("no tones detected, the recording may be too quiet or too noisy")
)

// Config controls profile extraction.
type Config struct {
	Spectral spectral.Config
	Events   generator.Config
	// FrequencyTolerance is the relative half-width of proposed frequency ranges.
	FrequencyTolerance float64
	// DurationTolerance is the relative half-width of proposed duration ranges.
	DurationTolerance float64
	// ClusterTolerance is the relative frequency distance that joins two tones.
	ClusterTolerance float64
	// MaxConfirmationCycles caps the proposed confirmation cycles.
	MaxConfirmationCycles int
	// ResetTimeout is written to the proposed profile.
	ResetTimeout float64
}

// DefaultConfig returns the extraction defaults for the given stream format.
func DefaultConfig(sampleRate, chunkSize int) Config {
	return Config{
		Spectral:              spectral.DefaultConfig(sampleRate, chunkSize),
		Events:                generator.DefaultConfig(sampleRate, chunkSize),
		FrequencyTolerance:    DefaultFrequencyTolerance,
		DurationTolerance:     DefaultDurationTolerance,
		ClusterTolerance:      DefaultClusterTolerance,
		MaxConfirmationCycles: DefaultMaxConfirmationCycles,
		ResetTimeout:          alarm.DefaultResetTimeout,
	}
}

// Validate checks the configuration and the nested stage settings.
func (c *Config) Validate() error {
	if err := c.Spectral.Validate(); err != nil {
		return err
	}

	if err := c.Events.Validate(); err != nil {
		return err
	}

	switch {
	case c.Spectral.SampleRate != c.Events.SampleRate || c.Spectral.ChunkSize != c.Events.ChunkSize:
		return fmt.Errorf("%w: spectral and event stream formats differ", ErrInvalidConfig)
	case c.FrequencyTolerance < 0 || c.FrequencyTolerance >= 1:
		return fmt.Errorf("%w: frequency tolerance %g", ErrInvalidConfig, c.FrequencyTolerance)
	case c.DurationTolerance < 0 || c.DurationTolerance >= 1:
		return fmt.Errorf("%w: duration tolerance %g", ErrInvalidConfig, c.DurationTolerance)
	case c.ClusterTolerance <= 0 || c.ClusterTolerance >= 1:
		return fmt.Errorf("%w: cluster tolerance %g", ErrInvalidConfig, c.ClusterTolerance)
	case c.MaxConfirmationCycles < 1:
		return fmt.Errorf("%w: max confirmation cycles %d", ErrInvalidConfig, c.MaxConfirmationCycles)
	case c.ResetTimeout <= 0:
		return fmt.Errorf("%w: reset timeout %g", ErrInvalidConfig, c.ResetTimeout)
	}

	return nil
}

// Result is a proposed profile and the evidence behind it.
type Result struct {
	// Profile is the proposal, ready to be saved.
	Profile alarm.Profile
	// Tones lists every measured tone in stream order.
	Tones []alarm.ToneEvent
	// Warnings explains anything that lowered the confidence.
	Warnings []string
	// Period is the number of tones in one cycle.
	Period int
	// Cycles is the number of complete cycles in the recording.
	Cycles int
	// Confidence scores the extraction between 0 and 1.
	Confidence float64
}

// Tuner accumulates tones from a recording.
// It is not safe for concurrent use.
type Tuner struct {
	cfg           Config
	monitor       *spectral.Monitor
	generator     *generator.Generator
	tones         []alarm.ToneEvent
	clock         float64
	chunkDuration float64
}

// New creates a tuner for one recording.
func New(cfg Config) (*Tuner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	monitor, err := spectral.New(cfg.Spectral)
	if err != nil {
		return nil, err
	}

	events, err := generator.New(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Tuner{
		cfg:           cfg,
		monitor:       monitor,
		generator:     events,
		chunkDuration: cfg.Events.ChunkDuration(),
	}, nil
}

// Ingest measures one chunk exactly as detection would, so chunks under the
// spectral noise floor count as silence.
func (t *Tuner) Ingest(ctx context.Context, chunk []int16) {
	t.clock += t.chunkDuration

	t.tones = append(t.tones, t.generator.Process(ctx, t.monitor.Process(chunk), t.clock)...)
}

// Clock returns the stream time in seconds of the last ingested chunk.
func (t *Tuner) Clock() float64 {
	return t.clock
}

// Propose closes open tones and derives a profile named name.
func (t *Tuner) Propose(ctx context.Context, name string) (*Result, error) {
	t.tones = append(t.tones, t.generator.Flush(ctx, t.clock)...)

	tones := sequential(t.tones)
	if len(tones) == 0 {
		return nil, ErrNoTones
	}

	var (
		labels, clusters = cluster(tones, t.cfg.ClusterTolerance)
		gaps             = gapsBetween(tones)
		period           = t.period(tones, labels, gaps)
		cycles           = len(tones) / period
	)

	result := &Result{
		Profile: alarm.Profile{
			Name:               name,
			Segments:           t.segments(tones, gaps, period),
			ConfirmationCycles: min(cycles, t.cfg.MaxConfirmationCycles),
			ResetTimeout:       t.cfg.ResetTimeout,
		},
		Tones:  tones,
		Period: period,
		Cycles: cycles,
	}

	result.Confidence, result.Warnings = confidence(tones, clusters, cycles)

	if err := result.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("proposed profile: %w", err)
	}

	logger.InfoKV(ctx, "Profile proposed",
		"profile", name, "tones", len(tones), "period", period, "cycles", cycles,
		"segments", len(result.Profile.Segments), "confidence", result.Confidence)

	return result, nil
}

// period returns the smallest number of tones after which the sequence repeats,
// or the whole sequence when it never does.
func (t *Tuner) period(tones []alarm.ToneEvent, labels []int, gaps []float64) int {
	for p := 1; p <= len(tones)/2; p++ {
		if t.repeats(tones, labels, gaps, p) {
			return p
		}
	}

	return len(tones)
}

func (t *Tuner) repeats(tones []alarm.ToneEvent, labels []int, gaps []float64, p int) bool {
	for i := p; i < len(tones); i++ {
		if labels[i] != labels[i-p] || !t.similar(tones[i].Duration, tones[i-p].Duration) {
			return false
		}
	}

	for i := p; i < len(gaps); i++ {
		if !t.similar(gaps[i], gaps[i-p]) {
			return false
		}
	}

	return true
}

// similar compares two measured durations. One chunk of slack absorbs the
// resolution of the measurement.
func (t *Tuner) similar(a, b float64) bool {
	return math.Abs(a-b) <= t.cfg.DurationTolerance*max(a, b)+t.chunkDuration
}

// segments builds one tone per position of the period, each followed by the
// silence measured after it. Silences shorter than a chunk are not resolvable
// and are left out, so such tones follow each other directly.
func (t *Tuner) segments(tones []alarm.ToneEvent, gaps []float64, period int) []alarm.Segment {
	segments := make([]alarm.Segment, 0, 2*period)

	for k := range period {
		var frequencies, durations, pauses []float64

		for i := k; i < len(tones); i += period {
			frequencies = append(frequencies, tones[i].Frequency)
			durations = append(durations, tones[i].Duration)

			if i < len(gaps) {
				pauses = append(pauses, gaps[i])
			}
		}

		segments = append(segments, alarm.Tone(
			widen(median(frequencies), t.cfg.FrequencyTolerance, 0),
			widen(stat.Mean(durations, nil), t.cfg.DurationTolerance, t.chunkDuration),
		))

		if len(pauses) == 0 {
			continue
		}

		if pause := stat.Mean(pauses, nil); pause >= t.chunkDuration {
			segments = append(segments, alarm.Silence(widen(pause, t.cfg.DurationTolerance, t.chunkDuration)))
		}
	}

	return segments
}

// widen turns a measured value into a range of ±tolerance plus slack, never below zero.
func widen(value, tolerance, slack float64) alarm.Range {
	return alarm.Range{
		Min: max(0, value*(1-tolerance)-slack),
		Max: value*(1+tolerance) + slack,
	}
}

// sequential orders tones by start and keeps the longest of overlapping tones,
// so harmonics and short glitches do not become steps of the cadence.
func sequential(tones []alarm.ToneEvent) []alarm.ToneEvent {
	sorted := slices.Clone(tones)
	slices.SortStableFunc(sorted, func(a, b alarm.ToneEvent) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})

	out := sorted[:0]

	for _, tone := range sorted {
		if n := len(out); n > 0 && tone.Timestamp < out[n-1].End() {
			if tone.Duration > out[n-1].Duration {
				out[n-1] = tone
			}

			continue
		}

		out = append(out, tone)
	}

	return out
}

func gapsBetween(tones []alarm.ToneEvent) []float64 {
	gaps := make([]float64, 0, max(0, len(tones)-1))
	for i := 1; i < len(tones); i++ {
		gaps = append(gaps, tones[i].Timestamp-tones[i-1].End())
	}

	return gaps
}

// cluster labels every tone with the index of the first cluster whose first
// frequency lies within the relative tolerance, and returns the member
// frequencies of every cluster.
func cluster(tones []alarm.ToneEvent, tolerance float64) ([]int, [][]float64) {
	var (
		labels   = make([]int, len(tones))
		clusters [][]float64
	)

	for i := range tones {
		frequency := tones[i].Frequency

		labels[i] = -1

		for c, members := range clusters {
			if math.Abs(frequency-members[0])/members[0] < tolerance {
				labels[i] = c
				clusters[c] = append(members, frequency)

				break
			}
		}

		if labels[i] < 0 {
			labels[i] = len(clusters)
			clusters = append(clusters, []float64{frequency})
		}
	}

	return labels, clusters
}

// confidence scores the extraction and explains every penalty.
func confidence(tones []alarm.ToneEvent, clusters [][]float64, cycles int) (float64, []string) {
	var (
		score    = 1.0
		warnings []string
	)

	if len(tones) < minTonesForPattern {
		score *= 0.5

		warnings = append(warnings, "only one tone detected")
	}

	for _, members := range clusters {
		if len(members) < 2 {
			continue
		}

		mean := stat.Mean(members, nil)
		if stat.PopStdDev(members, nil)/mean > maxClusterVariation {
			score *= 0.8

			warnings = append(warnings, fmt.Sprintf("tone frequency around %.0f Hz varies by more than %.0f%%",
				mean, maxClusterVariation*100))
		}
	}

	if span := tones[len(tones)-1].End() - tones[0].Timestamp; span < minRecordingSeconds {
		score *= 0.7

		warnings = append(warnings, fmt.Sprintf("tones span only %.2fs", span))
	}

	if cycles < 2 {
		warnings = append(warnings, "the pattern did not repeat, record at least two cycles")
	}

	if score < LowConfidence {
		warnings = append(warnings, "low confidence extraction, consider recording a cleaner sample")
	}

	return score, warnings
}

func median(values []float64) float64 {
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
