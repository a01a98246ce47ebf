package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/detect/generator"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/detect/matcher"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/dsp/quality"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/dsp/spectral"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
)

// DefaultDwell is how long the detection flag stays raised after a match.
const DefaultDwell = 10 * time.Second

// ErrNoProfiles is returned when the engine would have nothing to match.
var ErrNoProfiles = errors.New("at least one alarm profile is required")

// Options configures the pipeline.
// Zero-valued stage configs are replaced with their defaults.
type Options struct {
	// OnStateChange is called once per transition of the detection flag.
	// Calls are serialized and must not block for long.
	OnStateChange func(state *alarm.State)

	Spectral spectral.Config
	Events   generator.Config
	Quality  quality.Config

	SampleRate int
	ChunkSize  int
	// Dwell is how long the flag stays raised after a match.
	Dwell time.Duration
	// HighPrecision gates peaks through the quality analyzer when a single profile is loaded.
	HighPrecision bool
}

func (o *Options) withDefaults() Options {
	opts := *o

	if opts.Dwell <= 0 {
		opts.Dwell = DefaultDwell
	}

	if opts.Spectral.MaxPeaks == 0 {
		opts.Spectral = spectral.DefaultConfig(opts.SampleRate, opts.ChunkSize)
	}

	opts.Spectral.SampleRate, opts.Spectral.ChunkSize = opts.SampleRate, opts.ChunkSize

	if opts.Events.FrequencyTolerance == 0 {
		opts.Events = generator.DefaultConfig(opts.SampleRate, opts.ChunkSize)
	}

	opts.Events.SampleRate, opts.Events.ChunkSize = opts.SampleRate, opts.ChunkSize

	if opts.Quality.FrequencyWindow == 0 {
		opts.Quality = quality.DefaultConfig()
	}

	return opts
}

// Engine owns the per-stream pipeline state.
// Ingest, Flush and SetProfiles must be called from a single goroutine;
// Active, State and Close may be called from anywhere.
type Engine struct {
	opts      Options
	monitor   *spectral.Monitor
	generator *generator.Generator
	matcher   *matcher.Matcher
	// gate is nil unless high precision applies to the loaded profiles.
	gate          *quality.Gate
	clock         float64
	chunkDuration float64

	// notifyMu orders transitions together with their callbacks.
	notifyMu sync.Mutex
	// mu guards the fields below.
	mu         sync.Mutex
	state      alarm.State
	timer      *time.Timer
	generation uint64
	closed     bool
}

// New validates the options and profiles and builds the pipeline.
func New(profiles []alarm.Profile, options Options) (*Engine, error) {
	opts := options.withDefaults()

	monitor, err := spectral.New(opts.Spectral)
	if err != nil {
		return nil, fmt.Errorf("spectral monitor: %w", err)
	}

	gen, err := generator.New(opts.Events)
	if err != nil {
		return nil, fmt.Errorf("event generator: %w", err)
	}

	if err = opts.Quality.Validate(); err != nil {
		return nil, fmt.Errorf("quality analyzer: %w", err)
	}

	e := &Engine{
		opts:          opts,
		monitor:       monitor,
		generator:     gen,
		chunkDuration: opts.Events.ChunkDuration(),
	}

	if err = e.load(profiles); err != nil {
		return nil, err
	}

	return e, nil
}

func (e *Engine) load(profiles []alarm.Profile) error {
	if len(profiles) == 0 {
		return ErrNoProfiles
	}

	m, err := matcher.New(profiles)
	if err != nil {
		return err
	}

	var gate *quality.Gate

	if e.opts.HighPrecision && len(profiles) == 1 {
		band, minMagnitude := profiles[0].ToneBand()

		gate, err = quality.NewGate(band, minMagnitude, e.opts.Quality)
		if err != nil {
			return fmt.Errorf("quality analyzer: %w", err)
		}
	}

	e.matcher = m
	e.gate = gate

	return nil
}

// SetProfiles replaces the loaded profiles between two chunks.
// Matching progress and quality history start over; open tones are kept.
func (e *Engine) SetProfiles(ctx context.Context, profiles []alarm.Profile) error {
	if err := e.load(profiles); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Alarm profiles loaded", "count", len(profiles), "high_precision", e.gate != nil)

	return nil
}

// Profiles returns copies of the loaded profiles.
func (e *Engine) Profiles() []alarm.Profile {
	return e.matcher.Profiles()
}

// Ingest processes one chunk and returns the matches it completed.
// Chunks of the wrong length advance the clock but yield nothing.
func (e *Engine) Ingest(ctx context.Context, chunk []int16) []alarm.PatternMatchEvent {
	e.clock += e.chunkDuration

	events := e.generator.Process(ctx, e.peaks(ctx, chunk), e.clock)

	return e.match(ctx, events, e.generator.Active() == 0)
}

// Flush closes open tones at the end of a stream and returns the resulting matches.
func (e *Engine) Flush(ctx context.Context) []alarm.PatternMatchEvent {
	return e.match(ctx, e.generator.Flush(ctx, e.clock), true)
}

// Clock returns the stream time in seconds of the last ingested chunk.
func (e *Engine) Clock() float64 {
	return e.clock
}

// MatcherState exposes the matching progress of a profile.
func (e *Engine) MatcherState(name string) (matcher.State, bool) {
	return e.matcher.State(name)
}

func (e *Engine) peaks(ctx context.Context, chunk []int16) []alarm.Peak {
	if e.gate == nil {
		return e.monitor.Process(chunk)
	}

	spectrum := e.monitor.Analyze(chunk)

	candidate, result := e.gate.Check(spectrum)
	if !result.Valid {
		if candidate.Detected {
			logger.DebugKV(ctx, "Chunk rejected by quality gate",
				"at", e.clock, "reasons", result.Reasons)
		}

		return nil
	}

	return spectrum.Peaks
}

func (e *Engine) match(ctx context.Context, events []alarm.ToneEvent, quiet bool) []alarm.PatternMatchEvent {
	var matches []alarm.PatternMatchEvent

	for i := range events {
		matches = append(matches, e.matcher.Process(ctx, &events[i])...)
	}

	matches = append(matches, e.matcher.Tick(ctx, e.clock, quiet)...)

	for i := range matches {
		e.activate(ctx, &matches[i])
	}

	return matches
}

// Active reports whether the detection flag is raised.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state.Active
}

// State returns a copy of the detection state.
func (e *Engine) State() *alarm.State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state.Clone()
}

// Close stops the dwell timer. The flag is left as it is and no further
// transitions are reported.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.generation++

	if e.timer != nil {
		e.timer.Stop()
	}
}

// activate raises the flag. Matches while it is raised do not extend the dwell window.
func (e *Engine) activate(ctx context.Context, match *alarm.PatternMatchEvent) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()

	if e.closed || e.state.Active {
		e.mu.Unlock()

		return
	}

	e.generation++
	generation := e.generation

	e.state = alarm.State{
		Timestamp:   time.Now(),
		Profile:     match.Profile,
		DetectionID: uuid.NewString(),
		CycleCount:  match.CycleCount,
		Active:      true,
	}
	e.timer = time.AfterFunc(e.opts.Dwell, func() {
		e.expire(ctx, generation)
	})

	snapshot := e.state.Clone()
	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm detected",
		"profile", snapshot.Profile, "detection_id", snapshot.DetectionID,
		"cycles", snapshot.CycleCount, "stream_time", match.Timestamp)

	e.notify(snapshot)
}

func (e *Engine) expire(ctx context.Context, generation uint64) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()

	e.mu.Lock()

	if e.closed || generation != e.generation || !e.state.Active {
		e.mu.Unlock()

		return
	}

	e.state.Active = false
	e.state.Timestamp = time.Now()
	e.timer = nil

	snapshot := e.state.Clone()
	e.mu.Unlock()

	logger.InfoKV(ctx, "Alarm cleared", "profile", snapshot.Profile, "detection_id", snapshot.DetectionID)

	e.notify(snapshot)
}

func (e *Engine) notify(state *alarm.State) {
	if e.opts.OnStateChange != nil {
		e.opts.OnStateChange(state)
	}
}
