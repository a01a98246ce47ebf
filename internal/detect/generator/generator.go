package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/logger"
)

const (
	// DefaultFrequencyTolerance is the distance in Hz within which a peak continues a tone.
	DefaultFrequencyTolerance = 50.0
	// DefaultMinToneDuration is the shortest tone in seconds that is reported.
	DefaultMinToneDuration = 0.1
	// DefaultDropoutTolerance is how long in seconds a tone may be missing before it ends.
	DefaultDropoutTolerance = 0.15
)

// ErrInvalidConfig is returned for out-of-range generator settings.
var ErrInvalidConfig = errors.New("invalid event generator config")

// Config controls tone tracking.
type Config struct {
	SampleRate         int
	ChunkSize          int
	FrequencyTolerance float64
	MinToneDuration    float64
	DropoutTolerance   float64
}

// DefaultConfig returns the tracking defaults for the given stream format.
func DefaultConfig(sampleRate, chunkSize int) Config {
	return Config{
		SampleRate:         sampleRate,
		ChunkSize:          chunkSize,
		FrequencyTolerance: DefaultFrequencyTolerance,
		MinToneDuration:    DefaultMinToneDuration,
		DropoutTolerance:   DefaultDropoutTolerance,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.ChunkSize <= 0:
		return fmt.Errorf("%w: chunk size %d", ErrInvalidConfig, c.ChunkSize)
	case c.FrequencyTolerance <= 0:
		return fmt.Errorf("%w: frequency tolerance %g", ErrInvalidConfig, c.FrequencyTolerance)
	case c.MinToneDuration < 0 || c.DropoutTolerance < 0:
		return fmt.Errorf("%w: min duration %g, dropout %g", ErrInvalidConfig, c.MinToneDuration, c.DropoutTolerance)
	}

	return nil
}

// ChunkDuration returns the length of one chunk in seconds.
func (c *Config) ChunkDuration() float64 {
	return float64(c.ChunkSize) / float64(c.SampleRate)
}

// maxObservations bounds the frequency history of one tone. A tone that stays
// open for a long time keeps only its latest peaks.
const maxObservations = 64

// tracker follows one tone that is still sounding.
type tracker struct {
	// observed holds the latest matched peak frequencies, sorted ascending.
	observed []float64
	// recent holds the same frequencies in arrival order as a ring.
	recent    []float64
	next      int
	start     float64
	lastSeen  float64
	magnitude float64
	chunks    int
}

func newTracker(peak *alarm.Peak, timestamp float64) *tracker {
	return &tracker{
		observed:  []float64{peak.Frequency},
		recent:    []float64{peak.Frequency},
		start:     timestamp,
		lastSeen:  timestamp,
		magnitude: peak.Magnitude,
		chunks:    1,
	}
}

// frequency returns the median of the observed frequencies.
func (t *tracker) frequency() float64 {
	return stat.Quantile(0.5, stat.Empirical, t.observed, nil)
}

func (t *tracker) observe(frequency float64) {
	if len(t.recent) < maxObservations {
		t.recent = append(t.recent, frequency)
	} else {
		t.forget(t.recent[t.next])
		t.recent[t.next] = frequency
		t.next = (t.next + 1) % maxObservations
	}

	i := sort.SearchFloat64s(t.observed, frequency)
	t.observed = append(t.observed, 0)
	copy(t.observed[i+1:], t.observed[i:])
	t.observed[i] = frequency
}

// forget removes one occurrence of frequency from the sorted history.
func (t *tracker) forget(frequency float64) {
	i := sort.SearchFloat64s(t.observed, frequency)
	if i == len(t.observed) || t.observed[i] != frequency {
		return
	}

	t.observed = append(t.observed[:i], t.observed[i+1:]...)
}

// Generator tracks concurrent tones across chunks.
// It is not safe for concurrent use.
type Generator struct {
	cfg           Config
	chunkDuration float64
	trackers      []*tracker
	// matched marks trackers already counted in the current call.
	matched []bool
}

// New creates a generator without open tones.
func New(cfg Config) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Generator{
		cfg:           cfg,
		chunkDuration: cfg.ChunkDuration(),
	}, nil
}

// Config returns the generator configuration.
func (g *Generator) Config() Config {
	return g.cfg
}

// Active returns the number of open tones.
func (g *Generator) Active() int {
	return len(g.trackers)
}

// Process associates the chunk's peaks with open tones and returns the tones
// that ended, ordered by start time.
func (g *Generator) Process(ctx context.Context, peaks []alarm.Peak, timestamp float64) []alarm.ToneEvent {
	g.matched = g.matched[:0]
	for range g.trackers {
		g.matched = append(g.matched, false)
	}

	for i := range peaks {
		peak := &peaks[i]

		if idx := g.associate(peak.Frequency); idx >= 0 {
			t := g.trackers[idx]
			t.magnitude = max(t.magnitude, peak.Magnitude)

			// Several peaks of one tone in the same chunk count once.
			if !g.matched[idx] {
				g.matched[idx] = true
				t.lastSeen = timestamp
				t.chunks++
				t.observe(peak.Frequency)
			}

			continue
		}

		g.trackers = append(g.trackers, newTracker(peak, timestamp))
		g.matched = append(g.matched, true)
	}

	var (
		events []alarm.ToneEvent
		open   = g.trackers[:0]
	)

	for i, t := range g.trackers {
		if g.matched[i] || timestamp-t.lastSeen <= g.cfg.DropoutTolerance {
			open = append(open, t)

			continue
		}

		if event, ok := g.close(ctx, t); ok {
			events = append(events, event)
		}
	}

	clear(g.trackers[len(open):])
	g.trackers = open

	sortByStart(events)

	return events
}

// Flush ends every open tone, as at the end of a stream.
func (g *Generator) Flush(ctx context.Context, timestamp float64) []alarm.ToneEvent {
	var events []alarm.ToneEvent

	for _, t := range g.trackers {
		if event, ok := g.close(ctx, t); ok {
			events = append(events, event)
		}
	}

	if len(g.trackers) > 0 {
		logger.DebugKV(ctx, "Flushed open tones", "count", len(g.trackers), "events", len(events), "at", timestamp)
	}

	clear(g.trackers)
	g.trackers = g.trackers[:0]

	sortByStart(events)

	return events
}

// Reset drops every open tone without reporting it.
func (g *Generator) Reset() {
	clear(g.trackers)
	g.trackers = g.trackers[:0]
}

// associate returns the index of the first tracker within tolerance, or -1.
// Matching is greedy in creation order, so two tones closer than the
// tolerance merge into whichever tracker was opened first.
func (g *Generator) associate(frequency float64) int {
	for i, t := range g.trackers {
		if math.Abs(frequency-t.frequency()) < g.cfg.FrequencyTolerance {
			return i
		}
	}

	return -1
}

func (g *Generator) close(ctx context.Context, t *tracker) (alarm.ToneEvent, bool) {
	event := alarm.ToneEvent{
		Timestamp: t.start,
		Duration:  float64(t.chunks) * g.chunkDuration,
		Frequency: t.frequency(),
		Magnitude: t.magnitude,
	}

	if event.Duration < g.cfg.MinToneDuration {
		logger.DebugKV(ctx, "Discarded short tone",
			"frequency", event.Frequency, "duration", event.Duration, "start", event.Timestamp)

		return alarm.ToneEvent{}, false
	}

	logger.DebugKV(ctx, "Tone ended",
		"frequency", event.Frequency, "duration", event.Duration,
		"magnitude", event.Magnitude, "start", event.Timestamp)

	return event, true
}

func sortByStart(events []alarm.ToneEvent) {
	sort.SliceStable(events, func(a, b int) bool {
		return events[a].Timestamp < events[b].Timestamp
	})
}
