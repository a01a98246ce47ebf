package quality

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultMinEnergyRatio is the share of spectral energy the band must hold.
	DefaultMinEnergyRatio = 0.5
	// DefaultMinPeakSharpness is the peak to neighbourhood ratio a tone must reach.
	DefaultMinPeakSharpness = 3.0
	// DefaultMaxFrequencyDeviation is the largest dominant frequency deviation in Hz.
	DefaultMaxFrequencyDeviation = 50.0
	// DefaultMinMagnitudeConsistency is the smallest accepted min/max ratio of recent magnitudes.
	DefaultMinMagnitudeConsistency = 0.3
	// DefaultFrequencyWindow is the number of dominant frequencies kept for the stability check.
	DefaultFrequencyWindow = 10
	// DefaultMagnitudeWindow is the number of magnitudes kept for the consistency check.
	DefaultMagnitudeWindow = 5

	sharpnessRadius = 10
	minHistory      = 3
	epsilon         = 1e-10
)

// ReasonNoDetection is reported for chunks without in-band energy.
const ReasonNoDetection = "no primary detection"

// ErrInvalidConfig is returned for out-of-range analyzer settings.
var ErrInvalidConfig = errors.New("invalid quality analyzer config")

// Config holds the quality thresholds.
type Config struct {
	MinEnergyRatio          float64
	MinPeakSharpness        float64
	MaxFrequencyDeviation   float64
	MinMagnitudeConsistency float64
	FrequencyWindow         int
	MagnitudeWindow         int
}

// DefaultConfig returns the default quality thresholds.
func DefaultConfig() Config {
	return Config{
		MinEnergyRatio:          DefaultMinEnergyRatio,
		MinPeakSharpness:        DefaultMinPeakSharpness,
		MaxFrequencyDeviation:   DefaultMaxFrequencyDeviation,
		MinMagnitudeConsistency: DefaultMinMagnitudeConsistency,
		FrequencyWindow:         DefaultFrequencyWindow,
		MagnitudeWindow:         DefaultMagnitudeWindow,
	}
}

// Validate checks the thresholds.
func (c *Config) Validate() error {
	switch {
	case c.MinEnergyRatio < 0 || c.MinEnergyRatio >= 1:
		return fmt.Errorf("%w: min energy ratio %g", ErrInvalidConfig, c.MinEnergyRatio)
	case c.MinPeakSharpness < 0:
		return fmt.Errorf("%w: min peak sharpness %g", ErrInvalidConfig, c.MinPeakSharpness)
	case c.MaxFrequencyDeviation <= 0:
		return fmt.Errorf("%w: max frequency deviation %g", ErrInvalidConfig, c.MaxFrequencyDeviation)
	case c.MinMagnitudeConsistency < 0 || c.MinMagnitudeConsistency >= 1:
		return fmt.Errorf("%w: min magnitude consistency %g", ErrInvalidConfig, c.MinMagnitudeConsistency)
	case c.FrequencyWindow < minHistory || c.MagnitudeWindow < minHistory:
		return fmt.Errorf("%w: history windows must hold at least %d values", ErrInvalidConfig, minHistory)
	}

	return nil
}

// Metrics are the measured values behind a Result.
type Metrics struct {
	EnergyRatio          float64
	PeakSharpness        float64
	FrequencyDeviation   float64
	MagnitudeConsistency float64
}

// Result is the verdict for one candidate.
type Result struct {
	// Reasons lists every failed check.
	Reasons []string
	Metrics Metrics
	Valid   bool
}

// Analyzer validates candidates against spectral and temporal quality checks.
// It keeps short histories and must not be shared between goroutines.
type Analyzer struct {
	cfg         Config
	frequencies *history
	magnitudes  *history
}

// NewAnalyzer creates an analyzer with empty histories.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Analyzer{
		cfg:         cfg,
		frequencies: newHistory(cfg.FrequencyWindow),
		magnitudes:  newHistory(cfg.MagnitudeWindow),
	}, nil
}

// Analyze runs all checks on the candidate. Every metric must be strictly
// better than its threshold; a value equal to the threshold fails.
// Histories are cleared only when the candidate has no detection.
func (a *Analyzer) Analyze(candidate *Candidate) Result {
	if !candidate.Detected || candidate.Spectrum == nil {
		a.Reset()

		return Result{Reasons: []string{ReasonNoDetection}}
	}

	var (
		result     = Result{Valid: true}
		magnitudes = candidate.Spectrum.Magnitudes
	)

	reject := func(format string, args ...any) {
		result.Valid = false
		result.Reasons = append(result.Reasons, fmt.Sprintf(format, args...))
	}

	band := candidate.Band()
	result.Metrics.EnergyRatio = floats.Dot(band, band) / (floats.Dot(magnitudes, magnitudes) + epsilon)

	if result.Metrics.EnergyRatio <= a.cfg.MinEnergyRatio {
		reject("low energy ratio: %.3f <= %g", result.Metrics.EnergyRatio, a.cfg.MinEnergyRatio)
	}

	result.Metrics.PeakSharpness = sharpness(magnitudes, candidate.PeakBin)
	if result.Metrics.PeakSharpness <= a.cfg.MinPeakSharpness {
		reject("low sharpness: %.1f <= %g", result.Metrics.PeakSharpness, a.cfg.MinPeakSharpness)
	}

	a.frequencies.push(candidate.DominantFrequency)

	if a.frequencies.len() >= minHistory {
		result.Metrics.FrequencyDeviation = stat.PopStdDev(a.frequencies.snapshot(), nil)
		if result.Metrics.FrequencyDeviation >= a.cfg.MaxFrequencyDeviation {
			reject("unstable frequency: std %.1f >= %g", result.Metrics.FrequencyDeviation, a.cfg.MaxFrequencyDeviation)
		}
	}

	a.magnitudes.push(candidate.Magnitude)

	result.Metrics.MagnitudeConsistency = 1
	if a.magnitudes.len() >= minHistory {
		recent := a.magnitudes.snapshot()
		result.Metrics.MagnitudeConsistency = floats.Min(recent) / (floats.Max(recent) + epsilon)

		if result.Metrics.MagnitudeConsistency <= a.cfg.MinMagnitudeConsistency {
			reject("inconsistent magnitude: %.2f <= %g",
				result.Metrics.MagnitudeConsistency, a.cfg.MinMagnitudeConsistency)
		}
	}

	return result
}

// Reset clears the temporal histories.
func (a *Analyzer) Reset() {
	a.frequencies.reset()
	a.magnitudes.reset()
}

// sharpness divides the peak by the mean of up to ten bins on each side.
func sharpness(magnitudes []float64, peak int) float64 {
	start := max(0, peak-sharpnessRadius)
	end := min(len(magnitudes), peak+sharpnessRadius+1)

	neighbours := end - start - 1
	if neighbours <= 0 {
		return 0
	}

	average := (floats.Sum(magnitudes[start:end]) - magnitudes[peak]) / float64(neighbours)

	return magnitudes[peak] / (average + epsilon)
}
