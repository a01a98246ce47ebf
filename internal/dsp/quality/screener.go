package quality

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
	"github.com/h0tp-ftw/alarm-audio-detector/internal/dsp/spectral"
)

// Candidate is the strongest in-band component of one chunk.
type Candidate struct {
	// Spectrum is the analysed chunk. Nil for silent chunks.
	Spectrum *spectral.Spectrum
	// Magnitude is the normalized band maximum.
	Magnitude float64
	// DominantFrequency is the frequency of the band maximum in Hz.
	DominantFrequency float64
	// PeakBin is the spectrum index of the band maximum.
	PeakBin int
	// BandStart and BandEnd are the inclusive spectrum indices of the target band.
	BandStart, BandEnd int
	// Detected is set when the band maximum exceeds the screener threshold.
	Detected bool
}

// Band returns the normalized magnitudes of the target band.
func (c *Candidate) Band() []float64 {
	if c.Spectrum == nil || c.BandStart > c.BandEnd {
		return nil
	}

	return c.Spectrum.Magnitudes[c.BandStart : c.BandEnd+1]
}

// Screener looks for energy inside a frequency band.
type Screener struct {
	band         alarm.Range
	minMagnitude float64
}

// NewScreener creates a screener for the band, accepting band maxima above minMagnitude.
func NewScreener(band alarm.Range, minMagnitude float64) *Screener {
	return &Screener{
		band:         band,
		minMagnitude: minMagnitude,
	}
}

// Band returns the screened frequency range.
func (s *Screener) Band() alarm.Range {
	return s.band
}

// Screen finds the band maximum of the spectrum.
func (s *Screener) Screen(spectrum *spectral.Spectrum) Candidate {
	if spectrum == nil || len(spectrum.Magnitudes) == 0 || spectrum.BinWidth <= 0 {
		return Candidate{}
	}

	last := len(spectrum.Magnitudes) - 1
	start := nearestBin(s.band.Min, spectrum.BinWidth, last)
	end := nearestBin(s.band.Max, spectrum.BinWidth, last)

	candidate := Candidate{
		Spectrum:  spectrum,
		BandStart: start,
		BandEnd:   end,
	}

	band := candidate.Band()
	if len(band) == 0 {
		return candidate
	}

	peak := floats.MaxIdx(band)
	candidate.Magnitude = band[peak]

	if candidate.Magnitude > s.minMagnitude {
		candidate.PeakBin = start + peak
		candidate.DominantFrequency = spectrum.Frequency(candidate.PeakBin)
		candidate.Detected = true
	}

	return candidate
}

func nearestBin(frequency, binWidth float64, last int) int {
	bin := int(math.Round(frequency / binWidth))

	return max(0, min(bin, last))
}

// Gate pairs a screener with an analyzer for one target band.
type Gate struct {
	screener *Screener
	analyzer *Analyzer
}

// NewGate creates a gate for the band with fresh analyzer histories.
func NewGate(band alarm.Range, minMagnitude float64, cfg Config) (*Gate, error) {
	analyzer, err := NewAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	return &Gate{
		screener: NewScreener(band, minMagnitude),
		analyzer: analyzer,
	}, nil
}

// Check screens the spectrum and analyzes the resulting candidate.
func (g *Gate) Check(spectrum *spectral.Spectrum) (Candidate, Result) {
	candidate := g.screener.Screen(spectrum)

	return candidate, g.analyzer.Analyze(&candidate)
}

// Reset clears the analyzer histories.
func (g *Gate) Reset() {
	g.analyzer.Reset()
}
