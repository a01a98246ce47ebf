package spectral

import (
	"errors"
	"fmt"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
)

const (
	// DefaultMinMagnitude is the normalized magnitude a bin must reach to become a peak.
	DefaultMinMagnitude = 0.05
	// DefaultMinSharpness is the ratio a peak must exceed against its four neighbours.
	DefaultMinSharpness = 1.5
	// DefaultMaxPeaks caps the number of peaks reported per chunk.
	DefaultMaxPeaks = 5
	// DefaultNoiseFloor is the raw spectrum maximum below which a chunk is treated as silence.
	DefaultNoiseFloor = 0.01

	// pcmScale converts signed 16-bit samples into [-1, 1).
	pcmScale = 32768.0
	// edgeBins are skipped at both ends of the spectrum to avoid DC and Nyquist artefacts.
	edgeBins = 2
	// minChunkSize keeps the neighbour comparison inside the spectrum.
	minChunkSize = 16
	// zeroNeighbourAverage replaces a zero neighbourhood when computing sharpness.
	zeroNeighbourAverage = 1e-6
)

var (
	// ErrInvalidSampleRate indicates a non-positive sample rate.
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	// ErrInvalidChunkSize indicates a chunk too small to analyse.
	ErrInvalidChunkSize = errors.New("chunk size is too small")
	// ErrInvalidThreshold indicates a negative or out-of-range detection threshold.
	ErrInvalidThreshold = errors.New("invalid peak threshold")
)

// Config controls peak extraction.
type Config struct {
	// SampleRate is the audio sample rate in Hz.
	SampleRate int
	// ChunkSize is the exact number of samples per analysed chunk.
	ChunkSize int
	// MinMagnitude is the normalized (0..1) floor a peak must reach.
	MinMagnitude float64
	// MinSharpness is the peak to neighbour-average ratio a peak must exceed.
	MinSharpness float64
	// MaxPeaks caps the number of returned peaks.
	MaxPeaks int
	// NoiseFloor is the raw magnitude maximum under which the chunk has no peaks at all.
	NoiseFloor float64
}

// DefaultConfig returns the peak extraction defaults for the given stream format.
func DefaultConfig(sampleRate, chunkSize int) Config {
	return Config{
		SampleRate:   sampleRate,
		ChunkSize:    chunkSize,
		MinMagnitude: DefaultMinMagnitude,
		MinSharpness: DefaultMinSharpness,
		MaxPeaks:     DefaultMaxPeaks,
		NoiseFloor:   DefaultNoiseFloor,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, c.SampleRate)
	}

	if c.ChunkSize < minChunkSize {
		return fmt.Errorf("%w: %d < %d", ErrInvalidChunkSize, c.ChunkSize, minChunkSize)
	}

	if c.MinMagnitude < 0 || c.MinMagnitude > 1 {
		return fmt.Errorf("%w: min magnitude %g", ErrInvalidThreshold, c.MinMagnitude)
	}

	if c.MinSharpness < 0 || c.NoiseFloor < 0 {
		return fmt.Errorf("%w: sharpness %g, noise floor %g", ErrInvalidThreshold, c.MinSharpness, c.NoiseFloor)
	}

	if c.MaxPeaks <= 0 {
		return fmt.Errorf("%w: max peaks %d", ErrInvalidThreshold, c.MaxPeaks)
	}

	return nil
}

// Spectrum is the analysis of one chunk.
type Spectrum struct {
	// Magnitudes holds the spectrum normalized by its maximum, one entry per FFT bin.
	Magnitudes []float64
	// Peaks are the accepted peaks, strongest first.
	Peaks []alarm.Peak
	// BinWidth is the frequency resolution in Hz.
	BinWidth float64
	// RawMax is the unnormalized maximum magnitude.
	RawMax float64
}

// Frequency returns the center frequency of a bin.
func (s *Spectrum) Frequency(bin int) float64 {
	return float64(bin) * s.BinWidth
}

// Monitor extracts narrowband peaks from fixed-size PCM chunks.
// A Monitor reuses internal buffers and must not be shared between goroutines.
type Monitor struct {
	cfg      Config
	fft      *fourier.FFT
	taper    []float64
	windowed []float64
	coeff    []complex128
	binWidth float64
}

// New creates a Monitor with a precomputed Hann window and FFT plan.
func New(cfg Config) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Monitor{
		cfg:      cfg,
		fft:      fourier.NewFFT(cfg.ChunkSize),
		taper:    hann(cfg.ChunkSize),
		windowed: make([]float64, cfg.ChunkSize),
		coeff:    make([]complex128, cfg.ChunkSize/2+1),
		binWidth: float64(cfg.SampleRate) / float64(cfg.ChunkSize),
	}, nil
}

// Config returns the monitor configuration.
func (m *Monitor) Config() Config {
	return m.cfg
}

// BinWidth returns the frequency resolution in Hz.
func (m *Monitor) BinWidth() float64 {
	return m.binWidth
}

// Process returns the peaks of a chunk, strongest first.
// Chunks of the wrong length and silent chunks yield no peaks.
func (m *Monitor) Process(chunk []int16) []alarm.Peak {
	spectrum := m.Analyze(chunk)
	if spectrum == nil {
		return nil
	}

	return spectrum.Peaks
}

// Analyze computes the normalized spectrum and its peaks.
// It returns nil when the chunk length is wrong or the chunk is silent.
func (m *Monitor) Analyze(chunk []int16) *Spectrum {
	if len(chunk) != m.cfg.ChunkSize {
		return nil
	}

	for i, sample := range chunk {
		m.windowed[i] = float64(sample) / pcmScale * m.taper[i]
	}

	m.coeff = m.fft.Coefficients(m.coeff, m.windowed)

	magnitudes := make([]float64, len(m.coeff))
	for i, c := range m.coeff {
		magnitudes[i] = cmplx.Abs(c)
	}

	rawMax := floats.Max(magnitudes)
	if rawMax == 0 || rawMax < m.cfg.NoiseFloor {
		return nil
	}

	floats.Scale(1/rawMax, magnitudes)

	return &Spectrum{
		Magnitudes: magnitudes,
		Peaks:      m.findPeaks(magnitudes),
		BinWidth:   m.binWidth,
		RawMax:     rawMax,
	}
}

// findPeaks scans interior bins for sharp local maxima.
func (m *Monitor) findPeaks(magnitudes []float64) []alarm.Peak {
	var peaks []alarm.Peak

	for i := edgeBins; i < len(magnitudes)-edgeBins; i++ {
		magnitude := magnitudes[i]
		if magnitude < m.cfg.MinMagnitude {
			continue
		}

		if magnitude <= magnitudes[i-1] || magnitude <= magnitudes[i+1] {
			continue
		}

		neighbours := (magnitudes[i-2] + magnitudes[i-1] + magnitudes[i+1] + magnitudes[i+2]) / 4
		if neighbours == 0 {
			neighbours = zeroNeighbourAverage
		}

		if magnitude/neighbours <= m.cfg.MinSharpness {
			continue
		}

		peaks = append(peaks, alarm.Peak{
			Frequency: float64(i) * m.binWidth,
			Magnitude: magnitude,
			Bin:       i,
		})
	}

	sort.SliceStable(peaks, func(a, b int) bool {
		return peaks[a].Magnitude > peaks[b].Magnitude
	})

	if len(peaks) > m.cfg.MaxPeaks {
		peaks = peaks[:m.cfg.MaxPeaks]
	}

	return peaks
}

// hann returns the symmetric Hann window coefficients of length n.
func hann(n int) []float64 {
	coefficients := make([]float64, n)
	for i := range coefficients {
		coefficients[i] = 1
	}

	return window.Hann(coefficients)
}
