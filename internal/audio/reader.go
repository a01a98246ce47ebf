package audio

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	bytesPerSample = 2
	readBufferSize = 64 * 1024
)

var (
	// ErrInvalidChunkSize is returned for non-positive chunk sizes.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	// ErrUnsupportedFormat is returned for WAV streams other than mono 16-bit PCM.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrMalformedWAV is returned when the RIFF structure cannot be parsed.
	ErrMalformedWAV = errors.New("malformed WAV stream")
)

// ChunkReader yields fixed-size PCM chunks until io.EOF.
type ChunkReader interface {
	ReadChunk() ([]int16, error)
}

// Reader splits a PCM byte stream into chunks.
type Reader struct {
	src        *bufio.Reader
	raw        []byte
	chunkSize  int
	sampleRate int
	// remaining is the number of data bytes left in a WAV stream, -1 when unbounded.
	remaining int64
}

// NewReader reads headerless s16le mono PCM.
func NewReader(r io.Reader, chunkSize int) (*Reader, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidChunkSize, chunkSize)
	}

	return &Reader{
		src:       bufio.NewReaderSize(r, readBufferSize),
		raw:       make([]byte, chunkSize*bytesPerSample),
		chunkSize: chunkSize,
		remaining: -1,
	}, nil
}

// NewWAVReader parses a RIFF/WAVE header and reads the PCM data that follows.
// Only mono 16-bit integer PCM is accepted.
func NewWAVReader(r io.Reader, chunkSize int) (*Reader, error) {
	reader, err := NewReader(r, chunkSize)
	if err != nil {
		return nil, err
	}

	if err = reader.readWAVHeader(); err != nil {
		return nil, err
	}

	return reader, nil
}

// SampleRate returns the rate announced by a WAV header, or 0 for raw streams.
func (r *Reader) SampleRate() int {
	return r.sampleRate
}

// ChunkSize returns the number of samples per chunk.
func (r *Reader) ChunkSize() int {
	return r.chunkSize
}

// ReadChunk returns the next complete chunk.
// A trailing partial chunk is dropped and reported as io.EOF.
func (r *Reader) ReadChunk() ([]int16, error) {
	if r.remaining >= 0 && r.remaining < int64(len(r.raw)) {
		return nil, io.EOF
	}

	if _, err := io.ReadFull(r.src, r.raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}

		return nil, err
	}

	if r.remaining > 0 {
		r.remaining -= int64(len(r.raw))
	}

	chunk := make([]int16, r.chunkSize)
	for i := range chunk {
		chunk[i] = int16(binary.LittleEndian.Uint16(r.raw[i*bytesPerSample:]))
	}

	return chunk, nil
}

// wavFormat is the part of the "fmt " chunk that matters here.
type wavFormat struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	wavFormatChunkSize  = 16
)

func (r *Reader) readWAVHeader() error {
	var riff [12]byte
	if _, err := io.ReadFull(r.src, riff[:]); err != nil {
		return fmt.Errorf("%w: header: %w", ErrMalformedWAV, err)
	}

	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return fmt.Errorf("%w: missing RIFF/WAVE signature", ErrMalformedWAV)
	}

	var format *wavFormat

	for {
		var header [8]byte
		if _, err := io.ReadFull(r.src, header[:]); err != nil {
			return fmt.Errorf("%w: no data chunk: %w", ErrMalformedWAV, err)
		}

		id := string(header[0:4])
		size := int64(binary.LittleEndian.Uint32(header[4:8]))

		switch id {
		case "fmt ":
			if size < wavFormatChunkSize {
				return fmt.Errorf("%w: fmt chunk of %d bytes", ErrMalformedWAV, size)
			}

			format = new(wavFormat)
			if err := binary.Read(r.src, binary.LittleEndian, format); err != nil {
				return fmt.Errorf("%w: fmt chunk: %w", ErrMalformedWAV, err)
			}

			if err := r.skip(size - wavFormatChunkSize + size%2); err != nil {
				return err
			}
		case "data":
			if format == nil {
				return fmt.Errorf("%w: data chunk before fmt chunk", ErrMalformedWAV)
			}

			if err := format.validate(); err != nil {
				return err
			}

			r.sampleRate = int(format.SampleRate)
			r.remaining = size

			return nil
		default:
			if err := r.skip(size + size%2); err != nil {
				return err
			}
		}
	}
}

func (r *Reader) skip(n int64) error {
	if _, err := io.CopyN(io.Discard, r.src, n); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedWAV, err)
	}

	return nil
}

func (f *wavFormat) validate() error {
	if f.AudioFormat != wavFormatPCM && f.AudioFormat != wavFormatExtensible {
		return fmt.Errorf("%w: audio format %d is not PCM", ErrUnsupportedFormat, f.AudioFormat)
	}

	if f.Channels != 1 {
		return fmt.Errorf("%w: %d channels, expected mono", ErrUnsupportedFormat, f.Channels)
	}

	if f.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample, expected 16", ErrUnsupportedFormat, f.BitsPerSample)
	}

	if f.SampleRate == 0 {
		return fmt.Errorf("%w: zero sample rate", ErrUnsupportedFormat)
	}

	return nil
}
