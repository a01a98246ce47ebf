// Package audiotest synthesizes PCM signals for tests.
package audiotest

import (
	"bytes"
	"encoding/binary"
	"math"
)

const fullScale = math.MaxInt16

// Tone returns a sine of the given frequency in Hz and amplitude (0..1) lasting seconds.
func Tone(sampleRate int, frequency, amplitude, seconds float64) []int16 {
	samples := make([]int16, int(math.Round(seconds*float64(sampleRate))))
	for i := range samples {
		phase := 2 * math.Pi * frequency * float64(i) / float64(sampleRate)
		samples[i] = int16(amplitude * fullScale * math.Sin(phase))
	}

	return samples
}

// Silence returns seconds of digital silence.
func Silence(sampleRate int, seconds float64) []int16 {
	return make([]int16, int(math.Round(seconds*float64(sampleRate))))
}

// Concat joins signals end to end.
func Concat(parts ...[]int16) []int16 {
	var out []int16
	for _, part := range parts {
		out = append(out, part...)
	}

	return out
}

// Mix adds b onto a sample by sample with clipping. The result has the length of a.
func Mix(a, b []int16) []int16 {
	out := make([]int16, len(a))
	for i := range a {
		sum := int32(a[i])
		if i < len(b) {
			sum += int32(b[i])
		}

		out[i] = int16(max(math.MinInt16, min(math.MaxInt16, sum)))
	}

	return out
}

// Cadence repeats a tone followed by a pause, then appends tail seconds of silence.
func Cadence(sampleRate int, frequency, amplitude, tone, pause float64, beeps int, tail float64) []int16 {
	var parts [][]int16
	for range beeps {
		parts = append(parts,
			Tone(sampleRate, frequency, amplitude, tone),
			Silence(sampleRate, pause))
	}

	parts = append(parts, Silence(sampleRate, tail))

	return Concat(parts...)
}

// Chunks splits samples into complete chunks, dropping the remainder.
func Chunks(samples []int16, size int) [][]int16 {
	chunks := make([][]int16, 0, len(samples)/size)
	for start := 0; start+size <= len(samples); start += size {
		chunks = append(chunks, samples[start:start+size])
	}

	return chunks
}

// PCM encodes samples as raw s16le.
func PCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}

	return out
}

// WAV wraps samples in a mono 16-bit PCM RIFF container.
func WAV(sampleRate int, samples []int16) []byte {
	data := PCM(samples)

	var buf bytes.Buffer

	write := func(v any) {
		// bytes.Buffer writes never fail.
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	buf.WriteString("RIFF")
	write(uint32(36 + len(data)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	write(uint32(16))
	write(uint16(1))
	write(uint16(1))
	write(uint32(sampleRate))
	write(uint32(sampleRate * 2))
	write(uint16(2))
	write(uint16(16))

	buf.WriteString("data")
	write(uint32(len(data)))
	buf.Write(data)

	return buf.Bytes()
}
