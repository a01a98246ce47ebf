// Package audio reads signed 16-bit little-endian mono PCM, raw or wrapped in
// a WAV container, and hands it out in fixed-size chunks.
package audio
