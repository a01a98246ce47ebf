// Package quality rejects chunks whose energy around the alarm band does not look like a
// narrowband alarm tone. It is used in high precision mode, when a single profile is loaded.
package quality
