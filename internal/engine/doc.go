// Package engine runs the detection pipeline over PCM chunks:
// spectral peaks, the optional quality gate, tone events and cadence matching.
// A match raises the detection flag, which drops again after the dwell window.
package engine
