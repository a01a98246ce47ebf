// Package config defines the detector settings file and provides helpers to
// load, validate and save it in YAML format.
//
// Zero values select defaults: the stream format, dwell window and every
// pipeline threshold fall back to the values the detector was tuned with.
package config
