// Package profile loads, saves and watches alarm profile files.
//
// A file holds a single profile, a list of profiles or a mapping with a
// "profiles" key. Ranges may be written as {min, max} mappings or as a single
// value widened by a relative tolerance. A profile may describe its cadence
// with explicit segments or with a beep_pattern block.
package profile
