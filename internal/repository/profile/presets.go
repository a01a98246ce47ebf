package profile

import (
	"fmt"
	"slices"

	"github.com/h0tp-ftw/alarm-audio-detector/internal/domain/alarm"
)

const (
	// PresetSmoke is the temporal-three smoke alarm cadence.
	PresetSmoke = "smoke"
	// PresetCO is the temporal-four carbon monoxide alarm cadence.
	PresetCO = "co"

	presetFrequency     = 3150.0
	presetTolerance     = 150.0
	presetMinMagnitude  = 0.15
	presetCycles        = 2
	smokeBeepsPerCycle  = 3
	carbonBeepsPerCycle = 4
)

// ErrUnknownPreset is returned for preset names other than PresetSmoke and PresetCO.
var ErrUnknownPreset = fmt.Errorf("unknown preset, expected %q or %q", PresetSmoke, PresetCO)

// Presets lists the built-in preset names.
func Presets() []string {
	return []string{PresetSmoke, PresetCO}
}

// Preset returns a built-in profile by name.
func Preset(name string) (alarm.Profile, error) {
	switch name {
	case PresetSmoke:
		return beepProfile(PresetSmoke, smokeBeepsPerCycle), nil
	case PresetCO:
		return beepProfile(PresetCO, carbonBeepsPerCycle), nil
	default:
		return alarm.Profile{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
}

// IsPreset reports whether name is a built-in preset.
func IsPreset(name string) bool {
	return slices.Contains(Presets(), name)
}

func beepProfile(name string, beeps int) alarm.Profile {
	minMagnitude := presetMinMagnitude

	pattern := beepPatternDocument{
		Frequency:    presetFrequency,
		Tolerance:    presetTolerance,
		Beeps:        beeps,
		Beep:         alarm.Range{Min: 0.1, Max: 1.5},
		Pause:        alarm.Range{Min: 0.05, Max: 2.5},
		MinMagnitude: &minMagnitude,
	}

	//nolint:errcheck // The pattern above always expands.
	segments, _ := pattern.expand()

	return alarm.Profile{
		Name:               name,
		Segments:           segments,
		ConfirmationCycles: presetCycles,
		ResetTimeout:       alarm.DefaultResetTimeout,
	}
}
