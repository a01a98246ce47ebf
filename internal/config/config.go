package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by the detector binaries.
type Config struct {
	// ServerAddress is the gRPC address the detector listens on and the status client dials.
	ServerAddress string `yaml:"server_addr"`
	// StateFile is the path to the JSON file storing the last detection state.
	StateFile string `yaml:"state_file"`
	// ProfilesFile is the YAML file with the alarm profiles. Empty means the smoke preset.
	ProfilesFile string `yaml:"profiles_file,omitempty"`
	// LogLevel is the minimum level written to the log.
	LogLevel string `yaml:"log_level,omitempty" validate:"omitempty,oneof=debug info warn warning error"`
	// Timeout is the duration for network operations and RPC calls.
	Timeout time.Duration `yaml:"timeout"`
	// Audio describes the PCM stream.
	Audio Audio `yaml:"audio"`
	// Detection tunes how matches become a detection signal.
	Detection Detection `yaml:"detection"`
	// Spectral tunes peak extraction.
	Spectral Spectral `yaml:"spectral,omitempty"`
	// Events tunes tone tracking.
	Events Events `yaml:"events,omitempty"`
	// Quality tunes the high precision gate.
	Quality Quality `yaml:"quality,omitempty"`
}

// Audio is the PCM stream format.
type Audio struct {
	SampleRate int `yaml:"sample_rate" validate:"gt=0,lte=384000"`
	ChunkSize  int `yaml:"chunk_size"  validate:"gte=16,lte=1048576"`
}

// Detection controls the detection flag.
type Detection struct {
	// Dwell is how long the flag stays raised after a match.
	Dwell time.Duration `yaml:"dwell" validate:"gte=0"`
	// HighPrecision enables the quality gate when exactly one profile is loaded.
	HighPrecision bool `yaml:"high_precision"`
	// WatchProfiles reloads the profiles file when it changes.
	WatchProfiles bool `yaml:"watch_profiles"`
}

// Spectral overrides peak extraction thresholds. Zero keeps the default.
type Spectral struct {
	MinMagnitude float64 `yaml:"min_magnitude,omitempty" validate:"gte=0,lte=1"`
	MinSharpness float64 `yaml:"min_sharpness,omitempty" validate:"gte=0"`
	MaxPeaks     int     `yaml:"max_peaks,omitempty"     validate:"gte=0"`
	NoiseFloor   float64 `yaml:"noise_floor,omitempty"   validate:"gte=0"`
}

// Events overrides tone tracking settings. Zero keeps the default.
type Events struct {
	FrequencyTolerance float64 `yaml:"frequency_tolerance,omitempty" validate:"gte=0"`
	MinToneDuration    float64 `yaml:"min_tone_duration,omitempty"   validate:"gte=0"`
	DropoutTolerance   float64 `yaml:"dropout_tolerance,omitempty"   validate:"gte=0"`
}

// Quality overrides the high precision thresholds. Zero keeps the default.
type Quality struct {
	MinEnergyRatio          float64 `yaml:"min_energy_ratio,omitempty"          validate:"gte=0,lt=1"`
	MinPeakSharpness        float64 `yaml:"min_peak_sharpness,omitempty"        validate:"gte=0"`
	MaxFrequencyDeviation   float64 `yaml:"max_frequency_deviation,omitempty"   validate:"gte=0"`
	MinMagnitudeConsistency float64 `yaml:"min_magnitude_consistency,omitempty" validate:"gte=0,lt=1"`
}

const (
	// DefaultConfigFilename is the default filename for the detector settings.
	DefaultConfigFilename = "alarm-detector-settings.yaml"

	// DefaultStateFilename is the default filename for the detection state JSON.
	DefaultStateFilename = "alarm-detector-state.json"

	// DefaultServerAddress is where the detector listens when nothing else is configured.
	DefaultServerAddress = "127.0.0.1:50051"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultSampleRate is the capture rate assumed for raw PCM.
	DefaultSampleRate = 44100

	// DefaultChunkSize is the number of samples analysed at once.
	DefaultChunkSize = 4096

	// DefaultDwell is how long the detection flag stays raised.
	DefaultDwell = 10 * time.Second

	// DefaultFilePermissions is the default file permission for settings, profiles and state.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errServerSocketRequired is returned when server address is missing.
	errServerSocketRequired = errors.New("server address must be provided")
)

// Default returns the settings used when no file exists.
func Default() *Config {
	cfg := new(Config)
	cfg.ServerAddress = DefaultServerAddress

	//nolint:errcheck // Defaults always validate.
	_ = Validate(cfg)

	return cfg
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault reads the settings file, falling back to Default when it does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes settings to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
func Validate(settings *Config) error {
	if settings == nil {
		return errConfigIsNotSet
	}

	if settings.ServerAddress == "" {
		return errServerSocketRequired
	}

	if _, err := net.ResolveTCPAddr("tcp", settings.ServerAddress); err != nil {
		return fmt.Errorf("invalid server socket: %w", err)
	}

	applyDefaults(settings)

	return validateStruct(settings)
}

func applyDefaults(settings *Config) {
	if settings.Timeout <= 0 {
		settings.Timeout = DefaultTimeout
	}

	if settings.StateFile == "" {
		settings.StateFile = DefaultStateFilename
	}

	if settings.Audio.SampleRate == 0 {
		settings.Audio.SampleRate = DefaultSampleRate
	}

	if settings.Audio.ChunkSize == 0 {
		settings.Audio.ChunkSize = DefaultChunkSize
	}

	if settings.Detection.Dwell == 0 {
		settings.Detection.Dwell = DefaultDwell
	}
}
