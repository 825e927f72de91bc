// Package config loads and validates the TOML configuration shared by the
// cubeml binaries.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is wrapped by every error returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	// Training data locations and storage strategy
	Data DataConfig `toml:"data"`

	// Per-batch slice sizing
	Batch BatchConfig `toml:"batch"`

	// Cube corruption noise
	Noise NoiseConfig `toml:"noise"`

	// Correlation matrix normalisation
	Correlation CorrelationConfig `toml:"correlation"`

	// Run settings
	Run RunConfig `toml:"run"`

	// Logging
	Log LogConfig `toml:"log"`

	// Metrics export
	Metrics MetricsConfig `toml:"metrics"`
}

// DataConfig locates the training data. Relative file names are resolved
// against Dir.
type DataConfig struct {
	Dir             string `toml:"dir" validate:"required"`
	Strategy        string `toml:"strategy" validate:"oneof=memory paginated preload sqlite"`
	FrequencyFile   string `toml:"frequency_file" validate:"required"`   // card frequency table
	OracleDictFile  string `toml:"oracle_dict_file"`                     // index -> oracle id, optional
	CorrelationFile string `toml:"correlation_file" validate:"required"` // flattened N*N counts
	CubesFile       string `toml:"cubes_file"`                           // memory strategy only
	DecksFile       string `toml:"decks_file"`                           // memory strategy only
	PicksFile       string `toml:"picks_file"`                           // memory strategy only
	Database        string `toml:"database"`                             // sqlite strategy only
}

// BatchConfig controls how many records each stream contributes per batch.
// Exactly one of NumBatches and BatchSize is set.
type BatchConfig struct {
	NumBatches     int     `toml:"num_batches" validate:"min=0"`
	BatchSize      int     `toml:"batch_size" validate:"min=0"`
	CorrMultiplier int     `toml:"corr_multiplier" validate:"min=1"`
	CubeMultiplier int     `toml:"cube_multiplier" validate:"min=1"`
	Validation     float64 `toml:"validation" validate:"gte=0,lt=1"` // held-out fraction per stream
}

// NoiseConfig is the clamped normal distribution of the cube noise fraction.
type NoiseConfig struct {
	Mean   float64 `toml:"mean" validate:"gte=0,lte=1"`
	StdDev float64 `toml:"stddev" validate:"gte=0"`
	Min    float64 `toml:"min" validate:"gte=0,lte=1"`
	Max    float64 `toml:"max" validate:"gte=0,lte=1,gtefield=Min"`
}

// CorrelationConfig contains correlation matrix settings.
type CorrelationConfig struct {
	Smoothing float64 `toml:"smoothing" validate:"gt=0"`
}

// RunConfig contains training run settings.
type RunConfig struct {
	Seed     uint64 `toml:"seed"`
	Epochs   int    `toml:"epochs" validate:"min=1"`
	Prefetch int    `toml:"prefetch" validate:"min=0"` // batches built ahead, 0 = synchronous
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `toml:"format" validate:"oneof=console json"`
}

// MetricsConfig contains metrics export settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Output  string `toml:"output" validate:"required_if=Enabled true"` // Prometheus text file
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			Dir:             "data/train",
			Strategy:        "paginated",
			FrequencyFile:   "oracleFrequency.json",
			OracleDictFile:  "oracleDict.json",
			CorrelationFile: "correlations.json",
			CubesFile:       "cubes.json",
			DecksFile:       "decks.json",
			PicksFile:       "picks.json",
			Database:        "corpus.db",
		},
		Batch: BatchConfig{
			NumBatches:     128,
			BatchSize:      0,
			CorrMultiplier: 32,
			CubeMultiplier: 1,
			Validation:     0,
		},
		Noise: NoiseConfig{
			Mean:   0.2,
			StdDev: 0.1,
			Min:    0.05,
			Max:    0.8,
		},
		Correlation: CorrelationConfig{
			Smoothing: 1.0,
		},
		Run: RunConfig{
			Seed:     1,
			Epochs:   1,
			Prefetch: 0,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Output:  "",
		},
	}
}

// Path resolves a data file name against the data directory.
func (d DataConfig) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// Load reads the configuration at path on top of the defaults. A missing
// file yields the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(config); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("parse config file: %w: %s", ErrInvalid, strict.String())
		}
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return config, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate validates the configuration values.
func (c *Config) Validate() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if (c.Batch.NumBatches > 0) == (c.Batch.BatchSize > 0) {
		return fmt.Errorf("%w: exactly one of batch.num_batches and batch.batch_size must be set", ErrInvalid)
	}

	switch c.Data.Strategy {
	case "memory":
		if c.Data.CubesFile == "" || c.Data.DecksFile == "" || c.Data.PicksFile == "" {
			return fmt.Errorf("%w: memory strategy needs cubes_file, decks_file and picks_file", ErrInvalid)
		}
	case "sqlite":
		if c.Data.Database == "" {
			return fmt.Errorf("%w: sqlite strategy needs database", ErrInvalid)
		}
	}

	return nil
}
