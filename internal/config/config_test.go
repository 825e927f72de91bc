package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "paginated", cfg.Data.Strategy)
	assert.Equal(t, 128, cfg.Batch.NumBatches)
	assert.Equal(t, 32, cfg.Batch.CorrMultiplier)
	assert.InDelta(t, 0.2, cfg.Noise.Mean, 1e-12)
	assert.InDelta(t, 1.0, cfg.Correlation.Smoothing, 1e-12)
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubeml.toml")
	body := `
[data]
dir = "/srv/train"
strategy = "memory"

[batch]
num_batches = 0
batch_size = 64

[run]
seed = 42
epochs = 3
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "memory", cfg.Data.Strategy)
	assert.Equal(t, 64, cfg.Batch.BatchSize)
	assert.Equal(t, uint64(42), cfg.Run.Seed)
	assert.Equal(t, 3, cfg.Run.Epochs)
	// untouched keys keep their defaults
	assert.Equal(t, 32, cfg.Batch.CorrMultiplier)
	assert.Equal(t, "/srv/train/cubes.json", cfg.Data.Path(cfg.Data.CubesFile))
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cubeml.toml")
	require.NoError(t, os.WriteFile(path, []byte("[batch]\nbatch_sise = 3\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cubeml.toml")
	cfg := DefaultConfig()
	cfg.Run.Seed = 7
	cfg.Data.Strategy = "sqlite"

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown strategy", func(c *Config) { c.Data.Strategy = "tape" }},
		{"both sizing modes", func(c *Config) { c.Batch.BatchSize = 32 }},
		{"no sizing mode", func(c *Config) { c.Batch.NumBatches = 0 }},
		{"zero smoothing", func(c *Config) { c.Correlation.Smoothing = 0 }},
		{"noise bounds inverted", func(c *Config) { c.Noise.Min, c.Noise.Max = 0.6, 0.3 }},
		{"noise max above one", func(c *Config) { c.Noise.Max = 1.5 }},
		{"zero epochs", func(c *Config) { c.Run.Epochs = 0 }},
		{"validation fraction one", func(c *Config) { c.Batch.Validation = 1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"metrics without output", func(c *Config) { c.Metrics.Enabled = true }},
		{"memory without files", func(c *Config) { c.Data.Strategy = "memory"; c.Data.PicksFile = "" }},
		{"sqlite without database", func(c *Config) { c.Data.Strategy = "sqlite"; c.Data.Database = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestDataPath(t *testing.T) {
	d := DataConfig{Dir: "data/train"}
	assert.Equal(t, filepath.Join("data/train", "cubes.json"), d.Path("cubes.json"))
	assert.Equal(t, "/abs/cubes.json", d.Path("/abs/cubes.json"))
	assert.Equal(t, "", d.Path(""))
}
