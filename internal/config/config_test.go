package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pond.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "convpool", cfg.Model)
	assert.Equal(t, "relu-exact", cfg.Activation)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 1, cfg.Verbose)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
model: dense
activation: sigmoid
synthetic: true
epochs: 5
learning_rate: 0.1
momentum: 0.9
weight_kind: private
seed: 42
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dense", cfg.Model)
	assert.Equal(t, 5, cfg.Epochs)
	assert.Equal(t, 0.9, cfg.Momentum)
	assert.Equal(t, KindPrivate, cfg.WeightKind)
	assert.Equal(t, uint64(42), cfg.Seed)
	// Unset keys keep their defaults.
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, KindNative, cfg.DataKind)
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "epochs: [1, 2]\n"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "epoch: 3\n"))
	assert.ErrorContains(t, err, "epoch")

	_, err = Load(writeConfig(t, "epochs: 0\n"))
	assert.ErrorContains(t, err, "epochs must be > 0")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown model", func(c *Config) { c.Model = "resnet" }, "model must be one of"},
		{"unknown activation", func(c *Config) { c.Activation = "tanh" }, "activation must be one of"},
		{"batch size", func(c *Config) { c.BatchSize = -1 }, "batch_size must be > 0"},
		{"momentum", func(c *Config) { c.Momentum = 1 }, "momentum must be < 1"},
		{"verbose", func(c *Config) { c.Verbose = 3 }, "verbose must be <= 2"},
		{"public weights", func(c *Config) { c.WeightKind = KindPublic }, "weight_kind must be one of"},
		{"exact relu on private data", func(c *Config) { c.DataKind = KindPrivate }, "needs plaintext"},
		{"exact relu with private weights", func(c *Config) { c.WeightKind = KindPrivate }, "needs plaintext"},
		{"exact relu in dense model", func(c *Config) { c.Model = "dense"; c.WeightKind = KindPrivate }, "needs plaintext"},
		{"no data", func(c *Config) { c.DataDir = "" }, "data_dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := Default()
	cfg.Activation = "relu"
	cfg.DataKind = KindPrivate
	cfg.WeightKind = KindPrivate
	assert.NoError(t, cfg.Validate())

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	quiet := 0
	cfg.ApplyOverrides(Overrides{
		Epochs:     7,
		Verbose:    &quiet,
		Synthetic:  true,
		DataKind:   KindPublic,
		Checkpoint: "model.safetensors",
	})
	assert.Equal(t, 7, cfg.Epochs)
	assert.Equal(t, 0, cfg.Verbose)
	assert.True(t, cfg.Synthetic)
	assert.Equal(t, KindPublic, cfg.DataKind)
	assert.Equal(t, "model.safetensors", cfg.Checkpoint)

	// Zero values leave fields alone.
	cfg.ApplyOverrides(Overrides{})
	assert.Equal(t, 7, cfg.Epochs)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, "convpool", cfg.Model)
}
