// internal/infer/config_test.go
package infer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModelDir(t *testing.T, config string, withWeights bool) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(config), 0o644))
	if withWeights {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "weights.pt"), []byte("w"), 0o644))
	}
	return dir
}

func TestLoadModelConfig(t *testing.T) {
	dir := writeModelDir(t, "window_size = 4096\nmin_coverage = 3\n", true)
	cfg, err := LoadModelConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, 4096, cfg.WindowSize)
	assert.Equal(t, 3, cfg.MinCoverage)
	assert.Equal(t, 1, cfg.MinDisagreement, "default applies")
	assert.Equal(t, "weights.pt", cfg.WeightsFile, "default applies")
	assert.Equal(t, dir, cfg.Dir)
}

func TestLoadModelConfigMissingWindowSize(t *testing.T) {
	dir := writeModelDir(t, "min_coverage = 2\n", true)
	_, err := LoadModelConfig(dir)
	assert.Error(t, err)
}

func TestLoadModelConfigMissingWeights(t *testing.T) {
	dir := writeModelDir(t, "window_size = 128\n", false)
	_, err := LoadModelConfig(dir)
	assert.Error(t, err)
}

func TestLoadModelConfigMissingFile(t *testing.T) {
	_, err := LoadModelConfig(t.TempDir())
	assert.Error(t, err)
}

func TestDevices(t *testing.T) {
	cpu, err := Devices("cpu")
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu"}, cpu)

	cuda, err := Devices("cuda:0,2")
	require.NoError(t, err)
	assert.Equal(t, []string{"cuda:0", "cuda:2"}, cuda)

	_, err = Devices("cuda:")
	assert.Error(t, err, "empty expansion is fatal")

	_, err = Devices("tpu")
	assert.Error(t, err)
}
