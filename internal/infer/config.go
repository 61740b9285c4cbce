// internal/infer/config.go
package infer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ModelConfig mirrors the model directory's config.toml. The supported-
// column thresholds are model properties, not engine constants, which is
// why they live here and not in the feature builder.
type ModelConfig struct {
	WindowSize      int    `mapstructure:"window_size"`
	WeightsFile     string `mapstructure:"weights_file"`
	MinCoverage     int    `mapstructure:"min_coverage"`
	MinDisagreement int    `mapstructure:"min_disagreement"`

	Dir string `mapstructure:"-"`
}

// LoadModelConfig reads <dir>/config.toml and validates that the referenced
// weights file exists. Any failure here is fatal at startup.
func LoadModelConfig(dir string) (ModelConfig, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.toml"))
	v.SetConfigType("toml")
	v.SetDefault("weights_file", "weights.pt")
	v.SetDefault("min_coverage", 1)
	v.SetDefault("min_disagreement", 1)

	if err := v.ReadInConfig(); err != nil {
		return ModelConfig{}, fmt.Errorf("model config: %w", err)
	}
	var cfg ModelConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ModelConfig{}, fmt.Errorf("model config: %w", err)
	}
	cfg.Dir = dir

	if cfg.WindowSize <= 0 {
		return ModelConfig{}, fmt.Errorf("model config: window_size must be positive, got %d", cfg.WindowSize)
	}
	if cfg.MinCoverage < 1 || cfg.MinDisagreement < 1 {
		return ModelConfig{}, fmt.Errorf("model config: thresholds must be >= 1")
	}
	weights := filepath.Join(dir, cfg.WeightsFile)
	if _, err := os.Stat(weights); err != nil {
		return ModelConfig{}, fmt.Errorf("model weights %s: %w", weights, err)
	}
	return cfg, nil
}
