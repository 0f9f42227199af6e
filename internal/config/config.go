// Package config resolves the application's settings from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/classify"
	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/dedupe"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the resolved application configuration. The classification
// thresholds and the fuzzy cutoff are policy inputs, so they live here
// rather than in the algorithms.
type Config struct {
	DBPath              string
	ListenAddr          string
	SessionTTL          time.Duration
	LargeThreshold      float64
	SmallThreshold      float64
	SimilarityThreshold float64
	DateWindowDays      int
	AmountTolerance     float64
}

// SetDefaults registers every configuration default with viper.
func SetDefaults() {
	viper.SetDefault("database.path", defaultDBPath())
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("staging.session_ttl", "24h")
	viper.SetDefault("classify.large_threshold", 500.0)
	viper.SetDefault("classify.small_threshold", 10.0)
	viper.SetDefault("dedupe.similarity_threshold", 0.85)
	viper.SetDefault("dedupe.date_window_days", 7)
	viper.SetDefault("dedupe.amount_tolerance", 0.01)
}

// Load resolves the configuration from viper.
func Load() (*Config, error) {
	ttl, err := time.ParseDuration(viper.GetString("staging.session_ttl"))
	if err != nil {
		return nil, fmt.Errorf("%w: staging.session_ttl: %v", common.ErrInvalidConfig, err)
	}

	cfg := &Config{
		DBPath:              viper.GetString("database.path"),
		ListenAddr:          viper.GetString("server.listen"),
		SessionTTL:          ttl,
		LargeThreshold:      viper.GetFloat64("classify.large_threshold"),
		SmallThreshold:      viper.GetFloat64("classify.small_threshold"),
		SimilarityThreshold: viper.GetFloat64("dedupe.similarity_threshold"),
		DateWindowDays:      viper.GetInt("dedupe.date_window_days"),
		AmountTolerance:     viper.GetFloat64("dedupe.amount_tolerance"),
	}

	if cfg.DBPath == "" {
		return nil, fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("%w: dedupe.similarity_threshold must be in (0, 1]", common.ErrInvalidConfig)
	}

	return cfg, nil
}

// ClassifyConfig builds the classification engine's configuration.
func (c *Config) ClassifyConfig() classify.Config {
	cfg := classify.DefaultConfig()
	cfg.LargeThreshold = decimal.NewFromFloat(c.LargeThreshold)
	cfg.SmallThreshold = decimal.NewFromFloat(c.SmallThreshold)
	return cfg
}

// DedupeConfig builds the duplicate detector's configuration.
func (c *Config) DedupeConfig() dedupe.Config {
	return dedupe.Config{
		SimilarityThreshold: c.SimilarityThreshold,
		DateWindow:          time.Duration(c.DateWindowDays) * 24 * time.Hour,
		AmountTolerance:     decimal.NewFromFloat(c.AmountTolerance),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "fluxo.db"
	}
	return filepath.Join(home, ".local", "share", "fluxo", "fluxo.db")
}
