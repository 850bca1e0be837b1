// Package config provides configuration management for billcheck
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lvonguyen/bill-insights/internal/anomaly"
	"github.com/lvonguyen/bill-insights/internal/logging"
	"github.com/lvonguyen/bill-insights/internal/normalizer"
	"github.com/lvonguyen/bill-insights/internal/rules"
	"github.com/lvonguyen/bill-insights/internal/whatif"
)

// Config holds all configuration
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Anomaly  AnomalyConfig  `yaml:"anomaly"`
	WhatIf   WhatIfConfig   `yaml:"whatif"`
	Rules    RulesConfig    `yaml:"rules"`
	Reporter ReporterConfig `yaml:"reporter"`
	Logging  logging.Config `yaml:"logging"`
}

// DataConfig locates the bill snapshot
type DataConfig struct {
	Dir    string `yaml:"dir"`    // CSV snapshot directory
	SQLite string `yaml:"sqlite"` // SQLite snapshot file, preferred over Dir when set
}

// AnomalyConfig configures anomaly detection
type AnomalyConfig struct {
	BaselineWindow      int      `yaml:"baseline_window"`
	NoiseFloor          float64  `yaml:"noise_floor"`
	ZThreshold          float64  `yaml:"z_threshold"`
	PctThreshold        float64  `yaml:"pct_threshold"` // fraction, 0.8 = 80%
	SensitiveCategories []string `yaml:"sensitive_categories"`
}

// WhatIfConfig configures scenario evaluation and search
type WhatIfConfig struct {
	VATRate float64 `yaml:"vat_rate"`
	TopK    int     `yaml:"top_k"`
	Workers int     `yaml:"workers"`
}

// RulesConfig configures the threshold rules
type RulesConfig struct {
	TotalDeltaPct       float64            `yaml:"total_delta_pct"`
	CategoryDeltaAmount float64            `yaml:"category_delta_amount"`
	ShareLimits         map[string]float64 `yaml:"share_limits"`
	MinTotalForShare    float64            `yaml:"min_total_for_share"`
	UnitCostLimits      map[string]float64 `yaml:"unit_cost_limits"`
	HighMultiplier      float64            `yaml:"high_multiplier"`
}

// ReporterConfig configures report generation
type ReporterConfig struct {
	OutputDir string `yaml:"output_dir"`
}

// LoadEnv loads the first .env file found among paths. Missing files are ignored.
func LoadEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := defaults()
	cfg.setDefaults()
	cfg.applyEnv()
	return &cfg
}

// defaults holds the numeric settings. The file is decoded on top of it so an
// explicit zero in the file is kept.
func defaults() Config {
	det := anomaly.DefaultDetectorConfig()
	cfg := Config{
		Anomaly: AnomalyConfig{
			BaselineWindow: anomaly.DefaultWindow,
			NoiseFloor:     det.NoiseFloor,
			ZThreshold:     det.ZThreshold,
			PctThreshold:   det.PctThreshold,
		},
		WhatIf: WhatIfConfig{
			VATRate: whatif.DefaultVATRate,
			TopK:    whatif.DefaultTopK,
		},
	}
	for _, cat := range det.Sensitive {
		cfg.Anomaly.SensitiveCategories = append(cfg.Anomaly.SensitiveCategories, string(cat))
	}
	return cfg
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.setDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults fills empty string settings
func (c *Config) setDefaults() {
	if c.Data.Dir == "" && c.Data.SQLite == "" {
		c.Data.Dir = "./data"
	}

	if c.Reporter.OutputDir == "" {
		c.Reporter.OutputDir = "./reports"
	}

	logDef := logging.DefaultConfig()
	if c.Logging.Level == "" {
		c.Logging.Level = logDef.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = logDef.Format
	}
	if c.Logging.Output == "" {
		c.Logging.Output = logDef.Output
	}
}

// applyEnv lets BILLCHECK_* variables override file values
func (c *Config) applyEnv() {
	if v := os.Getenv("BILLCHECK_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := os.Getenv("BILLCHECK_SQLITE"); v != "" {
		c.Data.SQLite = v
	}
	if v := os.Getenv("BILLCHECK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	if c.Anomaly.BaselineWindow < 1 {
		return fmt.Errorf("anomaly.baseline_window must be positive, got %d", c.Anomaly.BaselineWindow)
	}
	if c.Anomaly.NoiseFloor < 0 {
		return fmt.Errorf("anomaly.noise_floor must not be negative, got %v", c.Anomaly.NoiseFloor)
	}
	if c.Anomaly.ZThreshold <= 0 {
		return fmt.Errorf("anomaly.z_threshold must be positive, got %v", c.Anomaly.ZThreshold)
	}
	if c.Anomaly.PctThreshold <= 0 {
		return fmt.Errorf("anomaly.pct_threshold must be positive, got %v", c.Anomaly.PctThreshold)
	}
	if c.WhatIf.VATRate < 0 || c.WhatIf.VATRate >= 1 {
		return fmt.Errorf("whatif.vat_rate must be in [0, 1), got %v", c.WhatIf.VATRate)
	}
	if c.WhatIf.TopK < 1 {
		return fmt.Errorf("whatif.top_k must be positive, got %d", c.WhatIf.TopK)
	}
	return nil
}

// DetectorConfig converts the anomaly section
func (c *Config) DetectorConfig() anomaly.DetectorConfig {
	sensitive := make([]normalizer.Category, 0, len(c.Anomaly.SensitiveCategories))
	for _, s := range c.Anomaly.SensitiveCategories {
		sensitive = append(sensitive, normalizer.NormalizeCategory(s))
	}
	return anomaly.DetectorConfig{
		NoiseFloor:   c.Anomaly.NoiseFloor,
		ZThreshold:   c.Anomaly.ZThreshold,
		PctThreshold: c.Anomaly.PctThreshold,
		Sensitive:    sensitive,
	}
}

// RulesConfig converts the rules section. Unset fields keep rule defaults.
func (c *Config) RulesConfig() rules.Config {
	rc := rules.Config{
		TotalDeltaPct:       c.Rules.TotalDeltaPct,
		CategoryDeltaAmount: c.Rules.CategoryDeltaAmount,
		MinTotalForShare:    c.Rules.MinTotalForShare,
		UnitCostLimits:      c.Rules.UnitCostLimits,
		HighMultiplier:      c.Rules.HighMultiplier,
	}
	if c.Rules.ShareLimits != nil {
		rc.ShareLimits = make(map[normalizer.Category]float64, len(c.Rules.ShareLimits))
		for k, v := range c.Rules.ShareLimits {
			rc.ShareLimits[normalizer.NormalizeCategory(k)] = v
		}
	}
	return rc
}
