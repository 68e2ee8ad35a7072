// Package config loads the engine's YAML configuration and applies
// defaults in one place.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30m" or "24h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Context presets trade prompt size against recall.
const (
	PresetCompact  = "compact"
	PresetBalanced = "balanced"
	PresetDetailed = "detailed"
)

// Embedding selects and parameterizes the vectorizer.
type Embedding struct {
	Provider  string `yaml:"provider"` // local | ollama | openai
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Dims      int    `yaml:"dims"`
	CacheSize int64  `yaml:"cache_size"`
}

// ANN tunes similarity search.
type ANN struct {
	K                 int     `yaml:"k"`
	Threshold         float64 `yaml:"threshold"`
	ThresholdFallback float64 `yaml:"threshold_fallback"`
}

// Lifecycle tunes the maintenance engine.
type Lifecycle struct {
	ArchiveThresholdDays int     `yaml:"archive_threshold_days"`
	CleanupThresholdDays int     `yaml:"cleanup_threshold_days"`
	ArchiveWeightPenalty float64 `yaml:"archive_weight_penalty"`
	RestoreWeightBonus   float64 `yaml:"restore_weight_bonus"`

	ArchiveInterval     Duration `yaml:"archive_interval"`
	CleanupInterval     Duration `yaml:"cleanup_interval"`
	DecayInterval       Duration `yaml:"decay_interval"`
	MaintenanceInterval Duration `yaml:"maintenance_interval"`
	BackupInterval      Duration `yaml:"backup_interval"`
}

// Config is the full engine configuration.
type Config struct {
	Preset string `yaml:"preset"` // compact | balanced | detailed

	DBPath    string `yaml:"db_path"`
	IndexPath string `yaml:"index_path"`
	BackupDir string `yaml:"backup_dir"`

	SessionTimeout Duration `yaml:"session_timeout"`

	Embedding Embedding `yaml:"embedding"`
	ANN       ANN       `yaml:"ann"`
	Lifecycle Lifecycle `yaml:"lifecycle"`
}

// Default returns the balanced-preset configuration.
func Default() *Config {
	c := &Config{
		Preset:         PresetBalanced,
		SessionTimeout: Duration(3600 * time.Second),
		Embedding: Embedding{
			Provider:  "local",
			Dims:      384,
			CacheSize: 4096,
		},
		ANN: ANN{
			K:                 10,
			Threshold:         0.3,
			ThresholdFallback: 0.1,
		},
		Lifecycle: Lifecycle{
			ArchiveThresholdDays: 30,
			CleanupThresholdDays: 90,
			ArchiveWeightPenalty: 0.5,
			RestoreWeightBonus:   1.3,
			ArchiveInterval:      Duration(6 * time.Hour),
			CleanupInterval:      Duration(24 * time.Hour),
			DecayInterval:        Duration(24 * time.Hour),
			MaintenanceInterval:  Duration(10 * time.Minute),
			BackupInterval:       Duration(24 * time.Hour),
		},
	}
	return c
}

// Load reads a YAML config file over the defaults. A missing file
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Preset {
	case PresetCompact, PresetBalanced, PresetDetailed:
	default:
		return fmt.Errorf("unknown preset %q (use compact, balanced or detailed)", c.Preset)
	}
	if c.ANN.ThresholdFallback > c.ANN.Threshold {
		return fmt.Errorf("ann.threshold_fallback %.2f above ann.threshold %.2f", c.ANN.ThresholdFallback, c.ANN.Threshold)
	}
	return nil
}

// MaxContextLength returns the character budget for assembled context
// under the configured preset.
func (c *Config) MaxContextLength() int {
	switch c.Preset {
	case PresetCompact:
		return 2000
	case PresetDetailed:
		return 8000
	default:
		return 4000
	}
}

// MaxMemories returns how many ranked records feed context assembly
// under the configured preset.
func (c *Config) MaxMemories() int {
	switch c.Preset {
	case PresetCompact:
		return 5
	case PresetDetailed:
		return 20
	default:
		return 10
	}
}
