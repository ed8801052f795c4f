/*
Package config manages TOML config for the language model engine.

InitConfig handles automatic config file creation and loading with fallback
to defaults. LoadConfig and SaveConfig provide direct fs access for runtime
changes.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Config holds the entire engine configuration.
type Config struct {
	Model  ModelConfig  `toml:"model"`
	Query  QueryConfig  `toml:"query"`
	Server ServerConfig `toml:"server"`
	Debug  DebugConfig  `toml:"debug"`
}

// ModelConfig selects the storage representation the engine is built
// with (spec.md §6 configuration options).
type ModelConfig struct {
	TrieType  string `toml:"trie_type"`  // c2dh, c2dm, g2dm, w2ca, c2wa, w2ch, h2dm
	WordIndex string `toml:"word_index"` // basic, counting, optimizing_basic, optimizing_counting, hashing
	MaxLevel  int    `toml:"max_level"`  // N in [2,7]
	UseCache  bool   `toml:"use_cache"`  // optional bitmap-hash negative-lookup cache
}

// QueryConfig controls evaluator behavior.
type QueryConfig struct {
	Cumulative bool `toml:"cumulative"` // sliding-window cumulative scoring mode
}

// ServerConfig has IPC server related options.
type ServerConfig struct {
	Enabled    bool `toml:"enabled"`
	BatchLimit int  `toml:"batch_limit"`
}

// DebugConfig controls log verbosity.
type DebugConfig struct {
	Level string `toml:"level"` // error, warning, usage, result, info, info1..3, debug, debug1..4
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			TrieType:  "c2dm",
			WordIndex: "basic",
			MaxLevel:  3,
			UseCache:  false,
		},
		Query: QueryConfig{
			Cumulative: false,
		},
		Server: ServerConfig{
			Enabled:    false,
			BatchLimit: 256,
		},
		Debug: DebugConfig{
			Level: "warning",
		},
	}
}

// Validate checks enum fields and bounds, returning the first violation.
func (c *Config) Validate() error {
	switch c.Model.TrieType {
	case "c2dh", "c2dm", "g2dm", "w2ca", "c2wa", "w2ch", "h2dm":
	default:
		return fmt.Errorf("config: unknown trie_type %q", c.Model.TrieType)
	}
	switch c.Model.WordIndex {
	case "basic", "counting", "optimizing_basic", "optimizing_counting", "hashing":
	default:
		return fmt.Errorf("config: unknown word_index %q", c.Model.WordIndex)
	}
	if c.Model.MaxLevel < 2 || c.Model.MaxLevel > 7 {
		return fmt.Errorf("config: max_level %d out of range [2,7]", c.Model.MaxLevel)
	}
	switch c.Debug.Level {
	case "error", "warning", "usage", "result", "info", "info1", "info2", "info3",
		"debug", "debug1", "debug2", "debug3", "debug4":
	default:
		return fmt.Errorf("config: unknown debug level %q", c.Debug.Level)
	}
	return nil
}

// InitConfig loads config from file or creates default if missing.
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := SaveConfig(cfg, configPath); err != nil {
			return nil, err
		}
		log.Debugf("created default config file at %s", configPath)
		return cfg, nil
	}
	cfg, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("failed to load config, using defaults: %v", err)
		return DefaultConfig(), nil
	}
	return cfg, nil
}

// LoadConfig loads from a TOML file.
func LoadConfig(configPath string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		log.Errorf("failed to decode config file: %v", err)
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig saves into a TOML file.
func SaveConfig(cfg *Config, configPath string) error {
	file, err := os.Create(configPath)
	if err != nil {
		log.Errorf("failed to create config file: %v", err)
		return err
	}
	defer file.Close()
	encoder := toml.NewEncoder(file)
	return encoder.Encode(cfg)
}
