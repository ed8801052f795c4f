package config

import (
	"path/filepath"
	"testing"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig() failed Validate: %v", err)
	}
}

func TestValidateRejectsUnknownTrieType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.TrieType = "not-a-trie"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject an unknown trie_type")
	}
}

func TestValidateRejectsUnknownWordIndex(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.WordIndex = "not-an-index"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject an unknown word_index")
	}
}

func TestValidateRejectsMaxLevelOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.MaxLevel = 1
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject max_level below 2")
	}
	cfg.Model.MaxLevel = 8
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject max_level above 7")
	}
}

func TestValidateRejectsUnknownDebugLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Debug.Level = "not-a-level"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject an unknown debug level")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg := DefaultConfig()
	cfg.Model.TrieType = "g2dm"
	cfg.Model.WordIndex = "hashing"
	cfg.Model.MaxLevel = 5
	cfg.Model.UseCache = true
	cfg.Query.Cumulative = true

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round-tripped config = %+v, want %+v", *loaded, *cfg)
	}
}

func TestInitConfigCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg, err := InitConfig(path)
	if err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	if cfg.Model.TrieType != DefaultConfig().Model.TrieType {
		t.Errorf("InitConfig on missing file should return defaults")
	}
	// a second call should load the file it just created, not error.
	cfg2, err := InitConfig(path)
	if err != nil {
		t.Fatalf("InitConfig (second call): %v", err)
	}
	if *cfg2 != *cfg {
		t.Errorf("InitConfig second call = %+v, want %+v", *cfg2, *cfg)
	}
}
