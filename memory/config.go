package memory

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/nim-memory/memory/index"
)

// Config holds Store configuration.
type Config struct {
	// RootDir is the directory holding one subdirectory per scope.
	// Default: "rag_memory"
	RootDir string `yaml:"root_dir"`

	// EmbeddingModel names the model handed to the EmbedderFactory.
	// Default: "all-MiniLM-L6-v2"
	EmbeddingModel string `yaml:"embedding_model"`

	// ContextThreshold is the minimum similarity [-1.0, 1.0] for a past turn
	// to appear in assembled context.
	// Default: 0.3
	ContextThreshold float64 `yaml:"context_threshold"`

	// MaxContextChars caps the assembled context, header included. Zero
	// means the default.
	// Default: 800
	MaxContextChars int `yaml:"max_context_chars"`

	// Device is "auto", "cpu" or "accelerator".
	// Default: "auto"
	Device string `yaml:"device"`

	// UseMemoryFiltering makes Remember consult the Extractor before
	// storing a turn.
	// Default: false
	UseMemoryFiltering bool `yaml:"use_memory_filtering"`

	// MinImportance is the importance [0.0-1.0] a parsed extraction needs
	// for its turn to be stored.
	// Default: 0.5
	MinImportance float64 `yaml:"min_importance"`

	// SaveInterval saves the store after this many additions. Zero
	// disables periodic saves.
	// Default: 10
	SaveInterval int `yaml:"save_interval"`

	// SearchK is how many nearest turns are considered for context.
	// Default: 10
	SearchK int `yaml:"search_k"`

	// ExtractionTimeout bounds one importance extraction. Zero disables it.
	// Default: 60s
	ExtractionTimeout time.Duration `yaml:"extraction_timeout"`
}

// DefaultConfig returns the defaults for a local store.
func DefaultConfig() Config {
	return Config{
		RootDir:           "rag_memory",
		EmbeddingModel:    "all-MiniLM-L6-v2",
		ContextThreshold:  0.3,
		MaxContextChars:   800,
		Device:            string(index.DeviceAuto),
		MinImportance:     0.5,
		SaveInterval:      10,
		SearchK:           10,
		ExtractionTimeout: 60 * time.Second,
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys missing from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports values no store can work with.
func (c Config) Validate() error {
	if _, err := index.ParseDevice(c.Device); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.MaxContextChars < 0 {
		return fmt.Errorf("invalid config: max_context_chars %d is negative", c.MaxContextChars)
	}
	if c.SaveInterval < 0 {
		return fmt.Errorf("invalid config: save_interval %d is negative", c.SaveInterval)
	}
	if c.SearchK < 0 {
		return fmt.Errorf("invalid config: search_k %d is negative", c.SearchK)
	}
	if c.MinImportance < 0 || c.MinImportance > 1 {
		return fmt.Errorf("invalid config: min_importance %v is outside [0, 1]", c.MinImportance)
	}
	if c.ExtractionTimeout < 0 {
		return fmt.Errorf("invalid config: extraction_timeout %v is negative", c.ExtractionTimeout)
	}
	return nil
}

// withDefaults fills the fields that have no meaningful zero value.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RootDir == "" {
		c.RootDir = def.RootDir
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = def.EmbeddingModel
	}
	if c.SearchK <= 0 {
		c.SearchK = def.SearchK
	}
	if c.MaxContextChars == 0 {
		c.MaxContextChars = def.MaxContextChars
	}
	if c.SaveInterval < 0 {
		c.SaveInterval = 0
	}
	return c
}
