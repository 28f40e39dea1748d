package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/becomeliminal/nim-memory/history"
	"github.com/becomeliminal/nim-memory/llm"
	"github.com/becomeliminal/nim-memory/memory"
	"github.com/becomeliminal/nim-memory/memory/extract"
	"github.com/becomeliminal/nim-memory/memory/store/chromem"
)

// config holds configuration values
type config struct {
	// Store
	configPath string
	rootDir    string
	scope      string
	device     string
	historyDir string
	summaries  bool
	logLevel   string

	// Embedder
	modelDir    string
	onnxLibrary string

	// LLM
	anthropicAPIKey string
	llmModel        string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to a YAML memory config file",
			Sources:     cli.EnvVars("NIMMEM_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "root",
			Usage:       "Directory holding one subdirectory per scope (overrides root_dir)",
			Sources:     cli.EnvVars("NIMMEM_ROOT"),
			Destination: &cfg.rootDir,
		},
		&cli.StringFlag{
			Name:        "scope",
			Aliases:     []string{"s"},
			Usage:       "Scope (character or user) id",
			Value:       "default",
			Sources:     cli.EnvVars("NIMMEM_SCOPE"),
			Destination: &cfg.scope,
		},
		&cli.StringFlag{
			Name:        "device",
			Usage:       "auto, cpu or accelerator (overrides device)",
			Sources:     cli.EnvVars("NIMMEM_DEVICE"),
			Destination: &cfg.device,
		},
		&cli.StringFlag{
			Name:        "history-dir",
			Usage:       "Directory of JSON conversation histories to import on open",
			Sources:     cli.EnvVars("NIMMEM_HISTORY_DIR"),
			Destination: &cfg.historyDir,
		},
		&cli.BoolFlag{
			Name:        "summaries",
			Usage:       "Keep extracted summaries next to the index",
			Sources:     cli.EnvVars("NIMMEM_SUMMARIES"),
			Destination: &cfg.summaries,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "debug, info, warn or error",
			Value:       "warn",
			Sources:     cli.EnvVars("NIMMEM_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "model-dir",
			Usage:       "Directory containing <model>/model.onnx and <model>/tokenizer.json",
			Value:       "models",
			Sources:     cli.EnvVars("NIMMEM_MODEL_DIR"),
			Destination: &cfg.modelDir,
		},
		&cli.StringFlag{
			Name:        "onnx-library",
			Usage:       "Path to the ONNX Runtime shared library",
			Sources:     cli.EnvVars("ONNXRUNTIME_SHARED_LIBRARY_PATH"),
			Destination: &cfg.onnxLibrary,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "anthropic-api-key",
			Usage:       "Anthropic API key",
			Sources:     cli.EnvVars("ANTHROPIC_API_KEY"),
			Destination: &cfg.anthropicAPIKey,
		},
		&cli.StringFlag{
			Name:        "llm-model",
			Usage:       "Claude model used for importance extraction",
			Sources:     cli.EnvVars("NIMMEM_LLM_MODEL"),
			Destination: &cfg.llmModel,
		},
	}
}

// newLogger builds a console logger at the configured level.
func (cfg *config) newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.logLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// memoryConfig loads the config file, if any, and applies flag overrides.
func (cfg *config) memoryConfig() (memory.Config, error) {
	mc := memory.DefaultConfig()
	if cfg.configPath != "" {
		loaded, err := memory.LoadConfig(cfg.configPath)
		if err != nil {
			return mc, err
		}
		mc = loaded
	}
	if cfg.rootDir != "" {
		mc.RootDir = cfg.rootDir
	}
	if cfg.device != "" {
		mc.Device = cfg.device
	}
	return mc, mc.Validate()
}

// storeOptions returns the options every store opened by the CLI shares.
func (cfg *config) storeOptions(logger *zap.Logger) []memory.Option {
	opts := []memory.Option{
		memory.WithEmbedderFactory(cfg.embedderFactory(logger)),
		memory.WithLogger(logger),
	}
	if cfg.historyDir != "" {
		opts = append(opts, memory.WithHistory(history.NewFileSource(cfg.historyDir)))
	}
	if cfg.summaries {
		opts = append(opts, memory.WithSummaries(chromem.Factory(chromem.WithLogger(logger))))
	}
	return opts
}

// openStore opens the store of the configured scope.
func (cfg *config) openStore(ctx context.Context, mc memory.Config, logger *zap.Logger, extra ...memory.Option) (*memory.Store, error) {
	opts := append(cfg.storeOptions(logger), extra...)

	store, err := memory.Open(ctx, cfg.scope, mc, opts...)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	return store, nil
}

// filterOptions enables importance filtering on mc when force is set or the
// config file asks for it, and returns the option carrying the extractor.
func (cfg *config) filterOptions(mc *memory.Config, logger *zap.Logger, force bool) ([]memory.Option, error) {
	if !force && !mc.UseMemoryFiltering {
		return nil, nil
	}
	extractor, err := cfg.newExtractor(*mc, logger)
	if err != nil {
		return nil, err
	}
	mc.UseMemoryFiltering = true
	return []memory.Option{memory.WithExtractor(extractor)}, nil
}

// newExtractor creates an Anthropic-backed importance extractor.
func (cfg *config) newExtractor(mc memory.Config, logger *zap.Logger) (*extract.Extractor, error) {
	if cfg.anthropicAPIKey == "" {
		return nil, errors.New("anthropic-api-key is required for memory extraction")
	}

	var llmOpts []llm.AnthropicOption
	if cfg.llmModel != "" {
		llmOpts = append(llmOpts, llm.WithModel(cfg.llmModel))
	}
	llmOpts = append(llmOpts, llm.WithLogger(logger))

	client := llm.NewAnthropic(cfg.anthropicAPIKey, llmOpts...)
	return extract.New(client,
		extract.WithTimeout(mc.ExtractionTimeout),
		extract.WithLogger(logger),
	), nil
}
