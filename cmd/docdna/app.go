package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/docdna/internal/assembly"
	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/embedding"
	"github.com/jonathan/docdna/internal/layout"
	"github.com/jonathan/docdna/internal/llm"
	"github.com/jonathan/docdna/internal/pipeline"
	"github.com/jonathan/docdna/internal/preprocess"
	"github.com/jonathan/docdna/internal/semantic"
	"github.com/jonathan/docdna/internal/visual"
)

const (
	defaultPort       = 8080
	defaultSQLitePath = "docdna.db"
)

// errNoAPIKey is what extraction calls fail with when no Gemini key is configured
var errNoAPIKey = errors.New("extraction service not configured: set GEMINI_API_KEY or api_key")

// resolveConfig layers the --config file over environment values and built-in defaults
func resolveConfig(cmd *cobra.Command) (config.Config, error) {
	defaults := config.FromEnv()
	defaults.Port = defaultPort

	cfg := config.Config{}
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	cfg = cfg.MergeWithDefaults(defaults)

	if cmd.Flags().Changed("verbose") {
		cfg.Verbose, _ = cmd.Flags().GetBool("verbose")
	}
	if cfg.StoreDriver() == config.StoreSQLite && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultSQLitePath
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// services are the external collaborators shared by the commands
type services struct {
	client    llm.Client
	extractor llm.Extractor
	embedder  embedding.Embedder
	pipeline  config.Pipeline
	logger    *slog.Logger
}

// newServices connects the Gemini client. Without an API key every extraction call
// fails, so analyzer stages degrade, and ranking falls back to keyword scoring.
func newServices(ctx context.Context, cfg config.Config, logger *slog.Logger) (*services, error) {
	svc := &services{
		pipeline: cfg.PipelineConfig(),
		logger:   logger,
		embedder: embedding.Noop{},
		extractor: llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
			return errNoAPIKey
		}),
	}
	if cfg.APIKey == "" {
		logger.Warn("GEMINI_API_KEY not set, extraction and embeddings are disabled")
		return svc, nil
	}

	llmCfg := llm.DefaultConfig().
		WithModel(llm.TierLite, cfg.LiteModel).
		WithModel(llm.TierStandard, cfg.StandardModel).
		WithModel(llm.TierAdvanced, cfg.AdvancedModel).
		WithEmbeddingModel(cfg.EmbeddingModel)
	client, err := llm.NewClient(ctx, llmCfg, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	svc.client = client
	svc.extractor = llm.NewSchemaExtractor(client)
	svc.embedder = embedding.New(client, svc.pipeline.EmbedTextLimit, logger)
	return svc, nil
}

func (s *services) stages() pipeline.Stages {
	return pipeline.Stages{
		Preprocessor: preprocess.New(s.pipeline, s.logger),
		Semantic:     semantic.New(s.extractor, s.pipeline, s.logger),
		Layout:       layout.New(s.extractor, s.pipeline, s.logger),
		Visual:       visual.New(s.extractor, visual.FitzRenderer{}, s.pipeline, s.logger),
		Assembler:    assembly.New(s.pipeline),
	}
}

func (s *services) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("failed to close LLM client", "error", err)
		}
	}
}
