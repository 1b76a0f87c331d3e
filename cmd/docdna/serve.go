package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/enrichment"
	"github.com/jonathan/docdna/internal/generation"
	"github.com/jonathan/docdna/internal/pipeline"
	"github.com/jonathan/docdna/internal/ranking"
	"github.com/jonathan/docdna/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		Long:  `Start an HTTP server that accepts document uploads, reports Blueprint status, builds generation contexts and enriches artifacts.`,
		RunE:  runServe,
	}
	cmd.Flags().Int("port", 0, "Port to listen on (default 8080)")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	logger := newLogger(cfg.Verbose)

	store, err := db.Open(ctx, cfg.StoreDriver(), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return err
	}
	defer svc.Close()

	stages := svc.stages()
	srv := server.New(server.Config{Port: cfg.Port}, server.Deps{
		Store:    store,
		Runner:   pipeline.NewRunner(stages, store, svc.pipeline, logger),
		Builder:  generation.NewBuilder(store, ranking.New(svc.embedder, svc.pipeline, logger), svc.pipeline, logger),
		Enricher: enrichment.New(store, svc.extractor, svc.embedder, svc.pipeline, logger),
		Stages:   stages,
		Pipeline: svc.pipeline,
		Logger:   logger,
	})
	return srv.Start(ctx)
}
