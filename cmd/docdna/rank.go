package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/docdna/internal/observability"
	"github.com/jonathan/docdna/internal/ranking"
	"github.com/jonathan/docdna/internal/types"
)

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank artifacts against a Blueprint",
		Long: `Scores every artifact against each section intent of a Blueprint and prints the
per-section top-k and the global ranking as JSON. Embeddings are used when GEMINI_API_KEY
is set; otherwise scores come from keyword overlap.`,
		RunE: runRank,
	}
	cmd.Flags().String("blueprint", "", "Path to a Blueprint JSON file (required)")
	cmd.Flags().String("artifacts", "", "Path to a JSON array of artifacts (required)")
	_ = cmd.MarkFlagRequired("blueprint")
	_ = cmd.MarkFlagRequired("artifacts")
	return cmd
}

func runRank(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Verbose)

	bpPath, _ := cmd.Flags().GetString("blueprint")
	var bp types.Blueprint
	if err := readJSON(bpPath, &bp); err != nil {
		return err
	}
	artifactsPath, _ := cmd.Flags().GetString("artifacts")
	var artifacts []types.Artifact
	if err := readJSON(artifactsPath, &artifacts); err != nil {
		return err
	}

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	ranked := ranking.New(svc.embedder, svc.pipeline, logger).Rank(ctx, &bp, artifacts)
	if cfg.Verbose {
		observability.NewPrinter(cmd.ErrOrStderr()).PrintRankedArtifacts(ranked)
	}

	out, err := json.MarshalIndent(ranked, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ranking: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
