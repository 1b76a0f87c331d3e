package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jonathan/docdna/internal/observability"
	"github.com/jonathan/docdna/internal/pipeline"
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Extract a Blueprint from a local document",
		Long: `Runs the extraction pipeline on a PDF, DOCX or image file and prints the Blueprint as JSON.
Nothing is stored. With --verbose, summaries of the document model and Blueprint are
printed to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}
	cmd.Flags().String("document-type", "", "Document type recorded in the Blueprint (e.g. proposal, resume)")
	cmd.Flags().StringP("output", "o", "", "Write the Blueprint JSON to a file instead of stdout")
	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Verbose)

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	svc, err := newServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	stages := svc.stages()
	printer := observability.NewPrinter(cmd.ErrOrStderr())
	filename := filepath.Base(path)

	if cfg.Verbose {
		if doc, err := stages.Preprocessor.Build(data, filename); err == nil {
			printer.PrintDocument(doc)
		}
	}

	runner := pipeline.NewRunner(stages, nil, svc.pipeline, logger)
	if cfg.Verbose {
		runner.OnProgress(func(e pipeline.ProgressEvent) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", e.Step, e.Message)
		})
	}

	docType, _ := cmd.Flags().GetString("document-type")
	bp, err := runner.Run(ctx, pipeline.Input{
		Name:         filename,
		Filename:     filename,
		DocumentType: docType,
		Data:         data,
	})
	if err != nil {
		return err
	}

	if cfg.Verbose {
		printer.PrintBlueprint(bp)
	}

	out, err := json.MarshalIndent(bp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode blueprint: %w", err)
	}
	if dest, _ := cmd.Flags().GetString("output"); dest != "" {
		if err := os.WriteFile(dest, out, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
		return nil
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
