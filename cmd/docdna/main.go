// Package main provides the docdna CLI: the HTTP API server and local analysis tools.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "docdna",
		Short: "Document DNA extraction and artifact ranking",
		Long: `docdna turns an uploaded document (PDF, DOCX or image) into a Blueprint describing its
content hierarchy, page layout and visual style, then ranks stored artifacts against
that Blueprint to build generation prompts.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Path to a JSON or YAML config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "Print detailed summaries")

	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newRankCmd())
	return root
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
