// Package generation builds the context a document is generated from: the stored
// Blueprint, the ranked artifacts of a project and its people, and the final prompt.
package generation

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/ranking"
	"github.com/jonathan/docdna/internal/types"
)

// Request asks for the generation context of one record within a scope
type Request struct {
	RecordID         string `json:"record_id"`
	Scope            Scope  `json:"scope"`
	UserRequirements string `json:"user_requirements,omitempty"`
}

// Context is everything a generator needs to produce a document
type Context struct {
	Prompt            string                            `json:"prompt"`
	SelectedArtifacts []SelectedArtifact                `json:"selected_artifacts"`
	EntityContext     types.EntityContext               `json:"entity_context"`
	BySection         map[string][]types.ScoredArtifact `json:"by_section"`
	DocumentType      string                            `json:"document_type"`
}

// Builder assembles generation contexts
type Builder struct {
	store  db.Store
	ranker *ranking.Ranker
	cfg    config.Pipeline
	logger *slog.Logger
}

// NewBuilder creates a context builder
func NewBuilder(store db.Store, ranker *ranking.Ranker, cfg config.Pipeline, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{store: store, ranker: ranker, cfg: cfg, logger: logger}
}

// BuildContext loads the record's Blueprint, fetches artifacts and entity profiles
// concurrently, ranks the artifacts against the Blueprint and assembles the prompt.
func (b *Builder) BuildContext(ctx context.Context, req Request) (*Context, error) {
	logger := b.logger.With("record_id", req.RecordID)

	rec, err := b.store.GetBlueprintRecord(ctx, req.RecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}
	if rec.Blueprint == nil {
		return nil, &NoBlueprintError{RecordID: rec.ID, Status: rec.Status}
	}

	var (
		artifacts []types.Artifact
		entities  types.EntityContext
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		artifacts = FetchArtifacts(gctx, b.store, req.Scope, logger)
		return nil
	})
	g.Go(func() error {
		entities = FetchEntityContext(gctx, b.store, req.Scope, logger)
		return nil
	})
	_ = g.Wait()

	ranked := b.ranker.Rank(ctx, rec.Blueprint, artifacts)
	prompt := BuildPrompt(rec.Blueprint, ranked, entities, req.UserRequirements, b.cfg)

	documentType := rec.DocumentType
	if documentType == "" {
		documentType = rec.Blueprint.DocumentType
	}

	logger.Info("generation context built", "artifacts", len(artifacts), "prompt_chars", len(prompt))
	return &Context{
		Prompt:            prompt,
		SelectedArtifacts: SelectedSummary(ranked),
		EntityContext:     entities,
		BySection:         ranked.BySection,
		DocumentType:      documentType,
	}, nil
}
