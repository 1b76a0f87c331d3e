// Package enrichment summarizes and tags uploaded artifacts, then refreshes their
// embeddings so retrieval benefits from the richer text.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/embedding"
	"github.com/jonathan/docdna/internal/llm"
	"github.com/jonathan/docdna/internal/prompts"
	"github.com/jonathan/docdna/internal/types"
)

// Tag count bounds requested from the extraction service
const (
	MinTags = 5
	MaxTags = 15
)

// Result reports what an enrichment run achieved
type Result struct {
	Success          bool   `json:"success"`
	SummaryGenerated bool   `json:"summary_generated"`
	ArtifactID       string `json:"artifact_id"`
}

// Enrichment is the structured reply of the extraction service
type Enrichment struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

// Enricher generates summaries and tags for artifacts
type Enricher struct {
	store     db.Store
	extractor llm.Extractor
	embedder  embedding.Embedder
	cfg       config.Pipeline
	logger    *slog.Logger
}

// New creates an enricher. A nil embedder skips the embedding refresh.
func New(store db.Store, extractor llm.Extractor, embedder embedding.Embedder, cfg config.Pipeline, logger *slog.Logger) *Enricher {
	if embedder == nil {
		embedder = embedding.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{store: store, extractor: extractor, embedder: embedder, cfg: cfg, logger: logger}
}

// Schema is the reply shape of an enrichment call
func Schema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"summary": llm.String("A single dense paragraph of 4-8 sentences describing what the artifact is and contains"),
		"tags":    llm.ArrayOf(llm.String("lowercase hyphenated tag")).WithItemRange(MinTags, MaxTags),
	}, "summary", "tags")
}

// Process enriches one stored artifact. It never fails outright: a missing artifact
// yields an unsuccessful result, and an extraction failure falls back to embedding
// the raw artifact text.
func (e *Enricher) Process(ctx context.Context, artifactID string) Result {
	res := Result{ArtifactID: artifactID}
	logger := e.logger.With("artifact_id", artifactID)

	a, err := e.store.GetArtifact(ctx, artifactID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("artifact not found")
		} else {
			logger.Error("failed to fetch artifact", "error", err)
		}
		return res
	}

	if strings.TrimSpace(a.Content()) == "" {
		logger.Info("artifact has no text content, embedding from name and type only")
		e.embedAndStore(ctx, *a, logger)
		res.Success = true
		return res
	}

	enr, err := e.Enrich(ctx, *a)
	if err != nil {
		logger.Warn("enrichment failed, falling back to raw embedding", "error", err)
		e.embedAndStore(ctx, *a, logger)
		res.Success = true
		return res
	}

	if err := e.store.UpdateArtifactEnrichment(ctx, a.ID, enr.Summary, enr.Tags); err != nil {
		logger.Error("failed to store summary and tags", "error", err)
		e.embedAndStore(ctx, *a, logger)
		res.Success = true
		return res
	}

	a.Summary = &enr.Summary
	a.Tags = enr.Tags
	e.embedAndStore(ctx, *a, logger)

	logger.Info("artifact enriched", "tags", len(enr.Tags))
	res.Success = true
	res.SummaryGenerated = true
	return res
}

// Enrich asks the extraction service for a summary and tags of a
func (e *Enricher) Enrich(ctx context.Context, a types.Artifact) (*Enrichment, error) {
	if e.extractor == nil {
		return nil, errors.New("no extraction service configured")
	}
	system, err := prompts.Get("enrichment.json", "system")
	if err != nil {
		return nil, err
	}
	prompt, err := BuildPrompt(a, e.cfg.EnrichContentChars)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.StageTimeout())
	defer cancel()

	var out Enrichment
	req := llm.Request{
		Name:   "enrichment",
		System: system,
		Prompt: prompt,
		Schema: Schema(),
		Tier:   llm.TierLite,
	}
	if err := e.extractor.Extract(ctx, req, &out); err != nil {
		return nil, fmt.Errorf("artifact enrichment failed: %w", err)
	}
	out.Tags = dedupeTags(out.Tags)
	return &out, nil
}

// BuildPrompt renders the enrichment request for a. The description block is only
// included when the artifact has one.
func BuildPrompt(a types.Artifact, contentChars int) (string, error) {
	description := ""
	if d := strings.TrimSpace(a.Description); d != "" {
		var err error
		description, err = prompts.Render("enrichment.json", "description", map[string]string{"Description": d})
		if err != nil {
			return "", err
		}
	}
	return prompts.Render("enrichment.json", "enrich", map[string]string{
		"Name":         a.Name,
		"ArtifactType": a.ArtifactType,
		"DocumentType": a.DocumentType,
		"Description":  description,
		"Content":      embedding.Truncate(a.Content(), contentChars),
	})
}

func (e *Enricher) embedAndStore(ctx context.Context, a types.Artifact, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.EmbedTimeout())
	defer cancel()

	vec, err := e.embedder.Embed(ctx, embedding.BuildText(a, e.cfg.EmbedContentChars))
	if err != nil {
		logger.Warn("embedding failed", "error", err)
		return
	}
	if len(vec) == 0 {
		return
	}
	if err := e.store.UpdateArtifactEmbedding(ctx, a.ID, vec); err != nil {
		logger.Error("failed to store embedding", "error", err)
	}
}

func dedupeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
