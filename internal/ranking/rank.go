// Package ranking scores candidate artifacts against the section intents of a Blueprint.
package ranking

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/embedding"
	"github.com/jonathan/docdna/internal/types"
)

// Ranker selects the most relevant artifacts for every section of a Blueprint
type Ranker struct {
	embedder embedding.Embedder
	cfg      config.Pipeline
	logger   *slog.Logger
}

// New creates a ranker. A nil embedder ranks by keyword overlap only.
func New(embedder embedding.Embedder, cfg config.Pipeline, logger *slog.Logger) *Ranker {
	if embedder == nil {
		embedder = embedding.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{embedder: embedder, cfg: cfg, logger: logger}
}

// Rank scores every artifact against every section, depth-first. Each section keeps
// its top-k artifacts; the global ranking orders artifacts by their mean score.
// Ties keep the order artifacts were given in. Ranking never fails: embedding
// errors fall back to keyword scoring.
func (r *Ranker) Rank(ctx context.Context, bp *types.Blueprint, artifacts []types.Artifact) types.RankedArtifacts {
	var sections []types.Section
	if bp != nil {
		sections = bp.ContentStructureSpec.FlatSections()
	}
	if len(sections) == 0 {
		return RankByEntity(artifacts)
	}

	intents := make([]string, len(sections))
	for i, s := range sections {
		intents[i] = s.Intent
		if intents[i] == "" {
			intents[i] = s.SectionID
		}
	}
	sectionEmbeddings := r.embedIntents(ctx, intents)

	out := types.RankedArtifacts{
		SectionOrder: make([]string, 0, len(sections)),
		BySection:    make(map[string][]types.ScoredArtifact, len(sections)),
	}
	totals := make([]float64, len(artifacts))

	for i, s := range sections {
		scored := make([]types.ScoredArtifact, len(artifacts))
		for j, a := range artifacts {
			score := ScoreArtifact(a, sectionEmbeddings[i], intents[i], r.cfg)
			scored[j] = types.ScoredArtifact{Artifact: a, Score: score, SectionID: s.SectionID}
			totals[j] += score
		}
		sortByScore(scored)
		if k := r.cfg.TopKPerSection; len(scored) > k {
			scored = scored[:k]
		}
		out.SectionOrder = append(out.SectionOrder, s.SectionID)
		out.BySection[s.SectionID] = scored
	}

	out.Global = make([]types.ScoredArtifact, len(artifacts))
	for j, a := range artifacts {
		out.Global[j] = types.ScoredArtifact{Artifact: a, Score: totals[j] / float64(len(sections))}
	}
	sortByScore(out.Global)

	r.logger.Info("artifacts ranked", "sections", len(sections), "artifacts", len(artifacts),
		"embedded_sections", countNonNil(sectionEmbeddings))
	return out
}

// embedIntents embeds every intent concurrently; a failed call yields nil
func (r *Ranker) embedIntents(ctx context.Context, intents []string) [][]float32 {
	out := make([][]float32, len(intents))
	g, gctx := errgroup.WithContext(ctx)
	for i, intent := range intents {
		g.Go(func() error {
			ectx, cancel := context.WithTimeout(gctx, r.cfg.EmbedTimeout())
			defer cancel()
			vec, err := r.embedder.Embed(ectx, intent)
			if err != nil {
				r.logger.Warn("intent embedding failed, using keyword scoring", "intent", intent, "error", err)
				return nil
			}
			out[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// RankByEntity orders artifacts by entity priority:
// candidate, then interviewer, then role, then company.
func RankByEntity(artifacts []types.Artifact) types.RankedArtifacts {
	global := make([]types.ScoredArtifact, len(artifacts))
	for i, a := range artifacts {
		global[i] = types.ScoredArtifact{Artifact: a, Score: EntityScore(a)}
	}
	sortByScore(global)
	return types.RankedArtifacts{
		SectionOrder: []string{},
		BySection:    map[string][]types.ScoredArtifact{},
		Global:       global,
	}
}

func sortByScore(s []types.ScoredArtifact) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Score > s[j].Score })
}

func countNonNil(vs [][]float32) int {
	n := 0
	for _, v := range vs {
		if v != nil {
			n++
		}
	}
	return n
}
