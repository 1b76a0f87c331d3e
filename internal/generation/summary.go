package generation

import (
	"math"

	"github.com/jonathan/docdna/internal/types"
)

// SelectedArtifact is the lightweight view of one artifact chosen for generation
type SelectedArtifact struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	ArtifactType string           `json:"artifact_type"`
	EntityType   types.EntityType `json:"entity_type"`
	SectionID    *string          `json:"section_id"`
	Score        float64          `json:"score"`
}

// SelectedSummary lists every ranked artifact once: section matches first, in
// section order, then any globally ranked artifact not already listed.
func SelectedSummary(ranked types.RankedArtifacts) []SelectedArtifact {
	seen := make(map[string]bool)
	out := []SelectedArtifact{}

	add := func(sa types.ScoredArtifact, sectionID *string) {
		if seen[sa.Artifact.ID] {
			return
		}
		seen[sa.Artifact.ID] = true
		out = append(out, SelectedArtifact{
			ID:           sa.Artifact.ID,
			Name:         orDefault(sa.Artifact.Name, "Unnamed"),
			ArtifactType: sa.Artifact.ArtifactType,
			EntityType:   sa.Artifact.EntityType,
			SectionID:    sectionID,
			Score:        math.Round(sa.Score*1000) / 1000,
		})
	}

	for _, sid := range ranked.SectionOrder {
		for _, sa := range ranked.BySection[sid] {
			add(sa, &sid)
		}
	}
	for _, sa := range ranked.Global {
		add(sa, nil)
	}
	return out
}
