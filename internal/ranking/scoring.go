package ranking

import (
	"regexp"
	"strings"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/embedding"
	"github.com/jonathan/docdna/internal/types"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// entityPriority orders artifacts when a Blueprint has no sections
var entityPriority = map[string]float64{
	string(types.EntityCandidate):   4,
	string(types.EntityInterviewer): 3,
	string(types.EntityRole):        2,
	string(types.EntityCompany):     1,
}

const maxEntityPriority = 4.0

// ScoreArtifact scores an artifact against one section. Cosine similarity is used
// when both embeddings exist; otherwise the keyword overlap fallback applies.
func ScoreArtifact(a types.Artifact, sectionEmbedding []float32, intent string, cfg config.Pipeline) float64 {
	if len(a.Embedding) > 0 && len(sectionEmbedding) > 0 {
		return clamp(embedding.Cosine(a.Embedding, sectionEmbedding), 0, 1)
	}
	return KeywordScore(a, intent, cfg)
}

// KeywordScore is the fraction of intent words present in the artifact's name,
// types and leading content, bounded to [KeywordFloor, KeywordCap].
func KeywordScore(a types.Artifact, intent string, cfg config.Pipeline) float64 {
	intentWords := words(intent)
	if len(intentWords) == 0 {
		return cfg.KeywordFloor
	}

	haystack := strings.Join(nonEmpty(
		a.Name,
		a.ArtifactType,
		a.DocumentType,
		embedding.Truncate(a.Content(), cfg.KeywordContentChars),
	), " ")
	contentWords := words(haystack)
	if len(contentWords) == 0 {
		return cfg.KeywordFloor
	}

	overlap := 0
	for w := range intentWords {
		if contentWords[w] {
			overlap++
		}
	}
	return clamp(float64(overlap)/float64(len(intentWords)), cfg.KeywordFloor, cfg.KeywordCap)
}

// EntityScore normalizes the entity priority of an artifact into [0, 1].
// The artifact type is consulted when the entity type carries no priority.
func EntityScore(a types.Artifact) float64 {
	p, ok := entityPriority[string(a.EntityType)]
	if !ok || p == 0 {
		p = entityPriority[a.ArtifactType]
	}
	return p / maxEntityPriority
}

func words(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		out[w] = true
	}
	return out
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
