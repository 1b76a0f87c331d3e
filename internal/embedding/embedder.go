// Package embedding maps text to vectors for relevance scoring.
// Every embedder is fallible: callers treat a nil vector or an error as "no embedding".
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jonathan/docdna/internal/types"
)

// Embedder converts free text into a vector. A nil vector with a nil error means
// the service is not configured or the input was empty.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a function to the Embedder interface
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed calls f
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// Noop never produces an embedding
type Noop struct{}

// Embed returns no vector
func (Noop) Embed(context.Context, string) ([]float32, error) { return nil, nil }

// Provider is the model-side capability an embedder calls; llm.Client satisfies it.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Service embeds text through a Provider, truncating input to a character limit
type Service struct {
	provider Provider
	limit    int
	logger   *slog.Logger
}

// New returns an embedder over provider. A nil provider yields Noop.
func New(provider Provider, limit int, logger *slog.Logger) Embedder {
	if provider == nil {
		return Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, limit: limit, logger: logger}
}

// Embed returns nil for blank text, otherwise the provider's vector for the truncated text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	vec, err := s.provider.Embed(ctx, Truncate(text, s.limit))
	if err != nil {
		s.logger.Warn("embedding failed", "error", err)
		return nil, fmt.Errorf("embedding: %w", err)
	}
	return vec, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is empty,
// zero-length, or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// BuildText composes the text an artifact is embedded from: name, type, document type,
// summary, tags and the first contentChars characters of content, one per line.
func BuildText(a types.Artifact, contentChars int) string {
	var parts []string
	if a.Name != "" {
		parts = append(parts, a.Name)
	}
	if a.ArtifactType != "" {
		parts = append(parts, "Type: "+a.ArtifactType)
	}
	if a.DocumentType != "" {
		parts = append(parts, "Document type: "+a.DocumentType)
	}
	if a.Summary != nil && *a.Summary != "" {
		parts = append(parts, "Summary: "+*a.Summary)
	}
	if len(a.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(a.Tags, ", "))
	}
	if c := a.Content(); c != "" {
		parts = append(parts, Truncate(c, contentChars))
	}
	return strings.Join(parts, "\n")
}

// Truncate returns at most n characters of s. A non-positive n leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
