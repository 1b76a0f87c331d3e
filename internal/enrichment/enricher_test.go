package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/embedding"
	"github.com/jonathan/docdna/internal/llm"
	"github.com/jonathan/docdna/internal/types"
)

const reply = `{
  "summary": "Executive CV of a fintech CTO with twelve years of experience.",
  "tags": ["Fintech", "fintech", "uk-market", "cv", "c-suite", "series-b"]
}`

type recordingEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return []float32{0.1, 0.2, 0.3}, nil
}

func newStore(t *testing.T) db.Store {
	t.Helper()
	s, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func insertArtifact(t *testing.T, store db.Store, content string) string {
	t.Helper()
	a := types.Artifact{
		Name: "Ada CV", ArtifactType: "cv", DocumentType: "resume",
		Description: "Hiring manager for the platform team",
		EntityType:  types.EntityCandidate, EntityID: "c1",
	}
	if content != "" {
		a.ProcessedContent = &content
	}
	id, err := store.InsertArtifact(context.Background(), a)
	require.NoError(t, err)
	return id
}

func TestProcess_EnrichesAndEmbeds(t *testing.T) {
	store := newStore(t)
	id := insertArtifact(t, store, "Ada Lovelace. CTO at Analytical Engines Ltd. "+strings.Repeat("z", 9000))

	var gotReq llm.Request
	extractor := llm.ExtractorFunc(func(_ context.Context, req llm.Request, out any) error {
		gotReq = req
		return json.Unmarshal([]byte(reply), out)
	})
	emb := &recordingEmbedder{}

	res := New(store, extractor, emb, config.DefaultPipeline(), nil).Process(context.Background(), id)
	assert.Equal(t, Result{Success: true, SummaryGenerated: true, ArtifactID: id}, res)

	assert.Equal(t, llm.TierLite, gotReq.Tier)
	assert.Contains(t, gotReq.Prompt, "ARTIFACT NAME: Ada CV")
	assert.Contains(t, gotReq.Prompt, "DESCRIPTION / USER NOTES: Hiring manager for the platform team")
	assert.Contains(t, gotReq.Prompt, "CONTENT:\nAda Lovelace.")
	assert.NotContains(t, gotReq.Prompt, strings.Repeat("z", 8000))
	assert.NotEmpty(t, gotReq.System)

	stored, err := store.GetArtifact(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, stored.Summary)
	assert.Equal(t, "Executive CV of a fintech CTO with twelve years of experience.", *stored.Summary)
	assert.Equal(t, []string{"fintech", "uk-market", "cv", "c-suite", "series-b"}, stored.Tags)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, stored.Embedding)

	require.Len(t, emb.texts, 1)
	assert.Contains(t, emb.texts[0], "Summary: Executive CV")
	assert.Contains(t, emb.texts[0], "Tags: fintech, uk-market, cv, c-suite, series-b")
	assert.NotContains(t, emb.texts[0], strings.Repeat("z", 6000))
}

func TestProcess_NoContentSkipsExtraction(t *testing.T) {
	store := newStore(t)
	id := insertArtifact(t, store, "")

	extractor := llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
		t.Fatal("extraction must not run for an artifact without text")
		return nil
	})
	emb := &recordingEmbedder{}

	res := New(store, extractor, emb, config.DefaultPipeline(), nil).Process(context.Background(), id)
	assert.True(t, res.Success)
	assert.False(t, res.SummaryGenerated)

	require.Len(t, emb.texts, 1)
	assert.Equal(t, "Ada CV\nType: cv\nDocument type: resume", emb.texts[0])

	stored, err := store.GetArtifact(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, stored.Summary)
	assert.NotEmpty(t, stored.Embedding)
}

func TestProcess_ExtractionFailureEmbedsRawText(t *testing.T) {
	store := newStore(t)
	id := insertArtifact(t, store, "raw content")

	extractor := llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
		return &llm.APICallError{Call: "enrichment", Cause: errors.New("quota exceeded")}
	})
	emb := &recordingEmbedder{}

	res := New(store, extractor, emb, config.DefaultPipeline(), nil).Process(context.Background(), id)
	assert.True(t, res.Success)
	assert.False(t, res.SummaryGenerated)

	require.Len(t, emb.texts, 1)
	assert.Contains(t, emb.texts[0], "raw content")
	assert.NotContains(t, emb.texts[0], "Summary:")

	stored, err := store.GetArtifact(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, stored.Summary)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, stored.Embedding)
}

func TestProcess_MissingArtifact(t *testing.T) {
	res := New(newStore(t), llm.StaticExtractor(reply), nil, config.DefaultPipeline(), nil).
		Process(context.Background(), "missing")
	assert.Equal(t, Result{ArtifactID: "missing"}, res)
}

func TestProcess_EmbeddingErrorStillSucceeds(t *testing.T) {
	store := newStore(t)
	id := insertArtifact(t, store, "content")
	failing := embedding.Func(func(context.Context, string) ([]float32, error) {
		return nil, errors.New("embedding service unavailable")
	})

	res := New(store, llm.StaticExtractor(reply), failing, config.DefaultPipeline(), nil).Process(context.Background(), id)
	assert.True(t, res.Success)
	assert.True(t, res.SummaryGenerated)

	stored, err := store.GetArtifact(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, stored.Embedding)
}

func TestEnrich_SchemaRejectsTooFewTags(t *testing.T) {
	e := New(newStore(t), llm.StaticExtractor(`{"summary": "s", "tags": ["a", "b"]}`), nil, config.DefaultPipeline(), nil)
	_, err := e.Enrich(context.Background(), types.Artifact{Name: "x"})
	require.Error(t, err)

	var schemaErr *llm.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestEnrich_NoExtractor(t *testing.T) {
	_, err := New(newStore(t), nil, nil, config.DefaultPipeline(), nil).Enrich(context.Background(), types.Artifact{})
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	content := "abcdef"
	p, err := BuildPrompt(types.Artifact{Name: "Deck", ArtifactType: "company-overview", ProcessedContent: &content}, 3)
	require.NoError(t, err)
	assert.Contains(t, p, "ARTIFACT TYPE: company-overview")
	assert.NotContains(t, p, "DESCRIPTION")
	assert.True(t, strings.HasSuffix(p, "CONTENT:\nabc"))
}

func TestDedupeTags(t *testing.T) {
	assert.Equal(t, []string{"fintech", "uk-market"}, dedupeTags([]string{" Fintech ", "", "fintech", "UK-market"}))
}
