package semantic

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/llm"
	"github.com/jonathan/docdna/internal/types"
)

func textBlock(text string, size float64, weight string) types.Block {
	return types.Block{
		Type:  types.BlockText,
		Text:  text,
		Style: &types.BlockStyle{FontSizePt: types.Float(size), FontWeight: weight},
	}
}

func docOf(blocks ...types.Block) *types.Document {
	return &types.Document{ID: "d1", SourceFormat: types.FormatPDF, Pages: []types.Page{{Number: 1, Blocks: blocks}}}
}

func TestIsHeading(t *testing.T) {
	cfg := config.DefaultPipeline()
	tests := []struct {
		name  string
		block types.Block
		want  bool
	}{
		{"large text", textBlock("Summary", 16, types.WeightNormal), true},
		{"exactly 13pt", textBlock("Summary", 13, types.WeightNormal), true},
		{"bold short", textBlock("Experience", 10, types.WeightBold), true},
		{"bold but 80 chars", textBlock(strings.Repeat("a", 80), 10, types.WeightBold), false},
		{"large but too long", textBlock(strings.Repeat("a", 121), 20, types.WeightNormal), false},
		{"plain body", textBlock("Body text", 10, types.WeightNormal), false},
		{"empty", textBlock("", 20, types.WeightBold), false},
		{"no style", types.Block{Text: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsHeading(tt.block, cfg))
		})
	}
}

func TestCondense_MarksHeadings(t *testing.T) {
	doc := docOf(
		textBlock("Profile", 18, types.WeightBold),
		textBlock("  A seasoned operator.  ", 10, types.WeightNormal),
		textBlock("   ", 10, types.WeightNormal),
	)
	got := Condense(doc, config.DefaultPipeline())
	assert.Equal(t, "\n=== Profile ===\n\nA seasoned operator.", got)
}

func TestCondense_TruncatesAtBudget(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.SemanticCharBudget = 10

	doc := docOf(
		textBlock("abcdefgh", 10, types.WeightNormal),
		textBlock("ijkl", 10, types.WeightNormal),
		textBlock("never included", 10, types.WeightNormal),
	)
	got := Condense(doc, cfg)
	assert.Equal(t, "abcdefgh\nijkl\n"+truncationNote, got)
	assert.NotContains(t, got, "never")
}

func TestAnalyze_EmptyDocumentSkipsExtraction(t *testing.T) {
	called := false
	extractor := llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
		called = true
		return nil
	})

	doc := &types.Document{ID: "img", SourceFormat: types.FormatImage,
		Pages: []types.Page{{Number: 1, Blocks: []types.Block{{ID: "p1_b0", Type: types.BlockImage}}}}}

	spec, err := New(extractor, config.DefaultPipeline(), nil).Analyze(context.Background(), doc)
	require.NoError(t, err)
	assert.False(t, called)
	require.Len(t, spec.Sections, 1)
	assert.Equal(t, "content", spec.Sections[0].Intent)
	assert.Equal(t, "Document Content", spec.Sections[0].Title)
	assert.Equal(t, []string{types.ElementParagraph}, spec.Sections[0].AllowedElementTypes)
}

const nestedReply = `{"sections": [
  {"section_id": "s1", "title": "Summary", "depth": 1, "intent": "summary",
   "allowed_element_types": ["paragraph"], "rhetorical_pattern": "claim → evidence",
   "micro_template": "Open with one sentence.",
   "child_sections": [
     {"section_id": "s1_1", "title": "Highlights", "depth": 2, "intent": "evidence",
      "allowed_element_types": ["bullet_list"], "rhetorical_pattern": "list",
      "micro_template": "Three bullets.", "child_sections": []}
   ]},
  {"section_id": "s2", "title": "Recommendation", "depth": 1, "intent": "recommendation",
   "allowed_element_types": ["paragraph", "quote"], "rhetorical_pattern": "problem → solution",
   "micro_template": "State the recommendation.", "child_sections": []}
]}`

func TestAnalyze_DecodesValidatedReply(t *testing.T) {
	var captured llm.Request
	static := llm.StaticExtractor(nestedReply)
	extractor := llm.ExtractorFunc(func(ctx context.Context, req llm.Request, out any) error {
		captured = req
		return static.Extract(ctx, req, out)
	})

	doc := docOf(textBlock("Summary", 18, types.WeightBold), textBlock("Body", 10, types.WeightNormal))
	spec, err := New(extractor, config.DefaultPipeline(), nil).Analyze(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, "semantic", captured.Name)
	assert.Contains(t, captured.Prompt, "=== Summary ===")
	assert.NotEmpty(t, captured.System)

	require.Len(t, spec.Sections, 2)
	require.Len(t, spec.Sections[0].ChildSections, 1)
	assert.Equal(t, "s1_1", spec.Sections[0].ChildSections[0].SectionID)
	assert.NotNil(t, spec.Sections[1].ChildSections)
	assert.Empty(t, spec.Sections[0].TypographyRole)
}

func TestAnalyze_RejectsIncompleteSection(t *testing.T) {
	reply := `{"sections": [{"section_id": "s1", "title": "Summary", "depth": 1}]}`
	doc := docOf(textBlock("Body text", 10, types.WeightNormal))

	_, err := New(llm.StaticExtractor(reply), config.DefaultPipeline(), nil).Analyze(context.Background(), doc)
	var schemaErr *llm.SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestAnalyze_RejectsDepthBeyondFour(t *testing.T) {
	reply := strings.Replace(nestedReply, `"depth": 2`, `"depth": 5`, 1)
	doc := docOf(textBlock("Body text", 10, types.WeightNormal))

	_, err := New(llm.StaticExtractor(reply), config.DefaultPipeline(), nil).Analyze(context.Background(), doc)
	assert.Error(t, err)
}

func TestAnalyze_PropagatesExtractionFailure(t *testing.T) {
	extractor := llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
		return &llm.APICallError{Call: "semantic", Cause: errors.New("unavailable")}
	})
	doc := docOf(textBlock("Body text", 10, types.WeightNormal))

	_, err := New(extractor, config.DefaultPipeline(), nil).Analyze(context.Background(), doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "semantic analysis failed")
}

func TestStructureSchema_RequiresEveryField(t *testing.T) {
	js := StructureSchema().JSONSchema()
	section := js["properties"].(map[string]any)["sections"].(map[string]any)["items"].(map[string]any)
	assert.ElementsMatch(t, []string{
		"section_id", "title", "depth", "intent", "allowed_element_types",
		"rhetorical_pattern", "micro_template", "child_sections",
	}, section["required"])
}
