package visual

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

type fakeRenderer struct {
	pages    [][]byte
	err      error
	maxPages int
	dpi      float64
}

func (f *fakeRenderer) RenderPages(_ []byte, maxPages int, dpi float64) ([][]byte, error) {
	f.maxPages, f.dpi = maxPages, dpi
	return f.pages, f.err
}

func styled(text, font string, size float64, weight, color string) types.Block {
	return types.Block{
		Type: types.BlockText,
		Text: text,
		Style: &types.BlockStyle{
			FontName:   font,
			FontSizePt: types.Float(size),
			FontWeight: weight,
			ColorHex:   color,
		},
	}
}

func docWith(format types.SourceFormat, blocks ...types.Block) *types.Document {
	return &types.Document{ID: "d1", SourceFormat: format, Pages: []types.Page{{Number: 1, Blocks: blocks}}}
}

func sampleDoc(format types.SourceFormat) *types.Document {
	return docWith(format,
		styled("Title Text", "Georgia", 22, types.WeightBold, "#1F3864"),
		styled(strings.Repeat("a", 100), "Arial", 10, types.WeightNormal, "#000000"),
		styled("bb", "Arial", 10, types.WeightNormal, "#333333"),
	)
}

func TestClassifyRole(t *testing.T) {
	tests := []struct {
		size   *float64
		weight string
		want   string
	}{
		{nil, types.WeightBold, types.RoleBody},
		{types.Float(24), types.WeightNormal, types.RoleH1},
		{types.Float(20), types.WeightNormal, types.RoleH1},
		{types.Float(15), types.WeightNormal, types.RoleH2},
		{types.Float(13), types.WeightNormal, types.RoleH3},
		{types.Float(11), types.WeightBold, types.RoleH3},
		{types.Float(9), types.WeightNormal, types.RoleBody},
		{types.Float(8), types.WeightBold, types.RoleCaption},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyRole(tt.size, tt.weight))
	}
}

func TestCensus_TypographyAndPalette(t *testing.T) {
	c := TakeCensus(sampleDoc(types.FormatDOCX))

	typo := c.Typography()
	require.Contains(t, typo, types.RoleH1)
	require.Contains(t, typo, types.RoleBody)

	h1 := typo[types.RoleH1]
	assert.Equal(t, "Georgia", *h1.FontFamily)
	assert.Equal(t, 22.0, *h1.SizePt)
	assert.Equal(t, types.WeightBold, h1.Weight)
	assert.True(t, h1.Inferred)

	body := typo[types.RoleBody]
	assert.Equal(t, "#000000", body.ColorHex)

	assert.Equal(t, map[string]string{
		"primary":    "#1F3864",
		"secondary":  "#333333",
		"background": "#FFFFFF",
	}, c.Palette())
}

func TestCensus_UnknownFontAndTies(t *testing.T) {
	doc := docWith(types.FormatDOCX,
		types.Block{Text: "abc", Style: &types.BlockStyle{ColorHex: "#00FF00"}},
		types.Block{Text: "xyz", Style: &types.BlockStyle{ColorHex: "#FF0000"}},
		types.Block{Text: "skipped"},
		types.Block{Text: "", Style: &types.BlockStyle{ColorHex: "#0000FF"}},
	)
	c := TakeCensus(doc)

	body := c.Typography()[types.RoleBody]
	assert.Nil(t, body.FontFamily)
	assert.Nil(t, body.SizePt)
	assert.Equal(t, types.WeightNormal, body.Weight)
	// equal weights keep first-seen order
	assert.Equal(t, "#00FF00", body.ColorHex)

	p := c.Palette()
	assert.Equal(t, "#00FF00", p["primary"])
	assert.Equal(t, "#FF0000", p["secondary"])
	assert.NotContains(t, p, "accent")
}

func TestCensus_PaletteKeepsSixSlots(t *testing.T) {
	var blocks []types.Block
	colors := []string{"#111111", "#222222", "#333333", "#444444", "#555555", "#666666", "#777777", "#ffffff", "#000"}
	for i, c := range colors {
		blocks = append(blocks, styled(strings.Repeat("x", 20-i), "Arial", 10, "", c))
	}
	p := TakeCensus(docWith(types.FormatPDF, blocks...)).Palette()
	assert.Len(t, p, 7)
	assert.Equal(t, "#666666", p["extra"])
	for _, v := range p {
		assert.NotEqual(t, "#777777", v)
	}
	assert.Equal(t, "#FFFFFF", p["background"])
}

func TestAnalyze_DocxSkipsVision(t *testing.T) {
	extractor := llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
		t.Fatal("vision must not run for docx")
		return nil
	})
	doc := docWith(types.FormatDOCX, styled("body text", "Arial", 10, types.WeightNormal, "#000000"))

	spec, err := New(extractor, &fakeRenderer{}, config.DefaultPipeline(), nil).Analyze(context.Background(), doc, nil)
	require.NoError(t, err)

	assert.True(t, spec.Typography[types.RoleBody].Inferred)
	assert.Equal(t, Sentinel(types.RoleH1), spec.Typography[types.RoleH1])
	assert.Equal(t, DefaultBulletStyle(), spec.BulletStyle)
	assert.Equal(t, DefaultParagraphRules(), spec.ParagraphRules)
	assert.Equal(t, "#FFFFFF", spec.ColorPalette["background"])
}

const visionReplyJSON = `{
  "typography": {
    "body": {"font_family": "Inter", "size_pt": null, "weight": null, "color_hex": null},
    "h2": {"font_family": "Inter", "size_pt": 16, "weight": "bold", "color_hex": "#112233"}
  },
  "color_palette": {"primary": "#AA0000", "accent": null},
  "bullet_style": {"level_1": "▪"}
}`

func TestAnalyze_PDFMergesVision(t *testing.T) {
	renderer := &fakeRenderer{pages: [][]byte{[]byte("png1"), []byte("png2")}}
	var captured llm.Request
	static := llm.StaticExtractor(visionReplyJSON)
	extractor := llm.ExtractorFunc(func(ctx context.Context, req llm.Request, out any) error {
		captured = req
		return static.Extract(ctx, req, out)
	})

	spec, err := New(extractor, renderer, config.DefaultPipeline(), nil).
		Analyze(context.Background(), sampleDoc(types.FormatPDF), []byte("%PDF-1.7"))
	require.NoError(t, err)

	assert.Equal(t, 2, renderer.maxPages)
	assert.Equal(t, 108.0, renderer.dpi)
	require.Len(t, captured.Images, 2)
	assert.Equal(t, "image/png", captured.Images[0].MIMEType)
	assert.Contains(t, captured.Prompt, "Georgia")

	body := spec.Typography[types.RoleBody]
	assert.Equal(t, "Inter", *body.FontFamily)
	assert.Equal(t, 10.0, *body.SizePt)
	assert.False(t, body.Inferred)

	h2 := spec.Typography[types.RoleH2]
	assert.Equal(t, 16.0, *h2.SizePt)
	assert.Equal(t, "#112233", h2.ColorHex)
	// no census evidence for h2, so the vision value alone stays inferred
	assert.True(t, h2.Inferred)

	// census-only role stays inferred
	assert.True(t, spec.Typography[types.RoleH1].Inferred)

	assert.Equal(t, "#AA0000", spec.ColorPalette["primary"])
	assert.Equal(t, "#333333", spec.ColorPalette["secondary"])
	assert.NotContains(t, spec.ColorPalette, "accent")
	assert.Equal(t, "▪", spec.BulletStyle.Level1)
	assert.Equal(t, "–", spec.BulletStyle.Level2)
}

func TestAnalyze_VisionFailureFallsBackToCensus(t *testing.T) {
	tests := []struct {
		name      string
		renderer  *fakeRenderer
		extractor llm.Extractor
	}{
		{
			name:      "render error",
			renderer:  &fakeRenderer{err: errors.New("mupdf failed")},
			extractor: llm.StaticExtractor(visionReplyJSON),
		},
		{
			name:     "extraction error",
			renderer: &fakeRenderer{pages: [][]byte{[]byte("png")}},
			extractor: llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
				return errors.New("quota exceeded")
			}),
		},
		{
			name:      "malformed reply",
			renderer:  &fakeRenderer{pages: [][]byte{[]byte("png")}},
			extractor: llm.StaticExtractor(`{"typography": {"body": {"size_pt": "big"}}}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := New(tt.extractor, tt.renderer, config.DefaultPipeline(), nil).
				Analyze(context.Background(), sampleDoc(types.FormatPDF), nil)
			require.NoError(t, err)
			assert.Equal(t, "Arial", *spec.Typography[types.RoleBody].FontFamily)
			assert.True(t, spec.Typography[types.RoleBody].Inferred)
			assert.Equal(t, "#1F3864", spec.ColorPalette["primary"])
		})
	}
}

func TestAnalyze_ImageUsesRawBytes(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	var captured llm.Request
	extractor := llm.ExtractorFunc(func(_ context.Context, req llm.Request, _ any) error {
		captured = req
		return nil
	})
	img := docWith(types.FormatImage, types.Block{ID: "p1_b0", Type: types.BlockImage})

	spec, err := New(extractor, nil, config.DefaultPipeline(), nil).Analyze(context.Background(), img, png)
	require.NoError(t, err)
	require.Len(t, captured.Images, 1)
	assert.Equal(t, "image/png", captured.Images[0].MIMEType)
	assert.Equal(t, png, captured.Images[0].Data)
	assert.Contains(t, spec.Typography, types.RoleH1)
}

func TestAnalyze_ImageWithUnknownBytesSkipsVision(t *testing.T) {
	called := false
	extractor := llm.ExtractorFunc(func(context.Context, llm.Request, any) error {
		called = true
		return nil
	})
	img := docWith(types.FormatImage, types.Block{ID: "p1_b0", Type: types.BlockImage})

	spec, err := New(extractor, nil, config.DefaultPipeline(), nil).Analyze(context.Background(), img, []byte("plain text"))
	require.NoError(t, err)
	assert.False(t, called)
	assert.Equal(t, Defaults(), spec)
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	h1 := d.Typography[types.RoleH1]
	assert.Nil(t, h1.FontFamily)
	assert.Nil(t, h1.SizePt)
	assert.Equal(t, types.WeightBold, h1.Weight)
	assert.True(t, h1.Inferred)
	assert.Equal(t, types.WeightNormal, d.Typography[types.RoleBody].Weight)
	assert.Equal(t, "#FFFFFF", d.ColorPalette["background"])
}
