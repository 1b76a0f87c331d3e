// Package visual extracts typography, color palette, bullet and paragraph style
// tokens. A deterministic census of block styles is always computed; for PDF and
// image sources a vision pass confirms or corrects it.
package visual

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/llm"
	"github.com/jonathan/docdna/internal/prompts"
	"github.com/jonathan/docdna/internal/types"
)

// DefaultBulletStyle is used when the vision pass reports none
func DefaultBulletStyle() types.BulletStyle {
	return types.BulletStyle{Level1: "•", Level2: "–", IndentPt: 18}
}

// DefaultParagraphRules is used when the vision pass reports none
func DefaultParagraphRules() types.ParagraphRules {
	return types.ParagraphRules{FirstLineIndentPt: 0, SpaceBetweenParagraphsPt: 6}
}

// Sentinel is the placeholder token for a required role without evidence
func Sentinel(role string) types.TypographyToken {
	weight := types.WeightNormal
	if role == types.RoleH1 {
		weight = types.WeightBold
	}
	return types.TypographyToken{Weight: weight, ColorHex: defaultColor, Inferred: true}
}

// EnsureRequiredRoles adds sentinel h1 and body tokens when missing
func EnsureRequiredRoles(typography map[string]types.TypographyToken) map[string]types.TypographyToken {
	if typography == nil {
		typography = map[string]types.TypographyToken{}
	}
	for _, role := range []string{types.RoleH1, types.RoleBody} {
		if _, ok := typography[role]; !ok {
			typography[role] = Sentinel(role)
		}
	}
	return typography
}

// Defaults is the visual spec used when nothing could be measured
func Defaults() types.VisualStyleSpec {
	return types.VisualStyleSpec{
		Typography:     EnsureRequiredRoles(nil),
		ColorPalette:   map[string]string{"background": defaultBackground},
		BulletStyle:    DefaultBulletStyle(),
		ParagraphRules: DefaultParagraphRules(),
	}
}

// Analyzer produces the visual style spec
type Analyzer struct {
	extractor llm.Extractor
	renderer  Renderer
	cfg       config.Pipeline
	logger    *slog.Logger
}

// New creates a visual analyzer. A nil renderer disables the vision pass for PDFs.
func New(extractor llm.Extractor, renderer Renderer, cfg config.Pipeline, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{extractor: extractor, renderer: renderer, cfg: cfg, logger: logger}
}

// Analyze computes the census tokens and, for PDF and image sources, merges in the
// vision pass. A failed vision pass is logged and skipped.
func (a *Analyzer) Analyze(ctx context.Context, doc *types.Document, raw []byte) (types.VisualStyleSpec, error) {
	census := TakeCensus(doc)
	algorithmic := types.VisualStyleSpec{
		Typography:     census.Typography(),
		ColorPalette:   census.Palette(),
		BulletStyle:    DefaultBulletStyle(),
		ParagraphRules: DefaultParagraphRules(),
	}

	var reply *visionReply
	if doc.SourceFormat == types.FormatPDF || doc.SourceFormat == types.FormatImage {
		var err error
		reply, err = a.vision(ctx, doc, raw, algorithmic)
		if err != nil {
			a.logger.Warn("vision pass failed, using census tokens", "document_id", doc.ID, "error", err)
			reply = nil
		}
	}

	spec := merge(algorithmic, reply)
	a.logger.Info("visual analysis complete", "document_id", doc.ID,
		"roles", len(spec.Typography), "colors", len(spec.ColorPalette), "vision", reply != nil)
	return spec, nil
}

func (a *Analyzer) images(doc *types.Document, raw []byte) ([]llm.Image, error) {
	switch doc.SourceFormat {
	case types.FormatPDF:
		if a.renderer == nil {
			return nil, nil
		}
		pages, err := a.renderer.RenderPages(raw, a.cfg.VisionPages, a.cfg.VisionDPI)
		if err != nil {
			return nil, err
		}
		out := make([]llm.Image, len(pages))
		for i, p := range pages {
			out[i] = llm.Image{MIMEType: "image/png", Data: p}
		}
		return out, nil
	case types.FormatImage:
		mt := mimetype.Detect(raw)
		if !isImage(mt) {
			return nil, fmt.Errorf("unrecognised image content (%s)", mt.String())
		}
		return []llm.Image{{MIMEType: mt.String(), Data: raw}}, nil
	default:
		return nil, nil
	}
}

func isImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

func (a *Analyzer) vision(ctx context.Context, doc *types.Document, raw []byte, candidates types.VisualStyleSpec) (*visionReply, error) {
	images, err := a.images(doc, raw)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, nil
	}

	candidateJSON, err := json.MarshalIndent(candidates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}
	system, err := prompts.Get("visual.json", "system")
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.Render("visual.json", "confirm", map[string]string{"Candidates": string(candidateJSON)})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StageTimeout())
	defer cancel()

	var reply visionReply
	req := llm.Request{
		Name:   "vision",
		System: system,
		Prompt: prompt,
		Schema: VisionSchema(),
		Images: images,
		Tier:   llm.TierStandard,
	}
	if err := a.extractor.Extract(ctx, req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

type visionToken struct {
	FontFamily *string  `json:"font_family"`
	SizePt     *float64 `json:"size_pt"`
	Weight     *string  `json:"weight"`
	ColorHex   *string  `json:"color_hex"`
}

type visionBullets struct {
	Level1   *string  `json:"level_1"`
	Level2   *string  `json:"level_2"`
	IndentPt *float64 `json:"indent_pt"`
}

type visionParagraphs struct {
	FirstLineIndentPt        *float64 `json:"first_line_indent_pt"`
	SpaceBetweenParagraphsPt *float64 `json:"space_between_paragraphs_pt"`
}

// visionReply is whatever the vision pass could see; every field is optional
type visionReply struct {
	Typography     map[string]*visionToken `json:"typography"`
	ColorPalette   map[string]*string      `json:"color_palette"`
	BulletStyle    *visionBullets          `json:"bullet_style"`
	ParagraphRules *visionParagraphs       `json:"paragraph_rules"`
}

// merge overlays the vision reply on the census tokens, non-null vision fields
// winning. A census role the vision pass reports is confirmed (inferred=false).
// A role only the vision pass saw has a single source and stays inferred, as do
// census-only roles. Required roles get sentinels.
func merge(algorithmic types.VisualStyleSpec, vision *visionReply) types.VisualStyleSpec {
	spec := types.VisualStyleSpec{
		Typography:     map[string]types.TypographyToken{},
		ColorPalette:   map[string]string{},
		BulletStyle:    DefaultBulletStyle(),
		ParagraphRules: DefaultParagraphRules(),
	}
	for role, tok := range algorithmic.Typography {
		spec.Typography[role] = tok
	}
	for k, v := range algorithmic.ColorPalette {
		spec.ColorPalette[k] = v
	}

	if vision != nil {
		for _, role := range types.TypographyRoles {
			vt := vision.Typography[role]
			if vt == nil {
				continue
			}
			tok, ok := spec.Typography[role]
			if !ok {
				tok = types.TypographyToken{Weight: types.WeightNormal, ColorHex: defaultColor}
			}
			if vt.FontFamily != nil && *vt.FontFamily != "" {
				tok.FontFamily = types.String(*vt.FontFamily)
			}
			if vt.SizePt != nil {
				tok.SizePt = types.Float(*vt.SizePt)
			}
			if vt.Weight != nil && *vt.Weight != "" {
				tok.Weight = *vt.Weight
			}
			if vt.ColorHex != nil && *vt.ColorHex != "" {
				tok.ColorHex = *vt.ColorHex
			}
			tok.Inferred = !ok
			spec.Typography[role] = tok
		}

		for k, v := range vision.ColorPalette {
			if v != nil && *v != "" {
				spec.ColorPalette[k] = *v
			}
		}

		if b := vision.BulletStyle; b != nil {
			if b.Level1 != nil {
				spec.BulletStyle.Level1 = *b.Level1
			}
			if b.Level2 != nil {
				spec.BulletStyle.Level2 = *b.Level2
			}
			if b.IndentPt != nil {
				spec.BulletStyle.IndentPt = *b.IndentPt
			}
		}
		if p := vision.ParagraphRules; p != nil {
			if p.FirstLineIndentPt != nil {
				spec.ParagraphRules.FirstLineIndentPt = *p.FirstLineIndentPt
			}
			if p.SpaceBetweenParagraphsPt != nil {
				spec.ParagraphRules.SpaceBetweenParagraphsPt = *p.SpaceBetweenParagraphsPt
			}
		}
	}

	if _, ok := spec.ColorPalette["background"]; !ok {
		spec.ColorPalette["background"] = defaultBackground
	}
	spec.Typography = EnsureRequiredRoles(spec.Typography)
	return spec
}

// VisionSchema describes the optional tokens the vision pass may return
func VisionSchema() *llm.Schema {
	token := llm.Object(map[string]*llm.Schema{
		"font_family": llm.String("").OrNull(),
		"size_pt":     llm.Number("").OrNull(),
		"weight":      llm.Enum(types.WeightBold, types.WeightNormal).OrNull(),
		"color_hex":   llm.String("#RRGGBB").OrNull(),
	}).OrNull()

	roles := map[string]*llm.Schema{}
	for _, r := range types.TypographyRoles {
		roles[r] = token
	}

	color := llm.String("#RRGGBB").OrNull()
	return llm.Object(map[string]*llm.Schema{
		"typography": llm.Object(roles),
		"color_palette": llm.Object(map[string]*llm.Schema{
			"primary":          color,
			"secondary":        color,
			"accent":           color,
			"background":       color,
			"table_header_bg":  color,
			"table_row_alt_bg": color,
		}),
		"bullet_style": llm.Object(map[string]*llm.Schema{
			"level_1":   llm.String("").OrNull(),
			"level_2":   llm.String("").OrNull(),
			"indent_pt": llm.Number("").OrNull(),
		}).OrNull(),
		"paragraph_rules": llm.Object(map[string]*llm.Schema{
			"first_line_indent_pt":        llm.Number("").OrNull(),
			"space_between_paragraphs_pt": llm.Number("").OrNull(),
		}).OrNull(),
	})
}
