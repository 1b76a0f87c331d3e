// Package layout infers page layout rules: page size, margins, columns,
// header/footer bands, vertical spacing and table placement.
package layout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/llm"
	"github.com/jonathan/docdna/internal/prompts"
	"github.com/jonathan/docdna/internal/types"
)

// Analyzer chooses the geometric path for PDF sources and the
// extraction fallback otherwise.
type Analyzer struct {
	extractor llm.Extractor
	cfg       config.Pipeline
	logger    *slog.Logger
}

// New creates a layout analyzer
func New(extractor llm.Extractor, cfg config.Pipeline, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{extractor: extractor, cfg: cfg, logger: logger}
}

// Analyze returns the layout spec for doc. section_order is always left empty;
// the assembler binds it from the content structure.
func (a *Analyzer) Analyze(ctx context.Context, doc *types.Document) (types.LayoutSpec, error) {
	if doc.HasGeometry() {
		spec := AnalyzeGeometry(doc, a.cfg)
		a.logger.Info("layout analysis complete", "document_id", doc.ID, "path", "geometric",
			"columns", spec.ColumnStructure, "header", spec.HeaderRule.Present, "footer", spec.FooterRule.Present)
		return spec, nil
	}

	if len(doc.Blocks()) == 0 {
		a.logger.Info("layout analysis skipped, document has no blocks", "document_id", doc.ID)
		return Defaults(a.cfg), nil
	}

	a.logger.Info("no bounding boxes available, using extraction fallback", "document_id", doc.ID)
	reply, err := a.fallback(ctx, doc)
	if err != nil {
		return types.LayoutSpec{}, fmt.Errorf("layout fallback failed: %w", err)
	}
	return reply.apply(Defaults(a.cfg), a.cfg), nil
}

// blockSummary is the coordinate-free view of a block sent to the fallback
type blockSummary struct {
	TextPreview string   `json:"text_preview"`
	FontSizePt  *float64 `json:"font_size_pt"`
	FontWeight  *string  `json:"font_weight"`
}

// summarize lists the first LayoutFallbackBlocks blocks with a text preview and their size and weight.
func summarize(doc *types.Document, cfg config.Pipeline) []blockSummary {
	var out []blockSummary
	for _, b := range doc.Blocks() {
		if len(out) >= cfg.LayoutFallbackBlocks {
			break
		}
		preview := []rune(b.Text)
		if len(preview) > cfg.LayoutFallbackPreview {
			preview = preview[:cfg.LayoutFallbackPreview]
		}
		s := blockSummary{TextPreview: string(preview)}
		if b.Style != nil {
			s.FontSizePt = b.Style.FontSizePt
			if b.Style.FontWeight != "" {
				s.FontWeight = types.String(b.Style.FontWeight)
			}
		}
		out = append(out, s)
	}
	return out
}

type partialMargins struct {
	Top    *float64 `json:"top"`
	Bottom *float64 `json:"bottom"`
	Left   *float64 `json:"left"`
	Right  *float64 `json:"right"`
}

type partialSpacing struct {
	BeforeH1         *float64 `json:"before_h1_pt"`
	AfterH1          *float64 `json:"after_h1_pt"`
	BeforeH2         *float64 `json:"before_h2_pt"`
	AfterH2          *float64 `json:"after_h2_pt"`
	ParagraphSpacing *float64 `json:"paragraph_spacing_pt"`
	LineSpacing      *float64 `json:"line_spacing_multiple"`
}

type partialRule struct {
	Present *bool   `json:"present"`
	Pattern *string `json:"content_pattern"`
}

// fallbackReply holds whichever layout fields the extraction service could infer
type fallbackReply struct {
	PageSize        *string         `json:"page_size"`
	ColumnStructure *string         `json:"column_structure"`
	MarginsPt       *partialMargins `json:"margins_pt"`
	SpacingRules    *partialSpacing `json:"spacing_rules"`
	HeaderRule      *partialRule    `json:"header_rule"`
	FooterRule      *partialRule    `json:"footer_rule"`
	TablePlacement  *string         `json:"table_placement"`
}

func (a *Analyzer) fallback(ctx context.Context, doc *types.Document) (*fallbackReply, error) {
	summary := summarize(doc, a.cfg)
	blocksJSON, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode block summary: %w", err)
	}

	system, err := prompts.Get("layout.json", "system")
	if err != nil {
		return nil, err
	}
	prompt, err := prompts.Render("layout.json", "fallback", map[string]string{
		"SourceFormat": string(doc.SourceFormat),
		"BlockCount":   strconv.Itoa(len(summary)),
		"Blocks":       string(blocksJSON),
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StageTimeout())
	defer cancel()

	var reply fallbackReply
	req := llm.Request{
		Name:   "layout",
		System: system,
		Prompt: prompt,
		Schema: FallbackSchema(),
		Tier:   llm.TierLite,
	}
	if err := a.extractor.Extract(ctx, req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// apply overlays the inferred fields on base; margins are clamped like measured ones
func (r *fallbackReply) apply(base types.LayoutSpec, cfg config.Pipeline) types.LayoutSpec {
	spec := base
	if r.PageSize != nil && *r.PageSize != "" {
		spec.PageSize = *r.PageSize
	}
	if r.ColumnStructure != nil {
		spec.ColumnStructure = *r.ColumnStructure
	}
	if r.TablePlacement != nil {
		spec.TablePlacement = *r.TablePlacement
	}

	if m := r.MarginsPt; m != nil {
		spec.MarginsPt = ClampMargins(types.Margins{
			Top:    derefOr(m.Top, base.MarginsPt.Top),
			Bottom: derefOr(m.Bottom, base.MarginsPt.Bottom),
			Left:   derefOr(m.Left, base.MarginsPt.Left),
			Right:  derefOr(m.Right, base.MarginsPt.Right),
		}, cfg)
	}

	if s := r.SpacingRules; s != nil {
		spec.SpacingRules = types.SpacingRules{
			BeforeH1:         derefOr(s.BeforeH1, base.SpacingRules.BeforeH1),
			AfterH1:          derefOr(s.AfterH1, base.SpacingRules.AfterH1),
			BeforeH2:         derefOr(s.BeforeH2, base.SpacingRules.BeforeH2),
			AfterH2:          derefOr(s.AfterH2, base.SpacingRules.AfterH2),
			ParagraphSpacing: derefOr(s.ParagraphSpacing, base.SpacingRules.ParagraphSpacing),
			LineSpacing:      derefOr(s.LineSpacing, base.SpacingRules.LineSpacing),
		}
	}

	spec.HeaderRule = r.HeaderRule.apply(base.HeaderRule)
	spec.FooterRule = r.FooterRule.apply(base.FooterRule)
	return spec
}

func (p *partialRule) apply(base types.HeaderFooterRule) types.HeaderFooterRule {
	if p == nil {
		return base
	}
	rule := base
	if p.Present != nil {
		rule.Present = *p.Present
	}
	if p.Pattern != nil {
		rule.Pattern = *p.Pattern
	}
	if !rule.Present {
		rule.Pattern = ""
	}
	return rule
}

// FallbackSchema describes the optional layout fields the fallback may return
func FallbackSchema() *llm.Schema {
	num := func() *llm.Schema { return llm.Number("").OrNull() }
	rule := llm.Object(map[string]*llm.Schema{
		"present":         llm.Boolean().OrNull(),
		"content_pattern": llm.String("").OrNull(),
	}).OrNull()

	return llm.Object(map[string]*llm.Schema{
		"page_size":        llm.Enum(types.PageSizeA4, types.PageSizeLetter).OrNull(),
		"column_structure": llm.Enum(types.ColumnsSingle, types.ColumnsTwo).OrNull(),
		"margins_pt": llm.Object(map[string]*llm.Schema{
			"top": num(), "bottom": num(), "left": num(), "right": num(),
		}).OrNull(),
		"spacing_rules": llm.Object(map[string]*llm.Schema{
			"before_h1_pt":          num(),
			"after_h1_pt":           num(),
			"before_h2_pt":          num(),
			"after_h2_pt":           num(),
			"paragraph_spacing_pt":  num(),
			"line_spacing_multiple": num(),
		}).OrNull(),
		"header_rule":     rule,
		"footer_rule":     rule,
		"table_placement": llm.Enum(types.PlacementInline, types.PlacementFullWidth).OrNull(),
	})
}
