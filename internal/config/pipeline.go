package config

import (
	"fmt"
	"time"
)

// Pipeline holds every threshold used by the document pipeline and the ranker.
// A value is built once at startup and passed by value into each stage; stages never mutate it.
// Zero-valued fields in a config file mean "use the default".
type Pipeline struct {
	// Preprocessing
	ScannedCharThreshold int     `json:"scanned_char_threshold,omitempty" yaml:"scanned_char_threshold,omitempty"`
	PageSizeTolerancePt  float64 `json:"page_size_tolerance_pt,omitempty" yaml:"page_size_tolerance_pt,omitempty"`
	A4WidthPt            float64 `json:"a4_width_pt,omitempty" yaml:"a4_width_pt,omitempty"`
	A4HeightPt           float64 `json:"a4_height_pt,omitempty" yaml:"a4_height_pt,omitempty"`
	LetterWidthPt        float64 `json:"letter_width_pt,omitempty" yaml:"letter_width_pt,omitempty"`
	LetterHeightPt       float64 `json:"letter_height_pt,omitempty" yaml:"letter_height_pt,omitempty"`

	// Semantic analysis
	HeadingMinSizePt      float64 `json:"heading_min_size_pt,omitempty" yaml:"heading_min_size_pt,omitempty"`
	HeadingMaxChars       int     `json:"heading_max_chars,omitempty" yaml:"heading_max_chars,omitempty"`
	BoldHeadingMaxChars   int     `json:"bold_heading_max_chars,omitempty" yaml:"bold_heading_max_chars,omitempty"`
	SemanticCharBudget    int     `json:"semantic_char_budget,omitempty" yaml:"semantic_char_budget,omitempty"`
	LayoutFallbackBlocks  int     `json:"layout_fallback_blocks,omitempty" yaml:"layout_fallback_blocks,omitempty"`
	LayoutFallbackPreview int     `json:"layout_fallback_preview,omitempty" yaml:"layout_fallback_preview,omitempty"`

	// Layout analysis
	ColumnBinWidthPt         float64 `json:"column_bin_width_pt,omitempty" yaml:"column_bin_width_pt,omitempty"`
	ColumnMinSeparationPt    float64 `json:"column_min_separation_pt,omitempty" yaml:"column_min_separation_pt,omitempty"`
	ColumnMinFraction        float64 `json:"column_min_fraction,omitempty" yaml:"column_min_fraction,omitempty"`
	HeaderFooterPageFraction float64 `json:"header_footer_page_fraction,omitempty" yaml:"header_footer_page_fraction,omitempty"`
	HeaderFooterBinPt        float64 `json:"header_footer_bin_pt,omitempty" yaml:"header_footer_bin_pt,omitempty"`
	HeaderFooterBand         float64 `json:"header_footer_band,omitempty" yaml:"header_footer_band,omitempty"`
	TableFullWidthFraction   float64 `json:"table_full_width_fraction,omitempty" yaml:"table_full_width_fraction,omitempty"`
	MarginMinPt              float64 `json:"margin_min_pt,omitempty" yaml:"margin_min_pt,omitempty"`
	MarginMaxPt              float64 `json:"margin_max_pt,omitempty" yaml:"margin_max_pt,omitempty"`
	DefaultMarginPt          float64 `json:"default_margin_pt,omitempty" yaml:"default_margin_pt,omitempty"`

	// Visual analysis
	VisionPages          int     `json:"vision_pages,omitempty" yaml:"vision_pages,omitempty"`
	VisionDPI            float64 `json:"vision_dpi,omitempty" yaml:"vision_dpi,omitempty"`
	MinFontOccurrences   int     `json:"min_font_occurrences,omitempty" yaml:"min_font_occurrences,omitempty"`
	VisualJSONCharBudget int     `json:"visual_json_char_budget,omitempty" yaml:"visual_json_char_budget,omitempty"`

	// External calls
	StageTimeoutSeconds int `json:"stage_timeout_seconds,omitempty" yaml:"stage_timeout_seconds,omitempty"`
	EmbedTimeoutSeconds int `json:"embed_timeout_seconds,omitempty" yaml:"embed_timeout_seconds,omitempty"`

	// Ranking
	TopKPerSection      int     `json:"top_k_per_section,omitempty" yaml:"top_k_per_section,omitempty"`
	KeywordContentChars int     `json:"keyword_content_chars,omitempty" yaml:"keyword_content_chars,omitempty"`
	KeywordFloor        float64 `json:"keyword_floor,omitempty" yaml:"keyword_floor,omitempty"`
	KeywordCap          float64 `json:"keyword_cap,omitempty" yaml:"keyword_cap,omitempty"`

	// Limits
	ErrorMessageLimit   int `json:"error_message_limit,omitempty" yaml:"error_message_limit,omitempty"`
	EmbedTextLimit      int `json:"embed_text_limit,omitempty" yaml:"embed_text_limit,omitempty"`
	EmbedContentChars   int `json:"embed_content_chars,omitempty" yaml:"embed_content_chars,omitempty"`
	EnrichContentChars  int `json:"enrich_content_chars,omitempty" yaml:"enrich_content_chars,omitempty"`
	PromptArtifactChars int `json:"prompt_artifact_chars,omitempty" yaml:"prompt_artifact_chars,omitempty"`
}

// DefaultPipeline returns the production thresholds.
func DefaultPipeline() Pipeline {
	return Pipeline{
		ScannedCharThreshold: 200,
		PageSizeTolerancePt:  10,
		A4WidthPt:            595.3,
		A4HeightPt:           841.9,
		LetterWidthPt:        612,
		LetterHeightPt:       792,

		HeadingMinSizePt:      13,
		HeadingMaxChars:       120,
		BoldHeadingMaxChars:   80,
		SemanticCharBudget:    12000,
		LayoutFallbackBlocks:  30,
		LayoutFallbackPreview: 80,

		ColumnBinWidthPt:         20,
		ColumnMinSeparationPt:    150,
		ColumnMinFraction:        0.15,
		HeaderFooterPageFraction: 0.75,
		HeaderFooterBinPt:        8,
		HeaderFooterBand:         0.08,
		TableFullWidthFraction:   0.70,
		MarginMinPt:              18,
		MarginMaxPt:              144,
		DefaultMarginPt:          72,

		VisionPages:          2,
		VisionDPI:            108,
		MinFontOccurrences:   2,
		VisualJSONCharBudget: 3000,

		StageTimeoutSeconds: 90,
		EmbedTimeoutSeconds: 20,

		TopKPerSection:      5,
		KeywordContentChars: 2000,
		KeywordFloor:        0.1,
		KeywordCap:          0.9,

		ErrorMessageLimit:   1000,
		EmbedTextLimit:      32000,
		EmbedContentChars:   6000,
		EnrichContentChars:  8000,
		PromptArtifactChars: 2000,
	}
}

// StageTimeout is the deadline applied to each analyzer's external call
func (p Pipeline) StageTimeout() time.Duration {
	return time.Duration(p.StageTimeoutSeconds) * time.Second
}

// EmbedTimeout is the deadline applied to each embedding call
func (p Pipeline) EmbedTimeout() time.Duration {
	return time.Duration(p.EmbedTimeoutSeconds) * time.Second
}

// WithDefaults returns a copy with every zero field taken from DefaultPipeline.
func (p Pipeline) WithDefaults() Pipeline {
	d := DefaultPipeline()

	orInt := func(v, def int) int {
		if v == 0 {
			return def
		}
		return v
	}
	orFloat := func(v, def float64) float64 {
		if v == 0 {
			return def
		}
		return v
	}

	return Pipeline{
		ScannedCharThreshold: orInt(p.ScannedCharThreshold, d.ScannedCharThreshold),
		PageSizeTolerancePt:  orFloat(p.PageSizeTolerancePt, d.PageSizeTolerancePt),
		A4WidthPt:            orFloat(p.A4WidthPt, d.A4WidthPt),
		A4HeightPt:           orFloat(p.A4HeightPt, d.A4HeightPt),
		LetterWidthPt:        orFloat(p.LetterWidthPt, d.LetterWidthPt),
		LetterHeightPt:       orFloat(p.LetterHeightPt, d.LetterHeightPt),

		HeadingMinSizePt:      orFloat(p.HeadingMinSizePt, d.HeadingMinSizePt),
		HeadingMaxChars:       orInt(p.HeadingMaxChars, d.HeadingMaxChars),
		BoldHeadingMaxChars:   orInt(p.BoldHeadingMaxChars, d.BoldHeadingMaxChars),
		SemanticCharBudget:    orInt(p.SemanticCharBudget, d.SemanticCharBudget),
		LayoutFallbackBlocks:  orInt(p.LayoutFallbackBlocks, d.LayoutFallbackBlocks),
		LayoutFallbackPreview: orInt(p.LayoutFallbackPreview, d.LayoutFallbackPreview),

		ColumnBinWidthPt:         orFloat(p.ColumnBinWidthPt, d.ColumnBinWidthPt),
		ColumnMinSeparationPt:    orFloat(p.ColumnMinSeparationPt, d.ColumnMinSeparationPt),
		ColumnMinFraction:        orFloat(p.ColumnMinFraction, d.ColumnMinFraction),
		HeaderFooterPageFraction: orFloat(p.HeaderFooterPageFraction, d.HeaderFooterPageFraction),
		HeaderFooterBinPt:        orFloat(p.HeaderFooterBinPt, d.HeaderFooterBinPt),
		HeaderFooterBand:         orFloat(p.HeaderFooterBand, d.HeaderFooterBand),
		TableFullWidthFraction:   orFloat(p.TableFullWidthFraction, d.TableFullWidthFraction),
		MarginMinPt:              orFloat(p.MarginMinPt, d.MarginMinPt),
		MarginMaxPt:              orFloat(p.MarginMaxPt, d.MarginMaxPt),
		DefaultMarginPt:          orFloat(p.DefaultMarginPt, d.DefaultMarginPt),

		VisionPages:          orInt(p.VisionPages, d.VisionPages),
		VisionDPI:            orFloat(p.VisionDPI, d.VisionDPI),
		MinFontOccurrences:   orInt(p.MinFontOccurrences, d.MinFontOccurrences),
		VisualJSONCharBudget: orInt(p.VisualJSONCharBudget, d.VisualJSONCharBudget),

		StageTimeoutSeconds: orInt(p.StageTimeoutSeconds, d.StageTimeoutSeconds),
		EmbedTimeoutSeconds: orInt(p.EmbedTimeoutSeconds, d.EmbedTimeoutSeconds),

		TopKPerSection:      orInt(p.TopKPerSection, d.TopKPerSection),
		KeywordContentChars: orInt(p.KeywordContentChars, d.KeywordContentChars),
		KeywordFloor:        orFloat(p.KeywordFloor, d.KeywordFloor),
		KeywordCap:          orFloat(p.KeywordCap, d.KeywordCap),

		ErrorMessageLimit:   orInt(p.ErrorMessageLimit, d.ErrorMessageLimit),
		EmbedTextLimit:      orInt(p.EmbedTextLimit, d.EmbedTextLimit),
		EmbedContentChars:   orInt(p.EmbedContentChars, d.EmbedContentChars),
		EnrichContentChars:  orInt(p.EnrichContentChars, d.EnrichContentChars),
		PromptArtifactChars: orInt(p.PromptArtifactChars, d.PromptArtifactChars),
	}
}

// Validate rejects threshold combinations the stages cannot work with.
func (p Pipeline) Validate() error {
	if p.MarginMinPt > p.MarginMaxPt {
		return fmt.Errorf("config error: 'margin_min_pt' must not exceed 'margin_max_pt'")
	}
	if p.KeywordFloor < 0 || p.KeywordCap > 1 || p.KeywordFloor > p.KeywordCap {
		return fmt.Errorf("config error: keyword floor and cap must satisfy 0 <= floor <= cap <= 1")
	}
	if p.ColumnMinFraction <= 0 || p.ColumnMinFraction >= 0.5 {
		return fmt.Errorf("config error: 'column_min_fraction' must be in (0, 0.5)")
	}
	if p.HeaderFooterPageFraction <= 0 || p.HeaderFooterPageFraction > 1 {
		return fmt.Errorf("config error: 'header_footer_page_fraction' must be in (0, 1]")
	}
	if p.HeaderFooterBand <= 0 || p.HeaderFooterBand >= 0.5 {
		return fmt.Errorf("config error: 'header_footer_band' must be in (0, 0.5)")
	}
	if p.TopKPerSection < 1 {
		return fmt.Errorf("config error: 'top_k_per_section' must be at least 1")
	}
	if p.ColumnBinWidthPt <= 0 || p.HeaderFooterBinPt <= 0 {
		return fmt.Errorf("config error: bin widths must be positive")
	}
	if p.StageTimeoutSeconds < 1 || p.EmbedTimeoutSeconds < 1 {
		return fmt.Errorf("config error: timeouts must be at least one second")
	}
	return nil
}
