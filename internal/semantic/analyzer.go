// Package semantic infers the section hierarchy of a document: titles, depth,
// intent, allowed element types, rhetorical pattern and a micro-template per section.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/llm"
	"github.com/jonathan/docdna/internal/prompts"
	"github.com/jonathan/docdna/internal/types"
)

const (
	maxSectionDepth = 4
	truncationNote  = "\n[...document truncated for analysis...]"
)

// Analyzer produces a content structure spec from a document
type Analyzer struct {
	extractor llm.Extractor
	cfg       config.Pipeline
	logger    *slog.Logger
}

// New creates a semantic analyzer
func New(extractor llm.Extractor, cfg config.Pipeline, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{extractor: extractor, cfg: cfg, logger: logger}
}

// Analyze condenses the document text and asks the extraction service for its sections.
// A document without text yields a single synthetic section and no external call.
func (a *Analyzer) Analyze(ctx context.Context, doc *types.Document) (types.ContentStructureSpec, error) {
	text := Condense(doc, a.cfg)
	if strings.TrimSpace(text) == "" {
		a.logger.Warn("document has no text content, returning minimal structure", "document_id", doc.ID)
		return types.ContentStructureSpec{Sections: []types.Section{SyntheticSection()}}, nil
	}

	system, err := prompts.Get("semantic.json", "system")
	if err != nil {
		return types.ContentStructureSpec{}, err
	}
	prompt, err := prompts.Render("semantic.json", "analyze", map[string]string{"DocumentText": text})
	if err != nil {
		return types.ContentStructureSpec{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.StageTimeout())
	defer cancel()

	var out struct {
		Sections []types.Section `json:"sections"`
	}
	req := llm.Request{
		Name:   "semantic",
		System: system,
		Prompt: prompt,
		Schema: StructureSchema(),
		Tier:   llm.TierStandard,
	}
	if err := a.extractor.Extract(ctx, req, &out); err != nil {
		return types.ContentStructureSpec{}, fmt.Errorf("semantic analysis failed: %w", err)
	}

	types.WalkSections(out.Sections, func(s *types.Section) {
		if s.ChildSections == nil {
			s.ChildSections = []types.Section{}
		}
	})

	a.logger.Info("semantic analysis complete", "document_id", doc.ID, "sections", len(out.Sections))
	return types.ContentStructureSpec{Sections: out.Sections}, nil
}

// SyntheticSection is the single section returned for documents without text
func SyntheticSection() types.Section {
	return types.Section{
		SectionID:           "s1",
		Title:               "Document Content",
		Depth:               1,
		Intent:              "content",
		AllowedElementTypes: []string{types.ElementParagraph},
		RhetoricalPattern:   "narrative",
		MicroTemplate:       "Provide the main document content.",
		ChildSections:       []types.Section{},
	}
}

// IsHeading reports whether a block reads as a heading: short text set either
// large or bold.
func IsHeading(b types.Block, cfg config.Pipeline) bool {
	n := len([]rune(b.Text))
	if n == 0 || n > cfg.HeadingMaxChars {
		return false
	}
	if b.Style.Size() >= cfg.HeadingMinSizePt {
		return true
	}
	return b.Style.IsBold() && n < cfg.BoldHeadingMaxChars
}

// Condense flattens the document into one text stream. Headings are wrapped in
// "=== ... ===" and the stream stops with a truncation marker once the
// character budget is reached.
func Condense(doc *types.Document, cfg config.Pipeline) string {
	var parts []string
	count := 0

	for _, b := range doc.Blocks() {
		text := strings.TrimSpace(b.Text)
		if text == "" {
			continue
		}
		if IsHeading(b, cfg) {
			parts = append(parts, "\n=== "+text+" ===\n")
		} else {
			parts = append(parts, text)
		}

		count += len([]rune(text))
		if count >= cfg.SemanticCharBudget {
			parts = append(parts, truncationNote)
			break
		}
	}
	return strings.Join(parts, "\n")
}

// StructureSchema is the response schema for section extraction. Every field is
// required at every level; nesting is unrolled to the maximum section depth.
func StructureSchema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"sections": llm.ArrayOf(sectionSchema(1)),
	}, "sections")
}

func sectionSchema(level int) *llm.Schema {
	children := llm.ArrayOf(llm.String("")).WithItemRange(0, 0)
	if level < maxSectionDepth {
		children = llm.ArrayOf(sectionSchema(level + 1))
	}
	children.Description = "Nested sub-sections with the same fields as the parent."

	return llm.Object(map[string]*llm.Schema{
		"section_id": llm.String("Short unique id, e.g. 's1', 's2', 's1_1'."),
		"title":      llm.String("The heading text of the section."),
		"depth": withDescription(llm.Integer(1, maxSectionDepth),
			"Heading depth: 1 = top-level, 2 = sub-section, and so on."),
		"intent": llm.String("The rhetorical purpose of the section, e.g. 'summary', 'background', " +
			"'recommendation', 'profile', 'qualifications', 'evidence', 'introduction', 'conclusion'."),
		"allowed_element_types": llm.ArrayOf(llm.Enum(types.ElementTypes...)),
		"rhetorical_pattern": llm.String("How content flows within the section, e.g. " +
			"'context → finding → implication'."),
		"micro_template": llm.String("A brief instruction for generating the section's content."),
		"child_sections": children,
	},
		"section_id", "title", "depth", "intent", "allowed_element_types",
		"rhetorical_pattern", "micro_template", "child_sections",
	)
}

func withDescription(s *llm.Schema, desc string) *llm.Schema {
	s.Description = desc
	return s
}
