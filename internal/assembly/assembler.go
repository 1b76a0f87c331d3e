// Package assembly merges the analyzer outputs into a validated Blueprint.
package assembly

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/layout"
	"github.com/jonathan/docdna/internal/schemas"
	"github.com/jonathan/docdna/internal/types"
	"github.com/jonathan/docdna/internal/visual"
)

// maxDepth is the deepest section level a Blueprint can describe
const maxDepth = 4

// roleByDepth maps section depth to its typography role; deeper levels use body
var roleByDepth = map[int]string{1: types.RoleH1, 2: types.RoleH2, 3: types.RoleH3}

// Meta identifies the record the Blueprint is assembled for
type Meta struct {
	RecordID     string
	DocumentType string
}

// Assembler is the pure merge step between the analyzers and the record store
type Assembler struct {
	cfg   config.Pipeline
	newID func() string
	now   func() time.Time
}

// New creates an assembler with random blueprint ids and the wall clock
func New(cfg config.Pipeline) *Assembler {
	return &Assembler{
		cfg:   cfg,
		newID: func() string { return uuid.New().String() },
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// PlaceholderSection is the single section of a Blueprint whose analysis found none
func PlaceholderSection() types.Section {
	return types.Section{
		SectionID:           "s1",
		Title:               "Document",
		Depth:               1,
		Intent:              "content",
		AllowedElementTypes: []string{types.ElementParagraph},
		RhetoricalPattern:   "narrative",
		MicroTemplate:       "Provide the main document content.",
		TypographyRole:      types.RoleH1,
		ChildSections:       []types.Section{},
	}
}

// Assemble builds the Blueprint from the IDM and the three stage results.
// Degraded stages contribute whatever partial value they carry, with defaults
// filling the rest; the returned Blueprint always satisfies the Blueprint schema
// or an error is returned.
func (a *Assembler) Assemble(
	doc *types.Document,
	content types.StageResult[types.ContentStructureSpec],
	layoutRes types.StageResult[types.LayoutSpec],
	visualRes types.StageResult[types.VisualStyleSpec],
	meta Meta,
) (*types.Blueprint, error) {
	structure := a.contentSpec(content)
	layoutSpec := a.layoutSpec(layoutRes)
	layoutSpec.SectionOrder = SectionOrder(structure.Sections)
	visualSpec := a.visualSpec(visualRes, doc)

	bp := &types.Blueprint{
		BlueprintID:          a.newID(),
		SourceRecordID:       meta.RecordID,
		DocumentType:         meta.DocumentType,
		GeneratedAt:          a.now(),
		ContentStructureSpec: structure,
		LayoutSpec:           layoutSpec,
		VisualStyleSpec:      visualSpec,
	}

	if err := schemas.Validate(schemas.BlueprintSchema, bp); err != nil {
		return nil, fmt.Errorf("assembled blueprint is invalid: %w", err)
	}
	return bp, nil
}

func (a *Assembler) contentSpec(res types.StageResult[types.ContentStructureSpec]) types.ContentStructureSpec {
	spec := types.ContentStructureSpec{
		Sections: types.CloneSections(res.Value.Sections),
		Error:    res.Value.Error,
	}
	if res.Degraded && spec.Error == "" {
		spec.Error = res.Reason
	}
	if len(spec.Sections) == 0 {
		spec.Sections = []types.Section{PlaceholderSection()}
		return spec
	}

	seen := map[string]bool{}
	normalizeSections(spec.Sections, 1, seen)
	return spec
}

// normalizeSections fixes depth to the nesting level, assigns the typography role,
// fills empty fields and makes section ids unique within the tree.
func normalizeSections(sections []types.Section, depth int, seen map[string]bool) {
	if depth > maxDepth {
		depth = maxDepth
	}
	for i := range sections {
		s := &sections[i]
		s.Depth = depth
		s.TypographyRole = RoleForDepth(depth)
		s.SectionID = uniqueID(strings.TrimSpace(s.SectionID), seen)
		if len(s.AllowedElementTypes) == 0 {
			s.AllowedElementTypes = []string{types.ElementParagraph}
		} else {
			s.AllowedElementTypes = knownElements(s.AllowedElementTypes)
		}
		if s.ChildSections == nil {
			s.ChildSections = []types.Section{}
		}
		normalizeSections(s.ChildSections, depth+1, seen)
	}
}

func uniqueID(id string, seen map[string]bool) string {
	base := id
	if base == "" {
		base = fmt.Sprintf("s%d", len(seen)+1)
	}
	id = base
	for n := 2; seen[id]; n++ {
		id = fmt.Sprintf("%s_%d", base, n)
	}
	seen[id] = true
	return id
}

func knownElements(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		for _, known := range types.ElementTypes {
			if e == known {
				out = append(out, e)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{types.ElementParagraph}
	}
	return out
}

// RoleForDepth returns the typography role for a section depth
func RoleForDepth(depth int) string {
	if role, ok := roleByDepth[depth]; ok {
		return role
	}
	return types.RoleBody
}

// SectionOrder returns every section id in depth-first order
func SectionOrder(sections []types.Section) []string {
	order := []string{}
	types.WalkSections(sections, func(s *types.Section) {
		order = append(order, s.SectionID)
	})
	return order
}

func (a *Assembler) layoutSpec(res types.StageResult[types.LayoutSpec]) types.LayoutSpec {
	d := layout.Defaults(a.cfg)
	spec := res.Value

	if spec.PageSize == "" {
		spec.PageSize = d.PageSize
	}
	if spec.MarginsPt == (types.Margins{}) {
		spec.MarginsPt = d.MarginsPt
	}
	spec.MarginsPt = layout.ClampMargins(spec.MarginsPt, a.cfg)

	if spec.ColumnStructure != types.ColumnsSingle && spec.ColumnStructure != types.ColumnsTwo {
		spec.ColumnStructure = d.ColumnStructure
	}
	spec.SpacingRules = fillSpacing(spec.SpacingRules)
	spec.TablePlacement = placementOr(spec.TablePlacement, d.TablePlacement)
	spec.ImagePlacement = placementOr(spec.ImagePlacement, d.ImagePlacement)
	if !spec.HeaderRule.Present {
		spec.HeaderRule.Pattern = ""
	}
	if !spec.FooterRule.Present {
		spec.FooterRule.Pattern = ""
	}

	if res.Degraded && spec.Error == "" {
		spec.Error = res.Reason
	}
	return spec
}

// fillSpacing replaces missing or negative spacing values with the defaults
func fillSpacing(s types.SpacingRules) types.SpacingRules {
	d := layout.DefaultSpacing()
	fill := func(v *float64, def float64) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&s.BeforeH1, d.BeforeH1)
	fill(&s.AfterH1, d.AfterH1)
	fill(&s.BeforeH2, d.BeforeH2)
	fill(&s.AfterH2, d.AfterH2)
	fill(&s.ParagraphSpacing, d.ParagraphSpacing)
	fill(&s.LineSpacing, d.LineSpacing)
	return s
}

func placementOr(p, def string) string {
	if p == types.PlacementInline || p == types.PlacementFullWidth {
		return p
	}
	return def
}

func (a *Assembler) visualSpec(res types.StageResult[types.VisualStyleSpec], doc *types.Document) types.VisualStyleSpec {
	d := visual.Defaults()
	v := res.Value

	spec := types.VisualStyleSpec{
		Typography:     map[string]types.TypographyToken{},
		ColorPalette:   map[string]string{},
		BulletStyle:    v.BulletStyle,
		ParagraphRules: v.ParagraphRules,
		Error:          v.Error,
	}
	if res.Degraded && spec.Error == "" {
		spec.Error = res.Reason
	}

	counts := FontOccurrences(doc)
	for role, tok := range v.Typography {
		if tok.Weight == "" {
			tok.Weight = types.WeightNormal
		}
		if tok.ColorHex == "" {
			tok.ColorHex = "#000000"
		}
		if tok.FontFamily != nil && counts[*tok.FontFamily] < a.cfg.MinFontOccurrences {
			tok.Inferred = true
		}
		spec.Typography[role] = tok
	}
	spec.Typography = visual.EnsureRequiredRoles(spec.Typography)

	for k, c := range v.ColorPalette {
		if c != "" {
			spec.ColorPalette[k] = c
		}
	}
	if _, ok := spec.ColorPalette["background"]; !ok {
		spec.ColorPalette["background"] = d.ColorPalette["background"]
	}

	if spec.BulletStyle.Level1 == "" {
		spec.BulletStyle.Level1 = d.BulletStyle.Level1
	}
	if spec.BulletStyle.Level2 == "" {
		spec.BulletStyle.Level2 = d.BulletStyle.Level2
	}
	if spec.BulletStyle.IndentPt <= 0 {
		spec.BulletStyle.IndentPt = d.BulletStyle.IndentPt
	}
	if spec.ParagraphRules.FirstLineIndentPt < 0 {
		spec.ParagraphRules.FirstLineIndentPt = 0
	}
	if spec.ParagraphRules.SpaceBetweenParagraphsPt <= 0 {
		spec.ParagraphRules.SpaceBetweenParagraphsPt = d.ParagraphRules.SpaceBetweenParagraphsPt
	}
	return spec
}

// FontOccurrences counts the styled blocks set in each font
func FontOccurrences(doc *types.Document) map[string]int {
	counts := map[string]int{}
	for _, b := range doc.Blocks() {
		if b.Style != nil && b.Style.FontName != "" {
			counts[b.Style.FontName]++
		}
	}
	return counts
}
