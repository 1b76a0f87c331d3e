package assembly

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/schemas"
	"github.com/jonathan/docdna/internal/types"
)

func fixedAssembler() *Assembler {
	a := New(config.DefaultPipeline())
	a.newID = func() string { return "bp-1" }
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return a
}

func section(id string, children ...types.Section) types.Section {
	return types.Section{
		SectionID:           id,
		Title:               "Title " + id,
		Depth:               9,
		Intent:              "intent " + id,
		AllowedElementTypes: []string{types.ElementParagraph},
		RhetoricalPattern:   "narrative",
		MicroTemplate:       "Write " + id,
		ChildSections:       children,
	}
}

func styledDoc(fonts ...string) *types.Document {
	var blocks []types.Block
	for _, f := range fonts {
		blocks = append(blocks, types.Block{Type: types.BlockText, Text: "x", Style: &types.BlockStyle{FontName: f}})
	}
	return &types.Document{ID: "d1", SourceFormat: types.FormatPDF, Pages: []types.Page{{Number: 1, Blocks: blocks}}}
}

func TestAssemble_AllStagesDegraded(t *testing.T) {
	a := fixedAssembler()
	bp, err := a.Assemble(
		&types.Document{ID: "d1", SourceFormat: types.FormatDOCX},
		types.Degrade(types.ContentStructureSpec{}, "semantic failed"),
		types.Degrade(types.LayoutSpec{}, "layout failed"),
		types.Degrade(types.VisualStyleSpec{}, "visual failed"),
		Meta{RecordID: "rec-1", DocumentType: "proposal"},
	)
	require.NoError(t, err)
	require.NoError(t, schemas.Validate(schemas.BlueprintSchema, bp))

	assert.Equal(t, "bp-1", bp.BlueprintID)
	assert.Equal(t, "rec-1", bp.SourceRecordID)
	assert.Equal(t, "proposal", bp.DocumentType)

	require.Len(t, bp.ContentStructureSpec.Sections, 1)
	assert.Equal(t, PlaceholderSection(), bp.ContentStructureSpec.Sections[0])
	assert.Equal(t, "semantic failed", bp.ContentStructureSpec.Error)

	l := bp.LayoutSpec
	assert.Equal(t, types.Margins{Top: 72, Bottom: 72, Left: 72, Right: 72}, l.MarginsPt)
	assert.Equal(t, types.ColumnsSingle, l.ColumnStructure)
	assert.Equal(t, []string{"s1"}, l.SectionOrder)
	assert.Equal(t, types.PageSizeA4, l.PageSize)
	assert.Equal(t, 24.0, l.SpacingRules.BeforeH1)
	assert.Equal(t, 1.15, l.SpacingRules.LineSpacing)
	assert.Equal(t, types.PlacementInline, l.TablePlacement)
	assert.Equal(t, "layout failed", l.Error)

	v := bp.VisualStyleSpec
	require.Contains(t, v.Typography, types.RoleH1)
	require.Contains(t, v.Typography, types.RoleBody)
	assert.True(t, v.Typography[types.RoleH1].Inferred)
	assert.Equal(t, "#FFFFFF", v.ColorPalette["background"])
	assert.Equal(t, "•", v.BulletStyle.Level1)
	assert.Equal(t, 6.0, v.ParagraphRules.SpaceBetweenParagraphsPt)
	assert.Equal(t, "visual failed", v.Error)
}

func TestAssemble_SectionOrderAndRoles(t *testing.T) {
	tree := []types.Section{
		section("intro",
			section("background",
				section("history", section("detail", section("too-deep"))),
			),
			section("goals"),
		),
		section("pricing"),
	}
	bp, err := fixedAssembler().Assemble(
		styledDoc(),
		types.Ok(types.ContentStructureSpec{Sections: tree}),
		types.Ok(types.LayoutSpec{}),
		types.Ok(types.VisualStyleSpec{}),
		Meta{RecordID: "rec-1"},
	)
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"intro", "background", "history", "detail", "too-deep", "goals", "pricing"},
		bp.LayoutSpec.SectionOrder)

	roles := map[string]string{}
	depths := map[string]int{}
	types.WalkSections(bp.ContentStructureSpec.Sections, func(s *types.Section) {
		roles[s.SectionID] = s.TypographyRole
		depths[s.SectionID] = s.Depth
	})
	assert.Equal(t, types.RoleH1, roles["intro"])
	assert.Equal(t, types.RoleH1, roles["pricing"])
	assert.Equal(t, types.RoleH2, roles["background"])
	assert.Equal(t, types.RoleH3, roles["history"])
	assert.Equal(t, types.RoleBody, roles["detail"])
	assert.Equal(t, 4, depths["too-deep"])

	// the input tree is not modified
	assert.Empty(t, tree[0].TypographyRole)
}

func TestAssemble_DuplicateAndEmptyIDs(t *testing.T) {
	tree := []types.Section{section("a"), section("a"), section(""), section("a", section("a"))}
	tree[1].AllowedElementTypes = nil
	tree[2].AllowedElementTypes = []string{"sidebar"}

	bp, err := fixedAssembler().Assemble(styledDoc(),
		types.Ok(types.ContentStructureSpec{Sections: tree}),
		types.Ok(types.LayoutSpec{}), types.Ok(types.VisualStyleSpec{}), Meta{})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "a_2", "s3", "a_3", "a_4"}, bp.LayoutSpec.SectionOrder)
	s := bp.ContentStructureSpec.Sections
	assert.Equal(t, []string{types.ElementParagraph}, s[1].AllowedElementTypes)
	assert.Equal(t, []string{types.ElementParagraph}, s[2].AllowedElementTypes)
	assert.NotNil(t, s[0].ChildSections)
}

func TestAssemble_ClampsLayout(t *testing.T) {
	in := types.LayoutSpec{
		PageSize:        types.PageSizeLetter,
		MarginsPt:       types.Margins{Top: 5, Bottom: 300, Left: 40, Right: 144},
		ColumnStructure: "three-column",
		SpacingRules:    types.SpacingRules{BeforeH1: 30, AfterH1: -2},
		HeaderRule:      types.HeaderFooterRule{Present: false, Pattern: "stale"},
		FooterRule:      types.HeaderFooterRule{Present: true, Pattern: "Page {n}"},
		TablePlacement:  types.PlacementFullWidth,
		ImagePlacement:  "floating",
	}
	bp, err := fixedAssembler().Assemble(styledDoc(),
		types.Ok(types.ContentStructureSpec{}), types.Ok(in), types.Ok(types.VisualStyleSpec{}), Meta{})
	require.NoError(t, err)

	l := bp.LayoutSpec
	assert.Equal(t, types.PageSizeLetter, l.PageSize)
	assert.Equal(t, types.Margins{Top: 18, Bottom: 144, Left: 40, Right: 144}, l.MarginsPt)
	assert.Equal(t, types.ColumnsSingle, l.ColumnStructure)
	assert.Equal(t, 30.0, l.SpacingRules.BeforeH1)
	assert.Equal(t, 12.0, l.SpacingRules.AfterH1)
	assert.Empty(t, l.HeaderRule.Pattern)
	assert.Equal(t, "Page {n}", l.FooterRule.Pattern)
	assert.Equal(t, types.PlacementFullWidth, l.TablePlacement)
	assert.Equal(t, types.PlacementInline, l.ImagePlacement)
	assert.Empty(t, l.Error)
}

func TestAssemble_RareFontsAreInferred(t *testing.T) {
	in := types.VisualStyleSpec{
		Typography: map[string]types.TypographyToken{
			types.RoleH1:   {FontFamily: types.String("Georgia"), SizePt: types.Float(22), Weight: types.WeightBold, ColorHex: "#1F3864"},
			types.RoleBody: {FontFamily: types.String("Arial"), SizePt: types.Float(10)},
			types.RoleH2:   {FontFamily: types.String("Inter"), Inferred: false},
		},
		ColorPalette: map[string]string{"primary": "#1F3864", "accent": ""},
		BulletStyle:  types.BulletStyle{Level1: "▪"},
	}
	bp, err := fixedAssembler().Assemble(styledDoc("Georgia", "Arial", "Arial", "Arial"),
		types.Ok(types.ContentStructureSpec{}), types.Ok(types.LayoutSpec{}), types.Ok(in), Meta{})
	require.NoError(t, err)

	typo := bp.VisualStyleSpec.Typography
	assert.True(t, typo[types.RoleH1].Inferred, "one occurrence is below the threshold")
	assert.False(t, typo[types.RoleBody].Inferred)
	assert.True(t, typo[types.RoleH2].Inferred, "font absent from the document")
	assert.Equal(t, types.WeightNormal, typo[types.RoleBody].Weight)
	assert.Equal(t, "#000000", typo[types.RoleBody].ColorHex)

	p := bp.VisualStyleSpec.ColorPalette
	assert.Equal(t, "#1F3864", p["primary"])
	assert.NotContains(t, p, "accent")
	assert.Equal(t, "#FFFFFF", p["background"])

	b := bp.VisualStyleSpec.BulletStyle
	assert.Equal(t, "▪", b.Level1)
	assert.Equal(t, "–", b.Level2)
	assert.Equal(t, 18.0, b.IndentPt)

	// the input map is not modified
	assert.False(t, in.Typography[types.RoleH1].Inferred)
}

func TestRoleForDepth(t *testing.T) {
	assert.Equal(t, types.RoleH1, RoleForDepth(1))
	assert.Equal(t, types.RoleH2, RoleForDepth(2))
	assert.Equal(t, types.RoleH3, RoleForDepth(3))
	assert.Equal(t, types.RoleBody, RoleForDepth(4))
	assert.Equal(t, types.RoleBody, RoleForDepth(7))
}

func TestSectionOrder_Empty(t *testing.T) {
	assert.Equal(t, []string{}, SectionOrder(nil))
}
