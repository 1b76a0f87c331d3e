// Package types provides type definitions for structured data used throughout the docdna system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() []Section {
	return []Section{
		{
			SectionID: "s1",
			Title:     "Overview",
			Depth:     1,
			ChildSections: []Section{
				{SectionID: "s1.1", Title: "Background", Depth: 2},
				{SectionID: "s1.2", Title: "Scope", Depth: 2, ChildSections: []Section{
					{SectionID: "s1.2.1", Title: "Limits", Depth: 3},
				}},
			},
		},
		{SectionID: "s2", Title: "Appendix", Depth: 1},
	}
}

func TestWalkSections_DepthFirst(t *testing.T) {
	var ids []string
	WalkSections(sampleTree(), func(s *Section) {
		ids = append(ids, s.SectionID)
	})
	assert.Equal(t, []string{"s1", "s1.1", "s1.2", "s1.2.1", "s2"}, ids)
}

func TestWalkSections_ModifiesInPlace(t *testing.T) {
	tree := sampleTree()
	WalkSections(tree, func(s *Section) {
		s.TypographyRole = "x"
	})
	assert.Equal(t, "x", tree[0].ChildSections[1].ChildSections[0].TypographyRole)
}

func TestCloneSections_Independent(t *testing.T) {
	tree := sampleTree()
	tree[0].AllowedElementTypes = []string{ElementParagraph}

	clone := CloneSections(tree)
	clone[0].ChildSections[0].Title = "changed"
	clone[0].AllowedElementTypes[0] = ElementTable

	assert.Equal(t, "Background", tree[0].ChildSections[0].Title)
	assert.Equal(t, ElementParagraph, tree[0].AllowedElementTypes[0])
	assert.Nil(t, CloneSections(nil))
}

func TestFlatSections(t *testing.T) {
	spec := ContentStructureSpec{Sections: sampleTree()}
	flat := spec.FlatSections()
	require.Len(t, flat, 5)
	assert.Equal(t, "s1.2.1", flat[3].SectionID)
}

func TestTypographyToken_NullFields(t *testing.T) {
	tok := TypographyToken{Weight: WeightBold, ColorHex: "#000000", Inferred: true}
	b, err := json.Marshal(tok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"font_family":null,"size_pt":null,"weight":"bold","color_hex":"#000000","inferred":true}`, string(b))
}

func TestStageResult(t *testing.T) {
	ok := Ok(LayoutSpec{PageSize: PageSizeA4})
	assert.False(t, ok.Degraded)
	assert.Empty(t, ok.Reason)

	bad := Degrade(LayoutSpec{}, "timeout")
	assert.True(t, bad.Degraded)
	assert.Equal(t, "timeout", bad.Reason)
}

func TestDocument_HasGeometry(t *testing.T) {
	pdfDoc := &Document{SourceFormat: FormatPDF, Pages: []Page{{Number: 1, Blocks: []Block{
		{ID: "p1_b0", Type: BlockText, Text: "hello", BBox: &BBox{X0: 1, Y0: 2, X1: 3, Y1: 4}},
	}}}}
	assert.True(t, pdfDoc.HasGeometry())
	assert.Equal(t, 5, pdfDoc.TextLength())

	docx := &Document{SourceFormat: FormatDOCX, Pages: []Page{{Number: 1, Blocks: []Block{
		{ID: "p1_b0", Type: BlockText, Text: "hello"},
	}}}}
	assert.False(t, docx.HasGeometry())

	imageOnly := &Document{SourceFormat: FormatPDF, Pages: []Page{{Number: 1, Blocks: []Block{
		{ID: "p1_b0", Type: BlockImage, BBox: &BBox{X0: 0, Y0: 0, X1: 612, Y1: 792}},
	}}}}
	assert.True(t, imageOnly.HasGeometry())
	assert.Zero(t, imageOnly.TextLength())

	assert.False(t, (&Document{SourceFormat: FormatPDF}).HasGeometry())

	var nilDoc *Document
	assert.False(t, nilDoc.HasGeometry())
	assert.Nil(t, nilDoc.Blocks())
}

func TestBlock_IsHeadingLike(t *testing.T) {
	assert.True(t, Block{Style: &BlockStyle{FontSizePt: Float(14)}}.IsHeadingLike(13))
	assert.True(t, Block{Style: &BlockStyle{FontSizePt: Float(10), FontWeight: WeightBold}}.IsHeadingLike(13))
	assert.False(t, Block{Style: &BlockStyle{FontSizePt: Float(10)}}.IsHeadingLike(13))
	assert.False(t, Block{}.IsHeadingLike(13))
}
