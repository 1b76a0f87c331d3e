// Package types provides type definitions for structured data used throughout the docdna system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "time"

// Allowed element types a section may contain
const (
	ElementParagraph    = "paragraph"
	ElementBulletList   = "bullet_list"
	ElementNumberedList = "numbered_list"
	ElementTable        = "table"
	ElementImage        = "image"
	ElementQuote        = "quote"
	ElementHeading      = "heading"
)

// ElementTypes lists every allowed element type
var ElementTypes = []string{
	ElementParagraph, ElementBulletList, ElementNumberedList,
	ElementTable, ElementImage, ElementQuote, ElementHeading,
}

// Typography roles
const (
	RoleH1          = "h1"
	RoleH2          = "h2"
	RoleH3          = "h3"
	RoleBody        = "body"
	RoleCaption     = "caption"
	RoleTableHeader = "table_header"
)

// TypographyRoles lists every role a token can be keyed by
var TypographyRoles = []string{RoleH1, RoleH2, RoleH3, RoleBody, RoleCaption, RoleTableHeader}

// Column structures
const (
	ColumnsSingle = "single"
	ColumnsTwo    = "two-column"
)

// Placements for tables and images
const (
	PlacementInline    = "inline"
	PlacementFullWidth = "full_width"
)

// Section is a node of the content structure tree. A section owns its children.
type Section struct {
	SectionID           string    `json:"section_id"`
	Title               string    `json:"title"`
	Depth               int       `json:"depth"`
	Intent              string    `json:"intent"`
	AllowedElementTypes []string  `json:"allowed_element_types"`
	RhetoricalPattern   string    `json:"rhetorical_pattern"`
	MicroTemplate       string    `json:"micro_template"`
	TypographyRole      string    `json:"typography_role,omitempty"`
	ChildSections       []Section `json:"child_sections"`
}

// WalkSections visits sections depth-first, parents before children.
// The callback receives a pointer into the tree and may modify the node in place.
func WalkSections(sections []Section, fn func(s *Section)) {
	for i := range sections {
		fn(&sections[i])
		WalkSections(sections[i].ChildSections, fn)
	}
}

// CloneSections returns a deep copy of a section tree
func CloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i, s := range sections {
		s.AllowedElementTypes = append([]string(nil), s.AllowedElementTypes...)
		s.ChildSections = CloneSections(s.ChildSections)
		out[i] = s
	}
	return out
}

// ContentStructureSpec is the semantic analyzer's output
type ContentStructureSpec struct {
	Sections []Section `json:"sections"`
	Error    string    `json:"error,omitempty"`
}

// FlatSections returns every section of the tree in depth-first order
func (c ContentStructureSpec) FlatSections() []Section {
	var out []Section
	WalkSections(CloneSections(c.Sections), func(s *Section) {
		out = append(out, *s)
	})
	return out
}

// Margins are page margins in points
type Margins struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// SpacingRules are vertical spacing measurements in points
type SpacingRules struct {
	BeforeH1         float64 `json:"before_h1_pt"`
	AfterH1          float64 `json:"after_h1_pt"`
	BeforeH2         float64 `json:"before_h2_pt"`
	AfterH2          float64 `json:"after_h2_pt"`
	ParagraphSpacing float64 `json:"paragraph_spacing_pt"`
	LineSpacing      float64 `json:"line_spacing_multiple"`
}

// HeaderFooterRule describes a repeating header or footer band
type HeaderFooterRule struct {
	Present bool   `json:"present"`
	Pattern string `json:"content_pattern,omitempty"`
}

// LayoutSpec is the layout analyzer's output
type LayoutSpec struct {
	PageSize        string           `json:"page_size"`
	MarginsPt       Margins          `json:"margins_pt"`
	ColumnStructure string           `json:"column_structure"`
	SectionOrder    []string         `json:"section_order"`
	SpacingRules    SpacingRules     `json:"spacing_rules"`
	HeaderRule      HeaderFooterRule `json:"header_rule"`
	FooterRule      HeaderFooterRule `json:"footer_rule"`
	TablePlacement  string           `json:"table_placement"`
	ImagePlacement  string           `json:"image_placement"`
	Error           string           `json:"error,omitempty"`
}

// TypographyToken is the style of one typography role
type TypographyToken struct {
	FontFamily *string  `json:"font_family"`
	SizePt     *float64 `json:"size_pt"`
	Weight     string   `json:"weight"`
	ColorHex   string   `json:"color_hex"`
	Inferred   bool     `json:"inferred"`
}

// BulletStyle describes list markers
type BulletStyle struct {
	Level1   string  `json:"level_1"`
	Level2   string  `json:"level_2"`
	IndentPt float64 `json:"indent_pt"`
}

// ParagraphRules describes paragraph indentation and spacing
type ParagraphRules struct {
	FirstLineIndentPt        float64 `json:"first_line_indent_pt"`
	SpaceBetweenParagraphsPt float64 `json:"space_between_paragraphs_pt"`
}

// VisualStyleSpec is the visual analyzer's output
type VisualStyleSpec struct {
	Typography     map[string]TypographyToken `json:"typography"`
	ColorPalette   map[string]string          `json:"color_palette"`
	BulletStyle    BulletStyle                `json:"bullet_style"`
	ParagraphRules ParagraphRules             `json:"paragraph_rules"`
	Error          string                     `json:"error,omitempty"`
}

// Blueprint is the validated reusable description of a document's structure, layout and style
type Blueprint struct {
	BlueprintID          string               `json:"blueprint_id"`
	SourceRecordID       string               `json:"source_record_id"`
	DocumentType         string               `json:"document_type"`
	GeneratedAt          time.Time            `json:"generated_at"`
	ContentStructureSpec ContentStructureSpec `json:"content_structure_spec"`
	LayoutSpec           LayoutSpec           `json:"layout_spec"`
	VisualStyleSpec      VisualStyleSpec      `json:"visual_style_spec"`
}
