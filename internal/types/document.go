// Package types provides type definitions for structured data used throughout the docdna system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// SourceFormat identifies the kind of file an IDM was built from
type SourceFormat string

// Supported source formats
const (
	FormatPDF   SourceFormat = "pdf"
	FormatDOCX  SourceFormat = "docx"
	FormatImage SourceFormat = "image"
)

// Page size classifications
const (
	PageSizeA4      = "A4"
	PageSizeLetter  = "Letter"
	PageSizeCustom  = "custom"
	PageSizeUnknown = "unknown"
)

// BlockType is the kind of content a block holds
type BlockType string

// Block types
const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
	BlockTable BlockType = "table"
)

// Font weights
const (
	WeightNormal = "normal"
	WeightBold   = "bold"
)

// BBox is a rectangle in points with a top-left origin.
type BBox struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Width returns the horizontal extent of the box
func (b BBox) Width() float64 { return b.X1 - b.X0 }

// Height returns the vertical extent of the box
func (b BBox) Height() float64 { return b.Y1 - b.Y0 }

// BlockStyle is the dominant style of a block
type BlockStyle struct {
	FontName   string   `json:"font_name,omitempty"`
	FontSizePt *float64 `json:"font_size_pt,omitempty"`
	FontWeight string   `json:"font_weight,omitempty"`
	Italic     bool     `json:"font_italic"`
	ColorHex   string   `json:"color_hex,omitempty"`
	Alignment  string   `json:"text_alignment,omitempty"`
}

// Size returns the font size or 0 when unknown
func (s *BlockStyle) Size() float64 {
	if s == nil || s.FontSizePt == nil {
		return 0
	}
	return *s.FontSizePt
}

// IsBold reports whether the block is set in a bold weight
func (s *BlockStyle) IsBold() bool {
	return s != nil && s.FontWeight == WeightBold
}

// Line is a single visual line inside a block
type Line struct {
	Text string `json:"text"`
	BBox *BBox  `json:"bbox,omitempty"`
}

// Block is a positioned unit of content on a page
type Block struct {
	ID            string      `json:"block_id"`
	Type          BlockType   `json:"block_type"`
	BBox          *BBox       `json:"bbox,omitempty"`
	Text          string      `json:"text"`
	Lines         []Line      `json:"lines,omitempty"`
	Style         *BlockStyle `json:"style,omitempty"`
	OCRConfidence *float64    `json:"ocr_confidence,omitempty"`
}

// IsHeadingLike reports whether the block is set large or bold enough to read as a heading.
func (b Block) IsHeadingLike(minSize float64) bool {
	return b.Style.Size() >= minSize || b.Style.IsBold()
}

// Page holds the blocks of one page in reading order
type Page struct {
	Number int     `json:"page_number"`
	Blocks []Block `json:"blocks"`
}

// DocumentMetadata describes the source document as a whole
type DocumentMetadata struct {
	Title     string   `json:"title,omitempty"`
	PageSize  string   `json:"page_size"`
	WidthPt   *float64 `json:"width_pt,omitempty"`
	HeightPt  *float64 `json:"height_pt,omitempty"`
	IsScanned bool     `json:"is_scanned"`
	OCRUsed   bool     `json:"ocr_used"`
}

// Document is the Intermediate Document Model shared by every analyzer.
// Analyzers treat it as read-only.
type Document struct {
	ID           string           `json:"document_id"`
	SourceFormat SourceFormat     `json:"source_format"`
	PageCount    int              `json:"page_count"`
	Metadata     DocumentMetadata `json:"metadata"`
	Pages        []Page           `json:"pages"`
}

// HasGeometry reports whether block positions are available for geometric analysis.
// Every PDF page has known dimensions and every block read from it a box, so a
// PDF with pages qualifies even when it holds only images.
func (d *Document) HasGeometry() bool {
	return d != nil && d.SourceFormat == FormatPDF && len(d.Pages) > 0
}

// Blocks returns every block of the document in page order
func (d *Document) Blocks() []Block {
	if d == nil {
		return nil
	}
	var out []Block
	for _, p := range d.Pages {
		out = append(out, p.Blocks...)
	}
	return out
}

// TextLength returns the total number of characters across all block texts
func (d *Document) TextLength() int {
	n := 0
	for _, b := range d.Blocks() {
		n += len([]rune(b.Text))
	}
	return n
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 { return &v }

// String returns a pointer to v, for optional string fields.
func String(v string) *string { return &v }
