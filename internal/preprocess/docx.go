package preprocess

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jonathan/docdna/internal/types"
)

const (
	docxDocumentPath = "word/document.xml"
	docxStylesPath   = "word/styles.xml"
	docxCorePath     = "docProps/core.xml"
	maxStyleDepth    = 16
)

// xmlNode is a generic, order-preserving view of an OOXML element
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

func (n *xmlNode) child(local string) *xmlNode {
	if n == nil {
		return nil
	}
	for i := range n.Nodes {
		if n.Nodes[i].XMLName.Local == local {
			return &n.Nodes[i]
		}
	}
	return nil
}

func (n *xmlNode) attr(local string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// runProps are the character properties that can be set at run, style or document level
type runProps struct {
	Font   string
	Size   *float64
	Bold   *bool
	Italic *bool
	Color  string
}

// over returns r with every field set in o taking precedence
func (r runProps) over(o runProps) runProps {
	if o.Font != "" {
		r.Font = o.Font
	}
	if o.Size != nil {
		r.Size = o.Size
	}
	if o.Bold != nil {
		r.Bold = o.Bold
	}
	if o.Italic != nil {
		r.Italic = o.Italic
	}
	if o.Color != "" {
		r.Color = o.Color
	}
	return r
}

type paragraphStyle struct {
	BasedOn string
	Run     runProps
	Align   string
}

// docxStyles holds document defaults and paragraph styles from word/styles.xml
type docxStyles struct {
	Defaults       runProps
	Paragraph      map[string]paragraphStyle
	DefaultStyleID string
}

// resolve flattens the basedOn chain of a paragraph style
func (s docxStyles) resolve(id string) (runProps, string) {
	if id == "" {
		id = s.DefaultStyleID
	}

	var chain []paragraphStyle
	seen := map[string]bool{}
	for depth := 0; id != "" && depth < maxStyleDepth && !seen[id]; depth++ {
		seen[id] = true
		st, ok := s.Paragraph[id]
		if !ok {
			break
		}
		chain = append(chain, st)
		id = st.BasedOn
	}

	props := s.Defaults
	align := ""
	for i := len(chain) - 1; i >= 0; i-- {
		props = props.over(chain[i].Run)
		if chain[i].Align != "" {
			align = chain[i].Align
		}
	}
	return props, align
}

// buildFromDOCX reads paragraphs and tables in body order. DOCX carries no
// coordinates, so every block lands on page 1 without a bounding box.
func (p *Preprocessor) buildFromDOCX(data []byte) (*types.Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Format: types.FormatDOCX, Cause: fmt.Errorf("open zip: %w", err)}
	}

	files := map[string]*zip.File{}
	for _, f := range zr.File {
		files[f.Name] = f
	}

	docFile, ok := files[docxDocumentPath]
	if !ok {
		return nil, &ParseError{Format: types.FormatDOCX, Cause: fmt.Errorf("%s not found in archive", docxDocumentPath)}
	}

	styles := docxStyles{Paragraph: map[string]paragraphStyle{}}
	if f, ok := files[docxStylesPath]; ok {
		if root, err := readXML(f); err == nil {
			styles = parseStyles(root)
		} else {
			p.logger.Warn("ignoring unreadable docx styles", "error", err)
		}
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, &ParseError{Format: types.FormatDOCX, Cause: fmt.Errorf("open document.xml: %w", err)}
	}
	defer func() { _ = rc.Close() }()

	body, err := readBody(rc)
	if err != nil {
		return nil, &ParseError{Format: types.FormatDOCX, Cause: err}
	}

	var blocks []types.Block
	for i := range body {
		node := &body[i]
		var block types.Block
		var ok bool
		switch node.XMLName.Local {
		case "p":
			block, ok = paragraphBlock(node, styles)
		case "tbl":
			block, ok = tableBlock(node)
		}
		if !ok {
			continue
		}
		block.ID = blockID(1, len(blocks))
		blocks = append(blocks, block)
	}

	title := ""
	if f, ok := files[docxCorePath]; ok {
		if root, err := readXML(f); err == nil {
			if t := root.child("title"); t != nil {
				title = strings.TrimSpace(t.Text)
			}
		}
	}

	return &types.Document{
		ID:           p.newID(),
		SourceFormat: types.FormatDOCX,
		PageCount:    1,
		Metadata: types.DocumentMetadata{
			Title:    title,
			PageSize: types.PageSizeUnknown,
		},
		Pages: []types.Page{{Number: 1, Blocks: blocks}},
	}, nil
}

// readBody decodes the top-level children of w:body, preserving their order
func readBody(r io.Reader) ([]xmlNode, error) {
	dec := xml.NewDecoder(r)
	inBody := false
	var nodes []xmlNode

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !inBody {
				inBody = t.Name.Local == "body"
				continue
			}
			if t.Name.Local != "p" && t.Name.Local != "tbl" {
				if err := dec.Skip(); err != nil {
					return nil, fmt.Errorf("decode document.xml: %w", err)
				}
				continue
			}
			var n xmlNode
			if err := dec.DecodeElement(&n, &t); err != nil {
				return nil, fmt.Errorf("decode %s: %w", t.Name.Local, err)
			}
			nodes = append(nodes, n)
		case xml.EndElement:
			if inBody && t.Name.Local == "body" {
				return nodes, nil
			}
		}
	}

	if !inBody {
		return nil, fmt.Errorf("document.xml has no body")
	}
	return nodes, nil
}

func readXML(f *zip.File) (*xmlNode, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var root xmlNode
	if err := xml.NewDecoder(rc).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.Name, err)
	}
	return &root, nil
}

func parseStyles(root *xmlNode) docxStyles {
	styles := docxStyles{Paragraph: map[string]paragraphStyle{}}

	if defaults := root.child("docDefaults"); defaults != nil {
		styles.Defaults = parseRunProps(defaults.child("rPrDefault").child("rPr"))
	}

	for i := range root.Nodes {
		n := &root.Nodes[i]
		if n.XMLName.Local != "style" || n.attr("type") != "paragraph" {
			continue
		}
		id := n.attr("styleId")
		if id == "" {
			continue
		}
		styles.Paragraph[id] = paragraphStyle{
			BasedOn: n.child("basedOn").attr("val"),
			Run:     parseRunProps(n.child("rPr")),
			Align:   alignment(n.child("pPr").child("jc").attr("val")),
		}
		if onOff(n.attr("default"), false) {
			styles.DefaultStyleID = id
		}
	}
	return styles
}

func parseRunProps(n *xmlNode) runProps {
	var props runProps
	if n == nil {
		return props
	}

	if fonts := n.child("rFonts"); fonts != nil {
		props.Font = fonts.attr("ascii")
		if props.Font == "" {
			props.Font = fonts.attr("hAnsi")
		}
	}
	if sz := n.child("sz"); sz != nil {
		// sizes are stored in half-points
		if v, err := strconv.ParseFloat(sz.attr("val"), 64); err == nil && v > 0 {
			props.Size = types.Float(roundTo(v/2, 1))
		}
	}
	if b := n.child("b"); b != nil {
		v := onOff(b.attr("val"), true)
		props.Bold = &v
	}
	if it := n.child("i"); it != nil {
		v := onOff(it.attr("val"), true)
		props.Italic = &v
	}
	if c := n.child("color"); c != nil {
		if v := c.attr("val"); v != "" && !strings.EqualFold(v, "auto") {
			props.Color = "#" + strings.ToUpper(v)
		}
	}
	return props
}

// onOff reads an OOXML boolean attribute; an absent value means def
func onOff(v string, def bool) bool {
	switch strings.ToLower(v) {
	case "":
		return def
	case "1", "true", "on":
		return true
	default:
		return false
	}
}

func alignment(jc string) string {
	switch jc {
	case "center":
		return "center"
	case "right", "end":
		return "right"
	case "both", "distribute":
		return "justify"
	case "left", "start":
		return "left"
	default:
		return ""
	}
}

// run is one w:r with its direct text
type run struct {
	Text  string
	Props runProps
}

// collectRuns gathers runs in order, descending into hyperlinks, insertions and content controls
func collectRuns(n *xmlNode, out *[]run) {
	for i := range n.Nodes {
		c := &n.Nodes[i]
		switch c.XMLName.Local {
		case "r":
			*out = append(*out, run{Text: runText(c), Props: parseRunProps(c.child("rPr"))})
		case "pPr", "rPr", "del", "tbl":
			// deleted text and properties carry no visible content
		default:
			collectRuns(c, out)
		}
	}
}

func runText(r *xmlNode) string {
	var sb strings.Builder
	for _, c := range r.Nodes {
		switch c.XMLName.Local {
		case "t":
			sb.WriteString(c.Text)
		case "tab":
			sb.WriteByte('\t')
		case "br", "cr":
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func paragraphText(p *xmlNode) string {
	var runs []run
	collectRuns(p, &runs)
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return strings.TrimSpace(sb.String())
}

// paragraphBlock builds a text block whose style comes from the longest run,
// falling back to the paragraph style chain and then the document defaults.
func paragraphBlock(p *xmlNode, styles docxStyles) (types.Block, bool) {
	var runs []run
	collectRuns(p, &runs)

	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return types.Block{}, false
	}

	pPr := p.child("pPr")
	base, styleAlign := styles.resolve(pPr.child("pStyle").attr("val"))

	var dominant *run
	longest := 0
	for i := range runs {
		n := len([]rune(strings.TrimSpace(runs[i].Text)))
		if n > longest {
			longest = n
			dominant = &runs[i]
		}
	}

	props := base
	if dominant != nil {
		props = base.over(dominant.Props)
	}

	style := &types.BlockStyle{
		FontName:   props.Font,
		FontSizePt: props.Size,
		FontWeight: types.WeightNormal,
		Italic:     props.Italic != nil && *props.Italic,
		ColorHex:   props.Color,
		Alignment:  alignment(pPr.child("jc").attr("val")),
	}
	if props.Bold != nil && *props.Bold {
		style.FontWeight = types.WeightBold
	}
	if style.ColorHex == "" {
		style.ColorHex = "#000000"
	}
	if style.Alignment == "" {
		style.Alignment = styleAlign
	}
	if style.Alignment == "" {
		style.Alignment = "left"
	}

	return types.Block{
		Type:  types.BlockText,
		Text:  text,
		Lines: []types.Line{{Text: text}},
		Style: style,
	}, true
}

// tableBlock flattens a table: non-empty cells joined by " | ", one line per row
func tableBlock(tbl *xmlNode) (types.Block, bool) {
	var rows []string
	for i := range tbl.Nodes {
		tr := &tbl.Nodes[i]
		if tr.XMLName.Local != "tr" {
			continue
		}
		var cells []string
		for j := range tr.Nodes {
			tc := &tr.Nodes[j]
			if tc.XMLName.Local != "tc" {
				continue
			}
			if text := cellText(tc); text != "" {
				cells = append(cells, text)
			}
		}
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	}
	if len(rows) == 0 {
		return types.Block{}, false
	}

	lines := make([]types.Line, len(rows))
	for i, r := range rows {
		lines[i] = types.Line{Text: r}
	}
	return types.Block{
		Type:  types.BlockTable,
		Text:  strings.Join(rows, "\n"),
		Lines: lines,
	}, true
}

// cellText joins the paragraphs of a cell, including those of nested tables
func cellText(n *xmlNode) string {
	var parts []string
	var walk func(*xmlNode)
	walk = func(x *xmlNode) {
		for i := range x.Nodes {
			c := &x.Nodes[i]
			if c.XMLName.Local == "p" {
				if t := paragraphText(c); t != "" {
					parts = append(parts, t)
				}
				continue
			}
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
