package preprocess

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/docdna/internal/types"
)

// glyph is one positioned character run as reported by the PDF content stream.
// Y is the baseline in PDF user space (origin bottom-left).
type glyph struct {
	Font string
	Size float64
	X    float64
	Y    float64
	W    float64
	S    string
	// Fill is the non-stroking colour as hex, empty when unknown
	Fill string
}

// advance is the horizontal extent of g. Fonts without a Widths array, such as the
// standard 14, report zero width; those get half an em per character.
func advance(g glyph) float64 {
	if g.W > 0 {
		return g.W
	}
	size := g.Size
	if size <= 0 {
		size = defaultGlyphSize
	}
	return fallbackAdvanceRatio * size * float64(utf8.RuneCountInString(g.S))
}

// span is a run of consecutive glyphs sharing a font, size and colour
type span struct {
	Font string
	Size float64
	Fill string
	Text string
}

// textLine is a single visual line in top-left page coordinates
type textLine struct {
	Spans    []span
	Baseline float64
	X0, X1   float64
	Y0, Y1   float64
	Size     float64
}

func (l textLine) text() string {
	var sb strings.Builder
	for _, s := range l.Spans {
		sb.WriteString(s.Text)
	}
	return strings.TrimSpace(sb.String())
}

// Geometry thresholds, expressed as multiples of the font size
const (
	ascentRatio      = 0.8  // glyph top above the baseline
	descentRatio     = 0.2  // glyph bottom below the baseline
	rowTolerance     = 0.5  // baseline drift allowed within one row
	wordGapRatio     = 0.2  // horizontal gap that becomes a space
	columnGapRatio   = 3.0  // horizontal gap that splits a row into separate lines
	blockGapRatio    = 0.8  // vertical gap that still joins a line to a block
	blockSizeDiffPt  = 1.0  // font size difference that starts a new block
	defaultGlyphSize = 11.0 // used when the content stream reports no size

	fallbackAdvanceRatio = 0.5 // per character, when the font has no widths
	alignToleranceRatio  = 0.5 // edge drift still counted as aligned
	minAlignTolerancePt  = 2.0
)

// groupLines turns glyphs into lines, converting to a top-left origin using pageHeight.
// Glyphs on the same baseline separated by a wide gap become separate lines.
func groupLines(glyphs []glyph, pageHeight float64) []textLine {
	if len(glyphs) == 0 {
		return nil
	}

	gs := make([]glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S == "" {
			continue
		}
		if g.Size <= 0 {
			g.Size = defaultGlyphSize
		}
		// flip to top-left origin
		g.Y = pageHeight - g.Y
		gs = append(gs, g)
	}

	sort.SliceStable(gs, func(i, j int) bool {
		if gs[i].Y != gs[j].Y {
			return gs[i].Y < gs[j].Y
		}
		return gs[i].X < gs[j].X
	})

	// rows of glyphs sharing a baseline
	var rows [][]glyph
	var current []glyph
	var rowBaseline float64
	for _, g := range gs {
		if len(current) > 0 && math.Abs(g.Y-rowBaseline) <= rowTolerance*g.Size {
			current = append(current, g)
			continue
		}
		if len(current) > 0 {
			rows = append(rows, current)
		}
		current = []glyph{g}
		rowBaseline = g.Y
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}

	var lines []textLine
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })

		start := 0
		for i := 1; i <= len(row); i++ {
			if i < len(row) {
				prev := row[i-1]
				gap := row[i].X - (prev.X + advance(prev))
				if gap <= columnGapRatio*math.Max(prev.Size, row[i].Size) {
					continue
				}
			}
			if line, ok := buildLine(row[start:i]); ok {
				lines = append(lines, line)
			}
			start = i
		}
	}
	return lines
}

// buildLine assembles one line from x-sorted glyphs of a single row
func buildLine(row []glyph) (textLine, bool) {
	var spans []span
	var sb strings.Builder
	maxSize := 0.0
	baseline := 0.0

	flush := func(g glyph) {
		if sb.Len() > 0 {
			spans = append(spans, span{Font: g.Font, Size: g.Size, Fill: g.Fill, Text: sb.String()})
			sb.Reset()
		}
	}

	for i, g := range row {
		if g.Size > maxSize {
			maxSize = g.Size
		}
		baseline = math.Max(baseline, g.Y)

		if i > 0 {
			prev := row[i-1]
			if prev.Font != g.Font || prev.Fill != g.Fill || roundTo(prev.Size, 1) != roundTo(g.Size, 1) {
				flush(prev)
			}
			gap := g.X - (prev.X + advance(prev))
			if gap > wordGapRatio*g.Size && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(g.S, " ") {
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(g.S)
	}
	last := row[len(row)-1]
	flush(last)

	line := textLine{
		Spans:    spans,
		Baseline: baseline,
		X0:       row[0].X,
		X1:       last.X + advance(last),
		Y0:       baseline - ascentRatio*maxSize,
		Y1:       baseline + descentRatio*maxSize,
		Size:     maxSize,
	}
	if line.text() == "" {
		return textLine{}, false
	}
	return line, true
}

// groupBlocks gathers lines into paragraphs: a line joins the most recent block it
// overlaps horizontally when the vertical gap is small and the font size matches.
func groupBlocks(lines []textLine) [][]textLine {
	type openBlock struct {
		lines  []textLine
		x0, x1 float64
		y1     float64
		size   float64
	}

	var blocks []*openBlock
	for _, l := range lines {
		var target *openBlock
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			overlaps := l.X0 < b.x1 && l.X1 > b.x0
			gap := l.Y0 - b.y1
			sameSize := math.Abs(l.Size-b.size) <= blockSizeDiffPt
			if overlaps && gap >= -rowTolerance*l.Size && gap <= blockGapRatio*l.Size && sameSize {
				target = b
				break
			}
		}

		if target == nil {
			blocks = append(blocks, &openBlock{lines: []textLine{l}, x0: l.X0, x1: l.X1, y1: l.Y1, size: l.Size})
			continue
		}
		target.lines = append(target.lines, l)
		target.x0 = math.Min(target.x0, l.X0)
		target.x1 = math.Max(target.x1, l.X1)
		target.y1 = math.Max(target.y1, l.Y1)
	}

	out := make([][]textLine, len(blocks))
	for i, b := range blocks {
		out[i] = b.lines
	}
	return out
}

// toBlock converts grouped lines into an IDM text block. The dominant style is
// taken from the longest span in the block.
func toBlock(pageNumber, index int, lines []textLine) types.Block {
	block := types.Block{
		ID:   blockID(pageNumber, index),
		Type: types.BlockText,
	}

	var parts []string
	box := types.BBox{X0: math.Inf(1), Y0: math.Inf(1), X1: math.Inf(-1), Y1: math.Inf(-1)}
	var dominant *span
	longest := 0

	for _, l := range lines {
		text := l.text()
		parts = append(parts, text)
		lineBox := types.BBox{X0: roundTo(l.X0, 1), Y0: roundTo(l.Y0, 1), X1: roundTo(l.X1, 1), Y1: roundTo(l.Y1, 1)}
		block.Lines = append(block.Lines, types.Line{Text: text, BBox: &lineBox})

		box.X0 = math.Min(box.X0, l.X0)
		box.Y0 = math.Min(box.Y0, l.Y0)
		box.X1 = math.Max(box.X1, l.X1)
		box.Y1 = math.Max(box.Y1, l.Y1)

		for i := range l.Spans {
			n := len([]rune(strings.TrimSpace(l.Spans[i].Text)))
			if n > longest {
				longest = n
				dominant = &l.Spans[i]
			}
		}
	}

	block.Text = strings.Join(parts, " ")
	box = types.BBox{X0: roundTo(box.X0, 1), Y0: roundTo(box.Y0, 1), X1: roundTo(box.X1, 1), Y1: roundTo(box.Y1, 1)}
	block.BBox = &box
	if dominant != nil {
		block.Style = styleFromFont(dominant.Font, dominant.Size, dominant.Fill)
		block.Style.Alignment = lineAlignment(lines, box)
	}
	return block
}

// lineAlignment compares line edges with the block box. Justified text needs three
// lines since a two line ragged paragraph looks the same.
func lineAlignment(lines []textLine, box types.BBox) string {
	if len(lines) < 2 {
		return "left"
	}
	size := 0.0
	for _, l := range lines {
		size = math.Max(size, l.Size)
	}
	tol := math.Max(minAlignTolerancePt, alignToleranceRatio*size)
	near := func(a, b float64) bool { return math.Abs(a-b) <= tol }

	left, right, center := true, true, true
	rightBody := true
	mid := (box.X0 + box.X1) / 2
	for i, l := range lines {
		left = left && near(l.X0, box.X0)
		right = right && near(l.X1, box.X1)
		center = center && near((l.X0+l.X1)/2, mid)
		if i < len(lines)-1 {
			rightBody = rightBody && near(l.X1, box.X1)
		}
	}

	switch {
	case left && !right && rightBody && len(lines) >= 3:
		return "justify"
	case left:
		return "left"
	case right:
		return "right"
	case center:
		return "center"
	}
	return "left"
}

// styleFromFont derives a block style from a PDF font name such as "ABCDEF+Arial-BoldMT"
// and the fill colour the span was painted with.
func styleFromFont(raw string, size float64, fill string) *types.BlockStyle {
	if fill == "" {
		fill = defaultFill
	}
	lower := strings.ToLower(raw)
	weight := types.WeightNormal
	if strings.Contains(lower, "bold") || strings.Contains(lower, "black") || strings.Contains(lower, "heavy") {
		weight = types.WeightBold
	}
	return &types.BlockStyle{
		FontName:   cleanFontName(raw),
		FontSizePt: types.Float(roundTo(size, 1)),
		FontWeight: weight,
		Italic:     strings.Contains(lower, "italic") || strings.Contains(lower, "oblique"),
		ColorHex:   fill,
		Alignment:  "left",
	}
}

// cleanFontName strips a subset prefix ("ABCDEF+Arial" becomes "Arial")
func cleanFontName(raw string) string {
	if i := strings.LastIndex(raw, "+"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}

func blockID(page, index int) string {
	return fmt.Sprintf("p%d_b%d", page, index)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
