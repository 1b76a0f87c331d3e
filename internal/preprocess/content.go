package preprocess

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/jonathan/docdna/internal/types"
)

const defaultFill = "#000000"

// pageMarks is what a second walk over the content stream recovers that the text
// extractor drops: the fill colour of each character and where images are drawn.
type pageMarks struct {
	// Fills has one entry per character reported by Page.Content, in the same order
	Fills []string
	// Images are placement boxes in top-left page coordinates
	Images []types.BBox
}

// affine is a PDF transformation matrix [a b c d e f]
type affine [6]float64

var identity = affine{1, 0, 0, 1, 0, 0}

// mul returns m then n, the order the cm operator concatenates with the CTM
func (m affine) mul(n affine) affine {
	return affine{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m affine) apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// unitSquare maps the image space square through m and flips it to a top-left origin
func (m affine) unitSquare(pageHeight float64) types.BBox {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, c := range [][2]float64{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		x, y := m.apply(c[0], c[1])
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	return types.BBox{
		X0: roundTo(minX, 1),
		Y0: roundTo(pageHeight-maxY, 1),
		X1: roundTo(maxX, 1),
		Y1: roundTo(pageHeight-minY, 1),
	}
}

// rawEncoding passes code points through, as the extractor does before any Tf
type rawEncoding struct{}

func (rawEncoding) Decode(raw string) string { return raw }

// readMarks walks the page content stream tracking the graphics state. Text is
// decoded with the same font encoders Page.Content uses, so Fills lines up
// with its output character for character.
func readMarks(page pdf.Page, pageHeight float64) (marks pageMarks, err error) {
	if page.V.IsNull() {
		return marks, nil
	}
	defer func() {
		if r := recover(); r != nil {
			marks, err = pageMarks{}, fmt.Errorf("malformed content stream: %v", r)
		}
	}()

	type gstate struct {
		ctm  affine
		fill string
	}
	g := gstate{ctm: identity, fill: defaultFill}
	var saved []gstate
	var enc pdf.TextEncoding = rawEncoding{}
	xobjects := page.Resources().Key("XObject")

	show := func(raw string) {
		for n := utf8.RuneCountInString(enc.Decode(raw)); n > 0; n-- {
			marks.Fills = append(marks.Fills, g.fill)
		}
	}

	pdf.Interpret(page.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "q":
			saved = append(saved, g)
		case "Q":
			if n := len(saved); n > 0 {
				g, saved = saved[n-1], saved[:n-1]
			}
		case "cm":
			if len(args) == 6 {
				var m affine
				for i := range m {
					m[i] = args[i].Float64()
				}
				g.ctm = m.mul(g.ctm)
			}
		case "g", "rg", "k", "sc", "scn":
			if fill, ok := fillColor(args); ok {
				g.fill = fill
			}
		case "Tf":
			if len(args) == 2 {
				enc = page.Font(args[0].Name()).Encoder()
				if enc == nil {
					enc = rawEncoding{}
				}
			}
		case "Tj", "'", "\"":
			if len(args) > 0 {
				show(args[len(args)-1].RawString())
			}
		case "TJ":
			if len(args) == 1 {
				arr := args[0]
				for i := 0; i < arr.Len(); i++ {
					if item := arr.Index(i); item.Kind() == pdf.String {
						show(item.RawString())
					}
				}
				show("\n")
			}
		case "Do":
			if len(args) == 1 && xobjects.Key(args[0].Name()).Key("Subtype").Name() == "Image" {
				marks.Images = append(marks.Images, g.ctm.unitSquare(pageHeight))
			}
		}
	})
	return marks, nil
}

// fillColor converts gray, RGB or CMYK operands to hex. Pattern fills are ignored.
func fillColor(args []pdf.Value) (string, bool) {
	c := make([]float64, 0, len(args))
	for _, a := range args {
		if a.Kind() != pdf.Integer && a.Kind() != pdf.Real {
			return "", false
		}
		c = append(c, clamp01(a.Float64()))
	}
	switch len(c) {
	case 1:
		return hexRGB(c[0], c[0], c[0]), true
	case 3:
		return hexRGB(c[0], c[1], c[2]), true
	case 4:
		k := 1 - c[3]
		return hexRGB((1-c[0])*k, (1-c[1])*k, (1-c[2])*k), true
	}
	return "", false
}

func hexRGB(r, g, b float64) string {
	return fmt.Sprintf("#%02X%02X%02X", int(math.Round(r*255)), int(math.Round(g*255)), int(math.Round(b*255)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
