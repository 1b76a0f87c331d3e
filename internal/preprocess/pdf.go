package preprocess

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/jonathan/docdna/internal/types"
)

// pageDim is a page size in points
type pageDim struct {
	Width  float64
	Height float64
}

// pdfStructure is what pdfcpu reports about the page tree
type pdfStructure struct {
	Dims        []pageDim
	ImageCounts []int
}

// buildFromPDF extracts positioned text blocks from every page
func (p *Preprocessor) buildFromPDF(data []byte) (doc *types.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, &ParseError{Format: types.FormatPDF, Cause: fmt.Errorf("%v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Format: types.FormatPDF, Cause: err}
	}

	numPages := reader.NumPage()
	if numPages == 0 {
		return nil, &ParseError{Format: types.FormatPDF, Cause: fmt.Errorf("document has no pages")}
	}

	structure, err := readStructure(data)
	if err != nil {
		// page dimensions fall back to the MediaBox read below
		p.logger.Warn("pdf structure unavailable", "error", err)
		structure = &pdfStructure{}
	}

	doc = &types.Document{
		ID:           p.newID(),
		SourceFormat: types.FormatPDF,
		PageCount:    numPages,
		Pages:        make([]types.Page, 0, numPages),
	}

	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		dim, ok := structure.dim(i)
		if !ok {
			dim, ok = mediaBox(page.V)
		}
		if !ok {
			dim = pageDim{Width: p.cfg.A4WidthPt, Height: p.cfg.A4HeightPt}
		}
		if i == 1 {
			doc.Metadata.WidthPt = types.Float(roundTo(dim.Width, 1))
			doc.Metadata.HeightPt = types.Float(roundTo(dim.Height, 1))
			doc.Metadata.PageSize = p.ClassifyPageSize(dim.Width, dim.Height)
		}

		glyphs, err := pageGlyphs(page)
		if err != nil {
			p.logger.Warn("skipping unreadable page content", "page", i, "error", err)
		}
		marks, err := readMarks(page, dim.Height)
		if err != nil {
			p.logger.Warn("page graphics state unavailable", "page", i, "error", err)
		}
		if len(marks.Fills) == len(glyphs) {
			for j := range glyphs {
				glyphs[j].Fill = marks.Fills[j]
			}
		} else if len(glyphs) > 0 {
			p.logger.Debug("fill colours not aligned with text", "page", i, "glyphs", len(glyphs), "fills", len(marks.Fills))
		}

		var blocks []types.Block
		for _, lines := range groupBlocks(groupLines(glyphs, dim.Height)) {
			blocks = append(blocks, toBlock(i, len(blocks), lines))
		}
		images := imageBoxes(marks.Images, structure.images(i), dim)
		for j := range images {
			blocks = append(blocks, types.Block{ID: blockID(i, len(blocks)), Type: types.BlockImage, BBox: &images[j]})
		}

		doc.Pages = append(doc.Pages, types.Page{Number: i, Blocks: blocks})
	}

	doc.Metadata.Title = documentTitle(reader)
	doc.Metadata.IsScanned = doc.TextLength() < p.cfg.ScannedCharThreshold
	doc.Metadata.OCRUsed = doc.Metadata.IsScanned
	return doc, nil
}

// pageGlyphs reads the text runs of one page. The content stream parser panics on
// malformed operators, so the panic is turned into an error for that page.
func pageGlyphs(page pdf.Page) (glyphs []glyph, err error) {
	if page.V.IsNull() {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			glyphs = nil
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()

	var prev pdf.Text
	for i, t := range page.Content().Text {
		g := glyph{Font: t.Font, Size: t.FontSize, X: t.X, Y: t.Y, W: t.W, S: t.S}
		// without widths the extractor never advances the text matrix, so every
		// character of a show operation lands on the same origin
		if i > 0 && t.W == 0 && prev.W == 0 && t.X == prev.X && t.Y == prev.Y {
			last := glyphs[len(glyphs)-1]
			g.X = last.X + advance(last)
		}
		prev = t
		glyphs = append(glyphs, g)
	}
	return glyphs, nil
}

// imageBoxes merges the images placed in the content stream with the count pdfcpu
// reports for the page. Images drawn outside the page stream, inside form
// XObjects for example, have no known placement and cover the whole page.
func imageBoxes(placed []types.BBox, counted int, dim pageDim) []types.BBox {
	out := append([]types.BBox(nil), placed...)
	page := types.BBox{X0: 0, Y0: 0, X1: roundTo(dim.Width, 1), Y1: roundTo(dim.Height, 1)}
	for len(out) < counted {
		out = append(out, page)
	}
	return out
}

// readStructure uses pdfcpu for page dimensions and image XObject counts
func readStructure(data []byte) (s *pdfStructure, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, fmt.Errorf("pdfcpu: %v", r)
		}
	}()

	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("pdfcpu page dims: %w", err)
	}

	s = &pdfStructure{
		Dims:        make([]pageDim, len(dims)),
		ImageCounts: make([]int, ctx.PageCount),
	}
	for i, d := range dims {
		s.Dims[i] = pageDim{Width: d.Width, Height: d.Height}
	}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		s.ImageCounts[pageNr-1] = len(pdfcpu.ImageObjNrs(ctx, pageNr))
	}
	return s, nil
}

func (s *pdfStructure) dim(page int) (pageDim, bool) {
	if page < 1 || page > len(s.Dims) {
		return pageDim{}, false
	}
	d := s.Dims[page-1]
	return d, d.Width > 0 && d.Height > 0
}

func (s *pdfStructure) images(page int) int {
	if page < 1 || page > len(s.ImageCounts) {
		return 0
	}
	return s.ImageCounts[page-1]
}

// mediaBox resolves the page MediaBox, following Parent links for inherited boxes.
func mediaBox(v pdf.Value) (pageDim, bool) {
	for depth := 0; depth < 32 && !v.IsNull(); depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			w := math.Abs(box.Index(2).Float64() - box.Index(0).Float64())
			h := math.Abs(box.Index(3).Float64() - box.Index(1).Float64())
			if w > 0 && h > 0 {
				return pageDim{Width: w, Height: h}, true
			}
		}
		v = v.Key("Parent")
	}
	return pageDim{}, false
}

func documentTitle(r *pdf.Reader) (title string) {
	defer func() {
		if recover() != nil {
			title = ""
		}
	}()
	return r.Trailer().Key("Info").Key("Title").Text()
}
