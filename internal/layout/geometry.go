package layout

import (
	"math"
	"sort"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/types"
)

// Spacing defaults used when no gaps of a category are measured
const (
	DefaultBeforeH1    = 24.0
	DefaultAfterH1     = 12.0
	DefaultBeforeH2    = 18.0
	DefaultAfterH2     = 8.0
	DefaultParagraph   = 6.0
	DefaultLineSpacing = 1.15
)

// DefaultSpacing returns the spacing rules applied when nothing is measured
func DefaultSpacing() types.SpacingRules {
	return types.SpacingRules{
		BeforeH1:         DefaultBeforeH1,
		AfterH1:          DefaultAfterH1,
		BeforeH2:         DefaultBeforeH2,
		AfterH2:          DefaultAfterH2,
		ParagraphSpacing: DefaultParagraph,
		LineSpacing:      DefaultLineSpacing,
	}
}

// Defaults is the layout used when no evidence is available
func Defaults(cfg config.Pipeline) types.LayoutSpec {
	m := cfg.DefaultMarginPt
	return types.LayoutSpec{
		PageSize:        types.PageSizeA4,
		MarginsPt:       types.Margins{Top: m, Bottom: m, Left: m, Right: m},
		ColumnStructure: types.ColumnsSingle,
		SectionOrder:    []string{},
		SpacingRules:    DefaultSpacing(),
		TablePlacement:  types.PlacementInline,
		ImagePlacement:  types.PlacementInline,
	}
}

// AnalyzeGeometry derives layout rules from block bounding boxes. It is
// deterministic: the same document always yields the same spec.
func AnalyzeGeometry(doc *types.Document, cfg config.Pipeline) types.LayoutSpec {
	width := derefOr(doc.Metadata.WidthPt, 0)
	height := derefOr(doc.Metadata.HeightPt, 0)

	pageSize := doc.Metadata.PageSize
	if pageSize == "" || pageSize == types.PageSizeUnknown {
		pageSize = types.PageSizeA4
	}

	header, footer := DetectHeaderFooter(doc.Pages, height, cfg)
	return types.LayoutSpec{
		PageSize:        pageSize,
		MarginsPt:       DetectMargins(doc.Pages, width, height, cfg),
		ColumnStructure: DetectColumns(doc.Pages, cfg),
		SectionOrder:    []string{},
		SpacingRules:    DetectSpacing(doc.Pages, cfg),
		HeaderRule:      header,
		FooterRule:      footer,
		TablePlacement:  DetectTablePlacement(doc.Pages, width, cfg),
		ImagePlacement:  types.PlacementInline,
	}
}

// positioned returns the text blocks of a page that carry a bounding box
func positioned(p types.Page) []types.Block {
	var out []types.Block
	for _, b := range p.Blocks {
		if b.Type == types.BlockText && b.BBox != nil {
			out = append(out, b)
		}
	}
	return out
}

// DetectMargins averages the per-page extremes of text blocks. Right and bottom
// are measured from the page edge; each margin is clamped to the configured range.
func DetectMargins(pages []types.Page, width, height float64, cfg config.Pipeline) types.Margins {
	var lefts, rights, tops, bottoms []float64
	for _, p := range pages {
		blocks := positioned(p)
		if len(blocks) == 0 {
			continue
		}
		minX0, minY0 := math.Inf(1), math.Inf(1)
		maxX1, maxY1 := math.Inf(-1), math.Inf(-1)
		for _, b := range blocks {
			minX0 = math.Min(minX0, b.BBox.X0)
			minY0 = math.Min(minY0, b.BBox.Y0)
			maxX1 = math.Max(maxX1, b.BBox.X1)
			maxY1 = math.Max(maxY1, b.BBox.Y1)
		}
		lefts = append(lefts, minX0)
		tops = append(tops, minY0)
		rights = append(rights, maxX1)
		bottoms = append(bottoms, maxY1)
	}

	def := cfg.DefaultMarginPt
	m := types.Margins{
		Left:   roundedMean(lefts, def),
		Top:    roundedMean(tops, def),
		Right:  def,
		Bottom: def,
	}
	if width > 0 && len(rights) > 0 {
		m.Right = math.Round(width - mean(rights))
	}
	if height > 0 && len(bottoms) > 0 {
		m.Bottom = math.Round(height - mean(bottoms))
	}
	return ClampMargins(m, cfg)
}

// ClampMargins forces every margin into [MarginMinPt, MarginMaxPt]
func ClampMargins(m types.Margins, cfg config.Pipeline) types.Margins {
	clamp := func(v float64) float64 {
		return math.Max(cfg.MarginMinPt, math.Min(cfg.MarginMaxPt, v))
	}
	return types.Margins{
		Top:    clamp(m.Top),
		Bottom: clamp(m.Bottom),
		Left:   clamp(m.Left),
		Right:  clamp(m.Right),
	}
}

// DetectColumns buckets text-block x0 positions and reports two-column when the two
// most populated buckets are far enough apart and each holds enough of the blocks.
// Buckets with equal counts rank by first appearance.
func DetectColumns(pages []types.Page, cfg config.Pipeline) string {
	counts := map[int]int{}
	var order []int
	total := 0

	for _, p := range pages {
		for _, b := range positioned(p) {
			bin := int(b.BBox.X0 / cfg.ColumnBinWidthPt)
			if _, ok := counts[bin]; !ok {
				order = append(order, bin)
			}
			counts[bin]++
			total++
		}
	}
	if total == 0 || len(order) < 2 {
		return types.ColumnsSingle
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	a, b := order[0], order[1]

	separation := math.Abs(float64(a-b)) * cfg.ColumnBinWidthPt
	fracA := float64(counts[a]) / float64(total)
	fracB := float64(counts[b]) / float64(total)
	if separation >= cfg.ColumnMinSeparationPt && fracA >= cfg.ColumnMinFraction && fracB >= cfg.ColumnMinFraction {
		return types.ColumnsTwo
	}
	return types.ColumnsSingle
}

// DetectHeaderFooter flags a header or footer when text in the top or bottom band
// sits at the same height on at least max(2, ceil(fraction*pages)) distinct pages.
func DetectHeaderFooter(pages []types.Page, height float64, cfg config.Pipeline) (header, footer types.HeaderFooterRule) {
	if len(pages) == 0 || height <= 0 {
		return header, footer
	}

	threshold := int(math.Ceil(float64(len(pages)) * cfg.HeaderFooterPageFraction))
	if threshold < 2 {
		threshold = 2
	}

	topPages := map[int]int{}
	bottomPages := map[int]int{}
	for _, p := range pages {
		seenTop := map[int]bool{}
		seenBottom := map[int]bool{}
		for _, b := range positioned(p) {
			if b.BBox.Y0 < height*cfg.HeaderFooterBand {
				seenTop[int(b.BBox.Y0/cfg.HeaderFooterBinPt)] = true
			}
			if b.BBox.Y1 > height*(1-cfg.HeaderFooterBand) {
				seenBottom[int(b.BBox.Y1/cfg.HeaderFooterBinPt)] = true
			}
		}
		for bin := range seenTop {
			topPages[bin]++
		}
		for bin := range seenBottom {
			bottomPages[bin]++
		}
	}

	if recurs(topPages, threshold) {
		header = types.HeaderFooterRule{Present: true, Pattern: "repeating"}
	}
	if recurs(bottomPages, threshold) {
		footer = types.HeaderFooterRule{Present: true, Pattern: "page_number"}
	}
	return header, footer
}

func recurs(counts map[int]int, threshold int) bool {
	for _, n := range counts {
		if n >= threshold {
			return true
		}
	}
	return false
}

// DetectSpacing classifies the vertical gap between consecutive text blocks as
// before a heading, after a heading or between paragraphs and takes each median.
func DetectSpacing(pages []types.Page, cfg config.Pipeline) types.SpacingRules {
	var before, after, paragraph []float64
	for _, p := range pages {
		blocks := positioned(p)
		for i := 1; i < len(blocks); i++ {
			prev, curr := blocks[i-1], blocks[i]
			gap := roundTenth(curr.BBox.Y0 - prev.BBox.Y1)
			if gap <= 0 {
				continue
			}
			switch {
			case curr.IsHeadingLike(cfg.HeadingMinSizePt):
				before = append(before, gap)
			case prev.IsHeadingLike(cfg.HeadingMinSizePt):
				after = append(after, gap)
			default:
				paragraph = append(paragraph, gap)
			}
		}
	}

	return types.SpacingRules{
		BeforeH1:         median(before, DefaultBeforeH1),
		AfterH1:          median(after, DefaultAfterH1),
		BeforeH2:         median(before, DefaultBeforeH2),
		AfterH2:          median(after, DefaultAfterH2),
		ParagraphSpacing: median(paragraph, DefaultParagraph),
		LineSpacing:      DefaultLineSpacing,
	}
}

// DetectTablePlacement reports full_width when any positioned table spans the
// configured fraction of the page width.
func DetectTablePlacement(pages []types.Page, width float64, cfg config.Pipeline) string {
	if width <= 0 {
		return types.PlacementInline
	}
	for _, p := range pages {
		for _, b := range p.Blocks {
			if b.Type == types.BlockTable && b.BBox != nil && b.BBox.Width() >= width*cfg.TableFullWidthFraction {
				return types.PlacementFullWidth
			}
		}
	}
	return types.PlacementInline
}

// median returns the upper median rounded to 0.1, or def when there are no samples
func median(values []float64, def float64) float64 {
	if len(values) == 0 {
		return def
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	return roundTenth(s[len(s)/2])
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func roundedMean(values []float64, def float64) float64 {
	if len(values) == 0 {
		return def
	}
	return math.Round(mean(values))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

func derefOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
