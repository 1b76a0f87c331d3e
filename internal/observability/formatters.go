// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/docdna/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, clip(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// clip shortens s to n characters, ending in "..." when cut
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// PrintDocument outputs a summary of the intermediate document model.
func (p *Printer) PrintDocument(doc *types.Document) {
	if doc == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Format:     %s\n", doc.SourceFormat))
	sb.WriteString(fmt.Sprintf("Pages:      %d\n", doc.PageCount))
	sb.WriteString(fmt.Sprintf("Page size:  %s\n", doc.Metadata.PageSize))
	if doc.Metadata.Title != "" {
		sb.WriteString(fmt.Sprintf("Title:      %s\n", doc.Metadata.Title))
	}
	if doc.Metadata.IsScanned {
		sb.WriteString("Scanned:    yes\n")
	}

	counts := map[types.BlockType]int{}
	for _, b := range doc.Blocks() {
		counts[b.Type]++
	}
	sb.WriteString(fmt.Sprintf("Blocks:     %d text, %d table, %d image\n",
		counts[types.BlockText], counts[types.BlockTable], counts[types.BlockImage]))
	sb.WriteString(fmt.Sprintf("Characters: %d", doc.TextLength()))

	p.printBox("INTERMEDIATE DOCUMENT", sb.String())
}

// PrintContentStructure outputs the section tree, indented by depth.
func (p *Printer) PrintContentStructure(spec types.ContentStructureSpec) {
	var sb strings.Builder
	if spec.Error != "" {
		sb.WriteString(fmt.Sprintf("⚠ degraded: %s\n\n", spec.Error))
	}

	flat := spec.FlatSections()
	sb.WriteString(fmt.Sprintf("Sections: %d\n", len(flat)))
	for _, s := range flat {
		indent := strings.Repeat("  ", max(s.Depth, 1))
		sb.WriteString(fmt.Sprintf("%s• %s", indent, s.SectionID))
		if s.Title != "" && s.Title != s.SectionID {
			sb.WriteString(fmt.Sprintf(" (%s)", s.Title))
		}
		if s.TypographyRole != "" {
			sb.WriteString(" [" + s.TypographyRole + "]")
		}
		sb.WriteString("\n")
	}

	p.printBox("CONTENT STRUCTURE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintLayout outputs the page geometry and flow rules.
func (p *Printer) PrintLayout(spec types.LayoutSpec) {
	var sb strings.Builder
	if spec.Error != "" {
		sb.WriteString(fmt.Sprintf("⚠ degraded: %s\n\n", spec.Error))
	}
	m := spec.MarginsPt
	sb.WriteString(fmt.Sprintf("Page size: %s\n", spec.PageSize))
	sb.WriteString(fmt.Sprintf("Margins:   T%.0f B%.0f L%.0f R%.0f pt\n", m.Top, m.Bottom, m.Left, m.Right))
	sb.WriteString(fmt.Sprintf("Columns:   %s\n", spec.ColumnStructure))
	sb.WriteString(fmt.Sprintf("Tables:    %s\n", spec.TablePlacement))
	sb.WriteString(fmt.Sprintf("Images:    %s\n", spec.ImagePlacement))
	if spec.HeaderRule.Present {
		sb.WriteString(fmt.Sprintf("Header:    %q\n", spec.HeaderRule.Pattern))
	}
	if spec.FooterRule.Present {
		sb.WriteString(fmt.Sprintf("Footer:    %q\n", spec.FooterRule.Pattern))
	}
	sb.WriteString(fmt.Sprintf("Order:     %s", strings.Join(spec.SectionOrder, " → ")))

	p.printBox("LAYOUT", sb.String())
}

// PrintVisualStyle outputs typography tokens and the color palette.
func (p *Printer) PrintVisualStyle(spec types.VisualStyleSpec) {
	var sb strings.Builder
	if spec.Error != "" {
		sb.WriteString(fmt.Sprintf("⚠ degraded: %s\n\n", spec.Error))
	}

	sb.WriteString("Typography:\n")
	for _, role := range types.TypographyRoles {
		tok, ok := spec.Typography[role]
		if !ok {
			continue
		}
		family, size := "?", "?"
		if tok.FontFamily != nil {
			family = *tok.FontFamily
		}
		if tok.SizePt != nil {
			size = fmt.Sprintf("%.1f", *tok.SizePt)
		}
		line := fmt.Sprintf("  %-12s %s %spt %s %s", role, family, size, tok.Weight, tok.ColorHex)
		if tok.Inferred {
			line += " (inferred)"
		}
		sb.WriteString(line + "\n")
	}

	if len(spec.ColorPalette) > 0 {
		sb.WriteString("\nPalette:\n")
		keys := make([]string, 0, len(spec.ColorPalette))
		for k := range spec.ColorPalette {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %-12s %s\n", k, spec.ColorPalette[k]))
		}
	}
	sb.WriteString(fmt.Sprintf("\nBullets: %s / %s", spec.BulletStyle.Level1, spec.BulletStyle.Level2))

	p.printBox("VISUAL STYLE", sb.String())
}

// PrintBlueprint outputs every part of a Blueprint.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintBlueprint(bp *types.Blueprint) {
	if bp == nil {
		return
	}
	fmt.Fprintf(p.out, "Blueprint %s (%s)\n", bp.BlueprintID, orNone(bp.DocumentType))
	p.PrintContentStructure(bp.ContentStructureSpec)
	p.PrintLayout(bp.LayoutSpec)
	p.PrintVisualStyle(bp.VisualStyleSpec)
}

// PrintRankedArtifacts outputs the top artifacts per section and overall.
func (p *Printer) PrintRankedArtifacts(ranked types.RankedArtifacts) {
	if len(ranked.Global) == 0 {
		return
	}

	var sb strings.Builder
	for _, sid := range ranked.SectionOrder {
		sb.WriteString(sid + "\n")
		for _, sa := range ranked.BySection[sid] {
			sb.WriteString(fmt.Sprintf("  %.3f  %s\n", sa.Score, sa.Artifact.Name))
		}
	}
	if len(ranked.SectionOrder) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("Global (%d artifacts):\n", len(ranked.Global)))
	count := min(len(ranked.Global), maxItemsToShow)
	for i := 0; i < count; i++ {
		sa := ranked.Global[i]
		sb.WriteString(fmt.Sprintf("#%d  %.3f  %s\n", i+1, sa.Score, sa.Artifact.Name))
	}
	if len(ranked.Global) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("... and %d more artifacts\n", len(ranked.Global)-maxItemsToShow))
	}

	p.printBox("RANKED ARTIFACTS", strings.TrimSuffix(sb.String(), "\n"))
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
