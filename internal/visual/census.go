package visual

import (
	"sort"
	"strings"

	"github.com/jonathan/docdna/internal/types"
)

// Palette slots filled by census rank
var paletteSlots = []string{"primary", "secondary", "accent", "highlight", "muted", "extra"}

const (
	defaultColor      = "#000000"
	defaultBackground = "#FFFFFF"
	unknownFont       = "unknown"
)

// ClassifyRole maps a font size and weight to a typography role
func ClassifyRole(size *float64, weight string) string {
	if size == nil {
		return types.RoleBody
	}
	switch s := *size; {
	case s >= 20:
		return types.RoleH1
	case s >= 15:
		return types.RoleH2
	case s >= 13:
		return types.RoleH3
	case s >= 9:
		if weight == types.WeightBold {
			return types.RoleH3
		}
		return types.RoleBody
	default:
		return types.RoleCaption
	}
}

// styleKey identifies one (font, size, weight, color) combination
type styleKey struct {
	Font    string
	HasSize bool
	Size    float64
	Weight  string
	Color   string
}

// tally counts weights per key and remembers first-seen order for tie-breaking
type tally[K comparable] struct {
	counts map[K]int
	order  []K
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: map[K]int{}}
}

func (t *tally[K]) add(k K, n int) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k] += n
}

// ranked returns keys by descending count; equal counts keep first-seen order
func (t *tally[K]) ranked() []K {
	out := append([]K(nil), t.order...)
	sort.SliceStable(out, func(i, j int) bool { return t.counts[out[i]] > t.counts[out[j]] })
	return out
}

// Census is the character-weighted style inventory of a document
type Census struct {
	roles  map[string]*tally[styleKey]
	colors *tally[string]
}

// TakeCensus weights every styled, non-empty block by its text length
func TakeCensus(doc *types.Document) *Census {
	c := &Census{roles: map[string]*tally[styleKey]{}, colors: newTally[string]()}

	for _, b := range doc.Blocks() {
		if b.Style == nil || b.Text == "" {
			continue
		}
		n := len([]rune(b.Text))

		weight := b.Style.FontWeight
		if weight == "" {
			weight = types.WeightNormal
		}
		font := b.Style.FontName
		if font == "" {
			font = unknownFont
		}
		color := b.Style.ColorHex
		if color == "" {
			color = defaultColor
		}

		key := styleKey{Font: font, Weight: weight, Color: color}
		if b.Style.FontSizePt != nil {
			key.HasSize = true
			key.Size = *b.Style.FontSizePt
		}

		role := ClassifyRole(b.Style.FontSizePt, weight)
		if c.roles[role] == nil {
			c.roles[role] = newTally[styleKey]()
		}
		c.roles[role].add(key, n)

		switch strings.ToUpper(color) {
		case "#000000", "#FFFFFF", "#000":
		default:
			c.colors.add(color, n)
		}
	}
	return c
}

// Typography returns the most character-weighted token per observed role
func (c *Census) Typography() map[string]types.TypographyToken {
	out := map[string]types.TypographyToken{}
	for role, t := range c.roles {
		ranked := t.ranked()
		if len(ranked) == 0 {
			continue
		}
		k := ranked[0]
		tok := types.TypographyToken{Weight: k.Weight, ColorHex: k.Color, Inferred: true}
		if k.Font != unknownFont {
			tok.FontFamily = types.String(k.Font)
		}
		if k.HasSize {
			tok.SizePt = types.Float(k.Size)
		}
		out[role] = tok
	}
	return out
}

// Palette maps the most frequent non-neutral colors to the palette slots
func (c *Census) Palette() map[string]string {
	palette := map[string]string{}
	for i, color := range c.colors.ranked() {
		if i >= len(paletteSlots) {
			break
		}
		palette[paletteSlots[i]] = color
	}
	if _, ok := palette["background"]; !ok {
		palette["background"] = defaultBackground
	}
	return palette
}
