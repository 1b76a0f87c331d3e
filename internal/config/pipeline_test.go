package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPipeline_Valid(t *testing.T) {
	p := DefaultPipeline()
	assert.NoError(t, p.Validate())
	assert.Equal(t, 90*time.Second, p.StageTimeout())
	assert.Equal(t, 20*time.Second, p.EmbedTimeout())
	assert.Equal(t, 5, p.TopKPerSection)
}

func TestPipeline_WithDefaults(t *testing.T) {
	p := Pipeline{TopKPerSection: 2, MarginMaxPt: 100}.WithDefaults()

	assert.Equal(t, 2, p.TopKPerSection)
	assert.Equal(t, 100.0, p.MarginMaxPt)
	assert.Equal(t, 18.0, p.MarginMinPt)
	assert.Equal(t, 200, p.ScannedCharThreshold)
	assert.Equal(t, DefaultPipeline(), Pipeline{}.WithDefaults())
}

func TestPipeline_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Pipeline)
		wantErr string
	}{
		{"margin bounds", func(p *Pipeline) { p.MarginMinPt = 200 }, "margin_min_pt"},
		{"keyword floor above cap", func(p *Pipeline) { p.KeywordFloor = 0.95 }, "keyword floor"},
		{"column fraction", func(p *Pipeline) { p.ColumnMinFraction = 0.6 }, "column_min_fraction"},
		{"header fraction", func(p *Pipeline) { p.HeaderFooterPageFraction = 1.5 }, "header_footer_page_fraction"},
		{"band", func(p *Pipeline) { p.HeaderFooterBand = 0.7 }, "header_footer_band"},
		{"top k", func(p *Pipeline) { p.TopKPerSection = 0 }, "top_k_per_section"},
		{"bins", func(p *Pipeline) { p.ColumnBinWidthPt = -1 }, "bin widths"},
		{"timeouts", func(p *Pipeline) { p.StageTimeoutSeconds = 0 }, "timeouts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPipeline()
			tt.mutate(&p)
			err := p.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
