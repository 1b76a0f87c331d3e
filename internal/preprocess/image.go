package preprocess

import "github.com/jonathan/docdna/internal/types"

// buildFromImage returns a one-page document holding a single empty image block.
// No text is extracted; the visual analyzer works from the raw bytes instead.
func (p *Preprocessor) buildFromImage() *types.Document {
	return &types.Document{
		ID:           p.newID(),
		SourceFormat: types.FormatImage,
		PageCount:    1,
		Metadata: types.DocumentMetadata{
			PageSize:  types.PageSizeUnknown,
			IsScanned: true,
			OCRUsed:   false,
		},
		Pages: []types.Page{{
			Number: 1,
			Blocks: []types.Block{{ID: blockID(1, 0), Type: types.BlockImage}},
		}},
	}
}
