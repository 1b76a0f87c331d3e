package visual

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// Renderer rasterizes the first pages of a PDF to PNG images
type Renderer interface {
	RenderPages(data []byte, maxPages int, dpi float64) ([][]byte, error)
}

// FitzRenderer renders pages with MuPDF
type FitzRenderer struct{}

// RenderPages returns up to maxPages PNG images rendered at dpi
func (FitzRenderer) RenderPages(data []byte, maxPages int, dpi float64) ([][]byte, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open document for rendering: %w", err)
	}
	defer func() { _ = doc.Close() }()

	n := doc.NumPage()
	if n > maxPages {
		n = maxPages
	}

	images := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		png, err := doc.ImagePNG(i, dpi)
		if err != nil {
			return nil, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		images = append(images, png)
	}
	return images, nil
}
