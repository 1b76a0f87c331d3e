// Package preprocess converts uploaded PDF, DOCX and image bytes into the
// Intermediate Document Model shared by every analyzer.
package preprocess

import (
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/types"
)

const (
	mimePDF    = "application/pdf"
	mimeDOCX   = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeLegacy = "application/x-ole-storage"
	mimeMSWord = "application/msword"
)

var imageExtensions = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true,
	"bmp": true, "tiff": true, "tif": true, "webp": true,
}

// Preprocessor builds documents from raw uploads
type Preprocessor struct {
	cfg    config.Pipeline
	logger *slog.Logger
	newID  func() string
}

// New creates a preprocessor. A nil logger uses slog.Default().
func New(cfg config.Pipeline, logger *slog.Logger) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preprocessor{
		cfg:    cfg,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Build dispatches on the filename extension. PDF and DOCX parse failures are
// returned to the caller; files with an unknown extension are tried as PDF and
// become an image placeholder when that fails.
func (p *Preprocessor) Build(data []byte, filename string) (*types.Document, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	ext := Extension(filename)
	switch {
	case ext == "pdf":
		p.logger.Info("preprocessing pdf", "filename", filename)
		doc, err := p.buildFromPDF(data)
		if err != nil {
			p.logger.Error("pdf preprocessing failed", "filename", filename, "error", err)
			return nil, err
		}
		return doc, nil

	case ext == "doc" || ext == "docx":
		p.logger.Info("preprocessing docx", "filename", filename)
		if detected := Sniff(data); detected.Is(mimeLegacy) || detected.Is(mimeMSWord) {
			return nil, &UnsupportedFormatError{Extension: ext, Detected: detected.String()}
		}
		doc, err := p.buildFromDOCX(data)
		if err != nil {
			p.logger.Error("docx preprocessing failed", "filename", filename, "error", err)
			return nil, err
		}
		return doc, nil

	case imageExtensions[ext]:
		p.logger.Info("preprocessing image", "filename", filename)
		return p.buildFromImage(), nil

	default:
		detected := Sniff(data)
		if detected.Is(mimeDOCX) {
			if doc, err := p.buildFromDOCX(data); err == nil {
				return doc, nil
			}
		}
		doc, err := p.buildFromPDF(data)
		if err == nil {
			return doc, nil
		}
		p.logger.Warn("unknown extension, treating as image",
			"filename", filename, "detected", detected.String(), "error", err)
		return p.buildFromImage(), nil
	}
}

// ClassifyPageSize names a page by its dimensions: "A4", "Letter" or "custom".
func (p *Preprocessor) ClassifyPageSize(width, height float64) string {
	tol := p.cfg.PageSizeTolerancePt
	if math.Abs(width-p.cfg.A4WidthPt) < tol && math.Abs(height-p.cfg.A4HeightPt) < tol {
		return types.PageSizeA4
	}
	if math.Abs(width-p.cfg.LetterWidthPt) < tol && math.Abs(height-p.cfg.LetterHeightPt) < tol {
		return types.PageSizeLetter
	}
	return types.PageSizeCustom
}

// Extension returns the lowercased extension of filename without the dot
func Extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Sniff detects the content type of data from its magic bytes
func Sniff(data []byte) *mimetype.MIME {
	return mimetype.Detect(data)
}

// IsPDF reports whether data starts like a PDF file
func IsPDF(data []byte) bool {
	return Sniff(data).Is(mimePDF)
}
