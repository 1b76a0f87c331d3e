package preprocess

import (
	"errors"
	"fmt"

	"github.com/jonathan/docdna/internal/types"
)

// ErrEmptyInput is returned when the upload has no bytes
var ErrEmptyInput = errors.New("empty input")

// ParseError represents a failure to read the source bytes as the expected format
type ParseError struct {
	Format types.SourceFormat
	Cause  error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Format, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Format)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// UnsupportedFormatError is returned for files whose extension names a format
// the preprocessor recognises but cannot read, such as legacy binary .doc files.
type UnsupportedFormatError struct {
	Extension string
	Detected  string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Detected != "" {
		return fmt.Sprintf("unsupported format: .%s (detected %s)", e.Extension, e.Detected)
	}
	return fmt.Sprintf("unsupported format: .%s", e.Extension)
}
