package generation

import (
	"errors"
	"fmt"
)

// ErrNoBlueprint is returned when a record exists but has no extracted Blueprint yet
var ErrNoBlueprint = errors.New("record has no blueprint")

// NoBlueprintError names the record that could not be used for generation
type NoBlueprintError struct {
	RecordID string
	Status   string
}

func (e *NoBlueprintError) Error() string {
	return fmt.Sprintf("record %s has no blueprint (status %s); re-upload the document to extract one", e.RecordID, e.Status)
}

// Unwrap lets errors.Is match ErrNoBlueprint
func (e *NoBlueprintError) Unwrap() error {
	return ErrNoBlueprint
}
