// Package db provides the record store for blueprints, artifacts and entity profiles.
// Postgres (pgxpool) serves production; SQLite (modernc) serves local runs and tests.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/docdna/internal/types"
)

// ErrNotFound is returned when a keyed record does not exist
var ErrNotFound = errors.New("record not found")

// Blueprint record statuses
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusError      = "error"
)

// MaxErrorLength bounds the stored processing error
const MaxErrorLength = 1000

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// BlueprintRecord is a document whose Blueprint is being or has been extracted
type BlueprintRecord struct {
	ID                    string           `json:"id"`
	Name                  string           `json:"name"`
	DocumentType          string           `json:"document_type"`
	Filename              string           `json:"filename"`
	Status                string           `json:"status"`
	ProcessingError       *string          `json:"processing_error"`
	Blueprint             *types.Blueprint `json:"blueprint"`
	ProcessingStartedAt   *time.Time       `json:"processing_started_at"`
	ProcessingCompletedAt *time.Time       `json:"processing_completed_at"`
	CreatedAt             time.Time        `json:"created_at"`
}

// NewBlueprintRecord holds the caller-supplied fields of a new record
type NewBlueprintRecord struct {
	ID           string
	Name         string
	DocumentType string
	Filename     string
}

// Store is the keyed record store used by the pipeline runner, the generation
// context builder and the enrichment job.
type Store interface {
	CreateBlueprintRecord(ctx context.Context, in NewBlueprintRecord) (*BlueprintRecord, error)
	GetBlueprintRecord(ctx context.Context, id string) (*BlueprintRecord, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkReady(ctx context.Context, id string, bp *types.Blueprint) error
	MarkError(ctx context.Context, id string, msg string) error

	InsertArtifact(ctx context.Context, a types.Artifact) (string, error)
	GetArtifact(ctx context.Context, id string) (*types.Artifact, error)
	ListArtifacts(ctx context.Context, owner types.EntityType, ownerID string) ([]types.Artifact, error)
	UpdateArtifactEnrichment(ctx context.Context, id, summary string, tags []string) error
	UpdateArtifactEmbedding(ctx context.Context, id string, embedding []float32) error

	SaveProject(ctx context.Context, p types.Project) error
	SaveCandidate(ctx context.Context, c types.Candidate) error
	SaveInterviewer(ctx context.Context, i types.Interviewer) error
	GetEntityContext(ctx context.Context, projectID, candidateID, interviewerID string) (types.EntityContext, error)

	Close()
}

// Open connects to the store selected by driver
func Open(ctx context.Context, driver, url string) (Store, error) {
	switch driver {
	case DriverPostgres:
		pg, err := Connect(ctx, url)
		if err != nil {
			return nil, err
		}
		return pg, nil
	case DriverSQLite, "":
		lite, err := OpenSQLite(ctx, url)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// TruncateError shortens msg to at most limit characters
func TruncateError(msg string, limit int) string {
	r := []rune(msg)
	if len(r) <= limit {
		return msg
	}
	return string(r[:limit])
}
