package generation

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/types"
)

// Scope names the entities a document is generated for. ProjectID is required;
// candidate and interviewer are optional.
type Scope struct {
	ProjectID     string `json:"project_id"`
	CandidateID   string `json:"candidate_id,omitempty"`
	InterviewerID string `json:"interviewer_id,omitempty"`
}

// FetchArtifacts loads every artifact eligible for the scope: project artifacts always,
// candidate artifacts when a candidate is targeted, interviewer artifacts when an
// interviewer is targeted. Each artifact is tagged with the entity it was fetched for.
// A class that fails to load is logged and skipped.
func FetchArtifacts(ctx context.Context, store db.Store, scope Scope, logger *slog.Logger) []types.Artifact {
	if logger == nil {
		logger = slog.Default()
	}

	type class struct {
		entity types.EntityType
		id     string
	}
	classes := []class{{types.EntityProject, scope.ProjectID}}
	if scope.CandidateID != "" {
		classes = append(classes, class{types.EntityCandidate, scope.CandidateID})
	}
	if scope.InterviewerID != "" {
		classes = append(classes, class{types.EntityInterviewer, scope.InterviewerID})
	}

	results := make([][]types.Artifact, len(classes))
	var g errgroup.Group
	for i, c := range classes {
		if c.id == "" {
			continue
		}
		g.Go(func() error {
			artifacts, err := store.ListArtifacts(ctx, c.entity, c.id)
			if err != nil {
				logger.Warn("failed to fetch artifacts", "entity_type", c.entity, "entity_id", c.id, "error", err)
				return nil
			}
			for j := range artifacts {
				artifacts[j].EntityType = c.entity
				artifacts[j].EntityID = c.id
			}
			results[i] = artifacts
			return nil
		})
	}
	_ = g.Wait()

	var out []types.Artifact
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// FetchEntityContext loads the project, candidate and interviewer profiles of the scope.
// Profiles that fail to load are left empty.
func FetchEntityContext(ctx context.Context, store db.Store, scope Scope, logger *slog.Logger) types.EntityContext {
	if logger == nil {
		logger = slog.Default()
	}
	ec, err := store.GetEntityContext(ctx, scope.ProjectID, scope.CandidateID, scope.InterviewerID)
	if err != nil {
		logger.Warn("entity context incomplete", "project_id", scope.ProjectID, "error", err)
	}
	return ec
}
