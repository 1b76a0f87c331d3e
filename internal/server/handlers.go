package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/generation"
	"github.com/jonathan/docdna/internal/pipeline"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in memory
const multipartMemory = 32 << 20

// GenerationContextRequest is the body of POST /generation/context
type GenerationContextRequest struct {
	RecordID         string `json:"record_id" validate:"required"`
	ProjectID        string `json:"project_id" validate:"required"`
	CandidateID      string `json:"candidate_id,omitempty"`
	InterviewerID    string `json:"interviewer_id,omitempty"`
	UserRequirements string `json:"user_requirements,omitempty" validate:"max=10000"`
}

// uploadResponse acknowledges an accepted document
type uploadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleUploadBlueprint accepts a multipart document and starts extraction in the background
func (s *Server) handleUploadBlueprint(w http.ResponseWriter, r *http.Request) {
	in, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	id, err := s.deps.Runner.Start(r.Context(), in)
	if err != nil {
		s.fail(w, fmt.Errorf("failed to start extraction: %w", err))
		return
	}
	s.logger.Info("extraction started", "record_id", id, "filename", in.Filename, "bytes", len(in.Data))
	s.jsonResponse(w, http.StatusAccepted, uploadResponse{ID: id, Status: db.StatusProcessing})
}

// handleGetBlueprint returns the record with its status and, once ready, its Blueprint
func (s *Server) handleGetBlueprint(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Store.GetBlueprintRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, rec)
}

// handleAnalyzeStream runs extraction for an upload and streams stage progress as SSE.
// Events: progress (one per stage step), blueprint (on success), error, complete.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	in, err := s.readUpload(w, r)
	if err != nil {
		s.fail(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	runner := pipeline.NewRunner(s.deps.Stages, s.deps.Store, s.deps.Pipeline, s.logger)
	runner.OnProgress(func(event pipeline.ProgressEvent) {
		// the assembled Blueprint goes out once, in its own event
		if event.Step == pipeline.StageAssemble {
			event.Content = nil
		}
		if err := sse.WriteEvent("progress", event); err != nil {
			s.logger.Debug("progress event dropped", "error", err)
		}
	})

	id, err := runner.Start(r.Context(), in)
	if err != nil {
		sse.WriteError(err.Error())
		return
	}
	runner.Wait()

	rec, err := s.deps.Store.GetBlueprintRecord(r.Context(), id)
	if err != nil {
		sse.WriteError(err.Error())
		return
	}
	switch {
	case rec.Blueprint != nil && rec.Status == db.StatusReady:
		sse.WriteEvent("blueprint", rec.Blueprint) //nolint:errcheck
	case rec.ProcessingError != nil:
		sse.WriteError(*rec.ProcessingError)
	}
	sse.WriteComplete(rec.ID, rec.Status)
}

// handleGenerationContext ranks the scope's artifacts against a stored Blueprint
func (s *Server) handleGenerationContext(w http.ResponseWriter, r *http.Request) {
	var req GenerationContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, &ErrValidation{Field: "body", Message: "invalid JSON"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, validationError(err))
		return
	}

	gc, err := s.deps.Builder.BuildContext(r.Context(), generation.Request{
		RecordID: req.RecordID,
		Scope: generation.Scope{
			ProjectID:     req.ProjectID,
			CandidateID:   req.CandidateID,
			InterviewerID: req.InterviewerID,
		},
		UserRequirements: req.UserRequirements,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, gc)
}

// handleEnrichArtifact summarizes, tags and re-embeds one artifact
func (s *Server) handleEnrichArtifact(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Store.GetArtifact(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, s.deps.Enricher.Process(r.Context(), id))
}

// readUpload parses the multipart form: a "file" part plus optional name,
// document_type and record_id fields.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (pipeline.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pipeline.Input{}, &ErrPayloadTooLarge{Limit: s.maxUpload}
		}
		return pipeline.Input{}, &ErrValidation{Field: "file", Message: "expected multipart/form-data"}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return pipeline.Input{}, &ErrValidation{Field: "file", Message: "file is required"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Input{}, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return pipeline.Input{}, &ErrValidation{Field: "file", Message: "file is empty"}
	}

	return pipeline.Input{
		RecordID:     r.FormValue("record_id"),
		Name:         r.FormValue("name"),
		Filename:     header.Filename,
		DocumentType: r.FormValue("document_type"),
		Data:         data,
	}, nil
}
