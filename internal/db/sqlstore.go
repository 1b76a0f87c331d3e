package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/docdna/internal/types"
)

// rowScanner is satisfied by both pgx.Row and *sql.Row
type rowScanner interface {
	Scan(dest ...any) error
}

// rowIterator is the subset of a result set the store reads
type rowIterator interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// querier abstracts the connection so both backends share the SQL below
type querier interface {
	exec(ctx context.Context, query string, args ...any) (int64, error)
	queryRow(ctx context.Context, query string, args ...any) rowScanner
	query(ctx context.Context, query string, args ...any) (rowIterator, error)
}

// dialect holds what differs between the backends
type dialect struct {
	// rebind rewrites ? placeholders into the backend's syntax
	rebind func(string) string
	// timestamp converts a time into a bindable value
	timestamp func(time.Time) any
	// timeDest returns a scan destination for a nullable timestamp and a reader for it
	timeDest func() (any, func() *time.Time)
	isNoRows func(error) bool
}

type sqlStore struct {
	q   querier
	d   dialect
	now func() time.Time
}

func newSQLStore(q querier, d dialect) *sqlStore {
	return &sqlStore{q: q, d: d, now: func() time.Time { return time.Now().UTC() }}
}

func (s *sqlStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	return s.q.exec(ctx, s.d.rebind(query), args...)
}

func (s *sqlStore) queryRow(ctx context.Context, query string, args ...any) rowScanner {
	return s.q.queryRow(ctx, s.d.rebind(query), args...)
}

func (s *sqlStore) query(ctx context.Context, query string, args ...any) (rowIterator, error) {
	return s.q.query(ctx, s.d.rebind(query), args...)
}

// updateOne runs an UPDATE that must touch exactly one row
func (s *sqlStore) updateOne(ctx context.Context, what, query string, args ...any) error {
	n, err := s.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const blueprintColumns = `id, name, document_type, filename, status, processing_error, blueprint,
	processing_started_at, processing_completed_at, created_at`

// CreateBlueprintRecord inserts a record in the processing state
func (s *sqlStore) CreateBlueprintRecord(ctx context.Context, in NewBlueprintRecord) (*BlueprintRecord, error) {
	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	now := s.now()
	_, err := s.exec(ctx,
		`INSERT INTO golden_examples (id, name, document_type, filename, status, processing_started_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, in.Name, in.DocumentType, in.Filename, StatusProcessing, s.d.timestamp(now), s.d.timestamp(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create blueprint record: %w", err)
	}
	return s.GetBlueprintRecord(ctx, id)
}

// GetBlueprintRecord loads a record with its Blueprint, if any
func (s *sqlStore) GetBlueprintRecord(ctx context.Context, id string) (*BlueprintRecord, error) {
	var (
		rec      BlueprintRecord
		errMsg   *string
		bpJSON   []byte
		startedD, startedR     = s.d.timeDest()
		completedD, completedR = s.d.timeDest()
		createdD, createdR     = s.d.timeDest()
	)
	err := s.queryRow(ctx, `SELECT `+blueprintColumns+` FROM golden_examples WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Name, &rec.DocumentType, &rec.Filename, &rec.Status, &errMsg, &bpJSON,
			startedD, completedD, createdD)
	if err != nil {
		if s.d.isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blueprint record: %w", err)
	}

	rec.ProcessingError = errMsg
	rec.ProcessingStartedAt = startedR()
	rec.ProcessingCompletedAt = completedR()
	if t := createdR(); t != nil {
		rec.CreatedAt = *t
	}
	if len(bpJSON) > 0 {
		var bp types.Blueprint
		if err := json.Unmarshal(bpJSON, &bp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal blueprint: %w", err)
		}
		rec.Blueprint = &bp
	}
	return &rec, nil
}

// MarkProcessing resets a record to processing and clears any previous outcome
func (s *sqlStore) MarkProcessing(ctx context.Context, id string) error {
	return s.updateOne(ctx, "mark record processing",
		`UPDATE golden_examples
		 SET status = ?, processing_error = NULL, processing_started_at = ?, processing_completed_at = NULL
		 WHERE id = ?`,
		StatusProcessing, s.d.timestamp(s.now()), id,
	)
}

// MarkReady stores the Blueprint and marks the record ready
func (s *sqlStore) MarkReady(ctx context.Context, id string, bp *types.Blueprint) error {
	data, err := json.Marshal(bp)
	if err != nil {
		return fmt.Errorf("failed to marshal blueprint: %w", err)
	}
	return s.updateOne(ctx, "mark record ready",
		`UPDATE golden_examples
		 SET status = ?, blueprint = ?, processing_error = NULL, processing_completed_at = ?
		 WHERE id = ?`,
		StatusReady, string(data), s.d.timestamp(s.now()), id,
	)
}

// MarkError records a terminal failure; the message is truncated to MaxErrorLength
func (s *sqlStore) MarkError(ctx context.Context, id string, msg string) error {
	return s.updateOne(ctx, "mark record failed",
		`UPDATE golden_examples
		 SET status = ?, processing_error = ?, processing_completed_at = ?
		 WHERE id = ?`,
		StatusError, TruncateError(msg, MaxErrorLength), s.d.timestamp(s.now()), id,
	)
}

const artifactColumns = `id, owner_type, owner_id, name, artifact_type, document_type, description,
	processed_content, summary, tags, embedding`

// InsertArtifact stores an artifact owned by a.EntityType/a.EntityID and returns its id
func (s *sqlStore) InsertArtifact(ctx context.Context, a types.Artifact) (string, error) {
	if a.EntityType == "" || a.EntityID == "" {
		return "", fmt.Errorf("artifact owner is required")
	}
	id := a.ID
	if id == "" {
		id = uuid.New().String()
	}
	tags, err := encodeJSON(a.Tags)
	if err != nil {
		return "", err
	}
	emb, err := encodeJSON(a.Embedding)
	if err != nil {
		return "", err
	}

	_, err = s.exec(ctx,
		`INSERT INTO artifacts (id, owner_type, owner_id, name, artifact_type, document_type, description,
		   processed_content, summary, tags, embedding, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(a.EntityType), a.EntityID, a.Name, a.ArtifactType, a.DocumentType, a.Description,
		a.ProcessedContent, a.Summary, tags, emb, s.d.timestamp(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert artifact: %w", err)
	}
	return id, nil
}

// GetArtifact loads one artifact by id
func (s *sqlStore) GetArtifact(ctx context.Context, id string) (*types.Artifact, error) {
	a, err := scanArtifact(s.queryRow(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id))
	if err != nil {
		if s.d.isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}
	return a, nil
}

// ListArtifacts returns the artifacts of one owner in insertion order
func (s *sqlStore) ListArtifacts(ctx context.Context, owner types.EntityType, ownerID string) ([]types.Artifact, error) {
	rows, err := s.query(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE owner_type = ? AND owner_id = ? ORDER BY seq`,
		string(owner), ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	return out, nil
}

func scanArtifact(row rowScanner) (*types.Artifact, error) {
	var (
		a          types.Artifact
		ownerType  string
		tags, embs []byte
	)
	if err := row.Scan(&a.ID, &ownerType, &a.EntityID, &a.Name, &a.ArtifactType, &a.DocumentType,
		&a.Description, &a.ProcessedContent, &a.Summary, &tags, &embs); err != nil {
		return nil, err
	}
	a.EntityType = types.EntityType(ownerType)
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &a.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(embs) > 0 {
		if err := json.Unmarshal(embs, &a.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding: %w", err)
		}
	}
	return &a, nil
}

// UpdateArtifactEnrichment stores the generated summary and tags
func (s *sqlStore) UpdateArtifactEnrichment(ctx context.Context, id, summary string, tags []string) error {
	data, err := encodeJSON(tags)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, "update artifact enrichment",
		`UPDATE artifacts SET summary = ?, tags = ? WHERE id = ?`, summary, data, id)
}

// UpdateArtifactEmbedding stores the artifact's embedding vector
func (s *sqlStore) UpdateArtifactEmbedding(ctx context.Context, id string, embedding []float32) error {
	data, err := encodeJSON(embedding)
	if err != nil {
		return err
	}
	return s.updateOne(ctx, "update artifact embedding",
		`UPDATE artifacts SET embedding = ? WHERE id = ?`, data, id)
}

// encodeJSON returns nil for empty slices so the column stays NULL
func encodeJSON[T any](v []T) (*string, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	s := string(b)
	return &s, nil
}

// SaveProject inserts or replaces a project profile
func (s *sqlStore) SaveProject(ctx context.Context, p types.Project) error {
	_, err := s.exec(ctx,
		`INSERT INTO projects (id, title, client, description, date) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET title = excluded.title, client = excluded.client,
		   description = excluded.description, date = excluded.date`,
		p.ID, p.Title, p.Client, p.Description, p.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}
	return nil
}

// SaveCandidate inserts or replaces a candidate profile
func (s *sqlStore) SaveCandidate(ctx context.Context, c types.Candidate) error {
	_, err := s.exec(ctx,
		`INSERT INTO candidates (id, name, role, company, email) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, role = excluded.role,
		   company = excluded.company, email = excluded.email`,
		c.ID, c.Name, c.Role, c.Company, c.Email,
	)
	if err != nil {
		return fmt.Errorf("failed to save candidate: %w", err)
	}
	return nil
}

// SaveInterviewer inserts or replaces an interviewer profile
func (s *sqlStore) SaveInterviewer(ctx context.Context, i types.Interviewer) error {
	_, err := s.exec(ctx,
		`INSERT INTO interviewers (id, name, position, company) VALUES (?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name, position = excluded.position,
		   company = excluded.company`,
		i.ID, i.Name, i.Position, i.Company,
	)
	if err != nil {
		return fmt.Errorf("failed to save interviewer: %w", err)
	}
	return nil
}

// GetEntityContext loads the profiles a generation request refers to.
// Empty ids and missing rows leave the corresponding field nil.
func (s *sqlStore) GetEntityContext(ctx context.Context, projectID, candidateID, interviewerID string) (types.EntityContext, error) {
	var ec types.EntityContext
	var errs []string

	if projectID != "" {
		var p types.Project
		err := s.queryRow(ctx, `SELECT id, title, client, description, date FROM projects WHERE id = ?`, projectID).
			Scan(&p.ID, &p.Title, &p.Client, &p.Description, &p.Date)
		if err == nil {
			ec.Project = &p
		} else if !s.d.isNoRows(err) {
			errs = append(errs, "project: "+err.Error())
		}
	}
	if candidateID != "" {
		var c types.Candidate
		err := s.queryRow(ctx, `SELECT id, name, role, company, email FROM candidates WHERE id = ?`, candidateID).
			Scan(&c.ID, &c.Name, &c.Role, &c.Company, &c.Email)
		if err == nil {
			ec.Candidate = &c
		} else if !s.d.isNoRows(err) {
			errs = append(errs, "candidate: "+err.Error())
		}
	}
	if interviewerID != "" {
		var i types.Interviewer
		err := s.queryRow(ctx, `SELECT id, name, position, company FROM interviewers WHERE id = ?`, interviewerID).
			Scan(&i.ID, &i.Name, &i.Position, &i.Company)
		if err == nil {
			ec.Interviewer = &i
		} else if !s.d.isNoRows(err) {
			errs = append(errs, "interviewer: "+err.Error())
		}
	}

	if len(errs) > 0 {
		return ec, fmt.Errorf("failed to load entity context: %s", strings.Join(errs, "; "))
	}
	return ec, nil
}
