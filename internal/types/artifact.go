// Package types provides type definitions for structured data used throughout the docdna system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// EntityType says which entity an artifact was fetched for
type EntityType string

// Entity types
const (
	EntityProject     EntityType = "project"
	EntityCandidate   EntityType = "candidate"
	EntityInterviewer EntityType = "interviewer"
	EntityRole        EntityType = "role"
	EntityCompany     EntityType = "company"
)

// Artifact is a piece of content eligible for selection during generation
type Artifact struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	ArtifactType     string     `json:"artifact_type"`
	DocumentType     string     `json:"document_type,omitempty"`
	Description      string     `json:"description,omitempty"`
	ProcessedContent *string    `json:"processed_content"`
	Embedding        []float32  `json:"embedding,omitempty"`
	Summary          *string    `json:"summary,omitempty"`
	Tags             []string   `json:"tags,omitempty"`
	EntityType       EntityType `json:"entity_type,omitempty"`
	EntityID         string     `json:"entity_id,omitempty"`
}

// Content returns the processed content or an empty string
func (a Artifact) Content() string {
	if a.ProcessedContent == nil {
		return ""
	}
	return *a.ProcessedContent
}

// ScoredArtifact is an artifact with its relevance score
type ScoredArtifact struct {
	Artifact  Artifact `json:"artifact"`
	Score     float64  `json:"score"`
	SectionID string   `json:"section_id,omitempty"`
}

// RankedArtifacts is the ranker's output
type RankedArtifacts struct {
	// SectionOrder lists the keys of BySection in blueprint order
	SectionOrder []string                    `json:"section_order"`
	BySection    map[string][]ScoredArtifact `json:"by_section"`
	Global       []ScoredArtifact            `json:"global"`
}

// Project is the engagement a document is generated for
type Project struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Client      string `json:"client,omitempty"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date,omitempty"`
}

// Candidate is a person profile
type Candidate struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
	Company string `json:"company,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Interviewer is the audience profile for process artifacts
type Interviewer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position string `json:"position,omitempty"`
	Company  string `json:"company,omitempty"`
}

// EntityContext bundles the profiles available to a generation request
type EntityContext struct {
	Project     *Project     `json:"project,omitempty"`
	Candidate   *Candidate   `json:"candidate,omitempty"`
	Interviewer *Interviewer `json:"interviewer,omitempty"`
}
