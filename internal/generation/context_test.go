package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/ranking"
	"github.com/jonathan/docdna/internal/types"
)

func newStore(t *testing.T) db.Store {
	t.Helper()
	s, err := db.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func insert(t *testing.T, store db.Store, a types.Artifact) string {
	t.Helper()
	id, err := store.InsertArtifact(context.Background(), a)
	require.NoError(t, err)
	return id
}

func seed(t *testing.T, store db.Store) (recordID, financeID, cvID string) {
	t.Helper()
	ctx := context.Background()

	rec, err := store.CreateBlueprintRecord(ctx, db.NewBlueprintRecord{Name: "golden", DocumentType: "proposal"})
	require.NoError(t, err)
	bp := &types.Blueprint{
		BlueprintID:    "bp-1",
		SourceRecordID: rec.ID,
		ContentStructureSpec: types.ContentStructureSpec{Sections: []types.Section{
			{SectionID: "summary", Title: "Summary", Depth: 1, Intent: "finance", ChildSections: []types.Section{}},
		}},
	}
	require.NoError(t, store.MarkReady(ctx, rec.ID, bp))

	require.NoError(t, store.SaveProject(ctx, types.Project{ID: "p1", Title: "Apollo", Client: "Acme"}))
	require.NoError(t, store.SaveCandidate(ctx, types.Candidate{ID: "c1", Name: "Ada", Role: "CTO"}))

	financeID = insert(t, store, types.Artifact{Name: "Finance report", ArtifactType: "report",
		ProcessedContent: text("finance numbers for the quarter"), EntityType: types.EntityProject, EntityID: "p1"})
	cvID = insert(t, store, types.Artifact{Name: "CV", ArtifactType: "cv",
		ProcessedContent: text("python engineer"), EntityType: types.EntityCandidate, EntityID: "c1"})
	insert(t, store, types.Artifact{Name: "Other project", EntityType: types.EntityProject, EntityID: "p2"})
	insert(t, store, types.Artifact{Name: "Interview guide", EntityType: types.EntityInterviewer, EntityID: "i1"})
	return rec.ID, financeID, cvID
}

func newBuilder(store db.Store) *Builder {
	cfg := config.DefaultPipeline()
	return NewBuilder(store, ranking.New(nil, cfg, nil), cfg, nil)
}

func TestBuildContext(t *testing.T) {
	store := newStore(t)
	recordID, financeID, cvID := seed(t, store)

	got, err := newBuilder(store).BuildContext(context.Background(), Request{
		RecordID:         recordID,
		Scope:            Scope{ProjectID: "p1", CandidateID: "c1"},
		UserRequirements: "Keep it short",
	})
	require.NoError(t, err)

	assert.Equal(t, "proposal", got.DocumentType)
	require.NotNil(t, got.EntityContext.Project)
	assert.Equal(t, "Apollo", got.EntityContext.Project.Title)
	require.NotNil(t, got.EntityContext.Candidate)
	assert.Nil(t, got.EntityContext.Interviewer)

	require.Len(t, got.SelectedArtifacts, 2)
	assert.Equal(t, financeID, got.SelectedArtifacts[0].ID)
	assert.Equal(t, 0.9, got.SelectedArtifacts[0].Score)
	assert.Equal(t, types.EntityProject, got.SelectedArtifacts[0].EntityType)
	assert.Equal(t, cvID, got.SelectedArtifacts[1].ID)
	assert.Equal(t, types.EntityCandidate, got.SelectedArtifacts[1].EntityType)

	require.Len(t, got.BySection["summary"], 2)
	assert.Contains(t, got.Prompt, "### summary")
	assert.Contains(t, got.Prompt, "**Finance report** (project · report)")
	assert.Contains(t, got.Prompt, "Project: Apollo")
	assert.Contains(t, got.Prompt, "Candidate: Ada")
	assert.Contains(t, got.Prompt, "Keep it short")
	assert.NotContains(t, got.Prompt, "Other project")
	assert.NotContains(t, got.Prompt, "Interview guide")
}

func TestBuildContext_NoBlueprint(t *testing.T) {
	store := newStore(t)
	rec, err := store.CreateBlueprintRecord(context.Background(), db.NewBlueprintRecord{Name: "pending"})
	require.NoError(t, err)

	_, err = newBuilder(store).BuildContext(context.Background(), Request{RecordID: rec.ID, Scope: Scope{ProjectID: "p1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoBlueprint))

	var nbe *NoBlueprintError
	require.ErrorAs(t, err, &nbe)
	assert.Equal(t, rec.ID, nbe.RecordID)
}

func TestBuildContext_UnknownRecord(t *testing.T) {
	_, err := newBuilder(newStore(t)).BuildContext(context.Background(), Request{RecordID: "missing"})
	assert.ErrorIs(t, err, db.ErrNotFound)
}

type failingStore struct {
	db.Store
	fail types.EntityType
}

func (s failingStore) ListArtifacts(ctx context.Context, owner types.EntityType, ownerID string) ([]types.Artifact, error) {
	if owner == s.fail {
		return nil, errors.New("connection reset")
	}
	return s.Store.ListArtifacts(ctx, owner, ownerID)
}

func TestFetchArtifacts(t *testing.T) {
	store := newStore(t)
	seed(t, store)
	insert(t, store, types.Artifact{Name: "Interview guide 2", EntityType: types.EntityInterviewer, EntityID: "i2"})
	ctx := context.Background()

	projectOnly := FetchArtifacts(ctx, store, Scope{ProjectID: "p1"}, nil)
	require.Len(t, projectOnly, 1)
	assert.Equal(t, "Finance report", projectOnly[0].Name)
	assert.Equal(t, types.EntityProject, projectOnly[0].EntityType)
	assert.Equal(t, "p1", projectOnly[0].EntityID)

	all := FetchArtifacts(ctx, store, Scope{ProjectID: "p1", CandidateID: "c1", InterviewerID: "i2"}, nil)
	names := make([]string, len(all))
	for i, a := range all {
		names[i] = a.Name
	}
	assert.Equal(t, []string{"Finance report", "CV", "Interview guide 2"}, names)

	partial := FetchArtifacts(ctx, failingStore{Store: store, fail: types.EntityCandidate},
		Scope{ProjectID: "p1", CandidateID: "c1", InterviewerID: "i2"}, nil)
	require.Len(t, partial, 2)
	assert.Equal(t, "Finance report", partial[0].Name)
	assert.Equal(t, types.EntityInterviewer, partial[1].EntityType)
}

func TestFetchEntityContext_MissingProfiles(t *testing.T) {
	ec := FetchEntityContext(context.Background(), newStore(t), Scope{ProjectID: "nope", CandidateID: "nobody"}, nil)
	assert.Nil(t, ec.Project)
	assert.Nil(t, ec.Candidate)
}
