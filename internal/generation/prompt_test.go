package generation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/types"
	"github.com/jonathan/docdna/internal/visual"
)

func text(s string) *string { return &s }

func scored(a types.Artifact, score float64) types.ScoredArtifact {
	return types.ScoredArtifact{Artifact: a, Score: score}
}

func proposalBlueprint() *types.Blueprint {
	return &types.Blueprint{
		DocumentType: "proposal",
		ContentStructureSpec: types.ContentStructureSpec{Sections: []types.Section{
			{SectionID: "intro", Intent: "overview", RhetoricalPattern: "problem-solution", MicroTemplate: "Hook then thesis"},
			{SectionID: "team"},
		}},
		LayoutSpec:      types.LayoutSpec{ColumnStructure: types.ColumnsSingle, PageSize: "A4"},
		VisualStyleSpec: visual.Defaults(),
	}
}

func TestBuildPrompt_SectionGuidance(t *testing.T) {
	ranked := types.RankedArtifacts{
		SectionOrder: []string{"intro", "team"},
		BySection: map[string][]types.ScoredArtifact{
			"intro": {
				scored(types.Artifact{ID: "1", Name: "Long CV", ArtifactType: "cv", EntityType: types.EntityCandidate,
					ProcessedContent: text(strings.Repeat("a", 2500))}, 0.9),
				scored(types.Artifact{ID: "2", Name: "Org chart", ArtifactType: "image"}, 0.5),
				scored(types.Artifact{ID: "3", Name: "Brief", ProcessedContent: text("third artifact")}, 0.4),
				scored(types.Artifact{ID: "4", Name: "Notes", ProcessedContent: text("fourth artifact")}, 0.3),
			},
		},
	}

	prompt := BuildPrompt(proposalBlueprint(), ranked, types.EntityContext{}, "  Keep it under two pages  ", config.DefaultPipeline())

	last := -1
	for _, h := range []string{HeadingStructure, HeadingSections, HeadingEntities, HeadingVisualStyle, HeadingRequirements, HeadingInstruction} {
		idx := strings.Index(prompt, h)
		require.GreaterOrEqual(t, idx, 0, "missing %s", h)
		assert.Greater(t, idx, last, "%s out of order", h)
		last = idx
	}
	assert.NotContains(t, prompt, HeadingArtifacts)

	assert.Contains(t, prompt, "Document type: proposal")
	assert.Contains(t, prompt, "Section structure (2 sections):")
	assert.Contains(t, prompt, "  • intro: Hook then thesis")
	assert.Contains(t, prompt, "Layout: single")
	assert.Contains(t, prompt, "Page size: A4")

	assert.Contains(t, prompt, "### intro\n_Intent: overview_\n_Pattern: problem-solution_")
	assert.Contains(t, prompt, "**Long CV** (candidate · cv):\n"+strings.Repeat("a", 2000)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("a", 2001))
	assert.Contains(t, prompt, "**Org chart** (image):\n[image: no text content available]")
	assert.Contains(t, prompt, "third artifact")
	assert.NotContains(t, prompt, "fourth artifact")
	assert.Contains(t, prompt, "### team\n_No specific artifacts matched this section._")

	assert.Contains(t, prompt, "No entity context available.")
	assert.Contains(t, prompt, HeadingRequirements+"\nKeep it under two pages")
	assert.True(t, strings.HasSuffix(prompt, "Do not include explanation or markdown code fences."))
}

func TestBuildPrompt_ArtifactFallback(t *testing.T) {
	var global []types.ScoredArtifact
	for i := 0; i < 12; i++ {
		global = append(global, scored(types.Artifact{
			ID: fmt.Sprint(i), Name: fmt.Sprintf("artifact-%02d", i), ProcessedContent: text(fmt.Sprintf("content %02d", i)),
		}, 0.5))
	}
	global[1].Artifact.ProcessedContent = nil

	prompt := BuildPrompt(&types.Blueprint{}, types.RankedArtifacts{Global: global}, types.EntityContext{}, " ", config.DefaultPipeline())

	assert.Contains(t, prompt, "No structural specification available.")
	assert.Contains(t, prompt, HeadingArtifacts)
	assert.NotContains(t, prompt, HeadingSections)
	assert.Contains(t, prompt, "**artifact-00** (artifact):\ncontent 00")
	assert.NotContains(t, prompt, "artifact-01", "artifacts without text are skipped")
	assert.Contains(t, prompt, "content 09")
	assert.NotContains(t, prompt, "content 10")
	assert.NotContains(t, prompt, HeadingVisualStyle)
	assert.NotContains(t, prompt, HeadingRequirements)
}

func TestBuildPrompt_VisualStyleBudget(t *testing.T) {
	cfg := config.DefaultPipeline()
	cfg.VisualJSONCharBudget = 50

	prompt := BuildPrompt(proposalBlueprint(), types.RankedArtifacts{}, types.EntityContext{}, "", cfg)

	start := strings.Index(prompt, HeadingVisualStyle+"\n")
	end := strings.Index(prompt, "\n\n"+HeadingInstruction)
	require.True(t, start >= 0 && end > start)
	block := prompt[start+len(HeadingVisualStyle)+1 : end]
	assert.Len(t, []rune(block), 50)
	assert.True(t, strings.HasPrefix(block, "{"))
}

func TestBuildPrompt_EntityContext(t *testing.T) {
	entities := types.EntityContext{
		Project:     &types.Project{Title: "Apollo", Client: "Acme", Description: strings.Repeat("d", 600)},
		Candidate:   &types.Candidate{Name: "Ada", Role: "CTO", Email: "ada@example.com"},
		Interviewer: &types.Interviewer{Name: "Grace", Position: "Partner", Company: "Acme"},
	}
	prompt := BuildPrompt(&types.Blueprint{}, types.RankedArtifacts{}, entities, "", config.DefaultPipeline())

	assert.Contains(t, prompt, HeadingEntities+"\nProject: Apollo\nClient: Acme\nDescription: "+strings.Repeat("d", 500)+"\n")
	assert.NotContains(t, prompt, strings.Repeat("d", 501))
	assert.Contains(t, prompt, "\n\nCandidate: Ada\nRole: CTO\nEmail: ada@example.com")
	assert.Contains(t, prompt, "\n\nInterviewer: Grace\nPosition: Partner\nCompany: Acme")
}

func TestFormatEntities_CandidateOnly(t *testing.T) {
	got := formatEntities(types.EntityContext{Candidate: &types.Candidate{}})
	assert.Equal(t, "Candidate: N/A", got)
}

func TestEntityLabel(t *testing.T) {
	assert.Equal(t, "project · job-spec", EntityLabel(types.Artifact{EntityType: types.EntityProject, ArtifactType: "job-spec"}))
	assert.Equal(t, "interviewer", EntityLabel(types.Artifact{EntityType: types.EntityInterviewer}))
	assert.Equal(t, "cv", EntityLabel(types.Artifact{ArtifactType: "cv"}))
	assert.Equal(t, "artifact", EntityLabel(types.Artifact{}))
}

func TestSelectedSummary(t *testing.T) {
	a := types.Artifact{ID: "a", Name: "A", ArtifactType: "cv", EntityType: types.EntityCandidate}
	b := types.Artifact{ID: "b"}
	c := types.Artifact{ID: "c", Name: "C"}
	d := types.Artifact{ID: "d", Name: "D"}

	ranked := types.RankedArtifacts{
		SectionOrder: []string{"s1", "s2"},
		BySection: map[string][]types.ScoredArtifact{
			"s1": {scored(a, 0.12345), scored(b, 0.5)},
			"s2": {scored(a, 0.9), scored(c, 1.0/3)},
		},
		Global: []types.ScoredArtifact{scored(a, 0.5), scored(d, 0.77777), scored(c, 0.2)},
	}

	got := SelectedSummary(ranked)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	assert.Equal(t, 0.123, got[0].Score)
	require.NotNil(t, got[0].SectionID)
	assert.Equal(t, "s1", *got[0].SectionID)
	assert.Equal(t, types.EntityCandidate, got[0].EntityType)
	assert.Equal(t, "Unnamed", got[1].Name)
	assert.Equal(t, "s2", *got[2].SectionID)
	assert.Equal(t, 0.333, got[2].Score)
	assert.Nil(t, got[3].SectionID)
	assert.Equal(t, 0.778, got[3].Score)
}

func TestSelectedSummary_Empty(t *testing.T) {
	got := SelectedSummary(types.RankedArtifacts{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
