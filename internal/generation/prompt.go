package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/embedding"
	"github.com/jonathan/docdna/internal/prompts"
	"github.com/jonathan/docdna/internal/types"
)

const (
	maxArtifactsPerSection = 3
	maxGlobalArtifacts     = 10
	maxProjectDescription  = 500
)

// Prompt section headings
const (
	HeadingStructure    = "## DOCUMENT STRUCTURE AND FORMATTING"
	HeadingSections     = "## SECTION CONTENT GUIDANCE"
	HeadingArtifacts    = "## ARTIFACT CONTEXT"
	HeadingEntities     = "## ENTITY CONTEXT"
	HeadingVisualStyle  = "## VISUAL STYLE REQUIREMENTS"
	HeadingRequirements = "## USER REQUIREMENTS"
	HeadingInstruction  = "## INSTRUCTION"
)

var (
	sectionGuidance = prompts.MustGet("generation.json", "section-guidance")
	instruction     = prompts.MustGet("generation.json", "instruction")
)

// BuildPrompt assembles the generation prompt from a Blueprint, its ranked artifacts,
// the entity profiles and the user's free-text requirements.
func BuildPrompt(bp *types.Blueprint, ranked types.RankedArtifacts, entities types.EntityContext, userRequirements string, cfg config.Pipeline) string {
	var b strings.Builder

	b.WriteString(HeadingStructure + "\n")
	b.WriteString(formatStructure(bp))

	sections := bp.ContentStructureSpec.Sections
	if len(sections) > 0 && len(ranked.BySection) > 0 {
		b.WriteString("\n\n" + HeadingSections + "\n")
		b.WriteString(sectionGuidance)
		for _, s := range sections {
			b.WriteString("\n\n### " + s.SectionID)
			if s.Intent != "" {
				b.WriteString("\n_Intent: " + s.Intent + "_")
			}
			if s.RhetoricalPattern != "" {
				b.WriteString("\n_Pattern: " + s.RhetoricalPattern + "_")
			}

			matches := ranked.BySection[s.SectionID]
			if len(matches) == 0 {
				b.WriteString("\n_No specific artifacts matched this section._")
				continue
			}
			if len(matches) > maxArtifactsPerSection {
				matches = matches[:maxArtifactsPerSection]
			}
			for _, m := range matches {
				content := strings.TrimSpace(m.Artifact.Content())
				if content == "" {
					content = fmt.Sprintf("[%s: no text content available]", orDefault(m.Artifact.ArtifactType, "artifact"))
				} else {
					content = embedding.Truncate(content, cfg.PromptArtifactChars)
				}
				writeArtifact(&b, m.Artifact, content)
			}
		}
	} else {
		b.WriteString("\n\n" + HeadingArtifacts)
		global := ranked.Global
		if len(global) > maxGlobalArtifacts {
			global = global[:maxGlobalArtifacts]
		}
		for _, m := range global {
			content := embedding.Truncate(strings.TrimSpace(m.Artifact.Content()), cfg.PromptArtifactChars)
			if content != "" {
				writeArtifact(&b, m.Artifact, content)
			}
		}
	}

	b.WriteString("\n\n" + HeadingEntities + "\n")
	b.WriteString(formatEntities(entities))

	if visual := bp.VisualStyleSpec; len(visual.Typography) > 0 || len(visual.ColorPalette) > 0 {
		if data, err := json.MarshalIndent(visual, "", "  "); err == nil {
			b.WriteString("\n\n" + HeadingVisualStyle + "\n")
			b.WriteString(embedding.Truncate(string(data), cfg.VisualJSONCharBudget))
		}
	}

	if req := strings.TrimSpace(userRequirements); req != "" {
		b.WriteString("\n\n" + HeadingRequirements + "\n" + req)
	}

	b.WriteString("\n\n" + HeadingInstruction + "\n" + instruction)
	return b.String()
}

func writeArtifact(b *strings.Builder, a types.Artifact, content string) {
	fmt.Fprintf(b, "\n\n**%s** (%s):\n%s", orDefault(a.Name, "Artifact"), EntityLabel(a), content)
}

// EntityLabel is the short "entity · type" label shown next to an artifact
func EntityLabel(a types.Artifact) string {
	switch {
	case a.EntityType != "" && a.ArtifactType != "":
		return string(a.EntityType) + " · " + a.ArtifactType
	case a.EntityType != "":
		return string(a.EntityType)
	case a.ArtifactType != "":
		return a.ArtifactType
	default:
		return "artifact"
	}
}

func formatStructure(bp *types.Blueprint) string {
	var lines []string
	if bp.DocumentType != "" {
		lines = append(lines, "Document type: "+bp.DocumentType)
	}
	if sections := bp.ContentStructureSpec.Sections; len(sections) > 0 {
		lines = append(lines, fmt.Sprintf("Section structure (%d sections):", len(sections)))
		for _, s := range sections {
			line := "  • " + s.SectionID
			if s.MicroTemplate != "" {
				line += ": " + s.MicroTemplate
			}
			lines = append(lines, line)
		}
	}
	if c := bp.LayoutSpec.ColumnStructure; c != "" {
		lines = append(lines, "Layout: "+c)
	}
	if p := bp.LayoutSpec.PageSize; p != "" {
		lines = append(lines, "Page size: "+p)
	}
	if len(lines) == 0 {
		return "No structural specification available."
	}
	return strings.Join(lines, "\n")
}

func formatEntities(ec types.EntityContext) string {
	var lines []string
	if p := ec.Project; p != nil {
		lines = append(lines, "Project: "+orDefault(p.Title, "N/A"))
		if p.Client != "" {
			lines = append(lines, "Client: "+p.Client)
		}
		if p.Description != "" {
			lines = append(lines, "Description: "+embedding.Truncate(p.Description, maxProjectDescription))
		}
	}
	if c := ec.Candidate; c != nil {
		lines = append(lines, "", "Candidate: "+orDefault(c.Name, "N/A"))
		if c.Role != "" {
			lines = append(lines, "Role: "+c.Role)
		}
		if c.Company != "" {
			lines = append(lines, "Company: "+c.Company)
		}
		if c.Email != "" {
			lines = append(lines, "Email: "+c.Email)
		}
	}
	if i := ec.Interviewer; i != nil {
		lines = append(lines, "", "Interviewer: "+orDefault(i.Name, "N/A"))
		if i.Position != "" {
			lines = append(lines, "Position: "+i.Position)
		}
		if i.Company != "" {
			lines = append(lines, "Company: "+i.Company)
		}
	}
	if len(lines) == 0 {
		return "No entity context available."
	}
	return strings.TrimLeft(strings.Join(lines, "\n"), "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
