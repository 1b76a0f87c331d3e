package pipeline

import (
	"fmt"
	"strings"
)

// Stage names
const (
	StagePreprocess = "preprocess"
	StageSemantic   = "semantic"
	StageLayout     = "layout"
	StageVisual     = "visual"
	StageAssemble   = "assemble"
)

// Stage categories
const (
	CategoryIngestion = "ingestion"
	CategoryAnalysis  = "analysis"
	CategoryAssembly  = "assembly"
)

// StageDefinition defines metadata for a pipeline stage
type StageDefinition struct {
	Name         string
	Category     string
	Dependencies []string
	// Activity names the stage in failure messages
	Activity string
	// Fatal stages end the run on failure; the others degrade to defaults
	Fatal bool
}

// StageRegistry holds all stage definitions
var StageRegistry = map[string]StageDefinition{
	StagePreprocess: {
		Name:         StagePreprocess,
		Category:     CategoryIngestion,
		Dependencies: []string{},
		Activity:     "preprocessing",
		Fatal:        true,
	},
	StageSemantic: {
		Name:         StageSemantic,
		Category:     CategoryAnalysis,
		Dependencies: []string{StagePreprocess},
		Activity:     "semantic analysis",
	},
	StageLayout: {
		Name:         StageLayout,
		Category:     CategoryAnalysis,
		Dependencies: []string{StagePreprocess},
		Activity:     "layout analysis",
	},
	StageVisual: {
		Name:         StageVisual,
		Category:     CategoryAnalysis,
		Dependencies: []string{StagePreprocess},
		Activity:     "visual analysis",
	},
	StageAssemble: {
		Name:         StageAssemble,
		Category:     CategoryAssembly,
		Dependencies: []string{StageSemantic, StageLayout, StageVisual},
		Activity:     "assembly",
		Fatal:        true,
	},
}

// DependencyError is returned when a stage starts before the stages it reads from
type DependencyError struct {
	Stage   string
	Missing []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("stage %s is missing dependencies: %s", e.Stage, strings.Join(e.Missing, ", "))
}

// ValidateDependencies checks that every dependency of stage is in done.
// A degraded stage still counts as done.
func ValidateDependencies(stage string, done map[string]bool) error {
	def, ok := StageRegistry[stage]
	if !ok {
		return fmt.Errorf("unknown stage: %s", stage)
	}
	var missing []string
	for _, dep := range def.Dependencies {
		if !done[dep] {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return &DependencyError{Stage: stage, Missing: missing}
	}
	return nil
}

// activity is the stage label used in failure messages
func activity(stage string) string {
	if a := StageRegistry[stage].Activity; a != "" {
		return a
	}
	return stage
}
