// Package pipeline provides the high-level orchestration for blueprint extraction.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/docdna/internal/assembly"
	"github.com/jonathan/docdna/internal/config"
	"github.com/jonathan/docdna/internal/db"
	"github.com/jonathan/docdna/internal/layout"
	"github.com/jonathan/docdna/internal/types"
	"github.com/jonathan/docdna/internal/visual"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RecordID string `json:"record_id,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs. The analysis stages
// run concurrently, so it may be called from several goroutines at once.
type ProgressCallback func(event ProgressEvent)

// Preprocessor builds the IDM from raw bytes (stage A)
type Preprocessor interface {
	Build(data []byte, filename string) (*types.Document, error)
}

// SemanticAnalyzer infers the section tree (stage B)
type SemanticAnalyzer interface {
	Analyze(ctx context.Context, doc *types.Document) (types.ContentStructureSpec, error)
}

// LayoutAnalyzer infers page layout (stage C)
type LayoutAnalyzer interface {
	Analyze(ctx context.Context, doc *types.Document) (types.LayoutSpec, error)
}

// VisualAnalyzer infers style tokens (stage D); it also reads the raw bytes
type VisualAnalyzer interface {
	Analyze(ctx context.Context, doc *types.Document, raw []byte) (types.VisualStyleSpec, error)
}

// Input is one document to turn into a Blueprint
type Input struct {
	RecordID     string
	Name         string
	Filename     string
	DocumentType string
	Data         []byte
}

// Stages wires the runner's collaborators
type Stages struct {
	Preprocessor Preprocessor
	Semantic     SemanticAnalyzer
	Layout       LayoutAnalyzer
	Visual       VisualAnalyzer
	Assembler    *assembly.Assembler
}

// Runner executes the pipeline and drives the record status machine
type Runner struct {
	stages     Stages
	store      db.Store
	cfg        config.Pipeline
	logger     *slog.Logger
	onProgress ProgressCallback
	wg         sync.WaitGroup
}

// NewRunner creates a runner. store may be nil when only Run is used.
func NewRunner(stages Stages, store db.Store, cfg config.Pipeline, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if stages.Assembler == nil {
		stages.Assembler = assembly.New(cfg)
	}
	return &Runner{stages: stages, store: store, cfg: cfg, logger: logger}
}

// OnProgress registers a callback for stage events
func (r *Runner) OnProgress(cb ProgressCallback) {
	r.onProgress = cb
}

func (r *Runner) emit(recordID, step, message string, degraded bool, content any) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(ProgressEvent{
		Step:     step,
		Category: StageRegistry[step].Category,
		Message:  message,
		RecordID: recordID,
		Degraded: degraded,
		Content:  content,
	})
}

// Run executes stages A through E. A failing stage either ends the run or
// degrades to defaults carrying an error marker, as its StageRegistry entry says.
func (r *Runner) Run(ctx context.Context, in Input) (*types.Blueprint, error) {
	log := r.logger.With("record_id", in.RecordID)
	done := map[string]bool{}

	// Stage A: preprocessing
	r.emit(in.RecordID, StagePreprocess, "building document model", false, nil)
	pre, err := runStage(ctx, log, StagePreprocess, done, nil,
		func(context.Context) (*types.Document, error) {
			return r.stages.Preprocessor.Build(in.Data, in.Filename)
		})
	if err != nil {
		return nil, err
	}
	doc := pre.Value
	done[StagePreprocess] = true
	log.Info("document model built", "format", doc.SourceFormat, "pages", doc.PageCount,
		"scanned", doc.Metadata.IsScanned)
	r.emit(in.RecordID, StagePreprocess, "document model built", false, doc.Metadata)

	// Stages B, C, D: concurrent; done is only read until Wait returns
	var (
		g         errgroup.Group
		content   types.StageResult[types.ContentStructureSpec]
		layoutRes types.StageResult[types.LayoutSpec]
		visualRes types.StageResult[types.VisualStyleSpec]
	)
	g.Go(func() error {
		var err error
		content, err = runStage(ctx, log, StageSemantic, done,
			func(reason string) types.ContentStructureSpec {
				return types.ContentStructureSpec{Sections: []types.Section{}, Error: reason}
			},
			func(ctx context.Context) (types.ContentStructureSpec, error) {
				return r.stages.Semantic.Analyze(ctx, doc)
			})
		if err != nil {
			return err
		}
		r.emit(in.RecordID, StageSemantic, stageMessage(content.Degraded), content.Degraded, nil)
		return nil
	})
	g.Go(func() error {
		var err error
		layoutRes, err = runStage(ctx, log, StageLayout, done,
			func(reason string) types.LayoutSpec {
				spec := layout.Defaults(r.cfg)
				spec.Error = reason
				return spec
			},
			func(ctx context.Context) (types.LayoutSpec, error) {
				return r.stages.Layout.Analyze(ctx, doc)
			})
		if err != nil {
			return err
		}
		r.emit(in.RecordID, StageLayout, stageMessage(layoutRes.Degraded), layoutRes.Degraded, nil)
		return nil
	})
	g.Go(func() error {
		var err error
		visualRes, err = runStage(ctx, log, StageVisual, done,
			func(reason string) types.VisualStyleSpec {
				spec := visual.Defaults()
				spec.Error = reason
				return spec
			},
			func(ctx context.Context) (types.VisualStyleSpec, error) {
				return r.stages.Visual.Analyze(ctx, doc, in.Data)
			})
		if err != nil {
			return err
		}
		r.emit(in.RecordID, StageVisual, stageMessage(visualRes.Degraded), visualRes.Degraded, nil)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	done[StageSemantic], done[StageLayout], done[StageVisual] = true, true, true

	// Stage E: assembly
	r.emit(in.RecordID, StageAssemble, "assembling blueprint", false, nil)
	meta := assembly.Meta{RecordID: in.RecordID, DocumentType: in.DocumentType}
	assembled, err := runStage(ctx, log, StageAssemble, done, nil,
		func(context.Context) (*types.Blueprint, error) {
			return r.stages.Assembler.Assemble(doc, content, layoutRes, visualRes, meta)
		})
	if err != nil {
		return nil, err
	}
	bp := assembled.Value
	log.Info("blueprint assembled", "blueprint_id", bp.BlueprintID,
		"sections", len(bp.LayoutSpec.SectionOrder),
		"degraded_stages", countDegraded(content.Degraded, layoutRes.Degraded, visualRes.Degraded))
	r.emit(in.RecordID, StageAssemble, "blueprint assembled", false, bp)
	return bp, nil
}

// runStage runs one stage inside a failure boundary. Its dependencies must be in
// done. An error or a panic ends the run when the stage is Fatal or has no
// fallback; otherwise it becomes a degraded result built by fallback.
func runStage[T any](
	ctx context.Context,
	log *slog.Logger,
	name string,
	done map[string]bool,
	fallback func(reason string) T,
	fn func(context.Context) (T, error),
) (res types.StageResult[T], err error) {
	start := time.Now()
	fatal := StageRegistry[name].Fatal || fallback == nil
	fail := func(reason string, cause error) {
		if fatal {
			res, err = types.StageResult[T]{}, fmt.Errorf("%s failed: %w", activity(name), cause)
			return
		}
		res, err = types.Degrade(fallback(reason), reason), nil
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error("stage panicked", "stage", name, "panic", p, "stack", string(debug.Stack()))
			fail(fmt.Sprintf("%s stage panicked: %v", name, p), fmt.Errorf("panic: %v", p))
		}
	}()

	if depErr := ValidateDependencies(name, done); depErr != nil {
		log.Error("stage dependencies missing", "stage", name, "error", depErr)
		fail(depErr.Error(), depErr)
		return res, err
	}

	v, fnErr := fn(ctx)
	if fnErr != nil {
		log.Error("stage failed", "stage", name, "error", fnErr, "duration", time.Since(start))
		fail(fnErr.Error(), fnErr)
		return res, err
	}
	log.Info("stage complete", "stage", name, "duration", time.Since(start))
	return types.Ok(v), nil
}

func stageMessage(degraded bool) string {
	if degraded {
		return "stage degraded to defaults"
	}
	return "stage complete"
}

func countDegraded(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// RunAndStore runs the pipeline for recordID and persists the outcome. It never
// returns an error and never panics: failures end in the error status with a
// truncated message.
func (r *Runner) RunAndStore(ctx context.Context, recordID string, in Input) {
	log := r.logger.With("record_id", recordID)
	in.RecordID = recordID

	defer func() {
		if p := recover(); p != nil {
			log.Error("pipeline panicked", "panic", p, "stack", string(debug.Stack()))
			r.fail(ctx, log, recordID, fmt.Sprintf("pipeline panicked: %v", p))
		}
	}()

	if err := r.store.MarkProcessing(ctx, recordID); err != nil {
		log.Error("failed to mark record processing", "error", err)
	}

	bp, err := r.Run(ctx, in)
	if err != nil {
		log.Error("pipeline failed", "error", err)
		r.fail(ctx, log, recordID, err.Error())
		return
	}

	if err := r.store.MarkReady(ctx, recordID, bp); err != nil {
		log.Error("failed to store blueprint", "error", err)
		r.fail(ctx, log, recordID, fmt.Sprintf("failed to store blueprint: %v", err))
		return
	}
	log.Info("blueprint stored", "blueprint_id", bp.BlueprintID)
}

func (r *Runner) fail(ctx context.Context, log *slog.Logger, recordID, msg string) {
	msg = db.TruncateError(msg, r.cfg.ErrorMessageLimit)
	if err := r.store.MarkError(ctx, recordID, msg); err != nil {
		log.Error("failed to update error status", "error", err)
	}
}

// Start persists the record in the processing state and runs the pipeline on a
// detached goroutine. It returns as soon as the status is stored; callers poll the
// record for the outcome.
func (r *Runner) Start(ctx context.Context, in Input) (string, error) {
	if r.store == nil {
		return "", errors.New("pipeline runner has no record store")
	}

	recordID := in.RecordID
	switch {
	case recordID == "":
		rec, err := r.store.CreateBlueprintRecord(ctx, r.newRecord(in))
		if err != nil {
			return "", err
		}
		recordID = rec.ID
	default:
		err := r.store.MarkProcessing(ctx, recordID)
		if errors.Is(err, db.ErrNotFound) {
			_, err = r.store.CreateBlueprintRecord(ctx, r.newRecord(in))
		}
		if err != nil {
			return "", err
		}
	}

	bg := context.WithoutCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.RunAndStore(bg, recordID, in)
	}()
	return recordID, nil
}

func (r *Runner) newRecord(in Input) db.NewBlueprintRecord {
	name := in.Name
	if name == "" {
		name = in.Filename
	}
	return db.NewBlueprintRecord{ID: in.RecordID, Name: name, DocumentType: in.DocumentType, Filename: in.Filename}
}

// Wait blocks until every run dispatched by Start has finished
func (r *Runner) Wait() {
	r.wg.Wait()
}
