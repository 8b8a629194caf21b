package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
	"github.com/scriptorium/scriptorium/pkg/tts"
)

// ExecutorConfig tunes the content pipelines.
type ExecutorConfig struct {
	// ChunkConcurrency bounds parallel chunk-generation calls within one
	// generation.
	ChunkConcurrency int

	// RewriteChunkChars sizes the pieces a rewritten script is cut into.
	RewriteChunkChars int

	// DisplayLanguage is the UI language titles are translated into when it
	// differs from the generation language.
	DisplayLanguage string

	// LengthRatio is the fraction of target_chars the script must reach
	// before the top-up loop stops.
	LengthRatio float64

	// ExtraIterationSlack is added to num_quotes+num_stories to cap the
	// top-up loop.
	ExtraIterationSlack int
}

// DefaultExecutorConfig returns the built-in executor defaults.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		ChunkConcurrency:    4,
		RewriteChunkChars:   3000,
		DisplayLanguage:     "Vietnamese",
		LengthRatio:         0.9,
		ExtraIterationSlack: 20,
	}
}

// ContentExecutor runs the two content pipelines over a claimed generation.
// It advances intermediate statuses itself and persists chunks as it goes;
// the terminal status write belongs to the worker.
type ContentExecutor struct {
	store  store.Store
	gen    Generator
	sizing *config.SizingConfig
	cfg    ExecutorConfig
}

// NewContentExecutor wires the executor.
func NewContentExecutor(st store.Store, gen Generator, sizing *config.SizingConfig, cfg ExecutorConfig) *ContentExecutor {
	if cfg.ChunkConcurrency <= 0 {
		cfg.ChunkConcurrency = 1
	}
	if cfg.LengthRatio <= 0 {
		cfg.LengthRatio = 0.9
	}
	return &ContentExecutor{store: st, gen: gen, sizing: sizing, cfg: cfg}
}

// Execute dispatches on task type.
func (e *ContentExecutor) Execute(ctx context.Context, gen *models.Generation) *ExecutionResult {
	switch gen.TaskType {
	case models.TaskTypeRewriteScript:
		return e.runRewrite(ctx, gen)
	default:
		return e.runFromTopic(ctx, gen)
	}
}

// aborted re-reads the generation and reports whether its status no longer
// matches what this pipeline last wrote. Operator resets and deletes, and
// stuck-lock recovery, all surface here.
func (e *ContentExecutor) aborted(ctx context.Context, gen *models.Generation, expected models.GenerationStatus) bool {
	current, err := e.store.GetGeneration(ctx, gen.ID)
	if errors.Is(err, store.ErrNotFound) {
		return true
	}
	if err != nil {
		slog.Warn("Abort check failed, continuing", "generation_id", gen.ID.Hex(), "error", err)
		return false
	}
	return current.Status != expected
}

// failed builds a failure result for the given stage.
func failed(status models.GenerationStatus, stage string, err error) *ExecutionResult {
	return &ExecutionResult{Status: status, Stage: stage, Err: err}
}

// abortedResult is the no-write outcome.
func abortedResult() *ExecutionResult {
	return &ExecutionResult{Aborted: true}
}

// ensureScriptName persists a stable token used to name the audio directory.
func (e *ContentExecutor) ensureScriptName(ctx context.Context, gen *models.Generation) error {
	if gen.ScriptName != "" {
		return nil
	}
	base := gen.Title
	if base == "" {
		base = string(gen.TaskType)
	}
	name := fmt.Sprintf("%s_%s", tts.SanitizeName(base), strings.ToLower(ulid.Make().String()))
	if err := e.store.PatchGeneration(ctx, gen.ID, store.GenerationPatch{ScriptName: &name}); err != nil {
		return fmt.Errorf("persisting script name: %w", err)
	}
	gen.ScriptName = name
	return nil
}

// ensureEstimates persists sizing on first compute only, so operator edits
// survive re-runs.
func (e *ContentExecutor) ensureEstimates(ctx context.Context, gen *models.Generation) error {
	if gen.TargetChars > 0 {
		return nil
	}
	est := e.sizing.EstimateFor(gen.Language, gen.TargetDuration)
	patch := store.GenerationPatch{
		TargetChars: &est.TargetChars,
		NumQuotes:   &est.NumQuotes,
		NumStories:  &est.NumStories,
	}
	if err := e.store.PatchGeneration(ctx, gen.ID, patch); err != nil {
		return fmt.Errorf("persisting estimates: %w", err)
	}
	gen.TargetChars = est.TargetChars
	gen.NumQuotes = est.NumQuotes
	gen.NumStories = est.NumStories
	return nil
}
