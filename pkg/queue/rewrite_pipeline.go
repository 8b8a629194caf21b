package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
	"github.com/scriptorium/scriptorium/pkg/textsplit"
)

// runRewrite drives the source-script pipeline: derive an outline from the
// source, rewrite the whole script in one call, then cut the result into
// ordered chunks. Unlike the topic pipeline it replaces any existing chunks
// wholesale, since the rewrite regenerates the entire script.
func (e *ContentExecutor) runRewrite(ctx context.Context, gen *models.Generation) *ExecutionResult {
	log := slog.With("generation_id", gen.ID.Hex(), "task_type", gen.TaskType)

	if gen.SourceScript == "" {
		return failed(models.StatusContentFailed, models.StageContent,
			fmt.Errorf("rewrite task has no source script"))
	}

	if err := e.store.TransitionGeneration(ctx, gen.ID,
		[]models.GenerationStatus{models.StatusProcessingLock}, models.StatusContentGenerating); err != nil {
		log.Info("Lost claim before processing started", "error", err)
		return abortedResult()
	}
	gen.Status = models.StatusContentGenerating

	if err := e.ensureEstimates(ctx, gen); err != nil {
		return failed(models.StatusContentFailed, models.StageContent, err)
	}
	if err := e.ensureScriptName(ctx, gen); err != nil {
		return failed(models.StatusContentFailed, models.StageContent, err)
	}

	if gen.DerivedOutline == "" {
		derived, err := e.gen.DeriveOutline(ctx, gen.Model, gen.SourceScript, gen.Language)
		if err != nil {
			return failed(models.StatusOutlineFailed, models.StageOutline, fmt.Errorf("deriving outline: %w", err))
		}
		if err := e.store.PatchGeneration(ctx, gen.ID, store.GenerationPatch{DerivedOutline: &derived}); err != nil {
			return failed(models.StatusOutlineFailed, models.StageOutline, fmt.Errorf("persisting derived outline: %w", err))
		}
		gen.DerivedOutline = derived
		log.Info("Derived outline from source script", "outline_chars", len(derived))
	}

	e.ensureTitleMetadata(ctx, gen)

	script, err := e.gen.RewriteScript(ctx, gen.Model, gen.SourceScript, gen.DerivedOutline, gen.Language, gen.TargetChars)
	if err != nil {
		return failed(models.StatusContentFailed, models.StageContent, fmt.Errorf("rewriting script: %w", err))
	}
	log.Info("Script rewritten", "chars", len(script))

	if e.aborted(ctx, gen, models.StatusContentGenerating) {
		return abortedResult()
	}

	removed, err := e.store.DeleteChunks(ctx, gen.ID)
	if err != nil {
		return failed(models.StatusContentFailed, models.StageContent, fmt.Errorf("clearing previous chunks: %w", err))
	}
	if removed > 0 {
		log.Info("Replaced previous chunks", "removed", removed)
	}

	pieces := textsplit.Split(script, e.cfg.RewriteChunkChars)
	if len(pieces) == 0 {
		return failed(models.StatusContentFailed, models.StageContent,
			fmt.Errorf("rewritten script produced no chunks"))
	}
	for i, piece := range pieces {
		chunk := &models.ScriptChunk{
			GenerationRef: gen.ID,
			SectionIndex:  i,
			SectionTitle:  fmt.Sprintf("Part %d", i+1),
			ItemType:      models.ItemTypeRewriteChunk,
			Level:         1,
			TextContent:   piece,
			ScriptName:    gen.ScriptName,
		}
		if err := e.store.UpsertChunk(ctx, chunk); err != nil {
			return failed(models.StatusContentFailed, models.StageContent,
				fmt.Errorf("persisting rewrite chunk %d: %w", i, err))
		}
	}
	log.Info("Rewrite chunks persisted", "count", len(pieces))

	if e.aborted(ctx, gen, models.StatusContentGenerating) {
		return abortedResult()
	}
	return &ExecutionResult{Status: models.StatusContentReady}
}
