package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/llm"
	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/outline"
	"github.com/scriptorium/scriptorium/pkg/store"
)

// runFromTopic drives the seed-topic pipeline: outline, metadata, chunk
// fan-out, then the length top-up loop. It resumes cleanly after failures:
// the outline, estimates, metadata and existing chunks are all reused when
// already present.
func (e *ContentExecutor) runFromTopic(ctx context.Context, gen *models.Generation) *ExecutionResult {
	log := slog.With("generation_id", gen.ID.Hex(), "task_type", gen.TaskType)

	next := models.StatusContentGenerating
	if gen.Outline == "" {
		next = models.StatusGeneratingOutline
	}
	if err := e.store.TransitionGeneration(ctx, gen.ID,
		[]models.GenerationStatus{models.StatusProcessingLock}, next); err != nil {
		log.Info("Lost claim before processing started", "error", err)
		return abortedResult()
	}
	gen.Status = next

	if err := e.ensureEstimates(ctx, gen); err != nil {
		return failed(models.StatusContentFailed, models.StageContent, err)
	}
	if err := e.ensureScriptName(ctx, gen); err != nil {
		return failed(models.StatusContentFailed, models.StageContent, err)
	}

	if gen.Outline == "" {
		est := config.Estimate{
			TargetChars: gen.TargetChars,
			NumQuotes:   gen.NumQuotes,
			NumStories:  gen.NumStories,
		}
		text, err := e.gen.GenerateOutline(ctx, gen.Model, gen.Title, gen.Language, est)
		if err != nil {
			return failed(models.StatusOutlineFailed, models.StageOutline, fmt.Errorf("generating outline: %w", err))
		}
		if err := e.store.PatchGeneration(ctx, gen.ID, store.GenerationPatch{Outline: &text}); err != nil {
			return failed(models.StatusOutlineFailed, models.StageOutline, fmt.Errorf("persisting outline: %w", err))
		}
		gen.Outline = text
		log.Info("Outline generated", "outline_chars", len(text))

		if err := e.store.TransitionGeneration(ctx, gen.ID,
			[]models.GenerationStatus{models.StatusGeneratingOutline}, models.StatusContentGenerating); err != nil {
			log.Info("Lost claim after outline generation", "error", err)
			return abortedResult()
		}
		gen.Status = models.StatusContentGenerating
	}

	// Title metadata is best effort: a failure here never fails the script.
	e.ensureTitleMetadata(ctx, gen)

	parsed, err := outline.Parse(gen.Outline)
	if err != nil {
		return failed(models.StatusContentFailed, models.StageContent, fmt.Errorf("parsing outline: %w", err))
	}
	items := outline.Flatten(parsed)
	if len(items) == 0 {
		return failed(models.StatusContentFailed, models.StageContent, outline.ErrEmptyOutline)
	}

	if err := e.generateChunks(ctx, gen, items); err != nil {
		return failed(models.StatusContentFailed, models.StageContent, err)
	}

	if e.aborted(ctx, gen, models.StatusContentGenerating) {
		return abortedResult()
	}

	if err := e.topUpLength(ctx, gen); err != nil {
		if err == ErrAborted {
			return abortedResult()
		}
		return failed(models.StatusContentFailed, models.StageContent, err)
	}

	return &ExecutionResult{Status: models.StatusContentReady}
}

// ensureTitleMetadata fills in the SEO title, and the display-language
// translation when the generation language differs. Both are idempotent and
// best effort.
func (e *ContentExecutor) ensureTitleMetadata(ctx context.Context, gen *models.Generation) {
	log := slog.With("generation_id", gen.ID.Hex())

	if gen.SEOTitle == "" && gen.Title != "" {
		seo, err := e.gen.GenerateSEOTitle(ctx, gen.Model, gen.Title, gen.Language)
		if err != nil {
			log.Warn("SEO title generation failed, continuing", "error", err)
		} else if err := e.store.PatchGeneration(ctx, gen.ID, store.GenerationPatch{SEOTitle: &seo}); err != nil {
			log.Warn("SEO title persist failed, continuing", "error", err)
		} else {
			gen.SEOTitle = seo
		}
	}

	needsTranslation := gen.TranslatedTitle == "" && gen.Title != "" &&
		!strings.EqualFold(gen.Language, e.cfg.DisplayLanguage)
	if !needsTranslation {
		return
	}
	translated, err := e.gen.TranslateTitle(ctx, gen.Model, gen.Title, e.cfg.DisplayLanguage)
	if err != nil {
		log.Warn("Title translation failed, continuing", "error", err)
		return
	}
	if err := e.store.PatchGeneration(ctx, gen.ID, store.GenerationPatch{TranslatedTitle: &translated}); err != nil {
		log.Warn("Translated title persist failed, continuing", "error", err)
		return
	}
	gen.TranslatedTitle = translated

	if !gen.TopicRef.IsZero() {
		if err := e.store.SetTopicTranslatedTitle(ctx, gen.TopicRef, translated); err != nil {
			log.Warn("Topic translated title update failed, continuing", "error", err)
		}
	}
}

// generateChunks writes one script chunk per flattened outline item, resuming
// from the first index not yet persisted. Items run concurrently under the
// configured bound; each chunk is upserted as soon as its text arrives.
func (e *ContentExecutor) generateChunks(ctx context.Context, gen *models.Generation, items []outline.FlatItem) error {
	start, err := e.store.NextSectionIndex(ctx, gen.ID)
	if err != nil {
		return fmt.Errorf("finding resume point: %w", err)
	}
	if start >= len(items) {
		return nil
	}

	perChunk := gen.TargetChars / len(items)
	if perChunk < 1 {
		perChunk = 1
	}

	slog.Info("Generating script chunks",
		"generation_id", gen.ID.Hex(), "total_items", len(items), "resume_from", start, "per_chunk_chars", perChunk)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.ChunkConcurrency)

	for _, item := range items[start:] {
		item := item
		g.Go(func() error {
			text, err := e.gen.GenerateChunk(gctx, llm.ChunkRequest{
				Model:         gen.Model,
				Language:      gen.Language,
				ScriptTitle:   gen.Title,
				ItemType:      item.Type,
				SectionTitle:  item.Title,
				SectionNotes:  item.Content,
				ParentContext: outline.ParentContent(items, item.Index),
				TargetChars:   perChunk,
			})
			if err != nil {
				return fmt.Errorf("generating chunk %d (%s): %w", item.Index, item.Title, err)
			}
			chunk := &models.ScriptChunk{
				GenerationRef: gen.ID,
				SectionIndex:  item.Index,
				SectionTitle:  item.Title,
				ItemType:      item.Type,
				Level:         item.Level,
				TextContent:   text,
				ScriptName:    gen.ScriptName,
			}
			if err := e.store.UpsertChunk(gctx, chunk); err != nil {
				return fmt.Errorf("persisting chunk %d: %w", item.Index, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// topUpLength appends extra quote and story analyses until the accumulated
// script reaches its length target or the iteration cap. Each iteration
// re-checks the generation status so operator resets take effect quickly.
func (e *ContentExecutor) topUpLength(ctx context.Context, gen *models.Generation) error {
	log := slog.With("generation_id", gen.ID.Hex())

	target := int(float64(gen.TargetChars) * e.cfg.LengthRatio)
	maxIterations := gen.NumQuotes + gen.NumStories + e.cfg.ExtraIterationSlack

	addedQuotes, addedStories, err := e.countAdded(ctx, gen)
	if err != nil {
		return err
	}

	for iter := 0; iter < maxIterations; iter++ {
		text, err := e.store.TextOf(ctx, gen.ID)
		if err != nil {
			return fmt.Errorf("measuring script length: %w", err)
		}
		if len(text) >= target {
			log.Info("Script reached length target", "chars", len(text), "target", target)
			return nil
		}

		if e.aborted(ctx, gen, models.StatusContentGenerating) {
			return ErrAborted
		}

		itemType := models.ItemTypeQuoteAdded
		title := fmt.Sprintf("Added Quote #%d", addedQuotes+1)
		if addedQuotes >= gen.NumQuotes && (addedStories < gen.NumStories || iter%2 == 1) {
			itemType = models.ItemTypeStoryAdded
			title = fmt.Sprintf("Added Story #%d", addedStories+1)
		}

		existing, err := e.store.SectionTitles(ctx, gen.ID, 2, 30)
		if err != nil {
			return fmt.Errorf("listing section titles: %w", err)
		}

		perChunk := gen.TargetChars / max(1, gen.NumQuotes+gen.NumStories)
		content, err := e.gen.GenerateExtraChunk(ctx, gen.Model, itemType, title, gen.Title, gen.Language, existing, perChunk)
		if err != nil {
			return fmt.Errorf("generating extra chunk %q: %w", title, err)
		}

		index, err := e.store.NextSectionIndex(ctx, gen.ID)
		if err != nil {
			return fmt.Errorf("finding next section index: %w", err)
		}
		chunk := &models.ScriptChunk{
			GenerationRef: gen.ID,
			SectionIndex:  index,
			SectionTitle:  title,
			ItemType:      itemType,
			Level:         3,
			TextContent:   content,
			ScriptName:    gen.ScriptName,
		}
		if err := e.store.UpsertChunk(ctx, chunk); err != nil {
			return fmt.Errorf("persisting extra chunk %d: %w", index, err)
		}

		if itemType == models.ItemTypeQuoteAdded {
			addedQuotes++
		} else {
			addedStories++
		}
		log.Info("Added extra section", "title", title, "chars", len(content), "script_chars", len(text)+len(content))

		// Mild pacing between sequential top-up calls.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}

	log.Warn("Length top-up hit iteration cap", "iterations", maxIterations)
	return nil
}

// countAdded counts top-up chunks already present from a previous attempt.
func (e *ContentExecutor) countAdded(ctx context.Context, gen *models.Generation) (quotes, stories int, err error) {
	chunks, err := e.store.ListChunks(ctx, gen.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("listing chunks: %w", err)
	}
	for _, c := range chunks {
		switch c.ItemType {
		case models.ItemTypeQuoteAdded:
			quotes++
		case models.ItemTypeStoryAdded:
			stories++
		}
	}
	return quotes, stories, nil
}
