package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
)

// AudioMode selects which language partition an audio runner serves and how
// it schedules chunk synthesis within a generation.
type AudioMode int

const (
	// AudioModeSerial serves the primary language and synthesizes chunks one
	// at a time.
	AudioModeSerial AudioMode = iota

	// AudioModeParallel serves every other language and synthesizes chunks
	// concurrently up to the configured bound.
	AudioModeParallel
)

// AudioRunner polls for generations with finished scripts and turns their
// chunks into audio. Two runners normally exist per process, one per mode;
// they never contend because their language partitions are disjoint.
type AudioRunner struct {
	id             string
	mode           AudioMode
	store          store.Store
	synth          AudioSynthesizer
	cfg            *config.AudioConfig
	stuckThreshold time.Duration
	stopCh         chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup

	mu           sync.RWMutex
	status       WorkerStatus
	currentGenID string
	processed    int
	lastActivity time.Time
}

// NewAudioRunner creates an audio runner for one language partition.
func NewAudioRunner(id string, mode AudioMode, st store.Store, synth AudioSynthesizer, cfg *config.AudioConfig, stuckThreshold time.Duration) *AudioRunner {
	return &AudioRunner{
		id:             id,
		mode:           mode,
		store:          st,
		synth:          synth,
		cfg:            cfg,
		stuckThreshold: stuckThreshold,
		stopCh:         make(chan struct{}),
		status:         WorkerStatusIdle,
		lastActivity:   time.Now(),
	}
}

// Start begins the polling loop in a goroutine.
func (r *AudioRunner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop signals the runner to stop and waits for the current tick to finish.
func (r *AudioRunner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// Health returns the current runner health status.
func (r *AudioRunner) Health() WorkerHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return WorkerHealth{
		ID:                   r.id,
		Status:               r.status,
		CurrentGenerationID:  r.currentGenID,
		GenerationsProcessed: r.processed,
		LastActivity:         r.lastActivity,
	}
}

func (r *AudioRunner) interval() time.Duration {
	if r.mode == AudioModeSerial {
		return r.cfg.SerialInterval
	}
	return r.cfg.ParallelInterval
}

func (r *AudioRunner) run(ctx context.Context) {
	defer r.wg.Done()

	log := slog.With("runner_id", r.id, "mode", r.modeName())
	log.Info("Audio runner started", "interval", r.interval())

	for {
		r.tick(ctx)

		select {
		case <-r.stopCh:
			log.Info("Audio runner shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, audio runner shutting down")
			return
		case <-time.After(r.interval()):
		}
	}
}

func (r *AudioRunner) modeName() string {
	if r.mode == AudioModeSerial {
		return "serial"
	}
	return "parallel"
}

// claimSpec builds the language-partitioned claim predicate for this runner.
func (r *AudioRunner) claimSpec() store.ClaimSpec {
	spec := store.ClaimSpec{
		Statuses: models.AudioClaimable,
		Lock:     models.StatusAudioProcessingLock,
		Order:    store.OrderAudio,
	}
	if r.mode == AudioModeSerial {
		spec.LanguageEquals = r.cfg.PrimaryLanguage
	} else {
		spec.LanguageNotEquals = r.cfg.PrimaryLanguage
	}
	return spec
}

// tick runs one full poll cycle: recover stuck locks, list a candidate batch,
// then claim and process each candidate individually. Claims lost to another
// pod are skipped silently.
func (r *AudioRunner) tick(ctx context.Context) {
	log := slog.With("runner_id", r.id)

	if _, err := RecoverStuckLocks(ctx, r.store, r.stuckThreshold); err != nil {
		log.Error("Stuck-lock recovery failed", "error", err)
	}

	candidates, err := r.store.ListClaimable(ctx, r.claimSpec(), r.cfg.ClaimBatchLimit)
	if err != nil {
		log.Error("Listing claimable generations failed", "error", err)
		return
	}
	if len(candidates) == 0 {
		return
	}
	log.Info("Audio candidates found", "count", len(candidates))

	for i := range candidates {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		gen, err := r.store.ClaimGenerationByID(ctx, candidates[i].ID,
			models.AudioClaimable, models.StatusAudioProcessingLock)
		if errors.Is(err, store.ErrNoneClaimable) || errors.Is(err, store.ErrNotFound) {
			// Another pod won this candidate between list and claim.
			continue
		}
		if err != nil {
			log.Error("Claiming generation for audio failed", "generation_id", candidates[i].ID.Hex(), "error", err)
			continue
		}

		r.setStatus(WorkerStatusWorking, gen.ID.Hex())
		r.processGeneration(ctx, gen)
		r.setStatus(WorkerStatusIdle, "")

		r.mu.Lock()
		r.processed++
		r.mu.Unlock()
	}
}

// processGeneration synthesizes all pending chunks for one claimed
// generation, then settles its status from the chunk counts: any failed
// chunk fails the generation, a full set combines into the final file, and
// a partial set returns it to content_ready for the next tick.
func (r *AudioRunner) processGeneration(ctx context.Context, gen *models.Generation) {
	log := slog.With("generation_id", gen.ID.Hex(), "runner_id", r.id, "language", gen.Language)

	if err := r.store.TransitionGeneration(ctx, gen.ID,
		[]models.GenerationStatus{models.StatusAudioProcessingLock}, models.StatusAudioGenerating); err != nil {
		log.Info("Lost audio claim before processing", "error", err)
		return
	}

	pending, err := r.store.PendingAudioChunks(ctx, gen.ID)
	if err != nil {
		log.Error("Listing pending chunks failed", "error", err)
		r.settle(ctx, gen, log)
		return
	}
	if len(pending) > 0 {
		log.Info("Synthesizing chunk audio", "pending", len(pending))
		r.synthesizeChunks(ctx, gen, pending)
	}

	r.settle(ctx, gen, log)
}

// synthesizeChunks runs TTS for each pending chunk and records the per-chunk
// outcome. The serial mode processes chunks in order; the parallel mode
// bounds concurrency with a semaphore.
func (r *AudioRunner) synthesizeChunks(ctx context.Context, gen *models.Generation, pending []models.ScriptChunk) {
	if r.mode == AudioModeSerial {
		for i := range pending {
			select {
			case <-ctx.Done():
				return
			default:
			}
			r.synthesizeOne(ctx, gen, &pending[i])
		}
		return
	}

	bound := int64(r.cfg.MaxConcurrentChunks)
	if bound < 1 {
		bound = 1
	}
	sem := semaphore.NewWeighted(bound)
	var wg sync.WaitGroup
	for i := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(chunk *models.ScriptChunk) {
			defer wg.Done()
			defer sem.Release(1)
			r.synthesizeOne(ctx, gen, chunk)
		}(&pending[i])
	}
	wg.Wait()
}

// synthesizeOne produces audio for one chunk. The file is fully written and
// verified before the chunk document is updated, so a crash mid-synthesis
// leaves the chunk pending rather than pointing at a partial file.
func (r *AudioRunner) synthesizeOne(ctx context.Context, gen *models.Generation, chunk *models.ScriptChunk) {
	log := slog.With("generation_id", gen.ID.Hex(), "section_index", chunk.SectionIndex)

	path, err := r.synth.CreateChunkAudio(ctx, gen.ID.Hex(), gen.ScriptName, gen.Language, chunk.SectionIndex, chunk.TextContent)
	if err != nil {
		msg := store.TruncateError(err.Error())
		log.Warn("Chunk synthesis failed", "error", err)
		if serr := r.store.SetChunkAudio(ctx, gen.ID, chunk.SectionIndex, "", false, &msg); serr != nil {
			log.Error("Recording chunk failure failed", "error", serr)
		}
		return
	}

	if err := r.store.SetChunkAudio(ctx, gen.ID, chunk.SectionIndex, path, true, nil); err != nil {
		log.Error("Recording chunk audio failed", "error", err)
		return
	}
	log.Info("Chunk audio ready", "path", path)
}

// settle writes the generation's post-synthesis status. Terminal writes use a
// background context so a shutdown mid-settle cannot strand the lock.
func (r *AudioRunner) settle(ctx context.Context, gen *models.Generation, log *slog.Logger) {
	counts, err := r.store.ChunkAudioCounts(ctx, gen.ID)
	if err != nil {
		log.Error("Counting chunk audio failed", "error", err)
		return
	}

	writeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case counts.Failed > 0:
		msg := fmt.Sprintf("%d of %d chunks failed synthesis", counts.Failed, counts.Total)
		err := r.store.FailGeneration(writeCtx, gen.ID, models.AudioInFlight, models.StatusAudioFailed, models.StageAudioChunk, msg)
		if errors.Is(err, store.ErrStatusConflict) {
			log.Info("Generation status changed during settle, abandoning")
		} else if err != nil {
			log.Error("Writing audio_failed status failed", "error", err)
		} else {
			log.Warn("Generation audio failed", "failed", counts.Failed, "total", counts.Total)
		}

	case counts.Total > 0 && counts.Ready == counts.Total:
		r.combine(ctx, writeCtx, gen, log)

	default:
		// Partial or empty set: release for a later tick.
		err := r.store.TransitionGeneration(writeCtx, gen.ID,
			[]models.GenerationStatus{models.StatusAudioGenerating}, models.StatusContentReady)
		if errors.Is(err, store.ErrStatusConflict) {
			log.Info("Generation status changed during settle, abandoning")
		} else if err != nil {
			log.Error("Returning generation to content_ready failed", "error", err)
		}
		log.Info("Audio incomplete, will retry next tick", "ready", counts.Ready, "total", counts.Total)
	}
}

// combine concatenates the ready chunk files in section order and completes
// the generation.
func (r *AudioRunner) combine(ctx context.Context, writeCtx context.Context, gen *models.Generation, log *slog.Logger) {
	chunks, err := r.store.ListChunks(ctx, gen.ID)
	if err != nil {
		log.Error("Listing chunks for combine failed", "error", err)
		return
	}

	paths := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.AudioReady && c.AudioPath != "" {
			paths = append(paths, c.AudioPath)
		}
	}

	finalPath, err := r.synth.CombineChunks(ctx, gen.ID.Hex(), gen.ScriptName, paths)
	if err != nil {
		msg := store.TruncateError(fmt.Sprintf("combining %d chunks: %s", len(paths), err.Error()))
		ferr := r.store.FailGeneration(writeCtx, gen.ID, models.AudioInFlight, models.StatusAudioFailed, models.StageAudioCombine, msg)
		if errors.Is(ferr, store.ErrStatusConflict) {
			log.Info("Generation status changed during combine failure write, abandoning")
		} else if ferr != nil {
			log.Error("Writing audio_failed status failed", "error", ferr)
		}
		log.Error("Combining chunk audio failed", "error", err)
		return
	}

	err = r.store.CompleteGeneration(writeCtx, gen.ID, finalPath)
	if errors.Is(err, store.ErrStatusConflict) {
		log.Info("Generation status changed during completion, abandoning")
		return
	}
	if err != nil {
		log.Error("Writing completed status failed", "error", err)
		return
	}
	log.Info("Generation completed", "final_audio_path", finalPath, "chunks", len(paths))
}

// setStatus updates the runner's health tracking state.
func (r *AudioRunner) setStatus(status WorkerStatus, genID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
	r.currentGenID = genID
	r.lastActivity = time.Now()
}
