package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
)

// Worker is a single content worker: it polls, claims one generation at a
// time, runs the content pipeline, and writes the terminal status.
type Worker struct {
	id       string
	podID    string
	store    store.Store
	config   *config.QueueConfig
	executor GenerationExecutor
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// Health tracking
	mu                   sync.RWMutex
	status               WorkerStatus
	currentGenerationID  string
	generationsProcessed int
	lastActivity         time.Time
}

// NewWorker creates a content worker.
func NewWorker(id, podID string, st store.Store, cfg *config.QueueConfig, executor GenerationExecutor) *Worker {
	return &Worker{
		id:           id,
		podID:        podID,
		store:        st,
		config:       cfg,
		executor:     executor,
		stopCh:       make(chan struct{}),
		status:       WorkerStatusIdle,
		lastActivity: time.Now(),
	}
}

// Start begins the worker polling loop in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop signals the worker to stop and waits for it to finish.
// It is safe to call Stop multiple times.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
}

// Health returns the current worker health status.
func (w *Worker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorkerHealth{
		ID:                   w.id,
		Status:               w.status,
		CurrentGenerationID:  w.currentGenerationID,
		GenerationsProcessed: w.generationsProcessed,
		LastActivity:         w.lastActivity,
	}
}

// run is the main worker loop.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	log := slog.With("worker_id", w.id, "pod_id", w.podID)
	log.Info("Content worker started")

	for {
		select {
		case <-w.stopCh:
			log.Info("Content worker shutting down")
			return
		case <-ctx.Done():
			log.Info("Context cancelled, content worker shutting down")
			return
		default:
			if err := w.pollAndProcess(ctx); err != nil {
				if errors.Is(err, ErrNoneClaimable) {
					w.sleep(w.pollInterval())
					continue
				}
				log.Error("Error processing generation", "error", err)
				w.sleep(time.Second) // Brief backoff on error
			}
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (w *Worker) sleep(d time.Duration) {
	select {
	case <-w.stopCh:
	case <-time.After(d):
	}
}

// pollAndProcess claims one generation and runs it to a terminal status.
func (w *Worker) pollAndProcess(ctx context.Context) error {
	gen, err := w.store.ClaimNextGeneration(ctx, store.ClaimSpec{
		Statuses: models.ContentClaimable,
		Lock:     models.StatusProcessingLock,
		Order:    store.OrderContent,
	})
	if errors.Is(err, store.ErrNoneClaimable) {
		return ErrNoneClaimable
	}
	if err != nil {
		return fmt.Errorf("claiming generation: %w", err)
	}

	log := slog.With("generation_id", gen.ID.Hex(), "worker_id", w.id)
	log.Info("Generation claimed", "task_type", gen.TaskType, "language", gen.Language, "priority", gen.Priority)

	w.setStatus(WorkerStatusWorking, gen.ID.Hex())
	defer w.setStatus(WorkerStatusIdle, "")

	result := w.execute(ctx, gen)

	// Terminal write uses a background context: the worker context may be
	// cancelled mid-shutdown and the status must still land.
	writeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch {
	case result.Aborted:
		log.Info("Generation aborted by external status change")
	case result.Status == models.StatusContentReady:
		err := w.store.TransitionGeneration(writeCtx, gen.ID,
			[]models.GenerationStatus{models.StatusContentGenerating}, models.StatusContentReady)
		if errors.Is(err, store.ErrStatusConflict) {
			log.Info("Generation status changed during final write, abandoning")
		} else if err != nil {
			return fmt.Errorf("writing content_ready: %w", err)
		}
	default:
		msg := "content pipeline failed"
		if result.Err != nil {
			msg = result.Err.Error()
		}
		err := w.store.FailGeneration(writeCtx, gen.ID, models.ContentInFlight, result.Status, result.Stage, msg)
		if errors.Is(err, store.ErrStatusConflict) {
			log.Info("Generation status changed during failure write, abandoning")
		} else if err != nil {
			return fmt.Errorf("writing failure status: %w", err)
		} else {
			log.Warn("Generation failed", "status", result.Status, "stage", result.Stage, "error", msg)
		}
	}

	w.mu.Lock()
	w.generationsProcessed++
	w.mu.Unlock()

	log.Info("Generation processing complete")
	return nil
}

// execute runs the pipeline with panic containment: a panic becomes a
// terminal content_failed, never a dead worker.
func (w *Worker) execute(ctx context.Context, gen *models.Generation) (result *ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Content pipeline panicked", "generation_id", gen.ID.Hex(), "panic", r)
			result = &ExecutionResult{
				Status: models.StatusContentFailed,
				Stage:  models.StageContent,
				Err:    fmt.Errorf("pipeline panic: %v", r),
			}
		}
	}()

	result = w.executor.Execute(ctx, gen)
	if result == nil {
		result = &ExecutionResult{
			Status: models.StatusContentFailed,
			Stage:  models.StageContent,
			Err:    fmt.Errorf("executor returned nil result"),
		}
	}
	return result
}

// pollInterval returns the poll duration with jitter.
func (w *Worker) pollInterval() time.Duration {
	base := w.config.PollInterval
	jitter := w.config.PollIntervalJitter
	if jitter <= 0 {
		return base
	}
	// Range: [base - jitter, base + jitter]
	offset := time.Duration(rand.Int63n(int64(2 * jitter)))
	return base - jitter + offset
}

// setStatus updates the worker's health tracking state.
func (w *Worker) setStatus(status WorkerStatus, generationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = status
	w.currentGenerationID = generationID
	w.lastActivity = time.Now()
}
