package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
)

// stuckState tracks stuck-lock recovery metrics (thread-safe).
type stuckState struct {
	mu             sync.Mutex
	lastStuckScan  time.Time
	stuckRecovered int64
}

// WorkerPool manages the content workers plus the stuck-lock recovery
// background task. MaxConcurrentTasks workers each process one generation at
// a time, giving the process-level concurrency bound.
type WorkerPool struct {
	podID    string
	store    store.Store
	config   *config.QueueConfig
	executor GenerationExecutor
	workers  []*Worker
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	started  bool

	stuck stuckState
}

// NewWorkerPool creates a content worker pool.
func NewWorkerPool(podID string, st store.Store, cfg *config.QueueConfig, executor GenerationExecutor) *WorkerPool {
	return &WorkerPool{
		podID:    podID,
		store:    st,
		config:   cfg,
		executor: executor,
		workers:  make([]*Worker, 0, cfg.MaxConcurrentTasks),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns worker goroutines and the stuck-lock recovery task.
// It is safe to call multiple times; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) error {
	if p.started {
		slog.Warn("Worker pool already started, ignoring duplicate Start call", "pod_id", p.podID)
		return nil
	}
	p.started = true

	slog.Info("Starting content worker pool", "pod_id", p.podID, "worker_count", p.config.MaxConcurrentTasks)

	for i := 0; i < p.config.MaxConcurrentTasks; i++ {
		workerID := fmt.Sprintf("%s-content-%d", p.podID, i)
		worker := NewWorker(workerID, p.podID, p.store, p.config, p.executor)
		p.workers = append(p.workers, worker)
		worker.Start(ctx)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runStuckRecovery(ctx)
	}()

	slog.Info("Content worker pool started")
	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// Workers finish their current generations before exiting.
func (p *WorkerPool) Stop() {
	slog.Info("Stopping content worker pool gracefully")

	for _, worker := range p.workers {
		worker.Stop()
	}

	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()

	slog.Info("Content worker pool stopped gracefully")
}

// runStuckRecovery periodically force-resets generations abandoned in
// processing_lock. All pods run this independently; the update predicate
// makes it idempotent.
func (p *WorkerPool) runStuckRecovery(ctx context.Context) {
	interval := p.config.StuckLockThreshold / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			if err := p.recoverStuck(ctx); err != nil {
				slog.Error("Stuck-lock recovery failed", "error", err)
			}
		}
	}
}

func (p *WorkerPool) recoverStuck(ctx context.Context) error {
	n, err := RecoverStuckLocks(ctx, p.store, p.config.StuckLockThreshold)
	p.stuck.mu.Lock()
	p.stuck.lastStuckScan = time.Now()
	p.stuck.stuckRecovered += n
	p.stuck.mu.Unlock()
	return err
}

// RecoverStuckLocks resets generations stuck in either lock status to their
// entry states: processing_lock back to pending, audio_processing_lock back
// to content_ready. Also called once at startup before workers begin.
func RecoverStuckLocks(ctx context.Context, st store.Store, threshold time.Duration) (int64, error) {
	var total int64

	n, err := st.RecoverStuckGenerations(ctx, models.StatusProcessingLock, threshold,
		models.StatusPending, "Reset from stuck processing_lock")
	total += n
	if err != nil {
		return total, fmt.Errorf("recovering stuck content locks: %w", err)
	}
	if n > 0 {
		slog.Warn("Recovered stuck content locks", "count", n)
	}

	n, err = st.RecoverStuckGenerations(ctx, models.StatusAudioProcessingLock, threshold,
		models.StatusContentReady, "Reset from stuck audio_processing_lock")
	total += n
	if err != nil {
		return total, fmt.Errorf("recovering stuck audio locks: %w", err)
	}
	if n > 0 {
		slog.Warn("Recovered stuck audio locks", "count", n)
	}

	return total, nil
}

// Health returns the current health status of the pool.
func (p *WorkerPool) Health(ctx context.Context) *PoolHealth {
	storeErr := p.store.Ping(ctx)

	workerStats := make([]WorkerHealth, len(p.workers))
	activeWorkers := 0
	for i, worker := range p.workers {
		stats := worker.Health()
		workerStats[i] = stats
		if stats.Status == WorkerStatusWorking {
			activeWorkers++
		}
	}

	p.stuck.mu.Lock()
	lastScan := p.stuck.lastStuckScan
	recovered := p.stuck.stuckRecovered
	p.stuck.mu.Unlock()

	health := &PoolHealth{
		IsHealthy:      len(p.workers) > 0 && storeErr == nil,
		StoreReachable: storeErr == nil,
		PodID:          p.podID,
		ActiveWorkers:  activeWorkers,
		TotalWorkers:   len(p.workers),
		WorkerStats:    workerStats,
		LastStuckScan:  lastScan,
		StuckRecovered: recovered,
	}
	if storeErr != nil {
		health.StoreError = storeErr.Error()
	}
	return health
}
