// Package queue provides the polling workers that drive generations through
// the pipeline state machine. Exclusivity comes entirely from conditional
// status updates in the store; workers on different hosts coordinate through
// those alone.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/llm"
	"github.com/scriptorium/scriptorium/pkg/models"
)

// Sentinel errors for queue operations.
var (
	// ErrNoneClaimable indicates no generation matched the claim predicate
	// this tick.
	ErrNoneClaimable = errors.New("no claimable generations")

	// ErrAborted indicates the generation's status was changed externally
	// (reset, delete, stuck-lock recovery) and the worker abandoned it
	// without writing a terminal status.
	ErrAborted = errors.New("generation aborted by external status change")
)

// Generator is the language model surface the content pipelines need.
// Implemented by llm.Client; tests script it.
type Generator interface {
	GenerateOutline(ctx context.Context, model, title, language string, est config.Estimate) (string, error)
	GenerateChunk(ctx context.Context, req llm.ChunkRequest) (string, error)
	GenerateExtraChunk(ctx context.Context, model, itemType, title, scriptTitle, language string, existingTitles []string, targetChars int) (string, error)
	GenerateSEOTitle(ctx context.Context, model, title, language string) (string, error)
	TranslateTitle(ctx context.Context, model, title, toLanguage string) (string, error)
	DeriveOutline(ctx context.Context, model, sourceScript, language string) (string, error)
	RewriteScript(ctx context.Context, model, sourceScript, derivedOutline, language string, targetChars int) (string, error)
}

// AudioSynthesizer is the speech surface the audio runners need.
// Implemented by tts.Synthesizer; tests script it.
type AudioSynthesizer interface {
	CreateChunkAudio(ctx context.Context, generationID, scriptName, language string, sectionIndex int, text string) (string, error)
	CombineChunks(ctx context.Context, generationID, scriptName string, chunkPaths []string) (string, error)
}

// GenerationExecutor processes one claimed generation. The executor advances
// intermediate statuses itself and writes chunks progressively; the worker
// only handles claiming and the terminal status write.
type GenerationExecutor interface {
	Execute(ctx context.Context, gen *models.Generation) *ExecutionResult
}

// ExecutionResult is the terminal outcome of one processing attempt.
type ExecutionResult struct {
	// Status is the terminal status to write. Empty when Aborted.
	Status models.GenerationStatus

	// Stage and Err describe the failure when Status is a failure sink.
	Stage string
	Err   error

	// Aborted means an external status change was observed; the worker must
	// not write anything.
	Aborted bool
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// PoolHealth contains health information for the content worker pool.
type PoolHealth struct {
	IsHealthy      bool           `json:"is_healthy"`
	StoreReachable bool           `json:"store_reachable"`
	StoreError     string         `json:"store_error,omitempty"`
	PodID          string         `json:"pod_id"`
	ActiveWorkers  int            `json:"active_workers"`
	TotalWorkers   int            `json:"total_workers"`
	WorkerStats    []WorkerHealth `json:"worker_stats"`
	LastStuckScan  time.Time      `json:"last_stuck_scan"`
	StuckRecovered int64          `json:"stuck_recovered"`
}

// WorkerHealth contains health information for a single worker.
type WorkerHealth struct {
	ID                   string       `json:"id"`
	Status               WorkerStatus `json:"status"`
	CurrentGenerationID  string       `json:"current_generation_id,omitempty"`
	GenerationsProcessed int          `json:"generations_processed"`
	LastActivity         time.Time    `json:"last_activity"`
}
