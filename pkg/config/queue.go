package config

import "time"

// QueueConfig controls how the content worker polls, claims, and processes
// generations.
type QueueConfig struct {
	// MaxConcurrentTasks is the number of generations a single content worker
	// process handles in parallel.
	MaxConcurrentTasks int

	// ChunkConcurrency bounds parallel chunk-generation calls within one
	// generation.
	ChunkConcurrency int

	// PollInterval is the base interval between claim attempts.
	PollInterval time.Duration

	// PollIntervalJitter is the random jitter applied to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration

	// StuckLockThreshold is how long a generation may sit in a *_lock status
	// before it is force-reset to its entry state.
	StuckLockThreshold time.Duration

	// GracefulShutdownTimeout is the max time to wait for in-flight
	// generations during shutdown.
	GracefulShutdownTimeout time.Duration
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		MaxConcurrentTasks:      2,
		ChunkConcurrency:        4,
		PollInterval:            30 * time.Second,
		PollIntervalJitter:      5 * time.Second,
		StuckLockThreshold:      1 * time.Hour,
		GracefulShutdownTimeout: 10 * time.Minute,
	}
}

// LoadQueueConfig applies environment overrides to the defaults.
func LoadQueueConfig() *QueueConfig {
	cfg := DefaultQueueConfig()
	cfg.MaxConcurrentTasks = getEnvInt("MAX_CONCURRENT_TASKS", cfg.MaxConcurrentTasks)
	cfg.ChunkConcurrency = getEnvInt("CHUNK_CONCURRENCY", cfg.ChunkConcurrency)
	return cfg
}
