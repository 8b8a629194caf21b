// Scriptorium server. Provides the HTTP intake API, runs the content worker
// pool and the audio runners, and drives generations through the pipeline.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/scriptorium/scriptorium/pkg/api"
	"github.com/scriptorium/scriptorium/pkg/audio"
	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/llm"
	"github.com/scriptorium/scriptorium/pkg/queue"
	"github.com/scriptorium/scriptorium/pkg/services"
	"github.com/scriptorium/scriptorium/pkg/store"
	"github.com/scriptorium/scriptorium/pkg/tts"
	"github.com/scriptorium/scriptorium/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	httpPort := getEnv("HTTP_PORT", "8080")
	podID := resolvePodID()

	slog.Info("Starting scriptorium", "version", version.Full(), "http_port", httpPort, "pod_id", podID)

	ctx := context.Background()

	// 1. Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Document store
	st, err := store.Connect(ctx, cfg.Store)
	if err != nil {
		slog.Error("Failed to connect to document store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			slog.Error("Error closing store", "error", err)
		}
	}()
	slog.Info("Connected to document store", "database", cfg.Store.Database)

	// 3. One-time startup stuck-lock recovery
	if n, err := queue.RecoverStuckLocks(ctx, st, cfg.Queue.StuckLockThreshold); err != nil {
		slog.Error("Startup stuck-lock recovery failed", "error", err)
		// Non-fatal, the background scan retries
	} else if n > 0 {
		slog.Info("Recovered stuck locks at startup", "count", n)
	}

	// 4. Language model client
	llmClient := llm.NewClient(cfg.LLM)
	slog.Info("LLM client initialized", "default_model", cfg.LLM.DefaultModel)

	// 5. Speech synthesis
	voices, err := tts.LoadVoiceTable(cfg.TTS.VoiceConfigFile)
	if err != nil {
		slog.Error("Failed to load voice configuration", "path", cfg.TTS.VoiceConfigFile, "error", err)
		os.Exit(1)
	}
	concat := audio.NewFFmpeg(cfg.Audio.FFmpegPath, int64(cfg.TTS.MinFileSizeBytes))
	synth := tts.NewSynthesizer(cfg.TTS, cfg.Audio.OutputRoot, tts.NewRegistry(cfg.TTS), voices, concat)
	slog.Info("Speech synthesis initialized", "output_root", cfg.Audio.OutputRoot)

	// 6. Content worker pool
	execCfg := queue.DefaultExecutorConfig()
	execCfg.ChunkConcurrency = cfg.Queue.ChunkConcurrency
	execCfg.DisplayLanguage = cfg.Audio.PrimaryLanguage
	executor := queue.NewContentExecutor(st, llmClient, cfg.Sizing, execCfg)

	workerPool := queue.NewWorkerPool(podID, st, cfg.Queue, executor)
	if err := workerPool.Start(ctx); err != nil {
		slog.Error("Failed to start worker pool", "error", err)
		os.Exit(1)
	}

	// 7. Audio runners, one per language partition
	serialRunner := queue.NewAudioRunner(podID+"-audio-serial", queue.AudioModeSerial,
		st, synth, cfg.Audio, cfg.Queue.StuckLockThreshold)
	parallelRunner := queue.NewAudioRunner(podID+"-audio-parallel", queue.AudioModeParallel,
		st, synth, cfg.Audio, cfg.Queue.StuckLockThreshold)
	serialRunner.Start(ctx)
	parallelRunner.Start(ctx)
	slog.Info("Audio runners started",
		"primary_language", cfg.Audio.PrimaryLanguage,
		"serial_interval", cfg.Audio.SerialInterval,
		"parallel_interval", cfg.Audio.ParallelInterval)

	// 8. Intake service and HTTP server
	intake := services.NewIntakeService(st, llmClient, services.IntakeConfig{
		DefaultModel:    cfg.LLM.DefaultModel,
		DisplayLanguage: cfg.Audio.PrimaryLanguage,
		SuggestionCount: 5,
	})
	httpServer := api.NewServer(":"+httpPort, intake, workerPool)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", ":"+httpPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Scriptorium started successfully", "pod_id", podID, "workers", cfg.Queue.MaxConcurrentTasks)

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: HTTP first, then workers finish their claims
	httpCtx, httpCancel := context.WithTimeout(ctx, 10*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpCtx); err != nil {
		slog.Warn("HTTP server shutdown error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Queue.GracefulShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		serialRunner.Stop()
		parallelRunner.Stop()
		workerPool.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Workers stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Worker shutdown timeout exceeded, exiting anyway")
	}

	slog.Info("Scriptorium shutdown complete")
}
