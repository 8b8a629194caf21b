package config

import "time"

// AudioConfig controls the two audio workers and where output files land.
type AudioConfig struct {
	// PrimaryLanguage is processed by the serial worker; every other language
	// goes to the parallel worker.
	PrimaryLanguage string

	// MaxConcurrentChunks bounds per-generation chunk synthesis in the
	// parallel worker.
	MaxConcurrentChunks int

	// SerialInterval and ParallelInterval are the poll intervals of the two
	// audio workers.
	SerialInterval   time.Duration
	ParallelInterval time.Duration

	// ClaimBatchLimit caps how many generations one poll tick may claim.
	ClaimBatchLimit int

	// OutputRoot is the directory audio files are written under.
	OutputRoot string

	// FFmpegPath overrides the ffmpeg binary used for concatenation.
	FFmpegPath string
}

// DefaultAudioConfig returns the built-in audio defaults.
func DefaultAudioConfig() *AudioConfig {
	return &AudioConfig{
		PrimaryLanguage:     "Vietnamese",
		MaxConcurrentChunks: 4,
		SerialInterval:      10 * time.Minute,
		ParallelInterval:    10 * time.Minute,
		ClaimBatchLimit:     10,
		OutputRoot:          "./audio_output",
		FFmpegPath:          "ffmpeg",
	}
}

// LoadAudioConfig applies environment overrides to the defaults.
func LoadAudioConfig() *AudioConfig {
	cfg := DefaultAudioConfig()
	cfg.PrimaryLanguage = getEnv("PRIMARY_AUDIO_LANGUAGE", cfg.PrimaryLanguage)
	cfg.MaxConcurrentChunks = getEnvInt("AUDIO_MAX_CONCURRENT_CHUNKS", cfg.MaxConcurrentChunks)
	cfg.SerialInterval = getEnvMinutes("VI_AUDIO_INTERVAL_MINUTES", cfg.SerialInterval)
	cfg.ParallelInterval = getEnvMinutes("OTHER_AUDIO_INTERVAL_MINUTES", cfg.ParallelInterval)
	cfg.OutputRoot = getEnv("LOCAL_AUDIO_OUTPUT_PATH", cfg.OutputRoot)
	cfg.FFmpegPath = getEnv("FFMPEG_PATH", cfg.FFmpegPath)
	return cfg
}
