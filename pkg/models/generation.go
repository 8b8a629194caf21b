package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// GenerationStatus is the pipeline state of a Generation.
type GenerationStatus string

// Generation status constants. Transient *_lock statuses exist solely to
// claim exclusivity; a worker that wins the conditional transition owns the
// document until it writes the next status.
const (
	StatusPending             GenerationStatus = "pending"
	StatusProcessingLock      GenerationStatus = "processing_lock"
	StatusGeneratingOutline   GenerationStatus = "generating_outline"
	StatusContentGenerating   GenerationStatus = "content_generating"
	StatusContentReady        GenerationStatus = "content_ready"
	StatusOutlineFailed       GenerationStatus = "outline_failed"
	StatusContentFailed       GenerationStatus = "content_failed"
	StatusAudioProcessingLock GenerationStatus = "audio_processing_lock"
	StatusAudioGenerating     GenerationStatus = "audio_generating"
	StatusAudioFailed         GenerationStatus = "audio_failed"
	StatusCompleted           GenerationStatus = "completed"
	StatusDeleted             GenerationStatus = "deleted"
	StatusReset               GenerationStatus = "reset"
)

// TaskType selects the content pipeline for a Generation.
type TaskType string

const (
	TaskTypeFromTopic     TaskType = "from_topic"
	TaskTypeRewriteScript TaskType = "rewrite_script"
)

// Priority levels. 1 is the highest.
const (
	PriorityHigh   = 1
	PriorityMedium = 2
	PriorityLow    = 3
)

// GenerationError records the terminal failure of a pipeline stage.
type GenerationError struct {
	Stage     string    `bson:"stage" json:"stage"`
	Message   string    `bson:"message" json:"message"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Error stage markers.
const (
	StageOutline      = "outline"
	StageContent      = "content"
	StageAudioChunk   = "audio_chunk"
	StageAudioCombine = "audio_combine"
)

// Generation is one pipeline execution for a Topic.
type Generation struct {
	ID       bson.ObjectID `bson:"_id,omitempty" json:"id"`
	TopicRef bson.ObjectID `bson:"topic_ref,omitempty" json:"topic_ref,omitempty"`

	TaskType       TaskType `bson:"task_type" json:"task_type"`
	Language       string   `bson:"language" json:"language"`
	Model          string   `bson:"model,omitempty" json:"model,omitempty"`
	Priority       int      `bson:"priority" json:"priority"`
	TargetDuration int      `bson:"target_duration_minutes" json:"target_duration_minutes"`
	SourceScript   string   `bson:"source_script,omitempty" json:"source_script,omitempty"`

	Title           string `bson:"title,omitempty" json:"title,omitempty"`
	TranslatedTitle string `bson:"translated_title,omitempty" json:"translated_title,omitempty"`
	SEOTitle        string `bson:"seo_title,omitempty" json:"seo_title,omitempty"`

	Outline        string `bson:"outline,omitempty" json:"outline,omitempty"`
	DerivedOutline string `bson:"derived_outline,omitempty" json:"derived_outline,omitempty"`
	TargetChars    int    `bson:"target_chars,omitempty" json:"target_chars,omitempty"`
	NumQuotes      int    `bson:"num_quotes,omitempty" json:"num_quotes,omitempty"`
	NumStories     int    `bson:"num_stories,omitempty" json:"num_stories,omitempty"`
	ScriptName     string `bson:"script_name,omitempty" json:"script_name,omitempty"`

	Status         GenerationStatus `bson:"status" json:"status"`
	Error          *GenerationError `bson:"error,omitempty" json:"error,omitempty"`
	FinalAudioPath string           `bson:"final_audio_path,omitempty" json:"final_audio_path,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ContentClaimable are the statuses the content worker may claim from.
var ContentClaimable = []GenerationStatus{StatusPending, StatusOutlineFailed, StatusContentFailed}

// AudioClaimable are the statuses the audio workers may claim from.
var AudioClaimable = []GenerationStatus{StatusContentReady, StatusAudioFailed}

// ContentInFlight are the statuses a content worker may hold between its
// claim and its terminal write. A terminal write conditioned on this set
// fails when an operator or the stuck-lock scan took the generation away.
var ContentInFlight = []GenerationStatus{StatusProcessingLock, StatusGeneratingOutline, StatusContentGenerating}

// AudioInFlight is the audio-side equivalent of ContentInFlight.
var AudioInFlight = []GenerationStatus{StatusAudioProcessingLock, StatusAudioGenerating}

// TerminalForTopic reports whether a generation in this status no longer
// blocks enqueueing a new one for the same topic.
func (s GenerationStatus) TerminalForTopic() bool {
	switch s {
	case StatusContentFailed, StatusAudioFailed, StatusDeleted, StatusReset:
		return true
	}
	return false
}
