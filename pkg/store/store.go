// Package store provides typed operations over the shared document store.
// Exclusivity between workers is achieved entirely through the conditional
// update predicates here; there are no locks in shared memory.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/scriptorium/scriptorium/pkg/models"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrNoneClaimable indicates no generation matched the claim predicate.
	ErrNoneClaimable = errors.New("no claimable generation")

	// ErrStatusConflict is returned when a conditional status update matched
	// nothing: another worker or an operator changed the status first.
	ErrStatusConflict = errors.New("generation status changed concurrently")
)

// ClaimOrder selects the claim ordering for a worker kind.
type ClaimOrder int

const (
	// OrderContent sorts by (status asc, priority asc, created_at asc):
	// priority 1 beats priority 3, older beats newer within a priority.
	OrderContent ClaimOrder = iota

	// OrderAudio sorts by (priority desc, created_at asc), matching the
	// historical audio scheduling behavior.
	OrderAudio
)

// ClaimSpec describes one atomic claim attempt.
type ClaimSpec struct {
	Statuses []models.GenerationStatus
	Lock     models.GenerationStatus
	Order    ClaimOrder

	// LanguageEquals / LanguageNotEquals optionally restrict the claim to a
	// language partition. At most one should be set.
	LanguageEquals    string
	LanguageNotEquals string
}

// ChunkCounts summarizes audio progress for a generation.
type ChunkCounts struct {
	Total  int64
	Ready  int64
	Failed int64
}

// GenerationPatch carries optional field updates. Nil pointers are left
// untouched.
type GenerationPatch struct {
	Outline         *string
	DerivedOutline  *string
	TargetChars     *int
	NumQuotes       *int
	NumStories      *int
	ScriptName      *string
	SEOTitle        *string
	TranslatedTitle *string
	Status          *models.GenerationStatus
}

// Store is the persistence boundary of the pipeline. Both workers and the
// intake service speak only this interface; tests substitute an in-memory
// implementation.
type Store interface {
	// Generations.
	InsertGeneration(ctx context.Context, g *models.Generation) (*models.Generation, error)
	GetGeneration(ctx context.Context, id bson.ObjectID) (*models.Generation, error)
	DeleteGeneration(ctx context.Context, id bson.ObjectID) error
	FindActiveGeneration(ctx context.Context, topicID bson.ObjectID) (*models.Generation, error)

	// ClaimNextGeneration atomically finds the best-ranked generation whose
	// status is in spec.Statuses and moves it to spec.Lock, refreshing
	// updated_at. Returns the post-update document so the caller observes
	// the locked state, or ErrNoneClaimable.
	ClaimNextGeneration(ctx context.Context, spec ClaimSpec) (*models.Generation, error)

	// ClaimGenerationByID is the per-document variant used by the audio
	// workers after listing a candidate batch.
	ClaimGenerationByID(ctx context.Context, id bson.ObjectID, from []models.GenerationStatus, lock models.GenerationStatus) (*models.Generation, error)
	ListClaimable(ctx context.Context, spec ClaimSpec, limit int) ([]models.Generation, error)

	// TransitionGeneration conditionally moves id from one of `from` to `to`.
	// Returns ErrStatusConflict when the predicate no longer holds.
	TransitionGeneration(ctx context.Context, id bson.ObjectID, from []models.GenerationStatus, to models.GenerationStatus) error

	// FailGeneration writes a terminal failure status, conditioned on the
	// generation still being in one of `from`. Returns ErrStatusConflict when
	// the holder already lost the generation to an operator or another worker.
	FailGeneration(ctx context.Context, id bson.ObjectID, from []models.GenerationStatus, status models.GenerationStatus, stage, message string) error
	CompleteGeneration(ctx context.Context, id bson.ObjectID, finalAudioPath string) error
	PatchGeneration(ctx context.Context, id bson.ObjectID, patch GenerationPatch) error

	// ResetGeneration returns a generation to pending: clears outlines,
	// error and final audio path. Chunk deletion is a separate call.
	ResetGeneration(ctx context.Context, id bson.ObjectID) error

	// RecoverStuckGenerations force-resets every generation sitting in
	// `lock` whose updated_at is older than the threshold. Returns the
	// number of recovered documents.
	RecoverStuckGenerations(ctx context.Context, lock models.GenerationStatus, olderThan time.Duration, reset models.GenerationStatus, note string) (int64, error)

	// Chunks.
	UpsertChunk(ctx context.Context, c *models.ScriptChunk) error
	DeleteChunks(ctx context.Context, genID bson.ObjectID) (int64, error)
	ListChunks(ctx context.Context, genID bson.ObjectID) ([]models.ScriptChunk, error)
	PendingAudioChunks(ctx context.Context, genID bson.ObjectID) ([]models.ScriptChunk, error)
	SetChunkAudio(ctx context.Context, genID bson.ObjectID, sectionIndex int, audioPath string, ready bool, audioErr *string) error
	ChunkAudioCounts(ctx context.Context, genID bson.ObjectID) (ChunkCounts, error)
	TextOf(ctx context.Context, genID bson.ObjectID) (string, error)
	NextSectionIndex(ctx context.Context, genID bson.ObjectID) (int, error)
	SectionTitles(ctx context.Context, genID bson.ObjectID, minLevel, limit int) ([]string, error)

	// Topics.
	GetTopic(ctx context.Context, id bson.ObjectID) (*models.Topic, error)
	UpsertTopicByTitle(ctx context.Context, title, translatedTitle, language string) (*models.Topic, error)
	UpsertTopicBySnippet(ctx context.Context, snippet, language string) (*models.Topic, error)
	LinkTopic(ctx context.Context, topicID, genID bson.ObjectID, status models.TopicStatus) error
	UnlinkTopic(ctx context.Context, topicID bson.ObjectID, status models.TopicStatus) error
	SetTopicTranslatedTitle(ctx context.Context, topicID bson.ObjectID, translatedTitle string) error
	DeleteTopic(ctx context.Context, id bson.ObjectID) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// ErrorMessageLimit caps stored error messages.
const ErrorMessageLimit = 500

// TruncateError shortens an error message for storage.
func TruncateError(msg string) string {
	if len(msg) > ErrorMessageLimit {
		return msg[:ErrorMessageLimit]
	}
	return msg
}
