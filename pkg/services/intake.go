// Package services holds the domain operations behind the HTTP surface:
// topic intake, generation enqueueing, and the operator controls. Workers
// never call into this package; they observe its effects through the store.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
)

// TitleClient is the language-model surface the intake service needs.
// Implemented by llm.Client; tests script it.
type TitleClient interface {
	SuggestTitles(ctx context.Context, model, seed, language string, n int) ([]string, error)
	TranslateTitle(ctx context.Context, model, title, toLanguage string) (string, error)
}

// IntakeConfig tunes the intake service.
type IntakeConfig struct {
	// DefaultModel is used when a submission names no model.
	DefaultModel string

	// DisplayLanguage is what suggested titles are translated into for the
	// operator UI.
	DisplayLanguage string

	// SuggestionCount is how many titles one seed produces.
	SuggestionCount int
}

// IntakeService handles topic suggestion, generation enqueueing, and the
// operator delete/reset controls.
type IntakeService struct {
	store store.Store
	llm   TitleClient
	cfg   IntakeConfig
}

// NewIntakeService creates an IntakeService.
func NewIntakeService(st store.Store, llm TitleClient, cfg IntakeConfig) *IntakeService {
	if cfg.SuggestionCount <= 0 {
		cfg.SuggestionCount = 5
	}
	return &IntakeService{store: st, llm: llm, cfg: cfg}
}

// TopicSubmission enqueues a from_topic generation.
type TopicSubmission struct {
	TopicID         bson.ObjectID
	Title           string
	TranslatedTitle string
	Language        string
	Model           string
	Priority        int
	DurationMinutes int
}

// RewriteSubmission enqueues a rewrite_script generation.
type RewriteSubmission struct {
	SourceScript    string
	Language        string
	Model           string
	Priority        int
	DurationMinutes int
}

// Suggestion is one candidate title paired with its display-language
// translation.
type Suggestion struct {
	Original      string `json:"original"`
	TranslationVi string `json:"translation_vi"`
}

// SuggestTopics asks the model for candidate titles for a seed subject.
// Nothing is persisted here; a topic document is created only when a
// suggestion is selected for generation. Titles are translated to the display
// language best effort, falling back to the original on failure.
func (s *IntakeService) SuggestTopics(ctx context.Context, seed, language string) ([]Suggestion, error) {
	if strings.TrimSpace(seed) == "" {
		return nil, NewValidationError("seed", "seed subject is required")
	}
	if strings.TrimSpace(language) == "" {
		return nil, NewValidationError("language", "language is required")
	}

	titles, err := s.llm.SuggestTitles(ctx, s.cfg.DefaultModel, seed, language, s.cfg.SuggestionCount)
	if err != nil {
		return nil, fmt.Errorf("suggesting titles: %w", err)
	}

	suggestions := make([]Suggestion, 0, len(titles))
	for _, title := range titles {
		translated := title
		if !strings.EqualFold(language, s.cfg.DisplayLanguage) {
			if t, err := s.llm.TranslateTitle(ctx, s.cfg.DefaultModel, title, s.cfg.DisplayLanguage); err != nil {
				slog.Warn("Title translation failed, using original", "title", title, "error", err)
			} else {
				translated = t
			}
		}
		suggestions = append(suggestions, Suggestion{Original: title, TranslationVi: translated})
	}
	return suggestions, nil
}

// EnqueueFromTopic creates a pending from_topic generation for a topic and
// links the topic to it. A topic with a generation still in flight is
// rejected with ErrDuplicateActive.
func (s *IntakeService) EnqueueFromTopic(ctx context.Context, sub TopicSubmission) (*models.Generation, error) {
	if strings.TrimSpace(sub.Title) == "" {
		return nil, NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(sub.Language) == "" {
		return nil, NewValidationError("language", "language is required")
	}

	topic, err := s.resolveTopic(ctx, sub)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.FindActiveGeneration(ctx, topic.ID); err == nil {
		return nil, ErrDuplicateActive
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking active generation: %w", err)
	}

	gen, err := s.store.InsertGeneration(ctx, &models.Generation{
		TopicRef:        topic.ID,
		TaskType:        models.TaskTypeFromTopic,
		Language:        sub.Language,
		Model:           s.modelOrDefault(sub.Model),
		Priority:        normalizePriority(sub.Priority),
		TargetDuration:  sub.DurationMinutes,
		Title:           sub.Title,
		TranslatedTitle: sub.TranslatedTitle,
		Status:          models.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting generation: %w", err)
	}

	if err := s.store.LinkTopic(ctx, topic.ID, gen.ID, models.TopicGenerationPending); err != nil {
		return nil, fmt.Errorf("linking topic: %w", err)
	}

	slog.Info("Generation enqueued", "generation_id", gen.ID.Hex(),
		"topic_id", topic.ID.Hex(), "language", gen.Language, "priority", gen.Priority)
	return gen, nil
}

// resolveTopic fetches the submitted topic, or upserts one by title when the
// submission carries no id.
func (s *IntakeService) resolveTopic(ctx context.Context, sub TopicSubmission) (*models.Topic, error) {
	if !sub.TopicID.IsZero() {
		topic, err := s.store.GetTopic(ctx, sub.TopicID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("fetching topic: %w", err)
		}
		return topic, nil
	}
	topic, err := s.store.UpsertTopicByTitle(ctx, sub.Title, sub.TranslatedTitle, sub.Language)
	if err != nil {
		return nil, fmt.Errorf("upserting topic: %w", err)
	}
	return topic, nil
}

// EnqueueRewrite creates a pending rewrite_script generation from a source
// script. The topic is keyed by the leading snippet of the script, and the
// same duplicate suppression applies.
func (s *IntakeService) EnqueueRewrite(ctx context.Context, sub RewriteSubmission) (*models.Generation, error) {
	if strings.TrimSpace(sub.SourceScript) == "" {
		return nil, NewValidationError("source_script", "source script is required")
	}
	if strings.TrimSpace(sub.Language) == "" {
		return nil, NewValidationError("language", "language is required")
	}

	topic, err := s.store.UpsertTopicBySnippet(ctx, sub.SourceScript, sub.Language)
	if err != nil {
		return nil, fmt.Errorf("upserting topic: %w", err)
	}

	if _, err := s.store.FindActiveGeneration(ctx, topic.ID); err == nil {
		return nil, ErrDuplicateActive
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("checking active generation: %w", err)
	}

	gen, err := s.store.InsertGeneration(ctx, &models.Generation{
		TopicRef:       topic.ID,
		TaskType:       models.TaskTypeRewriteScript,
		Language:       sub.Language,
		Model:          s.modelOrDefault(sub.Model),
		Priority:       normalizePriority(sub.Priority),
		TargetDuration: sub.DurationMinutes,
		SourceScript:   sub.SourceScript,
		Title:          topic.Title,
		Status:         models.StatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("inserting generation: %w", err)
	}

	if err := s.store.LinkTopic(ctx, topic.ID, gen.ID, models.TopicGenerationPending); err != nil {
		return nil, fmt.Errorf("linking topic: %w", err)
	}

	slog.Info("Rewrite enqueued", "generation_id", gen.ID.Hex(), "topic_id", topic.ID.Hex(), "language", gen.Language)
	return gen, nil
}

// DeleteTopic removes a topic, allowed only while it is an unlinked
// suggestion. Topics linked to a generation must have the generation deleted
// first.
func (s *IntakeService) DeleteTopic(ctx context.Context, id bson.ObjectID) error {
	topic, err := s.store.GetTopic(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetching topic: %w", err)
	}
	if topic.Linked() {
		return ErrTopicLinked
	}
	if topic.Status != models.TopicSuggested {
		return ErrTopicNotSuggested
	}
	if err := s.store.DeleteTopic(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting topic: %w", err)
	}
	slog.Info("Topic deleted", "topic_id", id.Hex())
	return nil
}

// DeleteGeneration removes a generation and its chunks, and returns its topic
// to the suggestion pool. A worker still holding the generation aborts on its
// next status check.
func (s *IntakeService) DeleteGeneration(ctx context.Context, id bson.ObjectID) error {
	gen, err := s.store.GetGeneration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetching generation: %w", err)
	}

	removed, err := s.store.DeleteChunks(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if err := s.store.DeleteGeneration(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("deleting generation: %w", err)
	}

	if !gen.TopicRef.IsZero() {
		if err := s.store.UnlinkTopic(ctx, gen.TopicRef, models.TopicSuggested); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Unlinking topic after delete failed", "topic_id", gen.TopicRef.Hex(), "error", err)
		}
	}

	slog.Info("Generation deleted", "generation_id", id.Hex(), "chunks_removed", removed)
	return nil
}

// ResetGeneration returns a generation to pending for a clean re-run: chunks
// are deleted and derived state is cleared. A worker mid-flight on it aborts
// on its next conditional write.
func (s *IntakeService) ResetGeneration(ctx context.Context, id bson.ObjectID) error {
	gen, err := s.store.GetGeneration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetching generation: %w", err)
	}

	removed, err := s.store.DeleteChunks(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	if err := s.store.ResetGeneration(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("resetting generation: %w", err)
	}

	if !gen.TopicRef.IsZero() {
		if err := s.store.LinkTopic(ctx, gen.TopicRef, id, models.TopicGenerationPending); err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.Warn("Relinking topic after reset failed", "topic_id", gen.TopicRef.Hex(), "error", err)
		}
	}

	slog.Info("Generation reset", "generation_id", id.Hex(), "chunks_removed", removed)
	return nil
}

// ResetTopicLink clears a topic's dangling generation reference. It refuses
// when the referenced generation still exists; delete or reset that instead.
func (s *IntakeService) ResetTopicLink(ctx context.Context, id bson.ObjectID) error {
	topic, err := s.store.GetTopic(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("fetching topic: %w", err)
	}
	if !topic.Linked() {
		return nil
	}

	if _, err := s.store.GetGeneration(ctx, topic.GenerationRef); err == nil {
		return ErrTopicLinked
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("checking linked generation: %w", err)
	}

	if err := s.store.UnlinkTopic(ctx, id, models.TopicGenerationReset); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("unlinking topic: %w", err)
	}
	slog.Info("Topic link reset", "topic_id", id.Hex())
	return nil
}

// GenerationStatus reports a generation's current state for polling clients.
func (s *IntakeService) GenerationStatus(ctx context.Context, id bson.ObjectID) (*models.Generation, error) {
	gen, err := s.store.GetGeneration(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching generation: %w", err)
	}
	return gen, nil
}

func (s *IntakeService) modelOrDefault(model string) string {
	if model != "" {
		return model
	}
	return s.cfg.DefaultModel
}

// normalizePriority clamps unknown priorities to medium.
func normalizePriority(p int) int {
	switch p {
	case models.PriorityHigh, models.PriorityMedium, models.PriorityLow:
		return p
	default:
		return models.PriorityMedium
	}
}
