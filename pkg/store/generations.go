package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/scriptorium/scriptorium/pkg/models"
)

func statusIn(statuses []models.GenerationStatus) bson.M {
	vals := make(bson.A, len(statuses))
	for i, s := range statuses {
		vals[i] = s
	}
	return bson.M{"$in": vals}
}

func (spec ClaimSpec) filter() bson.M {
	filter := bson.M{"status": statusIn(spec.Statuses)}
	if spec.LanguageEquals != "" {
		filter["language"] = spec.LanguageEquals
	} else if spec.LanguageNotEquals != "" {
		filter["language"] = bson.M{"$ne": spec.LanguageNotEquals}
	}
	return filter
}

func (spec ClaimSpec) sort() bson.D {
	switch spec.Order {
	case OrderAudio:
		return bson.D{{Key: "priority", Value: -1}, {Key: "created_at", Value: 1}}
	default:
		return bson.D{{Key: "status", Value: 1}, {Key: "priority", Value: 1}, {Key: "created_at", Value: 1}}
	}
}

// InsertGeneration creates a new generation document.
func (m *Mongo) InsertGeneration(ctx context.Context, g *models.Generation) (*models.Generation, error) {
	now := time.Now().UTC()
	if g.ID.IsZero() {
		g.ID = bson.NewObjectID()
	}
	g.CreatedAt = now
	g.UpdatedAt = now

	if _, err := m.generations().InsertOne(ctx, g); err != nil {
		return nil, fmt.Errorf("inserting generation: %w", err)
	}
	return g, nil
}

// GetGeneration fetches a generation by id.
func (m *Mongo) GetGeneration(ctx context.Context, id bson.ObjectID) (*models.Generation, error) {
	var g models.Generation
	err := m.generations().FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching generation: %w", err)
	}
	return &g, nil
}

// DeleteGeneration removes a generation document. Chunks are deleted
// separately by the caller.
func (m *Mongo) DeleteGeneration(ctx context.Context, id bson.ObjectID) error {
	res, err := m.generations().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting generation: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// FindActiveGeneration returns a non-terminal generation linked to the topic,
// or ErrNotFound. Used for duplicate suppression at enqueue time.
func (m *Mongo) FindActiveGeneration(ctx context.Context, topicID bson.ObjectID) (*models.Generation, error) {
	terminal := bson.A{
		models.StatusContentFailed,
		models.StatusAudioFailed,
		models.StatusDeleted,
		models.StatusReset,
	}
	var g models.Generation
	err := m.generations().FindOne(ctx, bson.M{
		"topic_ref": topicID,
		"status":    bson.M{"$nin": terminal},
	}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding active generation: %w", err)
	}
	return &g, nil
}

// ClaimNextGeneration atomically claims the best-ranked matching generation.
func (m *Mongo) ClaimNextGeneration(ctx context.Context, spec ClaimSpec) (*models.Generation, error) {
	update := bson.M{"$set": bson.M{
		"status":     spec.Lock,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().
		SetSort(spec.sort()).
		SetReturnDocument(options.After)

	var g models.Generation
	err := m.generations().FindOneAndUpdate(ctx, spec.filter(), update, opts).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoneClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("claiming generation: %w", err)
	}
	return &g, nil
}

// ClaimGenerationByID claims a specific generation if its status still
// matches. The audio workers list a candidate batch first, then claim each
// candidate individually so two workers scanning the same batch cannot both
// win the same document.
func (m *Mongo) ClaimGenerationByID(ctx context.Context, id bson.ObjectID, from []models.GenerationStatus, lock models.GenerationStatus) (*models.Generation, error) {
	filter := bson.M{"_id": id, "status": statusIn(from)}
	update := bson.M{"$set": bson.M{
		"status":     lock,
		"updated_at": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var g models.Generation
	err := m.generations().FindOneAndUpdate(ctx, filter, update, opts).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoneClaimable
	}
	if err != nil {
		return nil, fmt.Errorf("claiming generation by id: %w", err)
	}
	return &g, nil
}

// ListClaimable returns up to limit candidates matching the claim predicate, in claim
// order. The list is advisory; each candidate must still be claimed by id.
func (m *Mongo) ListClaimable(ctx context.Context, spec ClaimSpec, limit int) ([]models.Generation, error) {
	opts := options.Find().SetSort(spec.sort()).SetLimit(int64(limit))
	cursor, err := m.generations().Find(ctx, spec.filter(), opts)
	if err != nil {
		return nil, fmt.Errorf("listing claimable generations: %w", err)
	}
	var out []models.Generation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding claimable generations: %w", err)
	}
	return out, nil
}

// TransitionGeneration conditionally advances a generation's status.
func (m *Mongo) TransitionGeneration(ctx context.Context, id bson.ObjectID, from []models.GenerationStatus, to models.GenerationStatus) error {
	res, err := m.generations().UpdateOne(ctx,
		bson.M{"_id": id, "status": statusIn(from)},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("transitioning generation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

// FailGeneration writes a terminal failure status with a stage-tagged error.
// The write carries the same status predicate as every other terminal write:
// a worker that lost its claim gets ErrStatusConflict instead of stomping an
// operator reset or another worker's progress.
func (m *Mongo) FailGeneration(ctx context.Context, id bson.ObjectID, from []models.GenerationStatus, status models.GenerationStatus, stage, message string) error {
	res, err := m.generations().UpdateOne(ctx,
		bson.M{"_id": id, "status": statusIn(from)},
		bson.M{"$set": bson.M{
			"status": status,
			"error": models.GenerationError{
				Stage:     stage,
				Message:   TruncateError(message),
				Timestamp: time.Now().UTC(),
			},
			"updated_at": time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("failing generation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

// CompleteGeneration marks a generation completed in a single write so
// observers never see final_audio_path without status=completed. The error
// field is cleared.
func (m *Mongo) CompleteGeneration(ctx context.Context, id bson.ObjectID, finalAudioPath string) error {
	res, err := m.generations().UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusAudioGenerating},
		bson.M{
			"$set": bson.M{
				"status":           models.StatusCompleted,
				"final_audio_path": finalAudioPath,
				"updated_at":       time.Now().UTC(),
			},
			"$unset": bson.M{"error": ""},
		})
	if err != nil {
		return fmt.Errorf("completing generation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrStatusConflict
	}
	return nil
}

// PatchGeneration applies the non-nil fields of the patch.
func (m *Mongo) PatchGeneration(ctx context.Context, id bson.ObjectID, patch GenerationPatch) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if patch.Outline != nil {
		set["outline"] = *patch.Outline
	}
	if patch.DerivedOutline != nil {
		set["derived_outline"] = *patch.DerivedOutline
	}
	if patch.TargetChars != nil {
		set["target_chars"] = *patch.TargetChars
	}
	if patch.NumQuotes != nil {
		set["num_quotes"] = *patch.NumQuotes
	}
	if patch.NumStories != nil {
		set["num_stories"] = *patch.NumStories
	}
	if patch.ScriptName != nil {
		set["script_name"] = *patch.ScriptName
	}
	if patch.SEOTitle != nil {
		set["seo_title"] = *patch.SEOTitle
	}
	if patch.TranslatedTitle != nil {
		set["translated_title"] = *patch.TranslatedTitle
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}

	res, err := m.generations().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("patching generation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetGeneration returns a generation to pending and clears derived state.
func (m *Mongo) ResetGeneration(ctx context.Context, id bson.ObjectID) error {
	res, err := m.generations().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{
				"status":     models.StatusPending,
				"updated_at": time.Now().UTC(),
			},
			"$unset": bson.M{
				"error":            "",
				"outline":          "",
				"derived_outline":  "",
				"final_audio_path": "",
			},
		})
	if err != nil {
		return fmt.Errorf("resetting generation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecoverStuckGenerations force-resets generations abandoned in a lock
// status. The original lock holder discovers the loss when its next
// conditional write returns ErrStatusConflict.
func (m *Mongo) RecoverStuckGenerations(ctx context.Context, lock models.GenerationStatus, olderThan time.Duration, reset models.GenerationStatus, note string) (int64, error) {
	now := time.Now().UTC()
	res, err := m.generations().UpdateMany(ctx,
		bson.M{
			"status":     lock,
			"updated_at": bson.M{"$lt": now.Add(-olderThan)},
		},
		bson.M{"$set": bson.M{
			"status": reset,
			"error": models.GenerationError{
				Stage:     "recovery",
				Message:   note,
				Timestamp: now,
			},
			"updated_at": now,
		}})
	if err != nil {
		return 0, fmt.Errorf("recovering stuck generations: %w", err)
	}
	return res.ModifiedCount, nil
}
