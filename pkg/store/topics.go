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

// SnippetKeyLength is how much of a source script identifies its topic.
const SnippetKeyLength = 200

// GetTopic fetches a topic by id.
func (m *Mongo) GetTopic(ctx context.Context, id bson.ObjectID) (*models.Topic, error) {
	var t models.Topic
	err := m.topics().FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching topic: %w", err)
	}
	return &t, nil
}

// UpsertTopicByTitle finds or creates the topic for (title, language).
func (m *Mongo) UpsertTopicByTitle(ctx context.Context, title, translatedTitle, language string) (*models.Topic, error) {
	now := time.Now().UTC()
	filter := bson.M{"title": title, "language": language}
	update := bson.M{
		"$set": bson.M{
			"translated_title": translatedTitle,
			"updated_at":       now,
		},
		"$setOnInsert": bson.M{
			"title":      title,
			"language":   language,
			"status":     models.TopicSuggested,
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var t models.Topic
	if err := m.topics().FindOneAndUpdate(ctx, filter, update, opts).Decode(&t); err != nil {
		return nil, fmt.Errorf("upserting topic: %w", err)
	}
	return &t, nil
}

// UpsertTopicBySnippet finds or creates the topic keyed by the leading
// snippet of a source script. Rewrite submissions have no natural title, so
// the snippet stands in for one.
func (m *Mongo) UpsertTopicBySnippet(ctx context.Context, snippet, language string) (*models.Topic, error) {
	if len(snippet) > SnippetKeyLength {
		snippet = snippet[:SnippetKeyLength]
	}
	return m.UpsertTopicByTitle(ctx, snippet, "", language)
}

// LinkTopic points a topic at a generation and sets its lifecycle status.
func (m *Mongo) LinkTopic(ctx context.Context, topicID, genID bson.ObjectID, status models.TopicStatus) error {
	res, err := m.topics().UpdateOne(ctx,
		bson.M{"_id": topicID},
		bson.M{"$set": bson.M{
			"generation_ref": genID,
			"status":         status,
			"updated_at":     time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("linking topic: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UnlinkTopic removes the generation reference.
func (m *Mongo) UnlinkTopic(ctx context.Context, topicID bson.ObjectID, status models.TopicStatus) error {
	res, err := m.topics().UpdateOne(ctx,
		bson.M{"_id": topicID},
		bson.M{
			"$set":   bson.M{"status": status, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"generation_ref": ""},
		})
	if err != nil {
		return fmt.Errorf("unlinking topic: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTopicTranslatedTitle stores the display-language title.
func (m *Mongo) SetTopicTranslatedTitle(ctx context.Context, topicID bson.ObjectID, translatedTitle string) error {
	res, err := m.topics().UpdateOne(ctx,
		bson.M{"_id": topicID},
		bson.M{"$set": bson.M{
			"translated_title": translatedTitle,
			"updated_at":       time.Now().UTC(),
		}})
	if err != nil {
		return fmt.Errorf("setting translated title: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTopic hard-deletes a topic document.
func (m *Mongo) DeleteTopic(ctx context.Context, id bson.ObjectID) error {
	res, err := m.topics().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("deleting topic: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
