package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// TopicStatus is the user-visible lifecycle state of a Topic.
type TopicStatus string

const (
	TopicSuggested           TopicStatus = "suggested"
	TopicGenerationRequested TopicStatus = "generation_requested"
	TopicGenerationPending   TopicStatus = "generation_pending"
	TopicGenerationReset     TopicStatus = "generation_reset"
	TopicDeleted             TopicStatus = "deleted"
)

// Topic is a user-facing subject line with a language.
// Topics are unique by (title, language).
type Topic struct {
	ID              bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Language        string        `bson:"language" json:"language"`
	Title           string        `bson:"title" json:"title"`
	TranslatedTitle string        `bson:"translated_title,omitempty" json:"translated_title,omitempty"`
	Status          TopicStatus   `bson:"status" json:"status"`
	GenerationRef   bson.ObjectID `bson:"generation_ref,omitempty" json:"generation_ref,omitempty"`
	CreatedAt       time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `bson:"updated_at" json:"updated_at"`
}

// Linked reports whether the topic references a generation.
func (t *Topic) Linked() bool {
	return !t.GenerationRef.IsZero()
}
