package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Chunk item types, mirroring the outline node the chunk was generated from.
const (
	ItemTypeIntro           = "intro"
	ItemTypeOutro           = "outro"
	ItemTypeSectionHeader   = "section_header"
	ItemTypeQuoteSuggestion = "quote_suggestion"
	ItemTypeStorySuggestion = "story_suggestion"
	ItemTypePoint           = "point"
	ItemTypeRewriteChunk    = "rewrite_chunk"
	ItemTypeQuoteAdded      = "quote_added"
	ItemTypeStoryAdded      = "story_added"
)

// ScriptChunk is one atomic unit of narration: a single TTS call target.
// Chunks are unique by (generation_ref, section_index); section_index is a
// dense 0-based ordering within the generation.
type ScriptChunk struct {
	ID            bson.ObjectID `bson:"_id,omitempty" json:"id"`
	GenerationRef bson.ObjectID `bson:"generation_ref" json:"generation_ref"`
	SectionIndex  int           `bson:"section_index" json:"section_index"`
	SectionTitle  string        `bson:"section_title" json:"section_title"`
	ItemType      string        `bson:"item_type" json:"item_type"`
	Level         int           `bson:"level" json:"level"`
	TextContent   string        `bson:"text_content" json:"text_content"`
	ScriptName    string        `bson:"script_name,omitempty" json:"script_name,omitempty"`

	AudioPath  string  `bson:"audio_path,omitempty" json:"audio_path,omitempty"`
	AudioReady bool    `bson:"audio_ready" json:"audio_ready"`
	AudioError *string `bson:"audio_error" json:"audio_error"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
