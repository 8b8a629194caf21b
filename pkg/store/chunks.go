package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/scriptorium/scriptorium/pkg/models"
)

// UpsertChunk writes a chunk keyed by (generation_ref, section_index).
// On match only the content fields are replaced; audio_path, audio_ready and
// audio_error are left untouched so a resumed content run cannot clobber
// audio that already exists. Callers that want fresh audio delete the chunks
// first.
func (m *Mongo) UpsertChunk(ctx context.Context, c *models.ScriptChunk) error {
	now := time.Now().UTC()
	filter := bson.M{
		"generation_ref": c.GenerationRef,
		"section_index":  c.SectionIndex,
	}
	update := bson.M{
		"$set": bson.M{
			"section_title": c.SectionTitle,
			"text_content":  c.TextContent,
			"level":         c.Level,
			"item_type":     c.ItemType,
			"script_name":   c.ScriptName,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"generation_ref": c.GenerationRef,
			"section_index":  c.SectionIndex,
			"created_at":     now,
			"audio_ready":    false,
			"audio_error":    nil,
		},
	}
	if _, err := m.chunks().UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return fmt.Errorf("upserting chunk %d: %w", c.SectionIndex, err)
	}
	return nil
}

// DeleteChunks removes all chunks of a generation.
func (m *Mongo) DeleteChunks(ctx context.Context, genID bson.ObjectID) (int64, error) {
	res, err := m.chunks().DeleteMany(ctx, bson.M{"generation_ref": genID})
	if err != nil {
		return 0, fmt.Errorf("deleting chunks: %w", err)
	}
	return res.DeletedCount, nil
}

// ListChunks returns all chunks of a generation ordered by section_index.
func (m *Mongo) ListChunks(ctx context.Context, genID bson.ObjectID) ([]models.ScriptChunk, error) {
	opts := options.Find().SetSort(bson.D{{Key: "section_index", Value: 1}})
	cursor, err := m.chunks().Find(ctx, bson.M{"generation_ref": genID}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	var out []models.ScriptChunk
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding chunks: %w", err)
	}
	return out, nil
}

// PendingAudioChunks returns chunks still needing synthesis: never produced,
// or produced with an error.
func (m *Mongo) PendingAudioChunks(ctx context.Context, genID bson.ObjectID) ([]models.ScriptChunk, error) {
	filter := bson.M{
		"generation_ref": genID,
		"$or": bson.A{
			bson.M{"audio_ready": false},
			bson.M{"audio_error": bson.M{"$ne": nil}},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "section_index", Value: 1}})
	cursor, err := m.chunks().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing pending audio chunks: %w", err)
	}
	var out []models.ScriptChunk
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding pending audio chunks: %w", err)
	}
	return out, nil
}

// SetChunkAudio records the outcome of one synthesis attempt. Success clears
// audio_error; failure clears audio_ready and truncates the message.
func (m *Mongo) SetChunkAudio(ctx context.Context, genID bson.ObjectID, sectionIndex int, audioPath string, ready bool, audioErr *string) error {
	set := bson.M{
		"audio_ready": ready,
		"updated_at":  time.Now().UTC(),
	}
	if ready {
		set["audio_path"] = audioPath
		set["audio_error"] = nil
	} else {
		var msg any
		if audioErr != nil {
			msg = TruncateError(*audioErr)
		}
		set["audio_error"] = msg
	}

	res, err := m.chunks().UpdateOne(ctx,
		bson.M{"generation_ref": genID, "section_index": sectionIndex},
		bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("updating chunk audio: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ChunkAudioCounts reports total, ready and failed chunk counts.
func (m *Mongo) ChunkAudioCounts(ctx context.Context, genID bson.ObjectID) (ChunkCounts, error) {
	var counts ChunkCounts
	var err error

	if counts.Total, err = m.chunks().CountDocuments(ctx, bson.M{"generation_ref": genID}); err != nil {
		return counts, fmt.Errorf("counting chunks: %w", err)
	}
	if counts.Ready, err = m.chunks().CountDocuments(ctx, bson.M{
		"generation_ref": genID, "audio_ready": true,
	}); err != nil {
		return counts, fmt.Errorf("counting ready chunks: %w", err)
	}
	if counts.Failed, err = m.chunks().CountDocuments(ctx, bson.M{
		"generation_ref": genID, "audio_error": bson.M{"$ne": nil},
	}); err != nil {
		return counts, fmt.Errorf("counting failed chunks: %w", err)
	}
	return counts, nil
}

// TextOf joins all chunk text in section order with blank-line separators.
// The content worker measures script length against this.
func (m *Mongo) TextOf(ctx context.Context, genID bson.ObjectID) (string, error) {
	chunks, err := m.ListChunks(ctx, genID)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, c.TextContent)
	}
	return strings.Join(parts, "\n\n"), nil
}

// NextSectionIndex returns max(section_index)+1, or 0 when no chunks exist.
func (m *Mongo) NextSectionIndex(ctx context.Context, genID bson.ObjectID) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "section_index", Value: -1}})
	var last models.ScriptChunk
	err := m.chunks().FindOne(ctx, bson.M{"generation_ref": genID}, opts).Decode(&last)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("finding last chunk: %w", err)
	}
	return last.SectionIndex + 1, nil
}

// SectionTitles lists chunk titles at or below the given outline level, used
// to de-duplicate appended quotes and stories.
func (m *Mongo) SectionTitles(ctx context.Context, genID bson.ObjectID, minLevel, limit int) ([]string, error) {
	filter := bson.M{
		"generation_ref": genID,
		"level":          bson.M{"$gte": minLevel},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "section_index", Value: 1}}).
		SetLimit(int64(limit)).
		SetProjection(bson.M{"section_title": 1})
	cursor, err := m.chunks().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing section titles: %w", err)
	}
	var chunks []models.ScriptChunk
	if err := cursor.All(ctx, &chunks); err != nil {
		return nil, fmt.Errorf("decoding section titles: %w", err)
	}
	titles := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.SectionTitle != "" {
			titles = append(titles, c.SectionTitle)
		}
	}
	return titles, nil
}
