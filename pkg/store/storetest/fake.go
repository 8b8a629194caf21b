// Package storetest provides an in-memory store.Store for tests. It mirrors
// the conditional-update semantics of the Mongo implementation, including
// claim ordering and the audio-preserving chunk upsert.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
)

type chunkKey struct {
	gen   bson.ObjectID
	index int
}

// Fake is a thread-safe in-memory store.Store.
type Fake struct {
	mu          sync.Mutex
	generations map[bson.ObjectID]*models.Generation
	chunks      map[chunkKey]*models.ScriptChunk
	topics      map[bson.ObjectID]*models.Topic

	// PingErr, when set, is returned by Ping.
	PingErr error
}

var _ store.Store = (*Fake)(nil)

// New creates an empty fake store.
func New() *Fake {
	return &Fake{
		generations: make(map[bson.ObjectID]*models.Generation),
		chunks:      make(map[chunkKey]*models.ScriptChunk),
		topics:      make(map[bson.ObjectID]*models.Topic),
	}
}

func copyGen(g *models.Generation) *models.Generation {
	out := *g
	if g.Error != nil {
		e := *g.Error
		out.Error = &e
	}
	return &out
}

func copyChunk(c *models.ScriptChunk) *models.ScriptChunk {
	out := *c
	if c.AudioError != nil {
		e := *c.AudioError
		out.AudioError = &e
	}
	return &out
}

func copyTopic(t *models.Topic) *models.Topic {
	out := *t
	return &out
}

func statusMatches(s models.GenerationStatus, in []models.GenerationStatus) bool {
	for _, candidate := range in {
		if s == candidate {
			return true
		}
	}
	return false
}

// InsertGeneration creates a generation document.
func (f *Fake) InsertGeneration(_ context.Context, g *models.Generation) (*models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	if g.ID.IsZero() {
		g.ID = bson.NewObjectID()
	}
	g.CreatedAt = now
	g.UpdatedAt = now
	f.generations[g.ID] = copyGen(g)
	return copyGen(g), nil
}

// GetGeneration fetches a generation by id.
func (f *Fake) GetGeneration(_ context.Context, id bson.ObjectID) (*models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.generations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyGen(g), nil
}

// DeleteGeneration removes a generation document.
func (f *Fake) DeleteGeneration(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.generations[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.generations, id)
	return nil
}

// FindActiveGeneration returns a non-terminal generation linked to the topic.
func (f *Fake) FindActiveGeneration(_ context.Context, topicID bson.ObjectID) (*models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.generations {
		if g.TopicRef == topicID && !g.Status.TerminalForTopic() {
			return copyGen(g), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *Fake) matching(spec store.ClaimSpec) []*models.Generation {
	var out []*models.Generation
	for _, g := range f.generations {
		if !statusMatches(g.Status, spec.Statuses) {
			continue
		}
		if spec.LanguageEquals != "" && g.Language != spec.LanguageEquals {
			continue
		}
		if spec.LanguageNotEquals != "" && g.Language == spec.LanguageNotEquals {
			continue
		}
		out = append(out, g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if spec.Order == store.OrderAudio {
			if a.Priority != b.Priority {
				return a.Priority > b.Priority
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Status != b.Status {
			return a.Status < b.Status
		}
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return out
}

// ClaimNextGeneration atomically claims the best-ranked matching generation.
func (f *Fake) ClaimNextGeneration(_ context.Context, spec store.ClaimSpec) (*models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	candidates := f.matching(spec)
	if len(candidates) == 0 {
		return nil, store.ErrNoneClaimable
	}
	g := candidates[0]
	g.Status = spec.Lock
	g.UpdatedAt = time.Now().UTC()
	return copyGen(g), nil
}

// ClaimGenerationByID claims a specific generation if its status still matches.
func (f *Fake) ClaimGenerationByID(_ context.Context, id bson.ObjectID, from []models.GenerationStatus, lock models.GenerationStatus) (*models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.generations[id]
	if !ok || !statusMatches(g.Status, from) {
		return nil, store.ErrNoneClaimable
	}
	g.Status = lock
	g.UpdatedAt = time.Now().UTC()
	return copyGen(g), nil
}

// ListClaimable returns up to limit candidates in claim order.
func (f *Fake) ListClaimable(_ context.Context, spec store.ClaimSpec, limit int) ([]models.Generation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	candidates := f.matching(spec)
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]models.Generation, len(candidates))
	for i, g := range candidates {
		out[i] = *copyGen(g)
	}
	return out, nil
}

// TransitionGeneration conditionally advances a generation's status.
func (f *Fake) TransitionGeneration(_ context.Context, id bson.ObjectID, from []models.GenerationStatus, to models.GenerationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.generations[id]
	if !ok || !statusMatches(g.Status, from) {
		return store.ErrStatusConflict
	}
	g.Status = to
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// FailGeneration writes a terminal failure status with a stage-tagged error,
// conditioned on the status predicate like every other terminal write.
func (f *Fake) FailGeneration(_ context.Context, id bson.ObjectID, from []models.GenerationStatus, status models.GenerationStatus, stage, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.generations[id]
	if !ok || !statusMatches(g.Status, from) {
		return store.ErrStatusConflict
	}
	g.Status = status
	g.Error = &models.GenerationError{
		Stage:     stage,
		Message:   store.TruncateError(message),
		Timestamp: time.Now().UTC(),
	}
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// CompleteGeneration marks a generation completed if still audio_generating.
func (f *Fake) CompleteGeneration(_ context.Context, id bson.ObjectID, finalAudioPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.generations[id]
	if !ok || g.Status != models.StatusAudioGenerating {
		return store.ErrStatusConflict
	}
	g.Status = models.StatusCompleted
	g.FinalAudioPath = finalAudioPath
	g.Error = nil
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// PatchGeneration applies the non-nil fields of the patch.
func (f *Fake) PatchGeneration(_ context.Context, id bson.ObjectID, patch store.GenerationPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.generations[id]
	if !ok {
		return store.ErrNotFound
	}
	if patch.Outline != nil {
		g.Outline = *patch.Outline
	}
	if patch.DerivedOutline != nil {
		g.DerivedOutline = *patch.DerivedOutline
	}
	if patch.TargetChars != nil {
		g.TargetChars = *patch.TargetChars
	}
	if patch.NumQuotes != nil {
		g.NumQuotes = *patch.NumQuotes
	}
	if patch.NumStories != nil {
		g.NumStories = *patch.NumStories
	}
	if patch.ScriptName != nil {
		g.ScriptName = *patch.ScriptName
	}
	if patch.SEOTitle != nil {
		g.SEOTitle = *patch.SEOTitle
	}
	if patch.TranslatedTitle != nil {
		g.TranslatedTitle = *patch.TranslatedTitle
	}
	if patch.Status != nil {
		g.Status = *patch.Status
	}
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetGeneration returns a generation to pending and clears derived state.
func (f *Fake) ResetGeneration(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.generations[id]
	if !ok {
		return store.ErrNotFound
	}
	g.Status = models.StatusPending
	g.Error = nil
	g.Outline = ""
	g.DerivedOutline = ""
	g.FinalAudioPath = ""
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// RecoverStuckGenerations force-resets generations abandoned in a lock status.
func (f *Fake) RecoverStuckGenerations(_ context.Context, lock models.GenerationStatus, olderThan time.Duration, reset models.GenerationStatus, note string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)
	var n int64
	for _, g := range f.generations {
		if g.Status == lock && g.UpdatedAt.Before(cutoff) {
			g.Status = reset
			g.Error = &models.GenerationError{Stage: "recovery", Message: note, Timestamp: now}
			g.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

// UpsertChunk writes a chunk keyed by (generation_ref, section_index),
// preserving audio fields on match.
func (f *Fake) UpsertChunk(_ context.Context, c *models.ScriptChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	key := chunkKey{gen: c.GenerationRef, index: c.SectionIndex}
	if existing, ok := f.chunks[key]; ok {
		existing.SectionTitle = c.SectionTitle
		existing.TextContent = c.TextContent
		existing.Level = c.Level
		existing.ItemType = c.ItemType
		existing.ScriptName = c.ScriptName
		existing.UpdatedAt = now
		return nil
	}
	fresh := copyChunk(c)
	fresh.ID = bson.NewObjectID()
	fresh.AudioPath = ""
	fresh.AudioReady = false
	fresh.AudioError = nil
	fresh.CreatedAt = now
	fresh.UpdatedAt = now
	f.chunks[key] = fresh
	return nil
}

// DeleteChunks removes all chunks of a generation.
func (f *Fake) DeleteChunks(_ context.Context, genID bson.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for key := range f.chunks {
		if key.gen == genID {
			delete(f.chunks, key)
			n++
		}
	}
	return n, nil
}

func (f *Fake) sortedChunks(genID bson.ObjectID) []*models.ScriptChunk {
	var out []*models.ScriptChunk
	for key, c := range f.chunks {
		if key.gen == genID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionIndex < out[j].SectionIndex })
	return out
}

// ListChunks returns all chunks of a generation ordered by section_index.
func (f *Fake) ListChunks(_ context.Context, genID bson.ObjectID) ([]models.ScriptChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunks := f.sortedChunks(genID)
	out := make([]models.ScriptChunk, len(chunks))
	for i, c := range chunks {
		out[i] = *copyChunk(c)
	}
	return out, nil
}

// PendingAudioChunks returns chunks still needing synthesis.
func (f *Fake) PendingAudioChunks(_ context.Context, genID bson.ObjectID) ([]models.ScriptChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ScriptChunk
	for _, c := range f.sortedChunks(genID) {
		if !c.AudioReady || c.AudioError != nil {
			out = append(out, *copyChunk(c))
		}
	}
	return out, nil
}

// SetChunkAudio records the outcome of one synthesis attempt.
func (f *Fake) SetChunkAudio(_ context.Context, genID bson.ObjectID, sectionIndex int, audioPath string, ready bool, audioErr *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.chunks[chunkKey{gen: genID, index: sectionIndex}]
	if !ok {
		return store.ErrNotFound
	}
	c.AudioReady = ready
	if ready {
		c.AudioPath = audioPath
		c.AudioError = nil
	} else if audioErr != nil {
		msg := store.TruncateError(*audioErr)
		c.AudioError = &msg
	} else {
		c.AudioError = nil
	}
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// ChunkAudioCounts reports total, ready and failed chunk counts.
func (f *Fake) ChunkAudioCounts(_ context.Context, genID bson.ObjectID) (store.ChunkCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var counts store.ChunkCounts
	for _, c := range f.sortedChunks(genID) {
		counts.Total++
		if c.AudioReady {
			counts.Ready++
		}
		if c.AudioError != nil {
			counts.Failed++
		}
	}
	return counts, nil
}

// TextOf joins all chunk text in section order.
func (f *Fake) TextOf(_ context.Context, genID bson.ObjectID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var parts []string
	for _, c := range f.sortedChunks(genID) {
		parts = append(parts, c.TextContent)
	}
	return strings.Join(parts, "\n\n"), nil
}

// NextSectionIndex returns max(section_index)+1, or 0 when no chunks exist.
func (f *Fake) NextSectionIndex(_ context.Context, genID bson.ObjectID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunks := f.sortedChunks(genID)
	if len(chunks) == 0 {
		return 0, nil
	}
	return chunks[len(chunks)-1].SectionIndex + 1, nil
}

// SectionTitles lists chunk titles at or below the given outline level.
func (f *Fake) SectionTitles(_ context.Context, genID bson.ObjectID, minLevel, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var titles []string
	for _, c := range f.sortedChunks(genID) {
		if c.Level >= minLevel && c.SectionTitle != "" {
			titles = append(titles, c.SectionTitle)
			if limit > 0 && len(titles) >= limit {
				break
			}
		}
	}
	return titles, nil
}

// GetTopic fetches a topic by id.
func (f *Fake) GetTopic(_ context.Context, id bson.ObjectID) (*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyTopic(t), nil
}

// UpsertTopicByTitle finds or creates the topic for (title, language).
func (f *Fake) UpsertTopicByTitle(_ context.Context, title, translatedTitle, language string) (*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range f.topics {
		if t.Title == title && t.Language == language {
			t.TranslatedTitle = translatedTitle
			t.UpdatedAt = now
			return copyTopic(t), nil
		}
	}
	t := &models.Topic{
		ID:              bson.NewObjectID(),
		Title:           title,
		TranslatedTitle: translatedTitle,
		Language:        language,
		Status:          models.TopicSuggested,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.topics[t.ID] = t
	return copyTopic(t), nil
}

// UpsertTopicBySnippet finds or creates the topic keyed by a script snippet.
func (f *Fake) UpsertTopicBySnippet(ctx context.Context, snippet, language string) (*models.Topic, error) {
	if len(snippet) > store.SnippetKeyLength {
		snippet = snippet[:store.SnippetKeyLength]
	}
	return f.UpsertTopicByTitle(ctx, snippet, "", language)
}

// LinkTopic points a topic at a generation.
func (f *Fake) LinkTopic(_ context.Context, topicID, genID bson.ObjectID, status models.TopicStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[topicID]
	if !ok {
		return store.ErrNotFound
	}
	t.GenerationRef = genID
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// UnlinkTopic removes the generation reference.
func (f *Fake) UnlinkTopic(_ context.Context, topicID bson.ObjectID, status models.TopicStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[topicID]
	if !ok {
		return store.ErrNotFound
	}
	t.GenerationRef = bson.ObjectID{}
	t.Status = status
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// SetTopicTranslatedTitle stores the display-language title.
func (f *Fake) SetTopicTranslatedTitle(_ context.Context, topicID bson.ObjectID, translatedTitle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[topicID]
	if !ok {
		return store.ErrNotFound
	}
	t.TranslatedTitle = translatedTitle
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteTopic hard-deletes a topic document.
func (f *Fake) DeleteTopic(_ context.Context, id bson.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.topics[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.topics, id)
	return nil
}

// Ping reports store reachability.
func (f *Fake) Ping(context.Context) error { return f.PingErr }

// Close is a no-op.
func (f *Fake) Close(context.Context) error { return nil }

// Topics returns every topic document, for test assertions.
func (f *Fake) Topics() []models.Topic {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Topic, 0, len(f.topics))
	for _, t := range f.topics {
		out = append(out, *copyTopic(t))
	}
	return out
}

// SetUpdatedAt backdates a generation, used to simulate stuck locks.
func (f *Fake) SetUpdatedAt(id bson.ObjectID, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if g, ok := f.generations[id]; ok {
		g.UpdatedAt = t
	}
}
