package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptorium/scriptorium/pkg/config"
	"github.com/scriptorium/scriptorium/pkg/llm"
	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store"
	"github.com/scriptorium/scriptorium/pkg/store/storetest"
)

const testOutline = `## Introduction
Set the tone for the program.

## Famous Quotes
### Quote: On Courage
Analyze the quote about courage.
### Quote: On Patience
Analyze the quote about patience.

## Conclusion
Close with a reflection.
`

// fakeGenerator scripts every language-model call with canned responses and
// optional per-call hooks.
type fakeGenerator struct {
	outlineText string
	outlineErr  error
	chunkText   string
	chunkErr    error
	extraText   string
	extraErr    error

	chunkCalls []llm.ChunkRequest
	extraCalls []string

	onChunk func()
}

func (f *fakeGenerator) GenerateOutline(_ context.Context, _, _, _ string, _ config.Estimate) (string, error) {
	return f.outlineText, f.outlineErr
}

func (f *fakeGenerator) GenerateChunk(_ context.Context, req llm.ChunkRequest) (string, error) {
	f.chunkCalls = append(f.chunkCalls, req)
	if f.onChunk != nil {
		f.onChunk()
	}
	return f.chunkText, f.chunkErr
}

func (f *fakeGenerator) GenerateExtraChunk(_ context.Context, _, _, title, _, _ string, _ []string, _ int) (string, error) {
	f.extraCalls = append(f.extraCalls, title)
	return f.extraText, f.extraErr
}

func (f *fakeGenerator) GenerateSEOTitle(_ context.Context, _, title, _ string) (string, error) {
	return "SEO: " + title, nil
}

func (f *fakeGenerator) TranslateTitle(_ context.Context, _, title, _ string) (string, error) {
	return "Translated: " + title, nil
}

func (f *fakeGenerator) DeriveOutline(_ context.Context, _, _, _ string) (string, error) {
	return f.outlineText, f.outlineErr
}

func (f *fakeGenerator) RewriteScript(_ context.Context, _, _, _, _ string, _ int) (string, error) {
	return f.chunkText, f.chunkErr
}

func testExecutor(st store.Store, gen *fakeGenerator) *ContentExecutor {
	cfg := DefaultExecutorConfig()
	cfg.DisplayLanguage = "Vietnamese"
	return NewContentExecutor(st, gen, config.DefaultSizingConfig(), cfg)
}

func claimedGeneration(t *testing.T, st *storetest.Fake, mutate func(*models.Generation)) *models.Generation {
	t.Helper()
	g := &models.Generation{
		TaskType:       models.TaskTypeFromTopic,
		Language:       "English",
		Priority:       models.PriorityMedium,
		TargetDuration: 30,
		Title:          "Ancient Wisdom for Modern Life",
		Status:         models.StatusProcessingLock,
	}
	if mutate != nil {
		mutate(g)
	}
	g, err := st.InsertGeneration(context.Background(), g)
	require.NoError(t, err)
	return g
}

func TestFromTopicHappyPath(t *testing.T) {
	st := storetest.New()
	gen := &fakeGenerator{
		outlineText: testOutline,
		chunkText:   strings.Repeat("Narration text. ", 500),
	}
	e := testExecutor(st, gen)

	topic, err := st.UpsertTopicByTitle(context.Background(), "Ancient Wisdom for Modern Life", "", "English")
	require.NoError(t, err)
	g := claimedGeneration(t, st, func(g *models.Generation) {
		g.TopicRef = topic.ID
	})
	require.NoError(t, st.LinkTopic(context.Background(), topic.ID, g.ID, models.TopicGenerationPending))

	result := e.Execute(context.Background(), g)
	require.NotNil(t, result)
	assert.False(t, result.Aborted)
	assert.Equal(t, models.StatusContentReady, result.Status)

	stored, err := st.GetGeneration(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusContentGenerating, stored.Status)
	assert.Equal(t, testOutline, stored.Outline)
	assert.Greater(t, stored.TargetChars, 0)
	assert.NotEmpty(t, stored.ScriptName)
	assert.Equal(t, "SEO: "+g.Title, stored.SEOTitle)
	assert.Equal(t, "Translated: "+g.Title, stored.TranslatedTitle)

	storedTopic, err := st.GetTopic(context.Background(), topic.ID)
	require.NoError(t, err)
	assert.Equal(t, "Translated: "+g.Title, storedTopic.TranslatedTitle)

	chunks, err := st.ListChunks(context.Background(), g.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.SectionIndex)
		assert.NotEmpty(t, c.TextContent)
		assert.Equal(t, stored.ScriptName, c.ScriptName)
	}
	assert.Equal(t, models.ItemTypeIntro, chunks[0].ItemType)
}

func TestFromTopicOutlineFailure(t *testing.T) {
	st := storetest.New()
	gen := &fakeGenerator{outlineErr: errors.New("model unavailable")}
	e := testExecutor(st, gen)

	g := claimedGeneration(t, st, nil)
	result := e.Execute(context.Background(), g)

	require.NotNil(t, result)
	assert.Equal(t, models.StatusOutlineFailed, result.Status)
	assert.Equal(t, models.StageOutline, result.Stage)
	assert.Error(t, result.Err)
}

func TestFromTopicSkipsOutlineWhenPresent(t *testing.T) {
	st := storetest.New()
	gen := &fakeGenerator{
		outlineErr: errors.New("must not be called"),
		chunkText:  strings.Repeat("Narration text. ", 500),
	}
	e := testExecutor(st, gen)

	g := claimedGeneration(t, st, func(g *models.Generation) {
		g.Outline = testOutline
	})
	result := e.Execute(context.Background(), g)

	require.NotNil(t, result)
	assert.Equal(t, models.StatusContentReady, result.Status)
}

func TestFromTopicResumesFromExistingChunks(t *testing.T) {
	st := storetest.New()
	gen := &fakeGenerator{
		outlineText: testOutline,
		chunkText:   strings.Repeat("Narration text. ", 500),
	}
	e := testExecutor(st, gen)

	g := claimedGeneration(t, st, func(g *models.Generation) {
		g.Outline = testOutline
	})

	// Two chunks survive from a previous attempt, one with finished audio.
	for i := 0; i < 2; i++ {
		require.NoError(t, st.UpsertChunk(context.Background(), &models.ScriptChunk{
			GenerationRef: g.ID,
			SectionIndex:  i,
			SectionTitle:  fmt.Sprintf("Old %d", i),
			ItemType:      models.ItemTypeSectionHeader,
			Level:         2,
			TextContent:   strings.Repeat("Existing text. ", 600),
		}))
	}
	require.NoError(t, st.SetChunkAudio(context.Background(), g.ID, 0, "/audio/old_0.mp3", true, nil))

	result := e.Execute(context.Background(), g)
	require.NotNil(t, result)
	assert.Equal(t, models.StatusContentReady, result.Status)

	// The outline flattens to five items; two already existed.
	assert.Len(t, gen.chunkCalls, 3)

	chunks, err := st.ListChunks(context.Background(), g.ID)
	require.NoError(t, err)
	assert.True(t, chunks[0].AudioReady)
	assert.Equal(t, "/audio/old_0.mp3", chunks[0].AudioPath)
}

func TestFromTopicTopsUpShortScripts(t *testing.T) {
	st := storetest.New()
	gen := &fakeGenerator{
		outlineText: testOutline,
		chunkText:   "Short.",
		extraText:   strings.Repeat("Extra narration. ", 400),
	}
	e := testExecutor(st, gen)

	g := claimedGeneration(t, st, func(g *models.Generation) {
		g.TargetChars = 20000
		g.NumQuotes = 2
		g.NumStories = 1
	})
	result := e.Execute(context.Background(), g)

	require.NotNil(t, result)
	assert.Equal(t, models.StatusContentReady, result.Status)
	require.NotEmpty(t, gen.extraCalls)
	assert.Equal(t, "Added Quote #1", gen.extraCalls[0])

	text, err := st.TextOf(context.Background(), g.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(text), 18000)

	// Appended sections continue the dense index sequence.
	chunks, err := st.ListChunks(context.Background(), g.ID)
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i, c.SectionIndex)
	}
	last := chunks[len(chunks)-1]
	assert.Contains(t, []string{models.ItemTypeQuoteAdded, models.ItemTypeStoryAdded}, last.ItemType)
	assert.Equal(t, 3, last.Level)
}

func TestFromTopicAbortsOnExternalReset(t *testing.T) {
	st := storetest.New()
	gen := &fakeGenerator{
		outlineText: testOutline,
		chunkText:   "Short.",
		extraText:   "Still short.",
	}
	e := testExecutor(st, gen)

	g := claimedGeneration(t, st, func(g *models.Generation) {
		g.TargetChars = 50000
	})

	// An operator reset lands while chunks are being generated.
	gen.onChunk = func() {
		patch := models.StatusReset
		_ = st.PatchGeneration(context.Background(), g.ID, store.GenerationPatch{Status: &patch})
	}

	result := e.Execute(context.Background(), g)
	require.NotNil(t, result)
	assert.True(t, result.Aborted)

	// The aborted run wrote no terminal status.
	stored, err := st.GetGeneration(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReset, stored.Status)
}

func TestFromTopicChunkFailure(t *testing.T) {
	st := storetest.New()
	gen := &fakeGenerator{
		outlineText: testOutline,
		chunkErr:    errors.New("rate limited"),
	}
	e := testExecutor(st, gen)

	g := claimedGeneration(t, st, nil)
	result := e.Execute(context.Background(), g)

	require.NotNil(t, result)
	assert.Equal(t, models.StatusContentFailed, result.Status)
	assert.Equal(t, models.StageContent, result.Stage)
}

func TestRewritePipeline(t *testing.T) {
	st := storetest.New()
	script := strings.Repeat("Rewritten narration flows here. ", 300)
	gen := &fakeGenerator{
		outlineText: testOutline,
		chunkText:   script,
	}
	e := testExecutor(st, gen)

	g := claimedGeneration(t, st, func(g *models.Generation) {
		g.TaskType = models.TaskTypeRewriteScript
		g.SourceScript = "Original script text in another language."
		g.Title = "Imported Script"
	})

	// Stale chunks from an earlier run must not survive the rewrite.
	require.NoError(t, st.UpsertChunk(context.Background(), &models.ScriptChunk{
		GenerationRef: g.ID, SectionIndex: 0, SectionTitle: "Stale", TextContent: "old",
	}))
	require.NoError(t, st.SetChunkAudio(context.Background(), g.ID, 0, "/audio/stale.mp3", true, nil))

	result := e.Execute(context.Background(), g)
	require.NotNil(t, result)
	assert.Equal(t, models.StatusContentReady, result.Status)

	stored, err := st.GetGeneration(context.Background(), g.ID)
	require.NoError(t, err)
	assert.Equal(t, testOutline, stored.DerivedOutline)

	chunks, err := st.ListChunks(context.Background(), g.ID)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.Equal(t, i, c.SectionIndex)
		assert.Equal(t, models.ItemTypeRewriteChunk, c.ItemType)
		assert.Equal(t, fmt.Sprintf("Part %d", i+1), c.SectionTitle)
		assert.False(t, c.AudioReady)
		assert.LessOrEqual(t, len(c.TextContent), DefaultExecutorConfig().RewriteChunkChars)
	}
}

func TestRewriteRequiresSourceScript(t *testing.T) {
	st := storetest.New()
	e := testExecutor(st, &fakeGenerator{})

	g := claimedGeneration(t, st, func(g *models.Generation) {
		g.TaskType = models.TaskTypeRewriteScript
	})
	result := e.Execute(context.Background(), g)

	require.NotNil(t, result)
	assert.Equal(t, models.StatusContentFailed, result.Status)
}
