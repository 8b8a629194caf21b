package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/store/storetest"
)

type fakeTitleClient struct {
	titles       []string
	suggestErr   error
	translateErr error
}

func (f *fakeTitleClient) SuggestTitles(_ context.Context, _, _, _ string, _ int) ([]string, error) {
	return f.titles, f.suggestErr
}

func (f *fakeTitleClient) TranslateTitle(_ context.Context, _, title, _ string) (string, error) {
	if f.translateErr != nil {
		return "", f.translateErr
	}
	return "Translated: " + title, nil
}

func testService(st *storetest.Fake, llm TitleClient) *IntakeService {
	return NewIntakeService(st, llm, IntakeConfig{
		DefaultModel:    "gpt-4o-mini",
		DisplayLanguage: "Vietnamese",
		SuggestionCount: 3,
	})
}

func TestSuggestTopics(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{titles: []string{"Title A", "Title B"}})

	suggestions, err := svc.SuggestTopics(context.Background(), "stoic philosophy", "English")
	require.NoError(t, err)
	require.Len(t, suggestions, 2)

	for _, s := range suggestions {
		assert.NotEmpty(t, s.Original)
		assert.Equal(t, "Translated: "+s.Original, s.TranslationVi)
	}

	// Topics are created at selection time, never at suggestion time.
	assert.Empty(t, st.Topics())
}

func TestSuggestTopicsSameLanguageSkipsTranslation(t *testing.T) {
	svc := testService(storetest.New(), &fakeTitleClient{titles: []string{"Tiêu đề A"}})

	suggestions, err := svc.SuggestTopics(context.Background(), "chủ đề", "Vietnamese")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Tiêu đề A", suggestions[0].TranslationVi)
}

func TestSuggestTopicsTranslationFailureIsNotFatal(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{
		titles:       []string{"Title A"},
		translateErr: errors.New("model unavailable"),
	})

	suggestions, err := svc.SuggestTopics(context.Background(), "stoic philosophy", "English")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "Title A", suggestions[0].TranslationVi)
}

func TestSuggestTopicsValidation(t *testing.T) {
	svc := testService(storetest.New(), &fakeTitleClient{})

	_, err := svc.SuggestTopics(context.Background(), "  ", "English")
	assert.True(t, IsValidationError(err))

	_, err = svc.SuggestTopics(context.Background(), "seed", "")
	assert.True(t, IsValidationError(err))
}

func TestEnqueueFromTopic(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title:           "Ancient Wisdom",
		Language:        "English",
		Priority:        models.PriorityHigh,
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, gen.Status)
	assert.Equal(t, models.TaskTypeFromTopic, gen.TaskType)
	assert.Equal(t, "gpt-4o-mini", gen.Model)
	assert.Equal(t, models.PriorityHigh, gen.Priority)
	assert.Equal(t, 60, gen.TargetDuration)
	require.False(t, gen.TopicRef.IsZero())

	topic, err := st.GetTopic(context.Background(), gen.TopicRef)
	require.NoError(t, err)
	assert.Equal(t, models.TopicGenerationPending, topic.Status)
	assert.Equal(t, gen.ID, topic.GenerationRef)
}

func TestEnqueueFromTopicDuplicateSuppression(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	sub := TopicSubmission{Title: "Ancient Wisdom", Language: "English", DurationMinutes: 30}
	first, err := svc.EnqueueFromTopic(context.Background(), sub)
	require.NoError(t, err)

	_, err = svc.EnqueueFromTopic(context.Background(), sub)
	assert.ErrorIs(t, err, ErrDuplicateActive)

	// Once the first generation reaches a terminal failure, the topic can be
	// resubmitted.
	require.NoError(t, st.FailGeneration(context.Background(), first.ID,
		[]models.GenerationStatus{models.StatusPending},
		models.StatusContentFailed, models.StageContent, "boom"))

	second, err := svc.EnqueueFromTopic(context.Background(), sub)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEnqueueFromTopicUnknownPriorityClampsToMedium(t *testing.T) {
	svc := testService(storetest.New(), &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title: "Ancient Wisdom", Language: "English", Priority: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PriorityMedium, gen.Priority)
}

func TestEnqueueRewrite(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	script := "This is the source script that will be rewritten into the target language."
	gen, err := svc.EnqueueRewrite(context.Background(), RewriteSubmission{
		SourceScript:    script,
		Language:        "Vietnamese",
		DurationMinutes: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeRewriteScript, gen.TaskType)
	assert.Equal(t, script, gen.SourceScript)
	require.False(t, gen.TopicRef.IsZero())

	// Resubmitting the same script hits the same snippet-keyed topic.
	_, err = svc.EnqueueRewrite(context.Background(), RewriteSubmission{
		SourceScript: script, Language: "Vietnamese",
	})
	assert.ErrorIs(t, err, ErrDuplicateActive)
}

func TestEnqueueRewriteValidation(t *testing.T) {
	svc := testService(storetest.New(), &fakeTitleClient{})

	_, err := svc.EnqueueRewrite(context.Background(), RewriteSubmission{Language: "English"})
	assert.True(t, IsValidationError(err))
}

func TestDeleteTopic(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	topic, err := st.UpsertTopicByTitle(context.Background(), "Unwanted", "", "English")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTopic(context.Background(), topic.ID))
	_, err = st.GetTopic(context.Background(), topic.ID)
	assert.Error(t, err)
}

func TestDeleteTopicRefusesLinked(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title: "Linked Topic", Language: "English",
	})
	require.NoError(t, err)

	err = svc.DeleteTopic(context.Background(), gen.TopicRef)
	assert.ErrorIs(t, err, ErrTopicLinked)
}

func TestDeleteTopicRefusesNonSuggested(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title: "Was Generated", Language: "English",
	})
	require.NoError(t, err)

	// The topic is unlinked but left the suggestion pool; hard delete is
	// still refused.
	require.NoError(t, st.DeleteGeneration(context.Background(), gen.ID))
	require.NoError(t, st.UnlinkTopic(context.Background(), gen.TopicRef, models.TopicGenerationReset))

	err = svc.DeleteTopic(context.Background(), gen.TopicRef)
	assert.ErrorIs(t, err, ErrTopicNotSuggested)
}

func TestDeleteGeneration(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title: "Doomed", Language: "English",
	})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, st.UpsertChunk(context.Background(), &models.ScriptChunk{
			GenerationRef: gen.ID, SectionIndex: i, SectionTitle: fmt.Sprintf("S%d", i), TextContent: "text",
		}))
	}

	require.NoError(t, svc.DeleteGeneration(context.Background(), gen.ID))

	_, err = st.GetGeneration(context.Background(), gen.ID)
	assert.Error(t, err)

	chunks, err := st.ListChunks(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	topic, err := st.GetTopic(context.Background(), gen.TopicRef)
	require.NoError(t, err)
	assert.False(t, topic.Linked())
	assert.Equal(t, models.TopicSuggested, topic.Status)
}

func TestResetGeneration(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title: "Restarted", Language: "English",
	})
	require.NoError(t, err)

	require.NoError(t, st.UpsertChunk(context.Background(), &models.ScriptChunk{
		GenerationRef: gen.ID, SectionIndex: 0, SectionTitle: "S0", TextContent: "text",
	}))
	require.NoError(t, st.FailGeneration(context.Background(), gen.ID,
		[]models.GenerationStatus{models.StatusPending},
		models.StatusAudioFailed, models.StageAudioChunk, "tts down"))

	require.NoError(t, svc.ResetGeneration(context.Background(), gen.ID))

	stored, err := st.GetGeneration(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.Error)
	assert.Empty(t, stored.Outline)
	assert.Empty(t, stored.FinalAudioPath)

	chunks, err := st.ListChunks(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestResetTopicLink(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title: "Dangling", Language: "English",
	})
	require.NoError(t, err)

	// While the generation exists the link is refused.
	err = svc.ResetTopicLink(context.Background(), gen.TopicRef)
	assert.ErrorIs(t, err, ErrTopicLinked)

	// After the generation disappears the dangling link can be cleared.
	require.NoError(t, st.DeleteGeneration(context.Background(), gen.ID))
	require.NoError(t, svc.ResetTopicLink(context.Background(), gen.TopicRef))

	topic, err := st.GetTopic(context.Background(), gen.TopicRef)
	require.NoError(t, err)
	assert.False(t, topic.Linked())
	assert.Equal(t, models.TopicGenerationReset, topic.Status)
}

func TestGenerationStatus(t *testing.T) {
	st := storetest.New()
	svc := testService(st, &fakeTitleClient{})

	gen, err := svc.EnqueueFromTopic(context.Background(), TopicSubmission{
		Title: "Status Check", Language: "English",
	})
	require.NoError(t, err)

	status, err := svc.GenerationStatus(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)

	_, err = svc.GenerationStatus(context.Background(), bson.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)
}
