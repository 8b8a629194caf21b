package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/queue"
	"github.com/scriptorium/scriptorium/pkg/services"
	"github.com/scriptorium/scriptorium/pkg/store/storetest"
)

type fakeTitleClient struct{}

func (fakeTitleClient) SuggestTitles(_ context.Context, _, seed, _ string, n int) ([]string, error) {
	titles := make([]string, n)
	for i := range titles {
		titles[i] = seed + " title"
	}
	return titles[:2], nil
}

func (fakeTitleClient) TranslateTitle(_ context.Context, _, title, _ string) (string, error) {
	return "Translated: " + title, nil
}

type fakeHealth struct{ healthy bool }

func (f fakeHealth) Health(context.Context) *queue.PoolHealth {
	return &queue.PoolHealth{IsHealthy: f.healthy, StoreReachable: f.healthy, PodID: "test-pod"}
}

func testServer(t *testing.T, st *storetest.Fake) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := services.NewIntakeService(st, fakeTitleClient{}, services.IntakeConfig{
		DefaultModel:    "gpt-4o-mini",
		DisplayLanguage: "Vietnamese",
		SuggestionCount: 2,
	})
	return NewServer(":0", svc, fakeHealth{healthy: true})
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	return rec
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHandleInitialSubmissionSuggestsTopics(t *testing.T) {
	st := storetest.New()
	s := testServer(t, st)

	rec := postForm(t, s, "/handle_initial_submission", url.Values{
		"task_type":  {"from_topic"},
		"seed_topic": {"stoic philosophy"},
		"language":   {"English"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	suggestions, ok := body["suggestions"].([]any)
	require.True(t, ok)
	require.Len(t, suggestions, 2)

	first, ok := suggestions[0].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, first["original"])
	assert.Equal(t, "Translated: "+first["original"].(string), first["translation_vi"])

	// Suggesting persists nothing; topics appear only on selection.
	assert.Empty(t, st.Topics())
}

func TestHandleInitialSubmissionDefaultsToFromTopic(t *testing.T) {
	s := testServer(t, storetest.New())

	// No task_type falls back to from_topic, matching the form default.
	rec := postForm(t, s, "/handle_initial_submission", url.Values{
		"seed_topic": {"stoic philosophy"},
		"language":   {"English"},
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postForm(t, s, "/handle_initial_submission", url.Values{
		"task_type":  {"make_coffee"},
		"seed_topic": {"stoic philosophy"},
		"language":   {"English"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleInitialSubmissionEnqueuesRewrite(t *testing.T) {
	st := storetest.New()
	s := testServer(t, st)

	rec := postForm(t, s, "/handle_initial_submission", url.Values{
		"task_type":       {"rewrite_script"},
		"language":        {"Vietnamese"},
		"source_script":   {"A long source script to rewrite."},
		"priority":        {"high"},
		"target_duration": {"45"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, string(models.StatusPending), body["status"])

	id, err := bson.ObjectIDFromHex(body["generation_id"].(string))
	require.NoError(t, err)
	gen, err := st.GetGeneration(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.TaskTypeRewriteScript, gen.TaskType)
	assert.Equal(t, models.PriorityHigh, gen.Priority)
	assert.Equal(t, 45, gen.TargetDuration)
}

func TestHandleInitialSubmissionValidation(t *testing.T) {
	s := testServer(t, storetest.New())

	rec := postForm(t, s, "/handle_initial_submission", url.Values{
		"language": {"English"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitSelectedForGeneration(t *testing.T) {
	st := storetest.New()
	s := testServer(t, st)

	rec := postForm(t, s, "/submit_selected_for_generation", url.Values{
		"selected_suggestion": {
			"The Art of Patience||Nghệ thuật kiên nhẫn",
			"On Courage",
		},
		"language_for_generation": {"English"},
		"priority_submit":         {"high"},
		"target_duration_submit":  {"90"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	body := decode(t, rec)
	enqueued, ok := body["enqueued"].([]any)
	require.True(t, ok)
	require.Len(t, enqueued, 2)

	id, err := bson.ObjectIDFromHex(enqueued[0].(string))
	require.NoError(t, err)
	gen, err := st.GetGeneration(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "The Art of Patience", gen.Title)
	assert.Equal(t, "Nghệ thuật kiên nhẫn", gen.TranslatedTitle)
	assert.Equal(t, models.PriorityHigh, gen.Priority)
	assert.Equal(t, 90, gen.TargetDuration)
}

func TestSubmitSelectedReportsDuplicates(t *testing.T) {
	st := storetest.New()
	s := testServer(t, st)

	form := url.Values{
		"selected_suggestion":     {"The Art of Patience"},
		"language_for_generation": {"English"},
	}
	rec := postForm(t, s, "/submit_selected_for_generation", form)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The second submission finds the active generation and skips the topic.
	rec = postForm(t, s, "/submit_selected_for_generation", form)
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode(t, rec)
	skipped, ok := body["skipped"].([]any)
	require.True(t, ok)
	assert.Len(t, skipped, 1)
}

func TestSubmitSelectedRequiresSelection(t *testing.T) {
	s := testServer(t, storetest.New())
	rec := postForm(t, s, "/submit_selected_for_generation", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerationStatusEndpoint(t *testing.T) {
	st := storetest.New()
	s := testServer(t, st)

	g, err := st.InsertGeneration(context.Background(), &models.Generation{
		TaskType: models.TaskTypeFromTopic,
		Language: "English",
		Status:   models.StatusContentGenerating,
	})
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/api/generation_status/"+g.ID.Hex())
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, string(models.StatusContentGenerating), body["status"])
	assert.NotEmpty(t, body["updated_at"])
	assert.NotContains(t, body, "error")

	// Failed generations carry the stage-tagged error.
	require.NoError(t, st.FailGeneration(context.Background(), g.ID,
		[]models.GenerationStatus{models.StatusContentGenerating},
		models.StatusAudioFailed, models.StageAudioChunk, "tts down"))

	rec = do(t, s, http.MethodGet, "/api/generation_status/"+g.ID.Hex())
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	errBody, ok := body["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.StageAudioChunk, errBody["stage"])
	assert.Equal(t, "tts down", errBody["message"])
}

func TestGenerationStatusUnknownID(t *testing.T) {
	s := testServer(t, storetest.New())

	rec := do(t, s, http.MethodGet, "/api/generation_status/"+bson.NewObjectID().Hex())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/generation_status/not-an-id")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAndResetEndpoints(t *testing.T) {
	st := storetest.New()
	s := testServer(t, st)

	rec := postForm(t, s, "/submit_selected_for_generation", url.Values{
		"selected_suggestion":     {"Doomed Topic"},
		"language_for_generation": {"English"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)
	genID := decode(t, rec)["enqueued"].([]any)[0].(string)

	id, err := bson.ObjectIDFromHex(genID)
	require.NoError(t, err)
	gen, err := st.GetGeneration(context.Background(), id)
	require.NoError(t, err)

	// Deleting the linked topic is refused while the generation exists.
	rec = do(t, s, http.MethodDelete, "/delete_topic/"+gen.TopicRef.Hex())
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s, http.MethodPost, "/reset_generation/"+genID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/delete_generation/"+genID)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodDelete, "/delete_topic/"+gen.TopicRef.Hex())
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	st := storetest.New()
	s := testServer(t, st)

	rec := do(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, true, body["is_healthy"])
	assert.Equal(t, "test-pod", body["pod_id"])
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	st := storetest.New()
	gin.SetMode(gin.TestMode)
	svc := services.NewIntakeService(st, fakeTitleClient{}, services.IntakeConfig{})
	s := NewServer(":0", svc, fakeHealth{healthy: false})

	rec := do(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
