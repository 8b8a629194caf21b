package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/scriptorium/scriptorium/pkg/models"
	"github.com/scriptorium/scriptorium/pkg/services"
)

// handleInitialSubmission handles POST /handle_initial_submission.
// The task_type field selects the branch: from_topic produces title
// suggestions for the seed, rewrite_script enqueues the source script
// directly.
func (s *Server) handleInitialSubmission(c *gin.Context) {
	taskType := c.DefaultPostForm("task_type", string(models.TaskTypeFromTopic))
	language := c.PostForm("language")

	switch models.TaskType(taskType) {
	case models.TaskTypeRewriteScript:
		gen, err := s.svc.EnqueueRewrite(c.Request.Context(), services.RewriteSubmission{
			SourceScript:    c.PostForm("source_script"),
			Language:        language,
			Model:           c.PostForm("model"),
			Priority:        parsePriority(c.PostForm("priority")),
			DurationMinutes: parseDuration(c.PostForm("target_duration"), 60),
		})
		if err != nil {
			mapServiceError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"generation_id": gen.ID.Hex(),
			"task_type":     gen.TaskType,
			"status":        gen.Status,
		})

	case models.TaskTypeFromTopic:
		suggestions, err := s.svc.SuggestTopics(c.Request.Context(), c.PostForm("seed_topic"), language)
		if err != nil {
			mapServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task_type"})
	}
}

// submitSelectedForGeneration handles POST /submit_selected_for_generation.
// The form carries the selections as "original||translation" values and the
// shared settings in the *_submit fields. Each selection is enqueued
// independently; duplicates are reported, not fatal.
func (s *Server) submitSelectedForGeneration(c *gin.Context) {
	selected := c.PostFormArray("selected_suggestion")
	if len(selected) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no suggestions selected"})
		return
	}

	language := c.PostForm("language_for_generation")
	model := c.PostForm("model_submit")
	priority := parsePriority(c.PostForm("priority_submit"))
	duration := parseDuration(c.PostForm("target_duration_submit"), 60)

	type skipped struct {
		Title  string `json:"title"`
		Reason string `json:"reason"`
	}
	var enqueued []string
	var skips []skipped

	for _, value := range selected {
		title, translation := splitSelectedSuggestion(value)
		gen, err := s.svc.EnqueueFromTopic(c.Request.Context(), services.TopicSubmission{
			Title:           title,
			TranslatedTitle: translation,
			Language:        language,
			Model:           model,
			Priority:        priority,
			DurationMinutes: duration,
		})
		if err != nil {
			skips = append(skips, skipped{Title: title, Reason: err.Error()})
			continue
		}
		enqueued = append(enqueued, gen.ID.Hex())
	}

	status := http.StatusAccepted
	if len(enqueued) == 0 {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"enqueued": enqueued,
		"skipped":  skips,
	})
}

func (s *Server) deleteTopic(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.svc.DeleteTopic(c.Request.Context(), id); err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id.Hex()})
}

func (s *Server) deleteGeneration(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.svc.DeleteGeneration(c.Request.Context(), id); err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id.Hex()})
}

func (s *Server) resetGeneration(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.svc.ResetGeneration(c.Request.Context(), id); err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": id.Hex()})
}

func (s *Server) resetTopicLink(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if err := s.svc.ResetTopicLink(c.Request.Context(), id); err != nil {
		mapServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": id.Hex()})
}

// generationStatus handles GET /api/generation_status/:id, the polling
// endpoint for the operator UI.
func (s *Server) generationStatus(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	gen, err := s.svc.GenerationStatus(c.Request.Context(), id)
	if err != nil {
		mapServiceError(c, err)
		return
	}

	resp := gin.H{
		"status":     gen.Status,
		"updated_at": gen.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if gen.Error != nil {
		resp["error"] = gin.H{
			"stage":     gen.Error.Stage,
			"message":   gen.Error.Message,
			"timestamp": gen.Error.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	if gen.FinalAudioPath != "" {
		resp["final_audio_path"] = gen.FinalAudioPath
	}
	c.JSON(http.StatusOK, resp)
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	health := s.health.Health(ctx)
	status := http.StatusOK
	if !health.IsHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func parseID(c *gin.Context) (bson.ObjectID, bool) {
	id, err := bson.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return bson.ObjectID{}, false
	}
	return id, true
}
