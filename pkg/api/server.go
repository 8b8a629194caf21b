// Package api exposes the HTTP surface: topic intake, generation submission,
// the operator controls, and health.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scriptorium/scriptorium/pkg/queue"
	"github.com/scriptorium/scriptorium/pkg/services"
)

// HealthReporter exposes worker pool health for the health endpoint.
type HealthReporter interface {
	Health(ctx context.Context) *queue.PoolHealth
}

// Server is the HTTP API server.
type Server struct {
	svc    *services.IntakeService
	health HealthReporter
	http   *http.Server
}

// NewServer creates the API server.
func NewServer(addr string, svc *services.IntakeService, health HealthReporter) *Server {
	s := &Server{svc: svc, health: health}
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/handle_initial_submission", s.handleInitialSubmission)
	r.POST("/submit_selected_for_generation", s.submitSelectedForGeneration)
	r.DELETE("/delete_topic/:id", s.deleteTopic)
	r.DELETE("/delete_generation/:id", s.deleteGeneration)
	r.POST("/reset_generation/:id", s.resetGeneration)
	r.POST("/reset_topic_link/:id", s.resetTopicLink)
	r.GET("/api/generation_status/:id", s.generationStatus)
	r.GET("/health", s.healthCheck)

	return r
}

// ListenAndServe blocks serving HTTP until Shutdown or failure.
func (s *Server) ListenAndServe() error {
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
