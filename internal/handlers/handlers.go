// Package handlers exposes the pipeline over HTTP: start a run, poll its
// status, health check. Runs execute in the background; the API only ever
// returns run state, never blocks on a stage.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"newsroom-pipeline/internal/models"
	"newsroom-pipeline/internal/pkg/logger"
	"newsroom-pipeline/internal/store"
)

// PipelineService is the slice of the orchestrator the HTTP layer needs.
type PipelineService interface {
	StartRunAsync(idea string) (string, error)
	GetRun(slug string) (*models.PipelineRun, error)
}

type Handler struct {
	pipeline PipelineService
	logger   *logger.Logger
}

func New(pipeline PipelineService, log *logger.Logger) *Handler {
	return &Handler{pipeline: pipeline, logger: log}
}

type startRunRequest struct {
	Idea string `json:"idea" binding:"required"`
}

// StartRun accepts an idea, kicks the pipeline off in the background and
// returns the slug to poll.
func (h *Handler) StartRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idea is required"})
		return
	}

	slug, err := h.pipeline.StartRunAsync(req.Idea)
	if err != nil {
		h.logger.WithError(err).Error("failed to start run")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.logger.Info("run accepted", "slug", slug)
	c.JSON(http.StatusAccepted, gin.H{
		"slug":   slug,
		"status": "accepted",
	})
}

// GetRun reports the state of a run by slug.
func (h *Handler) GetRun(c *gin.Context) {
	slug := c.Param("slug")

	run, err := h.pipeline.GetRun(slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
			return
		}
		h.logger.WithError(err).Error("failed to load run", "slug", slug)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load run"})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Router wires the handler into a gin engine with recovery and request
// logging.
func Router(h *Handler, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(log))

	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	{
		api.POST("/runs", h.StartRun)
		api.GET("/runs/:slug", h.GetRun)
	}
	return router
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String())
	}
}
