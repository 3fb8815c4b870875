// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"persona-workers/internal/aggregation"
	"persona-workers/internal/common/errors"
	"persona-workers/internal/common/logger"
	"persona-workers/internal/common/validation"
	"persona-workers/internal/demographics"
	"persona-workers/internal/models"
)

// ==========================
// 1. Collaborator Interfaces
// ==========================

// GenerationTasks is the slice of the task store the API writes to.
type GenerationTasks interface {
	CreateGenerationTask(ctx context.Context, t *models.GenerationTask) error
	GetGenerationTask(ctx context.Context, externalID string) (*models.GenerationTask, error)
}

// AggregationTasks creates and reads aggregation tasks.
type AggregationTasks interface {
	CreateOrResetAggregationTask(ctx context.Context, stimulusID int64, city string) (*models.AggregationTask, error)
	GetAggregationTask(ctx context.Context, stimulusTitle, city string) (*models.AggregationTask, error)
}

// DemographicsWriter persists the axes of a weighted request.
type DemographicsWriter interface {
	UpsertSubCategory(ctx context.Context, categoryName, subName, city string, percentage float64) (*models.SubCategory, error)
}

// Stimuli resolves stimuli and their predefined options.
type Stimuli interface {
	GetOrCreate(ctx context.Context, title, content string) (*models.Stimulus, error)
	GetOrCreateOption(ctx context.Context, stimulusID int64, text string) (*models.ResponseOption, error)
}

// ==========================
// 2. Handler
// ==========================

// Handler serves the persona generation and impact aggregation API.
type Handler struct {
	generation   GenerationTasks
	aggregations AggregationTasks
	demographics DemographicsWriter
	stimuli      Stimuli
	cache        *redis.Client
	uploadDir    string
	log          logger.Logger
}

// NewHandler wires the API handler. cache may be nil; uploadDir empty
// selects the system temp directory for bulk uploads.
func NewHandler(
	generation GenerationTasks,
	aggregations AggregationTasks,
	demographics DemographicsWriter,
	stimuli Stimuli,
	cache *redis.Client,
	uploadDir string,
	log logger.Logger,
) *Handler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &Handler{
		generation:   generation,
		aggregations: aggregations,
		demographics: demographics,
		stimuli:      stimuli,
		cache:        cache,
		uploadDir:    uploadDir,
		log:          log,
	}
}

// GeneratePersonas accepts either a JSON weighted request or a
// multipart upload ("city" field plus a "file" CSV) for bulk mode.
// Both create a pending generation task; nothing is materialized inline.
func (h *Handler) GeneratePersonas(c *gin.Context) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.generateBulk(c)
		return
	}
	h.generateWeighted(c)
}

func (h *Handler) generateWeighted(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	result, err := validation.ValidateGenerationRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": result.Errors})
		return
	}

	var req GenerateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// reject bad axis configurations before any rows are written
	axes := make([]demographics.Axis, len(req.Demographics))
	for i, d := range req.Demographics {
		axes[i] = demographics.Axis{Category: d.Category}
		for _, sub := range d.SubCategories {
			axes[i].Options = append(axes[i].Options, demographics.Option{
				Name:       sub.Name,
				Percentage: sub.Percentage,
			})
		}
	}
	if err := demographics.ValidateAxes(axes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	for _, d := range req.Demographics {
		for _, sub := range d.SubCategories {
			if _, err := h.demographics.UpsertSubCategory(ctx, d.Category, sub.Name, req.City, sub.Percentage); err != nil {
				h.log.Error("persisting demographics failed", map[string]interface{}{"error": err.Error()})
				c.JSON(http.StatusInternalServerError, gin.H{"error": "storing demographics failed"})
				return
			}
		}
	}

	task := &models.GenerationTask{
		ExternalID: uuid.NewString(),
		City:       req.City,
		Population: req.Population,
	}
	if err := h.generation.CreateGenerationTask(ctx, task); err != nil {
		h.log.Error("creating generation task failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating task failed"})
		return
	}

	c.JSON(http.StatusAccepted, TaskResponse{TaskID: task.ExternalID, Status: string(task.Status)})
}

func (h *Handler) generateBulk(c *gin.Context) {
	city := strings.TrimSpace(c.PostForm("city"))
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city is required"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(file.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must be a CSV"})
		return
	}

	externalID := uuid.NewString()
	dest := filepath.Join(h.uploadDir, externalID+".csv")
	if err := c.SaveUploadedFile(file, dest); err != nil {
		h.log.Error("saving upload failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving upload failed"})
		return
	}

	task := &models.GenerationTask{
		ExternalID: externalID,
		City:       city,
		SourceFile: dest,
	}
	if err := h.generation.CreateGenerationTask(c.Request.Context(), task); err != nil {
		h.log.Error("creating generation task failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating task failed"})
		return
	}

	c.JSON(http.StatusAccepted, TaskResponse{TaskID: task.ExternalID, Status: string(task.Status)})
}

// GetGenerationTask reports the lifecycle state of one task.
func (h *Handler) GetGenerationTask(c *gin.Context) {
	task, err := h.generation.GetGenerationTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		if stdErr, ok := err.(*errors.StandardError); ok && stdErr.Code == errors.ErrCodeTaskNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}
		h.log.Error("loading generation task failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading task failed"})
		return
	}

	c.JSON(http.StatusOK, TaskResponse{
		TaskID:       task.ExternalID,
		Status:       string(task.Status),
		ErrorMessage: task.ErrorMessage,
	})
}

// Aggregate creates or resets the aggregation task for one
// (stimulus, city) pair and registers any predefined response options.
func (h *Handler) Aggregate(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	result, err := validation.ValidateAggregationRequest(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !result.Valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": result.Errors})
		return
	}

	var req AggregateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	stimulus, err := h.stimuli.GetOrCreate(ctx, req.StimulusTitle, req.Content)
	if err != nil {
		h.log.Error("resolving stimulus failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "resolving stimulus failed"})
		return
	}
	for _, text := range req.PossibleResponses {
		if _, err := h.stimuli.GetOrCreateOption(ctx, stimulus.ID, text); err != nil {
			h.log.Error("storing response option failed", map[string]interface{}{"error": err.Error()})
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storing response option failed"})
			return
		}
	}

	task, err := h.aggregations.CreateOrResetAggregationTask(ctx, stimulus.ID, req.City)
	if err != nil {
		h.log.Error("creating aggregation task failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "creating task failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":         string(task.Status),
		"stimulus_title": req.StimulusTitle,
		"city":           req.City,
	})
}

// GetSummary serves an aggregation result, consulting the Redis cache
// before the database.
func (h *Handler) GetSummary(c *gin.Context) {
	city := c.Query("city")
	title := c.Query("stimulus_title")
	if city == "" || title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "city and stimulus_title are required"})
		return
	}

	ctx := c.Request.Context()
	if h.cache != nil {
		cached, err := h.cache.Get(ctx, aggregation.SummaryCacheKey(city, title)).Result()
		if err == nil {
			var payload struct {
				Summary            models.Summary            `json:"summary"`
				DemographicSummary models.DemographicSummary `json:"demographic_summary"`
			}
			if json.Unmarshal([]byte(cached), &payload) == nil {
				c.JSON(http.StatusOK, SummaryResponse{
					Status:             string(models.StatusCompleted),
					Summary:            payload.Summary,
					DemographicSummary: payload.DemographicSummary,
				})
				return
			}
		}
	}

	task, err := h.aggregations.GetAggregationTask(ctx, title, city)
	if err != nil {
		if stdErr, ok := err.(*errors.StandardError); ok && stdErr.Code == errors.ErrCodeTaskNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
			return
		}
		h.log.Error("loading aggregation task failed", map[string]interface{}{"error": err.Error()})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "loading summary failed"})
		return
	}

	c.JSON(http.StatusOK, SummaryResponse{
		Status:             string(task.Status),
		Summary:            task.Summary,
		DemographicSummary: task.DemographicSummary,
		ErrorMessage:       task.ErrorMessage,
	})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
