// internal/aggregation/worker.go
package aggregation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/common/logger"
	"persona-workers/internal/common/metrics"
	"persona-workers/internal/models"
	"persona-workers/internal/provider"
)

// ==========================
// 1. Collaborator Interfaces
// ==========================

// TaskQueue is the slice of the task store the worker drives.
type TaskQueue interface {
	ListUnfinishedAggregationTasks(ctx context.Context, city string) ([]models.AggregationTask, error)
	MarkAggregationProcessing(ctx context.Context, id int64) error
	SaveAggregationResult(ctx context.Context, id int64, summary models.Summary, demographic models.DemographicSummary) error
	MarkAggregationFailed(ctx context.Context, id int64, message string) error
}

// PopulationSource lists the personas of a city.
type PopulationSource interface {
	ListByCity(ctx context.Context, city string) ([]models.Persona, error)
}

// CategorySource lists the demographic axes of a city.
type CategorySource interface {
	ListCategories(ctx context.Context, city string) ([]models.Category, error)
}

// StimulusSource resolves stimuli and their predefined options.
type StimulusSource interface {
	GetByTitle(ctx context.Context, title string) (*models.Stimulus, error)
	ListOptions(ctx context.Context, stimulusID int64) ([]models.ResponseOption, error)
}

// EventStore reads and writes (persona, stimulus) response events.
type EventStore interface {
	Get(ctx context.Context, personaID, stimulusID int64) (*models.ResponseEvent, error)
	Create(ctx context.Context, ev *models.ResponseEvent) error
}

// ==========================
// 2. Worker
// ==========================

// Config carries the worker's runtime knobs.
type Config struct {
	PollInterval time.Duration
	// City restricts the sweep when non-empty.
	City string
	// CallTimeout bounds each provider call.
	CallTimeout time.Duration
	// SummaryTTL bounds the cached summary lifetime in Redis.
	SummaryTTL time.Duration
}

// Worker polls for unfinished aggregation tasks and resolves them one
// at a time. A failed task is marked and skipped; the loop keeps going.
type Worker struct {
	cfg        Config
	tasks      TaskQueue
	personas   PopulationSource
	categories CategorySource
	stimuli    StimulusSource
	events     EventStore
	prov       provider.Provider
	cache      *redis.Client
	log        logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewWorker wires the worker. cache may be nil to disable the summary
// write-through.
func NewWorker(
	cfg Config,
	tasks TaskQueue,
	personas PopulationSource,
	categories CategorySource,
	stimuli StimulusSource,
	events EventStore,
	prov provider.Provider,
	cache *redis.Client,
	log logger.Logger,
) *Worker {
	return &Worker{
		cfg:        cfg,
		tasks:      tasks,
		personas:   personas,
		categories: categories,
		stimuli:    stimuli,
		events:     events,
		prov:       prov,
		cache:      cache,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called or ctx is cancelled.
// Cycles never overlap; a long cycle simply delays the next tick.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info("aggregation worker started", map[string]interface{}{
		"poll_interval": w.cfg.PollInterval.String(),
		"city":          w.cfg.City,
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// Stop asks the loop to exit and waits for the current cycle to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}

func (w *Worker) runCycle(ctx context.Context) {
	tasks, err := w.tasks.ListUnfinishedAggregationTasks(ctx, w.cfg.City)
	if err != nil {
		w.log.Error("listing aggregation tasks failed", map[string]interface{}{"error": err.Error()})
		return
	}

	for _, task := range tasks {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		start := time.Now()
		if err := w.processTask(ctx, &task); err != nil {
			w.log.Error("aggregation task failed", map[string]interface{}{
				"task_id":  task.ID,
				"stimulus": task.StimulusTitle,
				"city":     task.City,
				"error":    err.Error(),
			})
			metrics.TasksFailed.WithLabelValues("aggregation", errors.CodeOf(err)).Inc()
			if markErr := w.tasks.MarkAggregationFailed(ctx, task.ID, err.Error()); markErr != nil {
				w.log.Error("marking aggregation task failed errored", map[string]interface{}{
					"task_id": task.ID,
					"error":   markErr.Error(),
				})
			}
			continue
		}
		metrics.TasksCompleted.WithLabelValues("aggregation").Inc()
		metrics.TaskDuration.WithLabelValues("aggregation").Observe(time.Since(start).Seconds())
	}
}

func (w *Worker) processTask(ctx context.Context, task *models.AggregationTask) error {
	if err := w.tasks.MarkAggregationProcessing(ctx, task.ID); err != nil {
		return err
	}

	stimulus, err := w.stimuli.GetByTitle(ctx, task.StimulusTitle)
	if err != nil {
		return err
	}
	if stimulus == nil {
		return errors.NewAggregationFailedError(task.City, task.StimulusTitle,
			fmt.Errorf("stimulus %q not found", task.StimulusTitle))
	}

	options, err := w.stimuli.ListOptions(ctx, stimulus.ID)
	if err != nil {
		return err
	}
	optionText := make(map[int64]string, len(options))
	for _, opt := range options {
		optionText[opt.ID] = opt.Text
	}

	// A city with no personas still completes: the fold over zero
	// responses yields an all-zero summary with 0 percentages.
	personas, err := w.personas.ListByCity(ctx, task.City)
	if err != nil {
		return err
	}

	categories, err := w.categories.ListCategories(ctx, task.City)
	if err != nil {
		return err
	}

	agg := NewAggregator(categories)
	for i := range personas {
		ev, err := w.resolveEvent(ctx, &personas[i], stimulus, options)
		if err != nil {
			return err
		}
		agg.Add(&personas[i], ev.Label)
		if ev.OptionID != nil {
			if text, ok := optionText[*ev.OptionID]; ok {
				agg.AddOption(text)
			}
		}
	}

	summary, demographic := agg.Finalize()
	if err := w.tasks.SaveAggregationResult(ctx, task.ID, summary, demographic); err != nil {
		return err
	}
	w.cacheSummary(ctx, task, summary, demographic)

	w.log.Info("aggregation task completed", map[string]interface{}{
		"task_id":  task.ID,
		"stimulus": task.StimulusTitle,
		"city":     task.City,
		"total":    summary.Total,
	})
	return nil
}

// resolveEvent returns the stored event for the pair when one exists,
// and otherwise asks the provider exactly once and persists the result.
func (w *Worker) resolveEvent(ctx context.Context, persona *models.Persona, stimulus *models.Stimulus, options []models.ResponseOption) (*models.ResponseEvent, error) {
	existing, err := w.events.Get(ctx, persona.ID, stimulus.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.ResponseEventsReused.Inc()
		return existing, nil
	}

	content := stimulus.Content
	if content == "" {
		content = stimulus.Title
	}
	var prompt string
	if len(options) > 0 {
		texts := make([]string, len(options))
		for i, opt := range options {
			texts[i] = opt.Text
		}
		prompt = provider.BuildChoicePrompt(persona, content, texts)
	} else {
		prompt = provider.BuildReactionPrompt(persona, content)
	}

	callCtx, cancel := context.WithTimeout(ctx, w.cfg.CallTimeout)
	raw, err := w.prov.Generate(callCtx, prompt)
	cancel()
	if err != nil {
		metrics.ProviderCalls.WithLabelValues(w.prov.Name(), "error").Inc()
		return nil, err
	}
	metrics.ProviderCalls.WithLabelValues(w.prov.Name(), "success").Inc()

	reaction, err := provider.ParseReaction(raw)
	if err != nil {
		return nil, err
	}

	ev := &models.ResponseEvent{
		PersonaID:   persona.ID,
		StimulusID:  stimulus.ID,
		Label:       reaction.Label,
		Intensity:   reaction.Intensity,
		Explanation: reaction.Explanation,
	}
	if reaction.Response != "" {
		for _, opt := range options {
			if opt.Text == reaction.Response {
				id := opt.ID
				ev.OptionID = &id
				break
			}
		}
	}

	if err := w.events.Create(ctx, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// SummaryCacheKey names the Redis entry for one (city, stimulus) rollup.
func SummaryCacheKey(city, stimulusTitle string) string {
	return fmt.Sprintf("summary:%s:%s", city, stimulusTitle)
}

type cachedSummary struct {
	Summary            models.Summary            `json:"summary"`
	DemographicSummary models.DemographicSummary `json:"demographic_summary"`
}

func (w *Worker) cacheSummary(ctx context.Context, task *models.AggregationTask, summary models.Summary, demographic models.DemographicSummary) {
	if w.cache == nil {
		return
	}
	payload, err := json.Marshal(cachedSummary{Summary: summary, DemographicSummary: demographic})
	if err != nil {
		return
	}
	key := SummaryCacheKey(task.City, task.StimulusTitle)
	if err := w.cache.Set(ctx, key, payload, w.cfg.SummaryTTL).Err(); err != nil {
		w.log.Warn("summary cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
