// internal/generation/worker.go
package generation

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/common/logger"
	"persona-workers/internal/common/metrics"
	"persona-workers/internal/demographics"
	"persona-workers/internal/models"
)

// ==========================
// 1. Collaborator Interfaces
// ==========================

// TaskQueue is the slice of the task store the worker drives.
type TaskQueue interface {
	ClaimNextGenerationTask(ctx context.Context) (*models.GenerationTask, error)
	UpdateGenerationStatus(ctx context.Context, id int64, status models.TaskStatus, errorMessage string) error
}

// CategorySource lists the demographic axes of a city.
type CategorySource interface {
	ListCategories(ctx context.Context, city string) ([]models.Category, error)
}

// Materializer turns persona blueprints into persisted personas.
type Materializer interface {
	Materialize(ctx context.Context, blueprints []models.Persona) ([]models.Persona, error)
}

// BulkIngester materializes personas from tabular input.
type BulkIngester interface {
	Ingest(ctx context.Context, city string, r io.Reader) (int, error)
}

// ==========================
// 2. Worker
// ==========================

// Config carries the worker's runtime knobs.
type Config struct {
	PollInterval time.Duration
}

// Worker polls for pending generation tasks and runs one at a time.
// A weighted task allocates the population across the city's axes and
// materializes the result; a bulk task streams a source file through
// the ingester instead.
type Worker struct {
	cfg        Config
	tasks      TaskQueue
	categories CategorySource
	factory    Materializer
	ingester   BulkIngester
	log        logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewWorker(cfg Config, tasks TaskQueue, categories CategorySource, factory Materializer, ingester BulkIngester, log logger.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		tasks:      tasks,
		categories: categories,
		factory:    factory,
		ingester:   ingester,
		log:        log,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.log.Info("generation worker started", map[string]interface{}{
		"poll_interval": w.cfg.PollInterval.String(),
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

// runCycle drains the pending queue. Each claimed task is run to a
// terminal state before the next claim.
func (w *Worker) runCycle(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		task, err := w.tasks.ClaimNextGenerationTask(ctx)
		if err != nil {
			w.log.Error("claiming generation task failed", map[string]interface{}{"error": err.Error()})
			return
		}
		if task == nil {
			return
		}

		start := time.Now()
		if err := w.processTask(ctx, task); err != nil {
			w.log.Error("generation task failed", map[string]interface{}{
				"task_id":     task.ID,
				"external_id": task.ExternalID,
				"city":        task.City,
				"error":       err.Error(),
			})
			metrics.TasksFailed.WithLabelValues("generation", errors.CodeOf(err)).Inc()
			if markErr := w.tasks.UpdateGenerationStatus(ctx, task.ID, models.StatusFailed, err.Error()); markErr != nil {
				w.log.Error("marking generation task failed errored", map[string]interface{}{
					"task_id": task.ID,
					"error":   markErr.Error(),
				})
			}
			continue
		}

		if err := w.tasks.UpdateGenerationStatus(ctx, task.ID, models.StatusCompleted, ""); err != nil {
			w.log.Error("marking generation task completed errored", map[string]interface{}{
				"task_id": task.ID,
				"error":   err.Error(),
			})
			continue
		}
		metrics.TasksCompleted.WithLabelValues("generation").Inc()
		metrics.TaskDuration.WithLabelValues("generation").Observe(time.Since(start).Seconds())
	}
}

func (w *Worker) processTask(ctx context.Context, task *models.GenerationTask) error {
	if task.SourceFile != "" {
		return w.processBulk(ctx, task)
	}
	return w.processWeighted(ctx, task)
}

// processWeighted allocates the target population across the city's
// axes and materializes one persona per allocated unit.
func (w *Worker) processWeighted(ctx context.Context, task *models.GenerationTask) error {
	if task.Population <= 0 {
		return errors.NewInvalidPopulationError(task.Population)
	}

	categories, err := w.categories.ListCategories(ctx, task.City)
	if err != nil {
		return err
	}

	axes, subIDs := buildAxes(categories)
	// Stored shares can drift from 100 (stale rows from an earlier
	// request); the policy check lives here, not in the allocator.
	if err := demographics.ValidateAxes(axes); err != nil {
		return err
	}
	allocs, err := demographics.Allocate(task.Population, axes)
	if err != nil {
		return err
	}

	var blueprints []models.Persona
	for _, alloc := range allocs {
		if alloc.Count == 0 {
			continue
		}
		mappings := make([]models.SubCategoryRef, len(alloc.Combination.Picks))
		for i, pick := range alloc.Combination.Picks {
			mappings[i] = models.SubCategoryRef{
				SubCategoryID: subIDs[pick.Category][pick.Option],
				SubCategory:   pick.Option,
				Category:      pick.Category,
			}
		}
		for n := 0; n < alloc.Count; n++ {
			refs := make([]models.SubCategoryRef, len(mappings))
			copy(refs, mappings)
			blueprints = append(blueprints, models.Persona{City: task.City, Mappings: refs})
		}
	}

	created, err := w.factory.Materialize(ctx, blueprints)
	if err != nil {
		return err
	}

	w.log.Info("generated personas", map[string]interface{}{
		"task_id": task.ID,
		"city":    task.City,
		"count":   len(created),
	})
	return nil
}

// processBulk streams the task's source file through the ingester.
func (w *Worker) processBulk(ctx context.Context, task *models.GenerationTask) error {
	f, err := os.Open(task.SourceFile)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer f.Close()

	created, err := w.ingester.Ingest(ctx, task.City, f)
	if err != nil {
		return err
	}

	w.log.Info("ingested personas", map[string]interface{}{
		"task_id": task.ID,
		"city":    task.City,
		"count":   created,
		"source":  task.SourceFile,
	})
	return nil
}

// buildAxes converts stored categories into allocator axes, keeping a
// lookup from (category, option) back to the subcategory row id.
func buildAxes(categories []models.Category) ([]demographics.Axis, map[string]map[string]int64) {
	axes := make([]demographics.Axis, 0, len(categories))
	subIDs := make(map[string]map[string]int64, len(categories))
	for _, cat := range categories {
		axis := demographics.Axis{Category: cat.Name}
		ids := make(map[string]int64, len(cat.SubCategories))
		for _, sub := range cat.SubCategories {
			axis.Options = append(axis.Options, demographics.Option{
				Name:       sub.Name,
				Percentage: sub.Percentage,
			})
			ids[sub.Name] = sub.ID
		}
		axes = append(axes, axis)
		subIDs[cat.Name] = ids
	}
	return axes, subIDs
}
