// internal/store/tasks.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/models"
)

// TaskStore persists both task kinds. Generation tasks are claimed one
// at a time; aggregation tasks are swept per city.
type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

// ==========================
// 1. Generation Tasks
// ==========================

// CreateGenerationTask inserts a pending task and fills in its ID.
func (s *TaskStore) CreateGenerationTask(ctx context.Context, t *models.GenerationTask) error {
	t.Status = models.StatusPending
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO generation_tasks (external_id, city, population, source_file, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		t.ExternalID, t.City, t.Population, t.SourceFile, t.Status,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return errors.NewQueryExecutionFailedError("insert generation task", err)
	}
	return nil
}

// ClaimNextGenerationTask atomically moves the oldest pending task to
// in_progress and returns it, or nil when the queue is empty. FOR UPDATE
// SKIP LOCKED keeps concurrent pollers off the same row.
func (s *TaskStore) ClaimNextGenerationTask(ctx context.Context) (*models.GenerationTask, error) {
	t := &models.GenerationTask{}
	err := s.db.QueryRowContext(ctx, `
		UPDATE generation_tasks
		SET status = 'in_progress', updated_at = now()
		WHERE id = (
			SELECT id FROM generation_tasks
			WHERE status = 'pending'
			ORDER BY id
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, external_id, city, population, source_file, status, error_message, created_at, updated_at`,
	).Scan(&t.ID, &t.ExternalID, &t.City, &t.Population, &t.SourceFile,
		&t.Status, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("claim generation task", err)
	}
	return t, nil
}

// UpdateGenerationStatus moves a task to the given status, recording the
// error message for failures.
func (s *TaskStore) UpdateGenerationStatus(ctx context.Context, id int64, status models.TaskStatus, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE generation_tasks
		SET status = $1, error_message = $2, updated_at = now()
		WHERE id = $3`, status, errorMessage, id)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update generation task", err)
	}
	return nil
}

// GetGenerationTask resolves a task by its external id.
func (s *TaskStore) GetGenerationTask(ctx context.Context, externalID string) (*models.GenerationTask, error) {
	t := &models.GenerationTask{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, city, population, source_file, status, error_message, created_at, updated_at
		FROM generation_tasks
		WHERE external_id = $1`, externalID,
	).Scan(&t.ID, &t.ExternalID, &t.City, &t.Population, &t.SourceFile,
		&t.Status, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewTaskNotFoundError(externalID)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get generation task", err)
	}
	return t, nil
}

// ==========================
// 2. Aggregation Tasks
// ==========================

// CreateOrResetAggregationTask inserts a pending aggregation task for the
// (stimulus, city) pair, or resets an existing one back to pending with
// its previous results cleared. Re-aggregation is an explicit request.
func (s *TaskStore) CreateOrResetAggregationTask(ctx context.Context, stimulusID int64, city string) (*models.AggregationTask, error) {
	t := &models.AggregationTask{StimulusID: stimulusID, City: city, Status: models.StatusPending}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO aggregation_tasks (stimulus_id, city, status, summary, demographic_summary, error_message)
		VALUES ($1, $2, 'pending', '{}', '{}', '')
		ON CONFLICT (stimulus_id, city) DO UPDATE
		SET status = 'pending', summary = '{}', demographic_summary = '{}',
		    error_message = '', updated_at = now()
		RETURNING id, created_at, updated_at`, stimulusID, city,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("create aggregation task", err)
	}
	return t, nil
}

// ListUnfinishedAggregationTasks returns every non-terminal task, scoped
// to one city when city is non-empty. Tasks stuck in processing are
// included so an interrupted worker picks them back up.
func (s *TaskStore) ListUnfinishedAggregationTasks(ctx context.Context, city string) ([]models.AggregationTask, error) {
	query := `
		SELECT a.id, a.stimulus_id, st.title, a.city, a.status, a.error_message, a.created_at, a.updated_at
		FROM aggregation_tasks a
		JOIN stimuli st ON st.id = a.stimulus_id
		WHERE a.status IN ('pending', 'processing')`
	args := []interface{}{}
	if city != "" {
		query += ` AND a.city = $1`
		args = append(args, city)
	}
	query += ` ORDER BY a.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list aggregation tasks", err)
	}
	defer rows.Close()

	var tasks []models.AggregationTask
	for rows.Next() {
		var t models.AggregationTask
		if err := rows.Scan(&t.ID, &t.StimulusID, &t.StimulusTitle, &t.City,
			&t.Status, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan aggregation task", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// MarkAggregationProcessing moves a task into the processing state.
func (s *TaskStore) MarkAggregationProcessing(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE aggregation_tasks
		SET status = 'processing', updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark aggregation processing", err)
	}
	return nil
}

// SaveAggregationResult persists the computed summaries and completes
// the task.
func (s *TaskStore) SaveAggregationResult(ctx context.Context, id int64, summary models.Summary, demographic models.DemographicSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return errors.NewQueryExecutionFailedError("marshal summary", err)
	}
	demographicJSON, err := json.Marshal(demographic)
	if err != nil {
		return errors.NewQueryExecutionFailedError("marshal demographic summary", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE aggregation_tasks
		SET status = 'completed', summary = $1, demographic_summary = $2,
		    error_message = '', updated_at = now()
		WHERE id = $3`, summaryJSON, demographicJSON, id)
	if err != nil {
		return errors.NewQueryExecutionFailedError("save aggregation result", err)
	}
	return nil
}

// MarkAggregationFailed records a terminal failure with its message.
func (s *TaskStore) MarkAggregationFailed(ctx context.Context, id int64, message string) error {
	summary := models.Summary{Status: "failed", Error: message}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return errors.NewQueryExecutionFailedError("marshal failure summary", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE aggregation_tasks
		SET status = 'failed', summary = $1, error_message = $2, updated_at = now()
		WHERE id = $3`, summaryJSON, message, id)
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark aggregation failed", err)
	}
	return nil
}

// GetAggregationTask loads a task by (stimulus title, city), summaries
// included.
func (s *TaskStore) GetAggregationTask(ctx context.Context, stimulusTitle, city string) (*models.AggregationTask, error) {
	t := &models.AggregationTask{}
	var summaryJSON, demographicJSON []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT a.id, a.stimulus_id, st.title, a.city, a.status, a.summary,
		       a.demographic_summary, a.error_message, a.created_at, a.updated_at
		FROM aggregation_tasks a
		JOIN stimuli st ON st.id = a.stimulus_id
		WHERE st.title = $1 AND a.city = $2`, stimulusTitle, city,
	).Scan(&t.ID, &t.StimulusID, &t.StimulusTitle, &t.City, &t.Status,
		&summaryJSON, &demographicJSON, &t.ErrorMessage, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewTaskNotFoundError(stimulusTitle)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get aggregation task", err)
	}

	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &t.Summary); err != nil {
			return nil, errors.NewQueryExecutionFailedError("unmarshal summary", err)
		}
	}
	if len(demographicJSON) > 0 {
		if err := json.Unmarshal(demographicJSON, &t.DemographicSummary); err != nil {
			return nil, errors.NewQueryExecutionFailedError("unmarshal demographic summary", err)
		}
	}
	return t, nil
}
