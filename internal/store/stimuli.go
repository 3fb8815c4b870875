// internal/store/stimuli.go
package store

import (
	"context"
	"database/sql"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/models"
)

// StimulusStore persists stimuli and their predefined response options.
type StimulusStore struct {
	db *sql.DB
}

func NewStimulusStore(db *sql.DB) *StimulusStore {
	return &StimulusStore{db: db}
}

// GetOrCreate resolves a stimulus by title, creating it with the given
// content when absent. Existing content is not overwritten.
func (s *StimulusStore) GetOrCreate(ctx context.Context, title, content string) (*models.Stimulus, error) {
	st := &models.Stimulus{Title: title}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO stimuli (title, content)
		VALUES ($1, $2)
		ON CONFLICT (title) DO UPDATE SET title = EXCLUDED.title
		RETURNING id, content, created_at`, title, content).Scan(&st.ID, &st.Content, &st.CreatedAt)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get or create stimulus", err)
	}
	return st, nil
}

// GetByTitle looks a stimulus up without creating it.
func (s *StimulusStore) GetByTitle(ctx context.Context, title string) (*models.Stimulus, error) {
	st := &models.Stimulus{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, created_at
		FROM stimuli
		WHERE title = $1`, title).Scan(&st.ID, &st.Title, &st.Content, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get stimulus", err)
	}
	return st, nil
}

// GetOrCreateOption appends a response option to a stimulus, reusing an
// existing row with the same text.
func (s *StimulusStore) GetOrCreateOption(ctx context.Context, stimulusID int64, text string) (*models.ResponseOption, error) {
	opt := &models.ResponseOption{StimulusID: stimulusID, Text: text}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO response_options (stimulus_id, text)
		VALUES ($1, $2)
		ON CONFLICT (stimulus_id, text) DO UPDATE SET text = EXCLUDED.text
		RETURNING id, created_at`, stimulusID, text).Scan(&opt.ID, &opt.CreatedAt)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get or create response option", err)
	}
	return opt, nil
}

// ListOptions returns the predefined options of a stimulus in insertion
// order. An empty slice means free-form reactions only.
func (s *StimulusStore) ListOptions(ctx context.Context, stimulusID int64) ([]models.ResponseOption, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stimulus_id, text, created_at
		FROM response_options
		WHERE stimulus_id = $1
		ORDER BY id`, stimulusID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list response options", err)
	}
	defer rows.Close()

	var opts []models.ResponseOption
	for rows.Next() {
		var o models.ResponseOption
		if err := rows.Scan(&o.ID, &o.StimulusID, &o.Text, &o.CreatedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan response option", err)
		}
		opts = append(opts, o)
	}
	return opts, rows.Err()
}
