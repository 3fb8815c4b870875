// internal/store/responses.go
package store

import (
	"context"
	"database/sql"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/models"
)

// ResponseStore persists (persona, stimulus) response events.
type ResponseStore struct {
	db *sql.DB
}

func NewResponseStore(db *sql.DB) *ResponseStore {
	return &ResponseStore{db: db}
}

// Get returns the existing event for one (persona, stimulus) pair, or
// nil when none exists. Callers check here before asking a provider.
func (s *ResponseStore) Get(ctx context.Context, personaID, stimulusID int64) (*models.ResponseEvent, error) {
	ev := &models.ResponseEvent{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, persona_id, stimulus_id, option_id, label, intensity, explanation
		FROM response_events
		WHERE persona_id = $1 AND stimulus_id = $2
		ORDER BY id
		LIMIT 1`, personaID, stimulusID).Scan(
		&ev.ID, &ev.PersonaID, &ev.StimulusID, &ev.OptionID,
		&ev.Label, &ev.Intensity, &ev.Explanation,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get response event", err)
	}
	return ev, nil
}

// Create inserts a new event and fills in its ID.
func (s *ResponseStore) Create(ctx context.Context, ev *models.ResponseEvent) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO response_events (persona_id, stimulus_id, option_id, label, intensity, explanation)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		ev.PersonaID, ev.StimulusID, ev.OptionID,
		ev.Label, ev.Intensity, ev.Explanation,
	).Scan(&ev.ID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("insert response event", err)
	}
	return nil
}

// ListByStimulus returns every event recorded for a stimulus.
func (s *ResponseStore) ListByStimulus(ctx context.Context, stimulusID int64) ([]models.ResponseEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, persona_id, stimulus_id, option_id, label, intensity, explanation
		FROM response_events
		WHERE stimulus_id = $1
		ORDER BY id`, stimulusID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list response events", err)
	}
	defer rows.Close()

	var events []models.ResponseEvent
	for rows.Next() {
		var ev models.ResponseEvent
		if err := rows.Scan(&ev.ID, &ev.PersonaID, &ev.StimulusID, &ev.OptionID,
			&ev.Label, &ev.Intensity, &ev.Explanation); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan response event", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
