// internal/models/stimulus.go
package models

import "time"

// Stimulus is a unit of content (a news item) personas react to. The title is
// the grouping key; rows are created lazily on first reference.
type Stimulus struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ResponseOption is a predefined categorical answer tied to one stimulus.
// The set is open: new options are appended as they are submitted.
type ResponseOption struct {
	ID         int64     `json:"id"`
	StimulusID int64     `json:"stimulusId"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ResponseEvent is one (persona, stimulus) outcome. At most one row exists
// per pair, enforced by a lookup before insert rather than a constraint.
type ResponseEvent struct {
	ID          int64   `json:"id"`
	PersonaID   int64   `json:"personaId"`
	StimulusID  int64   `json:"stimulusId"`
	OptionID    *int64  `json:"optionId,omitempty"`
	Label       string  `json:"label"`
	Intensity   float64 `json:"intensity"`
	Explanation string  `json:"explanation,omitempty"`
}
