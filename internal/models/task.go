// internal/models/task.go
package models

import "time"

// TaskStatus is the lifecycle state shared by both task kinds. Terminal
// states are never left automatically.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether a task in this status is done for good.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// GenerationTask tracks one persona generation request for a city. Weighted
// mode carries a target population; bulk mode carries a source file instead.
type GenerationTask struct {
	ID           int64      `json:"id"`
	ExternalID   string     `json:"externalId"`
	City         string     `json:"city"`
	Population   int        `json:"population"`
	SourceFile   string     `json:"sourceFile,omitempty"`
	Status       TaskStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// AggregationTask is the asynchronous rollup of response events for one
// (stimulus, city) pair. The worker mutates it in place until terminal.
type AggregationTask struct {
	ID                 int64              `json:"id"`
	StimulusID         int64              `json:"stimulusId"`
	StimulusTitle      string             `json:"stimulusTitle"`
	City               string             `json:"city"`
	Status             TaskStatus         `json:"status"`
	Summary            Summary            `json:"summary"`
	DemographicSummary DemographicSummary `json:"demographicSummary"`
	ErrorMessage       string             `json:"errorMessage,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}
