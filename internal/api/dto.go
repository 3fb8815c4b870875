// internal/api/dto.go
package api

import "persona-workers/internal/models"

// SubCategoryInput is one weighted option of a demographic axis.
type SubCategoryInput struct {
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
}

// DemographicInput is one axis of a weighted generation request.
type DemographicInput struct {
	Category      string             `json:"category"`
	SubCategories []SubCategoryInput `json:"subcategories"`
}

// GenerateRequest asks for a weighted population synthesis.
type GenerateRequest struct {
	City         string             `json:"city"`
	Population   int                `json:"population"`
	Demographics []DemographicInput `json:"demographics"`
}

// AggregateRequest asks for a reaction rollup of one stimulus in one city.
type AggregateRequest struct {
	City              string   `json:"city"`
	StimulusTitle     string   `json:"stimulus_title"`
	Content           string   `json:"content"`
	PossibleResponses []string `json:"possible_responses"`
}

// TaskResponse reports a task's identity and lifecycle state.
type TaskResponse struct {
	TaskID       string `json:"task_id"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SummaryResponse carries a finished (or in-flight) aggregation result.
type SummaryResponse struct {
	Status             string                    `json:"status"`
	Summary            models.Summary            `json:"summary"`
	DemographicSummary models.DemographicSummary `json:"demographic_summary,omitempty"`
	ErrorMessage       string                    `json:"error_message,omitempty"`
}
