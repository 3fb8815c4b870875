// internal/models/summary.go
package models

// Bucket accumulates sentiment counts and their percentage fields. All
// percentages are 0 when Total is 0, never NaN.
type Bucket struct {
	Positive           int     `json:"positive"`
	Negative           int     `json:"negative"`
	Neutral            int     `json:"neutral"`
	Total              int     `json:"total"`
	PositivePercentage float64 `json:"positive_percentage"`
	NegativePercentage float64 `json:"negative_percentage"`
	NeutralPercentage  float64 `json:"neutral_percentage"`
}

// OptionCount is one entry of the response-option summary.
type OptionCount struct {
	ResponseText string  `json:"response_text"`
	Count        int     `json:"count"`
	Percentage   float64 `json:"percentage"`
}

// Summary is the overall rollup persisted on an AggregationTask. The
// response-option breakdown is present only when the stimulus has
// predefined options.
type Summary struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
	Bucket
	TotalResponses  int                    `json:"total_responses,omitempty"`
	ResponseSummary map[string]OptionCount `json:"response_summary,omitempty"`
}

// DemographicSummary nests one Bucket per category, then per lower-cased
// subcategory name.
type DemographicSummary map[string]map[string]*Bucket
