// internal/aggregation/aggregator.go
package aggregation

import (
	"math"
	"strings"

	"persona-workers/internal/models"
)

// ==========================
// 1. Sentiment Buckets
// ==========================

var positiveLabels = map[string]struct{}{
	"joy": {}, "optimism": {}, "compassion": {},
}

var negativeLabels = map[string]struct{}{
	"sadness": {}, "anger": {}, "fear": {}, "disgust": {}, "anxiety": {}, "outrage": {},
}

// Classify maps an emotion label onto positive, negative or neutral.
// Anything outside the vocabulary, including "unknown", counts neutral.
func Classify(label string) string {
	if _, ok := positiveLabels[label]; ok {
		return "positive"
	}
	if _, ok := negativeLabels[label]; ok {
		return "negative"
	}
	return "neutral"
}

// ==========================
// 2. Aggregator
// ==========================

// Aggregator accumulates per-persona reactions into an overall rollup
// and a nested demographic breakdown. Not safe for concurrent use; the
// worker owns one per task.
type Aggregator struct {
	overall     models.Bucket
	demographic models.DemographicSummary
	options     map[string]int
	optionTotal int
}

// NewAggregator seeds the demographic breakdown with a zero bucket for
// every subcategory of the given categories, so untouched cells still
// appear in the result.
func NewAggregator(categories []models.Category) *Aggregator {
	demographic := make(models.DemographicSummary, len(categories))
	for _, cat := range categories {
		cells := make(map[string]*models.Bucket, len(cat.SubCategories))
		for _, sub := range cat.SubCategories {
			cells[strings.ToLower(sub.Name)] = &models.Bucket{}
		}
		demographic[cat.Name] = cells
	}
	return &Aggregator{
		demographic: demographic,
		options:     make(map[string]int),
	}
}

// Add records one persona's reaction. The persona's demographic
// mappings drive the nested breakdown; mappings pointing at categories
// or subcategories the aggregator was not seeded with are skipped.
func (a *Aggregator) Add(persona *models.Persona, label string) {
	bucket := Classify(label)
	bump(&a.overall, bucket)

	for _, m := range persona.Mappings {
		cells, ok := a.demographic[m.Category]
		if !ok {
			continue
		}
		cell, ok := cells[strings.ToLower(m.SubCategory)]
		if !ok {
			continue
		}
		bump(cell, bucket)
	}
}

// AddOption records one persona's pick from the predefined option list.
func (a *Aggregator) AddOption(optionText string) {
	a.options[optionText]++
	a.optionTotal++
}

// Finalize computes all percentage fields and returns the rollups. The
// aggregator may not be reused afterwards.
func (a *Aggregator) Finalize() (models.Summary, models.DemographicSummary) {
	finishBucket(&a.overall)
	for _, cells := range a.demographic {
		for _, cell := range cells {
			finishBucket(cell)
		}
	}

	summary := models.Summary{
		Status:         "completed",
		Bucket:         a.overall,
		TotalResponses: a.overall.Total,
	}
	if a.optionTotal > 0 {
		summary.ResponseSummary = make(map[string]models.OptionCount, len(a.options))
		for text, count := range a.options {
			summary.ResponseSummary[text] = models.OptionCount{
				ResponseText: text,
				Count:        count,
				Percentage:   round2(float64(count) / float64(a.optionTotal) * 100),
			}
		}
	}
	return summary, a.demographic
}

func bump(b *models.Bucket, bucket string) {
	switch bucket {
	case "positive":
		b.Positive++
	case "negative":
		b.Negative++
	default:
		b.Neutral++
	}
	b.Total++
}

func finishBucket(b *models.Bucket) {
	if b.Total == 0 {
		return
	}
	b.PositivePercentage = round2(float64(b.Positive) / float64(b.Total) * 100)
	b.NegativePercentage = round2(float64(b.Negative) / float64(b.Total) * 100)
	b.NeutralPercentage = round2(float64(b.Neutral) / float64(b.Total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
