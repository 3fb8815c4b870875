// internal/aggregation/worker_test.go
package aggregation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-workers/internal/common/logger"
	"persona-workers/internal/models"
)

// ==========================
// Test Doubles
// ==========================

type savedResult struct {
	summary     models.Summary
	demographic models.DemographicSummary
}

type fakeQueue struct {
	tasks      []models.AggregationTask
	processing []int64
	saved      map[int64]savedResult
	failed     map[int64]string
}

func newFakeQueue(tasks ...models.AggregationTask) *fakeQueue {
	return &fakeQueue{
		tasks:  tasks,
		saved:  make(map[int64]savedResult),
		failed: make(map[int64]string),
	}
}

func (q *fakeQueue) ListUnfinishedAggregationTasks(_ context.Context, city string) ([]models.AggregationTask, error) {
	if city == "" {
		return q.tasks, nil
	}
	var out []models.AggregationTask
	for _, t := range q.tasks {
		if t.City == city {
			out = append(out, t)
		}
	}
	return out, nil
}

func (q *fakeQueue) MarkAggregationProcessing(_ context.Context, id int64) error {
	q.processing = append(q.processing, id)
	return nil
}

func (q *fakeQueue) SaveAggregationResult(_ context.Context, id int64, summary models.Summary, demographic models.DemographicSummary) error {
	q.saved[id] = savedResult{summary: summary, demographic: demographic}
	return nil
}

func (q *fakeQueue) MarkAggregationFailed(_ context.Context, id int64, message string) error {
	q.failed[id] = message
	return nil
}

type fakePopulation map[string][]models.Persona

func (p fakePopulation) ListByCity(_ context.Context, city string) ([]models.Persona, error) {
	return p[city], nil
}

type fakeCategories map[string][]models.Category

func (c fakeCategories) ListCategories(_ context.Context, city string) ([]models.Category, error) {
	return c[city], nil
}

type fakeStimuli struct {
	byTitle map[string]*models.Stimulus
	options map[int64][]models.ResponseOption
}

func (s *fakeStimuli) GetByTitle(_ context.Context, title string) (*models.Stimulus, error) {
	return s.byTitle[title], nil
}

func (s *fakeStimuli) ListOptions(_ context.Context, stimulusID int64) ([]models.ResponseOption, error) {
	return s.options[stimulusID], nil
}

type fakeEvents struct {
	existing map[string]*models.ResponseEvent
	created  []*models.ResponseEvent
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{existing: make(map[string]*models.ResponseEvent)}
}

func eventKey(personaID, stimulusID int64) string {
	return fmt.Sprintf("%d:%d", personaID, stimulusID)
}

func (e *fakeEvents) Get(_ context.Context, personaID, stimulusID int64) (*models.ResponseEvent, error) {
	return e.existing[eventKey(personaID, stimulusID)], nil
}

func (e *fakeEvents) Create(_ context.Context, ev *models.ResponseEvent) error {
	ev.ID = int64(len(e.created) + 1)
	e.created = append(e.created, ev)
	e.existing[eventKey(ev.PersonaID, ev.StimulusID)] = ev
	return nil
}

// scriptedProvider replies with a fixed emotion per persona name found
// in the prompt.
type scriptedProvider struct {
	emotions map[string]string
	calls    int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Generate(_ context.Context, prompt string) (string, error) {
	p.calls++
	for name, emotion := range p.emotions {
		if strings.Contains(prompt, name) {
			return fmt.Sprintf("Emotion: %s\nIntensity: 0.7\nExplanation: scripted reply", emotion), nil
		}
	}
	return "Emotion: surprise\nIntensity: 0.5\nExplanation: default reply", nil
}

// ==========================
// Fixtures
// ==========================

func workerFixture(t *testing.T, queue *fakeQueue, events *fakeEvents, prov *scriptedProvider, cache *redis.Client) *Worker {
	t.Helper()

	personas := fakePopulation{
		"Mumbai": {
			*namedPersona(1, "Alpha", "18-30"),
			*namedPersona(2, "Bravo", "18-30"),
			*namedPersona(3, "Charlie", "31-50"),
			*namedPersona(4, "Delta", "31-50"),
			*namedPersona(5, "Echo", "18-30"),
		},
	}
	categories := fakeCategories{
		"Mumbai": categoriesFixture(),
	}
	stimuli := &fakeStimuli{
		byTitle: map[string]*models.Stimulus{
			"Metro opens": {ID: 11, Title: "Metro opens", Content: "A new metro line opens next month."},
		},
		options: map[int64][]models.ResponseOption{},
	}

	cfg := Config{
		PollInterval: 10 * time.Millisecond,
		CallTimeout:  time.Second,
		SummaryTTL:   5 * time.Minute,
	}
	return NewWorker(cfg, queue, personas, categories, stimuli, events, prov, cache, logger.NewNoOpLogger())
}

func namedPersona(id int64, name, age string) *models.Persona {
	p := persona(id, age, "Male")
	p.Name = name
	return p
}

// ==========================
// Tests
// ==========================

func TestWorkerCompletesTask(t *testing.T) {
	queue := newFakeQueue(models.AggregationTask{
		ID: 1, StimulusID: 11, StimulusTitle: "Metro opens", City: "Mumbai", Status: models.StatusPending,
	})
	events := newFakeEvents()
	prov := &scriptedProvider{emotions: map[string]string{
		"Alpha":   "joy",
		"Bravo":   "optimism",
		"Charlie": "compassion",
		"Delta":   "anger",
		"Echo":    "fear",
	}}

	w := workerFixture(t, queue, events, prov, nil)
	w.runCycle(context.Background())

	require.Contains(t, queue.saved, int64(1))
	result := queue.saved[1]
	assert.Equal(t, 3, result.summary.Positive)
	assert.Equal(t, 2, result.summary.Negative)
	assert.Equal(t, 5, result.summary.Total)
	assert.InDelta(t, 60.0, result.summary.PositivePercentage, 1e-9)
	assert.InDelta(t, 40.0, result.summary.NegativePercentage, 1e-9)

	assert.Len(t, events.created, 5)
	assert.Equal(t, 5, prov.calls)
	assert.Empty(t, queue.failed)
}

func TestWorkerReusesExistingEvents(t *testing.T) {
	queue := newFakeQueue(models.AggregationTask{
		ID: 1, StimulusID: 11, StimulusTitle: "Metro opens", City: "Mumbai", Status: models.StatusPending,
	})
	events := newFakeEvents()
	for id := int64(1); id <= 5; id++ {
		events.existing[eventKey(id, 11)] = &models.ResponseEvent{
			ID: id, PersonaID: id, StimulusID: 11, Label: "joy", Intensity: 0.9,
		}
	}
	prov := &scriptedProvider{emotions: map[string]string{}}

	w := workerFixture(t, queue, events, prov, nil)
	w.runCycle(context.Background())

	assert.Zero(t, prov.calls, "provider must not be called for resolved pairs")
	assert.Empty(t, events.created)
	require.Contains(t, queue.saved, int64(1))
	assert.Equal(t, 5, queue.saved[1].summary.Positive)
}

func TestWorkerFailureIsolation(t *testing.T) {
	queue := newFakeQueue(
		models.AggregationTask{ID: 1, StimulusID: 99, StimulusTitle: "Missing stimulus", City: "Mumbai"},
		models.AggregationTask{ID: 2, StimulusID: 11, StimulusTitle: "Metro opens", City: "Mumbai"},
	)
	events := newFakeEvents()
	prov := &scriptedProvider{emotions: map[string]string{}}

	w := workerFixture(t, queue, events, prov, nil)
	w.runCycle(context.Background())

	require.Contains(t, queue.failed, int64(1))
	assert.Contains(t, queue.failed[1], "not found")
	assert.Contains(t, queue.saved, int64(2), "second task still completes")
}

func TestWorkerCompletesWithZeroSummaryWhenCityHasNoPersonas(t *testing.T) {
	queue := newFakeQueue(models.AggregationTask{
		ID: 1, StimulusID: 11, StimulusTitle: "Metro opens", City: "Pune",
	})
	events := newFakeEvents()
	prov := &scriptedProvider{emotions: map[string]string{}}

	w := workerFixture(t, queue, events, prov, nil)
	w.runCycle(context.Background())

	require.Contains(t, queue.saved, int64(1))
	require.NotContains(t, queue.failed, int64(1))
	summary := queue.saved[1].summary
	assert.Equal(t, "completed", summary.Status)
	assert.Equal(t, 0, summary.TotalResponses)
	assert.Zero(t, summary.PositivePercentage)
	assert.Zero(t, summary.NegativePercentage)
	assert.Zero(t, summary.NeutralPercentage)
	assert.Zero(t, prov.calls, "no provider call for an empty city")
}

func TestWorkerWritesSummaryCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	queue := newFakeQueue(models.AggregationTask{
		ID: 1, StimulusID: 11, StimulusTitle: "Metro opens", City: "Mumbai",
	})
	events := newFakeEvents()
	prov := &scriptedProvider{emotions: map[string]string{"Alpha": "joy"}}

	w := workerFixture(t, queue, events, prov, cache)
	w.runCycle(context.Background())

	key := SummaryCacheKey("Mumbai", "Metro opens")
	cached, err := mr.Get(key)
	require.NoError(t, err)
	assert.Contains(t, cached, `"positive"`)
	assert.Positive(t, mr.TTL(key))
}

func TestWorkerStartStop(t *testing.T) {
	queue := newFakeQueue()
	events := newFakeEvents()
	prov := &scriptedProvider{emotions: map[string]string{}}

	w := workerFixture(t, queue, events, prov, nil)
	go w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
