// internal/generation/worker_test.go
package generation

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"persona-workers/internal/common/logger"
	"persona-workers/internal/models"
)

// ==========================
// Test Doubles
// ==========================

type fakeQueue struct {
	pending  []*models.GenerationTask
	statuses map[int64]models.TaskStatus
	messages map[int64]string
}

func newFakeQueue(tasks ...*models.GenerationTask) *fakeQueue {
	return &fakeQueue{
		pending:  tasks,
		statuses: make(map[int64]models.TaskStatus),
		messages: make(map[int64]string),
	}
}

func (q *fakeQueue) ClaimNextGenerationTask(_ context.Context) (*models.GenerationTask, error) {
	if len(q.pending) == 0 {
		return nil, nil
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	task.Status = models.StatusInProgress
	q.statuses[task.ID] = task.Status
	return task, nil
}

func (q *fakeQueue) UpdateGenerationStatus(_ context.Context, id int64, status models.TaskStatus, errorMessage string) error {
	q.statuses[id] = status
	q.messages[id] = errorMessage
	return nil
}

type fakeCategories map[string][]models.Category

func (c fakeCategories) ListCategories(_ context.Context, city string) ([]models.Category, error) {
	return c[city], nil
}

type fakeFactory struct {
	materialized []models.Persona
	err          error
}

func (f *fakeFactory) Materialize(_ context.Context, blueprints []models.Persona) ([]models.Persona, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.materialized = append(f.materialized, blueprints...)
	return blueprints, nil
}

type fakeIngester struct {
	cities []string
	bytes  int
	count  int
}

func (f *fakeIngester) Ingest(_ context.Context, city string, r io.Reader) (int, error) {
	f.cities = append(f.cities, city)
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	f.bytes = len(data)
	return f.count, nil
}

func categoriesFixture() []models.Category {
	return []models.Category{
		{
			ID: 1, Name: "age", City: "Mumbai",
			SubCategories: []models.SubCategory{
				{ID: 10, Name: "18-30", Percentage: 40},
				{ID: 11, Name: "31-50", Percentage: 60},
			},
		},
		{
			ID: 2, Name: "gender", City: "Mumbai",
			SubCategories: []models.SubCategory{
				{ID: 20, Name: "male", Percentage: 50},
				{ID: 21, Name: "female", Percentage: 50},
			},
		},
	}
}

func newTestWorker(queue *fakeQueue, factory *fakeFactory, ingester *fakeIngester) *Worker {
	cats := fakeCategories{"Mumbai": categoriesFixture()}
	return NewWorker(Config{PollInterval: 10 * time.Millisecond}, queue, cats, factory, ingester, logger.NewNoOpLogger())
}

// ==========================
// Tests
// ==========================

func TestWeightedTaskMaterializesExactPopulation(t *testing.T) {
	queue := newFakeQueue(&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Mumbai", Population: 100})
	factory := &fakeFactory{}

	w := newTestWorker(queue, factory, &fakeIngester{})
	w.runCycle(context.Background())

	assert.Equal(t, models.StatusCompleted, queue.statuses[1])
	assert.Len(t, factory.materialized, 100)

	// every blueprint carries one mapping per axis with the row ids
	for _, bp := range factory.materialized {
		require.Len(t, bp.Mappings, 2)
		assert.Equal(t, "Mumbai", bp.City)
		assert.NotZero(t, bp.Mappings[0].SubCategoryID)
	}
}

func TestWeightedTaskRespectsWeights(t *testing.T) {
	queue := newFakeQueue(&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Mumbai", Population: 10})
	factory := &fakeFactory{}

	w := newTestWorker(queue, factory, &fakeIngester{})
	w.runCycle(context.Background())

	young := 0
	for _, bp := range factory.materialized {
		for _, m := range bp.Mappings {
			if m.SubCategory == "18-30" {
				young++
			}
		}
	}
	assert.Equal(t, 4, young, "40%% of 10 personas in the 18-30 band")
}

func TestWeightedTaskInvalidPopulationFails(t *testing.T) {
	queue := newFakeQueue(&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Mumbai", Population: 0})
	factory := &fakeFactory{}

	w := newTestWorker(queue, factory, &fakeIngester{})
	w.runCycle(context.Background())

	assert.Equal(t, models.StatusFailed, queue.statuses[1])
	assert.Contains(t, queue.messages[1], "INVALID_POPULATION")
	assert.Empty(t, factory.materialized)
}

func TestWeightedTaskNoCategoriesFails(t *testing.T) {
	queue := newFakeQueue(&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Pune", Population: 10})
	factory := &fakeFactory{}

	w := newTestWorker(queue, factory, &fakeIngester{})
	w.runCycle(context.Background())

	assert.Equal(t, models.StatusFailed, queue.statuses[1])
	assert.Contains(t, queue.messages[1], "EMPTY_AXIS")
}

func TestWeightedTaskStaleSharesFail(t *testing.T) {
	// Stored shares can sum above 100 when an earlier request for the
	// same city left stale subcategories behind.
	queue := newFakeQueue(&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Nagpur", Population: 10})
	factory := &fakeFactory{}
	cats := fakeCategories{"Nagpur": []models.Category{{
		ID: 3, Name: "age", City: "Nagpur",
		SubCategories: []models.SubCategory{
			{ID: 30, Name: "18-30", Percentage: 40},
			{ID: 31, Name: "31-50", Percentage: 60},
			{ID: 32, Name: "51+", Percentage: 30},
		},
	}}}

	w := NewWorker(Config{PollInterval: 10 * time.Millisecond}, queue, cats, factory, &fakeIngester{}, logger.NewNoOpLogger())
	w.runCycle(context.Background())

	assert.Equal(t, models.StatusFailed, queue.statuses[1])
	assert.Contains(t, queue.messages[1], "PERCENTAGE_MISMATCH")
	assert.Empty(t, factory.materialized)
}

func TestBulkTaskRoutesToIngester(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "population.csv")
	require.NoError(t, os.WriteFile(path, []byte("age\n18-30\n"), 0o644))

	queue := newFakeQueue(&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Mumbai", SourceFile: path})
	ingester := &fakeIngester{count: 1}

	w := newTestWorker(queue, &fakeFactory{}, ingester)
	w.runCycle(context.Background())

	assert.Equal(t, models.StatusCompleted, queue.statuses[1])
	assert.Equal(t, []string{"Mumbai"}, ingester.cities)
	assert.Positive(t, ingester.bytes)
}

func TestBulkTaskMissingFileFails(t *testing.T) {
	queue := newFakeQueue(&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Mumbai", SourceFile: "/nonexistent/file.csv"})

	w := newTestWorker(queue, &fakeFactory{}, &fakeIngester{})
	w.runCycle(context.Background())

	assert.Equal(t, models.StatusFailed, queue.statuses[1])
	assert.Contains(t, queue.messages[1], "opening source file")
}

func TestFailedTaskDoesNotStopQueueDrain(t *testing.T) {
	queue := newFakeQueue(
		&models.GenerationTask{ID: 1, ExternalID: "t1", City: "Mumbai", Population: -5},
		&models.GenerationTask{ID: 2, ExternalID: "t2", City: "Mumbai", Population: 5},
	)
	factory := &fakeFactory{}

	w := newTestWorker(queue, factory, &fakeIngester{})
	w.runCycle(context.Background())

	assert.Equal(t, models.StatusFailed, queue.statuses[1])
	assert.Equal(t, models.StatusCompleted, queue.statuses[2])
	assert.Len(t, factory.materialized, 5)
}

func TestWorkerStartStop(t *testing.T) {
	w := newTestWorker(newFakeQueue(), &fakeFactory{}, &fakeIngester{})
	go w.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}
