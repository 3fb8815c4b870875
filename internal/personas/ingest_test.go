// internal/personas/ingest_test.go
package personas

import (
	"context"
	"fmt"
	"strings"
	"sync"
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

type memoryDemographics struct {
	mu          sync.Mutex
	categories  map[string]int64 // name -> id
	subs        map[string]int64 // category-id \x00 name -> id
	percentages map[int64]float64
	nextID      int64
}

func newMemoryDemographics() *memoryDemographics {
	return &memoryDemographics{
		categories:  make(map[string]int64),
		subs:        make(map[string]int64),
		percentages: make(map[int64]float64),
	}
}

func (d *memoryDemographics) GetOrCreateCategory(_ context.Context, name, city string) (*models.Category, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := name + "\x00" + city
	id, ok := d.categories[key]
	if !ok {
		d.nextID++
		id = d.nextID
		d.categories[key] = id
	}
	return &models.Category{ID: id, Name: name, City: city}, nil
}

func (d *memoryDemographics) GetOrCreateSubCategory(_ context.Context, categoryID int64, name, city string) (*models.SubCategory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := fmt.Sprintf("%d\x00%s\x00%s", categoryID, name, city)
	id, ok := d.subs[key]
	if !ok {
		d.nextID++
		id = d.nextID
		d.subs[key] = id
	}
	return &models.SubCategory{ID: id, CategoryID: categoryID, Name: name, City: city}, nil
}

func (d *memoryDemographics) SetPercentage(_ context.Context, subCategoryID int64, percentage float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.percentages[subCategoryID] = percentage
	return nil
}

type memoryCounter struct {
	creator *memoryCreator
}

func (c *memoryCounter) CountByCity(_ context.Context, city string) (int, error) {
	c.creator.mu.Lock()
	defer c.creator.mu.Unlock()
	count := 0
	for _, p := range c.creator.created {
		if p.City == city {
			count++
		}
	}
	return count, nil
}

func (c *memoryCounter) CountBySubCategory(_ context.Context, city string, subCategoryID int64) (int, error) {
	c.creator.mu.Lock()
	defer c.creator.mu.Unlock()
	count := 0
	for _, p := range c.creator.created {
		if p.City != city {
			continue
		}
		for _, m := range p.Mappings {
			if m.SubCategoryID == subCategoryID {
				count++
				break
			}
		}
	}
	return count, nil
}

func newTestIngester(store *memoryCreator, demographics *memoryDemographics) *Ingester {
	prov := &stubProvider{reply: "ok"}
	factory := NewFactory(Config{ChunkWorkers: 2, CallTimeout: time.Second}, prov, store, logger.NewNoOpLogger())
	return NewIngester(factory, demographics, &memoryCounter{creator: store})
}

// ==========================
// Tests
// ==========================

const sampleCSV = `name,age,gender
Asha Patel,18-30,female
Ravi Kumar,31-50,male
Meera Shah,18-30,female
`

func TestIngestCreatesPersonasAndDemographics(t *testing.T) {
	store := &memoryCreator{}
	demographics := newMemoryDemographics()
	ing := newTestIngester(store, demographics)

	created, err := ing.Ingest(context.Background(), "Mumbai", strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Len(t, store.created, 3)

	// axes come from the header, name column excluded
	assert.Len(t, demographics.categories, 2)
	// 18-30, 31-50, female, male
	assert.Len(t, demographics.subs, 4)

	names := map[string]bool{}
	for _, p := range store.created {
		names[p.Name] = true
		assert.Len(t, p.Mappings, 2)
	}
	assert.True(t, names["Asha Patel"])
	assert.True(t, names["Ravi Kumar"])
}

func TestIngestRecomputesPercentages(t *testing.T) {
	store := &memoryCreator{}
	demographics := newMemoryDemographics()
	ing := newTestIngester(store, demographics)

	_, err := ing.Ingest(context.Background(), "Mumbai", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// 2 of 3 personas are 18-30 and female, 1 of 3 is 31-50 and male
	var shares []float64
	for _, pct := range demographics.percentages {
		shares = append(shares, pct)
	}
	require.Len(t, shares, 4)
	twoThirds, oneThird := 0, 0
	for _, s := range shares {
		switch {
		case s > 66 && s < 67:
			twoThirds++
		case s > 33 && s < 34:
			oneThird++
		}
	}
	assert.Equal(t, 2, twoThirds)
	assert.Equal(t, 2, oneThird)
}

func TestIngestWithoutNameColumn(t *testing.T) {
	store := &memoryCreator{}
	ing := newTestIngester(store, newMemoryDemographics())

	csv := "age,gender\n18-30,female\n"
	created, err := ing.Ingest(context.Background(), "Mumbai", strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.NotEmpty(t, store.created[0].Name, "missing name column gets a generated name")
}

func TestIngestRejectsMissingValues(t *testing.T) {
	ing := newTestIngester(&memoryCreator{}, newMemoryDemographics())

	csv := "name,age\nAsha,\n"
	_, err := ing.Ingest(context.Background(), "Mumbai", strings.NewReader(csv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_INPUT_COLUMN")
}

func TestIngestRejectsNoAxisColumns(t *testing.T) {
	ing := newTestIngester(&memoryCreator{}, newMemoryDemographics())

	_, err := ing.Ingest(context.Background(), "Mumbai", strings.NewReader("name\nAsha\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_INPUT_COLUMN")
}

func TestIngestRejectsEmptyInput(t *testing.T) {
	ing := newTestIngester(&memoryCreator{}, newMemoryDemographics())

	_, err := ing.Ingest(context.Background(), "Mumbai", strings.NewReader(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MISSING_INPUT_COLUMN")
}
