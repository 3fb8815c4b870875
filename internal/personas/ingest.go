// internal/personas/ingest.go
package personas

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/models"
)

// nameColumn is the one reserved header; every other column is treated
// as a demographic axis.
const nameColumn = "name"

// DemographicWriter is the slice of the demographics store the ingester
// needs: resolve rows by value and rewrite their stored percentages.
type DemographicWriter interface {
	GetOrCreateCategory(ctx context.Context, name, city string) (*models.Category, error)
	GetOrCreateSubCategory(ctx context.Context, categoryID int64, name, city string) (*models.SubCategory, error)
	SetPercentage(ctx context.Context, subCategoryID int64, percentage float64) error
}

// PopulationCounter reports how the ingested rows sit inside the city's
// population, for percentage recomputation.
type PopulationCounter interface {
	CountByCity(ctx context.Context, city string) (int, error)
	CountBySubCategory(ctx context.Context, city string, subCategoryID int64) (int, error)
}

// Ingester materializes personas from tabular records. Each record
// names one subcategory value per axis column; categories and
// subcategories are created on first sight and their percentage weights
// recomputed from actual persona counts afterwards.
type Ingester struct {
	factory      *Factory
	demographics DemographicWriter
	counts       PopulationCounter
}

func NewIngester(factory *Factory, demographics DemographicWriter, counts PopulationCounter) *Ingester {
	return &Ingester{factory: factory, demographics: demographics, counts: counts}
}

// Ingest reads CSV records and materializes one persona per row. The
// header row defines the axes; a "name" column, when present, carries
// the persona name and is excluded from the axes. Returns the number of
// personas created.
func (ing *Ingester) Ingest(ctx context.Context, city string, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return 0, errors.NewMissingInputColumnError("empty input")
	}
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}

	nameIdx := -1
	type axisColumn struct {
		index    int
		category string
	}
	var axes []axisColumn
	for i, col := range header {
		col = strings.TrimSpace(col)
		if strings.EqualFold(col, nameColumn) {
			nameIdx = i
			continue
		}
		if col == "" {
			return 0, errors.NewMissingInputColumnError(fmt.Sprintf("blank header at column %d", i+1))
		}
		axes = append(axes, axisColumn{index: i, category: col})
	}
	if len(axes) == 0 {
		return 0, errors.NewMissingInputColumnError("no demographic axis columns")
	}

	// (category, value) -> subcategory row, filled lazily
	categoryIDs := make(map[string]int64)
	subIDs := make(map[string]int64)
	var touched []int64

	var blueprints []models.Persona
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("reading record at line %d: %w", line+1, err)
		}
		line++

		bp := models.Persona{City: city}
		if nameIdx >= 0 {
			bp.Name = strings.TrimSpace(record[nameIdx])
		}

		for _, axis := range axes {
			value := strings.TrimSpace(record[axis.index])
			if value == "" {
				return 0, errors.NewMissingInputColumnError(
					fmt.Sprintf("%s at line %d", axis.category, line))
			}

			catID, ok := categoryIDs[axis.category]
			if !ok {
				cat, err := ing.demographics.GetOrCreateCategory(ctx, axis.category, city)
				if err != nil {
					return 0, err
				}
				catID = cat.ID
				categoryIDs[axis.category] = catID
			}

			subKey := axis.category + "\x00" + value
			subID, ok := subIDs[subKey]
			if !ok {
				sub, err := ing.demographics.GetOrCreateSubCategory(ctx, catID, value, city)
				if err != nil {
					return 0, err
				}
				subID = sub.ID
				subIDs[subKey] = subID
				touched = append(touched, subID)
			}

			bp.Mappings = append(bp.Mappings, models.SubCategoryRef{
				SubCategoryID: subID,
				SubCategory:   value,
				Category:      axis.category,
			})
		}
		blueprints = append(blueprints, bp)
	}

	created, err := ing.factory.Materialize(ctx, blueprints)
	if err != nil {
		return 0, err
	}

	if err := ing.recomputePercentages(ctx, city, touched); err != nil {
		return 0, err
	}
	return len(created), nil
}

// recomputePercentages rewrites the stored share of every touched
// subcategory from the actual persona counts.
func (ing *Ingester) recomputePercentages(ctx context.Context, city string, subIDs []int64) error {
	total, err := ing.counts.CountByCity(ctx, city)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	for _, subID := range subIDs {
		matching, err := ing.counts.CountBySubCategory(ctx, city, subID)
		if err != nil {
			return err
		}
		pct := float64(matching) / float64(total) * 100
		if err := ing.demographics.SetPercentage(ctx, subID, pct); err != nil {
			return err
		}
	}
	return nil
}
