// internal/store/demographics.go
package store

import (
	"context"
	"database/sql"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/models"
)

// DemographicsStore persists categories and their weighted subcategories.
type DemographicsStore struct {
	db *sql.DB
}

func NewDemographicsStore(db *sql.DB) *DemographicsStore {
	return &DemographicsStore{db: db}
}

// GetOrCreateCategory returns the category row for (name, city), creating
// it when absent.
func (s *DemographicsStore) GetOrCreateCategory(ctx context.Context, name, city string) (*models.Category, error) {
	cat := &models.Category{Name: name, City: city}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO categories (name, city)
		VALUES ($1, $2)
		ON CONFLICT (name, city) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, description`, name, city).Scan(&cat.ID, &cat.Description)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get or create category", err)
	}
	return cat, nil
}

// GetOrCreateSubCategory returns the subcategory row for (category, name,
// city), creating it with a zero percentage when absent.
func (s *DemographicsStore) GetOrCreateSubCategory(ctx context.Context, categoryID int64, name, city string) (*models.SubCategory, error) {
	sub := &models.SubCategory{CategoryID: categoryID, Name: name, City: city}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subcategories (category_id, name, city)
		VALUES ($1, $2, $3)
		ON CONFLICT (category_id, name, city) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, percentage`, categoryID, name, city).Scan(&sub.ID, &sub.Percentage)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get or create subcategory", err)
	}
	return sub, nil
}

// UpsertSubCategory writes the percentage for one (category, name, city)
// subcategory, creating rows as needed. Used by the weighted intake path.
func (s *DemographicsStore) UpsertSubCategory(ctx context.Context, categoryName, subName, city string, percentage float64) (*models.SubCategory, error) {
	cat, err := s.GetOrCreateCategory(ctx, categoryName, city)
	if err != nil {
		return nil, err
	}
	sub := &models.SubCategory{
		CategoryID:   cat.ID,
		CategoryName: cat.Name,
		Name:         subName,
		Percentage:   percentage,
		City:         city,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO subcategories (category_id, name, city, percentage)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category_id, name, city) DO UPDATE SET percentage = EXCLUDED.percentage
		RETURNING id`, cat.ID, subName, city, percentage).Scan(&sub.ID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("upsert subcategory", err)
	}
	return sub, nil
}

// SetPercentage overwrites the stored share of one subcategory.
func (s *DemographicsStore) SetPercentage(ctx context.Context, subCategoryID int64, percentage float64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subcategories SET percentage = $1 WHERE id = $2`,
		percentage, subCategoryID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("set subcategory percentage", err)
	}
	return nil
}

// ListCategories returns every category of a city with its subcategories
// attached, ordered by id for stable iteration.
func (s *DemographicsStore) ListCategories(ctx context.Context, city string) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, city
		FROM categories
		WHERE city = $1
		ORDER BY id`, city)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list categories", err)
	}
	defer rows.Close()

	var cats []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.City); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan category", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list categories", err)
	}

	for i := range cats {
		subs, err := s.listSubCategories(ctx, cats[i].ID)
		if err != nil {
			return nil, err
		}
		for j := range subs {
			subs[j].CategoryName = cats[i].Name
		}
		cats[i].SubCategories = subs
	}
	return cats, nil
}

func (s *DemographicsStore) listSubCategories(ctx context.Context, categoryID int64) ([]models.SubCategory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, category_id, name, percentage, city
		FROM subcategories
		WHERE category_id = $1
		ORDER BY id`, categoryID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list subcategories", err)
	}
	defer rows.Close()

	var subs []models.SubCategory
	for rows.Next() {
		var sc models.SubCategory
		if err := rows.Scan(&sc.ID, &sc.CategoryID, &sc.Name, &sc.Percentage, &sc.City); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan subcategory", err)
		}
		subs = append(subs, sc)
	}
	return subs, rows.Err()
}
