// internal/store/personas.go
package store

import (
	"context"
	"database/sql"

	"persona-workers/internal/common/errors"
	"persona-workers/internal/models"
)

// PersonaStore persists personas and their subcategory mappings.
type PersonaStore struct {
	db *sql.DB
}

func NewPersonaStore(db *sql.DB) *PersonaStore {
	return &PersonaStore{db: db}
}

// Create inserts the persona and its mappings in one transaction. The
// persona's ID is filled in on success.
func (s *PersonaStore) Create(ctx context.Context, p *models.Persona) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewQueryExecutionFailedError("begin persona insert", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO personas (name, city, description)
		VALUES ($1, $2, $3)
		RETURNING id`, p.Name, p.City, p.Description).Scan(&p.ID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("insert persona", err)
	}

	for _, m := range p.Mappings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO persona_subcategories (persona_id, subcategory_id)
			VALUES ($1, $2)`, p.ID, m.SubCategoryID)
		if err != nil {
			return errors.NewQueryExecutionFailedError("insert persona mapping", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewQueryExecutionFailedError("commit persona insert", err)
	}
	return nil
}

// UpdateDescription backfills the enrichment text of one persona.
func (s *PersonaStore) UpdateDescription(ctx context.Context, personaID int64, description string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE personas SET description = $1 WHERE id = $2`,
		description, personaID)
	if err != nil {
		return errors.NewQueryExecutionFailedError("update persona description", err)
	}
	return nil
}

// ListByCity returns every persona of a city with mappings attached.
func (s *PersonaStore) ListByCity(ctx context.Context, city string) ([]models.Persona, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, city, description
		FROM personas
		WHERE city = $1
		ORDER BY id`, city)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list personas", err)
	}
	defer rows.Close()

	var personas []models.Persona
	for rows.Next() {
		var p models.Persona
		if err := rows.Scan(&p.ID, &p.Name, &p.City, &p.Description); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan persona", err)
		}
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list personas", err)
	}

	for i := range personas {
		mappings, err := s.listMappings(ctx, personas[i].ID)
		if err != nil {
			return nil, err
		}
		personas[i].Mappings = mappings
	}
	return personas, nil
}

func (s *PersonaStore) listMappings(ctx context.Context, personaID int64) ([]models.SubCategoryRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ps.subcategory_id, sc.name, c.name
		FROM persona_subcategories ps
		JOIN subcategories sc ON sc.id = ps.subcategory_id
		JOIN categories c ON c.id = sc.category_id
		WHERE ps.persona_id = $1
		ORDER BY ps.id`, personaID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list persona mappings", err)
	}
	defer rows.Close()

	var refs []models.SubCategoryRef
	for rows.Next() {
		var r models.SubCategoryRef
		if err := rows.Scan(&r.SubCategoryID, &r.SubCategory, &r.Category); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan persona mapping", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// CountByCity reports the population size already generated for a city.
func (s *PersonaStore) CountByCity(ctx context.Context, city string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM personas WHERE city = $1`, city).Scan(&count)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("count personas", err)
	}
	return count, nil
}

// CountBySubCategory reports how many personas of a city carry one
// subcategory. Used when recomputing stored percentages after ingest.
func (s *PersonaStore) CountBySubCategory(ctx context.Context, city string, subCategoryID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM persona_subcategories ps
		JOIN personas p ON p.id = ps.persona_id
		WHERE p.city = $1 AND ps.subcategory_id = $2`, city, subCategoryID).Scan(&count)
	if err != nil {
		return 0, errors.NewQueryExecutionFailedError("count personas by subcategory", err)
	}
	return count, nil
}
