// internal/models/persona.go
package models

// Persona is one member of a generated population. Created once by the
// factory; immutable afterwards except for description backfill.
type Persona struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	City        string           `json:"city"`
	Description string           `json:"description,omitempty"`
	Mappings    []SubCategoryRef `json:"mappings,omitempty"`
}

// SubCategoryRef links a persona to one subcategory of one axis. Mappings are
// created at generation time and never mutated.
type SubCategoryRef struct {
	SubCategoryID int64  `json:"subcategoryId"`
	SubCategory   string `json:"subcategory"`
	Category      string `json:"category"`
}
