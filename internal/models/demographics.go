// internal/models/demographics.go
package models

// Category is one demographic axis (e.g. Age, Income, Religion) scoped to a city.
type Category struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	City          string        `json:"city"`
	SubCategories []SubCategory `json:"subcategories,omitempty"`
}

// SubCategory is one weighted value of a Category. Sibling percentages within
// a category+city are expected to sum to 100; entry points enforce it, the
// allocator does not.
type SubCategory struct {
	ID           int64   `json:"id"`
	CategoryID   int64   `json:"categoryId"`
	CategoryName string  `json:"categoryName,omitempty"`
	Name         string  `json:"name"`
	Percentage   float64 `json:"percentage"`
	City         string  `json:"city"`
}
