package domain

import (
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TableCategories is the backend table holding categories.
const TableCategories = "categories"

// Category groups books by subject.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCategory is the insert payload for a category.
type NewCategory struct {
	Name        string `json:"name" validate:"notblank,max=200"`
	Description string `json:"description,omitempty" validate:"max=10000"`
}

// SortCategories orders categories by name using locale-aware collation,
// so "apple" sorts next to "Apple" rather than after every capital letter.
func SortCategories(categories []Category) {
	c := collate.New(language.English)
	slices.SortStableFunc(categories, func(a, b Category) int {
		return c.CompareString(a.Name, b.Name)
	})
}

// InsertCategory returns categories with cat added, re-sorted by name.
func InsertCategory(categories []Category, cat Category) []Category {
	out := make([]Category, 0, len(categories)+1)
	out = append(out, categories...)
	out = append(out, cat)
	SortCategories(out)
	return out
}
