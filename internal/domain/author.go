package domain

import "time"

// Join and author tables exist in the backend schema; no view manages them.
const (
	TableAuthors        = "authors"
	TableBookAuthors    = "book_authors"
	TableBookCategories = "book_categories"
)

// Author writes books.
type Author struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Biography string    `json:"biography"`
	CreatedAt time.Time `json:"created_at"`
}

// BookAuthor links a book to an author.
type BookAuthor struct {
	BookID   string `json:"book_id"`
	AuthorID string `json:"author_id"`
}

// BookCategory links a book to a category.
type BookCategory struct {
	BookID     string `json:"book_id"`
	CategoryID string `json:"category_id"`
}
