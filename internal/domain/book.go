// Package domain contains the catalog and task entities handled by the
// librarian front end. All of them are owned by the backend; values here are
// transient copies.
package domain

import (
	"strconv"
	"time"
)

// TableBooks is the backend table holding books.
const TableBooks = "books"

// Book is a catalog entry.
type Book struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	ISBN            string    `json:"isbn"`
	PublicationYear int       `json:"publication_year"`
	Description     string    `json:"description"`
	CoverImageURL   string    `json:"cover_image_url"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Copies renders the availability line, e.g. "2 / 3".
func (b Book) Copies() string {
	return strconv.Itoa(b.AvailableCopies) + " / " + strconv.Itoa(b.TotalCopies)
}

// NewBook is the insert payload for a book.
//
// AvailableCopies is not bounded by TotalCopies. The form only advertises
// that limit to the browser.
type NewBook struct {
	Title           string `json:"title" validate:"notblank,max=500"`
	ISBN            string `json:"isbn,omitempty" validate:"max=32"`
	PublicationYear int    `json:"publication_year" validate:"min=1,max=9999"`
	Description     string `json:"description,omitempty" validate:"max=10000"`
	CoverImageURL   string `json:"cover_image_url,omitempty" validate:"omitempty,url"`
	TotalCopies     int    `json:"total_copies" validate:"min=1"`
	AvailableCopies int    `json:"available_copies" validate:"min=0"`
}

// DefaultNewBook returns the values a fresh book form starts with.
func DefaultNewBook(now time.Time) NewBook {
	return NewBook{
		PublicationYear: now.Year(),
		TotalCopies:     1,
		AvailableCopies: 1,
	}
}
