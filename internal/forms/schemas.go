package forms

import (
	"strconv"
	"time"

	"github.com/librarydesk/librarian/internal/domain"
)

// Book is the "Add New Book" form.
var Book = Schema{
	Name: "book",
	Fields: []Field{
		{Name: "title", Label: "Title", Kind: KindText, Required: true, Rules: "max=500"},
		{Name: "isbn", Label: "ISBN", Kind: KindText, Rules: "max=32"},
		{
			Name: "publication_year", Label: "Publication Year", Kind: KindInt, Required: true,
			Min: intPtr(1), Rules: "max=9999",
			Default: func(now time.Time) string { return strconv.Itoa(now.Year()) },
		},
		{Name: "description", Label: "Description", Kind: KindTextarea},
		{Name: "cover_image_url", Label: "Cover Image URL", Kind: KindURL, Placeholder: "https://", Rules: "http_url"},
		{Name: "total_copies", Label: "Total Copies", Kind: KindInt, Required: true, Min: intPtr(1), Default: constant("1")},
		{
			Name: "available_copies", Label: "Available Copies", Kind: KindInt, Required: true,
			Min: intPtr(0), MaxRef: "total_copies", Default: constant("1"),
		},
	},
}

// Category is the "Add New Category" form.
var Category = Schema{
	Name: "category",
	Fields: []Field{
		{Name: "name", Label: "Name", Kind: KindText, Required: true, Rules: "max=200"},
		{Name: "description", Label: "Description", Kind: KindTextarea},
	},
}

// Task is the task form, used for both creating and editing.
var Task = Schema{
	Name: "task",
	Fields: []Field{
		{Name: "title", Label: "Title", Kind: KindText, Required: true, Rules: "max=500"},
		{Name: "description", Label: "Description", Kind: KindTextarea},
	},
}

// Login is the sign-in and sign-up form.
var Login = Schema{
	Name: "login",
	Fields: []Field{
		{Name: "email", Label: "Email", Kind: KindEmail, Required: true, Rules: "email"},
		{Name: "password", Label: "Password", Kind: KindPassword, Required: true},
	},
}

// NewBook converts parsed book values into an insert payload.
func NewBook(v Values) domain.NewBook {
	return domain.NewBook{
		Title:           v.Text("title"),
		ISBN:            v.Text("isbn"),
		PublicationYear: v.Int("publication_year"),
		Description:     v.Text("description"),
		CoverImageURL:   v.Text("cover_image_url"),
		TotalCopies:     v.Int("total_copies"),
		AvailableCopies: v.Int("available_copies"),
	}
}

// NewCategory converts parsed category values into an insert payload.
func NewCategory(v Values) domain.NewCategory {
	return domain.NewCategory{
		Name:        v.Text("name"),
		Description: v.Text("description"),
	}
}

// TaskValues returns form values pre-populated from t, for editing.
func TaskValues(t domain.Task) Values {
	return Values{"title": t.Title, "description": t.Description}
}
