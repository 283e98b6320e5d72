// Package seed loads a YAML catalog of categories and books into the
// backend through the regular services, so the caller's librarian role is
// enforced exactly as it is for the dashboard.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/librarydesk/librarian/internal/domain"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/service"
)

// Catalog is the file format of `librarian seed`.
type Catalog struct {
	Categories []Category `yaml:"categories"`
	Books      []Book     `yaml:"books"`
}

// Category is one catalog category.
type Category struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Book is one catalog book. Copies sets both counts unless Available
// is given.
type Book struct {
	Title         string `yaml:"title"`
	ISBN          string `yaml:"isbn"`
	Year          int    `yaml:"year"`
	Description   string `yaml:"description"`
	CoverImageURL string `yaml:"cover"`
	Copies        int    `yaml:"copies"`
	Available     *int   `yaml:"available"`
}

// Parse decodes a catalog. Unknown keys are rejected.
func Parse(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

func (b Book) newBook() domain.NewBook {
	copies := b.Copies
	if copies == 0 {
		copies = 1
	}
	available := copies
	if b.Available != nil {
		available = *b.Available
	}
	return domain.NewBook{
		Title:           strings.TrimSpace(b.Title),
		ISBN:            strings.TrimSpace(b.ISBN),
		PublicationYear: b.Year,
		Description:     b.Description,
		CoverImageURL:   b.CoverImageURL,
		TotalCopies:     copies,
		AvailableCopies: available,
	}
}

// Result counts what Apply did.
type Result struct {
	CategoriesCreated int
	CategoriesSkipped int
	BooksCreated      int
	BooksSkipped      int
}

// Seeder applies catalogs.
type Seeder struct {
	books      *service.BookService
	categories *service.CategoryService
	logger     *logger.Logger
}

// New creates a seeder.
func New(books *service.BookService, categories *service.CategoryService, log *logger.Logger) *Seeder {
	if log == nil {
		log = logger.Discard()
	}
	return &Seeder{books: books, categories: categories, logger: log.WithComponent("seed")}
}

// Apply inserts every category whose name, and every book whose ISBN (or
// title when it has none), is not already present. ctx must carry a
// librarian's access token. It stops at the first failed insert.
func (s *Seeder) Apply(ctx context.Context, c *Catalog) (Result, error) {
	var res Result

	existingCats, err := s.categories.List(ctx)
	if err != nil {
		return res, err
	}
	seenCats := make(map[string]bool, len(existingCats))
	for _, cat := range existingCats {
		seenCats[strings.ToLower(cat.Name)] = true
	}

	for _, cat := range c.Categories {
		key := strings.ToLower(strings.TrimSpace(cat.Name))
		if seenCats[key] {
			res.CategoriesSkipped++
			continue
		}
		if _, err := s.categories.Create(ctx, domain.NewCategory{Name: strings.TrimSpace(cat.Name), Description: cat.Description}); err != nil {
			return res, fmt.Errorf("category %q: %w", cat.Name, err)
		}
		seenCats[key] = true
		res.CategoriesCreated++
	}

	existingBooks, err := s.books.List(ctx)
	if err != nil {
		return res, err
	}
	seenBooks := make(map[string]bool, len(existingBooks))
	for _, b := range existingBooks {
		seenBooks[bookKey(b.ISBN, b.Title)] = true
	}

	for _, b := range c.Books {
		nb := b.newBook()
		key := bookKey(nb.ISBN, nb.Title)
		if seenBooks[key] {
			res.BooksSkipped++
			continue
		}
		if _, err := s.books.Create(ctx, nb); err != nil {
			return res, fmt.Errorf("book %q: %w", b.Title, err)
		}
		seenBooks[key] = true
		res.BooksCreated++
	}

	s.logger.Info("Catalog seeded",
		"categories_created", res.CategoriesCreated,
		"categories_skipped", res.CategoriesSkipped,
		"books_created", res.BooksCreated,
		"books_skipped", res.BooksSkipped,
	)
	return res, nil
}

func bookKey(isbn, title string) string {
	if isbn != "" {
		return "isbn:" + isbn
	}
	return "title:" + strings.ToLower(title)
}
