// Package service implements the catalog and task operations of the
// librarian front end on top of the backend client. Callers pass a context
// carrying the visitor's access token; authorization is enforced by the
// backend.
package service

import (
	"context"
	"fmt"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/domain"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/validation"
)

// BookService lists and creates books.
type BookService struct {
	client    *backend.Client
	validator *validation.Validator
	logger    *logger.Logger
}

// NewBookService creates a new book service.
func NewBookService(client *backend.Client, v *validation.Validator, log *logger.Logger) *BookService {
	return &BookService{client: client, validator: v, logger: log}
}

// List returns every book, newest first.
func (s *BookService) List(ctx context.Context) ([]domain.Book, error) {
	var books []domain.Book
	err := s.client.From(domain.TableBooks).
		Select("*").
		Order("created_at", false).
		Scan(ctx, &books)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Create inserts one book and returns the stored row.
func (s *BookService) Create(ctx context.Context, nb domain.NewBook) (*domain.Book, error) {
	if err := s.validator.Validate(nb); err != nil {
		return nil, err
	}

	var book domain.Book
	err := s.client.From(domain.TableBooks).
		Insert(nb).
		Select("*").
		One(ctx, &book)
	if err != nil {
		return nil, fmt.Errorf("create book: %w", err)
	}

	s.logger.Info("book created", "book_id", book.ID, "title", book.Title)
	return &book, nil
}
