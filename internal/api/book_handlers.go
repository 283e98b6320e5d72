package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librarydesk/librarian/internal/domain"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns the catalog, newest first",
		Tags:        []string{"Books"},
		Security:    bearer,
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Adds a book to the catalog. The backend rejects callers without the librarian role.",
		Tags:          []string{"Books"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)
}

// CreateBookRequest is the request body for creating a book.
type CreateBookRequest struct {
	Title           string `json:"title" minLength:"1" maxLength:"500" doc:"Book title"`
	ISBN            string `json:"isbn,omitempty" maxLength:"32" doc:"ISBN"`
	PublicationYear int    `json:"publication_year" doc:"Year of publication"`
	Description     string `json:"description,omitempty" maxLength:"10000" doc:"Description"`
	CoverImageURL   string `json:"cover_image_url,omitempty" doc:"Cover image URL"`
	TotalCopies     int    `json:"total_copies" minimum:"1" doc:"Copies owned"`
	AvailableCopies int    `json:"available_copies" minimum:"0" doc:"Copies on the shelf"`
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// BookListResponse contains the catalog.
type BookListResponse struct {
	Books []domain.Book `json:"books" doc:"Books, newest first"`
}

// ListBooksOutput wraps the book list for Huma.
type ListBooksOutput struct {
	Body BookListResponse
}

// BookOutput wraps a single book for Huma.
type BookOutput struct {
	Body domain.Book
}

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*ListBooksOutput, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}

	books, err := s.services.Books.List(ctx)
	if err != nil {
		return nil, s.fail("listBooks", err)
	}
	if books == nil {
		books = []domain.Book{}
	}
	return &ListBooksOutput{Body: BookListResponse{Books: books}}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}

	book, err := s.services.Books.Create(ctx, domain.NewBook{
		Title:           input.Body.Title,
		ISBN:            input.Body.ISBN,
		PublicationYear: input.Body.PublicationYear,
		Description:     input.Body.Description,
		CoverImageURL:   input.Body.CoverImageURL,
		TotalCopies:     input.Body.TotalCopies,
		AvailableCopies: input.Body.AvailableCopies,
	})
	if err != nil {
		return nil, s.fail("createBook", err)
	}
	return &BookOutput{Body: *book}, nil
}
