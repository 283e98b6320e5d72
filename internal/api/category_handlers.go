package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/librarydesk/librarian/internal/domain"
)

func (s *Server) registerCategoryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listCategories",
		Method:      http.MethodGet,
		Path:        "/api/v1/categories",
		Summary:     "List categories",
		Description: "Returns all categories ordered by name",
		Tags:        []string{"Categories"},
		Security:    bearer,
	}, s.handleListCategories)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createCategory",
		Method:        http.MethodPost,
		Path:          "/api/v1/categories",
		Summary:       "Create category",
		Description:   "Adds a category. The backend rejects callers without the librarian role.",
		Tags:          []string{"Categories"},
		Security:      bearer,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateCategory)
}

// CreateCategoryRequest is the request body for creating a category.
type CreateCategoryRequest struct {
	Name        string `json:"name" minLength:"1" maxLength:"200" doc:"Category name"`
	Description string `json:"description,omitempty" maxLength:"10000" doc:"Description"`
}

// CreateCategoryInput wraps the create category request for Huma.
type CreateCategoryInput struct {
	Body CreateCategoryRequest
}

// CategoryListResponse contains all categories.
type CategoryListResponse struct {
	Categories []domain.Category `json:"categories" doc:"Categories ordered by name"`
}

// ListCategoriesOutput wraps the category list for Huma.
type ListCategoriesOutput struct {
	Body CategoryListResponse
}

// CategoryOutput wraps a single category for Huma.
type CategoryOutput struct {
	Body domain.Category
}

func (s *Server) handleListCategories(ctx context.Context, _ *struct{}) (*ListCategoriesOutput, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}

	categories, err := s.services.Categories.List(ctx)
	if err != nil {
		return nil, s.fail("listCategories", err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return &ListCategoriesOutput{Body: CategoryListResponse{Categories: categories}}, nil
}

func (s *Server) handleCreateCategory(ctx context.Context, input *CreateCategoryInput) (*CategoryOutput, error) {
	if _, err := requireCaller(ctx); err != nil {
		return nil, err
	}

	category, err := s.services.Categories.Create(ctx, domain.NewCategory{
		Name:        input.Body.Name,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, s.fail("createCategory", err)
	}
	return &CategoryOutput{Body: *category}, nil
}
