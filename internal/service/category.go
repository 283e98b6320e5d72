package service

import (
	"context"
	"fmt"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/domain"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/validation"
)

// CategoryService lists and creates categories.
type CategoryService struct {
	client    *backend.Client
	validator *validation.Validator
	logger    *logger.Logger
}

// NewCategoryService creates a new category service.
func NewCategoryService(client *backend.Client, v *validation.Validator, log *logger.Logger) *CategoryService {
	return &CategoryService{client: client, validator: v, logger: log}
}

// List returns every category sorted by name.
func (s *CategoryService) List(ctx context.Context) ([]domain.Category, error) {
	var categories []domain.Category
	err := s.client.From(domain.TableCategories).
		Select("*").
		Order("name", true).
		Scan(ctx, &categories)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	// The backend sorts bytewise; display order is locale-aware.
	domain.SortCategories(categories)
	return categories, nil
}

// Create inserts one category and returns the stored row.
func (s *CategoryService) Create(ctx context.Context, nc domain.NewCategory) (*domain.Category, error) {
	if err := s.validator.Validate(nc); err != nil {
		return nil, err
	}

	var category domain.Category
	err := s.client.From(domain.TableCategories).
		Insert(nc).
		Select("*").
		One(ctx, &category)
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.Info("category created", "category_id", category.ID, "name", category.Name)
	return &category, nil
}
