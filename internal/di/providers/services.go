package providers

import (
	"github.com/samber/do/v2"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/service"
	"github.com/librarydesk/librarian/internal/validation"
)

// ProvideValidator provides the shared request validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideBookService provides the book service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	client := do.MustInvoke[*backend.Client](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(client, v, log), nil
}

// ProvideCategoryService provides the category service.
func ProvideCategoryService(i do.Injector) (*service.CategoryService, error) {
	client := do.MustInvoke[*backend.Client](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCategoryService(client, v, log), nil
}

// ProvideTaskService provides the task service.
func ProvideTaskService(i do.Injector) (*service.TaskService, error) {
	client := do.MustInvoke[*backend.Client](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewTaskService(client, v, log), nil
}
