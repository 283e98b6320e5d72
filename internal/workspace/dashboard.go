package workspace

import (
	"context"
	"maps"
	"net/url"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/forms"
)

// Dashboard tabs.
const (
	TabBooks      = "books"
	TabCategories = "categories"
)

// BookFailureAlert is shown when a book insert fails, whatever the cause.
const BookFailureAlert = "Error adding book. Make sure you have librarian privileges."

type dashboard struct {
	mounted        bool
	tab            string
	books          []domain.Book
	categories     []domain.Category
	bookForm       forms.Values
	bookErrors     forms.Errors
	categoryForm   forms.Values
	categoryErrors forms.Errors
	alert          string
}

func (d *dashboard) reset(now time.Time) {
	*d = dashboard{
		tab:          TabBooks,
		bookForm:     forms.Book.Defaults(now),
		categoryForm: forms.Category.Defaults(now),
	}
}

// DashboardView is a render-ready copy of the dashboard state.
type DashboardView struct {
	Tab            string
	Books          []domain.Book
	Categories     []domain.Category
	BookForm       forms.Values
	BookErrors     forms.Errors
	CategoryForm   forms.Values
	CategoryErrors forms.Errors
	// Loading is true while a book insert is in flight.
	Loading bool
	// Alert is a blocking message, shown once.
	Alert string
}

// Dashboard returns a snapshot of the dashboard and clears its alert.
func (ws *Workspace) Dashboard() DashboardView {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	d := &ws.dash
	view := DashboardView{
		Tab:            d.tab,
		Books:          slices.Clone(d.books),
		Categories:     slices.Clone(d.categories),
		BookForm:       maps.Clone(d.bookForm),
		BookErrors:     d.bookErrors,
		CategoryForm:   maps.Clone(d.categoryForm),
		CategoryErrors: d.categoryErrors,
		Loading:        ws.bookBusy,
		Alert:          d.alert,
	}
	d.alert = ""
	return view
}

// Mount fetches books and categories the first time the dashboard is shown,
// or every time when force is set. The two fetches run in parallel and fail
// independently: a failed fetch leaves its list empty and adds a notice.
func (ws *Workspace) Mount(ctx context.Context, force bool) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.dash.mounted && !force {
		return
	}
	ws.dash.mounted = true

	var (
		books      []domain.Book
		categories []domain.Category
		bookErr    error
		catErr     error
	)

	// A plain Group, not WithContext: one failed fetch must not cancel the
	// other. Each fetch keeps its own error for its own notice.
	var g errgroup.Group
	g.Go(func() error {
		books, bookErr = ws.svc.Books.List(ctx)
		return bookErr
	})
	g.Go(func() error {
		categories, catErr = ws.svc.Categories.List(ctx)
		return catErr
	})
	if err := g.Wait(); err != nil {
		ws.listFailed("books", bookErr)
		ws.listFailed("categories", catErr)
	}
	ws.dash.books = books
	ws.dash.categories = categories
	if bookErr != nil {
		ws.dash.books = nil
	}
	if catErr != nil {
		ws.dash.categories = nil
	}
}

// listFailed must be called with ws.mu held. A nil err is ignored.
func (ws *Workspace) listFailed(list string, err error) {
	if err == nil {
		return
	}
	ws.logger.WithError(err).Error("failed to fetch "+list)
	ws.notify(LevelError, "Could not load "+list+": "+domainerrors.MessageOf(err))
}

// SetTab switches the active tab without refetching.
func (ws *Workspace) SetTab(tab string) error {
	if tab != TabBooks && tab != TabCategories {
		return domainerrors.Validationf("unknown tab %q", tab)
	}
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.dash.tab = tab
	return nil
}

// Tab returns the active tab.
func (ws *Workspace) Tab() string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.dash.tab
}

// AddBook submits the book form. While one submission is in flight a
// second one fails with BUSY. On success the form resets to its defaults and
// the new book is prepended; on failure the form keeps its values and the
// privilege alert is raised.
func (ws *Workspace) AddBook(ctx context.Context, form url.Values) (*domain.Book, error) {
	ws.mu.Lock()
	if ws.bookBusy {
		ws.mu.Unlock()
		return nil, domainerrors.ErrBusy
	}
	values, errs := forms.Book.Parse(form)
	ws.dash.tab = TabBooks
	ws.dash.bookForm = values
	ws.dash.bookErrors = errs
	if errs != nil {
		ws.mu.Unlock()
		return nil, domainerrors.ValidationWithDetails("invalid book", map[string]string(errs))
	}
	ws.bookBusy = true
	ws.mu.Unlock()

	// The insert runs without the workspace lock so the page can still
	// render the "Adding Book..." state.
	book, err := ws.svc.Books.Create(ctx, forms.NewBook(values))

	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.bookBusy = false
	if err != nil {
		ws.logger.WithError(err).Error("failed to add book")
		ws.dash.alert = BookFailureAlert
		return nil, err
	}
	ws.dash.books = slices.Insert(ws.dash.books, 0, *book)
	ws.dash.bookForm = forms.Book.Defaults(ws.now())
	ws.dash.bookErrors = nil
	return book, nil
}

// AddCategory submits the category form. On success the form clears and
// the category is inserted into the name-sorted list.
func (ws *Workspace) AddCategory(ctx context.Context, form url.Values) (*domain.Category, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	values, errs := forms.Category.Parse(form)
	ws.dash.tab = TabCategories
	ws.dash.categoryForm = values
	ws.dash.categoryErrors = errs
	if errs != nil {
		return nil, domainerrors.ValidationWithDetails("invalid category", map[string]string(errs))
	}

	category, err := ws.svc.Categories.Create(ctx, forms.NewCategory(values))
	if err != nil {
		ws.logger.WithError(err).Error("failed to add category")
		ws.notify(LevelError, "Error adding category: "+domainerrors.MessageOf(err))
		return nil, err
	}
	ws.dash.categories = domain.InsertCategory(ws.dash.categories, *category)
	ws.dash.categoryForm = forms.Category.Defaults(ws.now())
	ws.dash.categoryErrors = nil
	return category, nil
}

