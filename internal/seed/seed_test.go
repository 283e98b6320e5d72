package seed

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/backend/local"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/service"
	"github.com/librarydesk/librarian/internal/validation"
)

const catalogYAML = `
categories:
  - name: History
  - name: Art
    description: Painting and sculpture
books:
  - title: The Histories
    isbn: "978-0140449082"
    year: 1996
    copies: 2
  - title: Ways of Seeing
    year: 1972
    copies: 3
    available: 1
  - title: Untitled Zine
`

func newSeeder(t *testing.T, role string) (*Seeder, *service.BookService, context.Context) {
	t.Helper()
	tokens := auth.NewTokenService(paseto.NewV4SymmetricKey(), time.Hour, 24*time.Hour)
	lb, err := local.Open(context.Background(), filepath.Join(t.TempDir(), "backend.db"), tokens, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { lb.Close() })

	creds := backend.Credentials{Email: "seed@example.com", Password: "correct-horse-battery"}
	_, err = lb.CreateUser(context.Background(), creds, role)
	require.NoError(t, err)
	session, err := lb.SignInWithPassword(context.Background(), creds)
	require.NoError(t, err)

	client := backend.New(lb)
	v := validation.New()
	books := service.NewBookService(client, v, logger.Discard())
	categories := service.NewCategoryService(client, v, logger.Discard())
	return New(books, categories, nil), books, backend.WithAccessToken(context.Background(), session.AccessToken)
}

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	require.Len(t, c.Categories, 2)
	assert.Equal(t, "Painting and sculpture", c.Categories[1].Description)

	require.Len(t, c.Books, 3)
	ways := c.Books[1].newBook()
	assert.Equal(t, 3, ways.TotalCopies)
	assert.Equal(t, 1, ways.AvailableCopies)

	zine := c.Books[2].newBook()
	assert.Equal(t, 1, zine.TotalCopies, "copies default to one")
	assert.Equal(t, 1, zine.AvailableCopies)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := Parse(strings.NewReader("books:\n  - title: X\n    author: Y\n"))
	assert.Error(t, err)
}

func TestParse_Empty(t *testing.T) {
	c, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Books)
}

func TestApply_IsIdempotent(t *testing.T) {
	s, books, ctx := newSeeder(t, "librarian")
	c, err := Parse(strings.NewReader(strings.Replace(catalogYAML, "  - title: Untitled Zine\n", "", 1)))
	require.NoError(t, err)

	res, err := s.Apply(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Result{CategoriesCreated: 2, BooksCreated: 2}, res)

	res, err = s.Apply(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, Result{CategoriesSkipped: 2, BooksSkipped: 2}, res)

	list, err := books.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestApply_RequiresLibrarian(t *testing.T) {
	s, _, ctx := newSeeder(t, "member")
	c, err := Parse(strings.NewReader(catalogYAML))
	require.NoError(t, err)

	_, err = s.Apply(ctx, c)
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))
}
