package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/backend/local"
	"github.com/librarydesk/librarian/internal/domain"
	domainerrors "github.com/librarydesk/librarian/internal/errors"
	"github.com/librarydesk/librarian/internal/logger"
	"github.com/librarydesk/librarian/internal/service"
	"github.com/librarydesk/librarian/internal/validation"
)

type env struct {
	local      *local.Backend
	books      *service.BookService
	categories *service.CategoryService
	tasks      *service.TaskService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tokens := auth.NewTokenService(paseto.NewV4SymmetricKey(), time.Hour, 24*time.Hour)
	lb, err := local.Open(context.Background(), filepath.Join(t.TempDir(), "backend.db"), tokens, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { lb.Close() })

	client := backend.New(lb)
	v := validation.New()
	log := logger.Discard()
	return &env{
		local:      lb,
		books:      service.NewBookService(client, v, log),
		categories: service.NewCategoryService(client, v, log),
		tasks:      service.NewTaskService(client, v, log),
	}
}

// signIn creates a user and returns a context authenticated as them.
func (e *env) signIn(t *testing.T, email, role string) (context.Context, string) {
	t.Helper()
	creds := backend.Credentials{Email: email, Password: "correct-horse-battery"}
	_, err := e.local.CreateUser(context.Background(), creds, role)
	require.NoError(t, err)
	session, err := e.local.SignInWithPassword(context.Background(), creds)
	require.NoError(t, err)
	return backend.WithAccessToken(context.Background(), session.AccessToken), session.User.ID
}

func TestBookService_CreatePrependsNewest(t *testing.T) {
	e := newEnv(t)
	ctx, _ := e.signIn(t, "ada@example.com", domain.RoleLibrarian)

	first, err := e.books.Create(ctx, domain.NewBook{Title: "Kindred", PublicationYear: 1979, TotalCopies: 1, AvailableCopies: 1})
	require.NoError(t, err)
	second, err := e.books.Create(ctx, domain.NewBook{Title: "Parable of the Sower", PublicationYear: 1993, TotalCopies: 2, AvailableCopies: 2})
	require.NoError(t, err)

	books, err := e.books.List(ctx)
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, second.ID, books[0].ID)
	assert.Equal(t, first.ID, books[1].ID)
	assert.False(t, books[0].CreatedAt.IsZero())
}

func TestBookService_AvailableAboveTotalIsStoredAsSubmitted(t *testing.T) {
	e := newEnv(t)
	ctx, _ := e.signIn(t, "ada@example.com", domain.RoleLibrarian)

	book, err := e.books.Create(ctx, domain.NewBook{Title: "Overbooked", PublicationYear: 2020, TotalCopies: 3, AvailableCopies: 5})
	require.NoError(t, err)
	assert.Equal(t, "5 / 3", book.Copies())
}

func TestBookService_NonLibrarianIsRejected(t *testing.T) {
	e := newEnv(t)
	ctx, _ := e.signIn(t, "member@example.com", "")

	_, err := e.books.Create(ctx, domain.NewBook{Title: "Nope", PublicationYear: 2020, TotalCopies: 1})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))

	// Reading the catalog is open to everyone.
	_, err = e.books.List(ctx)
	assert.NoError(t, err)
}

func TestBookService_ValidationRunsBeforeBackend(t *testing.T) {
	e := newEnv(t)

	_, err := e.books.Create(context.Background(), domain.NewBook{Title: " ", PublicationYear: 2020, TotalCopies: 0})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	fields := validation.FieldErrors(err)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "total_copies")
}

func TestCategoryService_ListSortedByName(t *testing.T) {
	e := newEnv(t)
	ctx, _ := e.signIn(t, "ada@example.com", domain.RoleLibrarian)

	for _, name := range []string{"History", "biology", "Art"} {
		_, err := e.categories.Create(ctx, domain.NewCategory{Name: name})
		require.NoError(t, err)
	}

	categories, err := e.categories.List(ctx)
	require.NoError(t, err)

	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	if diff := cmp.Diff([]string{"Art", "biology", "History"}, names); diff != "" {
		t.Errorf("category order mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskService_ListIsScopedAndNewestFirst(t *testing.T) {
	e := newEnv(t)
	aliceCtx, alice := e.signIn(t, "alice@example.com", "")
	bobCtx, bob := e.signIn(t, "bob@example.com", "")

	for _, title := range []string{"first", "second"} {
		_, err := e.tasks.Create(aliceCtx, domain.NewTask{Title: title, UserID: alice})
		require.NoError(t, err)
	}
	_, err := e.tasks.Create(bobCtx, domain.NewTask{Title: "bob's", UserID: bob})
	require.NoError(t, err)

	tasks, err := e.tasks.List(aliceCtx, alice)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "second", tasks[0].Title)
	for _, task := range tasks {
		assert.Equal(t, alice, task.UserID)
	}
}

func TestTaskService_CreateForAnotherUserIsForbidden(t *testing.T) {
	e := newEnv(t)
	aliceCtx, _ := e.signIn(t, "alice@example.com", "")
	_, bob := e.signIn(t, "bob@example.com", "")

	_, err := e.tasks.Create(aliceCtx, domain.NewTask{Title: "sneaky", UserID: bob})
	assert.Equal(t, domainerrors.CodeForbidden, domainerrors.CodeOf(err))
}

func TestTaskService_UpdateAndDelete(t *testing.T) {
	e := newEnv(t)
	ctx, alice := e.signIn(t, "alice@example.com", "")

	task, err := e.tasks.Create(ctx, domain.NewTask{Title: "draft", UserID: alice})
	require.NoError(t, err)

	updated, err := e.tasks.Update(ctx, alice, task.ID, "final", "done")
	require.NoError(t, err)
	assert.Equal(t, "final", updated.Title)
	assert.Equal(t, "done", updated.Description)
	assert.Equal(t, task.CreatedAt, updated.CreatedAt)

	require.NoError(t, e.tasks.Delete(ctx, alice, task.ID))
	tasks, err := e.tasks.List(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskService_CrossUserMutationsAreNoOps(t *testing.T) {
	e := newEnv(t)
	aliceCtx, alice := e.signIn(t, "alice@example.com", "")
	bobCtx, bob := e.signIn(t, "bob@example.com", "")

	task, err := e.tasks.Create(aliceCtx, domain.NewTask{Title: "mine", UserID: alice})
	require.NoError(t, err)

	// Bob deleting Alice's task matches nothing.
	require.NoError(t, e.tasks.Delete(bobCtx, bob, task.ID))

	// Bob updating it finds no row he may change.
	_, err = e.tasks.Update(bobCtx, bob, task.ID, "stolen", "")
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))

	tasks, err := e.tasks.List(aliceCtx, alice)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "mine", tasks[0].Title)
}

func TestTaskService_RequiresOwner(t *testing.T) {
	e := newEnv(t)

	_, err := e.tasks.List(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrUnauthorized)
	assert.ErrorIs(t, e.tasks.Delete(context.Background(), "", "t1"), domainerrors.ErrUnauthorized)
}
