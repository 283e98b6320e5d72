// Package local implements the backend transport on an embedded SQLite
// database. It stands in for the hosted backend in development and small
// deployments: it signs users in, issues PASETO access tokens and applies
// the same row rules the hosted schema enforces.
package local

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/librarydesk/librarian/internal/auth"
	"github.com/librarydesk/librarian/internal/logger"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Backend is a backend.Transport over SQLite.
type Backend struct {
	db     *sql.DB
	tokens *auth.TokenService
	logger *logger.Logger
	now    func() time.Time
}

// OpenDB opens the SQLite database at path with the pragmas the backend
// relies on. It does not migrate.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}
	return db, nil
}

// Open opens the database at path, applies pending migrations and returns
// a ready backend.
func Open(ctx context.Context, path string, tokens *auth.TokenService, log *logger.Logger) (*Backend, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrator, err := NewMigrator(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	applied, err := migrator.Up(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	if applied > 0 {
		log.Info("Local backend migrated", "path", path, "applied", applied)
	}

	return &Backend{db: db, tokens: tokens, logger: log, now: time.Now}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// Migrator applies the embedded schema migrations.
type Migrator struct {
	provider *goose.Provider
}

// NewMigrator creates a migrator for db.
func NewMigrator(db *sql.DB) (*Migrator, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return &Migrator{provider: provider}, nil
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	results, err := m.provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate up: %w", err)
	}
	return len(results), nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	if _, err := m.provider.Down(ctx); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// MigrationState describes one migration.
type MigrationState struct {
	Version   int64
	Path      string
	Applied   bool
	AppliedAt time.Time
}

// Status lists every known migration.
func (m *Migrator) Status(ctx context.Context) ([]MigrationState, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migration status: %w", err)
	}
	out := make([]MigrationState, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationState{
			Version:   s.Source.Version,
			Path:      s.Source.Path,
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

func (b *Backend) timestamp() string {
	return formatTime(b.now())
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
