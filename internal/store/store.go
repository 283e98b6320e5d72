// Package store persists browser visitor sessions so a restart does not
// sign everybody out. Records expire on their own after the configured TTL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/librarydesk/librarian/internal/backend"
	"github.com/librarydesk/librarian/internal/logger"
)

const visitorPrefix = "visitor:"

// ErrNotFound is returned by Load when the visitor has no stored session.
var ErrNotFound = errors.New("visitor session not found")

// SessionStore keeps the backend session of each visitor.
type SessionStore interface {
	Load(ctx context.Context, visitorKey string) (*backend.Session, error)
	Save(ctx context.Context, visitorKey string, session *backend.Session) error
	Delete(ctx context.Context, visitorKey string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// record is the stored value.
type record struct {
	Session *backend.Session `json:"session"`
	SavedAt time.Time        `json:"saved_at"`
}

// Store is a Badger-backed SessionStore.
type Store struct {
	db     *badger.DB
	ttl    time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// New opens (or creates) the Badger database at path. Saved sessions
// expire ttl after their last save.
func New(path string, ttl time.Duration, log *logger.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}
	log.Info("Session store opened", "path", path, "ttl", ttl)

	return &Store{db: db, ttl: ttl, logger: log, now: time.Now}, nil
}

// NewInMemory opens a Badger database that never touches disk.
func NewInMemory(ttl time.Duration) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger db: %w", err)
	}
	return &Store{db: db, ttl: ttl, logger: logger.Discard(), now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	s.logger.Info("Closing session store")
	return s.db.Close()
}

// Load returns the session saved for visitorKey.
func (s *Store) Load(ctx context.Context, visitorKey string) (*backend.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(visitorKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load visitor session: %w", err)
	}
	if rec.Session == nil {
		return nil, ErrNotFound
	}
	return rec.Session, nil
}

// Save stores session for visitorKey, replacing any previous one and
// restarting its TTL. A nil session deletes the record.
func (s *Store) Save(ctx context.Context, visitorKey string, session *backend.Session) error {
	if session == nil {
		return s.Delete(ctx, visitorKey)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(record{Session: session, SavedAt: s.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key(visitorKey), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete removes the visitor's session. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, visitorKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(visitorKey))
	})
}

// Count returns the number of live visitor sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(visitorPrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("count visitor sessions: %w", err)
	}
	return count, nil
}

func key(visitorKey string) []byte {
	return []byte(visitorPrefix + visitorKey)
}
