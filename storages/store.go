// Package storages persists the editor state and the patch history in SQLite.
//
// Persistence never blocks editing: read failures yield no state and write
// failures are logged and dropped.
package storages

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/reusee/taibeat/history"
	"github.com/reusee/taibeat/logs"
)

//go:embed schema.sql
var schemaSQL string

const (
	stateKey   = "state"
	historyKey = "history"
)

var ErrUnavailable = errors.New("storage unavailable")

// State is the persisted editor state. Absent numbers are nil.
type State struct {
	PatchCode   string     `json:"patchCode"`
	BPM         *float64   `json:"bpm,omitempty"`
	Volume      *float64   `json:"volume,omitempty"`
	Title       string     `json:"title,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}

type Store struct {
	db     *sql.DB
	logger logs.Logger
	now    func() time.Time
}

func Open(path string, logger logs.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection, so an in-memory database is shared by every query
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		schemaSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init database: %w", err)
		}
	}
	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Unavailable returns a store that keeps nothing.
func Unavailable(logger logs.Logger) *Store {
	return &Store{
		logger: logger,
		now:    time.Now,
	}
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string, target any) (ok bool, err error) {
	err = withTx(ctx, s.db, func(tx Tx) error {
		var value string
		if err := tx.QueryRow(ctx, `SELECT value FROM documents WHERE key = ?`, key).Scan(&value); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		if err := json.Unmarshal([]byte(value), target); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		ok = true
		return nil
	})
	return
}

func (s *Store) put(ctx context.Context, key string, value any) error {
	bs, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return withTx(ctx, s.db, func(tx Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, key, string(bs), s.now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

// LoadState returns the persisted state, or false when there is none or it
// cannot be read.
func (s *Store) LoadState(ctx context.Context) (State, bool) {
	var state State
	ok, err := s.get(ctx, stateKey, &state)
	if err != nil {
		s.logger.WarnContext(ctx, "load state", "error", err)
		return State{}, false
	}
	return state, ok
}

// SaveState stamps the state with the save time and writes it.
func (s *Store) SaveState(ctx context.Context, state State) State {
	now := s.now()
	state.LastSavedAt = &now
	if err := s.put(ctx, stateKey, state); err != nil {
		s.logger.WarnContext(ctx, "save state", "error", err)
	}
	return state
}

// SaveDraft writes the state without touching its save time.
func (s *Store) SaveDraft(ctx context.Context, state State) {
	if err := s.put(ctx, stateKey, state); err != nil {
		s.logger.WarnContext(ctx, "save draft", "error", err)
	}
}

func (s *Store) LoadHistory(ctx context.Context) []history.Entry {
	var entries []history.Entry
	if _, err := s.get(ctx, historyKey, &entries); err != nil {
		s.logger.WarnContext(ctx, "load history", "error", err)
		return nil
	}
	return history.New(entries).Entries()
}

// SaveHistory writes the last history.Cap entries.
func (s *Store) SaveHistory(ctx context.Context, entries []history.Entry) {
	if err := s.put(ctx, historyKey, history.New(entries).Entries()); err != nil {
		s.logger.WarnContext(ctx, "save history", "error", err)
	}
}
