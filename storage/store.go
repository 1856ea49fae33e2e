package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the key-value persistence layer behind chats, the chat index
// and preferences. Records are JSON blobs keyed by chat id.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the chat database at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		// 0700: chat history is private to the user
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id     TEXT PRIMARY KEY,
			record BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chat_index (
			position INTEGER PRIMARY KEY AUTOINCREMENT,
			id       TEXT NOT NULL UNIQUE,
			name     TEXT NOT NULL,
			model    TEXT NOT NULL,
			provider TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveChat upserts the record for one chat id.
func (s *Store) SaveChat(ctx context.Context, id string, chat *SavedChat) error {
	record, err := json.Marshal(chat)
	if err != nil {
		return fmt.Errorf("failed to marshal chat record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO chats (id, record) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET record = excluded.record`, id, record)
	if err != nil {
		return fmt.Errorf("failed to save chat %s: %w", id, err)
	}
	return nil
}

// LoadChat returns the record for id. The second return value reports
// whether a record exists at all.
func (s *Store) LoadChat(ctx context.Context, id string) (*SavedChat, bool, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM chats WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load chat %s: %w", id, err)
	}

	var chat SavedChat
	if err := json.Unmarshal(record, &chat); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal chat %s: %w", id, err)
	}
	return &chat, true, nil
}

// DeleteChat removes a chat record and its index entry.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chat %s: %w", id, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_index WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chat index entry %s: %w", id, err)
	}
	return nil
}

// SaveIndex replaces the chat index with entries, preserving their order.
func (s *Store) SaveIndex(ctx context.Context, entries []IndexEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chat_index`); err != nil {
		return fmt.Errorf("failed to clear chat index: %w", err)
	}
	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chat_index (id, name, model, provider) VALUES (?, ?, ?, ?)`,
			e.ID, e.Name, e.Model, e.Provider)
		if err != nil {
			return fmt.Errorf("failed to insert chat index entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// LoadIndex returns the chat index in stored order.
func (s *Store) LoadIndex(ctx context.Context) ([]IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, model, provider FROM chat_index ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat index: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.ID, &e.Name, &e.Model, &e.Provider); err != nil {
			return nil, fmt.Errorf("failed to scan chat index entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) setPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to save preference %s: %w", key, err)
	}
	return nil
}

func (s *Store) allPreferences(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs[key] = value
	}
	return prefs, rows.Err()
}
