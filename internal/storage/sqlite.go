package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/wakaru/internal/models"
)

// SQLiteStorage implements EntryStorage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		title TEXT,
		content TEXT NOT NULL,
		source TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_entries_created_at ON entries(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateEntry inserts an entry. The caller sets ID and CreatedAt.
func (s *SQLiteStorage) CreateEntry(ctx context.Context, entry *models.Entry) error {
	metadataJSON, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (id, title, content, source, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Title, entry.Content, entry.Source, string(metadataJSON), entry.CreatedAt,
	)
	return err
}

// GetEntry returns an entry by ID.
func (s *SQLiteStorage) GetEntry(ctx context.Context, id string) (*models.Entry, error) {
	var entry models.Entry
	var metadataJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, source, metadata, created_at
		 FROM entries WHERE id = ?`, id,
	).Scan(&entry.ID, &entry.Title, &entry.Content, &entry.Source, &metadataJSON, &entry.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("entry not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	if metadataJSON != "" && metadataJSON != "null" {
		if err := json.Unmarshal([]byte(metadataJSON), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &entry, nil
}

// DeleteEntry removes an entry by ID and reports whether a row was deleted.
func (s *SQLiteStorage) DeleteEntry(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// ListEntries returns all entries ordered by creation time, oldest first.
// The id is the secondary sort key so ordering is total.
func (s *SQLiteStorage) ListEntries(ctx context.Context) ([]*models.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, source, metadata, created_at
		 FROM entries ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		var entry models.Entry
		var metadataJSON string
		if err := rows.Scan(&entry.ID, &entry.Title, &entry.Content, &entry.Source, &metadataJSON, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if metadataJSON != "" && metadataJSON != "null" {
			_ = json.Unmarshal([]byte(metadataJSON), &entry.Metadata)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// ClearEntries removes all entries and returns the number deleted.
func (s *SQLiteStorage) ClearEntries(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM entries`)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// CountEntries returns the total number of entries.
func (s *SQLiteStorage) CountEntries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
