package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore SQLite history storage implementation
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the history database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			combined_query TEXT,
			mode TEXT NOT NULL,
			breadth INTEGER NOT NULL,
			depth INTEGER NOT NULL,
			learnings TEXT NOT NULL,
			visited_urls TEXT NOT NULL,
			output TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}
	return nil
}

// Save inserts entry, filling in a missing ID and timestamp.
func (s *SQLiteStore) Save(entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	learnings, err := encodeList(entry.Learnings)
	if err != nil {
		return err
	}
	urls, err := encodeList(entry.VisitedURLs)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (id, query, combined_query, mode, breadth, depth, learnings, visited_urls, output, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Query, entry.CombinedQuery, entry.Mode, entry.Breadth, entry.Depth,
		learnings, urls, entry.Output, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save history entry: %w", err)
	}
	return nil
}

// Get returns the entry with id or ErrNotFound.
func (s *SQLiteStore) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, query, combined_query, mode, breadth, depth, learnings, visited_urls, output, created_at
		 FROM runs WHERE id = ?`,
		id,
	)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history entry: %w", err)
	}
	return entry, nil
}

// List returns the newest entries first. A non-positive limit returns all.
func (s *SQLiteStore) List(limit int) ([]*Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, query, combined_query, mode, breadth, depth, learnings, visited_urls, output, created_at
		 FROM runs
		 ORDER BY created_at DESC
		 LIMIT ?`,
		sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return collect(rows)
}

// Search matches keyword against the query and output text.
func (s *SQLiteStore) Search(keyword string, limit int) ([]*Entry, error) {
	pattern := "%" + keyword + "%"
	rows, err := s.db.Query(
		`SELECT id, query, combined_query, mode, breadth, depth, learnings, visited_urls, output, created_at
		 FROM runs
		 WHERE query LIKE ? OR combined_query LIKE ? OR output LIKE ?
		 ORDER BY created_at DESC
		 LIMIT ?`,
		pattern, pattern, pattern, sqlLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search history: %w", err)
	}
	return collect(rows)
}

// Delete removes the entry with id or returns ErrNotFound.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete history entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Clear removes every entry.
func (s *SQLiteStore) Clear() error {
	if _, err := s.db.Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry          Entry
		combined       sql.NullString
		learnings, url string
	)
	err := row.Scan(&entry.ID, &entry.Query, &combined, &entry.Mode, &entry.Breadth, &entry.Depth,
		&learnings, &url, &entry.Output, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	if combined.Valid {
		entry.CombinedQuery = combined.String
	}
	if entry.Learnings, err = decodeList(learnings); err != nil {
		return nil, err
	}
	if entry.VisitedURLs, err = decodeList(url); err != nil {
		return nil, err
	}
	return &entry, nil
}

func collect(rows *sql.Rows) ([]*Entry, error) {
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return entries, nil
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}

func decodeList(data string) ([]string, error) {
	list := []string{}
	if data == "" {
		return list, nil
	}
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return list, nil
}

// sqlLimit maps a non-positive limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
