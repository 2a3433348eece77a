// Package stats tracks slash-command usage in a small SQLite database.
package stats

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Repository handles all command-usage database operations
type Repository struct {
	db *sql.DB
}

// CommandCount is one command's lifetime invocation count
type CommandCount struct {
	Command string
	Count   int64
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS command_stats (
			command VARCHAR(64) PRIMARY KEY,
			count INTEGER NOT NULL DEFAULT 0,
			last_used_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Increment records one invocation of a command
func (r *Repository) Increment(command string) error {
	_, err := r.db.Exec(
		`INSERT INTO command_stats (command, count) VALUES (?, 1)
		 ON CONFLICT(command) DO UPDATE SET
		 	count = count + 1,
		 	last_used_at = CURRENT_TIMESTAMP`,
		command,
	)
	return err
}

// Count returns the invocation count for a command, zero when the
// command has never run
func (r *Repository) Count(command string) (int64, error) {
	var count int64
	err := r.db.QueryRow(
		`SELECT count FROM command_stats WHERE command = ?`,
		command,
	).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Top returns the most-used commands, highest count first
func (r *Repository) Top(limit int) ([]CommandCount, error) {
	rows, err := r.db.Query(
		`SELECT command, count FROM command_stats ORDER BY count DESC, command ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []CommandCount
	for rows.Next() {
		var c CommandCount
		if err := rows.Scan(&c.Command, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}
