package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reciperag/session-cache/internal/storage"
)

// Provider is an embedded persistent backend for single-binary deployments
// that have no Postgres available. Same table shape as the postgres provider.
type Provider struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at path and ensures the
// session_records table exists.
func New(ctx context.Context, path string) (*Provider, error) {
	if path == "" {
		return nil, fmt.Errorf("database file path is required")
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS session_records (
			subject TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session_records table: %w", err)
	}

	return &Provider{db: db}, nil
}

// Close closes the underlying database handle.
func (p *Provider) Close() error {
	return p.db.Close()
}

// Ping verifies the database handle is still usable.
func (p *Provider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Provider) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT record FROM session_records WHERE subject = ?`

	var record string
	err := p.db.QueryRowContext(ctx, query, key).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session record: %w", err)
	}
	return record, nil
}

func (p *Provider) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO session_records (subject, record, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (subject) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at
	`
	_, err := p.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		// SQLITE_FULL surfaces as "database or disk is full".
		if strings.Contains(err.Error(), "database or disk is full") {
			return storage.ErrQuotaExceeded
		}
		return fmt.Errorf("failed to save session record: %w", err)
	}
	return nil
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM session_records WHERE subject = ?`
	if _, err := p.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

func (p *Provider) Class() storage.Class {
	return storage.ClassPersistent
}
