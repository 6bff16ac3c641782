package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/reciperag/session-cache/internal/storage"
)

// pgDiskFull is the SQLSTATE Postgres reports when a write fails for
// capacity reasons.
const pgDiskFull = "53100"

// Provider is the persistent backend for authenticated visitors: one row per
// subject in session_records, holding the encoded record.
type Provider struct {
	db *DB
}

// NewProvider creates a Postgres-backed provider.
func NewProvider(db *DB) *Provider {
	return &Provider{db: db}
}

func (p *Provider) Get(ctx context.Context, key string) (string, error) {
	query := `SELECT record FROM session_records WHERE subject = $1`

	var record string
	err := p.db.Pool.QueryRow(ctx, query, key).Scan(&record)
	if errors.Is(err, pgx.ErrNoRows) {
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
		VALUES ($1, $2, $3)
		ON CONFLICT (subject) DO UPDATE SET record = $2, updated_at = $3
	`
	_, err := p.db.Pool.Exec(ctx, query, key, value, time.Now().UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDiskFull {
			return storage.ErrQuotaExceeded
		}
		return fmt.Errorf("failed to save session record: %w", err)
	}
	return nil
}

func (p *Provider) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM session_records WHERE subject = $1`
	if _, err := p.db.Pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete session record: %w", err)
	}
	return nil
}

func (p *Provider) Class() storage.Class {
	return storage.ClassPersistent
}
