package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/vserve-ph/arta-backend/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *Entry) error {
	query :=
		`INSERT INTO audit_logs (id, email, client_ip, user_agent, success, reason, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.Email, e.ClientIP, e.UserAgent, e.Success, e.Reason, e.CreatedAt, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListMissingExpiry(ctx context.Context, limit int) ([]*Entry, error) {
	query :=
		`SELECT id, created_at FROM audit_logs
		 WHERE expires_at IS NULL
		 ORDER BY created_at
		 LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

func (r *PostgresRepository) SetExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	query := `UPDATE audit_logs SET expires_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, expiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM audit_logs WHERE expires_at IS NOT NULL AND expires_at < $1`

	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*Entry, error) {
	query :=
		`SELECT id, email, client_ip, user_agent, success, reason, created_at, COALESCE(expires_at, 'epoch'::timestamptz)
		 FROM audit_logs
		 ORDER BY created_at DESC
		 LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Email, &e.ClientIP, &e.UserAgent, &e.Success, &e.Reason, &e.CreatedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return entries, nil
}

var _ Repository = (*PostgresRepository)(nil)
