package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/dbx"
)

// PostgresRepository stores feedback in the feedbacks table with the
// payload as a jsonb column.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, f *Feedback) error {
	payload, err := json.Marshal(f.Payload)
	if err != nil {
		return fmt.Errorf("payload marshal: %w", err)
	}

	query := `INSERT INTO feedbacks (id, payload, created_at) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, f.ID, payload, f.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Feedback, error) {
	query := `SELECT id, payload, created_at FROM feedbacks WHERE id = $1`

	var (
		f   Feedback
		raw []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&f.ID, &raw, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if err := json.Unmarshal(raw, &f.Payload); err != nil {
		return nil, fmt.Errorf("payload unmarshal: %w", err)
	}
	return &f, nil
}

func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]*Feedback, error) {
	query := `SELECT id, payload, created_at FROM feedbacks ORDER BY created_at DESC LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var items []*Feedback
	for rows.Next() {
		var (
			f   Feedback
			raw []byte
		)
		if err := rows.Scan(&f.ID, &raw, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if err := json.Unmarshal(raw, &f.Payload); err != nil {
			return nil, fmt.Errorf("payload unmarshal: %w", err)
		}
		items = append(items, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}
