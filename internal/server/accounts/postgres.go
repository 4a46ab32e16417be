package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/dbx"
)

const uniqueViolation = "23505"

// PostgresRepository stores profiles in the system_users table.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileColumns = `id, name, email, role, department, status, password_hash, external_id, created_at, last_login_at`

func (r *PostgresRepository) scanProfile(row *sql.Row) (*Profile, error) {
	var (
		p          Profile
		department sql.NullString
		hash       sql.NullString
		externalID sql.NullString
		lastLogin  sql.NullTime
	)
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &department, &p.Status, &hash, &externalID, &p.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	p.Department = department.String
	p.PasswordHash = hash.String
	p.ExternalID = externalID.String
	if lastLogin.Valid {
		t := lastLogin.Time
		p.LastLoginAt = &t
	}
	return &p, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM system_users WHERE id = $1`
	return r.scanProfile(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByExternalID(ctx context.Context, externalID string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM system_users WHERE external_id = $1`
	return r.scanProfile(r.db.QueryRowContext(ctx, query, externalID))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM system_users WHERE email = $1`
	return r.scanProfile(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) Create(ctx context.Context, p *Profile) error {
	query :=
		`INSERT INTO system_users (id, name, email, role, department, status, password_hash, external_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9)`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Email, p.Role, p.Department, p.Status, p.PasswordHash, p.ExternalID, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) LinkExternalID(ctx context.Context, id, externalID string) error {
	// Only writes when the profile has no link yet or already carries the
	// same one, so re-linking stays idempotent.
	query :=
		`UPDATE system_users SET external_id = $2
		 WHERE id = $1 AND (external_id IS NULL OR external_id = $2)`

	res, err := r.db.ExecContext(ctx, query, id, externalID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE system_users SET last_login_at = $2 WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM system_users ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		var (
			p          Profile
			department sql.NullString
			hash       sql.NullString
			externalID sql.NullString
			lastLogin  sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Role, &department, &p.Status, &hash, &externalID, &p.CreatedAt, &lastLogin); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		p.Department = department.String
		p.PasswordHash = hash.String
		p.ExternalID = externalID.String
		if lastLogin.Valid {
			t := lastLogin.Time
			p.LastLoginAt = &t
		}
		profiles = append(profiles, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return profiles, nil
}

func (r *PostgresRepository) Update(ctx context.Context, p *Profile) error {
	query :=
		`UPDATE system_users SET name = $2, role = $3, department = $4
		 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Role, p.Department)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) error {
	query := `UPDATE system_users SET status = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
