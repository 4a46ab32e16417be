package auditlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/vserve-ph/arta-backend/internal/dbx"
	"github.com/vserve-ph/arta-backend/internal/logging"
)

// backfillBatchSize bounds how many rows a single retention transaction
// touches.
const backfillBatchSize = 500

// Recorder writes login-attempt entries with a retention deadline.
type Recorder struct {
	repo      Repository
	retention time.Duration
	logger    logging.Logger
}

func NewRecorder(repo Repository, retention time.Duration, logger logging.Logger) *Recorder {
	return &Recorder{repo: repo, retention: retention, logger: logger}
}

// Record stores one attempt. Failures are logged and swallowed so auditing
// can never break a login.
func (r *Recorder) Record(ctx context.Context, email, clientIP, userAgent string, success bool, reason string) {
	now := time.Now().UTC()
	e := &Entry{
		ID:        uuid.NewString(),
		Email:     email,
		ClientIP:  clientIP,
		UserAgent: userAgent,
		Success:   success,
		Reason:    reason,
		CreatedAt: now,
		ExpiresAt: now.Add(r.retention),
	}
	if err := r.repo.Create(ctx, e); err != nil {
		r.logger.Warn(ctx, "audit record write failed", "email", email, "error", err)
	}
}

// Retention maintains the expires_at column: backfilling rows written
// before the column existed and purging rows past their deadline.
type Retention struct {
	db        *sql.DB
	retention time.Duration
	logger    logging.Logger
}

func NewRetention(db *sql.DB, retention time.Duration, logger logging.Logger) *Retention {
	return &Retention{db: db, retention: retention, logger: logger}
}

// Backfill sets expires_at = created_at + retention on rows missing it,
// in transactions of up to 500 rows, until none remain. Returns the total
// number of rows updated.
func (r *Retention) Backfill(ctx context.Context) (int, error) {
	total := 0
	for {
		updated := 0
		err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := NewPostgresRepository(tx)
			entries, err := repo.ListMissingExpiry(ctx, backfillBatchSize)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if err := repo.SetExpiry(ctx, e.ID, e.CreatedAt.Add(r.retention)); err != nil {
					return err
				}
			}
			updated = len(entries)
			return nil
		})
		if err != nil {
			return total, err
		}
		total += updated
		r.logger.Info(ctx, "audit backfill batch done", "updated", updated, "total", total)
		if updated < backfillBatchSize {
			return total, nil
		}
	}
}

// Purge deletes rows whose deadline has passed.
func (r *Retention) Purge(ctx context.Context) (int64, error) {
	repo := NewPostgresRepository(r.db)
	n, err := repo.DeleteExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	r.logger.Info(ctx, "expired audit rows purged", "deleted", n)
	return n, nil
}
