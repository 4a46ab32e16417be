// Package auditlog records login attempts with a retention deadline.
// Writes are best-effort: a failed audit insert is logged and never
// fails the request that triggered it.
package auditlog

import (
	"context"
	"time"
)

// Entry is one recorded login attempt. ExpiresAt drives retention;
// rows past their deadline are purged by the retention job.
type Entry struct {
	ID        string
	Email     string
	ClientIP  string
	UserAgent string
	Success   bool
	Reason    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

type Repository interface {
	Create(ctx context.Context, e *Entry) error

	// ListMissingExpiry returns up to limit row IDs with no expires_at
	// set, oldest first, paired with their created_at.
	ListMissingExpiry(ctx context.Context, limit int) ([]*Entry, error)

	SetExpiry(ctx context.Context, id string, expiresAt time.Time) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	List(ctx context.Context, limit int) ([]*Entry, error)
}
