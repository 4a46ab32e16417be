// Package feedback stores free-form feedback submissions. Payloads are
// open JSON objects persisted as-is, newest first on listing.
package feedback

import (
	"context"
	"time"
)

type Feedback struct {
	ID        string         `json:"id"`
	Payload   map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

type Repository interface {
	Create(ctx context.Context, f *Feedback) error
	GetByID(ctx context.Context, id string) (*Feedback, error)
	ListRecent(ctx context.Context, limit int) ([]*Feedback, error)
}
