package accounts

import (
	"context"
	"time"
)

// Repository is the persistence port for account profiles. Implementations
// return common.ErrNotFound for missing records and common.ErrAlreadyExists
// for unique-constraint violations on email or external ID.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Profile, error)
	GetByExternalID(ctx context.Context, externalID string) (*Profile, error)
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	Create(ctx context.Context, p *Profile) error

	// LinkExternalID writes the external identity reference onto a profile
	// that previously had none. Linking an already-linked profile to the
	// same ID is a no-op.
	LinkExternalID(ctx context.Context, id, externalID string) error

	UpdateLastLogin(ctx context.Context, id string, at time.Time) error

	List(ctx context.Context) ([]*Profile, error)
	Update(ctx context.Context, p *Profile) error
	SetStatus(ctx context.Context, id string, status Status) error
}
