package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/logging"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ErrEmptyPayload rejects submissions with no content.
var ErrEmptyPayload = errors.New("empty payload")

type Service struct {
	repo   Repository
	logger logging.Logger
}

func NewService(repo Repository, logger logging.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, payload map[string]any) (*Feedback, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	f := &Feedback{
		ID:        uuid.NewString(),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, f); err != nil {
		s.logger.Error(ctx, "feedback create failed", "error", err)
		return nil, common.ErrInternal
	}
	return f, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Feedback, error) {
	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		s.logger.Error(ctx, "feedback read failed", "id", id, "error", err)
		return nil, common.ErrInternal
	}
	return f, nil
}

// ListRecent returns the newest submissions. Limits outside [1, 100] fall
// back to the default of 20.
func (s *Service) ListRecent(ctx context.Context, limit int) ([]*Feedback, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	items, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error(ctx, "feedback list failed", "error", err)
		return nil, common.ErrInternal
	}
	return items, nil
}
