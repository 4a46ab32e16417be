package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/logging"
	"github.com/vserve-ph/arta-backend/internal/server/auth"
	"github.com/vserve-ph/arta-backend/internal/server/identity"
)

// LoginResult is the successful outcome of a login call.
type LoginResult struct {
	Token   string
	Profile *View
}

// Service reconciles external identity verification with locally stored
// profiles and carries the administrative profile operations.
//
// Login flow: the external provider is asked first. An explicit rejection
// ends the call. Provider unavailability falls back to the stored legacy
// hash. A verified identity resolves the profile by external ID, then by
// email with a one-time link write, and synthesizes a new profile when
// neither exists.
type Service struct {
	repo          Repository
	verifier      identity.Verifier
	secretKey     []byte
	tokenValidity time.Duration
	logger        logging.Logger

	// wg tracks detached last-login writes so tests and shutdown can
	// wait for them.
	wg sync.WaitGroup
}

func NewService(repo Repository, verifier identity.Verifier, secretKey []byte, tokenValidity time.Duration, logger logging.Logger) *Service {
	return &Service{
		repo:          repo,
		verifier:      verifier,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
		logger:        logger,
	}
}

// Login verifies credentials and returns a session token plus the
// sanitized profile. It fails with common.ErrInvalidCredentials,
// common.ErrAccountInactive, or common.ErrInternal.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.ErrInvalidCredentials
	}

	var (
		profile *Profile
		wrote   bool
		err     error
	)

	res := s.verifier.VerifyPassword(ctx, email, password)
	switch res.Outcome {
	case identity.OutcomeVerified:
		profile, wrote, err = s.resolveVerified(ctx, res.ExternalID, email)
		if err != nil {
			return nil, err
		}

	case identity.OutcomeRejected:
		s.logger.Info(ctx, "login rejected by identity provider", "email", email)
		return nil, common.ErrInvalidCredentials

	case identity.OutcomeUnavailable:
		s.logger.Warn(ctx, "identity provider unavailable, trying legacy verification", "email", email, "error", res.Err)
		profile, err = s.verifyLegacy(ctx, email, password)
		if err != nil {
			return nil, err
		}
	}

	if profile.Status != StatusActive {
		s.logger.Info(ctx, "login blocked for inactive account", "user_id", profile.ID)
		return nil, common.ErrAccountInactive
	}

	token, err := auth.GenerateToken(profile.ID, string(profile.Role), s.secretKey, s.tokenValidity)
	if err != nil {
		s.logger.Error(ctx, "session token generation failed", "error", err)
		return nil, common.ErrInternal
	}

	// One profile write per login: when the resolution already created or
	// linked a record, the last-login stamp waits for the next call.
	if !wrote {
		s.recordLastLogin(profile.ID)
	}

	return &LoginResult{Token: token, Profile: profile.View()}, nil
}

// resolveVerified maps a verified external identity onto a stored profile.
// The returned bool reports whether a profile write (create or link)
// happened during resolution.
func (s *Service) resolveVerified(ctx context.Context, externalID, email string) (*Profile, bool, error) {
	profile, err := s.repo.GetByExternalID(ctx, externalID)
	if err == nil {
		return profile, false, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		s.logger.Error(ctx, "profile lookup by external id failed", "error", err)
		return nil, false, common.ErrInternal
	}

	profile, err = s.repo.GetByEmail(ctx, email)
	if err == nil {
		if profile.ExternalID == externalID {
			return profile, false, nil
		}
		if profile.ExternalID != "" {
			// Already linked to a different identity. Keep the existing
			// link and let the operators sort out the provider record.
			s.logger.Warn(ctx, "profile linked to different external id",
				"user_id", profile.ID, "verified_external_id", externalID)
			return profile, false, nil
		}
		if err := s.repo.LinkExternalID(ctx, profile.ID, externalID); err != nil {
			s.logger.Error(ctx, "external id link failed", "user_id", profile.ID, "error", err)
			return nil, false, common.ErrInternal
		}
		profile.ExternalID = externalID
		return profile, true, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		s.logger.Error(ctx, "profile lookup by email failed", "error", err)
		return nil, false, common.ErrInternal
	}

	profile, err = s.synthesize(ctx, externalID, email)
	if err != nil {
		return nil, false, err
	}
	return profile, true, nil
}

// synthesize creates a profile for a verified identity that has no stored
// record yet. Provider attributes fill in the name and role; when the
// side-channel lookup fails the profile degrades to defaults.
func (s *Service) synthesize(ctx context.Context, externalID, email string) (*Profile, error) {
	name := EmailLocalPart(email)
	role := RoleViewer

	pp, err := s.verifier.LookupProfile(ctx, externalID)
	if err != nil {
		s.logger.Warn(ctx, "provider profile lookup failed, using defaults", "external_id", externalID, "error", err)
	} else {
		if pp.DisplayName != "" {
			name = pp.DisplayName
		}
		switch {
		case pp.IsAdmin:
			role = RoleAdministrator
		default:
			if r, ok := ParseRole(pp.Role); ok {
				role = r
			}
		}
	}

	profile := &Profile{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Role:       role,
		Status:     StatusActive,
		ExternalID: externalID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		s.logger.Error(ctx, "profile synthesis failed", "email", email, "error", err)
		return nil, common.ErrInternal
	}
	s.logger.Info(ctx, "profile synthesized from verified identity", "user_id", profile.ID, "role", role)
	return profile, nil
}

// verifyLegacy is the fallback path when the provider gave no verdict.
func (s *Service) verifyLegacy(ctx context.Context, email, password string) (*Profile, error) {
	profile, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "profile lookup by email failed", "error", err)
		return nil, common.ErrInternal
	}
	if !VerifyStoredHash(profile.PasswordHash, password) {
		return nil, common.ErrInvalidCredentials
	}
	s.logger.Info(ctx, "legacy credential verification succeeded", "user_id", profile.ID)
	return profile, nil
}

// recordLastLogin stamps the login time outside the request path. Failures
// are logged, never surfaced.
func (s *Service) recordLastLogin(id string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.UpdateLastLogin(ctx, id, time.Now().UTC()); err != nil {
			s.logger.Warn(ctx, "last-login update failed", "user_id", id, "error", err)
		}
	}()
}

// Wait blocks until detached writes from earlier logins have finished.
// Called on shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// --- administrative operations ---

// CreateParams describes an administratively provisioned account.
type CreateParams struct {
	Name       string
	Email      string
	Password   string
	Role       Role
	Department string
}

// Create provisions a profile with a local password hash and no external
// identity. The link is written on the account's first verified login.
func (s *Service) Create(ctx context.Context, params CreateParams) (*View, error) {
	email := NormalizeEmail(params.Email)
	if email == "" || params.Password == "" {
		return nil, fmt.Errorf("email and password are required")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrAlreadyExists
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInternal
	}

	hash, err := HashPassword(params.Password)
	if err != nil {
		return nil, common.ErrInternal
	}

	role := params.Role
	if role == "" {
		role = RoleViewer
	}
	name := params.Name
	if name == "" {
		name = EmailLocalPart(email)
	}

	profile := &Profile{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		Role:         role,
		Department:   params.Department,
		Status:       StatusActive,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, profile); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, common.ErrAlreadyExists
		}
		s.logger.Error(ctx, "profile create failed", "email", email, "error", err)
		return nil, common.ErrInternal
	}
	return profile.View(), nil
}

func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return profile.View(), nil
}

func (s *Service) List(ctx context.Context) ([]*View, error) {
	profiles, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error(ctx, "profile list failed", "error", err)
		return nil, common.ErrInternal
	}
	views := make([]*View, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, p.View())
	}
	return views, nil
}

// UpdateParams carries the mutable profile fields. Nil pointers leave the
// stored value untouched.
type UpdateParams struct {
	Name       *string
	Role       *Role
	Department *string
}

func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (*View, error) {
	profile, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if params.Name != nil {
		profile.Name = *params.Name
	}
	if params.Role != nil {
		profile.Role = *params.Role
	}
	if params.Department != nil {
		profile.Department = *params.Department
	}
	if err := s.repo.Update(ctx, profile); err != nil {
		s.logger.Error(ctx, "profile update failed", "user_id", id, "error", err)
		return nil, common.ErrInternal
	}
	return profile.View(), nil
}

// SetStatus flips an account between Active and Inactive. Accounts are
// never deleted.
func (s *Service) SetStatus(ctx context.Context, id string, status Status) error {
	if status != StatusActive && status != StatusInactive {
		return fmt.Errorf("unknown status %q", status)
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return err
		}
		s.logger.Error(ctx, "status update failed", "user_id", id, "error", err)
		return common.ErrInternal
	}
	return nil
}
