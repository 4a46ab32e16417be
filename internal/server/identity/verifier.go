// Package identity wraps the external identity provider. It exposes the
// three-outcome password verification contract the login flow depends on:
// a provider saying "wrong password" and a provider being unreachable are
// different results and are never collapsed into one.
package identity

import "context"

// Outcome classifies the result of a single password verification call.
type Outcome int

const (
	// OutcomeUnavailable means the provider could not give a verdict:
	// network error, timeout, malformed response, or a non-credential
	// error code. Only this outcome permits the legacy-hash fallback.
	OutcomeUnavailable Outcome = iota

	// OutcomeVerified means the provider accepted the credentials and
	// returned a stable external identity.
	OutcomeVerified

	// OutcomeRejected means the provider positively identified the
	// credentials as wrong. The login fails without a legacy attempt.
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeRejected:
		return "rejected"
	default:
		return "unavailable"
	}
}

// Result is the outcome of one verification call. ExternalID is set only
// when Outcome is OutcomeVerified. Err carries the underlying failure when
// Outcome is OutcomeUnavailable; it is diagnostic only.
type Result struct {
	Outcome    Outcome
	ExternalID string
	Err        error
}

// ProviderProfile is the side-channel view of a user held by the provider,
// fetched by external ID during profile synthesis.
type ProviderProfile struct {
	ExternalID  string
	DisplayName string
	Role        string
	IsAdmin     bool
}

// Verifier is the port to the external identity provider.
type Verifier interface {
	// VerifyPassword performs exactly one password check against the
	// provider. It never returns an error; failures are reported through
	// Result.Outcome and Result.Err.
	VerifyPassword(ctx context.Context, email, password string) Result

	// LookupProfile fetches display name and custom claims for a verified
	// external identity. Used only when synthesizing a new profile; the
	// caller degrades to defaults when it fails.
	LookupProfile(ctx context.Context, externalID string) (*ProviderProfile, error)
}
