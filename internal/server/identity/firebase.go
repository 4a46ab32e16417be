package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vserve-ph/arta-backend/internal/logging"
)

// Error codes the provider returns for credentials it positively rejects.
// Anything outside this set is treated as provider unavailability.
var rejectionCodes = map[string]bool{
	"INVALID_PASSWORD":          true,
	"EMAIL_NOT_FOUND":           true,
	"INVALID_LOGIN_CREDENTIALS": true,
	"USER_DISABLED":             true,
}

// FirebaseVerifier talks to the Google Identity Toolkit REST API.
type FirebaseVerifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   logging.Logger
}

// NewFirebaseVerifier builds a verifier for the given API endpoint and key.
// Every outgoing call is bounded by timeout so a slow provider cannot stall
// a login past it.
func NewFirebaseVerifier(endpoint, apiKey string, timeout time.Duration, logger logging.Logger) *FirebaseVerifier {
	return &FirebaseVerifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID string `json:"localId"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// VerifyPassword performs a single signInWithPassword call and classifies
// the response. A 400 with a known credential error code is a rejection;
// every other failure mode is unavailability.
func (v *FirebaseVerifier) VerifyPassword(ctx context.Context, email, password string) Result {
	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return Result{Outcome: OutcomeUnavailable, Err: err}
	}

	url := fmt.Sprintf("%s/accounts:signInWithPassword?key=%s", v.endpoint, v.apiKey)
	resp, err := v.post(ctx, url, body)
	if err != nil {
		return Result{Outcome: OutcomeUnavailable, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{Outcome: OutcomeUnavailable, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var ok signInResponse
		if err := json.Unmarshal(data, &ok); err != nil || ok.LocalID == "" {
			return Result{Outcome: OutcomeUnavailable, Err: fmt.Errorf("malformed sign-in response")}
		}
		return Result{Outcome: OutcomeVerified, ExternalID: ok.LocalID}

	case resp.StatusCode == http.StatusBadRequest:
		var er errorResponse
		if err := json.Unmarshal(data, &er); err != nil {
			return Result{Outcome: OutcomeUnavailable, Err: fmt.Errorf("malformed error response")}
		}
		if rejectionCodes[er.Error.Message] {
			v.logger.Debug(ctx, "identity provider rejected credentials", "code", er.Error.Message)
			return Result{Outcome: OutcomeRejected}
		}
		return Result{Outcome: OutcomeUnavailable, Err: fmt.Errorf("identity provider error: %s", er.Error.Message)}

	default:
		return Result{Outcome: OutcomeUnavailable, Err: fmt.Errorf("identity provider status %d", resp.StatusCode)}
	}
}

type lookupRequest struct {
	LocalID []string `json:"localId"`
}

type lookupResponse struct {
	Users []struct {
		LocalID          string `json:"localId"`
		DisplayName      string `json:"displayName"`
		CustomAttributes string `json:"customAttributes"`
	} `json:"users"`
}

type customClaims struct {
	Role    string `json:"role"`
	IsAdmin bool   `json:"isAdmin"`
}

// LookupProfile fetches the provider-side record for one external ID.
func (v *FirebaseVerifier) LookupProfile(ctx context.Context, externalID string) (*ProviderProfile, error) {
	body, err := json.Marshal(lookupRequest{LocalID: []string{externalID}})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/accounts:lookup?key=%s", v.endpoint, v.apiKey)
	resp, err := v.post(ctx, url, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity provider status %d", resp.StatusCode)
	}

	var lr lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&lr); err != nil {
		return nil, err
	}
	if len(lr.Users) == 0 {
		return nil, fmt.Errorf("external id %s not found at provider", externalID)
	}

	u := lr.Users[0]
	p := &ProviderProfile{ExternalID: u.LocalID, DisplayName: u.DisplayName}
	if u.CustomAttributes != "" {
		var cc customClaims
		if err := json.Unmarshal([]byte(u.CustomAttributes), &cc); err == nil {
			p.Role = cc.Role
			p.IsAdmin = cc.IsAdmin
		} else {
			v.logger.Warn(ctx, "unparseable custom attributes", "external_id", externalID)
		}
	}
	return p, nil
}

func (v *FirebaseVerifier) post(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return v.client.Do(req)
}
