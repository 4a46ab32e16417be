package identity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vserve-ph/arta-backend/internal/logging"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestVerifier(t *testing.T, handler http.HandlerFunc) *FirebaseVerifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewFirebaseVerifier(srv.URL, "test-key", 2*time.Second, discardLogger())
}

func TestVerifyPassword_Verified(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "accounts:signInWithPassword")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"localId":"uid-42"}`))
	})

	res := v.VerifyPassword(context.Background(), "a@b.c", "pw")
	assert.Equal(t, OutcomeVerified, res.Outcome)
	assert.Equal(t, "uid-42", res.ExternalID)
	assert.NoError(t, res.Err)
}

func TestVerifyPassword_RejectionCodes(t *testing.T) {
	for _, code := range []string{"INVALID_PASSWORD", "EMAIL_NOT_FOUND", "INVALID_LOGIN_CREDENTIALS", "USER_DISABLED"} {
		t.Run(code, func(t *testing.T) {
			v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"` + code + `"}}`))
			})

			res := v.VerifyPassword(context.Background(), "a@b.c", "pw")
			assert.Equal(t, OutcomeRejected, res.Outcome)
		})
	}
}

func TestVerifyPassword_UnknownErrorCodeIsUnavailable(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"API_KEY_INVALID"}}`))
	})

	res := v.VerifyPassword(context.Background(), "a@b.c", "pw")
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Error(t, res.Err)
}

func TestVerifyPassword_ServerErrorIsUnavailable(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	res := v.VerifyPassword(context.Background(), "a@b.c", "pw")
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Error(t, res.Err)
}

func TestVerifyPassword_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"localId":"uid"}`))
	}))
	t.Cleanup(srv.Close)
	v := NewFirebaseVerifier(srv.URL, "k", 50*time.Millisecond, discardLogger())

	res := v.VerifyPassword(context.Background(), "a@b.c", "pw")
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
	assert.Error(t, res.Err)
}

func TestVerifyPassword_MalformedBodyIsUnavailable(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"localId":""}`))
	})

	res := v.VerifyPassword(context.Background(), "a@b.c", "pw")
	assert.Equal(t, OutcomeUnavailable, res.Outcome)
}

func TestLookupProfile_ParsesClaims(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "accounts:lookup")
		w.Write([]byte(`{"users":[{"localId":"uid-42","displayName":"Ana Cruz","customAttributes":"{\"role\":\"Editor\",\"isAdmin\":false}"}]}`))
	})

	p, err := v.LookupProfile(context.Background(), "uid-42")
	require.NoError(t, err)
	assert.Equal(t, "uid-42", p.ExternalID)
	assert.Equal(t, "Ana Cruz", p.DisplayName)
	assert.Equal(t, "Editor", p.Role)
	assert.False(t, p.IsAdmin)
}

func TestLookupProfile_NoUsers(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[]}`))
	})

	_, err := v.LookupProfile(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLookupProfile_BadClaimsDegradeToEmpty(t *testing.T) {
	v := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"users":[{"localId":"uid-9","displayName":"J","customAttributes":"not-json"}]}`))
	})

	p, err := v.LookupProfile(context.Background(), "uid-9")
	require.NoError(t, err)
	assert.Empty(t, p.Role)
	assert.False(t, p.IsAdmin)
}
