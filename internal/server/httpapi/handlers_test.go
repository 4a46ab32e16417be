package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vserve-ph/arta-backend/internal/common"
	"github.com/vserve-ph/arta-backend/internal/logging"
	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/auditlog"
	"github.com/vserve-ph/arta-backend/internal/server/auth"
	"github.com/vserve-ph/arta-backend/internal/server/config"
	"github.com/vserve-ph/arta-backend/internal/server/feedback"
	"github.com/vserve-ph/arta-backend/internal/server/identity"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// --- fakes ---

type stubVerifier struct {
	result identity.Result
}

func (v *stubVerifier) VerifyPassword(ctx context.Context, email, password string) identity.Result {
	return v.result
}

func (v *stubVerifier) LookupProfile(ctx context.Context, externalID string) (*identity.ProviderProfile, error) {
	return &identity.ProviderProfile{ExternalID: externalID}, nil
}

type stubAccountsRepo struct {
	profiles map[string]*accounts.Profile
}

func (r *stubAccountsRepo) GetByID(ctx context.Context, id string) (*accounts.Profile, error) {
	if p, ok := r.profiles[id]; ok {
		return p, nil
	}
	return nil, common.ErrNotFound
}

func (r *stubAccountsRepo) GetByExternalID(ctx context.Context, externalID string) (*accounts.Profile, error) {
	for _, p := range r.profiles {
		if p.ExternalID == externalID && externalID != "" {
			return p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *stubAccountsRepo) GetByEmail(ctx context.Context, email string) (*accounts.Profile, error) {
	for _, p := range r.profiles {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *stubAccountsRepo) Create(ctx context.Context, p *accounts.Profile) error {
	r.profiles[p.ID] = p
	return nil
}

func (r *stubAccountsRepo) LinkExternalID(ctx context.Context, id, externalID string) error {
	if p, ok := r.profiles[id]; ok {
		p.ExternalID = externalID
		return nil
	}
	return common.ErrNotFound
}

func (r *stubAccountsRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (r *stubAccountsRepo) List(ctx context.Context) ([]*accounts.Profile, error) {
	var out []*accounts.Profile
	for _, p := range r.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (r *stubAccountsRepo) Update(ctx context.Context, p *accounts.Profile) error {
	if _, ok := r.profiles[p.ID]; !ok {
		return common.ErrNotFound
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *stubAccountsRepo) SetStatus(ctx context.Context, id string, status accounts.Status) error {
	if p, ok := r.profiles[id]; ok {
		p.Status = status
		return nil
	}
	return common.ErrNotFound
}

type stubFeedbackRepo struct {
	items map[string]*feedback.Feedback
}

func (r *stubFeedbackRepo) Create(ctx context.Context, f *feedback.Feedback) error {
	r.items[f.ID] = f
	return nil
}

func (r *stubFeedbackRepo) GetByID(ctx context.Context, id string) (*feedback.Feedback, error) {
	if f, ok := r.items[id]; ok {
		return f, nil
	}
	return nil, common.ErrNotFound
}

func (r *stubFeedbackRepo) ListRecent(ctx context.Context, limit int) ([]*feedback.Feedback, error) {
	var out []*feedback.Feedback
	for _, f := range r.items {
		if len(out) == limit {
			break
		}
		out = append(out, f)
	}
	return out, nil
}

type stubAuditRepo struct {
	auditlog.Repository
	entries []*auditlog.Entry
}

func (r *stubAuditRepo) Create(ctx context.Context, e *auditlog.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

// --- harness ---

type harness struct {
	router *gin.Engine
	audit  *stubAuditRepo
	users  *stubAccountsRepo
	cfg    *config.Config
}

func newHarness(t *testing.T, verifier identity.Verifier) *harness {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "test-secret"

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	users := &stubAccountsRepo{profiles: map[string]*accounts.Profile{
		"p1": {
			ID: "p1", Name: "Maria Santos", Email: "maria@example.com",
			Role: accounts.RoleAdministrator, Status: accounts.StatusActive,
			ExternalID: "ext-1", CreatedAt: time.Now().UTC(),
		},
	}}
	auditRepo := &stubAuditRepo{}

	accountsSvc := accounts.NewService(users, verifier, []byte(cfg.SecretKey), time.Hour, logger)
	feedbackSvc := feedback.NewService(&stubFeedbackRepo{items: map[string]*feedback.Feedback{}}, logger)
	recorder := auditlog.NewRecorder(auditRepo, 24*time.Hour, logger)

	srv := NewServer(accountsSvc, feedbackSvc, recorder, cfg, logger)
	return &harness{router: srv.Router(), audit: auditRepo, users: users, cfg: cfg}
}

func (h *harness) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) tokenFor(t *testing.T, userID string, role accounts.Role) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, string(role), []byte(h.cfg.SecretKey), time.Hour)
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

// --- tests ---

func TestPing(t *testing.T) {
	h := newHarness(t, &stubVerifier{})

	w := h.do(http.MethodGet, "/ping", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, body["time"])
}

func TestLogin_Success(t *testing.T) {
	h := newHarness(t, &stubVerifier{result: identity.Result{Outcome: identity.OutcomeVerified, ExternalID: "ext-1"}})

	w := h.do(http.MethodPost, "/login", `{"email":"maria@example.com","password":"pw"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.NotEmpty(t, body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "maria@example.com", user["email"])
	assert.NotContains(t, w.Body.String(), "password", "response must never leak password material")

	require.Len(t, h.audit.entries, 1)
	assert.True(t, h.audit.entries[0].Success)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	rejected := newHarness(t, &stubVerifier{result: identity.Result{Outcome: identity.OutcomeRejected}})
	wRejected := rejected.do(http.MethodPost, "/login", `{"email":"maria@example.com","password":"bad"}`, nil)

	inactive := newHarness(t, &stubVerifier{result: identity.Result{Outcome: identity.OutcomeVerified, ExternalID: "ext-1"}})
	inactive.users.profiles["p1"].Status = accounts.StatusInactive
	wInactive := inactive.do(http.MethodPost, "/login", `{"email":"maria@example.com","password":"pw"}`, nil)

	assert.Equal(t, http.StatusUnauthorized, wRejected.Code)
	assert.Equal(t, http.StatusUnauthorized, wInactive.Code)
	assert.JSONEq(t, wRejected.Body.String(), wInactive.Body.String(),
		"bad password and inactive account must look identical to the caller")

	// The audit trail keeps the distinction.
	require.Len(t, rejected.audit.entries, 1)
	require.Len(t, inactive.audit.entries, 1)
	assert.Equal(t, "invalid credentials", rejected.audit.entries[0].Reason)
	assert.Equal(t, "account inactive", inactive.audit.entries[0].Reason)
}

func TestLogin_MissingFields(t *testing.T) {
	h := newHarness(t, &stubVerifier{})

	w := h.do(http.MethodPost, "/login", `{"email":"maria@example.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	h := newHarness(t, &stubVerifier{result: identity.Result{Outcome: identity.OutcomeRejected}})
	h.cfg.AuthRateLimit = 2
	// Rebuild with the tighter limit.
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	accountsSvc := accounts.NewService(h.users, &stubVerifier{result: identity.Result{Outcome: identity.OutcomeRejected}}, []byte(h.cfg.SecretKey), time.Hour, logger)
	feedbackSvc := feedback.NewService(&stubFeedbackRepo{items: map[string]*feedback.Feedback{}}, logger)
	srv := NewServer(accountsSvc, feedbackSvc, auditlog.NewRecorder(h.audit, time.Hour, logger), h.cfg, logger)
	router := srv.Router()

	body := `{"email":"maria@example.com","password":"bad"}`
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRateLimit_KeyedByAPIKeyAndForwardedFor(t *testing.T) {
	set := NewLimiterSet(1)

	r := gin.New()
	r.Use(RateLimit(set, "slow down", false))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(header map[string]string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		for k, v := range header {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	// Distinct API keys get distinct buckets.
	assert.Equal(t, http.StatusOK, send(map[string]string{"x-api-key": "a"}))
	assert.Equal(t, http.StatusTooManyRequests, send(map[string]string{"x-api-key": "a"}))
	assert.Equal(t, http.StatusOK, send(map[string]string{"x-api-key": "b"}))

	// Only the first forwarded hop identifies the caller.
	assert.Equal(t, http.StatusOK, send(map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}))
	assert.Equal(t, http.StatusTooManyRequests, send(map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.2"}))
	assert.Equal(t, http.StatusOK, send(map[string]string{"X-Forwarded-For": "5.6.7.8"}))
}

func TestRateLimit_SkipsHealthEndpoints(t *testing.T) {
	set := NewLimiterSet(1)

	r := gin.New()
	r.Use(RateLimit(set, "slow down", true))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestFeedback_CreateGetList(t *testing.T) {
	h := newHarness(t, &stubVerifier{})

	w := h.do(http.MethodPost, "/feedback", `{"message":"long queues at window 3"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody(t, w)
	id := created["id"].(string)
	require.NotEmpty(t, id)

	w = h.do(http.MethodGet, "/feedback/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	data := got["data"].(map[string]any)
	assert.Equal(t, "long queues at window 3", data["message"])

	w = h.do(http.MethodGet, "/feedback", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decodeBody(t, w)
	assert.Equal(t, float64(1), list["count"])
}

func TestFeedback_EmptyPayload(t *testing.T) {
	h := newHarness(t, &stubVerifier{})

	w := h.do(http.MethodPost, "/feedback", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedback_NotFound(t *testing.T) {
	h := newHarness(t, &stubVerifier{})

	w := h.do(http.MethodGet, "/feedback/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUsers_RequiresAdminToken(t *testing.T) {
	h := newHarness(t, &stubVerifier{})

	w := h.do(http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "no token")

	viewerToken := h.tokenFor(t, "p2", accounts.RoleViewer)
	w = h.do(http.MethodGet, "/users", "", map[string]string{"Authorization": "Bearer " + viewerToken})
	assert.Equal(t, http.StatusForbidden, w.Code, "non-admin role")

	adminToken := h.tokenFor(t, "p1", accounts.RoleAdministrator)
	w = h.do(http.MethodGet, "/users", "", map[string]string{"Authorization": "Bearer " + adminToken})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUsers_CRUDAndStatusFlip(t *testing.T) {
	h := newHarness(t, &stubVerifier{})
	admin := map[string]string{"Authorization": "Bearer " + h.tokenFor(t, "p1", accounts.RoleAdministrator)}

	w := h.do(http.MethodPost, "/users",
		`{"name":"Juan","email":"juan@example.com","password":"pw","role":"Analyst","department":"Records"}`, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decodeBody(t, w)
	id := created["id"].(string)
	assert.Equal(t, "Analyst", created["role"])

	w = h.do(http.MethodPost, "/users", `{"email":"juan@example.com","password":"pw"}`, admin)
	assert.Equal(t, http.StatusConflict, w.Code, "duplicate email")

	w = h.do(http.MethodPut, "/users/"+id, `{"department":"Finance"}`, admin)
	require.Equal(t, http.StatusOK, w.Code)
	updated := decodeBody(t, w)
	assert.Equal(t, "Finance", updated["department"])
	assert.Equal(t, "Juan", updated["name"], "unset fields stay")

	w = h.do(http.MethodPatch, "/users/"+id+"/status", `{"status":"Inactive"}`, admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/users/"+id, "", admin)
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.Equal(t, "Inactive", got["status"])

	w = h.do(http.MethodPatch, "/users/"+id+"/status", `{"status":"Deleted"}`, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code, "only Active/Inactive are valid")

	w = h.do(http.MethodPatch, "/users/missing/status", `{"status":"Active"}`, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
