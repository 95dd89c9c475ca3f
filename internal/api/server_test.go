package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redadsync/redadsync/internal/auth"
	"github.com/redadsync/redadsync/internal/config"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/store"
)

type fixedState auth.State

func (f fixedState) State(models.TokenBundle) auth.State { return auth.State(f) }

type fakeAuthorizer struct {
	code    string
	bundles []models.TokenBundle
	err     error
}

func (f *fakeAuthorizer) Authorize(ctx context.Context, code string) ([]models.TokenBundle, error) {
	f.code = code
	return f.bundles, f.err
}

func setupTestServer(t *testing.T, apiKeys []string, deps Deps) (*Server, *store.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.NewMemoryStore()
	require.NoError(t, s.SaveBundle(models.TokenBundle{
		AdvertiserID:     "42",
		AdvertiserName:   "Studio",
		AccessToken:      "secret-access",
		RefreshToken:     "secret-refresh",
		AccessExpiresAt:  time.Now().Add(time.Hour).Unix(),
		RefreshExpiresAt: time.Now().Add(24 * time.Hour).Unix(),
	}))
	require.NoError(t, s.SaveBinding(models.TableBinding{AccountID: "42", NameRemark: "Studio", TableID: "tbl1"}))

	deps.Credentials = s
	deps.Bindings = s
	if deps.Lifecycle == nil {
		deps.Lifecycle = fixedState(auth.StateValid)
	}
	cfg := config.ServerConfig{Host: "127.0.0.1", Port: 8319, APIKeys: apiKeys}
	return NewServer(cfg, deps), s
}

func serve(server *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	server.Router().ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{})

	w := serve(server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestHandleMetrics(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{})
	serve(server, http.MethodGet, "/health", nil)

	w := serve(server, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redadsync_http_requests_total")
}

func TestHandleListAccounts(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{Lifecycle: fixedState(auth.StateRefreshNeeded)})

	w := serve(server, http.MethodGet, "/accounts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-access", "tokens must never be exposed")
	assert.NotContains(t, w.Body.String(), "secret-refresh")

	var body struct {
		Accounts []accountResponse `json:"accounts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Accounts, 1)
	assert.Equal(t, "42", body.Accounts[0].AdvertiserID)
	assert.Equal(t, auth.StateRefreshNeeded, body.Accounts[0].State)
}

func TestHandleListBindings(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{})

	w := serve(server, http.MethodGet, "/bindings", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Bindings []bindingResponse `json:"bindings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Bindings, 1)
	assert.Equal(t, "tbl1", body.Bindings[0].TableID)
	assert.True(t, body.Bindings[0].Resolved)
}

func TestAPIKeyAuth(t *testing.T) {
	server, _ := setupTestServer(t, []string{"key-123456"}, Deps{})

	w := serve(server, http.MethodGet, "/accounts", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key is required")

	w = serve(server, http.MethodGet, "/accounts", http.Header{"X-Api-Key": {"wrong"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")

	w = serve(server, http.MethodGet, "/accounts", http.Header{"X-Api-Key": {"key-123456"}})
	assert.Equal(t, http.StatusOK, w.Code)

	// Health stays open.
	w = serve(server, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "***", MaskAPIKey("abc"))
	assert.Equal(t, "key-******", MaskAPIKey("key-123456"))
}

func TestHandleOAuthCallback_NotConfigured(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{})

	w := serve(server, http.MethodGet, "/oauth/callback?auth_code=abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not_configured")
}

func TestHandleOAuthCallback(t *testing.T) {
	authorizer := &fakeAuthorizer{bundles: []models.TokenBundle{{AdvertiserID: "7", AdvertiserName: "New Shop"}}}
	var got []models.TokenBundle
	server, _ := setupTestServer(t, nil, Deps{
		Authorizer:   authorizer,
		State:        "xyz",
		OnAuthorized: func(b []models.TokenBundle) { got = b },
	})

	w := serve(server, http.MethodGet, "/oauth/callback?auth_code=abc&state=wrong", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_state")

	w = serve(server, http.MethodGet, "/oauth/callback?state=xyz", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "missing_code")

	w = serve(server, http.MethodGet, "/oauth/callback?auth_code=abc&state=xyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", authorizer.code)
	assert.Contains(t, w.Body.String(), "New Shop")
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].AdvertiserID)
}

func TestHandleOAuthCallback_ExchangeError(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{Authorizer: &fakeAuthorizer{err: stderrors.New("code expired")}})

	w := serve(server, http.MethodGet, "/oauth/callback?auth_code=abc", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "code expired")
}

func TestOAuthCallbackRateLimit(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{})

	codes := make([]int, 0, 7)
	for i := 0; i < 7; i++ {
		codes = append(codes, serve(server, http.MethodGet, "/oauth/callback", nil).Code)
	}
	assert.Equal(t, http.StatusNotFound, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[6])
}

func TestIPRateLimiter_Refill(t *testing.T) {
	l := newIPRateLimiter(time.Second, 2)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
}

func TestServeAndShutdown(t *testing.T) {
	server, _ := setupTestServer(t, nil, Deps{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- server.Serve(ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Shutdown(ctx))
	assert.NoError(t, <-done)
}
