package bitable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redadsync/redadsync/internal/httpclient"
)

const tenantTokenPath = "/open-apis/auth/v3/tenant_access_token/internal"

// tokenSafetyMargin is subtracted from the advertised lifetime.
const tokenSafetyMargin = 300 * time.Second

// TokenProvider supplies a tenant access token.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenSource fetches and caches the app's tenant access token.
type TokenSource struct {
	client    *httpclient.Client
	baseURL   string
	appID     string
	appSecret string
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenSource creates a TokenSource for an internal app.
func NewTokenSource(client *httpclient.Client, baseURL, appID, appSecret string) *TokenSource {
	return &TokenSource{
		client:    client,
		baseURL:   baseURL,
		appID:     appID,
		appSecret: appSecret,
		now:       time.Now,
	}
}

// Token returns the cached token, fetching a new one once it is within five
// minutes of expiry.
func (ts *TokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expiresAt) {
		return ts.token, nil
	}

	body, err := json.Marshal(map[string]string{
		"app_id":     ts.appID,
		"app_secret": ts.appSecret,
	})
	if err != nil {
		return "", err
	}
	resp, err := ts.client.DoJSON(ctx, http.MethodPost, ts.baseURL+tenantTokenPath, nil, body)
	if err != nil {
		return "", fmt.Errorf("tenant token request: %w", err)
	}
	root, err := httpclient.DecodeEnvelope(resp)
	if err != nil {
		return "", fmt.Errorf("tenant token: %w", err)
	}

	token := root.Get("tenant_access_token").String()
	if token == "" {
		return "", fmt.Errorf("tenant token: empty tenant_access_token")
	}
	expire := root.Get("expire").Int()
	if expire <= 0 {
		expire = 7200
	}

	ts.token = token
	ts.expiresAt = ts.now().Add(time.Duration(expire)*time.Second - tokenSafetyMargin)
	return ts.token, nil
}

// Invalidate drops the cached token.
func (ts *TokenSource) Invalidate() {
	ts.mu.Lock()
	ts.token = ""
	ts.expiresAt = time.Time{}
	ts.mu.Unlock()
}
