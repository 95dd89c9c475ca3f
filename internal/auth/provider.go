package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/redadsync/redadsync/internal/config"
	"github.com/redadsync/redadsync/internal/httpclient"
	"github.com/redadsync/redadsync/internal/models"
)

const (
	refreshTokenPath = "/api/open/oauth2/refresh_token"
	accessTokenPath  = "/api/open/oauth2/access_token"
)

// Provider exchanges OAuth material with the ad platform.
type Provider interface {
	// ExchangeRefresh trades a refresh token for a new token pair.
	ExchangeRefresh(ctx context.Context, refreshToken string) (models.TokenGrant, error)
	// ExchangeAuthCode trades an authorization code for a token pair and
	// the advertisers the user approved.
	ExchangeAuthCode(ctx context.Context, code string) (models.TokenGrant, []models.Advertiser, error)
}

// HTTPProvider implements Provider against the ad platform's OAuth endpoints.
type HTTPProvider struct {
	client  *httpclient.Client
	baseURL string
	appID   string
	secret  string
}

// NewHTTPProvider creates a provider for the configured app.
func NewHTTPProvider(client *httpclient.Client, cfg config.RedAdConfig) *HTTPProvider {
	return &HTTPProvider{
		client:  client,
		baseURL: cfg.BaseURL,
		appID:   cfg.AppID,
		secret:  cfg.Secret,
	}
}

type exchangeRequest struct {
	AppID        string `json:"app_id"`
	Secret       string `json:"secret"`
	RefreshToken string `json:"refresh_token,omitempty"`
	AuthCode     string `json:"auth_code,omitempty"`
}

// ExchangeRefresh implements Provider.
func (p *HTTPProvider) ExchangeRefresh(ctx context.Context, refreshToken string) (models.TokenGrant, error) {
	root, err := p.post(ctx, refreshTokenPath, exchangeRequest{
		AppID:        p.appID,
		Secret:       p.secret,
		RefreshToken: refreshToken,
	})
	if err != nil {
		return models.TokenGrant{}, err
	}
	return parseGrant(root.Get("data"))
}

// ExchangeAuthCode implements Provider.
func (p *HTTPProvider) ExchangeAuthCode(ctx context.Context, code string) (models.TokenGrant, []models.Advertiser, error) {
	root, err := p.post(ctx, accessTokenPath, exchangeRequest{
		AppID:    p.appID,
		Secret:   p.secret,
		AuthCode: code,
	})
	if err != nil {
		return models.TokenGrant{}, nil, err
	}

	data := root.Get("data")
	grant, err := parseGrant(data)
	if err != nil {
		return models.TokenGrant{}, nil, err
	}

	var advertisers []models.Advertiser
	data.Get("approval_advertisers").ForEach(func(_, v gjson.Result) bool {
		id := v.Get("advertiser_id").String()
		if id != "" {
			advertisers = append(advertisers, models.Advertiser{
				ID:   id,
				Name: v.Get("advertiser_name").String(),
			})
		}
		return true
	})
	return grant, advertisers, nil
}

func (p *HTTPProvider) post(ctx context.Context, path string, payload exchangeRequest) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("marshal payload: %w", err)
	}
	resp, err := p.client.DoJSON(ctx, http.MethodPost, p.baseURL+path, nil, body)
	if err != nil {
		return gjson.Result{}, err
	}
	return httpclient.DecodeEnvelope(resp)
}

func parseGrant(data gjson.Result) (models.TokenGrant, error) {
	grant := models.TokenGrant{
		AccessToken:      data.Get("access_token").String(),
		RefreshToken:     data.Get("refresh_token").String(),
		AccessExpiresIn:  data.Get("access_token_expires_in").Int(),
		RefreshExpiresIn: data.Get("refresh_token_expires_in").Int(),
	}
	if grant.AccessToken == "" {
		return models.TokenGrant{}, fmt.Errorf("token response has no access_token")
	}
	return grant, nil
}
