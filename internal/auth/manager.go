package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redadsync/redadsync/internal/errors"
	"github.com/redadsync/redadsync/internal/logging"
	"github.com/redadsync/redadsync/internal/metrics"
	"github.com/redadsync/redadsync/internal/models"
	"github.com/redadsync/redadsync/internal/store"
)

// DefaultRefreshMargin is how long before expiry a token is treated as expired.
const DefaultRefreshMargin = 5 * time.Minute

// State is the lifecycle state of a token bundle at a point in time.
type State string

const (
	StateValid          State = "VALID"
	StateRefreshNeeded  State = "REFRESH_NEEDED"
	StateReauthRequired State = "REAUTH_REQUIRED"
)

// Manager hands out valid access tokens, refreshing them through the
// Provider when the access token is inside the margin but the refresh
// token is not.
type Manager struct {
	store    store.CredentialStore
	provider Provider
	margin   time.Duration
	now      func() time.Time
	logger   *logging.Logger
	metrics  *metrics.Metrics

	// refreshMu serializes refreshes so a rotated refresh token is never
	// exchanged twice by concurrent callers.
	refreshMu sync.Mutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithMargin sets the refresh margin.
func WithMargin(margin time.Duration) Option {
	return func(m *Manager) {
		if margin > 0 {
			m.margin = margin
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// NewManager creates a Manager.
func NewManager(credentials store.CredentialStore, provider Provider, opts ...Option) *Manager {
	m := &Manager{
		store:    credentials,
		provider: provider,
		margin:   DefaultRefreshMargin,
		now:      time.Now,
		logger:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "auth")
	return m
}

// State reports the lifecycle state of b at the current time.
func (m *Manager) State(b models.TokenBundle) State {
	return m.stateAt(b, m.now())
}

func (m *Manager) stateAt(b models.TokenBundle, now time.Time) State {
	if now.Before(b.AccessExpiry().Add(-m.margin)) {
		return StateValid
	}
	if now.Before(b.RefreshExpiry().Add(-m.margin)) {
		return StateRefreshNeeded
	}
	return StateReauthRequired
}

// GetValidCredential returns a usable access token for the account.
//
// A token outside the margin is returned as is. Otherwise one refresh
// exchange is made and the store is updated before the new token is
// returned. If the exchange or the store write fails the stored bundle is
// left as it was and *errors.ErrRefreshFailed is returned. Once the refresh
// window has passed too, *errors.ErrReauthorizationRequired is returned
// without contacting the provider.
func (m *Manager) GetValidCredential(ctx context.Context, accountID string) (string, error) {
	b, err := m.lookup(accountID)
	if err != nil {
		return "", err
	}

	now := m.now()
	state := m.stateAt(*b, now)
	m.metrics.RecordTokenCheck(string(state))

	switch state {
	case StateValid:
		return b.AccessToken, nil
	case StateReauthRequired:
		m.logger.WarnWithContext(ctx, "authorization fully expired", "account_id", accountID)
		return "", &errors.ErrReauthorizationRequired{AccountID: accountID, AccountName: b.AdvertiserName}
	}

	return m.refresh(ctx, accountID)
}

func (m *Manager) refresh(ctx context.Context, accountID string) (string, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	b, err := m.lookup(accountID)
	if err != nil {
		return "", err
	}
	now := m.now()
	switch m.stateAt(*b, now) {
	case StateValid:
		return b.AccessToken, nil
	case StateReauthRequired:
		return "", &errors.ErrReauthorizationRequired{AccountID: accountID, AccountName: b.AdvertiserName}
	}

	m.logger.InfoWithContext(ctx, "access token expired, refreshing", "account_id", accountID, "account_name", b.AdvertiserName)

	grant, err := m.provider.ExchangeRefresh(ctx, b.RefreshToken)
	if err != nil {
		m.metrics.RecordTokenRefresh(false)
		m.logger.ErrorWithContext(ctx, "token refresh failed", "account_id", accountID, "error", err)
		return "", &errors.ErrRefreshFailed{AccountID: accountID, Err: err}
	}

	updated := *b
	updated.ApplyRefresh(grant, now)
	if err := m.store.SaveBundle(updated); err != nil {
		m.metrics.RecordTokenRefresh(false)
		m.logger.ErrorWithContext(ctx, "failed to persist refreshed token", "account_id", accountID, "error", err)
		return "", &errors.ErrRefreshFailed{AccountID: accountID, Err: fmt.Errorf("persist refreshed token: %w", err)}
	}

	m.metrics.RecordTokenRefresh(true)
	m.logger.InfoWithContext(ctx, "token refreshed", "account_id", accountID, "access_expires_at", updated.AccessExpiresAt)
	return updated.AccessToken, nil
}

func (m *Manager) lookup(accountID string) (*models.TokenBundle, error) {
	b, ok, err := m.store.GetBundle(accountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.metrics.RecordTokenCheck("NOT_FOUND")
		return nil, &errors.ErrAccountNotFound{AccountID: accountID}
	}
	return b, nil
}

// Authorize exchanges an authorization code and stores one bundle per
// approved advertiser. Existing bundles for those advertisers are replaced.
func (m *Manager) Authorize(ctx context.Context, code string) ([]models.TokenBundle, error) {
	grant, advertisers, err := m.provider.ExchangeAuthCode(ctx, code)
	if err != nil {
		m.logger.ErrorWithContext(ctx, "authorization code exchange failed", "error", err)
		return nil, fmt.Errorf("authorization failed: %w", err)
	}
	if len(advertisers) == 0 {
		return nil, fmt.Errorf("authorization succeeded but no advertiser was approved")
	}

	now := m.now()
	saved := make([]models.TokenBundle, 0, len(advertisers))
	for _, adv := range advertisers {
		b := models.NewTokenBundle(adv, grant, now)
		if err := m.store.SaveBundle(b); err != nil {
			return saved, err
		}
		m.logger.InfoWithContext(ctx, "account authorized", "account_id", adv.ID, "account_name", adv.Name)
		saved = append(saved, b)
	}
	return saved, nil
}
