package models

import (
	"fmt"
	"sort"
	"time"
)

// TokenBundle is the OAuth material kept for one advertiser account.
// Expiry instants are unix seconds, matching the on-disk document.
type TokenBundle struct {
	AdvertiserID     string `json:"advertiser_id"`
	AdvertiserName   string `json:"advertiser_name"`
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

// TokenGrant is what the identity provider returns from a code or refresh exchange.
// Lifetimes are relative, in seconds.
type TokenGrant struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresIn  int64
	RefreshExpiresIn int64
}

// Advertiser is an account approved during authorization.
type Advertiser struct {
	ID   string
	Name string
}

// NewTokenBundle builds a bundle for an approved advertiser from a fresh grant.
func NewTokenBundle(adv Advertiser, grant TokenGrant, now time.Time) TokenBundle {
	b := TokenBundle{
		AdvertiserID:   adv.ID,
		AdvertiserName: adv.Name,
	}
	b.ApplyRefresh(grant, now)
	return b
}

// Validate checks if the bundle can be persisted.
func (b *TokenBundle) Validate() error {
	if b.AdvertiserID == "" {
		return fmt.Errorf("advertiser ID is required")
	}
	if b.AccessToken == "" {
		return fmt.Errorf("access token is required")
	}
	if b.RefreshExpiresAt < b.AccessExpiresAt {
		return fmt.Errorf("refresh expiry cannot precede access expiry")
	}
	return nil
}

// ApplyRefresh replaces all four credential fields at once.
func (b *TokenBundle) ApplyRefresh(grant TokenGrant, now time.Time) {
	b.AccessToken = grant.AccessToken
	b.RefreshToken = grant.RefreshToken
	b.AccessExpiresAt = now.Unix() + grant.AccessExpiresIn
	b.RefreshExpiresAt = now.Unix() + grant.RefreshExpiresIn
}

// AccessExpiry returns the access token expiry as a time.
func (b *TokenBundle) AccessExpiry() time.Time {
	return time.Unix(b.AccessExpiresAt, 0)
}

// RefreshExpiry returns the refresh token expiry as a time.
func (b *TokenBundle) RefreshExpiry() time.Time {
	return time.Unix(b.RefreshExpiresAt, 0)
}

// DisplayName falls back to the id when the advertiser has no name.
func (b *TokenBundle) DisplayName() string {
	if b.AdvertiserName != "" {
		return b.AdvertiserName
	}
	return b.AdvertiserID
}

// BundleSlice is a slice of bundles with helper methods.
type BundleSlice []TokenBundle

// FindByID returns a bundle by advertiser id.
func (bs BundleSlice) FindByID(id string) (*TokenBundle, bool) {
	for i := range bs {
		if bs[i].AdvertiserID == id {
			return &bs[i], true
		}
	}
	return nil, false
}

// SortByName sorts by advertiser name, then id.
func (bs BundleSlice) SortByName() BundleSlice {
	result := make(BundleSlice, len(bs))
	copy(result, bs)

	sort.Slice(result, func(i, j int) bool {
		if result[i].AdvertiserName != result[j].AdvertiserName {
			return result[i].AdvertiserName < result[j].AdvertiserName
		}
		return result[i].AdvertiserID < result[j].AdvertiserID
	})

	return result
}
