package auth

import (
	"fmt"
	"net/url"
	"strings"
)

// AuthCodeParam is the query parameter carrying the code on the redirect URL.
const AuthCodeParam = "auth_code"

// ParseAuthCode extracts the authorization code from the URL the browser was
// redirected to after consent. A bare query string is accepted as well.
func ParseAuthCode(redirectURL string) (string, error) {
	raw := strings.TrimSpace(redirectURL)
	if raw == "" {
		return "", fmt.Errorf("empty redirect URL")
	}

	query := raw
	if u, err := url.Parse(raw); err == nil && (u.Scheme != "" || u.RawQuery != "") {
		query = u.RawQuery
	}
	query = strings.TrimPrefix(query, "?")

	values, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("invalid redirect URL: %w", err)
	}
	code := strings.TrimSpace(values.Get(AuthCodeParam))
	if code == "" {
		return "", fmt.Errorf("redirect URL has no %s parameter", AuthCodeParam)
	}
	return code, nil
}

// AuthorizationURL returns the consent page URL. When state is set it is
// added as the state query parameter.
func AuthorizationURL(authURL, state string) (string, error) {
	if authURL == "" {
		return "", fmt.Errorf("redad.auth_url is not configured")
	}
	u, err := url.Parse(authURL)
	if err != nil {
		return "", fmt.Errorf("invalid redad.auth_url: %w", err)
	}
	if state != "" {
		q := u.Query()
		q.Set("state", state)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
