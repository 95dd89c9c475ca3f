package auth

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAuthCode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "full redirect", input: "https://example.com/callback?auth_code=abc123&state=x", want: "abc123"},
		{name: "surrounding whitespace", input: "  https://example.com/cb?auth_code=abc  ", want: "abc"},
		{name: "bare query", input: "auth_code=xyz", want: "xyz"},
		{name: "leading question mark", input: "?state=1&auth_code=q", want: "q"},
		{name: "missing code", input: "https://example.com/callback?state=x", wantErr: true},
		{name: "empty", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAuthCode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorizationURL(t *testing.T) {
	_, err := AuthorizationURL("", "")
	assert.Error(t, err)

	got, err := AuthorizationURL("https://ad.example.com/auth?appId=1", "")
	require.NoError(t, err)
	assert.Equal(t, "https://ad.example.com/auth?appId=1", got)

	got, err = AuthorizationURL("https://ad.example.com/auth?appId=1", "s1")
	require.NoError(t, err)
	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "s1", u.Query().Get("state"))
	assert.Equal(t, "1", u.Query().Get("appId"))
}
