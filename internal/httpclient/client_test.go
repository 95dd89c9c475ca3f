package httpclient

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redadsync/redadsync/internal/logging"
)

func TestClient_DoJSONSetsHeaders(t *testing.T) {
	var got http.Header
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":1254041,"msg":"TableIdNotFound"}`))
	}))
	defer srv.Close()

	c := New(Options{Timeout: time.Second})
	ctx := logging.WithCorrelationID(context.Background(), "cid-1")
	resp, err := c.DoJSON(ctx, http.MethodPost, srv.URL, map[string]string{"Access-Token": "tok"}, []byte(`{"a":1}`))
	require.NoError(t, err, "error statuses are returned, not raised")

	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, `{"a":1}`, body)
	assert.Equal(t, "tok", got.Get("Access-Token"))
	assert.Equal(t, "cid-1", got.Get("X-Request-Id"))
	assert.Equal(t, "redadsync", got.Get("User-Agent"))
	assert.Contains(t, got.Get("Content-Type"), "application/json")
}

func TestClient_GetHasNoContentType(t *testing.T) {
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	resp, err := New(Options{}).DoJSON(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Empty(t, contentType)
}

func TestClient_UTLSFromEnv(t *testing.T) {
	t.Setenv(EnvUTLS, "1")
	assert.True(t, New(Options{}).UsesUTLS())

	t.Setenv(EnvUTLS, "")
	assert.False(t, New(Options{}).UsesUTLS())
	assert.True(t, New(Options{UTLS: true}).UsesUTLS())
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(Options{Timeout: time.Second}).DoJSON(context.Background(), http.MethodGet, url, nil, nil)
	assert.Error(t, err)
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		resp     Response
		wantCode int64
		wantMsg  string
		wantErr  bool
	}{
		{name: "success", resp: Response{Status: 200, Body: []byte(`{"code":0,"data":{"x":1}}`)}},
		{name: "no code field", resp: Response{Status: 200, Body: []byte(`{"data":{}}`)}},
		{name: "remote code", resp: Response{Status: 400, Body: []byte(`{"code":1254041,"msg":"TableIdNotFound"}`)}, wantErr: true, wantCode: 1254041, wantMsg: "TableIdNotFound"},
		{name: "not json", resp: Response{Status: 502, Body: []byte(`<html>bad gateway</html>`)}, wantErr: true, wantMsg: "<html>bad gateway</html>"},
		{name: "error status without code", resp: Response{Status: 500, Body: []byte(`{"error":"x"}`)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := DecodeEnvelope(&tt.resp)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.True(t, root.Exists())
				return
			}
			var apiErr *APIError
			require.True(t, stderrors.As(err, &apiErr))
			assert.Equal(t, tt.wantCode, apiErr.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, apiErr.Msg)
			}
		})
	}
}
