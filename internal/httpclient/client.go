package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	utls "github.com/refraction-networking/utls"

	"github.com/redadsync/redadsync/internal/logging"
)

// EnvUTLS forces the uTLS transport on when set to "1".
const EnvUTLS = "REDADSYNC_UTLS"

const defaultUserAgent = "redadsync"

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UTLS      bool
	UserAgent string
	// Transport overrides the round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client is the outbound HTTP client shared by the ad platform and Bitable
// integrations. It sets common headers and propagates the correlation id.
type Client struct {
	client    *http.Client
	userAgent string
	useUTLS   bool
}

// New creates a Client.
func New(opts Options) *Client {
	useUTLS := opts.UTLS || strings.TrimSpace(os.Getenv(EnvUTLS)) == "1"
	transport := opts.Transport
	if transport == nil {
		transport = newTransport(useUTLS)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	return &Client{
		client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		userAgent: ua,
		useUTLS:   useUTLS,
	}
}

// UsesUTLS reports whether the Chrome fingerprint transport is active.
func (c *Client) UsesUTLS() bool {
	return c.useUTLS
}

// Do sends req after filling in default headers.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	c.applyHeaders(req)
	return c.client.Do(req)
}

// Response is a fully read response body with its status.
type Response struct {
	Status int
	Body   []byte
}

// DoJSON sends a JSON request and reads the whole body. Non-2xx statuses are
// not errors here: both remote APIs report failures inside the JSON body.
func (c *Client) DoJSON(ctx context.Context, method, url string, headers map[string]string, body []byte) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if id := logging.GetCorrelationID(ctx); id != "" {
		req.Header.Set("X-Request-Id", id)
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{Status: resp.StatusCode, Body: data}, nil
}

func (c *Client) applyHeaders(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
}

func newTransport(useUTLS bool) http.RoundTripper {
	if !useUTLS {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host := addr
			if strings.Contains(addr, ":") {
				host, _, _ = net.SplitHostPort(addr)
			}
			// http.Transport speaks HTTP/1.1 over a custom TLS conn, so h2 is not offered.
			config := &utls.Config{
				ServerName: host,
				NextProtos: []string{"http/1.1"},
			}
			uconn := utls.UClient(rawConn, config, utls.HelloChrome_120)
			if err := uconn.Handshake(); err != nil {
				_ = rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}
