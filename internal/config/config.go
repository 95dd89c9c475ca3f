package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version  string         `yaml:"version"`
	LogLevel string         `yaml:"log_level"`
	DataDir  string         `yaml:"data_dir"`
	Timezone string         `yaml:"timezone"`
	RedAd    RedAdConfig    `yaml:"redad"`
	Feishu   FeishuConfig   `yaml:"feishu"`
	Telegram TelegramConfig `yaml:"telegram"`
	Server   ServerConfig   `yaml:"server"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// RedAdConfig holds the ad platform app credentials and OAuth endpoints.
type RedAdConfig struct {
	AppID       string `yaml:"app_id"`
	Secret      string `yaml:"secret"`
	BaseURL     string `yaml:"base_url"`
	AuthURL     string `yaml:"auth_url"`
	RedirectURI string `yaml:"redirect_uri"`
	// RefreshMargin is how long before expiry a token is treated as expired.
	// Default: 5m
	RefreshMargin time.Duration `yaml:"refresh_margin"`
}

// FeishuConfig contains Bitable sync configuration.
type FeishuConfig struct {
	Enabled         bool   `yaml:"enabled"`
	AppID           string `yaml:"app_id"`
	AppSecret       string `yaml:"app_secret"`
	BaseURL         string `yaml:"base_url"`
	DefaultAppToken string `yaml:"default_app_token"`
	TableNameLimit  int    `yaml:"table_name_limit"`
}

// TelegramConfig contains Telegram bot configuration.
type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// ServerConfig contains configuration of the local HTTP listener used by serve
// and by the OAuth callback.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// APIKeys protects the read endpoints (/accounts, /bindings) when set.
	// Sent in the X-API-Key header.
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig configures outbound HTTP clients.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	// UTLS switches outbound TLS to a Chrome ClientHello fingerprint.
	UTLS bool `yaml:"utls"`
}

const (
	defaultRedAdBaseURL   = "https://adapi.xiaohongshu.com"
	defaultFeishuBaseURL  = "https://open.feishu.cn"
	defaultRefreshMargin  = 5 * time.Minute
	defaultTableNameLimit = 90
	// "_" plus a 20-digit advertiser id, with room left for the name.
	minTableNameLimit = 24
	defaultDataDir        = "data"
)

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	if c.Version == "" {
		return fmt.Errorf("version is required")
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	if err := c.RedAd.Validate(); err != nil {
		return fmt.Errorf("redad: %w", err)
	}

	if err := c.Feishu.Validate(); err != nil {
		return fmt.Errorf("feishu: %w", err)
	}

	if err := c.Telegram.Validate(); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	return nil
}

// Location returns the zone used to interpret calendar dates.
// An empty timezone means the machine's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// CredentialsPath is the token bundle document.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.json")
}

// BindingsPath is the table binding document.
func (c *Config) BindingsPath() string {
	return filepath.Join(c.DataDir, "table_bindings.json")
}

// ReportsDir holds exported report files.
func (c *Config) ReportsDir() string {
	return filepath.Join(c.DataDir, "reports")
}

// Validate validates ad platform configuration.
func (r *RedAdConfig) Validate() error {
	if r.AppID == "" {
		return fmt.Errorf("app_id is required")
	}
	if r.Secret == "" {
		return fmt.Errorf("secret is required")
	}
	if r.BaseURL == "" {
		r.BaseURL = defaultRedAdBaseURL
	}
	r.BaseURL = strings.TrimRight(r.BaseURL, "/")
	if r.RefreshMargin < 0 {
		return fmt.Errorf("refresh_margin must be positive")
	}
	if r.RefreshMargin == 0 {
		r.RefreshMargin = defaultRefreshMargin
	}
	return nil
}

// Validate validates Feishu configuration.
func (f *FeishuConfig) Validate() error {
	if f.BaseURL == "" {
		f.BaseURL = defaultFeishuBaseURL
	}
	f.BaseURL = strings.TrimRight(f.BaseURL, "/")
	if f.TableNameLimit == 0 {
		f.TableNameLimit = defaultTableNameLimit
	}
	if f.TableNameLimit < minTableNameLimit {
		return fmt.Errorf("table_name_limit must be at least %d", minTableNameLimit)
	}
	if !f.Enabled {
		return nil
	}
	if f.AppID == "" || f.AppSecret == "" {
		return fmt.Errorf("app_id and app_secret are required when enabled")
	}
	return nil
}

// Validate validates Telegram configuration.
func (t *TelegramConfig) Validate() error {
	if !t.Enabled {
		return nil
	}
	if t.BotToken == "" {
		return fmt.Errorf("bot_token is required when enabled")
	}
	if t.ChatID == 0 {
		return fmt.Errorf("chat_id is required when enabled")
	}
	return nil
}

// Validate validates server configuration.
func (s *ServerConfig) Validate() error {
	if s.Host == "" {
		s.Host = "127.0.0.1"
	}
	if s.Port == 0 {
		s.Port = 8319
	}
	if s.Port < 0 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if s.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 10 * time.Second
	}
	return nil
}

// Addr returns host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate validates outbound HTTP configuration.
func (h *HTTPConfig) Validate() error {
	if h.Timeout < 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if h.Timeout == 0 {
		h.Timeout = 30 * time.Second
	}
	return nil
}
