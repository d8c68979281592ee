// Package config provides configuration management for the try-on client.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/faishion/tryon-client/internal/constants"
)

// Config is the client configuration, stored as an INI file.
//
// Config file location:
//   - Windows: %USERPROFILE%\.config\faishion\config
//   - Unix: ~/.config/faishion/config
//
// INI format:
//
//	[api]
//	catalog_url = https://deals-products.faishion.ai
//	history_url = https://tryon-history.faishion.ai
//	auth_url = https://api-auth.faishion.ai/v1
//
//	[loader]
//	page_size = 20
//	fetch_timeout = 10s
//
//	[chatbot]
//	url = https://api.dify.ai/v1
//	api_key = app-...
//	user = fashion-app-user
//	retry_max = 2
//
//	[proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy = localhost,127.0.0.1
//	warmup = false
//
//	[session]
//	backend = file
//	path = ~/.config/faishion/session
//
//	[logging]
//	file =
//	debug = false
type Config struct {
	// Remote endpoints
	CatalogURL string
	HistoryURL string
	AuthURL    string

	// Loader settings
	PageSize     int
	FetchTimeout time.Duration

	// Chatbot proxy
	ChatbotURL      string
	ChatbotAPIKey   string
	ChatbotUser     string
	ChatbotRetryMax int

	// Proxy settings
	ProxyMode     string // "no-proxy", "system", "basic", "ntlm"
	ProxyHost     string
	ProxyPort     int
	ProxyUser     string
	ProxyPassword string // never persisted
	NoProxy       string // Comma-separated list of hosts to bypass proxy
	ProxyWarmup   bool

	// Session store
	SessionBackend string // "file" or "sqlite"
	SessionPath    string

	// Logging
	LogFile string
	Debug   bool
}

// Validation errors
var (
	ErrMissingCatalogURL = errors.New("catalog_url is required")
	ErrMissingHistoryURL = errors.New("history_url is required")
	ErrInvalidURL        = errors.New("endpoint URL must be absolute http(s)")
	ErrInvalidPageSize   = fmt.Errorf("page_size must be between 1 and %d", constants.MaxPageSize)
	ErrInvalidTimeout    = errors.New("fetch_timeout must be positive")
	ErrInvalidProxyMode  = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost  = errors.New("proxy host is required for basic and ntlm modes")
	ErrInvalidSession    = errors.New("session backend must be file or sqlite")
	ErrMissingChatbotKey = errors.New("chatbot api_key is required")
	ErrInvalidChatbotURL = errors.New("chatbot url must be absolute http(s)")
	ErrInvalidRetryMax   = errors.New("chatbot retry_max must be between 0 and 10")
)

// Environment overrides, applied after the file is read.
const (
	EnvCatalogURL = "TRYON_CATALOG_URL"
	EnvHistoryURL = "TRYON_HISTORY_URL"
	EnvChatbotKey = "TRYON_CHATBOT_KEY"
)

// DefaultConfigPath returns the default path for the config file.
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDirectory()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config"), nil
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	dir, err := ConfigDirectory()
	if err != nil {
		dir = filepath.Join(os.TempDir(), "faishion")
	}
	return &Config{
		CatalogURL:      constants.DefaultCatalogURL,
		HistoryURL:      constants.DefaultHistoryURL,
		AuthURL:         constants.DefaultAuthURL,
		PageSize:        constants.DefaultPageSize,
		FetchTimeout:    constants.FetchTimeout,
		ChatbotURL:      constants.DefaultChatbotURL,
		ChatbotUser:     constants.DefaultChatbotUser,
		ChatbotRetryMax: constants.ChatbotRetryMax,
		ProxyMode:       "no-proxy",
		ProxyPort:       8080,
		SessionBackend:  "file",
		SessionPath:     filepath.Join(dir, "session"),
	}
}

// Load reads configuration from an INI file.
// A missing file yields defaults (plus env overrides) and no error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.applyEnv()
		return cfg, nil
	}

	iniFile, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	apiSection := iniFile.Section("api")
	cfg.CatalogURL = apiSection.Key("catalog_url").MustString(cfg.CatalogURL)
	cfg.HistoryURL = apiSection.Key("history_url").MustString(cfg.HistoryURL)
	cfg.AuthURL = apiSection.Key("auth_url").MustString(cfg.AuthURL)

	loaderSection := iniFile.Section("loader")
	cfg.PageSize = loaderSection.Key("page_size").MustInt(cfg.PageSize)
	cfg.FetchTimeout = loaderSection.Key("fetch_timeout").MustDuration(cfg.FetchTimeout)

	chatSection := iniFile.Section("chatbot")
	cfg.ChatbotURL = chatSection.Key("url").MustString(cfg.ChatbotURL)
	cfg.ChatbotAPIKey = chatSection.Key("api_key").String()
	cfg.ChatbotUser = chatSection.Key("user").MustString(cfg.ChatbotUser)
	cfg.ChatbotRetryMax = chatSection.Key("retry_max").MustInt(cfg.ChatbotRetryMax)

	proxySection := iniFile.Section("proxy")
	cfg.ProxyMode = proxySection.Key("mode").MustString(cfg.ProxyMode)
	cfg.ProxyHost = proxySection.Key("host").String()
	cfg.ProxyPort = proxySection.Key("port").MustInt(cfg.ProxyPort)
	cfg.ProxyUser = proxySection.Key("user").String()
	cfg.NoProxy = proxySection.Key("no_proxy").String()
	cfg.ProxyWarmup = proxySection.Key("warmup").MustBool(false)

	sessionSection := iniFile.Section("session")
	cfg.SessionBackend = sessionSection.Key("backend").MustString(cfg.SessionBackend)
	cfg.SessionPath = ExpandPath(sessionSection.Key("path").MustString(cfg.SessionPath))

	logSection := iniFile.Section("logging")
	cfg.LogFile = ExpandPath(logSection.Key("file").String())
	cfg.Debug = logSection.Key("debug").MustBool(false)

	cfg.applyEnv()
	return cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvCatalogURL); v != "" {
		cfg.CatalogURL = v
	}
	if v := os.Getenv(EnvHistoryURL); v != "" {
		cfg.HistoryURL = v
	}
	if v := os.Getenv(EnvChatbotKey); v != "" {
		cfg.ChatbotAPIKey = v
	}
}

// Save writes the configuration to an INI file with 0600 permissions.
// The proxy password is never written.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	sections := []struct {
		name   string
		values [][2]string
	}{
		{"api", [][2]string{
			{"catalog_url", cfg.CatalogURL},
			{"history_url", cfg.HistoryURL},
			{"auth_url", cfg.AuthURL},
		}},
		{"loader", [][2]string{
			{"page_size", fmt.Sprintf("%d", cfg.PageSize)},
			{"fetch_timeout", cfg.FetchTimeout.String()},
		}},
		{"chatbot", [][2]string{
			{"url", cfg.ChatbotURL},
			{"api_key", cfg.ChatbotAPIKey},
			{"user", cfg.ChatbotUser},
			{"retry_max", fmt.Sprintf("%d", cfg.ChatbotRetryMax)},
		}},
		{"proxy", [][2]string{
			{"mode", cfg.ProxyMode},
			{"host", cfg.ProxyHost},
			{"port", fmt.Sprintf("%d", cfg.ProxyPort)},
			{"user", cfg.ProxyUser},
			{"no_proxy", cfg.NoProxy},
			{"warmup", fmt.Sprintf("%t", cfg.ProxyWarmup)},
		}},
		{"session", [][2]string{
			{"backend", cfg.SessionBackend},
			{"path", cfg.SessionPath},
		}},
		{"logging", [][2]string{
			{"file", cfg.LogFile},
			{"debug", fmt.Sprintf("%t", cfg.Debug)},
		}},
	}

	for _, s := range sections {
		section, err := iniFile.NewSection(s.name)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", s.name, err)
		}
		for _, kv := range s.values {
			section.Key(kv[0]).SetValue(kv[1])
		}
	}

	// Temporary file + rename for atomicity
	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}

	return nil
}

// Validate checks the settings needed to browse the catalog and history.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.CatalogURL) == "" {
		return ErrMissingCatalogURL
	}
	if strings.TrimSpace(cfg.HistoryURL) == "" {
		return ErrMissingHistoryURL
	}
	for _, raw := range []string{cfg.CatalogURL, cfg.HistoryURL} {
		if !isHTTPURL(raw) {
			return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
	}
	if cfg.PageSize < 1 || cfg.PageSize > constants.MaxPageSize {
		return ErrInvalidPageSize
	}
	if cfg.FetchTimeout <= 0 {
		return ErrInvalidTimeout
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case "", "no-proxy", "system":
	case "basic", "ntlm":
		if strings.TrimSpace(cfg.ProxyHost) == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	switch cfg.SessionBackend {
	case "file", "sqlite":
	default:
		return ErrInvalidSession
	}

	return nil
}

// ValidateForChat checks only the chatbot settings.
func (cfg *Config) ValidateForChat() error {
	if strings.TrimSpace(cfg.ChatbotAPIKey) == "" {
		return ErrMissingChatbotKey
	}
	if !isHTTPURL(cfg.ChatbotURL) {
		return ErrInvalidChatbotURL
	}
	if cfg.ChatbotRetryMax < 0 || cfg.ChatbotRetryMax > 10 {
		return ErrInvalidRetryMax
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
