package consolelogin

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

const (
	defaultSelectBusinessPath = "/select-business"
	defaultCallbackParam      = "callbackUrl"
)

// Config holds every tunable of the login engine.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	API       APIConfig
	Storage   StorageConfig
	Countries CountriesConfig
	Password  PasswordConfig
	Redirect  RedirectConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig configures the security API transport. The flow has no timeout
// policy of its own; api.FromConfig applies Timeout to every request.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageConfig names the persisted keys.
type StorageConfig struct {
	Prefix      string // redis / sqlite key namespace
	TokenKey    string
	BusinessKey string
	CountryKey  string
}

/*
====================================
COUNTRY CONFIG
====================================
*/

// CountriesConfig drives the fallback default-country choice when nothing
// has been persisted yet.
type CountriesConfig struct {
	PreferredName      string
	PreferredPhoneCode string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds local credential validation rules.
type PasswordConfig struct {
	MinLength    int
	PINMinLength int
}

/*
====================================
REDIRECT CONFIG
====================================
*/

// RedirectConfig configures ResolveRedirect.
type RedirectConfig struct {
	SelectBusinessPath string
	CallbackParam      string
	DefaultCallback    string
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			Timeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Prefix:      "cl",
			TokenKey:    "auth_token",
			BusinessKey: "active_business_id",
			CountryKey:  "login_country_id",
		},
		Countries: CountriesConfig{
			PreferredName:      "nigeria",
			PreferredPhoneCode: "234",
		},
		Password: PasswordConfig{
			MinLength:    8,
			PINMinLength: 4,
		},
		Redirect: RedirectConfig{
			SelectBusinessPath: defaultSelectBusinessPath,
			CallbackParam:      defaultCallbackParam,
			DefaultCallback:    "/",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.API.BaseURL != "" {
		u, err := url.Parse(c.API.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return errors.New("API BaseURL must be an absolute URL")
		}
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}

	if strings.TrimSpace(c.Storage.TokenKey) == "" ||
		strings.TrimSpace(c.Storage.BusinessKey) == "" ||
		strings.TrimSpace(c.Storage.CountryKey) == "" {
		return errors.New("Storage keys must be non-empty")
	}
	if c.Storage.TokenKey == c.Storage.BusinessKey ||
		c.Storage.TokenKey == c.Storage.CountryKey ||
		c.Storage.BusinessKey == c.Storage.CountryKey {
		return errors.New("Storage keys must be distinct")
	}

	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.PINMinLength < 1 {
		return errors.New("Password PINMinLength must be >= 1")
	}

	if c.Redirect.SelectBusinessPath == "" || !strings.HasPrefix(c.Redirect.SelectBusinessPath, "/") {
		return errors.New("Redirect SelectBusinessPath must be an absolute path")
	}
	if strings.TrimSpace(c.Redirect.CallbackParam) == "" {
		return errors.New("Redirect CallbackParam must be non-empty")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics latency histograms require metrics to be enabled")
	}

	return nil
}
