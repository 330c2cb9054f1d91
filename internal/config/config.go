// Package config loads fetchx client settings from FETCHX_* environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// Settings holds everything needed to build a client.
type Settings struct {
	BaseURL     string            `env:"BASE_URL"`
	Headers     map[string]string `env:"HEADERS" envKeyValSeparator:":" envSeparator:","`
	Credentials string            `env:"CREDENTIALS" envDefault:"omit"`
	Debug       bool              `env:"DEBUG"`
	LogLevel    string            `env:"LOG_LEVEL" envDefault:"info"`
	Timeout     time.Duration     `env:"TIMEOUT" envDefault:"30s"`
	RetryMax    int               `env:"RETRY_MAX" envDefault:"0"`

	Auth  AuthSettings
	Cache CacheSettings
}

// AuthSettings selects how requests are authorized. A static token wins over OAuth2.
type AuthSettings struct {
	Token        string   `env:"TOKEN"`
	TokenURL     string   `env:"TOKEN_URL"`
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Username     string   `env:"USERNAME"`
	Password     string   `env:"PASSWORD"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// CacheSettings selects the response cache backend.
type CacheSettings struct {
	Type       string `env:"CACHE_TYPE" envDefault:"memory"`
	NATSURL    string `env:"CACHE_NATS_URL"`
	NATSBucket string `env:"CACHE_NATS_BUCKET"`
	SQLitePath string `env:"CACHE_SQLITE_PATH"`
}

// Load reads Settings from the environment.
func Load() (*Settings, error) {
	settings := &Settings{}

	if err := env.ParseWithOptions(settings, env.Options{Prefix: constants.EnvPrefix + "_"}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate checks that the settings are complete and consistent.
func (s *Settings) Validate() error {
	if s.BaseURL == "" {
		return constants.ErrBaseURLRequired
	}

	return s.Auth.Validate()
}

// Validate checks that an OAuth2 configuration is complete. The client-credentials
// grant needs both client fields; the password grant needs both user fields.
func (a *AuthSettings) Validate() error {
	if a.Token != "" {
		return nil
	}

	if a.ClientID == "" && a.ClientSecret == "" && a.Username == "" && a.Password == "" {
		return nil
	}

	if a.TokenURL == "" {
		return constants.ErrTokenURLRequired
	}

	if (a.Username == "") != (a.Password == "") {
		return constants.ErrIncompletePassword
	}

	if a.Username == "" && (a.ClientID == "" || a.ClientSecret == "") {
		return constants.ErrIncompleteOAuth2
	}

	return nil
}
