package commands

import (
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ConfigPersister writes refreshed tokens back to the CLI configuration file.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// SaveToken stores token and its metadata in the config.
func (p *ConfigPersister) SaveToken(token *oauth2.Token) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()
	applyToken(config, token)

	return saveConfigStruct(config)
}

func applyToken(config *Config, token *oauth2.Token) {
	config.Token = token.AccessToken

	if token.RefreshToken != "" {
		config.RefreshToken = token.RefreshToken
	}

	config.TokenExpiresAt = nil
	if !token.Expiry.IsZero() {
		expiresAt := token.Expiry
		config.TokenExpiresAt = &expiresAt
	}

	now := time.Now()
	config.LastRefreshed = &now
}
