package commands

import (
	"context"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fivetwenty-io/fetchx/internal/logging"
	"github.com/fivetwenty-io/fetchx/pkg/cache"
	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
	"github.com/fivetwenty-io/fetchx/pkg/fetchxclient"
)

// CreateClient builds a client from the CLI configuration.
func CreateClient(ctx context.Context) (*fetchxclient.Client, error) {
	config := loadConfig()

	if config.API == "" {
		return nil, ErrAPIEndpointRequired
	}

	opts := &fetchxclient.Options{
		BaseURL:      normalizeEndpoint(config.API),
		Headers:      config.Headers,
		Credentials:  fetchx.CredentialsMode(config.Credentials),
		Debug:        config.Debug,
		Token:        config.Token,
		RefreshToken: config.RefreshToken,
		TokenURL:     config.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Cache:        cacheConfig(config.Cache),
		Logger:       logging.NewConsole(os.Stderr, config.Debug),
	}

	if config.TokenExpiresAt != nil {
		opts.TokenExpiry = *config.TokenExpiresAt

		// An expired token without a refresh token is useless; fall back to the
		// client-credentials grant when one is configured.
		if config.RefreshToken == "" && config.ClientSecret != "" && time.Now().After(*config.TokenExpiresAt) {
			opts.Token = ""
		}
	}

	if config.TokenURL != "" {
		opts.TokenPersister = NewConfigPersister()
	}

	return fetchxclient.New(ctx, opts)
}

func cacheConfig(settings CacheConfig) *cache.Config {
	config := &cache.Config{Type: cache.StoreType(settings.Type)}

	if settings.NATSURL != "" {
		config.NATS = &cache.NATSKVConfig{URL: settings.NATSURL, Bucket: settings.NATSBucket}
	}

	if settings.SQLitePath != "" {
		config.SQLite = &cache.SQLiteConfig{Path: settings.SQLitePath}
	}

	return config
}

// normalizeEndpoint trims trailing slashes and defaults to https.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")

	if parsed, err := url.Parse(endpoint); err == nil && parsed.Scheme != "" && parsed.Host != "" {
		return endpoint
	}

	return "https://" + endpoint
}
