package fetchxclient

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/fivetwenty-io/fetchx/internal/auth"
	"github.com/fivetwenty-io/fetchx/internal/config"
	"github.com/fivetwenty-io/fetchx/internal/logging"
	"github.com/fivetwenty-io/fetchx/pkg/cache"
	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
	"github.com/fivetwenty-io/fetchx/pkg/repository"
	"github.com/fivetwenty-io/fetchx/pkg/store"
)

// Interceptor ids registered by New.
const (
	InterceptorRequestID = "request-id"
	InterceptorAuth      = "auth"
	InterceptorLogging   = "logging"
)

// Static errors for err113 compliance.
var (
	ErrOptionsRequired = errors.New("options are required")
)

// TokenPersister stores refreshed OAuth2 tokens.
type TokenPersister interface {
	SaveToken(token *oauth2.Token) error
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Headers     map[string]string
	Credentials fetchx.CredentialsMode
	UserAgent   string
	Debug       bool

	// Timeout bounds a single network attempt.
	Timeout time.Duration
	// RetryMax enables retries of connection errors. HTTP status codes are never retried.
	RetryMax int

	// Token is a pre-issued bearer token.
	Token string
	// RefreshToken and TokenExpiry let a persisted Token be renewed through TokenURL.
	RefreshToken string
	TokenExpiry  time.Time
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scopes       []string
	// TokenPersister receives tokens obtained through OAuth2.
	TokenPersister TokenPersister

	// Cache selects the response cache backend. Nil means in-memory.
	Cache *cache.Config

	Logger fetchx.Logger
}

// Client bundles a pipeline service with a response cache.
type Client struct {
	service *fetchx.Service
	cache   *cache.Cache
	logger  fetchx.Logger
}

// New creates a client from options.
func New(ctx context.Context, opts *Options) (*Client, error) {
	if opts == nil {
		return nil, ErrOptionsRequired
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	transport := fetchx.NewRetryableTransport(&fetchx.TransportConfig{
		Timeout:  opts.Timeout,
		RetryMax: opts.RetryMax,
		Logger:   debugLogger(opts.Debug, logger),
	})

	service, err := fetchx.NewService(&fetchx.Config{
		BaseURL:     opts.BaseURL,
		Headers:     opts.Headers,
		Credentials: opts.Credentials,
		UserAgent:   opts.UserAgent,
		Debug:       opts.Debug,
		Logger:      logger,
	}, fetchx.WithTransport(transport))
	if err != nil {
		return nil, fmt.Errorf("creating service: %w", err)
	}

	if err := service.SetInterceptor(InterceptorRequestID, fetchx.RequestIDInterceptor()); err != nil {
		return nil, err
	}

	if err := configureAuth(ctx, service, opts, logger); err != nil {
		return nil, err
	}

	if opts.Debug {
		if err := service.SetInterceptor(InterceptorLogging, fetchx.LoggingInterceptor(logger)); err != nil {
			return nil, err
		}
	}

	responses, err := cache.NewFromConfig(ctx, opts.Cache, logger)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	return &Client{service: service, cache: responses, logger: logger}, nil
}

// NewFromEnv creates a client from FETCHX_* environment variables.
func NewFromEnv(ctx context.Context) (*Client, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stderr, settings.LogLevel)
	if err != nil {
		return nil, err
	}

	if settings.Debug {
		logger = logging.NewConsole(os.Stderr, true)
	}

	opts := OptionsFromSettings(settings)
	opts.Logger = logger

	return New(ctx, opts)
}

// OptionsFromSettings converts environment settings to client options.
func OptionsFromSettings(settings *config.Settings) *Options {
	opts := &Options{
		BaseURL:      settings.BaseURL,
		Headers:      settings.Headers,
		Credentials:  fetchx.CredentialsMode(strings.ToLower(settings.Credentials)),
		Debug:        settings.Debug,
		Timeout:      settings.Timeout,
		RetryMax:     settings.RetryMax,
		Token:        settings.Auth.Token,
		TokenURL:     settings.Auth.TokenURL,
		ClientID:     settings.Auth.ClientID,
		ClientSecret: settings.Auth.ClientSecret,
		Username:     settings.Auth.Username,
		Password:     settings.Auth.Password,
		Scopes:       settings.Auth.Scopes,
		Cache:        &cache.Config{Type: cache.StoreType(settings.Cache.Type)},
	}

	if settings.Cache.NATSURL != "" {
		opts.Cache.NATS = &cache.NATSKVConfig{URL: settings.Cache.NATSURL, Bucket: settings.Cache.NATSBucket}
	}

	if settings.Cache.SQLitePath != "" {
		opts.Cache.SQLite = &cache.SQLiteConfig{Path: settings.Cache.SQLitePath}
	}

	return opts
}

// NewWithEndpoint creates an unauthenticated client for baseURL.
func NewWithEndpoint(ctx context.Context, baseURL string) (*Client, error) {
	return New(ctx, &Options{BaseURL: baseURL})
}

// NewWithToken creates a client with a base URL and bearer token.
func NewWithToken(ctx context.Context, baseURL, token string) (*Client, error) {
	return New(ctx, &Options{BaseURL: baseURL, Token: token})
}

// NewWithClientCredentials creates a client using the OAuth2 client-credentials grant.
func NewWithClientCredentials(ctx context.Context, baseURL, tokenURL, clientID, clientSecret string) (*Client, error) {
	return New(ctx, &Options{
		BaseURL:      baseURL,
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewWithPassword creates a client using the OAuth2 password grant.
func NewWithPassword(ctx context.Context, baseURL, tokenURL, clientID, username, password string) (*Client, error) {
	return New(ctx, &Options{
		BaseURL:  baseURL,
		TokenURL: tokenURL,
		ClientID: clientID,
		Username: username,
		Password: password,
	})
}

// Service returns the pipeline service.
func (c *Client) Service() *fetchx.Service {
	return c.service
}

// Cache returns the response cache shared by list stores.
func (c *Client) Cache() *cache.Cache {
	return c.cache
}

// Logger returns the client logger.
func (c *Client) Logger() fetchx.Logger {
	return c.logger
}

// Repository returns a resource accessor for path.
func (c *Client) Repository(path string) (*repository.Repository, error) {
	return repository.New(c.service, path)
}

// Close releases the cache backend.
func (c *Client) Close() error {
	return c.cache.Close()
}

// NewList creates a list store for path. The client cache and logger are used unless
// options set their own.
func NewList[T any](c *Client, path string, options store.ListOptions) (*store.ListStore[T], error) {
	repo, err := c.Repository(path)
	if err != nil {
		return nil, err
	}

	if options.Cache == nil {
		options.Cache = c.cache
	}

	if options.Logger == nil {
		options.Logger = c.logger
	}

	return store.NewListStore[T](repo, options)
}

// NewEntity creates an entity store for path.
func NewEntity[T any](c *Client, path string) (*store.EntityStore[T], error) {
	repo, err := c.Repository(path)
	if err != nil {
		return nil, err
	}

	return store.NewEntityStore[T](repo, c.logger)
}

func configureAuth(ctx context.Context, service *fetchx.Service, opts *Options, logger fetchx.Logger) error {
	authConfig := &auth.Config{
		Token:        opts.Token,
		RefreshToken: opts.RefreshToken,
		Expiry:       opts.TokenExpiry,
		TokenURL:     opts.TokenURL,
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Username:     opts.Username,
		Password:     opts.Password,
		Scopes:       opts.Scopes,
	}

	if authConfig.Grant() == auth.GrantNone {
		return nil
	}

	source, err := auth.NewTokenSource(ctx, authConfig)
	if err != nil {
		return fmt.Errorf("configuring authentication: %w", err)
	}

	if opts.TokenPersister != nil && authConfig.Grant() != auth.GrantStatic {
		source = auth.NewPersistingTokenSource(source, opts.TokenPersister, logger, opts.Token)
	}

	return service.SetInterceptor(InterceptorAuth, fetchx.OAuth2Interceptor(source))
}

func debugLogger(debug bool, logger fetchx.Logger) fetchx.Logger {
	if !debug {
		return nil
	}

	return logger
}
