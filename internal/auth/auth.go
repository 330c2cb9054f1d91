// Package auth builds oauth2 token sources for the fetchx client from settings.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoCredentials = errors.New("no credentials configured")
)

// Grant identifies how a token is obtained.
type Grant string

const (
	GrantNone              Grant = "none"
	GrantStatic            Grant = "static"
	GrantClientCredentials Grant = "client_credentials"
	GrantPassword          Grant = "password"
	GrantRefreshToken      Grant = "refresh_token"
)

// Config holds the credentials for one API.
type Config struct {
	// Token is a pre-issued access token. Without a RefreshToken it takes precedence
	// over every grant.
	Token string
	// RefreshToken renews Token through TokenURL once Expiry passes.
	RefreshToken string
	Expiry       time.Time
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	Scopes       []string
	// HTTPClient is used for token exchanges. Defaults to a client with a short timeout.
	HTTPClient *http.Client
}

// Grant reports which grant the configuration selects.
func (c *Config) Grant() Grant {
	switch {
	case c.Token != "" && c.RefreshToken != "" && c.TokenURL != "":
		return GrantRefreshToken
	case c.Token != "":
		return GrantStatic
	case c.Username != "":
		return GrantPassword
	case c.ClientID != "":
		return GrantClientCredentials
	default:
		return GrantNone
	}
}

// NewTokenSource returns a caching token source for the configured grant.
func NewTokenSource(ctx context.Context, config *Config) (oauth2.TokenSource, error) {
	if config == nil {
		return nil, ErrNoCredentials
	}

	grant := config.Grant()

	if grant == GrantNone {
		return nil, ErrNoCredentials
	}

	if grant == GrantStatic {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token, TokenType: "Bearer"}), nil
	}

	if config.TokenURL == "" {
		return nil, constants.ErrTokenURLRequired
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	if grant == GrantRefreshToken {
		oauthConfig := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: config.TokenURL},
			Scopes:       config.Scopes,
		}

		return oauthConfig.TokenSource(ctx, &oauth2.Token{
			AccessToken:  config.Token,
			TokenType:    "Bearer",
			RefreshToken: config.RefreshToken,
			Expiry:       config.Expiry,
		}), nil
	}

	if grant == GrantClientCredentials {
		if config.ClientSecret == "" {
			return nil, constants.ErrIncompleteOAuth2
		}

		cc := &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
			Scopes:       config.Scopes,
		}

		return cc.TokenSource(ctx), nil
	}

	if config.Password == "" {
		return nil, constants.ErrIncompletePassword
	}

	oauthConfig := &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: config.TokenURL},
		Scopes:       config.Scopes,
	}

	token, err := oauthConfig.PasswordCredentialsToken(ctx, config.Username, config.Password)
	if err != nil {
		return nil, fmt.Errorf("password grant: %w", err)
	}

	// Refreshes with the refresh token once the access token expires.
	return oauthConfig.TokenSource(ctx, token), nil
}
