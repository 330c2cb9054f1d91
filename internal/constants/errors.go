package constants

import "errors"

// Configuration errors.
var (
	ErrBaseURLRequired  = errors.New("base URL is required")
	ErrNoConfigFile     = errors.New("no config file in use")
	ErrUnknownConfigKey = errors.New("unknown configuration key")
	ErrInvalidHeader    = errors.New("invalid header, expected NAME:VALUE")
)

// Authentication errors.
var (
	ErrTokenURLRequired   = errors.New("token URL is required for OAuth2 grants")
	ErrIncompleteOAuth2   = errors.New("client ID and client secret must be set together")
	ErrIncompletePassword = errors.New("username and password must be set together")
)

// CLI errors.
var (
	ErrIDRequired        = errors.New("resource id is required")
	ErrInvalidOutput     = errors.New("invalid output format, expected table, json or yaml")
	ErrInvalidDataFlag   = errors.New("--data must be a JSON object")
	ErrInvalidFilterFlag = errors.New("invalid filter, expected KEY=VALUE")
)
