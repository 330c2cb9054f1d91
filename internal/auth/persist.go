package auth

import (
	"sync"

	"golang.org/x/oauth2"
)

// Persister stores a refreshed token, e.g. in the CLI configuration file.
type Persister interface {
	SaveToken(token *oauth2.Token) error
}

// Logger is the subset of fetchx.Logger used to report persistence failures.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// PersistingTokenSource wraps a token source and hands every new access token to a
// Persister. Persistence failures are logged and never fail the request.
type PersistingTokenSource struct {
	source    oauth2.TokenSource
	persister Persister
	logger    Logger

	mu   sync.Mutex
	last string
}

// NewPersistingTokenSource wraps source. initial is the access token already persisted.
func NewPersistingTokenSource(source oauth2.TokenSource, persister Persister, logger Logger, initial string) *PersistingTokenSource {
	return &PersistingTokenSource{
		source:    source,
		persister: persister,
		logger:    logger,
		last:      initial,
	}
}

// Token implements oauth2.TokenSource.
func (s *PersistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if token.AccessToken == s.last {
		return token, nil
	}

	s.last = token.AccessToken

	if err := s.persister.SaveToken(token); err != nil && s.logger != nil {
		s.logger.Warn("failed to persist refreshed token", map[string]interface{}{"error": err.Error()})
	}

	return token, nil
}
