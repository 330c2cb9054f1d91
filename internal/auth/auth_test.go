package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/fivetwenty-io/fetchx/internal/auth"
	"github.com/fivetwenty-io/fetchx/internal/constants"
)

func tokenServer(t *testing.T, check func(r *http.Request), accessToken string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		require.NoError(t, r.ParseForm())
		check(r)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  accessToken,
			"refresh_token": "refresh-token",
			"token_type":    "bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(server.Close)

	return server
}

func TestConfig_Grant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config auth.Config
		want   auth.Grant
	}{
		{name: "none", config: auth.Config{}, want: auth.GrantNone},
		{name: "static wins", config: auth.Config{Token: "t", ClientID: "id", Username: "u"}, want: auth.GrantStatic},
		{name: "refresh", config: auth.Config{Token: "t", RefreshToken: "r", TokenURL: "http://localhost/token"}, want: auth.GrantRefreshToken},
		{name: "refresh without token URL is static", config: auth.Config{Token: "t", RefreshToken: "r"}, want: auth.GrantStatic},
		{name: "password", config: auth.Config{ClientID: "id", Username: "u"}, want: auth.GrantPassword},
		{name: "client credentials", config: auth.Config{ClientID: "id"}, want: auth.GrantClientCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, tt.config.Grant())
		})
	}
}

func TestNewTokenSource_Static(t *testing.T) {
	t.Parallel()

	source, err := auth.NewTokenSource(context.Background(), &auth.Config{Token: "existing-token"})
	require.NoError(t, err)

	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "existing-token", token.AccessToken)
	assert.Equal(t, "Bearer", token.Type())
}

func TestNewTokenSource_ClientCredentials(t *testing.T) {
	t.Parallel()

	var exchanges atomic.Int32

	server := tokenServer(t, func(r *http.Request) {
		exchanges.Add(1)

		username, password, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", username)
		assert.Equal(t, "client-secret", password)
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
	}, "client-token")

	source, err := auth.NewTokenSource(context.Background(), &auth.Config{
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	require.NoError(t, err)

	for range 3 {
		token, err := source.Token()
		require.NoError(t, err)
		assert.Equal(t, "client-token", token.AccessToken)
	}

	assert.Equal(t, int32(1), exchanges.Load())
}

func TestNewTokenSource_Password(t *testing.T) {
	t.Parallel()

	server := tokenServer(t, func(r *http.Request) {
		assert.Equal(t, "password", r.Form.Get("grant_type"))
		assert.Equal(t, "testuser", r.Form.Get("username"))
		assert.Equal(t, "testpass", r.Form.Get("password"))
	}, "password-token")

	source, err := auth.NewTokenSource(context.Background(), &auth.Config{
		TokenURL: server.URL + "/oauth/token",
		ClientID: "cli",
		Username: "testuser",
		Password: "testpass",
	})
	require.NoError(t, err)

	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "password-token", token.AccessToken)
	assert.Equal(t, "refresh-token", token.RefreshToken)
}

func TestNewTokenSource_RefreshToken(t *testing.T) {
	t.Parallel()

	var exchanges atomic.Int32

	server := tokenServer(t, func(r *http.Request) {
		exchanges.Add(1)

		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))
	}, "renewed-token")

	t.Run("valid token is used as is", func(t *testing.T) {
		source, err := auth.NewTokenSource(context.Background(), &auth.Config{
			Token:        "still-valid",
			RefreshToken: "old-refresh",
			Expiry:       time.Now().Add(time.Hour),
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "cli",
		})
		require.NoError(t, err)

		token, err := source.Token()
		require.NoError(t, err)
		assert.Equal(t, "still-valid", token.AccessToken)
		assert.Equal(t, int32(0), exchanges.Load())
	})

	t.Run("expired token is refreshed", func(t *testing.T) {
		source, err := auth.NewTokenSource(context.Background(), &auth.Config{
			Token:        "expired",
			RefreshToken: "old-refresh",
			Expiry:       time.Now().Add(-time.Minute),
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "cli",
		})
		require.NoError(t, err)

		token, err := source.Token()
		require.NoError(t, err)
		assert.Equal(t, "renewed-token", token.AccessToken)
		assert.Equal(t, int32(1), exchanges.Load())
	})
}

func TestNewTokenSource_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *auth.Config
		wantErr error
	}{
		{name: "nil", config: nil, wantErr: auth.ErrNoCredentials},
		{name: "empty", config: &auth.Config{}, wantErr: auth.ErrNoCredentials},
		{name: "no token URL", config: &auth.Config{ClientID: "id", ClientSecret: "s"}, wantErr: constants.ErrTokenURLRequired},
		{name: "no secret", config: &auth.Config{TokenURL: "http://localhost/token", ClientID: "id"}, wantErr: constants.ErrIncompleteOAuth2},
		{name: "no password", config: &auth.Config{TokenURL: "http://localhost/token", Username: "u"}, wantErr: constants.ErrIncompletePassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := auth.NewTokenSource(context.Background(), tt.config)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

type memoryPersister struct {
	saved []string
	err   error
}

func (p *memoryPersister) SaveToken(token *oauth2.Token) error {
	p.saved = append(p.saved, token.AccessToken)

	return p.err
}

type sequenceSource struct {
	tokens []string
	i      int
}

func (s *sequenceSource) Token() (*oauth2.Token, error) {
	token := s.tokens[min(s.i, len(s.tokens)-1)]
	s.i++

	return &oauth2.Token{AccessToken: token}, nil
}

type warnLogger struct {
	warnings []string
}

func (l *warnLogger) Warn(msg string, _ map[string]interface{}) {
	l.warnings = append(l.warnings, msg)
}

func TestPersistingTokenSource(t *testing.T) {
	t.Parallel()

	persister := &memoryPersister{}
	source := auth.NewPersistingTokenSource(&sequenceSource{tokens: []string{"a", "a", "b", "b"}}, persister, nil, "a")

	for range 4 {
		_, err := source.Token()
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"b"}, persister.saved)
}

func TestPersistingTokenSource_FailureIsLogged(t *testing.T) {
	t.Parallel()

	persister := &memoryPersister{err: errors.New("read-only file system")}
	logger := &warnLogger{}
	source := auth.NewPersistingTokenSource(&sequenceSource{tokens: []string{"new"}}, persister, logger, "")

	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "new", token.AccessToken)
	assert.Equal(t, []string{"failed to persist refreshed token"}, logger.warnings)
}
