//go:build integration

package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/fetchx/internal/testserver"
	"github.com/fivetwenty-io/fetchx/pkg/cache"
	"github.com/fivetwenty-io/fetchx/pkg/fetchxclient"
	"github.com/fivetwenty-io/fetchx/pkg/store"
)

func newServer(t *testing.T, users int) *testserver.Server {
	t.Helper()

	server := testserver.New()
	t.Cleanup(server.Close)
	server.Seed(users)

	return server
}

// TestCLIWorkflow_CompleteUserJourney drives the CLI binary through a full resource lifecycle.
func TestCLIWorkflow_CompleteUserJourney(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingBinary(t)

	server := newServer(t, 12)
	runner := NewCommandRunner(config, t)

	// 1. Configure the API and log in with a token
	_, stderr, err := runner.Run("config", "set", "api", server.APIURL())
	require.NoError(t, err, "Failed to set api: %s", stderr)

	stdout, stderr, err := runner.RunWithInput("workflow-token\n", "login")
	require.NoError(t, err, "Failed to login: %s", stderr)
	assert.Contains(t, stdout, "Authenticated")

	stdout, stderr, err = runner.Run("get", "/me", "--output", "json")
	require.NoError(t, err, "Failed to get /me: %s", stderr)
	assert.Equal(t, "Bearer workflow-token", DecodeJSON[map[string]string](t, stdout)["token"])

	// 2. Page through the collection
	stdout, stderr, err = runner.Run("list", "/users", "--limit", "5", "--results-field", "users",
		"--total-field", "totalCount", "--output", "json")
	require.NoError(t, err, "Failed to list users: %s", stderr)
	assert.Len(t, DecodeJSON[[]testserver.User](t, stdout), 5)

	stdout, stderr, err = runner.Run("list", "/users", "--limit", "5", "--all", "--results-field", "users",
		"--total-field", "totalCount", "--output", "json")
	require.NoError(t, err, "Failed to list all users: %s", stderr)
	assert.Len(t, DecodeJSON[[]testserver.User](t, stdout), 12)

	// 3. Create, update and delete
	stdout, stderr, err = runner.Run("create", "/users", "--data", `{"name":"Workflow","email":"workflow@example.com"}`, "--output", "json")
	require.NoError(t, err, "Failed to create user: %s", stderr)

	created := DecodeJSON[testserver.User](t, stdout)
	require.NotEmpty(t, created.ID)

	stdout, stderr, err = runner.Run("patch", "/users", created.ID, "--data", `{"name":"Workflow Updated"}`, "--output", "json")
	require.NoError(t, err, "Failed to patch user: %s", stderr)
	assert.Equal(t, "Workflow Updated", DecodeJSON[testserver.User](t, stdout).Name)

	_, stderr, err = runner.Run("delete", "/users", created.ID)
	require.NoError(t, err, "Failed to delete user: %s", stderr)

	_, _, err = runner.Run("get", "/users", created.ID)
	require.Error(t, err)

	// 4. Log out
	_, stderr, err = runner.Run("logout")
	require.NoError(t, err, "Failed to logout: %s", stderr)

	stdout, _, err = runner.Run("get", "/me", "--output", "json")
	require.NoError(t, err)
	assert.Empty(t, DecodeJSON[map[string]string](t, stdout)["token"])
}

// TestLibraryWorkflow_SQLiteCacheSurvivesRestart checks that a persisted response is
// served by a second client over the same database.
func TestLibraryWorkflow_SQLiteCacheSurvivesRestart(t *testing.T) {
	server := newServer(t, 8)
	ctx := context.Background()

	cacheConfig := &cache.Config{
		Type:   cache.StoreTypeSQLite,
		SQLite: &cache.SQLiteConfig{Path: fmt.Sprintf("%s/responses.db", t.TempDir())},
	}

	options := store.ListOptions{
		Limit:           4,
		LimitField:      "limit",
		SkipField:       "skip",
		ResultsField:    "users",
		TotalCountField: "totalCount",
		CacheID:         "users",
		CacheDuration:   time.Hour,
	}

	for range 2 {
		client, err := fetchxclient.New(ctx, &fetchxclient.Options{BaseURL: server.APIURL(), Cache: cacheConfig})
		require.NoError(t, err)

		users, err := fetchxclient.NewList[testserver.User](client, "/users", options)
		require.NoError(t, err)
		require.NoError(t, users.Fetch(ctx))
		assert.Len(t, users.List(), 4)
		assert.Equal(t, 8, users.TotalCount())

		require.NoError(t, client.Close())
	}

	assert.Equal(t, 1, server.Requests("GET /api/users"))
}

// TestLibraryWorkflow_NATSCacheIsShared checks that two clients share responses through
// a JetStream KeyValue bucket.
func TestLibraryWorkflow_NATSCacheIsShared(t *testing.T) {
	config := LoadTestConfig()
	config.SkipIfMissingNATS(t)

	server := newServer(t, 6)
	ctx := context.Background()

	cacheConfig := &cache.Config{
		Type: cache.StoreTypeNATS,
		NATS: &cache.NATSKVConfig{
			URL:    config.NATSURL,
			Bucket: fmt.Sprintf("fetchx_it_%d", time.Now().UnixNano()),
		},
	}

	options := store.ListOptions{ResultsField: "users", CacheID: "users", CacheDuration: time.Minute}

	clients := make([]*fetchxclient.Client, 2)
	for i := range clients {
		client, err := fetchxclient.New(ctx, &fetchxclient.Options{BaseURL: server.APIURL(), Cache: cacheConfig})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })

		clients[i] = client
	}

	t.Cleanup(func() { _ = clients[0].Cache().Clear(context.Background()) })

	for _, client := range clients {
		users, err := fetchxclient.NewList[testserver.User](client, "/users", options)
		require.NoError(t, err)
		require.NoError(t, users.Fetch(ctx))
		assert.Len(t, users.List(), 6)
	}

	assert.Equal(t, 1, server.Requests("GET /api/users"))
}
