package fetchx_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/fetchx/internal/testserver"
	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
)

// MockLogger for testing.
type MockLogger struct {
	mu   sync.Mutex
	logs []map[string]interface{}
}

func (l *MockLogger) log(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logs = append(l.logs, map[string]interface{}{"level": level, "msg": msg, "fields": fields})
}

func (l *MockLogger) Debug(msg string, fields map[string]interface{}) { l.log("debug", msg, fields) }
func (l *MockLogger) Info(msg string, fields map[string]interface{})  { l.log("info", msg, fields) }
func (l *MockLogger) Warn(msg string, fields map[string]interface{})  { l.log("warn", msg, fields) }
func (l *MockLogger) Error(msg string, fields map[string]interface{}) { l.log("error", msg, fields) }

func (l *MockLogger) messages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]string, 0, len(l.logs))
	for _, entry := range l.logs {
		out = append(out, entry["msg"].(string))
	}

	return out
}

func newService(t *testing.T, config *fetchx.Config, opts ...fetchx.Option) (*fetchx.Service, *testserver.Server) {
	t.Helper()

	server := testserver.New()
	t.Cleanup(server.Close)

	if config == nil {
		config = &fetchx.Config{}
	}

	config.BaseURL = server.APIURL()

	service, err := fetchx.NewService(config, opts...)
	require.NoError(t, err)

	return service, server
}

func echo(t *testing.T, service *fetchx.Service, config *fetchx.RequestConfig) testserver.Echo {
	t.Helper()

	resp, err := service.Fetch(context.Background(), "/echo", config)
	require.NoError(t, err)

	var out testserver.Echo
	require.NoError(t, json.Unmarshal(resp.Body, &out))

	return out
}
