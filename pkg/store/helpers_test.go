package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/fetchx/internal/testserver"
	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
	"github.com/fivetwenty-io/fetchx/pkg/repository"
)

const initialUsers = 15

func newRepository(t *testing.T, path string) (*repository.Repository, *testserver.Server) {
	t.Helper()

	server := testserver.New()
	t.Cleanup(server.Close)
	server.Seed(initialUsers)

	service, err := fetchx.NewService(&fetchx.Config{BaseURL: server.APIURL()})
	require.NoError(t, err)

	repo, err := repository.New(service, path)
	require.NoError(t, err)

	return repo, server
}

type readerFunc func(ctx context.Context, query repository.ReadQuery) (*fetchx.Response, error)

func (f readerFunc) Read(ctx context.Context, query repository.ReadQuery) (*fetchx.Response, error) {
	return f(ctx, query)
}

func staticReader(body string) readerFunc {
	return func(context.Context, repository.ReadQuery) (*fetchx.Response, error) {
		return &fetchx.Response{StatusCode: 200, Body: []byte(body)}, nil
	}
}

type logEntry struct {
	level  string
	msg    string
	fields map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) record(level, msg string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, logEntry{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) Debug(msg string, fields map[string]interface{}) {
	l.record("debug", msg, fields)
}

func (l *recordingLogger) Info(msg string, fields map[string]interface{}) {
	l.record("info", msg, fields)
}

func (l *recordingLogger) Warn(msg string, fields map[string]interface{}) {
	l.record("warn", msg, fields)
}

func (l *recordingLogger) Error(msg string, fields map[string]interface{}) {
	l.record("error", msg, fields)
}

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []string

	for _, entry := range l.entries {
		if entry.level == level {
			out = append(out, entry.msg)
		}
	}

	return out
}
