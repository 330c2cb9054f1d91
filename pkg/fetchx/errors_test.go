package fetchx_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
)

func requestFailed(status int) error {
	return &fetchx.RequestFailedError{
		Request:  &fetchx.Request{Method: http.MethodGet, Path: "/users"},
		Response: &fetchx.Response{StatusCode: status},
	}
}

func TestRequestFailedError_Helpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		err          error
		notFound     bool
		unauthorized bool
		forbidden    bool
		serverError  bool
		status       int
	}{
		{name: "not found", err: requestFailed(http.StatusNotFound), notFound: true, status: 404},
		{name: "unauthorized", err: requestFailed(http.StatusUnauthorized), unauthorized: true, status: 401},
		{name: "forbidden", err: requestFailed(http.StatusForbidden), forbidden: true, status: 403},
		{name: "server error", err: requestFailed(http.StatusBadGateway), serverError: true, status: 502},
		{name: "wrapped", err: fmt.Errorf("loading users: %w", requestFailed(http.StatusNotFound)), notFound: true, status: 404},
		{name: "other error", err: errors.New("boom")},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.notFound, fetchx.IsNotFound(tt.err))
			assert.Equal(t, tt.unauthorized, fetchx.IsUnauthorized(tt.err))
			assert.Equal(t, tt.forbidden, fetchx.IsForbidden(tt.err))
			assert.Equal(t, tt.serverError, fetchx.IsServerError(tt.err))
			assert.Equal(t, tt.status, fetchx.StatusCode(tt.err))
			assert.Equal(t, tt.status != 0, errors.Is(tt.err, fetchx.ErrRequestFailed))
		})
	}
}

func TestRequestFailedError_Message(t *testing.T) {
	t.Parallel()

	err := requestFailed(http.StatusNotFound)
	assert.Equal(t, "request failed: GET : 404 Not Found", err.Error())

	empty := &fetchx.RequestFailedError{}
	assert.Equal(t, "request failed:  : no response", empty.Error())
	assert.Zero(t, empty.StatusCode())
}
