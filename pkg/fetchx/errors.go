package fetchx

import (
	"errors"
	"fmt"
	"net/http"
)

// Static errors for err113 compliance.
var (
	ErrRequestFailed       = errors.New("request failed")
	ErrUnsupportedBody     = errors.New("unsupported request body type")
	ErrEmptyBody           = errors.New("response body is empty")
	ErrInvalidCredentials  = errors.New("invalid credentials mode")
	ErrInvalidBaseURL      = errors.New("invalid base URL")
	ErrInterceptorIDEmpty  = errors.New("interceptor id is required")
	ErrNilInterceptor      = errors.New("interceptor function is nil")
	ErrTokenProviderFailed = errors.New("failed to get authentication token")
)

// RequestFailedError is returned when the terminal network call completes with a status
// outside the 2xx range. It carries the effective request and the raw response.
type RequestFailedError struct {
	Request  *Request
	Response *Response
}

// Error implements the error interface.
func (e *RequestFailedError) Error() string {
	method, target := "", ""
	if e.Request != nil {
		method = e.Request.Method
		if e.Request.URL != nil {
			target = e.Request.URL.Path
		}
	}

	status := "no response"
	if e.Response != nil {
		status = e.Response.Status
		if status == "" {
			status = fmt.Sprintf("%d %s", e.Response.StatusCode, http.StatusText(e.Response.StatusCode))
		}
	}

	return fmt.Sprintf("%s: %s %s: %s", ErrRequestFailed, method, target, status)
}

// Is lets errors.Is match ErrRequestFailed.
func (e *RequestFailedError) Is(target error) bool {
	return target == ErrRequestFailed
}

// StatusCode returns the response status code, or 0 when no response is attached.
func (e *RequestFailedError) StatusCode() int {
	if e.Response == nil {
		return 0
	}

	return e.Response.StatusCode
}

// AsRequestFailed unwraps err into a *RequestFailedError.
func AsRequestFailed(err error) (*RequestFailedError, bool) {
	failed := &RequestFailedError{}
	if errors.As(err, &failed) {
		return failed, true
	}

	return nil, false
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not a request failure.
func StatusCode(err error) int {
	failed, ok := AsRequestFailed(err)
	if !ok {
		return 0
	}

	return failed.StatusCode()
}

// IsNotFound checks if the error is a 404 request failure.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized checks if the error is a 401 request failure.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsForbidden checks if the error is a 403 request failure.
func IsForbidden(err error) bool {
	return StatusCode(err) == http.StatusForbidden
}

// IsServerError checks if the error is a 5xx request failure.
func IsServerError(err error) bool {
	code := StatusCode(err)

	return code >= http.StatusInternalServerError && code < 600
}
