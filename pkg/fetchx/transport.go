package fetchx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// Transport performs the terminal network request of the pipeline. *http.Client
// satisfies it.
type Transport interface {
	Do(req *http.Request) (*http.Response, error)
}

// TransportConfig configures the default network transport.
type TransportConfig struct {
	// Timeout bounds a single attempt. Zero uses constants.DefaultHTTPTimeout.
	Timeout time.Duration
	// RetryMax is the number of extra attempts on connection errors. Status codes never
	// trigger a retry; they are always surfaced to the pipeline.
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Logger       Logger
}

// RetryableTransport is the default Transport, backed by go-retryablehttp.
type RetryableTransport struct {
	client *retryablehttp.Client
}

// NewRetryableTransport creates the default transport.
func NewRetryableTransport(config *TransportConfig) *RetryableTransport {
	if config == nil {
		config = &TransportConfig{}
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Timeout: timeout}
	client.RetryMax = config.RetryMax
	client.RetryWaitMin = constants.DefaultRetryWaitMin
	client.RetryWaitMax = constants.DefaultRetryWaitMax
	client.CheckRetry = connectionErrorsOnly
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if config.RetryWaitMin > 0 {
		client.RetryWaitMin = config.RetryWaitMin
	}

	if config.RetryWaitMax > 0 {
		client.RetryWaitMax = config.RetryWaitMax
	}

	if config.Logger != nil {
		client.Logger = &leveledLogger{logger: config.Logger}
	} else {
		client.Logger = nil
	}

	return &RetryableTransport{client: client}
}

// Do implements Transport.
func (t *RetryableTransport) Do(req *http.Request) (*http.Response, error) {
	retryable, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, fmt.Errorf("preparing request: %w", err)
	}

	resp, err := t.client.Do(retryable)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}

	return resp, nil
}

func connectionErrorsOnly(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	if err == nil {
		return false, nil
	}

	var urlErr interface{ Timeout() bool }
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return false, nil
	}

	return true, nil
}
