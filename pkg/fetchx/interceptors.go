package fetchx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// Handler executes a request and returns its response. The last handler in a chain is
// the terminal network call.
type Handler func(ctx context.Context, req *Request) (*Response, error)

// Interceptor wraps the request/response lifecycle. It must call next to continue the
// chain, or may return its own response without calling next to short-circuit every
// later interceptor and the network call.
type Interceptor func(ctx context.Context, req *Request, next Handler) (*Response, error)

// Chain folds interceptors around terminal. The first interceptor is the outermost,
// so its code before next runs first and its code after next runs last. The returned
// handler holds no mutable state and can be shared across concurrent calls.
func Chain(terminal Handler, interceptors ...Interceptor) Handler {
	handler := terminal

	for i := len(interceptors) - 1; i >= 0; i-- {
		handler = wrap(interceptors[i], handler)
	}

	return handler
}

func wrap(interceptor Interceptor, next Handler) Handler {
	return func(ctx context.Context, req *Request) (*Response, error) {
		return interceptor(ctx, req, next)
	}
}

// registry keeps interceptors keyed by id in registration order. Re-registering an id
// replaces the function in place.
type registry struct {
	mu    sync.RWMutex
	order []string
	funcs map[string]Interceptor
}

func newRegistry() *registry {
	return &registry{funcs: make(map[string]Interceptor)}
}

func (r *registry) set(id string, fn Interceptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[id]; !exists {
		r.order = append(r.order, id)
	}

	r.funcs[id] = fn
}

func (r *registry) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.funcs[id]; !exists {
		return false
	}

	delete(r.funcs, id)

	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)

			break
		}
	}

	return true
}

func (r *registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// snapshot returns the interceptors in order, detached from later registrations.
func (r *registry) snapshot() []Interceptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Interceptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.funcs[id])
	}

	return out
}

// Common Interceptors

// HeaderInterceptor adds custom headers to requests.
func HeaderInterceptor(headers map[string]string) Interceptor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		return next(ctx, req)
	}
}

// AuthenticationInterceptor adds a bearer token obtained from tokenProvider.
func AuthenticationInterceptor(tokenProvider func(context.Context) (string, error)) Interceptor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		token, err := tokenProvider(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenProviderFailed, err)
		}

		req.Header.Set(constants.HeaderAuthorization, "Bearer "+token)

		return next(ctx, req)
	}
}

// OAuth2Interceptor authorizes requests with tokens from an oauth2.TokenSource.
// Wrap the source with oauth2.ReuseTokenSource to avoid a token exchange per request.
func OAuth2Interceptor(source oauth2.TokenSource) Interceptor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		token, err := source.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenProviderFailed, err)
		}

		req.Header.Set(constants.HeaderAuthorization, token.Type()+" "+token.AccessToken)

		return next(ctx, req)
	}
}

// RequestIDInterceptor tags each request with a fresh X-Request-ID unless one is set.
func RequestIDInterceptor() Interceptor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		if req.Header.Get(constants.HeaderRequestID) == "" {
			req.Header.Set(constants.HeaderRequestID, uuid.NewString())
		}

		return next(ctx, req)
	}
}

// TimeoutInterceptor bounds everything after it in the chain by timeout.
func TimeoutInterceptor(timeout time.Duration) Interceptor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return next(ctx, req)
	}
}

// LoggingInterceptor logs requests and responses.
func LoggingInterceptor(logger Logger) Interceptor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		fields := map[string]interface{}{
			"method": req.Method,
			"path":   req.Path,
		}

		logger.Debug("API Request", fields)

		start := time.Now()
		resp, err := next(ctx, req)

		fields["duration"] = time.Since(start).String()

		if resp != nil {
			fields["status_code"] = resp.StatusCode
		}

		if err != nil {
			fields["error"] = err.Error()
			logger.Error("API Response Error", fields)
		} else {
			logger.Debug("API Response", fields)
		}

		return resp, err
	}
}

// Metrics holds per-endpoint call statistics.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsCollector collects API metrics.
type MetricsCollector struct {
	mu       sync.Mutex
	metrics  map[string]*Metrics
	onChange func(endpoint string, metrics Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[string]*Metrics),
	}
}

// SetOnChange sets a callback for when metrics change.
func (m *MetricsCollector) SetOnChange(fn func(endpoint string, metrics Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onChange = fn
}

// GetMetrics returns a copy of the metrics for an endpoint ("GET /users").
func (m *MetricsCollector) GetMetrics(endpoint string) (Metrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	metrics, ok := m.metrics[endpoint]
	if !ok {
		return Metrics{}, false
	}

	return *metrics, true
}

func (m *MetricsCollector) record(endpoint string, latency time.Duration, failed bool) {
	m.mu.Lock()

	metrics, ok := m.metrics[endpoint]
	if !ok {
		metrics = &Metrics{}
		m.metrics[endpoint] = metrics
	}

	metrics.TotalRequests++
	metrics.LastRequestTime = time.Now()
	metrics.TotalLatency += latency
	metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)

	if failed {
		metrics.TotalErrors++
	}

	snapshot := *metrics
	onChange := m.onChange

	m.mu.Unlock()

	if onChange != nil {
		onChange(endpoint, snapshot)
	}
}

// MetricsInterceptor records latency and failures per endpoint into collector.
func MetricsInterceptor(collector *MetricsCollector) Interceptor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		endpoint := fmt.Sprintf("%s %s", req.Method, req.Path)
		start := time.Now()

		resp, err := next(ctx, req)

		collector.record(endpoint, time.Since(start), err != nil)

		return resp, err
	}
}
