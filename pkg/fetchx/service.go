package fetchx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// Config represents the base configuration of a Service.
type Config struct {
	// BaseURL is prefixed to every request path (e.g., "https://api.example.com/v1").
	BaseURL string
	// Headers are the default headers sent with every request. Keys are unique;
	// the last write wins.
	Headers map[string]string
	// Credentials controls cookie handling. Defaults to CredentialsOmit.
	Credentials CredentialsMode
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Debug enables request/response logging at debug level.
	Debug bool
	// Logger is optional; nothing is logged when it is nil.
	Logger Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTransport replaces the default retryable transport.
func WithTransport(transport Transport) Option {
	return func(s *Service) { s.transport = transport }
}

// WithLogger sets the logger used by the service.
func WithLogger(logger Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCookieJar replaces the default public-suffix aware jar used when credentials are sent.
func WithCookieJar(jar http.CookieJar) Option {
	return func(s *Service) { s.jar = jar }
}

// Service is the HTTP pipeline: base configuration, default headers and an ordered
// chain of interceptors around the terminal network call.
type Service struct {
	baseURL     *url.URL
	credentials CredentialsMode
	debug       bool

	headerMu sync.RWMutex
	headers  http.Header

	interceptors *registry
	transport    Transport
	jar          http.CookieJar
	logger       Logger
}

// NewService creates a pipeline service.
func NewService(config *Config, opts ...Option) (*Service, error) {
	if config == nil || config.BaseURL == "" {
		return nil, constants.ErrBaseURLRequired
	}

	baseURL, err := url.Parse(strings.TrimSuffix(config.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	if !config.Credentials.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCredentials, config.Credentials)
	}

	service := &Service{
		baseURL:      baseURL,
		credentials:  config.Credentials,
		debug:        config.Debug,
		headers:      make(http.Header),
		interceptors: newRegistry(),
		logger:       config.Logger,
	}

	service.headers.Set(constants.HeaderAccept, constants.DefaultAccept)
	service.headers.Set(constants.HeaderUserAgent, constants.DefaultUserAgent)

	if config.UserAgent != "" {
		service.headers.Set(constants.HeaderUserAgent, config.UserAgent)
	}

	for key, value := range config.Headers {
		service.headers.Set(key, value)
	}

	for _, opt := range opts {
		opt(service)
	}

	if service.logger == nil {
		service.logger = NopLogger{}
	}

	if service.transport == nil {
		transportConfig := &TransportConfig{}
		if config.Debug {
			transportConfig.Logger = service.logger
		}

		service.transport = NewRetryableTransport(transportConfig)
	}

	if service.jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}

		service.jar = jar
	}

	return service, nil
}

// BaseURL returns the configured base URL.
func (s *Service) BaseURL() string {
	return s.baseURL.String()
}

// SetHeader sets a default header for all subsequent requests.
func (s *Service) SetHeader(name, value string) {
	s.headerMu.Lock()
	defer s.headerMu.Unlock()

	s.headers.Set(name, value)
}

// Headers returns a copy of the default headers.
func (s *Service) Headers() http.Header {
	s.headerMu.RLock()
	defer s.headerMu.RUnlock()

	return s.headers.Clone()
}

// SetInterceptor registers fn under id. A new id is appended to the end of the chain;
// an existing id keeps its position and only its function is replaced.
func (s *Service) SetInterceptor(id string, fn Interceptor) error {
	if id == "" {
		return ErrInterceptorIDEmpty
	}

	if fn == nil {
		return ErrNilInterceptor
	}

	s.interceptors.set(id, fn)

	return nil
}

// RemoveInterceptor unregisters id. It reports whether id was registered.
func (s *Service) RemoveInterceptor(id string) bool {
	return s.interceptors.remove(id)
}

// Interceptors returns the registered ids in invocation order.
func (s *Service) Interceptors() []string {
	return s.interceptors.ids()
}

// Fetch runs a request for path through the interceptor chain. A non-2xx response
// fails with *RequestFailedError.
func (s *Service) Fetch(ctx context.Context, path string, config *RequestConfig) (*Response, error) {
	if config == nil {
		config = &RequestConfig{}
	}

	req, err := s.newRequest(path, config)
	if err != nil {
		return nil, err
	}

	handler := Chain(s.terminal, s.interceptors.snapshot()...)

	return handler(ctx, req)
}

// Get is a shorthand for Fetch with GET.
func (s *Service) Get(ctx context.Context, path string, params ParamSource) (*Response, error) {
	return s.Fetch(ctx, path, &RequestConfig{Method: http.MethodGet, Params: params})
}

// Post is a shorthand for Fetch with POST.
func (s *Service) Post(ctx context.Context, path string, body any) (*Response, error) {
	return s.Fetch(ctx, path, &RequestConfig{Method: http.MethodPost, Body: body})
}

// Put is a shorthand for Fetch with PUT.
func (s *Service) Put(ctx context.Context, path string, body any) (*Response, error) {
	return s.Fetch(ctx, path, &RequestConfig{Method: http.MethodPut, Body: body})
}

// Patch is a shorthand for Fetch with PATCH.
func (s *Service) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return s.Fetch(ctx, path, &RequestConfig{Method: http.MethodPatch, Body: body})
}

// Delete is a shorthand for Fetch with DELETE.
func (s *Service) Delete(ctx context.Context, path string) (*Response, error) {
	return s.Fetch(ctx, path, &RequestConfig{Method: http.MethodDelete})
}

// newRequest builds the effective request: URL and query, merged headers, serialized body.
func (s *Service) newRequest(path string, config *RequestConfig) (*Request, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	if config.Params != nil {
		query := target.Query()
		config.Params.ApplyParams(query)
		target.RawQuery = query.Encode()
	}

	method := strings.ToUpper(config.Method)
	if method == "" {
		method = http.MethodGet
	}

	credentials := config.Credentials
	if credentials == "" {
		credentials = s.credentials
	}

	if !credentials.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCredentials, credentials)
	}

	req := &Request{
		Path:        path,
		Method:      method,
		URL:         target,
		Header:      s.Headers(),
		Credentials: credentials,
		Metadata:    make(map[string]interface{}),
	}

	if config.Headers != nil {
		config.Headers.ApplyHeaders(req.Header)
	}

	if err := encodeBody(req, config.Body); err != nil {
		return nil, err
	}

	return req, nil
}

func (s *Service) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parsing path %q: %w", path, err)
	}

	target := *s.baseURL
	if ref.IsAbs() {
		target = *ref
	} else {
		target.Path = s.baseURL.Path
		if ref.Path != "" {
			target.Path += "/" + strings.TrimPrefix(ref.Path, "/")
		}

		target.RawPath = ""
		target.RawQuery = ref.RawQuery
	}

	return &target, nil
}

// encodeBody serializes plain data objects to JSON and passes pre-serialized payloads
// through untouched.
func encodeBody(req *Request, body any) error {
	switch typed := body.(type) {
	case nil:
		return nil
	case string:
		req.Body = []byte(typed)

		return nil
	case []byte:
		req.Body = typed

		return nil
	case json.RawMessage:
		req.Body = typed

		return nil
	case io.Reader:
		req.Stream = typed

		return nil
	}

	if isNilObject(body) {
		return nil
	}

	if !isPlainObject(body) {
		return fmt.Errorf("%w: %T", ErrUnsupportedBody, body)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}

	req.Body = data
	req.Header.Set(constants.HeaderContentType, constants.MediaTypeJSON)

	return nil
}

// isPlainObject reports whether v is a non-nil map, struct or pointer to one of those.
// isNilObject reports whether v is a nil map or a nil pointer, which send no body.
func isNilObject(v any) bool {
	value := reflect.ValueOf(v)

	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return true
		}

		value = value.Elem()
	}

	return value.Kind() == reflect.Map && value.IsNil()
}

func isPlainObject(v any) bool {
	value := reflect.ValueOf(v)

	for value.Kind() == reflect.Pointer || value.Kind() == reflect.Interface {
		if value.IsNil() {
			return false
		}

		value = value.Elem()
	}

	switch value.Kind() {
	case reflect.Map:
		return !value.IsNil()
	case reflect.Struct:
		return true
	default:
		return false
	}
}

// terminal performs the network request and normalizes the response.
func (s *Service) terminal(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Stream != nil {
		body = req.Stream
	} else if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header = req.Header.Clone()

	sendCookies := s.sendsCookies(req)
	if sendCookies {
		for _, cookie := range s.jar.Cookies(req.URL) {
			httpReq.AddCookie(cookie)
		}
	}

	if s.debug {
		s.logger.Debug("HTTP Request", map[string]interface{}{
			"method": req.Method,
			"url":    req.URL.String(),
		})
	}

	httpResp, err := s.transport.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if sendCookies {
		s.jar.SetCookies(req.URL, httpResp.Cookies())
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Header:     httpResp.Header,
		Body:       data,
		Request:    req,
	}

	if s.debug {
		s.logger.Debug("HTTP Response", map[string]interface{}{
			"method":      req.Method,
			"url":         req.URL.String(),
			"status_code": resp.StatusCode,
			"bytes":       len(data),
		})
	}

	if !resp.OK() {
		return nil, &RequestFailedError{Request: req, Response: resp}
	}

	return resp, nil
}

func (s *Service) sendsCookies(req *Request) bool {
	if s.jar == nil {
		return false
	}

	switch req.Credentials {
	case CredentialsInclude:
		return true
	case CredentialsSameOrigin:
		return strings.EqualFold(req.URL.Host, s.baseURL.Host) && req.URL.Scheme == s.baseURL.Scheme
	default:
		return false
	}
}
