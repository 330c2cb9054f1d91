package fetchx

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
)

// CredentialsMode controls whether cookies travel with a request.
type CredentialsMode string

const (
	// CredentialsOmit never attaches or stores cookies.
	CredentialsOmit CredentialsMode = "omit"

	// CredentialsSameOrigin attaches cookies only to requests targeting the base URL's host.
	CredentialsSameOrigin CredentialsMode = "same-origin"

	// CredentialsInclude attaches cookies to every request.
	CredentialsInclude CredentialsMode = "include"
)

// Valid reports whether the mode is one of the known modes. The zero value is valid and
// behaves like CredentialsOmit.
func (m CredentialsMode) Valid() bool {
	switch m {
	case "", CredentialsOmit, CredentialsSameOrigin, CredentialsInclude:
		return true
	default:
		return false
	}
}

// HeaderSource is anything that can contribute headers to a request.
type HeaderSource interface {
	ApplyHeaders(h http.Header)
}

// Header is a header collection. Values replace any existing values for the same key.
type Header http.Header

// ApplyHeaders implements HeaderSource.
func (s Header) ApplyHeaders(h http.Header) {
	for key, values := range s {
		h.Del(key)

		for _, value := range values {
			h.Add(key, value)
		}
	}
}

// HeaderMap is a plain name to value mapping.
type HeaderMap map[string]string

// ApplyHeaders implements HeaderSource.
func (s HeaderMap) ApplyHeaders(h http.Header) {
	for key, value := range s {
		h.Set(key, value)
	}
}

// HeaderPairs is a list of name/value pairs applied in order; a later pair wins.
type HeaderPairs [][2]string

// ApplyHeaders implements HeaderSource.
func (s HeaderPairs) ApplyHeaders(h http.Header) {
	for _, pair := range s {
		h.Set(pair[0], pair[1])
	}
}

// ParamSource is anything that can contribute query parameters to a request.
type ParamSource interface {
	ApplyParams(v url.Values)
}

// Query is a query-string style container. Each key replaces the existing values for it.
type Query url.Values

// ApplyParams implements ParamSource.
func (q Query) ApplyParams(v url.Values) {
	for key, values := range q {
		v[key] = append([]string(nil), values...)
	}
}

// ParamMap is a plain key/value mapping. Slice values become repeated keys; anything else
// is formatted with fmt.Sprint.
type ParamMap map[string]any

// ApplyParams implements ParamSource.
func (m ParamMap) ApplyParams(v url.Values) {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		v[key] = paramValues(m[key])
	}
}

func paramValues(value any) []string {
	switch typed := value.(type) {
	case string:
		return []string{typed}
	case []string:
		return append([]string(nil), typed...)
	case []any:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, fmt.Sprint(item))
		}

		return out
	case []int:
		out := make([]string, 0, len(typed))
		for _, item := range typed {
			out = append(out, fmt.Sprint(item))
		}

		return out
	default:
		return []string{fmt.Sprint(value)}
	}
}

// RequestConfig describes a single call to Service.Fetch.
type RequestConfig struct {
	// Method defaults to GET.
	Method string
	// Headers override the service default headers.
	Headers HeaderSource
	// Params are merged into the URL query; explicit keys win over those already in the path.
	Params ParamSource
	// Body is serialized to JSON when it is a map or struct. Strings, byte slices,
	// json.RawMessage and io.Reader values are sent unchanged.
	Body any
	// Credentials overrides the service credentials mode for this call.
	Credentials CredentialsMode
}

// Request is the effective request handed to interceptors. Interceptors may mutate it
// before calling the next handler.
type Request struct {
	Path        string
	Method      string
	URL         *url.URL
	Header      http.Header
	Body        []byte
	Stream      io.Reader
	Credentials CredentialsMode
	Metadata    map[string]interface{}
}

// Clone returns a deep copy of the request. A Stream body is shared, not copied.
func (r *Request) Clone() *Request {
	clone := *r

	if r.URL != nil {
		u := *r.URL
		clone.URL = &u
	}

	clone.Header = r.Header.Clone()

	if r.Body != nil {
		clone.Body = append([]byte(nil), r.Body...)
	}

	if r.Metadata != nil {
		clone.Metadata = make(map[string]interface{}, len(r.Metadata))
		for key, value := range r.Metadata {
			clone.Metadata[key] = value
		}
	}

	return &clone
}

// Response is the raw outcome of a request. Body holds the full payload; Data is left
// for callers that parse the body (see repository.Repository).
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Data       any
	Request    *Request
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Decode parses the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return ErrEmptyBody
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}

	return nil
}
