package fetchx

import (
	"net/url"
	"strings"
)

// Param is a single key/value pair in a Params set.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered multi-valued parameter set. Keys may repeat, which is how
// array-valued filters are expressed. The order of insertion is kept, so Encode is
// deterministic and can serve as a cache fingerprint.
type Params []Param

// NewParams builds a Params set from alternating key/value strings.
func NewParams(kv ...string) Params {
	params := make(Params, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		params = append(params, Param{Key: kv[i], Value: kv[i+1]})
	}

	return params
}

// Has reports whether key is present.
func (p Params) Has(key string) bool {
	for _, param := range p {
		if param.Key == key {
			return true
		}
	}

	return false
}

// Get returns the first value for key.
func (p Params) Get(key string) string {
	for _, param := range p {
		if param.Key == key {
			return param.Value
		}
	}

	return ""
}

// Values returns every value stored for key in insertion order.
func (p Params) Values(key string) []string {
	var values []string

	for _, param := range p {
		if param.Key == key {
			values = append(values, param.Value)
		}
	}

	return values
}

// Add appends a pair, keeping any existing values for key.
func (p Params) Add(key, value string) Params {
	return append(p, Param{Key: key, Value: value})
}

// Set replaces every value for key with value. The pair keeps the position of the first
// occurrence, or is appended if key was absent.
func (p Params) Set(key, value string) Params {
	out := make(Params, 0, len(p)+1)
	replaced := false

	for _, param := range p {
		if param.Key != key {
			out = append(out, param)

			continue
		}

		if !replaced {
			out = append(out, Param{Key: key, Value: value})
			replaced = true
		}
	}

	if !replaced {
		out = append(out, Param{Key: key, Value: value})
	}

	return out
}

// Del removes every value for key.
func (p Params) Del(key string) Params {
	out := make(Params, 0, len(p))

	for _, param := range p {
		if param.Key != key {
			out = append(out, param)
		}
	}

	return out
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}

	return append(Params(nil), p...)
}

// Encode serializes the set in insertion order, URL-encoded.
func (p Params) Encode() string {
	var builder strings.Builder

	for i, param := range p {
		if i > 0 {
			builder.WriteByte('&')
		}

		builder.WriteString(url.QueryEscape(param.Key))
		builder.WriteByte('=')
		builder.WriteString(url.QueryEscape(param.Value))
	}

	return builder.String()
}

// ApplyParams implements ParamSource. All values for a key replace the existing ones.
func (p Params) ApplyParams(v url.Values) {
	seen := make(map[string]bool, len(p))

	for _, param := range p {
		if !seen[param.Key] {
			v[param.Key] = nil
			seen[param.Key] = true
		}

		v[param.Key] = append(v[param.Key], param.Value)
	}
}
