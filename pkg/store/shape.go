package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// page is the part of a list response the store cares about.
type page struct {
	results  json.RawMessage
	total    int
	hasTotal bool
}

// extractPage pulls the result array and, when totalField is set, the total count out
// of body. A top-level array is always taken as the results.
func extractPage(body []byte, resultsField, totalField string) (*page, error) {
	trimmed := bytes.TrimSpace(body)

	var object map[string]json.RawMessage

	isArray := len(trimmed) > 0 && trimmed[0] == '['
	if !isArray && (resultsField != "" || totalField != "") {
		if err := json.Unmarshal(trimmed, &object); err != nil {
			return nil, fmt.Errorf("%w: body is %s, want object", ErrInvalidResponseShape, jsonKind(trimmed))
		}
	}

	out := &page{}

	switch {
	case isArray:
		out.results = trimmed
	case resultsField != "":
		field := bytes.TrimSpace(object[resultsField])
		if len(field) == 0 || field[0] != '[' {
			return nil, fmt.Errorf("%w: field %q is %s, want array", ErrInvalidResponseShape, resultsField, jsonKind(field))
		}

		out.results = field
	default:
		return nil, fmt.Errorf("%w: body is %s, want array", ErrInvalidResponseShape, jsonKind(trimmed))
	}

	if totalField == "" {
		return out, nil
	}

	total, err := countField(object[totalField])
	if err != nil {
		return nil, fmt.Errorf("%w: field %q %w", ErrInvalidResponseShape, totalField, err)
	}

	out.total = total
	out.hasTotal = true

	return out, nil
}

func countField(raw json.RawMessage) (int, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if len(bytes.TrimSpace(raw)) == 0 {
		return 0, errNotNumeric("missing")
	}

	if err := decoder.Decode(&value); err != nil {
		return 0, errNotNumeric(jsonKind(raw))
	}

	number, ok := value.(json.Number)
	if !ok {
		return 0, errNotNumeric(jsonKind(raw))
	}

	if n, err := number.Int64(); err == nil {
		if n < 0 || uint64(n) > math.MaxInt {
			return 0, errNotNumeric("out of range")
		}

		return int(n), nil
	}

	// Whole numbers written as floats, such as 15.0 or 1.5e1, are accepted.
	f, err := number.Float64()
	if err != nil || f < 0 || f >= math.MaxInt {
		return 0, errNotNumeric("out of range")
	}

	if f != math.Trunc(f) {
		return 0, errNotNumeric("fractional")
	}

	return int(f), nil
}

type errNotNumeric string

func (e errNotNumeric) Error() string {
	return "is " + string(e) + ", want non-negative integer"
}

// jsonKind names the JSON type of raw for error messages.
func jsonKind(raw []byte) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "missing"
	}

	switch raw[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "boolean"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
