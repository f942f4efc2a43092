package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/pipyaml/internal/canonical"
)

// timeLayout is used for every timestamp column. Fixed width, so text
// order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalArgument stores a request argument as canonical JSON.
// Values canonical JSON cannot express (floats, nulls) are stored as their
// string form so a malformed request is still recorded.
func marshalArgument(v any) string {
	data, err := canonical.Marshal(v)
	if err != nil {
		data, _ = canonical.Marshal(fmt.Sprint(v))
	}
	return string(data)
}

// marshalOutcome converts an outcome map to canonical JSON TEXT.
func marshalOutcome(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	data, err := canonical.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal outcome: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses canonical JSON TEXT back into Go values.
// Numbers decode through json.Number so integers keep their precision.
func unmarshalValue(data string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return convertNumbers(v), nil
}

func unmarshalOutcome(data string) (map[string]any, error) {
	v, err := unmarshalValue(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unmarshal outcome: expected object, got %T", v)
	}
	return m, nil
}

// convertNumbers replaces json.Number with int64 where it fits.
func convertNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		return val.String()
	case []any:
		for i, elem := range val {
			val[i] = convertNumbers(elem)
		}
		return val
	case map[string]any:
		for k, elem := range val {
			val[k] = convertNumbers(elem)
		}
		return val
	default:
		return v
	}
}
