package numeric

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// unknownSentinel is the placeholder LLMs emit when they do not know a value.
const unknownSentinel = "unknown"

// Converter applies a Table to untrusted values.
// A Converter is safe for concurrent use; it holds no mutable state.
type Converter struct {
	table  Table
	logger *zap.Logger
}

// NewConverter creates a Converter over table.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Converter.
func NewConverter(table Table, logger *zap.Logger) *Converter {
	return &Converter{table: table, logger: logger}
}

// Table returns the table this converter applies.
func (c *Converter) Table() Table {
	return c.table
}

// ConvertValue coerces raw for the named field.
//
// Unrecognized fields pass through unchanged. For recognized fields, nil and the
// "unknown" sentinel become the field default; anything that does not parse as a
// number becomes the default and logs a warning. Parsed values are truncated toward
// zero and clamped to the field's range.
//
// Postcondition: for a recognized field the result is an int within the field's range.
func (c *Converter) ConvertValue(field string, raw any) any {
	return c.convertValue("", field, raw)
}

func (c *Converter) convertValue(parent, field string, raw any) any {
	policy, ok := c.table.LookupIn(parent, field)
	if !ok {
		return raw
	}
	if raw == nil {
		return policy.Default
	}
	if s, ok := raw.(string); ok && strings.EqualFold(strings.TrimSpace(s), unknownSentinel) {
		return policy.Default
	}
	n, err := toInt(raw)
	if err != nil {
		c.logger.Warn("numeric coercion fell back to default",
			zap.String("field", field),
			zap.String("raw", fmt.Sprintf("%v", raw)),
			zap.Int("default", policy.Default),
			zap.Error(err),
		)
		return policy.Default
	}
	return policy.Clamp(n)
}

// ConvertDict returns a copy of data with ConvertValue applied to every key,
// descending into nested maps and into maps found inside slices. Each value is
// looked up with its enclosing key as parent, so scoped table entries apply.
//
// Postcondition: data is not modified; keys not in the table keep their values.
func (c *Converter) ConvertDict(data map[string]any) map[string]any {
	return c.convertDict("", data)
}

func (c *Converter) convertDict(parent string, data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch tv := v.(type) {
		case map[string]any:
			out[k] = c.convertDict(k, tv)
		case []any:
			out[k] = c.convertSlice(k, tv)
		default:
			out[k] = c.convertValue(parent, k, v)
		}
	}
	return out
}

func (c *Converter) convertSlice(field string, items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		switch tv := item.(type) {
		case map[string]any:
			out[i] = c.convertDict(field, tv)
		case []any:
			out[i] = c.convertSlice(field, tv)
		default:
			out[i] = item
		}
	}
	return out
}

// ToInt leniently reads v as an integer without applying any range policy.
//
// Postcondition: Returns (n, true) when v is numeric or a numeric string;
// (0, false) otherwise.
func ToInt(v any) (int, bool) {
	if v == nil {
		return 0, false
	}
	n, err := toInt(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func toInt(v any) (int, error) {
	var f float64
	switch tv := v.(type) {
	case int:
		return tv, nil
	case int8:
		return int(tv), nil
	case int16:
		return int(tv), nil
	case int32:
		return int(tv), nil
	case int64:
		return clampFloat(float64(tv)), nil
	case uint:
		return clampFloat(float64(tv)), nil
	case uint8:
		return int(tv), nil
	case uint16:
		return int(tv), nil
	case uint32:
		return clampFloat(float64(tv)), nil
	case uint64:
		return clampFloat(float64(tv)), nil
	case float32:
		f = float64(tv)
	case float64:
		f = tv
	case json.Number:
		parsed, err := strconv.ParseFloat(string(tv), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing json number %q: %w", tv, err)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(tv), 64)
		if err != nil {
			return 0, fmt.Errorf("parsing %q: %w", tv, err)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return clampFloat(math.Trunc(f)), nil
}
