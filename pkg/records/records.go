// Package records defines the row currency passed between pipeline stages.
// A Record is a loosely typed field map produced by the parsers and shaped by
// the transformer chain before it is decoded into a typed entity.
package records

import "time"

type Record map[string]any

// LineField is a reserved field carrying the 1-based source line number a
// record was parsed from. It is metadata: transformers ignore it for
// equality/dedup purposes and it never reaches storage.
const LineField = "_line"

// Line returns the source line number, or 0 when untracked.
func (r Record) Line() int { return r.Int(LineField) }

// String returns the string value for key, or "" when the field is missing,
// nil, or not a string.
func (r Record) String(key string) string {
	if v, ok := r[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Float returns the float64 value for key and whether it was present as a
// number. Integers coerced earlier in the chain are accepted.
func (r Record) Float(key string) (float64, bool) {
	switch v := r[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	}
	return 0, false
}

// Int returns the int value for key, or 0 when missing or untyped.
func (r Record) Int(key string) int {
	switch v := r[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Time returns the time value for key and whether it was present as a time.
func (r Record) Time(key string) (time.Time, bool) {
	if v, ok := r[key].(time.Time); ok {
		return v, true
	}
	return time.Time{}, false
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
