package builtin

import (
	"strconv"
	"strings"
	"time"

	"retailfact/internal/schema"
	"retailfact/pkg/records"
)

// Coerce converts raw string fields into typed values in place, following
// the contract's declared types. Monetary fields become float64, counters
// int64, timestamps time.Time at the layout declared on the field (falling
// back to the source timestamp layout, then plain dates).
//
// Coercion is idempotent: already-typed values pass through untouched, so
// running the cleaning chain twice yields identical output. Optional fields
// that fail to parse are set to nil rather than rejected; Validate has
// already guaranteed the required ones parse.
type Coerce struct {
	Contract schema.Contract
}

func (c Coerce) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for _, f := range c.Contract.Fields {
			v, ok := r[f.Name]
			if !ok || v == nil {
				continue
			}
			s, isStr := v.(string)
			if !isStr {
				continue // already typed
			}
			s = strings.TrimSpace(s)
			if s == "" {
				r[f.Name] = nil
				continue
			}
			switch f.Type {
			case "int":
				if n, err := strconv.ParseInt(s, 10, 64); err == nil {
					r[f.Name] = n
				} else {
					r[f.Name] = nil
				}
			case "float":
				if x, err := strconv.ParseFloat(s, 64); err == nil {
					r[f.Name] = x
				} else {
					r[f.Name] = nil
				}
			case "date":
				if t, ok := parseDate(s, f.Layout); ok {
					r[f.Name] = t
				} else {
					r[f.Name] = nil
				}
			default:
				r[f.Name] = s
			}
		}
	}
	return in
}

func parseDate(s, fieldLayout string) (time.Time, bool) {
	if fieldLayout != "" {
		if t, err := time.Parse(fieldLayout, s); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(schema.TimestampLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(schema.DateLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
