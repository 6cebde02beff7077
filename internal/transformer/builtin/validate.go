// Package builtin contains the reusable transforms that make up the
// validation and cleaning stages of the pipeline.
package builtin

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"retailfact/internal/schema"
	"retailfact/pkg/records"
)

// RejectedRow is one entry of the structured rejection report produced by
// Validate. Per-row rejections never abort the stream; they are counted and
// surfaced in the run summary.
type RejectedRow struct {
	Line   int
	Field  string
	Reason string
	Stage  string
}

// Validate checks each record against a schema.Contract. A record is
// rejected when a required field is absent, nil, or cannot be interpreted as
// the contract's declared type. Optional fields never cause rejection; an
// optional field that fails to parse is left for Coerce to null out.
type Validate struct {
	Contract schema.Contract
	Reject   func(RejectedRow) // optional sink
}

// Apply returns the records that satisfy the contract. Rejections are
// reported through the Reject sink when configured.
func (v Validate) Apply(in []records.Record) []records.Record {
	out := make([]records.Record, 0, len(in))
	for _, rec := range in {
		if field, reason, ok := v.check(rec); ok {
			out = append(out, rec)
		} else if v.Reject != nil {
			v.Reject(RejectedRow{Line: rec.Line(), Field: field, Reason: reason, Stage: "validate"})
		}
	}
	return out
}

func (v Validate) check(r records.Record) (field, reason string, ok bool) {
	for _, f := range v.Contract.Fields {
		val, exists := r[f.Name]
		empty := !exists || val == nil || isEmptyString(val)

		if empty {
			if f.Required {
				return f.Name, "required field missing", false
			}
			continue
		}
		if f.Required && !typeable(val, f) {
			return f.Name, fmt.Sprintf("%v not a valid %s", val, f.Type), false
		}
	}
	return "", "", true
}

func isEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

// typeable reports whether val can be interpreted as the field's declared
// type. Parsers hand over raw strings; records revisited by an idempotent
// re-run may already carry typed values.
func typeable(val any, f schema.Field) bool {
	switch f.Type {
	case "int":
		switch t := val.(type) {
		case int, int64:
			return true
		case float64:
			return t == float64(int64(t))
		case string:
			_, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
			return err == nil
		}
		return false

	case "float":
		switch t := val.(type) {
		case float64, int, int64:
			return true
		case string:
			_, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			return err == nil
		}
		return false

	case "date":
		// Presence-only: parse failures are a value-domain problem, tagged
		// invalid_timestamp by the cleaner, not a shape violation.
		switch val.(type) {
		case time.Time, string:
			return true
		}
		return false

	default: // "text" and unknown kinds accept anything
		return true
	}
}
