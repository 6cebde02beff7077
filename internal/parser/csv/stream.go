// Package csv parses entity CSV exports into records without whole-file
// buffering. Headers are normalized through the contract's HeaderMap so that
// downstream stages only ever see canonical field names.
package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"retailfact/internal/config"
	"retailfact/internal/schema"
	"retailfact/pkg/records"
)

// StreamRecords reads CSV from r and appends one records.Record per data
// row, tagged with its 1-based source line. Per-row errors are soft: they
// are reported via onError(line, err) and the stream continues. A fatal
// error (unreadable header, context cancellation) is returned.
//
// Only fields named by the contract are carried; extra source columns are
// dropped. Missing columns yield nil fields, which validation handles.
func StreamRecords(
	ctx context.Context,
	r io.Reader,
	contract schema.Contract,
	opts config.Options,
	onError func(line int, err error),
) ([]records.Record, error) {
	cr := csv.NewReader(r)
	cr.Comma = opts.Rune("comma", ',')
	cr.FieldsPerRecord = -1 // width enforced below, softly
	cr.LazyQuotes = opts.Bool("lazy_quotes", false)
	cr.TrimLeadingSpace = opts.Bool("trim_space", true)

	line := 0
	var header []string
	if opts.Bool("has_header", true) {
		h, err := cr.Read()
		if err != nil {
			return nil, fmt.Errorf("%s: read header: %w", contract.Name, err)
		}
		line++
		header = canonicalize(h, contract.HeaderMap)
	} else {
		// Headerless exports must match the contract's field order.
		header = make([]string, len(contract.Fields))
		for i, f := range contract.Fields {
			header[i] = f.Name
		}
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}

	var out []records.Record
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		line++
		if err != nil {
			if onError != nil {
				onError(line, err)
			}
			continue
		}

		rec := make(records.Record, len(contract.Fields)+1)
		rec[records.LineField] = line
		for _, f := range contract.Fields {
			if i, ok := idx[f.Name]; ok && i < len(row) {
				rec[f.Name] = row[i]
			} else {
				rec[f.Name] = nil
			}
		}
		out = append(out, rec)
	}
}

// canonicalize maps raw headers onto canonical field names via HeaderMap,
// trimming whitespace either way.
func canonicalize(header []string, headerMap map[string]string) []string {
	out := make([]string, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if headerMap != nil {
			if mapped, ok := headerMap[name]; ok && mapped != "" {
				name = mapped
			}
		}
		out[i] = name
	}
	return out
}
