package builtin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"retailfact/pkg/records"
)

// DeDup removes duplicate records from a batch, keeping the first
// occurrence. With no Keys configured it collapses exact full-row
// duplicates: the key is an xxh3 hash over every field/value pair in sorted
// field order. With Keys it collapses on the named business key (e.g.
// ["order_id"] for the orders stream).
//
// The reserved line field is excluded from hashing so that re-parsing the
// same data with different surrounding rows still dedups identically, which
// also keeps cleaning idempotent.
type DeDup struct {
	Keys []string

	// Dropped, when set, receives the count of records removed per Apply.
	Dropped func(n int)
}

func (d DeDup) Apply(in []records.Record) []records.Record {
	if len(in) == 0 {
		return in
	}
	seen := make(map[uint64]struct{}, len(in))
	out := in[:0]
	for _, r := range in {
		h := d.keyHash(r)
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, r)
	}
	if d.Dropped != nil && len(out) < len(in) {
		d.Dropped(len(in) - len(out))
	}
	return out
}

func (d DeDup) keyHash(r records.Record) uint64 {
	var b strings.Builder
	if len(d.Keys) > 0 {
		for _, k := range d.Keys {
			writeField(&b, k, r[k])
		}
		return xxh3.HashString(b.String())
	}

	keys := make([]string, 0, len(r))
	for k := range r {
		if k == records.LineField {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeField(&b, k, r[k])
	}
	return xxh3.HashString(b.String())
}

func writeField(b *strings.Builder, k string, v any) {
	b.WriteString(k)
	b.WriteByte('\x1f')
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')
	case string:
		b.WriteString(t)
	default:
		fmt.Fprint(b, t)
	}
	b.WriteByte('\x1e')
}
