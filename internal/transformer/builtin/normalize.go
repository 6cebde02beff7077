package builtin

import (
	"strings"

	"golang.org/x/text/cases"

	"retailfact/pkg/records"
)

// UnknownCategory is the bucket assigned to missing or unmapped product
// category labels.
const UnknownCategory = "unknown"

var categoryFolder = cases.Fold()

// Normalize trims whitespace on every string field and canonicalizes
// category labels: case-folded, inner whitespace collapsed to underscores,
// and blank/nil values mapped to the unknown bucket. CategoryField is
// normally "product_category_name"; leave it empty for streams without one.
type Normalize struct {
	CategoryField string
}

func (n Normalize) Apply(in []records.Record) []records.Record {
	for _, r := range in {
		for k, v := range r {
			if s, ok := v.(string); ok {
				r[k] = strings.TrimSpace(s)
			}
		}
		if n.CategoryField == "" {
			continue
		}
		r[n.CategoryField] = NormalizeCategory(r.String(n.CategoryField))
	}
	return in
}

// NormalizeCategory maps a raw category label onto its canonical form.
// Folding (rather than lowercasing) keeps labels from accented locales
// comparable; the source data mixes cased and uncased exports.
func NormalizeCategory(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return UnknownCategory
	}
	s = categoryFolder.String(s)
	return strings.Join(strings.Fields(s), "_")
}
