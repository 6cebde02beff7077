// Package transformer defines the transformation chain applied to parsed
// record streams before they are decoded into typed entities. Concrete
// transforms live in the builtin subpackage.
package transformer

import "retailfact/pkg/records"

type Transformer interface{ Apply([]records.Record) []records.Record }

// Chain is an ordered list of transformers applied left to right.
type Chain []Transformer

func (c Chain) Apply(in []records.Record) []records.Record {
	out := in
	for _, t := range c {
		out = t.Apply(out)
	}
	return out
}
