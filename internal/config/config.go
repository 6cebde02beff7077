// Package config defines the canonical, JSON-serializable configuration
// model for a pipeline run. It is intentionally small and dependency-free:
// runs are described by a single JSON file decoded with the standard
// library, with a light Options helper for the free-form parser knobs.
package config

// Pipeline describes one fact-table build run, decoded from a pipeline file
// (e.g. configs/pipelines/retail.json).
type Pipeline struct {
	// Job names the run for logging and metrics labels.
	Job string `json:"job"`

	// Source locates the seven entity CSV exports.
	Source Source `json:"source"`

	// Parser carries free-form CSV knobs (comma, has_header, trim_space).
	Parser Parser `json:"parser"`

	// Storage selects and configures the fact store backend.
	Storage Storage `json:"storage"`

	// Window optionally restricts the run to a purchase-date range. Every
	// date inside the window gets its partition replaced, including dates
	// with no surviving rows (zero-row partitions).
	Window RunWindow `json:"window"`

	// Query holds the catalog parameter defaults used by the CLI report.
	Query QueryDefaults `json:"query"`

	// Runtime controls concurrency.
	Runtime RuntimeConfig `json:"runtime"`
}

// Source identifies where entity streams come from. Files maps entity name
// (schema.Entity* constants) to a CSV path, relative to Dir when set.
type Source struct {
	Kind  string            `json:"kind"` // "file"
	Dir   string            `json:"dir,omitempty"`
	Files map[string]string `json:"files"`
}

// Parser wraps the free-form parser options bag.
type Parser struct {
	Options Options `json:"options"`
}

// Storage selects the fact store backend.
type Storage struct {
	// Kind is "sqlite" or "postgres".
	Kind string `json:"kind"`

	// DSN is the backend connection string.
	DSN string `json:"dsn"`

	// Schema optionally qualifies the tables (Postgres only).
	Schema string `json:"schema,omitempty"`
}

// RunWindow is an inclusive purchase-date range in schema.DateLayout form
// ("2006-01-02"). Both bounds empty means "all dates present in the data".
type RunWindow struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// QueryDefaults parameterizes the catalog queries the CLI reports on.
type QueryDefaults struct {
	// TopN is the cutoff for top-product/seller/customer queries.
	TopN int `json:"top_n"`

	// SellerRevenueThreshold feeds the sellers-over-threshold quality query.
	SellerRevenueThreshold float64 `json:"seller_revenue_threshold"`
}

// RuntimeConfig controls concurrency. Zero values select defaults.
type RuntimeConfig struct {
	// CleanWorkers bounds the concurrent per-entity cleaning goroutines.
	CleanWorkers int `json:"clean_workers"`

	// WriteWorkers bounds the concurrent partition writes.
	WriteWorkers int `json:"write_workers"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps.
// It performs only minimal coercion and returns the provided default when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. JSON numbers decode as float64,
// so both float64 and int are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def. Used for
// single-character settings such as the CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}
