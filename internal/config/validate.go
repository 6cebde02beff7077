// This file adds a lightweight linter for Pipeline values. It performs
// static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
	"time"

	"retailfact/internal/schema"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding worth surfacing that does not
	// block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is a dotted path into
// the config (e.g. "storage.kind", "source.files.orders").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a
// single error where callers expect one.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// ValidatePipeline performs static validation of a Pipeline. It does not
// mutate the pipeline; callers decide whether warnings are fatal.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{SeverityWarning, "job", "job name is empty; metrics will use a default"})
	}

	switch p.Source.Kind {
	case "file":
	case "":
		issues = append(issues, Issue{SeverityError, "source.kind", "source kind is required"})
	default:
		issues = append(issues, Issue{SeverityError, "source.kind",
			fmt.Sprintf("unknown source kind %q (supported: file)", p.Source.Kind)})
	}

	// The resolver and fact builder need orders, items, and payments; the
	// remaining streams degrade gracefully (missing products widen the
	// unknown bucket) but are worth flagging.
	required := []string{schema.EntityOrders, schema.EntityOrderItems, schema.EntityPayments}
	for _, entity := range required {
		if strings.TrimSpace(p.Source.Files[entity]) == "" {
			issues = append(issues, Issue{SeverityError,
				"source.files." + entity, "path is required"})
		}
	}
	optional := []string{schema.EntityCustomers, schema.EntityProducts, schema.EntitySellers, schema.EntityReviews}
	for _, entity := range optional {
		if strings.TrimSpace(p.Source.Files[entity]) == "" {
			issues = append(issues, Issue{SeverityWarning,
				"source.files." + entity, "path not set; stream will be skipped"})
		}
	}
	for entity := range p.Source.Files {
		if _, known := schema.Contracts()[entity]; !known {
			issues = append(issues, Issue{SeverityWarning,
				"source.files." + entity, "unknown entity; stream will be ignored"})
		}
	}

	switch p.Storage.Kind {
	case "sqlite", "postgres":
		if strings.TrimSpace(p.Storage.DSN) == "" {
			issues = append(issues, Issue{SeverityError, "storage.dsn", "DSN is required"})
		}
	case "":
		issues = append(issues, Issue{SeverityError, "storage.kind", "storage kind is required"})
	default:
		issues = append(issues, Issue{SeverityError, "storage.kind",
			fmt.Sprintf("unknown storage kind %q (supported: sqlite, postgres)", p.Storage.Kind)})
	}

	for path, bound := range map[string]string{"window.from": p.Window.From, "window.to": p.Window.To} {
		if bound == "" {
			continue
		}
		if _, err := time.Parse(schema.DateLayout, bound); err != nil {
			issues = append(issues, Issue{SeverityError, path,
				fmt.Sprintf("%q is not a %s date", bound, schema.DateLayout)})
		}
	}
	if p.Window.From != "" && p.Window.To != "" && p.Window.From > p.Window.To {
		issues = append(issues, Issue{SeverityError, "window", "from is after to"})
	}
	if (p.Window.From == "") != (p.Window.To == "") {
		issues = append(issues, Issue{SeverityError, "window", "from and to must be set together"})
	}

	if p.Query.TopN < 0 {
		issues = append(issues, Issue{SeverityError, "query.top_n", "must be >= 0"})
	}
	if p.Runtime.CleanWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.clean_workers", "must be >= 0"})
	}
	if p.Runtime.WriteWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.write_workers", "must be >= 0"})
	}

	return issues
}
