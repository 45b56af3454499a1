package diag

import (
	"fmt"
	"sync"

	"github.com/hashicorp/hcl/v2"
)

// Severity classifies a diagnostic.
type Severity int

const (
	// SevError marks findings that invalidate part of the output, such as
	// a module whose locals could not be resolved.
	SevError Severity = iota
	// SevWarning marks findings the caller should see but that do not
	// invalidate the graph, such as a consumed unresolved reference.
	SevWarning
)

func (s Severity) String() string {
	if s == SevError {
		return "error"
	}
	return "warning"
}

// Diagnostic is one non-fatal finding produced during a run.
type Diagnostic struct {
	Severity Severity
	Summary  string
	Detail   string
	// Module is the dotted module path the finding is scoped to, empty
	// for the root module or run-wide findings.
	Module string
	// Subject points at the configuration source that triggered the
	// finding, when one exists.
	Subject *hcl.Range
}

func (d Diagnostic) String() string {
	msg := fmt.Sprintf("%s: %s", d.Severity, d.Summary)
	if d.Detail != "" {
		msg += ": " + d.Detail
	}
	if d.Subject != nil {
		msg += fmt.Sprintf(" (%s:%d,%d)", d.Subject.Filename, d.Subject.Start.Line, d.Subject.Start.Column)
	}
	return msg
}

// Sink accumulates diagnostics for one pipeline run. It is safe for
// concurrent use because stages parse files and resolve sibling scopes in
// parallel.
type Sink struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// NewSink returns an empty sink.
func NewSink() *Sink {
	return &Sink{}
}

// Append records a diagnostic.
func (s *Sink) Append(d Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append(s.diags, d)
}

// Warnf records a warning with a formatted summary.
func (s *Sink) Warnf(module string, subject *hcl.Range, format string, args ...any) {
	s.Append(Diagnostic{
		Severity: SevWarning,
		Summary:  fmt.Sprintf(format, args...),
		Module:   module,
		Subject:  subject,
	})
}

// Errorf records a scoped error with a formatted summary.
func (s *Sink) Errorf(module string, subject *hcl.Range, format string, args ...any) {
	s.Append(Diagnostic{
		Severity: SevError,
		Summary:  fmt.Sprintf(format, args...),
		Module:   module,
		Subject:  subject,
	})
}

// All returns a copy of the accumulated diagnostics in append order.
func (s *Sink) All() []Diagnostic {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

// HasErrors reports whether any accumulated diagnostic is an error.
func (s *Sink) HasErrors() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.diags {
		if d.Severity == SevError {
			return true
		}
	}
	return false
}
