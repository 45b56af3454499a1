package diag

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
)

// SourceUnavailableError reports a source locator that could not be fetched
// or read. It is fatal for the whole run.
type SourceUnavailableError struct {
	Locator string
	Err     error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source unavailable: %s: %v", e.Locator, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// MalformedConfigError reports a file that could not be parsed into blocks
// at all. It is fatal for the whole run because downstream resolution
// assumes a complete block set.
type MalformedConfigError struct {
	File     string
	Position hcl.Pos
	Diags    hcl.Diagnostics
}

func (e *MalformedConfigError) Error() string {
	return fmt.Sprintf("malformed configuration in %s at %d:%d: %s",
		e.File, e.Position.Line, e.Position.Column, e.Diags.Error())
}

// CyclicLocalsError reports a dependency cycle among the locals of a single
// module. It is scoped: the owning module fails to resolve, other modules
// continue.
type CyclicLocalsError struct {
	Module string
	Names  []string
}

func (e *CyclicLocalsError) Error() string {
	module := e.Module
	if module == "" {
		module = "root module"
	}
	return fmt.Sprintf("cyclic locals in %s: %s", module, strings.Join(e.Names, ", "))
}
