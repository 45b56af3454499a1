// Package diag defines the pipeline's error taxonomy and the diagnostics
// sink that non-fatal findings accumulate into. Fatal conditions (a source
// that cannot be fetched, a file that cannot be parsed) are returned as
// typed errors and abort the run with no partial graph. Scoped and advisory
// conditions (a locals cycle in one module, an unresolved reference that is
// actually consumed) are appended to a Sink that travels with the run, so a
// single broken module never hides the rest of a large configuration.
//
// The sink is injected, never global: two concurrent runs collect findings
// independently.
package diag
