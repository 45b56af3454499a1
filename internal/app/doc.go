// Package app wires the pipeline stages together: load sources, parse,
// resolve scopes, extract and substitute metadata, apply annotations,
// expand conditionals and build the graph. It owns process-level concerns
// too: layered settings, logger construction and the fatal-versus-finding
// error split. Fatal errors abort the run with no partial graph; findings
// travel alongside the result as diagnostics.
package app
