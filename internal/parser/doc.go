// Package parser turns the merged source file set into the module tree of
// typed blocks. Each file is parsed exactly once; all later stages work on
// the resulting expressions, never on raw text. Files of a module parse
// concurrently. A file that fails to parse is a MalformedConfig error and
// aborts the run, because downstream resolution assumes a complete block
// set. Unknown block kinds are kept as opaque blocks rather than dropped.
package parser
