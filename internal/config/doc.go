// Package config defines the shared intermediate structures the pipeline
// stages hand to each other: the module tree of parsed files (Tree), the
// typed configuration blocks within them (Block), and the closed value
// variant (Value) that substitution produces. Tree and Block are built once
// by the parser and are read-only afterwards; no later stage re-reads raw
// source text.
package config
