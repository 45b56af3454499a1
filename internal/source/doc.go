// Package source materializes configuration trees from local paths or
// remote repositories into a uniform in-memory file set. Remote locators
// are fetched into a local staging area first; a fetch or read failure is a
// SourceUnavailable error and aborts the run, so the parser never sees a
// partial tree. When several locators are given, later ones override
// same-path files from earlier ones.
package source
