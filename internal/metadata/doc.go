// Package metadata flattens resource and data blocks into substitution-
// complete records: every variable, local and module-output reference in an
// attribute is replaced by its resolved literal from the owning scope.
// References that cannot reduce stay as typed placeholder values, never as
// raw text. An optional annotation overlay (a yaml document) can override
// or augment record attributes after substitution, before expansion.
package metadata
