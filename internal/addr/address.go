package addr

import (
	"strconv"
	"strings"
)

// UnknownKey is the synthetic key given to the single placeholder instance
// of a resource whose count or for_each expression could not be resolved.
// It cannot collide with real keys: for_each keys containing "*" are
// rejected at extraction time and count indexes are decimal digits.
const UnknownKey = "*"

// Address identifies one resource instance: `module.path.type.name[.key]`.
// A zero Key means the address names an unexpanded resource block.
type Address struct {
	// Module is the chain of module call names from the root. Empty for
	// resources declared in the root module.
	Module []string
	// Data marks data sources, which are prefixed with "data." in the
	// rendered identity to keep them distinct from managed resources.
	Data bool
	// Type is the resource type, e.g. "aws_instance".
	Type string
	// Name is the declared instance name.
	Name string
	// Key is the expansion index or for_each key, or UnknownKey. Empty
	// when the resource was not expanded.
	Key string
}

// New builds an address for a resource block that has not been expanded.
func New(module []string, data bool, resType, name string) Address {
	return Address{Module: module, Data: data, Type: resType, Name: name}
}

// WithKey returns a copy of the address carrying the given expansion key.
func (a Address) WithKey(key string) Address {
	a.Key = key
	return a
}

// WithIndex returns a copy of the address carrying a count index as key.
func (a Address) WithIndex(i int) Address {
	return a.WithKey(strconv.Itoa(i))
}

// Base returns the address without its expansion key. All instances derived
// from the same resource block share a base.
func (a Address) Base() Address {
	a.Key = ""
	return a
}

// String serializes the address into its canonical identity string.
func (a Address) String() string {
	var sb strings.Builder
	for _, seg := range a.Module {
		sb.WriteString(seg)
		sb.WriteByte('.')
	}
	if a.Data {
		sb.WriteString("data.")
	}
	sb.WriteString(a.Type)
	sb.WriteByte('.')
	sb.WriteString(a.Name)
	if a.Key != "" {
		sb.WriteByte('.')
		sb.WriteString(a.Key)
	}
	return sb.String()
}

// Equal reports whether two addresses identify the same instance.
func (a Address) Equal(other Address) bool {
	return a.String() == other.String()
}

// Less orders addresses for deterministic output. Module path, type and
// name compare lexically; numeric keys compare numerically so instance 10
// sorts after instance 2.
func (a Address) Less(other Address) bool {
	if ab, ob := a.Base().String(), other.Base().String(); ab != ob {
		return ab < ob
	}
	ai, aErr := strconv.Atoi(a.Key)
	oi, oErr := strconv.Atoi(other.Key)
	if aErr == nil && oErr == nil {
		return ai < oi
	}
	return a.Key < other.Key
}
