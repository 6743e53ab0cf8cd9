package enums

import (
	"fmt"
	"slices"
)

// parse matches value exactly against the known members of an enum. kind
// names the enum in the error.
func parse[T ~string](value string, known []T, kind string) (T, error) {
	if i := slices.Index(known, T(value)); i >= 0 {
		return known[i], nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}
