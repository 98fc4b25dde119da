// Package stale decides whether a derived artefact must be rebuilt from its
// source by comparing modification times.
package stale

import (
	"fmt"
	"os"

	"github.com/magefile/mage/target"
)

// Edge links a source artefact to one artefact derived from it.
type Edge struct {
	Source  string
	Derived string
}

// IsStale reports whether derived is missing or older than source. Equal
// timestamps count as fresh. The source must exist; a missing source is a
// caller bug and is returned as an error.
// Both paths go through os.ExpandEnv, so they must not contain '$'.
func IsStale(source, derived string) (bool, error) {
	if _, err := os.Stat(source); err != nil {
		return false, fmt.Errorf("staleness check on %s: %w", source, err)
	}
	stale, err := target.Path(derived, source)
	if err != nil {
		return false, fmt.Errorf("staleness check %s -> %s: %w", source, derived, err)
	}
	return stale, nil
}

// Stale is IsStale for an edge.
func (e Edge) Stale() (bool, error) {
	return IsStale(e.Source, e.Derived)
}

// AllFresh reports whether no edge is stale. It stops at the first stale edge.
func AllFresh(edges []Edge) (bool, error) {
	for _, e := range edges {
		s, err := e.Stale()
		if err != nil {
			return false, err
		}
		if s {
			return false, nil
		}
	}
	return true, nil
}
