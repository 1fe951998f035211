// Package extract implements the extractors: A11Y, DOM (distilled),
// Hybrid, and Vision. Every extractor produces a statetree.StateTree
// rooted at a synthetic "document" node and guarantees the same shape
// invariants regardless of which representation produced it.
package extract

import (
	"browserlens/internal/statetree"
)

// Options carries the extraction-time knobs configuration exposes.
type Options struct {
	NameLengthCap int
	DOMTextCap    int
}

// DefaultOptions holds the documented defaults (name cap 200, DOM text cap 240).
func DefaultOptions() Options {
	return Options{NameLengthCap: 200, DOMTextCap: 240}
}

func stateSetFromStrings(raw []string) statetree.StateSet {
	s := make(statetree.StateSet, len(raw))
	for _, f := range raw {
		s[statetree.StateFlag(f)] = true
	}
	return s
}

func isPresentational(role string) bool {
	return role == "none" || role == "presentation"
}
