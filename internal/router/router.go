// Package router implements the adaptive representation router: a pure
// function from Signals to a RepresentationKind.
package router

import "browserlens/internal/signals"

// Kind is one of the representations an extractor can produce.
type Kind string

const (
	A11Y         Kind = "A11Y"
	DistilledDOM Kind = "DISTILLED_DOM"
	Hybrid       Kind = "HYBRID"
	Vision       Kind = "VISION"
)

// Thresholds carries the configuration knobs the decision rules read.
type Thresholds struct {
	A11yFullThreshold  float64
	DOMNodeCap         int
	HybridMinCoverage  float64
}

// DefaultThresholds holds the router's documented threshold defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		A11yFullThreshold: 0.8,
		DOMNodeCap:        2000,
		HybridMinCoverage: 0.5,
	}
}

// Func is the router's pluggable signature: a caller may supply an
// alternative with this exact shape.
type Func func(s signals.Signals, t Thresholds) Kind

// Route is the default decision procedure. Rules are evaluated top to
// bottom; the first match wins.
func Route(s signals.Signals, t Thresholds) Kind {
	switch {
	case s.HasCanvas && s.A11yCoverage < t.HybridMinCoverage:
		return Hybrid
	case s.A11yCoverage >= t.A11yFullThreshold:
		return A11Y
	case s.DOMNodeCount < t.DOMNodeCap && s.A11yCoverage >= t.HybridMinCoverage:
		return DistilledDOM
	case s.A11yCoverage < 0.2 && s.DOMNodeCount >= t.DOMNodeCap:
		return Vision
	default:
		return Hybrid
	}
}
