// Package rawpage defines the page-handle contract and the raw tree shapes
// extractors consume, in one place so internal packages (signals, extract)
// can depend on it without importing the root browserlens package.
package rawpage

import "context"

// A11yNode is the raw shape returned by a page handle's accessibility
// snapshot, before extraction normalizes it into a statetree.Node.
type A11yNode struct {
	Role     string
	Name     string
	Value    string
	States   []string
	Live     string // CDP AX "live" property value (e.g. "polite", "assertive", "off"), own node only
	Level    int
	Children []A11yNode
}

// DOMNode is the raw shape returned by a page handle's distilled DOM walk.
type DOMNode struct {
	Tag      string
	Role     string
	Name     string
	Value    string
	States   []string
	Attrs    map[string]string
	Text     string
	Visible  bool
	Bounds   *Rect // layout box, populated for canvas/WebGL elements
	Children []DOMNode
}

// Rect is an axis-aligned rectangle in page (CSS pixel) coordinates.
type Rect struct {
	X, Y, Width, Height float64
}

// MutationSummary is the result of sampling page mutations for a window of
// time, used to compute Signals.DynamicRatio.
type MutationSummary struct {
	TotalMutations       int
	InteractiveMutations int
}

// Handle is the only thing BrowserLens needs from a live page. It owns no
// lifecycle of its own — BrowserLens never launches or closes a browser.
type Handle interface {
	// QuerySelectorAllCount returns the number of elements matching selector.
	QuerySelectorAllCount(ctx context.Context, selector string) (int, error)
	// AccessibilitySnapshot returns the full accessibility tree.
	AccessibilitySnapshot(ctx context.Context) (A11yNode, error)
	// DOMWalk returns the page's DOM element tree, each node marked with its
	// own visibility; extractors decide which elements to keep.
	DOMWalk(ctx context.Context) (DOMNode, error)
	// Screenshot returns PNG bytes, optionally cropped to rect.
	Screenshot(ctx context.Context, rect *Rect) ([]byte, error)
	// ObserveMutations samples DOM mutations for the given window (milliseconds).
	ObserveMutations(ctx context.Context, windowMs int) (MutationSummary, error)
	// URL returns the page's current URL.
	URL(ctx context.Context) (string, error)
}
