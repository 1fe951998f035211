package browserlens

import "browserlens/internal/rawpage"

// A11yNode is the raw shape returned by a page handle's accessibility
// snapshot, before extraction normalizes it into an internal statetree.Node.
type A11yNode = rawpage.A11yNode

// DOMNode is the raw shape returned by a page handle's distilled DOM walk.
type DOMNode = rawpage.DOMNode

// Rect is an axis-aligned rectangle in page (CSS pixel) coordinates.
type Rect = rawpage.Rect

// MutationSummary is the result of sampling page mutations for a window of
// time, used to compute Signals.DynamicRatio.
type MutationSummary = rawpage.MutationSummary

// PageHandle is the only thing BrowserLens needs from a live page. It owns
// no lifecycle of its own — BrowserLens never launches or closes a browser.
type PageHandle = rawpage.Handle
