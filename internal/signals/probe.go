package signals

import (
	"context"
	"strings"

	"browserlens/internal/rawpage"
)

// interactiveSelector is a CSS selector for interactive elements (buttons,
// links, form controls, and anything with an explicit role or tabindex).
// Probe does not query it: the a11y_coverage denominator is counted from
// the DOM walk by countInteractiveDOM.
const interactiveSelector = `button, a[href], input, select, textarea, [role], [tabindex]`

const canvasSelector = `canvas, [data-engine], svg[role], webgl-canvas`

var interactiveA11yRoles = map[string]bool{
	"button": true, "link": true, "textbox": true, "checkbox": true,
	"radio": true, "combobox": true, "listbox": true, "menuitem": true,
	"slider": true, "switch": true, "tab": true, "searchbox": true,
	"spinbutton": true,
}

// Probe collects a Signals record from a live page. Any single
// probe step that errors is swallowed; its contribution falls back to a
// conservative value rather than failing the whole probe. If cache holds an
// unexpired entry for the page's origin and forceRecompute is false, that
// entry is returned directly and no probing happens at all.
func Probe(ctx context.Context, page rawpage.Handle, dynamicProbe, forceRecompute bool, cache *Cache) (Signals, error) {
	url, err := page.URL(ctx)
	if err != nil {
		return Conservative(""), nil
	}
	origin := urlOrigin(url)

	if !forceRecompute && cache != nil {
		if cached, ok := cache.Get(origin); ok {
			return cached, nil
		}
	}

	hasCanvas := probeCanvas(ctx, page)

	a11yTree, a11yErr := page.AccessibilitySnapshot(ctx)
	domTree, domErr := page.DOMWalk(ctx)

	var coverage float64
	var nodeCount, maxDepth int
	if domErr == nil {
		nodeCount, maxDepth = walkDOM(domTree, 0)
	} else {
		nodeCount = 1 << 30
	}

	if a11yErr == nil && domErr == nil {
		interactiveA11y := countInteractiveA11y(a11yTree)
		interactiveDOM := countInteractiveDOM(domTree)
		coverage = clampCoverage(safeRatio(interactiveA11y, interactiveDOM))
	}

	var dynamicRatio *float64
	if dynamicProbe {
		if summary, err := page.ObserveMutations(ctx, 500); err == nil {
			r := safeRatio(summary.InteractiveMutations, summary.TotalMutations)
			dynamicRatio = &r
		}
	}

	kind := ClassifyPageKind(url, PageShape{
		DOMNodeCount:    nodeCount,
		InteractiveDOM:  countInteractiveDOM(domTree),
		MaxDepth:        maxDepth,
	})

	out := Signals{
		HasCanvas:    hasCanvas,
		A11yCoverage: coverage,
		DOMNodeCount: nodeCount,
		DOMMaxDepth:  maxDepth,
		DynamicRatio: dynamicRatio,
		PageKind:     kind,
		URLOrigin:    origin,
	}
	if cache != nil {
		cache.Put(origin, out)
	}
	return out, nil
}

func probeCanvas(ctx context.Context, page rawpage.Handle) bool {
	n, err := page.QuerySelectorAllCount(ctx, canvasSelector)
	if err != nil {
		return true // conservative: bias toward richer representation
	}
	return n > 0
}

func walkDOM(n rawpage.DOMNode, depth int) (count, maxDepth int) {
	count = 1
	maxDepth = depth
	for _, c := range n.Children {
		cc, cd := walkDOM(c, depth+1)
		count += cc
		if cd > maxDepth {
			maxDepth = cd
		}
	}
	return
}

func countInteractiveDOM(n rawpage.DOMNode) int {
	total := 0
	if isInteractiveDOM(n) {
		total++
	}
	for _, c := range n.Children {
		total += countInteractiveDOM(c)
	}
	return total
}

func isInteractiveDOM(n rawpage.DOMNode) bool {
	switch strings.ToLower(n.Tag) {
	case "button", "a", "input", "select", "textarea":
		return true
	}
	if n.Role != "" {
		return true
	}
	return false
}

func countInteractiveA11y(n rawpage.A11yNode) int {
	total := 0
	if interactiveA11yRoles[strings.ToLower(n.Role)] {
		total++
	}
	for _, c := range n.Children {
		total += countInteractiveA11y(c)
	}
	return total
}

func safeRatio(num, den int) float64 {
	if den <= 0 {
		den = 1
	}
	return float64(num) / float64(den)
}

func urlOrigin(raw string) string {
	s := raw
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return s
}
