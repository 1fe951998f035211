package signals

import (
	"context"
	"errors"
	"testing"

	"browserlens/internal/rawpage"
)

// fakePage is a hand-written rawpage.Handle double: a small stand-in used
// instead of a mocking library.
type fakePage struct {
	url           string
	urlErr        error
	canvasCount   int
	canvasErr     error
	a11y          rawpage.A11yNode
	a11yErr       error
	dom           rawpage.DOMNode
	domErr        error
	mutations     rawpage.MutationSummary
	mutationsErr  error
	screenshot    []byte
	screenshotErr error
}

func (f *fakePage) QuerySelectorAllCount(ctx context.Context, selector string) (int, error) {
	return f.canvasCount, f.canvasErr
}
func (f *fakePage) AccessibilitySnapshot(ctx context.Context) (rawpage.A11yNode, error) {
	return f.a11y, f.a11yErr
}
func (f *fakePage) DOMWalk(ctx context.Context) (rawpage.DOMNode, error) {
	return f.dom, f.domErr
}
func (f *fakePage) Screenshot(ctx context.Context, rect *rawpage.Rect) ([]byte, error) {
	return f.screenshot, f.screenshotErr
}
func (f *fakePage) ObserveMutations(ctx context.Context, windowMs int) (rawpage.MutationSummary, error) {
	return f.mutations, f.mutationsErr
}
func (f *fakePage) URL(ctx context.Context) (string, error) {
	return f.url, f.urlErr
}

func TestProbeURLUnavailableFallsBackToConservative(t *testing.T) {
	page := &fakePage{urlErr: errors.New("navigation aborted")}
	sig, err := Probe(context.Background(), page, false, false, nil)
	if err != nil {
		t.Fatalf("Probe should swallow per-step errors, got %v", err)
	}
	if !sig.HasCanvas || sig.A11yCoverage != 0 || sig.DOMNodeCount == 0 {
		t.Errorf("expected a conservative signal record, got %+v", sig)
	}
}

func TestProbeComputesCoverageAndNodeCount(t *testing.T) {
	page := &fakePage{
		url: "https://example.com/dashboard",
		a11y: rawpage.A11yNode{
			Role: "WebArea",
			Children: []rawpage.A11yNode{
				{Role: "button"},
				{Role: "textbox"},
			},
		},
		dom: rawpage.DOMNode{
			Tag: "body",
			Children: []rawpage.DOMNode{
				{Tag: "button"},
				{Tag: "input"},
				{Tag: "div"},
			},
		},
	}

	sig, err := Probe(context.Background(), page, false, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sig.DOMNodeCount != 4 {
		t.Errorf("expected dom node count 4 (body + 3 children), got %d", sig.DOMNodeCount)
	}
	// 2 interactive a11y nodes / 2 interactive dom nodes (button, input) = 1.0
	if sig.A11yCoverage != 1.0 {
		t.Errorf("expected a11y_coverage 1.0, got %v", sig.A11yCoverage)
	}
	if sig.URLOrigin != "example.com" {
		t.Errorf("expected url_origin 'example.com', got %q", sig.URLOrigin)
	}
}

func TestProbeCanvasPresenceDetected(t *testing.T) {
	page := &fakePage{url: "https://example.com", canvasCount: 1}
	sig, err := Probe(context.Background(), page, false, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sig.HasCanvas {
		t.Error("expected has_canvas to be true when the selector sweep finds a canvas")
	}
}

func TestProbeCanvasErrorBiasesRicherRepresentation(t *testing.T) {
	page := &fakePage{url: "https://example.com", canvasErr: errors.New("eval failed")}
	sig, err := Probe(context.Background(), page, false, false, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sig.HasCanvas {
		t.Error("expected has_canvas to default true on a probe error, biasing toward a richer representation")
	}
}

func TestProbeReturnsCachedSignalsWhenFreshAndNotForced(t *testing.T) {
	cache := NewCache(4, 0)
	cached := Signals{URLOrigin: "example.com", DOMNodeCount: 42}
	cache.Put("example.com", cached)

	calledObserve := false
	page := &fakePage{
		url:       "https://example.com",
		mutations: rawpage.MutationSummary{TotalMutations: 10, InteractiveMutations: 5},
	}
	// wrap ObserveMutations to detect whether it was actually invoked
	wrapped := &observeTrackingPage{fakePage: page, called: &calledObserve}

	sig, err := Probe(context.Background(), wrapped, true, false, cache)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calledObserve {
		t.Error("expected no probing at all when a fresh cache entry exists and recompute isn't forced")
	}
	if sig != cached {
		t.Errorf("expected the cached signals to be returned verbatim, got %+v", sig)
	}
}

func TestProbeForceRecomputeBypassesCache(t *testing.T) {
	cache := NewCache(4, 0)
	cache.Put("example.com", Signals{URLOrigin: "example.com", DOMNodeCount: 42})

	calledObserve := false
	page := &fakePage{
		url:       "https://example.com",
		mutations: rawpage.MutationSummary{TotalMutations: 10, InteractiveMutations: 5},
	}
	wrapped := &observeTrackingPage{fakePage: page, called: &calledObserve}

	sig, err := Probe(context.Background(), wrapped, true, true, cache)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !calledObserve {
		t.Error("expected forceRecompute to bypass the cache and re-probe")
	}
	if sig.DynamicRatio == nil || *sig.DynamicRatio != 0.5 {
		t.Errorf("expected a freshly computed dynamic_ratio of 0.5, got %+v", sig.DynamicRatio)
	}
}

type observeTrackingPage struct {
	*fakePage
	called *bool
}

func (o *observeTrackingPage) ObserveMutations(ctx context.Context, windowMs int) (rawpage.MutationSummary, error) {
	*o.called = true
	return o.fakePage.ObserveMutations(ctx, windowMs)
}
