package extract

import (
	"context"
	"errors"
	"testing"

	"browserlens/internal/rawpage"
	"browserlens/internal/statetree"
)

// shotPage is a minimal rawpage.Handle stand-in that only needs to answer
// Screenshot calls for these tests.
type shotPage struct {
	data []byte
	err  error
}

func (s *shotPage) QuerySelectorAllCount(ctx context.Context, selector string) (int, error) {
	return 0, nil
}
func (s *shotPage) AccessibilitySnapshot(ctx context.Context) (rawpage.A11yNode, error) {
	return rawpage.A11yNode{}, nil
}
func (s *shotPage) DOMWalk(ctx context.Context) (rawpage.DOMNode, error) {
	return rawpage.DOMNode{}, nil
}
func (s *shotPage) Screenshot(ctx context.Context, rect *rawpage.Rect) ([]byte, error) {
	return s.data, s.err
}
func (s *shotPage) ObserveMutations(ctx context.Context, windowMs int) (rawpage.MutationSummary, error) {
	return rawpage.MutationSummary{}, nil
}
func (s *shotPage) URL(ctx context.Context) (string, error) { return "", nil }

func TestHybridNoCanvasReturnsPlainA11yTree(t *testing.T) {
	a11yRoot := rawpage.A11yNode{Role: "WebArea", Children: []rawpage.A11yNode{{Role: "button", Name: "Save"}}}
	domRoot := rawpage.DOMNode{Tag: "body"}
	page := &shotPage{data: []byte("png")}

	tree, err := Hybrid(context.Background(), page, a11yRoot, domRoot, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Root.Children) != 1 || tree.Root.Children[0].Origin == statetree.OriginVisionRegion {
		t.Errorf("expected no vision-region leaf injected when no canvas is present, got %+v", tree.Root.Children)
	}
}

func TestHybridInjectsVisionRegionUnderEligibleAnchor(t *testing.T) {
	a11yRoot := rawpage.A11yNode{
		Role: "WebArea",
		Children: []rawpage.A11yNode{
			{
				Role: "region",
				Children: []rawpage.A11yNode{
					{Role: "button", Name: "Zoom"},
				},
			},
		},
	}
	domRoot := rawpage.DOMNode{
		Tag: "body",
		Children: []rawpage.DOMNode{
			{Tag: "canvas", Bounds: &rawpage.Rect{X: 1, Y: 2, Width: 300, Height: 150}},
		},
	}
	page := &shotPage{data: []byte("fakepngbytes")}

	tree, err := Hybrid(context.Background(), page, a11yRoot, domRoot, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	region := tree.Root.Children[0]
	if region.Role != "region" {
		t.Fatalf("expected the region node to anchor the injected leaf, got %+v", tree.Root.Children)
	}
	if len(region.Children) != 2 {
		t.Fatalf("expected the original button plus an injected vision-region leaf, got %d children", len(region.Children))
	}
	leaf := region.Children[len(region.Children)-1]
	if leaf.Origin != statetree.OriginVisionRegion {
		t.Errorf("expected the injected leaf to carry vision-region origin, got %q", leaf.Origin)
	}
	if leaf.Bounds == nil || leaf.Bounds.Width != 300 || leaf.Bounds.Height != 150 {
		t.Errorf("expected the leaf bounds to mirror the canvas rect, got %+v", leaf.Bounds)
	}
	if leaf.VisionToken == "" {
		t.Error("expected a non-empty vision token hash")
	}
}

func TestHybridFallsBackToRootWhenNoEligibleAnchor(t *testing.T) {
	a11yRoot := rawpage.A11yNode{Role: "WebArea", Children: []rawpage.A11yNode{{Role: "button", Name: "Save"}}}
	domRoot := rawpage.DOMNode{
		Tag:      "body",
		Children: []rawpage.DOMNode{{Tag: "canvas", Bounds: &rawpage.Rect{Width: 10, Height: 10}}},
	}
	page := &shotPage{data: []byte("x")}

	tree, err := Hybrid(context.Background(), page, a11yRoot, domRoot, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, c := range tree.Root.Children {
		if c.Origin == statetree.OriginVisionRegion {
			found = true
		}
	}
	if !found {
		t.Error("expected the leaf to be anchored at the document root when no eligible role exists")
	}
}

func TestHybridScreenshotErrorLeavesTokenEmpty(t *testing.T) {
	a11yRoot := rawpage.A11yNode{Role: "WebArea"}
	domRoot := rawpage.DOMNode{
		Tag:      "body",
		Children: []rawpage.DOMNode{{Tag: "canvas", Bounds: &rawpage.Rect{Width: 10, Height: 10}}},
	}
	page := &shotPage{err: errors.New("capture failed")}

	tree, err := Hybrid(context.Background(), page, a11yRoot, domRoot, DefaultOptions())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	leaf := tree.Root.Children[0]
	if leaf.VisionToken != "" {
		t.Errorf("expected an empty token when the screenshot call failed, got %q", leaf.VisionToken)
	}
}
