package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"browserlens/internal/rawpage"
	"browserlens/internal/statetree"
)

// anchorRoles is the set of a11y roles a vision-region leaf may be injected
// under.
var anchorRoles = map[string]bool{
	"region": true, "main": true, "figure": true, "application": true,
}

// Hybrid runs the A11y extractor, then injects a vision-region leaf for
// each canvas/WebGL element found in the DOM tree. Every leaf is anchored
// under the first a11y node, in document order, with an eligible role (or
// under the document root when there is none); the canvas's own position
// in the DOM does not choose the anchor. It is the
// one extractor that performs its own extra page interaction (cropped
// screenshots for vision tokens), since that data isn't available from the
// trees alone.
func Hybrid(ctx context.Context, page rawpage.Handle, a11yRoot rawpage.A11yNode, domRoot rawpage.DOMNode, opts Options) (*statetree.StateTree, error) {
	tree := A11y(a11yRoot, opts)

	canvases := findCanvasBounds(domRoot)
	if len(canvases) == 0 {
		return tree, nil
	}

	anchor := findAnchor(tree.Root, anchorRoles)
	for _, b := range canvases {
		shot, err := page.Screenshot(ctx, &b)
		var token string
		if err == nil {
			token = visionTokenHash(shot)
		}
		leaf := &statetree.Node{
			Role:        "generic",
			Origin:      statetree.OriginVisionRegion,
			Bounds:      &statetree.Bounds{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height},
			VisionToken: token,
		}
		anchor.Children = append(anchor.Children, leaf)
	}
	return tree, nil
}

// findAnchor returns the first node (pre-order) whose role is eligible,
// falling back to the tree root if none is found.
func findAnchor(root *statetree.Node, eligible map[string]bool) *statetree.Node {
	var found *statetree.Node
	var rec func(n *statetree.Node)
	rec = func(n *statetree.Node) {
		if found != nil {
			return
		}
		if eligible[n.Role] {
			found = n
			return
		}
		for _, c := range n.Children {
			rec(c)
			if found != nil {
				return
			}
		}
	}
	rec(root)
	if found == nil {
		return root
	}
	return found
}

func findCanvasBounds(n rawpage.DOMNode) []rawpage.Rect {
	var out []rawpage.Rect
	if strings.EqualFold(n.Tag, "canvas") && n.Bounds != nil {
		out = append(out, *n.Bounds)
	}
	for _, c := range n.Children {
		out = append(out, findCanvasBounds(c)...)
	}
	return out
}

func visionTokenHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
