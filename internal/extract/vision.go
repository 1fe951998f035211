package extract

import (
	"context"

	"browserlens/internal/rawpage"
	"browserlens/internal/statetree"
)

// Vision produces a tree with a single vision-region child carrying the
// full-page screenshot handle and no semantic children.
func Vision(ctx context.Context, page rawpage.Handle) (*statetree.StateTree, error) {
	tree := statetree.NewDocument()

	shot, err := page.Screenshot(ctx, nil)
	if err != nil {
		return nil, err
	}

	leaf := &statetree.Node{
		Role:        "generic",
		Origin:      statetree.OriginVisionRegion,
		Bounds:      &statetree.Bounds{},
		VisionToken: visionTokenHash(shot),
	}
	tree.Root.Children = []*statetree.Node{leaf}
	return tree, nil
}
