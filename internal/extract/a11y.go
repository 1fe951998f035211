package extract

import (
	"browserlens/internal/rawpage"
	"browserlens/internal/statetree"
)

// A11y walks the full accessibility tree. Nodes whose role is
// "none"/"presentation" are dropped and their children collapsed into the
// parent. Interactive nodes keep their state and value; the focused node's
// identity survives via the `focused` flag.
func A11y(root rawpage.A11yNode, opts Options) *statetree.StateTree {
	tree := statetree.NewDocument()
	tree.Root.Children = convertA11yChildren(root, opts, "")
	return tree
}

// convertA11yChildren walks n's children, carrying down liveAncestor: the
// nearest enclosing aria-live value (n's own, if set, else whatever was
// inherited from further up).
func convertA11yChildren(n rawpage.A11yNode, opts Options, liveAncestor string) []*statetree.Node {
	if n.Live != "" {
		liveAncestor = n.Live
	}
	var out []*statetree.Node
	for _, c := range n.Children {
		out = append(out, convertA11yNode(c, opts, liveAncestor)...)
	}
	return out
}

// convertA11yNode returns zero nodes (presentational, collapsed), or one
// node with its own converted children.
func convertA11yNode(n rawpage.A11yNode, opts Options, liveAncestor string) []*statetree.Node {
	if isPresentational(n.Role) {
		return convertA11yChildren(n, opts, liveAncestor)
	}
	if n.Live != "" {
		liveAncestor = n.Live
	}
	node := &statetree.Node{
		Role:     roleOrGeneric(n.Role),
		Name:     statetree.NormalizeName(n.Name, opts.NameLengthCap),
		Value:    n.Value,
		State:    stateSetFromStrings(n.States),
		Level:    n.Level,
		Origin:   statetree.OriginA11y,
		AriaLive: liveAncestor,
	}
	if n.Value != "" {
		node.HasValue = true
	}
	node.Children = convertA11yChildren(n, opts, liveAncestor)
	return []*statetree.Node{node}
}

func roleOrGeneric(role string) string {
	if role == "" {
		return "generic"
	}
	return role
}
