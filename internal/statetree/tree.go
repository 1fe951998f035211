package statetree

// StateTree is a rooted, ordered tree of Nodes. Root is always present,
// even when its only child is the entire distilled subtree.
type StateTree struct {
	Root *Node
}

// NewDocument builds the synthetic "document" root every extractor rooted
// its tree at.
func NewDocument() *StateTree {
	return &StateTree{Root: &Node{Role: "document", State: StateSet{}}}
}

// Walk visits every node in the tree in document order, passing the node
// and its parent (nil for the root).
func (t *StateTree) Walk(fn func(n, parent *Node)) {
	if t == nil || t.Root == nil {
		return
	}
	var rec func(n, parent *Node)
	rec = func(n, parent *Node) {
		fn(n, parent)
		for _, c := range n.Children {
			rec(c, n)
		}
	}
	rec(t.Root, nil)
}

// Flat is a node plus the bookkeeping the differ and ref manager need:
// its parent pointer and its sibling index among same-parent children.
type Flat struct {
	Node        *Node
	Parent      *Node
	SiblingIdx  int
}

// Flatten returns every node in document order with parent/sibling info.
// Nodes carrying the hidden state flag are excluded, per the differ's
// "invisible nodes are excluded from both trees before diffing" rule —
// callers that need the full tree (e.g. a renderer) should not use Flatten.
func (t *StateTree) Flatten() []Flat {
	var out []Flat
	if t == nil || t.Root == nil {
		return out
	}
	var rec func(n, parent *Node)
	rec = func(n, parent *Node) {
		if n.State.Has(Hidden) {
			return
		}
		idx := 0
		if parent != nil {
			for i, c := range parent.Children {
				if c == n {
					idx = i
					break
				}
			}
		}
		out = append(out, Flat{Node: n, Parent: parent, SiblingIdx: idx})
		for _, c := range n.Children {
			rec(c, n)
		}
	}
	rec(t.Root, nil)
	return out
}

// Count returns the number of non-hidden nodes in the tree.
func (t *StateTree) Count() int {
	return len(t.Flatten())
}

// ByRef indexes a tree's nodes by their assigned Ref.
func (t *StateTree) ByRef() map[Ref]*Node {
	idx := make(map[Ref]*Node)
	t.Walk(func(n, _ *Node) {
		if n.Ref != "" {
			idx[n.Ref] = n
		}
	})
	return idx
}
