// Package refs implements the reference manager: a session-wide bijection
// between semantic node identities and stable "@eN" tokens, built as a
// step-over-step matcher-coordinated reuse table.
package refs

import (
	"fmt"

	"browserlens/internal/statetree"
)

// DefaultSessionCap is the default cap on live refs per session.
const DefaultSessionCap = 65535

// Manager allocates and reuses @eN tokens for one session.
type Manager struct {
	next int
	cap  int
}

// NewManager builds a ref manager with the given session cap.
func NewManager(sessionCap int) *Manager {
	if sessionCap <= 0 {
		sessionCap = DefaultSessionCap
	}
	return &Manager{next: 1, cap: sessionCap}
}

// Assign walks newTree in document order, giving every node a Ref: reused
// from matched (ref string) when the matcher declares equivalence, else a
// freshly allocated token. matched maps a new node to the old tree's ref it
// was declared equivalent to (nil/empty for unmatched nodes).
//
// Returns true if the session cap would be exceeded, in which case the
// manager compacts by rekeying only the nodes present in newTree and the
// caller must treat the step as a forced full emission.
func (m *Manager) Assign(newTree *statetree.StateTree, matched map[*statetree.Node]statetree.Ref) (overflow bool) {
	// Move the counter past any reused ref at or above it, so a fresh
	// allocation never repeats a ref already present in newTree.
	for _, r := range matched {
		var k int
		if _, err := fmt.Sscanf(string(r), "@e%d", &k); err == nil && k >= m.next {
			m.next = k + 1
		}
	}

	var assign func(n *statetree.Node)
	assigned := make(map[*statetree.Node]bool)
	count := m.next - 1

	assign = func(n *statetree.Node) {
		if reused, ok := matched[n]; ok && reused != "" {
			n.Ref = reused
		} else {
			if count >= m.cap {
				overflow = true
				n.Ref = ""
			} else {
				n.Ref = statetree.Ref(fmt.Sprintf("@e%d", m.next))
				m.next++
				count++
			}
		}
		assigned[n] = true
		for _, c := range n.Children {
			assign(c)
		}
	}
	if newTree != nil && newTree.Root != nil {
		assign(newTree.Root)
	}

	if overflow {
		m.compact(newTree)
	}
	return overflow
}

// compact rekeys every node currently present in tree starting from @e1,
// discarding the old allocation. The caller is responsible for
// invalidating the diff for this step.
func (m *Manager) compact(tree *statetree.StateTree) {
	m.next = 1
	if tree == nil || tree.Root == nil {
		return
	}
	var rec func(n *statetree.Node)
	rec = func(n *statetree.Node) {
		n.Ref = statetree.Ref(fmt.Sprintf("@e%d", m.next))
		m.next++
		for _, c := range n.Children {
			rec(c)
		}
	}
	rec(tree.Root)
}

// Count returns how many refs have been allocated so far this session.
func (m *Manager) Count() int { return m.next - 1 }
