// Package differ implements an order-independent tree matcher that aligns
// two StateTrees and emits a typed Delta.
package differ

import (
	"strconv"
	"strings"

	"browserlens/internal/statetree"
)

// Diff matches old and new, then builds a Delta from the match. Most
// callers go through this; the orchestrator instead calls Match and
// BuildDelta separately so the same match result can also drive ref
// assignment without matching twice.
func Diff(old, new *statetree.StateTree) *statetree.Delta {
	m := Match(old, new)
	return BuildDelta(old, new, m)
}

// BuildDelta constructs a Delta from an already-computed Matching. By the
// time this runs, every node of new must already have its Ref assigned:
// the orchestrator assigns refs, via the same Matching, before diffing.
func BuildDelta(old, new *statetree.StateTree, m Matching) *statetree.Delta {
	delta := &statetree.Delta{
		UnchangedSummary: statetree.UnchangedSummary{},
		CauseHint:        statetree.CauseUnknown,
	}

	oldToNew := make(map[*statetree.Node]*statetree.Node, len(m.NewToOld))
	for n, o := range m.NewToOld {
		oldToNew[o] = n
	}

	newParent := make(map[*statetree.Node]*statetree.Node)
	new.Walk(func(n, p *statetree.Node) { newParent[n] = p })
	oldParent := make(map[*statetree.Node]*statetree.Node)
	old.Walk(func(n, p *statetree.Node) { oldParent[n] = p })

	// Removed: old nodes with no counterpart in new.
	old.Walk(func(n, _ *statetree.Node) {
		if n.State.Has(statetree.Hidden) {
			return
		}
		if _, ok := oldToNew[n]; !ok {
			delta.Removed = append(delta.Removed, n.Ref)
		}
	})

	// Changed / Moved for matched pairs.
	for newNode, oldNode := range m.NewToOld {
		np := newParent[newNode]
		op := oldParent[oldNode]
		moved := false
		if np == nil || op == nil {
			moved = np != op
		} else if oldToNew[op] != np {
			moved = true
		}
		if moved {
			var oldParentRef, newParentRef statetree.Ref
			if op != nil {
				oldParentRef = op.Ref
			}
			if np != nil {
				newParentRef = np.Ref
			}
			delta.Moved = append(delta.Moved, statetree.Moved{
				Ref:       newNode.Ref,
				OldParent: oldParentRef,
				NewParent: newParentRef,
			})
		}

		changed := fieldChanges(oldNode, newNode)
		delta.Changed = append(delta.Changed, changed...)

		if !moved && len(changed) == 0 {
			delta.UnchangedSummary[newNode.Role]++
		}
	}

	// Added: new nodes with no counterpart in old, reporting only the
	// topmost node of each new subtree.
	new.Walk(func(n, p *statetree.Node) {
		if n.State.Has(statetree.Hidden) {
			return
		}
		if _, ok := m.NewToOld[n]; ok {
			return
		}
		if p != nil {
			if _, parentAlsoAdded := m.NewToOld[p]; !parentAlsoAdded && p != new.Root {
				// parent itself unmatched (added) and not root: this node
				// is part of that ancestor's subtree, already reported.
				return
			}
		}
		pos := 0
		if p != nil {
			for i, c := range p.Children {
				if c == n {
					pos = i
					break
				}
			}
		}
		var anchorRef statetree.Ref
		if p != nil {
			anchorRef = p.Ref
		}
		delta.Added = append(delta.Added, statetree.Added{
			Anchor: statetree.Anchor{ParentRef: anchorRef, Position: pos},
			Root:   n,
		})
	})

	return delta
}

func fieldChanges(o, n *statetree.Node) []statetree.Changed {
	var out []statetree.Changed
	if n.IsVisionRegion() {
		if oldBounds := boundsKey(o.Bounds); oldBounds != boundsKey(n.Bounds) {
			out = append(out, statetree.Changed{Ref: n.Ref, Field: statetree.FieldValue, Old: oldBounds, New: boundsKey(n.Bounds)})
		}
		return out
	}
	if o.Name != n.Name {
		out = append(out, statetree.Changed{Ref: n.Ref, Field: statetree.FieldName, Old: o.Name, New: n.Name})
	}
	if normalizeValue(o.Value) != normalizeValue(n.Value) {
		out = append(out, statetree.Changed{Ref: n.Ref, Field: statetree.FieldValue, Old: o.Value, New: n.Value})
	}
	if !o.State.Equal(n.State) {
		out = append(out, statetree.Changed{
			Ref:   n.Ref,
			Field: statetree.FieldState,
			Old:   joinFlags(o.State),
			New:   joinFlags(n.State),
		})
	}
	if o.Level != n.Level {
		out = append(out, statetree.Changed{
			Ref:   n.Ref,
			Field: statetree.FieldLevel,
			Old:   strconv.Itoa(o.Level),
			New:   strconv.Itoa(n.Level),
		})
	}
	return out
}

func boundsKey(b *statetree.Bounds) string {
	if b == nil {
		return ""
	}
	return strconv.FormatFloat(b.X, 'f', 1, 64) + "," + strconv.FormatFloat(b.Y, 'f', 1, 64) + "," +
		strconv.FormatFloat(b.Width, 'f', 1, 64) + "," + strconv.FormatFloat(b.Height, 'f', 1, 64)
}

// normalizeValue collapses whitespace before comparing values; comparison
// stays case-sensitive otherwise.
func normalizeValue(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func joinFlags(s statetree.StateSet) string {
	flags := s.Sorted()
	strs := make([]string, len(flags))
	for i, f := range flags {
		strs[i] = string(f)
	}
	return strings.Join(strs, ",")
}

