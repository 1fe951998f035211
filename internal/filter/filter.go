// Package filter implements the semantic noise filter: removes cosmetic
// changes from a Delta before it is emitted to the caller.
package filter

import "browserlens/internal/statetree"

// Predicate decides whether a single Changed entry is noise and should be
// discarded. ctx carries the node's new-tree and old-tree context;
// the filter is pluggable — a caller may supply a different ordered list.
type Predicate func(ctx Context, c statetree.Changed) bool

// Context gives predicates the node context a bare (ref, field, old, new)
// tuple doesn't carry.
type Context struct {
	Node         *statetree.Node // new-tree node this change applies to
	OldNode      *statetree.Node // matched old-tree node, for before-state checks
	ParentRole   string
}

// DefaultPredicates is the built-in noise predicate list, evaluated with
// short-circuit OR.
func DefaultPredicates() []Predicate {
	return []Predicate{
		statusTimerMarquee,
		ariaLivePolite,
		progressbarStateToggle,
		carouselTablistReorder,
		visionBoundsOnly,
	}
}

func statusTimerMarquee(ctx Context, c statetree.Changed) bool {
	if ctx.Node == nil {
		return false
	}
	switch ctx.Node.Role {
	case "status", "timer", "marquee":
		return c.Field == statetree.FieldName || c.Field == statetree.FieldValue
	}
	return false
}

func ariaLivePolite(ctx Context, c statetree.Changed) bool {
	if ctx.Node == nil || ctx.Node.AriaLive != "polite" {
		return false
	}
	return c.Field == statetree.FieldName || c.Field == statetree.FieldValue
}

func progressbarStateToggle(ctx Context, c statetree.Changed) bool {
	if ctx.Node == nil || ctx.Node.Role != "progressbar" {
		return false
	}
	return c.Field == statetree.FieldState
}

// carouselTablistReorder is mostly defensive: the differ doesn't surface a
// pure same-parent reorder as a Changed/Moved entry at all (nodes keep
// their identity and parent), so this predicate only fires for the rare
// case where a reorder was reported anyway (e.g. a level/index change).
func carouselTablistReorder(ctx Context, c statetree.Changed) bool {
	if ctx.ParentRole != "carousel" && ctx.ParentRole != "tablist" {
		return false
	}
	return c.Field == statetree.FieldLevel
}

func visionBoundsOnly(ctx Context, c statetree.Changed) bool {
	if ctx.Node == nil || ctx.OldNode == nil || !ctx.Node.IsVisionRegion() {
		return false
	}
	if c.Field != statetree.FieldValue {
		return false
	}
	return ctx.OldNode.VisionToken == ctx.Node.VisionToken
}

// Apply removes every Changed entry any predicate (short-circuit OR)
// declares noise, tallying discards into UnchangedSummary's noise bucket.
// Filtering an already-filtered delta is a no-op: a discarded entry is
// removed from Changed entirely, so a second pass has nothing left to
// match against.
func Apply(delta *statetree.Delta, newTree, oldTree *statetree.StateTree, predicates []Predicate) *statetree.Delta {
	if delta == nil {
		return nil
	}
	if predicates == nil {
		predicates = DefaultPredicates()
	}

	newByRef := newTree.ByRef()
	oldByRef := oldTree.ByRef()
	parentRole := parentRoleIndex(newTree)

	kept := delta.Changed[:0:0]
	noise := 0
	for _, c := range delta.Changed {
		ctx := Context{
			Node:       newByRef[c.Ref],
			OldNode:    oldByRef[c.Ref],
			ParentRole: parentRole[c.Ref],
		}
		discard := false
		for _, p := range predicates {
			if p(ctx, c) {
				discard = true
				break
			}
		}
		if discard {
			noise++
			continue
		}
		kept = append(kept, c)
	}

	out := &statetree.Delta{
		Added:            delta.Added,
		Removed:          delta.Removed,
		Changed:          kept,
		Moved:            delta.Moved,
		UnchangedSummary: cloneSummary(delta.UnchangedSummary),
		CauseHint:        delta.CauseHint,
	}
	if noise > 0 {
		out.UnchangedSummary[statetree.NoiseBucket] += noise
	}
	return out
}

func parentRoleIndex(tree *statetree.StateTree) map[statetree.Ref]string {
	idx := make(map[statetree.Ref]string)
	tree.Walk(func(n, parent *statetree.Node) {
		if parent != nil {
			idx[n.Ref] = parent.Role
		}
	})
	return idx
}

func cloneSummary(s statetree.UnchangedSummary) statetree.UnchangedSummary {
	out := make(statetree.UnchangedSummary, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
