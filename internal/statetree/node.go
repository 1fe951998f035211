// Package statetree defines the normalized tree representation every
// extractor produces and every differ/filter consumes.
package statetree

import (
	"sort"
	"strings"
)

// StateFlag is one bit of a Node's state set.
type StateFlag string

const (
	Disabled StateFlag = "disabled"
	Focused  StateFlag = "focused"
	Checked  StateFlag = "checked"
	Pressed  StateFlag = "pressed"
	Selected StateFlag = "selected"
	Expanded StateFlag = "expanded"
	ReadOnly StateFlag = "readonly"
	Required StateFlag = "required"
	Invalid  StateFlag = "invalid"
	Hidden   StateFlag = "hidden"
)

// StateSet is an unordered set of StateFlags.
type StateSet map[StateFlag]bool

// NewStateSet builds a StateSet from a list of flags.
func NewStateSet(flags ...StateFlag) StateSet {
	s := make(StateSet, len(flags))
	for _, f := range flags {
		s[f] = true
	}
	return s
}

// Has reports whether the flag is present.
func (s StateSet) Has(f StateFlag) bool { return s[f] }

// Equal reports whether two state sets have the same members.
func (s StateSet) Equal(other StateSet) bool {
	if len(s) != len(other) {
		return false
	}
	for f := range s {
		if !other[f] {
			return false
		}
	}
	return true
}

// Sorted returns the flags in a stable, deterministic order.
func (s StateSet) Sorted() []StateFlag {
	out := make([]StateFlag, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Origin names which extractor produced a Node.
type Origin string

const (
	OriginA11y         Origin = "a11y"
	OriginDOM          Origin = "dom"
	OriginVisionRegion Origin = "vision-region"
)

// Bounds is an axis-aligned rectangle in page coordinates.
type Bounds struct {
	X, Y, Width, Height float64
}

// Ref is a stable cross-step identifier of the form "@eN".
type Ref string

// Identity is the tuple used to anchor-match nodes across steps.
type Identity struct {
	Role             string
	NormalizedName   string
	ParentRole       string
	Level            int
}

// Fingerprint adds sibling position to an Identity for collision resolution.
// Two nodes with the same Identity and the same SiblingIndexClass are
// considered positionally equivalent.
type Fingerprint struct {
	Identity
	SiblingIndexClass int
}

// Node is one element of a StateTree.
type Node struct {
	Role     string
	Name     string
	Value    string
	HasValue bool
	State    StateSet
	Level    int
	Children []*Node
	Origin   Origin
	Bounds   *Bounds

	// VisionToken is an opaque, comparable handle for vision-region leaves
	// (e.g. a content hash of the screenshot slice). Empty for non-vision
	// nodes.
	VisionToken string

	// Ref is assigned by the reference manager; empty until assigned.
	Ref Ref

	// AriaLive carries the nearest "aria-live" ancestor value, if any,
	// inherited down the tree at extraction time so the semantic filter
	// does not need to re-walk ancestors.
	AriaLive string

	// Attrs holds the DOM extractor's bounded data-attribute subset
	// (data-testid, name, type). Empty for a11y/vision-origin nodes.
	Attrs map[string]string

	// Tag is the DOM tag name, set only for origin=dom nodes.
	Tag string
}

// NormalizeName whitespace-collapses and length-caps a name per the
// configured name_length_cap (default 200).
func NormalizeName(name string, cap int) string {
	fields := strings.Fields(name)
	collapsed := strings.Join(fields, " ")
	if cap > 0 && len(collapsed) > cap {
		collapsed = collapsed[:cap]
	}
	return collapsed
}

// ParentRoleOf returns "" for a root node (no parent), otherwise the
// parent's role — used while building an Identity.
func ParentRoleOf(parent *Node) string {
	if parent == nil {
		return ""
	}
	return parent.Role
}

// NodeIdentity computes the Identity tuple for a node given its parent.
// name is assumed already normalized (see NormalizeName).
func NodeIdentity(n *Node, parent *Node) Identity {
	return Identity{
		Role:           n.Role,
		NormalizedName: n.Name,
		ParentRole:     ParentRoleOf(parent),
		Level:          n.Level,
	}
}

// IsVisionRegion reports whether this node is a vision-region leaf.
func (n *Node) IsVisionRegion() bool { return n.Origin == OriginVisionRegion }
