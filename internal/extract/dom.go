package extract

import (
	"strings"

	"browserlens/internal/rawpage"
	"browserlens/internal/statetree"
)

// allowedDataAttrs is the fixed attribute subset the distilled DOM
// extractor carries over.
var allowedDataAttrs = []string{"data-testid", "name", "type"}

// DOM walks the DOM, keeping only visible or interactive elements
//. Dropped wrapper elements have their children promoted into
// the nearest kept ancestor, the same collapsing the A11y extractor does
// for presentational nodes.
func DOM(root rawpage.DOMNode, opts Options) *statetree.StateTree {
	tree := statetree.NewDocument()
	tree.Root.Children = convertDOMChildren(root, opts, 0, "")
	return tree
}

// convertDOMChildren walks n's children, carrying down liveAncestor: the
// nearest enclosing aria-live value (n's own, if set, else whatever was
// inherited from further up).
func convertDOMChildren(n rawpage.DOMNode, opts Options, level int, liveAncestor string) []*statetree.Node {
	if v := n.Attrs["aria-live"]; v != "" {
		liveAncestor = v
	}
	var out []*statetree.Node
	for _, c := range n.Children {
		out = append(out, convertDOMNode(c, opts, level+1, liveAncestor)...)
	}
	return out
}

func convertDOMNode(n rawpage.DOMNode, opts Options, level int, liveAncestor string) []*statetree.Node {
	if !shouldKeepDOMNode(n) {
		return convertDOMChildren(n, opts, level-1, liveAncestor)
	}

	if v := n.Attrs["aria-live"]; v != "" {
		liveAncestor = v
	}

	node := &statetree.Node{
		Role:     computeDOMRole(n),
		Name:     statetree.NormalizeName(n.Name, opts.NameLengthCap),
		Value:    n.Value,
		State:    stateSetFromStrings(n.States),
		Level:    level,
		Origin:   statetree.OriginDOM,
		Tag:      strings.ToLower(n.Tag),
		Attrs:    filterAttrs(n.Attrs),
		AriaLive: liveAncestor,
	}
	if n.Value != "" {
		node.HasValue = true
	}

	if text := strings.TrimSpace(n.Text); text != "" && len(n.Children) == 0 {
		node.Role = "text"
		node.Name = statetree.NormalizeName(text, opts.DOMTextCap)
	}

	node.Children = convertDOMChildren(n, opts, level, liveAncestor)
	return []*statetree.Node{node}
}

func shouldKeepDOMNode(n rawpage.DOMNode) bool {
	if n.Attrs["aria-hidden"] == "true" {
		return false
	}
	if n.Visible {
		return true
	}
	return isInteractiveTag(n)
}

func isInteractiveTag(n rawpage.DOMNode) bool {
	switch strings.ToLower(n.Tag) {
	case "button", "a", "input", "select", "textarea":
		return true
	}
	if n.Role != "" {
		return true
	}
	return false
}

func computeDOMRole(n rawpage.DOMNode) string {
	if n.Role != "" {
		return n.Role
	}
	switch strings.ToLower(n.Tag) {
	case "a":
		return "link"
	case "button":
		return "button"
	case "input":
		return "textbox"
	case "select":
		return "combobox"
	case "textarea":
		return "textbox"
	case "img":
		return "img"
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return "heading"
	}
	return "generic"
}

func filterAttrs(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := map[string]string{}
	for _, k := range allowedDataAttrs {
		if v, ok := attrs[k]; ok {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
