// Package rodpage adapts a go-rod page into the rawpage.Handle contract
// BrowserLens's core consumes: JS is injected and evaluated page-side via
// page.Eval, CDP domains are called directly for anything JS can't see
// (the accessibility tree), and no HTML parsing happens in Go.
package rodpage

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"browserlens/internal/rawpage"
)

// Page wraps a *rod.Page to satisfy rawpage.Handle.
type Page struct {
	page *rod.Page
}

// New wraps an already-attached rod.Page.
func New(page *rod.Page) *Page {
	return &Page{page: page}
}

// QuerySelectorAllCount returns the number of elements matching selector.
func (p *Page) QuerySelectorAllCount(ctx context.Context, selector string) (int, error) {
	res, err := p.page.Context(ctx).Eval(`(sel) => document.querySelectorAll(sel).length`, selector)
	if err != nil {
		return 0, fmt.Errorf("query selector count: %w", err)
	}
	return int(res.Value.Int()), nil
}

// AccessibilitySnapshot returns the full accessibility tree via CDP.
func (p *Page) AccessibilitySnapshot(ctx context.Context) (rawpage.A11yNode, error) {
	target := p.page.Context(ctx)
	nodes, err := proto.AccessibilityGetFullAXTree{}.Call(target)
	if err != nil {
		return rawpage.A11yNode{}, fmt.Errorf("accessibility snapshot: %w", err)
	}
	if len(nodes.Nodes) == 0 {
		return rawpage.A11yNode{Role: "WebArea"}, nil
	}
	byID := make(map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, len(nodes.Nodes))
	for _, n := range nodes.Nodes {
		n := n
		byID[n.NodeID] = n
	}
	var root *proto.AccessibilityAXNode
	for _, n := range nodes.Nodes {
		if len(n.ParentID) == 0 {
			root = n
			break
		}
	}
	if root == nil {
		root = nodes.Nodes[0]
	}
	return convertAXNode(root, byID, 0), nil
}

func convertAXNode(n *proto.AccessibilityAXNode, byID map[proto.AccessibilityAXNodeID]*proto.AccessibilityAXNode, level int) rawpage.A11yNode {
	out := rawpage.A11yNode{Level: level}
	if n.Role != nil {
		out.Role = n.Role.Value.Str()
	}
	if n.Name != nil {
		out.Name = n.Name.Value.Str()
	}
	if n.Value != nil {
		out.Value = n.Value.Value.Str()
	}
	for _, prop := range n.Properties {
		if string(prop.Name) == "live" {
			out.Live = prop.Value.Value.Str()
			continue
		}
		if isA11yStateProp(string(prop.Name)) && prop.Value.Value.Bool() {
			out.States = append(out.States, string(prop.Name))
		}
	}
	for _, childID := range n.ChildIDs {
		if child, ok := byID[childID]; ok {
			out.Children = append(out.Children, convertAXNode(child, byID, level+1))
		}
	}
	return out
}

func isA11yStateProp(name string) bool {
	switch name {
	case "disabled", "focused", "checked", "pressed", "selected", "expanded", "readonly", "required", "invalid", "hidden":
		return true
	}
	return false
}

// domWalkScript returns a nested JSON tree of every element under
// document.body, each carrying its own Visible flag (filtering is left to
// the DOM extractor), matching the shape rawpage.DOMNode expects field-for-field so no
// intermediate decoding struct is needed beyond json.Unmarshal.
const domWalkScript = `
() => {
	function attrsOf(el) {
		const out = {};
		for (const a of el.attributes) out[a.name] = a.value;
		return out;
	}
	function statesOf(el) {
		const states = [];
		if (el.disabled) states.push('disabled');
		if (el.checked) states.push('checked');
		if (el.getAttribute('aria-expanded') === 'true') states.push('expanded');
		if (el.getAttribute('aria-selected') === 'true') states.push('selected');
		if (el.getAttribute('aria-invalid') === 'true') states.push('invalid');
		if (el.required) states.push('required');
		if (el.readOnly) states.push('readonly');
		return states;
	}
	function boundsOf(el) {
		const r = el.getBoundingClientRect();
		return { X: r.x, Y: r.y, Width: r.width, Height: r.height };
	}
	function visit(el) {
		const rect = el.getBoundingClientRect();
		const style = getComputedStyle(el);
		const visible = rect.width > 0 && rect.height > 0 && style.display !== 'none' && style.visibility !== 'hidden';
		const node = {
			Tag: el.tagName.toLowerCase(),
			Role: el.getAttribute('role') || '',
			Name: el.getAttribute('aria-label') || el.getAttribute('name') || '',
			Value: el.value !== undefined ? String(el.value) : '',
			States: statesOf(el),
			Attrs: attrsOf(el),
			Text: el.children.length === 0 ? (el.textContent || '').trim() : '',
			Visible: visible,
			Children: []
		};
		if (el.tagName.toLowerCase() === 'canvas') node.Bounds = boundsOf(el);
		for (const child of el.children) node.Children.push(visit(child));
		return node;
	}
	return visit(document.body);
}
`

// DOMWalk runs domWalkScript and decodes its JSON straight into
// rawpage.DOMNode, since the script's field names and nesting match exactly.
func (p *Page) DOMWalk(ctx context.Context) (rawpage.DOMNode, error) {
	res, err := p.page.Context(ctx).Eval(domWalkScript)
	if err != nil {
		return rawpage.DOMNode{}, fmt.Errorf("dom walk: %w", err)
	}
	var out rawpage.DOMNode
	if err := res.Value.Unmarshal(&out); err != nil {
		return rawpage.DOMNode{}, fmt.Errorf("decode dom walk: %w", err)
	}
	return out, nil
}

// Screenshot returns PNG bytes, optionally cropped to rect.
func (p *Page) Screenshot(ctx context.Context, rect *rawpage.Rect) ([]byte, error) {
	target := p.page.Context(ctx)
	if rect == nil {
		return target.Screenshot(true, &proto.PageCaptureScreenshot{
			Format: proto.PageCaptureScreenshotFormatPng,
		})
	}
	clip := &proto.PageViewport{
		X:      rect.X,
		Y:      rect.Y,
		Width:  rect.Width,
		Height: rect.Height,
		Scale:  1,
	}
	return target.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
		Clip:   clip,
	})
}

// observeMutationsScript installs a MutationObserver, sleeps for windowMs
// client-side via a returned promise, and reports a total/interactive split.
const observeMutationsScript = `
(windowMs) => new Promise((resolve) => {
	let total = 0;
	let interactive = 0;
	const interactiveTags = new Set(['BUTTON', 'A', 'INPUT', 'SELECT', 'TEXTAREA']);
	const isInteractive = (node) => {
		if (!(node instanceof Element)) return false;
		if (interactiveTags.has(node.tagName)) return true;
		if (node.hasAttribute && node.hasAttribute('role')) return true;
		return false;
	};
	const observer = new MutationObserver((mutations) => {
		for (const m of mutations) {
			total++;
			const nodes = [...m.addedNodes, ...m.removedNodes, m.target];
			if (nodes.some(isInteractive)) interactive++;
		}
	});
	observer.observe(document.body, { childList: true, subtree: true, attributes: true });
	setTimeout(() => {
		observer.disconnect();
		resolve({ TotalMutations: total, InteractiveMutations: interactive });
	}, windowMs);
})
`

// ObserveMutations samples DOM mutations for the given window (milliseconds).
func (p *Page) ObserveMutations(ctx context.Context, windowMs int) (rawpage.MutationSummary, error) {
	timeout := time.Duration(windowMs)*time.Millisecond + 2*time.Second
	evalCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := p.page.Context(evalCtx).Eval(observeMutationsScript, windowMs)
	if err != nil {
		return rawpage.MutationSummary{}, fmt.Errorf("observe mutations: %w", err)
	}
	var out rawpage.MutationSummary
	if err := res.Value.Unmarshal(&out); err != nil {
		return rawpage.MutationSummary{}, fmt.Errorf("decode mutation summary: %w", err)
	}
	return out, nil
}

// URL returns the page's current URL.
func (p *Page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("page info: %w", err)
	}
	return info.URL, nil
}
