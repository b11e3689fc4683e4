// CLAUDE:SUMMARY Parses Android layout XML into a node tree and emits Element records for UI widgets.
// Package layout turns Android-style XML layout markup into Element records,
// the normalized input of the alt-text inference engine.
//
// Only widgets whose simple class name is in the UIClass allow-list produce a
// record. Parent and sibling context is computed from the raw tree, so
// structural containers still contribute their class, id and text.
//
// Usage:
//
//	elems, err := layout.Parse(markup)
//	var bad *layout.MalformedInputError
//	if errors.As(err, &bad) { ... zero elements ... }
package layout

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	androidNS = "http://schemas.android.com/apk/res/android"
	toolsNS   = "http://schemas.android.com/tools"
)

// Options tunes a parse.
type Options struct {
	// AppContext is stamped on every Element. When empty, the root's
	// tools:context attribute is used if present.
	AppContext string
}

// node is one element of the raw layout tree.
type node struct {
	class    string
	attrs    []xml.Attr
	children []*node
}

// attr looks up a namespaced attribute. The namespace matches either its
// declared URI or, when the document never declared it, the bare prefix.
func (n *node) attr(uri, prefix, local string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name.Local == local && (a.Name.Space == uri || a.Name.Space == prefix) {
			return a.Value, true
		}
	}
	return "", false
}

func (n *node) android(local string) string {
	v, _ := n.attr(androidNS, "android", local)
	return v
}

func (n *node) flag(local string, def bool) bool {
	v, ok := n.attr(androidNS, "android", local)
	if !ok {
		return def
	}
	return strings.EqualFold(v, "true")
}

// Parse extracts Element records from layout markup.
func Parse(markup []byte) ([]Element, error) {
	return ParseWithOptions(markup, Options{})
}

// ParseWithOptions is Parse with explicit options.
func ParseWithOptions(markup []byte, opts Options) ([]Element, error) {
	return ParseReader(bytes.NewReader(markup), opts)
}

// ParseFile reads and parses a layout file.
func ParseFile(path string, opts Options) ([]Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout: read %s: %w", path, err)
	}
	return ParseWithOptions(data, opts)
}

// ParseReader extracts Element records from a markup stream.
func ParseReader(r io.Reader, opts Options) ([]Element, error) {
	root, err := buildTree(r)
	if err != nil {
		return nil, err
	}

	appContext := opts.AppContext
	if appContext == "" {
		appContext, _ = root.attr(toolsNS, "tools", "context")
	}

	parents := buildParents(root)

	var elems []Element
	walk(root, func(n *node) {
		if !IsUIClass(n.class) {
			return
		}
		elems = append(elems, toElement(n, parents, appContext))
	})
	return elems, nil
}

// buildTree decodes the whole document. Any decoder error, an empty document,
// more than one root element or text outside the root is a MalformedInputError.
func buildTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	var root *node
	var stack []*node

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(dec, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{class: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, malformed(dec, errors.New("multiple root elements"))
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 && len(bytes.TrimSpace(t)) > 0 {
				return nil, malformed(dec, errors.New("text outside root element"))
			}
		}
	}

	if root == nil {
		return nil, malformed(dec, errors.New("no root element"))
	}
	if len(stack) != 0 {
		return nil, malformed(dec, io.ErrUnexpectedEOF)
	}
	return root, nil
}

func malformed(dec *xml.Decoder, err error) error {
	e := &MalformedInputError{Offset: dec.InputOffset(), Err: err}
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		e.Line = syn.Line
	} else {
		e.Line, _ = dec.InputPos()
	}
	return e
}

// buildParents maps every non-root node to its immediate parent.
func buildParents(root *node) map[*node]*node {
	parents := make(map[*node]*node)
	var visit func(n *node)
	visit = func(n *node) {
		for _, c := range n.children {
			parents[c] = n
			visit(c)
		}
	}
	visit(root)
	return parents
}

// walk visits the tree in document (pre-)order.
func walk(n *node, fn func(*node)) {
	fn(n)
	for _, c := range n.children {
		walk(c, fn)
	}
}

func toElement(n *node, parents map[*node]*node, appContext string) Element {
	el := Element{
		ResourceID:         NormalizeID(n.android("id")),
		ClassName:          n.class,
		Text:               n.android("text"),
		ContentDescription: n.android("contentDescription"),
		Hint:               n.android("hint"),
		Clickable:          n.flag("clickable", false),
		Focusable:          n.flag("focusable", false),
		Enabled:            n.flag("enabled", true),
		Bounds:             bounds(n),
		AppContext:         appContext,
	}

	parent, ok := parents[n]
	if !ok {
		return el
	}
	el.ParentID = NormalizeID(parent.android("id"))
	el.ParentContext = summarize(parent)

	var ctx []string
	for _, sib := range parent.children {
		if sib == n {
			continue
		}
		ctx = append(ctx, summarize(sib))
		if id := NormalizeID(sib.android("id")); id != "" {
			el.SiblingIDs = append(el.SiblingIDs, id)
		}
	}
	el.SiblingContext = strings.Join(ctx, " ")
	return el
}

// summarize formats a node as "Class:text", "Class:id" or "Class".
func summarize(n *node) string {
	class := SimpleName(n.class)
	if text := n.android("text"); text != "" {
		return class + ":" + text
	}
	if id := NormalizeID(n.android("id")); id != "" {
		return class + ":" + id
	}
	return class
}

func bounds(n *node) string {
	w := n.android("layout_width")
	h := n.android("layout_height")
	if w == "" || h == "" {
		return ""
	}
	return "width=" + w + ", height=" + h
}

// NormalizeID strips resource reference prefixes that declare or reference
// an identifier: "@+id/", "@id/", "@android:id/", "@+pkg:id/".
// Other values are returned unchanged.
func NormalizeID(raw string) string {
	if !strings.HasPrefix(raw, "@") {
		return raw
	}
	rest := strings.TrimPrefix(raw[1:], "+")
	i := strings.Index(rest, "id/")
	if i < 0 {
		return raw
	}
	pkg := rest[:i]
	if pkg != "" && (!strings.HasSuffix(pkg, ":") || strings.ContainsRune(pkg, '/')) {
		return raw
	}
	return rest[i+len("id/"):]
}
