package dom

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// maxDocumentSize bounds ParseFile input.
const maxDocumentSize = 8 * 1024 * 1024 // 8MB

// Document is a parsed HTML document that can be queried by selector.
// It is safe for concurrent use.
type Document struct {
	mu   sync.RWMutex
	root *html.Node
}

// Element is an element node inside a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseString parses an HTML document held in a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile reads and parses the HTML document at path.
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open document: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}
	if info.Size() > maxDocumentSize {
		return nil, fmt.Errorf("document too large: %d bytes (max %d)", info.Size(), maxDocumentSize)
	}

	return Parse(f)
}

// Query returns the first element matching selector, or nil.
// An invalid selector matches nothing.
func (d *Document) Query(selector string) *Element {
	return d.queryFrom(d.root, selector)
}

// QueryAll returns every element matching selector in document order.
func (d *Document) QueryAll(selector string) []*Element {
	return d.queryAllFrom(d.root, selector)
}

// Render serializes the document back to HTML.
func (d *Document) Render() (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}

func (d *Document) queryFrom(from *html.Node, selector string) *Element {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var found *html.Node
	walk(from, func(n *html.Node) bool {
		if n != from && sel.Match(n) {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return &Element{doc: d, node: found}
}

func (d *Document) queryAllFrom(from *html.Node, selector string) []*Element {
	sel, err := ParseSelector(selector)
	if err != nil {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Element
	walk(from, func(n *html.Node) bool {
		if n != from && sel.Match(n) {
			out = append(out, &Element{doc: d, node: n})
		}
		return true
	})
	return out
}

// walk visits nodes depth-first in document order until visit returns false.
func walk(n *html.Node, visit func(*html.Node) bool) bool {
	if !visit(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, visit) {
			return false
		}
	}
	return true
}

// Tag returns the lower-case element name.
func (e *Element) Tag() string {
	return e.node.Data
}

// ID returns the element id, or "" if it has none.
func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

// SetID assigns the element id.
func (e *Element) SetID(id string) {
	e.SetAttr("id", id)
}

// Attr returns the named attribute value.
func (e *Element) Attr(name string) (string, bool) {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()
	return attr(e.node, strings.ToLower(name))
}

// SetAttr sets or replaces an attribute.
func (e *Element) SetAttr(name, value string) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	name = strings.ToLower(name)
	for i, a := range e.node.Attr {
		if a.Namespace == "" && a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// Text returns the concatenated text content of the element.
func (e *Element) Text() string {
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	var sb strings.Builder
	walk(e.node, func(n *html.Node) bool {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		return true
	})
	return sb.String()
}

// Query returns the first descendant matching selector, or nil.
func (e *Element) Query(selector string) *Element {
	return e.doc.queryFrom(e.node, selector)
}

// QueryAll returns every descendant matching selector.
func (e *Element) QueryAll(selector string) []*Element {
	return e.doc.queryAllFrom(e.node, selector)
}

// Contains reports whether other is e or one of its descendants.
func (e *Element) Contains(other *Element) bool {
	if other == nil {
		return false
	}
	e.doc.mu.RLock()
	defer e.doc.mu.RUnlock()

	for n := other.node; n != nil; n = n.Parent {
		if n == e.node {
			return true
		}
	}
	return false
}

// Same reports whether both handles point at the same node.
func (e *Element) Same(other *Element) bool {
	return e != nil && other != nil && e.node == other.node
}
