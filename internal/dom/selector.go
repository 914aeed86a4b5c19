package dom

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ErrInvalidSelector is returned when a selector cannot be parsed.
var ErrInvalidSelector = errors.New("invalid selector")

// attrMatcher matches one [name] or [name=value] clause.
type attrMatcher struct {
	name     string
	value    string
	hasValue bool
}

// Selector is a compiled compound selector.
type Selector struct {
	raw     string
	tag     string
	id      string
	classes []string
	attrs   []attrMatcher
}

// String returns the selector source.
func (s *Selector) String() string {
	return s.raw
}

// ParseSelector compiles a compound simple selector.
func ParseSelector(raw string) (*Selector, error) {
	src := strings.TrimSpace(raw)
	if src == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidSelector)
	}

	sel := &Selector{raw: raw}
	i := 0

	if src[0] == '*' {
		i = 1
	} else if isIdentByte(src[0]) {
		end := scanIdent(src, 0)
		sel.tag = strings.ToLower(src[:end])
		i = end
	}

	for i < len(src) {
		switch src[i] {
		case '#':
			end := scanIdent(src, i+1)
			if end == i+1 {
				return nil, fmt.Errorf("%w: empty id in %q", ErrInvalidSelector, raw)
			}
			if sel.id != "" {
				return nil, fmt.Errorf("%w: multiple ids in %q", ErrInvalidSelector, raw)
			}
			sel.id = src[i+1 : end]
			i = end
		case '.':
			end := scanIdent(src, i+1)
			if end == i+1 {
				return nil, fmt.Errorf("%w: empty class in %q", ErrInvalidSelector, raw)
			}
			sel.classes = append(sel.classes, src[i+1:end])
			i = end
		case '[':
			m, next, err := parseAttr(src, i)
			if err != nil {
				return nil, fmt.Errorf("%w in %q", err, raw)
			}
			sel.attrs = append(sel.attrs, m)
			i = next
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d in %q", ErrInvalidSelector, src[i], i, raw)
		}
	}

	return sel, nil
}

// parseAttr parses an attribute clause starting at src[start] == '['.
func parseAttr(src string, start int) (attrMatcher, int, error) {
	closeIdx := strings.IndexByte(src[start:], ']')
	if closeIdx < 0 {
		return attrMatcher{}, 0, fmt.Errorf("%w: unterminated attribute", ErrInvalidSelector)
	}
	body := src[start+1 : start+closeIdx]
	next := start + closeIdx + 1

	name, value, hasValue := strings.Cut(body, "=")
	name = strings.TrimSpace(name)
	if name == "" || scanIdent(name, 0) != len(name) {
		return attrMatcher{}, 0, fmt.Errorf("%w: bad attribute name %q", ErrInvalidSelector, name)
	}

	m := attrMatcher{name: strings.ToLower(name), hasValue: hasValue}
	if hasValue {
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') {
			if value[len(value)-1] != value[0] {
				return attrMatcher{}, 0, fmt.Errorf("%w: unbalanced quotes", ErrInvalidSelector)
			}
			value = value[1 : len(value)-1]
		}
		m.value = value
	}
	return m, next, nil
}

func scanIdent(s string, from int) int {
	i := from
	for i < len(s) && isIdentByte(s[i]) {
		i++
	}
	return i
}

func isIdentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '-' || c == '_':
		return true
	case c >= 0x80:
		return true
	}
	return false
}

// Match reports whether n is an element satisfying the selector.
func (s *Selector) Match(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && n.Data != s.tag {
		return false
	}
	if s.id != "" {
		if v, ok := attr(n, "id"); !ok || v != s.id {
			return false
		}
	}
	if len(s.classes) > 0 {
		v, _ := attr(n, "class")
		have := strings.Fields(v)
		for _, want := range s.classes {
			if !containsString(have, want) {
				return false
			}
		}
	}
	for _, m := range s.attrs {
		v, ok := attr(n, m.name)
		if !ok || (m.hasValue && v != m.value) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
