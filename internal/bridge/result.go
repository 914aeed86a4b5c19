package bridge

// Key selects either one named configuration entry or the whole
// configuration object. The zero value is Whole.
type Key struct {
	name  string
	named bool
}

// Whole selects the complete configuration object.
var Whole = Key{}

// Named selects a single configuration entry.
func Named(name string) Key {
	return Key{name: name, named: true}
}

// Name returns the selected entry name and whether one was set.
func (k Key) Name() (string, bool) {
	return k.name, k.named
}

// String returns the entry name, or "*" for Whole.
func (k Key) String() string {
	if !k.named {
		return "*"
	}
	return k.name
}

// Kind discriminates a configuration lookup Result.
type Kind int

const (
	// KindAbsent means no configuration, or no such entry.
	KindAbsent Kind = iota
	// KindValue holds a single named entry.
	KindValue
	// KindWhole holds the complete configuration object.
	KindWhole
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindWhole:
		return "whole"
	default:
		return "absent"
	}
}

// Result is the outcome of a configuration lookup.
type Result struct {
	kind  Kind
	value any
	whole map[string]any
}

// Absent is the Result for missing configuration.
var Absent = Result{}

// ValueResult wraps a single entry. A nil value is still a present entry.
func ValueResult(v any) Result {
	return Result{kind: KindValue, value: v}
}

// WholeResult wraps a complete configuration object. A nil map is Absent.
func WholeResult(m map[string]any) Result {
	if m == nil {
		return Absent
	}
	return Result{kind: KindWhole, whole: m}
}

// Lookup resolves key against m using the two-mode rules: Whole returns m,
// Named returns the entry if present. A nil m is always Absent.
func Lookup(m map[string]any, key Key) Result {
	if m == nil {
		return Absent
	}
	name, ok := key.Name()
	if !ok {
		return WholeResult(m)
	}
	v, ok := m[name]
	if !ok {
		return Absent
	}
	return ValueResult(v)
}

// Kind reports which case the Result holds.
func (r Result) Kind() Kind {
	return r.kind
}

// IsAbsent reports whether nothing was found.
func (r Result) IsAbsent() bool {
	return r.kind == KindAbsent
}

// Value returns the named entry.
func (r Result) Value() (any, bool) {
	return r.value, r.kind == KindValue
}

// Whole returns the complete configuration object.
func (r Result) Whole() (map[string]any, bool) {
	return r.whole, r.kind == KindWhole
}

// Any returns the held value in its untyped form: the entry, the whole
// object, or nil.
func (r Result) Any() any {
	switch r.kind {
	case KindValue:
		return r.value
	case KindWhole:
		return r.whole
	default:
		return nil
	}
}
