// Package nav tracks the application's location history.
package nav

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Errors for navigation.
var (
	ErrNavigationBlocked = errors.New("navigation blocked")
	ErrNoLocation        = errors.New("no current location")
)

const defaultMaxHistory = 100

// Entry is one location in the history.
type Entry struct {
	URL    *url.URL
	State  map[string]any
	Params map[string]any
	At     time.Time
}

// Options configures a Navigator.
type Options struct {
	// Base resolves relative targets. Defaults to "/".
	Base *url.URL
	// AllowedHosts lists foreign hosts that may be navigated to.
	AllowedHosts []string
	// MaxHistory bounds the history length.
	MaxHistory int
	// OnChange is called after every successful navigation.
	OnChange func(Entry)
}

// Navigator validates and records navigation requests.
type Navigator struct {
	mu       sync.RWMutex
	base     *url.URL
	allowed  map[string]bool
	max      int
	history  []Entry
	onChange func(Entry)
}

// New creates a Navigator positioned at the base location.
func New(opts Options) *Navigator {
	base := opts.Base
	if base == nil {
		base = &url.URL{Path: "/"}
	}
	max := opts.MaxHistory
	if max <= 0 {
		max = defaultMaxHistory
	}
	allowed := make(map[string]bool, len(opts.AllowedHosts))
	for _, h := range opts.AllowedHosts {
		allowed[strings.ToLower(h)] = true
	}

	return &Navigator{
		base:     base,
		allowed:  allowed,
		max:      max,
		history:  []Entry{{URL: base, At: time.Now()}},
		onChange: opts.OnChange,
	}
}

// Navigate moves to target. A nil target keeps the current location and
// records the given state and params; nil state or params fall back to the
// current entry's values.
func (n *Navigator) Navigate(target *url.URL, state, params map[string]any) error {
	n.mu.Lock()

	var entry Entry
	if target == nil {
		cur, ok := n.currentLocked()
		if !ok {
			n.mu.Unlock()
			return ErrNoLocation
		}
		entry = Entry{URL: cur.URL, State: state, Params: params}
		if entry.State == nil {
			entry.State = cur.State
		}
		if entry.Params == nil {
			entry.Params = cur.Params
		}
	} else {
		resolved, err := n.resolve(target)
		if err != nil {
			n.mu.Unlock()
			return err
		}
		entry = Entry{URL: resolved, State: state, Params: params}
	}
	entry.At = time.Now()

	n.history = append(n.history, entry)
	if len(n.history) > n.max {
		n.history = append([]Entry(nil), n.history[len(n.history)-n.max:]...)
	}
	onChange := n.onChange
	n.mu.Unlock()

	if onChange != nil {
		onChange(entry)
	}
	return nil
}

func (n *Navigator) resolve(target *url.URL) (*url.URL, error) {
	resolved := n.base.ResolveReference(target)

	switch strings.ToLower(resolved.Scheme) {
	case "", "http", "https":
	default:
		return nil, fmt.Errorf("%w: scheme %q not allowed", ErrNavigationBlocked, resolved.Scheme)
	}

	host := strings.ToLower(resolved.Hostname())
	if host != "" && host != strings.ToLower(n.base.Hostname()) && !n.allowed[host] {
		return nil, fmt.Errorf("%w: host %q not allowed", ErrNavigationBlocked, host)
	}
	return resolved, nil
}

// Back returns to the previous entry.
func (n *Navigator) Back() (Entry, error) {
	n.mu.Lock()
	if len(n.history) < 2 {
		n.mu.Unlock()
		return Entry{}, ErrNoLocation
	}
	n.history = n.history[:len(n.history)-1]
	entry := n.history[len(n.history)-1]
	onChange := n.onChange
	n.mu.Unlock()

	if onChange != nil {
		onChange(entry)
	}
	return entry, nil
}

// Current returns the current entry.
func (n *Navigator) Current() (Entry, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.currentLocked()
}

func (n *Navigator) currentLocked() (Entry, bool) {
	if len(n.history) == 0 {
		return Entry{}, false
	}
	return n.history[len(n.history)-1], true
}

// History returns a copy of the recorded entries, oldest first.
func (n *Navigator) History() []Entry {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]Entry(nil), n.history...)
}

// SetOnChange replaces the change callback.
func (n *Navigator) SetOnChange(fn func(Entry)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onChange = fn
}
