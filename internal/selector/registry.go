// Package selector holds the routing table that maps call-data prefixes to
// handler identifiers.
//
// Matching is first-match-wins in construction order: overlapping selectors
// are allowed and the earlier entry shadows the later one for the call data
// they share. A Registry is immutable once built and safe for concurrent use.
package selector

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Common errors
var (
	ErrInvalidSelector   = errors.New("invalid selector")
	ErrDuplicateSelector = errors.New("duplicate selector")
	ErrEmptyHandler      = errors.New("empty handler identifier")
)

// Entry is one routing rule.
type Entry struct {
	// Selector is a hex prefix of call data, case-insensitive, with or
	// without a leading "0x".
	Selector string `json:"selector" yaml:"selector"`

	// Handler names a factory registered in a handler.Loader.
	Handler string `json:"handler" yaml:"handler"`
}

// Registry is an ordered, read-only selector table.
type Registry struct {
	entries []Entry
	// normalized[i] is entries[i].Selector after Normalize.
	normalized []string
}

// New builds a registry from entries in the given order.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries:    make([]Entry, 0, len(entries)),
		normalized: make([]string, 0, len(entries)),
	}
	seen := make(map[string]struct{}, len(entries))

	for i, e := range entries {
		sel := Normalize(e.Selector)
		if err := validate(sel); err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, e.Selector, err)
		}
		if _, dup := seen[sel]; dup {
			return nil, fmt.Errorf("entry %d (%q): %w", i, e.Selector, ErrDuplicateSelector)
		}
		handler := strings.TrimSpace(e.Handler)
		if handler == "" {
			return nil, fmt.Errorf("entry %d (%q): %w", i, e.Selector, ErrEmptyHandler)
		}
		seen[sel] = struct{}{}
		r.entries = append(r.entries, Entry{Selector: e.Selector, Handler: handler})
		r.normalized = append(r.normalized, sel)
	}
	return r, nil
}

// FromMap builds a registry from an unordered map. Entries are ordered by
// normalized selector so the result is deterministic.
func FromMap(m map[string]string) (*Registry, error) {
	entries := make([]Entry, 0, len(m))
	for sel, handler := range m {
		entries = append(entries, Entry{Selector: sel, Handler: handler})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return Normalize(entries[i].Selector) < Normalize(entries[j].Selector)
	})
	return New(entries...)
}

// Normalize lowercases a hex string and strips surrounding space and a
// leading "0x".
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimPrefix(s, "0x")
}

func validate(sel string) error {
	if sel == "" {
		return ErrInvalidSelector
	}
	// Selectors may be odd-length nibble prefixes, so validate per digit.
	padded := sel
	if len(padded)%2 == 1 {
		padded += "0"
	}
	if _, err := hex.DecodeString(padded); err != nil {
		return ErrInvalidSelector
	}
	return nil
}

// Lookup returns the first entry, in construction order, whose selector is a
// prefix of callData. A nil or empty registry never matches.
func (r *Registry) Lookup(callData string) (Entry, bool) {
	if r.Empty() {
		return Entry{}, false
	}
	data := Normalize(callData)
	for i, sel := range r.normalized {
		if strings.HasPrefix(data, sel) {
			return r.entries[i], true
		}
	}
	return Entry{}, false
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Empty reports whether no handlers are configured.
func (r *Registry) Empty() bool {
	return r.Len() == 0
}

// Entries returns a copy of the table in construction order.
func (r *Registry) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Handlers returns the distinct handler identifiers in first-seen order.
func (r *Registry) Handlers() []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(r.entries))
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		if _, ok := seen[e.Handler]; ok {
			continue
		}
		seen[e.Handler] = struct{}{}
		out = append(out, e.Handler)
	}
	return out
}
