// Package filter drops resources excluded from comparison by name.
package filter

import (
	"fmt"
	"path"
	"strings"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Filter holds name patterns of resources to leave out of a comparison.
// Patterns use path.Match syntax against normalized names. A pattern of the
// form "<type>:<pattern>" only applies to that resource type.
type Filter struct {
	global  []string
	perType map[resource.Type][]string
}

// New parses exclusion patterns.
func New(patterns []string) (*Filter, error) {
	f := &Filter{perType: make(map[resource.Type][]string)}
	for _, raw := range patterns {
		pattern := raw
		var typ resource.Type
		if prefix, rest, ok := strings.Cut(raw, ":"); ok {
			t, err := resource.ParseType(prefix)
			if err != nil {
				return nil, fmt.Errorf("exclude %q: %w", raw, err)
			}
			typ, pattern = t, rest
		}

		pattern = resource.NormalizeName(pattern)
		if _, err := path.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("exclude %q: %w", raw, err)
		}

		if typ == "" {
			f.global = append(f.global, pattern)
		} else {
			f.perType[typ] = append(f.perType[typ], pattern)
		}
	}
	return f, nil
}

// Excluded reports whether the normalized name of type t matches a pattern.
func (f *Filter) Excluded(t resource.Type, name string) bool {
	for _, p := range f.global {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	for _, p := range f.perType[t] {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Apply returns c without excluded resources. c is not modified.
func (f *Filter) Apply(c *resource.Collection) *resource.Collection {
	if f.IsEmpty() {
		return c
	}

	out := resource.NewCollection(c.Type)
	for name, d := range c.Items {
		if !f.Excluded(c.Type, name) {
			out.Items[name] = d
		}
	}
	for _, name := range c.Duplicates {
		if !f.Excluded(c.Type, name) {
			out.Duplicates = append(out.Duplicates, name)
		}
	}
	return out
}

// IsEmpty returns true if no patterns are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.global) == 0 && len(f.perType) == 0
}
