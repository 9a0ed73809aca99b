// Package resource defines the comparison model for towercmp: resource
// types, per-type details, keyed collections and the structural differ.
package resource

import (
	"fmt"
	"sort"
	"strings"
)

// Type is an automation-platform resource collection name as it appears in
// the /api/v2/<type>/ path.
type Type string

const (
	Inventories  Type = "inventories"
	JobTemplates Type = "job_templates"
	Schedules    Type = "schedules"
	Credentials  Type = "credentials"
)

// AllTypes lists the compared types in processing order.
var AllTypes = []Type{Inventories, JobTemplates, Schedules, Credentials}

// ParseType validates a resource type name.
func ParseType(s string) (Type, error) {
	t := Type(strings.TrimSpace(strings.ToLower(s)))
	for _, known := range AllTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown resource type %q", s)
}

// Label returns the singular human-readable label used in report lines.
func (t Type) Label() string {
	switch t {
	case Inventories:
		return "Inventory"
	case JobTemplates:
		return "Job template"
	case Schedules:
		return "Schedule"
	case Credentials:
		return "Credential"
	}
	s := strings.ReplaceAll(strings.TrimSuffix(string(t), "s"), "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// NormalizeName turns a resource name into the cross-source comparison key.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Detail is the type-dependent value recorded for one resource. It is one
// of CredentialNames, NamedURL, Inputs, HostCount or Presence.
type Detail interface {
	// Value converts the detail into a generic tree for diffing and storage.
	Value() Value
	// Empty reports whether the detail carries nothing worth diffing.
	Empty() bool
	isDetail()
}

// CredentialNames is the job template detail: names of attached credentials.
type CredentialNames []string

// NamedURL is the schedule detail: the named URL of the template it runs.
// Valid is false when the schedule had no template link.
type NamedURL struct {
	URL   string
	Valid bool
}

// Inputs is the credential detail: its inline input fields.
type Inputs struct {
	Fields Value
}

// HostCount is the inventory detail.
type HostCount int

// Presence records only that a resource exists.
type Presence bool

func (c CredentialNames) Value() Value { return Strings(c) }
func (c CredentialNames) Empty() bool { return len(c) == 0 }
func (CredentialNames) isDetail() {}

func (n NamedURL) Value() Value {
	if !n.Valid {
		return Null()
	}
	return String(n.URL)
}
func (n NamedURL) Empty() bool { return !n.Valid || n.URL == "" }
func (NamedURL) isDetail() {}

func (i Inputs) Value() Value { return i.Fields }
func (i Inputs) Empty() bool { return !i.Fields.Truthy() }
func (Inputs) isDetail() {}

func (h HostCount) Value() Value { return Int(int64(h)) }
func (h HostCount) Empty() bool { return h == 0 }
func (HostCount) isDetail() {}

func (p Presence) Value() Value { return Bool(bool(p)) }
func (p Presence) Empty() bool { return !bool(p) }
func (Presence) isDetail() {}

// DetailFromValue rebuilds the detail of a resource type from its tree form.
func DetailFromValue(t Type, v Value) (Detail, error) {
	switch t {
	case JobTemplates:
		if v.Kind() != KindArray {
			return nil, fmt.Errorf("%s detail: want array, got %s", t, v.Kind())
		}
		names := make(CredentialNames, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			names = append(names, v.Index(i).String())
		}
		return names, nil
	case Schedules:
		if v.IsNull() {
			return NamedURL{}, nil
		}
		s, ok := v.AsString()
		if !ok {
			return nil, fmt.Errorf("%s detail: want string, got %s", t, v.Kind())
		}
		return NamedURL{URL: s, Valid: true}, nil
	case Credentials:
		return Inputs{Fields: v}, nil
	case Inventories:
		n, ok := v.AsInt()
		if !ok {
			return nil, fmt.Errorf("%s detail: want number, got %s", t, v.Kind())
		}
		return HostCount(n), nil
	default:
		b, _ := v.AsBool()
		return Presence(b), nil
	}
}

// Collection maps normalized resource names to details for one resource
// type fetched from one source.
type Collection struct {
	Type  Type
	Items map[string]Detail

	// Duplicates lists normalized names seen more than once while building
	// the collection. The last occurrence wins.
	Duplicates []string
}

// NewCollection creates an empty collection.
func NewCollection(t Type) *Collection {
	return &Collection{Type: t, Items: make(map[string]Detail)}
}

// Put stores a detail under the normalized form of name.
func (c *Collection) Put(name string, d Detail) {
	key := NormalizeName(name)
	if _, exists := c.Items[key]; exists {
		c.Duplicates = append(c.Duplicates, key)
	}
	c.Items[key] = d
}

// Get returns the detail stored for a normalized name.
func (c *Collection) Get(name string) (Detail, bool) {
	d, ok := c.Items[name]
	return d, ok
}

// Len returns the number of distinct names.
func (c *Collection) Len() int { return len(c.Items) }

// Names returns the normalized names in sorted order.
func (c *Collection) Names() []string {
	names := make([]string, 0, len(c.Items))
	for name := range c.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
