// Package report compares two collections of the same resource type and
// renders the findings to the report sinks.
package report

import (
	"fmt"
	"strings"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// FindingKind classifies a report finding.
type FindingKind string

const (
	// FindingHostCount indicates an inventory host count mismatch.
	FindingHostCount FindingKind = "host_count_mismatch"
	// FindingDetail indicates structural differences between two details.
	FindingDetail FindingKind = "detail_difference"
	// FindingLeftOnly indicates a resource present only on the left side.
	FindingLeftOnly FindingKind = "left_only"
	// FindingRightOnly indicates a resource present only on the right side.
	FindingRightOnly FindingKind = "right_only"
	// FindingDuplicate indicates a normalized name seen twice on one side.
	FindingDuplicate FindingKind = "duplicate_name"
	// FindingError indicates the resource type could not be compared.
	FindingError FindingKind = "error"
)

// Finding is one discrepancy reported for a resource type.
type Finding struct {
	ResourceType resource.Type `json:"resource_type" yaml:"resource_type"`
	Kind         FindingKind   `json:"kind" yaml:"kind"`
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	Message      string        `json:"message" yaml:"message"`
	Details      []string      `json:"details,omitempty" yaml:"details,omitempty"`
}

// Text renders the finding as it appears in the text report.
func (f Finding) Text() string {
	if len(f.Details) == 0 {
		return f.Message
	}
	return f.Message + "\n" + strings.Join(f.Details, "\n")
}

// Section is the comparison result for one resource type.
type Section struct {
	Type       resource.Type  `json:"resource_type" yaml:"resource_type"`
	Sides      resource.Sides `json:"-" yaml:"-"`
	LeftNames  []string       `json:"left_names" yaml:"left_names"`
	RightNames []string       `json:"right_names" yaml:"right_names"`
	Findings   []Finding      `json:"findings" yaml:"findings"`
}

// Lines renders the section as text report lines. A line may span several
// physical lines when a finding carries details.
func (s Section) Lines() []string {
	lines := []string{
		"",
		fmt.Sprintf("Comparing %s...", s.Type),
		fmt.Sprintf("Debug: %s Counts: %s", s.Sides.Left, formatNames(s.LeftNames)),
		fmt.Sprintf("Debug: %s Counts: %s", s.Sides.Right, formatNames(s.RightNames)),
	}
	for _, f := range s.Findings {
		lines = append(lines, f.Text())
	}
	return lines
}

// Count returns the number of findings of kind k.
func (s Section) Count(k FindingKind) int {
	n := 0
	for _, f := range s.Findings {
		if f.Kind == k {
			n++
		}
	}
	return n
}

func formatNames(names []string) string {
	return "[" + strings.Join(names, ", ") + "]"
}

// Compare builds the section for two collections of type t. left and right
// must not be nil.
func Compare(t resource.Type, left, right *resource.Collection, sides resource.Sides) Section {
	s := Section{
		Type:       t,
		Sides:      sides,
		LeftNames:  left.Names(),
		RightNames: right.Names(),
	}

	s.Findings = append(s.Findings, duplicates(t, left, sides.Left)...)
	s.Findings = append(s.Findings, duplicates(t, right, sides.Right)...)

	switch t {
	case resource.Inventories:
		s.Findings = append(s.Findings, compareHostCounts(t, left, right, sides)...)
	case resource.JobTemplates, resource.Schedules:
		s.Findings = append(s.Findings, compareDetails(t, left, right, sides)...)
	}

	s.Findings = append(s.Findings, presence(t, left, right, sides.Left, sides.Right, FindingLeftOnly)...)
	s.Findings = append(s.Findings, presence(t, right, left, sides.Right, sides.Left, FindingRightOnly)...)

	return s
}

// Failed builds the section for a resource type that could not be fetched.
func Failed(t resource.Type, sides resource.Sides, err error) Section {
	return Section{
		Type:       t,
		Sides:      sides,
		LeftNames:  []string{},
		RightNames: []string{},
		Findings: []Finding{{
			ResourceType: t,
			Kind:         FindingError,
			Message:      fmt.Sprintf("Error: could not compare %s: %v", t, err),
		}},
	}
}

func duplicates(t resource.Type, c *resource.Collection, side string) []Finding {
	var findings []Finding
	for _, name := range c.Duplicates {
		findings = append(findings, Finding{
			ResourceType: t,
			Kind:         FindingDuplicate,
			Name:         name,
			Message:      fmt.Sprintf("Warning: duplicate %s name '%s' in %s, only the last one was compared.", strings.ToLower(t.Label()), name, side),
		})
	}
	return findings
}

func compareHostCounts(t resource.Type, left, right *resource.Collection, sides resource.Sides) []Finding {
	var findings []Finding
	for _, name := range left.Names() {
		ld, _ := left.Get(name)
		lc := hostCount(ld)
		rc := 0
		if rd, ok := right.Get(name); ok {
			rc = hostCount(rd)
		}
		if lc != rc {
			findings = append(findings, Finding{
				ResourceType: t,
				Kind:         FindingHostCount,
				Name:         name,
				Message:      fmt.Sprintf("%s '%s' has %d hosts in %s but %d hosts in %s.", t.Label(), name, lc, sides.Left, rc, sides.Right),
			})
		}
	}
	return findings
}

func hostCount(d resource.Detail) int {
	if hc, ok := d.(resource.HostCount); ok {
		return int(hc)
	}
	n, _ := d.Value().AsInt()
	return int(n)
}

func compareDetails(t resource.Type, left, right *resource.Collection, sides resource.Sides) []Finding {
	var findings []Finding
	for _, name := range left.Names() {
		ld, _ := left.Get(name)
		rd, ok := right.Get(name)
		if !ok || ld.Empty() || rd.Empty() {
			continue
		}

		diffs := resource.Compare(ld.Value(), rd.Value(), string(t)+"."+name)
		if len(diffs) == 0 {
			continue
		}

		details := make([]string, 0, len(diffs))
		for _, d := range diffs {
			details = append(details, d.Format(sides))
		}
		findings = append(findings, Finding{
			ResourceType: t,
			Kind:         FindingDetail,
			Name:         name,
			Message:      fmt.Sprintf("%s '%s' has differences:", t.Label(), name),
			Details:      details,
		})
	}
	return findings
}

// presence reports names of from that are missing in other.
func presence(t resource.Type, from, other *resource.Collection, fromSide, otherSide string, kind FindingKind) []Finding {
	var findings []Finding
	for _, name := range from.Names() {
		if _, ok := other.Get(name); ok {
			continue
		}
		d, _ := from.Get(name)
		findings = append(findings, Finding{
			ResourceType: t,
			Kind:         kind,
			Name:         name,
			Message:      fmt.Sprintf("%s '%s' exists in %s but not in %s.%s", t.Label(), name, fromSide, otherSide, extraInfo(d)),
		})
	}
	return findings
}

// extraInfo lists sequence details inline and dumps mapping details.
func extraInfo(d resource.Detail) string {
	v := d.Value()
	switch v.Kind() {
	case resource.KindArray:
		items := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			items = append(items, v.Index(i).String())
		}
		return fmt.Sprintf(" (Details: %s)", strings.Join(items, ", "))
	case resource.KindObject:
		return fmt.Sprintf(" (Details: %s)", v.Indent())
	default:
		return ""
	}
}
