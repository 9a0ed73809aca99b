package resource

import (
	"fmt"
	"strconv"
)

// DiffType represents the kind of structural mismatch found.
type DiffType string

const (
	// DiffLeftOnly indicates a mapping key present only on the left side.
	DiffLeftOnly DiffType = "left_only"
	// DiffRightOnly indicates a mapping key present only on the right side.
	DiffRightOnly DiffType = "right_only"
	// DiffLength indicates two sequences of different length.
	DiffLength DiffType = "length_mismatch"
	// DiffValue indicates two unequal scalars or mismatched shapes.
	DiffValue DiffType = "value_mismatch"
)

// Sides names the two compared sources, left first.
type Sides struct {
	Left  string
	Right string
}

// DefaultSides are the source names used when none are configured.
var DefaultSides = Sides{Left: "Tower", Right: "AWX"}

// Difference is a single structural mismatch at Path.
type Difference struct {
	Type DiffType
	Path string
	// Key is set for DiffLeftOnly and DiffRightOnly.
	Key string
	// Left and Right hold both values for DiffValue.
	Left  Value
	Right Value
	// LeftLen and RightLen hold both lengths for DiffLength.
	LeftLen  int
	RightLen int
}

// Format renders d as a report line naming the sides.
func (d Difference) Format(s Sides) string {
	switch d.Type {
	case DiffLeftOnly:
		return fmt.Sprintf("%s: Key %s found in %s, but not in %s.", d.Path, d.Key, s.Left, s.Right)
	case DiffRightOnly:
		return fmt.Sprintf("%s: Key %s found in %s, but not in %s.", d.Path, d.Key, s.Right, s.Left)
	case DiffLength:
		return fmt.Sprintf("%s: Mismatch. Different lengths. %s: %d, %s: %d", d.Path, s.Left, d.LeftLen, s.Right, d.RightLen)
	default:
		return fmt.Sprintf("%s: Mismatch. %s: %s, %s: %s", d.Path, s.Left, d.Left, s.Right, d.Right)
	}
}

// String renders d with DefaultSides.
func (d Difference) String() string {
	return d.Format(DefaultSides)
}

// Compare walks left and right together and returns every structural
// mismatch, each annotated with a path rooted at path.
//
// Objects are compared key by key: left keys first (sorted), then keys only
// present on the right. Arrays of unequal length produce a single DiffLength
// entry and are not descended into. Everything else is compared for
// equality.
func Compare(left, right Value, path string) []Difference {
	var diffs []Difference

	switch {
	case left.Kind() == KindObject && right.Kind() == KindObject:
		for _, key := range left.Keys() {
			rv, ok := right.Field(key)
			if !ok {
				diffs = append(diffs, Difference{Type: DiffLeftOnly, Path: path, Key: key})
				continue
			}
			lv, _ := left.Field(key)
			diffs = append(diffs, Compare(lv, rv, path+"."+key)...)
		}
		for _, key := range right.Keys() {
			if _, ok := left.Field(key); !ok {
				diffs = append(diffs, Difference{Type: DiffRightOnly, Path: path, Key: key})
			}
		}

	case left.Kind() == KindArray && right.Kind() == KindArray:
		if left.Len() != right.Len() {
			return append(diffs, Difference{
				Type:     DiffLength,
				Path:     path,
				LeftLen:  left.Len(),
				RightLen: right.Len(),
			})
		}
		for i := 0; i < left.Len(); i++ {
			diffs = append(diffs, Compare(left.Index(i), right.Index(i), path+"["+strconv.Itoa(i)+"]")...)
		}

	default:
		if !left.Equal(right) {
			diffs = append(diffs, Difference{Type: DiffValue, Path: path, Left: left, Right: right})
		}
	}

	return diffs
}
