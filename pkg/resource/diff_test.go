package resource

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) Value {
	t.Helper()
	v, err := ParseJSON([]byte(doc))
	require.NoError(t, err)
	return v
}

func TestCompare_EqualTreesHaveNoDifferences(t *testing.T) {
	docs := []string{
		`{}`,
		`[]`,
		`{"a": 1, "b": [1, 2, {"c": null}], "d": {"e": "f"}}`,
		`[{"x": true}, "y", 3.5]`,
		`"scalar"`,
	}
	for _, doc := range docs {
		t.Run(doc, func(t *testing.T) {
			assert.Empty(t, Compare(mustParse(t, doc), mustParse(t, doc), "root"))
		})
	}
}

func TestCompare_LeftOnlyKey(t *testing.T) {
	left := mustParse(t, `{"a": 1, "b": 2}`)
	right := mustParse(t, `{"a": 1}`)

	diffs := Compare(left, right, "root")

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffLeftOnly, diffs[0].Type)
	assert.Equal(t, "b", diffs[0].Key)
	assert.Equal(t, "root: Key b found in Tower, but not in AWX.", diffs[0].String())
}

func TestCompare_RightOnlyKey(t *testing.T) {
	left := mustParse(t, `{"a": 1}`)
	right := mustParse(t, `{"a": 1, "b": 2}`)

	diffs := Compare(left, right, "root")

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffRightOnly, diffs[0].Type)
	assert.Equal(t, "root: Key b found in AWX, but not in Tower.", diffs[0].String())
}

func TestCompare_LeftKeysBeforeRightOnlyKeys(t *testing.T) {
	left := mustParse(t, `{"b": 1, "c": {"x": 1}}`)
	right := mustParse(t, `{"a": 1, "c": {"x": 2}}`)

	diffs := Compare(left, right, "p")

	require.Len(t, diffs, 3)
	assert.Equal(t, DiffLeftOnly, diffs[0].Type)
	assert.Equal(t, DiffValue, diffs[1].Type)
	assert.Equal(t, "p.c.x", diffs[1].Path)
	assert.Equal(t, DiffRightOnly, diffs[2].Type)
	assert.Equal(t, "a", diffs[2].Key)
}

func TestCompare_LengthMismatchDoesNotRecurse(t *testing.T) {
	left := mustParse(t, `["cred1"]`)
	right := mustParse(t, `["cred1", "cred2"]`)

	diffs := Compare(left, right, "job_templates.x")

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffLength, diffs[0].Type)
	assert.Equal(t, "job_templates.x", diffs[0].Path)
	assert.Equal(t, 1, diffs[0].LeftLen)
	assert.Equal(t, 2, diffs[0].RightLen)
	assert.Equal(t, "job_templates.x: Mismatch. Different lengths. Tower: 1, AWX: 2", diffs[0].String())
}

func TestCompare_LengthMismatchIgnoresElementDifferences(t *testing.T) {
	left := mustParse(t, `[1, 2, 3]`)
	right := mustParse(t, `[9, 8]`)

	assert.Len(t, Compare(left, right, "p"), 1)
}

func TestCompare_EqualLengthArraysConcatenatePerIndex(t *testing.T) {
	left := mustParse(t, `[1, {"k": "a"}, 3]`)
	right := mustParse(t, `[2, {"k": "b"}, 3]`)

	diffs := Compare(left, right, "p")

	var expected []Difference
	for i := 0; i < left.Len(); i++ {
		expected = append(expected, Compare(left.Index(i), right.Index(i), fmt.Sprintf("p[%d]", i))...)
	}
	assert.Equal(t, expected, diffs)
	require.Len(t, diffs, 2)
	assert.Equal(t, "p[0]", diffs[0].Path)
	assert.Equal(t, "p[1].k", diffs[1].Path)
}

func TestCompare_ScalarMismatch(t *testing.T) {
	diffs := Compare(String("/api/v2/job_templates/a++Default/"), String("/api/v2/job_templates/b++Default/"), "schedules.nightly")

	require.Len(t, diffs, 1)
	assert.Equal(t,
		"schedules.nightly: Mismatch. Tower: /api/v2/job_templates/a++Default/, AWX: /api/v2/job_templates/b++Default/",
		diffs[0].String())
}

func TestCompare_MismatchedShapes(t *testing.T) {
	left := mustParse(t, `{"a": 1}`)
	right := mustParse(t, `[1]`)

	diffs := Compare(left, right, "p")

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffValue, diffs[0].Type)
	assert.Equal(t, `p: Mismatch. Tower: {"a":1}, AWX: [1]`, diffs[0].String())
}

func TestCompare_NumbersCompareNumerically(t *testing.T) {
	assert.Empty(t, Compare(mustParse(t, `1`), mustParse(t, `1.0`), "p"))
	assert.Len(t, Compare(mustParse(t, `1`), mustParse(t, `"1"`), "p"), 1)
}

func TestDifference_FormatWithCustomSides(t *testing.T) {
	d := Difference{Type: DiffLeftOnly, Path: "p", Key: "k"}
	assert.Equal(t, "p: Key k found in old, but not in new.", d.Format(Sides{Left: "old", Right: "new"}))
}
