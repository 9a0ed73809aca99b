package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/towercmp/pkg/resource"
)

func TestNew_NoPatterns(t *testing.T) {
	f, err := New(nil)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())
	assert.False(t, f.Excluded(resource.Inventories, "prod"))
}

func TestNew_InvalidPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"bad glob", "demo["},
		{"unknown type", "projects:demo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New([]string{tt.pattern})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.pattern)
		})
	}
}

func TestExcluded(t *testing.T) {
	f, err := New([]string{"Demo*", "credentials:ansible galaxy"})
	require.NoError(t, err)

	assert.True(t, f.Excluded(resource.Inventories, "demo inventory"))
	assert.True(t, f.Excluded(resource.JobTemplates, "demo job template"))
	assert.True(t, f.Excluded(resource.Credentials, "ansible galaxy"))
	assert.False(t, f.Excluded(resource.Inventories, "ansible galaxy"))
	assert.False(t, f.Excluded(resource.Inventories, "prod"))
}

func TestApply(t *testing.T) {
	c := resource.NewCollection(resource.Inventories)
	c.Put("Demo Inventory", resource.HostCount(1))
	c.Put("Prod", resource.HostCount(5))
	c.Put("demo inventory", resource.HostCount(2))

	f, err := New([]string{"demo*"})
	require.NoError(t, err)

	out := f.Apply(c)

	assert.Equal(t, []string{"prod"}, out.Names())
	assert.Empty(t, out.Duplicates)
	assert.Equal(t, 2, c.Len())
}

func TestApply_EmptyFilterReturnsInput(t *testing.T) {
	c := resource.NewCollection(resource.Schedules)
	f, err := New(nil)
	require.NoError(t, err)

	assert.Same(t, c, f.Apply(c))
}
