package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/towercmp/pkg/resource"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshots.db")
	store, err := Open(path)
	require.NoError(t, err)
	return store, path
}

func TestStore_SaveAndLatest(t *testing.T) {
	store, _ := openTestStore(t)
	defer func() { _ = store.Close() }()

	first := resource.NewCollection(resource.Inventories)
	first.Put("Prod", resource.HostCount(3))
	second := resource.NewCollection(resource.Inventories)
	second.Put("Prod", resource.HostCount(5))
	second.Put("Dev", resource.HostCount(1))

	rev1, err := store.Save("Tower", first)
	require.NoError(t, err)
	rev2, err := store.Save("Tower", second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev1)
	assert.Equal(t, int64(2), rev2)

	coll, entry, err := store.Latest("Tower", resource.Inventories)
	require.NoError(t, err)
	assert.Equal(t, rev2, entry.Revision)
	assert.Equal(t, 2, entry.Count)
	assert.Equal(t, []string{"dev", "prod"}, coll.Names())
	assert.Equal(t, resource.HostCount(5), coll.Items["prod"])
}

func TestStore_LatestIsPerSourceAndType(t *testing.T) {
	store, _ := openTestStore(t)
	defer func() { _ = store.Close() }()

	jt := resource.NewCollection(resource.JobTemplates)
	jt.Put("Deploy", resource.CredentialNames{"machine"})
	_, err := store.Save("AWX", jt)
	require.NoError(t, err)

	sched := resource.NewCollection(resource.Schedules)
	sched.Put("Nightly", resource.NamedURL{URL: "/a/", Valid: true})
	sched.Put("Orphan", resource.NamedURL{})
	_, err = store.Save("Tower", sched)
	require.NoError(t, err)

	coll, _, err := store.Latest("AWX", resource.JobTemplates)
	require.NoError(t, err)
	assert.Equal(t, resource.CredentialNames{"machine"}, coll.Items["deploy"])

	coll, _, err = store.Latest("Tower", resource.Schedules)
	require.NoError(t, err)
	assert.Equal(t, resource.NamedURL{URL: "/a/", Valid: true}, coll.Items["nightly"])
	assert.Equal(t, resource.NamedURL{}, coll.Items["orphan"])

	_, _, err = store.Latest("AWX", resource.Schedules)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, _, err = store.Latest("Tower", resource.JobTemplates)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_ReopenRebuildsIndex(t *testing.T) {
	store, path := openTestStore(t)

	creds := resource.NewCollection(resource.Credentials)
	creds.Put("Machine", resource.Inputs{Fields: resource.Object(map[string]resource.Value{
		"username": resource.String("root"),
	})})
	creds.Put("machine", resource.Inputs{Fields: resource.Object(nil)})
	_, err := store.Save("Tower", creds)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	assert.Equal(t, int64(1), reopened.CurrentRevision())
	entries := reopened.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Tower", entries[0].Source)
	assert.Equal(t, resource.Credentials, entries[0].Type)

	coll, _, err := reopened.Latest("Tower", resource.Credentials)
	require.NoError(t, err)
	assert.Equal(t, []string{"machine"}, coll.Duplicates)

	rev, err := reopened.Save("Tower", creds)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rev)
}

func TestStore_EntriesOrdered(t *testing.T) {
	store, _ := openTestStore(t)
	defer func() { _ = store.Close() }()
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	for _, src := range []string{"Tower", "AWX"} {
		for _, rt := range []resource.Type{resource.Schedules, resource.Credentials} {
			_, err := store.Save(src, resource.NewCollection(rt))
			require.NoError(t, err)
		}
	}

	var got []string
	for _, e := range store.Entries() {
		got = append(got, e.Source+"/"+string(e.Type))
		assert.Equal(t, 2026, e.SavedAt.Year())
	}
	assert.Equal(t, []string{"AWX/credentials", "AWX/schedules", "Tower/credentials", "Tower/schedules"}, got)
}

func TestSource_Fetch(t *testing.T) {
	store, _ := openTestStore(t)
	defer func() { _ = store.Close() }()

	inv := resource.NewCollection(resource.Inventories)
	inv.Put("Prod", resource.HostCount(2))
	_, err := store.Save("AWX", inv)
	require.NoError(t, err)

	src := store.Source("AWX")
	assert.Equal(t, "AWX", src.Name())

	coll, err := src.Fetch(context.Background(), resource.Inventories)
	require.NoError(t, err)
	assert.Equal(t, resource.HostCount(2), coll.Items["prod"])

	_, err = src.Fetch(context.Background(), resource.Credentials)
	assert.ErrorIs(t, err, ErrNotFound)
}
