// Package snapshot persists fetched resource collections so a comparison
// can be replayed without talking to the APIs.
package snapshot

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Bucket names in bbolt
var (
	bucketCollections = []byte("collections")
	bucketMeta        = []byte("meta")
	keyRevision       = []byte("current_revision")
)

// ErrNotFound is returned when no snapshot exists for a source and type.
var ErrNotFound = errors.New("snapshot not found")

// Entry describes one stored collection.
type Entry struct {
	Revision int64
	Source   string
	Type     resource.Type
	Count    int
	SavedAt  time.Time
}

func entryLess(a, b Entry) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	return a.Revision < b.Revision
}

type record struct {
	Source     string                    `json:"source"`
	Type       resource.Type             `json:"resource_type"`
	SavedAt    time.Time                 `json:"saved_at"`
	Items      map[string]resource.Value `json:"items"`
	Duplicates []string                  `json:"duplicates,omitempty"`
}

// Store keeps every saved collection under a monotonically increasing
// revision, with an in-memory index for latest-revision lookups.
type Store struct {
	mu sync.RWMutex

	db         *bbolt.DB
	index      *btree.BTreeG[Entry]
	currentRev int64
	now        func() time.Time
}

// Open opens or creates the snapshot database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketCollections, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init snapshot buckets: %w", err)
	}

	s := &Store{
		db:    db,
		index: btree.NewG[Entry](32, entryLess),
		now:   time.Now,
	}
	if err := s.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores c as the newest snapshot for source and returns its revision.
func (s *Store) Save(source string, c *resource.Collection) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record{
		Source:     source,
		Type:       c.Type,
		SavedAt:    s.now().UTC(),
		Items:      make(map[string]resource.Value, c.Len()),
		Duplicates: c.Duplicates,
	}
	for name, d := range c.Items {
		rec.Items[name] = d.Value()
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	rev := s.currentRev + 1
	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCollections).Put(int64ToBytes(rev), value); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyRevision, int64ToBytes(rev))
	})
	if err != nil {
		return 0, fmt.Errorf("store snapshot: %w", err)
	}

	s.currentRev = rev
	s.index.ReplaceOrInsert(Entry{
		Revision: rev,
		Source:   source,
		Type:     c.Type,
		Count:    c.Len(),
		SavedAt:  rec.SavedAt,
	})
	return rev, nil
}

// Latest returns the newest collection saved for source and t.
func (s *Store) Latest(source string, t resource.Type) (*resource.Collection, Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found Entry
	ok := false
	s.index.DescendLessOrEqual(Entry{Source: source, Type: t, Revision: math.MaxInt64}, func(e Entry) bool {
		if e.Source == source && e.Type == t {
			found = e
			ok = true
		}
		return false
	})
	if !ok {
		return nil, Entry{}, fmt.Errorf("%s %s: %w", source, t, ErrNotFound)
	}

	var rec record
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCollections).Get(int64ToBytes(found.Revision))
		if data == nil {
			return fmt.Errorf("revision %d: %w", found.Revision, ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, Entry{}, fmt.Errorf("load snapshot: %w", err)
	}

	coll, err := rec.collection()
	if err != nil {
		return nil, Entry{}, err
	}
	return coll, found, nil
}

// Entries lists every stored snapshot ordered by source, type and revision.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]Entry, 0, s.index.Len())
	s.index.Ascend(func(e Entry) bool {
		entries = append(entries, e)
		return true
	})
	return entries
}

// CurrentRevision returns the newest revision number.
func (s *Store) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if data := tx.Bucket(bucketMeta).Get(keyRevision); data != nil {
			s.currentRev = bytesToInt64(data)
		}
		return tx.Bucket(bucketCollections).ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode snapshot %d: %w", bytesToInt64(k), err)
			}
			s.index.ReplaceOrInsert(Entry{
				Revision: bytesToInt64(k),
				Source:   rec.Source,
				Type:     rec.Type,
				Count:    len(rec.Items),
				SavedAt:  rec.SavedAt,
			})
			return nil
		})
	})
}

func (r record) collection() (*resource.Collection, error) {
	coll := resource.NewCollection(r.Type)
	for name, v := range r.Items {
		d, err := resource.DetailFromValue(r.Type, v)
		if err != nil {
			return nil, fmt.Errorf("decode %s %q: %w", r.Type, name, err)
		}
		coll.Items[name] = d
	}
	coll.Duplicates = r.Duplicates
	return coll, nil
}

// Big-endian keys keep bbolt's byte ordering equal to revision ordering.
func int64ToBytes(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func bytesToInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
