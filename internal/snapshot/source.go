package snapshot

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Source replays the latest stored collections of one named source.
type Source struct {
	store *Store
	name  string
}

// Source returns an offline source backed by the store.
func (s *Store) Source(name string) *Source {
	return &Source{store: s, name: name}
}

// Name returns the source name.
func (s *Source) Name() string { return s.name }

// Fetch returns the newest stored collection for t.
func (s *Source) Fetch(ctx context.Context, t resource.Type) (*resource.Collection, error) {
	coll, entry, err := s.store.Latest(s.name, t)
	if err != nil {
		return nil, err
	}
	log.Info().Ctx(ctx).
		Str("source", s.name).
		Str("resource_type", string(t)).
		Int64("revision", entry.Revision).
		Time("saved_at", entry.SavedAt).
		Msg("loaded snapshot")
	return coll, nil
}
