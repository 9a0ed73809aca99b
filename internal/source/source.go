// Package source defines where resource collections come from.
package source

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/towercmp/pkg/resource"
)

// Source is implemented by everything that can produce collections: the
// live API fetcher and the offline snapshot reader.
type Source interface {
	// Name returns the side label, e.g. "Tower" or "AWX".
	Name() string

	// Fetch returns the full collection of the given type.
	Fetch(ctx context.Context, t resource.Type) (*resource.Collection, error)
}

// Saver persists fetched collections.
type Saver interface {
	Save(source string, c *resource.Collection) (int64, error)
}

// Recording saves every collection its wrapped source returns.
type Recording struct {
	src   Source
	saver Saver
}

// NewRecording wraps src so successful fetches are saved to saver.
func NewRecording(src Source, saver Saver) *Recording {
	return &Recording{src: src, saver: saver}
}

// Name returns the wrapped source name.
func (r *Recording) Name() string { return r.src.Name() }

// Fetch fetches from the wrapped source, then saves the result. A failed
// save is logged and does not fail the fetch.
func (r *Recording) Fetch(ctx context.Context, t resource.Type) (*resource.Collection, error) {
	coll, err := r.src.Fetch(ctx, t)
	if err != nil {
		return nil, err
	}

	rev, err := r.saver.Save(r.src.Name(), coll)
	if err != nil {
		log.Error().Ctx(ctx).
			Err(err).
			Str("source", r.src.Name()).
			Str("resource_type", string(t)).
			Msg("failed to save snapshot")
		return coll, nil
	}

	log.Debug().Ctx(ctx).
		Str("source", r.src.Name()).
		Str("resource_type", string(t)).
		Int64("revision", rev).
		Msg("saved snapshot")
	return coll, nil
}
