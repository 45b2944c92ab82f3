package services

import (
	"context"

	"github.com/desertthunder/cadence/internal/models"
	"golang.org/x/sync/singleflight"
)

// Coalescer shares in-flight catalog calls between concurrent callers with identical requests.
type Coalescer struct {
	next  Catalog
	group singleflight.Group
}

// NewCoalescer wraps next.
func NewCoalescer(next Catalog) *Coalescer {
	return &Coalescer{next: next}
}

// SearchTracks implements [Catalog]. Each caller receives its own copy of the result.
func (c *Coalescer) SearchTracks(ctx context.Context, crit models.SearchCriteria) ([]models.Track, error) {
	v, err := c.do(ctx, "tracks?"+crit.Signature(), func(ctx context.Context) (any, error) {
		return c.next.SearchTracks(ctx, crit)
	})
	if err != nil {
		return nil, err
	}
	return append([]models.Track(nil), v.([]models.Track)...), nil
}

// ListSourceObjects implements [Catalog].
func (c *Coalescer) ListSourceObjects(ctx context.Context, sourceID string) ([]models.ObjectRef, error) {
	v, err := c.do(ctx, "objects?source="+sourceID, func(ctx context.Context) (any, error) {
		return c.next.ListSourceObjects(ctx, sourceID)
	})
	if err != nil {
		return nil, err
	}
	return append([]models.ObjectRef(nil), v.([]models.ObjectRef)...), nil
}

// do runs fn once per key among concurrent callers. The shared call is detached from any
// single caller's cancellation; each caller still stops waiting when its own ctx is done.
func (c *Coalescer) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
