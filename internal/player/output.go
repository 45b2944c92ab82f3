package player

import (
	"context"

	"github.com/desertthunder/cadence/internal/models"
)

// Handler consumes events. [Engine] implements it.
type Handler interface {
	Handle(Event)
}

// LoadRequest asks an output to prepare one track.
type LoadRequest struct {
	URL        string
	Track      models.Track
	Generation uint64
}

// Output is the single audio sink driven by the engine.
//
// Load starts preparing a track and returns; progress is reported to the bound handler
// as events stamped with the request's generation. A returned error is treated as an
// errored load. Play and Pause act on the most recently loaded track.
type Output interface {
	Bind(Handler)
	Load(ctx context.Context, req LoadRequest) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
}

// StreamResolver converts a track into a playable URL. It must not block.
type StreamResolver interface {
	ToStreamURL(models.Track) string
}

// ResolverFunc adapts a function to [StreamResolver].
type ResolverFunc func(models.Track) string

func (f ResolverFunc) ToStreamURL(t models.Track) string { return f(t) }
