package player

import (
	"time"

	"github.com/desertthunder/cadence/internal/models"
)

// State is the engine's playback state.
type State string

const (
	StateEmpty   State = "empty"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateError   State = "error"
)

// EventKind tags events reported by an [Output] or a user.
type EventKind int

const (
	EventLoaded EventKind = iota
	EventCanPlay
	EventEnded
	EventErrored
	EventUserPause
	EventUserPlay
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventCanPlay:
		return "can-play"
	case EventEnded:
		return "ended"
	case EventErrored:
		return "errored"
	case EventUserPause:
		return "user-pause"
	case EventUserPlay:
		return "user-play"
	default:
		return "unknown"
	}
}

// Event is one input to [Engine.Handle].
type Event struct {
	Kind       EventKind
	Generation uint64
	Duration   time.Duration // set on EventLoaded when known
	Err        error         // set on EventErrored
}

// NoticeKind tags notifications delivered to observers.
type NoticeKind int

const (
	TrackStarted NoticeKind = iota
	TrackEnded
	TrackSkipped
	TrackFailed
	QueueExhausted
	QueueEnded
)

func (k NoticeKind) String() string {
	return [...]string{"track-started", "track-ended", "track-skipped", "track-failed", "queue-exhausted", "queue-ended"}[k]
}

// Notice describes something observers may care about.
type Notice struct {
	Kind  NoticeKind
	Track models.Track
	Index int
	Err   error
	At    time.Time
}

// Observer receives engine notices.
type Observer interface {
	Observe(Notice)
}

// ObserverFunc adapts a function to [Observer].
type ObserverFunc func(Notice)

func (f ObserverFunc) Observe(n Notice) { f(n) }

// Snapshot is a read-only view of the engine.
type Snapshot struct {
	Index               int
	Track               *models.Track
	Queue               []models.Track
	QueueLength         int
	BacklogLength       int
	State               State
	ConsecutiveFailures int
	Generation          uint64
	Duration            time.Duration
}
