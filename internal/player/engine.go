package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const (
	MaxQueue    = 50
	ExtendGuard = 3
	ExtendChunk = 10

	DefaultMaxConsecutiveFailures = 5
)

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Resolver StreamResolver
	Logger   *log.Logger
	// MaxConsecutiveFailures halts the queue after this many load failures in a row.
	MaxConsecutiveFailures int
	// AutoAdvance moves to the next track on ended and errored events.
	AutoAdvance bool
	// AutoPlay starts playback as soon as the first track of a new queue is ready.
	AutoPlay bool
	Clock    func() time.Time
}

// Engine is the playback queue state machine. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	out      Output
	resolver StreamResolver
	logger   *log.Logger
	now      func() time.Time

	maxFailures int
	autoAdvance bool
	autoPlay    bool

	active  []models.Track
	backlog []models.Track
	index   int
	state   State

	generation uint64
	intent     bool
	started    bool // current track reported TrackStarted
	succeeded  bool // any track in this queue became playable
	failures   int
	duration   time.Duration

	observers []Observer

	// outbox holds output calls in the order their transitions happened; one caller at a
	// time drains it so the output never sees an older load after a newer one.
	outbox     []effect
	delivering bool

	ctx        context.Context
	cancel     context.CancelFunc
	cancelLoad context.CancelFunc
}

// effect is an output call computed under the lock and performed after it is released.
// It is dropped at delivery when its generation is no longer current.
type effect struct {
	generation uint64
	load       *LoadRequest
	loadCtx    context.Context
	play       bool
	pause      bool
}

// pending collects the side effects of one transition.
type pending struct {
	effects []effect
	notices []Notice
}

// NewEngine creates an idle engine bound to out.
func NewEngine(out Output, opts EngineOpts) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		out:         out,
		resolver:    opts.Resolver,
		logger:      opts.Logger,
		now:         opts.Clock,
		maxFailures: opts.MaxConsecutiveFailures,
		autoAdvance: opts.AutoAdvance,
		autoPlay:    opts.AutoPlay,
		state:       StateEmpty,
		ctx:         ctx,
		cancel:      cancel,
	}
	if e.resolver == nil {
		e.resolver = ResolverFunc(func(t models.Track) string { return t.ID })
	}
	if e.logger == nil {
		e.logger = shared.DiscardLogger()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.maxFailures <= 0 {
		e.maxFailures = DefaultMaxConsecutiveFailures
	}
	e.intent = e.autoPlay
	out.Bind(e)
	return e
}

// AddObserver registers o for notices.
func (e *Engine) AddObserver(o Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// Close cancels any in-flight load. The engine must not be used afterwards.
func (e *Engine) Close() {
	e.cancel()
}

// SetQueue replaces the queue with tracks, keeping at most [MaxQueue] active and the rest
// in the backlog, and starts loading the track at startAt (clamped). An empty list empties
// the engine without loading.
func (e *Engine) SetQueue(tracks []models.Track, startAt int) {
	e.mu.Lock()
	p := &pending{}
	e.skipCurrent(p)

	n := min(len(tracks), MaxQueue)
	e.active = append([]models.Track(nil), tracks[:n]...)
	e.backlog = append([]models.Track(nil), tracks[n:]...)
	e.failures = 0
	e.succeeded = false
	e.intent = e.intent || e.autoPlay

	if len(e.active) == 0 {
		e.index = 0
		e.state = StateEmpty
		e.generation++
		e.stopLoad()
		e.mu.Unlock()
		e.flush(p)
		return
	}

	e.index = clamp(startAt, 0, len(e.active)-1)
	e.logger.Debug("queue set", "active", len(e.active), "backlog", len(e.backlog), "index", e.index)
	e.load(p)
	e.mu.Unlock()
	e.flush(p)
}

// PlaySingle replaces the queue with one track and plays it.
func (e *Engine) PlaySingle(t models.Track) {
	e.mu.Lock()
	p := &pending{}
	e.skipCurrent(p)

	e.active = []models.Track{t}
	e.backlog = nil
	e.index = 0
	e.failures = 0
	e.succeeded = false
	e.intent = true
	e.load(p)
	e.mu.Unlock()
	e.flush(p)
}

// PlayAt jumps to position i of the active queue (clamped) and plays it.
func (e *Engine) PlayAt(i int) {
	e.mu.Lock()
	if len(e.active) == 0 {
		e.mu.Unlock()
		return
	}
	p := &pending{}
	e.skipCurrent(p)
	e.index = clamp(i, 0, len(e.active)-1)
	e.intent = true
	e.rearm()
	e.load(p)
	e.mu.Unlock()
	e.flush(p)
}

// Next advances one track, admitting backlog tracks when close to the end. It reports
// whether the engine moved; past the last track with an empty backlog it does nothing.
func (e *Engine) Next() bool {
	e.mu.Lock()
	p := &pending{}
	moved := e.advance(p, true)
	e.mu.Unlock()
	e.flush(p)
	return moved
}

// Prev steps back one track. It reports whether the engine moved.
func (e *Engine) Prev() bool {
	e.mu.Lock()
	if len(e.active) == 0 || e.index == 0 {
		e.mu.Unlock()
		return false
	}
	p := &pending{}
	e.skipCurrent(p)
	e.index--
	e.intent = true
	e.rearm()
	e.load(p)
	e.mu.Unlock()
	e.flush(p)
	return true
}

// Play resumes or starts playback of the current track.
func (e *Engine) Play() {
	e.mu.Lock()
	p := &pending{}
	e.intent = true
	switch e.state {
	case StateReady, StatePaused:
		e.start(p)
	case StateEnded, StateError:
		if len(e.active) > 0 {
			e.rearm()
			e.load(p)
		}
	}
	e.mu.Unlock()
	e.flush(p)
}

// Pause pauses playback. A pending load stays paused once ready.
func (e *Engine) Pause() {
	e.mu.Lock()
	p := &pending{}
	e.intent = false
	if e.state == StatePlaying {
		e.state = StatePaused
		p.effects = append(p.effects, effect{generation: e.generation, pause: true})
	}
	e.mu.Unlock()
	e.flush(p)
}

// Toggle pauses when playing and plays otherwise.
func (e *Engine) Toggle() {
	if e.Snapshot().State == StatePlaying {
		e.Pause()
		return
	}
	e.Play()
}

// Snapshot returns a copy of the engine's current view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Index:               e.index,
		Queue:               append([]models.Track(nil), e.active...),
		QueueLength:         len(e.active),
		BacklogLength:       len(e.backlog),
		State:               e.state,
		ConsecutiveFailures: e.failures,
		Generation:          e.generation,
		Duration:            e.duration,
	}
	if len(e.active) > 0 {
		t := e.active[e.index]
		s.Track = &t
	}
	return s
}

// Handle applies an event. Events whose generation does not match the current load are ignored.
func (e *Engine) Handle(ev Event) {
	e.mu.Lock()
	if ev.Generation != e.generation || len(e.active) == 0 {
		e.logger.Debug("dropping stale event", "event", ev.Kind, "generation", ev.Generation, "current", e.generation)
		e.mu.Unlock()
		return
	}

	p := &pending{}
	switch ev.Kind {
	case EventLoaded:
		if ev.Duration > 0 {
			e.duration = ev.Duration
		}
	case EventCanPlay:
		if e.state != StateLoading {
			break
		}
		e.state = StateReady
		e.failures = 0
		e.succeeded = true
		if e.intent {
			e.start(p)
		}
	case EventEnded:
		e.onEnded(p)
	case EventErrored:
		e.onErrored(p, ev.Err)
	case EventUserPause:
		e.intent = false
		if e.state == StatePlaying {
			e.state = StatePaused
		}
	case EventUserPlay:
		e.intent = true
		if e.state == StateReady || e.state == StatePaused {
			e.state = StatePlaying
			e.announceStart(p)
		}
	}
	e.mu.Unlock()
	e.flush(p)
}

func (e *Engine) onEnded(p *pending) {
	if e.state != StatePlaying && e.state != StatePaused {
		return
	}
	p.notices = append(p.notices, e.notice(TrackEnded, nil))
	e.started = false

	if e.autoAdvance && e.advance(p, false) {
		return
	}
	e.state = StateEnded
	if !e.hasNext() {
		p.notices = append(p.notices, e.notice(QueueEnded, nil))
	}
}

func (e *Engine) onErrored(p *pending, err error) {
	if err == nil {
		err = fmt.Errorf("playback failed")
	}
	e.state = StateError
	e.started = false
	e.failures++
	e.logger.Warn("track failed", "track", e.active[e.index].Title, "failures", e.failures, "err", err)
	p.notices = append(p.notices, e.notice(TrackFailed, err))

	if e.failures >= e.maxFailures {
		e.halt(p, fmt.Errorf("%w: %d consecutive failures", shared.ErrQueueExhausted, e.failures))
		return
	}
	if !e.autoAdvance {
		return
	}
	if e.advance(p, false) {
		return
	}
	if e.succeeded {
		e.state = StateEnded
		p.notices = append(p.notices, e.notice(QueueEnded, nil))
		return
	}
	e.halt(p, shared.ErrQueueExhausted)
}

// halt stops the queue in the error state.
func (e *Engine) halt(p *pending, err error) {
	e.state = StateError
	e.generation++
	e.stopLoad()
	p.notices = append(p.notices, e.notice(QueueExhausted, err))
}

// advance moves to the next track, extending from the backlog first. user marks a manual skip.
func (e *Engine) advance(p *pending, user bool) bool {
	if len(e.active) == 0 {
		return false
	}
	e.extend()
	if e.index+1 >= len(e.active) {
		return false
	}
	if user {
		e.skipCurrent(p)
		e.intent = true
		e.rearm()
	}
	e.index++
	e.load(p)
	return true
}

// rearm clears a tripped failure breaker so a manual move can retry.
func (e *Engine) rearm() {
	if e.failures >= e.maxFailures {
		e.failures = 0
	}
}

func (e *Engine) hasNext() bool {
	return e.index+1 < len(e.active) || len(e.backlog) > 0
}

// extend admits up to [ExtendChunk] backlog tracks once the index is within [ExtendGuard]
// of the end. When the active queue is full, already played tracks are dropped from the
// front to make room.
func (e *Engine) extend() {
	if len(e.backlog) == 0 || e.index < len(e.active)-ExtendGuard {
		return
	}

	n := min(ExtendChunk, len(e.backlog))
	if room := MaxQueue - len(e.active); room < n {
		drop := min(n-room, e.index)
		e.active = append([]models.Track(nil), e.active[drop:]...)
		e.index -= drop
	}
	n = min(n, MaxQueue-len(e.active))

	e.active = append(e.active, e.backlog[:n]...)
	e.backlog = append([]models.Track(nil), e.backlog[n:]...)
	e.logger.Debug("extended queue", "admitted", n, "active", len(e.active), "backlog", len(e.backlog))
}

// load starts loading the current track under a fresh generation.
func (e *Engine) load(p *pending) {
	e.generation++
	e.state = StateLoading
	e.started = false
	e.duration = 0
	e.stopLoad()

	t := e.active[e.index]
	if t.Duration > 0 {
		e.duration = time.Duration(t.Duration) * time.Second
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.cancelLoad = cancel

	req := LoadRequest{URL: e.resolver.ToStreamURL(t), Track: t, Generation: e.generation}
	p.effects = append(p.effects, effect{generation: e.generation, load: &req, loadCtx: ctx})
}

func (e *Engine) stopLoad() {
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
}

func (e *Engine) start(p *pending) {
	e.state = StatePlaying
	p.effects = append(p.effects, effect{generation: e.generation, play: true})
	e.announceStart(p)
}

func (e *Engine) announceStart(p *pending) {
	if e.started {
		return
	}
	e.started = true
	p.notices = append(p.notices, e.notice(TrackStarted, nil))
}

// skipCurrent reports the current track as skipped when it started and has not finished.
func (e *Engine) skipCurrent(p *pending) {
	if e.started && len(e.active) > 0 && (e.state == StatePlaying || e.state == StatePaused) {
		p.notices = append(p.notices, e.notice(TrackSkipped, nil))
	}
	e.started = false
}

func (e *Engine) notice(kind NoticeKind, err error) Notice {
	n := Notice{Kind: kind, Index: e.index, Err: err, At: e.now()}
	if len(e.active) > 0 {
		n.Track = e.active[e.index]
	}
	return n
}

// flush delivers notices and then queues the output calls for delivery, outside the lock.
func (e *Engine) flush(p *pending) {
	if len(p.notices) > 0 {
		e.mu.Lock()
		observers := append([]Observer(nil), e.observers...)
		e.mu.Unlock()
		for _, n := range p.notices {
			for _, o := range observers {
				o.Observe(n)
			}
		}
	}

	if len(p.effects) == 0 {
		return
	}
	e.mu.Lock()
	e.outbox = append(e.outbox, p.effects...)
	e.mu.Unlock()
	e.deliver()
}

// deliver performs queued output calls in order. When another caller is already delivering
// it returns at once and that caller picks the new calls up. Calls whose generation has been
// superseded are dropped.
func (e *Engine) deliver() {
	e.mu.Lock()
	if e.delivering {
		e.mu.Unlock()
		return
	}
	e.delivering = true

	for len(e.outbox) > 0 {
		ef := e.outbox[0]
		e.outbox = e.outbox[1:]
		if ef.generation != e.generation {
			e.logger.Debug("dropping superseded output call", "generation", ef.generation, "current", e.generation)
			continue
		}
		e.mu.Unlock()

		switch {
		case ef.load != nil:
			if err := e.out.Load(ef.loadCtx, *ef.load); err != nil {
				e.Handle(Event{Kind: EventErrored, Generation: ef.load.Generation, Err: err})
			}
		case ef.play:
			if err := e.out.Play(e.ctx); err != nil {
				e.logger.Error("output play failed", "err", err)
			}
		case ef.pause:
			if err := e.out.Pause(e.ctx); err != nil {
				e.logger.Error("output pause failed", "err", err)
			}
		}

		e.mu.Lock()
	}

	e.outbox = nil
	e.delivering = false
	e.mu.Unlock()
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
