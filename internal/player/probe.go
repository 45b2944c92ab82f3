package player

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/shared"
)

// ProbeOutputOpts configures a [ProbeOutput].
type ProbeOutputOpts struct {
	Client *http.Client
	Logger *log.Logger
	// DefaultDuration is the simulated play time for tracks without a known duration.
	DefaultDuration time.Duration
	// Speed scales simulated play time; 2 plays twice as fast. Zero means real time.
	Speed float64
}

// ProbeOutput is a headless [Output]. Loading issues a one-byte ranged GET against the stream
// URL; playback is simulated with a timer for the track's duration.
type ProbeOutput struct {
	client   *http.Client
	logger   *log.Logger
	fallback time.Duration
	speed    float64

	mu         sync.Mutex
	handler    Handler
	generation uint64
	remaining  time.Duration
	startedAt  time.Time
	timer      *time.Timer
	ready      bool
}

// NewProbeOutput creates a [ProbeOutput].
func NewProbeOutput(opts ProbeOutputOpts) *ProbeOutput {
	o := &ProbeOutput{client: opts.Client, logger: opts.Logger, fallback: opts.DefaultDuration, speed: opts.Speed}
	if o.client == nil {
		o.client = &http.Client{Timeout: 15 * time.Second}
	}
	if o.logger == nil {
		o.logger = shared.DiscardLogger()
	}
	if o.fallback <= 0 {
		o.fallback = 3 * time.Minute
	}
	if o.speed <= 0 {
		o.speed = 1
	}
	return o
}

func (o *ProbeOutput) Bind(h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handler = h
}

// Load stops the current track and probes req.URL in the background. A request older than
// the current load is ignored.
func (o *ProbeOutput) Load(ctx context.Context, req LoadRequest) error {
	o.mu.Lock()
	if req.Generation < o.generation {
		o.mu.Unlock()
		return nil
	}
	o.stopTimer()
	o.generation = req.Generation
	o.ready = false
	o.remaining = o.fallback
	if req.Track.Duration > 0 {
		o.remaining = time.Duration(req.Track.Duration) * time.Second
	}
	o.remaining = time.Duration(float64(o.remaining) / o.speed)
	o.mu.Unlock()

	go o.probe(ctx, req)
	return nil
}

func (o *ProbeOutput) probe(ctx context.Context, req LoadRequest) {
	if err := o.check(ctx, req.URL); err != nil {
		if ctx.Err() != nil {
			return
		}
		o.logger.Warn("stream probe failed", "url", req.URL, "err", err)
		o.emit(Event{Kind: EventErrored, Generation: req.Generation, Err: err})
		return
	}

	o.mu.Lock()
	if o.generation != req.Generation {
		o.mu.Unlock()
		return
	}
	o.ready = true
	d := o.remaining
	o.mu.Unlock()

	o.emit(Event{Kind: EventLoaded, Generation: req.Generation, Duration: d})
	o.emit(Event{Kind: EventCanPlay, Generation: req.Generation})
}

func (o *ProbeOutput) check(ctx context.Context, url string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	httpReq.Header.Set("Range", "bytes=0-1")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64))

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("stream returned status %d", resp.StatusCode)
	}
	return nil
}

// Play starts or resumes the simulated playback timer.
func (o *ProbeOutput) Play(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return fmt.Errorf("no track ready")
	}
	if o.timer != nil {
		return nil
	}
	gen := o.generation
	o.startedAt = time.Now()
	o.timer = time.AfterFunc(o.remaining, func() {
		o.mu.Lock()
		current := o.generation == gen
		if current {
			o.timer = nil
			o.remaining = 0
		}
		o.mu.Unlock()
		if current {
			o.emit(Event{Kind: EventEnded, Generation: gen})
		}
	})
	return nil
}

// Pause stops the timer, keeping the remaining time.
func (o *ProbeOutput) Pause(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.timer == nil {
		return nil
	}
	o.stopTimer()
	o.remaining = max(0, o.remaining-time.Since(o.startedAt))
	return nil
}

func (o *ProbeOutput) stopTimer() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *ProbeOutput) emit(ev Event) {
	o.mu.Lock()
	h := o.handler
	o.mu.Unlock()
	if h != nil {
		h.Handle(ev)
	}
}
