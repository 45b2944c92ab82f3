// Package telemetry records listening sessions and flushes their summaries to a store.
//
// Telemetry is best-effort: store failures are logged and never returned to playback code.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/player"
	"github.com/desertthunder/cadence/internal/shared"
)

// Session types recorded by the CLI and server.
const (
	SessionTherapeutic = "therapeutic"
	SessionCasual      = "casual"
	SessionFocus       = "focus"
	SessionRelaxation  = "relaxation"
)

// Store persists closed sessions.
type Store interface {
	SaveSession(ctx context.Context, summary models.SessionSummary) error
}

// TrackerOpts configures a [Tracker].
type TrackerOpts struct {
	ListenerID string
	Clock      func() time.Time
	Logger     *log.Logger
}

// Tracker holds at most one open session. It is safe for concurrent use.
type Tracker struct {
	mu       sync.Mutex
	store    Store
	listener string
	now      func() time.Time
	logger   *log.Logger
	current  *session
}

type session struct {
	id      string
	kind    string
	goal    string
	started time.Time
	played  []string
	skipped []string
	genres  map[string]struct{}
}

// Info describes the open session.
type Info struct {
	SessionID      string        `json:"session_id"`
	SessionType    string        `json:"session_type"`
	Goal           string        `json:"goal,omitempty"`
	Elapsed        time.Duration `json:"elapsed"`
	TracksPlayed   int           `json:"tracks_played"`
	SkippedTracks  int           `json:"skipped_tracks"`
	DominantGenres []string      `json:"dominant_genres"`
}

// NewTracker creates a [Tracker] writing to store.
func NewTracker(store Store, opts TrackerOpts) *Tracker {
	t := &Tracker{store: store, listener: opts.ListenerID, now: opts.Clock, logger: opts.Logger}
	if t.now == nil {
		t.now = time.Now
	}
	if t.logger == nil {
		t.logger = shared.DiscardLogger()
	}
	return t
}

// StartSession opens a new session, discarding any session still open, and returns its id.
func (t *Tracker) StartSession(sessionType, goal string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil {
		t.logger.Warn("replacing open session", "session", shared.ShortID(t.current.id))
	}
	t.current = &session{
		id:      shared.GenerateID(),
		kind:    sessionType,
		goal:    goal,
		started: t.now(),
		genres:  make(map[string]struct{}),
	}
	t.logger.Info("session started", "session", shared.ShortID(t.current.id), "type", sessionType, "goal", goal)
	return t.current.id
}

// TrackPlayed records a play. Without an open session it only logs a warning.
func (t *Tracker) TrackPlayed(trackID, genre string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		t.logger.Warn("no active session to track play for", "track", trackID)
		return
	}
	t.current.played = append(t.current.played, trackID)
	if genre != "" {
		t.current.genres[genre] = struct{}{}
	}
	t.logger.Debug("tracked play", "track", trackID, "genre", genre, "played", len(t.current.played))
}

// TrackSkipped records a skip. Without an open session it only logs a warning.
func (t *Tracker) TrackSkipped(trackID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == nil {
		t.logger.Warn("no active session to track skip for", "track", trackID)
		return
	}
	t.current.skipped = append(t.current.skipped, trackID)
	t.logger.Debug("tracked skip", "track", trackID, "skipped", len(t.current.skipped))
}

// EndSession closes the open session and hands its summary to the store.
//
// The session is discarded even when the store fails; the failure is logged and the
// summary is still returned. Without an open session it returns [shared.ErrNoActiveSession].
func (t *Tracker) EndSession(ctx context.Context) (models.SessionSummary, error) {
	t.mu.Lock()
	s := t.current
	t.current = nil
	t.mu.Unlock()

	if s == nil {
		t.logger.Warn("no active session to end")
		return models.SessionSummary{}, shared.ErrNoActiveSession
	}

	summary := t.summarize(s)
	if t.store != nil {
		if err := t.store.SaveSession(ctx, summary); err != nil {
			t.logger.Error("session not saved", "session", shared.ShortID(summary.SessionID), "err", fmt.Errorf("%w: %w", shared.ErrSaveFailed, err))
			return summary, nil
		}
	}

	t.logger.Info("session saved",
		"session", shared.ShortID(summary.SessionID),
		"duration", summary.Duration.Round(time.Second),
		"played", len(summary.TracksPlayed),
		"skip_rate", fmt.Sprintf("%.0f%%", summary.SkipRate*100),
	)
	return summary, nil
}

// ForceSave flushes the open session if there is one. Calling it repeatedly is safe.
func (t *Tracker) ForceSave(ctx context.Context) error {
	if _, ok := t.Active(); !ok {
		return nil
	}
	if _, err := t.EndSession(ctx); err != nil && !errors.Is(err, shared.ErrNoActiveSession) {
		return err
	}
	return nil
}

// Active reports the open session, if any.
func (t *Tracker) Active() (Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.current
	if s == nil {
		return Info{}, false
	}
	return Info{
		SessionID:      s.id,
		SessionType:    s.kind,
		Goal:           s.goal,
		Elapsed:        t.now().Sub(s.started),
		TracksPlayed:   len(s.played),
		SkippedTracks:  len(s.skipped),
		DominantGenres: sortedKeys(s.genres),
	}, true
}

func (t *Tracker) summarize(s *session) models.SessionSummary {
	end := t.now()
	total := len(s.played) + len(s.skipped)
	rate := 0.0
	if total > 0 {
		rate = float64(len(s.skipped)) / float64(total)
	}
	return models.SessionSummary{
		SessionID:      s.id,
		ListenerID:     t.listener,
		SessionType:    s.kind,
		Goal:           s.goal,
		StartedAt:      s.started,
		EndedAt:        end,
		Duration:       end.Sub(s.started),
		TracksPlayed:   append([]string{}, s.played...),
		SkippedTracks:  append([]string{}, s.skipped...),
		SkipRate:       rate,
		DominantGenres: sortedKeys(s.genres),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Observer feeds player notices into a [Tracker], opening a session on the first play.
type Observer struct {
	Tracker     *Tracker
	SessionType string
	Goal        string
}

var _ player.Observer = (*Observer)(nil)

// Observe implements [player.Observer].
func (o *Observer) Observe(n player.Notice) {
	switch n.Kind {
	case player.TrackStarted:
		if _, ok := o.Tracker.Active(); !ok {
			kind := o.SessionType
			if kind == "" {
				kind = SessionTherapeutic
			}
			o.Tracker.StartSession(kind, o.Goal)
		}
		o.Tracker.TrackPlayed(n.Track.ID, n.Track.Genre)
	case player.TrackSkipped:
		o.Tracker.TrackSkipped(n.Track.ID)
	}
}
