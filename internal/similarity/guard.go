package similarity

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const (
	DefaultHistoryLimit = 20
	DefaultThreshold    = 0.7

	// epsilon absorbs float rounding so a score computed as 0.6999999 still meets a 0.7 threshold.
	epsilon = 1e-9

	reportSize = 5
)

// GuardOpts configures a [Guard]. Zero values fall back to the package defaults.
type GuardOpts struct {
	HistoryLimit int
	Threshold    float64
	Logger       *log.Logger
}

// Guard tracks recently played fingerprints per listener.
type Guard struct {
	mu        sync.Mutex
	limit     int
	threshold float64
	history   map[string][]Fingerprint
	logger    *log.Logger
}

// NewGuard creates an empty [Guard].
func NewGuard(opts GuardOpts) *Guard {
	g := &Guard{
		limit:     opts.HistoryLimit,
		threshold: opts.Threshold,
		history:   make(map[string][]Fingerprint),
		logger:    opts.Logger,
	}
	if g.limit <= 0 {
		g.limit = DefaultHistoryLimit
	}
	if g.threshold <= 0 {
		g.threshold = DefaultThreshold
	}
	if g.logger == nil {
		g.logger = shared.DiscardLogger()
	}
	return g
}

// Threshold returns the configured default threshold.
func (g *Guard) Threshold() float64 {
	return g.threshold
}

// IsTooSimilar reports whether t resembles any track in the listener's history at or above
// threshold. A threshold of zero or less uses the configured default. Anonymous listeners
// (empty id) are never blocked.
func (g *Guard) IsTooSimilar(t models.Track, listenerID string, threshold float64) bool {
	_, too := g.check(t, listenerID, threshold)
	return too
}

// MaxSimilarity returns the highest similarity between t and the listener's history, 0 when
// the history is empty.
func (g *Guard) MaxSimilarity(t models.Track, listenerID string) float64 {
	best, _ := g.check(t, listenerID, 0)
	return best
}

func (g *Guard) check(t models.Track, listenerID string, threshold float64) (float64, bool) {
	if listenerID == "" {
		return 0, false
	}
	if threshold <= 0 {
		threshold = g.threshold
	}

	g.mu.Lock()
	history := g.history[listenerID]
	g.mu.Unlock()

	if len(history) == 0 {
		return 0, false
	}

	fp := NewFingerprint(t)
	best, too := 0.0, false
	for _, h := range history {
		s := Similarity(fp, h)
		if s > best {
			best = s
		}
		if s+epsilon >= threshold && !too {
			too = true
			g.logger.Debug("high similarity", "track", t.Title, "previous", h.Title, "score", s)
		}
	}
	return best, too
}

// AddToHistory records t for the listener, evicting the oldest entry once the history is full.
func (g *Guard) AddToHistory(t models.Track, listenerID string) {
	if listenerID == "" {
		return
	}
	fp := NewFingerprint(t)

	g.mu.Lock()
	defer g.mu.Unlock()

	h := append(g.history[listenerID], fp)
	if len(h) > g.limit {
		h = append([]Fingerprint(nil), h[len(h)-g.limit:]...)
	}
	g.history[listenerID] = h
	g.logger.Debug("added fingerprint", "track", t.Title, "listener", shared.ShortID(listenerID), "size", len(h))
}

// ClearHistory forgets everything recorded for the listener.
func (g *Guard) ClearHistory(listenerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.history, listenerID)
	g.logger.Debug("cleared history", "listener", shared.ShortID(listenerID))
}

// History returns a copy of the listener's fingerprints, oldest first.
func (g *Guard) History(listenerID string) []Fingerprint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Fingerprint(nil), g.history[listenerID]...)
}

// ReportEntry describes one remembered track.
type ReportEntry struct {
	Title  string   `json:"title"`
	Words  []string `json:"words"`
	BPM    *float64 `json:"bpm,omitempty"`
	Energy *float64 `json:"energy,omitempty"`
}

// Report summarizes a listener's history for debugging.
type Report struct {
	HistorySize  int           `json:"history_size"`
	RecentTracks []ReportEntry `json:"recent_tracks"`
}

// Report returns the history size and the five most recent fingerprints.
func (g *Guard) Report(listenerID string) Report {
	h := g.History(listenerID)
	r := Report{HistorySize: len(h), RecentTracks: []ReportEntry{}}

	start := max(0, len(h)-reportSize)
	for _, fp := range h[start:] {
		r.RecentTracks = append(r.RecentTracks, ReportEntry{
			Title:  fp.Title,
			Words:  fp.Words(),
			BPM:    fp.BPM,
			Energy: fp.Energy,
		})
	}
	return r
}
