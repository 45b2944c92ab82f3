// package tasks implements goal-driven playlist building over the track catalog.
//
// The core abstraction is PlaylistBuilder, which turns a goal into a ranked, sequenced playlist.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/goals"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/scoring"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/similarity"
	"github.com/desertthunder/cadence/internal/sources"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPlaylistLimit  = 25
	DefaultPerSourceLimit = 50
	DefaultFetchWorkers   = 4
)

// TrackCacher stores fetched catalog tracks for offline use.
type TrackCacher interface {
	CacheTrack(track models.Track) error
}

// BuildRequest describes one playlist to build. Sources overrides the goal's own sources.
type BuildRequest struct {
	Goal       string
	Sources    []string
	ListenerID string
	Limit      int
}

// SourceError records a source that could not be fetched.
type SourceError struct {
	SourceID string
	Err      error
}

// BuildResult contains the resolved goal and the playlist built for it.
type BuildResult struct {
	Goal          models.GoalDescriptor
	Sources       []string         // Expanded sources that were searched
	Candidates    int              // Unique tracks fetched
	Eligible      int              // Tracks that passed the goal filter
	Tracks        []scoring.Scored // Playlist in play order
	FailedSources []SourceError
}

// Playlist returns the tracks in play order.
func (r *BuildResult) Playlist() []models.Track {
	out := make([]models.Track, len(r.Tracks))
	for i, s := range r.Tracks {
		out[i] = s.Track
	}
	return out
}

// BuilderOpts configures a [PlaylistBuilder]. Only Catalog is required.
type BuilderOpts struct {
	Catalog        services.Catalog
	Resolver       *goals.Resolver
	Expander       *sources.Expander
	Scorer         *scoring.Engine
	History        scoring.Guard // Listener play history; read, never written
	Threshold      float64       // Repetition threshold; zero uses the guard's default
	Cache          TrackCacher
	PerSourceLimit int
	Workers        int
	Logger         *log.Logger
}

// PlaylistBuilder turns goals into sequenced playlists.
//
// Only one build is live at a time: starting a build cancels the previous one.
type PlaylistBuilder struct {
	opts   BuilderOpts
	logger *log.Logger

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewPlaylistBuilder creates a new PlaylistBuilder, filling unset collaborators with defaults.
func NewPlaylistBuilder(opts BuilderOpts) (*PlaylistBuilder, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Resolver == nil {
		opts.Resolver = goals.NewResolver()
	}
	if opts.Expander == nil {
		opts.Expander = sources.Default()
	}
	if opts.Scorer == nil {
		opts.Scorer = scoring.NewEngine(scoring.EngineOpts{Logger: opts.Logger})
	}
	if opts.PerSourceLimit <= 0 {
		opts.PerSourceLimit = DefaultPerSourceLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultFetchWorkers
	}
	logger := opts.Logger
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	return &PlaylistBuilder{opts: opts, logger: logger}, nil
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// begin supersedes any in-flight build and returns the context and generation for a new one.
func (b *PlaylistBuilder) begin(ctx context.Context) (context.Context, uint64, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
	b.gen++
	gen := b.gen
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	return ctx, gen, func() {
		b.mu.Lock()
		if b.gen == gen {
			b.cancel = nil
		}
		b.mu.Unlock()
		cancel()
	}
}

func (b *PlaylistBuilder) current(gen uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gen == gen
}

// Build resolves the goal, fetches candidates from every expanded source and returns them
// filtered, ranked and sequenced.
//
// Returns [shared.ErrSuperseded] when a later Build started before this one finished and
// [shared.ErrNoMatches] when no candidate fits the goal.
func (b *PlaylistBuilder) Build(ctx context.Context, progress chan<- ProgressUpdate, req BuildRequest) (*BuildResult, error) {
	ctx, gen, done := b.begin(ctx)
	defer done()

	goal := b.opts.Resolver.Resolve(req.Goal)
	sendProgress(progress, resolvedGoalUpdate(goal))

	ids := req.Sources
	if len(ids) == 0 {
		ids = goal.Sources
	}
	expanded := b.opts.Expander.Expand(ids)
	if len(expanded) == 0 {
		return nil, fmt.Errorf("%w: goal %s has no usable sources", shared.ErrNoMatches, goal.ID)
	}
	sendProgress(progress, expandedSourcesUpdate(expanded))

	result := &BuildResult{Goal: goal, Sources: expanded}

	fetched, failed, err := b.fetch(ctx, progress, goal, expanded)
	if !b.current(gen) {
		return nil, shared.ErrSuperseded
	}
	if err != nil {
		return nil, err
	}
	result.FailedSources = failed
	if len(failed) == len(expanded) {
		errs := make([]error, len(failed))
		for i, f := range failed {
			errs[i] = f.Err
		}
		return nil, fmt.Errorf("%w: every source failed: %w", shared.ErrCatalogRequest, errors.Join(errs...))
	}

	candidates := dedupe(fetched)
	result.Candidates = len(candidates)
	b.cacheAll(candidates)

	ranked := b.opts.Scorer.Ranked(b.opts.Scorer.Filter(candidates, goal), goal)
	result.Eligible = len(ranked)
	sendProgress(progress, rankedUpdate(result.Candidates, result.Eligible))
	if len(ranked) == 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoMatches, goal.Name)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultPlaylistLimit
	}

	scores := make(map[string]int, len(ranked))
	ordered := make([]models.Track, len(ranked))
	for i, s := range ranked {
		scores[s.Track.ID] = s.Score
		ordered[i] = s.Track
	}

	seq := scoring.NewSequencer(scoring.SequencerOpts{
		Guard:     b.playlistGuard(),
		Threshold: b.opts.Threshold,
		Logger:    b.logger,
	})
	playlist := seq.Sequence(nil, ordered, goal, req.ListenerID, limit)

	result.Tracks = make([]scoring.Scored, len(playlist))
	for i, t := range playlist {
		result.Tracks[i] = scoring.Scored{Track: t, Score: scores[t.ID]}
	}
	sendProgress(progress, sequencedUpdate(len(result.Tracks)))

	if !b.current(gen) {
		return nil, shared.ErrSuperseded
	}

	b.logger.Info("built playlist", "goal", goal.ID, "sources", len(expanded), "candidates", result.Candidates, "tracks", len(result.Tracks))
	return result, nil
}

// fetch searches every source concurrently. Per-source failures are collected rather than
// aborting the build; only cancellation is returned as an error.
func (b *PlaylistBuilder) fetch(ctx context.Context, progress chan<- ProgressUpdate, goal models.GoalDescriptor, ids []string) ([][]models.Track, []SourceError, error) {
	results := make([][]models.Track, len(ids))
	errs := make([]error, len(ids))

	var (
		mu        sync.Mutex
		completed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Workers)

	for i, id := range ids {
		g.Go(func() error {
			tracks, err := b.opts.Catalog.SearchTracks(gctx, models.SearchCriteria{
				Source: id,
				Goal:   goal.BackendKey,
				MinBPM: models.Float(goal.BPMRange.Min),
				MaxBPM: models.Float(goal.BPMRange.Max),
				Limit:  b.opts.PerSourceLimit,
			})
			if err := gctx.Err(); err != nil {
				return err
			}

			results[i], errs[i] = tracks, err
			if err != nil {
				b.logger.Warn("source fetch failed", "source", id, "error", err)
			}

			mu.Lock()
			completed++
			sendProgress(progress, fetchedSourceUpdate(completed, len(ids), id, len(tracks), err))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var failed []SourceError
	for i, err := range errs {
		if err != nil {
			failed = append(failed, SourceError{SourceID: ids[i], Err: err})
		}
	}
	return results, failed, nil
}

// playlistGuard combines the listener's play history with a scratch guard so a playlist
// avoids repeating itself without writing to the shared history.
func (b *PlaylistBuilder) playlistGuard() scoring.Guard {
	return &layeredGuard{
		history: b.opts.History,
		local:   similarity.NewGuard(similarity.GuardOpts{Threshold: b.opts.Threshold, Logger: b.logger}),
	}
}

func (b *PlaylistBuilder) cacheAll(tracks []models.Track) {
	if b.opts.Cache == nil {
		return
	}
	for _, t := range tracks {
		if err := b.opts.Cache.CacheTrack(t); err != nil {
			b.logger.Debug("failed to cache track", "track", t.ID, "error", err)
		}
	}
}

// dedupe flattens per-source results, keeping the first occurrence of each track ID.
func dedupe(bySource [][]models.Track) []models.Track {
	seen := make(map[string]struct{})
	var out []models.Track
	for _, tracks := range bySource {
		for _, t := range tracks {
			if t.ID == "" {
				continue
			}
			if _, ok := seen[t.ID]; ok {
				continue
			}
			seen[t.ID] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// scratchListener keys the per-build history so it is checked even for anonymous builds.
const scratchListener = "playlist"

type layeredGuard struct {
	history scoring.Guard
	local   *similarity.Guard
}

func (g *layeredGuard) IsTooSimilar(t models.Track, listenerID string, threshold float64) bool {
	if g.history != nil && g.history.IsTooSimilar(t, listenerID, threshold) {
		return true
	}
	return g.local.IsTooSimilar(t, scratchListener, threshold)
}

func (g *layeredGuard) MaxSimilarity(t models.Track, listenerID string) float64 {
	sim := g.local.MaxSimilarity(t, scratchListener)
	if g.history != nil {
		sim = max(sim, g.history.MaxSimilarity(t, listenerID))
	}
	return sim
}

func (g *layeredGuard) AddToHistory(t models.Track, listenerID string) {
	g.local.AddToHistory(t, scratchListener)
}
