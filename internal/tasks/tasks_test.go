package tasks

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/similarity"
	fakes "github.com/desertthunder/cadence/internal/testing"
)

func bpmTrack(id, title string, bpm float64) models.Track {
	return models.Track{
		ID:           id,
		Title:        title,
		BPM:          models.Float(bpm),
		SourceBucket: "calm",
		SourceKey:    id + ".mp3",
		AudioStatus:  models.AudioWorking,
	}
}

func focusCatalog() *fakes.MockCatalog {
	return fakes.NewMockCatalog(map[string][]models.Track{
		"calm": {
			bpmTrack("t-60", "Morning Haze", 60),
			bpmTrack("t-85", "Quiet Library", 85),
			bpmTrack("t-95", "Paper Lanterns", 95),
			bpmTrack("t-110", "Night Drive", 110),
			bpmTrack("t-88", "Desk Lamp Glow", 88),
		},
	})
}

// failingCatalog errors for the listed sources and delegates the rest.
type failingCatalog struct {
	*fakes.MockCatalog
	failing map[string]bool
}

func (c *failingCatalog) SearchTracks(ctx context.Context, crit models.SearchCriteria) ([]models.Track, error) {
	if c.failing[crit.Source] {
		return nil, fmt.Errorf("%w: %s unavailable", shared.ErrCatalogRequest, crit.Source)
	}
	return c.MockCatalog.SearchTracks(ctx, crit)
}

// blockingCatalog holds every search until its context ends or release is closed.
type blockingCatalog struct {
	*fakes.MockCatalog
	started chan struct{}
	release chan struct{}
}

func (c *blockingCatalog) SearchTracks(ctx context.Context, crit models.SearchCriteria) ([]models.Track, error) {
	select {
	case c.started <- struct{}{}:
	default:
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.release:
		return c.MockCatalog.SearchTracks(ctx, crit)
	}
}

func TestPlaylistBuilder(t *testing.T) {
	t.Run("New Requires Catalog", func(t *testing.T) {
		_, err := NewPlaylistBuilder(BuilderOpts{})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("Build Filters And Ranks By Goal", func(t *testing.T) {
		catalog := focusCatalog()
		b, err := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})
		if err != nil {
			t.Fatalf("NewPlaylistBuilder failed: %v", err)
		}

		res, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus-enhancement", Sources: []string{"calm"}})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}

		if res.Goal.ID != "focus-enhancement" {
			t.Errorf("goal = %s", res.Goal.ID)
		}
		if res.Candidates != 5 || res.Eligible != 3 {
			t.Errorf("candidates/eligible = %d/%d, want 5/3", res.Candidates, res.Eligible)
		}

		got := res.Playlist()
		want := []string{"t-85", "t-88", "t-95"}
		if len(got) != len(want) {
			t.Fatalf("expected %d tracks, got %d", len(want), len(got))
		}
		for i, id := range want {
			if got[i].ID != id {
				t.Errorf("track %d = %s, want %s", i, got[i].ID, id)
			}
		}
		if res.Tracks[0].Score < res.Tracks[1].Score {
			t.Errorf("expected scores to descend, got %d then %d", res.Tracks[0].Score, res.Tracks[1].Score)
		}

		crit := catalog.Searches[0]
		if crit.Goal != "focus-enhancement" || *crit.MinBPM != 78 || *crit.MaxBPM != 100 {
			t.Errorf("unexpected criteria: %+v", crit)
		}
	})

	t.Run("Build Uses Goal Sources When None Requested", func(t *testing.T) {
		catalog := fakes.NewMockCatalog(map[string][]models.Track{
			"neuralpositivemusic": {bpmTrack("t-1", "Clear Water", 86)},
		})
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})

		res, err := b.Build(t.Context(), nil, BuildRequest{Goal: "study"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if len(res.Sources) == 0 || res.Sources[0] != "focus-music" {
			t.Errorf("expected goal sources to be searched, got %v", res.Sources)
		}
		if len(res.Tracks) != 1 {
			t.Errorf("expected 1 track, got %d", len(res.Tracks))
		}
	})

	t.Run("Build Deduplicates Across Sources", func(t *testing.T) {
		dup := bpmTrack("t-1", "Clear Water", 86)
		catalog := fakes.NewMockCatalog(map[string][]models.Track{
			"a": {dup, bpmTrack("t-2", "Slow River", 90)},
			"b": {dup},
		})
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})

		res, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"a", "b"}})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if res.Candidates != 2 {
			t.Errorf("expected 2 unique candidates, got %d", res.Candidates)
		}
	})

	t.Run("Build Reports No Matches", func(t *testing.T) {
		catalog := fakes.NewMockCatalog(map[string][]models.Track{
			"calm": {bpmTrack("t-1", "Too Slow", 50)},
		})
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})

		_, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"calm"}})
		if !errors.Is(err, shared.ErrNoMatches) {
			t.Fatalf("expected ErrNoMatches, got %v", err)
		}
	})

	t.Run("Build Substitutes Skip-Listed Sources", func(t *testing.T) {
		catalog := fakes.NewMockCatalog(map[string][]models.Track{
			"Nocturnes": {bpmTrack("t-1", "Never Queried", 86)},
			"Chopin":    {bpmTrack("t-2", "Opus Nine", 86)},
		})
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})

		res, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"Nocturnes"}})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		for _, s := range catalog.SearchedSources() {
			if s == "Nocturnes" {
				t.Error("expected skip-listed source not to be searched")
			}
		}
		if len(res.Tracks) != 1 || res.Tracks[0].Track.ID != "t-2" {
			t.Errorf("unexpected tracks: %+v", res.Tracks)
		}
	})

	t.Run("Build Reports Empty Sources As No Matches", func(t *testing.T) {
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: fakes.NewMockCatalog(nil)})

		_, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"nothing-here"}})
		if !errors.Is(err, shared.ErrNoMatches) {
			t.Fatalf("expected ErrNoMatches, got %v", err)
		}
	})

	t.Run("Build Tolerates Partial Source Failure", func(t *testing.T) {
		catalog := &failingCatalog{MockCatalog: focusCatalog(), failing: map[string]bool{"broken": true}}
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})

		res, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"broken", "calm"}})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if len(res.FailedSources) != 1 || res.FailedSources[0].SourceID != "broken" {
			t.Errorf("unexpected failed sources: %+v", res.FailedSources)
		}
	})

	t.Run("Build Fails When Every Source Fails", func(t *testing.T) {
		catalog := &failingCatalog{MockCatalog: focusCatalog(), failing: map[string]bool{"calm": true}}
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})

		_, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"calm"}})
		if !errors.Is(err, shared.ErrCatalogRequest) {
			t.Fatalf("expected ErrCatalogRequest, got %v", err)
		}
	})

	t.Run("Build Respects Limit", func(t *testing.T) {
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: focusCatalog()})

		res, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"calm"}, Limit: 2})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if len(res.Tracks) != 2 {
			t.Errorf("expected 2 tracks, got %d", len(res.Tracks))
		}
	})

	t.Run("Build Avoids Listener Repeats", func(t *testing.T) {
		history := similarity.NewGuard(similarity.GuardOpts{})
		history.AddToHistory(bpmTrack("old", "Quiet Library", 85), "listener-1")

		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: focusCatalog(), History: history})
		res, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"calm"}, ListenerID: "listener-1"})
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if res.Tracks[0].Track.ID == "t-85" {
			t.Error("expected recently played track not to lead the playlist")
		}
		if len(history.History("listener-1")) != 1 {
			t.Error("expected listener history to be left untouched")
		}
	})

	t.Run("Build Caches Candidates", func(t *testing.T) {
		cache := &recordingCache{}
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: focusCatalog(), Cache: cache})

		if _, err := b.Build(t.Context(), nil, BuildRequest{Goal: "focus", Sources: []string{"calm"}}); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		if len(cache.ids) != 5 {
			t.Errorf("expected 5 cached tracks, got %d", len(cache.ids))
		}
	})

	t.Run("Build Sends Progress", func(t *testing.T) {
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: focusCatalog()})
		progress := make(chan ProgressUpdate, 20)

		if _, err := b.Build(t.Context(), progress, BuildRequest{Goal: "focus", Sources: []string{"calm"}}); err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		close(progress)

		phases := map[Phase]bool{}
		for u := range progress {
			phases[u.Phase] = true
		}
		for _, p := range []Phase{ResolveGoal, ExpandSources, FetchCandidates, RankCandidates, SequenceTracks} {
			if !phases[p] {
				t.Errorf("missing progress for phase %s", p)
			}
		}
	})

	t.Run("Newer Build Supersedes Older", func(t *testing.T) {
		catalog := &blockingCatalog{
			MockCatalog: focusCatalog(),
			started:     make(chan struct{}, 1),
			release:     make(chan struct{}),
		}
		b, _ := NewPlaylistBuilder(BuilderOpts{Catalog: catalog})

		first := make(chan error, 1)
		go func() {
			_, err := b.Build(context.Background(), nil, BuildRequest{Goal: "focus", Sources: []string{"calm"}})
			first <- err
		}()

		select {
		case <-catalog.started:
		case <-time.After(2 * time.Second):
			t.Fatal("first build never reached the catalog")
		}

		type outcome struct {
			res *BuildResult
			err error
		}
		second := make(chan outcome, 1)
		go func() {
			res, err := b.Build(context.Background(), nil, BuildRequest{Goal: "focus", Sources: []string{"calm"}})
			second <- outcome{res, err}
		}()

		select {
		case err := <-first:
			if !errors.Is(err, shared.ErrSuperseded) {
				t.Errorf("expected ErrSuperseded from the first build, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("first build never returned")
		}

		close(catalog.release)
		select {
		case out := <-second:
			if out.err != nil {
				t.Fatalf("second Build failed: %v", out.err)
			}
			if len(out.res.Tracks) != 3 {
				t.Errorf("expected 3 tracks from the second build, got %d", len(out.res.Tracks))
			}
		case <-time.After(2 * time.Second):
			t.Fatal("second build never returned")
		}
	})
}

type recordingCache struct {
	ids []string
}

func (c *recordingCache) CacheTrack(track models.Track) error {
	c.ids = append(c.ids, track.ID)
	return nil
}

func TestScanSources(t *testing.T) {
	t.Run("Reports Empty And Healthy Sources", func(t *testing.T) {
		catalog := fakes.NewMockCatalog(nil)
		catalog.Objects["full"] = []models.ObjectRef{{Bucket: "full", Key: "a.mp3", Size: 10}, {Bucket: "full", Key: "b.mp3", Size: 5}}

		res, err := ScanSources(t.Context(), nil, catalog, []string{"full", "empty"}, ScanOpts{RateLimit: 100})
		if err != nil {
			t.Fatalf("ScanSources failed: %v", err)
		}
		if res.Healthy != 1 || res.Failed != 1 {
			t.Errorf("healthy/failed = %d/%d", res.Healthy, res.Failed)
		}
		if res.Sources[0].Objects != 2 || res.Sources[0].Bytes != 15 {
			t.Errorf("unexpected full source result: %+v", res.Sources[0])
		}
		if !errors.Is(res.Sources[1].Err, shared.ErrEmptySource) {
			t.Errorf("expected ErrEmptySource, got %v", res.Sources[1].Err)
		}
		if u := res.Unhealthy(); len(u) != 1 || u[0] != "empty" {
			t.Errorf("Unhealthy() = %v", u)
		}
	})

	t.Run("Requires Catalog", func(t *testing.T) {
		if _, err := ScanSources(t.Context(), nil, nil, []string{"a"}, ScanOpts{}); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}
