package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func libraryTrack(bucket, key, title string, bpm float64) models.Track {
	return models.Track{
		Title:        title,
		Artist:       "Test Artist",
		Genre:        "ambient",
		BPM:          models.Float(bpm),
		EnergyLevel:  models.Float(0.4),
		CamelotKey:   "8B",
		SourceBucket: bucket,
		SourceKey:    key,
		AudioStatus:  models.AudioWorking,
		Duration:     180,
	}
}

func TestTrackRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := models.NewPersistedTrack(0, libraryTrack("focus-music", "a.mp3", "Deep Work", 85))
		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		if track.ID() == "" {
			t.Error("expected ID to be generated")
		}
		if track.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", track.Sequence())
		}

		got, err := repo.Get(track.ID())
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		tr := got.Track()
		if tr.Title != "Deep Work" || tr.SourceKey != "a.mp3" {
			t.Errorf("unexpected track: %+v", tr)
		}
		if tr.BPM == nil || *tr.BPM != 85 {
			t.Errorf("expected bpm 85, got %v", tr.BPM)
		}
		if tr.Valence != nil {
			t.Errorf("expected nil valence to round-trip, got %v", *tr.Valence)
		}
		if tr.AudioStatus != models.AudioWorking {
			t.Errorf("expected working status, got %s", tr.AudioStatus)
		}
	})

	t.Run("Create Keeps Catalog ID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		tr := libraryTrack("focus-music", "b.mp3", "Catalog Song", 90)
		tr.ID = "cat-42"
		track := models.NewPersistedTrack(0, tr)
		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if track.ID() != "cat-42" {
			t.Errorf("expected catalog ID to be kept, got %s", track.ID())
		}
	})

	t.Run("GetBySource", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		if err := repo.Create(models.NewPersistedTrack(0, libraryTrack("chopin", "nocturne.mp3", "Nocturne", 60))); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		got, err := repo.GetBySource("chopin", "nocturne.mp3")
		if err != nil {
			t.Fatalf("failed to get track by source: %v", err)
		}
		if got.Track().Title != "Nocturne" {
			t.Errorf("expected Nocturne, got %s", got.Track().Title)
		}

		if _, err := repo.GetBySource("chopin", "missing.mp3"); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := models.NewPersistedTrack(0, libraryTrack("focus-music", "a.mp3", "Deep Work", 85))
		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		tr := track.Track()
		tr.BPM = models.Float(92)
		tr.AudioStatus = models.AudioBad
		track.SetTrack(tr)
		if err := repo.Update(track); err != nil {
			t.Fatalf("failed to update track: %v", err)
		}

		got, err := repo.Get(track.ID())
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if *got.Track().BPM != 92 || got.Track().AudioStatus != models.AudioBad {
			t.Errorf("update not persisted: %+v", got.Track())
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		track := models.NewPersistedTrack(0, libraryTrack("focus-music", "a.mp3", "Deep Work", 85))
		if err := repo.Create(track); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		if err := repo.Delete(track.ID()); err != nil {
			t.Fatalf("failed to delete track: %v", err)
		}
		if _, err := repo.Get(track.ID()); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected deleted track to be hidden, got %v", err)
		}
		if err := repo.Delete(track.ID()); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected second delete to fail with ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		for _, tr := range []models.Track{
			libraryTrack("focus-music", "a.mp3", "Slow", 70),
			libraryTrack("focus-music", "b.mp3", "Mid", 85),
			libraryTrack("focus-music", "c.mp3", "Fast", 120),
			libraryTrack("chopin", "d.mp3", "Other", 85),
		} {
			if err := repo.Create(models.NewPersistedTrack(0, tr)); err != nil {
				t.Fatalf("failed to create track: %v", err)
			}
		}

		tests := []struct {
			name     string
			criteria map[string]any
			want     int
		}{
			{"All", map[string]any{}, 4},
			{"By Source", map[string]any{"source": "focus-music"}, 3},
			{"By BPM Range", map[string]any{"min_bpm": 78.0, "max_bpm": 100.0}, 2},
			{"Source And Range", map[string]any{"source": "focus-music", "min_bpm": 78.0, "max_bpm": 100.0}, 1},
			{"Limit", map[string]any{"limit": 2}, 2},
			{"By Status", map[string]any{"status": models.AudioBad}, 0},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got, err := repo.List(tt.criteria)
				if err != nil {
					t.Fatalf("failed to list tracks: %v", err)
				}
				if len(got) != tt.want {
					t.Errorf("expected %d tracks, got %d", tt.want, len(got))
				}
			})
		}
	})

	t.Run("Catalog", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		for _, tr := range []models.Track{
			libraryTrack("focus-music", "b.mp3", "Mid", 85),
			libraryTrack("focus-music", "a.mp3", "Slow", 70),
		} {
			if err := repo.Create(models.NewPersistedTrack(0, tr)); err != nil {
				t.Fatalf("failed to create track: %v", err)
			}
		}

		ctx := context.Background()
		tracks, err := repo.SearchTracks(ctx, models.SearchCriteria{Source: "focus-music", MinBPM: models.Float(78)})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(tracks) != 1 || tracks[0].Title != "Mid" {
			t.Errorf("expected only Mid, got %+v", tracks)
		}

		refs, err := repo.ListSourceObjects(ctx, "focus-music")
		if err != nil {
			t.Fatalf("listing failed: %v", err)
		}
		if len(refs) != 2 || refs[0].Key != "a.mp3" || refs[1].Key != "b.mp3" {
			t.Errorf("expected keys in order, got %+v", refs)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := repo.SearchTracks(cancelled, models.SearchCriteria{}); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("Count", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewTrackRepository(db)
		if err := repo.Create(models.NewPersistedTrack(0, libraryTrack("focus-music", "a.mp3", "Slow", 70))); err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		n, err := repo.Count()
		if err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1, got %d", n)
		}
	})
}

func TestTrackCacheAdapter_CacheTrack(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewTrackRepository(db)
	adapter := NewTrackCacheAdapter(repo)
	tr := libraryTrack("focus-music", "a.mp3", "Deep Work", 85)

	if err := adapter.CacheTrack(tr); err != nil {
		t.Fatalf("failed to cache track: %v", err)
	}
	if err := adapter.CacheTrack(tr); err != nil {
		t.Fatalf("expected duplicate cache to be ignored, got %v", err)
	}

	n, err := repo.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 cached track, got %d", n)
	}
}

func TestTrackImporter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	repo := NewTrackRepository(db)
	importer := NewTrackImporter(repo)

	first, err := importer.Import([]models.Track{
		libraryTrack("focus-music", "a.mp3", "Deep Work", 85),
		libraryTrack("focus-music", "b.mp3", "Flow", 90),
		{Title: "", SourceBucket: "focus-music", SourceKey: "c.mp3"},
	})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if first != (ImportResult{Created: 2, Skipped: 1}) {
		t.Errorf("unexpected first import result: %+v", first)
	}

	updated := libraryTrack("focus-music", "a.mp3", "Deep Work", 88)
	second, err := importer.Import([]models.Track{updated})
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if second != (ImportResult{Updated: 1}) {
		t.Errorf("unexpected second import result: %+v", second)
	}

	got, err := repo.GetBySource("focus-music", "a.mp3")
	if err != nil {
		t.Fatalf("failed to get track: %v", err)
	}
	if *got.Track().BPM != 88 {
		t.Errorf("expected bpm to be refreshed to 88, got %v", *got.Track().BPM)
	}
}

func TestSessionRepository(t *testing.T) {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	summary := models.SessionSummary{
		SessionID:      "sess-1",
		ListenerID:     "listener-1",
		SessionType:    "therapeutic",
		Goal:           "focus-enhancement",
		StartedAt:      started,
		EndedAt:        started.Add(25 * time.Minute),
		Duration:       25 * time.Minute,
		TracksPlayed:   []string{"t1", "t2", "t3", "t4"},
		SkippedTracks:  []string{"t2"},
		SkipRate:       0.25,
		DominantGenres: []string{"ambient"},
	}

	t.Run("SaveSession", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		if err := repo.SaveSession(context.Background(), summary); err != nil {
			t.Fatalf("failed to save session: %v", err)
		}

		got, err := repo.Get("sess-1")
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		s := got.Summary()
		if s.Duration != 25*time.Minute {
			t.Errorf("expected 25m duration, got %v", s.Duration)
		}
		if len(s.TracksPlayed) != 4 || len(s.SkippedTracks) != 1 || s.DominantGenres[0] != "ambient" {
			t.Errorf("lists did not round-trip: %+v", s)
		}
		if !s.StartedAt.Equal(started) {
			t.Errorf("expected start %v, got %v", started, s.StartedAt)
		}
	})

	t.Run("Empty Lists", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		empty := summary
		empty.SessionID = ""
		empty.TracksPlayed, empty.SkippedTracks, empty.DominantGenres = nil, nil, nil
		session := models.NewListeningSession(0, empty)
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		got, err := repo.Get(session.ID())
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.Summary().TracksPlayed == nil || len(got.Summary().TracksPlayed) != 0 {
			t.Errorf("expected empty non-nil list, got %v", got.Summary().TracksPlayed)
		}
	})

	t.Run("List And Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		for i, listener := range []string{"a", "b", "a"} {
			s := summary
			s.SessionID = ""
			s.ListenerID = listener
			s.StartedAt = started.Add(time.Duration(i) * time.Hour)
			s.EndedAt = s.StartedAt.Add(time.Minute)
			if err := repo.SaveSession(context.Background(), s); err != nil {
				t.Fatalf("failed to save session: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 sessions, got %d", len(all))
		}
		if all[0].Sequence() != 3 {
			t.Errorf("expected newest first, got sequence %d", all[0].Sequence())
		}

		mine, err := repo.List(map[string]any{"listener_id": "a"})
		if err != nil {
			t.Fatalf("failed to list sessions: %v", err)
		}
		if len(mine) != 2 {
			t.Errorf("expected 2 sessions for listener a, got %d", len(mine))
		}

		if err := repo.Delete(all[0].ID()); err != nil {
			t.Fatalf("failed to delete session: %v", err)
		}
		if _, err := repo.Get(all[0].ID()); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewSessionRepository(db)
		session := models.NewListeningSession(0, summary)
		if err := repo.Create(session); err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		s := session.Summary()
		s.SkipRate = 0.5
		updated := models.NewListeningSession(session.Sequence(), s)
		if err := repo.Update(updated); err != nil {
			t.Fatalf("failed to update session: %v", err)
		}

		got, err := repo.Get(session.ID())
		if err != nil {
			t.Fatalf("failed to get session: %v", err)
		}
		if got.Summary().SkipRate != 0.5 {
			t.Errorf("expected skip rate 0.5, got %v", got.Summary().SkipRate)
		}
	})
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seq1, err := NextSequence(db, "tracks")
	if err != nil {
		t.Fatalf("failed to get first sequence: %v", err)
	}

	if seq1 != 1 {
		t.Errorf("expected first sequence to be 1, got %d", seq1)
	}

	seq2, err := NextSequence(db, "tracks")
	if err != nil {
		t.Fatalf("failed to get second sequence: %v", err)
	}

	if seq2 != 2 {
		t.Errorf("expected second sequence to be 2, got %d", seq2)
	}

	sessionSeq, err := NextSequence(db, "listening_sessions")
	if err != nil {
		t.Fatalf("failed to get session sequence: %v", err)
	}

	if sessionSeq != 1 {
		t.Errorf("expected first session sequence to be 1, got %d", sessionSeq)
	}
}
