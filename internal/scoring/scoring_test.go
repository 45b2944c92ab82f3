package scoring

import (
	"fmt"
	"testing"

	"github.com/desertthunder/cadence/internal/goals"
	"github.com/desertthunder/cadence/internal/models"
)

func focusGoal(t *testing.T) models.GoalDescriptor {
	t.Helper()
	g, ok := goals.NewResolver().Lookup("focus-enhancement")
	if !ok {
		t.Fatal("focus-enhancement should resolve")
	}
	return g
}

func bpmTracks(bpms ...float64) []models.Track {
	tracks := make([]models.Track, len(bpms))
	for i, b := range bpms {
		tracks[i] = models.Track{
			ID:          fmt.Sprintf("t-%d", i),
			Title:       fmt.Sprintf("Track %.0f", b),
			BPM:         models.Float(b),
			AudioStatus: models.AudioWorking,
		}
	}
	return tracks
}

func TestFilter(t *testing.T) {
	e := NewEngine(EngineOpts{})
	goal := focusGoal(t)

	t.Run("focus scenario", func(t *testing.T) {
		if goal.BPMRange.Min != 78 || goal.BPMRange.Max != 100 {
			t.Fatalf("unexpected focus window %+v", goal.BPMRange)
		}

		got := e.Filter(bpmTracks(60, 85, 95, 110, 88), goal)
		if len(got) != 3 {
			t.Fatalf("expected 3 tracks, got %d", len(got))
		}
		for i, want := range []float64{85, 95, 88} {
			if *got[i].BPM != want {
				t.Errorf("got[%d].BPM = %v, want %v", i, *got[i].BPM, want)
			}
		}

		ranked := e.Rank(got, goal)
		if *ranked[0].BPM != 85 {
			t.Errorf("expected 85 BPM first, got %v", *ranked[0].BPM)
		}
		if *ranked[1].BPM != 88 || *ranked[2].BPM != 95 {
			t.Errorf("unexpected order: %v, %v", *ranked[1].BPM, *ranked[2].BPM)
		}
	})

	t.Run("bpm gate holds for every survivor", func(t *testing.T) {
		var candidates []models.Track
		for b := 0.0; b <= 200; b += 2.5 {
			candidates = append(candidates, bpmTracks(b)...)
		}
		for _, tr := range e.Filter(candidates, goal) {
			if !goal.BPMRange.Contains(*tr.BPM) {
				t.Errorf("track at %v BPM escaped the gate", *tr.BPM)
			}
		}
	})

	t.Run("bounds are inclusive", func(t *testing.T) {
		if got := e.Filter(bpmTracks(78, 100), goal); len(got) != 2 {
			t.Errorf("expected both bounds kept, got %d", len(got))
		}
	})

	t.Run("missing bpm is excluded", func(t *testing.T) {
		in := []models.Track{{ID: "x", Title: "No tempo", AudioStatus: models.AudioWorking}}
		if got := e.Filter(in, goal); len(got) != 0 {
			t.Error("expected track without bpm to be dropped")
		}
	})

	t.Run("unplayable audio is excluded", func(t *testing.T) {
		in := bpmTracks(85, 85, 85, 85)
		in[0].AudioStatus = models.AudioMissing
		in[1].AudioStatus = models.AudioBad
		in[2].AudioStatus = models.AudioUnknown
		if got := e.Filter(in, goal); len(got) != 2 {
			t.Errorf("expected unknown and working to survive, got %d", len(got))
		}
	})

	t.Run("mood gate", func(t *testing.T) {
		// focus targets valence 0.6, arousal 0.7 on a [-1,1] scale
		in := bpmTracks(85, 85, 85)
		in[0].Valence, in[0].EnergyLevel = models.Float(0.8), models.Float(0.85)
		in[1].Valence, in[1].EnergyLevel = models.Float(0.0), models.Float(0.6)
		in[2].Valence = models.Float(0.0)

		got := e.Filter(in, goal)
		if len(got) != 2 || got[0].ID != "t-0" || got[1].ID != "t-2" {
			t.Errorf("unexpected survivors: %v", got)
		}
	})

	t.Run("tolerance is configurable", func(t *testing.T) {
		strict := NewEngine(EngineOpts{VADTolerance: 0.1})
		in := bpmTracks(85)
		in[0].Valence, in[0].EnergyLevel = models.Float(0.9), models.Float(0.6)
		if got := strict.Filter(in, goal); len(got) != 0 {
			t.Error("expected strict tolerance to drop the track")
		}
		if e.Tolerance() != DefaultVADTolerance {
			t.Errorf("Tolerance() = %v", e.Tolerance())
		}
	})
}

func TestScore(t *testing.T) {
	goal := focusGoal(t)

	tests := []struct {
		name  string
		track models.Track
		want  int
	}{
		{"optimal bpm only", bpmTracks(85)[0], 40},
		{"lower bound", bpmTracks(78)[0], 0},
		{"upper bound", bpmTracks(100)[0], 0},
		{"halfway above optimal", bpmTracks(92.5)[0], 20},
		{"no data", models.Track{Title: "Empty"}, 0},
		{"key bonus", models.Track{Title: "Keyed", CamelotKey: "8A"}, 10},
		{"unknown key earns nothing", models.Track{Title: "Odd Key", CamelotKey: "13C"}, 0},
		{"free-text key earns nothing", models.Track{Title: "Named Key", CamelotKey: "unknown"}, 0},
		{
			"perfect match",
			models.Track{BPM: models.Float(85), Valence: models.Float(0.8), EnergyLevel: models.Float(0.85), CamelotKey: "8A"},
			90,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.track, goal)
			if got != tt.want {
				t.Errorf("Score = %d, want %d", got, tt.want)
			}
			if got < 0 || got > 100 {
				t.Errorf("score %d out of range", got)
			}
		})
	}
}

func TestRankStable(t *testing.T) {
	e := NewEngine(EngineOpts{})
	goal := focusGoal(t)

	in := bpmTracks(85, 90, 85, 85)
	got := e.Rank(in, goal)
	ids := []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID}
	want := []string{"t-0", "t-2", "t-3", "t-1"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("Rank order = %v, want %v", ids, want)
	}
}

func TestInsights(t *testing.T) {
	e := NewEngine(EngineOpts{})
	goal := focusGoal(t)

	in := e.Insights(bpmTracks(85, 85, 200), goal)
	if in.Count != 2 || in.AverageBPM != 85 || in.Effectiveness != 40 {
		t.Errorf("unexpected insights: %+v", in)
	}
	if len(in.Lines) != 3 {
		t.Errorf("expected 3 insight lines, got %v", in.Lines)
	}

	empty := e.Insights(nil, goal)
	if empty.Count != 0 || len(empty.Lines) != 1 {
		t.Errorf("unexpected empty insights: %+v", empty)
	}
}
