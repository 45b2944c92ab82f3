package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/scoring"
	"github.com/desertthunder/cadence/internal/tasks"
	th "github.com/desertthunder/cadence/internal/testing"
)

func sampleResult() *tasks.BuildResult {
	return &tasks.BuildResult{
		Goal: models.GoalDescriptor{
			ID:          "focus-enhancement",
			Slug:        "focus-enhancement",
			Name:        "Focus Enhancement",
			Description: "Improve concentration and mental clarity",
			BPMRange:    models.BPMRange{Min: 78, Max: 100, Optimal: 85},
		},
		Sources:    []string{"focus-music", "neuralpositivemusic"},
		Candidates: 5,
		Eligible:   3,
		Tracks: []scoring.Scored{
			{
				Track: models.Track{
					ID:           "track1",
					Title:        "Quiet Library",
					Artist:       "Paper Moons",
					BPM:          models.Float(85),
					EnergyLevel:  models.Float(0.4),
					Valence:      models.Float(0.7),
					CamelotKey:   "8A",
					SourceBucket: "focus-music",
					Duration:     215,
				},
				Score: 90,
			},
			{
				Track: models.Track{
					ID:           "track2",
					Title:        "Desk | Lamp",
					BPM:          models.Float(88),
					SourceBucket: "neuralpositivemusic",
				},
				Score: 72,
			},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleResult())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "Position,ID,Title,Artist,BPM,Key,Energy,Valence,Score,Source") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "1,track1,Quiet Library,Paper Moons,85,8A,0.40,0.70,90,focus-music") {
			t.Errorf("CSV missing first track row, got: %s", output)
		}
		if !strings.Contains(output, "2,track2,Desk | Lamp,,88,,,,72,neuralpositivemusic") {
			t.Errorf("CSV should leave missing analysis values empty, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		result := sampleResult()
		result.FailedSources = []tasks.SourceError{{SourceID: "broken", Err: errors.New("timeout")}}

		data, err := ExportToMarkdown(result)
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)

		for _, want := range []string{
			"# Focus Enhancement",
			"**Goal**: Improve concentration and mental clarity",
			"**Tempo**: 78-100 BPM (optimal 85)",
			"**Sources**: focus-music, neuralpositivemusic",
			"**Tracks**: 2 of 3 eligible",
			"| 1 | Paper Moons - Quiet Library | 85 | 8A | 90 |",
			"| 2 | Desk \\| Lamp | 88 | - | 72 |",
			"## Unavailable Sources",
			"- broken: timeout",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleResult())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)

		if !strings.Contains(output, "Goal: Focus Enhancement") {
			t.Error("Text missing goal")
		}
		if !strings.Contains(output, "1. Paper Moons - Quiet Library [85 BPM] 3:35") {
			t.Errorf("Text missing first track, got:\n%s", output)
		}
		if !strings.Contains(output, "2. Desk | Lamp [88 BPM]\n") {
			t.Errorf("Text missing second track, got:\n%s", output)
		}
	})

	t.Run("ExportSessionsToCSV", func(t *testing.T) {
		start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
		data, err := ExportSessionsToCSV([]models.SessionSummary{{
			SessionID:      "s-1",
			ListenerID:     "local",
			SessionType:    "focus",
			Goal:           "focus-enhancement",
			StartedAt:      start,
			EndedAt:        start.Add(25 * time.Minute),
			Duration:       25 * time.Minute,
			TracksPlayed:   []string{"a", "b", "c"},
			SkippedTracks:  []string{"d"},
			SkipRate:       0.25,
			DominantGenres: []string{"ambient", "classical"},
		}})
		if err != nil {
			t.Fatalf("ExportSessionsToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "s-1,local,focus,focus-enhancement,2025-03-01T09:00:00Z,25:00,3,1,0.25,ambient;classical") {
			t.Errorf("unexpected session row, got: %s", output)
		}
	})

	t.Run("ToMetadataJSON", func(t *testing.T) {
		data, err := ToMetadataJSON(sampleResult())
		if err != nil {
			t.Fatalf("ToMetadataJSON failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, `"id": "focus-enhancement"`) {
			t.Errorf("metadata missing goal id, got: %s", output)
		}
		if !strings.Contains(output, `"tracks": 2`) {
			t.Errorf("metadata missing track count, got: %s", output)
		}
		if strings.Contains(output, "Quiet Library") {
			t.Error("metadata should not include tracks")
		}
	})
}

func TestWriters(t *testing.T) {
	t.Run("WriteCSVExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result, err := WriteCSVExport(sampleResult(), "")
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != "focus-enhancement_tracks.csv" {
				t.Errorf("Expected tracks file 'focus-enhancement_tracks.csv', got '%s'", result.TracksFile)
			}
			if result.MetadataFile != "focus-enhancement_metadata.json" {
				t.Errorf("Expected metadata file 'focus-enhancement_metadata.json', got '%s'", result.MetadataFile)
			}

			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)

			if content := th.MustReadFile(t, result.TracksFile); !strings.Contains(content, "Quiet Library") {
				t.Errorf("CSV missing track data")
			}
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "custom_export")

			result, err := WriteCSVExport(sampleResult(), base)
			if err != nil {
				t.Fatalf("WriteCSVExport failed: %v", err)
			}

			if result.TracksFile != base+"_tracks.csv" {
				t.Errorf("unexpected tracks file %s", result.TracksFile)
			}
			th.AssertFileExists(t, result.TracksFile)
			th.AssertFileExists(t, result.MetadataFile)
		})

		t.Run("InvalidPath", func(t *testing.T) {
			base := filepath.Join(t.TempDir(), "missing", "dir", "export")
			if _, err := WriteCSVExport(sampleResult(), base); err == nil {
				t.Fatal("expected error writing into a missing directory")
			}
		})
	})

	t.Run("WriteMarkdownExport", func(t *testing.T) {
		t.Run("WithDefaultDirectory", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			path, err := WriteMarkdownExport(sampleResult(), "")
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}

			if path != filepath.Join("focus-enhancement", "README.md") {
				t.Errorf("unexpected path %s", path)
			}
			th.AssertFileExists(t, path)

			if content := th.MustReadFile(t, path); !strings.Contains(content, "# Focus Enhancement") {
				t.Error("README missing title")
			}
		})

		t.Run("WithCustomDirectory", func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "nested", "playlist")

			path, err := WriteMarkdownExport(sampleResult(), dir)
			if err != nil {
				t.Fatalf("WriteMarkdownExport failed: %v", err)
			}
			th.AssertFileExists(t, path)
		})
	})

	t.Run("WriteTextExport", func(t *testing.T) {
		t.Run("WithDefaultPath", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			path, err := WriteTextExport(sampleResult(), "")
			if err != nil {
				t.Fatalf("WriteTextExport failed: %v", err)
			}

			if path != "focus-enhancement_tracks.txt" {
				t.Errorf("Expected 'focus-enhancement_tracks.txt', got '%s'", path)
			}
			th.AssertFileExists(t, path)
		})

		t.Run("WithCustomPath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "playlist.txt")

			got, err := WriteTextExport(sampleResult(), path)
			if err != nil {
				t.Fatalf("WriteTextExport failed: %v", err)
			}
			if got != path {
				t.Errorf("expected %s, got %s", path, got)
			}
			th.AssertFileExists(t, path)
		})
	})
}
