// package formatter provides functions to export built playlists and session history to various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
)

func optional(v *float64, format string) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf(format, *v)
}

// ExportToCSV converts a playlist to CSV format with columns: Position, ID, Title, Artist, BPM, Key, Energy, Valence, Score, Source
func ExportToCSV(result *tasks.BuildResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "ID", "Title", "Artist", "BPM", "Key", "Energy", "Valence", "Score", "Source"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, s := range result.Tracks {
		t := s.Track
		record := []string{
			strconv.Itoa(i + 1),
			t.ID,
			t.Title,
			t.Artist,
			optional(t.BPM, "%.0f"),
			t.CamelotKey,
			optional(t.EnergyLevel, "%.2f"),
			optional(t.Valence, "%.2f"),
			strconv.Itoa(s.Score),
			t.SourceBucket,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a playlist to Markdown format with a goal summary and a track table
func ExportToMarkdown(result *tasks.BuildResult) ([]byte, error) {
	var buf bytes.Buffer
	g := result.Goal

	buf.WriteString(fmt.Sprintf("# %s\n\n", g.Name))

	if g.Description != "" {
		buf.WriteString(fmt.Sprintf("**Goal**: %s\n\n", g.Description))
	}

	buf.WriteString(fmt.Sprintf("**Tempo**: %.0f-%.0f BPM (optimal %.0f)\n", g.BPMRange.Min, g.BPMRange.Max, g.BPMRange.Optimal))
	buf.WriteString(fmt.Sprintf("**Sources**: %s\n", strings.Join(result.Sources, ", ")))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d of %d eligible\n\n", len(result.Tracks), result.Eligible))

	buf.WriteString("## Tracks\n\n")
	buf.WriteString("| # | Title | BPM | Key | Score |\n")
	buf.WriteString("|---|-------|-----|-----|-------|\n")
	for i, s := range result.Tracks {
		key := s.Track.CamelotKey
		if key == "" {
			key = "-"
		}
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %d |\n", i+1, escapeCell(s.Track.String()), optional(s.Track.BPM, "%.0f"), key, s.Score))
	}

	if len(result.FailedSources) > 0 {
		buf.WriteString("\n## Unavailable Sources\n\n")
		for _, f := range result.FailedSources {
			buf.WriteString(fmt.Sprintf("- %s: %v\n", f.SourceID, f.Err))
		}
	}

	return buf.Bytes(), nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// ExportToText converts a playlist to plain text format
func ExportToText(result *tasks.BuildResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Goal: %s\n", result.Goal.Name))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(result.Tracks)))

	for i, s := range result.Tracks {
		line := fmt.Sprintf("%d. %s", i+1, s.Track)
		if s.Track.BPM != nil {
			line += fmt.Sprintf(" [%.0f BPM]", *s.Track.BPM)
		}
		if d := s.Track.Duration; d > 0 {
			line += " " + shared.FormatDuration(d)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportSessionsToCSV converts saved session summaries to CSV format
func ExportSessionsToCSV(sessions []models.SessionSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Session", "Listener", "Type", "Goal", "Started", "Duration", "Played", "Skipped", "SkipRate", "Genres"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, s := range sessions {
		record := []string{
			s.SessionID,
			s.ListenerID,
			s.SessionType,
			s.Goal,
			s.StartedAt.UTC().Format(time.RFC3339),
			shared.FormatDuration(int(s.Duration.Seconds())),
			strconv.Itoa(len(s.TracksPlayed)),
			strconv.Itoa(len(s.SkippedTracks)),
			strconv.FormatFloat(s.SkipRate, 'f', 2, 64),
			strings.Join(s.DominantGenres, ";"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ToMetadataJSON generates a JSON representation of the goal a playlist was built for (without tracks)
func ToMetadataJSON(result *tasks.BuildResult) ([]byte, error) {
	meta := struct {
		Goal       models.GoalDescriptor `json:"goal"`
		Sources    []string              `json:"sources"`
		Candidates int                   `json:"candidates"`
		Eligible   int                   `json:"eligible"`
		Tracks     int                   `json:"tracks"`
	}{result.Goal, result.Sources, result.Candidates, result.Eligible, len(result.Tracks)}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	TracksFile   string
	MetadataFile string
}

// WriteCSVExport exports a playlist to CSV format with accompanying metadata JSON file.
//
// Defaults to the goal slug as the base filename & creates {base}_tracks.csv and {base}_metadata.json
func WriteCSVExport(result *tasks.BuildResult, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = result.Goal.Slug
	}

	csvData, err := ExportToCSV(result)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	tracksFile := baseFilepath + "_tracks.csv"
	if err := os.WriteFile(tracksFile, csvData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(result)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{
		TracksFile:   tracksFile,
		MetadataFile: metadataFile,
	}, nil
}

// WriteMarkdownExport exports a playlist to {dir}/README.md, creating the directory.
//
// Directory name defaults to the goal slug.
func WriteMarkdownExport(result *tasks.BuildResult, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = result.Goal.Slug
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	mdData, err := ExportToMarkdown(result)
	if err != nil {
		return "", fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return "", fmt.Errorf("failed to write Markdown file: %w", err)
	}

	return mdFile, nil
}

// WriteTextExport exports a playlist to plain text format.
//
// Defaults to {goal.Slug}_tracks.txt as the filename.
func WriteTextExport(result *tasks.BuildResult, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_tracks.txt", result.Goal.Slug)
	}

	textData, err := ExportToText(result)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}
