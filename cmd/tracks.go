package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// buildRequest assembles a [tasks.BuildRequest] from the goal argument and common flags.
func (r *Runner) buildRequest(cmd *cli.Command) tasks.BuildRequest {
	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		limit = r.config.Engine.PlaylistLimit
	}
	return tasks.BuildRequest{
		Goal:       cmd.StringArg("goal"),
		Sources:    shared.SplitCSV(cmd.String("sources")),
		ListenerID: r.listenerID(cmd),
		Limit:      limit,
	}
}

// buildPlaylist runs the builder, printing progress when verbose is set.
func (r *Runner) buildPlaylist(ctx context.Context, opts tasks.BuilderOpts, req tasks.BuildRequest, verbose bool) (*tasks.BuildResult, error) {
	builder, err := tasks.NewPlaylistBuilder(opts)
	if err != nil {
		return nil, err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			if !verbose {
				continue
			}
			switch update.Phase {
			case tasks.ResolveGoal:
				r.writePlain("🎯 %s\n", update.Message)
			case tasks.ExpandSources:
				r.writePlain("📂 %s\n", update.Message)
			case tasks.FetchCandidates:
				r.writePlain("   %s\n", update.Message)
			case tasks.RankCandidates, tasks.SequenceTracks:
				r.writePlain("🎚  %s\n", update.Message)
			}
		}
	}()

	result, err := builder.Build(ctx, progressCh, req)
	close(progressCh)
	<-done
	return result, err
}

// TracksRank builds a playlist for a goal and prints or exports it.
func (r *Runner) TracksRank(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	output := cmd.String("output")

	switch format {
	case "text", "json", "csv", "markdown", "md":
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	var db *sql.DB
	if cmd.Bool("offline") || cmd.Bool("cache") {
		var err error
		if db, err = r.openDatabase(); err != nil {
			return err
		}
		defer db.Close()
	}

	catalog, err := r.catalogFor(cmd, db)
	if err != nil {
		return err
	}

	var cache tasks.TrackCacher
	if cmd.Bool("cache") {
		cache = repositories.NewTrackCacheAdapter(repositories.NewTrackRepository(db))
	}

	req := r.buildRequest(cmd)
	r.logger.Info("ranking tracks", "goal", req.Goal, "listener", req.ListenerID, "limit", req.Limit)

	verbose := format == "text" || output != ""
	result, err := r.buildPlaylist(ctx, r.builderOpts(catalog, cache), req, verbose)
	if err != nil {
		return err
	}

	for _, f := range result.FailedSources {
		r.logger.Warn("source unavailable", "source", f.SourceID, "error", f.Err)
	}

	switch format {
	case "json":
		if output != "" {
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			if err := os.WriteFile(output, data, 0644); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			r.writePlainln("✓ Exported to %s", output)
			return nil
		}
		return r.writeJSON(result, true)

	case "csv":
		if output != "" {
			res, err := formatter.WriteCSVExport(result, output)
			if err != nil {
				return err
			}
			r.writePlainln("✓ Exported to %s and %s", res.TracksFile, res.MetadataFile)
			return nil
		}
		data, err := formatter.ExportToCSV(result)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)

	case "markdown", "md":
		if output != "" {
			path, err := formatter.WriteMarkdownExport(result, output)
			if err != nil {
				return err
			}
			r.writePlainln("✓ Exported to %s", path)
			return nil
		}
		data, err := formatter.ExportToMarkdown(result)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	}

	if output != "" {
		path, err := formatter.WriteTextExport(result, output)
		if err != nil {
			return err
		}
		r.writePlainln("✓ Exported to %s", path)
		return nil
	}

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("%s: %d tracks", result.Goal.Name, len(result.Tracks)))
	r.writePlain("Candidates: %d, eligible: %d\n\n", result.Candidates, result.Eligible)
	for i, s := range result.Tracks {
		line := fmt.Sprintf("%2d. %s", i+1, s.Track)
		if s.Track.BPM != nil {
			line += fmt.Sprintf(" [%.0f BPM]", *s.Track.BPM)
		}
		if s.Track.CamelotKey != "" {
			line += " " + s.Track.CamelotKey
		}
		r.writePlain("%s (score %d)\n", line, s.Score)
	}
	return nil
}

// TracksImport stores tracks in the local library, from a JSON file or fetched from catalog sources.
func (r *Runner) TracksImport(ctx context.Context, cmd *cli.Command) error {
	file := cmd.String("file")
	sourceIDs := shared.SplitCSV(cmd.String("sources"))

	if file == "" && len(sourceIDs) == 0 {
		return fmt.Errorf("%w: either --file or --sources must be provided", shared.ErrMissingArgument)
	}
	if file != "" && len(sourceIDs) > 0 {
		return fmt.Errorf("%w: cannot specify both --file and --sources", shared.ErrInvalidArgument)
	}

	var tracks []models.Track
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if err := json.Unmarshal(data, &tracks); err != nil {
			return fmt.Errorf("%w: %s is not a JSON array of tracks: %v", shared.ErrInvalidInput, file, err)
		}
	} else {
		if r.catalog == nil {
			return fmt.Errorf("%w: catalog not initialized", shared.ErrServiceUnavailable)
		}
		limit := int(cmd.Int("limit"))
		for _, id := range r.expander.Expand(sourceIDs) {
			found, err := r.catalog.SearchTracks(ctx, models.SearchCriteria{Source: id, Limit: limit})
			if err != nil {
				r.logger.Warn("failed to fetch source", "source", id, "error", err)
				continue
			}
			r.writePlain("📥 %s: %d tracks\n", id, len(found))
			tracks = append(tracks, found...)
		}
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	res, err := repositories.NewTrackImporter(repositories.NewTrackRepository(db)).Import(tracks)
	if err != nil {
		return err
	}

	r.logger.Info("import complete", "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	r.writePlainln("✓ Imported %d tracks (%d new, %d updated, %d skipped)", res.Created+res.Updated, res.Created, res.Updated, res.Skipped)
	return nil
}

// TracksList prints tracks stored in the local library.
func (r *Runner) TracksList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repositories.NewTrackRepository(db)
	persisted, err := repo.List(map[string]any{
		"source": cmd.String("source"),
		"limit":  int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	tracks := make([]models.Track, len(persisted))
	for i, p := range persisted {
		tracks[i] = p.Track()
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, cmd.Bool("pretty"))
	}

	total, err := repo.Count()
	if err != nil {
		return err
	}

	r.writePlainHeader(fmt.Sprintf("Library: %d of %d tracks", len(tracks), total))
	for _, t := range tracks {
		bpm := "   -"
		if t.BPM != nil {
			bpm = fmt.Sprintf("%4.0f", *t.BPM)
		}
		r.writePlain("%s  %-3s %-20s %s\n", bpm, t.CamelotKey, t.SourceBucket, t)
	}
	return nil
}
