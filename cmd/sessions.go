package main

import (
	"context"
	"strings"

	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// SessionsList prints saved listening sessions.
func (r *Runner) SessionsList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if listener := cmd.String("listener"); listener != "" {
		criteria["listener_id"] = listener
	}
	if goal := cmd.String("goal"); goal != "" {
		criteria["goal"] = r.resolver.ToCanonicalKey(goal)
	}

	saved, err := repositories.NewSessionRepository(db).List(criteria)
	if err != nil {
		return err
	}
	summaries := make([]models.SessionSummary, len(saved))
	for i, s := range saved {
		summaries[i] = s.Summary()
	}

	switch {
	case cmd.Bool("csv"):
		data, err := formatter.ExportSessionsToCSV(summaries)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	case cmd.Bool("json"):
		return r.writeJSON(summaries, cmd.Bool("pretty"))
	}

	if len(summaries) == 0 {
		return r.writePlain("No sessions recorded.\n")
	}

	r.writePlainHeader("Listening Sessions")
	for _, s := range summaries {
		r.writePlain("%s  %s  %-12s %-24s %6s  played %-3d skipped %.0f%%\n",
			shared.ShortID(s.SessionID),
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			s.SessionType,
			s.Goal,
			shared.FormatDuration(int(s.Duration.Seconds())),
			len(s.TracksPlayed),
			s.SkipRate*100,
		)
		if len(s.DominantGenres) > 0 {
			r.writePlain("          genres: %s\n", strings.Join(s.DominantGenres, ", "))
		}
	}
	return nil
}
