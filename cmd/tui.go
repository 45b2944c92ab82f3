package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/desertthunder/cadence/internal/telemetry"
	"github.com/desertthunder/cadence/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive player for a goal.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	kind, err := sessionType(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/cadence-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := r.catalogFor(cmd, db)
	if err != nil {
		return err
	}

	builder, err := tasks.NewPlaylistBuilder(r.builderOpts(catalog, nil))
	if err != nil {
		return err
	}

	req := r.buildRequest(cmd)
	tracker := telemetry.NewTracker(repositories.NewSessionRepository(db), telemetry.TrackerOpts{
		ListenerID: req.ListenerID,
		Logger:     r.logger,
	})

	engine := r.newPlayer(req.ListenerID)
	defer engine.Close()
	engine.AddObserver(&telemetry.Observer{
		Tracker:     tracker,
		SessionType: kind,
		Goal:        r.resolver.ToCanonicalKey(req.Goal),
	})

	model := ui.NewModel(ctx, ui.Options{
		Builder: builder,
		Engine:  engine,
		Request: req,
		Logger:  r.logger,
	})
	p := tea.NewProgram(model)

	_, runErr := p.Run()

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if summary, err := tracker.EndSession(saveCtx); err == nil {
		r.logger.Info("session saved", "id", summary.SessionID, "played", len(summary.TracksPlayed), "skip_rate", summary.SkipRate)
	}

	if runErr != nil {
		return fmt.Errorf("error running TUI: %w", runErr)
	}
	return nil
}
