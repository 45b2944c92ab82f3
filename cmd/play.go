package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/desertthunder/cadence/internal/player"
	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/telemetry"
	"github.com/urfave/cli/v3"
)

// sessionType validates the --session-type flag.
func sessionType(cmd *cli.Command) (string, error) {
	kind := strings.ToLower(cmd.String("session-type"))
	switch kind {
	case "":
		return telemetry.SessionTherapeutic, nil
	case telemetry.SessionTherapeutic, telemetry.SessionCasual, telemetry.SessionFocus, telemetry.SessionRelaxation:
		return kind, nil
	}
	return "", fmt.Errorf("%w: unknown session type %q", shared.ErrInvalidArgument, kind)
}

// Play builds a playlist and plays it through the headless probe output until the queue ends,
// the failure breaker trips or the process is interrupted. The listening session is saved on exit.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	kind, err := sessionType(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := r.catalogFor(cmd, db)
	if err != nil {
		return err
	}

	req := r.buildRequest(cmd)
	result, err := r.buildPlaylist(ctx, r.builderOpts(catalog, nil), req, true)
	if err != nil {
		return err
	}

	var store telemetry.Store
	if !cmd.Bool("no-save") {
		store = repositories.NewSessionRepository(db)
	}
	tracker := telemetry.NewTracker(store, telemetry.TrackerOpts{ListenerID: req.ListenerID, Logger: r.logger})

	engine := r.newPlayer(req.ListenerID)
	defer engine.Close()

	engine.AddObserver(&telemetry.Observer{Tracker: tracker, SessionType: kind, Goal: result.Goal.ID})

	finished := make(chan error, 1)
	finish := func(err error) {
		select {
		case finished <- err:
		default:
		}
	}
	engine.AddObserver(player.ObserverFunc(func(n player.Notice) {
		switch n.Kind {
		case player.TrackStarted:
			r.writePlain("▶ %d/%d %s\n", n.Index+1, len(result.Tracks), n.Track)
		case player.TrackSkipped:
			r.writePlain("⏭ skipped %s\n", n.Track)
		case player.TrackFailed:
			r.writePlain("✗ %s: %v\n", n.Track, n.Err)
		case player.QueueEnded:
			finish(nil)
		case player.QueueExhausted:
			finish(n.Err)
		}
	}))

	r.writePlain("\n")
	r.writePlainHeader(fmt.Sprintf("Playing %s (%d tracks)", result.Goal.Name, len(result.Tracks)))
	engine.SetQueue(result.Playlist(), 0)

	var playErr error
	select {
	case playErr = <-finished:
	case <-ctx.Done():
		r.logger.Info("playback interrupted")
	}

	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	summary, err := tracker.EndSession(saveCtx)
	switch {
	case errors.Is(err, shared.ErrNoActiveSession):
		r.writePlainln("No tracks were played.")
	case err != nil:
		return err
	default:
		r.writePlain("\n")
		r.writePlainHeader("Session " + shared.ShortID(summary.SessionID))
		r.writePlain("Duration: %s\n", shared.FormatDuration(int(summary.Duration.Seconds())))
		r.writePlain("Played:   %d\n", len(summary.TracksPlayed))
		r.writePlain("Skipped:  %d (%.0f%%)\n", len(summary.SkippedTracks), summary.SkipRate*100)
		if len(summary.DominantGenres) > 0 {
			r.writePlain("Genres:   %s\n", strings.Join(summary.DominantGenres, ", "))
		}
	}

	if playErr != nil {
		return fmt.Errorf("playback stopped: %w", playErr)
	}
	return nil
}
