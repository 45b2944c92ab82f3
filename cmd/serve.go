package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/desertthunder/cadence/internal/repositories"
	"github.com/desertthunder/cadence/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the JSON API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cmd.String("addr")
	if addr == "" {
		addr = net.JoinHostPort(r.config.Server.Host, strconv.Itoa(r.config.Server.Port))
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	catalog, err := r.catalogFor(cmd, db)
	if err != nil {
		return err
	}

	opts := r.builderOpts(catalog, nil)
	if !cmd.Bool("offline") {
		opts.Cache = repositories.NewTrackCacheAdapter(repositories.NewTrackRepository(db))
	}

	api, err := server.NewAPI(server.APIOpts{
		Resolver:        r.resolver,
		Expander:        r.expander,
		Builder:         opts,
		History:         r.history,
		Sessions:        repositories.NewSessionRepository(db),
		Stream:          r.streamResolver(),
		DefaultListener: r.config.Engine.ListenerID,
		DefaultLimit:    r.config.Engine.PlaylistLimit,
		Logger:          r.logger,
	})
	if err != nil {
		return err
	}

	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger), server.Recoverer(r.logger))
	api.Register(router)

	for _, p := range router.Patterns() {
		r.logger.Debug("route", "pattern", p)
	}
	r.writePlain("Serving cadence API on http://%s\n", addr)

	if err := server.Serve(ctx, addr, router, r.logger); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
