package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// SourcesExpand prints the sources that would be searched for the given list.
func (r *Runner) SourcesExpand(ctx context.Context, cmd *cli.Command) error {
	requested := cmd.Args().Slice()
	if len(requested) == 0 {
		return fmt.Errorf("%w: at least one source is required", shared.ErrMissingArgument)
	}

	expanded := r.expander.Expand(requested)
	skipped := []string{}
	for _, id := range requested {
		if r.expander.IsSkipped(id) {
			skipped = append(skipped, id)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"requested": requested,
			"expanded":  expanded,
			"skipped":   skipped,
		}, true)
	}

	for _, id := range requested {
		if r.expander.IsSkipped(id) {
			r.writePlain("%s → %s\n", id, strings.Join(r.expander.Fallbacks(id), ", "))
		} else {
			r.writePlain("%s\n", id)
		}
	}
	r.writePlainln("Searching: %s", strings.Join(expanded, ", "))
	return nil
}

// SourcesScan lists objects in each source and reports the ones that should be skipped.
//
// Without arguments every goal source and fallback is scanned.
func (r *Runner) SourcesScan(ctx context.Context, cmd *cli.Command) error {
	db, err := r.offlineDatabase(cmd)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	catalog, err := r.catalogFor(cmd, db)
	if err != nil {
		return err
	}

	ids := cmd.Args().Slice()
	if len(ids) == 0 {
		ids = r.knownSources()
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if cmd.Bool("json") {
			for range progressCh {
			}
			return
		}
		for update := range progressCh {
			r.writePlain("   %s\n", update.Message)
		}
	}()

	result, err := tasks.ScanSources(ctx, progressCh, catalog, ids, tasks.ScanOpts{
		NumWorkers: int(cmd.Int("workers")),
		RateLimit:  cmd.Float("rate"),
	})
	close(progressCh)
	<-done
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type row struct {
			tasks.SourceScanResult
			Healthy bool   `json:"healthy"`
			Error   string `json:"error,omitempty"`
		}
		rows := make([]row, len(result.Sources))
		for i, s := range result.Sources {
			rows[i] = row{SourceScanResult: s, Healthy: s.Healthy()}
			if s.Err != nil {
				rows[i].Error = s.Err.Error()
			}
		}
		return r.writeJSON(map[string]any{"sources": rows, "unhealthy": result.Unhealthy()}, true)
	}

	r.writePlain("\n")
	r.writePlainHeader("Source Scan")
	r.writePlain("Healthy: %d\n", result.Healthy)
	r.writePlain("Failed:  %d\n", result.Failed)
	for _, s := range result.Sources {
		switch {
		case s.Healthy():
			r.writePlain("  ✓ %-36s %d objects\n", s.SourceID, s.Objects)
		case errors.Is(s.Err, shared.ErrEmptySource):
			r.writePlain("  ✗ %-36s empty\n", s.SourceID)
		default:
			r.writePlain("  ✗ %-36s %v\n", s.SourceID, s.Err)
		}
	}

	if unhealthy := result.Unhealthy(); len(unhealthy) > 0 {
		r.writePlainln("Consider adding to [sources] skip: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// knownSources returns every goal source and configured fallback, deduplicated in first-seen order.
func (r *Runner) knownSources() []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, g := range r.resolver.All() {
		for _, id := range g.Sources {
			add(id)
			for _, fb := range r.expander.Fallbacks(id) {
				add(fb)
			}
		}
	}
	return ids
}
