package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

// GoalsList prints every known goal.
func (r *Runner) GoalsList(ctx context.Context, cmd *cli.Command) error {
	all := r.resolver.All()
	if cmd.Bool("json") {
		return r.writeJSON(all, cmd.Bool("pretty"))
	}

	r.writePlainHeader(fmt.Sprintf("Goals (%d)", len(all)))
	for _, g := range all {
		r.writePlain("%-24s %-22s %3.0f-%-3.0f BPM (optimal %.0f)\n", g.ID, g.Name, g.BPMRange.Min, g.BPMRange.Max, g.BPMRange.Optimal)
		if len(g.Sources) > 0 {
			r.writePlain("  sources:  %s\n", strings.Join(g.Sources, ", "))
		}
		if len(g.Synonyms) > 0 {
			r.writePlain("  synonyms: %s\n", strings.Join(g.Synonyms, ", "))
		}
	}
	return nil
}

// GoalsResolve resolves free-form input to a goal and prints its therapeutic parameters.
func (r *Runner) GoalsResolve(ctx context.Context, cmd *cli.Command) error {
	input := cmd.StringArg("input")
	if input == "" {
		return fmt.Errorf("%w: goal input is required", shared.ErrMissingArgument)
	}

	insights, matched := r.resolver.Insights(input)
	if !matched {
		r.logger.Warn("no goal matched, using default", "input", input, "goal", insights.Goal.ID)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"input":         input,
			"matched":       matched,
			"goal":          insights.Goal,
			"bpm_range":     insights.BPMRange,
			"vad_profile":   insights.VADProfile,
			"effectiveness": insights.Effectiveness,
		}, cmd.Bool("pretty"))
	}

	g := insights.Goal
	r.writePlain("%s (%s)\n", g.Name, g.ID)
	r.writePlain("Tempo:   %s\n", insights.BPMRange)
	r.writePlain("Mood:    %s\n", insights.VADProfile)
	r.writePlain("Sources: %s\n", strings.Join(g.Sources, ", "))
	r.writePlain("%s\n", insights.Effectiveness)
	if !matched {
		r.writePlainln("No goal matched %q; showing the default goal.", input)
	}
	return nil
}
