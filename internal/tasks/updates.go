package tasks

import (
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ResolveGoal Phase = iota
	ExpandSources
	FetchCandidates
	RankCandidates
	SequenceTracks
	ScanSource
)

func (p Phase) String() string {
	switch p {
	case ResolveGoal:
		return "resolve_goal"
	case ExpandSources:
		return "expand_sources"
	case FetchCandidates:
		return "fetch_candidates"
	case RankCandidates:
		return "rank_candidates"
	case SequenceTracks:
		return "sequence_tracks"
	case ScanSource:
		return "scan_source"
	default:
		return ""
	}
}

func resolvedGoalUpdate(goal models.GoalDescriptor) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveGoal,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Goal: %s (%.0f-%.0f BPM)", goal.Name, goal.BPMRange.Min, goal.BPMRange.Max),
		Data:    goal,
	}
}

func expandedSourcesUpdate(sources []string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExpandSources,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Searching %d sources...", len(sources)),
		Data:    sources,
	}
}

func fetchedSourceUpdate(step, total int, source string, count int, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   FetchCandidates,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, source, err),
		}
	}
	return ProgressUpdate{
		Phase:   FetchCandidates,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, source, count),
	}
}

func rankedUpdate(candidates, eligible int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RankCandidates,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%d of %d candidates match the goal", eligible, candidates),
	}
}

func sequencedUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SequenceTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Sequenced %d tracks", count),
	}
}

func scannedSourceUpdate(step, total int, res SourceScanResult) ProgressUpdate {
	switch {
	case res.Err != nil:
		return ProgressUpdate{
			Phase:   ScanSource,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, res.SourceID, res.Err),
			Data:    res,
		}
	default:
		return ProgressUpdate{
			Phase:   ScanSource,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✓ %s (%d objects)", step, total, res.SourceID, res.Objects),
			Data:    res,
		}
	}
}
