package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/harmony"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const (
	DefaultVADTolerance = 0.6

	bpmPoints  = 40.0
	moodPoints = 20.0
	keyPoints  = 10.0
)

// Scored pairs a track with its score for a goal.
type Scored struct {
	Track models.Track `json:"track"`
	Score int          `json:"score"`
}

// EngineOpts configures an [Engine].
type EngineOpts struct {
	VADTolerance float64
	Logger       *log.Logger
}

// Engine filters and ranks candidate tracks.
type Engine struct {
	tolerance float64
	logger    *log.Logger
}

// NewEngine creates an [Engine]. A tolerance of zero or less uses [DefaultVADTolerance].
func NewEngine(opts EngineOpts) *Engine {
	e := &Engine{tolerance: opts.VADTolerance, logger: opts.Logger}
	if e.tolerance <= 0 {
		e.tolerance = DefaultVADTolerance
	}
	if e.logger == nil {
		e.logger = shared.DiscardLogger()
	}
	return e
}

// Tolerance returns the VAD tolerance in use.
func (e *Engine) Tolerance() float64 {
	return e.tolerance
}

// Filter keeps the candidates eligible for goal, preserving order.
func (e *Engine) Filter(candidates []models.Track, goal models.GoalDescriptor) []models.Track {
	out := make([]models.Track, 0, len(candidates))
	for _, t := range candidates {
		if e.Eligible(t, goal) {
			out = append(out, t)
		}
	}
	e.logger.Debug("filtered candidates", "goal", goal.ID, "in", len(candidates), "out", len(out))
	return out
}

// Eligible reports whether a single track passes the filter for goal.
func (e *Engine) Eligible(t models.Track, goal models.GoalDescriptor) bool {
	if !t.AudioStatus.Playable() {
		return false
	}
	if !t.HasBPM() || !goal.BPMRange.Contains(*t.BPM) {
		return false
	}
	if !t.HasMood() {
		return true
	}

	v, a := rescale(*t.Valence), rescale(*t.EnergyLevel)
	return math.Abs(v-goal.VAD.Valence) <= e.tolerance && math.Abs(a-goal.VAD.Arousal) <= e.tolerance
}

// Score rates how well t serves goal, from 0 to 100.
func Score(t models.Track, goal models.GoalDescriptor) int {
	var score float64

	if t.HasBPM() {
		score += bpmScore(*t.BPM, goal.BPMRange)
	}

	if t.HasMood() {
		v, a := rescale(*t.Valence), rescale(*t.EnergyLevel)
		score += math.Max(0, moodPoints-math.Abs(v-goal.VAD.Valence)*moodPoints)
		score += math.Max(0, moodPoints-math.Abs(a-goal.VAD.Arousal)*moodPoints)
	}

	if harmony.IsValid(harmony.Key(t.CamelotKey)) {
		score += keyPoints
	}

	return int(math.Round(math.Min(100, score)))
}

// bpmScore is 40 at the optimal tempo, decaying linearly to 0 at the bound on the same side.
func bpmScore(bpm float64, r models.BPMRange) float64 {
	dist := math.Abs(bpm - r.Optimal)
	span := r.Optimal - r.Min
	if bpm > r.Optimal {
		span = r.Max - r.Optimal
	}
	if span <= 0 {
		if dist == 0 {
			return bpmPoints
		}
		return 0
	}
	return math.Max(0, bpmPoints-(dist/span)*bpmPoints)
}

func rescale(x float64) float64 {
	return x*2 - 1
}

// Ranked scores candidates and sorts them by descending score. Ties keep catalog order.
func (e *Engine) Ranked(candidates []models.Track, goal models.GoalDescriptor) []Scored {
	out := make([]Scored, len(candidates))
	for i, t := range candidates {
		out[i] = Scored{Track: t, Score: Score(t, goal)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Rank returns candidates ordered by descending score, stable on ties.
func (e *Engine) Rank(candidates []models.Track, goal models.GoalDescriptor) []models.Track {
	ranked := e.Ranked(candidates, goal)
	out := make([]models.Track, len(ranked))
	for i, s := range ranked {
		out[i] = s.Track
	}
	return out
}

// Insights summarizes how well a candidate pool serves goal.
type Insights struct {
	Count         int      `json:"count"`
	Effectiveness int      `json:"effectiveness"`
	AverageBPM    int      `json:"average_bpm"`
	Lines         []string `json:"insights"`
}

// Insights filters candidates for goal and reports the matched count, mean score and mean tempo.
func (e *Engine) Insights(candidates []models.Track, goal models.GoalDescriptor) Insights {
	matched := e.Filter(candidates, goal)
	if len(matched) == 0 {
		return Insights{Lines: []string{"No tracks found for therapeutic goal"}}
	}

	var scoreSum, bpmSum float64
	for _, t := range matched {
		scoreSum += float64(Score(t, goal))
		bpmSum += *t.BPM
	}
	n := float64(len(matched))
	in := Insights{
		Count:         len(matched),
		Effectiveness: int(math.Round(scoreSum / n)),
		AverageBPM:    int(math.Round(bpmSum / n)),
	}
	in.Lines = []string{
		fmt.Sprintf("%d therapeutically matched tracks", in.Count),
		fmt.Sprintf("Average BPM: %d (optimal: %.0f)", in.AverageBPM, goal.BPMRange.Optimal),
		fmt.Sprintf("Therapeutic effectiveness: %d%%", in.Effectiveness),
	}
	return in
}
