package scoring

import (
	"sort"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/harmony"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/similarity"
)

// Guard is the repetition check consulted before a candidate is accepted.
type Guard interface {
	IsTooSimilar(t models.Track, listenerID string, threshold float64) bool
	MaxSimilarity(t models.Track, listenerID string) float64
	AddToHistory(t models.Track, listenerID string)
}

var _ Guard = (*similarity.Guard)(nil)

// Sequencer picks the next track to play, preferring harmonic transitions and avoiding repeats.
type Sequencer struct {
	guard     Guard
	threshold float64
	logger    *log.Logger
}

// SequencerOpts configures a [Sequencer]. A nil Guard disables repetition checks.
type SequencerOpts struct {
	Guard     Guard
	Threshold float64
	Logger    *log.Logger
}

// NewSequencer creates a [Sequencer].
func NewSequencer(opts SequencerOpts) *Sequencer {
	s := &Sequencer{guard: opts.Guard, threshold: opts.Threshold, logger: opts.Logger}
	if s.logger == nil {
		s.logger = shared.DiscardLogger()
	}
	return s
}

// Next chooses the candidate to follow current, returning its index in candidates.
//
// With a keyed current track, candidates in the same key come first, then harmonic
// neighbors, then the rest; each group keeps score order. The first candidate the guard
// accepts wins. When the guard rejects every candidate, the least similar one is returned.
// A nil current track orders by score alone. ok is false only when there are no candidates.
func (s *Sequencer) Next(current *models.Track, candidates []models.Track, goal models.GoalDescriptor, listenerID string) (models.Track, int, bool) {
	order := s.preference(current, candidates, goal)
	if len(order) == 0 {
		return models.Track{}, -1, false
	}

	if s.guard == nil {
		return candidates[order[0]], order[0], true
	}

	for _, i := range order {
		if !s.guard.IsTooSimilar(candidates[i], listenerID, s.threshold) {
			return candidates[i], i, true
		}
		s.logger.Debug("rejected repetitive candidate", "track", candidates[i].Title)
	}

	best, bestSim := order[0], s.guard.MaxSimilarity(candidates[order[0]], listenerID)
	for _, i := range order[1:] {
		if sim := s.guard.MaxSimilarity(candidates[i], listenerID); sim < bestSim {
			best, bestSim = i, sim
		}
	}
	s.logger.Debug("all candidates repetitive, accepting least similar", "track", candidates[best].Title, "similarity", bestSim)
	return candidates[best], best, true
}

// preference returns candidate indexes in the order they should be tried.
func (s *Sequencer) preference(current *models.Track, candidates []models.Track, goal models.GoalDescriptor) []int {
	scores := make([]int, len(candidates))
	ranked := make([]int, 0, len(candidates))
	for i, t := range candidates {
		if current != nil && current.ID != "" && t.ID == current.ID && len(candidates) > 1 {
			continue
		}
		scores[i] = Score(t, goal)
		ranked = append(ranked, i)
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return scores[ranked[a]] > scores[ranked[b]]
	})

	if current == nil || !harmony.IsValid(harmony.Key(current.CamelotKey)) {
		return ranked
	}
	key := harmony.Key(current.CamelotKey)

	var same, near, rest []int
	for _, i := range ranked {
		k := harmony.Key(candidates[i].CamelotKey)
		switch {
		case k == key:
			same = append(same, i)
		case harmony.AreCompatible(key, k):
			near = append(near, i)
		default:
			rest = append(rest, i)
		}
	}
	return append(append(same, near...), rest...)
}

// Sequence builds a greedy chain of up to limit tracks from candidates, starting after seed
// (which may be nil). Each accepted track is added to the listener's history so later picks
// avoid it. A limit of zero or less sequences every candidate.
func (s *Sequencer) Sequence(seed *models.Track, candidates []models.Track, goal models.GoalDescriptor, listenerID string, limit int) []models.Track {
	if limit <= 0 || limit > len(candidates) {
		limit = len(candidates)
	}

	pool := append([]models.Track(nil), candidates...)
	out := make([]models.Track, 0, limit)
	current := seed

	for len(out) < limit && len(pool) > 0 {
		pick, i, ok := s.Next(current, pool, goal, listenerID)
		if !ok {
			break
		}
		out = append(out, pick)
		if s.guard != nil {
			s.guard.AddToHistory(pick, listenerID)
		}
		pool = append(pool[:i], pool[i+1:]...)
		current = &out[len(out)-1]
	}
	return out
}
