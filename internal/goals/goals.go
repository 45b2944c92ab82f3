// Package goals resolves free-form therapeutic goal strings into canonical [models.GoalDescriptor] values.
//
// Resolution never fails: unknown input falls back to the default goal (mood boost),
// and [Resolver.IsValid] tells callers whether that fallback was taken.
package goals

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/desertthunder/cadence/internal/models"
)

// DefaultGoalID is the goal returned when input matches nothing.
const DefaultGoalID = "mood-boost"

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize lowercases input, collapses runs of non-alphanumerics into hyphens and trims them.
func Normalize(input string) string {
	s := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(input)), "-")
	return strings.Trim(s, "-")
}

// Builtin returns the built-in goal table.
func Builtin() []models.GoalDescriptor {
	return []models.GoalDescriptor{
		{
			ID:          "focus-enhancement",
			Slug:        "focus-enhancement",
			BackendKey:  "focus-enhancement",
			Name:        "Focus Enhancement",
			ShortName:   "Focus",
			Description: "Improve concentration and mental clarity",
			BPMRange:    models.BPMRange{Min: 78, Max: 100, Optimal: 85},
			VAD:         models.VADProfile{Valence: 0.6, Arousal: 0.7, Dominance: models.Float(0.6)},
			Sources:     []string{"focus-music", "neuralpositivemusic"},
			Synonyms:    []string{"focus", "concentration", "study", "focus_up", "focus_enhancement"},
		},
		{
			ID:          "stress-anxiety-support",
			Slug:        "stress-anxiety-support",
			BackendKey:  "stress-anxiety-support",
			Name:        "Stress & Anxiety Support",
			ShortName:   "Calm",
			Description: "Calm your mind and reduce stress and anxiety",
			BPMRange:    models.BPMRange{Min: 40, Max: 80, Optimal: 60},
			VAD:         models.VADProfile{Valence: 0.6, Arousal: 0.2, Dominance: models.Float(0.4)},
			Sources:     []string{"neuralpositivemusic"},
			Synonyms:    []string{"anxiety", "stress", "calm", "relax", "anxiety_relief", "stress_reduction", "anxiety-down", "chill"},
		},
		{
			ID:          "mood-boost",
			Slug:        "mood-boost",
			BackendKey:  "mood-boost",
			Name:        "Mood Boost",
			ShortName:   "Mood",
			Description: "Uplift your spirits and energy",
			BPMRange:    models.BPMRange{Min: 90, Max: 140, Optimal: 120},
			VAD:         models.VADProfile{Valence: 0.8, Arousal: 0.7, Dominance: models.Float(0.5)},
			Sources:     []string{"ENERGYBOOST"},
			Synonyms:    []string{"mood", "happy", "uplift", "mood_boost"},
		},
		{
			ID:          "energy-boost",
			Slug:        "energy-boost",
			BackendKey:  "energy-boost",
			Name:        "Energy Boost",
			ShortName:   "Energy",
			Description: "Energize and motivate your day",
			BPMRange:    models.BPMRange{Min: 100, Max: 160, Optimal: 130},
			VAD:         models.VADProfile{Valence: 0.8, Arousal: 0.9, Dominance: models.Float(0.6)},
			Sources:     []string{"ENERGYBOOST"},
			Synonyms:    []string{"energy", "boost", "motivate", "energize", "pump"},
		},
		{
			ID:          "pain-support",
			Slug:        "pain-support",
			BackendKey:  "pain-support",
			Name:        "Pain Support",
			ShortName:   "Relief",
			Description: "Provide comfort and pain relief support",
			BPMRange:    models.BPMRange{Min: 50, Max: 70, Optimal: 60},
			VAD:         models.VADProfile{Valence: 0.6, Arousal: 0.2, Dominance: models.Float(0.3)},
			Sources:     []string{"neuralpositivemusic"},
			Synonyms:    []string{"pain", "relief", "comfort", "pain_management", "healing"},
		},
	}
}

// Resolver maps any goal identifier onto a [models.GoalDescriptor].
//
// A Resolver is immutable after construction and safe for concurrent use.
type Resolver struct {
	goals     []models.GoalDescriptor
	index     map[string]int
	defaultAt int
}

// NewResolver builds a Resolver over the built-in goals merged with overrides.
//
// An override whose ID matches a built-in goal replaces it; others are appended in order.
func NewResolver(overrides ...models.GoalDescriptor) *Resolver {
	table := Builtin()
	for _, o := range overrides {
		replaced := false
		for i := range table {
			if table[i].ID == o.ID {
				table[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			table = append(table, o)
		}
	}

	r := &Resolver{goals: table, index: make(map[string]int)}
	for i, g := range table {
		if g.ID == DefaultGoalID {
			r.defaultAt = i
		}
	}

	// The first goal to claim a key keeps it.
	for i, g := range table {
		keys := []string{g.ID, g.Slug, g.BackendKey, g.Name, g.ShortName}
		keys = append(keys, g.Synonyms...)
		for _, k := range keys {
			r.add(strings.ToLower(strings.TrimSpace(k)), i)
			r.add(Normalize(k), i)
		}
	}
	return r
}

func (r *Resolver) add(key string, i int) {
	if key == "" {
		return
	}
	if _, exists := r.index[key]; !exists {
		r.index[key] = i
	}
}

// Lookup resolves input and reports whether a real (non-default) match was found.
func (r *Resolver) Lookup(input string) (models.GoalDescriptor, bool) {
	raw := strings.ToLower(strings.TrimSpace(input))
	if raw == "" {
		return r.Default(), false
	}

	if i, ok := r.index[Normalize(raw)]; ok {
		return r.copyAt(i), true
	}
	if i, ok := r.index[raw]; ok {
		return r.copyAt(i), true
	}

	for i, g := range r.goals {
		if strings.Contains(strings.ToLower(g.Name), raw) || strings.Contains(strings.ToLower(g.Description), raw) {
			return r.copyAt(i), true
		}
	}

	return r.Default(), false
}

// Resolve returns the goal for input, or the default goal when nothing matches.
func (r *Resolver) Resolve(input string) models.GoalDescriptor {
	g, _ := r.Lookup(input)
	return g
}

// IsValid reports whether input resolves to a goal without falling back to the default.
func (r *Resolver) IsValid(input string) bool {
	_, ok := r.Lookup(input)
	return ok
}

// ToCanonicalKey returns the backend key for input.
func (r *Resolver) ToCanonicalKey(input string) string {
	return r.Resolve(input).BackendKey
}

// ToSlug returns the URL slug for input.
func (r *Resolver) ToSlug(input string) string {
	return r.Resolve(input).Slug
}

// ToDisplayName returns the human-readable name for input.
func (r *Resolver) ToDisplayName(input string) string {
	return r.Resolve(input).Name
}

// Default returns the fallback goal.
func (r *Resolver) Default() models.GoalDescriptor {
	return r.copyAt(r.defaultAt)
}

// All returns every known goal in table order.
func (r *Resolver) All() []models.GoalDescriptor {
	out := make([]models.GoalDescriptor, len(r.goals))
	for i := range r.goals {
		out[i] = r.copyAt(i)
	}
	return out
}

// Insights summarizes the therapeutic parameters of the goal input resolves to.
type Insights struct {
	Goal          models.GoalDescriptor
	BPMRange      string
	VADProfile    string
	Effectiveness string
}

// Insights returns display strings for the goal input resolves to; ok is false on a default fallback.
func (r *Resolver) Insights(input string) (Insights, bool) {
	g, ok := r.Lookup(input)
	return Insights{
		Goal:          g,
		BPMRange:      fmt.Sprintf("%.0f-%.0f BPM (optimal: %.0f)", g.BPMRange.Min, g.BPMRange.Max, g.BPMRange.Optimal),
		VADProfile:    fmt.Sprintf("Valence: %.1f, Arousal: %.1f", g.VAD.Valence, g.VAD.Arousal),
		Effectiveness: "Optimized for " + strings.ToLower(g.Description),
	}, ok
}

// copyAt returns the goal at i with slices detached from the table.
func (r *Resolver) copyAt(i int) models.GoalDescriptor {
	g := r.goals[i]
	g.Sources = append([]string(nil), g.Sources...)
	g.Synonyms = append([]string(nil), g.Synonyms...)
	if g.VAD.Dominance != nil {
		g.VAD.Dominance = models.Float(*g.VAD.Dominance)
	}
	return g
}
