package models

// BPMRange is the tempo window a goal calls for.
type BPMRange struct {
	Min     float64 `json:"min" toml:"min"`
	Max     float64 `json:"max" toml:"max"`
	Optimal float64 `json:"optimal" toml:"optimal"`
}

// Contains reports whether bpm lies within the window, bounds inclusive.
func (r BPMRange) Contains(bpm float64) bool {
	return bpm >= r.Min && bpm <= r.Max
}

// VADProfile is a valence/arousal/dominance target, each in [-1, 1].
type VADProfile struct {
	Valence   float64  `json:"valence" toml:"valence"`
	Arousal   float64  `json:"arousal" toml:"arousal"`
	Dominance *float64 `json:"dominance,omitempty" toml:"dominance"`
}

// GoalDescriptor is the canonical description of a therapeutic goal.
//
// Descriptors are built once at startup and never mutated; slices are copied on access.
type GoalDescriptor struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	BackendKey  string     `json:"backend_key"`
	Name        string     `json:"name"`
	ShortName   string     `json:"short_name"`
	Description string     `json:"description"`
	BPMRange    BPMRange   `json:"bpm_range"`
	VAD         VADProfile `json:"vad_profile"`
	Sources     []string   `json:"sources"`
	Synonyms    []string   `json:"synonyms"`
}
