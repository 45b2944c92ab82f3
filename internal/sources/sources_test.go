package sources

import (
	"slices"
	"testing"

	"github.com/desertthunder/cadence/internal/shared"
)

func testExpander() *Expander {
	return NewExpander(shared.SourcesConfig{
		Skip: []string{"pop", "meditation", "newage", "silent"},
		Fallbacks: map[string][]string{
			"pop":        {"ENERGYBOOST"},
			"meditation": {"newage", "Chopin"},
			"newage":     {"NewAgeandWorldFocus"},
			"Chopin":     {"Nocturnes"},
		},
	}, nil)
}

func TestExpand(t *testing.T) {
	e := testExpander()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"skip-listed source is replaced by its fallbacks", []string{"pop"}, []string{"ENERGYBOOST"}},
		{"skip-listed fallbacks are dropped without recursion", []string{"meditation"}, []string{"Chopin"}},
		{"reliable source keeps proactive fallbacks", []string{"Chopin"}, []string{"Chopin", "Nocturnes"}},
		{"duplicates collapse in first-seen order", []string{"ENERGYBOOST", "pop", "ENERGYBOOST"}, []string{"ENERGYBOOST"}},
		{"skip-listed source expands one level", []string{"newage"}, []string{"NewAgeandWorldFocus"}},
		{"skip-listed source without fallbacks contributes nothing", []string{"silent", "pop"}, []string{"ENERGYBOOST"}},
		{"plain source passes through", []string{"lofi"}, []string{"lofi"}},
		{"blank entries ignored", []string{" ", ""}, []string{}},
		{"nil input", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Expand(tt.in)
			if !slices.Equal(got, tt.want) {
				t.Errorf("Expand(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExpandDefaults(t *testing.T) {
	e := Default()

	t.Run("output never contains skip-listed ids", func(t *testing.T) {
		in := []string{"pop", "HIIT", "gentleclassicalforpain", "meditation", "Nocturnes", "Chopin"}
		for _, id := range e.Expand(in) {
			if e.IsSkipped(id) {
				t.Errorf("output contains skip-listed id %q", id)
			}
		}
	})

	t.Run("gentle classical falls back to Chopin only", func(t *testing.T) {
		got := e.Expand([]string{"gentleclassicalforpain"})
		if !slices.Equal(got, []string{"Chopin"}) {
			t.Errorf("got %v", got)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := [][]string{
			{"pop", "HIIT"},
			{"Nocturnes", "painreducingworld", "ENERGYBOOST"},
			{"audio", "countryandamericana", "Chopin"},
		}
		for _, in := range inputs {
			once := e.Expand(in)
			twice := e.Expand(once)
			if !slices.Equal(once, twice) {
				t.Errorf("Expand not idempotent for %v: %v vs %v", in, once, twice)
			}
		}
	})
}

func TestAccessors(t *testing.T) {
	e := testExpander()

	if !e.IsSkipped("pop") || e.IsSkipped("Chopin") {
		t.Error("IsSkipped mismatch")
	}

	fb := e.Fallbacks("meditation")
	if !slices.Equal(fb, []string{"newage", "Chopin"}) {
		t.Errorf("Fallbacks = %v", fb)
	}
	fb[0] = "mutated"
	if e.Fallbacks("meditation")[0] != "newage" {
		t.Error("Fallbacks returned shared slice")
	}
	if len(e.Fallbacks("unknown")) != 0 {
		t.Error("expected no fallbacks for unknown id")
	}
}
