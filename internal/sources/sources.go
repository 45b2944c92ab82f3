// Package sources expands requested content sources into the list actually queried,
// substituting configured fallbacks for sources known to be empty or unreliable.
package sources

import (
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/shared"
)

// Expander maps source ids onto fallbacks. It is immutable after construction and safe for concurrent use.
type Expander struct {
	skip      map[string]struct{}
	fallbacks map[string][]string
	logger    *log.Logger
}

// NewExpander builds an [Expander] from the configured skip-list and fallback table.
func NewExpander(cfg shared.SourcesConfig, logger *log.Logger) *Expander {
	if logger == nil {
		logger = shared.DiscardLogger()
	}
	e := &Expander{
		skip:      make(map[string]struct{}, len(cfg.Skip)),
		fallbacks: make(map[string][]string, len(cfg.Fallbacks)),
		logger:    logger,
	}
	for _, id := range cfg.Skip {
		if id = strings.TrimSpace(id); id != "" {
			e.skip[id] = struct{}{}
		}
	}
	for id, fb := range cfg.Fallbacks {
		e.fallbacks[id] = append([]string(nil), fb...)
	}
	return e
}

// Default builds an [Expander] from the embedded default configuration.
func Default() *Expander {
	return NewExpander(shared.DefaultConfig().Sources, nil)
}

// IsSkipped reports whether id is on the skip-list.
func (e *Expander) IsSkipped(id string) bool {
	_, ok := e.skip[id]
	return ok
}

// Fallbacks returns a copy of the configured fallbacks for id.
func (e *Expander) Fallbacks(id string) []string {
	return append([]string(nil), e.fallbacks[id]...)
}

// Expand returns the sources to query for ids, in first-seen order without duplicates.
//
// A skip-listed source is replaced by its fallbacks. Any other source is kept and its
// fallbacks are appended after it. Fallbacks that are themselves skip-listed are dropped
// and never expanded further.
func (e *Expander) Expand(ids []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(ids))

	add := func(id string) {
		if id == "" || e.IsSkipped(id) {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if e.IsSkipped(id) {
			e.logger.Debug("skipping unreliable source", "source", id, "fallbacks", e.fallbacks[id])
		}
		add(id)
		for _, fb := range e.fallbacks[id] {
			add(fb)
		}
	}
	return out
}
