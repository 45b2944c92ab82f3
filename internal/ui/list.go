package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/cadence/internal/scoring"
	"github.com/desertthunder/cadence/internal/shared"
)

var _ list.Item = trackItem{}

// trackItem wraps a [scoring.Scored] track to implement [list.Item].
type trackItem struct {
	scored  scoring.Scored
	current bool
}

func (i trackItem) FilterValue() string { return i.scored.Track.Title }

func (i trackItem) Title() string {
	if i.current {
		return "▶ " + i.scored.Track.String()
	}
	return i.scored.Track.String()
}

func (i trackItem) Description() string {
	t := i.scored.Track
	parts := []string{fmt.Sprintf("score %d", i.scored.Score)}
	if t.BPM != nil {
		parts = append(parts, fmt.Sprintf("%.0f BPM", *t.BPM))
	}
	if t.CamelotKey != "" {
		parts = append(parts, t.CamelotKey)
	}
	if t.Duration > 0 {
		parts = append(parts, shared.FormatDuration(t.Duration))
	}
	return strings.Join(parts, " • ")
}

// trackItems builds list items for tracks, marking the one at current.
func trackItems(tracks []scoring.Scored, current int) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, s := range tracks {
		items[i] = trackItem{scored: s, current: i == current}
	}
	return items
}
