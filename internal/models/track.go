package models

import (
	"fmt"
	"strings"
)

// AudioStatus reports whether a track's underlying asset is known to be playable.
type AudioStatus string

const (
	AudioWorking AudioStatus = "working"
	AudioMissing AudioStatus = "missing"
	AudioUnknown AudioStatus = "unknown"
	AudioBad     AudioStatus = "bad"
)

// ParseAudioStatus maps free-form catalog values onto an [AudioStatus], defaulting to [AudioUnknown].
func ParseAudioStatus(s string) AudioStatus {
	switch AudioStatus(strings.ToLower(strings.TrimSpace(s))) {
	case AudioWorking:
		return AudioWorking
	case AudioMissing:
		return AudioMissing
	case AudioBad:
		return AudioBad
	default:
		return AudioUnknown
	}
}

// Playable reports whether the status allows a track to be queued.
func (s AudioStatus) Playable() bool {
	return s != AudioMissing && s != AudioBad
}

// Track represents one playable asset fetched from the catalog.
//
// Optional analysis values are pointers; nil means the catalog has no estimate.
// Tracks are read-only snapshots: engine components never mutate them.
type Track struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Artist       string      `json:"artist,omitempty"`
	Genre        string      `json:"genre,omitempty"`
	BPM          *float64    `json:"bpm,omitempty"`
	EnergyLevel  *float64    `json:"energy_level,omitempty"` // 0–1
	Valence      *float64    `json:"valence,omitempty"`      // 0–1
	CamelotKey   string      `json:"camelot_key,omitempty"`  // empty when unknown
	SourceBucket string      `json:"source_bucket"`
	SourceKey    string      `json:"source_key"`
	AudioStatus  AudioStatus `json:"audio_status"`
	Duration     int         `json:"duration,omitempty"` // Duration in seconds
}

// Float returns a pointer to v, for building tracks with optional analysis values.
func Float(v float64) *float64 {
	return &v
}

// HasBPM reports whether the track carries a usable tempo estimate.
func (t Track) HasBPM() bool {
	return t.BPM != nil && *t.BPM > 0
}

// HasMood reports whether both valence and energy estimates are present.
func (t Track) HasMood() bool {
	return t.Valence != nil && t.EnergyLevel != nil
}

// String renders a short human-readable label.
func (t Track) String() string {
	if t.Artist != "" {
		return fmt.Sprintf("%s - %s", t.Artist, t.Title)
	}
	return t.Title
}

// ObjectRef is one raw object listed from a content source.
type ObjectRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
	Size   int64  `json:"size,omitempty"`
}

// PersistedTrack is a [Track] cached in the local library.
type PersistedTrack struct {
	base
	track Track
}

// NewPersistedTrack wraps a catalog [Track] for persistence.
func NewPersistedTrack(sequence int, track Track) *PersistedTrack {
	if track.AudioStatus == "" {
		track.AudioStatus = AudioUnknown
	}
	return &PersistedTrack{base: newBase(sequence), track: track}
}

// Track returns the wrapped snapshot with its ID set to the persisted ID.
func (p *PersistedTrack) Track() Track {
	t := p.track
	if p.id != "" {
		t.ID = p.id
	}
	return t
}

// SetTrack replaces the wrapped snapshot, keeping lifecycle fields.
func (p *PersistedTrack) SetTrack(t Track) { p.track = t }

// Validate checks required fields and analysis value ranges.
func (p *PersistedTrack) Validate() error {
	t := p.track
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	if t.SourceBucket == "" || t.SourceKey == "" {
		return fmt.Errorf("source bucket and key are required")
	}
	if t.BPM != nil && *t.BPM < 0 {
		return fmt.Errorf("bpm must be positive: %v", *t.BPM)
	}
	for name, v := range map[string]*float64{"energy_level": t.EnergyLevel, "valence": t.Valence} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be within [0,1]: %v", name, *v)
		}
	}
	return nil
}

// SearchCriteria narrows a catalog search.
type SearchCriteria struct {
	Source string   `json:"source,omitempty"`
	Goal   string   `json:"goal,omitempty"`
	MinBPM *float64 `json:"min_bpm,omitempty"`
	MaxBPM *float64 `json:"max_bpm,omitempty"`
	Limit  int      `json:"limit,omitempty"`
}

// Signature is a canonical string for the criteria, used to coalesce identical requests.
func (c SearchCriteria) Signature() string {
	f := func(v *float64) string {
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("%g", *v)
	}
	return fmt.Sprintf("source=%s&goal=%s&min=%s&max=%s&limit=%d", c.Source, c.Goal, f(c.MinBPM), f(c.MaxBPM), c.Limit)
}
