package models

import (
	"fmt"
	"time"
)

// SessionSummary is the flushed result of one listening session.
type SessionSummary struct {
	SessionID      string        `json:"session_id"`
	ListenerID     string        `json:"listener_id,omitempty"`
	SessionType    string        `json:"session_type"`
	Goal           string        `json:"goal,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        time.Time     `json:"ended_at"`
	Duration       time.Duration `json:"duration"`
	TracksPlayed   []string      `json:"tracks_played"`
	SkippedTracks  []string      `json:"skipped_tracks"`
	SkipRate       float64       `json:"skip_rate"`
	DominantGenres []string      `json:"dominant_genres"`
}

// ListeningSession is a saved [SessionSummary].
type ListeningSession struct {
	base
	summary SessionSummary
}

// NewListeningSession wraps a summary for persistence.
func NewListeningSession(sequence int, summary SessionSummary) *ListeningSession {
	s := &ListeningSession{base: newBase(sequence), summary: summary}
	if summary.SessionID != "" {
		s.id = summary.SessionID
	}
	return s
}

// Summary returns the wrapped summary with its session ID set to the persisted ID.
func (s *ListeningSession) Summary() SessionSummary {
	sum := s.summary
	if s.id != "" {
		sum.SessionID = s.id
	}
	return sum
}

// Validate checks that the summary describes a closed session.
func (s *ListeningSession) Validate() error {
	if s.summary.SessionType == "" {
		return fmt.Errorf("session type is required")
	}
	if s.summary.StartedAt.IsZero() {
		return fmt.Errorf("session start time is required")
	}
	if s.summary.EndedAt.Before(s.summary.StartedAt) {
		return fmt.Errorf("session ended before it started")
	}
	if s.summary.SkipRate < 0 || s.summary.SkipRate > 1 {
		return fmt.Errorf("skip rate must be within [0,1]: %v", s.summary.SkipRate)
	}
	return nil
}
