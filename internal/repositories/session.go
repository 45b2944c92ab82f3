package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const sessionColumns = `id, sequence, listener_id, session_type, goal, started_at, ended_at, duration_seconds,
	tracks_played, skipped_tracks, skip_rate, dominant_genres, created_at, updated_at, deleted_at`

// SessionRepository implements models.Repository[*models.ListeningSession] and telemetry.Store.
//
// List columns (tracks played, skipped tracks, genres) are stored as JSON arrays.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// SaveSession persists a flushed session summary.
func (r *SessionRepository) SaveSession(ctx context.Context, summary models.SessionSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.Create(models.NewListeningSession(0, summary))
}

// Create inserts a new session with a generated sequence
func (r *SessionRepository) Create(session *models.ListeningSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "listening_sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if session.ID() == "" {
		session.SetID(shared.GenerateID())
	}
	session.SetSequence(sequence)

	s := session.Summary()
	played, skipped, genres, err := encodeLists(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO listening_sessions (id, sequence, listener_id, session_type, goal, started_at, ended_at,
			duration_seconds, tracks_played, skipped_tracks, skip_rate, dominant_genres, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		session.ID(),
		sequence,
		s.ListenerID,
		s.SessionType,
		s.Goal,
		s.StartedAt,
		s.EndedAt,
		int64(s.Duration/time.Second),
		played,
		skipped,
		s.SkipRate,
		genres,
		session.CreatedAt(),
		session.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions
func (r *SessionRepository) Get(id string) (*models.ListeningSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM listening_sessions WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// Update rewrites the summary of an existing session
func (r *SessionRepository) Update(session *models.ListeningSession) error {
	if err := session.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	session.SetUpdatedAt(now)
	s := session.Summary()
	played, skipped, genres, err := encodeLists(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE listening_sessions
		SET listener_id = ?, session_type = ?, goal = ?, started_at = ?, ended_at = ?, duration_seconds = ?,
			tracks_played = ?, skipped_tracks = ?, skip_rate = ?, dominant_genres = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		s.ListenerID,
		s.SessionType,
		s.Goal,
		s.StartedAt,
		s.EndedAt,
		int64(s.Duration/time.Second),
		played,
		skipped,
		s.SkipRate,
		genres,
		now,
		session.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, session.ID())
	}

	return nil
}

// Delete soft-deletes a session by ID
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(
		`UPDATE listening_sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}

	return nil
}

// List retrieves sessions newest first. Supported criteria: "listener_id", "goal" (string) and "limit" (int).
func (r *SessionRepository) List(criteria map[string]any) ([]*models.ListeningSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM listening_sessions WHERE deleted_at IS NULL`
	args := []any{}

	if listener, ok := criteria["listener_id"].(string); ok && listener != "" {
		query += " AND listener_id = ?"
		args = append(args, listener)
	}
	if goal, ok := criteria["goal"].(string); ok && goal != "" {
		query += " AND goal = ?"
		args = append(args, goal)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.ListeningSession
	for rows.Next() {
		session, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return sessions, nil
}

func (r *SessionRepository) scan(row scanner) (*models.ListeningSession, error) {
	var (
		s         models.SessionSummary
		sequence  int
		seconds   int64
		played    string
		skipped   string
		genres    string
		createdAt time.Time
		updatedAt time.Time
		deletedAt sql.NullTime
	)

	err := row.Scan(&s.SessionID, &sequence, &s.ListenerID, &s.SessionType, &s.Goal, &s.StartedAt, &s.EndedAt,
		&seconds, &played, &skipped, &s.SkipRate, &genres, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	s.Duration = time.Duration(seconds) * time.Second
	for dst, raw := range map[*[]string]string{&s.TracksPlayed: played, &s.SkippedTracks: skipped, &s.DominantGenres: genres} {
		if err := json.Unmarshal([]byte(raw), dst); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", s.SessionID, err)
		}
	}

	session := models.NewListeningSession(sequence, s)
	session.SetCreatedAt(createdAt)
	session.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		session.SetDeletedAt(&deletedAt.Time)
	}
	return session, nil
}

func encodeLists(s models.SessionSummary) (played, skipped, genres string, err error) {
	out := make([]string, 3)
	for i, list := range [][]string{s.TracksPlayed, s.SkippedTracks, s.DominantGenres} {
		if list == nil {
			list = []string{}
		}
		b, err := json.Marshal(list)
		if err != nil {
			return "", "", "", fmt.Errorf("failed to encode session lists: %w", err)
		}
		out[i] = string(b)
	}
	return out[0], out[1], out[2], nil
}
