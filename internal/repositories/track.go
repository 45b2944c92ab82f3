package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const trackColumns = `id, sequence, title, artist, genre, bpm, energy_level, valence, camelot_key,
	source_bucket, source_key, audio_status, duration, created_at, updated_at, deleted_at`

// TrackRepository implements models.Repository[*models.PersistedTrack] for the local track library.
//
// Tracks are unique per source bucket and key. Soft-deleted tracks are excluded from every query.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// Create inserts a new [models.PersistedTrack] with a generated sequence. The catalog ID is kept
// when present; otherwise a new one is generated.
func (r *TrackRepository) Create(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "tracks")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := track.Track().ID
	if id == "" {
		id = shared.GenerateID()
	}
	track.SetID(id)
	track.SetSequence(sequence)

	t := track.Track()
	query := `
		INSERT INTO tracks (id, sequence, title, artist, genre, bpm, energy_level, valence, camelot_key,
			source_bucket, source_key, audio_status, duration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		t.Title,
		t.Artist,
		t.Genre,
		nullFloat(t.BPM),
		nullFloat(t.EnergyLevel),
		nullFloat(t.Valence),
		t.CamelotKey,
		t.SourceBucket,
		t.SourceKey,
		string(t.AudioStatus),
		t.Duration,
		track.CreatedAt(),
		track.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert track: %w", err)
	}

	return nil
}

// Get retrieves a track by ID, excluding soft-deleted tracks
func (r *TrackRepository) Get(id string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// GetBySource retrieves a track by its storage location
func (r *TrackRepository) GetBySource(bucket, key string) (*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE source_bucket = ? AND source_key = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, bucket, key))
}

// Update modifies an existing track in the database
func (r *TrackRepository) Update(track *models.PersistedTrack) error {
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	track.SetUpdatedAt(now)
	t := track.Track()

	query := `
		UPDATE tracks
		SET title = ?, artist = ?, genre = ?, bpm = ?, energy_level = ?, valence = ?, camelot_key = ?,
			audio_status = ?, duration = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		t.Title,
		t.Artist,
		t.Genre,
		nullFloat(t.BPM),
		nullFloat(t.EnergyLevel),
		nullFloat(t.Valence),
		t.CamelotKey,
		string(t.AudioStatus),
		t.Duration,
		now,
		track.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, track.ID())
	}

	return nil
}

// Delete soft-deletes a track by ID
func (r *TrackRepository) Delete(id string) error {
	query := `
		UPDATE tracks
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrTrackNotFound, id)
	}

	return nil
}

// List retrieves tracks in insertion order. Supported criteria: "source" (string),
// "min_bpm" and "max_bpm" (float64), "status" ([models.AudioStatus]) and "limit" (int).
func (r *TrackRepository) List(criteria map[string]any) ([]*models.PersistedTrack, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE deleted_at IS NULL`
	args := []any{}

	if source, ok := criteria["source"].(string); ok && source != "" {
		query += " AND source_bucket = ?"
		args = append(args, source)
	}
	if lo, ok := criteria["min_bpm"].(float64); ok {
		query += " AND bpm >= ?"
		args = append(args, lo)
	}
	if hi, ok := criteria["max_bpm"].(float64); ok {
		query += " AND bpm <= ?"
		args = append(args, hi)
	}
	if status, ok := criteria["status"].(models.AudioStatus); ok && status != "" {
		query += " AND audio_status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.PersistedTrack
	for rows.Next() {
		track, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tracks, nil
}

// SearchTracks implements [services.Catalog] over the local library.
func (r *TrackRepository) SearchTracks(ctx context.Context, c models.SearchCriteria) ([]models.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	criteria := map[string]any{"source": c.Source, "limit": c.Limit}
	if c.MinBPM != nil {
		criteria["min_bpm"] = *c.MinBPM
	}
	if c.MaxBPM != nil {
		criteria["max_bpm"] = *c.MaxBPM
	}

	persisted, err := r.List(criteria)
	if err != nil {
		return nil, err
	}
	tracks := make([]models.Track, len(persisted))
	for i, p := range persisted {
		tracks[i] = p.Track()
	}
	return tracks, nil
}

// ListSourceObjects implements [services.Catalog], listing the stored keys of a source.
func (r *TrackRepository) ListSourceObjects(ctx context.Context, sourceID string) ([]models.ObjectRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT source_bucket, source_key FROM tracks WHERE source_bucket = ? AND deleted_at IS NULL ORDER BY source_key ASC`,
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query source objects: %w", err)
	}
	defer rows.Close()

	var refs []models.ObjectRef
	for rows.Next() {
		var ref models.ObjectRef
		if err := rows.Scan(&ref.Bucket, &ref.Key); err != nil {
			return nil, fmt.Errorf("failed to scan source object: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return refs, nil
}

// Count returns the number of live tracks.
func (r *TrackRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM tracks WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tracks: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row from either [sql.Row] or [sql.Rows] into a [models.PersistedTrack]
func (r *TrackRepository) scan(row scanner) (*models.PersistedTrack, error) {
	var (
		id           string
		sequence     int
		title        string
		artist       string
		genre        string
		bpm          sql.NullFloat64
		energy       sql.NullFloat64
		valence      sql.NullFloat64
		camelotKey   string
		sourceBucket string
		sourceKey    string
		audioStatus  string
		duration     int
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(&id, &sequence, &title, &artist, &genre, &bpm, &energy, &valence, &camelotKey,
		&sourceBucket, &sourceKey, &audioStatus, &duration, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrTrackNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	track := models.NewPersistedTrack(sequence, models.Track{
		ID:           id,
		Title:        title,
		Artist:       artist,
		Genre:        genre,
		BPM:          floatPtr(bpm),
		EnergyLevel:  floatPtr(energy),
		Valence:      floatPtr(valence),
		CamelotKey:   camelotKey,
		SourceBucket: sourceBucket,
		SourceKey:    sourceKey,
		AudioStatus:  models.ParseAudioStatus(audioStatus),
		Duration:     duration,
	})
	track.SetID(id)
	track.SetCreatedAt(createdAt)
	track.SetUpdatedAt(updatedAt)
	if deletedAt.Valid {
		track.SetDeletedAt(&deletedAt.Time)
	}

	return track, nil
}
