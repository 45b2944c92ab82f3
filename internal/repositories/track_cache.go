package repositories

import (
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// TrackCacheAdapter implements tasks.TrackCacher using TrackRepository.
//
// Catalog tracks seen while building playlists are kept for offline use, deduplicated by
// source bucket and key. Duplicate tracks are silently ignored (UNIQUE constraint violations).
type TrackCacheAdapter struct {
	repo *TrackRepository
}

// NewTrackCacheAdapter creates a new TrackCacheAdapter with the given repository
func NewTrackCacheAdapter(repo *TrackRepository) *TrackCacheAdapter {
	return &TrackCacheAdapter{repo: repo}
}

// CacheTrack stores a catalog track when it is not already in the library.
// Only returns errors for actual failures (not constraint violations).
func (a *TrackCacheAdapter) CacheTrack(track models.Track) error {
	if _, err := a.repo.GetBySource(track.SourceBucket, track.SourceKey); err == nil {
		return nil
	} else if !errors.Is(err, shared.ErrTrackNotFound) {
		return err
	}

	if err := a.repo.Create(models.NewPersistedTrack(0, track)); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil
		}
		return fmt.Errorf("failed to cache track: %w", err)
	}
	return nil
}
