package repositories

import (
	"errors"
	"fmt"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// ImportResult counts what an import did.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// TrackImporter upserts catalog tracks into a [TrackRepository].
//
// Tracks are matched by source bucket and key. Invalid rows are skipped rather than failing the batch.
type TrackImporter struct {
	repo *TrackRepository
}

// NewTrackImporter creates a new TrackImporter with the given repository
func NewTrackImporter(repo *TrackRepository) *TrackImporter {
	return &TrackImporter{repo: repo}
}

// Import stores every track, updating the analysis values of tracks already in the library.
// Only storage failures are returned as errors.
func (a *TrackImporter) Import(tracks []models.Track) (ImportResult, error) {
	var res ImportResult
	for _, t := range tracks {
		if err := models.NewPersistedTrack(0, t).Validate(); err != nil {
			res.Skipped++
			continue
		}

		existing, err := a.repo.GetBySource(t.SourceBucket, t.SourceKey)
		switch {
		case err == nil:
			t.ID = existing.ID()
			existing.SetTrack(t)
			if err := a.repo.Update(existing); err != nil {
				return res, fmt.Errorf("failed to update track %s: %w", t.Title, err)
			}
			res.Updated++
		case errors.Is(err, shared.ErrTrackNotFound):
			if err := a.repo.Create(models.NewPersistedTrack(0, t)); err != nil {
				return res, fmt.Errorf("failed to import track %s: %w", t.Title, err)
			}
			res.Created++
		default:
			return res, err
		}
	}
	return res, nil
}
