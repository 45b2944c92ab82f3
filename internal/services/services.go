// package services defines the catalog collaborator and its HTTP implementation
package services

import (
	"context"

	"github.com/desertthunder/cadence/internal/models"
)

// Catalog is the source of candidate tracks.
type Catalog interface {
	// SearchTracks returns candidate tracks matching the criteria, in catalog order.
	SearchTracks(ctx context.Context, c models.SearchCriteria) ([]models.Track, error)

	// ListSourceObjects lists the raw objects stored under a content source.
	ListSourceObjects(ctx context.Context, sourceID string) ([]models.ObjectRef, error)
}
