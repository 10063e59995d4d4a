package repositories

import (
	"context"
	"time"

	"github.com/watchclub/backend/internal/models"
)

// VideoRepository exposes data access for shared videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListByOwnerAndGroup(ctx context.Context, ownerID, groupID string) ([]models.Video, error)
	// ListByIDs resolves the provided ids newest-first; ids that no longer
	// exist are silently dropped.
	ListByIDs(ctx context.Context, ids []string) ([]models.Video, error)

	UpdateURL(ctx context.Context, id, url string, at time.Time) error
	SetMetadata(ctx context.Context, id, title, thumbnail string, at time.Time) error
	AddSeenBy(ctx context.Context, id, userID string, at time.Time) error

	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByGroup(ctx context.Context, groupID string) error
	// DeleteWithReferences removes the video row and pulls its id from the
	// owner's and group's reference arrays inside a single transaction.
	DeleteWithReferences(ctx context.Context, video models.Video, at time.Time) error
}
