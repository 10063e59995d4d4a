package repositories

import (
	"context"
	"time"

	"github.com/watchclub/backend/internal/models"
)

// GroupRepository defines data access for groups and their reference arrays.
type GroupRepository interface {
	Create(ctx context.Context, group models.Group) error
	FindByID(ctx context.Context, id string) (models.Group, error)
	FindByCode(ctx context.Context, code string) (models.Group, error)
	// FindByIDForMember resolves a group only when userID is in its member
	// set; a missing group and a non-member resolve to ErrNotFound alike.
	FindByIDForMember(ctx context.Context, id, userID string) (models.Group, error)
	ListForMember(ctx context.Context, userID string) ([]models.Group, error)

	AddMember(ctx context.Context, groupID, userID string, at time.Time) error
	RemoveMember(ctx context.Context, groupID, userID string, at time.Time) error
	PushVideo(ctx context.Context, groupID, videoID string, at time.Time) error
	PullVideos(ctx context.Context, groupID string, videoIDs []string, at time.Time) error
	Delete(ctx context.Context, id string) error
}
