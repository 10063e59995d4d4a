package repositories

import (
	"context"
	"time"

	"github.com/watchclub/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error)

	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error

	PushGroup(ctx context.Context, userID, groupID string, at time.Time) error
	PullGroup(ctx context.Context, userID, groupID string, at time.Time) error
	PushVideo(ctx context.Context, userID, videoID string, at time.Time) error
	PullVideos(ctx context.Context, userID string, videoIDs []string, at time.Time) error
	PushStarred(ctx context.Context, userID, videoID string, at time.Time) error
	PullStarred(ctx context.Context, userID, videoID string, at time.Time) error
}
