package handlers

import (
	"context"
	"time"

	"github.com/watchclub/backend/internal/groups"
	"github.com/watchclub/backend/internal/models"
	"github.com/watchclub/backend/internal/videos"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	MarkVerified(ctx context.Context, id string, at time.Time) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// SessionManager issues, verifies and refreshes authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Verify(token string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, refreshToken string)
}

// TokenIssuer manages the one-time email tokens for verification and
// password-reset flows.
type TokenIssuer interface {
	IssueVerification(ctx context.Context, userID string) (string, error)
	IssueReset(ctx context.Context, userID string) (string, error)
	Peek(ctx context.Context, kind, value string) (string, error)
	Redeem(ctx context.Context, kind, value string) (string, error)
}

// GroupService captures the group membership lifecycle used by the group
// handlers.
type GroupService interface {
	Create(ctx context.Context, creatorID, name string) (models.Group, error)
	Join(ctx context.Context, userID, code string) (models.Group, error)
	Leave(ctx context.Context, userID, groupID string) error
	Get(ctx context.Context, userID, code string) (groups.View, error)
	ListForUser(ctx context.Context, userID string) ([]models.Group, error)
	Invite(ctx context.Context, userID, code, email string) error
}

// VideoService captures the video lifecycle used by the video handlers.
type VideoService interface {
	Add(ctx context.Context, userID, groupID, url string) (models.Video, error)
	Get(ctx context.Context, userID, videoID string) (models.Video, models.Profile, error)
	Update(ctx context.Context, userID, videoID, url string) (models.Video, error)
	Delete(ctx context.Context, userID, videoID string) error
	MarkSeen(ctx context.Context, userID, videoID string) ([]models.Profile, error)
	ToggleStar(ctx context.Context, userID, videoID string) ([]videos.View, error)
	Starred(ctx context.Context, userID string) ([]videos.View, error)
	ListForUserPerGroup(ctx context.Context, requesterID, targetID, groupID string) ([]videos.View, []videos.View, error)
}
