package videos

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/watchclub/backend/internal/logging"
	"github.com/watchclub/backend/internal/models"
	"github.com/watchclub/backend/internal/repositories"
)

var (
	// ErrNotFound indicates the video, its group or the acting user is missing.
	ErrNotFound = errors.New("video not found")
	// ErrNotMember indicates the acting user is not a member of the video's group.
	ErrNotMember = errors.New("user is not a member of the group")
	// ErrNotOwner indicates the acting user does not own the video.
	ErrNotOwner = errors.New("user is not the owner of the video")
	// ErrInvalidURL indicates the submitted link is missing or empty.
	ErrInvalidURL = errors.New("video url is required")
)

// UserStore captures the user persistence operations the video lifecycle needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
	PushVideo(ctx context.Context, userID, videoID string, at time.Time) error
	PushStarred(ctx context.Context, userID, videoID string, at time.Time) error
	PullStarred(ctx context.Context, userID, videoID string, at time.Time) error
}

// GroupStore resolves groups for membership checks and reference updates.
type GroupStore interface {
	FindByID(ctx context.Context, id string) (models.Group, error)
	PushVideo(ctx context.Context, groupID, videoID string, at time.Time) error
}

// VideoStore captures persistence for the video rows themselves.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListByOwnerAndGroup(ctx context.Context, ownerID, groupID string) ([]models.Video, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Video, error)
	UpdateURL(ctx context.Context, id, url string, at time.Time) error
	SetMetadata(ctx context.Context, id, title, thumbnail string, at time.Time) error
	AddSeenBy(ctx context.Context, id, userID string, at time.Time) error
	DeleteWithReferences(ctx context.Context, video models.Video, at time.Time) error
}

// View is a video with its seen-by set resolved to viewer profiles.
type View struct {
	models.Video
	Viewers []models.Profile `json:"viewers"`
}

// Service implements the video lifecycle and the cross-reference bookkeeping
// around it.
type Service struct {
	Users    UserStore
	Groups   GroupStore
	Videos   VideoStore
	Metadata Provider
	NowFunc  func() time.Time
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Add shares a link into a group. The creator is deemed to have seen their
// own submission. Reference-array pushes land before the video row is
// written, so a crash mid-sequence leaves dangling references (cleanable by a
// repair sweep) rather than an unreachable video.
func (s *Service) Add(ctx context.Context, userID, groupID, url string) (models.Video, error) {
	if _, err := s.Users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find user: %w", err)
	}

	if url == "" {
		return models.Video{}, ErrInvalidURL
	}

	group, err := s.Groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find group: %w", err)
	}

	if !slices.Contains(group.Members, userID) {
		return models.Video{}, ErrNotMember
	}

	now := s.now()
	video := models.Video{
		ID:        uuid.NewString(),
		URL:       url,
		OwnerID:   userID,
		GroupID:   groupID,
		SeenBy:    []string{userID},
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Row first, references second: a failure in between leaves the video
	// reachable by id but unlisted, never a listing that points at nothing.
	if err := s.Videos.Create(ctx, video); err != nil {
		return models.Video{}, fmt.Errorf("create video: %w", err)
	}
	if err := s.Users.PushVideo(ctx, userID, video.ID, now); err != nil {
		return models.Video{}, fmt.Errorf("push video onto user: %w", err)
	}
	if err := s.Groups.PushVideo(ctx, groupID, video.ID, now); err != nil {
		return models.Video{}, fmt.Errorf("push video onto group: %w", err)
	}

	s.enrich(ctx, &video)

	return video, nil
}

// enrich resolves link metadata best-effort; failures are logged and the
// stored video keeps empty metadata fields.
func (s *Service) enrich(ctx context.Context, video *models.Video) {
	if s.Metadata == nil {
		return
	}

	metadata, err := s.Metadata.Lookup(ctx, video.URL)
	if err != nil {
		logging.FromContext(ctx).Warn("resolve link metadata", "error", err, "videoId", video.ID)
		return
	}

	if err := s.Videos.SetMetadata(ctx, video.ID, metadata.Title, metadata.Thumbnail, s.now()); err != nil {
		logging.FromContext(ctx).Warn("store link metadata", "error", err, "videoId", video.ID)
		return
	}

	video.Title = metadata.Title
	video.Thumbnail = metadata.Thumbnail
}

// Get returns a single video together with its owner's profile. The
// requester must be a member of the video's group.
func (s *Service) Get(ctx context.Context, userID, videoID string) (models.Video, models.Profile, error) {
	video, err := s.authorizeMember(ctx, userID, videoID)
	if err != nil {
		return models.Video{}, models.Profile{}, err
	}

	owners, err := s.Users.ListProfiles(ctx, []string{video.OwnerID})
	if err != nil {
		return models.Video{}, models.Profile{}, fmt.Errorf("resolve owner: %w", err)
	}

	var owner models.Profile
	if len(owners) > 0 {
		owner = owners[0]
	}

	return video, owner, nil
}

// Update replaces the video's link. Ownership, not group membership, gates
// edits; the seen-by set is untouched.
func (s *Service) Update(ctx context.Context, userID, videoID, url string) (models.Video, error) {
	if url == "" {
		return models.Video{}, ErrInvalidURL
	}

	video, err := s.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find video: %w", err)
	}

	if video.OwnerID != userID {
		return models.Video{}, ErrNotOwner
	}

	now := s.now()
	if err := s.Videos.UpdateURL(ctx, videoID, url, now); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("update video url: %w", err)
	}

	video.URL = url
	video.Title = ""
	video.Thumbnail = ""
	video.UpdatedAt = now

	s.enrich(ctx, &video)

	return video, nil
}

// Delete removes the video and both of its container references inside one
// transaction. A concurrent leave cascade that already removed the video is
// reported as ErrNotFound, never as a partial state.
func (s *Service) Delete(ctx context.Context, userID, videoID string) error {
	ctx, span := logging.StartSpan(ctx, "videos.delete")
	defer span.End()

	video, err := s.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("find video: %w", err)
	}

	if video.OwnerID != userID {
		return ErrNotOwner
	}

	if _, err := s.Groups.FindByID(ctx, video.GroupID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("find group: %w", err)
	}

	if err := s.Videos.DeleteWithReferences(ctx, video, s.now()); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete video: %w", err)
	}

	return nil
}

// MarkSeen idempotently records that the user has opened the video and
// returns the resolved viewer profiles. Any member of the video's group may
// mark a video seen regardless of ownership.
func (s *Service) MarkSeen(ctx context.Context, userID, videoID string) ([]models.Profile, error) {
	video, err := s.authorizeMember(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(video.SeenBy, userID) {
		if err := s.Videos.AddSeenBy(ctx, videoID, userID, s.now()); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("append seen-by: %w", err)
		}
		video.SeenBy = append(video.SeenBy, userID)
	}

	viewers, err := s.Users.ListProfiles(ctx, video.SeenBy)
	if err != nil {
		return nil, fmt.Errorf("resolve viewers: %w", err)
	}

	return viewers, nil
}

// ToggleStar flips the video's membership in the user's starred set and
// returns the resolved starred list. The video document itself is untouched.
func (s *Service) ToggleStar(ctx context.Context, userID, videoID string) ([]View, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	video, err := s.authorizeMember(ctx, userID, videoID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if slices.Contains(user.StarredVideos, video.ID) {
		if err := s.Users.PullStarred(ctx, userID, video.ID, now); err != nil {
			return nil, fmt.Errorf("unstar video: %w", err)
		}
		user.StarredVideos = slices.DeleteFunc(user.StarredVideos, func(id string) bool { return id == video.ID })
	} else {
		if err := s.Users.PushStarred(ctx, userID, video.ID, now); err != nil {
			return nil, fmt.Errorf("star video: %w", err)
		}
		user.StarredVideos = append(user.StarredVideos, video.ID)
	}

	return s.resolveViews(ctx, user.StarredVideos)
}

// Starred returns the user's starred videos newest-first. Ids that no longer
// resolve to a video are dropped rather than surfaced as errors.
func (s *Service) Starred(ctx context.Context, userID string) ([]View, error) {
	user, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	return s.resolveViews(ctx, user.StarredVideos)
}

// ListForUserPerGroup returns one member's videos within one group, plus the
// requester's starred list. Both the requester and the target must be
// members of the group.
func (s *Service) ListForUserPerGroup(ctx context.Context, requesterID, targetID, groupID string) ([]View, []View, error) {
	requester, err := s.Users.FindByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("find requester: %w", err)
	}

	if _, err := s.Users.FindByID(ctx, targetID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("find target user: %w", err)
	}

	group, err := s.Groups.FindByID(ctx, groupID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("find group: %w", err)
	}

	if !slices.Contains(group.Members, requesterID) || !slices.Contains(group.Members, targetID) {
		return nil, nil, ErrNotMember
	}

	videos, err := s.Videos.ListByOwnerAndGroup(ctx, targetID, groupID)
	if err != nil {
		return nil, nil, fmt.Errorf("list target videos: %w", err)
	}

	userViews, err := s.viewsFor(ctx, videos)
	if err != nil {
		return nil, nil, err
	}

	starredViews, err := s.resolveViews(ctx, requester.StarredVideos)
	if err != nil {
		return nil, nil, err
	}

	return userViews, starredViews, nil
}

// authorizeMember resolves the video and verifies the acting user belongs to
// its group, per the uniform read-authorization rule.
func (s *Service) authorizeMember(ctx context.Context, userID, videoID string) (models.Video, error) {
	video, err := s.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find video: %w", err)
	}

	group, err := s.Groups.FindByID(ctx, video.GroupID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find group: %w", err)
	}

	if !slices.Contains(group.Members, userID) {
		return models.Video{}, ErrNotMember
	}

	return video, nil
}

func (s *Service) resolveViews(ctx context.Context, ids []string) ([]View, error) {
	videos, err := s.Videos.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve videos: %w", err)
	}
	return s.viewsFor(ctx, videos)
}

// viewsFor resolves viewer profiles for a batch of videos with a single
// profile lookup.
func (s *Service) viewsFor(ctx context.Context, videos []models.Video) ([]View, error) {
	var viewerIDs []string
	for _, video := range videos {
		for _, id := range video.SeenBy {
			if !slices.Contains(viewerIDs, id) {
				viewerIDs = append(viewerIDs, id)
			}
		}
	}

	profiles, err := s.Users.ListProfiles(ctx, viewerIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve viewers: %w", err)
	}

	byID := make(map[string]models.Profile, len(profiles))
	for _, profile := range profiles {
		byID[profile.ID] = profile
	}

	views := make([]View, 0, len(videos))
	for _, video := range videos {
		view := View{Video: video}
		for _, id := range video.SeenBy {
			if profile, ok := byID[id]; ok {
				view.Viewers = append(view.Viewers, profile)
			}
		}
		views = append(views, view)
	}

	return views, nil
}
