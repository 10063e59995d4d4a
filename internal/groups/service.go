// Package groups owns the group-membership lifecycle and the cascading
// cleanup that keeps user, group and video reference sets consistent.
package groups

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/watchclub/backend/internal/logging"
	"github.com/watchclub/backend/internal/models"
	"github.com/watchclub/backend/internal/repositories"
)

var (
	// ErrNotFound indicates the group does not exist. Leave deliberately
	// folds "not a member" into this error so outsiders cannot probe for
	// group existence; Get reports ErrNotMember instead.
	ErrNotFound = errors.New("group not found")
	// ErrNotMember indicates the group exists but the caller is not in its
	// member set.
	ErrNotMember = errors.New("not a member of this group")
	// ErrAlreadyMember indicates the user is already in the group's member set.
	ErrAlreadyMember = errors.New("already a member of this group")
	// ErrInvalidName indicates the group name is missing or out of bounds.
	ErrInvalidName = errors.New("group name must be between 3 and 32 characters")
	// ErrUserNotFound indicates the acting user id does not resolve.
	ErrUserNotFound = errors.New("user not found")
)

const (
	codeLength      = 4
	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxCodeAttempts = 32
	minNameLength   = 3
	maxNameLength   = 32
)

// UserStore captures the user persistence operations the group lifecycle needs.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	ListProfiles(ctx context.Context, ids []string) ([]models.Profile, error)
	PushGroup(ctx context.Context, userID, groupID string, at time.Time) error
	PullGroup(ctx context.Context, userID, groupID string, at time.Time) error
	PullVideos(ctx context.Context, userID string, videoIDs []string, at time.Time) error
}

// GroupStore captures group persistence including the reference-array mutations.
type GroupStore interface {
	Create(ctx context.Context, group models.Group) error
	FindByID(ctx context.Context, id string) (models.Group, error)
	FindByCode(ctx context.Context, code string) (models.Group, error)
	FindByIDForMember(ctx context.Context, id, userID string) (models.Group, error)
	ListForMember(ctx context.Context, userID string) ([]models.Group, error)
	AddMember(ctx context.Context, groupID, userID string, at time.Time) error
	RemoveMember(ctx context.Context, groupID, userID string, at time.Time) error
	PullVideos(ctx context.Context, groupID string, videoIDs []string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// VideoStore captures the video cleanup operations the leave cascade needs.
type VideoStore interface {
	ListByOwnerAndGroup(ctx context.Context, ownerID, groupID string) ([]models.Video, error)
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteByGroup(ctx context.Context, groupID string) error
}

// InvitationMailer sends group invitation emails.
type InvitationMailer interface {
	SendGroupInvitation(ctx context.Context, to, code, senderName, groupName string) error
}

// View is a group with its member set resolved to credential-free profiles.
// Each member's Videos slice holds only the videos they posted to this group.
type View struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Code      string           `json:"code"`
	Members   []models.Profile `json:"members"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Service implements the group membership lifecycle.
type Service struct {
	Users   UserStore
	Groups  GroupStore
	Videos  VideoStore
	Mail    InvitationMailer
	NowFunc func() time.Time
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// Create forms a new group with the creator as its sole member. The join code
// is drawn at random; uniqueness is enforced by the persistence layer, so a
// collision surfaces as a conflict and the draw is retried with a fresh code.
func (s *Service) Create(ctx context.Context, creatorID, name string) (models.Group, error) {
	if _, err := s.Users.FindByID(ctx, creatorID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Group{}, ErrUserNotFound
		}
		return models.Group{}, fmt.Errorf("find creator: %w", err)
	}

	if len(name) < minNameLength || len(name) > maxNameLength {
		return models.Group{}, ErrInvalidName
	}

	now := s.now()
	group := models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		Members:   []string{creatorID},
		Videos:    []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 0; ; attempt++ {
		code, err := randomCode(codeLength)
		if err != nil {
			return models.Group{}, fmt.Errorf("generate group code: %w", err)
		}
		group.Code = code

		err = s.Groups.Create(ctx, group)
		if err == nil {
			break
		}
		if errors.Is(err, repositories.ErrConflict) && attempt < maxCodeAttempts-1 {
			continue
		}
		return models.Group{}, fmt.Errorf("create group: %w", err)
	}

	if err := s.Users.PushGroup(ctx, creatorID, group.ID, now); err != nil {
		return models.Group{}, fmt.Errorf("push group onto creator: %w", err)
	}

	return group, nil
}

// Join adds the user to the group addressed by the join code.
func (s *Service) Join(ctx context.Context, userID, code string) (models.Group, error) {
	if _, err := s.Users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Group{}, ErrUserNotFound
		}
		return models.Group{}, fmt.Errorf("find user: %w", err)
	}

	group, err := s.Groups.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Group{}, ErrNotFound
		}
		return models.Group{}, fmt.Errorf("find group by code: %w", err)
	}

	if slices.Contains(group.Members, userID) {
		return models.Group{}, ErrAlreadyMember
	}

	now := s.now()
	if err := s.Groups.AddMember(ctx, group.ID, userID, now); err != nil {
		return models.Group{}, fmt.Errorf("add member: %w", err)
	}
	if err := s.Users.PushGroup(ctx, userID, group.ID, now); err != nil {
		return models.Group{}, fmt.Errorf("push group onto user: %w", err)
	}

	group.Members = append(group.Members, userID)
	group.UpdatedAt = now
	return group, nil
}

// Leave removes the user from the group, deleting their videos in this group
// first so that a crash mid-cascade leaves orphaned-but-linked videos (which
// a repair sweep keyed on membership can find) rather than videos claiming an
// owner who is no longer a member. If the last member leaves, every remaining
// video in the group is purged and the group itself is deleted.
func (s *Service) Leave(ctx context.Context, userID, groupID string) error {
	ctx, span := logging.StartSpan(ctx, "groups.leave")
	defer span.End()

	if _, err := s.Groups.FindByIDForMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("resolve membership: %w", err)
	}

	owned, err := s.Videos.ListByOwnerAndGroup(ctx, userID, groupID)
	if err != nil {
		return fmt.Errorf("list videos to delete: %w", err)
	}

	ids := make([]string, 0, len(owned))
	for _, video := range owned {
		ids = append(ids, video.ID)
	}

	now := s.now()

	if err := s.Videos.DeleteByIDs(ctx, ids); err != nil {
		return fmt.Errorf("delete member videos: %w", err)
	}
	if err := s.Users.PullVideos(ctx, userID, ids, now); err != nil {
		return fmt.Errorf("pull videos from user: %w", err)
	}
	if err := s.Groups.PullVideos(ctx, groupID, ids, now); err != nil {
		return fmt.Errorf("pull videos from group: %w", err)
	}

	if err := s.Groups.RemoveMember(ctx, groupID, userID, now); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	if err := s.Users.PullGroup(ctx, userID, groupID, now); err != nil {
		return fmt.Errorf("pull group from user: %w", err)
	}

	remaining, err := s.Groups.FindByID(ctx, groupID)
	if err != nil {
		// A concurrent last-member leave may have purged the group already;
		// the cascade has converged either way.
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("re-fetch group: %w", err)
	}

	if len(remaining.Members) == 0 {
		// Departed members only ever clean up their own videos, so the last
		// leaver sweeps whatever the others left behind before the group row
		// disappears.
		if err := s.Videos.DeleteByGroup(ctx, groupID); err != nil {
			return fmt.Errorf("purge group videos: %w", err)
		}
		if err := s.Groups.Delete(ctx, groupID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("delete empty group: %w", err)
		}
		logging.FromContext(ctx).Info("deleted empty group", "groupId", groupID)
	}

	return nil
}

// Get returns the group addressed by code, populated with member profiles and
// each member's videos within this group only. Only members may read a group.
func (s *Service) Get(ctx context.Context, userID, code string) (View, error) {
	group, err := s.Groups.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return View{}, ErrNotFound
		}
		return View{}, fmt.Errorf("find group: %w", err)
	}
	if !slices.Contains(group.Members, userID) {
		return View{}, ErrNotMember
	}

	profiles, err := s.Users.ListProfiles(ctx, group.Members)
	if err != nil {
		return View{}, fmt.Errorf("resolve members: %w", err)
	}

	for i := range profiles {
		videos, err := s.Videos.ListByOwnerAndGroup(ctx, profiles[i].ID, group.ID)
		if err != nil {
			return View{}, fmt.Errorf("resolve member videos: %w", err)
		}
		profiles[i].Videos = videos
	}

	return View{
		ID:        group.ID,
		Name:      group.Name,
		Code:      group.Code,
		Members:   profiles,
		CreatedAt: group.CreatedAt,
		UpdatedAt: group.UpdatedAt,
	}, nil
}

// ListForUser returns every group the user belongs to.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Group, error) {
	if _, err := s.Users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	groups, err := s.Groups.ListForMember(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}

	return groups, nil
}

// Invite emails a join invitation for the group addressed by code. Delivery
// is best-effort: a mail failure is logged and does not fail the call.
func (s *Service) Invite(ctx context.Context, userID, code, email string) error {
	group, err := s.Groups.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("find group by code: %w", err)
	}

	sender, err := s.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("find sender: %w", err)
	}

	if invitee, err := s.Users.FindByEmail(ctx, email); err == nil {
		if slices.Contains(group.Members, invitee.ID) {
			return ErrAlreadyMember
		}
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("find invitee: %w", err)
	}

	if s.Mail != nil {
		if err := s.Mail.SendGroupInvitation(ctx, email, code, sender.FullName, group.Name); err != nil {
			logging.FromContext(ctx).Error("send group invitation", "error", err, "groupId", group.ID)
		}
	}

	return nil
}

// randomCode draws a short case-sensitive alphanumeric join code.
func randomCode(length int) (string, error) {
	buf := make([]byte, length)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
