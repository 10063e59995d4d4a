package groups

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/watchclub/backend/internal/models"
	"github.com/watchclub/backend/internal/repositories"
)

// memWorld is a shared in-memory dataset; the typed wrappers below expose the
// store interfaces the service expects.
type memWorld struct {
	users  map[string]models.User
	groups map[string]models.Group
	videos map[string]models.Video

	createConflicts int
	groupDeleteErr  error
	purgeOnRemove   bool
}

func newMemWorld() *memWorld {
	return &memWorld{
		users:  make(map[string]models.User),
		groups: make(map[string]models.Group),
		videos: make(map[string]models.Video),
	}
}

type memUsers struct{ w *memWorld }

func (s memUsers) FindByID(_ context.Context, id string) (models.User, error) {
	user, ok := s.w.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.w.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s memUsers) ListProfiles(_ context.Context, ids []string) ([]models.Profile, error) {
	var out []models.Profile
	for _, id := range ids {
		if user, ok := s.w.users[id]; ok {
			out = append(out, models.Profile{ID: user.ID, Email: user.Email, FullName: user.FullName})
		}
	}
	return out, nil
}

func (s memUsers) PushGroup(_ context.Context, userID, groupID string, _ time.Time) error {
	user, ok := s.w.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	if !slices.Contains(user.Groups, groupID) {
		user.Groups = append(user.Groups, groupID)
	}
	s.w.users[userID] = user
	return nil
}

func (s memUsers) PullGroup(_ context.Context, userID, groupID string, _ time.Time) error {
	user, ok := s.w.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Groups = slices.DeleteFunc(user.Groups, func(id string) bool { return id == groupID })
	s.w.users[userID] = user
	return nil
}

func (s memUsers) PullVideos(_ context.Context, userID string, videoIDs []string, _ time.Time) error {
	user, ok := s.w.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Videos = slices.DeleteFunc(user.Videos, func(id string) bool { return slices.Contains(videoIDs, id) })
	s.w.users[userID] = user
	return nil
}

type memGroups struct{ w *memWorld }

func (s memGroups) Create(_ context.Context, group models.Group) error {
	if s.w.createConflicts > 0 {
		s.w.createConflicts--
		return repositories.ErrConflict
	}
	for _, existing := range s.w.groups {
		if existing.Code == group.Code {
			return repositories.ErrConflict
		}
	}
	s.w.groups[group.ID] = group
	return nil
}

func (s memGroups) FindByID(_ context.Context, id string) (models.Group, error) {
	group, ok := s.w.groups[id]
	if !ok {
		return models.Group{}, repositories.ErrNotFound
	}
	return group, nil
}

func (s memGroups) FindByCode(_ context.Context, code string) (models.Group, error) {
	for _, group := range s.w.groups {
		if group.Code == code {
			return group, nil
		}
	}
	return models.Group{}, repositories.ErrNotFound
}

func (s memGroups) FindByIDForMember(ctx context.Context, id, userID string) (models.Group, error) {
	group, err := s.FindByID(ctx, id)
	if err != nil {
		return models.Group{}, err
	}
	if !slices.Contains(group.Members, userID) {
		return models.Group{}, repositories.ErrNotFound
	}
	return group, nil
}

func (s memGroups) ListForMember(_ context.Context, userID string) ([]models.Group, error) {
	var out []models.Group
	for _, group := range s.w.groups {
		if slices.Contains(group.Members, userID) {
			out = append(out, group)
		}
	}
	return out, nil
}

func (s memGroups) AddMember(_ context.Context, groupID, userID string, _ time.Time) error {
	group, ok := s.w.groups[groupID]
	if !ok {
		return repositories.ErrNotFound
	}
	if !slices.Contains(group.Members, userID) {
		group.Members = append(group.Members, userID)
	}
	s.w.groups[groupID] = group
	return nil
}

func (s memGroups) RemoveMember(_ context.Context, groupID, userID string, _ time.Time) error {
	group, ok := s.w.groups[groupID]
	if !ok {
		return repositories.ErrNotFound
	}
	group.Members = slices.DeleteFunc(group.Members, func(id string) bool { return id == userID })
	s.w.groups[groupID] = group
	if s.w.purgeOnRemove {
		delete(s.w.groups, groupID)
	}
	return nil
}

func (s memGroups) PullVideos(_ context.Context, groupID string, videoIDs []string, _ time.Time) error {
	group, ok := s.w.groups[groupID]
	if !ok {
		return repositories.ErrNotFound
	}
	group.Videos = slices.DeleteFunc(group.Videos, func(id string) bool { return slices.Contains(videoIDs, id) })
	s.w.groups[groupID] = group
	return nil
}

func (s memGroups) Delete(_ context.Context, id string) error {
	if s.w.groupDeleteErr != nil {
		return s.w.groupDeleteErr
	}
	if _, ok := s.w.groups[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.w.groups, id)
	return nil
}

type memVideos struct{ w *memWorld }

func (s memVideos) ListByOwnerAndGroup(_ context.Context, ownerID, groupID string) ([]models.Video, error) {
	var out []models.Video
	for _, video := range s.w.videos {
		if video.OwnerID == ownerID && video.GroupID == groupID {
			out = append(out, video)
		}
	}
	return out, nil
}

func (s memVideos) DeleteByIDs(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.w.videos, id)
	}
	return nil
}

func (s memVideos) DeleteByGroup(_ context.Context, groupID string) error {
	for id, video := range s.w.videos {
		if video.GroupID == groupID {
			delete(s.w.videos, id)
		}
	}
	return nil
}

type recordingMailer struct {
	sent []string
	err  error
}

func (m *recordingMailer) SendGroupInvitation(_ context.Context, to, _, _, _ string) error {
	m.sent = append(m.sent, to)
	return m.err
}

func newService(w *memWorld) *Service {
	return &Service{
		Users:   memUsers{w},
		Groups:  memGroups{w},
		Videos:  memVideos{w},
		NowFunc: func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func seedUser(w *memWorld, id string) {
	w.users[id] = models.User{ID: id, Email: id + "@example.com", FullName: "User " + id}
}

func seedGroup(w *memWorld, id, code string, members ...string) {
	w.groups[id] = models.Group{ID: id, Name: "Group " + id, Code: code, Members: members}
	for _, member := range members {
		user := w.users[member]
		user.Groups = append(user.Groups, id)
		w.users[member] = user
	}
}

func seedVideo(w *memWorld, id, ownerID, groupID string) {
	w.videos[id] = models.Video{ID: id, URL: "https://example.com/" + id, OwnerID: ownerID, GroupID: groupID}

	user := w.users[ownerID]
	user.Videos = append(user.Videos, id)
	w.users[ownerID] = user

	group := w.groups[groupID]
	group.Videos = append(group.Videos, id)
	w.groups[groupID] = group
}

func TestCreateGroup(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	svc := newService(w)

	group, err := svc.Create(context.Background(), "user-1", "Movie Night")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(group.Code) != codeLength {
		t.Fatalf("expected %d-char code got %q", codeLength, group.Code)
	}
	for _, ch := range group.Code {
		if !strings.ContainsRune(codeAlphabet, ch) {
			t.Fatalf("code %q contains character outside alphabet", group.Code)
		}
	}

	if len(group.Members) != 1 || group.Members[0] != "user-1" {
		t.Fatalf("expected creator to be sole member got %v", group.Members)
	}
	if got := w.users["user-1"].Groups; len(got) != 1 || got[0] != group.ID {
		t.Fatalf("expected group id on creator got %v", got)
	}
}

func TestCreateGroupRetriesOnCodeCollision(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	w.createConflicts = 2
	svc := newService(w)

	group, err := svc.Create(context.Background(), "user-1", "Movie Night")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if _, ok := w.groups[group.ID]; !ok {
		t.Fatal("expected group to be stored after retries")
	}
}

func TestCreateGroupValidation(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	svc := newService(w)

	if _, err := svc.Create(context.Background(), "user-1", "ab"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for short name got %v", err)
	}
	if _, err := svc.Create(context.Background(), "user-1", strings.Repeat("x", 33)); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName for long name got %v", err)
	}
	if _, err := svc.Create(context.Background(), "ghost", "Movie Night"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound got %v", err)
	}
}

func TestJoinGroup(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedUser(w, "user-2")
	seedGroup(w, "group-1", "aB3x", "user-1")
	svc := newService(w)

	group, err := svc.Join(context.Background(), "user-2", "aB3x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !slices.Contains(group.Members, "user-2") {
		t.Fatalf("expected user-2 in members got %v", group.Members)
	}
	if !slices.Contains(w.groups["group-1"].Members, "user-2") {
		t.Fatal("expected member to be persisted on group")
	}
	if !slices.Contains(w.users["user-2"].Groups, "group-1") {
		t.Fatal("expected group to be persisted on user")
	}
}

func TestJoinGroupFailures(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedGroup(w, "group-1", "aB3x", "user-1")
	svc := newService(w)

	if _, err := svc.Join(context.Background(), "user-1", "aB3x"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember got %v", err)
	}
	if _, err := svc.Join(context.Background(), "user-1", "zzzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestLeaveGroupDeletesOwnVideos(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedUser(w, "user-2")
	seedGroup(w, "group-1", "aB3x", "user-1", "user-2")
	seedVideo(w, "video-1", "user-1", "group-1")
	seedVideo(w, "video-2", "user-2", "group-1")
	svc := newService(w)

	if err := svc.Leave(context.Background(), "user-1", "group-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := w.videos["video-1"]; ok {
		t.Fatal("expected leaver's video to be deleted")
	}
	if _, ok := w.videos["video-2"]; !ok {
		t.Fatal("expected other member's video to survive")
	}

	group := w.groups["group-1"]
	if slices.Contains(group.Members, "user-1") {
		t.Fatal("expected leaver to be removed from members")
	}
	if slices.Contains(group.Videos, "video-1") {
		t.Fatal("expected deleted video id pulled from group")
	}
	if !slices.Contains(group.Videos, "video-2") {
		t.Fatal("expected remaining video id kept on group")
	}

	user := w.users["user-1"]
	if slices.Contains(user.Groups, "group-1") {
		t.Fatal("expected group pulled from leaver")
	}
	if slices.Contains(user.Videos, "video-1") {
		t.Fatal("expected video pulled from leaver")
	}
}

func TestLeaveGroupLastMemberDeletesGroup(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedUser(w, "user-2")
	seedGroup(w, "group-1", "aB3x", "user-1", "user-2")
	seedVideo(w, "video-1", "user-1", "group-1")
	seedVideo(w, "video-2", "user-2", "group-1")
	svc := newService(w)

	if err := svc.Leave(context.Background(), "user-1", "group-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Leave(context.Background(), "user-2", "group-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := w.groups["group-1"]; ok {
		t.Fatal("expected empty group to be deleted")
	}
	if len(w.videos) != 0 {
		t.Fatalf("expected all group videos purged got %d", len(w.videos))
	}
}

// Two last-member leaves can race; the loser finds the group already gone at
// the re-fetch or purge step and must still report success.
func TestLeaveGroupToleratesConcurrentPurge(t *testing.T) {
	t.Run("group gone before re-fetch", func(t *testing.T) {
		w := newMemWorld()
		seedUser(w, "user-1")
		seedGroup(w, "group-1", "aB3x", "user-1")
		w.purgeOnRemove = true
		svc := newService(w)

		if err := svc.Leave(context.Background(), "user-1", "group-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("delete loses the race", func(t *testing.T) {
		w := newMemWorld()
		seedUser(w, "user-1")
		seedGroup(w, "group-1", "aB3x", "user-1")
		w.groupDeleteErr = repositories.ErrNotFound
		svc := newService(w)

		if err := svc.Leave(context.Background(), "user-1", "group-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestLeaveGroupNonMember(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedUser(w, "outsider")
	seedGroup(w, "group-1", "aB3x", "user-1")
	svc := newService(w)

	if err := svc.Leave(context.Background(), "outsider", "group-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	if err := svc.Leave(context.Background(), "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestGetGroupScopesVideosPerMember(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedUser(w, "user-2")
	seedGroup(w, "group-1", "aB3x", "user-1", "user-2")
	seedGroup(w, "group-2", "zZ9q", "user-1")
	seedVideo(w, "video-1", "user-1", "group-1")
	seedVideo(w, "video-2", "user-1", "group-2")
	svc := newService(w)

	view, err := svc.Get(context.Background(), "user-2", "aB3x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(view.Members) != 2 {
		t.Fatalf("expected 2 member profiles got %d", len(view.Members))
	}
	for _, member := range view.Members {
		if member.ID != "user-1" {
			continue
		}
		if len(member.Videos) != 1 || member.Videos[0].ID != "video-1" {
			t.Fatalf("expected only this group's video got %v", member.Videos)
		}
	}
}

func TestGetGroupRejectsOutsiders(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedUser(w, "outsider")
	seedGroup(w, "group-1", "aB3x", "user-1")
	svc := newService(w)

	if _, err := svc.Get(context.Background(), "outsider", "aB3x"); !errors.Is(err, ErrNotMember) {
		t.Fatalf("expected ErrNotMember for outsider, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "outsider", "zzzz"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
}

func TestInvite(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedUser(w, "user-2")
	seedGroup(w, "group-1", "aB3x", "user-1", "user-2")
	mailer := &recordingMailer{}
	svc := newService(w)
	svc.Mail = mailer

	if err := svc.Invite(context.Background(), "user-1", "aB3x", "new@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "new@example.com" {
		t.Fatalf("expected one invitation got %v", mailer.sent)
	}

	if err := svc.Invite(context.Background(), "user-1", "aB3x", "user-2@example.com"); !errors.Is(err, ErrAlreadyMember) {
		t.Fatalf("expected ErrAlreadyMember got %v", err)
	}
	if err := svc.Invite(context.Background(), "user-1", "zzzz", "new@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}

func TestInviteMailFailureDoesNotFail(t *testing.T) {
	w := newMemWorld()
	seedUser(w, "user-1")
	seedGroup(w, "group-1", "aB3x", "user-1")
	mailer := &recordingMailer{err: errors.New("smtp down")}
	svc := newService(w)
	svc.Mail = mailer

	if err := svc.Invite(context.Background(), "user-1", "aB3x", "new@example.com"); err != nil {
		t.Fatalf("expected mail failure to be swallowed got %v", err)
	}
}
