package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/watchclub/backend/internal/groups"
	"github.com/watchclub/backend/internal/models"
)

type fakeGroupService struct {
	createErr error
	joinErr   error
	leaveErr  error
	getErr    error
	inviteErr error

	group models.Group
	view  groups.View
	list  []models.Group

	leftGroupID string
	invitedTo   string
}

func (s *fakeGroupService) Create(_ context.Context, creatorID, name string) (models.Group, error) {
	if s.createErr != nil {
		return models.Group{}, s.createErr
	}
	return models.Group{ID: "group-1", Name: name, Code: "aB3x", Members: []string{creatorID}}, nil
}

func (s *fakeGroupService) Join(_ context.Context, userID, code string) (models.Group, error) {
	if s.joinErr != nil {
		return models.Group{}, s.joinErr
	}
	return models.Group{ID: "group-1", Code: code, Members: []string{"user-1", userID}}, nil
}

func (s *fakeGroupService) Leave(_ context.Context, _, groupID string) error {
	if s.leaveErr != nil {
		return s.leaveErr
	}
	s.leftGroupID = groupID
	return nil
}

func (s *fakeGroupService) Get(context.Context, string, string) (groups.View, error) {
	if s.getErr != nil {
		return groups.View{}, s.getErr
	}
	return s.view, nil
}

func (s *fakeGroupService) ListForUser(context.Context, string) ([]models.Group, error) {
	return s.list, nil
}

func (s *fakeGroupService) Invite(_ context.Context, _, _, email string) error {
	if s.inviteErr != nil {
		return s.inviteErr
	}
	s.invitedTo = email
	return nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

func authedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	return req.WithContext(context.WithValue(req.Context(), userIDKey, "user-1"))
}

func TestGroupHandlerCreate(t *testing.T) {
	svc := &fakeGroupService{}
	handler := GroupHandler{Groups: svc}

	body, _ := json.Marshal(createGroupRequest{Name: "Movie Night"})
	rec := httptest.NewRecorder()
	handler.Create(rec, authedRequest(http.MethodPost, "/api/group", body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp groupResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Group.Name != "Movie Night" {
		t.Fatalf("expected group name echoed got %q", resp.Group.Name)
	}
}

func TestGroupHandlerCreateFailures(t *testing.T) {
	cases := []struct {
		name   string
		svc    *fakeGroupService
		body   string
		status int
	}{
		{"invalid body", &fakeGroupService{}, "{", http.StatusBadRequest},
		{"missing name", &fakeGroupService{}, `{}`, http.StatusBadRequest},
		{"name out of bounds", &fakeGroupService{createErr: groups.ErrInvalidName}, `{"name":"ab"}`, http.StatusBadRequest},
		{"unknown user", &fakeGroupService{createErr: groups.ErrUserNotFound}, `{"name":"Movie Night"}`, http.StatusNotFound},
		{"internal error", &fakeGroupService{createErr: errBoom}, `{"name":"Movie Night"}`, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := GroupHandler{Groups: tc.svc}
			rec := httptest.NewRecorder()
			handler.Create(rec, authedRequest(http.MethodPost, "/api/group", []byte(tc.body)))
			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, rec.Code)
			}
		})
	}
}

func TestGroupHandlerGet(t *testing.T) {
	svc := &fakeGroupService{view: groups.View{ID: "group-1", Code: "aB3x", Members: []models.Profile{{ID: "user-1"}}}}
	handler := GroupHandler{Groups: svc}

	req := authedRequest(http.MethodGet, "/api/group/aB3x", nil)
	req.SetPathValue("code", "aB3x")
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}

	svc.getErr = groups.ErrNotFound
	req = authedRequest(http.MethodGet, "/api/group/zzzz", nil)
	req.SetPathValue("code", "zzzz")
	rec = httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}

	svc.getErr = groups.ErrNotMember
	req = authedRequest(http.MethodGet, "/api/group/aB3x", nil)
	req.SetPathValue("code", "aB3x")
	rec = httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 got %d", rec.Code)
	}
}

func TestGroupHandlerJoin(t *testing.T) {
	svc := &fakeGroupService{}
	handler := GroupHandler{Groups: svc}

	body, _ := json.Marshal(joinGroupRequest{Code: "aB3x"})
	rec := httptest.NewRecorder()
	handler.Join(rec, authedRequest(http.MethodPost, "/api/group/group-1/join", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	svc.joinErr = groups.ErrAlreadyMember
	rec = httptest.NewRecorder()
	handler.Join(rec, authedRequest(http.MethodPost, "/api/group/group-1/join", body))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for repeat join got %d", rec.Code)
	}

	svc.joinErr = groups.ErrNotFound
	rec = httptest.NewRecorder()
	handler.Join(rec, authedRequest(http.MethodPost, "/api/group/group-1/join", body))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 for unknown code got %d", rec.Code)
	}
}

func TestGroupHandlerLeave(t *testing.T) {
	svc := &fakeGroupService{}
	handler := GroupHandler{Groups: svc}
	groupID := uuid.NewString()

	req := authedRequest(http.MethodPost, "/api/group/"+groupID+"/leave", nil)
	req.SetPathValue("id", groupID)
	rec := httptest.NewRecorder()
	handler.Leave(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if svc.leftGroupID != groupID {
		t.Fatalf("expected leave called with %q got %q", groupID, svc.leftGroupID)
	}
}

func TestGroupHandlerLeaveRejectsMalformedID(t *testing.T) {
	handler := GroupHandler{Groups: &fakeGroupService{}}

	req := authedRequest(http.MethodPost, "/api/group/not-a-uuid/leave", nil)
	req.SetPathValue("id", "not-a-uuid")
	rec := httptest.NewRecorder()
	handler.Leave(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestGroupHandlerInvite(t *testing.T) {
	svc := &fakeGroupService{}
	handler := GroupHandler{Groups: svc}

	body, _ := json.Marshal(inviteRequest{Email: "new@example.com"})
	req := authedRequest(http.MethodPost, "/api/group/aB3x/invite", body)
	req.SetPathValue("code", "aB3x")
	rec := httptest.NewRecorder()
	handler.Invite(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.invitedTo != "new@example.com" {
		t.Fatalf("expected invite sent got %q", svc.invitedTo)
	}

	svc.inviteErr = groups.ErrAlreadyMember
	req = authedRequest(http.MethodPost, "/api/group/aB3x/invite", body)
	req.SetPathValue("code", "aB3x")
	rec = httptest.NewRecorder()
	handler.Invite(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 for member invitee got %d", rec.Code)
	}
}

func TestGroupHandlerInviteRateLimited(t *testing.T) {
	handler := GroupHandler{Groups: &fakeGroupService{}, Limiter: denyLimiter{}}

	body, _ := json.Marshal(inviteRequest{Email: "new@example.com"})
	req := authedRequest(http.MethodPost, "/api/group/aB3x/invite", body)
	req.SetPathValue("code", "aB3x")
	rec := httptest.NewRecorder()
	handler.Invite(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429 got %d", rec.Code)
	}
}
