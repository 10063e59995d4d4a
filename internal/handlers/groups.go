package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/watchclub/backend/internal/groups"
	"github.com/watchclub/backend/internal/logging"
	"github.com/watchclub/backend/internal/models"
)

// GroupHandler exposes group creation and membership endpoints. All routes
// expect RequireUser and RequireVerified to have run first.
type GroupHandler struct {
	Groups  GroupService
	Limiter RateLimiter
}

type createGroupRequest struct {
	Name string `json:"name" validate:"required"`
}

type groupResponse struct {
	envelope
	Group models.Group `json:"group"`
}

// Create handles POST /api/group.
func (h GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide a group name")
		return
	}

	group, err := h.Groups.Create(ctx, currentUserID(ctx), req.Name)
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrInvalidName):
			respondError(ctx, w, http.StatusBadRequest, "Group name must be between 3 and 32 characters")
		case errors.Is(err, groups.ErrUserNotFound):
			respondError(ctx, w, http.StatusNotFound, "User not found")
		default:
			logger.Error("create group failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, groupResponse{
		envelope: envelope{Success: true, Message: "Group created successfully"},
		Group:    group,
	})
}

type groupViewResponse struct {
	envelope
	Group groups.View `json:"group"`
}

// Get handles GET /api/group/{code}. Reading a group requires membership.
func (h GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	code := r.PathValue("code")
	view, err := h.Groups.Get(ctx, currentUserID(ctx), code)
	if err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Group not found")
			return
		}
		if errors.Is(err, groups.ErrNotMember) {
			respondError(ctx, w, http.StatusForbidden, "You are not a member of this group")
			return
		}
		logging.FromContext(ctx).Error("get group failed", "error", err, "code", code)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, groupViewResponse{
		envelope: envelope{Success: true, Message: "Group retrieved"},
		Group:    view,
	})
}

type groupListResponse struct {
	envelope
	Groups []models.Group `json:"groups"`
}

// List handles GET /api/group and returns every group the caller belongs to.
func (h GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := h.Groups.ListForUser(ctx, currentUserID(ctx))
	if err != nil {
		if errors.Is(err, groups.ErrUserNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		logging.FromContext(ctx).Error("list groups failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, groupListResponse{
		envelope: envelope{Success: true, Message: "Groups retrieved"},
		Groups:   list,
	})
}

type joinGroupRequest struct {
	Code string `json:"code" validate:"required"`
}

// Join handles POST /api/group/{id}/join. The join code travels in the body.
func (h GroupHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req joinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Code = strings.TrimSpace(req.Code)
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide a join code")
		return
	}

	group, err := h.Groups.Join(ctx, currentUserID(ctx), req.Code)
	if err != nil {
		switch {
		case errors.Is(err, groups.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "Group not found")
		case errors.Is(err, groups.ErrAlreadyMember):
			respondError(ctx, w, http.StatusBadRequest, "You are already a member of this group")
		case errors.Is(err, groups.ErrUserNotFound):
			respondError(ctx, w, http.StatusNotFound, "User not found")
		default:
			logging.FromContext(ctx).Error("join group failed", "error", err, "code", req.Code)
			respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, groupResponse{
		envelope: envelope{Success: true, Message: "Joined group successfully"},
		Group:    group,
	})
}

// Leave handles POST /api/group/{id}/leave.
func (h GroupHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID := r.PathValue("id")
	if _, err := uuid.Parse(groupID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid group id")
		return
	}

	if err := h.Groups.Leave(ctx, currentUserID(ctx), groupID); err != nil {
		if errors.Is(err, groups.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "Group not found")
			return
		}
		logging.FromContext(ctx).Error("leave group failed", "error", err, "groupId", groupID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, envelope{Success: true, Message: "Left group successfully"})
}

type inviteRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// Invite handles POST /api/group/{code}/invite.
func (h GroupHandler) Invite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !allowRequest(h.Limiter, r, "group-invite") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many attempts, try again later")
		return
	}

	var req inviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide a valid email address")
		return
	}

	code := r.PathValue("code")
	if err := h.Groups.Invite(ctx, currentUserID(ctx), code, req.Email); err != nil {
		switch {
		case errors.Is(err, groups.ErrNotFound):
			respondError(ctx, w, http.StatusNotFound, "Group not found")
		case errors.Is(err, groups.ErrAlreadyMember):
			respondError(ctx, w, http.StatusBadRequest, "User is already a member of this group")
		case errors.Is(err, groups.ErrUserNotFound):
			respondError(ctx, w, http.StatusNotFound, "User not found")
		default:
			logging.FromContext(ctx).Error("invite failed", "error", err, "code", code)
			respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, envelope{Success: true, Message: "Invitation sent"})
}
