package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/watchclub/backend/internal/logging"
	"github.com/watchclub/backend/internal/models"
	"github.com/watchclub/backend/internal/videos"
)

// VideoHandler exposes the video lifecycle endpoints. All routes expect
// RequireUser and RequireVerified to have run first.
type VideoHandler struct {
	Videos VideoService
}

type addVideoRequest struct {
	URL     string `json:"url" validate:"required,url"`
	GroupID string `json:"groupId" validate:"required,uuid"`
}

type videoResponse struct {
	envelope
	Video models.Video `json:"video"`
}

// Add handles POST /api/video/add.
func (h VideoHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req addVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide a valid video URL and group id")
		return
	}

	video, err := h.Videos.Add(ctx, currentUserID(ctx), req.GroupID, req.URL)
	if err != nil {
		h.respondVideoError(ctx, w, err, "add video failed")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, videoResponse{
		envelope: envelope{Success: true, Message: "Video added successfully"},
		Video:    video,
	})
}

type videoDetailResponse struct {
	envelope
	Video models.Video   `json:"video"`
	Owner models.Profile `json:"owner"`
}

// Get handles GET /api/video?videoId=.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.URL.Query().Get("videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid video id")
		return
	}

	video, owner, err := h.Videos.Get(ctx, currentUserID(ctx), videoID)
	if err != nil {
		h.respondVideoError(ctx, w, err, "get video failed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, videoDetailResponse{
		envelope: envelope{Success: true, Message: "Video retrieved"},
		Video:    video,
		Owner:    owner,
	})
}

type updateVideoRequest struct {
	UpdatedURL string `json:"updatedUrl" validate:"required,url"`
}

// Update handles PUT /api/video/update/{videoId}.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.PathValue("videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid video id")
		return
	}

	var req updateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.UpdatedURL = strings.TrimSpace(req.UpdatedURL)
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide a valid video URL")
		return
	}

	video, err := h.Videos.Update(ctx, currentUserID(ctx), videoID, req.UpdatedURL)
	if err != nil {
		h.respondVideoError(ctx, w, err, "update video failed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, videoResponse{
		envelope: envelope{Success: true, Message: "Video updated successfully"},
		Video:    video,
	})
}

// Delete handles DELETE /api/video/delete/{videoId}.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.PathValue("videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid video id")
		return
	}

	if err := h.Videos.Delete(ctx, currentUserID(ctx), videoID); err != nil {
		h.respondVideoError(ctx, w, err, "delete video failed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, envelope{Success: true, Message: "Video deleted successfully"})
}

type markSeenRequest struct {
	VideoID string `json:"videoId" validate:"required,uuid"`
}

type viewersResponse struct {
	envelope
	Viewers []models.Profile `json:"videoViewers"`
}

// MarkSeen handles PUT /api/video/seen.
func (h VideoHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req markSeenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid video id")
		return
	}

	viewers, err := h.Videos.MarkSeen(ctx, currentUserID(ctx), req.VideoID)
	if err != nil {
		h.respondVideoError(ctx, w, err, "mark seen failed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, viewersResponse{
		envelope: envelope{Success: true, Message: "Video marked as seen"},
		Viewers:  viewers,
	})
}

type starredResponse struct {
	envelope
	Starred []videos.View `json:"starredVideos"`
}

// ToggleStar handles PUT /api/video/star/{videoId}.
func (h VideoHandler) ToggleStar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videoID := r.PathValue("videoId")
	if _, err := uuid.Parse(videoID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid video id")
		return
	}

	starred, err := h.Videos.ToggleStar(ctx, currentUserID(ctx), videoID)
	if err != nil {
		h.respondVideoError(ctx, w, err, "toggle star failed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, starredResponse{
		envelope: envelope{Success: true, Message: "Starred videos updated"},
		Starred:  starred,
	})
}

// Starred handles GET /api/video/starred.
func (h VideoHandler) Starred(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	starred, err := h.Videos.Starred(ctx, currentUserID(ctx))
	if err != nil {
		h.respondVideoError(ctx, w, err, "list starred failed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, starredResponse{
		envelope: envelope{Success: true, Message: "Starred videos retrieved"},
		Starred:  starred,
	})
}

type userVideosResponse struct {
	envelope
	UserVideos []videos.View `json:"userVideos"`
	// Starred is the requester's resolved starred list, returned alongside
	// the target's videos so the client can mark stars in one round trip.
	Starred []videos.View `json:"starredVideos"`
}

// ListForUser handles GET /api/video/user?selectedUserId=&groupId=.
func (h VideoHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetID := r.URL.Query().Get("selectedUserId")
	groupID := r.URL.Query().Get("groupId")
	if _, err := uuid.Parse(targetID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if _, err := uuid.Parse(groupID); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid group id")
		return
	}

	target, starred, err := h.Videos.ListForUserPerGroup(ctx, currentUserID(ctx), targetID, groupID)
	if err != nil {
		h.respondVideoError(ctx, w, err, "list user videos failed")
		return
	}

	respondJSON(ctx, w, http.StatusOK, userVideosResponse{
		envelope:   envelope{Success: true, Message: "Videos retrieved"},
		UserVideos: target,
		Starred:    starred,
	})
}

func (h VideoHandler) respondVideoError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, videos.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "Video not found")
	case errors.Is(err, videos.ErrNotMember):
		respondError(ctx, w, http.StatusForbidden, "You are not a member of this group")
	case errors.Is(err, videos.ErrNotOwner):
		respondError(ctx, w, http.StatusForbidden, "You do not own this video")
	case errors.Is(err, videos.ErrInvalidURL):
		respondError(ctx, w, http.StatusBadRequest, "Please provide a valid video URL")
	default:
		logging.FromContext(ctx).Error(logMsg, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
	}
}
