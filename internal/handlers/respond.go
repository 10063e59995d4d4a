package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/watchclub/backend/internal/logging"
)

// envelope is the failure body; success payloads embed the same two fields.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, envelope{Success: false, Message: message})
}
