package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/watchclub/backend/internal/logging"
	"github.com/watchclub/backend/internal/repositories"
)

type ctxKey string

const userIDKey ctxKey = "userID"

// currentUserID returns the authenticated user id stored by RequireUser.
func currentUserID(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// TokenVerifier resolves a bearer access token to a user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// resolved user id on the request context.
func RequireUser(sessions TokenVerifier, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondError(ctx, w, http.StatusUnauthorized, "You need to be logged in to access this route")
			return
		}

		userID, err := sessions.Verify(strings.TrimSpace(token))
		if err != nil {
			respondError(ctx, w, http.StatusUnauthorized, "You need to be logged in to access this route")
			return
		}

		next(w, r.WithContext(context.WithValue(ctx, userIDKey, userID)))
	}
}

// RequireVerified rejects authenticated users who have not verified their
// email address yet. Must run after RequireUser.
func RequireVerified(users UserStore, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		user, err := users.FindByID(ctx, currentUserID(ctx))
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				respondError(ctx, w, http.StatusNotFound, "User not found")
				return
			}
			logging.FromContext(ctx).Error("verification lookup failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
			return
		}

		if !user.IsVerified {
			respondError(ctx, w, http.StatusForbidden, "User is not verified")
			return
		}

		next(w, r)
	}
}
