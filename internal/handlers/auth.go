package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/watchclub/backend/internal/auth"
	"github.com/watchclub/backend/internal/logging"
	"github.com/watchclub/backend/internal/mail"
	"github.com/watchclub/backend/internal/models"
	"github.com/watchclub/backend/internal/repositories"
	"github.com/watchclub/backend/internal/videos"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// StarredLister resolves a user's starred videos for the profile endpoint.
type StarredLister interface {
	Starred(ctx context.Context, userID string) ([]videos.View, error)
}

// AuthHandler implements registration, login and the one-time-token email
// flows.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Tokens   TokenIssuer
	Starred  StarredLister
	Mail     mail.Mailer
	Limiter  RateLimiter

	ClientURL string
	NowFunc   func() time.Time
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc().UTC()
	}
	return time.Now().UTC()
}

type registerRequest struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
	FullName        string `json:"fullName" validate:"required"`
}

type authResponse struct {
	envelope
	User   models.User          `json:"user"`
	Tokens models.SessionTokens `json:"tokens"`
}

// Register handles POST /api/auth/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide all required fields")
		return
	}

	if req.Password != req.ConfirmPassword {
		respondError(ctx, w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	if _, err := h.Users.FindByEmail(ctx, req.Email); err == nil {
		respondError(ctx, w, http.StatusBadRequest, "User already exists")
		return
	} else if !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("register user lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	now := h.now()
	user := models.User{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Password:  string(hashed),
		FullName:  req.FullName,
		LastLogin: now,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusBadRequest, "User already exists")
			return
		}
		logger.Error("register failed to create user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	code, err := h.Tokens.IssueVerification(ctx, user.ID)
	if err != nil {
		logger.Error("register failed to issue verification token", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.sendMail(ctx, "verification", func() error {
		return h.Mail.SendVerification(ctx, user.Email, code)
	})

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("register failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, authResponse{
		envelope: envelope{Success: true, Message: "User registered successfully"},
		User:     user,
		Tokens:   tokens,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/auth/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many attempts, try again later")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide all required fields")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		respondError(ctx, w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := h.now()
	if err := h.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		logger.Warn("failed to record last login", "error", err, "userId", user.ID)
	}
	user.LastLogin = now

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("login failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{
		envelope: envelope{Success: true, Message: "Logged in successfully"},
		User:     user,
		Tokens:   tokens,
	})
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Logout handles POST /api/auth/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req logoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.RefreshToken != "" {
		h.Sessions.Revoke(ctx, req.RefreshToken)
	}

	respondJSON(ctx, w, http.StatusOK, envelope{Success: true, Message: "Logged out successfully"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type refreshResponse struct {
	envelope
	Tokens models.SessionTokens `json:"tokens"`
}

// Refresh handles POST /api/auth/refresh.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) || errors.Is(err, auth.ErrRefreshTokenExpired) {
			respondError(ctx, w, http.StatusUnauthorized, "Unable to refresh session")
			return
		}
		logger.Error("refresh failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, refreshResponse{
		envelope: envelope{Success: true, Message: "Session refreshed"},
		Tokens:   tokens,
	})
}

type meResponse struct {
	envelope
	User    models.User   `json:"user"`
	Starred []videos.View `json:"starredVideos"`
}

// Me handles GET /api/auth/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	userID := currentUserID(ctx)

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error("me lookup failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	starred, err := h.Starred.Starred(ctx, userID)
	if err != nil {
		logger.Error("me starred lookup failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, meResponse{
		envelope: envelope{Success: true, Message: "Profile retrieved"},
		User:     user,
		Starred:  starred,
	})
}

type verifyEmailRequest struct {
	Code string `json:"code" validate:"required"`
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide the verification code")
		return
	}

	userID, err := h.Tokens.Redeem(ctx, models.TokenKindVerification, req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			respondError(ctx, w, http.StatusBadRequest, "Invalid or expired verification code")
			return
		}
		logger.Error("verify email failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.Users.MarkVerified(ctx, userID, h.now()); err != nil {
		logger.Error("mark verified failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		logger.Error("verified user lookup failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.sendMail(ctx, "welcome", func() error {
		return h.Mail.SendWelcome(ctx, user.Email, user.FullName)
	})

	respondJSON(ctx, w, http.StatusOK, struct {
		envelope
		User models.User `json:"user"`
	}{
		envelope: envelope{Success: true, Message: "Email verified successfully"},
		User:     user,
	})
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendVerification handles POST /api/auth/resend-verification-email.
func (h AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "resend-verification") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many attempts, try again later")
		return
	}

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide a valid email address")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusBadRequest, "User not found")
			return
		}
		logger.Error("resend verification lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if user.IsVerified {
		respondError(ctx, w, http.StatusBadRequest, "Email is already verified")
		return
	}

	code, err := h.Tokens.IssueVerification(ctx, user.ID)
	if err != nil {
		logger.Error("resend verification issue failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.sendMail(ctx, "verification", func() error {
		return h.Mail.SendVerification(ctx, user.Email, code)
	})

	respondJSON(ctx, w, http.StatusOK, envelope{Success: true, Message: "Verification email sent"})
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "forgot-password") {
		respondError(ctx, w, http.StatusTooManyRequests, "Too many attempts, try again later")
		return
	}

	var req emailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Please provide a valid email address")
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusBadRequest, "User not found")
			return
		}
		logger.Error("forgot password lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := h.Tokens.IssueReset(ctx, user.ID)
	if err != nil {
		logger.Error("forgot password issue failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resetURL := strings.TrimSuffix(h.ClientURL, "/") + "/reset-password/" + token
	h.sendMail(ctx, "password reset", func() error {
		return h.Mail.SendPasswordReset(ctx, user.Email, resetURL)
	})

	respondJSON(ctx, w, http.StatusOK, envelope{Success: true, Message: "Password reset link sent to your email"})
}

type resetPasswordRequest struct {
	Password        string `json:"password" validate:"required,min=8"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

// ResetPassword handles POST /api/auth/reset-password/{resetToken}.
func (h AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	resetToken := r.PathValue("resetToken")
	if resetToken == "" {
		respondError(ctx, w, http.StatusBadRequest, "Please provide all required fields")
		return
	}

	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "Password must be at least 8 characters")
		return
	}

	if req.Password != req.ConfirmPassword {
		respondError(ctx, w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	userID, err := h.Tokens.Redeem(ctx, models.TokenKindPasswordReset, resetToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			respondError(ctx, w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		}
		logger.Error("reset password redeem failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("reset password hash failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if err := h.Users.UpdatePassword(ctx, userID, string(hashed), h.now()); err != nil {
		logger.Error("reset password update failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if user, err := h.Users.FindByID(ctx, userID); err == nil {
		h.sendMail(ctx, "reset success", func() error {
			return h.Mail.SendResetSuccess(ctx, user.Email)
		})
	}

	respondJSON(ctx, w, http.StatusOK, envelope{Success: true, Message: "Password reset successful"})
}

type tokenValidResponse struct {
	envelope
	Valid bool `json:"valid"`
}

// IsTokenValid handles POST /api/auth/is-token-valid/{resetToken}.
func (h AuthHandler) IsTokenValid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resetToken := r.PathValue("resetToken")
	if resetToken == "" {
		respondError(ctx, w, http.StatusBadRequest, "Invalid token")
		return
	}

	if _, err := h.Tokens.Peek(ctx, models.TokenKindPasswordReset, resetToken); err != nil {
		if errors.Is(err, auth.ErrTokenInvalid) {
			respondError(ctx, w, http.StatusBadRequest, "Invalid or expired token")
			return
		}
		logging.FromContext(ctx).Error("token validity check failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(ctx, w, http.StatusOK, tokenValidResponse{
		envelope: envelope{Success: true, Message: "Token is valid"},
		Valid:    true,
	})
}

// sendMail runs a best-effort mail dispatch; failures are logged and never
// fail the surrounding operation.
func (h AuthHandler) sendMail(ctx context.Context, kind string, send func() error) {
	if h.Mail == nil {
		return
	}
	if err := send(); err != nil {
		logging.FromContext(ctx).Error("send "+kind+" email", "error", err)
	}
}
