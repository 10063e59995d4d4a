package handlers

import (
	"net/http"

	"github.com/watchclub/backend/internal/mail"
)

// Dependencies bundles everything the HTTP routes need.
type Dependencies struct {
	Users    UserStore
	Sessions SessionManager
	Tokens   TokenIssuer
	Groups   GroupService
	Videos   VideoService
	Mail     mail.Mailer
	Limiter  RateLimiter

	ClientURL string
}

// RegisterRoutes wires every endpoint onto the mux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	authHandler := AuthHandler{
		Users:     deps.Users,
		Sessions:  deps.Sessions,
		Tokens:    deps.Tokens,
		Starred:   deps.Videos,
		Mail:      deps.Mail,
		Limiter:   deps.Limiter,
		ClientURL: deps.ClientURL,
	}
	groupHandler := GroupHandler{Groups: deps.Groups, Limiter: deps.Limiter}
	videoHandler := VideoHandler{Videos: deps.Videos}

	mux.HandleFunc("GET /healthz", HealthHandler{}.Handle)

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("GET /api/auth/me", RequireUser(deps.Sessions, authHandler.Me))
	mux.HandleFunc("POST /api/auth/verify-email", authHandler.VerifyEmail)
	mux.HandleFunc("POST /api/auth/resend-verification-email", authHandler.ResendVerification)
	mux.HandleFunc("POST /api/auth/forgot-password", authHandler.ForgotPassword)
	mux.HandleFunc("POST /api/auth/reset-password/{resetToken}", authHandler.ResetPassword)
	mux.HandleFunc("POST /api/auth/is-token-valid/{resetToken}", authHandler.IsTokenValid)

	member := func(next http.HandlerFunc) http.HandlerFunc {
		return RequireUser(deps.Sessions, RequireVerified(deps.Users, next))
	}

	mux.HandleFunc("POST /api/group", member(groupHandler.Create))
	mux.HandleFunc("GET /api/group", member(groupHandler.List))
	mux.HandleFunc("GET /api/group/{code}", member(groupHandler.Get))
	mux.HandleFunc("POST /api/group/{id}/join", member(groupHandler.Join))
	mux.HandleFunc("POST /api/group/{id}/leave", member(groupHandler.Leave))
	mux.HandleFunc("POST /api/group/{code}/invite", member(groupHandler.Invite))

	mux.HandleFunc("POST /api/video/add", member(videoHandler.Add))
	mux.HandleFunc("GET /api/video", member(videoHandler.Get))
	mux.HandleFunc("PUT /api/video/update/{videoId}", member(videoHandler.Update))
	mux.HandleFunc("DELETE /api/video/delete/{videoId}", member(videoHandler.Delete))
	mux.HandleFunc("PUT /api/video/seen", member(videoHandler.MarkSeen))
	mux.HandleFunc("PUT /api/video/star/{videoId}", member(videoHandler.ToggleStar))
	mux.HandleFunc("GET /api/video/starred", member(videoHandler.Starred))
	mux.HandleFunc("GET /api/video/user", member(videoHandler.ListForUser))
}
