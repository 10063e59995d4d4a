package app

import (
	"time"

	"github.com/watchclub/backend/internal/auth"
	"github.com/watchclub/backend/internal/config"
	"github.com/watchclub/backend/internal/db"
	"github.com/watchclub/backend/internal/groups"
	"github.com/watchclub/backend/internal/handlers"
	"github.com/watchclub/backend/internal/mail"
	"github.com/watchclub/backend/internal/middleware"
	"github.com/watchclub/backend/internal/repositories"
	"github.com/watchclub/backend/internal/videos"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(pool db.Pool, cfg config.Config) handlers.Dependencies {
	users := repositories.NewPostgresUserRepository(pool)
	groupRepo := repositories.NewPostgresGroupRepository(pool)
	videoRepo := repositories.NewPostgresVideoRepository(pool)
	sessionStore := repositories.NewPostgresSessionStore(pool)
	tokenRepo := repositories.NewPostgresTokenRepository(pool)

	var mailer mail.Mailer = mail.NopMailer{}
	if cfg.SMTPAddr != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPass, cfg.MailSender)
	}

	oembed := videos.NewOEmbedProvider(cfg.OEmbedEndpoint, cfg.MetadataTimeout)
	metadataProvider := videos.NewCachingProvider(oembed, cfg.MetadataCacheTTL)

	groupService := &groups.Service{
		Users:  users,
		Groups: groupRepo,
		Videos: videoRepo,
		Mail:   mailer,
	}

	videoService := &videos.Service{
		Users:    users,
		Groups:   groupRepo,
		Videos:   videoRepo,
		Metadata: metadataProvider,
	}

	return handlers.Dependencies{
		Users:     users,
		Sessions:  auth.NewManager(cfg.AccessTTL, cfg.RefreshTTL, cfg.JWTSecret, sessionStore),
		Tokens:    &auth.OneTimeTokens{Store: tokenRepo},
		Groups:    groupService,
		Videos:    videoService,
		Mail:      mailer,
		Limiter:   middleware.NewIPRateLimiter(5, time.Minute, 5, 10*time.Minute),
		ClientURL: cfg.ClientURL,
	}
}
