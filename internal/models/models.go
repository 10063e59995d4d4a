package models

import "time"

// User represents an account within the WatchClub platform. The Videos,
// Groups and StarredVideos slices hold entity ids; together with the group
// and video rows they form the reference sets the services keep consistent.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Password      string    `json:"-"`
	FullName      string    `json:"fullName"`
	IsVerified    bool      `json:"isVerified"`
	IsAdmin       bool      `json:"isAdmin"`
	LastLogin     time.Time `json:"lastLogin"`
	Videos        []string  `json:"videos"`
	Groups        []string  `json:"groups"`
	StarredVideos []string  `json:"starredVideos"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Group is a shared namespace of videos addressed by a short join code.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Members   []string  `json:"members"`
	Videos    []string  `json:"videos"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Video is a link shared into exactly one group by exactly one owner.
type Video struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	OwnerID   string    `json:"owner"`
	GroupID   string    `json:"group"`
	SeenBy    []string  `json:"seenBy"`
	Title     string    `json:"title,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Token kinds for one-time codes delivered over email.
const (
	TokenKindVerification  = "verification"
	TokenKindPasswordReset = "password_reset"
)

// OneTimeToken is a tagged single-use code with an expiry. Redeeming a token
// consumes it.
type OneTimeToken struct {
	Value     string
	Kind      string
	UserID    string
	ExpiresAt time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Profile is the credential-free view of a user embedded in group member and
// viewer listings. Videos, when present, is scoped to a single group.
type Profile struct {
	ID       string  `json:"id"`
	Email    string  `json:"email"`
	FullName string  `json:"fullName"`
	Videos   []Video `json:"videos,omitempty"`
}
