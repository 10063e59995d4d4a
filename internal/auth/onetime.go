package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/watchclub/backend/internal/models"
)

var (
	// ErrTokenInvalid indicates a one-time token is unknown, expired or already used.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenNotFound is returned by TokenStore implementations when no
	// matching unexpired token exists.
	ErrTokenNotFound = errors.New("one-time token not found")
)

// TokenTTL bounds how long a one-time email token stays redeemable.
const TokenTTL = 10 * time.Minute

// TokenStore persists one-time tokens. Saving replaces any earlier token of
// the same kind for the same user.
type TokenStore interface {
	Save(ctx context.Context, token models.OneTimeToken) error
	FindValid(ctx context.Context, kind, value string, now time.Time) (models.OneTimeToken, error)
	Consume(ctx context.Context, value string) error
}

// OneTimeTokens issues and redeems tagged single-use tokens for the email
// verification and password-reset flows.
type OneTimeTokens struct {
	Store   TokenStore
	NowFunc func() time.Time
}

func (t *OneTimeTokens) now() time.Time {
	if t.NowFunc != nil {
		return t.NowFunc().UTC()
	}
	return time.Now().UTC()
}

// IssueVerification creates a 6-digit verification code for the user.
func (t *OneTimeTokens) IssueVerification(ctx context.Context, userID string) (string, error) {
	code, err := numericCode(6)
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	return code, t.save(ctx, models.TokenKindVerification, code, userID)
}

// IssueReset creates a long random reset token for the user.
func (t *OneTimeTokens) IssueReset(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(buf)
	return token, t.save(ctx, models.TokenKindPasswordReset, token, userID)
}

func (t *OneTimeTokens) save(ctx context.Context, kind, value, userID string) error {
	return t.Store.Save(ctx, models.OneTimeToken{
		Value:     value,
		Kind:      kind,
		UserID:    userID,
		ExpiresAt: t.now().Add(TokenTTL),
	})
}

// Peek reports the user a valid token belongs to without consuming it.
func (t *OneTimeTokens) Peek(ctx context.Context, kind, value string) (string, error) {
	token, err := t.Store.FindValid(ctx, kind, value, t.now())
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", ErrTokenInvalid
		}
		return "", fmt.Errorf("find token: %w", err)
	}
	return token.UserID, nil
}

// Redeem resolves a valid token and consumes it so it cannot be used again.
func (t *OneTimeTokens) Redeem(ctx context.Context, kind, value string) (string, error) {
	userID, err := t.Peek(ctx, kind, value)
	if err != nil {
		return "", err
	}

	if err := t.Store.Consume(ctx, value); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return "", ErrTokenInvalid
		}
		return "", fmt.Errorf("consume token: %w", err)
	}

	return userID, nil
}

// numericCode draws a zero-padded numeric code of the given length.
func numericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
