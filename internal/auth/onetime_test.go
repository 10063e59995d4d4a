package auth

import (
	"context"
	"testing"
	"time"

	"github.com/watchclub/backend/internal/models"
)

type memTokenStore struct {
	tokens map[string]models.OneTimeToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: make(map[string]models.OneTimeToken)}
}

func (s *memTokenStore) Save(_ context.Context, token models.OneTimeToken) error {
	for value, existing := range s.tokens {
		if existing.UserID == token.UserID && existing.Kind == token.Kind {
			delete(s.tokens, value)
		}
	}
	s.tokens[token.Value] = token
	return nil
}

func (s *memTokenStore) FindValid(_ context.Context, kind, value string, now time.Time) (models.OneTimeToken, error) {
	token, ok := s.tokens[value]
	if !ok || token.Kind != kind || !token.ExpiresAt.After(now) {
		return models.OneTimeToken{}, ErrTokenNotFound
	}
	return token, nil
}

func (s *memTokenStore) Consume(_ context.Context, value string) error {
	if _, ok := s.tokens[value]; !ok {
		return ErrTokenNotFound
	}
	delete(s.tokens, value)
	return nil
}

func TestIssueVerification(t *testing.T) {
	store := newMemTokenStore()
	tokens := &OneTimeTokens{Store: store}

	code, err := tokens.IssueVerification(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code got %q", code)
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			t.Fatalf("expected numeric code got %q", code)
		}
	}
}

func TestIssueResetReplacesEarlierToken(t *testing.T) {
	store := newMemTokenStore()
	tokens := &OneTimeTokens{Store: store}

	first, err := tokens.IssueReset(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(first) != 128 {
		t.Fatalf("expected 128 hex chars got %d", len(first))
	}

	second, err := tokens.IssueReset(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := tokens.Peek(context.Background(), models.TokenKindPasswordReset, first); err != ErrTokenInvalid {
		t.Fatalf("expected first token invalidated got %v", err)
	}
	if _, err := tokens.Peek(context.Background(), models.TokenKindPasswordReset, second); err != nil {
		t.Fatalf("expected second token valid got %v", err)
	}
}

func TestRedeemConsumesToken(t *testing.T) {
	store := newMemTokenStore()
	tokens := &OneTimeTokens{Store: store}

	code, err := tokens.IssueVerification(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := tokens.Redeem(context.Background(), models.TokenKindVerification, code)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1 got %q", userID)
	}

	if _, err := tokens.Redeem(context.Background(), models.TokenKindVerification, code); err != ErrTokenInvalid {
		t.Fatalf("expected second redeem to fail got %v", err)
	}
}

func TestRedeemRejectsWrongKind(t *testing.T) {
	store := newMemTokenStore()
	tokens := &OneTimeTokens{Store: store}

	code, err := tokens.IssueVerification(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := tokens.Redeem(context.Background(), models.TokenKindPasswordReset, code); err != ErrTokenInvalid {
		t.Fatalf("expected kind mismatch rejection got %v", err)
	}
}

func TestTokensExpire(t *testing.T) {
	store := newMemTokenStore()
	issuedAt := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	tokens := &OneTimeTokens{Store: store, NowFunc: func() time.Time { return issuedAt }}

	code, err := tokens.IssueVerification(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tokens.NowFunc = func() time.Time { return issuedAt.Add(TokenTTL + time.Second) }

	if _, err := tokens.Peek(context.Background(), models.TokenKindVerification, code); err != ErrTokenInvalid {
		t.Fatalf("expected expired token rejection got %v", err)
	}
}
