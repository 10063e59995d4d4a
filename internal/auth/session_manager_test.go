package auth

import (
	"context"
	"testing"
	"time"
)

func newTestManager(accessTTL, refreshTTL time.Duration) (*Manager, *InMemorySessionStore) {
	store := NewInMemorySessionStore()
	return NewManager(accessTTL, refreshTTL, "test-secret", store), store
}

func TestManagerIssueAndVerify(t *testing.T) {
	manager, store := newTestManager(time.Minute, time.Hour)

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", tokens)
	}
	if !store.Has(tokens.RefreshToken) {
		t.Fatal("expected refresh token to be persisted")
	}

	userID, err := manager.Verify(tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-1" {
		t.Fatalf("expected user-1 got %q", userID)
	}
}

func TestManagerVerifyFailures(t *testing.T) {
	manager, _ := newTestManager(time.Minute, time.Hour)

	if _, err := manager.Verify("not-a-jwt"); err != ErrInvalidAccessToken {
		t.Fatalf("expected invalid access token got %v", err)
	}

	other := NewManager(time.Minute, time.Hour, "other-secret", NewInMemorySessionStore())
	tokens, err := other.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := manager.Verify(tokens.AccessToken); err != ErrInvalidAccessToken {
		t.Fatalf("expected rejection of foreign signature got %v", err)
	}

	expired, _ := newTestManager(-time.Minute, time.Hour)
	tokens, err = expired.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := expired.Verify(tokens.AccessToken); err != ErrInvalidAccessToken {
		t.Fatalf("expected expired token rejection got %v", err)
	}
}

func TestManagerRefresh(t *testing.T) {
	manager, store := newTestManager(time.Minute, time.Hour)

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected new refresh token")
	}
	if store.Has(tokens.RefreshToken) {
		t.Fatal("old token should have been removed")
	}
}

func TestManagerRefreshFailures(t *testing.T) {
	manager, _ := newTestManager(time.Minute, time.Millisecond)

	if _, err := manager.Refresh(context.Background(), ""); err != ErrSessionNotFound {
		t.Fatalf("expected session not found got %v", err)
	}

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	time.Sleep(2 * time.Millisecond)

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); err != ErrRefreshTokenExpired {
		t.Fatalf("expected refresh expired got %v", err)
	}
}

func TestManagerRevoke(t *testing.T) {
	manager, store := newTestManager(time.Minute, time.Hour)

	tokens, err := manager.Issue(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	manager.Revoke(context.Background(), tokens.RefreshToken)

	if store.Has(tokens.RefreshToken) {
		t.Fatal("expected revoked token to be removed")
	}
	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); err != ErrSessionNotFound {
		t.Fatalf("expected session not found got %v", err)
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager, _ := newTestManager(time.Minute, time.Hour)
	if _, err := manager.Issue(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
}
