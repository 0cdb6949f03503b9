package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"reportforms/internal/storage/storagetest"
)

func TestIssueValidateRevoke(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db, time.Hour)
	ctx := context.Background()

	sess, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Fatalf("unexpected token %q", sess.Token)
	}
	if !sess.ExpiresAt.After(sess.CreatedAt) {
		t.Fatalf("expiry not after creation")
	}
	if err := svc.Validate(ctx, sess.Token); err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if err := svc.Revoke(ctx, sess.Token); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if err := svc.Validate(ctx, sess.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after revoke, got %v", err)
	}
	if err := svc.Validate(ctx, ""); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
}

func TestValidateExpiredSession(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db, 10*time.Millisecond)
	ctx := context.Background()

	sess, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := svc.Validate(ctx, sess.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM form_sessions WHERE token = ?`, sess.Token).Scan(&count); err != nil {
		t.Fatalf("query sessions: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired session not purged")
	}
}

func TestPurgeExpired(t *testing.T) {
	db := storagetest.Open(t)
	svc := NewService(db, time.Hour)
	ctx := context.Background()

	live, err := svc.Issue(ctx)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	tokens, err := svc.PurgeExpired(ctx, time.Now().Add(2*time.Hour))
	if err != nil {
		t.Fatalf("PurgeExpired error: %v", err)
	}
	if len(tokens) != 1 || tokens[0] != live.Token {
		t.Fatalf("unexpected purged tokens %v", tokens)
	}
	tokens, err = svc.PurgeExpired(ctx, time.Now())
	if err != nil || len(tokens) != 0 {
		t.Fatalf("expected nothing left, got %v %v", tokens, err)
	}
}
