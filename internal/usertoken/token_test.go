package usertoken

import (
	"testing"
	"time"
)

func newTestIssuer(t *testing.T, allowAnonymous bool) *Issuer {
	t.Helper()
	issuer, err := New(Config{Secret: "test-secret", AllowAnonymous: allowAnonymous})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestMintAndVerifyRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, false)
	token, err := issuer.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	subject, err := issuer.VerifySubject(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "user-1" {
		t.Fatalf("expected subject user-1, got %q", subject)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issuer := newTestIssuer(t, false)
	other, err := New(Config{Secret: "different-secret"})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := other.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := issuer.VerifySubject(token); err == nil {
		t.Fatalf("expected verification failure for foreign token")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer, err := New(Config{Secret: "test-secret", TTL: time.Millisecond, Leeway: time.Millisecond})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	token, err := issuer.Mint("user-1")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := issuer.VerifySubject(token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestResolveAnonymousFallback(t *testing.T) {
	issuer := newTestIssuer(t, true)

	id, err := issuer.Resolve("")
	if err != nil || id != AnonymousUserID {
		t.Fatalf("expected anonymous fallback for missing token, got id=%q err=%v", id, err)
	}
	id, err = issuer.Resolve("garbage.token.value")
	if err != nil || id != AnonymousUserID {
		t.Fatalf("expected anonymous fallback for invalid token, got id=%q err=%v", id, err)
	}

	token, err := issuer.Mint("user-7")
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	id, err = issuer.Resolve(token)
	if err != nil || id != "user-7" {
		t.Fatalf("expected resolved subject, got id=%q err=%v", id, err)
	}
}

func TestResolveRejectsWhenFallbackDisabled(t *testing.T) {
	issuer := newTestIssuer(t, false)
	if _, err := issuer.Resolve(""); err == nil {
		t.Fatalf("expected error for missing token with fallback disabled")
	}
	if _, err := issuer.Resolve("garbage"); err == nil {
		t.Fatalf("expected error for invalid token with fallback disabled")
	}
}
