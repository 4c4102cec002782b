package auth

import (
	"errors"
	"testing"
	"time"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Issue("a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	identity, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if identity != "a@example.com" {
		t.Errorf("expected identity a@example.com, got %q", identity)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Issue("a@example.com", -time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = v.Verify(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyMalformedToken(t *testing.T) {
	v := NewVerifier("test-secret")

	_, err := v.Verify("not.a.jwt")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifySignatureMismatch(t *testing.T) {
	issuer := NewVerifier("secret-one")
	verifier := NewVerifier("secret-two")

	token, err := issuer.Issue("a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = verifier.Verify(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for wrong key, got %v", err)
	}
}

func TestVerifyMissingIdentityClaim(t *testing.T) {
	v := NewVerifier("test-secret")

	token, err := v.Issue("", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	_, err = v.Verify(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for empty identity, got %v", err)
	}
}
