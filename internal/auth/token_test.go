package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndVerifyAccess(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("super-secret"), "gatehouse", 0)

	token, err := issuer.IssueAccess(42, 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	userID, err := issuer.VerifyAccess(token)
	if err != nil {
		t.Fatalf("VerifyAccess failed: %v", err)
	}
	if userID != 42 {
		t.Errorf("expected user 42, got %d", userID)
	}
}

func TestVerifyAccess_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("secret"), "gatehouse", 0)

	token, err := issuer.IssueAccess(1, 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	// Move the clock past expiry.
	issuer.now = func() time.Time { return time.Now().Add(16 * time.Minute) }

	if _, err := issuer.VerifyAccess(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyAccess_Leeway(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("secret"), "gatehouse", time.Minute)

	token, err := issuer.IssueAccess(1, 15*time.Minute)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	// 30s past expiry stays within the configured leeway.
	issuer.now = func() time.Time { return time.Now().Add(15*time.Minute + 30*time.Second) }

	if _, err := issuer.VerifyAccess(token); err != nil {
		t.Errorf("token within leeway should verify, got %v", err)
	}
}

func TestVerifyAccess_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := NewTokenIssuer([]byte("right-secret"), "gatehouse", 0).IssueAccess(7, time.Hour)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	other := NewTokenIssuer([]byte("wrong-secret"), "gatehouse", 0)
	if _, err := other.VerifyAccess(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyAccess_WrongIssuer(t *testing.T) {
	t.Parallel()

	token, err := NewTokenIssuer([]byte("secret"), "someone-else", 0).IssueAccess(7, time.Hour)
	if err != nil {
		t.Fatalf("IssueAccess failed: %v", err)
	}

	issuer := NewTokenIssuer([]byte("secret"), "gatehouse", 0)
	if _, err := issuer.VerifyAccess(token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for wrong issuer, got %v", err)
	}
}

func TestVerifyAccess_Malformed(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer([]byte("secret"), "gatehouse", 0)

	for _, token := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := issuer.VerifyAccess(token); err != ErrInvalidToken {
			t.Errorf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestNewRefreshToken(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := NewRefreshToken()
		if err != nil {
			t.Fatalf("NewRefreshToken failed: %v", err)
		}
		// 32 random bytes, hex encoded.
		if len(token) != 64 {
			t.Fatalf("expected 64 chars, got %d", len(token))
		}
		if seen[token] {
			t.Fatal("refresh token collision")
		}
		seen[token] = true
	}
}

func TestNewActivationToken(t *testing.T) {
	t.Parallel()

	token := NewActivationToken()
	if _, err := uuid.Parse(token); err != nil {
		t.Errorf("activation token should be a UUID, got %q: %v", token, err)
	}

	if NewActivationToken() == token {
		t.Error("activation tokens must be unique")
	}
}
