package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)

	token, err := issuer.Issue(42, "user@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	session, err := issuer.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.UserID != 42 || session.Email != "user@example.com" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	issuer := NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)

	if _, err := issuer.Verify("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	// Token signed with a different secret
	other := NewIssuer("ffffffffffffffffffffffffffffffff", time.Hour)
	token, err := other.Issue(1, "a@b.co")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("0123456789abcdef0123456789abcdef", -time.Minute)
	token, err := issuer.Issue(1, "a@b.co")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Verify(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("expected match, got %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"user@example.com", true},
		{"first.last+tag@sub.example.co", true},
		{"", false},
		{"no-at-sign", false},
		{"user@", false},
		{"@example.com", false},
	}
	for _, tc := range cases {
		if got := ValidateEmail(tc.in); got != tc.ok {
			t.Fatalf("%q: expected %v, got %v", tc.in, tc.ok, got)
		}
	}
}

func TestMagicToken(t *testing.T) {
	raw, hash, err := NewMagicToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if len(raw) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(raw))
	}
	if HashMagicToken(raw) != hash {
		t.Fatal("hash mismatch")
	}

	raw2, _, err := NewMagicToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if raw == raw2 {
		t.Fatal("tokens must be unique")
	}
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer("0123456789abcdef0123456789abcdef", time.Hour)

	var gotSession Session
	handler := Middleware(issuer, func(w http.ResponseWriter, r *http.Request) {
		gotSession, _ = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	// No token
	rr := httptest.NewRecorder()
	handler(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	// Bearer header
	token, _ := issuer.Issue(7, "u@e.co")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with bearer token, got %d", rr.Code)
	}
	if gotSession.UserID != 7 {
		t.Fatalf("expected user 7 in context, got %+v", gotSession)
	}

	// Cookie
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rr = httptest.NewRecorder()
	handler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with cookie, got %d", rr.Code)
	}
}

func TestSessionFromContextMissing(t *testing.T) {
	if _, ok := SessionFromContext(context.Background()); ok {
		t.Fatal("expected no session in empty context")
	}
}
