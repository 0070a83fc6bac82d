package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendMagicLink(t *testing.T) {
	var got message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := New(srv.URL, "tally@example.com")
	err := m.SendMagicLink(context.Background(), "u@example.com", "http://localhost/auth/magic?token=abc", time.Now().Add(15*time.Minute))
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if got.To != "u@example.com" || got.From != "tally@example.com" {
		t.Fatalf("unexpected addresses: %+v", got)
	}
	if !strings.Contains(got.Text, "token=abc") {
		t.Fatalf("mail text missing link: %q", got.Text)
	}
}

func TestSendMagicLinkGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := New(srv.URL, "tally@example.com")
	err := m.SendMagicLink(context.Background(), "u@example.com", "link", time.Now())
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Fatalf("expected gateway status error, got %v", err)
	}
}

func TestSendMagicLinkWithoutGateway(t *testing.T) {
	m := New("", "tally@example.com")
	if err := m.SendMagicLink(context.Background(), "u@example.com", "link", time.Now()); err != nil {
		t.Fatalf("expected nil error in dev mode, got %v", err)
	}
}
