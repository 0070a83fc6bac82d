package amqp

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	body, err := newEnvelope(KindMagicLink, MagicLinkMessage{
		Email:     "u@example.com",
		Link:      "http://localhost:8081/auth/magic?token=abc",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Kind != KindMagicLink {
		t.Fatalf("expected kind %q, got %q", KindMagicLink, env.Kind)
	}

	var msg MagicLinkMessage
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if msg.Email != "u@example.com" {
		t.Fatalf("unexpected payload: %+v", msg)
	}
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	if _, err := DecodeEnvelope([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if _, err := DecodeEnvelope([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for missing kind")
	}
}

func TestDispatchUnknownKindIsPermanent(t *testing.T) {
	c := &Client{}
	body, err := newEnvelope("bogus", struct{}{})
	if err != nil {
		t.Fatalf("new envelope: %v", err)
	}
	err = c.dispatch(context.Background(), body, Handlers{})
	if err == nil || !isPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
}
