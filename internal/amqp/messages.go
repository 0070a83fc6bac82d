package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message kinds routed through the single events queue.
const (
	KindMagicLink         = "magic_link"
	KindTransactionSync   = "transaction_sync"
	KindTransactionDelete = "transaction_delete"
)

// Envelope wraps every queued message with its kind so one consumer can
// dispatch to the right handler.
type Envelope struct {
	Kind      string          `json:"kind"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MagicLinkMessage asks the worker to deliver a sign-in link by email.
// The raw token never touches the database; it lives only in this message
// and in the recipient's inbox.
type MagicLinkMessage struct {
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TransactionSyncMessage asks the worker to mirror a transaction to the
// off-site backup. Only the ID travels; the worker reads the full row.
type TransactionSyncMessage struct {
	ID int64 `json:"id"`
}

// TransactionDeleteMessage records a deletion in the backup journal. The
// row data travels along because the local row is already gone.
type TransactionDeleteMessage struct {
	ID          int64     `json:"id"`
	Owner       int64     `json:"owner"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	AmountCents int64     `json:"amount_cents"`
	CreatedAt   time.Time `json:"created_at"`
}

func newEnvelope(kind string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   body,
	})
}

// DecodeEnvelope parses a queued message body.
func DecodeEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("envelope missing kind")
	}
	return env, nil
}
