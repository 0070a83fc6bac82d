// Package services holds the application use cases sitting between the
// HTTP handlers and the storage / messaging layers.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"tally/internal/core"
	"tally/internal/storage"
)

// TransactionEvents is the subset of the message client the transaction
// service publishes through.
type TransactionEvents interface {
	PublishTransactionSync(ctx context.Context, id int64) error
	PublishTransactionDelete(ctx context.Context, t core.Transaction) error
}

type TransactionService struct {
	repo   *storage.SQLiteRepository
	events TransactionEvents
}

// NewTransactionService creates the service. events may be nil when no
// message broker is configured; transactions then stay local only.
func NewTransactionService(repo *storage.SQLiteRepository, events TransactionEvents) *TransactionService {
	return &TransactionService{repo: repo, events: events}
}

// Create validates and persists a new transaction for owner, then queues it
// for backup mirroring. amount is the user-entered decimal string.
func (s *TransactionService) Create(ctx context.Context, owner int64, title, category, amount string) (core.Transaction, error) {
	cents, err := core.ParseAmountToCents(amount)
	if err != nil {
		return core.Transaction{}, err
	}

	t := core.Transaction{
		Owner:    owner,
		Title:    title,
		Category: category,
		Amount:   core.Money{Cents: cents},
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.repo.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, err
	}

	// Queue for backup mirroring. Don't fail the request on broker trouble;
	// the transaction is saved locally and the catch-up sweep picks it up.
	if s.events != nil {
		if err := s.events.PublishTransactionSync(ctx, saved.ID); err != nil {
			slog.WarnContext(ctx, "Failed to queue transaction for backup",
				"transaction_id", saved.ID, "error", err)
		}
	}

	return saved, nil
}

// List returns the owner's transactions, newest first.
func (s *TransactionService) List(ctx context.Context, owner int64) ([]core.Transaction, error) {
	return s.repo.ListTransactions(ctx, owner)
}

// Delete removes a transaction owned by owner and queues a deletion marker
// for the backup journal. Returns storage.ErrNotFound when the transaction
// does not exist or belongs to someone else.
func (s *TransactionService) Delete(ctx context.Context, id, owner int64) error {
	// Read the row first so the deletion marker can carry its data.
	t, err := s.repo.GetOwnedTransaction(ctx, id, owner)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteTransaction(ctx, id, owner); err != nil {
		return err
	}

	if s.events != nil {
		if err := s.events.PublishTransactionDelete(ctx, t); err != nil {
			slog.WarnContext(ctx, "Failed to queue deletion marker",
				"transaction_id", id, "error", err)
		}
	}

	return nil
}

// Summarize aggregates the owner's full history into a financial summary.
func (s *TransactionService) Summarize(ctx context.Context, owner int64) (core.Summary, error) {
	ts, err := s.repo.ListTransactions(ctx, owner)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list transactions for summary: %w", err)
	}
	return core.Summarize(ts), nil
}
