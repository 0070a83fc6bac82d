// Package worker processes queued events: magic-link email delivery and
// mirroring of transactions into the off-site backup journal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/sheets"
	"tally/internal/storage"
)

// MagicLinkSender delivers a sign-in email for a queued magic link.
type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, to, link string, expiresAt time.Time) error
}

type Worker struct {
	repo      *storage.SQLiteRepository
	backup    sheets.BackupWriter
	mail      MagicLinkSender
	batchSize int
}

// New creates a worker. backup may be nil; transaction messages are then
// acknowledged without mirroring and stay pending for a later sweep.
func New(repo *storage.SQLiteRepository, backup sheets.BackupWriter, mail MagicLinkSender, batchSize int) *Worker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Worker{repo: repo, backup: backup, mail: mail, batchSize: batchSize}
}

// Handlers wires the worker's processing functions into the message consumer.
func (w *Worker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		MagicLink:         w.handleMagicLink,
		TransactionSync:   w.handleTransactionSync,
		TransactionDelete: w.handleTransactionDelete,
	}
}

func (w *Worker) handleMagicLink(ctx context.Context, msg amqp.MagicLinkMessage) error {
	if w.mail == nil {
		slog.WarnContext(ctx, "No mailer configured, dropping magic link message", "email", msg.Email)
		return nil
	}
	if err := w.mail.SendMagicLink(ctx, msg.Email, msg.Link, msg.ExpiresAt); err != nil {
		return fmt.Errorf("send magic link to %s: %w", msg.Email, err)
	}
	return nil
}

func (w *Worker) handleTransactionSync(ctx context.Context, msg amqp.TransactionSyncMessage) error {
	if w.backup == nil {
		slog.WarnContext(ctx, "No backup target configured, skipping sync", "transaction_id", msg.ID)
		return nil
	}

	t, err := w.repo.GetTransaction(ctx, msg.ID)
	if errors.Is(err, storage.ErrNotFound) {
		// Deleted before the message was processed; the deletion marker
		// message covers the journal.
		slog.InfoContext(ctx, "Transaction gone before backup, skipping", "transaction_id", msg.ID)
		return nil
	}
	if err != nil {
		return err
	}

	return w.mirror(ctx, t)
}

func (w *Worker) handleTransactionDelete(ctx context.Context, msg amqp.TransactionDeleteMessage) error {
	if w.backup == nil {
		slog.WarnContext(ctx, "No backup target configured, skipping deletion marker", "transaction_id", msg.ID)
		return nil
	}

	t := core.Transaction{
		ID:        msg.ID,
		Owner:     msg.Owner,
		Title:     msg.Title,
		Category:  msg.Category,
		Amount:    core.Money{Cents: msg.AmountCents},
		CreatedAt: msg.CreatedAt,
	}
	if err := w.backup.AppendDeletion(ctx, t); err != nil {
		return fmt.Errorf("append deletion marker: %w", err)
	}
	return nil
}

func (w *Worker) mirror(ctx context.Context, t core.Transaction) error {
	if err := w.backup.AppendTransaction(ctx, t); err != nil {
		return fmt.Errorf("append transaction %d: %w", t.ID, err)
	}
	if err := w.repo.MarkBackedUp(ctx, t.ID); err != nil {
		return err
	}
	return nil
}

// ProcessPendingBackups mirrors one batch of transactions that never made it
// to the backup, oldest first. Returns the number of rows mirrored.
func (w *Worker) ProcessPendingBackups(ctx context.Context) (int, error) {
	if w.backup == nil {
		return 0, nil
	}

	pending, err := w.repo.PendingBackupTransactions(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, t := range pending {
		if err := w.mirror(ctx, t); err != nil {
			return done, err
		}
		done++
	}

	if done > 0 {
		slog.InfoContext(ctx, "Mirrored pending transactions", "count", done)
	}
	return done, nil
}

// RunCatchUp sweeps for unmirrored transactions on a fixed interval until the
// context is cancelled. It picks up rows queued while the broker or backup
// target was unavailable.
func (w *Worker) RunCatchUp(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessPendingBackups(ctx); err != nil {
				slog.ErrorContext(ctx, "Catch-up sweep failed", "error", err)
			}
		}
	}
}
