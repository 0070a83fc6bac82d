// Package sheets defines the port for the off-site transaction backup.
package sheets

import (
	"context"

	"tally/internal/core"
)

// BackupWriter mirrors transactions into an append-only backup journal.
type BackupWriter interface {
	// AppendTransaction appends one transaction row to the journal.
	AppendTransaction(ctx context.Context, t core.Transaction) error

	// AppendDeletion appends a deletion marker for a removed transaction.
	AppendDeletion(ctx context.Context, t core.Transaction) error
}
