package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tally/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible
	// to the requesting owner.
	ErrNotFound = errors.New("not found")

	// ErrEmailTaken is returned when registering an email that already has
	// a password set.
	ErrEmailTaken = errors.New("email already registered")

	// ErrTokenInvalid is returned for unknown, expired or already-consumed
	// magic-link tokens.
	ErrTokenInvalid = errors.New("magic link token invalid")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser registers a new email/password user.
func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	u, err := r.queries.CreateUser(ctx, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// GetUserByEmail looks up a user; returns ErrNotFound for unknown addresses.
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID looks up a user by primary key.
func (r *SQLiteRepository) GetUserByID(ctx context.Context, id int64) (User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// SetUserPassword attaches a password hash to an existing account. Used when
// a passwordless magic-link user later signs up with a password.
func (r *SQLiteRepository) SetUserPassword(ctx context.Context, id int64, passwordHash string) error {
	if err := r.queries.SetUserPassword(ctx, id, passwordHash); err != nil {
		return fmt.Errorf("set user password: %w", err)
	}
	return nil
}

// GetOrCreateUserByEmail returns the user for an email address, creating a
// passwordless account on first magic-link sign-in (the original flow signs
// up unknown addresses implicitly).
func (r *SQLiteRepository) GetOrCreateUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := r.queries.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("get user by email: %w", err)
	}

	u, err = r.queries.CreateUser(ctx, email, "")
	if err != nil {
		// Lost a race with a concurrent sign-in for the same address
		if isUniqueViolation(err) {
			return r.GetUserByEmail(ctx, email)
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "Passwordless user created", "user_id", u.ID, "email", u.Email)
	return u, nil
}

// CreateMagicLinkToken stores the hash of a magic-link token with its expiry.
func (r *SQLiteRepository) CreateMagicLinkToken(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	if err := r.queries.CreateMagicLinkToken(ctx, tokenHash, userID, expiresAt); err != nil {
		return fmt.Errorf("create magic link token: %w", err)
	}
	return nil
}

// ConsumeMagicLinkToken validates a token hash and marks it used. Each token
// works exactly once and only before its expiry.
func (r *SQLiteRepository) ConsumeMagicLinkToken(ctx context.Context, tokenHash string) (int64, error) {
	t, err := r.queries.GetMagicLinkToken(ctx, tokenHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrTokenInvalid
	}
	if err != nil {
		return 0, fmt.Errorf("get magic link token: %w", err)
	}

	if t.ConsumedAt.Valid || time.Now().After(t.ExpiresAt) {
		return 0, ErrTokenInvalid
	}

	affected, err := r.queries.ConsumeMagicLinkToken(ctx, tokenHash, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("consume magic link token: %w", err)
	}
	if affected == 0 {
		// Consumed concurrently between the read and the update
		return 0, ErrTokenInvalid
	}

	return t.UserID, nil
}

// PruneExpiredMagicLinkTokens removes tokens past their expiry.
func (r *SQLiteRepository) PruneExpiredMagicLinkTokens(ctx context.Context) (int64, error) {
	n, err := r.queries.DeleteExpiredMagicLinkTokens(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("prune magic link tokens: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Pruned expired magic link tokens", "count", n)
	}
	return n, nil
}

// CreateTransaction persists a new transaction for its owner and returns it
// with the store-assigned id and creation timestamp.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	row, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		OwnerID:     t.Owner,
		Title:       strings.TrimSpace(t.Title),
		Category:    strings.TrimSpace(t.Category),
		AmountCents: t.Amount.Cents,
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"transaction_id", row.ID,
		"user_id", row.OwnerID,
		"amount_cents", row.AmountCents,
		"category", row.Category)

	return toCoreTransaction(row), nil
}

// ListTransactions returns the owner's transactions, newest first.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID int64) ([]core.Transaction, error) {
	rows, err := r.queries.ListTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	items := make([]core.Transaction, len(rows))
	for i, row := range rows {
		items[i] = toCoreTransaction(row)
	}
	return items, nil
}

// GetTransaction fetches a single transaction by id regardless of owner.
// Used by the backup worker; handler paths go through ListTransactions.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return toCoreTransaction(row), nil
}

// GetOwnedTransaction fetches a transaction only if it belongs to ownerID.
func (r *SQLiteRepository) GetOwnedTransaction(ctx context.Context, id, ownerID int64) (core.Transaction, error) {
	row, err := r.queries.GetOwnedTransaction(ctx, id, ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get owned transaction: %w", err)
	}
	return toCoreTransaction(row), nil
}

// DeleteTransaction removes a transaction scoped by both id and owner, so
// one user can never delete another user's record.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id, ownerID int64) error {
	affected, err := r.queries.DeleteTransactionByOwner(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id, "user_id", ownerID)
	return nil
}

// PendingBackupTransactions returns transactions not yet mirrored to the
// off-site backup, oldest first.
func (r *SQLiteRepository) PendingBackupTransactions(ctx context.Context, limit int) ([]core.Transaction, error) {
	rows, err := r.queries.GetPendingBackupTransactions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("get pending backup transactions: %w", err)
	}

	items := make([]core.Transaction, len(rows))
	for i, row := range rows {
		items[i] = toCoreTransaction(row)
	}
	return items, nil
}

// MarkBackedUp records that a transaction reached the backup target.
func (r *SQLiteRepository) MarkBackedUp(ctx context.Context, id int64) error {
	if err := r.queries.MarkTransactionBackedUp(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark transaction backed up: %w", err)
	}
	return nil
}

func toCoreTransaction(row Transaction) core.Transaction {
	return core.Transaction{
		ID:        row.ID,
		Owner:     row.OwnerID,
		Title:     row.Title,
		Category:  row.Category,
		Amount:    core.Money{Cents: row.AmountCents},
		CreatedAt: row.CreatedAt,
	}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
