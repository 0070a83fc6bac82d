package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the raw SQL operations over a single connection or transaction.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type User struct {
	ID           int64
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type MagicLinkToken struct {
	TokenHash  string
	UserID     int64
	ExpiresAt  time.Time
	ConsumedAt sql.NullTime
}

type Transaction struct {
	ID          int64
	OwnerID     int64
	Title       string
	Category    string
	AmountCents int64
	CreatedAt   time.Time
	BackedUpAt  sql.NullTime
}

const createUser = `
INSERT INTO users (email, password_hash)
VALUES (?, ?)
RETURNING id, email, password_hash, created_at
`

func (q *Queries) CreateUser(ctx context.Context, email, passwordHash string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, createUser, email, passwordHash).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const getUserByEmail = `
SELECT id, email, password_hash, created_at
FROM users
WHERE email = ?
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByEmail, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const getUserByID = `
SELECT id, email, password_hash, created_at
FROM users
WHERE id = ?
`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByID, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const setUserPassword = `
UPDATE users
SET password_hash = ?
WHERE id = ?
`

func (q *Queries) SetUserPassword(ctx context.Context, id int64, passwordHash string) error {
	_, err := q.db.ExecContext(ctx, setUserPassword, passwordHash, id)
	return err
}

const createMagicLinkToken = `
INSERT INTO magic_link_tokens (token_hash, user_id, expires_at)
VALUES (?, ?, ?)
`

func (q *Queries) CreateMagicLinkToken(ctx context.Context, tokenHash string, userID int64, expiresAt time.Time) error {
	_, err := q.db.ExecContext(ctx, createMagicLinkToken, tokenHash, userID, expiresAt)
	return err
}

const getMagicLinkToken = `
SELECT token_hash, user_id, expires_at, consumed_at
FROM magic_link_tokens
WHERE token_hash = ?
`

func (q *Queries) GetMagicLinkToken(ctx context.Context, tokenHash string) (MagicLinkToken, error) {
	var t MagicLinkToken
	err := q.db.QueryRowContext(ctx, getMagicLinkToken, tokenHash).
		Scan(&t.TokenHash, &t.UserID, &t.ExpiresAt, &t.ConsumedAt)
	return t, err
}

const consumeMagicLinkToken = `
UPDATE magic_link_tokens
SET consumed_at = ?
WHERE token_hash = ? AND consumed_at IS NULL
`

func (q *Queries) ConsumeMagicLinkToken(ctx context.Context, tokenHash string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, consumeMagicLinkToken, at, tokenHash)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteExpiredMagicLinkTokens = `
DELETE FROM magic_link_tokens
WHERE expires_at < ?
`

func (q *Queries) DeleteExpiredMagicLinkTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredMagicLinkTokens, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createTransaction = `
INSERT INTO transactions (owner_id, title, category, amount_cents, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, owner_id, title, category, amount_cents, created_at, backed_up_at
`

type CreateTransactionParams struct {
	OwnerID     int64
	Title       string
	Category    string
	AmountCents int64
	CreatedAt   time.Time
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	var t Transaction
	err := q.db.QueryRowContext(ctx, createTransaction,
		arg.OwnerID, arg.Title, arg.Category, arg.AmountCents, arg.CreatedAt).
		Scan(&t.ID, &t.OwnerID, &t.Title, &t.Category, &t.AmountCents, &t.CreatedAt, &t.BackedUpAt)
	return t, err
}

const listTransactionsByOwner = `
SELECT id, owner_id, title, category, amount_cents, created_at, backed_up_at
FROM transactions
WHERE owner_id = ?
ORDER BY created_at DESC, id DESC
`

func (q *Queries) ListTransactionsByOwner(ctx context.Context, ownerID int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionsByOwner, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Category, &t.AmountCents, &t.CreatedAt, &t.BackedUpAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const getTransaction = `
SELECT id, owner_id, title, category, amount_cents, created_at, backed_up_at
FROM transactions
WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	var t Transaction
	err := q.db.QueryRowContext(ctx, getTransaction, id).
		Scan(&t.ID, &t.OwnerID, &t.Title, &t.Category, &t.AmountCents, &t.CreatedAt, &t.BackedUpAt)
	return t, err
}

const getOwnedTransaction = `
SELECT id, owner_id, title, category, amount_cents, created_at, backed_up_at
FROM transactions
WHERE id = ? AND owner_id = ?
`

func (q *Queries) GetOwnedTransaction(ctx context.Context, id, ownerID int64) (Transaction, error) {
	var t Transaction
	err := q.db.QueryRowContext(ctx, getOwnedTransaction, id, ownerID).
		Scan(&t.ID, &t.OwnerID, &t.Title, &t.Category, &t.AmountCents, &t.CreatedAt, &t.BackedUpAt)
	return t, err
}

const deleteTransactionByOwner = `
DELETE FROM transactions
WHERE id = ? AND owner_id = ?
`

func (q *Queries) DeleteTransactionByOwner(ctx context.Context, id, ownerID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransactionByOwner, id, ownerID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getPendingBackupTransactions = `
SELECT id, owner_id, title, category, amount_cents, created_at, backed_up_at
FROM transactions
WHERE backed_up_at IS NULL
ORDER BY id
LIMIT ?
`

func (q *Queries) GetPendingBackupTransactions(ctx context.Context, limit int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, getPendingBackupTransactions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Category, &t.AmountCents, &t.CreatedAt, &t.BackedUpAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const markTransactionBackedUp = `
UPDATE transactions
SET backed_up_at = ?
WHERE id = ?
`

func (q *Queries) MarkTransactionBackedUp(ctx context.Context, id int64, at time.Time) error {
	_, err := q.db.ExecContext(ctx, markTransactionBackedUp, at, id)
	return err
}
