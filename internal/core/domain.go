package core

import (
	"errors"
	"strings"
	"time"
)

// UncategorizedLabel is the sentinel category used when a transaction
// carries no category label.
const UncategorizedLabel = "Uncategorized"

const maxTitleLength = 200

type (
	// Money is a signed monetary value in integer cents.
	// Positive values are income, negative values are expenses.
	Money struct {
		Cents int64
	}

	// Transaction is a single signed monetary record owned by one user.
	// Transactions are immutable once created; the only mutation is deletion.
	Transaction struct {
		ID        int64
		Owner     int64
		Title     string
		Category  string
		Amount    Money
		CreatedAt time.Time
	}
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrEmptyTitle    = errors.New("empty title")
	ErrTitleTooLong  = errors.New("title too long (max 200 characters)")
)

// NormalizeCategory trims the label and maps empty values to the
// Uncategorized sentinel. Storage keeps the trimmed value as-is; the
// sentinel mapping happens at aggregation and display time.
func NormalizeCategory(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UncategorizedLabel
	}
	return s
}

// IsIncome reports whether the amount is strictly positive.
func (m Money) IsIncome() bool {
	return m.Cents > 0
}

// IsExpense reports whether the amount is strictly negative.
func (m Money) IsExpense() bool {
	return m.Cents < 0
}

// Abs returns the magnitude of the amount.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (t Transaction) Validate() error {
	title := strings.TrimSpace(t.Title)
	if len(title) == 0 {
		return ErrEmptyTitle
	}
	if len(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}
