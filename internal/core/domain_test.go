package core

import (
	"strings"
	"testing"
)

func TestTransactionValidate(t *testing.T) {
	good := Transaction{Title: "Groceries", Category: "Food", Amount: Money{Cents: -4000}}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	// Category is optional: it gets normalized at aggregation time.
	noCat := Transaction{Title: "Salary", Amount: Money{Cents: 100000}}
	if err := noCat.Validate(); err != nil {
		t.Fatalf("expected ok without category, got %v", err)
	}

	cases := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"empty title", Transaction{Title: "", Amount: Money{Cents: 1}}, ErrEmptyTitle},
		{"blank title", Transaction{Title: "   ", Amount: Money{Cents: 1}}, ErrEmptyTitle},
		{"long title", Transaction{Title: strings.Repeat("x", 201), Amount: Money{Cents: 1}}, ErrTitleTooLong},
	}
	for _, tc := range cases {
		if err := tc.tx.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in, out string
	}{
		{"Food", "Food"},
		{"  Food  ", "Food"},
		{"", UncategorizedLabel},
		{"   ", UncategorizedLabel},
	}
	for _, tc := range cases {
		if got := NormalizeCategory(tc.in); got != tc.out {
			t.Fatalf("%q: expected %q, got %q", tc.in, tc.out, got)
		}
	}
}

func TestMoneyPredicates(t *testing.T) {
	if !(Money{Cents: 1}).IsIncome() || (Money{Cents: 1}).IsExpense() {
		t.Fatal("positive amount should be income")
	}
	if !(Money{Cents: -1}).IsExpense() || (Money{Cents: -1}).IsIncome() {
		t.Fatal("negative amount should be expense")
	}
	if (Money{}).IsIncome() || (Money{}).IsExpense() {
		t.Fatal("zero amount is neither income nor expense")
	}
	if got := (Money{Cents: -250}).Abs(); got.Cents != 250 {
		t.Fatalf("abs: expected 250, got %d", got.Cents)
	}
}
