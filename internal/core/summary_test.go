package core

import (
	"math"
	"testing"
)

func tx(amountCents int64, category string) Transaction {
	return Transaction{Title: "t", Category: category, Amount: Money{Cents: amountCents}}
}

func TestSummarizeExample(t *testing.T) {
	ts := []Transaction{
		tx(10000, ""),
		tx(-4000, "Food"),
		tx(-1000, "Food"),
		tx(-2000, "Transport"),
	}
	sum := Summarize(ts)

	if sum.Balance.Cents != 3000 {
		t.Fatalf("balance: expected 3000, got %d", sum.Balance.Cents)
	}
	if sum.Income.Cents != 10000 {
		t.Fatalf("income: expected 10000, got %d", sum.Income.Cents)
	}
	if sum.Expenses.Cents != 7000 {
		t.Fatalf("expenses: expected 7000, got %d", sum.Expenses.Cents)
	}

	if len(sum.ByCategory) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(sum.ByCategory))
	}
	// Insertion order of first occurrence
	if sum.ByCategory[0].Category != "Food" || sum.ByCategory[1].Category != "Transport" {
		t.Fatalf("unexpected group order: %v", sum.ByCategory)
	}
	if sum.ByCategory[0].Amount.Cents != 5000 || sum.ByCategory[1].Amount.Cents != 2000 {
		t.Fatalf("unexpected group magnitudes: %v", sum.ByCategory)
	}
	if RoundPercent(sum.ByCategory[0].Percent) != 71 {
		t.Fatalf("Food percent: expected 71, got %v", sum.ByCategory[0].Percent)
	}
	if RoundPercent(sum.ByCategory[1].Percent) != 29 {
		t.Fatalf("Transport percent: expected 29, got %v", sum.ByCategory[1].Percent)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	sum := Summarize(nil)
	if sum.Balance.Cents != 0 || sum.Income.Cents != 0 || sum.Expenses.Cents != 0 {
		t.Fatalf("expected all-zero summary, got %+v", sum)
	}
	if len(sum.ByCategory) != 0 {
		t.Fatalf("expected empty breakdown, got %v", sum.ByCategory)
	}
}

func TestSummarizeZeroAmountsExcluded(t *testing.T) {
	sum := Summarize([]Transaction{tx(0, "Food"), tx(0, "")})
	if sum.Income.Cents != 0 || sum.Expenses.Cents != 0 {
		t.Fatalf("zero amounts must not count, got %+v", sum)
	}
	if len(sum.ByCategory) != 0 {
		t.Fatalf("zero amounts must not create groups, got %v", sum.ByCategory)
	}
}

func TestSummarizeUncategorized(t *testing.T) {
	sum := Summarize([]Transaction{tx(-1500, "")})
	if len(sum.ByCategory) != 1 {
		t.Fatalf("expected 1 group, got %d", len(sum.ByCategory))
	}
	g := sum.ByCategory[0]
	if g.Category != UncategorizedLabel || g.Amount.Cents != 1500 {
		t.Fatalf("unexpected group: %+v", g)
	}
	if g.Percent != 100 {
		t.Fatalf("expected 100%%, got %v", g.Percent)
	}
}

func TestSummarizeIncomeOnlyHasEmptyBreakdown(t *testing.T) {
	sum := Summarize([]Transaction{tx(100, "Salary"), tx(250, "")})
	if sum.Expenses.Cents != 0 {
		t.Fatalf("expected zero expenses, got %d", sum.Expenses.Cents)
	}
	if len(sum.ByCategory) != 0 {
		t.Fatalf("expected empty breakdown with no expenses, got %v", sum.ByCategory)
	}
}

// Properties that must hold for any snapshot.
func TestSummarizeInvariants(t *testing.T) {
	snapshots := [][]Transaction{
		nil,
		{tx(10000, ""), tx(-4000, "Food"), tx(-1000, "Food"), tx(-2000, "Transport")},
		{tx(-1, "a"), tx(-1, "b"), tx(-1, "c")},
		{tx(0, "x"), tx(-33, ""), tx(5, "y"), tx(-67, "z")},
		{tx(123456789, "big"), tx(-987654321, "huge")},
	}

	for i, ts := range snapshots {
		sum := Summarize(ts)

		if sum.Balance.Cents != sum.Income.Cents-sum.Expenses.Cents {
			t.Fatalf("snapshot %d: balance != income - expenses: %+v", i, sum)
		}

		var groupTotal int64
		var percentTotal float64
		for _, g := range sum.ByCategory {
			if g.Amount.Cents < 0 {
				t.Fatalf("snapshot %d: negative group magnitude: %+v", i, g)
			}
			groupTotal += g.Amount.Cents
			percentTotal += g.Percent
		}
		if groupTotal != sum.Expenses.Cents {
			t.Fatalf("snapshot %d: group magnitudes sum to %d, expenses %d", i, groupTotal, sum.Expenses.Cents)
		}
		if sum.Expenses.Cents > 0 && math.Abs(percentTotal-100) > 1e-9 {
			t.Fatalf("snapshot %d: percents sum to %v, expected 100", i, percentTotal)
		}
	}
}

func TestRoundPercent(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{28.57142857, 29},
		{71.42857142, 71},
		{49.5, 50},
		{100, 100},
	}
	for _, tc := range cases {
		if got := RoundPercent(tc.in); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}
