package core

// CategoryShare is one expense group of the category breakdown: the
// magnitude spent in a category and its share of total expenses.
type CategoryShare struct {
	Category string
	Amount   Money   // magnitude, always >= 0
	Percent  float64 // 100 * Amount / total expenses, unrounded
}

// Summary is the display-ready aggregation of a transaction snapshot.
type Summary struct {
	Balance    Money
	Income     Money
	Expenses   Money // magnitude, always >= 0
	ByCategory []CategoryShare
}

// Summarize derives balance, income, expense and per-category totals from
// a snapshot of transactions in a single pass. It is pure and never fails:
// amounts are assumed valid (parsing rejects malformed input at creation).
//
// Zero amounts count toward neither income nor expenses. The breakdown
// covers expenses only, grouped in insertion order of first occurrence,
// with empty categories folded into the Uncategorized sentinel. Percent
// shares are computed from unrounded cents; when there are no expenses
// the breakdown is empty.
func Summarize(ts []Transaction) Summary {
	var sum Summary
	index := make(map[string]int)

	for _, t := range ts {
		cents := t.Amount.Cents
		sum.Balance.Cents += cents
		switch {
		case cents > 0:
			sum.Income.Cents += cents
		case cents < 0:
			sum.Expenses.Cents += -cents
			cat := NormalizeCategory(t.Category)
			i, ok := index[cat]
			if !ok {
				i = len(sum.ByCategory)
				index[cat] = i
				sum.ByCategory = append(sum.ByCategory, CategoryShare{Category: cat})
			}
			sum.ByCategory[i].Amount.Cents += -cents
		}
	}

	if sum.Expenses.Cents > 0 {
		total := float64(sum.Expenses.Cents)
		for i := range sum.ByCategory {
			sum.ByCategory[i].Percent = 100 * float64(sum.ByCategory[i].Amount.Cents) / total
		}
	}

	return sum
}

// RoundPercent rounds a percent share half-up to the nearest integer.
// Rounding is a display concern only; Summarize keeps shares unrounded.
func RoundPercent(p float64) int {
	return int(p + 0.5)
}
