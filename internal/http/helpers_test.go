package http

import (
	"strings"
	"testing"

	"tally/internal/core"
)

func TestFormatUSD(t *testing.T) {
	cases := []struct {
		cents  int64
		want   string
		signed string
	}{
		{0, "$0.00", "+$0.00"},
		{1234, "$12.34", "+$12.34"},
		{-4000, "-$40.00", "-$40.00"},
		{-50, "-$0.50", "-$0.50"},
		{100000, "$1000.00", "+$1000.00"},
	}
	for _, c := range cases {
		if got := formatUSD(c.cents); got != c.want {
			t.Errorf("formatUSD(%d) = %q, want %q", c.cents, got, c.want)
		}
		if got := formatSignedUSD(c.cents); got != c.signed {
			t.Errorf("formatSignedUSD(%d) = %q, want %q", c.cents, got, c.signed)
		}
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  hello\x00world  "); got != "helloworld" {
		t.Fatalf("sanitizeInput = %q", got)
	}
	if got := sanitizeInput("a\tb"); got != "a\tb" {
		t.Fatalf("tab should survive, got %q", got)
	}
}

func TestPieGradient(t *testing.T) {
	if css := pieGradient(nil); css != "" {
		t.Fatalf("expected empty gradient, got %q", css)
	}

	shares := []core.CategoryShare{
		{Category: "Food", Amount: core.Money{Cents: 5000}, Percent: 500000.0 / 7000},
		{Category: "Transport", Amount: core.Money{Cents: 2000}, Percent: 200000.0 / 7000},
	}
	css := string(pieGradient(shares))
	if !strings.HasPrefix(css, "background: conic-gradient(") || !strings.HasSuffix(css, ")") {
		t.Fatalf("malformed gradient: %q", css)
	}
	// Last segment closes the circle at exactly 100%.
	if !strings.Contains(css, " 100.00%") {
		t.Fatalf("gradient does not close at 100%%: %q", css)
	}
}
