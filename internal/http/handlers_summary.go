package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/auth"
	"tally/internal/core"
)

// pieColors cycles through the breakdown segments in insertion order.
var pieColors = []string{
	"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f",
	"#edc948", "#b07aa1", "#ff9da7", "#9c755f", "#bab0ac",
}

// pieGradient builds the conic-gradient CSS for the category breakdown from
// the unrounded percent shares.
func pieGradient(shares []core.CategoryShare) template.CSS {
	if len(shares) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("background: conic-gradient(")
	cum := 0.0
	for i, share := range shares {
		if i > 0 {
			b.WriteString(", ")
		}
		start := cum
		cum += share.Percent
		end := cum
		if i == len(shares)-1 {
			end = 100 // close the circle despite float drift
		}
		b.WriteString(pieColors[i%len(pieColors)])
		b.WriteString(" ")
		b.WriteString(strconv.FormatFloat(start, 'f', 2, 64))
		b.WriteString("% ")
		b.WriteString(strconv.FormatFloat(end, 'f', 2, 64))
		b.WriteString("%")
	}
	b.WriteString(")")
	return template.CSS(b.String())
}

type summaryRow struct {
	Category string
	Amount   string
	Percent  int
	Color    string
}

type summaryItem struct {
	ID       int64
	Title    string
	Category string
	Amount   string
	Negative bool
	Date     string
}

// handleSummaryPartial renders the dashboard partial: summary cards, the
// category pie with its legend, and the transaction list.
func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	sess, _ := auth.SessionFromContext(r.Context())

	sum, err := s.getSummary(r.Context(), sess.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err, "user_id", sess.UserID)
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Could not load the summary</div></section>`))
		return
	}

	data := struct {
		Balance     string
		Income      string
		Expenses    string
		HasExpenses bool
		PieStyle    template.CSS
		Rows        []summaryRow
		Items       []summaryItem
	}{
		Balance:     formatSignedUSD(sum.Balance.Cents),
		Income:      formatUSD(sum.Income.Cents),
		Expenses:    formatUSD(sum.Expenses.Cents),
		HasExpenses: sum.Expenses.Cents > 0,
		PieStyle:    pieGradient(sum.ByCategory),
	}

	// Legend: category, magnitude, percent rounded only here at the edge.
	for i, share := range sum.ByCategory {
		data.Rows = append(data.Rows, summaryRow{
			Category: share.Category,
			Amount:   formatUSD(share.Amount.Cents),
			Percent:  core.RoundPercent(share.Percent),
			Color:    pieColors[i%len(pieColors)],
		})
	}

	items, err := s.tx.List(r.Context(), sess.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions error", "error", err, "user_id", sess.UserID)
	} else {
		for _, t := range items {
			data.Items = append(data.Items, summaryItem{
				ID:       t.ID,
				Title:    t.Title,
				Category: core.NormalizeCategory(t.Category),
				Amount:   formatSignedUSD(t.Amount.Cents),
				Negative: t.Amount.Cents < 0,
				Date:     t.CreatedAt.Format("Jan 2, 2006"),
			})
		}
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Balance: ` + template.HTMLEscapeString(data.Balance) + `</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "summary.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution error", "error", err, "template", "summary.html")
		_, _ = w.Write([]byte(`<section id="summary" class="summary"><div class="placeholder">Could not render the summary</div></section>`))
	}
}

type categoryShareResponse struct {
	Category    string  `json:"category"`
	Amount      string  `json:"amount"`
	AmountCents int64   `json:"amount_cents"`
	Percent     float64 `json:"percent"`
	Rounded     int     `json:"percent_rounded"`
}

// handleSummaryJSON serves the aggregation for API clients.
func (s *Server) handleSummaryJSON(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, _ := auth.SessionFromContext(r.Context())

	sum, err := s.getSummary(r.Context(), sess.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Summary error", "error", err, "user_id", sess.UserID)
		http.Error(w, "could not compute the summary", http.StatusInternalServerError)
		return
	}

	byCategory := make([]categoryShareResponse, len(sum.ByCategory))
	for i, share := range sum.ByCategory {
		byCategory[i] = categoryShareResponse{
			Category:    share.Category,
			Amount:      share.Amount.String(),
			AmountCents: share.Amount.Cents,
			Percent:     share.Percent,
			Rounded:     core.RoundPercent(share.Percent),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"balance":        sum.Balance.Signed(),
		"balance_cents":  sum.Balance.Cents,
		"income":         sum.Income.String(),
		"income_cents":   sum.Income.Cents,
		"expenses":       sum.Expenses.String(),
		"expenses_cents": sum.Expenses.Cents,
		"by_category":    byCategory,
		"generated_at":   time.Now().UTC().Format(time.RFC3339),
	})
}
