package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tally/internal/auth"
	"tally/internal/core"
	"tally/internal/storage"
)

type transactionResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	AmountCents int64  `json:"amount_cents"`
	CreatedAt   string `json:"created_at"`
}

func toTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Title:       t.Title,
		Category:    t.Category,
		Amount:      t.Amount.Signed(),
		AmountCents: t.Amount.Cents,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListTransactions(w, r)
	case http.MethodPost:
		s.handleCreateTransaction(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	ts, err := s.tx.List(r.Context(), sess.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List transactions failed", "error", err, "user_id", sess.UserID)
		http.Error(w, "could not load transactions", http.StatusInternalServerError)
		return
	}

	items := make([]transactionResponse, len(ts))
	for i, t := range ts {
		items[i] = toTransactionResponse(t)
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": items})
}

type createTransactionRequest struct {
	Title    string `json:"title"`
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())

	var req createTransactionRequest
	if wantsJSON(r) {
		if err := decodeJSONBody(r, &req); err != nil {
			writeErrorFragment(w, http.StatusBadRequest, "Invalid request format")
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			slog.ErrorContext(r.Context(), "Parse form error", "error", err, "method", r.Method, "url", r.URL.Path)
			writeErrorFragment(w, http.StatusBadRequest, "Invalid request format")
			return
		}
		req.Title = r.Form.Get("title")
		req.Category = r.Form.Get("category")
		req.Amount = r.Form.Get("amount")
	}

	title := sanitizeInput(req.Title)
	category := sanitizeInput(req.Category)
	amount := strings.TrimSpace(req.Amount)

	created, err := s.tx.Create(r.Context(), sess.UserID, title, category, amount)
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		writeErrorFragment(w, http.StatusUnprocessableEntity, "Enter a valid amount, like -12.50 or 100")
		return
	case errors.Is(err, core.ErrEmptyTitle), errors.Is(err, core.ErrTitleTooLong):
		writeErrorFragment(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Create transaction failed", "error", err, "user_id", sess.UserID)
		writeErrorFragment(w, http.StatusInternalServerError, "Could not save the transaction")
		return
	}

	s.invalidateSummary(sess.UserID)

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, toTransactionResponse(created))
		return
	}

	w.Header().Set("HX-Trigger", `{"transaction:created": {"id": `+strconv.FormatInt(created.ID, 10)+`}}`)
	writeSuccessFragment(w, "Recorded "+created.Title+" "+formatSignedUSD(created.Amount.Cents))
}

// handleTransactionByID handles DELETE /transactions/{id}.
func (s *Server) handleTransactionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, _ := auth.SessionFromContext(r.Context())

	idStr := strings.TrimPrefix(r.URL.Path, "/transactions/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	err = s.tx.Delete(r.Context(), id, sess.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Delete transaction failed", "error", err, "transaction_id", id, "user_id", sess.UserID)
		http.Error(w, "could not delete the transaction", http.StatusInternalServerError)
		return
	}

	s.invalidateSummary(sess.UserID)

	w.Header().Set("HX-Trigger", `{"transaction:deleted": {"id": `+strconv.FormatInt(id, 10)+`}}`)
	w.WriteHeader(http.StatusOK)
}
