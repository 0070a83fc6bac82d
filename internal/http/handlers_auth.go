package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tally/internal/auth"
	"tally/internal/storage"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// parseCredentials reads email/password from a JSON body or a form post.
func parseCredentials(r *http.Request) (credentialsRequest, error) {
	if wantsJSON(r) {
		var req credentialsRequest
		if err := decodeJSONBody(r, &req); err != nil {
			return credentialsRequest{}, err
		}
		req.Email = strings.TrimSpace(req.Email)
		return req, nil
	}
	if err := r.ParseForm(); err != nil {
		return credentialsRequest{}, err
	}
	return credentialsRequest{
		Email:    strings.TrimSpace(r.Form.Get("email")),
		Password: r.Form.Get("password"),
	}, nil
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseCredentials(r)
	if err != nil {
		writeErrorFragment(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	token, sess, err := s.authSvc.SignUp(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		writeErrorFragment(w, http.StatusUnprocessableEntity, err.Error())
		return
	case errors.Is(err, storage.ErrEmailTaken):
		writeErrorFragment(w, http.StatusConflict, "An account with this email already exists")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Sign-up failed", "error", err)
		writeErrorFragment(w, http.StatusInternalServerError, "Could not create the account")
		return
	}

	s.respondSession(w, r, token, sess.Email)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseCredentials(r)
	if err != nil {
		writeErrorFragment(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	token, sess, err := s.authSvc.SignIn(r.Context(), req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeErrorFragment(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Sign-in failed", "error", err)
		writeErrorFragment(w, http.StatusInternalServerError, "Could not sign in")
		return
	}

	s.respondSession(w, r, token, sess.Email)
}

// respondSession sets the session cookie and answers the client: JSON for API
// callers, a redirect trigger for the HTMX forms.
func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, token, email string) {
	setSessionCookie(w, token, s.authSvc.SessionTTL())

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"token": token, "email": email})
		return
	}
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
	}
	writeSuccessFragment(w, "Signed in as "+email)
}

func (s *Server) handleMagicLinkRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseCredentials(r)
	if err != nil {
		writeErrorFragment(w, http.StatusBadRequest, "Invalid request format")
		return
	}

	err = s.authSvc.RequestMagicLink(r.Context(), req.Email)
	if errors.Is(err, auth.ErrInvalidEmail) {
		writeErrorFragment(w, http.StatusUnprocessableEntity, "Enter a valid email address")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Magic link request failed", "error", err)
		writeErrorFragment(w, http.StatusInternalServerError, "Could not send the sign-in link")
		return
	}

	writeSuccessFragment(w, "Check your inbox for a sign-in link")
}

// handleMagicLinkConsume exchanges the emailed token for a session and lands
// the browser on the dashboard.
func (s *Server) handleMagicLinkConsume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	token, _, err := s.authSvc.ConsumeMagicLink(r.Context(), raw)
	if errors.Is(err, auth.ErrMagicLinkExpired) {
		http.Error(w, "This sign-in link is invalid, expired, or was already used.", http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Magic link consume failed", "error", err)
		http.Error(w, "Could not sign in", http.StatusInternalServerError)
		return
	}

	setSessionCookie(w, token, s.authSvc.SessionTTL())
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Sessions are stateless JWTs; signing out just drops the cookie.
	clearSessionCookie(w)

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	sess, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user_id": sess.UserID,
		"email":   sess.Email,
	})
}
