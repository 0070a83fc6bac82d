package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"tally/internal/amqp"
	"tally/internal/auth"
	applog "tally/internal/log"
	"tally/internal/storage"
)

// MagicLinkEvents queues sign-in links for asynchronous delivery.
type MagicLinkEvents interface {
	PublishMagicLink(ctx context.Context, msg amqp.MagicLinkMessage) error
}

// MagicLinkSender delivers a sign-in link directly, bypassing the queue.
// Used when no broker is configured.
type MagicLinkSender interface {
	SendMagicLink(ctx context.Context, to, link string, expiresAt time.Time) error
}

type AuthService struct {
	repo     *storage.SQLiteRepository
	issuer   *auth.Issuer
	events   MagicLinkEvents
	sender   MagicLinkSender
	baseURL  string
	magicTTL time.Duration
}

// NewAuthService creates the service. events may be nil; sign-in links are
// then delivered synchronously through sender.
func NewAuthService(repo *storage.SQLiteRepository, issuer *auth.Issuer, events MagicLinkEvents, sender MagicLinkSender, baseURL string, magicTTL time.Duration) *AuthService {
	return &AuthService{
		repo:     repo,
		issuer:   issuer,
		events:   events,
		sender:   sender,
		baseURL:  baseURL,
		magicTTL: magicTTL,
	}
}

// SignUp registers an email/password account and returns a session token.
// An existing passwordless account (created by a magic-link sign-in) is
// upgraded in place; an account that already has a password is rejected
// with storage.ErrEmailTaken.
func (s *AuthService) SignUp(ctx context.Context, email, password string) (string, auth.Session, error) {
	if !auth.ValidateEmail(email) {
		return "", auth.Session{}, auth.ErrInvalidEmail
	}
	if !auth.ValidatePassword(password) {
		return "", auth.Session{}, auth.ErrWeakPassword
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", auth.Session{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, email, hash)
	if errors.Is(err, storage.ErrEmailTaken) {
		existing, getErr := s.repo.GetUserByEmail(ctx, email)
		if getErr != nil {
			return "", auth.Session{}, getErr
		}
		if existing.PasswordHash != "" {
			return "", auth.Session{}, storage.ErrEmailTaken
		}
		if err := s.repo.SetUserPassword(ctx, existing.ID, hash); err != nil {
			return "", auth.Session{}, err
		}
		user = existing
	} else if err != nil {
		return "", auth.Session{}, err
	}

	return s.issueSession(ctx, user.ID, user.Email, applog.OpSignUp)
}

// SignIn authenticates an email/password pair and returns a session token.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (string, auth.Session, error) {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", auth.Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return "", auth.Session{}, err
	}

	// Passwordless accounts must use the magic-link flow.
	if user.PasswordHash == "" {
		return "", auth.Session{}, auth.ErrInvalidCredentials
	}
	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		return "", auth.Session{}, err
	}

	return s.issueSession(ctx, user.ID, user.Email, applog.OpSignIn)
}

// RequestMagicLink creates a single-use sign-in token for email and hands the
// link off for delivery. Unknown addresses get a passwordless account, so the
// magic-link flow doubles as sign-up.
func (s *AuthService) RequestMagicLink(ctx context.Context, email string) error {
	if !auth.ValidateEmail(email) {
		return auth.ErrInvalidEmail
	}

	user, err := s.repo.GetOrCreateUserByEmail(ctx, email)
	if err != nil {
		return err
	}

	raw, hash, err := auth.NewMagicToken()
	if err != nil {
		return err
	}

	expiresAt := time.Now().UTC().Add(s.magicTTL)
	if err := s.repo.CreateMagicLinkToken(ctx, hash, user.ID, expiresAt); err != nil {
		return err
	}

	link := s.baseURL + "/auth/magic?token=" + url.QueryEscape(raw)

	if s.events != nil {
		err = s.events.PublishMagicLink(ctx, amqp.MagicLinkMessage{
			Email:     user.Email,
			Link:      link,
			ExpiresAt: expiresAt,
		})
	} else if s.sender != nil {
		err = s.sender.SendMagicLink(ctx, user.Email, link, expiresAt)
	} else {
		slog.InfoContext(ctx, "No delivery channel configured, logging magic link",
			"email", user.Email, "link", link)
	}
	if err != nil {
		return fmt.Errorf("deliver magic link: %w", err)
	}

	slog.InfoContext(ctx, "Magic link requested", "user_id", user.ID, "email", user.Email)
	return nil
}

// ConsumeMagicLink exchanges a raw magic-link token for a session token.
// Each token works once; expired, used, or unknown tokens return
// auth.ErrMagicLinkExpired.
func (s *AuthService) ConsumeMagicLink(ctx context.Context, raw string) (string, auth.Session, error) {
	userID, err := s.repo.ConsumeMagicLinkToken(ctx, auth.HashMagicToken(raw))
	if errors.Is(err, storage.ErrTokenInvalid) {
		return "", auth.Session{}, auth.ErrMagicLinkExpired
	}
	if err != nil {
		return "", auth.Session{}, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return "", auth.Session{}, err
	}

	return s.issueSession(ctx, user.ID, user.Email, applog.OpMagic)
}

// SessionTTL exposes the configured session lifetime for cookie expiry.
func (s *AuthService) SessionTTL() time.Duration {
	return s.issuer.TTL()
}

func (s *AuthService) issueSession(ctx context.Context, userID int64, email, op string) (string, auth.Session, error) {
	token, err := s.issuer.Issue(userID, email)
	if err != nil {
		return "", auth.Session{}, err
	}

	slog.InfoContext(ctx, "Session issued", applog.FieldUserID, userID, applog.FieldOperation, op)
	return token, auth.Session{UserID: userID, Email: email}, nil
}
