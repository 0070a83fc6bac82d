package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tally/internal/amqp"
	"tally/internal/auth"
	"tally/internal/core"
	"tally/internal/storage"
)

func newTestRepo(t *testing.T) *storage.SQLiteRepository {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

type eventRecorder struct {
	syncIDs   []int64
	deletions []core.Transaction
	links     []amqp.MagicLinkMessage
	fail      bool
}

func (r *eventRecorder) PublishTransactionSync(ctx context.Context, id int64) error {
	if r.fail {
		return errors.New("broker down")
	}
	r.syncIDs = append(r.syncIDs, id)
	return nil
}

func (r *eventRecorder) PublishTransactionDelete(ctx context.Context, t core.Transaction) error {
	if r.fail {
		return errors.New("broker down")
	}
	r.deletions = append(r.deletions, t)
	return nil
}

func (r *eventRecorder) PublishMagicLink(ctx context.Context, msg amqp.MagicLinkMessage) error {
	if r.fail {
		return errors.New("broker down")
	}
	r.links = append(r.links, msg)
	return nil
}

func TestTransactionCreateAndList(t *testing.T) {
	repo := newTestRepo(t)
	events := &eventRecorder{}
	svc := NewTransactionService(repo, events)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, "Salary", "", "100.00")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Amount.Cents != 10000 {
		t.Fatalf("expected 10000 cents, got %d", created.Amount.Cents)
	}
	if len(events.syncIDs) != 1 || events.syncIDs[0] != created.ID {
		t.Fatalf("expected sync message for %d, got %v", created.ID, events.syncIDs)
	}

	if _, err := svc.Create(ctx, 1, "Groceries", "Food", "-40,50"); err != nil {
		t.Fatalf("create with comma amount: %v", err)
	}

	ts, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ts) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(ts))
	}
}

func TestTransactionCreateRejectsInvalidInput(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewTransactionService(repo, &eventRecorder{})
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, "Groceries", "Food", "abc"); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Create(ctx, 1, "   ", "Food", "5.00"); !errors.Is(err, core.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}

	ts, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ts) != 0 {
		t.Fatalf("expected nothing persisted, got %d rows", len(ts))
	}
}

func TestTransactionCreateSurvivesBrokerFailure(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewTransactionService(repo, &eventRecorder{fail: true})
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, "Salary", "", "100.00"); err != nil {
		t.Fatalf("create should not fail on broker error: %v", err)
	}

	ts, err := svc.List(ctx, 1)
	if err != nil || len(ts) != 1 {
		t.Fatalf("expected 1 persisted transaction, got %d (err %v)", len(ts), err)
	}
}

func TestTransactionDelete(t *testing.T) {
	repo := newTestRepo(t)
	events := &eventRecorder{}
	svc := NewTransactionService(repo, events)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, "Groceries", "Food", "-40.00")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Wrong owner cannot delete.
	if err := svc.Delete(ctx, created.ID, 2); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}

	if err := svc.Delete(ctx, created.ID, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(events.deletions) != 1 || events.deletions[0].ID != created.ID {
		t.Fatalf("expected deletion marker for %d, got %+v", created.ID, events.deletions)
	}

	if err := svc.Delete(ctx, created.ID, 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSummarize(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewTransactionService(repo, &eventRecorder{})
	ctx := context.Background()

	for _, row := range []struct {
		title, category, amount string
	}{
		{"Salary", "", "100.00"},
		{"Groceries", "Food", "-40.00"},
		{"Snacks", "Food", "-10.00"},
		{"Bus", "Transport", "-20.00"},
	} {
		if _, err := svc.Create(ctx, 1, row.title, row.category, row.amount); err != nil {
			t.Fatalf("create %s: %v", row.title, err)
		}
	}

	sum, err := svc.Summarize(ctx, 1)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Balance.Cents != 3000 || sum.Income.Cents != 10000 || sum.Expenses.Cents != 7000 {
		t.Fatalf("unexpected totals: %+v", sum)
	}

	// Another user sees an empty summary.
	other, err := svc.Summarize(ctx, 2)
	if err != nil {
		t.Fatalf("summarize other: %v", err)
	}
	if other.Balance.Cents != 0 || len(other.ByCategory) != 0 {
		t.Fatalf("expected empty summary, got %+v", other)
	}
}

func newAuthService(t *testing.T, repo *storage.SQLiteRepository, events MagicLinkEvents) *AuthService {
	t.Helper()
	issuer := auth.NewIssuer("test-secret-key-0123456789", time.Hour)
	return NewAuthService(repo, issuer, events, nil, "http://localhost:8080", 15*time.Minute)
}

func TestSignUpAndSignIn(t *testing.T) {
	repo := newTestRepo(t)
	svc := newAuthService(t, repo, nil)
	ctx := context.Background()

	token, sess, err := svc.SignUp(ctx, "a@example.com", "password123")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if token == "" || sess.UserID == 0 {
		t.Fatalf("expected session, got token=%q sess=%+v", token, sess)
	}

	if _, _, err := svc.SignUp(ctx, "a@example.com", "password123"); !errors.Is(err, storage.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if _, _, err := svc.SignUp(ctx, "not-an-email", "password123"); !errors.Is(err, auth.ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, _, err := svc.SignUp(ctx, "b@example.com", "short"); !errors.Is(err, auth.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}

	if _, _, err := svc.SignIn(ctx, "a@example.com", "password123"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "a@example.com", "wrong-password"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "nobody@example.com", "password123"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestMagicLinkFlow(t *testing.T) {
	repo := newTestRepo(t)
	events := &eventRecorder{}
	svc := newAuthService(t, repo, events)
	ctx := context.Background()

	if err := svc.RequestMagicLink(ctx, "m@example.com"); err != nil {
		t.Fatalf("request magic link: %v", err)
	}
	if len(events.links) != 1 {
		t.Fatalf("expected 1 queued link, got %d", len(events.links))
	}

	link := events.links[0].Link
	idx := strings.Index(link, "token=")
	if idx < 0 {
		t.Fatalf("link missing token: %q", link)
	}
	raw := link[idx+len("token="):]

	token, sess, err := svc.ConsumeMagicLink(ctx, raw)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if token == "" || sess.Email != "m@example.com" {
		t.Fatalf("unexpected session: %+v", sess)
	}

	// Single use.
	if _, _, err := svc.ConsumeMagicLink(ctx, raw); !errors.Is(err, auth.ErrMagicLinkExpired) {
		t.Fatalf("expected ErrMagicLinkExpired on reuse, got %v", err)
	}
	if _, _, err := svc.ConsumeMagicLink(ctx, "bogus"); !errors.Is(err, auth.ErrMagicLinkExpired) {
		t.Fatalf("expected ErrMagicLinkExpired for bogus token, got %v", err)
	}
}

func TestSignUpUpgradesPasswordlessAccount(t *testing.T) {
	repo := newTestRepo(t)
	events := &eventRecorder{}
	svc := newAuthService(t, repo, events)
	ctx := context.Background()

	// Magic-link sign-in creates the account without a password.
	if err := svc.RequestMagicLink(ctx, "m@example.com"); err != nil {
		t.Fatalf("request magic link: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "m@example.com", "password123"); !errors.Is(err, auth.ErrInvalidCredentials) {
		t.Fatalf("passwordless account should reject password sign-in, got %v", err)
	}

	if _, _, err := svc.SignUp(ctx, "m@example.com", "password123"); err != nil {
		t.Fatalf("sign up over passwordless account: %v", err)
	}
	if _, _, err := svc.SignIn(ctx, "m@example.com", "password123"); err != nil {
		t.Fatalf("sign in after upgrade: %v", err)
	}
}
