package impl

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"stockdash/config"
	"stockdash/internal/domain/entity"
	"stockdash/internal/domain/repository"
	"stockdash/internal/domain/service"
	"stockdash/internal/infra/auth"
	"stockdash/internal/infra/persistence/memory"
	"stockdash/internal/usecase"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var t0 = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// countingHasher records how often the wrapped hasher does real work.
type countingHasher struct {
	service.PasswordHasher

	hashes atomic.Int32
	checks atomic.Int32
}

func (h *countingHasher) Hash(password string) (string, error) {
	h.hashes.Add(1)

	return h.PasswordHasher.Hash(password)
}

func (h *countingHasher) Check(password, hash string) bool {
	h.checks.Add(1)

	return h.PasswordHasher.Check(password, hash)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)

	return args.Error(0)
}

func (m *mockNotifier) Close() error {
	return nil
}

// accountServiceFixtures holds all test dependencies for account service tests.
type accountServiceFixtures struct {
	service  usecase.AccountUsecase
	accounts repository.AccountRepository
	hasher   service.PasswordHasher
	notifier *mockNotifier
	clock    *testClock
	cfg      *config.Config
}

func newTestConfig() *config.Config {
	return &config.Config{
		Auth: &config.AuthConfig{
			BcryptCost:         bcrypt.MinCost,
			ResetTokenTTL:      time.Hour,
			ResetLinkBaseURL:   "https://stocks.example.com/auth/password/reset",
			DirectResetEnabled: true,
		},
		Admin: &config.AdminConfig{
			Username: "root",
			Email:    "admin@example.com",
			Password: "admin-pass",
		},
		Session: &config.SessionConfig{TTL: time.Hour},
	}
}

func createTestAccountService(t *testing.T, configure ...func(*config.Config)) accountServiceFixtures {
	t.Helper()

	cfg := newTestConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	store := memory.NewAccountStore()
	accounts := memory.NewAccountRepository(store)
	hasher := auth.NewPasswordHasher(cfg)
	notifier := &mockNotifier{}
	clock := &testClock{now: t0}

	svc, err := NewAccountService(AccountServiceParams{
		Accounts:  accounts,
		TxManager: memory.NewTransactionManager(store),
		Hasher:    hasher,
		Tokens:    auth.NewResetTokenService(),
		Notifier:  notifier,
		Config:    cfg,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:     clock.Now,
	})
	require.NoError(t, err)

	t.Cleanup(func() { notifier.AssertExpectations(t) })

	return accountServiceFixtures{
		service:  svc,
		accounts: accounts,
		hasher:   hasher,
		notifier: notifier,
		clock:    clock,
		cfg:      cfg,
	}
}

func aliceSignup() *usecase.SignupInput {
	return &usecase.SignupInput{
		Username:        "alice",
		Email:           "a@x.com",
		FirstName:       "Alice",
		LastName:        "Smith",
		DateOfBirth:     "1990-05-01",
		Password:        "pw1",
		ConfirmPassword: "pw1",
	}
}

// signup registers input with the notifier accepting the confirmation mail.
func (f accountServiceFixtures) signup(t *testing.T, input *usecase.SignupInput) {
	t.Helper()

	f.notifier.On("Send", mock.Anything, input.Email, registrationSubject, mock.Anything).Return(nil).Once()
	_, err := f.service.Signup(context.Background(), input)
	require.NoError(t, err)
}

// requestReset runs ForgotPassword and returns the token carried by the mailed link.
func (f accountServiceFixtures) requestReset(t *testing.T, email string) string {
	t.Helper()

	var body string
	f.notifier.On("Send", mock.Anything, email, resetSubject, mock.Anything).
		Run(func(args mock.Arguments) { body = args.String(3) }).
		Return(nil).Once()

	out, err := f.service.ForgotPassword(context.Background(), email)
	require.NoError(t, err)
	require.True(t, out.Notified)

	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "https://") {
			continue
		}
		link, err := url.Parse(line)
		require.NoError(t, err)
		token := link.Query().Get("token")
		require.NotEmpty(t, token)

		return token
	}
	t.Fatalf("no reset link in mail body: %q", body)

	return ""
}

func newSession() *entity.Session {
	return entity.NewAnonymousSession("sid", t0, time.Hour)
}
