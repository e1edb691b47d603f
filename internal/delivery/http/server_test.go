package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"stockdash/config"
	httpmiddleware "stockdash/internal/delivery/http/middleware"
	"stockdash/internal/delivery/http/response"
	"stockdash/internal/delivery/http/router"
	"stockdash/internal/delivery/http/router/handler"
	"stockdash/internal/infra/auth"
	"stockdash/internal/infra/persistence/memory"
	"stockdash/internal/infra/session"
	"stockdash/internal/usecase/impl"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "stockdash_test"

// outbox records every mail instead of sending it.
type outbox struct {
	mu    sync.Mutex
	mails []string
}

func (o *outbox) Send(_ context.Context, to, subject, body string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.mails = append(o.mails, to+"|"+subject+"|"+body)

	return nil
}

func (o *outbox) Close() error {
	return nil
}

func (o *outbox) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.mails) == 0 {
		return ""
	}

	return o.mails[len(o.mails)-1]
}

type envelope struct {
	Success bool                `json:"success"`
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
}

type APISuite struct {
	suite.Suite

	echo   *echo.Echo
	outbox *outbox
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func newAPIConfig() *config.Config {
	cfg := &config.Config{
		Session: &config.SessionConfig{TTL: time.Hour, CookieName: cookieName},
		Auth: &config.AuthConfig{
			BcryptCost:       bcrypt.MinCost,
			ResetTokenTTL:    time.Hour,
			ResetLinkBaseURL: "http://localhost:8080/auth/password/reset",
		},
		Admin: &config.AdminConfig{Username: "root", Email: "admin@example.com", Password: "admin-pass"},
	}
	cfg.HTTP.MaxRequestBodySize = "100KB"

	return cfg
}

func (s *APISuite) SetupTest() {
	s.setup(newAPIConfig())
}

func (s *APISuite) setup(cfg *config.Config) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewAccountStore()
	s.outbox = &outbox{}

	accounts, err := impl.NewAccountService(impl.AccountServiceParams{
		Accounts:  memory.NewAccountRepository(store),
		TxManager: memory.NewTransactionManager(store),
		Hasher:    auth.NewPasswordHasher(cfg),
		Tokens:    auth.NewResetTokenService(),
		Notifier:  s.outbox,
		Config:    cfg,
		Logger:    logger,
	})
	s.Require().NoError(err)

	sessions := impl.NewSessionService(impl.SessionServiceParams{
		Sessions: session.NewMemoryStore(),
		Config:   cfg,
		Logger:   logger,
	})
	sessionMiddleware := httpmiddleware.NewSessionMiddleware(sessions, cfg)

	s.echo = NewEcho(HTTPParams{
		Config:          cfg,
		Logger:          logger,
		ErrorMiddleware: httpmiddleware.NewErrorMiddleware(logger),
		RouterParams: router.RouterParams{
			AuthHandler:        handler.NewAuthHandler(accounts, sessionMiddleware, logger),
			AccountHandler:     handler.NewAccountHandler(accounts),
			AdminHandler:       handler.NewAdminHandler(accounts),
			AuthMiddleware:     httpmiddleware.NewAuthMiddleware(),
			SessionMiddleware:  sessionMiddleware,
			SecurityMiddleware: httpmiddleware.NewSecurityMiddleware(cfg, logger),
		},
	})
}

func (s *APISuite) do(method, target, body string, cookie *http.Cookie) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}

	return rec, env
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}

	return nil
}

const aliceBody = `{"username":"alice","email":"alice@example.com","firstName":"Alice","lastName":"Smith",` +
	`"dateOfBirth":"1990-05-17","password":"Secret#1","confirmPassword":"Secret#1"}`

func (s *APISuite) signupAlice() {
	rec, env := s.do(http.MethodPost, "/auth/signup", aliceBody, nil)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Require().True(env.Success)
}

func (s *APISuite) login(identity, password string) *http.Cookie {
	rec, env := s.do(http.MethodPost, "/auth/login", `{"identity":"`+identity+`","password":"`+password+`"}`, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Require().True(env.Success)

	cookie := sessionCookie(rec)
	s.Require().NotNil(cookie)
	s.True(cookie.HttpOnly)

	return cookie
}

func (s *APISuite) TestHealth() {
	rec, _ := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APISuite) TestSignup() {
	s.signupAlice()
	s.Contains(s.outbox.last(), "alice@example.com|Registration Successful|Dear alice")

	rec, env := s.do(http.MethodPost, "/auth/signup", aliceBody, nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("DUPLICATE_USERNAME", env.Error.Code)

	other := strings.Replace(aliceBody, `"username":"alice"`, `"username":"alice2"`, 1)
	rec, env = s.do(http.MethodPost, "/auth/signup", other, nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("DUPLICATE_EMAIL", env.Error.Code)
}

func (s *APISuite) TestSignup_ValidationFailure() {
	body := strings.Replace(aliceBody, `"confirmPassword":"Secret#1"`, `"confirmPassword":"Other#1"`, 1)
	rec, env := s.do(http.MethodPost, "/auth/signup", body, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("VALIDATION_FAILED", env.Error.Code)
	s.Contains(env.Error.Details, "confirmPassword")
	s.NotContains(rec.Body.String(), "Other#1")

	rec, env = s.do(http.MethodPost, "/auth/signup", `{"username":`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("VALIDATION_FAILED", env.Error.Code)
}

func (s *APISuite) TestLogin_DoesNotDiscloseAccounts() {
	s.signupAlice()

	rec, unknown := s.do(http.MethodPost, "/auth/login", `{"identity":"bob","password":"Secret#1"}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Nil(sessionCookie(rec))

	rec, wrong := s.do(http.MethodPost, "/auth/login", `{"identity":"alice","password":"nope"}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	s.Equal("INVALID_CREDENTIALS", unknown.Error.Code)
	s.Equal(unknown.Error, wrong.Error)
	s.Equal(unknown.Message, wrong.Message)
}

func (s *APISuite) TestProfileRequiresUserSession() {
	s.signupAlice()

	rec, env := s.do(http.MethodGet, "/account/profile", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("UNAUTHENTICATED", env.Error.Code)

	cookie := s.login("alice@example.com", "Secret#1")
	rec, env = s.do(http.MethodGet, "/account/profile", "", cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("no-store", rec.Header().Get("Cache-Control"))
	s.Contains(string(env.Data), `"username":"alice"`)
	s.Contains(string(env.Data), `"dateOfBirth":"1990-05-17"`)
	s.NotContains(strings.ToLower(string(env.Data)), "password")

	rec, _ = s.do(http.MethodPut, "/account/profile", `{"firstName":"Alicia","lastName":"Smith","dateOfBirth":"1990-05-18"}`, cookie)
	s.Equal(http.StatusOK, rec.Code)

	_, env = s.do(http.MethodGet, "/account/profile", "", cookie)
	s.Contains(string(env.Data), `"firstName":"Alicia"`)
	s.Contains(string(env.Data), `"dateOfBirth":"1990-05-18"`)

	rec, env = s.do(http.MethodGet, "/admin/accounts", "", cookie)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("FORBIDDEN", env.Error.Code)
}

func (s *APISuite) TestLoginRotatesSessionAndLogout() {
	s.signupAlice()

	rec, env := s.do(http.MethodGet, "/auth/session", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(string(env.Data), `"kind":"anonymous"`)

	cookie := s.login("alice", "Secret#1")
	_, env = s.do(http.MethodGet, "/auth/session", "", cookie)
	s.Contains(string(env.Data), `"kind":"user"`)

	rec, _ = s.do(http.MethodPost, "/auth/logout", "", cookie)
	s.Equal(http.StatusOK, rec.Code)
	cleared := sessionCookie(rec)
	s.Require().NotNil(cleared)
	s.Empty(cleared.Value)

	rec, _ = s.do(http.MethodGet, "/account/profile", "", cookie)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *APISuite) TestChangePassword() {
	s.signupAlice()
	cookie := s.login("alice", "Secret#1")

	rec, env := s.do(http.MethodPut, "/account/password",
		`{"currentPassword":"wrong","newPassword":"Next#2","confirmPassword":"Next#2"}`, cookie)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("INVALID_CREDENTIALS", env.Error.Code)

	rec, _ = s.do(http.MethodPut, "/account/password",
		`{"currentPassword":"Secret#1","newPassword":"Next#2","confirmPassword":"Next#2"}`, cookie)
	s.Equal(http.StatusOK, rec.Code)

	s.login("alice", "Next#2")
}

func (s *APISuite) TestPasswordResetFlow() {
	s.signupAlice()

	rec, known := s.do(http.MethodPost, "/auth/password/forgot", `{"email":"alice@example.com"}`, nil)
	s.Require().Equal(http.StatusAccepted, rec.Code)
	mail := s.outbox.last()
	s.Contains(mail, "Password Reset Request")

	rec, unknown := s.do(http.MethodPost, "/auth/password/forgot", `{"email":"nobody@example.com"}`, nil)
	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal(known.Message, unknown.Message)

	token := resetToken(s.T(), mail)

	rec, _ = s.do(http.MethodGet, "/auth/password/reset?token="+url.QueryEscape(token), "", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec, env := s.do(http.MethodGet, "/auth/password/reset?token="+url.QueryEscape(token)+"&token=other", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("INVALID_OR_EXPIRED_TOKEN", env.Error.Code)

	rec, _ = s.do(http.MethodGet, "/auth/password/reset", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	body := `{"token":"` + token + `","newPassword":"Fresh#3","confirmPassword":"Fresh#3"}`
	rec, _ = s.do(http.MethodPost, "/auth/password/reset", body, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	s.login("alice", "Fresh#3")

	rec, env = s.do(http.MethodPost, "/auth/password/reset", body, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("INVALID_OR_EXPIRED_TOKEN", env.Error.Code)
}

func (s *APISuite) TestDirectResetDisabledByDefault() {
	s.signupAlice()

	rec, env := s.do(http.MethodPost, "/auth/password/reset/direct",
		`{"email":"alice@example.com","dateOfBirth":"1990-05-17","newPassword":"Fresh#3","confirmPassword":"Fresh#3"}`, nil)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("FORBIDDEN", env.Error.Code)
}

func (s *APISuite) TestForgotUsername() {
	s.signupAlice()

	rec, env := s.do(http.MethodPost, "/auth/username/forgot", `{"firstName":"Alice","lastName":"Smith"}`, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[{"username":"alice","email":"alice@example.com"}]`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/auth/username/forgot", `{"firstName":"Alice","lastName":"Jones"}`, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/auth/username/forgot/dob", `{"dateOfBirth":"1990-05-17"}`, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`["alice"]`, string(env.Data))

	rec, env = s.do(http.MethodPost, "/auth/username/forgot/dob", `{"dateOfBirth":"17/05/1990"}`, nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("VALIDATION_FAILED", env.Error.Code)
}

func (s *APISuite) TestAdminListsAccounts() {
	s.signupAlice()

	rec, env := s.do(http.MethodPost, "/auth/admin/login", `{"identity":"alice","password":"Secret#1"}`, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("INVALID_CREDENTIALS", env.Error.Code)

	rec, env = s.do(http.MethodPost, "/auth/admin/login", `{"identity":"root","password":"admin-pass"}`, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(string(env.Data), `"kind":"admin"`)
	cookie := sessionCookie(rec)
	s.Require().NotNil(cookie)

	rec, env = s.do(http.MethodGet, "/admin/accounts", "", cookie)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(string(env.Data), `"username":"alice"`)
	s.NotContains(strings.ToLower(rec.Body.String()), "hash")

	rec, env = s.do(http.MethodGet, "/account/profile", "", cookie)
	s.Equal(http.StatusForbidden, rec.Code)
	s.Equal("FORBIDDEN", env.Error.Code)
}

func (s *APISuite) TestCredentialEndpointsAreThrottled() {
	cfg := newAPIConfig()
	cfg.HTTP.RateLimit.Requests = 3
	cfg.HTTP.RateLimit.Window = time.Minute
	s.setup(cfg)

	for range 3 {
		rec, _ := s.do(http.MethodPost, "/auth/login", `{"identity":"bob","password":"x"}`, nil)
		s.Equal(http.StatusUnauthorized, rec.Code)
	}

	rec, env := s.do(http.MethodPost, "/auth/password/forgot", `{"email":"bob@example.com"}`, nil)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("TOO_MANY_REQUESTS", env.Error.Code)

	rec, env = s.do(http.MethodPost, "/auth/signup", aliceBody, nil)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("TOO_MANY_REQUESTS", env.Error.Code)

	rec, _ = s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *APISuite) TestSignupIsThrottled() {
	cfg := newAPIConfig()
	cfg.HTTP.RateLimit.Requests = 3
	cfg.HTTP.RateLimit.Window = time.Minute
	s.setup(cfg)

	codes := make([]int, 0, 5)
	for i := range 5 {
		body := fmt.Sprintf(`{"username":"user%[1]d","email":"user%[1]d@example.com","firstName":"U","lastName":"Ser",`+
			`"dateOfBirth":"1990-05-17","password":"Secret#1","confirmPassword":"Secret#1"}`, i)
		rec, _ := s.do(http.MethodPost, "/auth/signup", body, nil)
		codes = append(codes, rec.Code)
	}

	s.Equal([]int{
		http.StatusCreated, http.StatusCreated, http.StatusCreated,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func resetToken(t *testing.T, mail string) string {
	t.Helper()

	idx := strings.Index(mail, "http://localhost:8080/auth/password/reset?")
	require.GreaterOrEqual(t, idx, 0, mail)
	link := strings.Fields(mail[idx:])[0]

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	assert.NotEmpty(t, token)

	return token
}
