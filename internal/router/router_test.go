package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"callcenter-ops/internal/config"
	"callcenter-ops/internal/handler"
	"callcenter-ops/internal/mailer"
	"callcenter-ops/internal/middleware"
	"callcenter-ops/internal/model"
	"callcenter-ops/internal/service"
)

// memStore is a minimal in-memory service.UserStore for routing tests.
type memStore struct {
	mu     sync.Mutex
	users  map[int64]model.User
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]model.User{}, nextID: 1}
}

func (s *memStore) FindByID(_ context.Context, id int64) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (s *memStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (s *memStore) Create(_ context.Context, u model.User) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return model.User{}, model.ErrUserAlreadyExists
		}
	}
	u.ID = s.nextID
	s.nextID++
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) UpdatePassword(_ context.Context, userID int64, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.IsPasswordChanged = true
	u.TokenGeneration++
	s.users[userID] = u
	return nil
}

func (s *memStore) SetResetToken(_ context.Context, userID int64, tokenHash string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.ResetTokenHash = &tokenHash
	u.ResetTokenExpiry = &expiry
	u.ResetTokenAttempts = 0
	s.users[userID] = u
	return nil
}

func (s *memStore) ClearResetToken(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
	u.ResetTokenAttempts = 0
	s.users[userID] = u
	return nil
}

func (s *memStore) IncrementResetAttempts(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.ResetTokenAttempts++
	s.users[userID] = u
	return nil
}

func (s *memStore) ConsumeResetToken(_ context.Context, userID int64, passwordHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.ResetTokenHash == nil {
		return false, nil
	}
	u.PasswordHash = passwordHash
	u.IsPasswordChanged = true
	u.TokenGeneration++
	u.ResetTokenHash = nil
	u.ResetTokenExpiry = nil
	u.ResetTokenAttempts = 0
	s.users[userID] = u
	return true, nil
}

func (s *memStore) ListByRole(_ context.Context, role model.Role) ([]model.PublicUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.PublicUser{}
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, u.Public())
		}
	}
	return out, nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(s.users, id)
	return nil
}

type memSender struct {
	mu      sync.Mutex
	resets  []string
	welcome []string
}

func (m *memSender) SendPasswordReset(_ context.Context, _ string, _ string, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, link)
	return nil
}

func (m *memSender) SendWelcome(_ context.Context, to string, _ string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcome = append(m.welcome, to)
	return nil
}

var _ service.UserStore = (*memStore)(nil)
var _ mailer.Sender = (*memSender)(nil)

type testEnv struct {
	handler http.Handler
	store   *memStore
	sender  *memSender
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Environment:      "test",
		RequestTimeout:   10 * time.Second,
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  168 * time.Hour,
		ResetTokenTTL:    30 * time.Minute,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	store := newMemStore()
	sender := &memSender{}

	authService, err := service.NewAuthService(store,
		"router-test-access-secret", "router-test-refresh-secret",
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, bcrypt.MinCost)
	require.NoError(t, err)

	domains := []string{"@sancor.konecta.ar", "@konecta-group.com"}
	resetService := service.NewResetService(store, authService.AccessCodec(), cfg.ResetTokenTTL,
		sender, "http://localhost:3000", domains, bcrypt.MinCost)
	userService := service.NewUserService(store, sender, domains, bcrypt.MinCost)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	authHandler := handler.NewAuthHandler(authService, resetService, userService,
		false, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	userHandler := handler.NewUserHandler(userService)

	return &testEnv{
		handler: New(cfg, authMiddleware, authHandler, userHandler),
		store:   store,
		sender:  sender,
	}
}

func (e *testEnv) seed(t *testing.T, email string, password string, role model.Role) model.User {
	t.Helper()

	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	created, err := e.store.Create(context.Background(), model.User{
		Email:        email,
		Name:         "Seeded User",
		PasswordHash: string(digest),
		Role:         role,
	})
	require.NoError(t, err)
	return created
}

func (e *testEnv) do(method string, path string, body any, token string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "expected success envelope, got: %s", rec.Body.String())

	var out T
	require.NoError(t, json.Unmarshal(envelope.Data, &out))
	return out
}

func (e *testEnv) login(t *testing.T, email string, password string) model.TokenPair {
	t.Helper()

	rec := e.do(http.MethodPost, "/api/v1/auth/login", model.LoginRequest{Email: email, Password: password}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeData[model.TokenPair](t, rec)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)

	health := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, health.Code)
	assert.Equal(t, "ok", health.Body.String())

	metricsRes := env.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, metricsRes.Code)
}

func TestLoginSetsAuthCookies(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "lead@sancor.konecta.ar", "Password1", model.RoleTeamLeader)

	rec := env.do(http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Email: "lead@sancor.konecta.ar", Password: "Password1"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}

	for _, name := range []string{"auth_token", "refresh_token"} {
		cookie, ok := byName[name]
		require.True(t, ok, "missing %s cookie", name)
		assert.NotEmpty(t, cookie.Value)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "lead@sancor.konecta.ar", "Password1", model.RoleTeamLeader)

	rec := env.do(http.MethodPost, "/api/v1/auth/login",
		model.LoginRequest{Email: "lead@sancor.konecta.ar", Password: "Password2"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/auth/session"},
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/auth/change-password"},
		{http.MethodPost, "/api/v1/auth/register"},
		{http.MethodGet, "/api/v1/team-leaders"},
	} {
		rec := env.do(route.method, route.path, nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)
	}
}

func TestRoleGateIsExact(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "boss@sancor.konecta.ar", "Password1", model.RoleManager)
	env.seed(t, "lead@sancor.konecta.ar", "Password1", model.RoleTeamLeader)

	leaderPair := env.login(t, "lead@sancor.konecta.ar", "Password1")
	managerPair := env.login(t, "boss@sancor.konecta.ar", "Password1")

	// An authenticated team leader reaches the session endpoint but not the
	// manager-only surface.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/auth/session", nil, leaderPair.AccessToken).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodGet, "/api/v1/team-leaders", nil, leaderPair.AccessToken).Code)
	assert.Equal(t, http.StatusForbidden, env.do(http.MethodPost, "/api/v1/auth/register",
		model.RegisterRequest{Name: "X", Email: "x@sancor.konecta.ar", Password: "Password1"}, leaderPair.AccessToken).Code)

	leaders := env.do(http.MethodGet, "/api/v1/team-leaders", nil, managerPair.AccessToken)
	require.Equal(t, http.StatusOK, leaders.Code)
	listed := decodeData[[]model.PublicUser](t, leaders)
	require.Len(t, listed, 1)
	assert.Equal(t, "lead@sancor.konecta.ar", listed[0].Email)
}

func TestRefreshFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "lead@sancor.konecta.ar", "Password1", model.RoleTeamLeader)

	first := env.login(t, "lead@sancor.konecta.ar", "Password1")

	rec := env.do(http.MethodPost, "/api/v1/auth/refresh",
		model.RefreshRequest{RefreshToken: first.RefreshToken}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	second := decodeData[model.TokenPair](t, rec)

	// The fresh access credential works.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/auth/session", nil, second.AccessToken).Code)

	// The pre-refresh access credential is still honored until it expires.
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/api/v1/auth/session", nil, first.AccessToken).Code)

	// An access credential is not accepted as a refresh credential.
	bad := env.do(http.MethodPost, "/api/v1/auth/refresh",
		model.RefreshRequest{RefreshToken: first.AccessToken}, "")
	assert.Equal(t, http.StatusUnauthorized, bad.Code)
}

func TestRefreshFromCookie(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "lead@sancor.konecta.ar", "Password1", model.RoleTeamLeader)
	pair := env.login(t, "lead@sancor.konecta.ar", "Password1")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: pair.RefreshToken})

	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestChangePasswordCutsOffRefresh(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "lead@sancor.konecta.ar", "Password1", model.RoleTeamLeader)
	pair := env.login(t, "lead@sancor.konecta.ar", "Password1")

	rec := env.do(http.MethodPost, "/api/v1/auth/change-password",
		model.ChangePasswordRequest{CurrentPassword: "Password1", NewPassword: "NewPassword2"},
		pair.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Outstanding refresh credentials carry the old generation.
	refresh := env.do(http.MethodPost, "/api/v1/auth/refresh",
		model.RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, refresh.Code)

	env.login(t, "lead@sancor.konecta.ar", "NewPassword2")
}

func TestManagerRegistersUser(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "boss@sancor.konecta.ar", "Password1", model.RoleManager)
	pair := env.login(t, "boss@sancor.konecta.ar", "Password1")

	rec := env.do(http.MethodPost, "/api/v1/auth/register",
		model.RegisterRequest{Name: "New Agent", Email: "agent@sancor.konecta.ar", Password: "Password1", Role: "agent"},
		pair.AccessToken)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeData[model.PublicUser](t, rec)
	assert.Equal(t, model.RoleAgent, created.Role)

	env.login(t, "agent@sancor.konecta.ar", "Password1")
}

func TestTeamLeaderLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "boss@sancor.konecta.ar", "Password1", model.RoleManager)
	pair := env.login(t, "boss@sancor.konecta.ar", "Password1")

	created := env.do(http.MethodPost, "/api/v1/team-leaders",
		model.CreateTeamLeaderRequest{Name: "New Lead", Email: "newlead@konecta-group.com"}, pair.AccessToken)
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	leader := decodeData[model.PublicUser](t, created)
	assert.Len(t, env.sender.welcome, 1)

	deleted := env.do(http.MethodDelete, fmt.Sprintf("/api/v1/team-leaders/%d", leader.ID), nil, pair.AccessToken)
	assert.Equal(t, http.StatusOK, deleted.Code, deleted.Body.String())

	listed := env.do(http.MethodGet, "/api/v1/team-leaders", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, listed.Code)
	assert.Empty(t, decodeData[[]model.PublicUser](t, listed))
}

func TestPasswordResetEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "lead@sancor.konecta.ar", "Password1", model.RoleTeamLeader)

	forgot := env.do(http.MethodPost, "/api/v1/auth/forgot-password",
		model.ForgotPasswordRequest{Email: "lead@sancor.konecta.ar"}, "")
	require.Equal(t, http.StatusOK, forgot.Code, forgot.Body.String())
	require.Len(t, env.sender.resets, 1)

	_, tok, found := strings.Cut(env.sender.resets[0], "token=")
	require.True(t, found)

	check := env.do(http.MethodPost, "/api/v1/auth/check-reset-token",
		model.CheckResetTokenRequest{Token: tok}, "")
	require.Equal(t, http.StatusOK, check.Code)
	status := decodeData[model.ResetTokenStatus](t, check)
	assert.True(t, status.Valid)

	reset := env.do(http.MethodPost, "/api/v1/auth/reset-password",
		model.ResetPasswordRequest{Token: tok, Password: "NewPassword2"}, "")
	require.Equal(t, http.StatusOK, reset.Code, reset.Body.String())

	env.login(t, "lead@sancor.konecta.ar", "NewPassword2")

	// The link is single-use.
	again := env.do(http.MethodPost, "/api/v1/auth/reset-password",
		model.ResetPasswordRequest{Token: tok, Password: "OtherPassword3"}, "")
	assert.Equal(t, http.StatusBadRequest, again.Code)
}

func TestForgotPasswordIsUniform(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/forgot-password",
		model.ForgotPasswordRequest{Email: "nobody@sancor.konecta.ar"}, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.sender.resets)
}

func TestCheckResetTokenInvalidAlways200(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/check-reset-token",
		model.CheckResetTokenRequest{Token: "garbage"}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decodeData[model.ResetTokenStatus](t, rec)
	assert.False(t, status.Valid)
	assert.NotEmpty(t, status.Error)
}

func TestLogoutClearsCookies(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/logout", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	for _, cookie := range rec.Result().Cookies() {
		assert.Empty(t, cookie.Value)
		assert.Less(t, cookie.MaxAge, 0)
	}
}

func TestSecurityHeadersPresent(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
