package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"callcenter-ops/internal/middleware"
	"callcenter-ops/internal/model"
	"callcenter-ops/internal/service"
	"callcenter-ops/pkg/apierror"
)

type AuthHandler struct {
	auth          *service.AuthService
	reset         *service.ResetService
	users         *service.UserService
	secureCookies bool
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthHandler(auth *service.AuthService, reset *service.ResetService, users *service.UserService,
	secureCookies bool, accessTTL, refreshTTL time.Duration) *AuthHandler {

	return &AuthHandler{
		auth:          auth,
		reset:         reset,
		users:         users,
		secureCookies: secureCookies,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	pair, err := h.auth.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setAuthCookies(w, pair, h.secureCookies, h.accessTTL, h.refreshTTL)
	writeSuccess(w, http.StatusOK, pair)
}

// Refresh accepts the refresh credential from the JSON body or, for
// browser flows, from the refresh_token cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RefreshRequest
	_ = json.NewDecoder(r.Body).Decode(&payload)

	raw := strings.TrimSpace(payload.RefreshToken)
	if raw == "" {
		if cookie, err := r.Cookie(refreshCookieName); err == nil {
			raw = strings.TrimSpace(cookie.Value)
		}
	}
	if raw == "" {
		writeError(w, model.ErrUnauthorized)
		return
	}

	pair, err := h.auth.Refresh(r.Context(), raw)
	if err != nil {
		writeError(w, err)
		return
	}

	setAuthCookies(w, pair, h.secureCookies, h.accessTTL, h.refreshTTL)
	writeSuccess(w, http.StatusOK, pair)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	clearAuthCookies(w, h.secureCookies)
	writeSuccess(w, http.StatusOK, map[string]any{"logged_out": true})
}

// Session answers from the verified claims alone; no store lookup.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, principal)
}

// Me re-fetches the live user row so role and team data are current.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), principal)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	user, err := h.users.Register(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, user)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	principal, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	var payload model.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	if err := h.auth.ChangePassword(r.Context(), principal.ID, payload.CurrentPassword, payload.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	// The generation bump invalidates the caller's refresh credential;
	// clearing cookies forces a clean re-login.
	clearAuthCookies(w, h.secureCookies)
	writeSuccess(w, http.StatusOK, map[string]any{"password_changed": true})
}

// ForgotPassword answers with the same success shape whether or not the
// email maps to an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	if err := h.reset.Request(r.Context(), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{
		"message": "If the account exists, a recovery link has been sent to the email address",
	})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body", ""))
		return
	}

	if strings.TrimSpace(payload.Token) == "" {
		writeError(w, apierror.BadRequest("token is required", "token"))
		return
	}

	if err := h.reset.Consume(r.Context(), payload.Token, payload.Password); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"message": "Password updated successfully"})
}

// CheckResetToken is a precheck for the reset form: always 200, validity
// in the body.
func (h *AuthHandler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.CheckResetTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeSuccess(w, http.StatusOK, model.ResetTokenStatus{Valid: false, Error: "Invalid token"})
		return
	}

	if err := h.reset.Check(r.Context(), payload.Token); err != nil {
		writeSuccess(w, http.StatusOK, model.ResetTokenStatus{Valid: false, Error: resetErrorMessage(err)})
		return
	}

	writeSuccess(w, http.StatusOK, model.ResetTokenStatus{Valid: true})
}
