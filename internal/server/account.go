package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/wanzami-api/internal/identity"
)

// Session cookie names.
const (
	accessTokenCookie  = "AccessToken"
	idTokenCookie      = "IdToken"
	refreshTokenCookie = "RefreshToken"
)

const refreshTokenMaxAge = 30 * 24 * time.Hour

// Register handles POST /api/auth/register requests.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.accounts.Register(r.Context(), identity.Registration{
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
	})
	if err != nil {
		h.writeServiceError(w, err, "register")
		return
	}

	writeJSON(w, http.StatusCreated, RegisterResponse{
		Message: "Registration successful. Please check your email for a verification code.",
		User:    sub,
	})
}

// Verify handles POST /api/auth/verify requests.
func (h *Handlers) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.accounts.Confirm(r.Context(), req.Email, req.Code); err != nil {
		h.writeServiceError(w, err, "verify account")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Account verified successfully."})
}

// ResendCode handles POST /api/auth/resend-code requests.
func (h *Handlers) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.accounts.ResendCode(r.Context(), req.Email); err != nil {
		h.writeServiceError(w, err, "resend code")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "A new verification code has been sent."})
}

// Login handles POST /api/auth/login requests and sets the session cookies.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	tokens, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "login")
		return
	}

	ttl := time.Duration(tokens.ExpiresIn) * time.Second
	http.SetCookie(w, h.sessionCookie(accessTokenCookie, tokens.AccessToken, ttl))
	http.SetCookie(w, h.sessionCookie(idTokenCookie, tokens.IDToken, ttl))
	if tokens.RefreshToken != "" {
		http.SetCookie(w, h.sessionCookie(refreshTokenCookie, tokens.RefreshToken, refreshTokenMaxAge))
	}

	writeJSON(w, http.StatusOK, MessageResponse{Message: "Login successful"})
}

// Logout handles POST /api/auth/logout requests. The session cookies are
// cleared even when the provider cannot revoke the tokens.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(accessTokenCookie); err == nil && c.Value != "" {
		if err := h.accounts.Logout(r.Context(), c.Value); err != nil {
			h.logger.Warn("token revocation failed", slog.String("error", err.Error()))
		}
	}

	for _, name := range []string{accessTokenCookie, idTokenCookie, refreshTokenCookie} {
		http.SetCookie(w, h.expiredCookie(name))
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// Account handles GET /api/account requests.
func (h *Handlers) Account(w http.ResponseWriter, r *http.Request) {
	token, ok := accessToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in", "UNAUTHENTICATED")
		return
	}

	p, err := h.accounts.Profile(r.Context(), token)
	if err != nil {
		h.writeServiceError(w, err, "get account")
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{
		Username:          p.Username,
		Email:             p.Email,
		PreferredUsername: p.PreferredUsername,
		Picture:           p.Picture,
	})
}

// UpdateProfile handles POST /api/account/profile requests.
func (h *Handlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := accessToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "not signed in", "UNAUTHENTICATED")
		return
	}

	var req UpdateProfileRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	err := h.accounts.UpdateProfile(r.Context(), token, identity.ProfileUpdate{
		PreferredUsername: req.Username,
		Picture:           req.Picture,
	})
	if err != nil {
		h.writeServiceError(w, err, "update profile")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Profile updated successfully"})
}

func accessToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(accessTokenCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (h *Handlers) sessionCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *Handlers) expiredCookie(name string) *http.Cookie {
	c := h.sessionCookie(name, "", 0)
	c.MaxAge = -1
	return c
}
