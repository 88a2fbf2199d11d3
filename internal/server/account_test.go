package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/wanzami-api/internal/auth"
	"github.com/maauso/wanzami-api/internal/identity"
)

func newAccountRouter(accounts *mockAccounts, verifier TokenVerifier) http.Handler {
	logger := testLogger()
	h := NewHandlers(Services{Accounts: accounts}, logger)
	cfg := DefaultConfig()
	cfg.Verifier = verifier
	return NewRouter(h, logger, cfg)
}

func serve(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func cookiesByName(rec *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := make(map[string]*http.Cookie)
	for _, c := range rec.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestRegister(t *testing.T) {
	accounts := &mockAccounts{}
	router := newAccountRouter(accounts, nil)
	reg := identity.Registration{Email: "ada@example.com", Password: "s3cretpass", Username: "ada"}

	accounts.On("Register", mock.Anything, reg).Return("sub-123", nil).Once()
	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, RegisterRequest{
		Email: reg.Email, Password: reg.Password, Username: reg.Username,
	})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "sub-123", decode[RegisterResponse](t, rec).User)

	accounts.On("Register", mock.Anything, reg).Return("", identity.ErrUserExists).Once()
	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, RegisterRequest{
		Email: reg.Email, Password: reg.Password, Username: reg.Username,
	})))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "USER_EXISTS", decode[ErrorResponse](t, rec).Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/register", jsonBody(t, RegisterRequest{
		Email: "not-an-email", Password: "short", Username: "ada",
	})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decode[ErrorResponse](t, rec).Code)

	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_JSON", decode[ErrorResponse](t, rec).Code)

	accounts.AssertExpectations(t)
}

func TestVerifyAndResendCode(t *testing.T) {
	accounts := &mockAccounts{}
	router := newAccountRouter(accounts, nil)

	accounts.On("Confirm", mock.Anything, "ada@example.com", "123456").Return(nil).Once()
	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/verify",
		jsonBody(t, VerifyRequest{Email: "ada@example.com", Code: "123456"})))
	assert.Equal(t, http.StatusOK, rec.Code)

	accounts.On("Confirm", mock.Anything, "ada@example.com", "000000").Return(identity.ErrInvalidCode).Once()
	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/verify",
		jsonBody(t, VerifyRequest{Email: "ada@example.com", Code: "000000"})))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CODE", decode[ErrorResponse](t, rec).Code)

	accounts.On("ResendCode", mock.Anything, "ada@example.com").Return(identity.ErrRateLimited).Once()
	rec = serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/resend-code",
		jsonBody(t, ResendCodeRequest{Email: "ada@example.com"})))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	accounts.AssertExpectations(t)
}

func TestLogin_SetsSessionCookies(t *testing.T) {
	accounts := &mockAccounts{}
	router := newAccountRouter(accounts, nil)
	accounts.On("Login", mock.Anything, "ada@example.com", "s3cretpass").Return(&identity.Tokens{
		AccessToken:  "access",
		IDToken:      "id",
		RefreshToken: "refresh",
		ExpiresIn:    3600,
	}, nil)

	rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		jsonBody(t, LoginRequest{Email: "ada@example.com", Password: "s3cretpass"})))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Login successful", decode[MessageResponse](t, rec).Message)

	cookies := cookiesByName(rec)
	require.Len(t, cookies, 3)
	access := cookies[accessTokenCookie]
	require.NotNil(t, access)
	assert.Equal(t, "access", access.Value)
	assert.Equal(t, 3600, access.MaxAge)
	assert.True(t, access.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, "/", access.Path)

	assert.Equal(t, "id", cookies[idTokenCookie].Value)
	assert.Equal(t, "refresh", cookies[refreshTokenCookie].Value)
	assert.Equal(t, int(refreshTokenMaxAge.Seconds()), cookies[refreshTokenCookie].MaxAge)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"bad credentials", identity.ErrNotAuthorized, http.StatusUnauthorized, "NOT_AUTHORIZED"},
		{"unconfirmed", identity.ErrNotConfirmed, http.StatusForbidden, "USER_NOT_CONFIRMED"},
		{"challenge", identity.ErrChallenge, http.StatusUnauthorized, "CHALLENGE_REQUIRED"},
		{"provider down", identity.ErrProviderUnavailable, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &mockAccounts{}
			router := newAccountRouter(accounts, nil)
			accounts.On("Login", mock.Anything, "ada@example.com", "pw").Return(nil, tt.err)

			rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/login",
				jsonBody(t, LoginRequest{Email: "ada@example.com", Password: "pw"})))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
			assert.Empty(t, rec.Result().Cookies())
		})
	}
}

func TestLogout_ClearsCookies(t *testing.T) {
	tests := []struct {
		name      string
		revokeErr error
	}{
		{"revoked", nil},
		{"revocation fails", errors.New("network down")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := &mockAccounts{}
			router := newAccountRouter(accounts, nil)
			accounts.On("Logout", mock.Anything, "access").Return(tt.revokeErr).Once()

			req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
			req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "access"})
			rec := serve(router, req)

			require.Equal(t, http.StatusOK, rec.Code)
			cookies := cookiesByName(rec)
			for _, name := range []string{accessTokenCookie, idTokenCookie, refreshTokenCookie} {
				require.Contains(t, cookies, name)
				assert.Empty(t, cookies[name].Value)
				assert.Negative(t, cookies[name].MaxAge)
			}
			accounts.AssertExpectations(t)
		})
	}

	t.Run("without session", func(t *testing.T) {
		accounts := &mockAccounts{}
		router := newAccountRouter(accounts, nil)

		rec := serve(router, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		accounts.AssertNotCalled(t, "Logout", mock.Anything, mock.Anything)
	})
}

func TestAccount_Session(t *testing.T) {
	verifier := verifierFunc(func(_ context.Context, token string) (*auth.Claims, error) {
		if token != "good-id" {
			return nil, auth.ErrInvalidToken
		}
		return &auth.Claims{Email: "ada@example.com", TokenUse: "id"}, nil
	})

	signedIn := func(idToken string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/account", nil)
		req.AddCookie(&http.Cookie{Name: idTokenCookie, Value: idToken})
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "access"})
		return req
	}

	t.Run("no cookie", func(t *testing.T) {
		router := newAccountRouter(&mockAccounts{}, verifier)

		rec := serve(router, httptest.NewRequest(http.MethodGet, "/api/account", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "UNAUTHENTICATED", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		accounts := &mockAccounts{}
		router := newAccountRouter(accounts, verifier)

		rec := serve(router, signedIn("forged"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		accounts.AssertNotCalled(t, "Profile", mock.Anything, mock.Anything)
	})

	t.Run("valid token", func(t *testing.T) {
		accounts := &mockAccounts{}
		router := newAccountRouter(accounts, verifier)
		accounts.On("Profile", mock.Anything, "access").Return(&identity.Profile{
			Username:          "sub-123",
			Email:             "ada@example.com",
			PreferredUsername: "ada",
		}, nil)

		rec := serve(router, signedIn("good-id"))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, AccountResponse{
			Username:          "sub-123",
			Email:             "ada@example.com",
			PreferredUsername: "ada",
		}, decode[AccountResponse](t, rec))
	})

	t.Run("revoked access token", func(t *testing.T) {
		accounts := &mockAccounts{}
		router := newAccountRouter(accounts, verifier)
		accounts.On("Profile", mock.Anything, "access").Return(nil, identity.ErrNotAuthorized)

		rec := serve(router, signedIn("good-id"))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUpdateProfile(t *testing.T) {
	request := func(body any) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/account/profile", jsonBody(t, body))
		req.AddCookie(&http.Cookie{Name: idTokenCookie, Value: "id"})
		req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: "access"})
		return req
	}

	t.Run("updates", func(t *testing.T) {
		accounts := &mockAccounts{}
		router := newAccountRouter(accounts, nil)
		accounts.On("UpdateProfile", mock.Anything, "access", identity.ProfileUpdate{
			PreferredUsername: "ada",
			Picture:           "https://img.example/ada.png",
		}).Return(nil)

		rec := serve(router, request(UpdateProfileRequest{Username: "ada", Picture: "https://img.example/ada.png"}))

		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		accounts.AssertExpectations(t)
	})

	t.Run("nothing to update", func(t *testing.T) {
		accounts := &mockAccounts{}
		router := newAccountRouter(accounts, nil)

		rec := serve(router, request(UpdateProfileRequest{}))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "VALIDATION_ERROR", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("no access token", func(t *testing.T) {
		router := newAccountRouter(&mockAccounts{}, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/account/profile", jsonBody(t, UpdateProfileRequest{Username: "ada"}))
		req.AddCookie(&http.Cookie{Name: idTokenCookie, Value: "id"})

		rec := serve(router, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
