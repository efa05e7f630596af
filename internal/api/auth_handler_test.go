package api

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvbuilder/internal/auth"
	"cvbuilder/internal/database"
)

type tokenBody struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == refreshTokenCookieName {
			return c
		}
	}
	t.Fatalf("refresh cookie not set")
	return nil
}

func TestAuthHandler_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"username": "Alice", "password": "s3cret-pass"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"username":"Alice"`)

	w = env.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{"username": "Alice", "password": "another-pass"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "alice", "password": "s3cret-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode[tokenBody](t, w)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.False(t, tokens.MustChangePassword)

	cookie := refreshCookie(t, w.Result())
	assert.True(t, cookie.HttpOnly)
	claims, err := env.auth.ValidateTokenOfType(cookie.Value, auth.TokenTypeRefresh)
	require.NoError(t, err)
	assert.NotZero(t, claims.UserID)

	w = env.do(t, http.MethodGet, "/v1/cvs", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthHandler_RegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"short username", map[string]any{"username": "al", "password": "s3cret-pass"}},
		{"short password", map[string]any{"username": "alice", "password": "short"}},
		{"too long password", map[string]any{"username": "alice", "password": strings.Repeat("x", 73)}},
		{"missing fields", map[string]any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/v1/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuthHandler_LoginFailures(t *testing.T) {
	env := newTestEnv(t)
	hash, err := auth.HashPassword("s3cret-pass")
	require.NoError(t, err)
	require.NoError(t, env.db.Create(&database.User{Username: "alice", PasswordHash: hash}).Error)

	w := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "alice", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Result().Cookies())

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "nobody", "password": "s3cret-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_RefreshRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/auth/refresh", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// 访问令牌不能当作刷新令牌使用。
	_, access := env.user(t, "alice")
	w = env.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]any{"refresh_token": access})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_MustChangePasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	hash, err := auth.HashPassword("initial-pass")
	require.NoError(t, err)
	user := database.User{Username: "admin", PasswordHash: hash, MustChangePassword: true}
	require.NoError(t, env.db.Create(&user).Error)

	w := env.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{"username": "admin", "password": "initial-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	tokens := decode[tokenBody](t, w)
	assert.True(t, tokens.MustChangePassword)

	w = env.do(t, http.MethodGet, "/v1/cvs", tokens.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/change-password", tokens.AccessToken, map[string]any{
		"current_password": "initial-pass",
		"new_password":     "brand-new-pass",
		"confirm_password": "does-not-match",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/change-password", tokens.AccessToken, map[string]any{
		"current_password": "wrong-pass",
		"new_password":     "brand-new-pass",
		"confirm_password": "brand-new-pass",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/v1/auth/change-password", tokens.AccessToken, map[string]any{
		"current_password": "initial-pass",
		"new_password":     "brand-new-pass",
		"confirm_password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	fresh := decode[tokenBody](t, w)
	assert.False(t, fresh.MustChangePassword)

	w = env.do(t, http.MethodGet, "/v1/cvs", fresh.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var stored database.User
	require.NoError(t, env.db.First(&stored, user.ID).Error)
	assert.False(t, stored.MustChangePassword)
	assert.True(t, auth.CheckPasswordHash("brand-new-pass", stored.PasswordHash))
}
