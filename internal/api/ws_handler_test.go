package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOriginAllowed(t *testing.T) {
	cases := []struct {
		name    string
		origin  string
		host    string
		allowed []string
		want    bool
	}{
		{"no origin header", "", "api.example.com", nil, true},
		{"same host", "https://api.example.com", "api.example.com", nil, true},
		{"same host different case", "https://API.example.com", "api.example.com", nil, true},
		{"cross origin without allow list", "https://evil.example", "api.example.com", nil, false},
		{"malformed origin", "://bad", "api.example.com", nil, false},
		{"listed origin", "https://app.example.com", "api.example.com", []string{"https://app.example.com"}, true},
		{"unlisted origin", "https://evil.example", "api.example.com", []string{"https://app.example.com"}, false},
		{"same host but not listed", "https://api.example.com", "api.example.com", []string{"https://app.example.com"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, originAllowed(tc.origin, tc.host, tc.allowed))
		})
	}
}

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readCloseCode(t *testing.T, conn *websocket.Conn) int {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	return closeErr.Code
}

func TestWsHandler_RejectsBadAuth(t *testing.T) {
	env := newTestEnv(t)
	_, access := env.user(t, "alice")
	refresh, err := env.auth.GenerateTokenPair(1, false)
	require.NoError(t, err)

	cases := []struct {
		name    string
		message string
	}{
		{"not json", "hello"},
		{"wrong type", `{"type":"subscribe","token":"` + access + `"}`},
		{"invalid token", `{"type":"auth","token":"garbage"}`},
		{"refresh token", `{"type":"auth","token":"` + refresh.RefreshToken + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := dialWS(t, env)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tc.message)))
			assert.Equal(t, websocket.ClosePolicyViolation, readCloseCode(t, conn))
		})
	}
}

func TestWsHandler_RejectsPendingPasswordChange(t *testing.T) {
	env := newTestEnv(t)
	pair, err := env.auth.GenerateTokenPair(1, true)
	require.NoError(t, err)

	conn := dialWS(t, env)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"auth","token":"`+pair.AccessToken+`"}`)))
	assert.Equal(t, websocket.ClosePolicyViolation, readCloseCode(t, conn))
}
