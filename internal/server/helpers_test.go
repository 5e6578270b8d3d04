package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/relaychat/internal/identity"
)

const testOrigin = "http://localhost:8080"

// testEnv is a relay served over httptest.
type testEnv struct {
	t   *testing.T
	srv *Server
	ts  *httptest.Server
}

func newTestEnv(t *testing.T, mutate func(*Config), opts ...Option) *testEnv {
	t.Helper()

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{testOrigin}
	if mutate != nil {
		mutate(&cfg)
	}
	opts = append([]Option{WithPasswordHasher(identity.NewBcryptHasher(bcrypt.MinCost))}, opts...)

	srv := New(cfg, zaptest.NewLogger(t), opts...)
	ts := httptest.NewServer(srv.SetupRoutes())
	t.Cleanup(func() {
		_ = srv.Hub().Shutdown(2 * time.Second)
		ts.Close()
	})
	return &testEnv{t: t, srv: srv, ts: ts}
}

// do sends an HTTP request with an optional JSON body and session key and
// returns the status code and raw body.
func (e *testEnv) do(method, path string, body any, sessionKey string) (int, []byte) {
	e.t.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionKey != "" {
		req.Header.Set(sessionKeyHeader, sessionKey)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(e.t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)
	return resp.StatusCode, data
}

func (e *testEnv) auth(path, username, password string) authResponse {
	e.t.Helper()
	status, body := e.do(http.MethodPost, path, credentialsRequest{Username: username, Password: password}, "")
	require.Equal(e.t, http.StatusOK, status, string(body))

	var resp authResponse
	require.NoError(e.t, json.Unmarshal(body, &resp))
	return resp
}

func (e *testEnv) register(username string) authResponse {
	e.t.Helper()
	return e.auth("/register", username, "pw-"+username)
}

func (e *testEnv) login(username string) authResponse {
	e.t.Helper()
	return e.auth("/login", username, "pw-"+username)
}

func (e *testEnv) wsURL(sessionKey string) string {
	u := "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws"
	if sessionKey != "" {
		u += "?sessionKey=" + sessionKey
	}
	return u
}

// dialWS opens a WebSocket with the given origin and returns the handshake
// response status alongside any error.
func (e *testEnv) dialWS(sessionKey, origin string) (*websocket.Conn, int, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(e.wsURL(sessionKey), headers)
	status := 0
	if resp != nil {
		status = resp.StatusCode
		_ = resp.Body.Close()
	}
	return conn, status, err
}

// connect opens a WebSocket for sessionKey and waits until the hub serves
// wantActive connections, so presence broadcasts that follow are observed.
func (e *testEnv) connect(sessionKey string, wantActive int) *websocket.Conn {
	e.t.Helper()

	conn, _, err := e.dialWS(sessionKey, testOrigin)
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(e.t, func() bool { return e.srv.Hub().Active() == wantActive },
		2*time.Second, 10*time.Millisecond)
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func chatFrame(toUserID, message string) string {
	return `{"type":"chatMessage","toUserId":"` + toUserID + `","message":"` + message + `"}`
}
