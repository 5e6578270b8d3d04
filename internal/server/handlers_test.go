package server

import (
	"net/http"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(body, &resp), string(body))
	return resp.Message
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "relaychat server is running!", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestTestPageHandler(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(http.MethodGet, "/test", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "/ws?sessionKey=")
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	reg := env.register("alice")
	assert.Equal(t, "Authentication successful", reg.Message)
	assert.Equal(t, "alice", reg.Username)
	assert.Len(t, reg.UserID, 36)
	assert.Len(t, reg.SessionCredential, 36)

	login := env.login("alice")
	assert.Equal(t, reg.UserID, login.UserID)
	assert.NotEqual(t, reg.SessionCredential, login.SessionCredential)
}

func TestAuthResponseKeys(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/register", "/login"} {
		status, body := env.do(http.MethodPost, path, credentialsRequest{"carol", "pw-carol"}, "")
		require.Equal(t, http.StatusOK, status, string(body))

		var raw map[string]any
		require.NoError(t, json.Unmarshal(body, &raw))
		assert.ElementsMatch(t, []string{"message", "sessionCredential", "userId", "username"}, lo.Keys(raw), path)
		assert.Equal(t, "carol", raw["username"])
	}
}

func TestAuthErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	env.register("alice")

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{"register duplicate", "/register", credentialsRequest{"alice", "other"}, http.StatusConflict, "Username already exists."},
		{"register empty password", "/register", credentialsRequest{"bob", ""}, http.StatusBadRequest, "Username and password are required."},
		{"register empty username", "/register", credentialsRequest{"", "pw"}, http.StatusBadRequest, "Username and password are required."},
		{"register long username", "/register", credentialsRequest{strings.Repeat("b", 65), "pw"}, http.StatusBadRequest, "Username is too long."},
		{"register bad body", "/register", "not an object", http.StatusBadRequest, "Invalid request body."},
		{"login wrong password", "/login", credentialsRequest{"alice", "nope"}, http.StatusUnauthorized, "Invalid username or password."},
		{"login unknown user", "/login", credentialsRequest{"zed", "pw"}, http.StatusUnauthorized, "Invalid username or password."},
		{"login empty", "/login", credentialsRequest{"", ""}, http.StatusBadRequest, "Username and password are required."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(http.MethodPost, tc.path, tc.body, "")
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantMsg, errorMessage(t, body))
		})
	}
}

func TestContacts(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register("alice")
	bob := env.register("bob")

	status, body := env.do(http.MethodGet, "/contacts", nil, alice.SessionCredential)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(body))

	status, _ = env.do(http.MethodPost, "/contacts", addContactRequest{ContactUsername: "bob"}, alice.SessionCredential)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(http.MethodGet, "/contacts", nil, alice.SessionCredential)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"id":"`+bob.UserID+`","username":"bob"}]`, string(body))

	status, body = env.do(http.MethodGet, "/contacts", nil, bob.SessionCredential)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[{"id":"`+alice.UserID+`","username":"alice"}]`, string(body))
}

func TestContactsErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	alice := env.register("alice")

	tests := []struct {
		name       string
		method     string
		key        string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{"add without key", http.MethodPost, "", addContactRequest{"bob"}, http.StatusUnauthorized, "Unauthorized: Invalid session key."},
		{"list with unknown key", http.MethodGet, "2b7e1516-28ae-4d2a-abf7-15882bc7f0a1", nil, http.StatusUnauthorized, "Unauthorized: Invalid session key."},
		{"list with malformed key", http.MethodGet, "garbage", nil, http.StatusUnauthorized, "Unauthorized: Invalid session key."},
		{"add empty", http.MethodPost, alice.SessionCredential, addContactRequest{""}, http.StatusBadRequest, "contactUsername cannot be empty"},
		{"add self", http.MethodPost, alice.SessionCredential, addContactRequest{"alice"}, http.StatusBadRequest, "You cannot add yourself as a contact."},
		{"add unknown", http.MethodPost, alice.SessionCredential, addContactRequest{"nobody"}, http.StatusNotFound, "User not found"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, body := env.do(tc.method, "/contacts", tc.body, tc.key)
			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, tc.wantMsg, errorMessage(t, body))
		})
	}
}

func TestSupersededSessionIsRejectedOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)
	first := env.register("alice")
	env.login("alice")

	status, body := env.do(http.MethodGet, "/contacts", nil, first.SessionCredential)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized: Invalid session key.", errorMessage(t, body))
}

func TestUnknownRouteAndMethod(t *testing.T) {
	env := newTestEnv(t, nil)

	status, body := env.do(http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not Found", errorMessage(t, body))

	status, body = env.do(http.MethodGet, "/register", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "Method Not Allowed", errorMessage(t, body))

	status, body = env.do(http.MethodPost, "/ws", nil, "")
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "Method Not Allowed", errorMessage(t, body))
}
