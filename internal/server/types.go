package server

import (
	"strings"

	"github.com/Tyrowin/relaychat/internal/identity"
)

// credentialsRequest is the body of POST /register and POST /login.
type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=72"`
}

// authResponse is returned by a successful registration or login.
type authResponse struct {
	Message           string `json:"message"`
	SessionCredential string `json:"sessionCredential"`
	UserID            string `json:"userId"`
	Username          string `json:"username"`
}

// addContactRequest is the body of POST /contacts.
type addContactRequest struct {
	ContactUsername string `json:"contactUsername" validate:"required,max=64"`
}

type contactResponse = identity.Contact

// errorResponse is the body of every failed request.
type errorResponse struct {
	Message string `json:"message"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
