// Package apperr defines the relay's error taxonomy. Callers wrap these
// sentinels with context and match them with errors.Is; the transport layer
// maps them onto status codes with HTTPStatus.
package apperr

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnauthorized: unknown or invalidated session credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidInput: empty required field or self-contact attempt.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAlreadyExists: duplicate username.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound: referenced user absent.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials: login failure. Deliberately does not say whether
	// the username or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// Public wraps sentinel with msg and records msg as the text PublicMessage
// reports to callers.
func Public(sentinel error, msg string) error {
	return errors.WithHint(errors.Wrap(sentinel, msg), msg)
}

// HTTPStatus classifies err into the status code returned to request callers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text safe to show a caller. Errors outside the
// taxonomy are reported generically so internals do not leak.
func PublicMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusUnauthorized:
		if errors.Is(err, ErrInvalidCredentials) {
			return "Invalid username or password."
		}
		return "Unauthorized: Invalid session key."
	case http.StatusInternalServerError:
		return "Internal server error."
	default:
		if hints := errors.GetAllHints(err); len(hints) > 0 {
			return hints[0]
		}
		return err.Error()
	}
}
