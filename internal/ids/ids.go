// Package ids defines the opaque identifiers exchanged by the relay: user ids,
// session credentials and message ids. Each one is a distinct type so a
// username or user id can never be passed where a credential is expected.
package ids

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// canonicalLen is the length of the hyphenated uuid text form.
const canonicalLen = 36

// ErrMalformed is returned when a token is not a canonical, non-nil uuid.
var ErrMalformed = errors.New("malformed identifier")

func parse(kind, s string) (uuid.UUID, error) {
	if len(s) != canonicalLen {
		return uuid.Nil, errors.Wrapf(ErrMalformed, "%s %q", kind, s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Wrapf(ErrMalformed, "%s %q: %v", kind, s, err)
	}
	if u == uuid.Nil {
		return uuid.Nil, errors.Wrapf(ErrMalformed, "%s is the nil uuid", kind)
	}
	return u, nil
}

// UserID identifies a registered user.
type UserID uuid.UUID

// NewUserID returns a fresh random user id.
func NewUserID() UserID { return UserID(uuid.New()) }

// ParseUserID validates s and returns the user id it names.
func ParseUserID(s string) (UserID, error) {
	u, err := parse("user id", s)
	return UserID(u), err
}

func (id UserID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether id was never assigned.
func (id UserID) IsZero() bool { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// MessageID identifies a relayed chat message. The server stamps one on every
// chatMessage it routes; read receipts refer back to it.
type MessageID uuid.UUID

// NewMessageID returns a fresh random message id.
func NewMessageID() MessageID { return MessageID(uuid.New()) }

// ParseMessageID validates s and returns the message id it names.
func ParseMessageID(s string) (MessageID, error) {
	u, err := parse("message id", s)
	return MessageID(u), err
}

func (id MessageID) String() string { return uuid.UUID(id).String() }

func (id MessageID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *MessageID) UnmarshalText(b []byte) error {
	parsed, err := ParseMessageID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Credential is the opaque session token handed to a client at login. It is
// unguessable (122 random bits) and unrelated to the user id.
type Credential struct {
	token string
}

// NewCredential returns a fresh random credential.
func NewCredential() Credential {
	return Credential{token: uuid.NewString()}
}

// ParseCredential validates a token presented by a client.
func ParseCredential(s string) (Credential, error) {
	u, err := parse("credential", s)
	if err != nil {
		return Credential{}, err
	}
	return Credential{token: u.String()}, nil
}

func (c Credential) String() string { return c.token }

// IsZero reports whether c is the empty credential.
func (c Credential) IsZero() bool { return c.token == "" }
