// Package identity keeps the registered users of the relay and their mutual
// contact lists.
package identity

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/apperr"
	"github.com/Tyrowin/relaychat/internal/ids"
	"github.com/Tyrowin/relaychat/internal/session"
)

// UserSummary is the public view of a user.
type UserSummary struct {
	ID       ids.UserID
	Username string
}

// Contact is one entry of a contact list.
type Contact struct {
	ID       ids.UserID `json:"id"`
	Username string     `json:"username"`
}

// SessionIssuer creates the session handed back after registration or login.
type SessionIssuer interface {
	CreateSession(userID ids.UserID, username string) session.Record
}

type user struct {
	id           ids.UserID
	username     string
	passwordHash string

	mu       sync.Mutex
	contacts map[ids.UserID]string
}

func (u *user) summary() UserSummary {
	return UserSummary{ID: u.id, Username: u.username}
}

func (u *user) addContact(other *user) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.contacts[other.id] = other.username
}

// Store holds users keyed by username. Users are never removed and usernames
// never change.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*user
	hasher   PasswordHasher
	sessions SessionIssuer
	log      *zap.Logger

	dummyOnce sync.Once
	dummyHash string
}

// NewStore creates an empty Store. Successful registrations and logins issue
// their session through sessions.
func NewStore(hasher PasswordHasher, sessions SessionIssuer, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		users:    make(map[string]*user),
		hasher:   hasher,
		sessions: sessions,
		log:      log.Named("identity"),
	}
}

// Register creates a user and its first session. The username check, the
// insert and the session creation happen under one hold of the user lock.
func (s *Store) Register(username, password string) (UserSummary, session.Record, error) {
	if username == "" || password == "" {
		return UserSummary{}, session.Record{}, apperr.Public(apperr.ErrInvalidInput, "Username and password are required.")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return UserSummary{}, session.Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[username]; exists {
		return UserSummary{}, session.Record{}, apperr.Public(apperr.ErrAlreadyExists, "Username already exists.")
	}

	u := &user{
		id:           ids.NewUserID(),
		username:     username,
		passwordHash: hash,
		contacts:     make(map[ids.UserID]string),
	}
	s.users[username] = u
	rec := s.sessions.CreateSession(u.id, u.username)

	s.log.Info("registered user", zap.String("username", username), zap.String("user_id", u.id.String()))
	return u.summary(), rec, nil
}

// Authenticate verifies the password and issues a new session, which
// invalidates the user's previous one. Unknown usernames and wrong passwords
// both yield ErrInvalidCredentials.
func (s *Store) Authenticate(username, password string) (UserSummary, session.Record, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()

	if !ok {
		// Spend the same work as a real comparison.
		s.hasher.Verify(s.dummy(), password)
		return UserSummary{}, session.Record{}, errors.WithStack(apperr.ErrInvalidCredentials)
	}
	if !s.hasher.Verify(u.passwordHash, password) {
		return UserSummary{}, session.Record{}, errors.WithStack(apperr.ErrInvalidCredentials)
	}

	rec := s.sessions.CreateSession(u.id, u.username)
	s.log.Info("logged in user", zap.String("username", username), zap.String("user_id", u.id.String()))
	return u.summary(), rec, nil
}

// AddContact makes username and contactUsername contacts of each other. Each
// side is updated under its own lock; the pair is not one transaction, but
// both inserts are idempotent so concurrent adds never lose an entry.
func (s *Store) AddContact(username, contactUsername string) error {
	if contactUsername == "" {
		return apperr.Public(apperr.ErrInvalidInput, "contactUsername cannot be empty")
	}
	if contactUsername == username {
		return apperr.Public(apperr.ErrInvalidInput, "You cannot add yourself as a contact.")
	}

	s.mu.RLock()
	current, okCurrent := s.users[username]
	contact, okContact := s.users[contactUsername]
	s.mu.RUnlock()

	if !okCurrent {
		s.log.Warn("add contact for unknown user", zap.String("username", username))
		return apperr.Public(apperr.ErrNotFound, "User session invalid or user data missing.")
	}
	if !okContact {
		return apperr.Public(apperr.ErrNotFound, "User not found")
	}

	current.addContact(contact)
	contact.addContact(current)

	s.log.Info("added contact",
		zap.String("username", username),
		zap.String("contact", contactUsername))
	return nil
}

// ListContacts returns the contacts of username sorted by username.
func (s *Store) ListContacts(username string) ([]Contact, error) {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		s.log.Warn("list contacts for unknown user", zap.String("username", username))
		return nil, apperr.Public(apperr.ErrNotFound, "User session invalid or user data missing.")
	}

	u.mu.Lock()
	contacts := lo.MapToSlice(u.contacts, func(id ids.UserID, name string) Contact {
		return Contact{ID: id, Username: name}
	})
	u.mu.Unlock()

	sort.Slice(contacts, func(i, j int) bool { return contacts[i].Username < contacts[j].Username })
	return contacts, nil
}

// lookup returns the user registered under username.
func (s *Store) lookup(username string) (UserSummary, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[username]
	if !ok {
		return UserSummary{}, false
	}
	return u.summary(), true
}

// Len returns the number of registered users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *Store) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("relaychat-timing-equalizer")
		if err != nil {
			s.log.Warn("computing dummy password hash failed", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
