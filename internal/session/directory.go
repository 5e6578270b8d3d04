// Package session owns the two shared maps of the relay: session credential
// to session record (Directory) and session credential to live outbox
// (Registry).
//
// Whenever both maps are touched together the session lock is taken before
// the connection lock. Nothing in this package performs socket I/O while
// holding either lock; outboxes are only ever enqueued to or closed.
package session

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/apperr"
	"github.com/Tyrowin/relaychat/internal/ids"
	"github.com/Tyrowin/relaychat/internal/metrics"
)

// Record is an issued session.
type Record struct {
	UserID     ids.UserID
	Username   string
	Credential ids.Credential
}

// Directory maps credentials to session records and enforces a single active
// session per user.
type Directory struct {
	mu       sync.RWMutex
	sessions map[ids.Credential]Record
	conns    *Registry
	log      *zap.Logger
}

// NewDirectory creates a Directory whose invalidations close connections in conns.
func NewDirectory(conns *Registry, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		sessions: make(map[ids.Credential]Record),
		conns:    conns,
		log:      log.Named("sessions"),
	}
}

// Registry returns the connection registry the directory guards.
func (d *Directory) Registry() *Registry { return d.conns }

// CreateSession issues a new credential for the user. Every earlier session of
// the same user is removed in the same critical section, and any connection
// still open under one of them is unregistered and closed.
func (d *Directory) CreateSession(userID ids.UserID, username string) Record {
	rec := Record{UserID: userID, Username: username, Credential: ids.NewCredential()}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.conns.mu.Lock()
	defer d.conns.mu.Unlock()

	for cred, old := range d.sessions {
		if old.UserID != userID {
			continue
		}
		delete(d.sessions, cred)
		metrics.SessionsInvalidated.Inc()
		if ob, ok := d.conns.entries[cred]; ok {
			delete(d.conns.entries, cred)
			ob.Close()
			d.log.Info("closed connection of superseded session",
				zap.String("username", username),
				zap.String("user_id", userID.String()))
		}
	}
	d.sessions[rec.Credential] = rec
	metrics.SessionsCreated.Inc()

	return rec
}

// Resolve returns the session record for cred.
func (d *Directory) Resolve(cred ids.Credential) (Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.sessions[cred]
	if !ok {
		return Record{}, errors.Wrap(apperr.ErrUnauthorized, "resolve session")
	}
	return rec, nil
}

// Attach registers ob as the live connection of rec. It fails with
// ErrUnauthorized when rec was superseded after it was resolved, so a socket
// upgraded on a stale credential never becomes reachable.
func (d *Directory) Attach(rec Record, ob Outbox) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.sessions[rec.Credential]; !ok {
		return errors.Wrap(apperr.ErrUnauthorized, "attach connection")
	}
	d.conns.Register(rec.Credential, ob)
	return nil
}

// Detach removes the registry entry for cred if it still points at ob.
func (d *Directory) Detach(cred ids.Credential, ob Outbox) bool {
	return d.conns.release(cred, ob)
}

// Deliver enqueues payload to every live connection whose session belongs to
// one of targets and returns how many outboxes accepted it. Both maps stay
// read-locked for the whole routing decision, which keeps per-sender order
// on each recipient.
func (d *Directory) Deliver(payload []byte, targets ...ids.UserID) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.conns.mu.RLock()
	defer d.conns.mu.RUnlock()

	delivered := 0
	for _, target := range lo.Uniq(targets) {
		for _, ob := range d.conns.channelsForUserLocked(d.lookupLocked, target) {
			if ob.Enqueue(payload) {
				delivered++
			}
		}
	}
	return delivered
}

// Broadcast enqueues payload to every live connection except the one
// registered under except.
func (d *Directory) Broadcast(payload []byte, except ids.Credential) int {
	delivered := 0
	for _, e := range d.conns.AllExcept(except) {
		if e.Outbox.Enqueue(payload) {
			delivered++
		}
	}
	return delivered
}

// BroadcastUnlessConnected is Broadcast for a departure: nothing is sent
// when userID still has a live connection, as after a re-login. The check and
// the enqueues share one hold of both locks, so an Attach for the same user
// lands entirely before or after. The bool reports whether it broadcast.
func (d *Directory) BroadcastUnlessConnected(payload []byte, userID ids.UserID, except ids.Credential) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.conns.mu.RLock()
	defer d.conns.mu.RUnlock()

	if len(d.conns.channelsForUserLocked(d.lookupLocked, userID)) > 0 {
		return 0, false
	}

	delivered := 0
	for cred, ob := range d.conns.entries {
		if cred == except {
			continue
		}
		if ob.Enqueue(payload) {
			delivered++
		}
	}
	return delivered, true
}

// sessionCount returns the number of active sessions.
func (d *Directory) sessionCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}

func (d *Directory) lookupLocked(cred ids.Credential) (Record, bool) {
	rec, ok := d.sessions[cred]
	return rec, ok
}
