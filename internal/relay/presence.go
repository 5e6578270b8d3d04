package relay

import (
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/ids"
	"github.com/Tyrowin/relaychat/internal/metrics"
	"github.com/Tyrowin/relaychat/internal/protocol"
	"github.com/Tyrowin/relaychat/internal/session"
)

// Broadcaster enqueues a payload to every live connection but one.
// BroadcastUnlessConnected skips the broadcast while userID has a live
// connection.
type Broadcaster interface {
	Broadcast(payload []byte, except ids.Credential) int
	BroadcastUnlessConnected(payload []byte, userID ids.UserID, except ids.Credential) (int, bool)
}

// Presence announces status transitions to every other connection.
type Presence struct {
	dir Broadcaster
	log *zap.Logger
}

// NewPresence creates a Presence broadcasting through dir.
func NewPresence(dir Broadcaster, log *zap.Logger) *Presence {
	if log == nil {
		log = zap.NewNop()
	}
	return &Presence{dir: dir, log: log.Named("presence")}
}

// Announce tells every live connection except rec's own that rec's user is
// now status. It returns the number of connections notified. An offline
// announcement is suppressed while the user has another live connection,
// which happens when rec was superseded by a newer login.
func (p *Presence) Announce(rec session.Record, status protocol.Status) int {
	payload, err := protocol.Encode(protocol.NewStatusMessageOut(rec.UserID, rec.Username, status))
	if err != nil {
		p.log.Error("encoding status message failed", zap.Error(err))
		return 0
	}

	var n int
	if status == protocol.StatusOffline {
		var sent bool
		n, sent = p.dir.BroadcastUnlessConnected(payload, rec.UserID, rec.Credential)
		if !sent {
			p.log.Debug("skipped offline announcement, user still connected",
				zap.String("username", rec.Username))
			return 0
		}
	} else {
		n = p.dir.Broadcast(payload, rec.Credential)
	}
	metrics.PresenceEvents.WithLabelValues(string(status)).Inc()
	p.log.Info("announced presence",
		zap.String("username", rec.Username),
		zap.String("status", string(status)),
		zap.Int("notified", n))
	return n
}
