// Package relay decides who receives each event: the Router handles the
// frames clients send, the Presence broadcaster announces connections coming
// and going.
package relay

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/ids"
	"github.com/Tyrowin/relaychat/internal/metrics"
	"github.com/Tyrowin/relaychat/internal/protocol"
	"github.com/Tyrowin/relaychat/internal/session"
)

// ErrRateLimited marks a frame discarded because its sender exceeded the
// per-connection rate limit.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrSelfAddressed marks a typingIndicator or readReceipt addressed to its
// own sender. Those kinds never reach the sender's connection.
var ErrSelfAddressed = errors.New("addressed to sender")

// Deliverer enqueues a payload to the live connections of the target users.
type Deliverer interface {
	Deliver(payload []byte, targets ...ids.UserID) int
}

// DropHook observes frames the router discards. It must not block.
type DropHook func(sender session.Record, reason error)

// Router turns inbound frames into outbound events and hands them to the
// directory. A frame it cannot use is dropped; the sender's connection is
// never affected.
type Router struct {
	dir          Deliverer
	log          *zap.Logger
	now          func() time.Time
	newMessageID func() ids.MessageID
	onDrop       DropHook
}

// Option customizes a Router.
type Option func(*Router)

// WithClock sets the source of chat message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithMessageIDs sets the generator of chat message ids.
func WithMessageIDs(gen func() ids.MessageID) Option {
	return func(r *Router) { r.newMessageID = gen }
}

// WithDropHook registers a hook called for every dropped frame, after the
// drop has been logged and counted.
func WithDropHook(hook DropHook) Option {
	return func(r *Router) { r.onDrop = hook }
}

// NewRouter creates a Router delivering through dir.
func NewRouter(dir Deliverer, log *zap.Logger, opts ...Option) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Router{
		dir:          dir,
		log:          log.Named("router"),
		now:          time.Now,
		newMessageID: ids.NewMessageID,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route handles one raw frame sent by sender.
//
//   - chatMessage goes to the target and is echoed to the sender.
//   - typingIndicator goes to the target only.
//   - readReceipt goes to the original sender of the acknowledged message only.
//
// The outbound event is encoded once; every recipient gets the same bytes.
func (r *Router) Route(sender session.Record, raw []byte) {
	in, err := protocol.Decode(raw)
	if err != nil {
		r.Drop(sender, err)
		return
	}

	var (
		frame   any
		targets []ids.UserID
	)
	switch msg := in.(type) {
	case *protocol.ChatMessage:
		frame = protocol.NewChatMessageOut(sender.UserID, sender.Username, msg.ToUserID, r.newMessageID(), r.now(), msg.Message)
		targets = []ids.UserID{msg.ToUserID, sender.UserID}
	case *protocol.TypingIndicator:
		if msg.ToUserID == sender.UserID {
			r.Drop(sender, errors.Wrap(ErrSelfAddressed, "typingIndicator"))
			return
		}
		frame = protocol.NewTypingIndicatorOut(sender.UserID, msg.IsTyping)
		targets = []ids.UserID{msg.ToUserID}
	case *protocol.ReadReceipt:
		if msg.ToUserID == sender.UserID {
			r.Drop(sender, errors.Wrap(ErrSelfAddressed, "readReceipt"))
			return
		}
		frame = protocol.NewReadReceiptOut(sender.UserID, msg.MessageID)
		targets = []ids.UserID{msg.ToUserID}
	}

	payload, err := protocol.Encode(frame)
	if err != nil {
		r.Drop(sender, err)
		return
	}

	delivered := r.dir.Deliver(payload, targets...)
	metrics.EventsRouted.WithLabelValues(string(in.Kind())).Inc()
	r.log.Debug("routed event",
		zap.String("kind", string(in.Kind())),
		zap.String("from", sender.Username),
		zap.Int("delivered", delivered))
}

// Drop records a discarded frame from sender.
func (r *Router) Drop(sender session.Record, reason error) {
	metrics.FramesDropped.WithLabelValues(dropReason(reason)).Inc()
	r.log.Warn("dropped inbound frame",
		zap.String("username", sender.Username),
		zap.String("user_id", sender.UserID.String()),
		zap.Error(reason))
	if r.onDrop != nil {
		r.onDrop(sender, reason)
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return metrics.DropRateLimited
	case errors.Is(err, ErrSelfAddressed):
		return metrics.DropSelfAddressed
	case errors.Is(err, ids.ErrMalformed):
		return metrics.DropBadID
	case errors.Is(err, protocol.ErrUnknownKind):
		return metrics.DropUnknownKind
	case errors.Is(err, protocol.ErrMalformedFrame):
		return metrics.DropMalformed
	default:
		return metrics.DropEncode
	}
}
