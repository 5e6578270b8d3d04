package server

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/relaychat/internal/metrics"
	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/Tyrowin/relaychat/internal/session"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Connection is one authenticated WebSocket. It is the session.Outbox of its
// credential: the directory enqueues payloads, writePump drains them.
type Connection struct {
	conn    *websocket.Conn
	rec     session.Record
	addr    string
	router  *relay.Router
	limiter *rate.Limiter
	log     *zap.Logger

	maxMessageSize int64

	send   chan []byte
	done   chan struct{}
	closed atomic.Bool
}

var _ session.Outbox = (*Connection)(nil)

func newConnection(conn *websocket.Conn, rec session.Record, addr string, router *relay.Router, cfg Config, log *zap.Logger) *Connection {
	return &Connection{
		conn:    conn,
		rec:     rec,
		addr:    addr,
		router:  router,
		limiter: newRateLimiter(cfg.RateLimit),
		log: log.With(
			zap.String("username", rec.Username),
			zap.String("remote_addr", addr)),
		maxMessageSize: cfg.MaxMessageSize,
		send:           make(chan []byte, cfg.SendQueueSize),
		done:           make(chan struct{}),
	}
}

// Enqueue queues payload for writing without blocking. A full queue means
// the peer is not keeping up: the connection is closed and the payload
// refused.
func (c *Connection) Enqueue(payload []byte) bool {
	if c.closed.Load() {
		return false
	}

	select {
	case c.send <- payload:
		return true
	default:
	}

	metrics.SlowConsumerEvictions.Inc()
	c.log.Warn("send queue full, evicting slow consumer", zap.Int("queue_size", cap(c.send)))
	c.Close()
	return false
}

// Close stops the connection. Safe to call more than once and from any goroutine.
func (c *Connection) Close() {
	if c.closed.CompareAndSwap(false, true) {
		close(c.done)
	}
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// run drives both pumps until the connection ends.
func (c *Connection) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.writePump(gctx) })
	g.Go(c.readPump)
	return g.Wait()
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Connection) setupReadConnection() {
	c.conn.SetReadLimit(c.maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Debug("setting initial read deadline failed", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// classifyReadError decides how a failed read is reported. Ordinary
// disconnects yield nil.
func (c *Connection) classifyReadError(err error) error {
	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("frame exceeded maximum size", zap.Int64("max_bytes", c.maxMessageSize))
		return errors.Wrap(err, "read")
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug("client disconnected", zap.Error(err))
		return nil
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) || c.closed.Load() {
		c.log.Debug("connection closed", zap.Error(err))
		return nil
	}

	c.log.Warn("websocket read error", zap.Error(err))
	return errors.Wrap(err, "read")
}

// readPump reads frames until the socket fails. Frames over the rate limit
// and frames the router cannot use are dropped; neither ends the connection.
func (c *Connection) readPump() error {
	defer c.Close()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return c.classifyReadError(err)
		}

		if !c.limiter.Allow() {
			c.router.Drop(c.rec, errors.Wrapf(relay.ErrRateLimited, "burst %d", c.limiter.Burst()))
			continue
		}

		c.router.Route(c.rec, raw)
	}
}

// writePump is the only writer of the socket. It closes the socket on exit,
// which unblocks readPump.
func (c *Connection) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.closeSocket()
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.writeFrame(websocket.TextMessage, payload); err != nil {
				return err
			}
		case <-ticker.C:
			if err := c.writeFrame(websocket.PingMessage, nil); err != nil {
				return err
			}
		case <-c.done:
			c.writeCloseMessage(websocket.CloseNormalClosure, "session closed")
			return nil
		case <-ctx.Done():
			c.writeCloseMessage(websocket.CloseGoingAway, "server shutting down")
			return nil
		}
	}
}

func (c *Connection) writeFrame(messageType int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return errors.Wrap(err, "set write deadline")
	}
	if err := c.conn.WriteMessage(messageType, payload); err != nil {
		if isExpectedCloseError(err) {
			return nil
		}
		c.log.Warn("websocket write error", zap.Error(err))
		return errors.Wrap(err, "write")
	}
	return nil
}

// writeCloseMessage sends a close frame to the client
func (c *Connection) writeCloseMessage(code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout)); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Debug("writing close message failed", zap.Error(err))
		}
	}
}

// closeSocket safely closes the WebSocket connection with proper error handling
func (c *Connection) closeSocket() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Debug("closing websocket failed", zap.Error(err))
	}
}
