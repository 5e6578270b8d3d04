package server

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/metrics"
	"github.com/Tyrowin/relaychat/internal/protocol"
	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/Tyrowin/relaychat/internal/session"
)

// ErrHubClosed is returned by Serve once Shutdown has started.
var ErrHubClosed = errors.New("hub is shutting down")

// Hub owns the lifecycle of every live connection: it attaches a new
// connection to the directory, announces presence, runs the pumps and cleans
// up when they stop.
type Hub struct {
	dir      *session.Directory
	router   *relay.Router
	presence *relay.Presence
	cfg      Config
	log      *zap.Logger

	mu      sync.Mutex
	closing bool
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	active  atomic.Int64
}

// NewHub creates a Hub serving connections for dir.
func NewHub(dir *session.Directory, router *relay.Router, presence *relay.Presence, cfg Config, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		dir:      dir,
		router:   router,
		presence: presence,
		cfg:      cfg,
		log:      log.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Serve takes ownership of an upgraded socket authenticated as rec. It
// returns once the connection is attached; the pumps keep running until the
// socket fails, the session is invalidated or the hub shuts down.
func (h *Hub) Serve(ws *websocket.Conn, rec session.Record, addr string) error {
	c := newConnection(ws, rec, addr, h.router, h.cfg, h.log.Named("conn"))

	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		c.writeCloseMessage(websocket.CloseGoingAway, "server shutting down")
		c.closeSocket()
		return ErrHubClosed
	}
	h.wg.Add(1)
	h.mu.Unlock()

	if err := h.dir.Attach(rec, c); err != nil {
		h.wg.Done()
		c.writeCloseMessage(websocket.ClosePolicyViolation, "session superseded")
		c.closeSocket()
		return err
	}

	count := h.active.Inc()
	metrics.ConnectionsActive.Inc()
	h.log.Info("connection registered",
		zap.String("username", rec.Username),
		zap.String("remote_addr", addr),
		zap.Int64("active", count))

	h.presence.Announce(rec, protocol.StatusOnline)

	go func() {
		defer h.wg.Done()
		h.serve(c)
	}()
	return nil
}

func (h *Hub) serve(c *Connection) {
	err := c.run(h.ctx)

	h.dir.Detach(c.rec.Credential, c)
	c.Close()
	h.presence.Announce(c.rec, protocol.StatusOffline)

	count := h.active.Dec()
	metrics.ConnectionsActive.Dec()
	fields := []zap.Field{
		zap.String("username", c.rec.Username),
		zap.String("remote_addr", c.addr),
		zap.Int64("active", count),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	h.log.Info("connection unregistered", fields...)
}

// Active returns the number of connections currently served.
func (h *Hub) Active() int {
	return int(h.active.Load())
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info("initiating hub shutdown", zap.Int("active", h.Active()))

	h.mu.Lock()
	h.closing = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.log.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn("hub shutdown timeout reached, some connections may still be running")
		return context.DeadlineExceeded
	}
}
