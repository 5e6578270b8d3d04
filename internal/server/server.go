package server

import (
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/relaychat/internal/identity"
	"github.com/Tyrowin/relaychat/internal/relay"
	"github.com/Tyrowin/relaychat/internal/session"
)

// Server bundles the relay's state with its HTTP surface.
type Server struct {
	log      *zap.Logger
	store    *identity.Store
	dir      *session.Directory
	hub      *Hub
	origins  *originPolicy
	upgrader websocket.Upgrader
	validate *validator.Validate
}

// Option customizes a Server.
type Option func(*serverOptions)

type serverOptions struct {
	hasher     identity.PasswordHasher
	routerOpts []relay.Option
}

// WithPasswordHasher replaces the bcrypt hasher built from Config.BcryptCost.
func WithPasswordHasher(h identity.PasswordHasher) Option {
	return func(o *serverOptions) { o.hasher = h }
}

// WithRouterOptions passes options to the message router.
func WithRouterOptions(opts ...relay.Option) Option {
	return func(o *serverOptions) { o.routerOpts = append(o.routerOpts, opts...) }
}

// New wires the identity store, session directory, router, presence
// broadcaster and hub for cfg.
func New(cfg Config, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = sanitizeConfig(cfg)

	var o serverOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.hasher == nil {
		o.hasher = identity.NewBcryptHasher(cfg.BcryptCost)
	}

	dir := session.NewDirectory(session.NewRegistry(), log)
	router := relay.NewRouter(dir, log, o.routerOpts...)
	presence := relay.NewPresence(dir, log)

	s := &Server{
		log:      log.Named("http"),
		store:    identity.NewStore(o.hasher, dir, log),
		dir:      dir,
		hub:      NewHub(dir, router, presence, cfg, log),
		origins:  newOriginPolicy(cfg.AllowedOrigins, log.Named("origin")),
		validate: validator.New(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.origins.checkOrigin,
	}
	return s
}

// Hub returns the connection hub, for shutdown coordination.
func (s *Server) Hub() *Hub {
	return s.hub
}
