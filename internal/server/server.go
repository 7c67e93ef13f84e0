// Package server exposes the gateway to client applications over a JSON
// websocket.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"casino-gateway/internal/backend"
	"casino-gateway/internal/config"
	"casino-gateway/internal/events"
	"casino-gateway/internal/game"
	"casino-gateway/internal/metrics"
	"casino-gateway/internal/service"
	"casino-gateway/internal/session"
)

const shutdownTimeout = 10 * time.Second

// SealerFunc creates the signing key of a new connection.
type SealerFunc func() (backend.Sealer, error)

// Server accepts client connections and dispatches their messages.
type Server struct {
	cfg       config.ServerConfig
	registry  *game.Registry
	accounts  *service.AccountService
	streams   events.StreamFactory
	sessions  *session.Store
	newSealer SealerFunc
	history   game.History
	pongWait  time.Duration
	upgrader  websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithSealer replaces the per-connection ed25519 key generator.
func WithSealer(f SealerFunc) Option {
	return func(s *Server) { s.newSealer = f }
}

// WithHistory records games settled by late results.
func WithHistory(h game.History) Option {
	return func(s *Server) { s.history = h }
}

// WithPongWait sets how long a connection may stay silent before it is
// dropped. Pings go out at a quarter of it.
func WithPongWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pongWait = d
		}
	}
}

// New creates a gateway server.
func New(cfg config.ServerConfig, registry *game.Registry, accounts *service.AccountService, streams events.StreamFactory, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		registry: registry,
		accounts: accounts,
		streams:  streams,
		sessions: session.NewStore(),
		pongWait: defaultPongWait,
		newSealer: func() (backend.Sealer, error) {
			return backend.GenerateEd25519Sealer()
		},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sessions returns the live session store.
func (s *Server) Sessions() *session.Store {
	return s.sessions
}

// Router returns the HTTP routes: /ws, /healthz and /metrics.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("Gateway listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("Gateway stopped")
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	sealer, err := s.newSealer()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create session key")
		_ = ws.Close()
		return
	}

	c := &conn{
		server:  s,
		ws:      ws,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		sess:    session.New(uuid.NewString(), sealer),
		limiter: s.limiter(),
	}
	c.serve(r.Context())
}

func (s *Server) limiter() *rate.Limiter {
	if s.cfg.RateLimitPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := s.cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(s.cfg.RateLimitPerSecond), burst)
}
