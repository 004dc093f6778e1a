// Package server is the reference remote authority: it stores each user's
// jobs, time entries and pay periods as pushed by their devices, serves them
// back for pulls, and notifies a user's other devices over a websocket when
// something changed.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/punchclock/am"
	"github.com/teranos/punchclock/auth"
	"github.com/teranos/punchclock/errors"
	"github.com/teranos/punchclock/logger"
)

const (
	// ShutdownTimeout bounds how long Stop waits for connections and goroutines
	ShutdownTimeout = 15 * time.Second

	// SessionCleanupInterval is how often expired sessions are purged
	SessionCleanupInterval = time.Hour

	readHeaderTimeout = 10 * time.Second
)

// State is the server lifecycle state
type State int32

const (
	StateRunning  State = iota // Normal operation
	StateDraining              // Shutdown in progress, health reports unavailable
	StateStopped               // Shutdown complete
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Server is the remote authority
type Server struct {
	db         *sql.DB
	store      *Store
	auth       *auth.Service
	middleware *auth.Middleware
	hub        *Hub
	mux        *http.ServeMux
	logger     *zap.SugaredLogger

	httpServer *http.Server
	state      atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server over a database migrated with db.SchemaRemote and
// starts its background session cleanup
func New(db *sql.DB, cfg am.ServerConfig, log *zap.SugaredLogger) (*Server, error) {
	if log == nil {
		log = logger.Logger
	}
	log = log.With(logger.FieldComponent, "server")

	svc, err := auth.NewService(cfg, auth.NewStore(db), log)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create auth service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		db:         db,
		store:      NewStore(db),
		auth:       svc,
		middleware: auth.NewMiddleware(svc, log),
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
	}
	s.hub = newHub(ctx, &s.wg, cfg.AllowedOrigins, log)
	s.setupRoutes()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.state.Store(int32(StateRunning))

	s.wg.Add(1)
	go s.cleanupSessions()

	return s, nil
}

// Auth exposes the session service (token issuing for the CLI)
func (s *Server) Auth() *auth.Service {
	return s.auth
}

// Hub exposes the change notification hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP handler serving the whole API
func (s *Server) Handler() http.Handler {
	return s.withRequestID(s.mux)
}

// State returns the current lifecycle state
func (s *Server) State() State {
	return State(s.state.Load())
}

// Serve accepts connections on l until Stop. It returns nil after a clean
// shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Infow(fmt.Sprintf("HTTP server listening on %s", l.Addr()),
		logger.FieldAddress, l.Addr().String())

	err := s.httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrap(err, "server failed")
}

// ListenAndServe binds port (0 picks a free one) and serves
func (s *Server) ListenAndServe(port int) error {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.WithHintf(errors.Wrapf(err, "failed to listen on port %d", port),
			"is another punchclock server running? set server.port or pass --port")
	}
	return s.Serve(l)
}

// Stop drains HTTP requests, closes change feed connections and waits for
// background goroutines
func (s *Server) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateDraining)) {
		return nil
	}
	s.logger.Infow("Initiating server shutdown")

	ctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	var shutdownErr error
	// Hijacked websocket connections are not tracked by Shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		shutdownErr = errors.Wrap(err, "http shutdown")
	}

	if n := s.hub.closeAll(); n > 0 {
		s.logger.Infow("Closed change feed connections", logger.FieldCount, n)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-ctx.Done():
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit", "timeout", ShutdownTimeout)
	}

	s.state.Store(int32(StateStopped))
	s.logger.Infow("Server shutdown complete", "notification_drops", s.hub.Drops())
	return shutdownErr
}

func (s *Server) cleanupSessions() {
	defer s.wg.Done()
	ticker := time.NewTicker(SessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			n, err := s.auth.Store().CleanupExpiredSessions(s.ctx)
			if err != nil {
				s.logger.Warnw("Session cleanup failed", logger.FieldError, err)
				continue
			}
			if n > 0 {
				s.logger.Infow("Expired sessions removed", logger.FieldCount, n)
			}
		}
	}
}

// withRequestID tags every request with an id for log correlation
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}
