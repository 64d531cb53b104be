package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/mockbird/mockbird/pkg/logging"
)

// Server runs the two listeners: wildcard-subdomain ingress for mock
// traffic and the admin/read API for the dashboard backend.
type Server struct {
	ingressAddr  string
	adminAddr    string
	readTimeout  time.Duration
	writeTimeout time.Duration
	log          *slog.Logger

	ingress http.Handler
	admin   http.Handler

	mu            sync.Mutex
	ingressServer *http.Server
	adminServer   *http.Server
	running       bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the operational logger.
func WithServerLogger(log *slog.Logger) ServerOption {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTimeouts overrides the listener read/write timeouts.
func WithTimeouts(read, write time.Duration) ServerOption {
	return func(s *Server) {
		s.readTimeout = read
		s.writeTimeout = write
	}
}

// NewServer wires the ingress and admin handlers to their listen
// addresses.
func NewServer(ingressAddr, adminAddr string, ingress, admin http.Handler, opts ...ServerOption) *Server {
	s := &Server{
		ingressAddr:  ingressAddr,
		adminAddr:    adminAddr,
		readTimeout:  30 * time.Second,
		writeTimeout: 2 * time.Minute,
		log:          logging.Nop(),
		ingress:      ingress,
		admin:        admin,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches both listeners. The sockets are bound before Start
// returns, so bind failures surface here; serve errors after that are
// logged.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server is already running")
	}

	ingressServer, err := s.listen(s.ingressAddr, s.ingress, "ingress")
	if err != nil {
		return err
	}
	adminServer, err := s.listen(s.adminAddr, s.admin, "admin")
	if err != nil {
		ingressServer.Close()
		return err
	}

	s.ingressServer = ingressServer
	s.adminServer = adminServer
	s.running = true
	s.log.Info("engine started", "ingress_addr", s.ingressAddr, "admin_addr", s.adminAddr)
	return nil
}

func (s *Server) listen(addr string, handler http.Handler, name string) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s on %s: %w", name, addr, err)
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("listener error", "listener", name, "error", err)
		}
	}()
	return srv, nil
}

// Stop gracefully shuts both listeners down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	var errs []error
	if err := s.ingressServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("ingress shutdown: %w", err))
	}
	if err := s.adminServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("admin shutdown: %w", err))
	}

	s.running = false
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
