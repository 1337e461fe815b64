// Package api provides the HTTP/HTTPS server and routing for the mirror-authd API.
//
//nolint:revive // "api" is a clear and appropriate package name
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gitlab-mirror/mirrorauth/internal/config"
	"github.com/gitlab-mirror/mirrorauth/internal/logging"
	tlspkg "github.com/gitlab-mirror/mirrorauth/internal/tls"
)

// Server represents the HTTP/HTTPS API server.
type Server struct {
	httpServer      *http.Server
	logger          *logging.Logger
	shutdownTimeout time.Duration
	tls             bool
}

// New creates a new API server serving handler. When TLS is configured the
// key pair is loaded here, generating a self-signed one first if requested.
func New(cfg *config.Config, handler http.Handler, logger *logging.Logger) (*Server, error) {
	readTimeout, err := cfg.GetReadTimeout()
	if err != nil {
		return nil, err
	}
	writeTimeout, err := cfg.GetWriteTimeout()
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := cfg.GetShutdownTimeout()
	if err != nil {
		return nil, err
	}

	server := &Server{
		httpServer: &http.Server{
			Addr:              cfg.ListenAddress(),
			Handler:           handler,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       120 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
		tls:             cfg.TLSEnabled(),
	}

	if !server.tls {
		return server, nil
	}

	if cfg.Server.TLSSelfSigned {
		created, err := tlspkg.EnsureCertificate(cfg.Server.TLSCert, cfg.Server.TLSKey, cfg.Server.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare self-signed certificate: %w", err)
		}
		if created {
			logger.Warn("generated self-signed TLS certificate", map[string]any{"cert": cfg.Server.TLSCert})
		}
	}

	tlsConfig, err := tlspkg.NewServerConfig(cfg.Server.TLSCert, cfg.Server.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create TLS config: %w", err)
	}
	server.httpServer.TLSConfig = tlsConfig

	return server, nil
}

// Start serves requests until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	scheme := "http"
	if s.tls {
		scheme = "https"
	}
	s.logger.Info("starting server", map[string]any{
		"address": ln.Addr().String(),
		"scheme":  scheme,
	})

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.tls {
			// Certificates are already in TLSConfig.
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Handler returns the HTTP handler being served.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
