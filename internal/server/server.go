// Package server owns the HTTP listener: router assembly, request
// logging, TLS in its four modes, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/silversurfers/silvergate/internal/config"
)

// Server wraps the HTTP server with TLS and lifecycle management.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	acme       *ACMEManager
	proxies    *TrustedProxies
}

// New creates a server around the given application handler. The handler
// receives requests after request-ID, logging and recovery middleware.
func New(cfg *config.Config, app http.Handler, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		proxies: NewTrustedProxies(cfg.Server.TrustedProxies),
	}

	r := chi.NewRouter()

	// RequestID must come first so GetReqID works in the logger middleware.
	r.Use(middleware.RequestID)
	r.Use(requestLoggerMiddleware(logger, s.proxies))
	r.Use(s.accessLogMiddleware)
	r.Use(middleware.Recoverer)

	r.Mount("/", app)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Start runs the server according to the configured TLS mode. It blocks
// until the listener fails or Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	switch s.cfg.TLS.Mode {
	case "off":
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		return s.listen(s.httpServer.ListenAndServe())

	case "static", "selfsigned":
		tlsManager := NewTLSManager(&s.cfg.TLS, s.logger)
		tlsConfig, err := tlsManager.GetTLSConfig(s.hostname())
		if err != nil {
			return fmt.Errorf("failed to configure TLS: %w", err)
		}
		s.httpServer.TLSConfig = tlsConfig
		s.logger.Info("starting HTTPS server", "addr", s.httpServer.Addr, "tls_mode", s.cfg.TLS.Mode)
		return s.listen(s.httpServer.ListenAndServeTLS("", ""))

	case "acme":
		return s.startACME(ctx)

	default:
		return fmt.Errorf("%w: %s", ErrInvalidTLSMode, s.cfg.TLS.Mode)
	}
}

// startACME obtains a certificate via the ACME HTTP-01 flow and serves
// HTTPS with it. A plain HTTP listener answers challenges and redirects
// everything else to HTTPS.
func (s *Server) startACME(ctx context.Context) error {
	acmeCfg := s.cfg.TLS.ACME
	if acmeCfg.Domain == "" {
		acmeCfg.Domain = s.hostname()
	}

	s.acme = NewACMEManager(&acmeCfg, s.logger)

	// The challenge listener must be up before Init contacts the ACME
	// server, otherwise validation requests hit a closed port.
	httpAddr := fmt.Sprintf(":%d", s.cfg.TLS.HTTPPort)
	challengeServer := &http.Server{
		Addr:              httpAddr,
		Handler:           s.challengeOrRedirect(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		s.logger.Info("starting ACME challenge listener", "addr", httpAddr)
		if err := challengeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("challenge listener failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = challengeServer.Shutdown(shutdownCtx)
	}()

	if err := s.acme.Init(ctx); err != nil {
		return fmt.Errorf("ACME initialization failed: %w", err)
	}

	s.httpServer.TLSConfig = s.acme.GetTLSConfig()
	s.logger.Info("starting HTTPS server", "addr", s.httpServer.Addr, "tls_mode", "acme")
	return s.listen(s.httpServer.ListenAndServeTLS("", ""))
}

// challengeOrRedirect serves ACME challenges on the HTTP port and sends
// every other request to the HTTPS origin.
func (s *Server) challengeOrRedirect() http.Handler {
	challenges := s.acme.ChallengeHandler()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/.well-known/acme-challenge/") {
			challenges.ServeHTTP(w, r)
			return
		}
		target := s.cfg.ExternalOrigin + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

func (s *Server) listen(err error) error {
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// hostname extracts the host part of the external origin for certificate
// subjects. Falls back to localhost when the origin is unset.
func (s *Server) hostname() string {
	origin := s.cfg.ExternalOrigin
	origin = strings.TrimPrefix(origin, "https://")
	origin = strings.TrimPrefix(origin, "http://")
	if i := strings.IndexByte(origin, '/'); i >= 0 {
		origin = origin[:i]
	}
	if i := strings.LastIndexByte(origin, ':'); i >= 0 && !strings.Contains(origin, "]") {
		origin = origin[:i]
	}
	if origin == "" {
		return "localhost"
	}
	return origin
}
