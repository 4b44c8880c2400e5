// Package server exposes the feeds and share links over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lepinkainen/insider-risk-index/pkg/feed"
)

// CacheControl is sent with every feed document
const CacheControl = "public, max-age=3600"

const shutdownTimeout = 10 * time.Second

// Config holds the HTTP layer settings
type Config struct {
	Addr         string
	FetchTimeout time.Duration // bounds each content fetch
	SiteURL      string        // base of generated share links
	Kinds        []string      // kinds served under /{kind}/...
	IndexNowKey  string        // served as /{key}.txt when set

	ShareRateLimit int // POST /api/share requests per client per minute, 0 disables

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Only enable it behind a proxy that overwrites those headers, otherwise
	// clients can pick their own rate limit key.
	TrustProxy bool

	// HealthCheck, when set, must pass for /healthz to report ok
	HealthCheck func(context.Context) error
}

// Server routes requests to the feed builder and the share codec
type Server struct {
	builder *feed.Builder
	config  Config
	router  chi.Router
}

// New creates a server for builder
func New(builder *feed.Builder, config Config) *Server {
	s := &Server{
		builder: builder,
		config:  config,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if s.config.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)

	r.Get("/healthz", s.handleHealth)

	r.Get("/rss.xml", s.feedHandler(feed.RSS))
	r.Get("/atom.xml", s.feedHandler(feed.Atom))
	r.Get("/feed.json", s.feedHandler(feed.JSONFeed))
	r.Get("/sitemap.xml", s.feedHandler(feed.Sitemap))

	r.Route("/{kind}", func(r chi.Router) {
		r.Use(s.knownKind)
		r.Get("/rss.xml", s.feedHandler(feed.RSS))
		r.Get("/atom.xml", s.feedHandler(feed.Atom))
		r.Get("/feed.json", s.feedHandler(feed.JSONFeed))
	})

	r.Route("/api/share", func(r chi.Router) {
		if s.config.ShareRateLimit > 0 {
			r.With(NewRateLimiter(s.config.ShareRateLimit).Middleware).Post("/", s.handleShareEncode)
		} else {
			r.Post("/", s.handleShareEncode)
		}
		r.Get("/{token}", s.handleShareDecode)
	})

	if s.config.IndexNowKey != "" {
		r.Get("/"+s.config.IndexNowKey+".txt", s.handleIndexNowKey)
	}

	return r
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address until ctx is done
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener and shuts down gracefully once ctx is done
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", listener.Addr().String())
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) knownKind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(s.config.Kinds, chi.URLParam(r, "kind")) {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
