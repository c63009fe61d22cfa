// Package server exposes ray view sessions over HTTP. Each browser gets its
// own session, keyed by a cookie; state changes are pushed over SSE.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/rayview/internal/rays"
	"github.com/san-kum/rayview/internal/render"
	"github.com/san-kum/rayview/internal/trace"
	"github.com/san-kum/rayview/internal/viewstate"
)

const (
	cookieName      = "rayview"
	cookieKey       = "session"
	shutdownTimeout = 5 * time.Second
	sweepInterval   = time.Minute

	DefaultIdleTimeout = 30 * time.Minute
)

// Config holds configuration for the HTTP server.
type Config struct {
	Addr          string
	SessionSecret string
	// Timeout stops the server after a fixed time. Zero runs until ctx ends.
	Timeout     time.Duration
	IdleTimeout time.Duration

	Ref         string
	Loader      trace.Loader
	Transformer rays.Transformer
	NoticeLimit int

	Theme     string
	NewCamera func() *render.Camera
	Logger    *slog.Logger
}

// Server serves the ray viewer API.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	cookies  *sessions.CookieStore
	registry *Registry
	router   chi.Router
}

// New creates a server. A missing session secret is replaced by a random
// key, so cookies do not survive a restart.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewCamera == nil {
		cfg.NewCamera = render.NewCamera
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
		cfg.Logger.Debug("no session secret configured, using a random key")
	}
	cookies := sessions.NewCookieStore(secret)
	cookies.MaxAge(86400)
	cookies.Options.Path = "/"
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger,
		cookies: cookies,
	}
	s.registry = NewRegistry(s.newSession, cfg.Logger)
	s.router = s.routes()
	return s
}

func (s *Server) newSession() *viewstate.Session {
	return viewstate.New(s.cfg.Loader, s.cfg.Transformer, s.cfg.Ref,
		viewstate.WithLogger(s.logger),
		viewstate.WithNoticeLimit(s.cfg.NoticeLimit),
	)
}

// Registry returns the per-browser session registry.
func (s *Server) Registry() *Registry { return s.registry }

// Handler returns the HTTP handler with all routes mounted.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.RequestLogger(&middleware.DefaultLogFormatter{
			Logger:  slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
			NoColor: true,
		}),
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/", s.handleIndex)

	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/scene", s.handleScene)
		r.Route("/api", func(r chi.Router) {
			r.Get("/state", s.handleState)
			r.Get("/updates", s.handleUpdates)
			r.Delete("/session", s.handleEndSession)

			r.Route("/rays", func(r chi.Router) {
				r.Get("/", s.handleRays)
				r.Post("/toggle", s.handleToggle)
				r.Post("/show-all", s.handleShowAll)
				r.Post("/scatter", s.handleScatter)
				r.Put("/playback/{index}", s.handleSetPlayback)
				r.Post("/playback/step/{delta}", s.handleStepPlayback)
			})
		})
	})
	return r
}

// Serve listens on the configured address and blocks until ctx is cancelled
// or the configured timeout elapses.
func (s *Server) Serve(ctx context.Context) error {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.logger.Info("starting server", "addr", "http://"+ln.Addr().String(), "ref", s.cfg.Ref, "timeout", s.cfg.Timeout)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.router,
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-egctx.Done():
				return nil
			case <-ticker.C:
				s.registry.Sweep(s.cfg.IdleTimeout)
			}
		}
	})

	eg.Go(func() error {
		<-egctx.Done()
		if errors.Is(context.Cause(egctx), context.DeadlineExceeded) {
			s.logger.Info("server timeout reached", "timeout", s.cfg.Timeout)
		}
		// SSE streams end once their sessions close.
		s.registry.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
