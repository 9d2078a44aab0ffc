package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fusiondex/internal/analyzer"
	"fusiondex/internal/entities"
	"fusiondex/internal/fusioncache"
	"fusiondex/internal/logging"
	"fusiondex/internal/scoring"
	"fusiondex/internal/services"
	"fusiondex/internal/teams"
)

const (
	spritePrefix        = "/sprites/"
	defaultWriteTimeout = 30 * time.Second
)

// Resolver produces scored fusions for a set of IDs.
type Resolver interface {
	Resolve(ctx context.Context, ids []int) analyzer.Result
	PairScores(ctx context.Context, ids []int) (scoring.PairScoreMap, analyzer.Result)
}

// CacheInfo reports the state of the fusion cache.
type CacheInfo interface {
	Len() int
	Source() fusioncache.Source
	ReadOnly() bool
}

// Options configures a Server. WriteTimeout bounds a whole response, so it
// should exceed the fetch batch timeout.
type Options struct {
	Bind           string
	AllowedOrigins []string
	Resolver       Resolver
	Cache          CacheInfo
	Entities       entities.Directory
	Builder        teams.Builder
	TeamSize       int
	SpritesDir     string
	Offline        bool
	Workers        int
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

// Server is the HTTP front end.
type Server struct {
	opts   Options
	logger *slog.Logger
	router *chi.Mux
	server *http.Server
}

// New builds a server and its routes.
func New(opts Options) *Server {
	if opts.TeamSize <= 0 {
		opts.TeamSize = teams.DefaultTeamSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	s := &Server{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "api-server"),
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestContext)
	s.router.Use(middleware.Recoverer)
	if len(s.opts.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/fusions", s.handleFusions)
		r.Post("/teams", s.handleTeams)
	})
	if dir := strings.TrimSpace(s.opts.SpritesDir); dir != "" {
		fileServer := http.StripPrefix(spritePrefix, http.FileServer(http.Dir(dir)))
		s.router.Get(spritePrefix+"*", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=86400")
			fileServer.ServeHTTP(w, r)
		})
	}
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusNotFound, "not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// requestContext copies chi's request ID into the service context and logs
// each request once it completes.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := services.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)))
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	bind := strings.TrimSpace(s.opts.Bind)
	if bind == "" {
		return services.Wrap(services.ErrConfiguration, "api", "listen", "bind address is empty", nil)
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(listener)
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api shutdown: %w", err)
		}
		s.logger.Info("api server stopped")
		return nil
	}
}
