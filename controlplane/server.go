package controlplane

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/macnak/simulant/engine"
)

// ServerConfig holds the control-plane listener settings.
type ServerConfig struct {
	// Addr is the listen address. Default ":8081".
	Addr string

	// Version is reported by /api/status.
	Version string

	// Logger receives lifecycle and request events.
	Logger zerolog.Logger

	// Metrics, when set, is served at /metrics.
	Metrics *engine.Metrics
}

// NewRouter builds the /api route tree.
func NewRouter(cfg ServerConfig, store *Store) http.Handler {
	h := &handlers{store: store, version: cfg.Version, logger: cfg.Logger}

	r := chi.NewRouter()
	r.Use(engine.Recovery(cfg.Logger))
	r.Use(engine.RequestID())
	r.Use(requestLogger(cfg.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.health)
		r.Get("/status", h.status)
		r.Get("/endpoints", h.listEndpoints)
		r.Post("/endpoints", h.createEndpoint)
		r.Get("/endpoints/{id}", h.getEndpoint)
		r.Put("/endpoints/{id}", h.updateEndpoint)
		r.Delete("/endpoints/{id}", h.deleteEndpoint)
		r.Post("/config/validate", h.validateConfig)
		r.Post("/config/import", h.importConfig)
		r.Get("/config/export", h.exportConfig)
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	return r
}

// requestLogger logs each API request with method, path, status, duration.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/health" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rec.status).
				Dur("duration", time.Since(start)).
				Msg("api request")
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Server wraps the control-plane http.Server.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// NewServer builds the control-plane listener.
func NewServer(cfg ServerConfig, store *Store) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8081"
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg, store),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// ListenAndServe starts the server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("control plane listening")
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		_ = s.httpServer.Close()
		return err
	}
	s.logger.Info().Msg("control plane stopped")
	return nil
}
