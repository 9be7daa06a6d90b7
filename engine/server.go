package engine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/macnak/simulant/config"
)

// ServerConfig holds the data-plane listener settings.
//
// The data plane deliberately sets no read or write timeouts: latency
// samples of many seconds are the product being served and must not be
// truncated by the transport.
type ServerConfig struct {
	// Addr is the listen address. Default ":8080".
	Addr string

	// ShutdownTimeout bounds the graceful-shutdown wait. Default 10s.
	ShutdownTimeout time.Duration

	// Logger receives lifecycle events.
	Logger zerolog.Logger

	// Middleware wraps the catch-all handler, first outermost.
	Middleware []Middleware
}

// NewHandler builds the catch-all data-plane handler: verb check, body
// read, registry lookup, pipeline execution.
func NewHandler(registry *Registry, pipeline *Pipeline, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, ok := config.ParseMethod(r.Method)
		if !ok {
			writeReply(w, PlainText(405, "Method not supported"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.Debug().Err(err).Str("path", r.URL.Path).Msg("request body read failed")
			writeReply(w, PlainText(400, "Request body did not match"))
			return
		}

		ep, ok := registry.Get(method, r.URL.Path)
		if !ok {
			writeReply(w, PlainText(404, "Not Found"))
			return
		}

		reply, err := pipeline.Execute(r.Context(), ep, string(body))
		if err != nil {
			// Caller went away mid-sleep; the send is dropped.
			logger.Debug().
				Str("endpoint", ep.ID).
				Str("path", r.URL.Path).
				Msg("request cancelled during simulated delay")
			return
		}
		writeReply(w, reply)
	})
}

// writeReply emits a fully-determined reply. A status that slipped outside
// the valid range degrades to 500 rather than panicking inside net/http.
func writeReply(w http.ResponseWriter, reply Reply) {
	for key, value := range reply.Headers {
		w.Header().Set(key, value)
	}
	status := reply.Status
	if status < 100 || status > 599 {
		status = http.StatusInternalServerError
	}
	w.WriteHeader(status)
	_, _ = w.Write(reply.Body)
}

// Server wraps the data-plane http.Server with lifecycle logging and
// graceful shutdown.
type Server struct {
	httpServer *http.Server
	config     ServerConfig
	logger     zerolog.Logger
}

// NewServer wires the handler (plus middleware) into a listener.
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if len(cfg.Middleware) > 0 {
		handler = Chain(cfg.Middleware...)(handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:    cfg.Addr,
			Handler: handler,
			// Zero timeouts on purpose; see ServerConfig.
		},
		config: cfg,
		logger: cfg.Logger,
	}
}

// ListenAndServe starts the server and blocks until the context is
// cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.httpServer.Addr).Msg("data plane listening")
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			s.logger.Error().Err(err).Msg("data plane failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("graceful shutdown failed, forcing close")
		_ = s.httpServer.Close()
		return err
	}
	s.logger.Info().Msg("data plane stopped")
	return nil
}
