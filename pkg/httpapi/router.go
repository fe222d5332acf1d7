// Package httpapi exposes the journal, its analyses and the assistant over
// JSON HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/dotsetgreg/daybook/pkg/assistant"
	"github.com/dotsetgreg/daybook/pkg/conversation"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

const shutdownTimeout = 5 * time.Second

// Server wires the HTTP routes to the journal and the conversation gateway.
type Server struct {
	journal *notes.Journal
	gateway *conversation.Gateway
	scores  assistant.ScoreResponder
	logger  *zap.Logger
	origins []string
}

type Option func(*Server)

// WithAllowedOrigins sets the CORS origins. Defaults to any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func NewServer(journal *notes.Journal, gateway *conversation.Gateway, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		journal: journal,
		gateway: gateway,
		logger:  logger,
		origins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(s.logger))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", sessionHeader},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/health", s.healthCheck)
	router.Get("/ready", s.readinessCheck)

	router.Route("/api", func(r chi.Router) {
		r.Post("/ask", s.ask)
		r.Post("/ask/scores", s.askScores)

		r.Get("/analysis", s.analysis)
		r.Get("/analysis/{year}", s.yearlyAnalysis)
		r.Get("/report", s.report)

		r.Route("/notes", func(r chi.Router) {
			r.Post("/toggle-important", s.toggleImportant)
			r.Get("/{date}", s.getNote)
			r.Put("/{date}", s.putNote)
		})
	})

	return router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports ready once the note store can be read.
func (s *Server) readinessCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := s.journal.Snapshot(r.Context()); err != nil {
		s.logger.Warn("Readiness check failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, "note store unavailable")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
