package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docchat/internal/config"
	"github.com/dgallion1/docchat/internal/metrics"
	"github.com/dgallion1/docchat/internal/retriever"
	"github.com/dgallion1/docchat/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP API server for docchat.
type Server struct {
	router   chi.Router
	sessions *session.Store
	answers  *retriever.Retriever
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. answers is the retriever
// shared by all sessions; its statistics back /api/stats/answers.
func NewServer(sessions *session.Store, answers *retriever.Retriever, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		answers:  answers,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))
	r.Use(metrics.Middleware())

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats/answers", s.handleAnswerStats)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteSession)
			r.Get("/documents", s.handleListDocuments)
			r.Post("/documents", s.handleUpload)
			r.Post("/ask", s.handleAsk)
			r.Post("/chat", s.handleChat)
			r.Get("/transcript", s.handleTranscript)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
