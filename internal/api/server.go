package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docmerge/internal/config"
	"github.com/dgallion1/docmerge/internal/merge"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Server is the HTTP preview server for a merged docs tree.
type Server struct {
	router chi.Router
	root   string
	merger *merge.Merger
	md     goldmark.Markdown
	log    *slog.Logger
	cfg    config.Config
}

// NewServer serves the tree at root. A nil merger disables POST /api/merge.
func NewServer(root string, merger *merge.Merger, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		root:   root,
		merger: merger,
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		log:    log,
		cfg:    cfg,
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Get("/api/catalog", s.handleCatalog)
		r.Get("/api/outline/*", s.handleOutline)
		r.Get("/view", s.handleView)
		r.Get("/view/*", s.handleView)

		r.Post("/api/merge", s.handleMerge)
		r.Get("/api/stats/merge", s.handleMergeStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
