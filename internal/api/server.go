// Package api provides the HTTP server: the JSON API and the server-rendered
// browse pages.
package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/rs/cors"

	"github.com/fruitsalade/explorer/internal/auth"
	"github.com/fruitsalade/explorer/internal/config"
	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/metrics"
	"github.com/fruitsalade/explorer/internal/storage"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

// Server is the HTTP server.
type Server struct {
	lister storage.Lister
	auth   *auth.Auth
	config *config.Config
	prefix string
	pages  *template.Template
}

// NewServer creates a new server.
func NewServer(lister storage.Lister, authHandler *auth.Auth, cfg *config.Config) *Server {
	return &Server{
		lister: lister,
		auth:   authHandler,
		config: cfg,
		prefix: strings.TrimRight(cfg.BrowsePrefix, "/"),
		pages:  parsePages(),
	}
}

// Handler returns the HTTP handler with logging, metrics and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/login", s.auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/logout", s.auth.HandleLogout)

	// Protected endpoints
	protected := http.NewServeMux()
	protected.HandleFunc("GET /api/v1/browse", s.handleBrowse)
	mux.Handle("/api/v1/browse", s.auth.Middleware(protected))
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		s.sendError(w, http.StatusNotFound, "Not found")
	})

	// Pages. Claims are optional here; the browse controller redirects to
	// the login page when the listing comes back unauthorized.
	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLoginSubmit)
	mux.HandleFunc("POST /logout", s.handleLogoutSubmit)
	mux.HandleFunc("GET /404", s.handleNotFoundPage)
	mux.Handle("GET "+s.prefix+"/{path...}", s.auth.Optional(http.HandlerFunc(s.handleBrowsePage)))
	mux.Handle("POST "+s.prefix+"/{path...}", s.auth.Optional(http.HandlerFunc(s.handleBrowseAction)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.prefix+"/", http.StatusFound)
	})

	return logging.Middleware(metrics.Middleware(s.cors().Handler(mux)))
}

func (s *Server) cors() *cors.Cors {
	if len(s.config.CORSAllowedOrigins) == 0 {
		return cors.Default()
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.config.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type", logging.RequestIDHeader},
		AllowCredentials: true,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleBrowse handles GET /api/v1/browse?path=
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lister.List(r.Context(), r.URL.Query().Get("path"))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	case errors.Is(err, storage.ErrInvalidPath):
		s.sendError(w, http.StatusBadRequest, "Invalid path")
	case errors.Is(err, storage.ErrNotFound):
		s.sendError(w, http.StatusNotFound, "Path not found")
	case errors.Is(err, storage.ErrNotDir):
		s.sendError(w, http.StatusBadRequest, "Path is not a directory")
	default:
		logging.WithContext(r.Context()).Error("browse failed", logging.Err(err))
		s.sendError(w, http.StatusInternalServerError, "Failed to read directory")
	}
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}
