package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/fileflow/fileflow/internal/chain"
	"github.com/fileflow/fileflow/internal/watcher"
	"github.com/fileflow/fileflow/processor"
)

// Server exposes the management API: status, processor listing, reload, and
// a health check.
type Server struct {
	port        int
	registry    *processor.Registry
	executor    *chain.Executor
	dispatcher  *watcher.Dispatcher
	server      *http.Server
	authEnabled bool
	username    string
	password    string
	startTime   time.Time
}

// Response is the standard envelope for API endpoints.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// NewServer creates a management API server.
func NewServer(port int, registry *processor.Registry, executor *chain.Executor, dispatcher *watcher.Dispatcher) *Server {
	return &Server{
		port:       port,
		registry:   registry,
		executor:   executor,
		dispatcher: dispatcher,
		startTime:  time.Now(),
	}
}

// EnableAuth turns on basic authentication for all endpoints except the
// health check.
func (s *Server) EnableAuth(username, password string) {
	s.authEnabled = true
	s.username = username
	s.password = password
}

// Start runs the HTTP server in the background.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.authMiddleware(s.handleStatus))
	mux.HandleFunc("/api/processors", s.authMiddleware(s.handleProcessors))
	mux.HandleFunc("/api/reload", s.authMiddleware(s.handleReload))
	mux.HandleFunc("/api/stats/reset", s.authMiddleware(s.handleResetStats))
	mux.HandleFunc("/api/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: mux,
	}

	go func() {
		log.Printf("Starting API server on port %d", s.port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()
	return nil
}

// Shutdown stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		log.Println("Shutting down API server")
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authEnabled {
			next(w, r)
			return
		}
		username, password, ok := r.BasicAuth()
		if !ok || username != s.username || password != s.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="fileflow"`)
			s.respondWithError(w, http.StatusUnauthorized, "Authorization required")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"watcher":        s.dispatcher.Status(),
			"registry":       s.registry.Stats(),
			"processing":     s.executor.Stats(),
			"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		},
	})
}

func (s *Server) handleProcessors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	infos := make([]processor.Info, 0)
	for _, p := range s.registry.Processors() {
		infos = append(infos, processor.InfoOf(p))
	}
	s.respondWithJSON(w, http.StatusOK, Response{Success: true, Data: infos})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.dispatcher.ReloadProcessors()
	s.respondWithJSON(w, http.StatusOK, Response{Success: true, Data: s.registry.Stats()})
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.executor.ResetStats()
	s.respondWithJSON(w, http.StatusOK, Response{Success: true})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]interface{}{
			"status":         "healthy",
			"watching":       s.dispatcher.Watching(),
			"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		},
	})
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, Response{Success: false, Error: message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding API response: %v", err)
	}
}
