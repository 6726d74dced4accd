package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/thewriterben/wildcam-mesh/internal/mesh"
	"github.com/thewriterben/wildcam-mesh/internal/models"
	"github.com/thewriterben/wildcam-mesh/internal/storage"
	"github.com/thewriterben/wildcam-mesh/internal/telemetry"
	"github.com/thewriterben/wildcam-mesh/pkg/utils"
)

// Server is the coordinator's HTTP surface: the task-producer endpoint
// plus read-only diagnostics. Reads come from the persisted snapshots and
// the published stats, never from live core state, so handlers cannot
// race the tick loop.
type Server struct {
	storage     storage.Storage
	coordinator *mesh.Coordinator
	logger      *utils.Logger
	server      *http.Server
}

// NewServer creates a new API server instance
func NewServer(store storage.Storage, coordinator *mesh.Coordinator, addr string) *Server {
	logger := utils.NewLogger("api", utils.INFO)

	s := &Server{
		storage:     store,
		coordinator: coordinator,
		logger:      logger,
	}

	mux := http.NewServeMux()

	// Task producer endpoint
	mux.HandleFunc("/tasks", s.loggingMiddleware(s.handleTasks))

	// Diagnostics endpoints
	mux.HandleFunc("/nodes", s.loggingMiddleware(s.handleNodes))
	mux.HandleFunc("/failures", s.loggingMiddleware(s.handleFailures))
	mux.HandleFunc("/stats", s.loggingMiddleware(s.handleStats))
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", telemetry.MetricsHandler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the API server
func (s *Server) Start() error {
	s.logger.Info("Starting API server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server...")
	return s.server.Shutdown(ctx)
}

// Middleware: Logging
func (s *Server) loggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		s.logger.Debug("%s %s", r.Method, r.URL.Path)

		next(w, r)

		s.logger.Debug("Completed %s %s in %v", r.Method, r.URL.Path, time.Since(start))
	}
}

// handleTasks dispatches new work (POST) or lists the persisted task
// snapshot (GET).
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitTask(w, r)
	case http.MethodGet:
		tasks, err := s.storage.ListTasks(r.Context())
		if err != nil {
			s.errorResponse(w, http.StatusInternalServerError, "failed to list tasks")
			return
		}
		s.jsonResponse(w, http.StatusOK, tasks)
	default:
		s.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	var req models.SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.Type.Valid() {
		s.errorResponse(w, http.StatusBadRequest, "unknown task type")
		return
	}

	task := models.Task{
		ID:        req.TaskID,
		Type:      req.Type,
		Payload:   req.Payload,
		CreatedAt: time.Now(),
	}
	if req.Timeout != "" {
		timeout, err := time.ParseDuration(req.Timeout)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "invalid timeout duration")
			return
		}
		task.Timeout = timeout
	}

	if err := s.coordinator.SubmitTask(task); err != nil {
		s.errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{"task_id": task.ID})
}

// handleNodes lists the persisted node snapshot.
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	nodes, err := s.storage.ListNodes(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list nodes")
		return
	}
	s.jsonResponse(w, http.StatusOK, nodes)
}

// handleFailures lists recent failure events, newest first.
func (s *Server) handleFailures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events, err := s.storage.ListFailureEvents(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list failure events")
		return
	}
	s.jsonResponse(w, http.StatusOK, events)
}

// handleStats returns the stats snapshot from the most recent tick.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.jsonResponse(w, http.StatusOK, s.coordinator.Stats())
}

// handleHealthz reports liveness of the coordinator and its database.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper: JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

// Helper: error response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}
