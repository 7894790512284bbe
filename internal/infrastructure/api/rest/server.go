package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/infrastructure/storage"
	"github.com/reactant-dev/reactant/pkg/notebook"
)

// NotebookService is the slice of the coordinator the HTTP surface needs.
type NotebookService interface {
	OpenFirst() (*storage.Snapshot, error)
	CreateNotebook(title string) (*storage.Snapshot, error)
	CreateFromDefinition(def notebook.Definition) (*storage.Snapshot, error)
	Snapshot(notebookID string) (*storage.Snapshot, error)
	ListNotebooks() []*domain.Notebook
	AddCell(notebookID string, kind domain.CellKind, source string) (*domain.Cell, error)
	RemoveCell(notebookID, cellID string) error
	ReorderCells(notebookID string, ids []string) error
}

// Server serves the notebook HTTP API. The reactive path (run commands and
// streamed results) lives on the WebSocket surface; this covers document
// lifecycle and the reorder command.
type Server struct {
	notebooks NotebookService
	mux       *http.ServeMux
	logger    *slog.Logger
}

// NewServer creates the HTTP API server.
func NewServer(notebooks NotebookService, logger *slog.Logger) *Server {
	s := &Server{
		notebooks: notebooks,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /reorder", s.handleReorder)
	s.mux.HandleFunc("GET /api/v1/notebooks", s.handleListNotebooks)
	s.mux.HandleFunc("POST /api/v1/notebooks", s.handleCreateNotebook)
	s.mux.HandleFunc("GET /api/v1/notebooks/{id}", s.handleGetNotebook)
	s.mux.HandleFunc("POST /api/v1/notebooks/{id}/cells", s.handleAddCell)
	s.mux.HandleFunc("DELETE /api/v1/notebooks/{id}/cells/{cellId}", s.handleRemoveCell)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("request received", "method", r.Method, "path", r.URL.Path)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
