package rest

import (
	"encoding/json"
	"net/http"

	"github.com/reactant-dev/reactant/internal/domain"
	"github.com/reactant-dev/reactant/internal/domain/errors"
	"github.com/reactant-dev/reactant/internal/infrastructure/storage"
	"github.com/reactant-dev/reactant/pkg/notebook"
)

// handleIndex returns the first open notebook, creating a seeded one when the
// server has none yet.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.notebooks.OpenFirst()
	if err != nil {
		s.logger.Error("failed to open notebook", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not open notebook")
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleListNotebooks(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.notebooks.ListNotebooks())
}

func (s *Server) handleCreateNotebook(w http.ResponseWriter, r *http.Request) {
	var def notebook.Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if def.Title == "" {
		def.Title = "Untitled Notebook"
	}

	var snapshot *storage.Snapshot
	var err error
	if len(def.Cells) > 0 {
		snapshot, err = s.notebooks.CreateFromDefinition(def)
	} else {
		snapshot, err = s.notebooks.CreateNotebook(def.Title)
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, snapshot)
}

func (s *Server) handleGetNotebook(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.notebooks.Snapshot(r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, snapshot)
}

type addCellRequest struct {
	CellType domain.CellKind `json:"cellType"`
	Content  string          `json:"content"`
}

func (s *Server) handleAddCell(w http.ResponseWriter, r *http.Request) {
	var req addCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.CellType == "" {
		req.CellType = domain.CellKindReactiveCode
	}
	if !req.CellType.IsValid() {
		s.writeError(w, http.StatusBadRequest, "invalid cell type")
		return
	}

	cell, err := s.notebooks.AddCell(r.PathValue("id"), req.CellType, req.Content)
	if err != nil && cell == nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	// A parse error still created the cell; report both.
	response := map[string]any{"status": "ok", "cell": cell}
	if err != nil {
		response["status"] = "parse-error"
		response["message"] = err.Error()
	}
	s.writeJSON(w, http.StatusCreated, response)
}

func (s *Server) handleRemoveCell(w http.ResponseWriter, r *http.Request) {
	if err := s.notebooks.RemoveCell(r.PathValue("id"), r.PathValue("cellId")); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reorderRequest struct {
	NotebookID string   `json:"notebookUuid"`
	NewOrder   []string `json:"newOrder"`
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.notebooks.ReorderCells(req.NotebookID, req.NewOrder); err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statusFor(err error) int {
	switch {
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsCycle(err), errors.IsParseError(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
