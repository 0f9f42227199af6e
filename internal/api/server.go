// Package api exposes the pipeline's staging, preview, commit, and cancel
// surfaces over HTTP. Rendering and authentication live in the consuming
// application; this layer only translates the pipeline contract.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fluxo-ledger/fluxo/internal/commit"
	"github.com/fluxo-ledger/fluxo/internal/common"
	"github.com/fluxo-ledger/fluxo/internal/model"
	"github.com/fluxo-ledger/fluxo/internal/pipeline"
	"github.com/gorilla/mux"
)

// Server routes the pipeline surfaces.
type Server struct {
	pipeline *pipeline.Pipeline
	router   *mux.Router
}

// NewServer creates the HTTP layer over a pipeline.
func NewServer(p *pipeline.Pipeline) *Server {
	s := &Server{
		pipeline: p,
		router:   mux.NewRouter(),
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", s.handleStage).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", s.handlePreview).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/commit", s.handleCommit).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", s.handleCancel).Methods(http.MethodDelete)

	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return s.router
}

type stageRequest struct {
	Meta    model.SessionMeta        `json:"meta"`
	Records []model.NormalizedRecord `json:"records"`
}

type stageResponse struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Meta.Institution == "" || req.Meta.InvoiceMonth == "" || len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "institution, invoice_month, and records are required")
		return
	}

	ctx := r.Context()
	sessionID, err := s.pipeline.Stage(ctx, req.Meta, req.Records)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	if _, err := s.pipeline.Annotate(ctx, sessionID); err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, stageResponse{SessionID: sessionID})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	preview, err := s.pipeline.GetPreview(r.Context(), sessionID)
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

type commitRequest struct {
	RecordIDs  []int64 `json:"record_ids,omitempty"`
	ConfirmAll bool    `json:"confirm_all"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.ConfirmAll && len(req.RecordIDs) == 0 {
		writeError(w, http.StatusBadRequest, "confirm_all or record_ids is required")
		return
	}

	result, err := s.pipeline.Commit(r.Context(), commit.Request{
		SessionID:  sessionID,
		ConfirmAll: req.ConfirmAll,
		RecordIDs:  req.RecordIDs,
	})
	if err != nil {
		writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	if err := s.pipeline.Cancel(r.Context(), sessionID); err != nil {
		writePipelineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writePipelineError maps the pipeline's error taxonomy onto HTTP statuses.
// Row-scoped commit outcomes never reach here; they travel inside the
// CommitResult body.
func writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "preview expired, re-upload")
	case errors.Is(err, common.ErrDuplicateSession):
		writeError(w, http.StatusConflict, "session already exists")
	case errors.Is(err, common.ErrParse):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrRuleLoad):
		writeError(w, http.StatusServiceUnavailable, "classification rules unavailable, retry")
	default:
		common.LogError(err, "request failed", nil)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		common.LogError(err, "failed to encode response", nil)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
