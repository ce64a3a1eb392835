package controller

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/domain"
	"github.com/yashmane1300/two-phase-commit/service"
)

// ParticipantServer adapts a Participant onto its HTTP endpoint set.
type ParticipantServer struct {
	participant service.Participant
	registry    *prometheus.Registry
	logger      *zap.Logger
}

func NewParticipantServer(participant service.Participant, registry *prometheus.Registry, logger *zap.Logger) *ParticipantServer {
	return &ParticipantServer{
		participant: participant,
		registry:    registry,
		logger:      logger,
	}
}

func (s *ParticipantServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /begin", s.handleBegin)
	mux.HandleFunc("POST /prepare", s.handlePrepare)
	mux.HandleFunc("POST /commit", s.handleCommit)
	mux.HandleFunc("POST /abort", s.handleAbort)
	mux.HandleFunc("GET /status/{transaction_id}", s.handleStatus)
	mux.HandleFunc("GET /resource/{key}", s.handleGetResource)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *ParticipantServer) handleBegin(w http.ResponseWriter, r *http.Request) {
	var req domain.BeginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.participant.Begin(req.TransactionID))
}

func (s *ParticipantServer) handlePrepare(w http.ResponseWriter, r *http.Request) {
	var req domain.PrepareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.participant.Prepare(req.TransactionID, req.Operations))
}

func (s *ParticipantServer) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req domain.CommitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.participant.Commit(req.TransactionID))
}

func (s *ParticipantServer) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req domain.AbortRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, s.participant.Abort(req.TransactionID))
}

func (s *ParticipantServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.participant.Status(r.PathValue("transaction_id")))
}

func (s *ParticipantServer) handleGetResource(w http.ResponseWriter, r *http.Request) {
	resp, err := s.participant.GetResource(r.PathValue("key"))
	if err != nil {
		s.logger.Error("resource read failed", zap.Error(err))
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
