package controller

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/domain"
	"github.com/yashmane1300/two-phase-commit/service"
)

// CoordinatorServer adapts a Coordinator onto its HTTP endpoint set.
type CoordinatorServer struct {
	coordinator service.Coordinator
	registry    *prometheus.Registry
	logger      *zap.Logger
}

func NewCoordinatorServer(coordinator service.Coordinator, registry *prometheus.Registry, logger *zap.Logger) *CoordinatorServer {
	return &CoordinatorServer{
		coordinator: coordinator,
		registry:    registry,
		logger:      logger,
	}
}

func (s *CoordinatorServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /execute", s.handleExecute)
	mux.HandleFunc("GET /status/{transaction_id}", s.handleStatus)
	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("GET /participants", s.handleListParticipants)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *CoordinatorServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req domain.ExecuteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	for _, op := range req.Operations {
		if err := op.Validate(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	writeJSON(w, http.StatusOK, s.coordinator.ExecuteTransaction(r.Context(), req.Operations, req.Participants))
}

func (s *CoordinatorServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.GetTransactionStatus(r.PathValue("transaction_id")))
}

func (s *CoordinatorServer) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.ListTransactions())
}

func (s *CoordinatorServer) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.ListParticipants())
}

func (s *CoordinatorServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ParticipantID == "" || req.Address == "" {
		http.Error(w, "participant_id and address are required", http.StatusBadRequest)
		return
	}

	s.coordinator.RegisterParticipant(req.ParticipantID, req.Address)
	writeJSON(w, http.StatusOK, &domain.RegisterResponse{
		Success: true,
		Message: "participant registered",
	})
}

func (s *CoordinatorServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.Health())
}
