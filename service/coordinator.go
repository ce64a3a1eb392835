package service

import (
	"context"

	"github.com/yashmane1300/two-phase-commit/domain"
)

// Coordinator drives the two-phase protocol across the participants of a
// transaction and answers status queries over its records.
type Coordinator interface {
	RegisterParticipant(id, address string)
	ExecuteTransaction(ctx context.Context, operations []domain.Operation, participants []string) *domain.ExecuteResponse
	GetTransactionStatus(txnID string) *domain.StatusResponse
	ListTransactions() []domain.TransactionSummary
	ListParticipants() []domain.ParticipantInfo
	Health() *domain.HealthResponse
}
