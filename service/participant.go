package service

import "github.com/yashmane1300/two-phase-commit/domain"

// Participant handles the local side of the two-phase protocol. Every method
// returns a structured result; protocol failures are response fields, never
// errors that escape the service.
type Participant interface {
	Begin(txnID string) *domain.BeginResponse
	Prepare(txnID string, operations []domain.Operation) *domain.PrepareResponse
	Commit(txnID string) *domain.CommitResponse
	Abort(txnID string) *domain.AbortResponse
	Status(txnID string) *domain.StatusResponse
	GetResource(key string) (*domain.ResourceResponse, error)
}
