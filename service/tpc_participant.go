package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/domain"
	"github.com/yashmane1300/two-phase-commit/internal/telemetry"
	"github.com/yashmane1300/two-phase-commit/repository/database"
	"github.com/yashmane1300/two-phase-commit/repository/locks"
)

// TPCParticipant owns a node's lock table, local transaction store and
// resource storage, and implements the participant side of the protocol.
type TPCParticipant struct {
	id      string
	store   database.Store
	locks   *locks.Table
	txns    *localTxnStore
	logger  *zap.Logger
	metrics *telemetry.ParticipantMetrics
}

func NewTPCParticipant(id string, store database.Store, lockTable *locks.Table, logger *zap.Logger, metrics *telemetry.ParticipantMetrics) *TPCParticipant {
	return &TPCParticipant{
		id:      id,
		store:   store,
		locks:   lockTable,
		txns:    newLocalTxnStore(),
		logger:  logger.With(zap.String("participant_id", id)),
		metrics: metrics,
	}
}

// Begin creates the local record for txnID. A duplicate begin is a failure,
// not a handle to the existing record.
func (p *TPCParticipant) Begin(txnID string) *domain.BeginResponse {
	now := time.Now()
	created := p.txns.create(&domain.LocalTransaction{
		ID:        txnID,
		Status:    domain.StatusInitialized,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if !created {
		return &domain.BeginResponse{
			Success: false,
			Message: fmt.Sprintf("transaction %s already exists", txnID),
		}
	}

	p.logger.Info("started local transaction", zap.String("transaction_id", txnID))
	return &domain.BeginResponse{
		Success: true,
		Message: fmt.Sprintf("transaction %s started successfully", txnID),
	}
}

// Prepare stores the operation list, takes a lock per operation key in list
// order and validates the operations. Any failure releases everything taken
// so far and votes no.
func (p *TPCParticipant) Prepare(txnID string, operations []domain.Operation) *domain.PrepareResponse {
	if _, ok := p.txns.get(txnID); !ok {
		p.metrics.Prepares.WithLabelValues("not_found").Inc()
		return &domain.PrepareResponse{
			Prepared: false,
			Message:  fmt.Sprintf("transaction %s not found", txnID),
		}
	}

	p.setLocalStatus(txnID, domain.StatusPreparing, operations)

	for _, op := range operations {
		if !p.locks.Acquire(op.Key, txnID) {
			p.locks.ReleaseAll(txnID)
			p.metrics.LockContention.Inc()
			p.metrics.Prepares.WithLabelValues("lock_contention").Inc()
			p.logger.Warn("lock contention during prepare",
				zap.String("transaction_id", txnID),
				zap.String("key", op.Key))
			return &domain.PrepareResponse{
				Prepared: false,
				Message:  fmt.Sprintf("failed to acquire locks for transaction %s", txnID),
			}
		}
	}

	if err := p.validate(operations); err != nil {
		p.locks.ReleaseAll(txnID)
		p.metrics.Prepares.WithLabelValues("validation_failed").Inc()
		p.logger.Warn("validation failed during prepare",
			zap.String("transaction_id", txnID),
			zap.Error(err))
		return &domain.PrepareResponse{
			Prepared: false,
			Message:  fmt.Sprintf("validation failed for transaction %s", txnID),
		}
	}

	p.setLocalStatus(txnID, domain.StatusPrepared, nil)
	p.metrics.Prepares.WithLabelValues("prepared").Inc()
	p.logger.Info("prepared transaction", zap.String("transaction_id", txnID))
	return &domain.PrepareResponse{
		Prepared: true,
		Message:  fmt.Sprintf("transaction %s prepared successfully", txnID),
	}
}

// Commit applies the prepared operations in list order. An apply error can
// leave earlier operations in place: nothing is rolled back, the record moves
// to an abort-like state and the vote is no.
func (p *TPCParticipant) Commit(txnID string) *domain.CommitResponse {
	txn, ok := p.txns.get(txnID)
	if !ok {
		p.metrics.Commits.WithLabelValues("not_found").Inc()
		return &domain.CommitResponse{
			Committed: false,
			Message:   fmt.Sprintf("transaction %s not found", txnID),
		}
	}

	if txn.Status != domain.StatusPrepared {
		p.metrics.Commits.WithLabelValues("not_prepared").Inc()
		return &domain.CommitResponse{
			Committed: false,
			Message:   fmt.Sprintf("transaction %s is not prepared (status: %s)", txnID, txn.Status),
		}
	}

	p.setLocalStatus(txnID, domain.StatusCommitting, nil)

	if err := p.apply(txn.Operations); err != nil {
		p.locks.ReleaseAll(txnID)
		p.setLocalStatus(txnID, domain.StatusAborting, nil)
		p.metrics.Commits.WithLabelValues("apply_failed").Inc()
		p.logger.Error("apply failed during commit; earlier operations are not rolled back",
			zap.String("transaction_id", txnID),
			zap.Error(err))
		return &domain.CommitResponse{
			Committed: false,
			Message:   fmt.Sprintf("failed to apply operations for transaction %s", txnID),
		}
	}

	p.locks.ReleaseAll(txnID)
	p.setLocalStatus(txnID, domain.StatusCommitted, nil)
	p.metrics.Commits.WithLabelValues("committed").Inc()
	p.logger.Info("committed transaction", zap.String("transaction_id", txnID))
	return &domain.CommitResponse{
		Committed: true,
		Message:   fmt.Sprintf("transaction %s committed successfully", txnID),
	}
}

// Abort releases the transaction's locks and marks it ABORTED regardless of
// its current state. Aborting an already aborted transaction succeeds again.
func (p *TPCParticipant) Abort(txnID string) *domain.AbortResponse {
	if _, ok := p.txns.get(txnID); !ok {
		return &domain.AbortResponse{
			Aborted: false,
			Message: fmt.Sprintf("transaction %s not found", txnID),
		}
	}

	p.locks.ReleaseAll(txnID)
	p.setLocalStatus(txnID, domain.StatusAborted, nil)
	p.metrics.Aborts.Inc()
	p.logger.Info("aborted transaction", zap.String("transaction_id", txnID))
	return &domain.AbortResponse{
		Aborted: true,
		Message: fmt.Sprintf("transaction %s aborted successfully", txnID),
	}
}

// Status reports the local record's state. A missing record reports ABORTED
// as a sentinel together with a not-found message.
func (p *TPCParticipant) Status(txnID string) *domain.StatusResponse {
	txn, ok := p.txns.get(txnID)
	if !ok {
		return &domain.StatusResponse{
			Status:  domain.StatusAborted,
			Message: fmt.Sprintf("transaction %s not found", txnID),
		}
	}
	return &domain.StatusResponse{
		Status:  txn.Status,
		Message: fmt.Sprintf("transaction %s status: %s", txnID, txn.Status),
	}
}

// GetResource reads storage directly, bypassing transactions and locks.
func (p *TPCParticipant) GetResource(key string) (*domain.ResourceResponse, error) {
	value, exists, err := p.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("read resource %q: %w", key, err)
	}
	return &domain.ResourceResponse{Key: key, Value: value, Exists: exists}, nil
}

func (p *TPCParticipant) setLocalStatus(txnID string, status domain.TxnStatus, operations []domain.Operation) {
	p.txns.update(txnID, func(txn *domain.LocalTransaction) {
		txn.Status = status
		if operations != nil {
			txn.Operations = operations
		}
		txn.UpdatedAt = time.Now()
	})
}

func (p *TPCParticipant) validate(operations []domain.Operation) error {
	for _, op := range operations {
		if err := op.Validate(); err != nil {
			return err
		}
		if op.Type == domain.OpRead || op.Type == domain.OpDelete {
			exists, err := p.store.Exists(op.Key)
			if err != nil {
				return fmt.Errorf("check %q: %w", op.Key, err)
			}
			if !exists {
				return fmt.Errorf("%s on missing key %q", op.Type, op.Key)
			}
		}
	}
	return nil
}

func (p *TPCParticipant) apply(operations []domain.Operation) error {
	for _, op := range operations {
		switch op.Type {
		case domain.OpRead:
			// Reads were validated during prepare and carry no effect.
		case domain.OpWrite:
			if err := p.store.Set(op.Key, op.Value); err != nil {
				return fmt.Errorf("write %q: %w", op.Key, err)
			}
		case domain.OpDelete:
			// A key deleted since validation is not an error.
			if err := p.store.Delete(op.Key); err != nil {
				return fmt.Errorf("delete %q: %w", op.Key, err)
			}
		default:
			return fmt.Errorf("unknown operation type %q", string(op.Type))
		}
	}
	return nil
}
