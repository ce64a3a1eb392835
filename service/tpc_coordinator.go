package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/domain"
	"github.com/yashmane1300/two-phase-commit/internal/telemetry"
)

// TPCCoordinator owns the transaction store and the participant directory,
// and drives the two-phase protocol. Each phase fans out to all participants
// concurrently and joins before the phase completes; the whole driver runs
// under a transaction-wide deadline on top of the per-call timeout.
type TPCCoordinator struct {
	txns      *txnStore
	directory *directory

	callTimeout time.Duration
	txnTimeout  time.Duration

	logger  *zap.Logger
	metrics *telemetry.CoordinatorMetrics
}

func NewTPCCoordinator(callTimeout, txnTimeout time.Duration, logger *zap.Logger, metrics *telemetry.CoordinatorMetrics) *TPCCoordinator {
	return &TPCCoordinator{
		txns:        newTxnStore(),
		directory:   newDirectory(),
		callTimeout: callTimeout,
		txnTimeout:  txnTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// RegisterParticipant upserts a directory entry. Reachability is not checked;
// an unreachable address surfaces as a prepare failure later.
func (c *TPCCoordinator) RegisterParticipant(id, address string) {
	c.directory.register(id, address)
	c.logger.Info("registered participant",
		zap.String("participant_id", id),
		zap.String("address", address))
}

// ExecuteTransaction runs the two-phase protocol synchronously and returns
// once the outcome is known. Failures of any kind are folded into the
// structured response; no error escapes the driver.
func (c *TPCCoordinator) ExecuteTransaction(ctx context.Context, operations []domain.Operation, participants []string) *domain.ExecuteResponse {
	txnID := uuid.NewString()
	now := time.Now()

	c.txns.put(&domain.Transaction{
		ID:           txnID,
		Status:       domain.StatusInitialized,
		Participants: participants,
		Operations:   operations,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	c.metrics.TxnsStarted.Inc()

	c.logger.Info("starting transaction",
		zap.String("transaction_id", txnID),
		zap.Int("participants", len(participants)),
		zap.Int("operations", len(operations)))

	ctx, cancel := context.WithTimeout(ctx, c.txnTimeout)
	defer cancel()

	if !c.preparePhase(ctx, txnID, operations, participants) {
		timedOut := ctx.Err() != nil
		c.abortTransaction(txnID, participants, timedOut)

		if timedOut {
			c.metrics.TxnsTimedOut.Inc()
			c.logger.Error("transaction deadline expired during prepare", zap.String("transaction_id", txnID))
			return &domain.ExecuteResponse{
				Success:       false,
				TransactionID: txnID,
				Message:       "transaction timed out",
			}
		}
		c.metrics.TxnsAborted.Inc()
		c.logger.Error("transaction aborted", zap.String("transaction_id", txnID))
		return &domain.ExecuteResponse{
			Success:       false,
			TransactionID: txnID,
			Message:       "transaction aborted",
		}
	}

	if !c.commitPhase(ctx, txnID, participants) {
		// No recovery is attempted here: already committed participants are
		// not re-aborted, so the distributed state stays inconsistent until
		// reconciled out of band.
		c.logger.Error("commit phase failed; distributed state may be inconsistent",
			zap.String("transaction_id", txnID))
		return &domain.ExecuteResponse{
			Success:       false,
			TransactionID: txnID,
			Message:       "transaction failed during commit phase",
		}
	}

	c.metrics.TxnsCommitted.Inc()
	c.logger.Info("transaction committed", zap.String("transaction_id", txnID))
	return &domain.ExecuteResponse{
		Success:       true,
		TransactionID: txnID,
		Message:       "transaction committed successfully",
	}
}

// preparePhase issues begin+prepare to every participant. A participant's
// failure does not stop the remaining dispatches; only the conjunction of all
// results decides the phase.
func (c *TPCCoordinator) preparePhase(ctx context.Context, txnID string, operations []domain.Operation, participants []string) bool {
	c.setStatus(txnID, domain.StatusPreparing)
	timer := prometheus.NewTimer(c.metrics.PhaseDuration.WithLabelValues("prepare"))
	defer timer.ObserveDuration()

	allPrepared := true
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, participantID := range participants {
		wg.Add(1)
		go func(participantID string) {
			defer wg.Done()

			if err := c.prepareOne(ctx, txnID, operations, participantID); err != nil {
				c.logger.Error("participant failed to prepare",
					zap.String("transaction_id", txnID),
					zap.String("participant_id", participantID),
					zap.Error(err))
				mu.Lock()
				allPrepared = false
				mu.Unlock()
			}
		}(participantID)
	}
	wg.Wait()

	if !allPrepared {
		return false
	}

	c.setStatus(txnID, domain.StatusPrepared)
	c.logger.Info("all participants prepared", zap.String("transaction_id", txnID))
	return true
}

func (c *TPCCoordinator) prepareOne(ctx context.Context, txnID string, operations []domain.Operation, participantID string) error {
	client, err := c.directory.client(participantID)
	if err != nil {
		return fmt.Errorf("resolve participant: %w", err)
	}

	beginCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	beginResp, err := client.Begin(beginCtx, txnID)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if !beginResp.Success {
		return fmt.Errorf("begin rejected: %s", beginResp.Message)
	}

	prepareCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	prepareResp, err := client.Prepare(prepareCtx, txnID, operations)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	if !prepareResp.Prepared {
		return fmt.Errorf("prepare rejected: %s", prepareResp.Message)
	}
	return nil
}

// commitPhase issues commit to every participant. On failure the transaction
// is left in COMMITTING; there is no terminal recovery state for a partial
// commit.
func (c *TPCCoordinator) commitPhase(ctx context.Context, txnID string, participants []string) bool {
	c.setStatus(txnID, domain.StatusCommitting)
	timer := prometheus.NewTimer(c.metrics.PhaseDuration.WithLabelValues("commit"))
	defer timer.ObserveDuration()

	allCommitted := true
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, participantID := range participants {
		wg.Add(1)
		go func(participantID string) {
			defer wg.Done()

			if err := c.commitOne(ctx, txnID, participantID); err != nil {
				c.logger.Error("participant failed to commit",
					zap.String("transaction_id", txnID),
					zap.String("participant_id", participantID),
					zap.Error(err))
				mu.Lock()
				allCommitted = false
				mu.Unlock()
			}
		}(participantID)
	}
	wg.Wait()

	if !allCommitted {
		return false
	}

	c.setStatus(txnID, domain.StatusCommitted)
	c.logger.Info("all participants committed", zap.String("transaction_id", txnID))
	return true
}

func (c *TPCCoordinator) commitOne(ctx context.Context, txnID, participantID string) error {
	client, err := c.directory.client(participantID)
	if err != nil {
		return fmt.Errorf("resolve participant: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	resp, err := client.Commit(callCtx, txnID)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if !resp.Committed {
		return fmt.Errorf("commit rejected: %s", resp.Message)
	}
	return nil
}

// abortTransaction sends abort to every participant in the transaction's set,
// not only those that prepared, ignoring individual failures. It runs on a
// fresh context so aborts still go out after the transaction deadline.
func (c *TPCCoordinator) abortTransaction(txnID string, participants []string, timedOut bool) {
	c.setStatus(txnID, domain.StatusAborting)
	timer := prometheus.NewTimer(c.metrics.PhaseDuration.WithLabelValues("abort"))
	defer timer.ObserveDuration()

	var wg sync.WaitGroup
	for _, participantID := range participants {
		wg.Add(1)
		go func(participantID string) {
			defer wg.Done()

			client, err := c.directory.client(participantID)
			if err != nil {
				return
			}

			callCtx, cancel := context.WithTimeout(context.Background(), c.callTimeout)
			defer cancel()
			if _, err := client.Abort(callCtx, txnID); err != nil {
				c.logger.Warn("abort request failed",
					zap.String("transaction_id", txnID),
					zap.String("participant_id", participantID),
					zap.Error(err))
			}
		}(participantID)
	}
	wg.Wait()

	if timedOut {
		c.setStatus(txnID, domain.StatusTimeout)
	} else {
		c.setStatus(txnID, domain.StatusAborted)
	}
	c.logger.Info("transaction aborted", zap.String("transaction_id", txnID), zap.Bool("timed_out", timedOut))
}

// GetTransactionStatus reports a transaction's state. A missing id reports
// the ABORTED sentinel with a not-found message.
func (c *TPCCoordinator) GetTransactionStatus(txnID string) *domain.StatusResponse {
	txn, ok := c.txns.get(txnID)
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

func (c *TPCCoordinator) ListTransactions() []domain.TransactionSummary {
	txns := c.txns.list()
	summaries := make([]domain.TransactionSummary, 0, len(txns))
	for _, txn := range txns {
		summaries = append(summaries, domain.TransactionSummary{
			ID:              txn.ID,
			Status:          txn.Status,
			Participants:    txn.Participants,
			OperationsCount: len(txn.Operations),
			CreatedAt:       txn.CreatedAt.Format(time.RFC3339Nano),
			UpdatedAt:       txn.UpdatedAt.Format(time.RFC3339Nano),
		})
	}
	return summaries
}

func (c *TPCCoordinator) ListParticipants() []domain.ParticipantInfo {
	return c.directory.list()
}

func (c *TPCCoordinator) Health() *domain.HealthResponse {
	return &domain.HealthResponse{
		Status:            "healthy",
		Coordinator:       "running",
		ParticipantsCount: c.directory.count(),
		TransactionsCount: c.txns.count(),
	}
}

func (c *TPCCoordinator) setStatus(txnID string, status domain.TxnStatus) {
	c.txns.update(txnID, func(txn *domain.Transaction) {
		txn.Status = status
		txn.UpdatedAt = time.Now()
	})
}
