package domain

import (
	"fmt"
	"time"
)

// TxnStatus is the lifecycle state of a transaction, shared between the
// coordinator's record and each participant's local record. Transitions are
// forward-only within one transaction id.
type TxnStatus string

const (
	StatusInitialized TxnStatus = "INITIALIZED"
	StatusPreparing   TxnStatus = "PREPARING"
	StatusPrepared    TxnStatus = "PREPARED"
	StatusCommitting  TxnStatus = "COMMITTING"
	StatusCommitted   TxnStatus = "COMMITTED"
	StatusAborting    TxnStatus = "ABORTING"
	StatusAborted     TxnStatus = "ABORTED"
	StatusTimeout     TxnStatus = "TIMEOUT"
)

// OperationType is the closed set of operation kinds.
type OperationType string

const (
	OpRead   OperationType = "READ"
	OpWrite  OperationType = "WRITE"
	OpDelete OperationType = "DELETE"
)

func (t OperationType) Valid() bool {
	switch t {
	case OpRead, OpWrite, OpDelete:
		return true
	}
	return false
}

// Operation is a single read, write or delete against one resource key.
// WRITE carries a value; READ and DELETE ignore it.
type Operation struct {
	Key   string        `json:"key"`
	Value string        `json:"value,omitempty"`
	Type  OperationType `json:"type"`
}

// Validate rejects malformed operations before they enter the protocol.
func (o Operation) Validate() error {
	if o.Key == "" {
		return fmt.Errorf("operation has empty key")
	}
	if !o.Type.Valid() {
		return fmt.Errorf("unknown operation type %q", string(o.Type))
	}
	if o.Type == OpWrite && o.Value == "" {
		return fmt.Errorf("WRITE on %q requires a value", o.Key)
	}
	return nil
}

// Transaction is the coordinator-side record. It is mutated only by the
// coordinator's protocol driver and retained for status queries.
type Transaction struct {
	ID           string
	Status       TxnStatus
	Participants []string
	Operations   []Operation
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LocalTransaction is the participant-side record, created by begin and
// mutated by prepare/commit/abort.
type LocalTransaction struct {
	ID         string
	Status     TxnStatus
	Operations []Operation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%q not found", e.Key)
}
