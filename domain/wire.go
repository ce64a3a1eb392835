package domain

// Wire payloads for the HTTP/JSON surface. Field names are part of the
// protocol contract and must not change.

type BeginRequest struct {
	TransactionID string `json:"transaction_id"`
}

type BeginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PrepareRequest struct {
	TransactionID string      `json:"transaction_id"`
	Operations    []Operation `json:"operations"`
}

type PrepareResponse struct {
	Prepared bool   `json:"prepared"`
	Message  string `json:"message"`
}

type CommitRequest struct {
	TransactionID string `json:"transaction_id"`
}

type CommitResponse struct {
	Committed bool   `json:"committed"`
	Message   string `json:"message"`
}

type AbortRequest struct {
	TransactionID string `json:"transaction_id"`
}

type AbortResponse struct {
	Aborted bool   `json:"aborted"`
	Message string `json:"message"`
}

type StatusResponse struct {
	Status  TxnStatus `json:"status"`
	Message string    `json:"message"`
}

type ResourceResponse struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Exists bool   `json:"exists"`
}

type ExecuteRequest struct {
	Operations   []Operation `json:"operations"`
	Participants []string    `json:"participants"`
}

type ExecuteResponse struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	Message       string `json:"message"`
}

type RegisterRequest struct {
	ParticipantID string `json:"participant_id"`
	Address       string `json:"address"`
}

type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TransactionSummary is the per-transaction row returned by the coordinator's
// transaction listing.
type TransactionSummary struct {
	ID              string    `json:"id"`
	Status          TxnStatus `json:"status"`
	Participants    []string  `json:"participants"`
	OperationsCount int       `json:"operations_count"`
	CreatedAt       string    `json:"created_at"`
	UpdatedAt       string    `json:"updated_at"`
}

type ParticipantInfo struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

type HealthResponse struct {
	Status            string `json:"status"`
	Coordinator       string `json:"coordinator"`
	ParticipantsCount int    `json:"participants_count"`
	TransactionsCount int    `json:"transactions_count"`
}
