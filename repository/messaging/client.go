package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/yashmane1300/two-phase-commit/domain"
)

// ParticipantClient talks to one participant's HTTP endpoint set. Callers
// bound each call with a context; the client itself holds no timeout state.
type ParticipantClient struct {
	ParticipantID string

	baseURL string
	client  *http.Client
}

func NewParticipantClient(participantID, address string) *ParticipantClient {
	return &ParticipantClient{
		ParticipantID: participantID,
		baseURL:       "http://" + address,
		client:        http.DefaultClient,
	}
}

func (c *ParticipantClient) Begin(ctx context.Context, txnID string) (*domain.BeginResponse, error) {
	out := &domain.BeginResponse{}
	err := c.post(ctx, "/begin", &domain.BeginRequest{TransactionID: txnID}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ParticipantClient) Prepare(ctx context.Context, txnID string, operations []domain.Operation) (*domain.PrepareResponse, error) {
	req := &domain.PrepareRequest{
		TransactionID: txnID,
		Operations:    operations,
	}
	out := &domain.PrepareResponse{}
	if err := c.post(ctx, "/prepare", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ParticipantClient) Commit(ctx context.Context, txnID string) (*domain.CommitResponse, error) {
	out := &domain.CommitResponse{}
	err := c.post(ctx, "/commit", &domain.CommitRequest{TransactionID: txnID}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ParticipantClient) Abort(ctx context.Context, txnID string) (*domain.AbortResponse, error) {
	out := &domain.AbortResponse{}
	err := c.post(ctx, "/abort", &domain.AbortRequest{TransactionID: txnID}, out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ParticipantClient) Status(ctx context.Context, txnID string) (*domain.StatusResponse, error) {
	out := &domain.StatusResponse{}
	if err := c.get(ctx, "/status/"+url.PathEscape(txnID), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ParticipantClient) GetResource(ctx context.Context, key string) (*domain.ResourceResponse, error) {
	out := &domain.ResourceResponse{}
	if err := c.get(ctx, "/resource/"+url.PathEscape(key), out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ParticipantClient) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *ParticipantClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}

	return c.do(req, out)
}

func (c *ParticipantClient) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call participant %s: %w", c.ParticipantID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("participant %s returned %d: %s", c.ParticipantID, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from participant %s: %w", c.ParticipantID, err)
	}
	return nil
}
