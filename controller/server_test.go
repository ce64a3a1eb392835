package controller

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/domain"
	"github.com/yashmane1300/two-phase-commit/internal/telemetry"
	"github.com/yashmane1300/two-phase-commit/repository/database"
	"github.com/yashmane1300/two-phase-commit/repository/locks"
	"github.com/yashmane1300/two-phase-commit/service"
)

func startParticipantServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := prometheus.NewRegistry()
	participant := service.NewTPCParticipant(
		"p1",
		database.NewMemoryStore(),
		locks.NewTable(30*time.Second),
		zap.NewNop(),
		telemetry.NewParticipantMetrics(registry),
	)
	server := httptest.NewServer(NewParticipantServer(participant, registry, zap.NewNop()).Routes())
	t.Cleanup(server.Close)
	return server
}

func startCoordinatorServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := prometheus.NewRegistry()
	coordinator := service.NewTPCCoordinator(
		time.Second,
		5*time.Second,
		zap.NewNop(),
		telemetry.NewCoordinatorMetrics(registry),
	)
	server := httptest.NewServer(NewCoordinatorServer(coordinator, registry, zap.NewNop()).Routes())
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	if resp.StatusCode == http.StatusOK && out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestParticipantEndpoints_ProtocolRoundTrip(t *testing.T) {
	server := startParticipantServer(t)

	resp, body := postJSON(t, server.URL+"/begin", `{"transaction_id":"t1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])
	require.Contains(t, body, "message")

	resp, body = postJSON(t, server.URL+"/prepare", `{"transaction_id":"t1","operations":[{"key":"k","value":"v","type":"WRITE"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["prepared"])

	var status map[string]interface{}
	getJSON(t, server.URL+"/status/t1", &status)
	require.Equal(t, "PREPARED", status["status"])

	resp, body = postJSON(t, server.URL+"/commit", `{"transaction_id":"t1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["committed"])

	var resource map[string]interface{}
	getJSON(t, server.URL+"/resource/k", &resource)
	require.Equal(t, "k", resource["key"])
	require.Equal(t, "v", resource["value"])
	require.Equal(t, true, resource["exists"])
}

func TestParticipantEndpoints_AbortAndErrors(t *testing.T) {
	server := startParticipantServer(t)

	_, body := postJSON(t, server.URL+"/abort", `{"transaction_id":"ghost"}`)
	require.Equal(t, false, body["aborted"])

	postJSON(t, server.URL+"/begin", `{"transaction_id":"t2"}`)
	_, body = postJSON(t, server.URL+"/abort", `{"transaction_id":"t2"}`)
	require.Equal(t, true, body["aborted"])

	resp, _ := postJSON(t, server.URL+"/begin", `{not json`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var status map[string]interface{}
	getJSON(t, server.URL+"/status/ghost", &status)
	require.Equal(t, "ABORTED", status["status"])
	require.Contains(t, status["message"], "not found")

	metrics := getJSON(t, server.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestCoordinatorEndpoints(t *testing.T) {
	server := startCoordinatorServer(t)

	resp, body := postJSON(t, server.URL+"/register", `{"participant_id":"p9","address":"host:1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, body["success"])

	var participants []domain.ParticipantInfo
	getJSON(t, server.URL+"/participants", &participants)
	require.Contains(t, participants, domain.ParticipantInfo{ID: "p9", Address: "host:1"})

	resp, _ = postJSON(t, server.URL+"/register", `{"participant_id":"","address":""}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = postJSON(t, server.URL+"/execute", `{"operations":[{"key":"k","type":"UPSERT"}],"participants":[]}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode, "unknown operation type must be rejected")

	var health domain.HealthResponse
	getJSON(t, server.URL+"/health", &health)
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, "running", health.Coordinator)
	require.Equal(t, 1, health.ParticipantsCount)

	var status map[string]interface{}
	getJSON(t, server.URL+"/status/ghost", &status)
	require.Equal(t, "ABORTED", status["status"])

	var txns []domain.TransactionSummary
	getJSON(t, server.URL+"/transactions", &txns)
	require.Empty(t, txns)

	metrics := getJSON(t, server.URL+"/metrics", nil)
	require.Equal(t, http.StatusOK, metrics.StatusCode)
}
