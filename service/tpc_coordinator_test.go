package service_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yashmane1300/two-phase-commit/controller"
	"github.com/yashmane1300/two-phase-commit/domain"
	"github.com/yashmane1300/two-phase-commit/internal/telemetry"
	"github.com/yashmane1300/two-phase-commit/repository/database"
	"github.com/yashmane1300/two-phase-commit/repository/locks"
	"github.com/yashmane1300/two-phase-commit/service"
)

func newTestCoordinator(t *testing.T, callTimeout, txnTimeout time.Duration) *service.TPCCoordinator {
	t.Helper()
	metrics := telemetry.NewCoordinatorMetrics(prometheus.NewRegistry())
	return service.NewTPCCoordinator(callTimeout, txnTimeout, zap.NewNop(), metrics)
}

// startParticipant runs a full participant node behind an HTTP test server
// and returns its address for directory registration.
func startParticipant(t *testing.T, id string, store database.Store) (string, *service.TPCParticipant) {
	t.Helper()
	lockTable := locks.NewTable(30 * time.Second)
	metrics := telemetry.NewParticipantMetrics(prometheus.NewRegistry())
	participant := service.NewTPCParticipant(id, store, lockTable, zap.NewNop(), metrics)

	server := httptest.NewServer(controller.NewParticipantServer(participant, prometheus.NewRegistry(), zap.NewNop()).Routes())
	t.Cleanup(server.Close)

	return strings.TrimPrefix(server.URL, "http://"), participant
}

func TestExecuteTransaction_CommitsAcrossParticipants(t *testing.T) {
	coordinator := newTestCoordinator(t, 2*time.Second, 10*time.Second)

	store1 := database.NewMemoryStore()
	store2 := database.NewMemoryStore()
	addr1, p1 := startParticipant(t, "p1", store1)
	addr2, p2 := startParticipant(t, "p2", store2)
	coordinator.RegisterParticipant("p1", addr1)
	coordinator.RegisterParticipant("p2", addr2)

	resp := coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
		{Key: "a", Value: "1", Type: domain.OpWrite},
		{Key: "b", Value: "2", Type: domain.OpWrite},
	}, []string{"p1", "p2"})

	require.True(t, resp.Success)
	require.NotEmpty(t, resp.TransactionID)

	status := coordinator.GetTransactionStatus(resp.TransactionID)
	require.Equal(t, domain.StatusCommitted, status.Status)

	for _, participant := range []*service.TPCParticipant{p1, p2} {
		a, err := participant.GetResource("a")
		require.NoError(t, err)
		require.True(t, a.Exists)
		require.Equal(t, "1", a.Value)

		b, err := participant.GetResource("b")
		require.NoError(t, err)
		require.True(t, b.Exists)
		require.Equal(t, "2", b.Value)
	}
}

func TestExecuteTransaction_AbortsWhenValidationFails(t *testing.T) {
	coordinator := newTestCoordinator(t, 2*time.Second, 10*time.Second)

	store1 := database.NewMemoryStore()
	store2 := database.NewMemoryStore()
	addr1, p1 := startParticipant(t, "p1", store1)
	addr2, p2 := startParticipant(t, "p2", store2)
	coordinator.RegisterParticipant("p1", addr1)
	coordinator.RegisterParticipant("p2", addr2)

	resp := coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
		{Key: "x", Value: "1", Type: domain.OpWrite},
		{Key: "missing_key", Type: domain.OpRead},
	}, []string{"p1", "p2"})

	require.False(t, resp.Success)
	require.Equal(t, domain.StatusAborted, coordinator.GetTransactionStatus(resp.TransactionID).Status)

	// No writes anywhere, and both locals ended aborted.
	for _, participant := range []*service.TPCParticipant{p1, p2} {
		x, err := participant.GetResource("x")
		require.NoError(t, err)
		require.False(t, x.Exists)

		require.Equal(t, domain.StatusAborted, participant.Status(resp.TransactionID).Status)
	}
}

// slowStore delays writes so a committing transaction holds its locks long
// enough for a concurrent transaction to collide on the same key.
type slowStore struct {
	database.Store
	delay time.Duration
}

func (s *slowStore) Set(key, value string) error {
	time.Sleep(s.delay)
	return s.Store.Set(key, value)
}

func TestExecuteTransaction_ConcurrentWritersSerializeOnKey(t *testing.T) {
	coordinator := newTestCoordinator(t, 2*time.Second, 10*time.Second)

	inner := database.NewMemoryStore()
	addr, _ := startParticipant(t, "p1", &slowStore{Store: inner, delay: 150 * time.Millisecond})
	coordinator.RegisterParticipant("p1", addr)

	start := make(chan struct{})
	results := make([]*domain.ExecuteResponse, 2)
	values := []string{"from-t0", "from-t1"}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
				{Key: "x", Value: values[i], Type: domain.OpWrite},
			}, []string{"p1"})
		}(i)
	}
	close(start)
	wg.Wait()

	committed := 0
	var winner string
	for i, resp := range results {
		if resp.Success {
			committed++
			winner = values[i]
			require.Equal(t, domain.StatusCommitted, coordinator.GetTransactionStatus(resp.TransactionID).Status)
		} else {
			require.Equal(t, domain.StatusAborted, coordinator.GetTransactionStatus(resp.TransactionID).Status)
		}
	}
	require.Equal(t, 1, committed, "exactly one of two conflicting transactions may commit")

	value, exists, err := inner.Get("x")
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, winner, value, "final value must come from the committed transaction")
}

func TestRegisterParticipant_AppearsInListing(t *testing.T) {
	coordinator := newTestCoordinator(t, time.Second, time.Second)

	coordinator.RegisterParticipant("p9", "host:1")

	require.Contains(t, coordinator.ListParticipants(), domain.ParticipantInfo{ID: "p9", Address: "host:1"})
}

func TestExecuteTransaction_UnreachableParticipantAborts(t *testing.T) {
	coordinator := newTestCoordinator(t, 200*time.Millisecond, 5*time.Second)

	// Nothing listens here.
	coordinator.RegisterParticipant("dead", "127.0.0.1:1")

	resp := coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
		{Key: "k", Value: "v", Type: domain.OpWrite},
	}, []string{"dead"})

	require.False(t, resp.Success)
	require.Equal(t, domain.StatusAborted, coordinator.GetTransactionStatus(resp.TransactionID).Status)
}

func TestExecuteTransaction_UnknownParticipantAborts(t *testing.T) {
	coordinator := newTestCoordinator(t, time.Second, 5*time.Second)

	resp := coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
		{Key: "k", Value: "v", Type: domain.OpWrite},
	}, []string{"never-registered"})

	require.False(t, resp.Success)
	require.Equal(t, domain.StatusAborted, coordinator.GetTransactionStatus(resp.TransactionID).Status)
}

// commitFailStore accepts prepares but fails every write, so the commit
// phase fails after the prepare phase succeeded.
type commitFailStore struct {
	database.Store
}

func (s *commitFailStore) Set(key, value string) error {
	return fmt.Errorf("write refused for %q", key)
}

func TestExecuteTransaction_CommitPhasePartialFailure(t *testing.T) {
	coordinator := newTestCoordinator(t, 2*time.Second, 10*time.Second)

	healthyStore := database.NewMemoryStore()
	addrHealthy, healthy := startParticipant(t, "healthy", healthyStore)
	addrBroken, broken := startParticipant(t, "broken", &commitFailStore{Store: database.NewMemoryStore()})
	coordinator.RegisterParticipant("healthy", addrHealthy)
	coordinator.RegisterParticipant("broken", addrBroken)

	resp := coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
		{Key: "k", Value: "v", Type: domain.OpWrite},
	}, []string{"healthy", "broken"})

	require.False(t, resp.Success)
	require.Contains(t, resp.Message, "commit phase")

	// The transaction is stranded in COMMITTING: there is no recovery state
	// for a partial commit and the committed participant is not re-aborted.
	require.Equal(t, domain.StatusCommitting, coordinator.GetTransactionStatus(resp.TransactionID).Status)

	k, err := healthy.GetResource("k")
	require.NoError(t, err)
	require.True(t, k.Exists, "the healthy participant keeps its committed write")
	require.Equal(t, domain.StatusCommitted, healthy.Status(resp.TransactionID).Status)

	missing, err := broken.GetResource("k")
	require.NoError(t, err)
	require.False(t, missing.Exists)
}

func TestExecuteTransaction_DeadlineExpiryEndsInTimeout(t *testing.T) {
	coordinator := newTestCoordinator(t, 300*time.Millisecond, 100*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /begin", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"ok"}`))
	})
	mux.HandleFunc("POST /abort", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"aborted":true,"message":"ok"}`))
	})
	stalled := httptest.NewServer(mux)
	defer stalled.Close()

	coordinator.RegisterParticipant("stalled", strings.TrimPrefix(stalled.URL, "http://"))

	resp := coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
		{Key: "k", Value: "v", Type: domain.OpWrite},
	}, []string{"stalled"})

	require.False(t, resp.Success)
	require.Contains(t, resp.Message, "timed out")
	require.Equal(t, domain.StatusTimeout, coordinator.GetTransactionStatus(resp.TransactionID).Status)
}

func TestGetTransactionStatus_NotFoundSentinel(t *testing.T) {
	coordinator := newTestCoordinator(t, time.Second, time.Second)

	resp := coordinator.GetTransactionStatus("ghost")
	require.Equal(t, domain.StatusAborted, resp.Status)
	require.Contains(t, resp.Message, "not found")
}

func TestListTransactionsAndHealth(t *testing.T) {
	coordinator := newTestCoordinator(t, 2*time.Second, 10*time.Second)

	addr, _ := startParticipant(t, "p1", database.NewMemoryStore())
	coordinator.RegisterParticipant("p1", addr)

	resp := coordinator.ExecuteTransaction(context.Background(), []domain.Operation{
		{Key: "a", Value: "1", Type: domain.OpWrite},
		{Key: "b", Value: "2", Type: domain.OpWrite},
	}, []string{"p1"})
	require.True(t, resp.Success)

	txns := coordinator.ListTransactions()
	require.Len(t, txns, 1)
	require.Equal(t, resp.TransactionID, txns[0].ID)
	require.Equal(t, domain.StatusCommitted, txns[0].Status)
	require.Equal(t, []string{"p1"}, txns[0].Participants)
	require.Equal(t, 2, txns[0].OperationsCount)
	require.NotEmpty(t, txns[0].CreatedAt)
	require.NotEmpty(t, txns[0].UpdatedAt)

	health := coordinator.Health()
	require.Equal(t, "healthy", health.Status)
	require.Equal(t, "running", health.Coordinator)
	require.Equal(t, 1, health.ParticipantsCount)
	require.Equal(t, 1, health.TransactionsCount)
}
