package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// CoordinatorMetrics holds the metric instruments for the transaction driver.
type CoordinatorMetrics struct {
	TxnsStarted   prometheus.Counter
	TxnsCommitted prometheus.Counter
	TxnsAborted   prometheus.Counter
	TxnsTimedOut  prometheus.Counter
	PhaseDuration *prometheus.HistogramVec
}

func NewCoordinatorMetrics(reg prometheus.Registerer) *CoordinatorMetrics {
	factory := promauto.With(reg)

	return &CoordinatorMetrics{
		TxnsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "twopc_coordinator_transactions_started_total",
			Help: "Total transactions submitted to the coordinator.",
		}),
		TxnsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "twopc_coordinator_transactions_committed_total",
			Help: "Total transactions that reached COMMITTED.",
		}),
		TxnsAborted: factory.NewCounter(prometheus.CounterOpts{
			Name: "twopc_coordinator_transactions_aborted_total",
			Help: "Total transactions that reached ABORTED.",
		}),
		TxnsTimedOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "twopc_coordinator_transactions_timeout_total",
			Help: "Total transactions that hit the transaction-wide deadline.",
		}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "twopc_coordinator_phase_duration_seconds",
			Help:    "Duration of prepare/commit/abort fan-out per phase.",
			Buckets: prometheus.DefBuckets,
		}, []string{"phase"}),
	}
}

// ParticipantMetrics holds the metric instruments for one participant node.
type ParticipantMetrics struct {
	Prepares       *prometheus.CounterVec
	Commits        *prometheus.CounterVec
	Aborts         prometheus.Counter
	LockContention prometheus.Counter
}

func NewParticipantMetrics(reg prometheus.Registerer) *ParticipantMetrics {
	factory := promauto.With(reg)

	return &ParticipantMetrics{
		Prepares: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twopc_participant_prepares_total",
			Help: "Prepare requests handled, by outcome.",
		}, []string{"outcome"}),
		Commits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "twopc_participant_commits_total",
			Help: "Commit requests handled, by outcome.",
		}, []string{"outcome"}),
		Aborts: factory.NewCounter(prometheus.CounterOpts{
			Name: "twopc_participant_aborts_total",
			Help: "Abort requests that released state.",
		}),
		LockContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "twopc_participant_lock_contention_total",
			Help: "Prepare failures caused by a resource lock held elsewhere.",
		}),
	}
}
