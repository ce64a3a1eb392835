package locks

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// Lock is an exclusive, time-bounded claim on a resource key.
type Lock struct {
	Resource   string
	TxnID      string
	AcquiredAt time.Time
	Timeout    time.Duration
}

func (l *Lock) expired(now time.Time) bool {
	return now.Sub(l.AcquiredAt) > l.Timeout
}

type shard struct {
	mu    sync.Mutex
	locks map[string]*Lock
}

// Table maps each resource key to the single transaction currently holding
// it. Expiry is checked on every read, so Sweep is housekeeping only. Keys
// are spread over shards so that transactions on disjoint resources do not
// contend on one table-wide mutex.
type Table struct {
	shards         [shardCount]*shard
	defaultTimeout time.Duration
	now            func() time.Time
}

func NewTable(defaultTimeout time.Duration) *Table {
	t := &Table{
		defaultTimeout: defaultTimeout,
		now:            time.Now,
	}
	for i := range t.shards {
		t.shards[i] = &shard{locks: make(map[string]*Lock)}
	}
	return t
}

func (t *Table) shardFor(resource string) *shard {
	h := fnv.New32a()
	h.Write([]byte(resource))
	return t.shards[h.Sum32()%shardCount]
}

// Acquire claims resource for txnID. It succeeds when the resource is free,
// when txnID already holds it, or when the existing lock has expired (the
// expired lock is replaced atomically). It fails when a different,
// non-expired holder exists; no retry or queueing happens here.
func (t *Table) Acquire(resource, txnID string) bool {
	s := t.shardFor(resource)
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.locks[resource]; ok && !existing.expired(t.now()) {
		return existing.TxnID == txnID
	}

	s.locks[resource] = &Lock{
		Resource:   resource,
		TxnID:      txnID,
		AcquiredAt: t.now(),
		Timeout:    t.defaultTimeout,
	}
	return true
}

// ReleaseAll removes every lock held by txnID. Idempotent, callable in any
// transaction state.
func (t *Table) ReleaseAll(txnID string) {
	for _, s := range t.shards {
		s.mu.Lock()
		for resource, l := range s.locks {
			if l.TxnID == txnID {
				delete(s.locks, resource)
			}
		}
		s.mu.Unlock()
	}
}

// IsLocked reports whether a non-expired lock exists on resource.
func (t *Table) IsLocked(resource string) bool {
	_, ok := t.Owner(resource)
	return ok
}

// Owner returns the transaction holding resource. An expired lock is treated
// as absent.
func (t *Table) Owner(resource string) (string, bool) {
	s := t.shardFor(resource)
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[resource]
	if !ok || l.expired(t.now()) {
		return "", false
	}
	return l.TxnID, true
}

// Sweep removes expired locks. Correctness does not depend on it since every
// read re-checks expiry.
func (t *Table) Sweep() {
	for _, s := range t.shards {
		s.mu.Lock()
		for resource, l := range s.locks {
			if l.expired(t.now()) {
				delete(s.locks, resource)
			}
		}
		s.mu.Unlock()
	}
}
