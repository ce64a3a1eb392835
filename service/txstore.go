package service

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/yashmane1300/two-phase-commit/domain"
	"github.com/yashmane1300/two-phase-commit/repository/messaging"
)

const txnShards = 16

func txnShardIndex(id string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return h.Sum32() % txnShards
}

// txnStore holds the coordinator-side transaction records, sharded by
// transaction id. Records are only handed out as copies; mutation goes
// through update so synchronization stays inside the store.
type txnStore struct {
	shards [txnShards]struct {
		mu   sync.RWMutex
		txns map[string]*domain.Transaction
	}
}

func newTxnStore() *txnStore {
	s := &txnStore{}
	for i := range s.shards {
		s.shards[i].txns = make(map[string]*domain.Transaction)
	}
	return s
}

func (s *txnStore) put(txn *domain.Transaction) {
	sh := &s.shards[txnShardIndex(txn.ID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.txns[txn.ID] = txn
}

func (s *txnStore) get(id string) (domain.Transaction, bool) {
	sh := &s.shards[txnShardIndex(id)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	txn, ok := sh.txns[id]
	if !ok {
		return domain.Transaction{}, false
	}
	return *txn, true
}

func (s *txnStore) update(id string, fn func(*domain.Transaction)) bool {
	sh := &s.shards[txnShardIndex(id)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	txn, ok := sh.txns[id]
	if !ok {
		return false
	}
	fn(txn)
	return true
}

func (s *txnStore) list() []domain.Transaction {
	all := make([]domain.Transaction, 0)
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		for _, txn := range sh.txns {
			all = append(all, *txn)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all
}

func (s *txnStore) count() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.txns)
		sh.mu.RUnlock()
	}
	return n
}

// localTxnStore holds a participant's local transaction records.
type localTxnStore struct {
	shards [txnShards]struct {
		mu   sync.RWMutex
		txns map[string]*domain.LocalTransaction
	}
}

func newLocalTxnStore() *localTxnStore {
	s := &localTxnStore{}
	for i := range s.shards {
		s.shards[i].txns = make(map[string]*domain.LocalTransaction)
	}
	return s
}

// create inserts a fresh record for id. It reports false when the id is
// already present; duplicate begins are not idempotent.
func (s *localTxnStore) create(txn *domain.LocalTransaction) bool {
	sh := &s.shards[txnShardIndex(txn.ID)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, exists := sh.txns[txn.ID]; exists {
		return false
	}
	sh.txns[txn.ID] = txn
	return true
}

func (s *localTxnStore) get(id string) (domain.LocalTransaction, bool) {
	sh := &s.shards[txnShardIndex(id)]
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	txn, ok := sh.txns[id]
	if !ok {
		return domain.LocalTransaction{}, false
	}
	cp := *txn
	cp.Operations = append([]domain.Operation(nil), txn.Operations...)
	return cp, true
}

func (s *localTxnStore) update(id string, fn func(*domain.LocalTransaction)) bool {
	sh := &s.shards[txnShardIndex(id)]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	txn, ok := sh.txns[id]
	if !ok {
		return false
	}
	fn(txn)
	return true
}

// directory is the coordinator's participant registry. Clients are cached per
// address so repeated transactions reuse connections.
type directory struct {
	mu        sync.RWMutex
	addresses map[string]string
	clients   map[string]*messaging.ParticipantClient
}

func newDirectory() *directory {
	return &directory{
		addresses: make(map[string]string),
		clients:   make(map[string]*messaging.ParticipantClient),
	}
}

func (d *directory) register(id, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.addresses[id] != address {
		delete(d.clients, id)
	}
	d.addresses[id] = address
}

func (d *directory) client(id string) (*messaging.ParticipantClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c, ok := d.clients[id]; ok {
		return c, nil
	}
	address, ok := d.addresses[id]
	if !ok {
		return nil, &domain.NotFoundError{Key: id}
	}
	c := messaging.NewParticipantClient(id, address)
	d.clients[id] = c
	return c, nil
}

func (d *directory) list() []domain.ParticipantInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	infos := make([]domain.ParticipantInfo, 0, len(d.addresses))
	for id, address := range d.addresses {
		infos = append(infos, domain.ParticipantInfo{ID: id, Address: address})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (d *directory) count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.addresses)
}
