package database

import (
	"hash/fnv"
	"sync"
)

const memoryShards = 16

type memoryShard struct {
	mu   sync.RWMutex
	data map[string]string
}

// MemoryStore is an in-memory Store sharded by key hash so concurrent
// transactions on disjoint keys do not serialize on one mutex.
type MemoryStore struct {
	shards [memoryShards]*memoryShard
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	for i := range s.shards {
		s.shards[i] = &memoryShard{data: make(map[string]string)}
	}
	return s
}

func (s *MemoryStore) shardFor(key string) *memoryShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%memoryShards]
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	value, ok := sh.data[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(key string) error {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.data, key)
	return nil
}

func (s *MemoryStore) Exists(key string) (bool, error) {
	_, ok, err := s.Get(key)
	return ok, err
}

func (s *MemoryStore) Close() error {
	return nil
}
