package kvstore

import (
	"sync"

	"github.com/trezcool/darasa/core"
)

// InMemKV is a volatile core.KV for tests and throwaway runs.
type InMemKV struct {
	mu sync.RWMutex
	m  map[string][]byte
}

var _ core.KV = (*InMemKV)(nil)

func NewInMemKV() *InMemKV {
	return &InMemKV{m: make(map[string][]byte)}
}

func (kv *InMemKV) Get(key string) ([]byte, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	val, ok := kv.m[key]
	if !ok {
		return nil, core.ErrKeyNotFound
	}
	return append([]byte(nil), val...), nil
}

func (kv *InMemKV) Set(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = append([]byte(nil), value...)
	return nil
}

func (kv *InMemKV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.m[key]; !ok {
		return core.ErrKeyNotFound
	}
	delete(kv.m, key)
	return nil
}
