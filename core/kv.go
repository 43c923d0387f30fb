package core

import "errors"

// ErrKeyNotFound is returned by KV implementations when a key has no value.
var ErrKeyNotFound = errors.New("key not found")

// KV is a durable key→value store. It backs the local data snapshot,
// the pending-write queue and the admin session across restarts.
type KV interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
