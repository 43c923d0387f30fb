package testutil

import (
	"testing"

	"github.com/trezcool/darasa/core/classroom"
	"github.com/trezcool/darasa/storage/kvstore"
)

// NewStore returns a loaded Store backed by a fresh in-memory KV.
func NewStore(t *testing.T) (*classroom.Store, *kvstore.InMemKV) {
	t.Helper()
	kv := kvstore.NewInMemKV()
	store := classroom.NewStore(kv, "data_backup")
	store.Load()
	return store, kv
}

// MustApply applies an action or fails the test.
func MustApply(t *testing.T, store *classroom.Store, a classroom.Action) {
	t.Helper()
	if err := store.Apply(a); err != nil {
		t.Fatalf("Apply(%s) failed: %v", a.Kind(), err)
	}
}

// MustMarshalAction serializes an action envelope or fails the test.
func MustMarshalAction(t *testing.T, a classroom.Action) []byte {
	t.Helper()
	payload, err := classroom.MarshalAction(a)
	if err != nil {
		t.Fatalf("MarshalAction(%s) failed: %v", a.Kind(), err)
	}
	return payload
}
