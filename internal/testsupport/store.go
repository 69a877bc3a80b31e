// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"liteq/internal/queue"
)

// MustOpenStore opens a file-backed queue.Store under a per-test temp
// directory and registers cleanup.
func MustOpenStore(t testing.TB) *queue.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "queue.db")
	store, err := queue.Open(context.Background(), queue.Options{Path: dbPath})
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustQueue binds a namespace on the store for tests.
func MustQueue(t testing.TB, store *queue.Store, namespace string, maxSize int) *queue.Queue {
	t.Helper()

	q, err := store.Queue(context.Background(), namespace, maxSize)
	if err != nil {
		t.Fatalf("store.Queue: %v", err)
	}
	return q
}

// MustPut inserts a payload for tests using the provided queue.
func MustPut(t testing.TB, q *queue.Queue, data string) *queue.Message {
	t.Helper()

	msg, err := q.Put(context.Background(), data)
	if err != nil {
		t.Fatalf("queue.Put: %v", err)
	}
	return msg
}
