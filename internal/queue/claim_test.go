package queue

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(context.Background(), Options{Path: filepath.Join(t.TempDir(), "queue.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReturningClaimerSelected(t *testing.T) {
	store := newTestStore(t)

	supported, err := store.supportsReturning(context.Background())
	if err != nil {
		t.Fatalf("supportsReturning: %v", err)
	}
	if !supported {
		t.Skip("linked sqlite has no RETURNING support")
	}
	if _, ok := store.claim.(returningClaimer); !ok {
		t.Fatalf("expected returningClaimer, got %T", store.claim)
	}
}

func TestClaimStrategiesAgree(t *testing.T) {
	for name, strategy := range map[string]claimer{
		"returning": returningClaimer{},
		"tx":        txClaimer{},
	} {
		t.Run(name, func(t *testing.T) {
			store := newTestStore(t)
			store.claim = strategy

			ctx := context.Background()
			q, err := store.Queue(ctx, "claims", 0)
			if err != nil {
				t.Fatalf("Queue: %v", err)
			}

			if msg, err := q.Pop(ctx); err != nil || msg != nil {
				t.Fatalf("expected none from empty queue, got %v, %v", msg, err)
			}

			first, err := q.Put(ctx, "first")
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if _, err := q.Put(ctx, "second"); err != nil {
				t.Fatalf("Put: %v", err)
			}

			claimed, err := q.Pop(ctx)
			if err != nil {
				t.Fatalf("Pop: %v", err)
			}
			if claimed == nil || claimed.ID != first.ID {
				t.Fatalf("expected smallest-id message %q, got %#v", first.ID, claimed)
			}
			if claimed.Status != StatusLocked || claimed.LockTime == 0 || claimed.DoneTime != 0 {
				t.Fatalf("claimed message has wrong state: %#v", claimed)
			}
			if claimed.LockTime < claimed.InTime {
				t.Fatalf("lock time %d before in time %d", claimed.LockTime, claimed.InTime)
			}

			if _, err := q.Pop(ctx); err != nil {
				t.Fatalf("Pop second: %v", err)
			}
			// Both messages locked now, so the queue reports none available.
			if msg, err := q.Pop(ctx); err != nil || msg != nil {
				t.Fatalf("expected none from fully locked queue, got %v, %v", msg, err)
			}
		})
	}
}

func TestTxClaimerNeverDoubleClaims(t *testing.T) {
	store := newTestStore(t)
	store.claim = txClaimer{}

	ctx := context.Background()
	q, err := store.Queue(ctx, "contended", 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}

	const total = 40
	for i := 0; i < total; i++ {
		if _, err := q.Put(ctx, "payload"); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}

	var (
		mu      sync.Mutex
		claimed = make(map[string]int)
		wg      sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, err := q.Pop(ctx)
				if err != nil {
					t.Errorf("Pop: %v", err)
					return
				}
				if msg == nil {
					return
				}
				mu.Lock()
				claimed[msg.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(claimed) != total {
		t.Fatalf("expected %d distinct claims, got %d", total, len(claimed))
	}
	for id, count := range claimed {
		if count != 1 {
			t.Fatalf("message %q claimed %d times", id, count)
		}
	}
}
