package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"liteq/internal/queue"
	"liteq/internal/testsupport"
)

func TestPutAndSize(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "jobs", 0)

	ctx := context.Background()
	testsupport.MustPut(t, q, "hello")
	testsupport.MustPut(t, q, "world")

	size, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}

	empty, err := q.Empty(ctx)
	if err != nil {
		t.Fatalf("Empty: %v", err)
	}
	if empty {
		t.Fatal("expected queue not empty")
	}
}

func TestLifecycleTrace(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "trace", 0)
	ctx := context.Background()

	hello := testsupport.MustPut(t, q, "hello")
	testsupport.MustPut(t, q, "world")

	if size, _ := q.Size(ctx); size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}

	popped, err := q.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if popped == nil || popped.Data != "hello" || popped.Status != queue.StatusLocked {
		t.Fatalf("expected locked hello, got %#v", popped)
	}

	peeked, err := q.Peek(ctx)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if peeked == nil || peeked.Data != "world" || peeked.Status != queue.StatusReady {
		t.Fatalf("expected ready world, got %#v", peeked)
	}

	if ok, err := q.Done(ctx, hello.ID); err != nil || !ok {
		t.Fatalf("Done: ok=%v err=%v", ok, err)
	}

	got, err := q.Get(ctx, hello.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Status != queue.StatusDone {
		t.Fatalf("expected done message, got %#v", got)
	}
	if got.DoneTime == 0 || got.DoneTime < got.LockTime || got.LockTime < got.InTime {
		t.Fatalf("timestamp invariants violated: in=%d lock=%d done=%d", got.InTime, got.LockTime, got.DoneTime)
	}

	if size, _ := q.Size(ctx); size != 1 {
		t.Fatalf("expected size 1 after done, got %d", size)
	}
}

func TestPopOnEmptyReturnsNone(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "empty", 0)

	msg, err := q.Pop(context.Background())
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if msg != nil {
		t.Fatalf("expected none, got %#v", msg)
	}
}

func TestMarkFailedThenRetry(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "retries", 0)
	ctx := context.Background()

	msg := testsupport.MustPut(t, q, "flaky job")
	popped, err := q.Pop(ctx)
	if err != nil || popped == nil {
		t.Fatalf("Pop: msg=%v err=%v", popped, err)
	}

	if ok, err := q.MarkFailed(ctx, msg.ID); err != nil || !ok {
		t.Fatalf("MarkFailed: ok=%v err=%v", ok, err)
	}
	failed, err := q.ListFailed(ctx)
	if err != nil {
		t.Fatalf("ListFailed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != msg.ID || failed[0].DoneTime == 0 {
		t.Fatalf("unexpected failed listing: %#v", failed)
	}

	if ok, err := q.Retry(ctx, msg.ID); err != nil || !ok {
		t.Fatalf("Retry: ok=%v err=%v", ok, err)
	}
	got, err := q.Get(ctx, msg.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != queue.StatusReady {
		t.Fatalf("expected ready after retry, got %s", got.Status)
	}
	if got.DoneTime != 0 {
		t.Fatalf("expected done time cleared, got %d", got.DoneTime)
	}
	if got.LockTime == 0 {
		t.Fatal("expected residual lock time preserved")
	}
	if size, _ := q.Size(ctx); size != 1 {
		t.Fatalf("expected retried message counted, size %d", size)
	}
}

func TestTransitionsReportMissingRows(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "missing", 0)
	ctx := context.Background()

	const unknown = "00000000-0000-7000-8000-000000000000"
	if ok, err := q.Done(ctx, unknown); err != nil || ok {
		t.Fatalf("Done on unknown id: ok=%v err=%v", ok, err)
	}
	if ok, err := q.Retry(ctx, unknown); err != nil || ok {
		t.Fatalf("Retry on unknown id: ok=%v err=%v", ok, err)
	}

	got, err := q.Get(ctx, unknown)
	if err != nil {
		t.Fatalf("Get on unknown id should not error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected absent result, got %#v", got)
	}
}

func TestListLockedThreshold(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "stale", 0)
	ctx := context.Background()

	testsupport.MustPut(t, q, "will stall")
	popped, err := q.Pop(ctx)
	if err != nil || popped == nil {
		t.Fatalf("Pop: msg=%v err=%v", popped, err)
	}

	time.Sleep(5 * time.Millisecond)

	stale, err := q.ListLocked(ctx, time.Millisecond)
	if err != nil {
		t.Fatalf("ListLocked: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != popped.ID {
		t.Fatalf("expected the claimed message to be stale, got %#v", stale)
	}

	fresh, err := q.ListLocked(ctx, time.Hour)
	if err != nil {
		t.Fatalf("ListLocked: %v", err)
	}
	if len(fresh) != 0 {
		t.Fatalf("expected no stale messages under a large threshold, got %#v", fresh)
	}
}

func TestCapacityGuard(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "bounded", 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		testsupport.MustPut(t, q, "payload")
	}

	full, err := q.Full(ctx)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if !full {
		t.Fatal("expected queue full after maxSize puts")
	}

	if _, err := q.Put(ctx, "overflow"); !errors.Is(err, queue.ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}

	if _, err := q.Pop(ctx); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	full, err = q.Full(ctx)
	if err != nil {
		t.Fatalf("Full: %v", err)
	}
	if full {
		t.Fatal("expected queue not full after a claim")
	}
	if _, err := q.Put(ctx, "fits again"); err != nil {
		t.Fatalf("Put after claim: %v", err)
	}
}

func TestPruneRemovesTerminalRows(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	q := testsupport.MustQueue(t, store, "pruned", 0)
	ctx := context.Background()

	ready := testsupport.MustPut(t, q, "ready")
	testsupport.MustPut(t, q, "locked")
	done := testsupport.MustPut(t, q, "done")
	failed := testsupport.MustPut(t, q, "failed")

	locked, err := q.Pop(ctx)
	if err != nil || locked == nil {
		t.Fatalf("Pop: msg=%v err=%v", locked, err)
	}
	// Pop claims the oldest insert, so re-point the survivors accordingly.
	ready, locked = locked, ready
	if _, err := q.Done(ctx, done.ID); err != nil {
		t.Fatalf("Done: %v", err)
	}
	if _, err := q.MarkFailed(ctx, failed.ID); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	removed, err := q.Prune(ctx, false)
	if err != nil {
		t.Fatalf("Prune keep-failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 row pruned, got %d", removed)
	}
	if got, _ := q.Get(ctx, failed.ID); got == nil {
		t.Fatal("expected failed row kept when includeFailed is false")
	}

	removed, err = q.Prune(ctx, true)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected failed row pruned, got %d", removed)
	}

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats[queue.StatusDone] != 0 || stats[queue.StatusFailed] != 0 {
		t.Fatalf("expected terminal rows gone, got %v", stats)
	}
	if stats[queue.StatusReady] != 1 || stats[queue.StatusLocked] != 1 {
		t.Fatalf("expected ready and locked rows untouched, got %v", stats)
	}
	if got, _ := q.Get(ctx, ready.ID); got == nil {
		t.Fatal("expected ready row to survive prune")
	}

	if err := q.Vacuum(ctx); err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
}

func TestNamespacesAreIsolated(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	a := testsupport.MustQueue(t, store, "tenant_a", 0)
	b := testsupport.MustQueue(t, store, "tenant_b", 0)
	ctx := context.Background()

	msg := testsupport.MustPut(t, a, "only in a")

	if size, _ := b.Size(ctx); size != 0 {
		t.Fatalf("expected namespace b empty, size %d", size)
	}
	if got, _ := b.Get(ctx, msg.ID); got != nil {
		t.Fatalf("message leaked across namespaces: %#v", got)
	}
	if popped, _ := b.Pop(ctx); popped != nil {
		t.Fatalf("claim leaked across namespaces: %#v", popped)
	}
	if size, _ := a.Size(ctx); size != 1 {
		t.Fatalf("expected namespace a to keep its message, size %d", size)
	}
}

func TestNamespaceValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	for _, name := range []string{`jobs"; DROP TABLE x; --`, "has space", "dash-ed", "1starts_with_digit", "semi;colon"} {
		if _, err := store.Queue(ctx, name, 0); !errors.Is(err, queue.ErrInvalidNamespace) {
			t.Fatalf("expected ErrInvalidNamespace for %q, got %v", name, err)
		}
	}

	q, err := store.Queue(ctx, "", 0)
	if err != nil {
		t.Fatalf("Queue with default namespace: %v", err)
	}
	if q.Namespace() != queue.DefaultNamespace {
		t.Fatalf("expected default namespace, got %q", q.Namespace())
	}
}

func TestOptionsValidation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		opts queue.Options
	}{
		{"no location", queue.Options{}},
		{"conflicting locations", queue.Options{Path: "queue.db", InMemory: true}},
		{"negative cache size", queue.Options{InMemory: true, CacheSize: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := queue.Open(ctx, tc.opts); !errors.Is(err, queue.ErrInvalidOptions) {
				t.Fatalf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := queue.Open(ctx, queue.Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open in-memory: %v", err)
	}
	defer store.Close()

	q, err := store.Queue(ctx, "volatile", 0)
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	msg, err := q.Put(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	popped, err := q.Pop(ctx)
	if err != nil || popped == nil || popped.ID != msg.ID {
		t.Fatalf("Pop: msg=%v err=%v", popped, err)
	}
}

func TestSharedStoreAcrossHandles(t *testing.T) {
	store := testsupport.MustOpenStore(t)
	ctx := context.Background()

	first := testsupport.MustQueue(t, store, "shared", 0)
	second := testsupport.MustQueue(t, store, "shared", 0)

	msg := testsupport.MustPut(t, first, "visible to both")
	got, err := second.Get(ctx, msg.ID)
	if err != nil || got == nil {
		t.Fatalf("expected second handle to observe the message: msg=%v err=%v", got, err)
	}
}
