package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Queue is a namespace-scoped handle over a shared Store. Handles bound to
// different namespaces never observe each other's messages.
type Queue struct {
	store     *Store
	namespace string
	maxSize   int
}

// Namespace returns the queue's validated namespace name.
func (q *Queue) Namespace() string {
	return q.namespace
}

// MaxSize returns the configured ready-message cap, zero when unbounded.
func (q *Queue) MaxSize() int {
	return q.maxSize
}

// Put inserts a new ready message and returns it. When the queue is bounded
// and already holds its maximum of ready messages the insert is rejected
// with ErrCapacityExceeded; the capacity check and the insert are one atomic
// statement, so concurrent producers cannot overshoot the cap.
func (q *Queue) Put(ctx context.Context, data string) (*Message, error) {
	msg := &Message{
		Data:   data,
		ID:     q.store.ids.next(),
		Status: StatusReady,
		InTime: time.Now().UnixNano(),
	}

	if q.maxSize <= 0 {
		_, err := q.store.execWithRetry(
			ctx,
			fmt.Sprintf(`INSERT INTO "%s" (data, message_id, status, in_time, lock_time, done_time)
                VALUES (?, ?, ?, ?, NULL, NULL)`, q.namespace),
			msg.Data, msg.ID, msg.Status, msg.InTime,
		)
		if err != nil {
			return nil, fmt.Errorf("insert message: %w", err)
		}
		return msg, nil
	}

	res, err := q.store.execWithRetry(
		ctx,
		fmt.Sprintf(`INSERT INTO "%s" (data, message_id, status, in_time, lock_time, done_time)
            SELECT ?, ?, ?, ?, NULL, NULL
            WHERE (SELECT COUNT(1) FROM "%s" WHERE status = ?) < ?`, q.namespace, q.namespace),
		msg.Data, msg.ID, msg.Status, msg.InTime, StatusReady, q.maxSize,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("insert rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: %q is at its maximum of %d ready messages", ErrCapacityExceeded, q.namespace, q.maxSize)
	}
	return msg, nil
}

// Pop claims the ready message with the smallest identifier, transitioning
// it to locked with the claim timestamp set. It returns (nil, nil) when no
// ready message exists.
func (q *Queue) Pop(ctx context.Context) (*Message, error) {
	return q.store.claim.pop(ctx, q.store, q.namespace)
}

// Peek returns the next message Pop would claim without mutating state, or
// (nil, nil) when the queue has no ready message.
func (q *Queue) Peek(ctx context.Context) (*Message, error) {
	row := q.store.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT `+messageColumns+` FROM "%s" WHERE status = ? ORDER BY message_id LIMIT 1`, q.namespace),
		StatusReady,
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("peek message: %w", err)
	}
	return msg, nil
}

// Get returns the message with the given identifier, or (nil, nil) when it
// does not exist. Absence is not an error.
func (q *Queue) Get(ctx context.Context, id string) (*Message, error) {
	row := q.store.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT `+messageColumns+` FROM "%s" WHERE message_id = ?`, q.namespace),
		id,
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return msg, nil
}

// Done marks a message done and stamps its completion time. The transition
// is unconditional: no prior state is required beyond row existence. It
// reports whether a row was affected.
func (q *Queue) Done(ctx context.Context, id string) (bool, error) {
	return q.transition(ctx, id, StatusDone)
}

// MarkFailed marks a message failed and stamps its completion time, with the
// same unconditional semantics as Done.
func (q *Queue) MarkFailed(ctx context.Context, id string) (bool, error) {
	return q.transition(ctx, id, StatusFailed)
}

func (q *Queue) transition(ctx context.Context, id string, status Status) (bool, error) {
	res, err := q.store.execWithRetry(
		ctx,
		fmt.Sprintf(`UPDATE "%s" SET status = ?, done_time = ? WHERE message_id = ?`, q.namespace),
		status, time.Now().UnixNano(), id,
	)
	if err != nil {
		return false, fmt.Errorf("mark message %s: %w", status, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Retry unconditionally returns a message to the ready pool and clears its
// completion time. The lock time is left as a residual of the prior claim.
// It reports whether a row was affected.
func (q *Queue) Retry(ctx context.Context, id string) (bool, error) {
	res, err := q.store.execWithRetry(
		ctx,
		fmt.Sprintf(`UPDATE "%s" SET status = ?, done_time = NULL WHERE message_id = ?`, q.namespace),
		StatusReady, id,
	)
	if err != nil {
		return false, fmt.Errorf("retry message: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListLocked returns locked messages whose claim is older than the
// threshold, ordered by identifier. These are stale-lock candidates; the
// caller decides whether to Retry them.
func (q *Queue) ListLocked(ctx context.Context, threshold time.Duration) ([]*Message, error) {
	cutoff := time.Now().Add(-threshold).UnixNano()
	return q.listWhere(
		ctx,
		fmt.Sprintf(`SELECT `+messageColumns+` FROM "%s" WHERE status = ? AND lock_time < ? ORDER BY message_id`, q.namespace),
		StatusLocked, cutoff,
	)
}

// ListFailed returns all failed messages ordered by identifier.
func (q *Queue) ListFailed(ctx context.Context) ([]*Message, error) {
	return q.listWhere(
		ctx,
		fmt.Sprintf(`SELECT `+messageColumns+` FROM "%s" WHERE status = ? ORDER BY message_id`, q.namespace),
		StatusFailed,
	)
}

// List returns messages filtered by status set, or all messages when no
// status is provided, ordered by identifier.
func (q *Queue) List(ctx context.Context, statuses ...Status) ([]*Message, error) {
	if len(statuses) == 0 {
		return q.listWhere(ctx, fmt.Sprintf(`SELECT `+messageColumns+` FROM "%s" ORDER BY message_id`, q.namespace))
	}
	placeholders := makePlaceholders(len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	query := fmt.Sprintf(`SELECT `+messageColumns+` FROM "%s" WHERE status IN (`+placeholders+`) ORDER BY message_id`, q.namespace)
	return q.listWhere(ctx, query, args...)
}

func (q *Queue) listWhere(ctx context.Context, query string, args ...any) ([]*Message, error) {
	rows, err := q.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Size counts outstanding work: messages that are neither done nor failed.
func (q *Queue) Size(ctx context.Context) (int, error) {
	var count int
	err := q.store.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT COUNT(1) FROM "%s" WHERE status NOT IN (?, ?)`, q.namespace),
		StatusDone, StatusFailed,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return count, nil
}

func (q *Queue) readyCount(ctx context.Context) (int, error) {
	var count int
	err := q.store.db.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT COUNT(1) FROM "%s" WHERE status = ?`, q.namespace),
		StatusReady,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ready messages: %w", err)
	}
	return count, nil
}

// Empty reports whether the queue has no ready message.
func (q *Queue) Empty(ctx context.Context) (bool, error) {
	count, err := q.readyCount(ctx)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// Full reports whether a maximum is configured and the ready count has
// reached it. An unbounded queue is never full.
func (q *Queue) Full(ctx context.Context) (bool, error) {
	if q.maxSize <= 0 {
		return false, nil
	}
	count, err := q.readyCount(ctx)
	if err != nil {
		return false, err
	}
	return count >= q.maxSize, nil
}

// Stats returns a count of messages grouped by status.
func (q *Queue) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := q.store.db.QueryContext(
		ctx,
		fmt.Sprintf(`SELECT status, COUNT(1) FROM "%s" GROUP BY status`, q.namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Prune deletes done messages, and failed ones when includeFailed is set.
// Ready and locked messages are never pruned. Returns the number of rows
// removed; the removal is irreversible.
func (q *Queue) Prune(ctx context.Context, includeFailed bool) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM "%s" WHERE status = ?`, q.namespace)
	args := []any{StatusDone}
	if includeFailed {
		query = fmt.Sprintf(`DELETE FROM "%s" WHERE status IN (?, ?)`, q.namespace)
		args = append(args, StatusFailed)
	}
	res, err := q.store.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("prune messages: %w", err)
	}
	return res.RowsAffected()
}

// Vacuum requests store-level space reclamation, typically after a Prune.
func (q *Queue) Vacuum(ctx context.Context) error {
	return q.store.Vacuum(ctx)
}

const messageColumns = "data, message_id, status, in_time, lock_time, done_time"

func scanMessage(scanner interface{ Scan(dest ...any) error }) (*Message, error) {
	var (
		msg      Message
		lockTime sql.NullInt64
		doneTime sql.NullInt64
	)
	if err := scanner.Scan(&msg.Data, &msg.ID, &msg.Status, &msg.InTime, &lockTime, &doneTime); err != nil {
		return nil, err
	}
	msg.LockTime = lockTime.Int64
	msg.DoneTime = doneTime.Int64
	return &msg, nil
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
