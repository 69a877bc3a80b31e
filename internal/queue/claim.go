package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// claimer atomically transitions the ready message with the smallest
// identifier to locked and returns it, or returns (nil, nil) when the
// namespace has no ready message. The strategy is chosen once per Store from
// the capabilities of the linked SQLite.
type claimer interface {
	pop(ctx context.Context, s *Store, namespace string) (*Message, error)
}

// returningClaimer claims with a single UPDATE ... RETURNING statement. Row
// selection and mutation are indivisible, so there is no race window.
type returningClaimer struct{}

func (returningClaimer) pop(ctx context.Context, s *Store, namespace string) (*Message, error) {
	query := fmt.Sprintf(`UPDATE "%s" SET status = ?, lock_time = ?
        WHERE message_id = (
            SELECT message_id FROM "%s" WHERE status = ? ORDER BY message_id LIMIT 1
        )
        RETURNING `+messageColumns, namespace, namespace)

	var msg *Message
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, query, StatusLocked, time.Now().UnixNano(), StatusReady)
		m, scanErr := scanMessage(row)
		if scanErr != nil {
			return scanErr
		}
		msg = m
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim message: %w", err)
	}
	return msg, nil
}

// txClaimer claims with an explicit read-then-write transaction for SQLite
// versions without RETURNING. The conditional update is guarded on the
// selected identifier still being ready; when zero rows are affected a
// concurrent claimant won the race and the selection is retried rather than
// returning a message this caller did not lock.
type txClaimer struct{}

func (c txClaimer) pop(ctx context.Context, s *Store, namespace string) (*Message, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		msg, claimed, err := c.attempt(ctx, s, namespace)
		if err != nil {
			if isSQLiteBusy(err) {
				// A write conflict under WAL surfaces as SQLITE_BUSY instead
				// of zero affected rows; treat it as a lost race.
				continue
			}
			return nil, err
		}
		if msg == nil {
			return nil, nil
		}
		if claimed {
			return msg, nil
		}
	}
}

func (txClaimer) attempt(ctx context.Context, s *Store, namespace string) (*Message, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(
		ctx,
		fmt.Sprintf(`SELECT `+messageColumns+` FROM "%s" WHERE status = ? ORDER BY message_id LIMIT 1`, namespace),
		StatusReady,
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select claim candidate: %w", err)
	}

	lockTime := time.Now().UnixNano()
	res, err := tx.ExecContext(
		ctx,
		fmt.Sprintf(`UPDATE "%s" SET status = ?, lock_time = ? WHERE message_id = ? AND status = ?`, namespace),
		StatusLocked, lockTime, msg.ID, StatusReady,
	)
	if err != nil {
		return nil, false, fmt.Errorf("lock claim candidate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		// Lost the race to a concurrent claimant between select and update.
		return msg, false, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit claim: %w", err)
	}

	msg.Status = StatusLocked
	msg.LockTime = lockTime
	return msg, true, nil
}
