package queue

import (
	"context"
	"fmt"
	"regexp"
)

// namespacePattern admits only names that are safe inside quoted SQL
// identifiers. Anything else fails construction immediately.
var namespacePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateNamespace rejects queue names that could break identifier quoting.
func ValidateNamespace(name string) error {
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("%w: %q (want letters, digits, underscore, not starting with a digit)", ErrInvalidNamespace, name)
	}
	return nil
}

// createSchema creates the namespace table and its indexes if absent, inside
// one transaction. Schema creation failure is fatal for queue construction.
func (s *Store) createSchema(ctx context.Context, namespace string) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS "%s" (
            data       TEXT NOT NULL,
            message_id TEXT NOT NULL,
            status     INTEGER NOT NULL,
            in_time    INTEGER NOT NULL,
            lock_time  INTEGER,
            done_time  INTEGER
        )`, namespace),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s_message_id" ON "%s"(message_id)`, namespace, namespace),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "idx_%s_status" ON "%s"(status)`, namespace, namespace),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema for %q: %w", namespace, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
