package database

import (
	"context"
	"fmt"
)

// WithTransaction runs fn inside a transaction on conn. The transaction is
// committed when fn returns nil and rolled back otherwise.
func WithTransaction(ctx context.Context, conn Connection, fn func(tx Executor) error) error {
	tx, err := conn.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
