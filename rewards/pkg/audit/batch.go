package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
)

// writeBatch inserts count rows into table using PrepareBatch. rowFn must return the
// values in the order of cols.
func writeBatch(ctx context.Context, conn clickhouse.Connection, table string, cols []string, count int, rowFn func(int) []any) error {
	if count == 0 {
		return nil
	}

	batch, err := conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", table, strings.Join(cols, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}
	defer batch.Close() // Always release the connection back to the pool

	for i := range count {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during batch insert: %w", ctx.Err())
		default:
		}

		row := rowFn(i)
		if len(row) != len(cols) {
			return fmt.Errorf("row %d has %d columns, expected exactly %d", i, len(row), len(cols))
		}
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("failed to append row %d: %w", i, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}
