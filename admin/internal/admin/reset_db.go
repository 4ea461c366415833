package admin

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
)

// ResetDB drops every reward_* table and the goose version table so that
// --clickhouse-migrate starts from scratch. in is read for the confirmation prompt.
func ResetDB(ctx context.Context, log *slog.Logger, cfg clickhouse.ClientConfig, dryRun, skipConfirm bool, in io.Reader, out io.Writer) error {
	chDB, err := clickhouse.NewClient(ctx, log, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer chDB.Close()

	conn, err := chDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	database := cfg.Database
	if database == "" {
		database = clickhouse.DefaultDatabase
	}

	rows, err := conn.Query(ctx, `
		SELECT name
		FROM system.tables
		WHERE database = ?
		  AND (startsWith(name, 'reward_') OR name = 'goose_db_version')
		ORDER BY name
	`, database)
	if err != nil {
		return fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read tables: %w", err)
	}

	if len(tables) == 0 {
		fmt.Fprintln(out, "No reward tables found")
		return nil
	}

	fmt.Fprintf(out, "WARNING: This will DROP %d table(s) from database '%s':\n\n", len(tables), database)
	for _, table := range tables {
		fmt.Fprintf(out, "  - %s\n", table)
	}

	if dryRun {
		fmt.Fprintln(out, "\n[DRY RUN] Would drop the above tables")
		return nil
	}

	if !skipConfirm {
		fmt.Fprintf(out, "\nThis is a DESTRUCTIVE operation that cannot be undone!\n")
		fmt.Fprintf(out, "Type 'yes' to confirm: ")

		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintf(out, "\nConfirmation failed. Operation cancelled.\n")
			return nil
		}
		fmt.Fprintln(out)
	}

	for _, table := range tables {
		if err := conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS `%s`", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
		fmt.Fprintf(out, "  Dropped %s\n", table)
	}

	log.Info("admin: reset database", "database", database, "tables", len(tables))
	fmt.Fprintf(out, "\nSuccessfully dropped %d table(s)\n", len(tables))
	return nil
}
