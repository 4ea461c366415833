package rewards

import "embed"

// ClickHouseMigrationsFS holds the goose migrations for the reward audit tables.
//
//go:embed db/clickhouse/migrations/*.sql
var ClickHouseMigrationsFS embed.FS
