package rewardstesting

import (
	"testing"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	clickhousetesting "github.com/opiumfinance/lprewards/rewards/pkg/clickhouse/testing"
	"github.com/stretchr/testify/require"
)

// NewClient creates an isolated database on the shared container and applies the
// reward audit migrations to it.
func NewClient(t *testing.T, db *clickhousetesting.DB) clickhouse.Client {
	info, err := clickhousetesting.NewTestClientWithInfo(t, db)
	require.NoError(t, err)

	err = clickhouse.RunMigrations(t.Context(), NewLogger(), db.MigrationConfig(info.Database))
	require.NoError(t, err)

	return info.Client
}
