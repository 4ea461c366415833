package admin

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	clickhousetesting "github.com/opiumfinance/lprewards/rewards/pkg/clickhouse/testing"
	rewardstesting "github.com/opiumfinance/lprewards/utils/pkg/testing"
)

func countRewardTables(t *testing.T, info *clickhousetesting.TestClientInfo) uint64 {
	t.Helper()
	conn, err := info.Client.Conn(t.Context())
	require.NoError(t, err)
	rows, err := conn.Query(t.Context(), "SELECT count() FROM system.tables WHERE database = ? AND startsWith(name, 'reward_')", info.Database)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var n uint64
	require.NoError(t, rows.Scan(&n))
	return n
}

func migratedDB(t *testing.T) *clickhousetesting.TestClientInfo {
	t.Helper()
	info, err := clickhousetesting.NewTestClientWithInfo(t, sharedDB)
	require.NoError(t, err)
	require.NoError(t, runMigrations(t, info.Database))
	return info
}

func runMigrations(t *testing.T, database string) error {
	t.Helper()
	return clickhouse.RunMigrations(t.Context(), rewardstesting.NewLogger(), sharedDB.MigrationConfig(database))
}

func TestRewards_Admin_ResetDB(t *testing.T) {
	t.Parallel()

	t.Run("dry run keeps tables", func(t *testing.T) {
		t.Parallel()
		info := migratedDB(t)

		var out bytes.Buffer
		err := ResetDB(t.Context(), rewardstesting.NewLogger(), sharedDB.ClientConfig(info.Database), true, false, strings.NewReader(""), &out)
		require.NoError(t, err)
		require.Contains(t, out.String(), "reward_intervals")
		require.Contains(t, out.String(), "[DRY RUN]")
		require.Equal(t, uint64(2), countRewardTables(t, info))
	})

	t.Run("declined confirmation keeps tables", func(t *testing.T) {
		t.Parallel()
		info := migratedDB(t)

		var out bytes.Buffer
		err := ResetDB(t.Context(), rewardstesting.NewLogger(), sharedDB.ClientConfig(info.Database), false, false, strings.NewReader("no\n"), &out)
		require.NoError(t, err)
		require.Contains(t, out.String(), "Operation cancelled")
		require.Equal(t, uint64(2), countRewardTables(t, info))
	})

	t.Run("confirmed reset drops tables", func(t *testing.T) {
		t.Parallel()
		info := migratedDB(t)

		var out bytes.Buffer
		err := ResetDB(t.Context(), rewardstesting.NewLogger(), sharedDB.ClientConfig(info.Database), false, false, strings.NewReader("yes\n"), &out)
		require.NoError(t, err)
		require.Equal(t, uint64(0), countRewardTables(t, info))

		// Migrations apply cleanly again afterwards.
		require.NoError(t, runMigrations(t, info.Database))
		require.Equal(t, uint64(2), countRewardTables(t, info))
	})
}
