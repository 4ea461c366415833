package audit

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	rewardstesting "github.com/opiumfinance/lprewards/utils/pkg/testing"
)

var (
	testPool    = distribution.MustParseAddress("0x5cef3aed38eb937f3dc0864307ac6c9a9694abfa")
	testWrapper = distribution.MustParseAddress("0x2a2cd905141f1cdf3620db6a1ed0abc4f7e8635c")
)

func newTestStore(t *testing.T) (*Store, clickhouse.Client) {
	t.Helper()
	client := rewardstesting.NewClient(t, sharedDB)
	store, err := NewStore(StoreConfig{
		Logger:     rewardstesting.NewLogger(),
		ClickHouse: client,
		Clock:      clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Pool:       testPool,
		Wrapper:    testWrapper,
	})
	require.NoError(t, err)
	return store, client
}

func TestRewards_Audit_StoreConfig_Validate(t *testing.T) {
	t.Parallel()

	require.Error(t, (&StoreConfig{}).Validate())
	require.Error(t, (&StoreConfig{Logger: rewardstesting.NewLogger()}).Validate())
}

func TestRewards_Audit_Store_RecordInterval(t *testing.T) {
	t.Parallel()

	store, client := newTestStore(t)
	ctx := clickhouse.ContextWithSyncInsert(t.Context())

	large, ok := new(big.Int).SetString("115792089237316195423570985008687907853269984665640564039457584007913129639935", 10)
	require.True(t, ok)

	holder := distribution.MustParseAddress("0x0000000000000000000000000000000000000001")
	owner := distribution.MustParseAddress("0x00000000000000000000000000000000000000aa")
	budget := new(big.Int).Set(large)
	alloc := &distribution.Allocation{
		Block:  13000000,
		Budget: budget,
		Rewards: distribution.RewardAllocation{
			owner:  new(big.Int).Sub(large, big.NewInt(10)),
			holder: big.NewInt(7),
		},
		Dust:      big.NewInt(2),
		Unclaimed: big.NewInt(1),
	}
	require.NoError(t, alloc.Check())

	passID := uuid.New()
	require.NoError(t, store.RecordInterval(ctx, passID, alloc))

	conn, err := client.Conn(t.Context())
	require.NoError(t, err)

	rows, err := conn.Query(t.Context(), "SELECT address, toString(amount) FROM reward_interval_allocations WHERE pass_id = ? ORDER BY address", passID)
	require.NoError(t, err)
	defer rows.Close()

	got := map[string]string{}
	for rows.Next() {
		var addr, amount string
		require.NoError(t, rows.Scan(&addr, &amount))
		got[addr] = amount
	}
	require.NoError(t, rows.Err())
	require.Equal(t, map[string]string{
		holder.String(): "7",
		owner.String():  new(big.Int).Sub(large, big.NewInt(10)).String(),
	}, got)

	summary, err := conn.Query(t.Context(), "SELECT block, pool, toString(budget), toString(credited), toString(dust), toString(unclaimed), recipients FROM reward_intervals WHERE pass_id = ?", passID)
	require.NoError(t, err)
	defer summary.Close()

	require.True(t, summary.Next())
	var (
		block                              uint64
		pool, b, credited, dust, unclaimed string
		recipients                         uint32
	)
	require.NoError(t, summary.Scan(&block, &pool, &b, &credited, &dust, &unclaimed, &recipients))
	require.Equal(t, uint64(13000000), block)
	require.Equal(t, testPool.String(), pool)
	require.Equal(t, large.String(), b)
	require.Equal(t, new(big.Int).Sub(large, big.NewInt(3)).String(), credited)
	require.Equal(t, "2", dust)
	require.Equal(t, "1", unclaimed)
	require.Equal(t, uint32(2), recipients)
	require.False(t, summary.Next())
}

func TestRewards_Audit_Store_RecordInterval_NoRecipients(t *testing.T) {
	t.Parallel()

	store, client := newTestStore(t)
	ctx := clickhouse.ContextWithSyncInsert(t.Context())

	alloc := &distribution.Allocation{
		Block:     1,
		Budget:    big.NewInt(9),
		Rewards:   distribution.RewardAllocation{},
		Dust:      new(big.Int),
		Unclaimed: big.NewInt(9),
	}
	passID := uuid.New()
	require.NoError(t, store.RecordInterval(ctx, passID, alloc))

	conn, err := client.Conn(t.Context())
	require.NoError(t, err)
	rows, err := conn.Query(t.Context(), "SELECT count() FROM reward_intervals WHERE pass_id = ?", passID)
	require.NoError(t, err)
	defer rows.Close()
	require.True(t, rows.Next())
	var count uint64
	require.NoError(t, rows.Scan(&count))
	require.Equal(t, uint64(1), count)
}
