package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opiumfinance/lprewards/rewards/pkg/clickhouse"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/driver"
	rewardstesting "github.com/opiumfinance/lprewards/utils/pkg/testing"
)

var (
	testPool    = distribution.MustParseAddress("0x5cef3aed38eb937f3dc0864307ac6c9a9694abfa")
	testWrapper = distribution.MustParseAddress("0x2a2cd905141f1cdf3620db6a1ed0abc4f7e8635c")
	ownerA      = distribution.MustParseAddress("0x00000000000000000000000000000000000000aa")
	holder1     = distribution.MustParseAddress("0x0000000000000000000000000000000000000001")
	holder2     = distribution.MustParseAddress("0x0000000000000000000000000000000000000002")
)

// newFakeSubgraph serves one pool where ownerA holds 1 unit of in-range liquidity
// and the wrapper holds 2, and a wrapper with supply 4 split 1:3 across two holders.
func newFakeSubgraph(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var data string
		switch {
		case strings.Contains(req.Query, "getPoolTick"):
			data = `{"pools":[{"tick":"0"}]}`
		case strings.Contains(req.Query, "getPositions"):
			data = fmt.Sprintf(`{"positions":[{"id":"1","owner":%q,"liquidity":"1"},{"id":"2","owner":%q,"liquidity":"2"}]}`, ownerA, testWrapper)
		case strings.Contains(req.Query, "getWrapperSupply"):
			data = `{"pools":[{"totalSupply":"4"}]}`
		case strings.Contains(req.Query, "getWrapperHolders"):
			data = fmt.Sprintf(`{"users":[{"id":%q,"balance":"1"},{"id":%q,"balance":"3"}]}`, holder1, holder2)
		default:
			t.Errorf("unexpected query: %s", req.Query)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"data":%s}`, data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func recalculateConfig(srv *httptest.Server) RecalculateConfig {
	return RecalculateConfig{
		PoolSubgraphURL:    srv.URL + "/pool",
		WrapperSubgraphURL: srv.URL + "/wrapper",
		Pool:               testPool,
		Wrapper:            testWrapper,
		Range:              driver.Range{From: 100, To: 580, Step: 240},
		BudgetPerStep:      big.NewInt(9),
	}
}

func TestRewards_Admin_Recalculate(t *testing.T) {
	t.Parallel()

	t.Run("prints summary and users", func(t *testing.T) {
		t.Parallel()
		srv := newFakeSubgraph(t)

		var buf bytes.Buffer
		err := Recalculate(t.Context(), rewardstesting.NewLogger(), recalculateConfig(srv), &buf)
		require.NoError(t, err)

		var out RecalculateOutput
		require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
		require.Equal(t, 2, out.Summary.Intervals)
		require.Equal(t, "18", out.Summary.Budget)
		require.Equal(t, "16", out.Summary.Credited)
		require.Equal(t, "2", out.Summary.Dust)
		require.Equal(t, "0", out.Summary.Unclaimed)
		require.Equal(t, []distribution.User{
			{ID: holder1.String(), Deposits: "0", Rewards: "2"},
			{ID: holder2.String(), Deposits: "0", Rewards: "8"},
			{ID: ownerA.String(), Deposits: "0", Rewards: "6"},
		}, out.Users)
	})

	t.Run("rejects an empty range", func(t *testing.T) {
		t.Parallel()
		srv := newFakeSubgraph(t)
		cfg := recalculateConfig(srv)
		cfg.Range = driver.Range{From: 500, To: 100, Step: 240}

		err := Recalculate(t.Context(), rewardstesting.NewLogger(), cfg, &bytes.Buffer{})
		require.ErrorIs(t, err, driver.ErrInvalidRange)
	})

	t.Run("requires a budget", func(t *testing.T) {
		t.Parallel()
		srv := newFakeSubgraph(t)
		cfg := recalculateConfig(srv)
		cfg.BudgetPerStep = nil

		err := Recalculate(t.Context(), rewardstesting.NewLogger(), cfg, &bytes.Buffer{})
		require.Error(t, err)
	})

	t.Run("records intervals to clickhouse", func(t *testing.T) {
		t.Parallel()
		srv := newFakeSubgraph(t)

		info := migratedDB(t)
		conn, err := info.Client.Conn(t.Context())
		require.NoError(t, err)

		chCfg := sharedDB.ClientConfig(info.Database)
		cfg := recalculateConfig(srv)
		cfg.ClickHouse = &chCfg

		err = Recalculate(clickhouse.ContextWithSyncInsert(t.Context()), rewardstesting.NewLogger(), cfg, &bytes.Buffer{})
		require.NoError(t, err)

		var intervals uint64
		rows, err := conn.Query(t.Context(), "SELECT count() FROM reward_intervals")
		require.NoError(t, err)
		require.True(t, rows.Next())
		require.NoError(t, rows.Scan(&intervals))
		require.NoError(t, rows.Close())
		require.Equal(t, uint64(2), intervals)
	})
}
