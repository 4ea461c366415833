package chain

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opiumfinance/lprewards/utils/pkg/retry"
	rewardstesting "github.com/opiumfinance/lprewards/utils/pkg/testing"
)

type mockRPC struct {
	BlockNumberFunc func(ctx context.Context) (uint64, error)
}

func (m *mockRPC) BlockNumber(ctx context.Context) (uint64, error) {
	if m.BlockNumberFunc != nil {
		return m.BlockNumberFunc(ctx)
	}
	return 0, nil
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func TestRewards_Chain_HeadReader(t *testing.T) {
	t.Parallel()

	t.Run("requires a client", func(t *testing.T) {
		t.Parallel()
		_, err := NewHeadReader(HeadReaderConfig{Logger: rewardstesting.NewLogger()})
		require.Error(t, err)
	})

	t.Run("returns the head", func(t *testing.T) {
		t.Parallel()
		reader, err := NewHeadReader(HeadReaderConfig{
			Logger: rewardstesting.NewLogger(),
			Client: &mockRPC{BlockNumberFunc: func(ctx context.Context) (uint64, error) { return 13_000_000, nil }},
		})
		require.NoError(t, err)

		head, err := reader.LatestBlockNumber(t.Context())
		require.NoError(t, err)
		require.Equal(t, uint64(13_000_000), head)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		reader, err := NewHeadReader(HeadReaderConfig{
			Logger: rewardstesting.NewLogger(),
			Retry:  fastRetry(),
			Client: &mockRPC{BlockNumberFunc: func(ctx context.Context) (uint64, error) {
				calls++
				if calls == 1 {
					return 0, errors.New("connection reset by peer")
				}
				return 42, nil
			}},
		})
		require.NoError(t, err)

		head, err := reader.LatestBlockNumber(t.Context())
		require.NoError(t, err)
		require.Equal(t, uint64(42), head)
		require.Equal(t, 2, calls)
	})

	t.Run("gives up on permanent failures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		reader, err := NewHeadReader(HeadReaderConfig{
			Logger: rewardstesting.NewLogger(),
			Retry:  fastRetry(),
			Client: &mockRPC{BlockNumberFunc: func(ctx context.Context) (uint64, error) {
				calls++
				return 0, errors.New("method not found")
			}},
		})
		require.NoError(t, err)

		_, err = reader.LatestBlockNumber(t.Context())
		require.Error(t, err)
		require.Equal(t, 1, calls)
	})
}
