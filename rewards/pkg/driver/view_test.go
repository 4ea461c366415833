package driver

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/snapshot"
	rewardstesting "github.com/opiumfinance/lprewards/utils/pkg/testing"
)

type mockHead struct {
	LatestBlockNumberFunc func(ctx context.Context) (uint64, error)
}

func (m *mockHead) LatestBlockNumber(ctx context.Context) (uint64, error) {
	if m.LatestBlockNumberFunc != nil {
		return m.LatestBlockNumberFunc(ctx)
	}
	return 10_000, nil
}

type mockRunner struct {
	RunFunc func(ctx context.Context, rng Range, budget *big.Int) (*Result, error)
}

func (m *mockRunner) Run(ctx context.Context, rng Range, budget *big.Int) (*Result, error) {
	return m.RunFunc(ctx, rng, budget)
}

type mockPublisher struct {
	mu    sync.Mutex
	calls [][]distribution.User
	err   error
}

func (m *mockPublisher) Publish(ctx context.Context, users []distribution.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, users)
	return m.err
}

func newTestView(t *testing.T, runner Runner, opts ...func(*ViewConfig)) *View {
	t.Helper()
	cfg := ViewConfig{
		Logger:          rewardstesting.NewLogger(),
		Clock:           clockwork.NewFakeClock(),
		Runner:          runner,
		Head:            &mockHead{},
		RefreshInterval: time.Hour,
		LookbackBlocks:  1000,
		StepBlocks:      240,
		BudgetPerStep:   big.NewInt(9),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	v, err := NewView(cfg)
	require.NoError(t, err)
	return v
}

func scenarioRunner(t *testing.T) Runner {
	t.Helper()
	return newTestDriver(t, &mockLoader{LoadFunc: func(ctx context.Context, pool distribution.Address, block uint64) (*snapshot.Snapshot, error) {
		return scenarioSnapshot(block), nil
	}})
}

func TestRewards_View_Config_Validate(t *testing.T) {
	t.Parallel()

	valid := func() ViewConfig {
		return ViewConfig{
			Logger:          rewardstesting.NewLogger(),
			Runner:          &mockRunner{},
			Head:            &mockHead{},
			RefreshInterval: time.Hour,
			LookbackBlocks:  1000,
			StepBlocks:      240,
			BudgetPerStep:   big.NewInt(1),
		}
	}

	cfg := valid()
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Clock)

	for name, mutate := range map[string]func(*ViewConfig){
		"logger":   func(c *ViewConfig) { c.Logger = nil },
		"runner":   func(c *ViewConfig) { c.Runner = nil },
		"head":     func(c *ViewConfig) { c.Head = nil },
		"interval": func(c *ViewConfig) { c.RefreshInterval = 0 },
		"lookback": func(c *ViewConfig) { c.LookbackBlocks = 0 },
		"step":     func(c *ViewConfig) { c.StepBlocks = 0 },
		"budget":   func(c *ViewConfig) { c.BudgetPerStep = big.NewInt(-1) },
	} {
		cfg := valid()
		mutate(&cfg)
		require.Error(t, cfg.Validate(), name)
	}
}

func TestRewards_View_WindowAt(t *testing.T) {
	t.Parallel()

	v := newTestView(t, &mockRunner{})
	require.Equal(t, Range{From: 8999, To: 9999, Step: 240}, v.WindowAt(10_000))
	require.Equal(t, Range{From: 0, To: 499, Step: 240}, v.WindowAt(500))
	require.Equal(t, Range{From: 0, To: 0, Step: 240}, v.WindowAt(0))
}

func TestRewards_View_Refresh(t *testing.T) {
	t.Parallel()

	t.Run("serves the computed pass", func(t *testing.T) {
		t.Parallel()

		publisher := &mockPublisher{}
		v := newTestView(t, scenarioRunner(t), func(cfg *ViewConfig) { cfg.Publisher = publisher })
		require.False(t, v.Ready())
		require.Nil(t, v.Users())

		require.NoError(t, v.Refresh(t.Context()))
		require.True(t, v.Ready())
		require.NoError(t, v.WaitReady(t.Context()))

		res := v.Current()
		require.NotNil(t, res)
		require.Equal(t, Range{From: 8999, To: 9999, Step: 240}, res.Range)

		// Five intervals: 8999, 9239, 9479, 9719, 9959.
		u, ok := v.User("0x00000000000000000000000000000000000000AA")
		require.True(t, ok)
		require.Equal(t, "15", u.Rewards)
		require.Equal(t, "0", u.Deposits)

		_, ok = v.User(testWrapper.String())
		require.False(t, ok)

		require.Len(t, v.Users(), 4)
		require.Len(t, publisher.calls, 1)
		require.Equal(t, v.Users(), publisher.calls[0])
	})

	t.Run("failed pass keeps the previous result", func(t *testing.T) {
		t.Parallel()

		var fail atomic.Bool
		inner := scenarioRunner(t)
		runner := &mockRunner{RunFunc: func(ctx context.Context, rng Range, budget *big.Int) (*Result, error) {
			if fail.Load() {
				return nil, snapshot.ErrUpstreamUnavailable
			}
			return inner.Run(ctx, rng, budget)
		}}

		v := newTestView(t, runner)
		require.NoError(t, v.Refresh(t.Context()))
		first := v.Current()

		fail.Store(true)
		require.ErrorIs(t, v.Refresh(t.Context()), snapshot.ErrUpstreamUnavailable)
		require.Same(t, first, v.Current())
		require.True(t, v.Ready())
	})

	t.Run("head failure is returned", func(t *testing.T) {
		t.Parallel()

		v := newTestView(t, &mockRunner{}, func(cfg *ViewConfig) {
			cfg.Head = &mockHead{LatestBlockNumberFunc: func(ctx context.Context) (uint64, error) {
				return 0, errors.New("rpc down")
			}}
		})
		require.ErrorContains(t, v.Refresh(t.Context()), "rpc down")
		require.False(t, v.Ready())
	})

	t.Run("publish failure does not fail the refresh", func(t *testing.T) {
		t.Parallel()

		v := newTestView(t, scenarioRunner(t), func(cfg *ViewConfig) {
			cfg.Publisher = &mockPublisher{err: errors.New("access denied")}
		})
		require.NoError(t, v.Refresh(t.Context()))
		require.True(t, v.Ready())
	})
}

func TestRewards_View_WaitReady_ContextCancelled(t *testing.T) {
	t.Parallel()

	v := newTestView(t, &mockRunner{})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, v.WaitReady(ctx), context.Canceled)
}

func TestRewards_View_Start(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	var runs atomic.Int32
	inner := scenarioRunner(t)
	runner := &mockRunner{RunFunc: func(ctx context.Context, rng Range, budget *big.Int) (*Result, error) {
		runs.Add(1)
		return inner.Run(ctx, rng, budget)
	}}

	var heads atomic.Uint64
	heads.Store(10_000)
	v := newTestView(t, runner, func(cfg *ViewConfig) {
		cfg.Clock = clock
		cfg.Head = &mockHead{LatestBlockNumberFunc: func(ctx context.Context) (uint64, error) {
			return heads.Load(), nil
		}}
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	v.Start(ctx)

	require.NoError(t, v.WaitReady(ctx))
	require.Equal(t, int32(1), runs.Load())
	first := v.Current()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	heads.Store(20_000)
	clock.Advance(time.Hour)

	require.Eventually(t, func() bool { return runs.Load() == 2 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		cur := v.Current()
		return cur != first && cur.Range.To == 19_999
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRewards_View_SafeRefreshRecoversPanics(t *testing.T) {
	t.Parallel()

	v := newTestView(t, &mockRunner{RunFunc: func(ctx context.Context, rng Range, budget *big.Int) (*Result, error) {
		panic("boom")
	}})
	require.NotPanics(t, func() { v.safeRefresh(t.Context()) })
	require.False(t, v.Ready())
}
