package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jonboulle/clockwork"

	"github.com/opiumfinance/lprewards/rewards/pkg/accrual"
	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/metrics"
)

const viewType = "rewards"

// Runner computes one pass over a block range.
type Runner interface {
	Run(ctx context.Context, rng Range, budget *big.Int) (*Result, error)
}

// HeadReader returns the latest block number of the chain.
type HeadReader interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// Publisher exports the users of a completed pass.
type Publisher interface {
	Publish(ctx context.Context, users []distribution.User) error
}

type ViewConfig struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	Runner          Runner
	Head            HeadReader
	Publisher       Publisher // optional
	RefreshInterval time.Duration
	// LookbackBlocks is the length of the recomputed range ending one block behind the head.
	LookbackBlocks uint64
	StepBlocks     uint64
	BudgetPerStep  *big.Int
}

func (cfg *ViewConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Runner == nil {
		return errors.New("runner is required")
	}
	if cfg.Head == nil {
		return errors.New("head reader is required")
	}
	if cfg.RefreshInterval <= 0 {
		return errors.New("refresh interval must be greater than 0")
	}
	if cfg.LookbackBlocks == 0 {
		return errors.New("lookback blocks must be greater than 0")
	}
	if cfg.StepBlocks == 0 {
		return errors.New("step blocks must be greater than 0")
	}
	if cfg.BudgetPerStep == nil || cfg.BudgetPerStep.Sign() < 0 {
		return errors.New("budget per step must not be negative")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// View periodically recomputes the reward table over a window behind the chain
// head and serves the latest completed pass.
type View struct {
	log       *slog.Logger
	cfg       ViewConfig
	refreshMu sync.Mutex

	mu      sync.RWMutex
	current *Result

	readyOnce sync.Once
	readyCh   chan struct{}
}

func NewView(cfg ViewConfig) (*View, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &View{
		log:     cfg.Logger,
		cfg:     cfg,
		readyCh: make(chan struct{}),
	}, nil
}

func (v *View) Ready() bool {
	select {
	case <-v.readyCh:
		return true
	default:
		return false
	}
}

func (v *View) WaitReady(ctx context.Context) error {
	select {
	case <-v.readyCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting for rewards view: %w", ctx.Err())
	}
}

func (v *View) Start(ctx context.Context) {
	go func() {
		v.log.Info("rewards: starting refresh loop", "interval", v.cfg.RefreshInterval)

		v.safeRefresh(ctx)

		ticker := v.cfg.Clock.NewTicker(v.cfg.RefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.Chan():
				v.safeRefresh(ctx)
			}
		}
	}()
}

func (v *View) safeRefresh(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			v.log.Error("rewards: refresh panicked", "panic", r)
			metrics.ViewRefreshTotal.WithLabelValues(viewType, "panic").Inc()
			sentry.CurrentHub().Recover(r)
		}
	}()

	if err := v.Refresh(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		v.log.Error("rewards: refresh failed", "error", err)
		sentry.CaptureException(err)
	}
}

// WindowAt returns the range recomputed when the chain head is at head.
func (v *View) WindowAt(head uint64) Range {
	to := uint64(0)
	if head > 0 {
		to = head - 1
	}
	from := uint64(0)
	if to > v.cfg.LookbackBlocks {
		from = to - v.cfg.LookbackBlocks
	}
	return Range{From: from, To: to, Step: v.cfg.StepBlocks}
}

// Refresh runs a pass over the current window. On failure the previous result is kept.
func (v *View) Refresh(ctx context.Context) error {
	v.refreshMu.Lock()
	defer v.refreshMu.Unlock()

	refreshStart := time.Now()
	v.log.Debug("rewards: refresh started")
	defer func() {
		duration := time.Since(refreshStart)
		v.log.Info("rewards: refresh completed", "duration", duration.String())
		metrics.ViewRefreshDuration.WithLabelValues(viewType).Observe(duration.Seconds())
	}()

	head, err := v.cfg.Head.LatestBlockNumber(ctx)
	if err != nil {
		metrics.ViewRefreshTotal.WithLabelValues(viewType, "error").Inc()
		return fmt.Errorf("failed to read chain head: %w", err)
	}

	res, err := v.cfg.Runner.Run(ctx, v.WindowAt(head), v.cfg.BudgetPerStep)
	if err != nil {
		metrics.ViewRefreshTotal.WithLabelValues(viewType, "error").Inc()
		return fmt.Errorf("failed to run pass: %w", err)
	}

	v.mu.Lock()
	v.current = res
	v.mu.Unlock()
	recordPass(res)

	if v.cfg.Publisher != nil {
		if err := v.cfg.Publisher.Publish(ctx, res.Total.Users()); err != nil {
			v.log.Warn("rewards: failed to publish pass", "pass_id", res.PassID, "error", err)
		}
	}

	v.readyOnce.Do(func() {
		close(v.readyCh)
		v.log.Info("rewards: view is now ready")
	})

	metrics.ViewRefreshTotal.WithLabelValues(viewType, "success").Inc()
	return nil
}

// Current returns the latest completed pass, or nil before the first one.
func (v *View) Current() *Result {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Users returns every user of the latest pass in address order.
func (v *View) Users() []accrual.User {
	res := v.Current()
	if res == nil {
		return nil
	}
	return res.Total.Users()
}

// User looks up one user of the latest pass, ignoring case.
func (v *View) User(id string) (accrual.User, bool) {
	res := v.Current()
	if res == nil {
		return accrual.User{}, false
	}
	return res.Total.User(id)
}

func recordPass(res *Result) {
	for kind, amount := range map[string]*big.Int{
		"budget":    res.Total.Budget(),
		"credited":  res.Total.Total(),
		"dust":      res.Total.Dust(),
		"unclaimed": res.Total.Unclaimed(),
	} {
		f, _ := new(big.Float).SetInt(amount).Float64()
		metrics.RewardAmount.WithLabelValues(kind).Set(f)
	}
	metrics.RewardUsers.Set(float64(res.Total.Len()))
}
