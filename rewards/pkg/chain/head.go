package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/opiumfinance/lprewards/utils/pkg/retry"
)

// BlockNumberReader is the part of an Ethereum JSON-RPC client the head reader needs.
type BlockNumberReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

type HeadReaderConfig struct {
	Logger *slog.Logger
	Client BlockNumberReader
	Retry  retry.Config
}

func (cfg *HeadReaderConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("rpc client is required")
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return nil
}

// HeadReader reads the latest block number of the chain.
type HeadReader struct {
	log *slog.Logger
	cfg HeadReaderConfig
}

func NewHeadReader(cfg HeadReaderConfig) (*HeadReader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &HeadReader{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// DialHeadReader connects to the JSON-RPC endpoint at rpcURL.
func DialHeadReader(ctx context.Context, log *slog.Logger, rpcURL string) (*HeadReader, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	reader, err := NewHeadReader(HeadReaderConfig{
		Logger: log,
		Client: client,
	})
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return reader, client, nil
}

// LatestBlockNumber returns the current chain head, retrying transient RPC failures.
func (r *HeadReader) LatestBlockNumber(ctx context.Context) (uint64, error) {
	retryCfg := r.cfg.Retry
	retryCfg.OnRetry = func(attempt int, err error) {
		r.log.Warn("chain: retrying block number", "attempt", attempt, "error", err)
	}

	var head uint64
	err := retry.Do(ctx, retryCfg, func() error {
		var err error
		head, err = r.cfg.Client.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get latest block number: %w", err)
	}
	return head, nil
}
