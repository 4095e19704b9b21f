// Package service orchestrates the analyzers: crawl, compute, cache, persist.
// Results are cached under versioned keys and recomputes are guarded by a
// per-subject lock so concurrent requests do not duplicate the crawl.
package service

import (
	"context"
	"math/big"
	"time"

	"tokenscope/internal/model"
	"tokenscope/internal/token"
)

// TransferSource is the crawler surface the analyzers consume.
type TransferSource interface {
	FetchTransferLogs(ctx context.Context, token string, fromBlock, toBlock uint64) ([]model.TransferEvent, bool, error)
	FetchAccountHistory(ctx context.Context, wallet string, fromTS int64) ([]model.AccountTransfer, bool, error)
}

// TokenInfo is the explorer surface used for token facts.
type TokenInfo interface {
	TokenSupply(ctx context.Context, token string) (*big.Int, error)
	ContractCreation(ctx context.Context, contract string) (uint64, bool, error)
}

// ChainHead reports the current chain tip.
type ChainHead interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
}

// MetaSource resolves token metadata from the chain.
type MetaSource interface {
	Meta(ctx context.Context, tokenAddr string) (token.Meta, error)
	TotalSupply(ctx context.Context, tokenAddr string) (*big.Int, error)
}

// WalletAccountant turns a transfer history into a PnL summary.
type WalletAccountant interface {
	Process(ctx context.Context, wallet string, transfers []model.AccountTransfer) (*model.WalletSummary, error)
}

// Config holds the analyzers' shared tuning knobs.
type Config struct {
	CacheTTL      time.Duration
	LockTTL       time.Duration
	HistoryWindow time.Duration
	TopN          int
	Excluded      []string
}

func (c Config) withDefaults() Config {
	if c.CacheTTL == 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.LockTTL == 0 {
		c.LockTTL = 2 * time.Minute
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = 90 * 24 * time.Hour
	}
	if c.TopN == 0 {
		c.TopN = 10
	}
	return c
}
