// Package crawler walks the explorer API in block windows and pages,
// degrading to partial results instead of failing the whole pull.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"tokenscope/internal/explorer"
	"tokenscope/internal/model"
)

// API is the slice of the explorer client the crawler depends on.
type API interface {
	TransferLogs(ctx context.Context, token string, fromBlock, toBlock uint64, page, offset int) ([]model.TransferEvent, error)
	AccountTxs(ctx context.Context, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error)
	AccountTokenTransfers(ctx context.Context, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error)
	AccountNFTTransfers(ctx context.Context, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error)
	BlockByTime(ctx context.Context, ts int64) (uint64, error)
}

// Config holds crawl tuning knobs.
type Config struct {
	WindowSize      uint64
	WindowFloor     uint64
	MaxWindows      int
	PageSize        int
	HistoryPageSize int
	HistoryPageCap  int
	MaxRetries      int
	RetryBackoff    time.Duration
}

func (c Config) withDefaults() Config {
	if c.WindowSize == 0 {
		c.WindowSize = 200_000
	}
	if c.WindowFloor == 0 {
		c.WindowFloor = 10_000
	}
	if c.MaxWindows == 0 {
		c.MaxWindows = 60
	}
	if c.PageSize == 0 {
		c.PageSize = 1000
	}
	if c.HistoryPageSize == 0 {
		c.HistoryPageSize = 100
	}
	if c.HistoryPageCap == 0 {
		c.HistoryPageCap = 25
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = 400 * time.Millisecond
	}
	return c
}

// Crawler fetches transfer logs and account histories.
type Crawler struct {
	api    API
	cfg    Config
	logger *zap.Logger
}

// New builds a Crawler with its dependencies.
func New(api API, cfg Config, logger *zap.Logger) (*Crawler, error) {
	if api == nil {
		return nil, fmt.Errorf("api client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Crawler{api: api, cfg: cfg.withDefaults(), logger: logger}, nil
}

// FetchTransferLogs crawls Transfer logs for a token over [fromBlock, toBlock].
// The range is walked in fixed windows; a window that the upstream rejects as
// too large is halved (down to the floor) and retried over the same sub-range,
// so nothing before the shrink point is skipped. A window that keeps failing
// for other reasons is abandoned and the result is flagged partial. The
// returned events are sorted by (blockNumber, logIndex).
func (c *Crawler) FetchTransferLogs(ctx context.Context, token string, fromBlock, toBlock uint64) ([]model.TransferEvent, bool, error) {
	if toBlock < fromBlock {
		return nil, false, fmt.Errorf("to block must be >= from block")
	}

	events := make([]model.TransferEvent, 0)
	windowSize := c.cfg.WindowSize
	cursor := fromBlock
	windows := 0
	partial := false

	for cursor <= toBlock {
		if windows >= c.cfg.MaxWindows {
			c.logger.Warn("window cap reached, truncating crawl",
				zap.Uint64("cursor", cursor), zap.Uint64("to", toBlock), zap.Int("windows", windows))
			partial = true
			break
		}

		end := toBlock
		if remaining := toBlock - cursor + 1; remaining > windowSize {
			end = cursor + windowSize - 1
		}

		windowEvents, err := c.crawlWindow(ctx, token, cursor, end)
		if errors.Is(err, explorer.ErrRangeTooLarge) && windowSize > c.cfg.WindowFloor {
			if windowSize /= 2; windowSize < c.cfg.WindowFloor {
				windowSize = c.cfg.WindowFloor
			}
			c.logger.Info("result range too large, shrinking window",
				zap.Uint64("from", cursor), zap.Uint64("window_size", windowSize))
			continue
		}

		windows++
		if err != nil {
			if ctx.Err() != nil {
				return events, true, ctx.Err()
			}
			c.logger.Warn("abandoning window",
				zap.Uint64("from", cursor), zap.Uint64("to", end), zap.Error(err))
			partial = true
		} else {
			events = append(events, windowEvents...)
		}
		cursor = end + 1
	}

	SortEvents(events)
	return events, partial, nil
}

func (c *Crawler) crawlWindow(ctx context.Context, token string, fromBlock, toBlock uint64) ([]model.TransferEvent, error) {
	var out []model.TransferEvent
	for page := 1; ; page++ {
		var events []model.TransferEvent
		err := c.retryPage(ctx, func(ctx context.Context) error {
			var err error
			events, err = c.api.TransferLogs(ctx, token, fromBlock, toBlock, page, c.cfg.PageSize)
			return err
		})
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
		if len(events) < c.cfg.PageSize {
			return out, nil
		}
	}
}

// FetchAccountHistory pulls a wallet's native, token, and NFT transfers from
// the given timestamp onward, merged and sorted by (timestamp, blockNumber).
// The native list is required; token and NFT failures degrade to partial.
func (c *Crawler) FetchAccountHistory(ctx context.Context, wallet string, fromTS int64) ([]model.AccountTransfer, bool, error) {
	startBlock := uint64(0)
	err := c.retryPage(ctx, func(ctx context.Context) error {
		var err error
		startBlock, err = c.api.BlockByTime(ctx, fromTS)
		return err
	})
	if err != nil {
		c.logger.Warn("block by timestamp failed, scanning from genesis", zap.Error(err))
		startBlock = 0
	}

	partial := false

	native, truncated, err := c.historyPages(ctx, wallet, startBlock, c.api.AccountTxs)
	if err != nil {
		return nil, false, fmt.Errorf("native history: %w", err)
	}
	partial = partial || truncated

	tokens, truncated, err := c.historyPages(ctx, wallet, startBlock, c.api.AccountTokenTransfers)
	if err != nil {
		c.logger.Warn("token history failed", zap.String("wallet", wallet), zap.Error(err))
		partial = true
	}
	partial = partial || truncated

	nfts, truncated, err := c.historyPages(ctx, wallet, startBlock, c.api.AccountNFTTransfers)
	if err != nil {
		c.logger.Warn("nft history failed", zap.String("wallet", wallet), zap.Error(err))
		partial = true
	}
	partial = partial || truncated

	merged := make([]model.AccountTransfer, 0, len(native)+len(tokens)+len(nfts))
	merged = append(merged, native...)
	merged = append(merged, tokens...)
	merged = append(merged, nfts...)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].BlockNumber < merged[j].BlockNumber
	})

	return merged, partial, nil
}

type historyPage func(ctx context.Context, wallet string, startBlock uint64, page, offset int) ([]model.AccountTransfer, error)

func (c *Crawler) historyPages(ctx context.Context, wallet string, startBlock uint64, fetch historyPage) ([]model.AccountTransfer, bool, error) {
	var out []model.AccountTransfer
	for page := 1; ; page++ {
		if page > c.cfg.HistoryPageCap {
			return out, true, nil
		}
		var rows []model.AccountTransfer
		err := c.retryPage(ctx, func(ctx context.Context) error {
			var err error
			rows, err = fetch(ctx, wallet, startBlock, page, c.cfg.HistoryPageSize)
			return err
		})
		if err != nil {
			return out, false, err
		}
		out = append(out, rows...)
		if len(rows) < c.cfg.HistoryPageSize {
			return out, false, nil
		}
	}
}

// retryPage runs fn up to MaxRetries times with linear backoff. Range-too-
// large errors are returned immediately: the caller shrinks instead.
func (c *Crawler) retryPage(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, explorer.ErrRangeTooLarge) {
			return err
		}
		if attempt == c.cfg.MaxRetries {
			break
		}

		delay := c.cfg.RetryBackoff * time.Duration(attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// SortEvents orders events by (blockNumber, logIndex) ascending.
func SortEvents(events []model.TransferEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].LogIndex < events[j].LogIndex
	})
}
