package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tokenscope/internal/cache"
	"tokenscope/internal/model"
	"tokenscope/internal/storage"
)

// WalletAnalyzer produces wallet PnL summaries over a trailing window.
type WalletAnalyzer struct {
	crawl  TransferSource
	acct   WalletAccountant
	store  cache.Store
	sink   storage.Sink
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewWalletAnalyzer wires the PnL pipeline. sink may be nil.
func NewWalletAnalyzer(crawl TransferSource, acct WalletAccountant, store cache.Store, sink storage.Sink, cfg Config, logger *zap.Logger) (*WalletAnalyzer, error) {
	if crawl == nil || acct == nil || store == nil {
		return nil, fmt.Errorf("wallet analyzer: missing dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletAnalyzer{
		crawl:  crawl,
		acct:   acct,
		store:  store,
		sink:   sink,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
	}, nil
}

// Summary returns the wallet's PnL summary, from cache when fresh. The cache
// key carries the window's start day so a cached document is only reused for
// the same query window.
func (w *WalletAnalyzer) Summary(ctx context.Context, wallet string) (*model.WalletSummary, error) {
	wallet = strings.ToLower(wallet)
	fromTS := w.now().Add(-w.cfg.HistoryWindow).Unix()
	key := walletKey(wallet, fromTS)

	var cached model.WalletSummary
	if hit, err := w.store.GetJSON(ctx, key, &cached); err != nil {
		w.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	acquired, err := w.store.AcquireLock(ctx, key, w.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire recompute lock: %w", err)
	}
	if !acquired {
		if hit, err := w.store.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
		return nil, cache.ErrNotReady
	}
	defer func() {
		if err := w.store.ReleaseLock(ctx, key); err != nil {
			w.logger.Warn("release recompute lock failed", zap.String("key", key), zap.Error(err))
		}
	}()

	transfers, partial, err := w.crawl.FetchAccountHistory(ctx, wallet, fromTS)
	if err != nil {
		return nil, fmt.Errorf("crawl account history: %w", err)
	}

	summary, err := w.acct.Process(ctx, wallet, transfers)
	if err != nil {
		return nil, fmt.Errorf("compute wallet pnl: %w", err)
	}
	summary.FromTimestamp = uint64(fromTS)
	summary.Partial = partial

	if !partial {
		if err := w.store.SetJSON(ctx, key, summary, w.cfg.CacheTTL); err != nil {
			w.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	if w.sink != nil {
		if err := w.sink.SaveWalletSummary(ctx, summary); err != nil {
			w.logger.Warn("persist wallet summary failed", zap.String("wallet", wallet), zap.Error(err))
		}
	}
	return summary, nil
}

func walletKey(wallet string, fromTS int64) string {
	return fmt.Sprintf("wallet:v1:%s:%d", wallet, fromTS/86_400)
}
