package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tokenscope/internal/cache"
	"tokenscope/internal/distribution"
	"tokenscope/internal/ledger"
	"tokenscope/internal/model"
	"tokenscope/internal/pnl"
	"tokenscope/internal/storage"
)

// HolderAnalyzer produces token distribution summaries.
type HolderAnalyzer struct {
	crawl    TransferSource
	info     TokenInfo
	head     ChainHead
	meta     MetaSource
	prices   pnl.PriceSource
	store    cache.Store
	sink     storage.Sink
	cfg      Config
	excluded map[string]struct{}
	logger   *zap.Logger
	now      func() time.Time
}

// NewHolderAnalyzer wires the distribution pipeline. sink may be nil.
func NewHolderAnalyzer(crawl TransferSource, info TokenInfo, head ChainHead, meta MetaSource, prices pnl.PriceSource, store cache.Store, sink storage.Sink, cfg Config, logger *zap.Logger) (*HolderAnalyzer, error) {
	if crawl == nil || info == nil || head == nil || meta == nil || prices == nil || store == nil {
		return nil, fmt.Errorf("holder analyzer: missing dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	excluded := make(map[string]struct{}, len(cfg.Excluded))
	for _, address := range cfg.Excluded {
		excluded[strings.ToLower(address)] = struct{}{}
	}

	return &HolderAnalyzer{
		crawl:    crawl,
		info:     info,
		head:     head,
		meta:     meta,
		prices:   prices,
		store:    store,
		sink:     sink,
		cfg:      cfg,
		excluded: excluded,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Summary returns the distribution summary for a token, from cache when
// fresh. When another worker is already computing it, ErrNotReady is
// returned instead of piling a second crawl on the explorer.
func (h *HolderAnalyzer) Summary(ctx context.Context, tokenAddr string) (*model.DistributionSummary, error) {
	tokenAddr = strings.ToLower(tokenAddr)
	key := distributionKey(tokenAddr)

	var cached model.DistributionSummary
	if hit, err := h.store.GetJSON(ctx, key, &cached); err != nil {
		h.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
	} else if hit {
		return &cached, nil
	}

	acquired, err := h.store.AcquireLock(ctx, key, h.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire recompute lock: %w", err)
	}
	if !acquired {
		// The winner may have finished between our read and the lock
		// attempt.
		if hit, err := h.store.GetJSON(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
		return nil, cache.ErrNotReady
	}
	defer func() {
		if err := h.store.ReleaseLock(ctx, key); err != nil {
			h.logger.Warn("release recompute lock failed", zap.String("key", key), zap.Error(err))
		}
	}()

	summary, err := h.compute(ctx, tokenAddr)
	if err != nil {
		return nil, err
	}

	if !summary.Partial {
		if err := h.store.SetJSON(ctx, key, summary, h.cfg.CacheTTL); err != nil {
			h.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	if h.sink != nil {
		if err := h.sink.SaveDistribution(ctx, summary); err != nil {
			h.logger.Warn("persist distribution failed", zap.String("token", tokenAddr), zap.Error(err))
		}
	}
	return summary, nil
}

func (h *HolderAnalyzer) compute(ctx context.Context, tokenAddr string) (*model.DistributionSummary, error) {
	latest, err := h.head.LatestBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest block: %w", err)
	}

	var fromBlock uint64
	if creation, found, err := h.info.ContractCreation(ctx, tokenAddr); err != nil {
		h.logger.Warn("contract creation lookup failed, crawling from genesis",
			zap.String("token", tokenAddr), zap.Error(err))
	} else if found {
		fromBlock = creation
	}

	events, partial, err := h.crawl.FetchTransferLogs(ctx, tokenAddr, fromBlock, latest)
	if err != nil {
		return nil, fmt.Errorf("crawl transfer logs: %w", err)
	}

	balances, burned := ledger.Build(events)

	meta, err := h.meta.Meta(ctx, tokenAddr)
	if err != nil {
		h.logger.Warn("token metadata lookup failed", zap.String("token", tokenAddr), zap.Error(err))
		meta.Decimals = 18
	}

	supply, err := h.info.TokenSupply(ctx, tokenAddr)
	if err != nil || supply == nil || supply.Sign() <= 0 {
		supply, err = h.meta.TotalSupply(ctx, tokenAddr)
		if err != nil {
			// Analyze falls back to ledger sum plus burned.
			h.logger.Warn("total supply lookup failed, inferring from ledger",
				zap.String("token", tokenAddr), zap.Error(err))
			supply = nil
		}
	}

	quote, err := h.prices.Spot(ctx, tokenAddr)
	if err != nil {
		h.logger.Warn("spot price lookup failed", zap.String("token", tokenAddr), zap.Error(err))
	}

	result := distribution.Analyze(distribution.Input{
		Ledger:      balances,
		TotalSupply: supply,
		Burned:      burned,
		Excluded:    h.excluded,
		PriceUSD:    quote.PriceUSD,
		Decimals:    meta.Decimals,
		TopN:        h.cfg.TopN,
	})

	return &model.DistributionSummary{
		TokenAddress:   tokenAddr,
		TokenSymbol:    meta.Symbol,
		TokenDecimals:  meta.Decimals,
		FromBlock:      fromBlock,
		ToBlock:        latest,
		HolderCount:    result.HolderCount,
		TopHolders:     result.TopHolders,
		TopCombined:    result.TopCombined,
		Gini:           result.Gini,
		PercentBands:   result.PercentBands,
		ValueBands:     result.ValueBands,
		TotalSupplyRaw: result.TotalSupply.String(),
		BurnedRaw:      burned.String(),
		BurnPercent:    result.BurnPercent,
		PriceUSD:       quote.PriceUSD.String(),
		Partial:        partial,
		GeneratedAt:    h.now().UTC().Format(time.RFC3339),
	}, nil
}

func distributionKey(tokenAddr string) string {
	return "dist:v1:" + tokenAddr
}
