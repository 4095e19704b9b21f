package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenscope/internal/config"
	"tokenscope/internal/crawler"
	"tokenscope/internal/explorer"
	"tokenscope/internal/pnl"
	"tokenscope/internal/price"
	"tokenscope/internal/service"
	"tokenscope/internal/throttle"
)

func runPnL(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWallet(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ExplorerURL == "" {
		return fmt.Errorf("explorer url is required")
	}
	if cfg.PriceURL == "" {
		return fmt.Errorf("price oracle url is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter, err := throttle.NewLimiter(cfg.RateLimit)
	if err != nil {
		return err
	}

	explorerClient, err := explorer.NewClient(cfg.ExplorerURL, cfg.ExplorerAPIKey, limiter, cfg.RequestTimeout, logger)
	if err != nil {
		return err
	}

	priceClient, err := price.NewClient(cfg.PriceURL, cfg.RequestTimeout)
	if err != nil {
		return err
	}

	store, err := newCacheStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, closeSink, err := newSink(ctx, cfg.OutDir, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer closeSink()

	crawl, err := crawler.New(explorerClient, crawler.Config{
		HistoryPageSize: cfg.HistoryPageSize,
		HistoryPageCap:  cfg.HistoryPageCap,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return err
	}

	routers := make(map[string]struct{}, len(cfg.Routers))
	for _, router := range cfg.Routers {
		routers[strings.ToLower(router)] = struct{}{}
	}

	accountant, err := pnl.New(pnl.Config{
		WrappedNative: cfg.WrappedNative,
		Routers:       routers,
		NearBlockSpan: cfg.NearBlockSpan,
		DustQty:       decimal.NewFromFloat(cfg.DustQty),
		DustUSD:       decimal.NewFromFloat(cfg.DustUSD),
		TopN:          cfg.TopN,
	}, priceClient, logger)
	if err != nil {
		return err
	}

	analyzer, err := service.NewWalletAnalyzer(crawl, accountant, store, sink, service.Config{
		CacheTTL:      cfg.CacheTTL,
		LockTTL:       cfg.LockTTL,
		HistoryWindow: cfg.HistoryWindow,
		TopN:          cfg.TopN,
	}, logger)
	if err != nil {
		return err
	}

	wallet := args[0]
	logger.Info("pnl start",
		zap.String("wallet", wallet),
		zap.String("explorer", cfg.ExplorerURL),
		zap.Duration("history_window", cfg.HistoryWindow),
	)

	summary, err := analyzer.Summary(ctx, wallet)
	if err != nil {
		return err
	}

	logger.Info("pnl done",
		zap.String("wallet", summary.WalletAddress),
		zap.String("realized", summary.RealizedPnL),
		zap.String("unrealized", summary.UnrealizedPnL),
		zap.Int("tokens", len(summary.Tokens)),
		zap.Bool("partial", summary.Partial),
	)

	return printJSON(summary)
}
