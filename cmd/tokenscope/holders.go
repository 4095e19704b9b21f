package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tokenscope/internal/cache"
	"tokenscope/internal/chain"
	"tokenscope/internal/config"
	"tokenscope/internal/crawler"
	"tokenscope/internal/explorer"
	"tokenscope/internal/price"
	"tokenscope/internal/service"
	"tokenscope/internal/storage"
	"tokenscope/internal/storage/postgres"
	"tokenscope/internal/throttle"
	"tokenscope/internal/token"
)

func runHolders(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
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
	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
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

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

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
		WindowSize:   cfg.WindowSize,
		WindowFloor:  cfg.WindowFloor,
		MaxWindows:   cfg.MaxWindows,
		PageSize:     cfg.PageSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, logger)
	if err != nil {
		return err
	}

	analyzer, err := service.NewHolderAnalyzer(
		crawl,
		explorerClient,
		chainClient,
		token.NewResolver(chainClient),
		priceClient,
		store,
		sink,
		service.Config{
			CacheTTL: cfg.CacheTTL,
			LockTTL:  cfg.LockTTL,
			TopN:     cfg.TopN,
			Excluded: cfg.Excluded,
		},
		logger,
	)
	if err != nil {
		return err
	}

	tokenAddr := args[0]
	logger.Info("holders start",
		zap.String("token", tokenAddr),
		zap.String("explorer", cfg.ExplorerURL),
		zap.Float64("rate_limit", cfg.RateLimit),
		zap.Uint64("window_size", cfg.WindowSize),
		zap.Int("top_n", cfg.TopN),
	)

	summary, err := analyzer.Summary(ctx, tokenAddr)
	if err != nil {
		return err
	}

	logger.Info("holders done",
		zap.String("token", summary.TokenAddress),
		zap.Int("holders", summary.HolderCount),
		zap.Float64("gini", summary.Gini),
		zap.Bool("partial", summary.Partial),
	)

	return printJSON(summary)
}

func newCacheStore(ctx context.Context, addr, password string, db int) (cache.Store, error) {
	if addr == "" {
		return cache.NewMemory(), nil
	}
	return cache.NewRedis(ctx, addr, password, db)
}

func newSink(ctx context.Context, outDir, pgDSN string) (storage.Sink, func(), error) {
	sinks := storage.MultiSink{storage.NewJsonlSink(outDir)}
	closeSink := func() {}
	if pgDSN != "" {
		store, err := postgres.NewStore(ctx, pgDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		sinks = append(sinks, store)
		closeSink = store.Close
	}
	return sinks, closeSink, nil
}

func printJSON(doc any) error {
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
