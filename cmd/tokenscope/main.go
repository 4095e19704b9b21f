package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "tokenscope",
		Short:        "ERC-20 holder distribution and wallet PnL analyzer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	holdersCmd := &cobra.Command{
		Use:   "holders <token-address>",
		Short: "Analyze a token's holder distribution",
		Args:  cobra.ExactArgs(1),
		RunE:  runHolders,
	}

	holdersCmd.Flags().String("explorer-url", "", "explorer API base URL")
	holdersCmd.Flags().String("explorer-api-key", "", "explorer API key")
	holdersCmd.Flags().String("rpc", "", "chain RPC URL")
	holdersCmd.Flags().String("price-url", "", "price oracle base URL")
	holdersCmd.Flags().String("redis-addr", "", "redis address, empty for in-process cache")
	holdersCmd.Flags().String("redis-password", "", "redis password")
	holdersCmd.Flags().Int("redis-db", 0, "redis database")
	holdersCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshots")
	holdersCmd.Flags().String("out-dir", "./data", "output directory for JSONL snapshots")
	holdersCmd.Flags().Float64("rate-limit", 5.0, "explorer requests per second")
	holdersCmd.Flags().Duration("request-timeout", 15*time.Second, "per-request timeout")
	holdersCmd.Flags().Uint64("window-size", 200_000, "initial log crawl window in blocks")
	holdersCmd.Flags().Uint64("window-floor", 10_000, "smallest crawl window before giving up")
	holdersCmd.Flags().Int("max-windows", 60, "maximum crawl windows per run")
	holdersCmd.Flags().Int("page-size", 1000, "log page size")
	holdersCmd.Flags().Int("max-retries", 3, "maximum retry attempts per page")
	holdersCmd.Flags().Duration("retry-backoff", 400*time.Millisecond, "initial retry backoff")
	holdersCmd.Flags().Duration("cache-ttl", 5*time.Minute, "summary cache TTL")
	holdersCmd.Flags().Duration("lock-ttl", 2*time.Minute, "recompute lock TTL")
	holdersCmd.Flags().Int("top-n", 10, "top holders to report")
	holdersCmd.Flags().StringSlice("exclude", nil, "addresses excluded from the distribution (comma-separated)")
	holdersCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(holdersCmd)

	pnlCmd := &cobra.Command{
		Use:   "pnl <wallet-address>",
		Short: "Compute a wallet's trading PnL",
		Args:  cobra.ExactArgs(1),
		RunE:  runPnL,
	}

	pnlCmd.Flags().String("explorer-url", "", "explorer API base URL")
	pnlCmd.Flags().String("explorer-api-key", "", "explorer API key")
	pnlCmd.Flags().String("price-url", "", "price oracle base URL")
	pnlCmd.Flags().String("redis-addr", "", "redis address, empty for in-process cache")
	pnlCmd.Flags().String("redis-password", "", "redis password")
	pnlCmd.Flags().Int("redis-db", 0, "redis database")
	pnlCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for snapshots")
	pnlCmd.Flags().String("out-dir", "./data", "output directory for JSONL snapshots")
	pnlCmd.Flags().Float64("rate-limit", 5.0, "explorer requests per second")
	pnlCmd.Flags().Duration("request-timeout", 15*time.Second, "per-request timeout")
	pnlCmd.Flags().Int("history-page-size", 100, "account history page size")
	pnlCmd.Flags().Int("history-page-cap", 25, "maximum history pages per list")
	pnlCmd.Flags().Int("max-retries", 3, "maximum retry attempts per page")
	pnlCmd.Flags().Duration("retry-backoff", 400*time.Millisecond, "initial retry backoff")
	pnlCmd.Flags().Duration("cache-ttl", 5*time.Minute, "summary cache TTL")
	pnlCmd.Flags().Duration("lock-ttl", 2*time.Minute, "recompute lock TTL")
	pnlCmd.Flags().Duration("history-window", 90*24*time.Hour, "trailing history window")
	pnlCmd.Flags().Int("top-n", 5, "closed positions to rank")
	pnlCmd.Flags().String("wrapped-native", "", "wrapped native token address")
	pnlCmd.Flags().StringSlice("router", nil, "router addresses treated as issuers (comma-separated)")
	pnlCmd.Flags().Uint64("near-block-span", 2, "blocks to search around a trade for its cost leg")
	pnlCmd.Flags().Float64("dust-qty", 5.0, "quantity at or below which a position counts as closed")
	pnlCmd.Flags().Float64("dust-usd", 1.0, "USD value below which an open position is hidden")
	pnlCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(pnlCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
