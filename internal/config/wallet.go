package config

import (
	"time"

	"github.com/spf13/pflag"
)

// WalletConfig holds configuration for the pnl command.
type WalletConfig struct {
	ExplorerURL    string
	ExplorerAPIKey string
	PriceURL       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PGDSN         string
	OutDir        string

	RateLimit      float64
	RequestTimeout time.Duration

	HistoryPageSize int
	HistoryPageCap  int
	MaxRetries      int
	RetryBackoff    time.Duration

	CacheTTL      time.Duration
	LockTTL       time.Duration
	HistoryWindow time.Duration
	TopN          int

	WrappedNative string
	Routers       []string
	NearBlockSpan uint64
	DustQty       float64
	DustUSD       float64

	LogLevel string
}

// LoadWallet merges config file, environment variables, and flags into
// WalletConfig.
func LoadWallet(cfgFile string, flags *pflag.FlagSet) (WalletConfig, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return WalletConfig{}, err
	}

	v.SetDefault("rate-limit", 5.0)
	v.SetDefault("request-timeout", 15*time.Second)
	v.SetDefault("history-page-size", 100)
	v.SetDefault("history-page-cap", 25)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 400*time.Millisecond)
	v.SetDefault("cache-ttl", 5*time.Minute)
	v.SetDefault("lock-ttl", 2*time.Minute)
	v.SetDefault("history-window", 90*24*time.Hour)
	v.SetDefault("top-n", 5)
	v.SetDefault("near-block-span", uint64(2))
	v.SetDefault("dust-qty", 5.0)
	v.SetDefault("dust-usd", 1.0)
	v.SetDefault("out-dir", "./data")
	v.SetDefault("log-level", "info")

	cfg := WalletConfig{
		ExplorerURL:     v.GetString("explorer-url"),
		ExplorerAPIKey:  v.GetString("explorer-api-key"),
		PriceURL:        v.GetString("price-url"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		PGDSN:           v.GetString("pg-dsn"),
		OutDir:          v.GetString("out-dir"),
		RateLimit:       v.GetFloat64("rate-limit"),
		RequestTimeout:  v.GetDuration("request-timeout"),
		HistoryPageSize: v.GetInt("history-page-size"),
		HistoryPageCap:  v.GetInt("history-page-cap"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		CacheTTL:        v.GetDuration("cache-ttl"),
		LockTTL:         v.GetDuration("lock-ttl"),
		HistoryWindow:   v.GetDuration("history-window"),
		TopN:            v.GetInt("top-n"),
		WrappedNative:   v.GetString("wrapped-native"),
		Routers:         getStringSlice(v, "router"),
		NearBlockSpan:   v.GetUint64("near-block-span"),
		DustQty:         v.GetFloat64("dust-qty"),
		DustUSD:         v.GetFloat64("dust-usd"),
		LogLevel:        v.GetString("log-level"),
	}

	return cfg, nil
}
