package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration for the holders command, loaded from flags,
// env, or config file.
type Config struct {
	ExplorerURL    string
	ExplorerAPIKey string
	RPCURL         string
	PriceURL       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PGDSN         string
	OutDir        string

	RateLimit      float64
	RequestTimeout time.Duration

	WindowSize   uint64
	WindowFloor  uint64
	MaxWindows   int
	PageSize     int
	MaxRetries   int
	RetryBackoff time.Duration

	CacheTTL time.Duration
	LockTTL  time.Duration
	TopN     int
	Excluded []string

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}

	v.SetDefault("rate-limit", 5.0)
	v.SetDefault("request-timeout", 15*time.Second)
	v.SetDefault("window-size", uint64(200_000))
	v.SetDefault("window-floor", uint64(10_000))
	v.SetDefault("max-windows", 60)
	v.SetDefault("page-size", 1000)
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 400*time.Millisecond)
	v.SetDefault("cache-ttl", 5*time.Minute)
	v.SetDefault("lock-ttl", 2*time.Minute)
	v.SetDefault("top-n", 10)
	v.SetDefault("out-dir", "./data")
	v.SetDefault("log-level", "info")

	cfg := Config{
		ExplorerURL:    v.GetString("explorer-url"),
		ExplorerAPIKey: v.GetString("explorer-api-key"),
		RPCURL:         v.GetString("rpc"),
		PriceURL:       v.GetString("price-url"),
		RedisAddr:      v.GetString("redis-addr"),
		RedisPassword:  v.GetString("redis-password"),
		RedisDB:        v.GetInt("redis-db"),
		PGDSN:          v.GetString("pg-dsn"),
		OutDir:         v.GetString("out-dir"),
		RateLimit:      v.GetFloat64("rate-limit"),
		RequestTimeout: v.GetDuration("request-timeout"),
		WindowSize:     v.GetUint64("window-size"),
		WindowFloor:    v.GetUint64("window-floor"),
		MaxWindows:     v.GetInt("max-windows"),
		PageSize:       v.GetInt("page-size"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		CacheTTL:       v.GetDuration("cache-ttl"),
		LockTTL:        v.GetDuration("lock-ttl"),
		TopN:           v.GetInt("top-n"),
		Excluded:       getStringSlice(v, "exclude"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("TOKENSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
