package main

import (
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lance/api"
	"lance/auction"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:5000", "")
	pflag.String("log-level", "info", "debug|info|warn|error")
	pflag.String("instance-id", "", "")

	// redis config
	pflag.String("redis-addr", "localhost:6379", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 0, "")
	pflag.String("redis-key-prefix", "", "")
	pflag.Duration("redis-timeout", 3*time.Second, "")

	// auction config
	pflag.Duration("auction-retention", 24*time.Hour, "how long ended auctions stay readable")
	pflag.String("min-increment", "0.05", "minimum raise as a ratio of the current price")
	pflag.Int("bid-max-attempts", 3, "")

	// sweeper config
	pflag.Bool("sweeper-enabled", false, "run the expiration sweeper on this instance")
	pflag.Duration("sweeper-interval", time.Minute, "")
	pflag.String("sweeper-lock-key", "lance:sweeper:leader", "")

	// handoff config
	pflag.String("channel-ended", auction.DefaultEndedChannel, "")
	pflag.String("handoff-stream", "", "also append ended events to this redis stream")
	pflag.Int64("handoff-stream-max-len", 10000, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("LANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	minIncrement, err := decimal.NewFromString(viper.GetString("min-increment"))
	if err != nil {
		minIncrement = decimal.Zero
	}

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		LogLevel:  viper.GetString("log-level"),
		ServerConfig: api.ServerConfig{
			ID: viper.GetString("instance-id"),
			Redis: api.RedisConfig{
				Addr:      viper.GetString("redis-addr"),
				Password:  viper.GetString("redis-password"),
				DB:        viper.GetInt("redis-db"),
				KeyPrefix: viper.GetString("redis-key-prefix"),
				Timeout:   viper.GetDuration("redis-timeout"),
			},
			Auction: api.AuctionConfig{
				Retention:    viper.GetDuration("auction-retention"),
				MinIncrement: minIncrement,
				MaxAttempts:  viper.GetInt("bid-max-attempts"),
			},
			Sweeper: api.SweeperConfig{
				Enabled:  viper.GetBool("sweeper-enabled"),
				Interval: viper.GetDuration("sweeper-interval"),
				LockKey:  viper.GetString("sweeper-lock-key"),
			},
			Handoff: api.HandoffConfig{
				Channel:      viper.GetString("channel-ended"),
				Stream:       viper.GetString("handoff-stream"),
				StreamMaxLen: viper.GetInt64("handoff-stream-max-len"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	LogLevel     string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	return args.ServerURL != "" &&
		args.ServerConfig.Redis.Addr != "" &&
		args.ServerConfig.Auction.MinIncrement.IsPositive()
}

// parseLevel 無法辨識時使用 info
func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
