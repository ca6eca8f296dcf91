package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"lance/adapters/s3"
	"lance/auction"
	"lance/pipeline"
)

const (
	sourcePubSub = "pubsub"
	sourceStream = "stream"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

// DSN 未設定 host 時返回空字串，代表不啟用歸檔
func (c DBConfig) DSN() string {
	if c.Host == "" {
		return ""
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
	if c.Schema != "" {
		dsn += "&search_path=" + c.Schema
	}
	return dsn
}

type Args struct {
	LogLevel      string
	InstanceID    string
	Source        string
	Channel       string
	Stream        string
	ConsumerGroup string
	Redis         RedisConfig
	SMTP          pipeline.SMTPConfig
	WebhookURL    string
	DB            DBConfig
	S3            s3.Config
}

func ParseArgs() Args {
	pflag.String("log-level", "info", "debug|info|warn|error")
	pflag.String("instance-id", "", "consumer name, defaults to hostname")

	// redis config
	pflag.String("redis-addr", "localhost:6379", "")
	pflag.String("redis-password", "", "")
	pflag.Int("redis-db", 0, "")

	// event source
	pflag.String("source", sourcePubSub, "pubsub|stream")
	pflag.String("channel-ended", auction.DefaultEndedChannel, "")
	pflag.String("handoff-stream", "auctions:ended:stream", "")
	pflag.String("consumer-group", "lance-pipeline", "")

	// notification config
	pflag.String("smtp-host", "smtp.gmail.com", "")
	pflag.Int("smtp-port", 587, "")
	pflag.String("smtp-user", "", "")
	pflag.String("smtp-password", "", "")
	pflag.String("email-from", "", "")
	pflag.String("discord-webhook-url", "", "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// s3 config
	pflag.String("s3-endpoint", "", "")
	pflag.String("s3-region", "", "")
	pflag.String("s3-bucket", "", "")
	pflag.String("s3-public-base-url", "", "")
	pflag.String("s3-access-key-id", "", "")
	pflag.String("s3-secret-access-key", "", "")
	pflag.Bool("s3-path-style", false, "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("LANCE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	instanceID := viper.GetString("instance-id")
	if instanceID == "" {
		instanceID, _ = os.Hostname()
	}

	return Args{
		LogLevel:      viper.GetString("log-level"),
		InstanceID:    instanceID,
		Source:        viper.GetString("source"),
		Channel:       viper.GetString("channel-ended"),
		Stream:        viper.GetString("handoff-stream"),
		ConsumerGroup: viper.GetString("consumer-group"),
		Redis: RedisConfig{
			Addr:     viper.GetString("redis-addr"),
			Password: viper.GetString("redis-password"),
			DB:       viper.GetInt("redis-db"),
		},
		SMTP: pipeline.SMTPConfig{
			Host:     viper.GetString("smtp-host"),
			Port:     viper.GetInt("smtp-port"),
			User:     viper.GetString("smtp-user"),
			Password: viper.GetString("smtp-password"),
			From:     viper.GetString("email-from"),
		},
		WebhookURL: viper.GetString("discord-webhook-url"),
		DB: DBConfig{
			User:     viper.GetString("db-user"),
			Password: viper.GetString("db-password"),
			Host:     viper.GetString("db-host"),
			Port:     viper.GetInt("db-port"),
			Database: viper.GetString("db-database"),
			Schema:   viper.GetString("db-schema"),
		},
		S3: s3.Config{
			Endpoint:        viper.GetString("s3-endpoint"),
			Region:          viper.GetString("s3-region"),
			Bucket:          viper.GetString("s3-bucket"),
			PublicBaseURL:   viper.GetString("s3-public-base-url"),
			AccessKeyID:     viper.GetString("s3-access-key-id"),
			SecretAccessKey: viper.GetString("s3-secret-access-key"),
			UsePathStyle:    viper.GetBool("s3-path-style"),
		},
	}
}

func (args Args) Validate() error {
	switch {
	case args.Redis.Addr == "":
		return fmt.Errorf("redis-addr is required")
	case args.Source != sourcePubSub && args.Source != sourceStream:
		return fmt.Errorf("unknown source %q", args.Source)
	case args.Source == sourcePubSub && args.Channel == "":
		return fmt.Errorf("channel-ended is required")
	case args.Source == sourceStream && (args.Stream == "" || args.ConsumerGroup == ""):
		return fmt.Errorf("handoff-stream and consumer-group are required")
	}
	return nil
}
