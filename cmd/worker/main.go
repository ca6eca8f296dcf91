package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	redisAdapter "lance/adapters/redis"
	"lance/adapters/s3"
	"lance/models"
	"lance/pipeline"
)

func main() {
	args := ParseArgs()
	if err := args.Validate(); err != nil {
		panic(err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(args.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("instance", args.InstanceID))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, args, logger); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(ctx context.Context, args Args, logger *slog.Logger) error {
	const op = "run"

	// 初始化Redis連線
	client := redis.NewClient(&redis.Options{
		Addr:     args.Redis.Addr,
		Password: args.Redis.Password,
		DB:       args.Redis.DB,
	})
	defer client.Close()
	if err := waitForRedis(ctx, client, logger); err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}

	opts := []pipeline.ProcessorOption{pipeline.WithProcessorLogger(logger)}

	// 設定資料庫時才歸檔結果
	if dsn := args.DB.DSN(); dsn != "" {
		config := &gorm.Config{TranslateError: true}
		if args.DB.Schema != "" {
			config.NamingStrategy = schema.NamingStrategy{TablePrefix: args.DB.Schema + "."}
		}
		db, err := gorm.Open(postgres.Open(dsn), config)
		if err != nil {
			return fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
		}
		archiver := pipeline.NewGormArchiver(db)
		if err := archiver.Migrate(ctx); err != nil {
			return fmt.Errorf("[%s] %w", op, err)
		}
		opts = append(opts, pipeline.WithArchiver(archiver))
	}

	// 設定 bucket 時才上傳報告
	if args.S3.Bucket != "" {
		s3Client, err := s3.NewClient(ctx, args.S3)
		if err != nil {
			return fmt.Errorf("[%s] %w", op, err)
		}
		operator, err := s3.NewS3Operator(s3Client, args.S3.Bucket, args.S3.PublicBaseURL)
		if err != nil {
			return fmt.Errorf("[%s] %w", op, err)
		}
		opts = append(opts, pipeline.WithReportUploader(operator))
	}

	notifier := pipeline.NewNotificationService(
		pipeline.WithNotifierLogger(logger),
		pipeline.WithSMTP(args.SMTP),
		pipeline.WithDiscordWebhook(args.WebhookURL),
	)
	processor := pipeline.NewProcessor(
		pipeline.NewRedisDeduper(client, "", 0),
		pipeline.NewTemplateGenerator(),
		notifier,
		opts...,
	)
	worker := pipeline.NewWorker(processor, logger)

	switch args.Source {
	case sourceStream:
		consumer, err := redisAdapter.NewGroupConsumer(client, args.Stream, args.ConsumerGroup, args.InstanceID,
			redisAdapter.WithGroupConsumerLogger[models.AuctionEnded](logger),
		)
		if err != nil {
			return fmt.Errorf("[%s] %w", op, err)
		}
		return worker.RunStream(ctx, consumer)
	default:
		bus := redisAdapter.NewBus(client, redisAdapter.WithBusLogger(logger))
		return worker.RunPubSub(ctx, bus, args.Channel)
	}
}

// waitForRedis 啟動時 Redis 可能尚未就緒，每 2 秒重試，最多 30 次
func waitForRedis(ctx context.Context, client *redis.Client, logger *slog.Logger) error {
	attempt := 0
	backoff := retry.WithMaxRetries(30, retry.NewConstant(2*time.Second))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("waiting for redis", slog.Int("attempt", attempt), slog.Any("error", err))
			return retry.RetryableError(err)
		}
		logger.Info("connected to redis")
		return nil
	})
}
