package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lance/api"
)

func main() {
	args := ParseArgs()
	if !args.Validate() {
		panic("missing arguments")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(args.LogLevel)}))
	if args.ServerConfig.ID != "" {
		logger = logger.With(slog.String("instance", args.ServerConfig.ID))
	}
	slog.SetDefault(logger)

	server, err := api.NewServer(args.ServerConfig, api.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	server.Start()

	router := gin.Default()
	server.RegisterRoutes(router)

	httpServer := &http.Server{
		Addr:    args.ServerURL,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("listening", slog.String("addr", args.ServerURL))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// SSE 連線不會自己結束，先釋放串流，Shutdown 才能等到進行中的請求做完
	server.ReleaseStreams()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.Any("error", err))
	}
	// 請求都結束後才停掉 sweeper、producer 與 Redis
	server.Close()
}
