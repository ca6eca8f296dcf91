package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	redisAdapter "lance/adapters/redis"
	"lance/adapters/sse"
	"lance/auction"
	"lance/models"
	"lance/repository"
)

const defaultHeartbeat = 30 * time.Second

type serverOptions struct {
	logger      *slog.Logger
	redisClient *redis.Client
	heartbeat   time.Duration
}

type ServerOption func(*serverOptions)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// WithRedisClient 使用既有的 Redis 連線，不依 config 建立
func WithRedisClient(client *redis.Client) ServerOption {
	return func(o *serverOptions) {
		o.redisClient = client
	}
}

// WithHeartbeat 設置串流閒置多久送出一次心跳
func WithHeartbeat(d time.Duration) ServerOption {
	return func(o *serverOptions) {
		o.heartbeat = d
	}
}

type Server struct {
	redisClient *redis.Client
	ownsClient  bool
	repo        *repository.Repository
	engine      *auction.Engine
	sweeper     *auction.Sweeper
	producer    *redisAdapter.Producer[models.AuctionEnded]
	sseManager  sse.IConnectionManager[string]
	heartbeat   time.Duration
	logger      *slog.Logger

	wg         sync.WaitGroup
	cancelFunc context.CancelFunc

	config ServerConfig
}

func NewServer(config ServerConfig, opts ...ServerOption) (*Server, error) {
	const op = "NewServer"

	options := serverOptions{
		logger:    slog.Default(),
		heartbeat: defaultHeartbeat,
	}
	for _, opt := range opts {
		opt(&options)
	}
	logger := options.logger

	// 初始化Redis連線
	redisClient := options.redisClient
	ownsClient := false
	if redisClient == nil {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
		})
		ownsClient = true
	}

	repoOpts := []repository.Option{
		repository.WithLogger(logger),
		repository.WithKeyPrefix(config.Redis.KeyPrefix),
	}
	if config.Redis.Timeout > 0 {
		repoOpts = append(repoOpts, repository.WithTimeout(config.Redis.Timeout))
	}
	if config.Auction.Retention > 0 {
		repoOpts = append(repoOpts, repository.WithRetention(config.Auction.Retention))
	}
	repo := repository.New(redisClient, repoOpts...)
	bus := redisAdapter.NewBus(redisClient, redisAdapter.WithBusLogger(logger))

	// 結束事件: Pub/Sub，另外可選擇寫入 Stream
	handoffOpts := []auction.HandoffOption{auction.WithHandoffLogger(logger)}
	if config.Handoff.Channel != "" {
		handoffOpts = append(handoffOpts, auction.WithHandoffChannel(config.Handoff.Channel))
	}
	var producer *redisAdapter.Producer[models.AuctionEnded]
	if config.Handoff.Stream != "" {
		var err error
		producer, err = redisAdapter.NewProducer(redisClient, config.Handoff.Stream,
			redisAdapter.WithProducerLogger[models.AuctionEnded](logger),
			redisAdapter.WithProducerMaxLen[models.AuctionEnded](config.Handoff.StreamMaxLen),
		)
		if err != nil {
			return nil, fmt.Errorf("[%s] Fail to create handoff producer, err=%w", op, err)
		}
		handoffOpts = append(handoffOpts, auction.WithHandoffStream(producer))
	}
	handoff := auction.NewHandoff(repo, bus, handoffOpts...)

	engineOpts := []auction.EngineOption{auction.WithEngineLogger(logger)}
	if config.Auction.MinIncrement.IsPositive() {
		engineOpts = append(engineOpts, auction.WithMinIncrement(config.Auction.MinIncrement))
	}
	if config.Auction.MaxAttempts > 0 {
		engineOpts = append(engineOpts, auction.WithMaxAttempts(config.Auction.MaxAttempts))
	}
	engine := auction.NewEngine(repo, handoff, engineOpts...)

	// 過期清掃，只在被指定的實例上啟用，並以分散式鎖確保同時只有一個在工作
	var sweeper *auction.Sweeper
	if config.Sweeper.Enabled {
		sweeperOpts := []auction.SweeperOption{auction.WithSweeperLogger(logger)}
		if config.Sweeper.Interval > 0 {
			sweeperOpts = append(sweeperOpts, auction.WithSweeperInterval(config.Sweeper.Interval))
		}
		if config.Sweeper.LockKey != "" {
			mutex := redisAdapter.NewAutoRenewMutex(redisClient, config.Sweeper.LockKey,
				redisAdapter.WithAutoRenewMutexLogger(logger),
				redisAdapter.WithAutoRenewMutexSkipLockError(true),
			)
			sweeperOpts = append(sweeperOpts, auction.WithSweeperLeaderLock(mutex))
		}
		sweeper = auction.NewSweeper(repo, engine, sweeperOpts...)
	}

	// 初始化SSE管理器，整個程序只對 Redis 做一次 pattern 訂閱
	subscribeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	source, err := sse.NewRedisSource(subscribeCtx, bus, repo.ChannelPattern())
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to subscribe live updates, err=%w", op, err)
	}
	sseManager := sse.NewConnectionManager[string](source, sse.WithManagerLogger(logger))

	return &Server{
		redisClient: redisClient,
		ownsClient:  ownsClient,
		repo:        repo,
		engine:      engine,
		sweeper:     sweeper,
		producer:    producer,
		sseManager:  sseManager,
		heartbeat:   options.heartbeat,
		logger:      logger.With(slog.String("caller", "Server")),
		config:      config,
	}, nil
}

func (impl *Server) Start() {
	// 啟動sse connection manager
	impl.sseManager.Start()
	// 啟動結束事件的stream producer
	if impl.producer != nil {
		impl.producer.Start()
	}

	ctx, cancel := context.WithCancel(context.Background())
	impl.cancelFunc = cancel
	if impl.sweeper != nil {
		impl.wg.Add(1)
		go func() {
			defer impl.wg.Done()
			impl.sweeper.Run(ctx)
		}()
	}
}

// ReleaseStreams 結束所有 SSE 串流，讓 http.Server 的 Shutdown 不會被長連線卡住
func (impl *Server) ReleaseStreams() {
	impl.sseManager.Done()
}

// Close 需在 http.Server 停止接收請求後呼叫，Redis 連線最後才關閉
func (impl *Server) Close() {
	impl.ReleaseStreams()
	// 停止sweeper
	if impl.cancelFunc != nil {
		impl.cancelFunc()
	}
	impl.wg.Wait()
	// 關閉producer，緩衝中的結束事件會先寫完
	if impl.producer != nil {
		impl.producer.Close()
	}
	if impl.ownsClient {
		impl.redisClient.Close()
	}
}

// RegisterRoutes 掛載所有 API
func (impl *Server) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/api")
	group.GET("/health", impl.Health)
	group.POST("/auctions", impl.CreateAuction)
	group.GET("/auctions", impl.ListAuctions)
	group.GET("/auctions/:id", impl.GetAuction)
	group.POST("/auctions/:id/bids", impl.PlaceBid)
	group.GET("/auctions/:id/bids", impl.ListBids)
	group.GET("/auctions/:id/stream", impl.Stream)
	group.POST("/auctions/:id/close", impl.CloseAuction)
}

// ErrorResponse 錯誤回應格式
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

var reasonStatus = map[string]int{
	auction.ReasonValidation:            http.StatusBadRequest,
	auction.ReasonTooLow:                http.StatusBadRequest,
	auction.ReasonBelowMinimumIncrement: http.StatusBadRequest,
	auction.ReasonSelfBid:               http.StatusForbidden,
	auction.ReasonForbidden:             http.StatusForbidden,
	auction.ReasonNotFound:              http.StatusNotFound,
	auction.ReasonConflictRetry:         http.StatusConflict,
	auction.ReasonAuctionEnded:          http.StatusGone,
	auction.ReasonStoreUnavailable:      http.StatusServiceUnavailable,
}

func (impl *Server) fail(c *gin.Context, op string, err error) {
	reason := auction.Reason(err)
	status, ok := reasonStatus[reason]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		impl.logger.Error("request failed", slog.String("op", op), slog.Any("error", err))
	}
	c.JSON(status, ErrorResponse{Error: reason, Message: auction.Message(err)})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: auction.ReasonValidation, Message: message})
}

// Health 檢查 Redis 連線
// (GET /api/health)
func (impl *Server) Health(c *gin.Context) {
	connected := impl.repo.Ping(c.Request.Context()) == nil
	status := "healthy"
	if !connected {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":          status,
		"timestamp":       time.Now().UTC(),
		"redis_connected": connected,
	})
}

type createAuctionRequest struct {
	Title         string          `json:"title"`
	Description   *string         `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	OwnerID       string          `json:"owner_id"`
	EndTime       *time.Time      `json:"end_time"`
	DurationHours *float64        `json:"duration_hours"`
}

// CreateAuction 建立拍賣
// (POST /api/auctions)
func (impl *Server) CreateAuction(c *gin.Context) {
	const op = "CreateAuction"
	var body createAuctionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	a, err := impl.engine.CreateAuction(c.Request.Context(), auction.CreateRequest{
		Title:         body.Title,
		Description:   body.Description,
		StartingPrice: body.StartingPrice,
		OwnerID:       body.OwnerID,
		EndTime:       body.EndTime,
		DurationHours: body.DurationHours,
	})
	if err != nil {
		impl.fail(c, op, err)
		return
	}
	c.Header("Location", "/api/auctions/"+a.ID)
	c.JSON(http.StatusCreated, gin.H{
		"message": "Auction created successfully",
		"auction": a,
	})
}

// ListAuctions 進行中的拍賣
// (GET /api/auctions)
func (impl *Server) ListAuctions(c *gin.Context) {
	const op = "ListAuctions"
	auctions, err := impl.engine.ListActive(c.Request.Context())
	if err != nil {
		impl.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(auctions),
		"auctions": auctions,
	})
}

// GetAuction 拍賣詳情與最新 20 筆出價
// (GET /api/auctions/:id)
func (impl *Server) GetAuction(c *gin.Context) {
	const op = "GetAuction"
	detail, err := impl.engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		impl.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type placeBidRequest struct {
	UserID   string          `json:"user_id"`
	Username string          `json:"username"`
	Contact  string          `json:"contact"`
	Amount   decimal.Decimal `json:"amount"`
}

// PlaceBid 出價
// (POST /api/auctions/:id/bids)
func (impl *Server) PlaceBid(c *gin.Context) {
	const op = "PlaceBid"
	var body placeBidRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}

	bid, err := impl.engine.PlaceBid(c.Request.Context(), auction.BidRequest{
		AuctionID:  c.Param("id"),
		BidderID:   body.UserID,
		BidderName: body.Username,
		Contact:    body.Contact,
		Amount:     body.Amount,
	})
	if err != nil {
		impl.fail(c, op, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Bid placed successfully",
		"bid":     bid,
	})
}

// ListBids 出價紀錄
// (GET /api/auctions/:id/bids?limit=)
func (impl *Server) ListBids(c *gin.Context) {
	const op = "ListBids"
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
		limit = n
	}

	bids, err := impl.engine.Bids(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		impl.fail(c, op, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

type closeAuctionRequest struct {
	UserID string `json:"user_id"`
}

// CloseAuction 賣家手動結束拍賣
// (POST /api/auctions/:id/close)
func (impl *Server) CloseAuction(c *gin.Context) {
	const op = "CloseAuction"
	var body closeAuctionRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
		badRequest(c, "user_id is required")
		return
	}

	closed, err := impl.engine.CloseByOwner(c.Request.Context(), c.Param("id"), body.UserID)
	if err != nil {
		impl.fail(c, op, err)
		return
	}
	message := "Auction closed successfully"
	if !closed {
		message = "Auction was already closed"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"closed":  closed,
	})
}
