package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"lance/models"
)

var ErrInvalidEvent = errors.New("invalid auction ended event")

// Result 單一結束事件的處理結果，各步驟互相獨立
type Result struct {
	Duplicate bool
	Report    string
	ReportURL string
	EmailSent bool
	ChatSent  bool
	Archived  bool
}

type processorOptions struct {
	logger   *slog.Logger
	archiver Archiver
	uploader ReportUploader
}

type ProcessorOption func(*processorOptions)

func WithProcessorLogger(logger *slog.Logger) ProcessorOption {
	return func(o *processorOptions) {
		o.logger = logger
	}
}

// WithArchiver 設定後結果會寫入資料庫
func WithArchiver(archiver Archiver) ProcessorOption {
	return func(o *processorOptions) {
		o.archiver = archiver
	}
}

// WithReportUploader 設定後報告會上傳到物件儲存
func WithReportUploader(uploader ReportUploader) ProcessorOption {
	return func(o *processorOptions) {
		o.uploader = uploader
	}
}

// Processor 處理拍賣結束事件: 報告、通知得標者、公告、歸檔
type Processor struct {
	dedup     Deduper
	generator Generator
	notifier  Notifier
	archiver  Archiver
	uploader  ReportUploader
	logger    *slog.Logger
}

func NewProcessor(dedup Deduper, generator Generator, notifier Notifier, opts ...ProcessorOption) *Processor {
	options := processorOptions{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Processor{
		dedup:     dedup,
		generator: generator,
		notifier:  notifier,
		archiver:  options.archiver,
		uploader:  options.uploader,
		logger:    options.logger.With(slog.String("caller", "Processor")),
	}
}

// Process 只有去重失敗或事件無效時返回錯誤，其餘步驟失敗只記錄
func (p *Processor) Process(ctx context.Context, event models.AuctionEnded) (Result, error) {
	const op = "Processor.Process"
	auction := event.Auction
	if event.Type != models.EventAuctionEnded || auction.AuctionID == "" {
		return Result{}, fmt.Errorf("[%s] type=%q, id=%q, err=%w", op, event.Type, auction.AuctionID, ErrInvalidEvent)
	}
	logger := p.logger.With(slog.String("auctionId", auction.AuctionID))

	first, err := p.dedup.FirstSeen(ctx, auction.AuctionID)
	if err != nil {
		return Result{}, fmt.Errorf("[%s] %w", op, err)
	}
	if !first {
		logger.Info("duplicate ended event skipped")
		return Result{Duplicate: true}, nil
	}

	logger.Info("processing ended auction",
		slog.String("title", auction.Title),
		slog.String("winner", auction.WinnerName),
		slog.String("finalPrice", auction.FinalPrice.StringFixed(2)),
	)

	var result Result
	result.Report = p.report(ctx, logger, auction, &result)
	result.EmailSent = p.email(ctx, logger, auction)
	result.ChatSent = p.chat(ctx, logger, auction)
	result.Archived = p.archive(ctx, logger, auction, result.ReportURL)

	logger.Info("ended auction processed",
		slog.Bool("emailSent", result.EmailSent),
		slog.Bool("chatSent", result.ChatSent),
		slog.Bool("archived", result.Archived),
	)
	return result, nil
}

func (p *Processor) report(ctx context.Context, logger *slog.Logger, auction models.EndedAuction, result *Result) string {
	report, err := p.generator.Report(auction)
	if err != nil {
		logger.Error("failed to generate report", slog.Any("error", err))
		return ""
	}
	logger.Debug("report generated", slog.Int("length", len(report)))

	if p.uploader == nil {
		return report
	}
	key := fmt.Sprintf("reports/%s.txt", auction.AuctionID)
	url, err := p.uploader.Upload(ctx, key, "text/plain; charset=utf-8", strings.NewReader(report))
	if err != nil {
		logger.Error("failed to upload report", slog.Any("error", err))
		return report
	}
	result.ReportURL = url
	return report
}

func (p *Processor) email(ctx context.Context, logger *slog.Logger, auction models.EndedAuction) bool {
	if !auction.HasWinner() {
		logger.Info("no winner, skipping e-mail")
		return false
	}
	if auction.WinnerContact == "" {
		logger.Warn("winner has no contact, skipping e-mail", slog.String("winnerId", auction.WinnerID))
		return false
	}
	email, err := p.generator.WinnerEmail(auction)
	if err != nil {
		logger.Error("failed to generate e-mail", slog.Any("error", err))
		return false
	}
	return p.notifier.SendEmail(ctx, email)
}

func (p *Processor) chat(ctx context.Context, logger *slog.Logger, auction models.EndedAuction) bool {
	post, err := p.generator.ChatPost(auction)
	if err != nil {
		logger.Error("failed to generate chat post", slog.Any("error", err))
		return false
	}
	return p.notifier.SendChat(ctx, post)
}

func (p *Processor) archive(ctx context.Context, logger *slog.Logger, auction models.EndedAuction, reportURL string) bool {
	if p.archiver == nil {
		return false
	}
	row := models.NewAuctionResult(auction)
	row.ReportURL = reportURL
	created, err := p.archiver.Archive(ctx, &row)
	if err != nil {
		logger.Error("failed to archive result", slog.Any("error", err))
		return false
	}
	if !created {
		logger.Info("result already archived")
	}
	return created
}
