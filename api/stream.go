package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lance/models"
)

// Stream 以 SSE 推送單一拍賣的即時更新
// (GET /api/auctions/:id/stream)
func (impl *Server) Stream(c *gin.Context) {
	const op = "Stream"
	auctionID := c.Param("id")
	ctx := c.Request.Context()

	// 拍賣不存在時直接回 404，已結束的拍賣仍可訂閱
	if _, err := impl.engine.Get(ctx, auctionID); err != nil {
		impl.fail(c, op, err)
		return
	}

	ch, err := impl.sseManager.Subscribe(impl.repo.Channel(auctionID))
	if err != nil {
		impl.fail(c, op, fmt.Errorf("[%s] Fail to subscribe, err=%w", op, err))
		return
	}
	defer impl.sseManager.Unsubscribe(impl.repo.Channel(auctionID), ch)

	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	connected, _ := json.Marshal(models.LiveUpdate{
		Type:      models.EventConnected,
		AuctionID: auctionID,
	})
	if !writeEvent(c, string(connected)) {
		return
	}

	logger := impl.logger.With(slog.String("auction_id", auctionID))
	logger.Debug("stream opened")
	defer logger.Debug("stream closed")

	// 閒置過久時送出註解行，避免中間的代理切斷連線
	heartbeat := time.NewTicker(impl.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-ch:
			if !ok {
				// 訂閱者跟不上或伺服器正在關閉
				return
			}
			if !writeEvent(c, message) {
				logger.Debug("stream write failed", slog.Any("error", c.Errors.Last()))
				return
			}
			heartbeat.Reset(impl.heartbeat)
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			w.Flush()
		}
	}
}

// writeEvent 寫入一則事件，寫入失敗時 gin 會記錄錯誤並 Abort
func writeEvent(c *gin.Context, data string) bool {
	c.SSEvent("", data)
	if c.IsAborted() || len(c.Errors) > 0 {
		return false
	}
	c.Writer.Flush()
	return true
}
