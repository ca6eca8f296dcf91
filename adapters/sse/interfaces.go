//go:generate mockgen -package=sse -destination=mock.go -source=interfaces.go

package sse

// Envelope 從跨節點來源收到的一則訊息
type Envelope[T any] struct {
	Channel string
	Message T
}

// Source 跨節點的訊息來源，Close 之後 Messages 會被關閉
type Source[T any] interface {
	Messages() <-chan Envelope[T]
	Close() error
}

// IChannel 單一頻道的本地訂閱者集合
type IChannel[T any] interface {
	// Subscribe 建立新的訂閱並返回接收訊息的通道
	Subscribe() <-chan T
	// Unsubscribe 取消指定通道的訂閱
	Unsubscribe(ch <-chan T)
	// UnsubscribeAll 取消所有訂閱
	UnsubscribeAll()
	// Broadcast 將訊息送給所有訂閱者，回傳因跟不上而被移除的數量
	Broadcast(message T) int
	// IsIdle 檢查是否沒有訂閱者
	IsIdle() bool
}

// IConnectionManager 將來源訊息分派到本地頻道
type IConnectionManager[T any] interface {
	// Start 開始從來源接收訊息，應在其他方法之前呼叫
	Start()
	// Done 停止接收並關閉所有訂閱
	Done()
	// Subscribe 訂閱指定頻道
	Subscribe(channelName string) (<-chan T, error)
	// Unsubscribe 取消訂閱指定頻道
	Unsubscribe(channelName string, ch <-chan T)
}
