package sse

import (
	"sync"
)

// DefaultSubscriberBuffer 每個訂閱者可以累積的訊息數
const DefaultSubscriberBuffer = 64

// Channel 管理同一個頻道的所有本地訂閱者。
// 每個訂閱者都有固定大小的緩衝，緩衝滿了代表它跟不上，
// 直接移除並關閉它的通道，不讓一個慢的連線拖住其他人。
type Channel[T any] struct {
	subscribers map[<-chan T]chan T
	buffer      int
	mu          sync.RWMutex
}

// NewChannel buffer <= 0 時使用 DefaultSubscriberBuffer
func NewChannel[T any](buffer int) *Channel[T] {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Channel[T]{
		subscribers: make(map[<-chan T]chan T),
		buffer:      buffer,
	}
}

// Subscribe 建立一個新的訂閱者並回傳唯讀通道
func (c *Channel[T]) Subscribe() <-chan T {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan T, c.buffer)
	c.subscribers[ch] = ch
	return ch
}

// Unsubscribe 移除並關閉指定通道，已被移除的通道不會重複關閉
func (c *Channel[T]) Unsubscribe(ch <-chan T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if writeCh, exists := c.subscribers[ch]; exists {
		delete(c.subscribers, ch)
		close(writeCh)
	}
}

// UnsubscribeAll 關閉所有訂閱者的通道
func (c *Channel[T]) UnsubscribeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, writeCh := range c.subscribers {
		close(writeCh)
	}
	clear(c.subscribers)
}

// Broadcast 不會阻塞，回傳被移除的訂閱者數量
func (c *Channel[T]) Broadcast(message T) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for readCh, writeCh := range c.subscribers {
		select {
		case writeCh <- message:
		default:
			delete(c.subscribers, readCh)
			close(writeCh)
			dropped++
		}
	}
	return dropped
}

// IsIdle 沒有任何訂閱者
func (c *Channel[T]) IsIdle() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribers) == 0
}
