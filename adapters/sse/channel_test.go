package sse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lance/adapters/sse"
)

func TestChannel(t *testing.T) {
	ch := sse.NewChannel[string](4)

	sub := ch.Subscribe()
	require.NotNil(t, sub)
	assert.False(t, ch.IsIdle())

	assert.Zero(t, ch.Broadcast("first"))
	select {
	case received := <-sub:
		assert.Equal(t, "first", received)
	case <-time.After(time.Second):
		t.Fatal("did not receive message in time")
	}

	ch.Unsubscribe(sub)
	_, ok := <-sub
	assert.False(t, ok, "channel should be closed")
	assert.True(t, ch.IsIdle())

	// 重複取消訂閱不會 panic
	ch.Unsubscribe(sub)
}

func TestChannel_PreservesOrder(t *testing.T) {
	ch := sse.NewChannel[string](10)
	sub := ch.Subscribe()

	for _, msg := range []string{"a", "b", "c"} {
		ch.Broadcast(msg)
	}
	assert.Equal(t, "a", <-sub)
	assert.Equal(t, "b", <-sub)
	assert.Equal(t, "c", <-sub)
}

func TestChannel_DropsSlowSubscriber(t *testing.T) {
	ch := sse.NewChannel[string](2)
	slow := ch.Subscribe()
	fast := ch.Subscribe()

	assert.Zero(t, ch.Broadcast("1"))
	assert.Equal(t, "1", <-fast)
	assert.Zero(t, ch.Broadcast("2"))
	assert.Equal(t, "2", <-fast)
	assert.Equal(t, 1, ch.Broadcast("3"))
	assert.Equal(t, "3", <-fast)

	// 慢的訂閱者仍然可以讀完已經緩衝的訊息，之後通道關閉
	assert.Equal(t, "1", <-slow)
	assert.Equal(t, "2", <-slow)
	_, ok := <-slow
	assert.False(t, ok)

	ch.Unsubscribe(slow)
	assert.False(t, ch.IsIdle())
}

func TestChannel_UnsubscribeAll(t *testing.T) {
	ch := sse.NewChannel[string](0)
	a := ch.Subscribe()
	b := ch.Subscribe()

	ch.UnsubscribeAll()
	_, okA := <-a
	_, okB := <-b
	assert.False(t, okA)
	assert.False(t, okB)
	assert.True(t, ch.IsIdle())
}
