package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testStream = "auctions:ended:stream"
	testGroup  = "pipeline"
)

func addTestMessage(t *testing.T, client *redis.Client, msg TestMessage) string {
	t.Helper()
	values, err := DefaultParseToMessage(msg)
	require.NoError(t, err)
	id, err := client.XAdd(context.Background(), &redis.XAddArgs{Stream: testStream, Values: values}).Result()
	require.NoError(t, err)
	return id
}

func receive[T any](t *testing.T, ch <-chan *Message[T]) *Message[T] {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func newTestConsumer(t *testing.T, client *redis.Client, name string) *GroupConsumer[TestMessage] {
	t.Helper()
	consumer, err := NewGroupConsumer[TestMessage](client, testStream, testGroup, name,
		WithGroupConsumerBlockTimeout[TestMessage](50*time.Millisecond),
		WithGroupConsumerRetryDelay[TestMessage](10*time.Millisecond),
	)
	require.NoError(t, err)
	return consumer
}

func TestNewGroupConsumer_Validation(t *testing.T) {
	client, _ := setupMiniredis(t)

	_, err := NewGroupConsumer[TestMessage](nil, testStream, testGroup, "c1")
	assert.Error(t, err)
	_, err = NewGroupConsumer[TestMessage](client, "", testGroup, "c1")
	assert.Error(t, err)
	_, err = NewGroupConsumer[TestMessage](client, testStream, "", "c1")
	assert.Error(t, err)
	_, err = NewGroupConsumer[TestMessage](client, testStream, testGroup, "")
	assert.Error(t, err)
}

func TestGroupConsumer_ReceiveAndAck(t *testing.T) {
	client, _ := setupMiniredis(t)
	consumer := newTestConsumer(t, client, "c1")
	require.NoError(t, consumer.Start())
	defer consumer.Close()

	addTestMessage(t, client, TestMessage{ID: "a1", Data: "first"})
	addTestMessage(t, client, TestMessage{ID: "a2", Data: "second"})

	first := receive(t, consumer.Subscribe())
	assert.Equal(t, "a1", first.Data.ID)
	require.NoError(t, first.Done(context.Background()))
	require.NoError(t, first.Done(context.Background()))

	second := receive(t, consumer.Subscribe())
	assert.Equal(t, "a2", second.Data.ID)
	require.NoError(t, second.Done(context.Background()))

	pending, err := client.XPending(context.Background(), testStream, testGroup).Result()
	require.NoError(t, err)
	assert.Zero(t, pending.Count)
}

func TestGroupConsumer_FailMovesToDeadLetter(t *testing.T) {
	client, _ := setupMiniredis(t)
	consumer := newTestConsumer(t, client, "c1")
	require.NoError(t, consumer.Start())
	defer consumer.Close()

	addTestMessage(t, client, TestMessage{ID: "a1"})
	msg := receive(t, consumer.Subscribe())
	require.NoError(t, msg.Fail(context.Background(), errors.New("smtp down")))

	dead, err := client.XRange(context.Background(), testStream+deadLetterSuffix, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "smtp down", dead[0].Values["error"])
}

func TestGroupConsumer_UnparseableGoesToDeadLetter(t *testing.T) {
	client, _ := setupMiniredis(t)
	consumer := newTestConsumer(t, client, "c1")
	require.NoError(t, consumer.Start())
	defer consumer.Close()

	ctx := context.Background()
	require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
		Stream: testStream,
		Values: map[string]any{"data": "not-base64!!"},
	}).Err())
	addTestMessage(t, client, TestMessage{ID: "a2"})

	msg := receive(t, consumer.Subscribe())
	assert.Equal(t, "a2", msg.Data.ID)

	assert.Eventually(t, func() bool {
		n, err := client.XLen(ctx, testStream+deadLetterSuffix).Result()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGroupConsumer_RedeliversOwnPending(t *testing.T) {
	client, _ := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, client.XGroupCreateMkStream(ctx, testStream, testGroup, "0").Err())
	addTestMessage(t, client, TestMessage{ID: "a1"})

	// 模擬上一次執行讀取後尚未 ack 就結束
	_, err := client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    testGroup,
		Consumer: "c1",
		Streams:  []string{testStream, ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	require.NoError(t, err)
	addTestMessage(t, client, TestMessage{ID: "a2"})

	consumer := newTestConsumer(t, client, "c1")
	require.NoError(t, consumer.Start())
	defer consumer.Close()

	first := receive(t, consumer.Subscribe())
	assert.Equal(t, "a1", first.Data.ID)
	require.NoError(t, first.Done(ctx))

	second := receive(t, consumer.Subscribe())
	assert.Equal(t, "a2", second.Data.ID)
	require.NoError(t, second.Done(ctx))
}

func TestGroupConsumer_StartWithExistingGroup(t *testing.T) {
	client, _ := setupMiniredis(t)
	require.NoError(t, client.XGroupCreateMkStream(context.Background(), testStream, testGroup, "0").Err())

	consumer := newTestConsumer(t, client, "c1")
	require.NoError(t, consumer.Start())
	require.NoError(t, consumer.Close())
}

func TestGroupConsumer_CloseClosesChannel(t *testing.T) {
	client, _ := setupMiniredis(t)
	consumer := newTestConsumer(t, client, "c1")
	require.NoError(t, consumer.Start())
	ch := consumer.Subscribe()

	require.NoError(t, consumer.Close())
	require.NoError(t, consumer.Close())

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}
