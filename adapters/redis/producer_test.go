package redis

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestNewProducer(t *testing.T) {
	tests := []struct {
		name   string
		client *redis.Client
		stream string
		opts   []ProducerOption[TestMessage]
		errMsg string
	}{
		{
			name:   "valid configuration",
			client: redis.NewClient(&redis.Options{}),
			stream: "auctions:ended:stream",
		},
		{
			name:   "nil client",
			stream: "auctions:ended:stream",
			errMsg: "redis client cannot be nil",
		},
		{
			name:   "empty stream",
			client: redis.NewClient(&redis.Options{}),
			errMsg: "stream cannot be empty",
		},
		{
			name:   "with custom options",
			client: redis.NewClient(&redis.Options{}),
			stream: "auctions:ended:stream",
			opts: []ProducerOption[TestMessage]{
				WithProducerLogger[TestMessage](slog.Default()),
				WithProducerBufferSize[TestMessage](200),
				WithProducerMaxLen[TestMessage](1000),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t)
			if tt.client != nil {
				defer tt.client.Close()
			}

			producer, err := NewProducer(tt.client, tt.stream, tt.opts...)
			if tt.errMsg != "" {
				assert.ErrorContains(t, err, tt.errMsg)
				assert.Nil(t, producer)
				return
			}
			require.NoError(t, err)
			producer.Close()
		})
	}
}

func TestProducer_Publish(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, mock, cleanup := setupTest(t)
	defer cleanup()

	msg := TestMessage{ID: "a1", Data: "ended"}
	values, err := DefaultParseToMessage(msg)
	require.NoError(t, err)

	mock.ExpectXAdd(&redis.XAddArgs{
		Stream: "auctions:ended:stream",
		MaxLen: 1000,
		Approx: true,
		Values: values,
	}).SetVal("1-0")

	producer, err := NewProducer(client, "auctions:ended:stream", WithProducerMaxLen[TestMessage](1000))
	require.NoError(t, err)
	producer.Start()

	require.NoError(t, producer.Publish(msg))
	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)

	producer.Close()
}

func TestProducer_PublishBeforeStart(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, _, cleanup := setupTest(t)
	defer cleanup()

	producer, err := NewProducer[TestMessage](client, "auctions:ended:stream")
	require.NoError(t, err)
	assert.ErrorIs(t, producer.Publish(TestMessage{ID: "a1"}), ErrClosed)
}

func TestProducer_ParseError(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, _, cleanup := setupTest(t)
	defer cleanup()

	producer, err := NewProducer(client, "auctions:ended:stream",
		WithProducerParseFunc(func(TestMessage) (map[string]any, error) {
			return nil, errors.New("boom")
		}),
	)
	require.NoError(t, err)
	producer.Start()
	defer producer.Close()

	assert.ErrorContains(t, producer.Publish(TestMessage{ID: "a1"}), "boom")
}

func TestProducer_XAddErrorIsLogged(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, mock, cleanup := setupTest(t)
	defer cleanup()

	msg := TestMessage{ID: "a1"}
	values, err := DefaultParseToMessage(msg)
	require.NoError(t, err)
	mock.ExpectXAdd(&redis.XAddArgs{Stream: "s", Values: values}).SetErr(errors.New("connection refused"))

	producer, err := NewProducer[TestMessage](client, "s")
	require.NoError(t, err)
	producer.Start()
	require.NoError(t, producer.Publish(msg))

	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, 2*time.Second, 10*time.Millisecond)
	producer.Close()
}

func TestProducer_CloseIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, _, cleanup := setupTest(t)
	defer cleanup()

	producer, err := NewProducer[TestMessage](client, "s")
	require.NoError(t, err)
	producer.Start()
	producer.Start()
	producer.Close()
	producer.Close()
}

func TestProducer_CloseFlushesBuffer(t *testing.T) {
	defer goleak.VerifyNone(t)
	client, mock, cleanup := setupTest(t)
	defer cleanup()

	producer, err := NewProducer(client, "s", WithProducerBufferSize[TestMessage](2))
	require.NoError(t, err)

	var messages []TestMessage
	for i := 0; i < 20; i++ {
		msg := TestMessage{ID: fmt.Sprintf("a%d", i), Data: "ended"}
		values, err := DefaultParseToMessage(msg)
		require.NoError(t, err)
		mock.ExpectXAdd(&redis.XAddArgs{Stream: "s", Values: values}).SetVal(fmt.Sprintf("%d-0", i+1))
		messages = append(messages, msg)
	}

	producer.Start()
	for _, msg := range messages {
		require.NoError(t, producer.Publish(msg))
	}
	// 不等待背景寫入，直接關閉
	producer.Close()

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.ErrorIs(t, producer.Publish(TestMessage{ID: "late"}), ErrClosed)
}
