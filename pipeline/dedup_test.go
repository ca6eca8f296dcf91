package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisDeduper(t *testing.T) {
	client, mr := setupMiniredis(t)
	d := NewRedisDeduper(client, "", 0)
	ctx := context.Background()

	first, err := d.FirstSeen(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.FirstSeen(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, again)

	assert.True(t, mr.Exists(DefaultDedupPrefix+"a1"))
	assert.Equal(t, DefaultDedupTTL, mr.TTL(DefaultDedupPrefix+"a1"))

	// 過期後視為新事件
	mr.FastForward(DefaultDedupTTL + time.Second)
	first, err = d.FirstSeen(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestRedisDeduper_Error(t *testing.T) {
	client, mr := setupMiniredis(t)
	d := NewRedisDeduper(client, "custom:", time.Minute)
	mr.SetError("LOADING")

	_, err := d.FirstSeen(context.Background(), "a1")
	assert.Error(t, err)
}
