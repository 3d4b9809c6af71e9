package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewMemory()

	_, ok, err := c.Get(ctx, "export:1")
	require.NoError(t, err)
	assert.False(t, ok)

	val := []byte(`{"id":1}`)
	require.NoError(t, c.Set(ctx, "export:1", val))
	val[0] = 'x'

	got, ok, err := c.Get(ctx, "export:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":1}`, string(got), "stored value is a copy")
}

func TestNopNeverHits(t *testing.T) {
	var c Cache = Nop{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v")))
	_, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisBadURL(t *testing.T) {
	_, err := NewRedis(context.Background(), "not a url", time.Minute)
	assert.Error(t, err)
}
