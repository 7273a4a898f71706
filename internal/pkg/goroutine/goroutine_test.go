package goroutine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	g := NewManager(4)

	var ran atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.True(t, g.Go(ctx, "ok", func(ctx context.Context) error {
		require.NoError(t, ctx.Err(), "task context is detached from the caller")
		ran.Add(1)
		return nil
	}))
	assert.True(t, g.Go(context.Background(), "fail", func(context.Context) error {
		ran.Add(1)
		return errors.New("boom")
	}))
	assert.True(t, g.Go(context.Background(), "panic", func(context.Context) error {
		ran.Add(1)
		panic("oops")
	}))

	err := g.Wait()
	require.EqualError(t, err, "boom")
	assert.Equal(t, int32(3), ran.Load())

	assert.False(t, g.Go(context.Background(), "late", func(context.Context) error { return nil }))
}

func TestManager_Limit(t *testing.T) {
	g := NewManager(1)
	block := make(chan struct{})

	require.True(t, g.Go(context.Background(), "slow", func(context.Context) error {
		<-block
		return nil
	}))
	assert.False(t, g.Go(context.Background(), "rejected", func(context.Context) error { return nil }))

	close(block)
	require.NoError(t, g.Wait())

	var nilManager *Manager
	assert.False(t, nilManager.Go(context.Background(), "x", nil))
	require.NoError(t, nilManager.Wait())
}
