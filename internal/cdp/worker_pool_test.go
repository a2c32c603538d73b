package cdp

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqreplay/internal/logger"
)

func TestWorkerPoolRunsTasks(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	p := newWorkerPool(2, logger.NewNop())
	p.start(ctx)

	var wg sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.True(t, p.submit(func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), ran.Load())

	_, qCap, submit, drop := p.stats()
	assert.Equal(t, int64(16), qCap)
	assert.Equal(t, int64(10), submit)
	assert.Zero(t, drop)
}

func TestWorkerPoolDropsWhenFull(t *testing.T) {
	t.Parallel()

	// 不启动 worker，队列只进不出
	p := newWorkerPool(1, logger.NewNop())
	for i := 0; i < 8; i++ {
		require.True(t, p.submit(func() {}))
	}
	assert.False(t, p.submit(func() {}))

	qLen, _, submit, drop := p.stats()
	assert.Equal(t, int64(8), qLen)
	assert.Equal(t, int64(9), submit)
	assert.Equal(t, int64(1), drop)
}

func TestWorkerPoolUnbounded(t *testing.T) {
	t.Parallel()

	p := newWorkerPool(0, logger.NewNop())
	p.start(context.Background())

	done := make(chan struct{})
	require.True(t, p.submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	_, _, submit, _ := p.stats()
	assert.Zero(t, submit)
}
