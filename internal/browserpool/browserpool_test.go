package browserpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotpool/shotpool/internal/browser"
)

type fakeHandle struct {
	id     int64
	closed atomic.Bool
}

func (h *fakeHandle) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.Context, error) {
	return &fakeContext{}, nil
}
func (h *fakeHandle) Healthy(ctx context.Context) bool { return !h.closed.Load() }
func (h *fakeHandle) Close(ctx context.Context) error  { h.closed.Store(true); return nil }

type fakeContext struct{}

func (c *fakeContext) NewPage(ctx context.Context) (browser.Page, error) { return nil, nil }
func (c *fakeContext) Close(ctx context.Context) error                  { return nil }

type fakeFactory struct {
	counter atomic.Int64
	fail    atomic.Bool
}

func (f *fakeFactory) Launch(ctx context.Context, engine string, headless bool, args []string) (browser.Handle, error) {
	if f.fail.Load() {
		return nil, assertErr{}
	}
	id := f.counter.Add(1)
	return &fakeHandle{id: id}, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "launch failed" }

func staticConfig(c Config) func() Config { return func() Config { return c } }

func TestPool_StartPreWarmsToMinSize(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 2, MaxSize: 5}))
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 2, p.Stats().Size)
	assert.Equal(t, 2, p.Stats().Available)
}

func TestPool_AcquireFastPath(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 1, MaxSize: 1}))
	require.NoError(t, p.Start(context.Background()))

	h, idx, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 0, p.Stats().Available)
	assert.Equal(t, 1, p.Stats().InUse)
}

func TestPool_AcquireGrowsWhenBelowMax(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 0, MaxSize: 3}))

	_, _, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stats().Size)
}

func TestPool_ReleaseReturnsSlotToAvailable(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 1, MaxSize: 1}))
	require.NoError(t, p.Start(context.Background()))

	_, idx, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(context.Background(), idx, true)
	assert.Equal(t, 1, p.Stats().Available)
	assert.Equal(t, 0, p.Stats().InUse)
}

func TestPool_ReleaseUnhealthyRecyclesSlot(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 1, MaxSize: 1}))
	require.NoError(t, p.Start(context.Background()))

	_, idx, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(context.Background(), idx, false)

	assert.Eventually(t, func() bool {
		return p.Stats().Available == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPool_AcquireFailsWhenFull(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 1, MaxSize: 1}))
	require.NoError(t, p.Start(context.Background()))

	_, _, err := p.Acquire(context.Background()) // consumes the only slot
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err = p.Acquire(ctx)
	require.Error(t, err)
}

func TestPool_InUsePlusAvailableEqualsSize(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 3, MaxSize: 3}))
	require.NoError(t, p.Start(context.Background()))

	_, idx1, _ := p.Acquire(context.Background())
	_, _, _ = p.Acquire(context.Background())
	stats := p.Stats()
	assert.Equal(t, stats.Size, stats.Available+stats.InUse)

	p.Release(context.Background(), idx1, true)
	stats = p.Stats()
	assert.Equal(t, stats.Size, stats.Available+stats.InUse)
}

func TestPool_ForceRecyclePrefersInUseSlots(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 2, MaxSize: 2}))
	require.NoError(t, p.Start(context.Background()))

	_, _, err := p.Acquire(context.Background())
	require.NoError(t, err)

	p.ForceRecycle(context.Background(), 1)
	assert.Eventually(t, func() bool {
		return p.Stats().Size == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPool_ShutdownClosesAllHandles(t *testing.T) {
	f := &fakeFactory{}
	p := New(f, staticConfig(Config{MinSize: 2, MaxSize: 2}))
	require.NoError(t, p.Start(context.Background()))

	err := p.Shutdown(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stats().Size)

	_, _, err = p.Acquire(context.Background())
	assert.Error(t, err)
}
