package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/shotpool/shotpool/internal/browserpool"
)

type fakePool struct {
	stats          browserpool.Stats
	forceRecycled  int
	recycledOlderThan time.Duration
}

func (f *fakePool) Stats() browserpool.Stats { return f.stats }
func (f *fakePool) ForceRecycle(ctx context.Context, n int) { f.forceRecycled = n }
func (f *fakePool) RecycleOlderThan(ctx context.Context, maxAge time.Duration) {
	f.recycledOlderThan = maxAge
}

func TestWatchdog_ForcesRecoveryWhenStuckAndIdle(t *testing.T) {
	pool := &fakePool{stats: browserpool.Stats{InUse: 10, Utilization: 0.95}}
	w := NewWatchdog(WatchdogConfig{UsageThreshold: 0.8, IdleThreshold: time.Millisecond}, pool)

	start := time.Now()
	w.now = func() time.Time { return start }
	w.Touch()
	w.now = func() time.Time { return start.Add(time.Second) }

	w.Scan(context.Background())
	assert.Equal(t, 5, pool.forceRecycled)
	assert.Equal(t, 1, w.Recoveries())
}

func TestWatchdog_DoesNotRecycleWhenTrafficIsFlowing(t *testing.T) {
	pool := &fakePool{stats: browserpool.Stats{InUse: 10, Utilization: 0.95}}
	w := NewWatchdog(WatchdogConfig{UsageThreshold: 0.8, IdleThreshold: time.Hour}, pool)

	w.Scan(context.Background())
	assert.Equal(t, 0, pool.forceRecycled)
	assert.Equal(t, 0, w.Recoveries())
}

func TestWatchdog_RecyclesAgedSlotsEveryScan(t *testing.T) {
	pool := &fakePool{stats: browserpool.Stats{Utilization: 0.1}}
	w := NewWatchdog(WatchdogConfig{ForceRecycleAge: time.Minute}, pool)
	w.Scan(context.Background())
	assert.Equal(t, time.Minute, pool.recycledOlderThan)
}
