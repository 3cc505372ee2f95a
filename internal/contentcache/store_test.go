package contentcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s := New(Config{Dir: dir, MaxFileSize: 1 << 20, MaxTotalSize: 10 << 20, TTL: time.Hour})
	require.NoError(t, s.EnsureDir())
	return s
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	key := Key("https://example.com/app.css")
	require.NoError(t, s.Put(key, []byte("body{}"), map[string]string{"Content-Type": "text/css"}))

	data, headers, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "body{}", string(data))
	assert.Equal(t, "text/css", headers["Content-Type"])
}

func TestStore_RejectsOversizedPayload(t *testing.T) {
	s := New(Config{Dir: t.TempDir(), MaxFileSize: 4, MaxTotalSize: 100, TTL: time.Hour})
	require.NoError(t, s.EnsureDir())
	key := Key("https://example.com/big.css")
	require.NoError(t, s.Put(key, []byte("too big"), nil))

	_, _, ok := s.Get(key)
	assert.False(t, ok)
}

func TestStore_ExpiredEntryEvictedOnGet(t *testing.T) {
	s := newTestStore(t)
	start := time.Now()
	s.now = func() time.Time { return start }
	key := Key("https://example.com/app.css")
	require.NoError(t, s.Put(key, []byte("x"), nil))

	s.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, _, ok := s.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, s.Stats().Entries)
}

func TestStore_CleanupEvictsLRUAboveHighWaterMark(t *testing.T) {
	s := New(Config{Dir: t.TempDir(), MaxFileSize: 1000, MaxTotalSize: 100, TTL: time.Hour})
	require.NoError(t, s.EnsureDir())
	start := time.Now()
	s.now = func() time.Time { return start }

	for i := 0; i < 5; i++ {
		ts := start.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return ts }
		require.NoError(t, s.Put(Key(string(rune('a'+i))), []byte("0123456789"), nil)) // 10 bytes each, 50 total
	}
	require.Equal(t, int64(50), s.Stats().TotalSize)

	s.now = func() time.Time { return start.Add(time.Minute) }
	s.cfg.MaxTotalSize = 40 // high water = 32
	s.Cleanup()
	assert.LessOrEqual(t, s.Stats().TotalSize, int64(32))
}

func TestStore_AccountedSizeMatchesSumOfEntries(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Put(Key("a"), []byte("12345"), nil))
	require.NoError(t, s.Put(Key("b"), []byte("123"), nil))
	assert.Equal(t, int64(8), s.Stats().TotalSize)
}
