package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/fetchx/pkg/cache"
)

func TestCache_SetAndGet(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()
	ctx := context.Background()

	err := c.Set(ctx, "users", []byte(`[1,2,3]`), cache.SetOptions{Fingerprint: "limit=10&skip=0"})
	require.NoError(t, err)

	value, ok, err := c.Get(ctx, "users", "limit=10&skip=0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[1,2,3]`), value)
}

func TestCache_FingerprintMismatchMisses(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "users", []byte("page1"), cache.SetOptions{Fingerprint: "skip=0"}))

	value, ok, err := c.Get(ctx, "users", "skip=10")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)

	// The entry itself is untouched by a mismatch.
	_, ok, err = c.Get(ctx, "users", "skip=0")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCache_GetMissingKey(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()

	value, ok, err := c.Get(context.Background(), "nonexistent", "")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, value)
}

func TestCache_ExpiresAfterDuration(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	c, err := cache.New(store, nil)
	require.NoError(t, err)

	ctx := context.Background()

	err = c.Set(ctx, "users", []byte("data"), cache.SetOptions{Fingerprint: "fp", Duration: 20 * time.Millisecond})
	require.NoError(t, err)

	_, ok, err := c.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 5*time.Millisecond)

	_, ok, err = c.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_SetCancelsPreviousTimer(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "users", []byte("old"), cache.SetOptions{Fingerprint: "fp", Duration: 20 * time.Millisecond}))
	require.NoError(t, c.Set(ctx, "users", []byte("new"), cache.SetOptions{Fingerprint: "fp"}))

	time.Sleep(60 * time.Millisecond)

	value, ok, err := c.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("new"), value)
}

func TestCache_ExpiredEntryInStoreIsDropped(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	c, err := cache.New(store, nil)
	require.NoError(t, err)

	ctx := context.Background()

	// Simulates an entry persisted by a previous process whose timer never ran here.
	require.NoError(t, store.Save(ctx, "users", &cache.Entry{
		Value:       []byte("stale"),
		Fingerprint: "fp",
		StoredAt:    time.Now().Add(-2 * time.Hour),
		ExpiresAt:   time.Now().Add(-1 * time.Hour),
	}))

	_, ok, err := c.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

// loadHookStore runs onLoad once, after the first Load has read its entry.
type loadHookStore struct {
	*cache.MemoryStore

	once   sync.Once
	onLoad func()
}

func (s *loadHookStore) Load(ctx context.Context, key string) (*cache.Entry, bool, error) {
	entry, ok, err := s.MemoryStore.Load(ctx, key)
	s.once.Do(s.onLoad)

	return entry, ok, err
}

func TestCache_ExpiredEntryReplacedDuringGetIsKept(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := &loadHookStore{MemoryStore: cache.NewMemoryStore()}

	c, err := cache.New(store, nil)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "users", &cache.Entry{
		Value:       []byte("stale"),
		Fingerprint: "fp",
		StoredAt:    time.Now().Add(-2 * time.Hour),
		ExpiresAt:   time.Now().Add(-1 * time.Hour),
	}))

	store.onLoad = func() {
		assert.NoError(t, c.Set(ctx, "users", []byte("fresh"), cache.SetOptions{Fingerprint: "fp"}))
	}

	value, ok, err := c.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("fresh"), value)

	value, ok, err = c.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("fresh"), value)
	assert.Equal(t, 1, store.Len())
}

func TestCache_TimerKeepsEntryWrittenBySharedCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	shared := cache.NewMemoryStore()

	a, err := cache.New(shared, nil)
	require.NoError(t, err)

	b, err := cache.New(shared, nil)
	require.NoError(t, err)

	require.NoError(t, a.Set(ctx, "users", []byte("from a"), cache.SetOptions{Fingerprint: "fp", Duration: 20 * time.Millisecond}))
	require.NoError(t, b.Set(ctx, "users", []byte("from b"), cache.SetOptions{Fingerprint: "fp"}))

	time.Sleep(60 * time.Millisecond)

	value, ok, err := b.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("from b"), value)
}

func TestCache_RemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "users", []byte("data"), cache.SetOptions{Fingerprint: "fp", Duration: time.Hour}))

	require.NoError(t, c.Remove(ctx, "users"))
	require.NoError(t, c.Remove(ctx, "users"))
	require.NoError(t, c.Remove(ctx, "never-set"))

	_, ok, err := c.Get(ctx, "users", "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_Clear(t *testing.T) {
	t.Parallel()

	store := cache.NewMemoryStore()
	c, err := cache.New(store, nil)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("1"), cache.SetOptions{Duration: time.Hour}))
	require.NoError(t, c.Set(ctx, "b", []byte("2"), cache.SetOptions{}))
	assert.Equal(t, 2, store.Len())

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, store.Len())
}

func TestCache_SetCopiesValue(t *testing.T) {
	t.Parallel()

	c := cache.NewMemory()
	ctx := context.Background()

	value := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", value, cache.SetOptions{}))

	value[0] = 'z'

	stored, ok, err := c.Get(ctx, "k", "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), stored)
}

func TestCache_Validation(t *testing.T) {
	t.Parallel()

	_, err := cache.New(nil, nil)
	require.ErrorIs(t, err, cache.ErrStoreRequired)

	err = cache.NewMemory().Set(context.Background(), "", []byte("x"), cache.SetOptions{})
	require.ErrorIs(t, err, cache.ErrKeyRequired)
}

func TestCache_NoOpStoreAlwaysMisses(t *testing.T) {
	t.Parallel()

	c, err := cache.New(cache.NewNoOpStore(), nil)
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), cache.SetOptions{Fingerprint: "fp"}))

	_, ok, err := c.Get(ctx, "k", "fp")
	require.NoError(t, err)
	assert.False(t, ok)
}
