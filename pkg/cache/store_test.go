package cache_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/fetchx/pkg/cache"
)

type fakeKVEntry struct {
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (e *fakeKVEntry) Bucket() string             { return "test" }
func (e *fakeKVEntry) Key() string                { return e.key }
func (e *fakeKVEntry) Value() []byte              { return e.value }
func (e *fakeKVEntry) Revision() uint64           { return e.revision }
func (e *fakeKVEntry) Created() time.Time         { return e.created }
func (e *fakeKVEntry) Delta() uint64              { return 0 }
func (e *fakeKVEntry) Operation() nats.KeyValueOp { return nats.KeyValuePut }

// fakeBucket mimics the observable behaviour of a JetStream KV bucket.
type fakeBucket struct {
	mu       sync.Mutex
	revision uint64
	entries  map[string]*fakeKVEntry
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{entries: make(map[string]*fakeKVEntry)}
}

func (b *fakeBucket) Get(key string) (nats.KeyValueEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil, nats.ErrKeyNotFound
	}

	return entry, nil
}

func (b *fakeBucket) Put(key string, value []byte) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.revision++
	b.entries[key] = &fakeKVEntry{key: key, value: append([]byte(nil), value...), revision: b.revision, created: time.Now()}

	return b.revision, nil
}

func (b *fakeBucket) Delete(key string, _ ...nats.DeleteOpt) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)

	return nil
}

func (b *fakeBucket) Keys(_ ...nats.WatchOpt) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.entries) == 0 {
		return nil, nats.ErrNoKeysFound
	}

	keys := make([]string, 0, len(b.entries))
	for key := range b.entries {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys, nil
}

func storeFactories() map[string]func(t *testing.T) cache.Store {
	return map[string]func(t *testing.T) cache.Store{
		"memory": func(*testing.T) cache.Store { return cache.NewMemoryStore() },
		"nats": func(*testing.T) cache.Store {
			return cache.NewNATSKVStoreFromBucket(newFakeBucket())
		},
		"sqlite": func(t *testing.T) cache.Store {
			t.Helper()

			store, err := cache.NewSQLiteStore(context.Background(), &cache.SQLiteConfig{Path: "file::memory:"})
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })

			return store
		},
	}
}

func TestStores_RoundTrip(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newStore(t)
			ctx := context.Background()

			_, ok, err := store.Load(ctx, "/api/users")
			require.NoError(t, err)
			assert.False(t, ok)

			storedAt := time.Unix(1700000000, 0)
			expiresAt := storedAt.Add(time.Minute)

			require.NoError(t, store.Save(ctx, "/api/users", &cache.Entry{
				Value:       []byte(`{"users":[]}`),
				Fingerprint: "limit=10&skip=0",
				StoredAt:    storedAt,
				ExpiresAt:   expiresAt,
			}))

			entry, ok, err := store.Load(ctx, "/api/users")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte(`{"users":[]}`), entry.Value)
			assert.Equal(t, "limit=10&skip=0", entry.Fingerprint)
			assert.True(t, entry.StoredAt.Equal(storedAt))
			assert.True(t, entry.ExpiresAt.Equal(expiresAt))

			require.NoError(t, store.Save(ctx, "/api/users", &cache.Entry{Value: []byte("v2"), Fingerprint: "skip=10", StoredAt: storedAt}))

			entry, ok, err = store.Load(ctx, "/api/users")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("v2"), entry.Value)
			assert.True(t, entry.ExpiresAt.IsZero())

			require.NoError(t, store.Delete(ctx, "/api/users"))
			require.NoError(t, store.Delete(ctx, "/api/users"))

			_, ok, err = store.Load(ctx, "/api/users")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestStores_Clear(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := newStore(t)
			ctx := context.Background()

			require.NoError(t, store.Clear(ctx))

			for _, key := range []string{"a", "b", "c"} {
				require.NoError(t, store.Save(ctx, key, &cache.Entry{Value: []byte(key), StoredAt: time.Now()}))
			}

			require.NoError(t, store.Clear(ctx))

			for _, key := range []string{"a", "b", "c"} {
				_, ok, err := store.Load(ctx, key)
				require.NoError(t, err)
				assert.False(t, ok)
			}
		})
	}
}

func TestStores_BackCache(t *testing.T) {
	t.Parallel()

	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := cache.New(newStore(t), nil)
			require.NoError(t, err)

			ctx := context.Background()

			require.NoError(t, c.Set(ctx, "users", []byte("page"), cache.SetOptions{Fingerprint: "skip=0"}))

			_, ok, err := c.Get(ctx, "users", "skip=10")
			require.NoError(t, err)
			assert.False(t, ok)

			value, ok, err := c.Get(ctx, "users", "skip=0")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("page"), value)
		})
	}
}

func TestNATSKVStore_EncodesKeys(t *testing.T) {
	t.Parallel()

	bucket := newFakeBucket()
	store := cache.NewNATSKVStoreFromBucket(bucket)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "/api/users?limit=10", &cache.Entry{Value: []byte("x")}))

	keys, err := bucket.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotContains(t, keys[0], "/")
	assert.NotContains(t, keys[0], "?")
}

func TestNATSKVStore_RequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := cache.NewNATSKVStore(nil)
	require.ErrorIs(t, err, cache.ErrNATSConfigRequired)

	_, err = cache.NewNATSKVStore(&cache.NATSKVConfig{Bucket: "x"})
	require.ErrorIs(t, err, cache.ErrNATSConfigRequired)
}

func TestSQLiteStore_RejectsInvalidTable(t *testing.T) {
	t.Parallel()

	_, err := cache.NewSQLiteStore(context.Background(), &cache.SQLiteConfig{Path: "file::memory:", Table: "users; DROP"})
	require.ErrorIs(t, err, cache.ErrInvalidTableName)

	_, err = cache.NewSQLiteStore(context.Background(), &cache.SQLiteConfig{})
	require.ErrorIs(t, err, cache.ErrSQLiteConfigRequired)
}
