// Package cache provides a fingerprinted key/value cache with per-entry expiry timers
// over a pluggable storage backend.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrStoreRequired = errors.New("cache store is required")
	ErrKeyRequired   = errors.New("cache key is required")
)

// Entry is what a Store persists for one key.
type Entry struct {
	Value       []byte    `json:"value"`
	Fingerprint string    `json:"fingerprint"`
	StoredAt    time.Time `json:"stored_at"`
	// ExpiresAt is zero for entries without a duration.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the entry outlived its expiry at now.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store is a storage backend for cache entries. A missing key is reported with
// ok == false, never with an error.
type Store interface {
	Load(ctx context.Context, key string) (entry *Entry, ok bool, err error)
	Save(ctx context.Context, key string, entry *Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// SetOptions controls how a value is stored.
type SetOptions struct {
	// Fingerprint must match on Get for the value to be returned.
	Fingerprint string
	// Duration schedules removal of the entry. Zero keeps it until removed.
	Duration time.Duration
}

// Logger is the subset of fetchx.Logger the cache uses.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// Cache stores values by key together with a fingerprint of the request that produced
// them. A Get only hits when the requested fingerprint equals the stored one. Each
// entry may carry an expiry timer; setting a key again cancels its previous timer.
type Cache struct {
	store  Store
	logger Logger
	now    func() time.Time

	mu     sync.Mutex
	timers map[string]*expiry
}

// expiry identifies one scheduled removal. Its address tells a fired timer apart from
// the one that replaced it.
type expiry struct {
	timer     *time.Timer
	expiresAt time.Time
}

// New creates a cache over store.
func New(store Store, logger Logger) (*Cache, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	return &Cache{
		store:  store,
		logger: logger,
		now:    time.Now,
		timers: make(map[string]*expiry),
	}, nil
}

// NewMemory creates a cache backed by a MemoryStore.
func NewMemory() *Cache {
	cache, _ := New(NewMemoryStore(), nil)

	return cache
}

// Set stores value under key, replacing any previous entry and cancelling its timer.
func (c *Cache) Set(ctx context.Context, key string, value []byte, opts SetOptions) error {
	if key == "" {
		return ErrKeyRequired
	}

	now := c.now()
	entry := &Entry{
		Value:       append([]byte(nil), value...),
		Fingerprint: opts.Fingerprint,
		StoredAt:    now,
	}

	if opts.Duration > 0 {
		entry.ExpiresAt = now.Add(opts.Duration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked(key)

	if err := c.store.Save(ctx, key, entry); err != nil {
		return fmt.Errorf("saving cache entry %q: %w", key, err)
	}

	if opts.Duration > 0 {
		scheduled := &expiry{expiresAt: entry.ExpiresAt}
		scheduled.timer = time.AfterFunc(opts.Duration, func() { c.expire(key, scheduled) })
		c.timers[key] = scheduled
	}

	return nil
}

// Get returns the value stored under key when its fingerprint matches. ok is false on
// a miss, a fingerprint mismatch, or an expired entry.
func (c *Cache) Get(ctx context.Context, key, fingerprint string) (value []byte, ok bool, err error) {
	entry, found, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("loading cache entry %q: %w", key, err)
	}

	if !found {
		return nil, false, nil
	}

	if entry.Expired(c.now()) {
		entry, err = c.dropExpired(ctx, key)
		if err != nil || entry == nil {
			return nil, false, err
		}
	}

	if entry.Fingerprint != fingerprint {
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// dropExpired deletes key when the stored entry is still expired. An entry written by a
// concurrent Set is returned instead.
func (c *Cache) dropExpired(ctx context.Context, key string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, found, err := c.store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading cache entry %q: %w", key, err)
	}

	if !found {
		return nil, nil
	}

	if !entry.Expired(c.now()) {
		return entry, nil
	}

	c.stopTimerLocked(key)

	if err := c.store.Delete(ctx, key); err != nil {
		return nil, fmt.Errorf("deleting cache entry %q: %w", key, err)
	}

	return nil, nil
}

// Remove cancels the timer for key and deletes its entry. Removing an absent key is
// not an error.
func (c *Cache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked(key)

	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting cache entry %q: %w", key, err)
	}

	return nil
}

// Clear cancels every timer and empties the store.
func (c *Cache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.timers {
		c.stopTimerLocked(key)
	}

	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing cache: %w", err)
	}

	return nil
}

func (c *Cache) stopTimerLocked(key string) {
	if scheduled, ok := c.timers[key]; ok {
		scheduled.timer.Stop()
		delete(c.timers, key)
	}
}

// expire runs when a timer fires. A timer that was replaced before it could be
// stopped finds a different timer registered and does nothing. An entry another cache
// wrote to a shared store since is left in place.
func (c *Cache) expire(key string, scheduled *expiry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timers[key] != scheduled {
		return
	}

	delete(c.timers, key)

	ctx := context.Background()

	entry, found, err := c.store.Load(ctx, key)
	if err == nil {
		if !found {
			return
		}

		if !entry.Expired(c.now()) && !entry.ExpiresAt.Equal(scheduled.expiresAt) {
			return
		}
	}

	if err := c.store.Delete(ctx, key); err != nil {
		if c.logger != nil {
			c.logger.Warn("cache expiry failed", map[string]interface{}{"key": key, "error": err.Error()})
		}

		return
	}

	if c.logger != nil {
		c.logger.Debug("cache entry expired", map[string]interface{}{"key": key})
	}
}

// Close stops every pending timer and closes the store when it holds resources.
func (c *Cache) Close() error {
	c.mu.Lock()
	for key := range c.timers {
		c.stopTimerLocked(key)
	}
	c.mu.Unlock()

	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
