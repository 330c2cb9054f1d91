package cache

import "context"

// NoOpStore is a store that does nothing (no caching).
type NoOpStore struct{}

// NewNoOpStore creates a new no-op store.
func NewNoOpStore() *NoOpStore {
	return &NoOpStore{}
}

// Load always misses.
func (s *NoOpStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	return nil, false, nil
}

// Save does nothing.
func (s *NoOpStore) Save(ctx context.Context, key string, entry *Entry) error {
	return nil
}

// Delete does nothing.
func (s *NoOpStore) Delete(ctx context.Context, key string) error {
	return nil
}

// Clear does nothing.
func (s *NoOpStore) Clear(ctx context.Context) error {
	return nil
}
