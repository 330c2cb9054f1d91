package cache

import (
	"context"
	"errors"
	"fmt"
)

// StoreType represents the type of cache backend.
type StoreType string

const (
	// StoreTypeMemory represents in-memory storage.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeNATS represents NATS KV storage.
	StoreTypeNATS StoreType = "nats"

	// StoreTypeSQLite represents SQLite storage.
	StoreTypeSQLite StoreType = "sqlite"

	// StoreTypeNone represents no caching.
	StoreTypeNone StoreType = "none"
)

// Static errors for err113 compliance.
var (
	ErrNATSConfigRequired   = errors.New("NATS configuration required for NATS cache")
	ErrSQLiteConfigRequired = errors.New("SQLite configuration required for SQLite cache")
	ErrUnsupportedStoreType = errors.New("unsupported cache store type")
	ErrInvalidTableName     = errors.New("invalid SQLite table name")
)

// Config configures cache backend.
type Config struct {
	// Type is the cache backend type. Empty means memory.
	Type StoreType

	// NATS KV configuration
	NATS *NATSKVConfig

	// SQLite configuration
	SQLite *SQLiteConfig
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() *Config {
	return &Config{Type: StoreTypeMemory}
}

// NewStoreFromConfig creates a store backend from configuration.
func NewStoreFromConfig(ctx context.Context, config *Config) (Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	switch config.Type {
	case StoreTypeMemory, "":
		return NewMemoryStore(), nil

	case StoreTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSKVStore(config.NATS)

	case StoreTypeSQLite:
		if config.SQLite == nil {
			return nil, ErrSQLiteConfigRequired
		}

		return NewSQLiteStore(ctx, config.SQLite)

	case StoreTypeNone:
		return NewNoOpStore(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStoreType, config.Type)
	}
}

// NewFromConfig creates a cache over the configured store.
func NewFromConfig(ctx context.Context, config *Config, logger Logger) (*Cache, error) {
	store, err := NewStoreFromConfig(ctx, config)
	if err != nil {
		return nil, err
	}

	return New(store, logger)
}

// Builder helps build cache configurations.
type Builder struct {
	config *Config
	logger Logger
}

// NewBuilder creates a new cache builder.
func NewBuilder() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithType sets the store type.
func (b *Builder) WithType(storeType StoreType) *Builder {
	b.config.Type = storeType

	return b
}

// WithNATSConfig sets NATS store configuration.
func (b *Builder) WithNATSConfig(config *NATSKVConfig) *Builder {
	b.config.NATS = config

	return b
}

// WithSQLiteConfig sets SQLite store configuration.
func (b *Builder) WithSQLiteConfig(config *SQLiteConfig) *Builder {
	b.config.SQLite = config

	return b
}

// WithLogger sets the logger used for expiry diagnostics.
func (b *Builder) WithLogger(logger Logger) *Builder {
	b.logger = logger

	return b
}

// Build creates the cache from the configuration.
func (b *Builder) Build(ctx context.Context) (*Cache, error) {
	return NewFromConfig(ctx, b.config, b.logger)
}

// ChainStore implements a chain of store backends (L1, L2, etc.).
type ChainStore struct {
	stores []Store
}

// NewChainStore creates a new store chain. The first store is consulted first.
func NewChainStore(stores ...Store) *ChainStore {
	return &ChainStore{stores: stores}
}

// Load retrieves an entry from the chain, populating earlier stores on a later hit.
func (c *ChainStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	for i, store := range c.stores {
		entry, ok, err := store.Load(ctx, key)
		if err != nil || !ok {
			continue
		}

		for j := range i {
			_ = c.stores[j].Save(ctx, key, entry)
		}

		return entry, true, nil
	}

	return nil, false, nil
}

// Save stores an entry in all stores.
func (c *ChainStore) Save(ctx context.Context, key string, entry *Entry) error {
	var errs []error

	for _, store := range c.stores {
		if err := store.Save(ctx, key, entry); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Delete removes an entry from all stores.
func (c *ChainStore) Delete(ctx context.Context, key string) error {
	var errs []error

	for _, store := range c.stores {
		if err := store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Clear removes all entries from all stores.
func (c *ChainStore) Clear(ctx context.Context) error {
	var errs []error

	for _, store := range c.stores {
		if err := store.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
