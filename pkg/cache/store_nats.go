package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/fivetwenty-io/fetchx/internal/constants"
)

// NATSKVConfig configures a NATS JetStream KeyValue store.
type NATSKVConfig struct {
	// URL of the NATS server, e.g. nats://127.0.0.1:4222.
	URL string
	// Bucket is created when it does not exist yet.
	Bucket string
	// BucketTTL bounds the life of every key in a newly created bucket. Zero means no
	// bucket-level limit; per-entry expiry still applies.
	BucketTTL time.Duration
	// Options are passed to nats.Connect.
	Options []nats.Option
}

// KVBucket is the part of nats.KeyValue the store relies on.
type KVBucket interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Keys(opts ...nats.WatchOpt) ([]string, error)
}

// NATSKVStore keeps entries in a JetStream KeyValue bucket so several processes can
// share one cache. Entries are JSON encoded; keys are base64url encoded because KV keys
// only allow a restricted alphabet.
type NATSKVStore struct {
	bucket KVBucket
	conn   *nats.Conn
}

// NewNATSKVStore connects to NATS and binds (or creates) the configured bucket.
func NewNATSKVStore(config *NATSKVConfig) (*NATSKVStore, error) {
	if config == nil || config.URL == "" {
		return nil, ErrNATSConfigRequired
	}

	bucketName := config.Bucket
	if bucketName == "" {
		bucketName = constants.DefaultNATSBucket
	}

	conn, err := nats.Connect(config.URL, config.Options...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("opening JetStream context: %w", err)
	}

	bucket, err := js.KeyValue(bucketName)
	if errors.Is(err, nats.ErrBucketNotFound) {
		bucket, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: bucketName,
			TTL:    config.BucketTTL,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("binding KV bucket %q: %w", bucketName, err)
	}

	return &NATSKVStore{bucket: bucket, conn: conn}, nil
}

// NewNATSKVStoreFromBucket wraps an already bound bucket. The caller owns the connection.
func NewNATSKVStoreFromBucket(bucket KVBucket) *NATSKVStore {
	return &NATSKVStore{bucket: bucket}
}

// Load implements Store.
func (s *NATSKVStore) Load(ctx context.Context, key string) (*Entry, bool, error) {
	kvEntry, err := s.bucket.Get(encodeKVKey(key))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("reading key from NATS KV: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(kvEntry.Value(), &entry); err != nil {
		return nil, false, fmt.Errorf("decoding NATS KV entry: %w", err)
	}

	return &entry, true, nil
}

// Save implements Store.
func (s *NATSKVStore) Save(ctx context.Context, key string, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding NATS KV entry: %w", err)
	}

	if _, err := s.bucket.Put(encodeKVKey(key), data); err != nil {
		return fmt.Errorf("writing key to NATS KV: %w", err)
	}

	return nil
}

// Delete implements Store.
func (s *NATSKVStore) Delete(ctx context.Context, key string) error {
	err := s.bucket.Delete(encodeKVKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("deleting key from NATS KV: %w", err)
	}

	return nil
}

// Clear implements Store.
func (s *NATSKVStore) Clear(ctx context.Context) error {
	keys, err := s.bucket.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("listing NATS KV keys: %w", err)
	}

	for _, key := range keys {
		if err := s.bucket.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			return fmt.Errorf("deleting key from NATS KV: %w", err)
		}
	}

	return nil
}

// Close drains the NATS connection opened by NewNATSKVStore.
func (s *NATSKVStore) Close() error {
	if s.conn == nil {
		return nil
	}

	if err := s.conn.Drain(); err != nil {
		return fmt.Errorf("draining NATS connection: %w", err)
	}

	return nil
}

func encodeKVKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
