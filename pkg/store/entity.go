package store

import (
	"context"
	"net/http"
	"sync"

	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
	"github.com/fivetwenty-io/fetchx/pkg/repository"
)

// EntityAccessor is the part of a repository the entity store uses.
type EntityAccessor interface {
	Read(ctx context.Context, query repository.ReadQuery) (*fetchx.Response, error)
	Patch(ctx context.Context, id string, data any) (*fetchx.Response, error)
	Delete(ctx context.Context, id string) (*fetchx.Response, error)
}

// EntityState is a snapshot of an EntityStore.
type EntityState[T any] struct {
	Loading    bool
	Data       *T
	Identifier string
}

// EntityStore reads, updates and deletes one entity. Operations without an identifier
// log a warning and do nothing.
type EntityStore[T any] struct {
	accessor EntityAccessor
	logger   fetchx.Logger

	mu         sync.Mutex
	loading    bool
	data       *T
	identifier string

	observers observers[EntityState[T]]
}

// NewEntityStore creates an entity store. A nil logger discards warnings.
func NewEntityStore[T any](accessor EntityAccessor, logger fetchx.Logger) (*EntityStore[T], error) {
	if accessor == nil {
		return nil, ErrReaderRequired
	}

	if logger == nil {
		logger = fetchx.NopLogger{}
	}

	return &EntityStore[T]{accessor: accessor, logger: logger}, nil
}

// SetIdentifier selects the entity subsequent operations act on.
func (s *EntityStore[T]) SetIdentifier(id string) {
	s.mu.Lock()
	s.identifier = id
	s.mu.Unlock()
	s.notify()
}

// Fetch reads the entity into Data.
func (s *EntityStore[T]) Fetch(ctx context.Context) error {
	id, ok := s.begin("fetch")
	if !ok {
		return nil
	}

	resp, err := s.accessor.Read(ctx, repository.ByID(id))
	if err != nil {
		s.finish(nil, false)

		return err
	}

	data, err := decodeEntity[T](resp)
	s.finish(data, err == nil)

	return err
}

// Update patches the entity with data and stores the returned representation. The
// result is nil when no identifier is set.
func (s *EntityStore[T]) Update(ctx context.Context, data any) (*T, error) {
	id, ok := s.begin("update")
	if !ok {
		return nil, nil
	}

	resp, err := s.accessor.Patch(ctx, id, data)
	if err != nil {
		s.finish(nil, false)

		return nil, err
	}

	updated, err := decodeEntity[T](resp)
	s.finish(updated, err == nil)

	return updated, err
}

// Delete removes the entity and clears Data.
func (s *EntityStore[T]) Delete(ctx context.Context) error {
	id, ok := s.begin("delete")
	if !ok {
		return nil
	}

	if _, err := s.accessor.Delete(ctx, id); err != nil {
		s.finish(nil, false)

		return err
	}

	s.finish(nil, true)

	return nil
}

// Loading reports whether an operation is in flight.
func (s *EntityStore[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

// Data returns the last fetched or updated entity, or nil.
func (s *EntityStore[T]) Data() *T {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.data
}

// Identifier returns the selected identifier.
func (s *EntityStore[T]) Identifier() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.identifier
}

// State returns a snapshot of the store.
func (s *EntityStore[T]) State() EntityState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return EntityState[T]{Loading: s.loading, Data: s.data, Identifier: s.identifier}
}

// Subscribe calls fn with a snapshot after every change. The returned function
// unsubscribes.
func (s *EntityStore[T]) Subscribe(fn func(EntityState[T])) func() {
	return s.observers.subscribe(fn)
}

func (s *EntityStore[T]) begin(operation string) (string, bool) {
	s.mu.Lock()
	id := s.identifier
	if id != "" {
		s.loading = true
	}
	s.mu.Unlock()

	if id == "" {
		s.logger.Warn("Can't "+operation+" without an identifier", map[string]interface{}{
			"operation": operation,
		})

		return "", false
	}

	s.notify()

	return id, true
}

// finish clears loading and, when commit is set, replaces Data.
func (s *EntityStore[T]) finish(data *T, commit bool) {
	s.mu.Lock()
	s.loading = false
	if commit {
		s.data = data
	}
	s.mu.Unlock()
	s.notify()
}

func (s *EntityStore[T]) notify() {
	s.observers.notify(s.State())
}

func decodeEntity[T any](resp *fetchx.Response) (*T, error) {
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		return nil, nil
	}

	var data T
	if err := resp.Decode(&data); err != nil {
		return nil, err
	}

	return &data, nil
}
