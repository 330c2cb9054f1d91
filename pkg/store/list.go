// Package store provides observable state containers that bind fetched data to
// application state: a paginated, cache-aware list store and a single-entity store.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fivetwenty-io/fetchx/internal/constants"
	"github.com/fivetwenty-io/fetchx/pkg/cache"
	"github.com/fivetwenty-io/fetchx/pkg/fetchx"
	"github.com/fivetwenty-io/fetchx/pkg/repository"
)

// Reader reads a collection. *repository.Repository implements it.
type Reader interface {
	Read(ctx context.Context, query repository.ReadQuery) (*fetchx.Response, error)
}

// ListOptions configures a ListStore.
type ListOptions struct {
	// Limit is the page size. Zero disables pagination parameters.
	Limit int
	// LimitField is the query parameter carrying Limit (e.g., "limit").
	LimitField string
	// SkipField is the query parameter carrying the offset (e.g., "skip").
	SkipField string
	// ResultsField names the array inside an object response. Array responses are
	// used as they are.
	ResultsField string
	// TotalCountField names the numeric total inside an object response. When empty
	// the total is the length of the list.
	TotalCountField string
	// InfiniteScroll appends each page to the list instead of replacing it.
	InfiniteScroll bool
	// DefaultFilters are added for keys the filter set does not contain yet. Slice
	// values become repeated keys.
	DefaultFilters map[string]any
	// CacheID enables caching of responses under this key.
	CacheID string
	// CacheDuration bounds the life of a cached response. Zero keeps it until replaced.
	CacheDuration time.Duration
	// Cache is required when CacheID is set.
	Cache  *cache.Cache
	Logger fetchx.Logger
}

// ListState is a snapshot of a ListStore.
type ListState[T any] struct {
	Page       int
	List       []T
	TotalCount int
	Loading    bool
	Filters    fetchx.Params
}

// ListStore fetches pages of a collection, keeps the accumulated list and notifies
// subscribers on every change. Overlapping fetches are resolved by generation: only
// the most recently started fetch commits its result.
type ListStore[T any] struct {
	reader  Reader
	options ListOptions
	logger  fetchx.Logger

	mu         sync.Mutex
	page       int
	list       []T
	totalCount int
	loading    bool
	filters    fetchx.Params
	generation uint64

	focusMu     sync.Mutex
	focusSource EventSource
	focus       *focusListener[T]

	observers observers[ListState[T]]
}

// NewListStore creates a list store reading from reader.
func NewListStore[T any](reader Reader, options ListOptions) (*ListStore[T], error) {
	if reader == nil {
		return nil, ErrReaderRequired
	}

	if options.Limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, options.Limit)
	}

	if options.CacheID != "" && options.Cache == nil {
		return nil, ErrCacheRequired
	}

	logger := options.Logger
	if logger == nil {
		logger = fetchx.NopLogger{}
	}

	return &ListStore[T]{
		reader:  reader,
		options: options,
		logger:  logger,
		page:    constants.FirstPage,
		list:    []T{},
	}, nil
}

// Fetch loads the current page with the current filters.
func (s *ListStore[T]) Fetch(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.loading = true
	s.filters = s.paginatedFiltersLocked()
	filters := s.filters.Clone()
	s.mu.Unlock()
	s.notify()

	body, err := s.load(ctx, filters)
	if err != nil {
		return s.fail(generation, err)
	}

	result, err := extractPage(body, s.options.ResultsField, s.options.TotalCountField)
	if err != nil {
		return s.fail(generation, err)
	}

	var items []T
	if err := json.Unmarshal(result.results, &items); err != nil {
		return s.fail(generation, fmt.Errorf("%w: decoding results: %w", ErrInvalidResponseShape, err))
	}

	s.mu.Lock()
	if generation != s.generation {
		s.mu.Unlock()
		s.logger.Debug("discarding stale list fetch", map[string]interface{}{
			"generation": generation,
			"filters":    filters.Encode(),
		})

		return nil
	}

	if s.options.InfiniteScroll {
		s.list = append(append([]T(nil), s.list...), items...)
	} else {
		s.list = items
	}

	if result.hasTotal {
		s.totalCount = result.total
	} else {
		s.totalCount = len(s.list)
	}

	s.loading = false
	s.mu.Unlock()
	s.notify()

	return nil
}

// LoadMore advances to the next page and fetches it.
func (s *ListStore[T]) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	s.page++
	s.mu.Unlock()

	return s.Fetch(ctx)
}

// HasMore reports whether the server declared more items than are loaded. Without a
// total-count field it reports whether the last full page may have a successor.
func (s *ListStore[T]) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.options.TotalCountField != "" {
		loaded := len(s.list)
		if !s.options.InfiniteScroll && s.options.Limit > 0 {
			loaded = (s.page-1)*s.options.Limit + len(s.list)
		}

		return loaded < s.totalCount
	}

	return s.options.Limit > 0 && len(s.list) > 0 && len(s.list)%s.options.Limit == 0
}

// SetPage sets the page used by the next fetch. The value is not validated.
func (s *ListStore[T]) SetPage(page int) {
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	s.notify()
}

// SetFilter replaces every value of key with value.
func (s *ListStore[T]) SetFilter(key, value string) {
	s.mu.Lock()
	s.filters = s.filters.Set(key, value)
	s.mu.Unlock()
	s.notify()
}

// AddFilter appends a value for key, keeping existing ones.
func (s *ListStore[T]) AddFilter(key, value string) {
	s.mu.Lock()
	s.filters = s.filters.Add(key, value)
	s.mu.Unlock()
	s.notify()
}

// RemoveFilter drops every value of key.
func (s *ListStore[T]) RemoveFilter(key string) {
	s.mu.Lock()
	s.filters = s.filters.Del(key)
	s.mu.Unlock()
	s.notify()
}

// SetFilters replaces the whole filter set.
func (s *ListStore[T]) SetFilters(filters fetchx.Params) {
	s.mu.Lock()
	s.filters = filters.Clone()
	s.mu.Unlock()
	s.notify()
}

// Reset returns to the first page and clears list, filters, total count and loading.
// A fetch still in flight will not commit.
func (s *ListStore[T]) Reset() {
	s.mu.Lock()
	s.generation++
	s.page = constants.FirstPage
	s.list = []T{}
	s.filters = nil
	s.totalCount = 0
	s.loading = false
	s.mu.Unlock()
	s.notify()
}

// Page returns the current page.
func (s *ListStore[T]) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.page
}

// List returns a copy of the accumulated items.
func (s *ListStore[T]) List() []T {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]T(nil), s.list...)
}

// TotalCount returns the server-declared total, or the list length without one.
func (s *ListStore[T]) TotalCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalCount
}

// Loading reports whether a fetch is in flight.
func (s *ListStore[T]) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.loading
}

// Filters returns a copy of the filter set.
func (s *ListStore[T]) Filters() fetchx.Params {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.filters.Clone()
}

// State returns a snapshot of the store.
func (s *ListStore[T]) State() ListState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stateLocked()
}

// Subscribe calls fn with a snapshot after every change. The returned function
// unsubscribes.
func (s *ListStore[T]) Subscribe(fn func(ListState[T])) func() {
	return s.observers.subscribe(fn)
}

// EnableRefetchOnFocus fetches whenever source emits FocusEvent. Enabling again with
// another source moves the listener.
func (s *ListStore[T]) EnableRefetchOnFocus(source EventSource) {
	s.focusMu.Lock()
	defer s.focusMu.Unlock()

	if s.focus == nil {
		s.focus = &focusListener[T]{store: s}
	}

	if s.focusSource != nil {
		s.focusSource.RemoveListener(FocusEvent, s.focus)
	}

	s.focusSource = source
	source.AddListener(FocusEvent, s.focus)
}

// DisableRefetchOnFocus removes the focus listener, if any.
func (s *ListStore[T]) DisableRefetchOnFocus() {
	s.focusMu.Lock()
	defer s.focusMu.Unlock()

	if s.focusSource == nil {
		return
	}

	s.focusSource.RemoveListener(FocusEvent, s.focus)
	s.focusSource = nil
}

type focusListener[T any] struct {
	store *ListStore[T]
}

func (l *focusListener[T]) HandleEvent(ctx context.Context, event string) {
	if err := l.store.Fetch(ctx); err != nil {
		l.store.logger.Error("refetch on focus failed", map[string]interface{}{
			"event": event,
			"error": err.Error(),
		})
	}
}

// load returns the response body for filters, from the cache when possible.
func (s *ListStore[T]) load(ctx context.Context, filters fetchx.Params) ([]byte, error) {
	fingerprint := filters.Encode()

	if s.options.CacheID != "" {
		body, ok, err := s.options.Cache.Get(ctx, s.options.CacheID, fingerprint)

		switch {
		case err != nil:
			s.logger.Warn("cache lookup failed", map[string]interface{}{
				"cache_id": s.options.CacheID,
				"error":    err.Error(),
			})
		case ok:
			s.logger.Debug("cache hit", map[string]interface{}{
				"cache_id":    s.options.CacheID,
				"fingerprint": fingerprint,
			})

			return body, nil
		default:
			s.logger.Debug("cache miss", map[string]interface{}{
				"cache_id":    s.options.CacheID,
				"fingerprint": fingerprint,
			})
		}
	}

	resp, err := s.reader.Read(ctx, repository.ByParams(filters))
	if err != nil {
		return nil, err
	}

	if s.options.CacheID != "" {
		err := s.options.Cache.Set(ctx, s.options.CacheID, resp.Body, cache.SetOptions{
			Fingerprint: fingerprint,
			Duration:    s.options.CacheDuration,
		})
		if err != nil {
			s.logger.Warn("cache store failed", map[string]interface{}{
				"cache_id": s.options.CacheID,
				"error":    err.Error(),
			})
		}
	}

	return resp.Body, nil
}

// fail clears loading when generation is still current and returns err.
func (s *ListStore[T]) fail(generation uint64, err error) error {
	s.mu.Lock()
	current := generation == s.generation
	if current {
		s.loading = false
	}
	s.mu.Unlock()

	if current {
		s.notify()
	}

	return err
}

// paginatedFiltersLocked returns the filter set with skip/limit and defaults applied.
func (s *ListStore[T]) paginatedFiltersLocked() fetchx.Params {
	filters := s.filters.Clone()

	if s.options.Limit > 0 {
		if s.options.SkipField != "" {
			filters = filters.Set(s.options.SkipField, strconv.Itoa((s.page-1)*s.options.Limit))
		}

		if s.options.LimitField != "" {
			filters = filters.Set(s.options.LimitField, strconv.Itoa(s.options.Limit))
		}
	}

	keys := make([]string, 0, len(s.options.DefaultFilters))
	for key := range s.options.DefaultFilters {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		if filters.Has(key) {
			continue
		}

		for _, value := range filterValues(s.options.DefaultFilters[key]) {
			filters = filters.Add(key, value)
		}
	}

	return filters
}

func (s *ListStore[T]) stateLocked() ListState[T] {
	return ListState[T]{
		Page:       s.page,
		List:       append([]T(nil), s.list...),
		TotalCount: s.totalCount,
		Loading:    s.loading,
		Filters:    s.filters.Clone(),
	}
}

func (s *ListStore[T]) notify() {
	s.observers.notify(s.State())
}

// filterValues flattens slices and arrays into one string per element.
func filterValues(value any) []string {
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			out = append(out, fmt.Sprint(rv.Index(i).Interface()))
		}

		return out
	}

	return []string{fmt.Sprint(value)}
}
