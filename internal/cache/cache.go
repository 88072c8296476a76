// Package cache keeps query results keyed by resource and filter parameters.
//
// Entries live until the process exits; there is no TTL and no eviction.
// Invalidation only marks entries stale: the next Read returns the stale value
// immediately and refreshes it in the background.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrTypeMismatch = errors.New("cached value has a different type")

const paramSep = "\x1f"

// Key is a composite cache key: a resource name plus the parameters that
// produced the value. Keys are comparable.
type Key struct {
	Resource string
	params   string
}

func NewKey(resource string, params ...string) Key {
	return Key{Resource: resource, params: strings.Join(params, paramSep)}
}

// Params returns the parameters the key was built with.
func (k Key) Params() []string {
	if k.params == "" {
		return nil
	}
	return strings.Split(k.params, paramSep)
}

func (k Key) String() string {
	if k.params == "" {
		return k.Resource
	}
	return k.Resource + "[" + strings.Join(k.Params(), ",") + "]"
}

// Predicate selects keys for Invalidate and Snapshot.
type Predicate func(Key) bool

// ByResource matches every key of the named resource.
func ByResource(resource string) Predicate {
	return func(k Key) bool { return k.Resource == resource }
}

// Exact matches a single key.
func Exact(key Key) Predicate {
	return func(k Key) bool { return k == key }
}

// Any matches when any of preds does.
func Any(preds ...Predicate) Predicate {
	return func(k Key) bool {
		for _, p := range preds {
			if p(k) {
				return true
			}
		}
		return false
	}
}

type entry struct {
	value      any
	stale      bool
	refreshing bool
	updatedAt  time.Time
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[Key]*entry
	// epochs changes whenever a key is written or invalidated so a fetch that
	// started earlier does not overwrite newer data.
	epochs map[Key]uint64
	group  singleflight.Group
	bg     sync.WaitGroup
	now    func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[Key]*entry),
		epochs:  make(map[Key]uint64),
		now:     time.Now,
	}
}

// Fetcher loads the value for a key from the source of truth.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Read returns the cached value for key. A missing entry blocks on fetch;
// concurrent readers of the same key share one fetch. A stale entry is
// returned at once and refreshed in the background.
func Read[T any](ctx context.Context, s *Store, key Key, fetch Fetcher[T]) (T, error) {
	var zero T

	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		v, typed := e.value.(T)
		if !typed {
			s.mu.Unlock()
			return zero, fmt.Errorf("%w: %s", ErrTypeMismatch, key)
		}
		if e.stale && !e.refreshing {
			e.refreshing = true
			s.bg.Add(1)
			go s.refresh(context.WithoutCancel(ctx), key, untyped(fetch))
		}
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	v, err := s.load(ctx, key, untyped(fetch))
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrTypeMismatch, key)
	}
	return typed, nil
}

func untyped[T any](fetch Fetcher[T]) func(context.Context) (any, error) {
	return func(ctx context.Context) (any, error) { return fetch(ctx) }
}

func (s *Store) load(ctx context.Context, key Key, fetch func(context.Context) (any, error)) (any, error) {
	v, err, _ := s.group.Do(key.Resource+"\x1e"+key.params, func() (any, error) {
		s.mu.Lock()
		epoch := s.epochs[key]
		s.mu.Unlock()

		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		s.store(key, v, epoch)
		return v, nil
	})
	return v, err
}

func (s *Store) refresh(ctx context.Context, key Key, fetch func(context.Context) (any, error)) {
	defer s.bg.Done()

	_, err := s.load(ctx, key, fetch)
	if err != nil {
		slog.WarnContext(ctx, "Background cache refresh failed", "cache_key", key.String(), "error", err)
	}

	s.mu.Lock()
	if e, ok := s.entries[key]; ok {
		e.refreshing = false
	}
	s.mu.Unlock()
}

// store saves a fetched value unless the key changed while it was in flight.
func (s *Store) store(key Key, v any, epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epochs[key] != epoch {
		if _, exists := s.entries[key]; !exists {
			s.entries[key] = &entry{value: v, stale: true, updatedAt: s.now()}
		}
		return
	}
	s.entries[key] = &entry{value: v, updatedAt: s.now()}
}

// Get returns the cached value without fetching.
func Get[T any](s *Store, key Key) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero T
	e, ok := s.entries[key]
	if !ok {
		return zero, false
	}
	v, ok := e.value.(T)
	return v, ok
}

// Set stores a fresh value.
func (s *Store) Set(key Key, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[key]++
	s.entries[key] = &entry{value: v, updatedAt: s.now()}
}

// Write replaces the value for key with updater's result. ok reports whether
// there was a previous value. Updaters must return a new value rather than
// mutate old, since snapshots share it.
func Write[T any](s *Store, key Key, updater func(old T, ok bool) T) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var old T
	e, ok := s.entries[key]
	if ok {
		old, ok = e.value.(T)
	}
	s.epochs[key]++
	s.entries[key] = &entry{value: updater(old, ok), updatedAt: s.now()}
}

// Invalidate marks matching entries stale and returns how many matched.
func (s *Store) Invalidate(match Predicate) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, e := range s.entries {
		if !match(k) {
			continue
		}
		s.epochs[k]++
		e.stale = true
		n++
	}
	return n
}

// IsStale reports whether key is present and stale.
func (s *Store) IsStale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return ok && e.stale
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Wait blocks until background refreshes started so far have finished.
func (s *Store) Wait() {
	s.bg.Wait()
}
