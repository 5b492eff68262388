package nftkit

import (
	"context"
	"sync"
	"time"
)

type QueryStatus int

const (
	StatusIdle QueryStatus = iota
	// StatusDisabled means required arguments are absent; nothing is issued.
	StatusDisabled
	StatusLoading
	StatusSuccess
	StatusError
)

func (s QueryStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusDisabled:
		return "disabled"
	case StatusLoading:
		return "loading"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	}
	return "unknown"
}

type QueryResult[T any] struct {
	Status    QueryStatus
	Data      T
	Err       error
	UpdatedAt time.Time
}

// Get unwraps the result. A disabled or idle query yields the zero value and
// no error.
func (r QueryResult[T]) Get() (T, error) {
	return r.Data, r.Err
}

func (r QueryResult[T]) IsSuccess() bool { return r.Status == StatusSuccess }
func (r QueryResult[T]) IsError() bool   { return r.Status == StatusError }

// Query is a keyed read bound to a QueryClient.
type Query[T any] struct {
	client  *QueryClient
	key     CacheKey
	enabled bool
	fetch   func(ctx context.Context) (T, error)

	mu     sync.Mutex
	result QueryResult[T]
}

func NewQuery[T any](client *QueryClient, key CacheKey, enabled bool, fetch func(ctx context.Context) (T, error)) *Query[T] {
	q := &Query[T]{
		client:  client,
		key:     key,
		enabled: enabled,
		fetch:   fetch,
	}
	if !enabled {
		q.result.Status = StatusDisabled
	}
	return q
}

func (q *Query[T]) Key() CacheKey { return q.key }

func (q *Query[T]) Enabled() bool { return q.enabled }

// Result returns the last delivered result without fetching.
func (q *Query[T]) Result() QueryResult[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.result
}

// Fetch returns the cached value when fresh, otherwise fetches it, sharing any
// identical fetch already in flight.
func (q *Query[T]) Fetch(ctx context.Context) QueryResult[T] {
	return q.run(ctx, false)
}

// Refetch ignores freshness but still joins an in-flight fetch of the key.
func (q *Query[T]) Refetch(ctx context.Context) QueryResult[T] {
	return q.run(ctx, true)
}

func (q *Query[T]) run(ctx context.Context, force bool) QueryResult[T] {
	if !q.enabled {
		return QueryResult[T]{Status: StatusDisabled}
	}

	q.mu.Lock()
	previous := q.result
	q.result.Status = StatusLoading
	q.mu.Unlock()

	data, updatedAt, err := fetchQuery(ctx, q.client, q.key, force, q.fetch)

	if err != nil && ctx.Err() != nil && err == ctx.Err() {
		// abandoned, keep whatever was there before
		q.mu.Lock()
		if q.result.Status == StatusLoading {
			q.result = previous
		}
		q.mu.Unlock()
		return QueryResult[T]{Status: StatusError, Err: err}
	}

	result := QueryResult[T]{Status: StatusSuccess, Data: data, UpdatedAt: updatedAt}
	if err != nil {
		result = QueryResult[T]{Status: StatusError, Data: previous.Data, Err: err, UpdatedAt: previous.UpdatedAt}
	}

	q.mu.Lock()
	q.result = result
	q.mu.Unlock()

	return result
}

// Watch refetches whenever the query's key is invalidated and hands each
// result to fn. Nothing is delivered before the first invalidation, callers
// wanting the current value Fetch it. No result reaches fn once cleanup has
// returned, so fn must not call cleanup itself.
func (q *Query[T]) Watch(fn func(QueryResult[T])) (cleanup func()) {
	if !q.enabled {
		return func() {}
	}

	ctx, cancel := context.WithCancel(context.Background())
	release := q.client.watch(q.key)

	var mu sync.Mutex
	stopped := false

	off := q.client.events.On(func(ev CacheEvent) {
		if ev.Type != EventInvalidated || !ev.Key.Equal(q.key) {
			return
		}
		result := q.Fetch(ctx)
		mu.Lock()
		defer mu.Unlock()
		if !stopped {
			fn(result)
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			mu.Lock()
			stopped = true
			mu.Unlock()
			cancel()
			off()
			release()
		})
	}
}
