package nftkit

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type CacheEventType int

const (
	// EventInvalidated is emitted once per key removed or marked stale by an
	// invalidation.
	EventInvalidated CacheEventType = iota
	EventUpdated
	// EventSettled is emitted when a write reaches Success or Failure.
	EventSettled
)

func (t CacheEventType) String() string {
	switch t {
	case EventInvalidated:
		return "invalidated"
	case EventUpdated:
		return "updated"
	case EventSettled:
		return "settled"
	}
	return "unknown"
}

type CacheEvent struct {
	Type       CacheEventType
	Key        CacheKey
	Operation  string
	MutationID uuid.UUID
	Err        error
}

type PubSubQueue[T any] interface {
	On(func(message T)) (cleanup func())
	Broadcast(message T)
	Wait(timeout time.Duration) error
	Close()
}

type subscriber[T any] struct {
	id       int
	messages chan T
	callback func(message T)
	stopped  atomic.Bool
}

type queue[T any] struct {
	subscribers      map[int]*subscriber[T]
	nextSubscriberID int
	mu               sync.RWMutex
	pending          atomic.Int64
	closed           atomic.Bool
}

func NewQueue[T any]() PubSubQueue[T] {
	return &queue[T]{
		subscribers: make(map[int]*subscriber[T]),
	}
}

// On registers callback. Messages are delivered in broadcast order on a
// goroutine owned by the subscriber; after cleanup returns no further message
// reaches the callback.
func (q *queue[T]) On(callback func(message T)) (cleanup func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed.Load() {
		return func() {}
	}

	id := q.nextSubscriberID
	q.nextSubscriberID++

	sub := &subscriber[T]{
		id:       id,
		messages: make(chan T, 100),
		callback: callback,
	}

	q.subscribers[id] = sub

	go func() {
		for msg := range sub.messages {
			q.deliver(sub, msg)
		}
	}()

	return func() {
		sub.stopped.Store(true)
		q.mu.Lock()
		defer q.mu.Unlock()
		if s, exists := q.subscribers[id]; exists {
			delete(q.subscribers, id)
			close(s.messages)
		}
	}
}

func (q *queue[T]) deliver(sub *subscriber[T], msg T) {
	defer q.pending.Add(-1)
	if sub.stopped.Load() {
		return
	}
	sub.callback(msg)
}

func (q *queue[T]) Broadcast(message T) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed.Load() || len(q.subscribers) == 0 {
		return
	}

	q.pending.Add(int64(len(q.subscribers)))

	for _, sub := range q.subscribers {
		select {
		case sub.messages <- message:
		default:
			// subscriber is backed up, deliver out of band
			go q.deliver(sub, message)
		}
	}
}

// Wait blocks until every broadcast message has been handled or dropped.
func (q *queue[T]) Wait(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for q.pending.Load() > 0 {
		if time.Now().After(deadline) {
			return errors.New("timeout waiting for messages to be processed")
		}
		time.Sleep(time.Millisecond)
	}
	return nil
}

func (q *queue[T]) Close() {
	if q.closed.Swap(true) {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, sub := range q.subscribers {
		sub.stopped.Store(true)
		close(sub.messages)
	}
	q.subscribers = make(map[int]*subscriber[T])
}
