package nftkit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MutationStatus int

const (
	MutationIdle MutationStatus = iota
	MutationPending
	MutationSuccess
	MutationFailure
)

func (s MutationStatus) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationPending:
		return "pending"
	case MutationSuccess:
		return "success"
	case MutationFailure:
		return "failure"
	}
	return "unknown"
}

func (s MutationStatus) Settled() bool {
	return s == MutationSuccess || s == MutationFailure
}

type MutationState[R any] struct {
	ID          uuid.UUID
	Status      MutationStatus
	Result      R
	Err         error
	Invalidated []CacheKey
	SettledAt   time.Time
}

// mutationFunc performs one write. It returns the prefixes to invalidate even
// when it fails.
type mutationFunc[P, R any] func(ctx context.Context, params P) (R, InvalidationSet, error)

// Mutation is a write bound to a QueryClient. Calls are never coalesced.
type Mutation[P, R any] struct {
	client    *QueryClient
	operation string
	run       mutationFunc[P, R]

	mu        sync.Mutex
	state     MutationState[R]
	onSettled []func(MutationState[R])
}

func newMutation[P, R any](client *QueryClient, operation string, run mutationFunc[P, R]) *Mutation[P, R] {
	return &Mutation[P, R]{
		client:    client,
		operation: operation,
		run:       run,
	}
}

func (m *Mutation[P, R]) Operation() string { return m.operation }

// State is the state of the most recent call.
func (m *Mutation[P, R]) State() MutationState[R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnSettled registers fn to run after every call settles, once the cache has
// been invalidated.
func (m *Mutation[P, R]) OnSettled(fn func(MutationState[R])) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSettled = append(m.onSettled, fn)
}

// Mutate dispatches the write. Whatever the outcome, the affected cache
// prefixes are invalidated exactly once before Mutate returns.
func (m *Mutation[P, R]) Mutate(ctx context.Context, params P) (result R, err error) {
	id := uuid.New()

	m.mu.Lock()
	m.state = MutationState[R]{ID: id, Status: MutationPending}
	m.mu.Unlock()

	m.client.log.Debug().Msgf("%s %s pending", m.operation, id)

	result, set, err := m.run(ctx, params)

	invalidated, invErr := m.client.Invalidate(set...)
	if invErr != nil {
		m.client.log.Warn().Msgf("%s %s failed to invalidate cache: %+v", m.operation, id, invErr)
	}

	state := MutationState[R]{
		ID:          id,
		Status:      MutationSuccess,
		Result:      result,
		Err:         err,
		Invalidated: invalidated,
		SettledAt:   time.Now(),
	}
	if err != nil {
		state.Status = MutationFailure
		m.client.log.Debug().Msgf("%s %s failed: %v", m.operation, id, err)
	} else {
		m.client.log.Debug().Msgf("%s %s settled", m.operation, id)
	}

	m.mu.Lock()
	if m.state.ID == id {
		m.state = state
	}
	callbacks := append([]func(MutationState[R]){}, m.onSettled...)
	m.mu.Unlock()

	m.client.metrics.mutations.WithLabelValues(m.operation, state.Status.String()).Inc()
	m.client.events.Broadcast(CacheEvent{
		Type:       EventSettled,
		Operation:  m.operation,
		MutationID: id,
		Err:        err,
	})

	for _, fn := range callbacks {
		fn(state)
	}

	return
}
