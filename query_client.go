package nftkit

import (
	"context"
	"reflect"
	"strconv"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const DefaultStaleTime = 15 * time.Second

var (
	cborEnc          cbor.EncMode
	cborDec          cbor.DecMode
	mapStringAnyType = reflect.TypeOf(map[string]any(nil))
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(errors.Wrap(err, "failed to build cbor encoder"))
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: mapStringAnyType,
	}.DecMode()
	if err != nil {
		panic(errors.Wrap(err, "failed to build cbor decoder"))
	}
}

// cacheEntry is the stored envelope around an encoded query value.
type cacheEntry struct {
	Value     cbor.RawMessage `cbor:"1,keyasint"`
	UpdatedAt int64           `cbor:"2,keyasint"`
	Stale     bool            `cbor:"3,keyasint"`
}

// flight tracks one underlying fetch. A flight that is invalidated while
// running stays attached to its callers but is detached from its key, so a
// later caller starts a fresh one.
type flight struct {
	id          uint64
	key         CacheKey
	waiters     int
	invalidated bool
}

func (f *flight) groupKey() string {
	return f.key.String() + "#" + strconv.FormatUint(f.id, 10)
}

// QueryClient owns the cache shared by every query and mutation of a Client.
type QueryClient struct {
	store     CacheStore
	staleTime time.Duration
	group     singleflight.Group
	mu        sync.Mutex
	flights   map[string]*flight
	watched   map[string]CacheKey
	watchRefs map[string]int
	nextID    uint64
	events    PubSubQueue[CacheEvent]
	metrics   *metrics
	log       *zerolog.Logger
	now       func() time.Time
}

func NewQueryClient(store CacheStore, staleTime time.Duration, reg prometheus.Registerer) *QueryClient {
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	return &QueryClient{
		store:     store,
		staleTime: staleTime,
		flights:   make(map[string]*flight),
		watched:   make(map[string]CacheKey),
		watchRefs: make(map[string]int),
		events:    NewQueue[CacheEvent](),
		metrics:   newMetrics(reg),
		log:       Log(),
		now:       time.Now,
	}
}

func (qc *QueryClient) Events() PubSubQueue[CacheEvent] {
	return qc.events
}

func (qc *QueryClient) StaleTime() time.Duration {
	return qc.staleTime
}

// Waiting reports how many callers are attached to the current in-flight
// fetch of key.
func (qc *QueryClient) Waiting(key CacheKey) int {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	if f, ok := qc.flights[key.String()]; ok {
		return f.waiters
	}
	return 0
}

// InFlight reports whether a fetch for key is currently running.
func (qc *QueryClient) InFlight(key CacheKey) bool {
	return qc.Waiting(key) > 0
}

// Invalidate drops every cached entry under the given prefixes and detaches
// matching in-flight fetches. Each affected key is reported and announced
// once, however many prefixes cover it.
func (qc *QueryClient) Invalidate(prefixes ...CacheKey) (keys []CacheKey, err error) {
	if len(prefixes) == 0 {
		return
	}

	qc.mu.Lock()

	seen := map[string]bool{}
	add := func(k CacheKey) {
		s := k.String()
		if !seen[s] {
			seen[s] = true
			keys = append(keys, k)
		}
	}

	for _, prefix := range prefixes {
		deleted, delErr := qc.store.DeletePrefix(prefix)
		if delErr != nil {
			err = errors.Wrapf(delErr, "failed to invalidate %s", prefix)
			break
		}
		for _, k := range deleted {
			add(k)
		}
		for s, f := range qc.flights {
			if f.key.HasPrefix(prefix) {
				f.invalidated = true
				delete(qc.flights, s)
				add(f.key)
			}
		}
		for _, k := range qc.watched {
			if k.HasPrefix(prefix) {
				add(k)
			}
		}
	}

	qc.mu.Unlock()

	qc.metrics.invalidations.Add(float64(len(keys)))
	for _, k := range keys {
		qc.log.Debug().Msgf("invalidated %s", k)
		qc.events.Broadcast(CacheEvent{
			Type:      EventInvalidated,
			Key:       k,
			Operation: k.Operation(),
		})
	}

	return
}

func (qc *QueryClient) watch(key CacheKey) (release func()) {
	s := key.String()
	qc.mu.Lock()
	qc.watched[s] = key
	qc.watchRefs[s]++
	qc.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			qc.mu.Lock()
			defer qc.mu.Unlock()
			qc.watchRefs[s]--
			if qc.watchRefs[s] <= 0 {
				delete(qc.watchRefs, s)
				delete(qc.watched, s)
			}
		})
	}
}

func (qc *QueryClient) lookup(key CacheKey) (entry cacheEntry, ok bool) {
	raw, err := qc.store.Get(key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			qc.log.Warn().Msgf("cache read failed for %s: %v", key, err)
		}
		return
	}
	if err = cborDec.Unmarshal(raw, &entry); err != nil {
		qc.log.Warn().Msgf("discarding undecodable cache entry %s: %v", key, err)
		return
	}
	return entry, true
}

func (qc *QueryClient) fresh(entry cacheEntry) bool {
	if entry.Stale {
		return false
	}
	return qc.now().Sub(time.Unix(0, entry.UpdatedAt)) < qc.staleTime
}

// Peek returns the cached value for key, fresh or not.
func Peek[T any](qc *QueryClient, key CacheKey) (value T, updatedAt time.Time, ok bool) {
	entry, found := qc.lookup(key)
	if !found {
		return
	}
	if err := cborDec.Unmarshal(entry.Value, &value); err != nil {
		qc.log.Warn().Msgf("discarding undecodable cache value %s: %v", key, err)
		return value, updatedAt, false
	}
	return value, time.Unix(0, entry.UpdatedAt), true
}

// SetQueryData stores value under key as if it had just been fetched.
func SetQueryData[T any](qc *QueryClient, key CacheKey, value T) (err error) {
	raw, err := cborEnc.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode value for %s", key)
	}
	qc.mu.Lock()
	err = qc.storeEntry(key, raw, false)
	qc.mu.Unlock()
	if err == nil {
		qc.events.Broadcast(CacheEvent{Type: EventUpdated, Key: key, Operation: key.Operation()})
	}
	return
}

// storeEntry must be called with qc.mu held.
func (qc *QueryClient) storeEntry(key CacheKey, raw []byte, stale bool) error {
	envelope, err := cborEnc.Marshal(cacheEntry{
		Value:     raw,
		UpdatedAt: qc.now().UnixNano(),
		Stale:     stale,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to encode cache entry %s", key)
	}
	return errors.Wrapf(qc.store.Set(key, envelope), "failed to store %s", key)
}

// fetchQuery serves key from the cache when fresh, otherwise joins or starts
// the single in-flight fetch for it. The fetch itself runs detached from ctx;
// a caller whose ctx ends first gets ctx.Err() and never sees the result.
func fetchQuery[T any](
	ctx context.Context,
	qc *QueryClient,
	key CacheKey,
	force bool,
	fn func(ctx context.Context) (T, error),
) (value T, updatedAt time.Time, err error) {
	operation := key.Operation()

	if !force {
		if entry, ok := qc.lookup(key); ok && qc.fresh(entry) {
			if err = cborDec.Unmarshal(entry.Value, &value); err == nil {
				qc.metrics.cacheHits.WithLabelValues(operation).Inc()
				return value, time.Unix(0, entry.UpdatedAt), nil
			}
			qc.log.Warn().Msgf("discarding undecodable cache value %s: %v", key, err)
			err = nil
		}
	}
	qc.metrics.cacheMisses.WithLabelValues(operation).Inc()

	keyString := key.String()

	qc.mu.Lock()
	f, exists := qc.flights[keyString]
	if !exists {
		qc.nextID++
		f = &flight{id: qc.nextID, key: key}
		qc.flights[keyString] = f
	}
	f.waiters++
	qc.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	ch := qc.group.DoChan(f.groupKey(), func() (any, error) {
		raw, fetchErr := encodeFetch(detached, fn)
		if fetchErr != nil {
			qc.metrics.fetches.WithLabelValues(operation, "error").Inc()
			qc.finish(f)
			return nil, fetchErr
		}
		qc.metrics.fetches.WithLabelValues(operation, "success").Inc()
		return qc.complete(f, raw), nil
	})

	defer qc.leave(f)

	select {
	case <-ctx.Done():
		qc.metrics.abandoned.WithLabelValues(operation).Inc()
		return value, updatedAt, ctx.Err()
	case res := <-ch:
		if res.Shared {
			qc.metrics.coalesced.WithLabelValues(operation).Inc()
		}
		if res.Err != nil {
			return value, updatedAt, res.Err
		}
		r := res.Val.(flightResult)
		if err = cborDec.Unmarshal(r.raw, &value); err != nil {
			return value, updatedAt, errors.Wrapf(err, "failed to decode value for %s", key)
		}
		return value, r.updatedAt, nil
	}
}

type flightResult struct {
	raw       []byte
	updatedAt time.Time
}

// encodeFetch runs fn and encodes its value. Errors from fn are returned as
// they are.
func encodeFetch[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) (raw []byte, err error) {
	value, err := fn(ctx)
	if err != nil {
		return
	}
	raw, err = cborEnc.Marshal(value)
	return raw, errors.WithStack(err)
}

// complete stores a successful flight's value. A flight invalidated while
// running is stored stale, and only when nothing newer exists for its key.
func (qc *QueryClient) complete(f *flight, raw []byte) flightResult {
	qc.mu.Lock()

	result := flightResult{raw: raw, updatedAt: qc.now()}
	keyString := f.key.String()
	stale := f.invalidated

	write := true
	if stale {
		if _, newer := qc.flights[keyString]; newer {
			write = false
		} else if _, err := qc.store.Get(f.key); err == nil {
			write = false
		}
	}

	var storeErr error
	if write {
		storeErr = qc.storeEntry(f.key, raw, stale)
	}
	if current, ok := qc.flights[keyString]; ok && current == f {
		delete(qc.flights, keyString)
	}

	qc.mu.Unlock()

	switch {
	case storeErr != nil:
		qc.log.Warn().Msgf("failed to cache %s: %+v", f.key, storeErr)
	case write && !stale:
		qc.events.Broadcast(CacheEvent{Type: EventUpdated, Key: f.key, Operation: f.key.Operation()})
	}

	return result
}

func (qc *QueryClient) finish(f *flight) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	if current, ok := qc.flights[f.key.String()]; ok && current == f {
		delete(qc.flights, f.key.String())
	}
}

func (qc *QueryClient) leave(f *flight) {
	qc.mu.Lock()
	defer qc.mu.Unlock()
	f.waiters--
}
