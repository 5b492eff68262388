package nftkit

import (
	"context"
	"sync"

	"github.com/allegro/bigcache/v3"
	"github.com/pkg/errors"
)

// MemoryCacheStore keeps entries in bigcache. Entries older than the
// configured life window are evicted by bigcache itself.
type MemoryCacheStore struct {
	cache  *bigcache.BigCache
	mu     sync.RWMutex
	closed bool
}

func NewMemoryCacheStore(config *CacheConfig) (store *MemoryCacheStore, err error) {
	cfg := DefaultCacheConfig
	if config != nil {
		cfg = *config
	}
	cfg.setDefaults()

	bc := bigcache.DefaultConfig(cfg.LifeWindow)
	bc.CleanWindow = cfg.CleanWindow
	bc.Shards = cfg.Shards
	bc.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	bc.MaxEntrySize = cfg.MaxEntrySize
	bc.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	bc.Verbose = false

	cache, err := bigcache.New(context.Background(), bc)
	if err != nil {
		err = errors.Wrap(err, "failed to create memory cache")
		return
	}

	return &MemoryCacheStore{cache: cache}, nil
}

func (s *MemoryCacheStore) Get(key CacheKey) (value []byte, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.WithStack(ErrStoreClosed)
	}

	value, err = s.cache.Get(key.String())
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, ErrCacheMiss
	}
	return value, errors.WithStack(err)
}

func (s *MemoryCacheStore) Set(key CacheKey, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.WithStack(ErrStoreClosed)
	}

	return errors.WithStack(s.cache.Set(key.String(), value))
}

func (s *MemoryCacheStore) DeletePrefix(prefix CacheKey) (deleted []CacheKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.WithStack(ErrStoreClosed)
	}

	var matched []string
	it := s.cache.Iterator()
	for it.SetNext() {
		entry, iterErr := it.Value()
		if iterErr != nil {
			// the entry was evicted while iterating
			continue
		}
		if keyStringHasPrefix(entry.Key(), prefix) {
			matched = append(matched, entry.Key())
		}
	}

	for _, k := range matched {
		if delErr := s.cache.Delete(k); delErr != nil && !errors.Is(delErr, bigcache.ErrEntryNotFound) {
			return deleted, errors.WithStack(delErr)
		}
		key, parseErr := ParseCacheKey(k)
		if parseErr != nil {
			log.Warn().Msgf("dropping unparsable cache key %q: %v", k, parseErr)
			continue
		}
		deleted = append(deleted, key)
	}

	return
}

func (s *MemoryCacheStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0
	}
	return s.cache.Len()
}

func (s *MemoryCacheStore) Stats() bigcache.Stats {
	return s.cache.Stats()
}

func (s *MemoryCacheStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return errors.WithStack(s.cache.Close())
}
