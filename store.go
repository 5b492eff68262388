package nftkit

import "strings"

// CacheStore persists encoded query results. Implementations must be safe for
// concurrent use; the QueryClient serialises invalidation against writes.
type CacheStore interface {
	Get(key CacheKey) (value []byte, err error)
	Set(key CacheKey, value []byte) error
	// DeletePrefix removes every key under prefix and returns what was removed.
	DeletePrefix(prefix CacheKey) (deleted []CacheKey, err error)
	Len() int
	Close() error
}

var _ CacheStore = &MemoryCacheStore{}
var _ CacheStore = &SqlLiteCacheStore{}

func keyStringHasPrefix(keyString string, prefix CacheKey) bool {
	p := prefix.prefixString()
	if !strings.HasPrefix(keyString, p) {
		return false
	}
	rest := keyString[len(p):]
	if len(prefix) == 0 {
		return true
	}
	return rest == "]" || strings.HasPrefix(rest, ",")
}
