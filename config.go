package nftkit

import (
	"time"
)

type CacheConfig struct {
	// LifeWindow is how long bigcache keeps an entry before it may be evicted.
	LifeWindow         time.Duration `json:"lifeWindow"`
	CleanWindow        time.Duration `json:"cleanWindow"`
	Shards             int           `json:"shards"`
	MaxEntriesInWindow int           `json:"maxEntriesInWindow"`
	MaxEntrySize       int           `json:"maxEntrySize"`
	HardMaxCacheSizeMB int           `json:"hardMaxCacheSizeMB"`
}

var DefaultCacheConfig = CacheConfig{
	LifeWindow:         10 * time.Minute,
	CleanWindow:        time.Minute,
	Shards:             64,
	MaxEntriesInWindow: 10_000,
	MaxEntrySize:       4096,
	HardMaxCacheSizeMB: 64,
}

func (c *CacheConfig) setDefaults() {
	if c.LifeWindow <= 0 {
		c.LifeWindow = DefaultCacheConfig.LifeWindow
	}
	if c.CleanWindow <= 0 {
		c.CleanWindow = DefaultCacheConfig.CleanWindow
	}
	// bigcache requires a power of two
	if c.Shards <= 0 || c.Shards&(c.Shards-1) != 0 {
		c.Shards = DefaultCacheConfig.Shards
	}
	if c.MaxEntriesInWindow <= 0 {
		c.MaxEntriesInWindow = DefaultCacheConfig.MaxEntriesInWindow
	}
	if c.MaxEntrySize <= 0 {
		c.MaxEntrySize = DefaultCacheConfig.MaxEntrySize
	}
	if c.HardMaxCacheSizeMB < 0 {
		c.HardMaxCacheSizeMB = 0
	}
}
