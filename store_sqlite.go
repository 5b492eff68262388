package nftkit

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SqlLiteCacheStore persists cache entries so that a restarted process can
// hydrate from them. Rows are addressed by CacheKey.Hash.
type SqlLiteCacheStore struct {
	db *sql.DB
	mu sync.Mutex
}

func NewSqlLiteCacheStore(path string) (store *SqlLiteCacheStore, err error) {
	log.Info().Msgf("opening sqlite cache at: '%s'", path)

	sqldb, err := sql.Open("sqlite3", path)
	if err != nil {
		err = errors.Wrap(err, "failed to open database")
		return
	}

	if err = sqldb.Ping(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to ping database")
		return
	}

	store = &SqlLiteCacheStore{db: sqldb}
	if err = store.initTables(); err != nil {
		_ = sqldb.Close()
		err = errors.Wrap(err, "failed to init tables")
		return
	}

	return
}

func (s *SqlLiteCacheStore) initTables() (err error) {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cache_entry (
			hash TEXT PRIMARY KEY,
			key TEXT NOT NULL,
			value BLOB,
			updated_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_key ON cache_entry(key)`,
	}

	for i, query := range queries {
		_, err = s.db.Exec(query)
		if err != nil {
			err = errors.Wrapf(err, "failed to execute query: %d", i)
			return
		}
	}

	return
}

func (s *SqlLiteCacheStore) Get(key CacheKey) (value []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRow("SELECT value FROM cache_entry WHERE hash = ?", key.Hash()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	return value, errors.WithStack(err)
}

func (s *SqlLiteCacheStore) Set(key CacheKey, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO cache_entry (hash, key, value, updated_at) VALUES (?, ?, ?, ?)",
		key.Hash(),
		key.String(),
		value,
		time.Now().Unix())
	return errors.WithStack(err)
}

func (s *SqlLiteCacheStore) DeletePrefix(prefix CacheKey) (deleted []CacheKey, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := prefix.prefixString()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT hash, key FROM cache_entry WHERE substr(key, 1, ?) = ?",
		len(p),
		p)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var hashes []string
	for rows.Next() {
		var hash, keyString string
		if err = rows.Scan(&hash, &keyString); err != nil {
			_ = rows.Close()
			return nil, errors.WithStack(err)
		}
		if !keyStringHasPrefix(keyString, prefix) {
			continue
		}
		key, parseErr := ParseCacheKey(keyString)
		if parseErr != nil {
			log.Warn().Msgf("dropping unparsable cache key %q: %v", keyString, parseErr)
		} else {
			deleted = append(deleted, key)
		}
		hashes = append(hashes, hash)
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, errors.WithStack(err)
	}
	_ = rows.Close()

	for _, hash := range hashes {
		if _, err = tx.Exec("DELETE FROM cache_entry WHERE hash = ?", hash); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.WithStack(err)
	}

	return
}

func (s *SqlLiteCacheStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cache_entry").Scan(&n); err != nil {
		log.Error().Msgf("failed to count cache entries: %+v", errors.WithStack(err))
		return 0
	}
	return n
}

func (s *SqlLiteCacheStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.WithStack(s.db.Close())
}
