package nftkit

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	storeContractA = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	storeContractB = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	storeOwner     = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

func testCacheStore(t *testing.T, store CacheStore) {
	nft1 := NFTKey(1, storeContractA, big.NewInt(1))
	nft10 := NFTKey(1, storeContractA, big.NewInt(10))
	balance := BalanceKey(1, storeContractA, storeOwner, big.NewInt(1))
	otherContract := NFTKey(1, storeContractB, big.NewInt(1))
	otherChain := NFTKey(10, storeContractA, big.NewInt(1))

	_, err := store.Get(nft1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	for i, key := range []CacheKey{nft1, nft10, balance, otherContract, otherChain} {
		err = store.Set(key, []byte{byte(i)})
		assert.Nil(t, err)
	}
	assert.Equal(t, 5, store.Len())

	value, err := store.Get(nft10)
	assert.Nil(t, err)
	assert.Equal(t, []byte{1}, value)

	err = store.Set(nft10, []byte{42})
	assert.Nil(t, err, "should be able to overwrite an entry")
	value, err = store.Get(nft10)
	assert.Nil(t, err)
	assert.Equal(t, []byte{42}, value)
	assert.Equal(t, 5, store.Len())

	deleted, err := store.DeletePrefix(NFTKey(1, storeContractA, big.NewInt(1)))
	assert.Nil(t, err)
	assert.Len(t, deleted, 1, "tokenId=1 must not match tokenId=10")
	assert.True(t, deleted[0].Equal(nft1))

	deleted, err = store.DeletePrefix(ContractKey(1, storeContractA))
	assert.Nil(t, err)
	assert.ElementsMatch(t, []string{nft10.String(), balance.String()}, keyStrings(deleted))

	_, err = store.Get(balance)
	assert.ErrorIs(t, err, ErrCacheMiss)

	value, err = store.Get(otherChain)
	assert.Nil(t, err, "other chain entries must survive")
	assert.Equal(t, []byte{4}, value)

	_, err = store.Get(otherContract)
	assert.Nil(t, err, "other contract entries must survive")

	deleted, err = store.DeletePrefix(ContractKey(1, storeContractA))
	assert.Nil(t, err)
	assert.Empty(t, deleted)

	assert.Equal(t, 2, store.Len())
}

func keyStrings(keys []CacheKey) (out []string) {
	for _, k := range keys {
		out = append(out, k.String())
	}
	return
}

func TestMemoryCacheStore(t *testing.T) {
	store, err := NewMemoryCacheStore(nil)
	require.Nil(t, err)

	testCacheStore(t, store)

	assert.Nil(t, store.Close())
	_, err = store.Get(NFTKey(1, storeContractA, big.NewInt(1)))
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.Nil(t, store.Close(), "closing twice is harmless")
}

func TestSqlLiteCacheStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nftkit-test.db")
	defer func() {
		_ = os.Remove(path)
	}()

	store, err := NewSqlLiteCacheStore(path)
	require.Nil(t, err)

	testCacheStore(t, store)
	assert.Nil(t, store.Close())

	reopened, err := NewSqlLiteCacheStore(path)
	require.Nil(t, err)
	defer reopened.Close()

	value, err := reopened.Get(NFTKey(10, storeContractA, big.NewInt(1)))
	assert.Nil(t, err, "entries should persist across restarts")
	assert.Equal(t, []byte{4}, value)
}

func TestCacheConfigDefaults(t *testing.T) {
	cfg := CacheConfig{Shards: 3, HardMaxCacheSizeMB: -1}
	cfg.setDefaults()
	assert.Equal(t, DefaultCacheConfig.Shards, cfg.Shards)
	assert.Equal(t, DefaultCacheConfig.LifeWindow, cfg.LifeWindow)
	assert.Equal(t, 0, cfg.HardMaxCacheSizeMB)

	cfg = CacheConfig{Shards: 16}
	cfg.setDefaults()
	assert.Equal(t, 16, cfg.Shards)
}
