package nftkit

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestCacheKey_Normalisation(t *testing.T) {
	mixed := common.HexToAddress("0xAbCdEf0000000000000000000000000000000001")

	key := BalanceKey(137, mixed, storeOwner, big.NewInt(3))
	assert.Equal(t, CacheKey{
		"evm", "137", "contract", "0xabcdef0000000000000000000000000000000001",
		"nft", "balanceOf", "owner=0x0000000000000000000000000000000000000001", "tokenId=3",
	}, key)

	assert.Equal(t,
		CacheKey{"evm", "137", "contract", "0xabcdef0000000000000000000000000000000001", "nft", "balanceOf", "owner=0x0000000000000000000000000000000000000001"},
		BalanceKey(137, mixed, storeOwner, nil),
		"nil arguments are omitted")

	assert.Equal(t, "balanceOf", key.Operation())
	assert.Equal(t, "", ChainKey(1).Operation())
}

func TestCacheKey_StringAndHash(t *testing.T) {
	a := NFTKey(1, storeContractA, big.NewInt(5))
	b := NFTKey(1, storeContractA, big.NewInt(5))
	c := NFTKey(1, storeContractA, big.NewInt(6))

	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, a.Hash(), b.Hash())
	assert.NotEqual(t, a.Hash(), c.Hash())

	parsed, err := ParseCacheKey(a.String())
	assert.Nil(t, err)
	assert.True(t, parsed.Equal(a))

	assert.Equal(t, "[]", CacheKey(nil).String())
}

func TestCacheKey_HasPrefix(t *testing.T) {
	nft := NFTKey(1, storeContractA, big.NewInt(5))

	assert.True(t, nft.HasPrefix(ContractKey(1, storeContractA)))
	assert.True(t, nft.HasPrefix(ChainKey(1)))
	assert.True(t, nft.HasPrefix(nil))
	assert.False(t, nft.HasPrefix(ContractKey(1, storeContractB)))
	assert.False(t, nft.HasPrefix(ContractKey(10, storeContractA)))
	assert.False(t, ChainKey(1).HasPrefix(nft))

	assert.True(t, keyStringHasPrefix(nft.String(), ContractKey(1, storeContractA)))
	assert.True(t, keyStringHasPrefix(nft.String(), nft))
	assert.False(t, keyStringHasPrefix(ChainKey(10).String(), ChainKey(1)))
}

func TestQueryAllParams_Normalized(t *testing.T) {
	var nilParams *QueryAllParams
	assert.Equal(t, QueryAllParams{Start: 0, Count: DefaultQueryAllCount}, nilParams.normalized())
	assert.Equal(t, QueryAllParams{Start: 5, Count: DefaultQueryAllCount}, (&QueryAllParams{Start: 5}).normalized())
	assert.Equal(t, QueryAllParams{Start: 0, Count: 3}, (&QueryAllParams{Start: -1, Count: 3}).normalized())

	assert.True(t, NFTsKey(1, storeContractA, nil).Equal(NFTsKey(1, storeContractA, &QueryAllParams{Count: DefaultQueryAllCount})))
}

func TestInvalidationSet(t *testing.T) {
	recipient := common.HexToAddress("0x0000000000000000000000000000000000000002")

	set := contractInvalidationSet(1, storeContractA, recipient, recipient, common.Address{})
	assert.Len(t, set, 2, "duplicates and the zero address are dropped")
	assert.True(t, set.Contains(ContractKey(1, storeContractA)))
	assert.True(t, set.Contains(WalletKey(1, recipient)))

	assert.True(t, set.Matches(BalanceKey(1, storeContractA, storeOwner, big.NewInt(1))))
	assert.True(t, set.Matches(NFTKey(1, storeContractA, big.NewInt(9))))
	assert.False(t, set.Matches(NFTKey(1, storeContractB, big.NewInt(9))))
}
