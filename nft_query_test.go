package nftkit_test

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/alexdcox/nftkit"
	"github.com/alexdcox/nftkit/nfttest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ownerA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	ownerB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func newTestClient(t *testing.T) *nftkit.Client {
	client, err := nftkit.NewClient(&nftkit.ClientOptions{
		Chain: nftkit.StaticChainID(1),
	})
	require.Nil(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNFTBalance_SingleTokenIgnoresTokenID(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()
	single.SetBalance(ownerA, 3)

	result := client.NFTBalance(handle, ownerA, nil).Fetch(context.Background())
	balance, err := result.Get()
	assert.Nil(t, err)
	assert.Equal(t, nftkit.StatusSuccess, result.Status)
	assert.Equal(t, int64(3), balance.Int64())

	call, ok := single.Last("BalanceOf")
	require.True(t, ok)
	assert.Equal(t, []any{ownerA}, call.Args, "single-token balance takes no token id")
}

func TestNFTBalance_MultiTokenWithoutIDIsDisabled(t *testing.T) {
	client := newTestClient(t)
	handle, multi := nfttest.NewMultiHandle()

	query := client.NFTBalance(handle, ownerA, nil)
	assert.False(t, query.Enabled())

	result := query.Fetch(context.Background())
	assert.Equal(t, nftkit.StatusDisabled, result.Status)
	assert.Nil(t, result.Err)
	assert.Empty(t, multi.Calls())
}

func TestNFTBalance_BothCapabilitiesPreferMultiToken(t *testing.T) {
	client := newTestClient(t)
	handle, single, multi := nfttest.NewDualHandle()
	multi.SetBalance(ownerA, 3, 12)

	balance, err := client.NFTBalance(handle, ownerA, big.NewInt(3)).Fetch(context.Background()).Get()
	assert.Nil(t, err)
	assert.Equal(t, int64(12), balance.Int64())

	call, ok := multi.Last("BalanceOf")
	require.True(t, ok)
	assert.Equal(t, ownerA, call.Args[0])
	assert.Equal(t, int64(3), call.Args[1].(*big.Int).Int64())
	assert.Empty(t, single.Calls(), "the single-token path must not be used")
}

func TestQueries_NeitherCapability(t *testing.T) {
	client := newTestClient(t)
	handle := nfttest.BareHandle{Addr: nfttest.ContractAddress}

	results := []nftkit.QueryResult[*big.Int]{
		client.NFTBalance(handle, ownerA, big.NewInt(1)).Fetch(context.Background()),
		client.TotalCount(handle).Fetch(context.Background()),
		client.TotalCirculatingSupply(handle, big.NewInt(1)).Fetch(context.Background()),
	}
	for _, r := range results {
		assert.Equal(t, nftkit.StatusError, r.Status)
		assert.ErrorIs(t, r.Err, nftkit.ErrUnsupportedCapability)
	}

	nft := client.NFT(handle, big.NewInt(1)).Fetch(context.Background())
	assert.ErrorIs(t, nft.Err, nftkit.ErrUnsupportedCapability)

	owned := client.OwnedNFTs(handle, ownerA).Fetch(context.Background())
	assert.ErrorIs(t, owned.Err, nftkit.ErrUnsupportedCapability)

	all := client.NFTs(handle, nil).Fetch(context.Background())
	assert.ErrorIs(t, all.Err, nftkit.ErrUnsupportedCapability)
}

func TestQueries_DisabledWithoutArguments(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()

	assert.False(t, client.NFT(nil, big.NewInt(1)).Enabled())
	assert.False(t, client.NFT(handle, nil).Enabled())
	assert.False(t, client.OwnedNFTs(handle, common.Address{}).Enabled())
	assert.False(t, client.NFTBalance(handle, common.Address{}, nil).Enabled())
	assert.False(t, client.TotalCount(nil).Enabled())

	var typedNil *nfttest.Handle
	assert.False(t, client.NFTs(typedNil, nil).Enabled())

	assert.True(t, client.TotalCirculatingSupply(handle, nil).Enabled(), "single-token supply needs no id")

	multiHandle, _ := nfttest.NewMultiHandle()
	assert.False(t, client.TotalCirculatingSupply(multiHandle, nil).Enabled())

	assert.Equal(t, nftkit.StatusDisabled, client.NFT(handle, nil).Result().Status)
	assert.Empty(t, single.Calls())
}

func TestNFT_ConcurrentFetchesCoalesce(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()
	single.SetToken(5, ownerA, "five")
	gate := nfttest.NewGate()
	single.SetGate(gate)

	first := client.NFT(handle, big.NewInt(5))
	second := client.NFT(handle, big.NewInt(5))
	assert.True(t, first.Key().Equal(second.Key()))

	results := make([]nftkit.QueryResult[nftkit.NFT], 2)
	var wg sync.WaitGroup
	for i, q := range []*nftkit.Query[nftkit.NFT]{first, second} {
		i, q := i, q
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = q.Fetch(context.Background())
		}()
	}

	assert.Eventually(t, func() bool {
		return client.Queries().Waiting(first.Key()) == 2
	}, time.Second, time.Millisecond)
	gate.Release()
	wg.Wait()

	assert.Equal(t, 1, single.Count("Get"))
	for _, r := range results {
		assert.Equal(t, nftkit.StatusSuccess, r.Status)
		assert.Equal(t, "five", r.Data.Metadata.Name)
		assert.Equal(t, ownerA, r.Data.Owner)
	}
	assert.Equal(t, results[0].Data.Metadata.ID.Int64(), results[1].Data.Metadata.ID.Int64())

	// fresh, so served from cache
	third := client.NFT(handle, big.NewInt(5)).Fetch(context.Background())
	assert.Equal(t, "five", third.Data.Metadata.Name)
	assert.Equal(t, 1, single.Count("Get"))
}

func TestNFT_AbandonedFetch(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()
	gate := nfttest.NewGate()
	single.SetGate(gate)

	query := client.NFT(handle, big.NewInt(1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan nftkit.QueryResult[nftkit.NFT], 1)
	go func() { done <- query.Fetch(ctx) }()

	assert.Eventually(t, func() bool {
		return client.Queries().Waiting(query.Key()) == 1
	}, time.Second, time.Millisecond)
	cancel()

	result := <-done
	assert.ErrorIs(t, result.Err, context.Canceled)
	assert.Equal(t, nftkit.StatusIdle, query.Result().Status, "an abandoned fetch leaves the query as it was")

	gate.Release()
	refreshed := query.Fetch(context.Background())
	assert.Equal(t, nftkit.StatusSuccess, refreshed.Status)
	assert.LessOrEqual(t, single.Count("Get"), 2)
}

func TestQuery_ErrorKeepsPreviousData(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()
	single.SetBalance(ownerA, 2)

	query := client.NFTBalance(handle, ownerA, nil)
	ok := query.Fetch(context.Background())
	assert.Equal(t, int64(2), ok.Data.Int64())

	single.SetError(fmt.Errorf("node unavailable"))
	failed := query.Refetch(context.Background())
	assert.Equal(t, nftkit.StatusError, failed.Status)
	assert.EqualError(t, failed.Err, "node unavailable", "external errors pass through unchanged")
	assert.Equal(t, int64(2), failed.Data.Int64())
}

func TestQueries_RouteToExtensions(t *testing.T) {
	client := newTestClient(t)
	handle, single, multi := nfttest.NewDualHandle()
	single.SetToken(0, ownerA, "single zero")
	multi.SetToken(0, 10, "multi zero")
	multi.SetBalance(ownerB, 0, 4)

	all, err := client.NFTs(handle, &nftkit.QueryAllParams{Count: 5}).Fetch(context.Background()).Get()
	assert.Nil(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "multi zero", all[0].Metadata.Name)

	owned, err := client.OwnedNFTs(handle, ownerB).Fetch(context.Background()).Get()
	assert.Nil(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, int64(4), owned[0].QuantityOwned.Int64())

	supply, err := client.TotalCirculatingSupply(handle, big.NewInt(0)).Fetch(context.Background()).Get()
	assert.Nil(t, err)
	assert.Equal(t, int64(10), supply.Int64())

	assert.Empty(t, single.Calls())

	// a multi-token capability without the enumerable extension falls back
	// to the single-token one for listing
	fallback := &nfttest.Handle{Addr: nfttest.ContractAddress, Single: single, Multi: multi.Core()}
	count, err := client.TotalCount(fallback).Refetch(context.Background()).Get()
	assert.Nil(t, err)
	assert.Equal(t, int64(1), count.Int64())
	assert.Equal(t, 1, single.Count("TotalCount"))
}

func TestQueries_CoreSingleTokenLacksExtensions(t *testing.T) {
	client := newTestClient(t)
	_, single := nfttest.NewSingleHandle()
	handle := &nfttest.Handle{Addr: nfttest.ContractAddress, Single: single.Core()}

	_, err := client.OwnedNFTs(handle, ownerA).Fetch(context.Background()).Get()
	assert.ErrorIs(t, err, nftkit.ErrUnsupportedCapability)

	_, err = client.TotalCount(handle).Fetch(context.Background()).Get()
	assert.ErrorIs(t, err, nftkit.ErrUnsupportedCapability)

	_, err = client.NFT(handle, big.NewInt(1)).Fetch(context.Background()).Get()
	assert.Nil(t, err)
}

func TestQuery_KeysAreScopedByChain(t *testing.T) {
	active := nftkit.NewActiveChain(1)
	client, err := nftkit.NewClient(&nftkit.ClientOptions{Chain: active})
	require.Nil(t, err)
	defer client.Close()

	handle, _ := nfttest.NewSingleHandle()
	mainnet := client.TotalCount(handle).Key()

	require.Nil(t, active.Switch(11155111))
	sepolia := client.TotalCount(handle).Key()

	assert.False(t, mainnet.Equal(sepolia))
	assert.Equal(t, "11155111", sepolia[1])
}

func TestQuery_WatchRefetchesOnInvalidation(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()
	single.SetBalance(ownerA, 1)

	query := client.NFTBalance(handle, ownerA, nil)

	var mu sync.Mutex
	var seen []int64
	cleanup := query.Watch(func(r nftkit.QueryResult[*big.Int]) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, r.Data.Int64())
	})

	single.SetBalance(ownerA, 5)
	_, err := client.InvalidateContract(handle)
	assert.Nil(t, err)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == 5
	}, time.Second, time.Millisecond, "a watched query refetches even before its first fetch")

	cleanup()
	cleanup()

	_, err = client.InvalidateContract(handle)
	assert.Nil(t, err)
	assert.Nil(t, client.Queries().Events().Wait(time.Second))

	mu.Lock()
	assert.Len(t, seen, 1, "no delivery after cleanup")
	mu.Unlock()
}
