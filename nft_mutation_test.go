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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invalidationRecorder struct {
	mu      sync.Mutex
	counts  map[string]int
	settled []nftkit.CacheEvent
}

func recordInvalidations(t *testing.T, client *nftkit.Client) *invalidationRecorder {
	r := &invalidationRecorder{counts: map[string]int{}}
	off := client.Queries().Events().On(func(ev nftkit.CacheEvent) {
		r.mu.Lock()
		defer r.mu.Unlock()
		switch ev.Type {
		case nftkit.EventInvalidated:
			r.counts[ev.Key.String()]++
		case nftkit.EventSettled:
			r.settled = append(r.settled, ev)
		}
	})
	t.Cleanup(off)
	return r
}

func (r *invalidationRecorder) count(key nftkit.CacheKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[key.String()]
}

func TestWrites_MissingArgumentBeforeDispatch(t *testing.T) {
	client := newTestClient(t)
	handle, single, multi := nfttest.NewDualHandle()
	ctx := context.Background()

	cases := []struct {
		name  string
		field string
		run   func() error
	}{
		{"transfer without to", "to", func() error {
			_, err := client.TransferNFT(handle).Mutate(ctx, nftkit.TransferParams{TokenID: big.NewInt(1), Amount: big.NewInt(1)})
			return err
		}},
		{"transfer without tokenId", "tokenId", func() error {
			_, err := client.TransferNFT(handle).Mutate(ctx, nftkit.TransferParams{To: ownerA, Amount: big.NewInt(1)})
			return err
		}},
		{"multi-token transfer without amount", "amount", func() error {
			_, err := client.TransferNFT(handle).Mutate(ctx, nftkit.TransferParams{To: ownerA, TokenID: big.NewInt(1)})
			return err
		}},
		{"burn without tokenId", "tokenId", func() error {
			_, err := client.BurnNFT(handle).Mutate(ctx, nftkit.BurnParams{Amount: big.NewInt(1)})
			return err
		}},
		{"multi-token burn without amount", "amount", func() error {
			_, err := client.BurnNFT(handle).Mutate(ctx, nftkit.BurnParams{TokenID: big.NewInt(1)})
			return err
		}},
		{"mint without to", "to", func() error {
			_, err := client.MintNFT(handle).Mutate(ctx, nftkit.MintParams{})
			return err
		}},
		{"mint supply without tokenId", "tokenId", func() error {
			_, err := client.MintNFTSupply(handle).Mutate(ctx, nftkit.MintSupplyParams{To: ownerA, AdditionalSupply: big.NewInt(1)})
			return err
		}},
		{"mint supply without additionalSupply", "additionalSupply", func() error {
			_, err := client.MintNFTSupply(handle).Mutate(ctx, nftkit.MintSupplyParams{To: ownerA, TokenID: big.NewInt(1)})
			return err
		}},
		{"airdrop without recipients", "recipients", func() error {
			_, err := client.AirdropNFT(handle).Mutate(ctx, nftkit.AirdropParams{TokenID: big.NewInt(1)})
			return err
		}},
		{"airdrop to zero address", "recipients.address", func() error {
			_, err := client.AirdropNFT(handle).Mutate(ctx, nftkit.AirdropParams{
				TokenID:    big.NewInt(1),
				Recipients: []nftkit.AirdropRecipient{{Address: ownerA}, {}},
			})
			return err
		}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.run()
			assert.ErrorIs(t, err, nftkit.ErrMissingArgument)
			field, ok := nftkit.MissingField(err)
			assert.True(t, ok)
			assert.Equal(t, c.field, field)
		})
	}

	assert.Empty(t, single.Calls())
	assert.Empty(t, multi.Calls())
}

func TestWrites_NoContract(t *testing.T) {
	client := newTestClient(t)

	mutation := client.TransferNFT(nil)
	_, err := mutation.Mutate(context.Background(), nftkit.TransferParams{To: ownerA, TokenID: big.NewInt(1)})
	assert.ErrorIs(t, err, nftkit.ErrNoContractProvided)

	state := mutation.State()
	assert.Equal(t, nftkit.MutationFailure, state.Status)
	assert.Empty(t, state.Invalidated)
}

func TestWrites_NeitherCapability(t *testing.T) {
	client := newTestClient(t)
	handle := nfttest.BareHandle{Addr: nfttest.ContractAddress}

	_, err := client.BurnNFT(handle).Mutate(context.Background(), nftkit.BurnParams{TokenID: big.NewInt(1)})
	assert.ErrorIs(t, err, nftkit.ErrUnsupportedCapability)

	_, err = client.MintNFT(handle).Mutate(context.Background(), nftkit.MintParams{To: ownerA})
	assert.ErrorIs(t, err, nftkit.ErrUnsupportedCapability)
}

func TestWrites_SingleTokenOnlyOperations(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()
	ctx := context.Background()

	_, err := client.MintNFTSupply(handle).Mutate(ctx, nftkit.MintSupplyParams{To: ownerA, TokenID: big.NewInt(1)})
	assert.ErrorIs(t, err, nftkit.ErrUnsupportedCapability, "routing is checked before multi-token fields")

	_, err = client.AirdropNFT(handle).Mutate(ctx, nftkit.AirdropParams{
		TokenID:    big.NewInt(1),
		Recipients: []nftkit.AirdropRecipient{{Address: ownerA}},
	})
	assert.ErrorIs(t, err, nftkit.ErrUnsupportedCapability)

	res, err := client.TransferNFT(handle).Mutate(ctx, nftkit.TransferParams{To: ownerB, TokenID: big.NewInt(4)})
	assert.Nil(t, err)
	assert.Equal(t, nfttest.TxHash, res.Hash)
	call, ok := single.Last("Transfer")
	require.True(t, ok)
	assert.Equal(t, ownerB, call.Args[0])

	_, err = client.BurnNFT(handle).Mutate(ctx, nftkit.BurnParams{TokenID: big.NewInt(4)})
	assert.Nil(t, err, "single-token burn needs no amount")
	assert.Equal(t, 1, single.Count("Burn"))
}

func TestMintNFT_MultiTokenDefaultsSupplyToOne(t *testing.T) {
	client := newTestClient(t)
	handle, multi := nfttest.NewMultiHandle()

	meta := nftkit.NFTMetadata{Name: "ticket"}
	_, err := client.MintNFT(handle).Mutate(context.Background(), nftkit.MintParams{To: ownerA, Metadata: meta})
	assert.Nil(t, err)

	call, ok := multi.Last("MintTo")
	require.True(t, ok)
	assert.Equal(t, ownerA, call.Args[0])
	assert.Equal(t, "ticket", call.Args[1].(nftkit.NFTMetadata).Name)
	assert.Equal(t, int64(1), call.Args[2].(*big.Int).Int64())
}

func TestAirdropNFT_DefaultsQuantityToOne(t *testing.T) {
	client := newTestClient(t)
	handle, multi := nfttest.NewMultiHandle()
	recorder := recordInvalidations(t, client)

	// cache both recipients' wallet keys so their invalidation is observable
	walletA := append(nftkit.WalletKey(1, ownerA), "native")
	walletB := append(nftkit.WalletKey(1, ownerB), "native")
	require.Nil(t, nftkit.SetQueryData(client.Queries(), walletA, big.NewInt(1)))
	require.Nil(t, nftkit.SetQueryData(client.Queries(), walletB, big.NewInt(1)))

	_, err := client.AirdropNFT(handle).Mutate(context.Background(), nftkit.AirdropParams{
		TokenID: big.NewInt(2),
		Recipients: []nftkit.AirdropRecipient{
			{Address: ownerA},
			{Address: ownerB, Quantity: big.NewInt(5)},
		},
	})
	assert.Nil(t, err)

	call, ok := multi.Last("Airdrop")
	require.True(t, ok)
	recipients := call.Args[1].([]nftkit.AirdropRecipient)
	require.Len(t, recipients, 2)
	assert.Equal(t, int64(1), recipients[0].Quantity.Int64())
	assert.Equal(t, int64(5), recipients[1].Quantity.Int64())

	assert.Nil(t, client.Queries().Events().Wait(time.Second))
	assert.Equal(t, 1, recorder.count(walletA))
	assert.Equal(t, 1, recorder.count(walletB))
}

func TestBurnNFT_InvalidatesOnceOnSettlement(t *testing.T) {
	for _, outcome := range []struct {
		name string
		err  error
	}{
		{"success", nil},
		{"failure", fmt.Errorf("execution reverted")},
	} {
		t.Run(outcome.name, func(t *testing.T) {
			client := newTestClient(t)
			handle, multi := nfttest.NewMultiHandle()
			multi.SetToken(7, 10, "seven")
			multi.SetBalance(ownerA, 7, 2)

			balance := client.NFTBalance(handle, ownerA, big.NewInt(7))
			token := client.NFT(handle, big.NewInt(7))
			require.Nil(t, balance.Fetch(context.Background()).Err)
			require.Nil(t, token.Fetch(context.Background()).Err)

			recorder := recordInvalidations(t, client)
			multi.SetError(outcome.err)

			mutation := client.BurnNFT(handle)
			var settled []nftkit.MutationState[nftkit.TxResult]
			mutation.OnSettled(func(s nftkit.MutationState[nftkit.TxResult]) {
				settled = append(settled, s)
			})

			_, err := mutation.Mutate(context.Background(), nftkit.BurnParams{TokenID: big.NewInt(7), Amount: big.NewInt(1)})
			if outcome.err != nil {
				assert.Equal(t, outcome.err, err, "external errors are returned unchanged")
			} else {
				assert.Nil(t, err)
			}

			assert.Nil(t, client.Queries().Events().Wait(time.Second))
			assert.Equal(t, 1, recorder.count(balance.Key()))
			assert.Equal(t, 1, recorder.count(token.Key()))

			require.Len(t, settled, 1)
			state := settled[0]
			assert.True(t, state.Status.Settled())
			assert.NotEqual(t, state.ID.String(), "00000000-0000-0000-0000-000000000000")
			assert.ElementsMatch(t,
				[]string{balance.Key().String(), token.Key().String()},
				keyStrings(state.Invalidated))

			recorder.mu.Lock()
			require.Len(t, recorder.settled, 1)
			assert.Equal(t, state.ID, recorder.settled[0].MutationID)
			assert.Equal(t, "burn", recorder.settled[0].Operation)
			recorder.mu.Unlock()

			if outcome.err != nil {
				assert.Equal(t, nftkit.MutationFailure, mutation.State().Status)
			} else {
				assert.Equal(t, nftkit.MutationSuccess, mutation.State().Status)
			}

			multi.SetError(nil)
			_ = balance.Fetch(context.Background())
			assert.Equal(t, 2, multi.Count("BalanceOf"), "the invalidated balance is refetched")
		})
	}
}

func TestWrites_AreNotCoalesced(t *testing.T) {
	client := newTestClient(t)
	handle, single := nfttest.NewSingleHandle()
	mutation := client.TransferNFT(handle)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mutation.Mutate(context.Background(), nftkit.TransferParams{To: ownerA, TokenID: big.NewInt(1)})
			assert.Nil(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, single.Count("Transfer"))
}

func TestMintNFTSupply(t *testing.T) {
	client := newTestClient(t)
	handle, multi := nfttest.NewMultiHandle()

	res, err := client.MintNFTSupply(handle).Mutate(context.Background(), nftkit.MintSupplyParams{
		To:               ownerA,
		TokenID:          big.NewInt(3),
		AdditionalSupply: big.NewInt(25),
	})
	assert.Nil(t, err)
	assert.Equal(t, int64(3), res.TokenID.Int64())

	call, ok := multi.Last("MintAdditionalSupplyTo")
	require.True(t, ok)
	assert.Equal(t, []any{ownerA, big.NewInt(3), big.NewInt(25)}, call.Args)
}

func keyStrings(keys []nftkit.CacheKey) (out []string) {
	for _, k := range keys {
		out = append(out, k.String())
	}
	return
}
